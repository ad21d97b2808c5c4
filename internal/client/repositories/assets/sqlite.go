package assets

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/assetsync/internal/client/models"
	"github.com/dmitrijs2005/assetsync/internal/common"
	"github.com/dmitrijs2005/assetsync/internal/dbx"
)

const columns = `id, owner_id, session_id, transaction_id, path, expiration_hours, content_type, size,
	duration, expiration, color, x_res, y_res, caption, urls, status, created_at, updated_at`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateOrUpdate(ctx context.Context, a *models.FinishedAsset) error {
	urls, err := json.Marshal(a.URLs)
	if err != nil {
		return fmt.Errorf("encode asset urls: %w", err)
	}
	if a.URLs == nil {
		urls = []byte("{}")
	}

	query := `INSERT INTO assets (` + columns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET owner_id = excluded.owner_id,
			session_id = excluded.session_id,
			transaction_id = excluded.transaction_id,
			path = excluded.path,
			expiration_hours = excluded.expiration_hours,
			content_type = excluded.content_type,
			size = excluded.size,
			duration = excluded.duration,
			expiration = excluded.expiration,
			color = excluded.color,
			x_res = excluded.x_res,
			y_res = excluded.y_res,
			caption = excluded.caption,
			urls = excluded.urls,
			status = excluded.status,
			updated_at = excluded.updated_at
	`
	_, err = r.db.ExecContext(ctx, query,
		a.ID, a.OwnerID, a.SessionID, a.TransactionID, a.Path, a.ExpirationHours, a.ContentType, a.Size,
		a.Duration, unixNano(a.Expiration), a.Color, a.XRes, a.YRes, a.Caption, string(urls), string(a.Status),
		unixNano(a.CreatedAt), unixNano(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert asset: %w", err)
	}

	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.FinishedAsset, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM assets WHERE id=?`, id)

	a, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("asset %s: %w", id, common.ErrorNotFound)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *SQLiteRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.FinishedAsset, error) {
	query := `SELECT ` + columns + ` FROM assets`
	var args []any
	if ownerID != "" {
		query += ` WHERE owner_id=?`
		args = append(args, ownerID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error selecting assets: %w", err)
	}
	defer rows.Close()

	var result []*models.FinishedAsset
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *SQLiteRepository) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM assets WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected != 1 {
		return fmt.Errorf("asset %s: %w", id, common.ErrorNotFound)
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (*models.FinishedAsset, error) {
	var (
		a                            models.FinishedAsset
		urls, status                 string
		expiration, created, updated int64
	)
	err := s.Scan(&a.ID, &a.OwnerID, &a.SessionID, &a.TransactionID, &a.Path, &a.ExpirationHours,
		&a.ContentType, &a.Size, &a.Duration, &expiration, &a.Color, &a.XRes, &a.YRes, &a.Caption,
		&urls, &status, &created, &updated)
	if err != nil {
		return nil, err
	}

	if a.Status, err = models.ParseAssetStatus(status); err != nil {
		return nil, fmt.Errorf("asset %s: %w", a.ID, err)
	}
	a.URLs = map[models.Variant]string{}
	if err := json.Unmarshal([]byte(urls), &a.URLs); err != nil {
		return nil, fmt.Errorf("asset %s: decode urls: %w", a.ID, err)
	}
	a.Expiration = fromUnixNano(expiration)
	a.CreatedAt = fromUnixNano(created)
	a.UpdatedAt = fromUnixNano(updated)

	return &a, nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
