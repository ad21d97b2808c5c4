package uploads

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/assetsync/internal/client/models"
	"github.com/dmitrijs2005/assetsync/internal/common"
	"github.com/dmitrijs2005/assetsync/internal/dbx"
)

const columns = `id, owner_id, session_id, transaction_id, source, file_path, caption, expiration_hours,
	content_type, size, duration, color, x_res, y_res, no_cuts, original_size,
	small_cut_size, medium_cut_size, large_cut_size, destinations, status, note, created_at, updated_at`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Insert(ctx context.Context, u *models.UploadRequest) error {
	dest, err := encodeManifest(u.Destinations)
	if err != nil {
		return err
	}

	query := `INSERT INTO upload_requests (` + columns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		u.ID, u.OwnerID, u.SessionID, u.TransactionID, u.Source, u.FilePath, u.Caption, u.ExpirationHours,
		u.ContentType, u.Size, u.Duration, u.Color, u.XRes, u.YRes, u.NoCuts, u.OriginalSize,
		u.SmallCutSize, u.MediumCutSize, u.LargeCutSize, dest, string(u.Status), u.Note,
		u.CreatedAt.UnixNano(), u.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert upload request: %w", err)
	}

	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, u *models.UploadRequest) error {
	dest, err := encodeManifest(u.Destinations)
	if err != nil {
		return err
	}

	query := `UPDATE upload_requests SET transaction_id=?, source=?, file_path=?, caption=?, expiration_hours=?,
		content_type=?, size=?, duration=?, color=?, x_res=?, y_res=?, no_cuts=?, original_size=?,
		small_cut_size=?, medium_cut_size=?, large_cut_size=?, destinations=?, status=?, note=?, updated_at=?
		WHERE id=?`

	result, err := r.db.ExecContext(ctx, query,
		u.TransactionID, u.Source, u.FilePath, u.Caption, u.ExpirationHours,
		u.ContentType, u.Size, u.Duration, u.Color, u.XRes, u.YRes, u.NoCuts, u.OriginalSize,
		u.SmallCutSize, u.MediumCutSize, u.LargeCutSize, dest, string(u.Status), u.Note,
		u.UpdatedAt.UnixNano(), u.ID)
	if err != nil {
		return fmt.Errorf("failed to update upload request: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected != 1 {
		return fmt.Errorf("upload request %s: %w", u.ID, common.ErrorNotFound)
	}

	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.UploadRequest, error) {
	query := `SELECT ` + columns + ` FROM upload_requests WHERE id=?`
	row := r.db.QueryRowContext(ctx, query, id)

	u, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("upload request %s: %w", id, common.ErrorNotFound)
	}
	if err != nil {
		return nil, err
	}

	return u, nil
}

func (r *SQLiteRepository) List(ctx context.Context, f Filter) ([]*models.UploadRequest, error) {
	var (
		where []string
		args  []any
	)
	if f.OwnerID != "" {
		where = append(where, "owner_id=?")
		args = append(args, f.OwnerID)
	}
	if f.SessionID != "" {
		where = append(where, "session_id=?")
		args = append(args, f.SessionID)
	}
	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			marks[i] = "?"
			args = append(args, string(s))
		}
		where = append(where, "status IN ("+strings.Join(marks, ", ")+")")
	}

	query := `SELECT ` + columns + ` FROM upload_requests`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error selecting upload requests: %w", err)
	}
	defer rows.Close()

	var result []*models.UploadRequest

	for rows.Next() {
		u, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (*models.UploadRequest, error) {
	var (
		u                models.UploadRequest
		dest, status     string
		created, updated int64
	)
	err := s.Scan(&u.ID, &u.OwnerID, &u.SessionID, &u.TransactionID, &u.Source, &u.FilePath, &u.Caption,
		&u.ExpirationHours, &u.ContentType, &u.Size, &u.Duration, &u.Color, &u.XRes, &u.YRes,
		&u.NoCuts, &u.OriginalSize, &u.SmallCutSize, &u.MediumCutSize, &u.LargeCutSize,
		&dest, &status, &u.Note, &created, &updated)
	if err != nil {
		return nil, err
	}

	if u.Status, err = models.ParseUploadStatus(status); err != nil {
		return nil, fmt.Errorf("upload request %s: %w", u.ID, err)
	}
	if u.Destinations, err = decodeManifest(dest); err != nil {
		return nil, fmt.Errorf("upload request %s: %w", u.ID, err)
	}
	u.CreatedAt = time.Unix(0, created).UTC()
	u.UpdatedAt = time.Unix(0, updated).UTC()

	return &u, nil
}

func encodeManifest(m models.Manifest) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode destinations: %w", err)
	}
	return string(b), nil
}

func decodeManifest(s string) (models.Manifest, error) {
	m := models.Manifest{}
	if s == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("decode destinations: %w", err)
	}
	return m, nil
}
