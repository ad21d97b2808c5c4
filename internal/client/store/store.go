// Package store is the local reactive store for upload requests and finished
// assets. Every committed write re-evaluates the open live queries and pushes
// the resulting change sets to their subscribers.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/dmitrijs2005/assetsync/internal/client/migrations"
	"github.com/dmitrijs2005/assetsync/internal/client/models"
	"github.com/dmitrijs2005/assetsync/internal/client/repositories/assets"
	"github.com/dmitrijs2005/assetsync/internal/client/repositories/uploads"
	"github.com/dmitrijs2005/assetsync/internal/common"
	"github.com/dmitrijs2005/assetsync/internal/dbx"
	"github.com/dmitrijs2005/assetsync/internal/feed"
	"github.com/dmitrijs2005/assetsync/internal/logging"

	_ "modernc.org/sqlite"
)

type Store struct {
	db     *sql.DB
	logger logging.Logger
	now    func() time.Time

	mu        sync.Mutex
	nextID    int
	uploadsQs map[int]*liveQuery[models.UploadRequest]
	assetsQs  map[int]*liveQuery[models.FinishedAsset]
}

// Open opens (or creates) the SQLite database at dsn and applies migrations.
func Open(ctx context.Context, dsn string, logger logging.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, dbx.Unavailable(err)
	}

	if err := migrations.Up(ctx, db); err != nil {
		_ = db.Close()
		return nil, dbx.Unavailable(err)
	}

	// SQLite has a single writer; one connection keeps transactions and
	// notification reads strictly ordered.
	db.SetMaxOpenConns(1)

	return New(db, logger), nil
}

// New wraps an already migrated database.
func New(db *sql.DB, logger logging.Logger) *Store {
	return &Store{
		db:        db,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		uploadsQs: map[int]*liveQuery[models.UploadRequest]{},
		assetsQs:  map[int]*liveQuery[models.FinishedAsset]{},
	}
}

func (s *Store) Close() error {
	s.mu.Lock()
	qs := make([]func(), 0, len(s.uploadsQs)+len(s.assetsQs))
	for _, q := range s.uploadsQs {
		qs = append(qs, q.box.Close)
	}
	for _, q := range s.assetsQs {
		qs = append(qs, q.box.Close)
	}
	clear(s.uploadsQs)
	clear(s.assetsQs)
	s.mu.Unlock()

	for _, c := range qs {
		c()
	}
	return s.db.Close()
}

// InsertUpload stores a new request. Missing timestamps and colour are filled
// in; an empty status becomes pending.
func (s *Store) InsertUpload(ctx context.Context, r *models.UploadRequest) error {
	now := s.now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}
	if r.Status == "" {
		r.Status = models.StatusPending
	}
	if r.Color == "" {
		r.Color = common.DefaultColor
	}
	if r.ExpirationHours <= 0 {
		r.ExpirationHours = common.DefaultExpirationHours
	}
	if _, err := models.ParseUploadStatus(string(r.Status)); err != nil {
		return err
	}

	if err := uploads.NewSQLiteRepository(s.db).Insert(ctx, r); err != nil {
		return dbx.Unavailable(err)
	}

	s.publish(ctx)
	return nil
}

// WriteUpload reads the request, applies mutate and writes it back inside one
// transaction. A status change must be a legal transition. The stored result
// is returned.
func (s *Store) WriteUpload(ctx context.Context, id string, mutate func(r *models.UploadRequest) error) (*models.UploadRequest, error) {
	var (
		out    *models.UploadRequest
		mutErr error
	)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := uploads.NewSQLiteRepository(tx)

		cur, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		next := cur.Clone()
		if mutErr = mutate(next); mutErr != nil {
			return mutErr
		}
		if next.Status != cur.Status && !cur.Status.CanTransitionTo(next.Status) {
			mutErr = fmt.Errorf("%w: %s -> %s", common.ErrInvalidTransition, cur.Status, next.Status)
			return mutErr
		}
		if _, mutErr = models.ParseUploadStatus(string(next.Status)); mutErr != nil {
			return mutErr
		}
		next.ID, next.OwnerID, next.SessionID, next.CreatedAt = cur.ID, cur.OwnerID, cur.SessionID, cur.CreatedAt
		next.UpdatedAt = s.now()
		if !next.UpdatedAt.After(cur.UpdatedAt) {
			next.UpdatedAt = cur.UpdatedAt.Add(time.Nanosecond)
		}

		if err := repo.Update(ctx, next); err != nil {
			return err
		}
		out = next
		return nil
	})
	if mutErr != nil {
		return nil, mutErr
	}
	if err != nil {
		return nil, dbx.Unavailable(err)
	}

	s.publish(ctx)
	return out, nil
}

func (s *Store) GetUpload(ctx context.Context, id string) (*models.UploadRequest, error) {
	r, err := uploads.NewSQLiteRepository(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, dbx.Unavailable(err)
	}
	return r, nil
}

func (s *Store) QueryUploads(ctx context.Context, f uploads.Filter) ([]*models.UploadRequest, error) {
	list, err := uploads.NewSQLiteRepository(s.db).List(ctx, f)
	if err != nil {
		return nil, dbx.Unavailable(err)
	}
	return list, nil
}

// InsertAsset stores a finished asset, replacing one with the same id.
func (s *Store) InsertAsset(ctx context.Context, a *models.FinishedAsset) error {
	now := s.now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}
	if a.Status == "" {
		a.Status = models.StatusActive
	}
	if a.Color == "" {
		a.Color = common.DefaultColor
	}

	if err := assets.NewSQLiteRepository(s.db).CreateOrUpdate(ctx, a); err != nil {
		return dbx.Unavailable(err)
	}

	s.publish(ctx)
	return nil
}

// UpsertAsset stores a copy of an asset received from elsewhere, stamping it
// as updated now.
func (s *Store) UpsertAsset(ctx context.Context, a *models.FinishedAsset) error {
	a.UpdatedAt = s.now()
	return s.InsertAsset(ctx, a)
}

func (s *Store) QueryAssets(ctx context.Context, ownerID string) ([]*models.FinishedAsset, error) {
	list, err := assets.NewSQLiteRepository(s.db).ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, dbx.Unavailable(err)
	}
	return list, nil
}

// ObserveUploads opens a live query over the owner's requests in one session.
// The first change delivered is the initial snapshot.
func (s *Store) ObserveUploads(ctx context.Context, ownerID, sessionID string) (*feed.Subscription[models.UploadRequest], error) {
	load := func(ctx context.Context) ([]models.UploadRequest, error) {
		list, err := uploads.NewSQLiteRepository(s.db).List(ctx, uploads.Filter{OwnerID: ownerID, SessionID: sessionID})
		if err != nil {
			return nil, err
		}
		return deref(list), nil
	}
	key := func(r models.UploadRequest) string { return r.ID }

	return observe(ctx, s, s.uploadsQs, load, key)
}

// ObserveAssets opens a live query over the owner's finished assets.
func (s *Store) ObserveAssets(ctx context.Context, ownerID string) (*feed.Subscription[models.FinishedAsset], error) {
	load := func(ctx context.Context) ([]models.FinishedAsset, error) {
		list, err := assets.NewSQLiteRepository(s.db).ListByOwner(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		return deref(list), nil
	}
	key := func(a models.FinishedAsset) string { return a.ID }

	return observe(ctx, s, s.assetsQs, load, key)
}

type liveQuery[T any] struct {
	load func(ctx context.Context) ([]T, error)
	key  func(T) string
	last []T
	box  *feed.Mailbox[feed.Change[T]]
}

func observe[T any](ctx context.Context, s *Store, qs map[int]*liveQuery[T], load func(context.Context) ([]T, error), key func(T) string) (*feed.Subscription[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	initial, err := load(ctx)
	if err != nil {
		return nil, dbx.Unavailable(err)
	}

	q := &liveQuery[T]{load: load, key: key, last: initial, box: feed.NewMailbox[feed.Change[T]]()}
	q.box.Push(feed.Change[T]{Initial: true, Results: initial})

	id := s.nextID
	s.nextID++
	qs[id] = q

	release := func() {
		s.mu.Lock()
		delete(qs, id)
		s.mu.Unlock()
	}
	return feed.NewSubscription(q.box, release), nil
}

// publish re-runs every live query and pushes non-empty diffs. It holds the
// store lock so change sets are produced in commit order.
func (s *Store) publish(ctx context.Context) {
	// notification must not be skipped because the writer's context ended
	ctx = context.WithoutCancel(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, q := range s.uploadsQs {
		refresh(ctx, s.logger, q)
	}
	for _, q := range s.assetsQs {
		refresh(ctx, s.logger, q)
	}
}

func refresh[T any](ctx context.Context, logger logging.Logger, q *liveQuery[T]) {
	next, err := q.load(ctx)
	if err != nil {
		err = dbx.Unavailable(err)
		logger.Error(ctx, "live query refresh failed", "error", err)
		q.box.Push(feed.Change[T]{Results: q.last, Err: err})
		return
	}

	ch := feed.Diff(q.last, next, q.key, func(a, b T) bool { return reflect.DeepEqual(a, b) })
	q.last = next
	if !ch.Empty() {
		q.box.Push(ch)
	}
}

func deref[T any](in []*T) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = *v
	}
	return out
}
