package upload

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/assetsync/internal/client/metrics"
	"github.com/dmitrijs2005/assetsync/internal/client/models"
	"github.com/dmitrijs2005/assetsync/internal/logging"
)

// Inserter persists a released queue item.
type Inserter interface {
	InsertUpload(ctx context.Context, r *models.UploadRequest) error
}

// Queue releases prepared requests into the store one at a time. The next
// item is released only after the previous one completes.
type Queue struct {
	store          Inserter
	logger         logging.Logger
	metrics        *metrics.Metrics
	advanceOnError bool

	mu       sync.Mutex
	items    []*models.UploadRequest
	released int
	// inFlight is the id of the released item not yet completed
	inFlight string
	// stalled is the failed in-flight item holding back the rest
	stalled *models.UploadRequest
}

type QueueOption func(*Queue)

// WithAdvanceOnError lets a failed item release its successor.
func WithAdvanceOnError(on bool) QueueOption {
	return func(q *Queue) { q.advanceOnError = on }
}

func WithQueueMetrics(m *metrics.Metrics) QueueOption {
	return func(q *Queue) { q.metrics = m }
}

// NewQueue holds items and releases the first one.
func NewQueue(ctx context.Context, store Inserter, logger logging.Logger, items []*models.UploadRequest, opts ...QueueOption) (*Queue, error) {
	q := &Queue{store: store, logger: logger, items: append([]*models.UploadRequest(nil), items...)}
	for _, o := range opts {
		o(q)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if _, err := q.releaseNext(ctx); err != nil {
		return nil, err
	}
	return q, nil
}

// Succeeded reports that id finished successfully and releases the item
// after it. It returns the released item, or nil.
func (q *Queue) Succeeded(ctx context.Context, id string) (*models.UploadRequest, error) {
	return q.Completed(ctx, id, true)
}

// Completed reports a finished item. A failure releases the successor only
// with WithAdvanceOnError. Ids not held by the queue are ignored.
func (q *Queue) Completed(ctx context.Context, id string, ok bool) (*models.UploadRequest, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if id == "" || id != q.inFlight {
		return nil, nil
	}
	if !ok && !q.advanceOnError {
		q.stalled = q.items[q.released-1]
		q.logger.Warn(ctx, "queue stalled on failed item", "id", id, "pending", len(q.items)-q.released)
		return nil, nil
	}

	q.inFlight = ""
	return q.releaseNext(ctx)
}

// Append adds items to the tail. When nothing is in flight the first new
// item is released at once.
func (q *Queue) Append(ctx context.Context, items ...*models.UploadRequest) (*models.UploadRequest, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, items...)
	if q.inFlight != "" {
		if q.stalled != nil {
			q.logger.Warn(ctx, "items appended behind failed item", "id", q.stalled.ID, "pending", len(q.items)-q.released)
		}
		q.report()
		return nil, nil
	}
	return q.releaseNext(ctx)
}

// Reset drops every unreleased item. Released records stay in the store.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = q.items[:q.released]
	q.inFlight = ""
	q.stalled = nil
	q.report()
}

// Pending is the number of items not yet released.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.released
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stalled returns the failed item the queue is waiting on, or nil. Only
// Reset clears it.
func (q *Queue) Stalled() *models.UploadRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stalled
}

// InFlight returns the id of the released item awaiting completion.
func (q *Queue) InFlight() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight
}

func (q *Queue) releaseNext(ctx context.Context) (*models.UploadRequest, error) {
	if q.released >= len(q.items) {
		q.report()
		return nil, nil
	}

	next := q.items[q.released]
	if err := q.store.InsertUpload(ctx, next); err != nil {
		q.logger.Error(ctx, "queue release failed", "id", next.ID, "error", err)
		return nil, err
	}

	q.released++
	q.inFlight = next.ID
	q.report()
	q.logger.Info(ctx, "queue released item", "id", next.ID, "pending", len(q.items)-q.released)
	return next, nil
}

func (q *Queue) report() {
	q.metrics.Queue(len(q.items) - q.released)
}
