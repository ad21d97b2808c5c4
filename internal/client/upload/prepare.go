package upload

import (
	"context"
	"fmt"
	"image"

	"github.com/dmitrijs2005/assetsync/internal/client/models"
	"github.com/dmitrijs2005/assetsync/internal/common"
	"github.com/dmitrijs2005/assetsync/internal/filex"
	"github.com/google/uuid"
)

// NewUpload describes a local file to be turned into an upload request.
type NewUpload struct {
	Source        string
	Dir           string
	TransactionID string
	Caption       string

	ExpirationHours float64
	NoCuts          bool
	OriginalSize    int
	SmallCutSize    int
	MediumCutSize   int
	LargeCutSize    int

	// Destinations, when set, make the request initialized right away.
	Destinations models.Manifest
}

// PrepareUpload probes the source and builds a request for it. The request
// is initialized when destinations are given or an issuer is configured,
// pending otherwise. Nothing is stored.
func (s *Service) PrepareUpload(ctx context.Context, n NewUpload) (*models.UploadRequest, error) {
	info, err := s.opts.Source.Probe(ctx, n.Source)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", n.Source, err)
	}

	req := &models.UploadRequest{
		ID:              uuid.NewString(),
		OwnerID:         s.opts.OwnerID,
		SessionID:       s.opts.SessionID,
		TransactionID:   n.TransactionID,
		Source:          n.Source,
		FilePath:        filex.RemoteName(n.Dir, info.FileName),
		Caption:         n.Caption,
		ExpirationHours: n.ExpirationHours,
		ContentType:     info.ContentType,
		Size:            info.Size,
		Duration:        info.Duration,
		Color:           common.DefaultColor,
		XRes:            info.Width,
		YRes:            info.Height,
		NoCuts:          n.NoCuts,
		OriginalSize:    n.OriginalSize,
		SmallCutSize:    n.SmallCutSize,
		MediumCutSize:   n.MediumCutSize,
		LargeCutSize:    n.LargeCutSize,
		Status:          models.StatusPending,
	}
	if req.ExpirationHours <= 0 {
		req.ExpirationHours = common.DefaultExpirationHours
	}

	if color, err := s.swatch(ctx, req); err != nil {
		s.logger.Warn(ctx, "colour swatch unavailable", "source", n.Source, "error", err)
	} else {
		req.Color = color
	}

	switch {
	case len(n.Destinations) > 0:
		req.Destinations = n.Destinations.Clone()
		req.Status = models.StatusInitialized
	case s.opts.Issuer != nil:
		m, err := s.opts.Issuer.Issue(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("issue destinations for %s: %w", n.Source, err)
		}
		req.Destinations = m
		req.Status = models.StatusInitialized
	}

	return req, nil
}

func (s *Service) swatch(ctx context.Context, req *models.UploadRequest) (string, error) {
	var (
		img image.Image
		err error
	)
	switch req.Kind() {
	case models.KindImage:
		img, err = s.opts.Source.Image(ctx, req.Source)
	case models.KindVideo:
		img, err = s.opts.Source.Frame(ctx, req.Source)
	default:
		return common.DefaultColor, nil
	}
	if err != nil {
		return "", err
	}
	return s.opts.Deriver.Swatch(img)
}

// CreateUploads prepares and stores every item. Stored requests that are
// initialized start uploading in parallel through the live query. It stops
// at the first failure; requests stored before it are kept.
func (s *Service) CreateUploads(ctx context.Context, items []NewUpload) ([]*models.UploadRequest, error) {
	out := make([]*models.UploadRequest, 0, len(items))
	for _, n := range items {
		req, err := s.PrepareUpload(ctx, n)
		if err != nil {
			return out, err
		}
		if err := s.opts.Store.InsertUpload(ctx, req); err != nil {
			return out, err
		}
		out = append(out, req)
	}
	return out, nil
}

// QueueUploads prepares every item and hands them to the sequential queue.
func (s *Service) QueueUploads(ctx context.Context, items []NewUpload) ([]*models.UploadRequest, error) {
	reqs := make([]*models.UploadRequest, 0, len(items))
	for _, n := range items {
		req, err := s.PrepareUpload(ctx, n)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	if err := s.EnqueueSequential(ctx, reqs); err != nil {
		return nil, err
	}
	return reqs, nil
}

// EnqueueSequential stores reqs one at a time: each is released only after
// the previous one finished.
func (s *Service) EnqueueSequential(ctx context.Context, reqs []*models.UploadRequest) error {
	if len(reqs) == 0 {
		return nil
	}

	s.qmu.Lock()
	defer s.qmu.Unlock()

	var (
		released *models.UploadRequest
		err      error
	)
	if s.queue == nil {
		opts := []QueueOption{WithAdvanceOnError(s.opts.AdvanceOnError), WithQueueMetrics(s.opts.Metrics)}
		var q *Queue
		if q, err = NewQueue(ctx, s.opts.Store, s.logger, nil, opts...); err == nil {
			s.queue = q
			released, err = q.Append(ctx, reqs...)
		}
	} else {
		released, err = s.queue.Append(ctx, reqs...)
	}
	if err != nil {
		return err
	}

	if released != nil {
		s.events.emit(Event{Kind: EventReleased, RequestID: released.ID, Task: released.FileName()})
	}
	s.reportStall(s.queue)
	return nil
}

// QueueStalled returns the failed request holding back the sequential queue,
// or nil.
func (s *Service) QueueStalled() *models.UploadRequest {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	if s.queue == nil {
		return nil
	}
	return s.queue.Stalled()
}

func (s *Service) reportStall(q *Queue) {
	if q == nil {
		return
	}
	stalled := q.Stalled()
	if stalled == nil {
		return
	}
	s.events.emit(Event{
		Kind:      EventQueueStalled,
		RequestID: stalled.ID,
		Task:      stalled.FileName(),
		Note:      fmt.Sprintf("%d queued upload(s) wait behind failed %s, reset to clear", q.Pending(), stalled.FileName()),
	})
}

// QueuePending is the number of queued requests not yet released.
func (s *Service) QueuePending() int {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	if s.queue == nil {
		return 0
	}
	return s.queue.Pending()
}

func (s *Service) advanceQueue(ctx context.Context, id string, ok bool) {
	s.qmu.Lock()
	q := s.queue
	s.qmu.Unlock()
	if q == nil {
		return
	}

	next, err := q.Completed(ctx, id, ok)
	if err != nil {
		s.storeFailure(ctx, id, err)
		return
	}
	if next != nil {
		s.events.emit(Event{Kind: EventReleased, RequestID: next.ID, Task: next.FileName()})
	}
	if !ok {
		s.reportStall(q)
	}
}

// RefreshAsset fetches the backend's copy of an asset and stores it. Bad
// documents are logged and returned.
func (s *Service) RefreshAsset(ctx context.Context, id string) (*models.FinishedAsset, error) {
	if s.opts.Assets == nil {
		return nil, ErrNoBackend
	}

	doc, err := s.opts.Assets.RefreshAsset(ctx, id)
	if err != nil {
		s.logger.Error(ctx, "refresh asset failed", "id", id, "error", err)
		return nil, err
	}

	asset, err := doc.ToFinishedAsset()
	if err != nil {
		s.logger.Error(ctx, "refresh asset: bad document", "id", id, "error", err)
		return nil, err
	}

	if err := s.opts.Store.UpsertAsset(ctx, asset); err != nil {
		s.storeFailure(ctx, id, err)
		return nil, err
	}
	return asset, nil
}
