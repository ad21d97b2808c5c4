package upload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/assetsync/internal/client/metrics"
	"github.com/dmitrijs2005/assetsync/internal/client/models"
	"github.com/dmitrijs2005/assetsync/internal/common"
	"github.com/dmitrijs2005/assetsync/internal/feed"
	"github.com/dmitrijs2005/assetsync/internal/logging"
)

var (
	ErrClosed    = errors.New("service closed")
	ErrNoBackend = errors.New("no backend client configured")
)

// Options wires a Service. Store, Source, Deriver, Transfer and Logger are
// required.
type Options struct {
	OwnerID   string
	SessionID string

	Store    Store
	Source   Source
	Deriver  Deriver
	Transfer Transferrer
	Logger   logging.Logger

	Metrics *metrics.Metrics
	Assets  AssetClient
	Issuer  Issuer

	// StepTimeout bounds each derive+transfer step; 0 means no bound.
	StepTimeout time.Duration
	// DeriveAssets stores a FinishedAsset for each successful upload.
	DeriveAssets bool
	// AdvanceOnError lets the sequential queue move past failed items.
	AdvanceOnError bool
	Now            func() time.Time
}

// Progress is the last known position of one request's run.
type Progress struct {
	RequestID string
	Task      string
	Variant   models.Variant
	State     State
	Percent   float64
	Active    bool
	UpdatedAt time.Time
}

// Service watches the owner's upload requests and runs every request that
// becomes initialized.
type Service struct {
	opts   Options
	logger logging.Logger
	events *broadcaster
	now    func() time.Time

	mu       sync.Mutex
	started  bool
	closed   bool
	cancel   context.CancelFunc
	active   map[string]struct{}
	settled  map[string]struct{}
	progress map[string]Progress
	lastID   string
	finished []models.UploadRequest
	urls     []string
	assets   []models.FinishedAsset

	qmu   sync.Mutex
	queue *Queue

	loops sync.WaitGroup
	runs  sync.WaitGroup
}

func NewService(opts Options) (*Service, error) {
	switch {
	case opts.Store == nil:
		return nil, errors.New("upload: store is required")
	case opts.Source == nil:
		return nil, errors.New("upload: source is required")
	case opts.Deriver == nil:
		return nil, errors.New("upload: deriver is required")
	case opts.Transfer == nil:
		return nil, errors.New("upload: transfer client is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Service{
		opts:     opts,
		logger:   opts.Logger.With("owner", opts.OwnerID, "session", opts.SessionID),
		events:   newBroadcaster(),
		now:      now,
		active:   map[string]struct{}{},
		settled:  map[string]struct{}{},
		progress: map[string]Progress{},
	}, nil
}

// Start opens the live queries. Runs launched by the service use ctx and
// stop when it ends or Close is called.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.started {
		return common.ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)

	ups, err := s.opts.Store.ObserveUploads(ctx, s.opts.OwnerID, s.opts.SessionID)
	if err != nil {
		cancel()
		return fmt.Errorf("observe uploads: %w", err)
	}
	as, err := s.opts.Store.ObserveAssets(ctx, s.opts.OwnerID)
	if err != nil {
		ups.Close()
		cancel()
		return fmt.Errorf("observe assets: %w", err)
	}

	s.started = true
	s.cancel = cancel

	s.loops.Add(2)
	go s.watchUploads(ctx, ups)
	go s.watchAssets(ctx, as)

	s.logger.Info(ctx, "upload service started")
	return nil
}

// Close stops the live queries and waits for running uploads to wind down.
// A closed service cannot be started again.
func (s *Service) Close() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.started = false
	s.closed = true
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.loops.Wait()
	s.runs.Wait()
	s.events.close()
}

// Subscribe returns the service's event stream and a function releasing it.
func (s *Service) Subscribe() (<-chan Event, func()) {
	return s.events.subscribe()
}

func (s *Service) watchUploads(ctx context.Context, sub *feed.Subscription[models.UploadRequest]) {
	defer s.loops.Done()
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ch, ok := <-sub.C():
			if !ok {
				return
			}
			s.onUploads(ctx, ch)
		}
	}
}

func (s *Service) onUploads(ctx context.Context, ch feed.Change[models.UploadRequest]) {
	if ch.Err != nil {
		s.storeFailure(ctx, "", ch.Err)
		return
	}

	// requests left initialized by an earlier session resume on start
	candidates := ch.Touched()
	if ch.Initial {
		candidates = ch.Results
	}

	for i := range candidates {
		r := candidates[i]
		if r.Status != models.StatusInitialized {
			continue
		}
		if !s.reserve(r.ID) {
			continue
		}
		s.runs.Add(1)
		go func(id string) {
			defer s.runs.Done()
			defer s.release(id)
			s.execute(ctx, id)
		}(r.ID)
	}
}

func (s *Service) watchAssets(ctx context.Context, sub *feed.Subscription[models.FinishedAsset]) {
	defer s.loops.Done()
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ch, ok := <-sub.C():
			if !ok {
				return
			}
			if ch.Err != nil {
				s.storeFailure(ctx, "", ch.Err)
				continue
			}
			s.mu.Lock()
			s.assets = append(s.assets[:0:0], ch.Results...)
			s.mu.Unlock()
			s.events.emit(Event{Kind: EventAssetsChanged})
		}
	}
}

// reserve marks id as running. It fails when id is running or already
// settled by this service.
func (s *Service) reserve(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.active[id]; busy {
		return false
	}
	if _, done := s.settled[id]; done {
		return false
	}
	s.active[id] = struct{}{}
	return true
}

func (s *Service) release(id string) {
	s.mu.Lock()
	delete(s.active, id)
	s.mu.Unlock()
}

// execute re-reads the request so a stale notification cannot start a run
// for a row another writer already moved on.
func (s *Service) execute(ctx context.Context, id string) {
	req, err := s.opts.Store.GetUpload(ctx, id)
	if err != nil {
		s.storeFailure(ctx, id, err)
		return
	}
	if req.Status != models.StatusInitialized {
		s.logger.Debug(ctx, "skipping request", "id", id, "status", req.Status)
		return
	}
	_ = s.run(ctx, req)
}

// Process runs one initialized request on the calling goroutine and returns
// the run's error.
func (s *Service) Process(ctx context.Context, req *models.UploadRequest) error {
	if req.Status != models.StatusInitialized {
		return fmt.Errorf("%w: %s is %s", common.ErrNotInitialized, req.ID, req.Status)
	}
	if !s.reserve(req.ID) {
		return fmt.Errorf("%w: %s", common.ErrAlreadyRunning, req.ID)
	}
	defer s.release(req.ID)

	return s.run(ctx, req.Clone())
}

func (s *Service) run(ctx context.Context, req *models.UploadRequest) error {
	s.opts.Metrics.Started()
	s.track(Event{Kind: EventStarted, RequestID: req.ID, State: StateIdle, Task: req.FileName()})
	s.logger.Info(ctx, "upload started", "id", req.ID, "source", req.Source, "type", req.ContentType)

	plan, err := BuildPlan(req)
	if err != nil {
		s.fail(ctx, req, err)
		return err
	}

	m := &machine{
		req:         req,
		plan:        plan,
		source:      s.opts.Source,
		deriver:     s.opts.Deriver,
		transfer:    s.opts.Transfer,
		stepTimeout: s.opts.StepTimeout,
		metrics:     s.opts.Metrics,
		logger:      s.logger,
		emit:        s.track,
	}

	out, err := m.run(ctx)
	if err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled) {
		s.interrupted(ctx, req, err)
		return err
	}
	if err != nil {
		s.fail(ctx, req, err)
		return err
	}

	s.succeed(ctx, req, out)
	return nil
}

func (s *Service) succeed(ctx context.Context, req *models.UploadRequest, out *Outcome) {
	// the terminal status is recorded even when the run context was cancelled
	wctx := context.WithoutCancel(ctx)

	updated, err := s.opts.Store.WriteUpload(wctx, req.ID, func(r *models.UploadRequest) error {
		r.Status = models.StatusUploaded
		r.Note = ""
		return nil
	})
	if err != nil {
		s.storeFailure(ctx, req.ID, err)
		updated = req.Clone()
		updated.Status = models.StatusUploaded
	}

	s.mu.Lock()
	s.settled[req.ID] = struct{}{}
	s.finished = append(s.finished, *updated)
	s.urls = append(s.urls, out.ReadURLs...)
	s.mu.Unlock()

	if s.opts.DeriveAssets {
		if err := s.opts.Store.InsertAsset(wctx, models.AssetFromUpload(updated, s.now())); err != nil {
			s.storeFailure(ctx, req.ID, err)
		}
	}

	s.opts.Metrics.Succeeded()
	s.track(Event{Kind: EventSucceeded, RequestID: req.ID, State: StateSucceeded, Percent: 100, Task: req.FileName()})
	s.logger.Info(ctx, "upload finished", "id", req.ID, "variants", len(out.Variants), "bytes", out.Bytes)

	s.advanceQueue(wctx, req.ID, true)
}

func (s *Service) fail(ctx context.Context, req *models.UploadRequest, cause error) {
	wctx := context.WithoutCancel(ctx)
	note := fmt.Sprintf("upload of %s failed: %v", req.Source, cause)

	_, err := s.opts.Store.WriteUpload(wctx, req.ID, func(r *models.UploadRequest) error {
		r.Status = models.StatusError
		r.Note = note
		return nil
	})
	if err != nil {
		s.storeFailure(ctx, req.ID, err)
	}

	s.mu.Lock()
	s.settled[req.ID] = struct{}{}
	s.mu.Unlock()

	s.opts.Metrics.Failed(failureReason(cause))
	s.track(Event{Kind: EventFailed, RequestID: req.ID, State: StateFailed, Note: note, Err: cause, Task: req.FileName()})
	s.logger.Error(ctx, "upload failed", "id", req.ID, "source", req.Source, "error", cause)

	s.advanceQueue(wctx, req.ID, false)
}

// interrupted leaves the request initialized so the next Start resumes it.
func (s *Service) interrupted(ctx context.Context, req *models.UploadRequest, cause error) {
	s.mu.Lock()
	p := s.progress[req.ID]
	p.Active = false
	s.progress[req.ID] = p
	s.mu.Unlock()

	s.opts.Metrics.Failed(failureReason(cause))
	s.events.emit(Event{Kind: EventFailed, RequestID: req.ID, State: StateFailed, Err: cause, Task: req.FileName()})
	s.logger.Warn(ctx, "upload interrupted", "id", req.ID, "source", req.Source)
}

// storeFailure reports a store error. It never stops the service.
func (s *Service) storeFailure(ctx context.Context, id string, err error) {
	if !errors.Is(err, common.ErrStoreUnavailable) {
		err = fmt.Errorf("%w: %w", common.ErrStoreUnavailable, err)
	}
	s.opts.Metrics.StoreError()
	s.logger.Error(ctx, "store operation failed", "id", id, "error", err)
	s.events.emit(Event{Kind: EventStoreError, RequestID: id, Err: err})
}

// track folds run events into the progress table and forwards them.
func (s *Service) track(ev Event) {
	if ev.At.IsZero() {
		ev.At = s.now()
	}

	s.mu.Lock()
	p := s.progress[ev.RequestID]
	p.RequestID = ev.RequestID
	p.UpdatedAt = ev.At
	if ev.Task != "" {
		p.Task = ev.Task
	}
	switch ev.Kind {
	case EventStarted:
		p = Progress{RequestID: ev.RequestID, Task: ev.Task, State: StateIdle, Active: true, UpdatedAt: ev.At}
	case EventState:
		p.State = ev.State
		p.Variant = ev.Variant
	case EventProgress:
		if ev.Percent > p.Percent {
			p.Percent = ev.Percent
		}
	case EventSucceeded:
		p.State = StateSucceeded
		p.Percent = 100
		p.Active = false
	case EventFailed:
		p.State = StateFailed
		p.Active = false
	}
	s.progress[ev.RequestID] = p
	s.lastID = ev.RequestID
	s.mu.Unlock()

	s.events.emit(ev)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, common.ErrMissingDestination):
		return "missing_destination"
	case errors.Is(err, common.ErrSourceUnavailable):
		return "source_unavailable"
	case errors.Is(err, common.ErrDecodeFailed), errors.Is(err, common.ErrInvalidSource):
		return "decode"
	case errors.Is(err, common.ErrTransferFailed):
		return "transfer"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "other"
	}
}

// Progress returns the most recently updated request's progress.
func (s *Service) Progress() (Progress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastID == "" {
		return Progress{}, false
	}
	p, ok := s.progress[s.lastID]
	return p, ok
}

func (s *Service) ProgressOf(id string) (Progress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.progress[id]
	return p, ok
}

// Finished lists the requests uploaded by this service since the last Reset.
func (s *Service) Finished() []models.UploadRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.UploadRequest(nil), s.finished...)
}

// UploadedURLs lists read URLs of every uploaded variant since the last Reset.
func (s *Service) UploadedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.urls...)
}

// Assets is the latest snapshot of the owner's finished assets.
func (s *Service) Assets() []models.FinishedAsset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.FinishedAsset(nil), s.assets...)
}

// Active reports whether any run is in progress.
func (s *Service) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active) > 0
}

// Reset clears in-memory telemetry and the sequential queue. Stored
// requests are left as they are.
func (s *Service) Reset() {
	s.mu.Lock()
	s.progress = map[string]Progress{}
	s.lastID = ""
	s.finished = nil
	s.urls = nil
	s.mu.Unlock()

	s.qmu.Lock()
	if s.queue != nil {
		s.queue.Reset()
		s.queue = nil
	}
	s.qmu.Unlock()

	s.events.emit(Event{Kind: EventReset})
}
