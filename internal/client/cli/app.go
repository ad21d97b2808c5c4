package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/assetsync/internal/client/client"
	"github.com/dmitrijs2005/assetsync/internal/client/config"
	"github.com/dmitrijs2005/assetsync/internal/client/issuer"
	"github.com/dmitrijs2005/assetsync/internal/client/metrics"
	"github.com/dmitrijs2005/assetsync/internal/client/models"
	"github.com/dmitrijs2005/assetsync/internal/client/repositories/uploads"
	"github.com/dmitrijs2005/assetsync/internal/client/store"
	"github.com/dmitrijs2005/assetsync/internal/client/upload"
	"github.com/dmitrijs2005/assetsync/internal/filex"
	"github.com/dmitrijs2005/assetsync/internal/logging"
	"github.com/dmitrijs2005/assetsync/internal/media"
	"github.com/dmitrijs2005/assetsync/internal/netx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// pipeline is the part of upload.Service the commands use.
type pipeline interface {
	Start(ctx context.Context) error
	Close()
	Subscribe() (<-chan upload.Event, func())
	CreateUploads(ctx context.Context, items []upload.NewUpload) ([]*models.UploadRequest, error)
	QueueUploads(ctx context.Context, items []upload.NewUpload) ([]*models.UploadRequest, error)
	RefreshAsset(ctx context.Context, id string) (*models.FinishedAsset, error)
	ProgressOf(id string) (upload.Progress, bool)
	Finished() []models.UploadRequest
	Assets() []models.FinishedAsset
	QueuePending() int
	QueueStalled() *models.UploadRequest
	Active() bool
	Reset()
}

// records lists what the local store holds.
type records interface {
	QueryUploads(ctx context.Context, f uploads.Filter) ([]*models.UploadRequest, error)
	Close() error
}

type pinger interface {
	Ping(ctx context.Context) error
	Close() error
}

type App struct {
	config  *config.Config
	logger  logging.Logger
	service pipeline
	store   records
	backend pinger
	metrics http.Handler

	out    io.Writer
	reader *bufio.Reader

	mu   sync.Mutex
	Mode Mode

	group *errgroup.Group
	gctx  context.Context
}

// NewApp opens the store and wires the upload pipeline described by c.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(c.LogLevel, os.Stderr)

	dsn, err := filex.EnsureParentDir(c.DatabasePath)
	if err != nil {
		logger.Error(ctx, "error preparing store directory", "path", c.DatabasePath, "err", err)
		return nil, err
	}

	st, err := store.Open(ctx, dsn, logger)
	if err != nil {
		logger.Error(ctx, "error opening store", "path", c.DatabasePath, "err", err)
		return nil, err
	}

	var frames media.FrameGrabber
	if ff, err := media.NewFFmpeg(c.FFmpegPath, c.FFprobePath); err != nil {
		logger.Warn(ctx, "video frames unavailable", "err", err)
	} else {
		frames = ff
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	backend, err := client.NewGRPCClient(c.ServerEndpointAddr, c.AccessToken)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("backend client: %w", err)
	}

	opts := upload.Options{
		OwnerID:        c.UserID,
		SessionID:      c.SessionID,
		Store:          st,
		Source:         media.NewLocalSource(frames),
		Deriver:        media.NewDeriver(media.WithJPEGQuality(c.JPEGQuality), media.WithDominantSwatch(c.DominantSwatch)),
		Transfer:       netx.NewClient(netx.WithRateLimit(c.MaxUploadRate)),
		Logger:         logger,
		Metrics:        m,
		Assets:         backend,
		StepTimeout:    c.StepTimeout,
		DeriveAssets:   c.DeriveAssets,
		AdvanceOnError: c.AdvanceOnError,
	}

	if c.S3.Bucket != "" {
		iss, err := issuer.NewS3Issuer(ctx, issuer.Config{
			Region:        c.S3.Region,
			AccessKey:     c.S3.AccessKey,
			SecretKey:     c.S3.SecretKey,
			BaseEndpoint:  c.S3.Endpoint,
			Bucket:        c.S3.Bucket,
			PublicBaseURL: c.S3.PublicBaseURL,
		})
		if err != nil {
			_ = backend.Close()
			_ = st.Close()
			return nil, err
		}
		opts.Issuer = iss
	}

	svc, err := upload.NewService(opts)
	if err != nil {
		_ = backend.Close()
		_ = st.Close()
		return nil, err
	}

	var handler http.Handler
	if c.MetricsAddr != "" {
		handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	return &App{
		config:  c,
		logger:  logger,
		service: svc,
		store:   st,
		backend: backend,
		metrics: handler,
		out:     os.Stdout,
		reader:  bufio.NewReader(os.Stdin),
		Mode:    ModeOffline,
	}, nil
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Mode != mode {
		a.Mode = mode
		a.logger.Info(context.Background(), "backend mode changed", "mode", mode)
	}
}

func (a *App) mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Mode
}

// Run starts the pipeline and blocks in the REPL until the user exits or ctx
// ends.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.close()

	if err := a.service.Start(ctx); err != nil {
		return err
	}

	a.group, a.gctx = errgroup.WithContext(ctx)

	a.group.Go(func() error {
		a.printEvents(a.gctx)
		return nil
	})
	a.group.Go(func() error {
		a.StartOnlineStatusWatcher(a.gctx, a.config.OnlineCheckInterval)
		return nil
	})
	if a.metrics != nil {
		a.group.Go(func() error {
			return a.serveMetrics(a.gctx, a.config.MetricsAddr)
		})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.Root(a.gctx)
	}()

	select {
	case <-done:
	case <-a.gctx.Done():
	}
	cancel()

	return a.group.Wait()
}

func (a *App) close() {
	a.service.Close()
	if a.backend != nil {
		_ = a.backend.Close()
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error(context.Background(), "error closing store", "err", err)
	}
}

func (a *App) serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	a.logger.Info(ctx, "serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// StartOnlineStatusWatcher pings the backend every interval and flips the
// mode shown in the prompt.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	if a.backend == nil || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := a.backend.Ping(pctx)
			cancel()

			if err != nil {
				a.setMode(ModeOffline)
			} else {
				a.setMode(ModeOnline)
			}

		case <-ctx.Done():
			return
		}
	}
}
