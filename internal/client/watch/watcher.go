// Package watch turns files dropped into a directory into upload candidates.
// A file is handed over once it has not changed for the settle period.
package watch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/assetsync/internal/filex"
	"github.com/dmitrijs2005/assetsync/internal/logging"
	"github.com/fsnotify/fsnotify"
)

const DefaultSettle = 2 * time.Second

// Handler receives the path of a settled file.
type Handler func(ctx context.Context, path string)

type Watcher struct {
	dir    string
	settle time.Duration
	handle Handler
	logger logging.Logger
	fs     *fsnotify.Watcher

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
	wg     sync.WaitGroup
}

func New(dir string, settle time.Duration, handle Handler, logger logging.Logger) (*Watcher, error) {
	if settle <= 0 {
		settle = DefaultSettle
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	return &Watcher{
		dir:    dir,
		settle: settle,
		handle: handle,
		logger: logger.With("dir", dir),
		fs:     fw,
		timers: map[string]*time.Timer{},
	}, nil
}

// Run delivers settled files until ctx ends. It waits for running handlers
// before returning.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.shutdown()

	w.logger.Info(ctx, "watching directory")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.onEvent(ctx, ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Error(ctx, "watcher error", "error", err)
		}
	}
}

func (w *Watcher) onEvent(ctx context.Context, ev fsnotify.Event) {
	if filex.Hidden(ev.Name) {
		return
	}

	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		w.logger.Debug(ctx, "file changed", "path", ev.Name, "op", ev.Op.String())
		w.startOrResetTimer(ctx, ev.Name)
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.stopTimer(ev.Name)
	}
}

func (w *Watcher) startOrResetTimer(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.timers, path)
		if w.closed {
			w.mu.Unlock()
			return
		}
		w.wg.Add(1)
		w.mu.Unlock()

		defer w.wg.Done()
		w.fire(ctx, path)
	})
}

func (w *Watcher) stopTimer(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Stop()
		delete(w.timers, path)
	}
}

func (w *Watcher) fire(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	info, err := filex.RegularFile(path)
	if err != nil {
		w.logger.Debug(ctx, "skipping path", "path", path, "error", err)
		return
	}
	if info.Size() == 0 {
		w.logger.Debug(ctx, "skipping empty file", "path", path)
		return
	}

	w.logger.Info(ctx, "file settled", "path", path, "size", info.Size())
	w.handle(ctx, path)
}

func (w *Watcher) shutdown() {
	w.mu.Lock()
	w.closed = true
	for p, t := range w.timers {
		t.Stop()
		delete(w.timers, p)
	}
	w.mu.Unlock()

	_ = w.fs.Close()
	w.wg.Wait()
}
