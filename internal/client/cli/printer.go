package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dmitrijs2005/assetsync/internal/client/upload"
	"golang.org/x/term"
)

// isTerminal is a test seam for terminal detection.
var isTerminal = func(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// progressStep is how far a request must advance before a new progress line
// is written to a non-terminal.
const progressStep = 25.0

// printer renders service events. On a terminal progress is redrawn in place;
// elsewhere it is written as occasional lines.
type printer struct {
	out io.Writer
	tty bool

	mu     sync.Mutex
	inline bool
	last   map[string]float64
}

func newPrinter(out io.Writer, tty bool) *printer {
	return &printer{out: out, tty: tty, last: map[string]float64{}}
}

func (p *printer) handle(ev upload.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Kind {
	case upload.EventProgress:
		if p.tty {
			fmt.Fprintf(p.out, "\r\033[K%s %5.1f%%", ev.Task, ev.Percent)
			p.inline = true
			return
		}
		last, seen := p.last[ev.RequestID]
		if seen && ev.Percent < last+progressStep {
			return
		}
		p.last[ev.RequestID] = ev.Percent
		p.line("%s %.0f%%", ev.Task, ev.Percent)

	case upload.EventStarted:
		p.line("started %s", ev.Task)

	case upload.EventSucceeded:
		delete(p.last, ev.RequestID)
		p.line("uploaded %s", ev.Task)

	case upload.EventFailed:
		delete(p.last, ev.RequestID)
		switch {
		case ev.Note != "":
			p.line("%s", ev.Note)
		case ev.Err != nil:
			p.line("upload of %s stopped: %v", ev.Task, ev.Err)
		default:
			p.line("upload of %s failed", ev.Task)
		}

	case upload.EventReleased:
		p.line("released %s from the queue", ev.Task)

	case upload.EventStoreError:
		p.line("store error: %v", ev.Err)

	case upload.EventQueueStalled:
		p.line("queue stalled: %s", ev.Note)
	}
}

// line writes one message, first ending an in-place progress line.
func (p *printer) line(format string, args ...any) {
	if p.inline {
		fmt.Fprintln(p.out)
		p.inline = false
	}
	fmt.Fprintf(p.out, format+"\n", args...)
}

func (a *App) printEvents(ctx context.Context) {
	ch, stop := a.service.Subscribe()
	defer stop()

	p := newPrinter(a.out, isTerminal(a.out))
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			p.handle(ev)
		}
	}
}
