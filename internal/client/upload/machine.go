package upload

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/dmitrijs2005/assetsync/internal/client/metrics"
	"github.com/dmitrijs2005/assetsync/internal/client/models"
	"github.com/dmitrijs2005/assetsync/internal/logging"
)

// Outcome collects what a run produced, including partial results of a
// failed run.
type Outcome struct {
	Variants []models.Variant
	ReadURLs []string
	Bytes    int64
}

// machine executes one plan. It is single-use: Idle -> (Deriving ->
// Transferring)* -> Succeeded | Failed.
type machine struct {
	req         *models.UploadRequest
	plan        *Plan
	source      Source
	deriver     Deriver
	transfer    Transferrer
	stepTimeout time.Duration
	metrics     *metrics.Metrics
	logger      logging.Logger
	emit        func(Event)

	mu      sync.Mutex
	state   State
	variant models.Variant
	percent float64
	// reported is set once the first progress value went out
	reported bool

	// decoded inputs are shared by the steps of one run
	image image.Image
	frame image.Image
	raw   []byte
}

func (m *machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *machine) Percent() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.percent
}

func (m *machine) run(ctx context.Context) (*Outcome, error) {
	out := &Outcome{}

	for _, st := range m.plan.Steps {
		if err := m.step(ctx, st, out); err != nil {
			m.setState(StateFailed, st.Variant)
			return out, err
		}
	}

	m.setState(StateSucceeded, "")
	m.advance(100)
	return out, nil
}

func (m *machine) step(ctx context.Context, st Step, out *Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if m.stepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.stepTimeout)
		defer cancel()
	}

	started := time.Now()

	m.setState(StateDeriving, st.Variant)
	m.advance(st.Band.From)

	body, err := m.body(ctx, st)
	if err != nil {
		return fmt.Errorf("derive %s: %w", st.Variant, err)
	}

	m.setState(StateTransferring, st.Variant)

	progress := func(sent, total int64) {
		ratio := 1.0
		if total > 0 {
			ratio = float64(sent) / float64(total)
		}
		m.advance(st.Band.At(ratio))
	}
	if err := m.transfer.PutBytes(ctx, body, st.WriteURL, st.ContentType, progress); err != nil {
		return fmt.Errorf("upload %s: %w", st.Variant, err)
	}
	m.advance(st.Band.To)

	m.metrics.Step(string(st.Variant), len(body), time.Since(started))
	m.logger.Debug(ctx, "variant uploaded", "id", m.req.ID, "variant", st.Variant, "bytes", len(body))

	out.Variants = append(out.Variants, st.Variant)
	if st.ReadURL != "" {
		out.ReadURLs = append(out.ReadURLs, st.ReadURL)
	}
	out.Bytes += int64(len(body))
	return nil
}

func (m *machine) body(ctx context.Context, st Step) ([]byte, error) {
	var (
		img image.Image
		err error
	)

	switch st.Input {
	case InputRaw:
		if m.raw == nil {
			if m.raw, err = m.source.Bytes(ctx, m.req.Source); err != nil {
				return nil, err
			}
		}
		return m.raw, nil
	case InputImage:
		if m.image == nil {
			if m.image, err = m.source.Image(ctx, m.req.Source); err != nil {
				return nil, err
			}
		}
		img = m.image
	case InputFrame:
		if m.frame == nil {
			if m.frame, err = m.source.Frame(ctx, m.req.Source); err != nil {
				return nil, err
			}
		}
		img = m.frame
	default:
		return nil, fmt.Errorf("unknown input %d", st.Input)
	}

	if st.Edge > 0 {
		if img, err = m.deriver.DeriveVariant(img, st.Edge); err != nil {
			return nil, err
		}
	}
	return m.deriver.Encode(img, st.ContentType)
}

func (m *machine) setState(s State, v models.Variant) {
	m.mu.Lock()
	m.state = s
	m.variant = v
	m.mu.Unlock()

	m.emit(Event{Kind: EventState, RequestID: m.req.ID, Variant: v, State: s, Task: taskName(v, m.req)})
}

// advance moves progress forward; lower values are ignored so late
// callbacks from an earlier step cannot move it back.
func (m *machine) advance(p float64) {
	p = min(max(p, 0), 100)

	m.mu.Lock()
	if m.reported && p <= m.percent {
		m.mu.Unlock()
		return
	}
	m.percent = p
	m.reported = true
	v := m.variant
	m.mu.Unlock()

	m.emit(Event{Kind: EventProgress, RequestID: m.req.ID, Variant: v, Percent: p, Task: taskName(v, m.req)})
}

func taskName(v models.Variant, req *models.UploadRequest) string {
	if v == "" {
		return req.FileName()
	}
	return string(v) + "-" + req.FileName()
}
