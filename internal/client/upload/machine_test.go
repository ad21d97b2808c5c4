package upload

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/assetsync/internal/client/models"
	"github.com/dmitrijs2005/assetsync/internal/common"
	"github.com/dmitrijs2005/assetsync/internal/logging"
	"github.com/dmitrijs2005/assetsync/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) add(ev Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) percents() []float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []float64
	for _, ev := range l.events {
		if ev.Kind == EventProgress {
			out = append(out, ev.Percent)
		}
	}
	return out
}

func newMachine(t *testing.T, req *models.UploadRequest, src Source, tr Transferrer, log *eventLog) *machine {
	t.Helper()
	plan, err := BuildPlan(req)
	require.NoError(t, err)
	return &machine{
		req:      req,
		plan:     plan,
		source:   src,
		deriver:  media.NewDeriver(),
		transfer: tr,
		logger:   logging.Discard(),
		emit:     log.add,
	}
}

func TestMachine_ImageSucceeds(t *testing.T) {
	tr := &fakeTransfer{}
	src := &fakeSource{}
	log := &eventLog{}
	m := newMachine(t, imageRequest("a"), src, tr, log)

	out, err := m.run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateSucceeded, m.State())
	assert.Equal(t, 100.0, m.Percent())
	assert.Equal(t, imageVariants, out.Variants)
	assert.Equal(t, []string{
		"https://cdn/a/original", "https://cdn/a/small", "https://cdn/a/medium", "https://cdn/a/large",
	}, out.ReadURLs)
	assert.Equal(t, []string{
		"http://dest/a/original", "http://dest/a/small", "http://dest/a/medium", "http://dest/a/large",
	}, tr.urls())
	assert.Equal(t, 1, src.reads, "the source image is decoded once per run")

	ps := log.percents()
	require.NotEmpty(t, ps)
	for i := 1; i < len(ps); i++ {
		assert.GreaterOrEqual(t, ps[i], ps[i-1])
	}
	assert.Equal(t, 100.0, ps[len(ps)-1])
}

func TestMachine_FailureAbortsRemainingSteps(t *testing.T) {
	tr := &fakeTransfer{failOn: map[string]error{"/medium": transferError(500)}}
	m := newMachine(t, imageRequest("a"), &fakeSource{}, tr, &eventLog{})

	out, err := m.run(context.Background())
	require.ErrorIs(t, err, common.ErrTransferFailed)
	assert.Contains(t, err.Error(), "upload medium")

	assert.Equal(t, StateFailed, m.State())
	assert.Equal(t, []models.Variant{models.VariantOriginal, models.VariantSmall}, out.Variants)
	assert.Equal(t, []string{"http://dest/a/original", "http://dest/a/small", "http://dest/a/medium"}, tr.urls())
	assert.Less(t, m.Percent(), 100.0)
}

func TestMachine_DecodeFailure(t *testing.T) {
	src := &fakeSource{imageEr: common.ErrDecodeFailed}
	tr := &fakeTransfer{}
	m := newMachine(t, imageRequest("a"), src, tr, &eventLog{})

	_, err := m.run(context.Background())
	require.ErrorIs(t, err, common.ErrDecodeFailed)
	assert.Empty(t, tr.urls())
}

func TestMachine_VideoUploadsRawOriginal(t *testing.T) {
	req := &models.UploadRequest{ID: "v", Source: "/clips/v.mp4", ContentType: "video/mp4", Destinations: manifest("v", videoVariants...)}
	tr := &fakeTransfer{}
	m := newMachine(t, req, &fakeSource{}, tr, &eventLog{})

	_, err := m.run(context.Background())
	require.NoError(t, err)

	require.Len(t, tr.calls, 5)
	assert.Equal(t, putCall{URL: "http://dest/v/original", ContentType: "video/mp4", Size: len("raw:/clips/v.mp4")}, tr.calls[0])
	for _, c := range tr.calls[1:] {
		assert.Equal(t, "image/png", c.ContentType)
	}
}

func TestMachine_StepTimeout(t *testing.T) {
	tr := &fakeTransfer{block: make(chan struct{})}
	m := newMachine(t, imageRequest("a"), &fakeSource{}, tr, &eventLog{})
	m.stepTimeout = 20 * time.Millisecond

	_, err := m.run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, StateFailed, m.State())
}

func TestMachine_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := &fakeTransfer{}
	m := newMachine(t, imageRequest("a"), &fakeSource{}, tr, &eventLog{})

	_, err := m.run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, tr.urls())
}

func TestMachine_AdvanceIgnoresLowerValues(t *testing.T) {
	log := &eventLog{}
	m := &machine{req: imageRequest("a"), emit: log.add}

	m.advance(0)
	m.advance(40)
	m.advance(30)
	m.advance(150)

	assert.Equal(t, []float64{0, 40, 100}, log.percents())
}
