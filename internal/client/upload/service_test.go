package upload

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/dmitrijs2005/assetsync/internal/client/models"
	"github.com/dmitrijs2005/assetsync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 3 * time.Second
	tick    = 5 * time.Millisecond
)

func (f *fixture) waitStatus(t *testing.T, id string, want models.UploadStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		r, err := f.store.GetUpload(context.Background(), id)
		return err == nil && r.Status == want
	}, waitFor, tick, "request %s never reached %s", id, want)
}

// progressUntilDone collects the overall percentages reported for id until
// its run succeeds.
func progressUntilDone(t *testing.T, events <-chan Event, id string) []float64 {
	t.Helper()
	deadline := time.After(waitFor)
	var out []float64
	for {
		select {
		case ev := <-events:
			if ev.RequestID != id {
				continue
			}
			switch ev.Kind {
			case EventProgress:
				out = append(out, ev.Percent)
			case EventSucceeded:
				return out
			case EventFailed:
				t.Fatalf("%s failed: %s", id, ev.Note)
			}
		case <-deadline:
			t.Fatalf("%s never succeeded, progress so far %v", id, out)
		}
	}
}

// waitEvent returns the next event of the given kind.
func waitEvent(t *testing.T, events <-chan Event, kind EventKind) Event {
	t.Helper()
	deadline := time.After(waitFor)
	for {
		select {
		case ev := <-events:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event", kind)
			return Event{}
		}
	}
}

// assertPassesThrough checks that got is non-decreasing, ends at 100 and
// contains every checkpoint in order.
func assertPassesThrough(t *testing.T, got []float64, checkpoints ...float64) {
	t.Helper()
	require.NotEmpty(t, got)
	for i := 1; i < len(got); i++ {
		require.GreaterOrEqual(t, got[i], got[i-1], "progress went back: %v", got)
	}
	assert.Equal(t, 100.0, got[len(got)-1])

	next := 0
	for _, p := range got {
		if next < len(checkpoints) && math.Abs(p-checkpoints[next]) < 1e-9 {
			next++
		}
	}
	assert.Equal(t, len(checkpoints), next, "missing checkpoint %v in %v", checkpoints[min(next, len(checkpoints)-1)], got)
}

func TestService_ImageProgressPath(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	events, stop := f.svc.Subscribe()
	defer stop()
	require.NoError(t, f.svc.Start(ctx))

	require.NoError(t, f.store.InsertUpload(ctx, imageRequest("a")))
	got := progressUntilDone(t, events, "a")

	assertPassesThrough(t, got, 0, 50, 60, 65, 95, 100)
	assert.Equal(t, []string{
		"http://dest/a/original", "http://dest/a/small", "http://dest/a/medium", "http://dest/a/large",
	}, f.transfer.urls())
}

func TestService_VideoNoCutsProgressPath(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	events, stop := f.svc.Subscribe()
	defer stop()
	require.NoError(t, f.svc.Start(ctx))

	req := imageRequest("v")
	req.Source = "/clips/v.mp4"
	req.FilePath = "album/v.mp4"
	req.ContentType = "video/mp4"
	req.NoCuts = true
	req.Destinations = manifest("v", models.VariantOriginal, models.VariantVideoPreview)
	require.NoError(t, f.store.InsertUpload(ctx, req))
	got := progressUntilDone(t, events, "v")

	assertPassesThrough(t, got, 0, 85, 100)
	assert.Equal(t, []string{"http://dest/v/original", "http://dest/v/videoPreview"}, f.transfer.urls())
}

func TestService_UploadsInitializedRequest(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.svc.Start(ctx))

	require.NoError(t, f.store.InsertUpload(ctx, imageRequest("a")))
	f.waitStatus(t, "a", models.StatusUploaded)

	require.Eventually(t, func() bool { return len(f.svc.Finished()) == 1 && !f.svc.Active() }, waitFor, tick)
	assert.Equal(t, []string{
		"https://cdn/a/original", "https://cdn/a/small", "https://cdn/a/medium", "https://cdn/a/large",
	}, f.svc.UploadedURLs())

	p, ok := f.svc.ProgressOf("a")
	require.True(t, ok)
	assert.Equal(t, 100.0, p.Percent)
	assert.Equal(t, StateSucceeded, p.State)
	assert.False(t, p.Active)
}

func TestService_FailureRecordsNote(t *testing.T) {
	f := newFixture(t, nil)
	f.transfer.failOn["/small"] = transferError(403)
	ctx := context.Background()
	require.NoError(t, f.svc.Start(ctx))

	require.NoError(t, f.store.InsertUpload(ctx, imageRequest("a")))
	f.waitStatus(t, "a", models.StatusError)

	r, err := f.store.GetUpload(ctx, "a")
	require.NoError(t, err)
	assert.Contains(t, r.Note, "upload of /photos/a.jpg failed:")
	assert.Contains(t, r.Note, "status 403")
	assert.Empty(t, f.svc.Finished())
}

func TestService_MissingDestinationFailsBeforeTransfer(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	req := imageRequest("a")
	delete(req.Destinations, models.VariantLarge)
	require.NoError(t, f.store.InsertUpload(ctx, req))

	err := f.svc.Process(ctx, req)
	require.ErrorIs(t, err, common.ErrMissingDestination)
	assert.Equal(t, models.StatusError, f.status(t, "a"))
	assert.Empty(t, f.transfer.urls())
}

func TestService_WaitsForInitialized(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.svc.Start(ctx))

	req := imageRequest("a")
	req.Status = models.StatusPending
	req.Destinations = nil
	require.NoError(t, f.store.InsertUpload(ctx, req))

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, f.transfer.urls())

	_, err := f.store.WriteUpload(ctx, "a", func(r *models.UploadRequest) error {
		r.Status = models.StatusInitialized
		r.Destinations = manifest("a", imageVariants...)
		return nil
	})
	require.NoError(t, err)
	f.waitStatus(t, "a", models.StatusUploaded)
}

func TestService_SettledRequestIsNotRerun(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.svc.Start(ctx))

	require.NoError(t, f.store.InsertUpload(ctx, imageRequest("a")))
	f.waitStatus(t, "a", models.StatusUploaded)
	require.Eventually(t, func() bool { return !f.svc.Active() }, waitFor, tick)
	calls := len(f.transfer.urls())

	_, err := f.store.WriteUpload(ctx, "a", func(r *models.UploadRequest) error {
		r.Caption = "edited"
		return nil
	})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, f.transfer.urls(), calls)

	err = f.svc.Process(ctx, imageRequest("a"))
	require.ErrorIs(t, err, common.ErrAlreadyRunning)
}

func TestService_ProcessGuards(t *testing.T) {
	f := newFixture(t, nil)
	f.transfer.block = make(chan struct{})
	ctx := context.Background()

	req := imageRequest("a")
	require.NoError(t, f.store.InsertUpload(ctx, req))

	done := make(chan error, 1)
	go func() { done <- f.svc.Process(ctx, req) }()
	require.Eventually(t, f.svc.Active, waitFor, tick)

	err := f.svc.Process(ctx, req)
	require.ErrorIs(t, err, common.ErrAlreadyRunning)

	close(f.transfer.block)
	require.NoError(t, <-done)

	pending := imageRequest("b")
	pending.Status = models.StatusPending
	require.ErrorIs(t, f.svc.Process(ctx, pending), common.ErrNotInitialized)
}

func TestService_StoreWriteFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	events, stop := f.svc.Subscribe()
	defer stop()

	// never stored, so the final status write fails
	req := imageRequest("ghost")
	require.NoError(t, f.svc.Process(ctx, req))

	var storeErr error
	require.Eventually(t, func() bool {
		for {
			select {
			case ev := <-events:
				if ev.Kind == EventStoreError {
					storeErr = ev.Err
					return true
				}
			default:
				return false
			}
		}
	}, waitFor, tick)
	require.ErrorIs(t, storeErr, common.ErrStoreUnavailable)

	finished := f.svc.Finished()
	require.Len(t, finished, 1)
	assert.Equal(t, models.StatusUploaded, finished[0].Status)
}

func TestService_ResumesInitializedOnStart(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.store.InsertUpload(ctx, imageRequest("a")))

	require.NoError(t, f.svc.Start(ctx))
	f.waitStatus(t, "a", models.StatusUploaded)
}

func TestService_IgnoresOtherSessions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.svc.Start(ctx))

	other := imageRequest("a")
	other.SessionID = "sess-2"
	require.NoError(t, f.store.InsertUpload(ctx, other))

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, f.transfer.urls())
	assert.Equal(t, models.StatusInitialized, f.status(t, "a"))
}

func TestService_SequentialQueue(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.svc.Start(ctx))

	reqs := []*models.UploadRequest{imageRequest("a"), imageRequest("b"), imageRequest("c")}
	require.NoError(t, f.svc.EnqueueSequential(ctx, reqs))

	for _, r := range reqs {
		f.waitStatus(t, r.ID, models.StatusUploaded)
	}
	assert.Equal(t, 1, f.transfer.peak())
	assert.Zero(t, f.svc.QueuePending())

	var order []string
	seen := map[string]bool{}
	for _, u := range f.transfer.urls() {
		id := u[len("http://dest/") : len("http://dest/")+1]
		if !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestService_QueueStopsAfterFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.transfer.failOn["/a/"] = transferError(500)
	ctx := context.Background()
	events, stop := f.svc.Subscribe()
	defer stop()
	require.NoError(t, f.svc.Start(ctx))

	require.NoError(t, f.svc.EnqueueSequential(ctx, []*models.UploadRequest{imageRequest("a"), imageRequest("b")}))
	f.waitStatus(t, "a", models.StatusError)

	ev := waitEvent(t, events, EventQueueStalled)
	assert.Equal(t, "a", ev.RequestID)
	assert.Contains(t, ev.Note, "1 queued upload(s)")

	time.Sleep(50 * time.Millisecond)
	_, err := f.store.GetUpload(ctx, "b")
	require.ErrorIs(t, err, common.ErrorNotFound)
	assert.Equal(t, 1, f.svc.QueuePending())
	require.NotNil(t, f.svc.QueueStalled())
	assert.Equal(t, "a", f.svc.QueueStalled().ID)

	// appending behind the failed item is reported, not silent
	require.NoError(t, f.svc.EnqueueSequential(ctx, []*models.UploadRequest{imageRequest("c")}))
	ev = waitEvent(t, events, EventQueueStalled)
	assert.Contains(t, ev.Note, "2 queued upload(s)")

	f.svc.Reset()
	assert.Nil(t, f.svc.QueueStalled())
}

func TestService_QueueAdvanceOnError(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.AdvanceOnError = true })
	f.transfer.failOn["/a/"] = transferError(500)
	ctx := context.Background()
	require.NoError(t, f.svc.Start(ctx))

	require.NoError(t, f.svc.EnqueueSequential(ctx, []*models.UploadRequest{imageRequest("a"), imageRequest("b")}))
	f.waitStatus(t, "a", models.StatusError)
	f.waitStatus(t, "b", models.StatusUploaded)
}

func TestService_DeriveAssets(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.DeriveAssets = true })
	ctx := context.Background()
	require.NoError(t, f.svc.Start(ctx))

	require.NoError(t, f.store.InsertUpload(ctx, imageRequest("a")))
	require.Eventually(t, func() bool { return len(f.svc.Assets()) == 1 }, waitFor, tick)

	a := f.svc.Assets()[0]
	assert.Equal(t, "a", a.ID)
	assert.Equal(t, "album/a.jpg", a.Path)
	assert.Equal(t, "https://cdn/a/small", a.URLs[models.VariantSmall])
}

func TestService_ResetKeepsStoredRows(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.svc.Start(ctx))

	require.NoError(t, f.store.InsertUpload(ctx, imageRequest("a")))
	f.waitStatus(t, "a", models.StatusUploaded)
	require.Eventually(t, func() bool { return len(f.svc.Finished()) == 1 && !f.svc.Active() }, waitFor, tick)

	f.svc.Reset()

	assert.Empty(t, f.svc.Finished())
	assert.Empty(t, f.svc.UploadedURLs())
	_, ok := f.svc.Progress()
	assert.False(t, ok)
	assert.Equal(t, models.StatusUploaded, f.status(t, "a"))
}

func TestService_StartTwice(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.svc.Start(ctx))
	require.ErrorIs(t, f.svc.Start(ctx), common.ErrAlreadyRunning)

	f.svc.Close()
	require.ErrorIs(t, f.svc.Start(ctx), ErrClosed)
}

func TestService_CloseLeavesInterruptedRunInitialized(t *testing.T) {
	f := newFixture(t, nil)
	f.transfer.block = make(chan struct{})
	ctx := context.Background()
	require.NoError(t, f.svc.Start(ctx))

	require.NoError(t, f.store.InsertUpload(ctx, imageRequest("a")))
	require.Eventually(t, func() bool { return len(f.transfer.urls()) > 0 }, waitFor, tick)

	f.svc.Close()
	assert.Equal(t, models.StatusInitialized, f.status(t, "a"))
}

func TestNewService_RequiresDependencies(t *testing.T) {
	_, err := NewService(Options{})
	require.Error(t, err)
}

func TestFailureReason(t *testing.T) {
	assert.Equal(t, "transfer", failureReason(transferError(500)))
	assert.Equal(t, "missing_destination", failureReason(common.ErrMissingDestination))
	assert.Equal(t, "decode", failureReason(common.ErrDecodeFailed))
	assert.Equal(t, "cancelled", failureReason(context.Canceled))
	assert.Equal(t, "other", failureReason(errors.New("x")))
}
