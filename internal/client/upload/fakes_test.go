package upload

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dmitrijs2005/assetsync/internal/client/models"
	"github.com/dmitrijs2005/assetsync/internal/client/store"
	"github.com/dmitrijs2005/assetsync/internal/common"
	"github.com/dmitrijs2005/assetsync/internal/logging"
	"github.com/dmitrijs2005/assetsync/internal/media"
	"github.com/dmitrijs2005/assetsync/internal/netx"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.Color) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

type fakeSource struct {
	mu      sync.Mutex
	img     image.Image
	probeEr error
	imageEr error
	reads   int
}

func (f *fakeSource) Probe(ctx context.Context, handle string) (*media.Info, error) {
	if f.probeEr != nil {
		return nil, f.probeEr
	}
	b := f.image().Bounds()
	return &media.Info{
		Handle:      handle,
		FileName:    filepath.Base(handle),
		ContentType: media.ContentType(handle),
		Size:        1234,
		Width:       b.Dx(),
		Height:      b.Dy(),
	}, nil
}

func (f *fakeSource) Image(ctx context.Context, handle string) (image.Image, error) {
	f.mu.Lock()
	f.reads++
	f.mu.Unlock()
	if f.imageEr != nil {
		return nil, f.imageEr
	}
	return f.image(), nil
}

func (f *fakeSource) Frame(ctx context.Context, handle string) (image.Image, error) {
	return f.Image(ctx, handle)
}

func (f *fakeSource) Bytes(ctx context.Context, handle string) ([]byte, error) {
	return []byte("raw:" + handle), nil
}

func (f *fakeSource) image() image.Image {
	if f.img == nil {
		return solid(40, 30, color.NRGBA{R: 255, A: 255})
	}
	return f.img
}

type putCall struct {
	URL         string
	ContentType string
	Size        int
}

type fakeTransfer struct {
	mu         sync.Mutex
	calls      []putCall
	failOn     map[string]error
	block      chan struct{}
	running    int
	maxRunning int
}

func (f *fakeTransfer) PutBytes(ctx context.Context, body []byte, url, contentType string, progress netx.ProgressFunc) error {
	f.mu.Lock()
	f.calls = append(f.calls, putCall{URL: url, ContentType: contentType, Size: len(body)})
	f.running++
	f.maxRunning = max(f.maxRunning, f.running)
	var failErr error
	for k, err := range f.failOn {
		if strings.Contains(url, k) {
			failErr = err
		}
	}
	block := f.block
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.running--
		f.mu.Unlock()
	}()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if failErr != nil {
		return failErr
	}

	total := int64(len(body))
	if progress != nil {
		progress(total/2, total)
		progress(total, total)
	}
	return nil
}

func (f *fakeTransfer) urls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.URL
	}
	return out
}

func (f *fakeTransfer) peak() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxRunning
}

func transferError(code int) error {
	return fmt.Errorf("%w: status %d", common.ErrTransferFailed, code)
}

// manifest gives every variant a write URL under http://dest/<id>/ and a
// read URL under https://cdn/<id>/.
func manifest(id string, variants ...models.Variant) models.Manifest {
	m := models.Manifest{}
	for _, v := range variants {
		m[v] = models.Destination{
			WriteURL: fmt.Sprintf("http://dest/%s/%s", id, v),
			ReadURL:  fmt.Sprintf("https://cdn/%s/%s", id, v),
		}
	}
	return m
}

var (
	imageVariants = []models.Variant{models.VariantOriginal, models.VariantSmall, models.VariantMedium, models.VariantLarge}
	videoVariants = []models.Variant{models.VariantOriginal, models.VariantVideoPreview, models.VariantSmall, models.VariantMedium, models.VariantLarge}
)

func imageRequest(id string) *models.UploadRequest {
	return &models.UploadRequest{
		ID:            id,
		OwnerID:       "owner-1",
		SessionID:     "sess-1",
		Source:        "/photos/" + id + ".jpg",
		FilePath:      "album/" + id + ".jpg",
		ContentType:   "image/jpeg",
		SmallCutSize:  10,
		MediumCutSize: 20,
		LargeCutSize:  30,
		Destinations:  manifest(id, imageVariants...),
		Status:        models.StatusInitialized,
	}
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "uploads.db"), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type fixture struct {
	store    *store.Store
	source   *fakeSource
	transfer *fakeTransfer
	svc      *Service
}

func newFixture(t *testing.T, tweak func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		store:    openStore(t),
		source:   &fakeSource{},
		transfer: &fakeTransfer{failOn: map[string]error{}},
	}
	opts := Options{
		OwnerID:   "owner-1",
		SessionID: "sess-1",
		Store:     f.store,
		Source:    f.source,
		Deriver:   media.NewDeriver(),
		Transfer:  f.transfer,
		Logger:    logging.Discard(),
	}
	if tweak != nil {
		tweak(&opts)
	}
	svc, err := NewService(opts)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	f.svc = svc
	return f
}

func (f *fixture) status(t *testing.T, id string) models.UploadStatus {
	t.Helper()
	r, err := f.store.GetUpload(context.Background(), id)
	require.NoError(t, err)
	return r.Status
}
