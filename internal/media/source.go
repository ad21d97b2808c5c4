package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/dmitrijs2005/assetsync/internal/common"
	"github.com/dmitrijs2005/assetsync/internal/filex"
	"github.com/dmitrijs2005/assetsync/internal/client/models"
)

// Info is what the pipeline needs to know about a media item before upload.
type Info struct {
	Handle      string
	FileName    string
	ContentType string
	Size        int64
	Width       int
	Height      int
	// Duration in seconds, 0 for stills and when it cannot be probed.
	Duration float64
}

// FrameGrabber extracts stills and metadata from video files.
type FrameGrabber interface {
	Frame(ctx context.Context, path string) ([]byte, error)
	Duration(ctx context.Context, path string) (float64, error)
}

// LocalSource resolves handles as paths on the local filesystem.
type LocalSource struct {
	frames FrameGrabber
}

// NewLocalSource returns a source. frames may be nil, in which case video
// frames are unavailable.
func NewLocalSource(frames FrameGrabber) *LocalSource {
	return &LocalSource{frames: frames}
}

func (s *LocalSource) Probe(ctx context.Context, handle string) (*Info, error) {
	fi, err := stat(handle)
	if err != nil {
		return nil, err
	}

	info := &Info{
		Handle:      handle,
		FileName:    filepath.Base(handle),
		ContentType: ContentType(handle),
		Size:        fi.Size(),
	}

	switch models.KindOf(info.ContentType) {
	case models.KindImage:
		f, err := os.Open(handle)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrSourceUnavailable, err)
		}
		defer f.Close()
		cfg, _, err := image.DecodeConfig(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", common.ErrDecodeFailed, handle, err)
		}
		info.Width, info.Height = cfg.Width, cfg.Height
	case models.KindVideo:
		if s.frames == nil {
			break
		}
		if d, err := s.frames.Duration(ctx, handle); err == nil {
			info.Duration = d
		}
		if img, err := s.Frame(ctx, handle); err == nil {
			b := img.Bounds()
			info.Width, info.Height = b.Dx(), b.Dy()
		}
	}

	return info, nil
}

// Image decodes a still, applying EXIF orientation.
func (s *LocalSource) Image(ctx context.Context, handle string) (image.Image, error) {
	if _, err := stat(handle); err != nil {
		return nil, err
	}
	img, err := imaging.Open(handle, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrDecodeFailed, handle, err)
	}
	return img, nil
}

// Frame captures a still from a video.
func (s *LocalSource) Frame(ctx context.Context, handle string) (image.Image, error) {
	if _, err := stat(handle); err != nil {
		return nil, err
	}
	if s.frames == nil {
		return nil, fmt.Errorf("%w: %s: no frame grabber configured", common.ErrDecodeFailed, handle)
	}
	raw, err := s.frames.Frame(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrDecodeFailed, handle, err)
	}
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: frame: %v", common.ErrDecodeFailed, handle, err)
	}
	return img, nil
}

// Bytes reads the item unchanged.
func (s *LocalSource) Bytes(ctx context.Context, handle string) ([]byte, error) {
	if _, err := stat(handle); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(handle)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrSourceUnavailable, err)
	}
	return b, nil
}

func stat(handle string) (fs.FileInfo, error) {
	if handle == "" {
		return nil, fmt.Errorf("%w: empty handle", common.ErrSourceUnavailable)
	}
	fi, err := filex.RegularFile(handle)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", common.ErrSourceUnavailable, handle)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrSourceUnavailable, err)
	}
	return fi, nil
}
