// Package media derives renditions from decoded images and resolves local
// media handles into pixels, bytes and metadata.
package media

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/dmitrijs2005/assetsync/internal/common"
)

const DefaultJPEGQuality = 100

// Deriver produces resized variants, colour swatches and encoded bytes.
// It holds no mutable state and is safe for concurrent use.
type Deriver struct {
	filter      imaging.ResampleFilter
	jpegQuality int
	dominant    bool
}

type DeriverOption func(*Deriver)

// WithFilter sets the resampling filter used by DeriveVariant.
func WithFilter(f imaging.ResampleFilter) DeriverOption {
	return func(d *Deriver) { d.filter = f }
}

// WithJPEGQuality sets the JPEG quality in the 1..100 range.
func WithJPEGQuality(q int) DeriverOption {
	return func(d *Deriver) {
		if q >= 1 && q <= 100 {
			d.jpegQuality = q
		}
	}
}

// WithDominantSwatch makes Swatch report the dominant colour instead of the
// average one.
func WithDominantSwatch(on bool) DeriverOption {
	return func(d *Deriver) { d.dominant = on }
}

func NewDeriver(opts ...DeriverOption) *Deriver {
	d := &Deriver{filter: imaging.Lanczos, jpegQuality: DefaultJPEGQuality}
	for _, o := range opts {
		o(d)
	}
	return d
}

// DeriveVariant scales img so its long edge is at most edge pixels, keeping
// the aspect ratio. Portrait images are clamped by height, everything else by
// width. Images already within edge are returned unchanged.
func (d *Deriver) DeriveVariant(img image.Image, edge int) (image.Image, error) {
	w, h, err := dimensions(img)
	if err != nil {
		return nil, err
	}
	if edge <= 0 {
		return nil, fmt.Errorf("%w: edge %d", common.ErrInvalidSource, edge)
	}

	if w < h {
		if h <= edge {
			return img, nil
		}
		return imaging.Resize(img, 0, edge, d.filter), nil
	}
	if w <= edge {
		return img, nil
	}
	return imaging.Resize(img, edge, 0, d.filter), nil
}

// Encode serialises img as PNG for image/png and as JPEG otherwise.
func (d *Deriver) Encode(img image.Image, contentType string) ([]byte, error) {
	if _, _, err := dimensions(img); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	var err error
	if strings.EqualFold(strings.TrimSpace(contentType), "image/png") {
		err = imaging.Encode(&buf, img, imaging.PNG)
	} else {
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(d.jpegQuality))
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", contentType, err)
	}
	return buf.Bytes(), nil
}

func dimensions(img image.Image) (int, int, error) {
	if img == nil {
		return 0, 0, fmt.Errorf("%w: no image", common.ErrInvalidSource)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return 0, 0, fmt.Errorf("%w: %dx%d", common.ErrInvalidSource, b.Dx(), b.Dy())
	}
	return b.Dx(), b.Dy(), nil
}
