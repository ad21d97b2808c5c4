package media

import (
	"fmt"
	"image"

	"github.com/EdlinOrg/prominentcolor"
	"github.com/disintegration/imaging"
)

// AverageColor box-filters img down to a single pixel and formats it as
// "#RRGGBB" with uppercase hex digits.
func (d *Deriver) AverageColor(img image.Image) (string, error) {
	if _, _, err := dimensions(img); err != nil {
		return "", err
	}

	px := imaging.Resize(img, 1, 1, imaging.Box)
	c := px.NRGBAAt(0, 0)

	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B), nil
}

// DominantColor returns the centre of the largest k-means colour cluster.
func (d *Deriver) DominantColor(img image.Image) (string, error) {
	if _, _, err := dimensions(img); err != nil {
		return "", err
	}

	colors, err := prominentcolor.KmeansWithArgs(prominentcolor.ArgumentNoCropping, img)
	if err != nil {
		return "", fmt.Errorf("kmeans: %w", err)
	}
	if len(colors) == 0 {
		return "", fmt.Errorf("kmeans: no colour found")
	}

	c := colors[0].Color
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B), nil
}

// Swatch is the colour stored on upload records: the average colour, or the
// dominant one when configured. A failed dominant pass falls back to the
// average.
func (d *Deriver) Swatch(img image.Image) (string, error) {
	if d.dominant {
		if c, err := d.DominantColor(img); err == nil {
			return c, nil
		}
	}
	return d.AverageColor(img)
}
