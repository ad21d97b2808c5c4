package upload

import (
	"fmt"

	"github.com/dmitrijs2005/assetsync/internal/client/models"
	"github.com/dmitrijs2005/assetsync/internal/common"
)

// Band is the slice of the overall 0..100 progress owned by one step.
type Band struct {
	From float64
	To   float64
}

// At maps a step-local ratio in [0,1] onto the band.
func (b Band) At(ratio float64) float64 {
	switch {
	case ratio < 0:
		ratio = 0
	case ratio > 1:
		ratio = 1
	}
	return b.From + ratio*(b.To-b.From)
}

// Input says where a step's pixels or bytes come from.
type Input int

const (
	// InputImage is the decoded still image.
	InputImage Input = iota
	// InputFrame is a still captured from a video.
	InputFrame
	// InputRaw is the source file's bytes, uploaded unchanged.
	InputRaw
)

// Step uploads one variant.
type Step struct {
	Variant models.Variant
	Input   Input
	// Edge is the long-edge bound for image inputs; 0 keeps the dimensions.
	Edge        int
	ContentType string
	WriteURL    string
	ReadURL     string
	Band        Band
}

// Plan is the ordered list of steps for one record.
type Plan struct {
	Kind   models.MediaKind
	NoCuts bool
	Steps  []Step
}

var (
	imageCutsBands   = []Band{{0, 50}, {50, 60}, {60, 65}, {65, 95}}
	imageNoCutsBands = []Band{{0, 100}}
	videoCutsBands   = []Band{{0, 70}, {70, 75}, {75, 80}, {80, 85}, {85, 95}}
	videoNoCutsBands = []Band{{0, 85}, {85, 100}}
	fileBands        = []Band{{0, 100}}
)

func bandsFor(kind models.MediaKind, noCuts bool) []Band {
	switch {
	case kind == models.KindImage && noCuts:
		return imageNoCutsBands
	case kind == models.KindImage:
		return imageCutsBands
	case kind == models.KindVideo && noCuts:
		return videoNoCutsBands
	case kind == models.KindVideo:
		return videoCutsBands
	default:
		return fileBands
	}
}

// BuildPlan turns a record into its step sequence. Every variant in the
// sequence must have a write URL.
func BuildPlan(req *models.UploadRequest) (*Plan, error) {
	kind := req.Kind()
	variants := models.RequiredVariants(kind, req.NoCuts)
	bands := bandsFor(kind, req.NoCuts)

	small, medium, large := req.CutSizes()
	edges := map[models.Variant]int{
		models.VariantSmall:  small,
		models.VariantMedium: medium,
		models.VariantLarge:  large,
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = common.FallbackContentType
	}

	plan := &Plan{Kind: kind, NoCuts: req.NoCuts, Steps: make([]Step, 0, len(variants))}

	for i, v := range variants {
		url, ok := req.Destinations.WriteURL(v)
		if !ok {
			return nil, fmt.Errorf("%w: %s", common.ErrMissingDestination, v)
		}
		st := Step{
			Variant:  v,
			WriteURL: url,
			ReadURL:  req.Destinations.ReadURL(v),
			Band:     bands[i],
		}

		switch kind {
		case models.KindImage:
			st.Input = InputImage
			st.ContentType = contentType
			if v == models.VariantOriginal {
				if req.NoCuts {
					st.Edge = req.OriginalSize
				}
			} else {
				st.Edge = edges[v]
			}
		case models.KindVideo:
			if v == models.VariantOriginal {
				st.Input = InputRaw
				st.ContentType = contentType
			} else {
				st.Input = InputFrame
				st.ContentType = "image/png"
				st.Edge = edges[v]
			}
		default:
			st.Input = InputRaw
			st.ContentType = contentType
		}

		plan.Steps = append(plan.Steps, st)
	}

	return plan, nil
}
