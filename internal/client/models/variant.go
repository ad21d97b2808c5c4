package models

import "strings"

// Variant names one derived rendition of an asset.
type Variant string

const (
	VariantOriginal     Variant = "original"
	VariantSmall        Variant = "small"
	VariantMedium       Variant = "medium"
	VariantLarge        Variant = "large"
	VariantVideoPreview Variant = "videoPreview"
)

// Destination is the pair of URLs assigned to a variant: where to PUT the
// bytes and where the uploaded object can be read afterwards.
type Destination struct {
	WriteURL string `json:"writeUrl"`
	ReadURL  string `json:"readUrl,omitempty"`
}

// Manifest maps variants to their destinations. A variant with an empty
// write URL is treated as absent.
type Manifest map[Variant]Destination

func (m Manifest) WriteURL(v Variant) (string, bool) {
	d, ok := m[v]
	if !ok || d.WriteURL == "" {
		return "", false
	}
	return d.WriteURL, true
}

func (m Manifest) ReadURL(v Variant) string {
	return m[v].ReadURL
}

// Clone returns an independent copy.
func (m Manifest) Clone() Manifest {
	if m == nil {
		return nil
	}
	out := make(Manifest, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// MediaKind selects which variant sequence a record goes through.
type MediaKind int

const (
	KindFile MediaKind = iota
	KindImage
	KindVideo
)

func (k MediaKind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	default:
		return "file"
	}
}

// DecodableImageTypes are the still formats variants can be derived from.
// Other image types (HEIC, HEIF, SVG and so on) are uploaded unchanged, like
// any opaque file.
var DecodableImageTypes = map[string]bool{
	"image/jpeg":     true,
	"image/png":      true,
	"image/gif":      true,
	"image/bmp":      true,
	"image/x-ms-bmp": true,
	"image/tiff":     true,
	"image/webp":     true,
}

// KindOf classifies a MIME type.
func KindOf(contentType string) MediaKind {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch {
	case DecodableImageTypes[ct]:
		return KindImage
	case strings.HasPrefix(ct, "video/"):
		return KindVideo
	default:
		return KindFile
	}
}

// RequiredVariants lists, in upload order, the variants a record of the given
// kind produces.
func RequiredVariants(kind MediaKind, noCuts bool) []Variant {
	switch kind {
	case KindImage:
		if noCuts {
			return []Variant{VariantOriginal}
		}
		return []Variant{VariantOriginal, VariantSmall, VariantMedium, VariantLarge}
	case KindVideo:
		if noCuts {
			return []Variant{VariantOriginal, VariantVideoPreview}
		}
		return []Variant{VariantOriginal, VariantVideoPreview, VariantSmall, VariantMedium, VariantLarge}
	default:
		return []Variant{VariantOriginal}
	}
}
