package media

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/assetsync/internal/common"
)

func init() {
	// camera formats missing from the built-in table on minimal systems
	for ext, typ := range map[string]string{
		".mov":  "video/quicktime",
		".mp4":  "video/mp4",
		".m4v":  "video/x-m4v",
		".heic": "image/heic",
		".heif": "image/heif",
	} {
		if mime.TypeByExtension(ext) == "" {
			_ = mime.AddExtensionType(ext, typ)
		}
	}
}

// ContentType resolves a MIME type from the file name's extension, without
// parameters. Unknown extensions map to application/octet-stream.
func ContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return common.FallbackContentType
	}
	t := mime.TypeByExtension(ext)
	if t == "" {
		return common.FallbackContentType
	}
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		return mt
	}
	return t
}
