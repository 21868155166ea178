// Package mime maps a filesystem path to a Content-Type by extension.
package mime

import (
	"path/filepath"
	"strings"
)

var byExt = map[string]string{
	".html": "text/html; charset=utf-8",
	".htm":  "text/html; charset=utf-8",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".txt":  "text/plain; charset=utf-8",
	".xml":  "application/xml",
	".pdf":  "application/pdf",
	".wasm": "application/wasm",
}

// TypeFor returns the Content-Type for path, or a generic octet-stream
// type if the extension is unknown.
func TypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := byExt[ext]; ok {
		return t
	}
	return "application/octet-stream"
}
