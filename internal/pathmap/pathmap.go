// Package pathmap turns a request target into a filesystem path confined
// under a document root, plus the canonical cache key for that path.
package pathmap

import (
	"os"
	"path/filepath"
	"strings"
)

// Result is the outcome of mapping a URL path against a document root.
type Result struct {
	OK       bool
	Exists   bool
	FSPath   string
	CacheKey string
	Error    string
}

// sanitize strips the query/fragment and resolves "." and ".." segments.
// A ".." that would climb above the root (i.e. encountered with no
// segment left to pop) is reported as a traversal attempt rather than
// silently clamped.
func sanitize(urlPath string) (string, bool) {
	if i := strings.IndexAny(urlPath, "?#"); i >= 0 {
		urlPath = urlPath[:i]
	}
	if urlPath == "" || urlPath[0] != '/' {
		urlPath = "/" + urlPath
	}

	segments := strings.Split(urlPath, "/")
	var parts []string
	for _, seg := range segments {
		switch seg {
		case "", ".":
			// drop empty and current-dir segments
		case "..":
			if len(parts) == 0 {
				return "", false
			}
			parts = parts[:len(parts)-1]
		default:
			parts = append(parts, seg)
		}
	}
	return "/" + strings.Join(parts, "/"), true
}

// Map resolves urlPath against docRoot, returning the canonical
// filesystem path and cache key, or an error result on traversal.
func Map(docRoot, urlPath string) Result {
	root, err := filepath.Abs(docRoot)
	if err != nil {
		return Result{OK: false, Error: err.Error()}
	}
	root = filepath.Clean(root)

	sanitized, ok := sanitize(urlPath)
	if !ok {
		return Result{OK: false, Error: "Path traversal"}
	}
	cacheKey := sanitized
	if cacheKey == "/" {
		cacheKey = "/index.html"
	}

	target := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(cacheKey, "/")))
	target = filepath.Clean(target)

	// Defense in depth: re-check the prefix once more after the join,
	// then again with symlinks resolved, so a symlink inside the root
	// that resolves outside of it is rejected too.
	if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
		return Result{OK: false, Error: "Path traversal"}
	}
	if realRoot, err := filepath.EvalSymlinks(root); err == nil {
		if realTarget, err := filepath.EvalSymlinks(target); err == nil &&
			realTarget != realRoot && !strings.HasPrefix(realTarget, realRoot+string(filepath.Separator)) {
			return Result{OK: false, Error: "Path traversal"}
		}
	}

	info, statErr := os.Stat(target)
	exists := statErr == nil && info.Mode().IsRegular()

	return Result{
		OK:       true,
		Exists:   exists,
		FSPath:   target,
		CacheKey: cacheKey,
	}
}
