package httpx

import (
	"strings"

	"github.com/pquerna/cachecontrol/cacheobject"
)

// bypassesCache reports whether req asks to skip the shared LRU lookup
// for this single request, per the client's Cache-Control/Pragma
// no-cache directives. This only ever bypasses the lookup, never the
// populate-on-miss path, so the cache stays warm for later requests.
// A request with neither header is unaffected.
func bypassesCache(req *Request) bool {
	if strings.EqualFold(strings.TrimSpace(req.Header("Pragma")), "no-cache") {
		return true
	}
	cc := req.Header("Cache-Control")
	if cc == "" {
		return false
	}
	dirs, err := cacheobject.ParseRequestCacheControl(cc)
	if err != nil {
		return false
	}
	return dirs.NoCache
}
