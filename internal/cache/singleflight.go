package cache

import "golang.org/x/sync/singleflight"

// Group collapses concurrent misses for the same key into a single
// call to fn, so a stampede of readers racing a cold cache entry
// triggers one file read instead of one per goroutine. It wraps
// golang.org/x/sync/singleflight directly instead of hand-rolling the
// inflight-map bookkeeping, since the shape of the problem (one winner
// runs fn, every other caller rides its result) is exactly what that
// package exists for.
type Group struct {
	g singleflight.Group
}

// NewGroup builds an empty singleflight Group.
func NewGroup() *Group {
	return &Group{}
}

// Do executes fn for key, sharing the result with any other goroutine
// that calls Do for the same key while fn is running.
func (g *Group) Do(key string, fn func() (Entry, error)) (Entry, error) {
	v, err, _ := g.g.Do(key, func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return Entry{}, err
	}
	return v.(Entry), nil
}
