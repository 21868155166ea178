package httpx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBypassesCache(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		want    bool
	}{
		{"no headers", map[string]string{}, false},
		{"cache-control no-cache", map[string]string{"cache-control": "no-cache"}, true},
		{"cache-control max-age", map[string]string{"cache-control": "max-age=60"}, false},
		{"pragma no-cache", map[string]string{"pragma": "no-cache"}, true},
		{"pragma case-insensitive", map[string]string{"pragma": "No-Cache"}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := &Request{Headers: c.headers}
			assert.Equal(t, c.want, bypassesCache(req))
		})
	}
}
