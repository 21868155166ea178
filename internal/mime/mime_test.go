package mime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeFor_KnownExtensions(t *testing.T) {
	assert.Equal(t, "text/html; charset=utf-8", TypeFor("/a/b/index.html"))
	assert.Equal(t, "image/png", TypeFor("logo.PNG"))
	assert.Equal(t, "application/javascript", TypeFor("app.js"))
}

func TestTypeFor_UnknownExtensionFallsBackToOctetStream(t *testing.T) {
	assert.Equal(t, "application/octet-stream", TypeFor("data.bin"))
	assert.Equal(t, "application/octet-stream", TypeFor("noext"))
}
