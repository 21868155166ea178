package rdma

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequest_RoundTrip(t *testing.T) {
	cases := []Request{
		{Op: OpPing},
		{Op: OpGet, Path: "/a"},
		{Op: OpGet, Path: "/very/long/nested/path.html"},
	}
	for _, r := range cases {
		wire := EncodeRequest(r)
		got, ok := ParseRequest(wire)
		require.True(t, ok)
		assert.Equal(t, r, got)
	}
}

func TestParseRequest_RejectsTruncatedHeader(t *testing.T) {
	_, ok := ParseRequest([]byte{1})
	assert.False(t, ok)
}

func TestParseRequest_RejectsPathLenPastBuffer(t *testing.T) {
	data := EncodeRequest(Request{Op: OpGet, Path: "/a"})
	_, ok := ParseRequest(data[:len(data)-1])
	assert.False(t, ok)
}

func TestResponseHeader_RoundTrip(t *testing.T) {
	r := Response{Status: 200, ContentLen: 100, ChunkSize: 32}
	wire := EncodeResponseHeader(r)
	got, ok := ParseResponseHeader(wire)
	require.True(t, ok)
	assert.Equal(t, r, got)
}

func TestClampChunk(t *testing.T) {
	assert.Equal(t, uint32(32), ClampChunk(32, 100))
	assert.Equal(t, uint32(100), ClampChunk(1000, 100))
	assert.Equal(t, uint32(1), ClampChunk(0, 100))
}

func TestChunkBounds_SumsToContentLen(t *testing.T) {
	bounds := ChunkBounds(100, 32)
	require.Equal(t, 4, len(bounds))
	assert.Equal(t, [2]int64{0, 32}, bounds[0])
	assert.Equal(t, [2]int64{96, 4}, bounds[3])

	var total int64
	for _, b := range bounds {
		total += b[1]
	}
	assert.Equal(t, int64(100), total)
}

func TestChunkBounds_EmptyBody(t *testing.T) {
	assert.Nil(t, ChunkBounds(0, 32))
}
