package kiseki

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isLowerHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func TestTraceIDFormat(t *testing.T) {
	seen := make(map[string]bool)
	for n := 0; n < 1000; n++ {
		id := newTraceID()
		require.Len(t, id, 32)
		require.True(t, isLowerHex(id), "trace id %q not lowercase hex", id)
		assert.False(t, seen[id], "duplicate trace id %q", id)
		seen[id] = true
	}
}

func TestSpanIDFormat(t *testing.T) {
	seen := make(map[string]bool)
	for n := 0; n < 1000; n++ {
		id := newSpanID()
		require.Len(t, id, 16)
		require.True(t, isLowerHex(id), "span id %q not lowercase hex", id)
		assert.False(t, seen[id], "duplicate span id %q", id)
		seen[id] = true
	}
}
