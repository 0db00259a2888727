package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClipRunes(t *testing.T) {
	assert.Equal(t, "short", clipRunes("short", 100))
	assert.Equal(t, "abc", clipRunes("abcdef", 3))
	assert.Equal(t, "unbounded", clipRunes("unbounded", 0))
	assert.Equal(t, "unbounded", clipRunes("unbounded", -1))

	long := strings.Repeat("x", 9000)
	assert.Len(t, clipRunes(long, 8000), 8000)

	// Caps by runes, not bytes.
	assert.Equal(t, "日本", clipRunes("日本語", 2))
}
