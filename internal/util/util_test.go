package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 70, Clamp(40, 70, 95))
	assert.Equal(t, 95, Clamp(150, 70, 95))
	assert.Equal(t, 85, Clamp(85, 70, 95))
	assert.Equal(t, 70, Clamp(70, 70, 95))
}

func TestTruncateStringIsRuneAware(t *testing.T) {
	assert.Equal(t, "héllo", TruncateString("héllo", 5))
	assert.Equal(t, "hé...", TruncateString("héllo", 2))
}

func TestPreviewFlattensWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", Preview("a\n  b\tc", 20))
	assert.Equal(t, "a b...", Preview("a\nb\nc", 3))
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "x", FirstNonEmpty("", "  ", "x", "y"))
	assert.Equal(t, "", FirstNonEmpty("", " "))
}

func TestParseCommaSeparated(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, ParseCommaSeparated(" a, ,b ,"))
	assert.Empty(t, ParseCommaSeparated(""))
}
