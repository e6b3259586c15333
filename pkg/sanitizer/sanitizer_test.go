package sanitizer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/creatorkit/creatorkit/pkg/sanitizer"
)

func TestApply(t *testing.T) {
	t.Parallel()

	got := sanitizer.Apply("  <b>hello</b>\nworld  ",
		sanitizer.StripHTML,
		sanitizer.SingleLine,
		sanitizer.Trim,
	)
	assert.Equal(t, "hello world", got)
}

func TestStripHTML(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "alert(1)", sanitizer.StripHTML("<script>alert(1)</script>"))
	assert.Equal(t, "plain", sanitizer.StripHTML("plain"))
}

func TestSingleLine(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a b c", sanitizer.SingleLine("a\n\nb\t c"))
}

func TestMaxLength(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", sanitizer.MaxLength("abcdef", 3))
	assert.Equal(t, "abc", sanitizer.MaxLength("abc", 10))
	assert.Equal(t, "", sanitizer.MaxLength("abc", 0))
	// Rune-safe truncation.
	assert.Equal(t, "hél", sanitizer.MaxLength("héllo", 3))
}

func TestKeepDigits(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1234567890", sanitizer.KeepDigits(" 12-34 56.78 90 "))
}

func TestTrimToUpper(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "HDFC0001234", sanitizer.TrimToUpper("  hdfc0001234 "))
}
