package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		"hello world":                                  "hello world",
		"  padded  ":                                   "padded",
		"before<script>alert(1)</script>after":         "beforeafter",
		"<SCRIPT type=\"x\">evil()</SCRIPT>kept":       "kept",
		`<img src="x" onerror="steal()">caption`:       "caption",
		"click javascript:alert(1) here":               "click alert(1) here",
		"<b>bold</b> and <i>italic</i>":                "bold and italic",
		`<a href='x' onclick='go()'>link</a> text`:     "link text",
		"multi\n<script>\nline\n</script>\nconfession": "multi\n\nconfession",
	}
	for in, want := range cases {
		assert.Equal(t, want, Sanitize(in), "input %q", in)
	}
}

func TestExtractHashtags(t *testing.T) {
	tags := ExtractHashtags("I love #study and #love, also #study again #x_1")
	assert.Equal(t, []string{"#study", "#love", "#x_1"}, tags)
	assert.Nil(t, ExtractHashtags("no tags here"))
}

func TestPrepareConfessionBounds(t *testing.T) {
	_, err := PrepareConfession("abcd")
	require.Error(t, err)

	ok, err := PrepareConfession(strings.Repeat("a", MaxConfessionLength))
	require.NoError(t, err)
	assert.Equal(t, MaxConfessionLength, Length(ok))

	_, err = PrepareConfession(strings.Repeat("a", MaxConfessionLength+1))
	require.Error(t, err)

	// raw length passes, sanitized text is too short
	_, err = PrepareConfession("<script>alert('x')</script>ab")
	require.Error(t, err)

	// multi-byte characters count once
	_, err = PrepareConfession(strings.Repeat("я", MaxConfessionLength))
	require.NoError(t, err)
}

func TestPrepareComment(t *testing.T) {
	for _, text := range []string{"", "a", "ab", "  ab  "} {
		_, err := PrepareComment(text)
		assert.Error(t, err, "text %q", text)
	}
	got, err := PrepareComment("abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", got)
}

func TestValidateUsername(t *testing.T) {
	assert.Error(t, ValidateUsername("ab"))
	assert.Error(t, ValidateUsername("this_name_is_way_too_long_12"))
	assert.Error(t, ValidateUsername("bad name!"))
	assert.NoError(t, ValidateUsername("Valid_Name1"))
	assert.NoError(t, ValidateUsername("abc"))
}

func TestParseUserID(t *testing.T) {
	id, err := ParseUserID(" 12345 ")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), id)

	_, err = ParseUserID("abc")
	assert.Error(t, err)
	_, err = ParseUserID("-4")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
}
