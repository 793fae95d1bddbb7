package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "lowercases scheme and host only",
			input:    "HTTP://Example.COM/Path/To/Page",
			expected: "http://example.com/Path/To/Page",
		},
		{
			name:     "defaults missing scheme to https",
			input:    "example.com/offers",
			expected: "https://example.com/offers",
		},
		{
			name:     "strips tracking parameters",
			input:    "https://example.com/a?utm_source=x&utm_medium=cpc&q=1&gclid=abc",
			expected: "https://example.com/a?q=1",
		},
		{
			name:     "preserves non-tracking parameter order",
			input:    "https://example.com/a?z=2&a=1&fbclid=f",
			expected: "https://example.com/a?z=2&a=1",
		},
		{
			name:     "collapses repeated slashes",
			input:    "https://example.com//a///b",
			expected: "https://example.com/a/b",
		},
		{
			name:     "strips trailing slash",
			input:    "https://example.com/a/b/",
			expected: "https://example.com/a/b",
		},
		{
			name:     "keeps root slash",
			input:    "https://example.com/",
			expected: "https://example.com/",
		},
		{
			name:     "drops fragment",
			input:    "https://example.com/a#section-2",
			expected: "https://example.com/a",
		},
		{
			name:     "strips csv quoting and whitespace",
			input:    `  "https://example.com/a"  `,
			expected: "https://example.com/a",
		},
		{
			name:     "keeps blank-valued parameters",
			input:    "https://example.com/a?flag=&q=1",
			expected: "https://example.com/a?flag=&q=1",
		},
		{
			name:     "affiliate sub ids stripped",
			input:    "https://example.com/go?aff_id=77&aff_sub=abc&subid=9&sid=1&ref=keep",
			expected: "https://example.com/go?ref=keep",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"HTTP://Example.com/a/b/?utm_source=x&q=1",
		"example.com//weird///path/?fbclid=1",
		"https://shop.example.com/deals?b=2&a=1",
		"not a url at all",
		"https://example.com/",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestNormalizeEquivalence(t *testing.T) {
	assert.Equal(t,
		Normalize("HTTP://Example.com/a/b/?utm_source=x&q=1"),
		Normalize("http://example.com/a/b?q=1"),
	)
}

func TestPageID(t *testing.T) {
	a := PageID("https://example.com/a")
	b := PageID("https://example.com/a")
	c := PageID("https://example.com/b")

	assert.Equal(t, a, b, "same canonical URL must yield the same id")
	assert.NotEqual(t, a, c, "different canonical URLs must yield different ids")
	assert.Len(t, a, 64, "SHA-256 hex digest")
}

func TestPageIDNormalizesFirst(t *testing.T) {
	// Synonyms of one page share an id regardless of which spelling the
	// caller hands in.
	assert.Equal(t,
		PageID("HTTP://Example.com/a/b/?utm_source=x"),
		PageID("http://example.com/a/b"),
	)
}

func TestKeyerMatchesPureFunctions(t *testing.T) {
	k, err := NewKeyer(8)
	require.NoError(t, err)

	raw := "HTTPS://Example.com/deals/?gclid=x"
	canon, id := k.Key(raw)
	assert.Equal(t, Normalize(raw), canon)
	assert.Equal(t, PageID(raw), id)

	// Cached second call returns identical values.
	canon2, id2 := k.Key(raw)
	assert.Equal(t, canon, canon2)
	assert.Equal(t, id, id2)
}
