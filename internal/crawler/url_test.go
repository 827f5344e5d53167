package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"schemeless", "example.com", "https://example.com/"},
		{"http upgraded", "http://example.com/about", "https://example.com/about"},
		{"www stripped", "https://www.Example.COM/About", "https://example.com/About"},
		{"query stripped", "https://example.com/list?page=2", "https://example.com/list"},
		{"fragment stripped", "https://example.com/docs#intro", "https://example.com/docs"},
		{"trailing slash trimmed", "https://example.com/about/", "https://example.com/about"},
		{"root slash kept", "https://example.com/", "https://example.com/"},
		{"whitespace trimmed", "  example.com  ", "https://example.com/"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizeURL(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeURLIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"example.com",
		"http://www.example.com/a/b/?q=1#frag",
		"https://example.com/about/",
	}
	for _, in := range inputs {
		once, err := NormalizeURL(in)
		require.NoError(t, err)
		twice, err := NormalizeURL(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice, "normalizing %q twice changed the result", in)
	}
}

func TestNormalizeURLRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "   ", "https://"} {
		_, err := NormalizeURL(in)
		assert.Error(t, err, "expected error for %q", in)
	}
}

func TestSameDomain(t *testing.T) {
	t.Parallel()

	assert.True(t, SameDomain("https://example.com/", "https://example.com/about"))
	assert.True(t, SameDomain("https://www.example.com/", "https://example.com/"))
	assert.True(t, SameDomain("https://example.com/", "https://WWW.example.com/x"))
	assert.False(t, SameDomain("https://example.com/", "https://other.com/"))
	assert.False(t, SameDomain("https://example.com/", "https://sub.example.com/"))
}

func TestLocation(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/", Location("https://example.com/"))
	assert.Equal(t, "/about", Location("https://example.com/about"))
	assert.Equal(t, "/a/b", Location("https://example.com/a/b"))
}
