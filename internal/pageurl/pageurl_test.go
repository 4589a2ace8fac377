package pageurl

import (
	"testing"

	"github.com/pscheid92/pagerating/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://www.example.com/path/", "example.com/path"},
		{"http://example.com/path", "example.com/path"},
		{"https://example.com/path?utm=1#top", "example.com/path"},
		{"https://Example.COM/Path", "example.com/Path"},
		{"https://www.example.com/", "example.com"},
		{"https://www.example.com", "example.com"},
		{"example.com/a/b//", "example.com/a/b"},
		{"//www.example.com/x", "example.com/x"},
		{"http://localhost:8080/page", "localhost:8080/page"},
		{"https://example.com/a%20b", "example.com/a%20b"},
		{"https://www.www.example.com/a", "example.com/a"},
		{"https://example.com/go/https://other.org/x", "example.com/go/https://other.org/x"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := Normalize(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"https://www.example.com/path/",
		"http://example.com/path?x=1",
		"https://blog.example.org/2024/01/post#comments",
		"https://example.com/a%20b/",
		"https://www.example.com",
		"http://localhost:3000/",
		"https://www.www.example.com/a",
		"https://example.com/go/https://other.org/x",
	}

	for _, raw := range inputs {
		once, err := Normalize(raw)
		require.NoError(t, err)

		twice, err := Normalize(once)
		require.NoError(t, err)

		assert.Equal(t, once, twice, "normalize must be idempotent for %q", raw)
	}
}

func TestNormalize_SchemeAndWWWInsensitive(t *testing.T) {
	assert.Equal(t, MustNormalize("http://example.com/path"), MustNormalize("https://www.example.com/path/"))
}

func TestNormalize_Invalid(t *testing.T) {
	for _, raw := range []string{"", "   ", "https://", "http://%zz"} {
		_, err := Normalize(raw)
		assert.ErrorIs(t, err, domain.ErrInvalidPageURL, "input %q", raw)
	}
}
