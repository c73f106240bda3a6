package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil error", nil, "None"},
		{"retry failed with server error", fmt.Errorf("%w: %w", ErrRetryFailed, fmt.Errorf("%w: status 503", ErrServerHTTPError)), "RetryFailed_HTTPServer"},
		{"client 404", fmt.Errorf("%w: status 404 Not Found ", ErrClientHTTPError), "HTTP_404"},
		{"client 403", fmt.Errorf("%w: status 403 Forbidden ", ErrClientHTTPError), "HTTP_403"},
		{"client generic 4xx", fmt.Errorf("%w: status 410 Gone", ErrClientHTTPError), "HTTP_4xx"},
		{"robots", ErrRobotsDisallowed, "Policy_Robots"},
		{"no identifier", fmt.Errorf("%w: for product url ''", ErrNoIdentifier), "Product_NoIdentifier"},
		{"duplicate", ErrDuplicateContent, "Download_Duplicate"},
		{"too small", fmt.Errorf("%w: 12 bytes", ErrAssetTooSmall), "Download_TooSmall"},
		{"invalid media url", ErrInvalidMediaURL, "Download_InvalidURL"},
		{"no candidates", ErrNoCandidates, "Extract_NoCandidates"},
		{"filesystem", fmt.Errorf("%w: mkdir failed", ErrFilesystem), "Filesystem_Other"},
		{"database", fmt.Errorf("%w: conflict", ErrDatabase), "Database_Other"},
		{"unknown", errors.New("something odd"), "Unknown"},
		{"generic timeout string", errors.New("i/o timeout"), "Network_TimeoutGeneric"},
		{"connection refused string", errors.New("dial tcp: connection refused"), "Network_ConnectionRefused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CategorizeError(tt.err))
		})
	}
}

func TestWrapErrorf(t *testing.T) {
	assert.Nil(t, WrapErrorf(nil, "context"))

	original := errors.New("original")
	wrapped := WrapErrorf(original, "context %s", "value")
	require.Error(t, wrapped)
	assert.True(t, errors.Is(wrapped, original))
	assert.Equal(t, "context value: original", wrapped.Error())
}

func TestCalculateBytesSHA256(t *testing.T) {
	// Known vector: sha256("abc")
	assert.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		CalculateBytesSHA256([]byte("abc")))

	// Same bytes, same digest; different bytes, different digest.
	assert.Equal(t, CalculateBytesSHA256([]byte("x")), CalculateBytesSHA256([]byte("x")))
	assert.NotEqual(t, CalculateBytesSHA256([]byte("x")), CalculateBytesSHA256([]byte("y")))
}

func TestCalculateFileSHA256(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload.bin")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))

	got, err := CalculateFileSHA256(path)
	require.NoError(t, err)
	assert.Equal(t, CalculateBytesSHA256([]byte("abc")), got)

	_, err = CalculateFileSHA256(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestSanitizePathComponent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"B0ABCD1234", "B0ABCD1234"},
		{"a/b\\c:d", "a_b_c_d"},
		{"  __x__  ", "x"},
		{"", "unnamed"},
		{"???", "unnamed"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizePathComponent(tt.in), "input %q", tt.in)
	}
}

func TestCompileRegexPatterns(t *testing.T) {
	res, err := CompileRegexPatterns([]string{`related`, "", `_UC\d+`})
	require.NoError(t, err)
	assert.Len(t, res, 2)
	assert.True(t, res[1].MatchString("x_UC12y"))

	_, err = CompileRegexPatterns([]string{`(`})
	assert.ErrorIs(t, err, ErrConfigValidation)
}
