package errorutil

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeFileWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")

	require.NoError(t, SafeFileWrite(nil, path, []byte(`{"v":1}`), 0600))
	require.NoError(t, SafeFileWrite(nil, path, []byte(`{"v":2}`), 0600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(data))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, errors.Is(err, fs.ErrNotExist), "temp file should not remain")
}

func TestSafeFileWriteMissingDirectory(t *testing.T) {
	var logOutput strings.Builder
	logger := slog.New(slog.NewTextHandler(&logOutput, nil))

	err := SafeFileWrite(logger, filepath.Join(t.TempDir(), "missing", "cache.toml"), []byte("x"), 0644)
	require.Error(t, err)

	var fileErr *FileError
	require.ErrorAs(t, err, &fileErr)
	assert.Equal(t, "write_temp", fileErr.Operation)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, logOutput.String(), "error_type=file_not_found")
}

func TestEnsureDirectoryWithLogging(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bot", "latest_post")
	require.NoError(t, EnsureDirectoryWithLogging(nil, dir, 0755))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	err = EnsureDirectoryWithLogging(nil, filepath.Join(blocker, "sub"), 0755)
	var dirErr *DirectoryError
	assert.ErrorAs(t, err, &dirErr)
}

func TestRemoveMatching(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0.jpg", "1.jpg", "2.jpg", "caption.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	removed, err := RemoveMatching(nil, dir, "*.jpg")
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "caption.txt", entries[0].Name())
}

func TestNetworkErrors(t *testing.T) {
	t.Run("status error", func(t *testing.T) {
		err := NewStatusError("forecast request", "https://api.example.com", http.StatusServiceUnavailable, nil)
		assert.True(t, err.IsRetryable())
		assert.Contains(t, err.Error(), "HTTP 503")
		assert.Contains(t, err.Error(), "Service Unavailable")
	})

	t.Run("client error is not retryable", func(t *testing.T) {
		err := NewStatusError("forecast request", "https://api.example.com", http.StatusUnauthorized, errors.New("bad key"))
		assert.False(t, err.IsRetryable())
	})

	t.Run("connection refused", func(t *testing.T) {
		underlying := errors.New("dial tcp 127.0.0.1:1: connect: connection refused")
		err := NewNetworkError("album upload", "http://127.0.0.1:1", underlying)
		assert.True(t, err.IsRetryable())
		assert.ErrorIs(t, err, underlying)
	})

	t.Run("logged level follows retryability", func(t *testing.T) {
		var out strings.Builder
		logger := slog.New(slog.NewTextHandler(&out, nil))
		LogNetworkError(logger, NewStatusError("scrape", "https://gauge.example", http.StatusBadGateway, nil))
		assert.Contains(t, out.String(), "level=WARN")
		assert.Contains(t, out.String(), "status_code=502")
	})
}

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		name  string
		value string
		rule  string
	}{
		{"empty", "  ", "required"},
		{"placeholder", "your-weatherapi-api-key-here", "placeholder"},
		{"too short", "abc", "min_length"},
		{"valid", "0123456789abcdef0123", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAPIKey("apis.weatherapi", tt.value, 16)
			if tt.rule == "" {
				assert.Nil(t, err)
				return
			}
			require.NotNil(t, err)
			assert.Equal(t, tt.rule, err.Rule)
			assert.NotContains(t, err.Error(), tt.value)
		})
	}
}

func TestValidateCoordinate(t *testing.T) {
	assert.Nil(t, ValidateCoordinate("lat", 48.1, true))
	assert.NotNil(t, ValidateCoordinate("lat", 91, true))
	assert.Nil(t, ValidateCoordinate("lon", -179.9, false))
	assert.NotNil(t, ValidateCoordinate("lon", 180.5, false))
}
