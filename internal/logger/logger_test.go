package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(content)
}

func TestLoggerInitialization(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		wantError bool
	}{
		{
			name:   "console-only config",
			config: Config{Enabled: false, ConsoleOutput: true, Level: "info"},
		},
		{
			name: "file logging config",
			config: Config{
				Enabled:         true,
				Directory:       t.TempDir(),
				FilenamePattern: "test-YYYYMMDD.log",
				Level:           "debug",
			},
		},
		{
			name: "filename pattern with slashes",
			config: Config{
				Enabled:         true,
				Directory:       t.TempDir(),
				FilenamePattern: "test-MM/DD/YYYY.log",
				Level:           "info",
			},
			wantError: true,
		},
		{
			name:   "unknown level falls back to info",
			config: Config{Enabled: false, Level: "invalid-level"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Initialize(tt.config)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
	t.Cleanup(func() { Get().Close() })
}

func TestLogLevels(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, Initialize(Config{
		Enabled:         true,
		Directory:       tmpDir,
		FilenamePattern: "levels.log",
		Level:           "warn",
	}))
	t.Cleanup(func() { Get().Close() })

	Debug("debug message for %s", "nobody")
	Info("info message for %s", "nobody")
	Warn("warning should appear")
	Error("error should appear")

	content := readLog(t, filepath.Join(tmpDir, "levels.log"))
	assert.NotContains(t, content, "debug message")
	assert.NotContains(t, content, "info message")
	assert.Contains(t, content, "warning should appear")
	assert.Contains(t, content, "error should appear")
}

func TestLogRotationBySize(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, Initialize(Config{
		Enabled:         true,
		Directory:       tmpDir,
		FilenamePattern: "rotation.log",
		Level:           "info",
		MaxFiles:        3,
		MaxSizeMB:       1,
	}))
	t.Cleanup(func() { Get().Close() })

	l := Get()
	message := strings.Repeat("forecast rotation filler ", 100)
	for i := 0; i < 1024*1024/len(message)+100; i++ {
		l.Info(message)
	}

	info, err := os.Stat(filepath.Join(tmpDir, "rotation.log"))
	require.NoError(t, err)
	assert.Less(t, info.Size(), int64(1024*1024))

	files, err := filepath.Glob(filepath.Join(tmpDir, "rotation*.log"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(files), 2)
}

func TestGenerateLogFilename(t *testing.T) {
	now := time.Now()

	tests := []struct {
		pattern string
		want    string
	}{
		{"test-YYYYMMDD.log", "test-" + now.Format("20060102") + ".log"},
		{"app-YYYY-MM-DD.log", "app-" + now.Format("2006-01-02") + ".log"},
		{"static.log", "static.log"},
		{"", "wetterpost-" + now.Format("20060102") + ".log"},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.want, generateLogFilename(tt.pattern))
		})
	}
}

func TestStructuredLogging(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, Initialize(Config{
		Enabled:         true,
		Directory:       tmpDir,
		FilenamePattern: "structured.log",
		Level:           "debug",
	}))
	t.Cleanup(func() { Get().Close() })

	LogAPIRequest("GET", "https://api.example.com/forecast.json?key=secret", map[string]string{"User-Agent": "wetterpost/1.0"})
	LogAPIResponse("GET", "https://api.example.com/forecast.json?key=secret", 200, "12ms", 1024)
	LogFileOperation("write", "/tmp/latest_post/0.jpg", 2048)

	complete := LogOperationStart("render_post", map[string]any{"days": 2, "bot": "isar"})
	complete(nil)

	content := readLog(t, filepath.Join(tmpDir, "structured.log"))
	for _, expected := range []string{
		"api_request",
		"https://api.example.com/forecast.json",
		"wetterpost/1.0",
		"status_code=200",
		"file_operation",
		"operation_start",
		"operation_complete",
		"details.bot=isar",
	} {
		assert.Contains(t, content, expected)
	}
	assert.NotContains(t, content, "secret")
}

func TestWithAttributesSurviveRotation(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, Initialize(Config{
		Enabled:         true,
		Directory:       tmpDir,
		FilenamePattern: "attrs.log",
		Level:           "info",
	}))
	t.Cleanup(func() { Get().Close() })

	l := Get().With("run_id", "abc-123")
	l.Info("before rotation")

	l.mu.Lock()
	require.NoError(t, l.rotateLocked(true))
	l.mu.Unlock()

	l.Info("after rotation")

	content := readLog(t, filepath.Join(tmpDir, "attrs.log"))
	assert.Contains(t, content, "after rotation")
	assert.Contains(t, content, "run_id=abc-123")
}

func TestExecutionSummary(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, Initialize(Config{
		Enabled:         true,
		Directory:       tmpDir,
		FilenamePattern: "summary.log",
		Level:           "info",
	}))
	t.Cleanup(func() { Get().Close() })

	Get().LogExecutionSummary(time.Now().Add(-time.Minute), "wetterpost.toml", "publish",
		[]string{"bot isar: published 2 images"}, 0)

	content := readLog(t, filepath.Join(tmpDir, "summary.log"))
	for _, expected := range []string{"EXECUTION SUMMARY", "wetterpost.toml", "mode=publish", "exit_code=0", "published 2 images"} {
		assert.Contains(t, content, expected)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasError bool
	}{
		{"debug", DebugLevel, false},
		{"DEBUG", DebugLevel, false},
		{"info", InfoLevel, false},
		{"", InfoLevel, false},
		{"warn", WarnLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"fatal", FatalLevel, false},
		{"invalid", InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			assert.Equal(t, tt.hasError, err != nil)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestCleanOldFiles(t *testing.T) {
	tmpDir := t.TempDir()

	for i := 0; i < 5; i++ {
		day := time.Now().AddDate(0, 0, -i-1)
		name := "test-" + day.Format("20060102") + ".log"
		path := filepath.Join(tmpDir, name)
		require.NoError(t, os.WriteFile(path, []byte("old"), 0644))
		require.NoError(t, os.Chtimes(path, day, day))
	}

	require.NoError(t, Initialize(Config{
		Enabled:         true,
		Directory:       tmpDir,
		FilenamePattern: "test-YYYYMMDD.log",
		Level:           "info",
		MaxFiles:        3,
	}))
	t.Cleanup(func() { Get().Close() })

	l := Get()
	l.Info("new entry")
	l.cleanOldFiles()

	files, err := filepath.Glob(filepath.Join(tmpDir, "test-*.log"))
	require.NoError(t, err)
	assert.Len(t, files, 3)
	assert.Contains(t, files, l.fileName)
}
