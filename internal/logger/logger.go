package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

// Level represents logging severity using slog levels
type Level slog.Level

const (
	DebugLevel Level = Level(slog.LevelDebug)
	InfoLevel  Level = Level(slog.LevelInfo)
	WarnLevel  Level = Level(slog.LevelWarn)
	ErrorLevel Level = Level(slog.LevelError)
	FatalLevel Level = Level(slog.LevelError + 4)
)

// Config represents logging configuration compatible with main config package
type Config struct {
	Enabled         bool   `toml:"enabled"`
	Directory       string `toml:"directory"`
	FilenamePattern string `toml:"filename_pattern"`
	Level           string `toml:"level"`
	MaxFiles        int    `toml:"max_files"`
	MaxSizeMB       int    `toml:"max_size_mb"`
	ConsoleOutput   bool   `toml:"console_output"`
}

// EnhancedLogger wraps slog.Logger with daily file rotation. When file
// logging is disabled it writes colourised output to the console instead.
type EnhancedLogger struct {
	*slog.Logger
	config   Config
	file     *os.File
	fileName string
	fileSize int64
	mu       sync.Mutex
	out      io.Writer
	attrs    []any
}

var (
	globalLogger *EnhancedLogger
	globalMu     sync.Mutex
)

// Initialize replaces the global logger with one built from config.
func Initialize(config Config) error {
	l, err := NewEnhancedLogger(config)
	if err != nil {
		return err
	}

	globalMu.Lock()
	old := globalLogger
	globalLogger = l
	globalMu.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}

// Get returns the global logger instance, creating a fallback console logger if not initialized
func Get() *EnhancedLogger {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalLogger == nil {
		globalLogger = &EnhancedLogger{
			Logger: slog.New(tint.NewHandler(os.Stdout, &tint.Options{
				Level:      slog.LevelInfo,
				TimeFormat: time.Kitchen,
			})),
		}
	}
	return globalLogger
}

// NewEnhancedLogger creates a new enhanced logger with the given configuration
func NewEnhancedLogger(config Config) (*EnhancedLogger, error) {
	if config.Enabled && config.FilenamePattern != "" {
		if err := ValidateFilenamePattern(config.FilenamePattern); err != nil {
			return nil, fmt.Errorf("invalid filename pattern: %w", err)
		}
	}

	l := &EnhancedLogger{config: config}
	level := parseLogLevel(config.Level)

	if !config.Enabled {
		l.Logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		}))
		return l, nil
	}

	if err := os.MkdirAll(logDirectory(config.Directory), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	if err := l.openLogFile(); err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	l.rebuildHandler()

	l.Info("Enhanced logger initialized",
		slog.String("log_file", l.fileName),
		slog.String("level", config.Level),
		slog.Bool("console", config.ConsoleOutput))

	return l, nil
}

// With attaches attributes (for example a run id) to every subsequent record,
// including records written after a rotation.
func (l *EnhancedLogger) With(args ...any) *EnhancedLogger {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.attrs = append(l.attrs, args...)
	l.Logger = l.Logger.With(args...)
	return l
}

func (l *EnhancedLogger) openLogFile() error {
	path := filepath.Join(logDirectory(l.config.Directory), generateLogFilename(l.config.FilenamePattern))

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}

	l.file = file
	l.fileName = path
	l.fileSize = info.Size()

	if l.config.ConsoleOutput {
		l.out = io.MultiWriter(os.Stdout, file)
	} else {
		l.out = file
	}
	return nil
}

// rebuildHandler points a fresh text handler at l. Caller holds l.mu or is
// still constructing l.
func (l *EnhancedLogger) rebuildHandler() {
	handler := slog.NewTextHandler(l, &slog.HandlerOptions{
		Level: parseLogLevel(l.config.Level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format("2006-01-02T15:04:05.000-07:00"))
			}
			if a.Key == slog.SourceKey {
				if source, ok := a.Value.Any().(*slog.Source); ok {
					return slog.String(slog.SourceKey, fmt.Sprintf("%s:%d", filepath.Base(source.File), source.Line))
				}
			}
			return a
		},
	})
	l.Logger = slog.New(handler).With(l.attrs...)
}

// logDirectory resolves an empty directory to ./logs.
func logDirectory(dir string) string {
	if strings.TrimSpace(dir) == "" {
		return "logs"
	}
	return filepath.Clean(dir)
}

// generateLogFilename expands YYYY, YY, MM, DD and HH tokens.
func generateLogFilename(pattern string) string {
	if pattern == "" {
		pattern = "wetterpost-YYYYMMDD.log"
	}

	now := time.Now()
	r := strings.NewReplacer(
		"YYYY", fmt.Sprintf("%04d", now.Year()),
		"YY", fmt.Sprintf("%02d", now.Year()%100),
		"MM", fmt.Sprintf("%02d", now.Month()),
		"DD", fmt.Sprintf("%02d", now.Day()),
		"HH", fmt.Sprintf("%02d", now.Hour()),
	)
	return r.Replace(pattern)
}

func filenameGlob(pattern string) string {
	return strings.NewReplacer("YYYY", "*", "YY", "*", "MM", "*", "DD", "*", "HH", "*").Replace(pattern)
}

func parseLogLevel(level string) slog.Level {
	lvl, err := ParseLevel(level)
	if err != nil || lvl == FatalLevel {
		return slog.LevelInfo
	}
	return slog.Level(lvl)
}

// checkRotationLocked rotates on size overflow or when the pattern yields a
// new filename (date change).
func (l *EnhancedLogger) checkRotationLocked() error {
	if l.file == nil {
		return nil
	}

	maxSize := int64(l.config.MaxSizeMB) * 1024 * 1024
	if maxSize > 0 && l.fileSize >= maxSize {
		return l.rotateLocked(true)
	}
	if filepath.Base(l.fileName) != generateLogFilename(l.config.FilenamePattern) {
		return l.rotateLocked(false)
	}
	return nil
}

func (l *EnhancedLogger) rotateLocked(archive bool) error {
	l.file.Close()

	if archive {
		ext := filepath.Ext(l.fileName)
		archived := fmt.Sprintf("%s-%s%s", strings.TrimSuffix(l.fileName, ext), time.Now().Format("20060102-150405.000"), ext)
		if err := os.Rename(l.fileName, archived); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to archive log file: %v\n", err)
		}
	}

	if err := l.openLogFile(); err != nil {
		l.file = nil
		l.out = os.Stderr
		return err
	}
	l.rebuildHandler()

	if l.config.MaxFiles > 0 {
		l.cleanOldFiles()
	}
	return nil
}

// cleanOldFiles keeps the newest MaxFiles files matching the pattern.
func (l *EnhancedLogger) cleanOldFiles() {
	matches, err := filepath.Glob(filepath.Join(filepath.Dir(l.fileName), filenameGlob(l.config.FilenamePattern)))
	if err != nil || len(matches) <= l.config.MaxFiles {
		return
	}

	type entry struct {
		path    string
		modTime time.Time
	}
	files := make([]entry, 0, len(matches))
	for _, match := range matches {
		if info, err := os.Stat(match); err == nil {
			files = append(files, entry{match, info.ModTime()})
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })

	for _, f := range files[min(l.config.MaxFiles, len(files)):] {
		if f.path != l.fileName {
			os.Remove(f.path)
		}
	}
}

// Write implements io.Writer for the text handler.
func (l *EnhancedLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.out == nil {
		return os.Stdout.Write(p)
	}

	n, err := l.out.Write(p)
	if err != nil {
		return n, err
	}
	l.fileSize += int64(n)

	if err := l.checkRotationLocked(); err != nil {
		fmt.Fprintf(os.Stderr, "Log rotation error: %v\n", err)
	}
	return n, nil
}

// Close closes the log file
func (l *EnhancedLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		l.out = nil
		return err
	}
	return nil
}

// LogExecutionSummary logs a formatted execution summary for audit purposes
func (l *EnhancedLogger) LogExecutionSummary(startTime time.Time, configFile string, mode string, results []string, exitCode int) {
	l.Info("=== EXECUTION SUMMARY ===")
	l.Info("Execution details",
		slog.Time("start_time", startTime),
		slog.String("config_file", configFile),
		slog.String("mode", mode),
		slog.Duration("total_duration", time.Since(startTime)),
		slog.Int("exit_code", exitCode))

	for _, result := range results {
		l.Info(result)
	}
}

// Debug logs a debug message
func Debug(format string, args ...any) {
	Get().Debug(fmt.Sprintf(format, args...))
}

// Info logs an info message
func Info(format string, args ...any) {
	Get().Info(fmt.Sprintf(format, args...))
}

// Warn logs a warning message
func Warn(format string, args ...any) {
	Get().Warn(fmt.Sprintf(format, args...))
}

// Error logs an error message
func Error(format string, args ...any) {
	Get().Error(fmt.Sprintf(format, args...))
}

// Fatal logs a fatal message and exits
func Fatal(format string, args ...any) {
	l := Get()
	l.Error(fmt.Sprintf(format, args...))
	l.Close()
	os.Exit(1)
}

// LogAPIRequest logs the start of an outgoing HTTP request. Query strings
// are dropped from the URL since they carry API keys.
func LogAPIRequest(method, url string, headers map[string]string) {
	fields := []any{
		"method", method,
		"url", redactQuery(url),
		"type", "api_request",
	}
	if userAgent := headers["User-Agent"]; userAgent != "" {
		fields = append(fields, "user_agent", userAgent)
	}

	Get().LogAttrs(context.Background(), slog.LevelDebug, "API request started", slog.Group("request", fields...))
}

// LogAPIResponse logs an API response with structured fields
func LogAPIResponse(method, url string, statusCode int, duration string, bodySize int) {
	level := slog.LevelDebug
	if statusCode >= 400 {
		level = slog.LevelWarn
	}
	if statusCode >= 500 {
		level = slog.LevelError
	}

	Get().LogAttrs(context.Background(), level, "API request completed",
		slog.Group("request",
			"method", method,
			"url", redactQuery(url),
			"status_code", statusCode,
			"duration", duration,
			"body_size", bodySize,
			"type", "api_response",
		),
	)
}

func redactQuery(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[:i]
	}
	return url
}

// LogFileOperation logs file operations with structured context
func LogFileOperation(operation, path string, size int64) {
	Get().LogAttrs(context.Background(), slog.LevelInfo, "File operation completed",
		slog.Group("file",
			"operation", operation,
			"path", path,
			"size_bytes", size,
			"type", "file_operation",
		),
	)
}

// LogOperationStart logs the beginning of an operation and returns a completion function
func LogOperationStart(operation string, details map[string]any) func(error) {
	startTime := time.Now()

	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.String("type", "operation_start"),
	}
	if len(details) > 0 {
		keys := make([]string, 0, len(details))
		for k := range details {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		detailAttrs := make([]any, 0, len(details)*2)
		for _, k := range keys {
			detailAttrs = append(detailAttrs, k, details[k])
		}
		attrs = append(attrs, slog.Group("details", detailAttrs...))
	}

	Get().LogAttrs(context.Background(), slog.LevelInfo, "Operation started", attrs...)

	return func(err error) {
		level := slog.LevelInfo
		message := "Operation completed"

		done := []slog.Attr{
			slog.String("operation", operation),
			slog.String("type", "operation_complete"),
			slog.Duration("duration", time.Since(startTime)),
			slog.Bool("success", err == nil),
		}
		if err != nil {
			level = slog.LevelError
			message = "Operation failed"
			done = append(done, slog.String("error", err.Error()))
		}

		Get().LogAttrs(context.Background(), level, message, done...)
	}
}

// ParseLevel converts a string to a log level
func ParseLevel(levelStr string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown log level: %s", levelStr)
	}
}
