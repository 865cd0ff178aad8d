package errorutil

import (
	"fmt"
	"log/slog"
	"time"
)

// LogAndWrap logs err at error level with the given attributes and returns it
// wrapped with the operation name. With a nil logger err is returned as is.
func LogAndWrap(logger *slog.Logger, operation string, err error, attrs ...slog.Attr) error {
	if logger == nil || err == nil {
		return err
	}

	logger.Error(operation+" failed", withError(err, attrs)...)
	return fmt.Errorf("%s: %w", operation, err)
}

// LogWarning logs a recoverable error. Processing is expected to continue.
func LogWarning(logger *slog.Logger, operation string, err error, attrs ...slog.Attr) {
	if logger == nil || err == nil {
		return
	}

	logger.Warn("Non-fatal error in "+operation, withError(err, attrs)...)
}

// LogAndReturn logs err without wrapping it.
func LogAndReturn(logger *slog.Logger, operation string, err error, attrs ...slog.Attr) error {
	if logger == nil || err == nil {
		return err
	}

	logger.Error(operation+" failed", withError(err, attrs)...)
	return err
}

// ExecuteWithLogging runs fn and logs its start, completion and duration.
func ExecuteWithLogging(logger *slog.Logger, operation string, fn func() error, attrs ...slog.Attr) error {
	if logger == nil {
		return fn()
	}

	start := time.Now()
	logger.Debug("Starting "+operation, toAny(attrs)...)

	err := fn()

	done := append(append([]slog.Attr{}, attrs...), slog.Duration("duration", time.Since(start)))
	if err != nil {
		logger.Error("Failed "+operation, withError(err, done)...)
		return fmt.Errorf("%s: %w", operation, err)
	}

	logger.Debug("Completed "+operation, toAny(done)...)
	return nil
}

func withError(err error, attrs []slog.Attr) []any {
	all := make([]slog.Attr, 0, len(attrs)+1)
	all = append(all, slog.String("error", err.Error()))
	all = append(all, attrs...)
	return toAny(all)
}

func toAny(attrs []slog.Attr) []any {
	out := make([]any, len(attrs))
	for i, attr := range attrs {
		out[i] = attr
	}
	return out
}

// BotContext identifies the account a log line belongs to.
func BotContext(name, username string) []slog.Attr {
	attrs := make([]slog.Attr, 0, 2)
	if name != "" {
		attrs = append(attrs, slog.String("bot", name))
	}
	if username != "" {
		attrs = append(attrs, slog.String("username", username))
	}
	return attrs
}

// CityContext creates attributes for a forecast point.
func CityContext(name string, latitude, longitude float64) []slog.Attr {
	return []slog.Attr{
		slog.String("city", name),
		slog.Float64("latitude", latitude),
		slog.Float64("longitude", longitude),
	}
}

// ProviderContext names a weather provider and the number of requested days.
func ProviderContext(provider string, days int) []slog.Attr {
	attrs := []slog.Attr{slog.String("provider", provider)}
	if days > 0 {
		attrs = append(attrs, slog.Int("days", days))
	}
	return attrs
}

// ConfigContext creates context attributes for configuration operations
func ConfigContext(configFile string) []slog.Attr {
	if configFile == "" {
		return nil
	}
	return []slog.Attr{slog.String("config_file", configFile)}
}

// FileContext creates context attributes for file operations
func FileContext(filePath string) []slog.Attr {
	if filePath == "" {
		return nil
	}
	return []slog.Attr{slog.String("file_path", filePath)}
}

// URLContext creates context attributes for URL/API operations
func URLContext(url string) []slog.Attr {
	if url == "" {
		return nil
	}
	return []slog.Attr{slog.String("url", url)}
}
