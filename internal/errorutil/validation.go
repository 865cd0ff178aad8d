package errorutil

import (
	"fmt"
	"strings"
)

// ValidationError represents a validation error with field context
type ValidationError struct {
	Field       string
	Value       any
	Rule        string
	Message     string
	Suggestions []string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed for field '%s' with rule '%s'", e.Field, e.Rule)
}

// ValidateCoordinate checks if a coordinate is within valid range
func ValidateCoordinate(field string, value float64, isLatitude bool) *ValidationError {
	limit, kind := 180.0, "longitude"
	if isLatitude {
		limit, kind = 90.0, "latitude"
	}

	if value < -limit || value > limit {
		return &ValidationError{
			Field:   field,
			Value:   value,
			Rule:    "coordinate",
			Message: fmt.Sprintf("%s must be between %.1f and %.1f, got %.6f", kind, -limit, limit, value),
			Suggestions: []string{
				"Check coordinate order: [latitude, longitude] in decimal degrees",
			},
		}
	}
	return nil
}

var apiKeyPlaceholders = []string{
	"your-api-key-here",
	"your-key-here",
	"-api-key-here",
	"replace-with-your-key",
	"changeme",
}

// ValidateAPIKey rejects empty, truncated and placeholder keys. The key value
// never appears in the returned error.
func ValidateAPIKey(field string, value string, minLength int) *ValidationError {
	value = strings.TrimSpace(value)
	if value == "" {
		return &ValidationError{
			Field:   field,
			Value:   "[REDACTED]",
			Rule:    "required",
			Message: "API key is required",
		}
	}

	lower := strings.ToLower(value)
	for _, placeholder := range apiKeyPlaceholders {
		if strings.Contains(lower, placeholder) {
			return &ValidationError{
				Field:       field,
				Value:       "[REDACTED]",
				Rule:        "placeholder",
				Message:     "API key appears to be a placeholder value",
				Suggestions: []string{"Replace placeholder with actual API key"},
			}
		}
	}

	if len(value) < minLength {
		return &ValidationError{
			Field:   field,
			Value:   "[REDACTED]",
			Rule:    "min_length",
			Message: fmt.Sprintf("API key too short, expected at least %d characters", minLength),
		}
	}
	return nil
}
