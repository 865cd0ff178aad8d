package logger

import (
	"fmt"
	"runtime"
	"strings"
)

// FilenameValidationError reports characters that cannot appear in a log
// filename on the current platform.
type FilenameValidationError struct {
	Pattern      string
	InvalidChars []rune
	Platform     string
	Suggestion   string
}

func (e *FilenameValidationError) Error() string {
	quoted := make([]string, len(e.InvalidChars))
	for i, r := range e.InvalidChars {
		quoted[i] = fmt.Sprintf("'%c' (%s)", r, charName(r))
	}
	msg := fmt.Sprintf("invalid filename pattern %q on %s: contains %s",
		e.Pattern, e.Platform, strings.Join(quoted, ", "))
	if e.Suggestion != "" {
		msg += fmt.Sprintf("; try %q", e.Suggestion)
	}
	return msg
}

const windowsReserved = `:*?"<>|`

// ValidateFilenamePattern checks that pattern is a bare filename. Path
// separators are always rejected; Windows-reserved characters only on Windows.
func ValidateFilenamePattern(pattern string) error {
	invalid := make([]rune, 0)
	for _, r := range pattern {
		switch {
		case r == '/' || r == '\\':
			invalid = append(invalid, r)
		case runtime.GOOS == "windows" && strings.ContainsRune(windowsReserved, r):
			invalid = append(invalid, r)
		}
	}
	if len(invalid) == 0 {
		return nil
	}

	return &FilenameValidationError{
		Pattern:      pattern,
		InvalidChars: invalid,
		Platform:     runtime.GOOS,
		Suggestion:   suggestFilename(pattern),
	}
}

func suggestFilename(pattern string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || strings.ContainsRune(windowsReserved, r) {
			return '-'
		}
		return r
	}, pattern)
}

func charName(r rune) string {
	switch r {
	case '/':
		return "slash"
	case '\\':
		return "backslash"
	case ':':
		return "colon"
	case '*':
		return "asterisk"
	case '?':
		return "question mark"
	case '"':
		return "quotes"
	case '<', '>':
		return "angle brackets"
	case '|':
		return "pipe"
	}
	return "reserved"
}
