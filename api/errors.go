package api

import (
	"errors"
	"fmt"
	"strings"

	"wetterpost/post"
)

// ErrWaterUnavailable marks a water-temperature reading that could not be
// obtained. Callers render without the water panel.
var ErrWaterUnavailable = errors.New("water temperature unavailable")

// ProviderFailure is one provider's contribution to a ProviderError.
type ProviderFailure struct {
	Provider string
	Err      error
}

// ProviderError reports that every configured forecast provider failed for
// a coordinate pair.
type ProviderError struct {
	Coordinates post.Coordinates
	Failures    []ProviderFailure
}

func (e *ProviderError) Error() string {
	if len(e.Failures) == 0 {
		return fmt.Sprintf("no forecast providers configured for %s", e.Coordinates)
	}
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s: %v", f.Provider, f.Err)
	}
	return fmt.Sprintf("all forecast providers failed for %s: %s", e.Coordinates, strings.Join(parts, "; "))
}

func (e *ProviderError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// AuthError is a login or session failure. It aborts the run for one account.
type AuthError struct {
	Username string
	Stage    string // "session", "login", "verify", "totp"
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for %s at %s: %v", e.Username, e.Stage, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// UploadError is a failed album upload. Generated images stay on disk.
type UploadError struct {
	Images []string
	Err    error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("album upload of %d images failed: %v", len(e.Images), e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}
