package errorutil

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
)

// FileError represents a file operation error with additional context
type FileError struct {
	Operation  string // "read", "write_temp", "move", "remove", ...
	Path       string
	Underlying error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s operation failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

func (e *FileError) Unwrap() error {
	return e.Underlying
}

// NewFileError creates a new FileError
func NewFileError(operation, path string, err error) *FileError {
	return &FileError{Operation: operation, Path: path, Underlying: err}
}

// LogFileError logs a file error with appropriate structured context
func LogFileError(logger *slog.Logger, fileErr *FileError) *FileError {
	if logger == nil {
		return fileErr
	}

	logger.Error("File operation failed",
		slog.String("operation", fileErr.Operation),
		slog.String("file_path", fileErr.Path),
		slog.String("directory", filepath.Dir(fileErr.Path)),
		slog.String("error", fileErr.Underlying.Error()),
		slog.String("error_type", fileErrorType(fileErr.Underlying)))
	return fileErr
}

func fileErrorType(err error) string {
	switch {
	case err == nil:
		return "unknown"
	case errors.Is(err, fs.ErrNotExist):
		return "file_not_found"
	case errors.Is(err, fs.ErrPermission):
		return "permission_denied"
	case errors.Is(err, fs.ErrExist):
		return "file_exists"
	case errors.Is(err, syscall.ENOSPC):
		return "no_space_left"
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return "path_error_" + pathErr.Op
	}
	return "generic_file_error"
}

// DirectoryError represents a directory operation error
type DirectoryError struct {
	Operation  string
	Path       string
	Underlying error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("directory %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

func (e *DirectoryError) Unwrap() error {
	return e.Underlying
}

// EnsureDirectoryWithLogging ensures a directory exists, logging any errors
func EnsureDirectoryWithLogging(logger *slog.Logger, path string, perm os.FileMode) error {
	if err := os.MkdirAll(path, perm); err != nil {
		dirErr := &DirectoryError{Operation: "create", Path: path, Underlying: err}
		if logger != nil {
			logger.Error("Directory operation failed",
				slog.String("operation", dirErr.Operation),
				slog.String("directory_path", path),
				slog.String("error", err.Error()),
				slog.String("error_type", fileErrorType(err)))
		}
		return dirErr
	}

	if logger != nil {
		logger.Debug("Directory ensured",
			slog.String("directory_path", path),
			slog.String("permissions", perm.String()))
	}
	return nil
}

// SafeFileWrite writes data to a sibling temp file and renames it over path,
// so readers never observe a partially written session or cache file.
func SafeFileWrite(logger *slog.Logger, path string, data []byte, perm os.FileMode) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, perm); err != nil {
		return LogFileError(logger, NewFileError("write_temp", tempPath, err))
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return LogFileError(logger, NewFileError("move", path, err))
	}

	if logger != nil {
		logger.Debug("File written successfully",
			slog.String("file_path", path),
			slog.Int("bytes_written", len(data)),
			slog.String("permissions", perm.String()))
	}
	return nil
}

// RemoveMatching deletes files in dir that match a glob pattern and returns
// how many were removed. The last removal error, if any, is returned.
func RemoveMatching(logger *slog.Logger, dir, pattern string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return 0, &DirectoryError{Operation: "glob", Path: dir, Underlying: err}
	}

	removed := 0
	var lastErr error
	for _, match := range matches {
		if err := os.Remove(match); err != nil {
			lastErr = LogFileError(logger, NewFileError("remove", match, err))
			continue
		}
		removed++
	}

	if logger != nil {
		logger.Debug("Removed stale files",
			slog.String("directory", dir),
			slog.String("pattern", pattern),
			slog.Int("files_removed", removed),
			slog.Int("total_matches", len(matches)))
	}
	return removed, lastErr
}
