package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"time"
)

// ErrorType classifies errors raised by the search service
type ErrorType string

const (
	ErrorTypeSearch   ErrorType = "search"
	ErrorTypeProtocol ErrorType = "protocol"

	// File errors
	ErrorTypeFileNotFound ErrorType = "file_not_found"
	ErrorTypePermission   ErrorType = "permission"
	ErrorTypeIO           ErrorType = "io"

	ErrorTypeConfig ErrorType = "config"
)

// DefaultSearchFailure is reported when a failed search has no better message.
const DefaultSearchFailure = "Search failed"

// SearchError is a failure that ends one search
type SearchError struct {
	Type       ErrorType
	SearchID   uint64
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewSearchError creates a new search error
func NewSearchError(searchID uint64, op string, err error) *SearchError {
	return &SearchError{
		Type:       ErrorTypeSearch,
		SearchID:   searchID,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *SearchError) Error() string {
	if e.Underlying == nil {
		return DefaultSearchFailure
	}
	return e.Underlying.Error()
}

// Detail includes the operation and id, for logs
func (e *SearchError) Detail() string {
	return fmt.Sprintf("search %d %s failed: %v", e.SearchID, e.Operation, e.Underlying)
}

// Unwrap returns the underlying error
func (e *SearchError) Unwrap() error {
	return e.Underlying
}

// FileError is a per-file or per-directory I/O fault
type FileError struct {
	Type       ErrorType
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewFileError creates a new file error
func NewFileError(op, path string, err error) *FileError {
	errorType := ErrorTypeIO
	switch {
	case errors.Is(err, fs.ErrPermission):
		errorType = ErrorTypePermission
	case errors.Is(err, fs.ErrNotExist):
		errorType = ErrorTypeFileNotFound
	}

	return &FileError{
		Type:       errorType,
		Path:       path,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *FileError) Error() string {
	return fmt.Sprintf("file %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *FileError) Unwrap() error {
	return e.Underlying
}

// ProtocolError is a malformed or unexpected message
type ProtocolError struct {
	Channel    string
	Underlying error
	Timestamp  time.Time
}

// NewProtocolError creates a new protocol error
func NewProtocolError(channel string, err error) *ProtocolError {
	return &ProtocolError{
		Channel:    channel,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ProtocolError) Error() string {
	if e.Channel == "" {
		return fmt.Sprintf("protocol error: %v", e.Underlying)
	}
	return fmt.Sprintf("protocol error on %s: %v", e.Channel, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ProtocolError) Unwrap() error {
	return e.Underlying
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("config error for field %s: %v", e.Field, e.Underlying)
	}
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error, dropping nil entries
func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// ErrorOrNil returns nil when no errors were collected
func (e *MultiError) ErrorOrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap returns all errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}
