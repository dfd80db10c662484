package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestSearchError(t *testing.T) {
	underlying := errors.New("query must not be empty")
	err := NewSearchError(42, "setup", underlying)

	if err.Type != ErrorTypeSearch {
		t.Errorf("Expected Type to be ErrorTypeSearch, got %v", err.Type)
	}

	if err.SearchID != 42 {
		t.Errorf("Expected SearchID to be 42, got %d", err.SearchID)
	}

	if !errors.Is(err, underlying) {
		t.Errorf("Expected error to unwrap to underlying error")
	}

	// The user-facing message is the underlying message only
	if err.Error() != "query must not be empty" {
		t.Errorf("Unexpected error message %q", err.Error())
	}

	expectedDetail := "search 42 setup failed: query must not be empty"
	if err.Detail() != expectedDetail {
		t.Errorf("Expected detail %q, got %q", expectedDetail, err.Detail())
	}
}

func TestSearchError_DefaultMessage(t *testing.T) {
	err := NewSearchError(1, "walk", nil)
	if err.Error() != DefaultSearchFailure {
		t.Errorf("Expected %q, got %q", DefaultSearchFailure, err.Error())
	}
}

func TestFileError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType ErrorType
	}{
		{"permission", fs.ErrPermission, ErrorTypePermission},
		{"wrapped permission", fmt.Errorf("open: %w", fs.ErrPermission), ErrorTypePermission},
		{"not found", fs.ErrNotExist, ErrorTypeFileNotFound},
		{"other", errors.New("input/output error"), ErrorTypeIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewFileError("read", "/path/to/file", tt.err)
			if err.Type != tt.wantType {
				t.Errorf("Expected Type %v, got %v", tt.wantType, err.Type)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("Expected error to unwrap to underlying error")
			}
		})
	}

	err := NewFileError("stat", "/a/b", errors.New("boom"))
	expectedMsg := "file stat failed for /a/b: boom"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}
}

func TestProtocolError(t *testing.T) {
	underlying := errors.New("unexpected end of JSON input")
	err := NewProtocolError("search:start", underlying)

	if !errors.Is(err, underlying) {
		t.Errorf("Expected error to unwrap to underlying error")
	}

	expectedMsg := "protocol error on search:start: unexpected end of JSON input"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}

	bare := NewProtocolError("", underlying)
	if bare.Error() != "protocol error: unexpected end of JSON input" {
		t.Errorf("Unexpected message %q", bare.Error())
	}
}

func TestConfigError(t *testing.T) {
	underlying := errors.New("must be positive")
	err := NewConfigError("search.max_file_size", "-1", underlying)

	if !errors.Is(err, underlying) {
		t.Errorf("Expected error to unwrap to underlying error")
	}

	expectedMsg := "config error for field search.max_file_size (value -1): must be positive"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}

	noValue := NewConfigError("search", "", underlying)
	if noValue.Error() != "config error for field search: must be positive" {
		t.Errorf("Unexpected message %q", noValue.Error())
	}
}

func TestMultiError(t *testing.T) {
	err1 := errors.New("error 1")
	err2 := errors.New("error 2")

	multi := NewMultiError([]error{err1, nil, err2})
	if len(multi.Errors) != 2 {
		t.Errorf("Expected 2 errors after filtering nils, got %d", len(multi.Errors))
	}

	if !errors.Is(multi, err1) || !errors.Is(multi, err2) {
		t.Errorf("Expected multi error to match both underlying errors")
	}

	single := NewMultiError([]error{err1})
	if single.Error() != "error 1" {
		t.Errorf("Expected single error message, got %q", single.Error())
	}

	empty := NewMultiError([]error{nil})
	if empty.ErrorOrNil() != nil {
		t.Errorf("Expected nil from empty multi error")
	}
	if empty.Error() != "no errors" {
		t.Errorf("Unexpected message %q", empty.Error())
	}
}
