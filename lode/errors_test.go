package lode

import (
	"errors"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		errMsg   string
		wantKind error
	}{
		{"context deadline exceeded", "context deadline exceeded", ErrTimeout},
		{"operation timed out", "operation timed out", ErrTimeout},
		{"AccessDenied response", "AccessDenied: you do not have access", ErrAccessDenied},
		{"HTTP 403", "received status 403", ErrAccessDenied},
		{"permission denied", "open /ledger/x: permission denied", ErrPermissionDenied},
		{"missing key", "NoSuchKey: the specified key does not exist", ErrNotFound},
		{"disk full", "write: no space left on device", ErrDiskFull},
		{"credentials", "failed to retrieve credentials", ErrAuth},
		{"expired token", "ExpiredToken: token has expired", ErrAuth},
		{"connection refused", "dial tcp 127.0.0.1:9000: connection refused", ErrNetwork},
		{"unknown", "something odd", errUnclassified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyError(errors.New(tt.errMsg)); got != tt.wantKind {
				t.Errorf("classifyError(%q) = %v, want %v", tt.errMsg, got, tt.wantKind)
			}
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestWrap(t *testing.T) {
	if wrap(nil, "write", "x") != nil {
		t.Error("wrap(nil) must be nil")
	}

	err := wrap(timeoutErr{}, "read", "snapshots")
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
	var se *StorageError
	if !errors.As(err, &se) || se.Op != "read" || se.Path != "snapshots" {
		t.Errorf("StorageError = %+v", se)
	}
	if !errors.As(err, new(timeoutErr)) {
		t.Error("underlying error lost from chain")
	}
}
