package tetherdb

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"ErrNotFound", ErrNotFound, "document not found"},
		{"ErrNoDocuments", ErrNoDocuments, "no documents found"},
		{"ErrTypeMismatch", ErrTypeMismatch, "document must be a mapping with string keys"},
		{"ErrIDSpaceExhausted", ErrIDSpaceExhausted, "id space exhausted"},
		{"ErrStoreUnavailable", ErrStoreUnavailable, "store unavailable"},
		{"ErrInvalidConfig", ErrInvalidConfig, "invalid configuration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.want {
				t.Errorf("error message = %q, want %q", tt.err.Error(), tt.want)
			}
		})
	}
}

func TestWithContext(t *testing.T) {
	baseErr := errors.New("base error")
	ctx := map[string]interface{}{
		"id":       "4711",
		"attempts": 64,
	}

	err := WithContext(baseErr, ctx)

	var errWithCtx *ErrorWithContext
	if !errors.As(err, &errWithCtx) {
		t.Fatalf("expected ErrorWithContext, got %T", err)
	}

	if !errors.Is(err, baseErr) {
		t.Error("expected error to wrap base error")
	}

	if errWithCtx.Context["id"] != "4711" {
		t.Errorf("context id = %v, want '4711'", errWithCtx.Context["id"])
	}
	if errWithCtx.Context["attempts"] != 64 {
		t.Errorf("context attempts = %v, want 64", errWithCtx.Context["attempts"])
	}

	if WithContext(nil, ctx) != nil {
		t.Error("WithContext(nil) should return nil")
	}

	plain := WithContext(baseErr, nil)
	if plain.Error() != "base error" {
		t.Errorf("message without context = %q", plain.Error())
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"direct ErrNotFound", ErrNotFound, true},
		{"wrapped ErrNotFound", WithContext(ErrNotFound, nil), true},
		{"ErrNoDocuments", ErrNoDocuments, true},
		{"fmt wrapped", fmt.Errorf("read: %w", ErrNotFound), true},
		{"other error", errors.New("other"), false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsNotFound(tt.err)
			if got != tt.want {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsCallerError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"ErrTypeMismatch", ErrTypeMismatch, true},
		{"ErrSelectorRequired", ErrSelectorRequired, true},
		{"wrapped ErrInvalidPredicate", WithContext(ErrInvalidPredicate, nil), true},
		{"ErrConfigurationMissing", ErrConfigurationMissing, true},
		{"ErrNotFound", ErrNotFound, false},
		{"ErrStoreUnavailable", ErrStoreUnavailable, false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsCallerError(tt.err)
			if got != tt.want {
				t.Errorf("IsCallerError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsUnavailable(t *testing.T) {
	if !IsUnavailable(WithContext(ErrStoreUnavailable, map[string]interface{}{"path": "/x"})) {
		t.Error("wrapped ErrStoreUnavailable should be unavailable")
	}
	if IsUnavailable(ErrNotFound) {
		t.Error("ErrNotFound should not be unavailable")
	}
}
