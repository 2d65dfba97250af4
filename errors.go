package tetherdb

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions
var (
	// Document errors
	ErrNotFound     = errors.New("document not found")
	ErrNoDocuments  = errors.New("no documents found")
	ErrTypeMismatch = errors.New("document must be a mapping with string keys")

	// Argument errors
	ErrSelectorRequired = errors.New("provide an id or select all documents")
	ErrInvalidPredicate = errors.New("invalid filter predicate")
	ErrInvalidArgument  = errors.New("invalid argument")

	// Id errors
	ErrIDSpaceExhausted = errors.New("id space exhausted")

	// Store errors
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidData      = errors.New("stored value is corrupt or cannot be decrypted")

	// Configuration errors
	ErrConfigurationMissing = errors.New("cleanup threshold not provided and no default configured")
	ErrInvalidConfig        = errors.New("invalid configuration")
)

// ErrorWithContext adds additional context to errors for better debugging and logging
type ErrorWithContext struct {
	Err     error
	Context map[string]interface{}
}

func (e *ErrorWithContext) Error() string {
	if len(e.Context) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v (context: %+v)", e.Err, e.Context)
}

func (e *ErrorWithContext) Unwrap() error {
	return e.Err
}

// WithContext adds context to an error
func WithContext(err error, context map[string]interface{}) error {
	if err == nil {
		return nil
	}
	return &ErrorWithContext{
		Err:     err,
		Context: context,
	}
}

// IsNotFound reports whether err means a lookup matched nothing,
// either a single id or a whole filter.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrNoDocuments)
}

// IsUnavailable reports whether err comes from a store that never opened or was closed.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsCallerError reports whether err was caused by the arguments of the call
// rather than by the store.
func IsCallerError(err error) bool {
	return errors.Is(err, ErrTypeMismatch) ||
		errors.Is(err, ErrSelectorRequired) ||
		errors.Is(err, ErrInvalidPredicate) ||
		errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrConfigurationMissing)
}
