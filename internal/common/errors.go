package common

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when a document does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError reports bad input to a ledger mutation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Message)
}

// NotFoundError reports an operation on a symbol that is not held.
type NotFoundError struct {
	Symbol string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("position %s not found", e.Symbol)
}

// Is lets errors.Is(err, ErrNotFound) match position lookups too.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ProviderFetchError wraps a failed or malformed external feed response.
type ProviderFetchError struct {
	Feed   string
	Symbol string
	Err    error
}

func (e *ProviderFetchError) Error() string {
	return fmt.Sprintf("%s fetch failed for %s: %v", e.Feed, e.Symbol, e.Err)
}

func (e *ProviderFetchError) Unwrap() error {
	return e.Err
}

// PersistenceError reports a failed durable store write.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is (or wraps) a not-found condition.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsPersistence reports whether err is (or wraps) a PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
