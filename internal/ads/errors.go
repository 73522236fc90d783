package ads

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the id does not exist in its collection.
	ErrNotFound = errors.New("ad not found")
	// ErrValidation matches every rejected input. The message of the
	// returned error is safe to show to API callers.
	ErrValidation = errors.New("validation failed")
	// ErrStorage wraps backend I/O failures.
	ErrStorage = errors.New("storage error")
	// ErrBackendUnavailable means no backend is configured.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// inputError is a validation failure with a caller-facing message.
type inputError struct {
	msg string
}

func (e *inputError) Error() string { return e.msg }

func (e *inputError) Is(target error) bool { return target == ErrValidation }

func invalid(format string, args ...any) error {
	return &inputError{msg: fmt.Sprintf(format, args...)}
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}
