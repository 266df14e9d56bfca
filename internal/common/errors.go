package common

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Callers use errors.Is against these; the
// transport layer maps them to HTTP status codes.
var (
	ErrValidation     = errors.New("validation error")
	ErrNotFound       = errors.New("not found")
	ErrNotOwner       = errors.New("not owner")
	ErrNotCancellable = errors.New("not cancellable")
	ErrNotAmendable   = errors.New("not amendable")
	ErrNotAuthorized  = errors.New("not authorized")
)

// ValidationErrorf builds a detailed, errors.Is(ErrValidation)-matching error.
func ValidationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// NotFoundf builds a detailed, errors.Is(ErrNotFound)-matching error.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...)
}

// NotOwnerf builds a detailed, errors.Is(ErrNotOwner)-matching error.
func NotOwnerf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrNotOwner}, args...)...)
}

// NotCancellablef builds a detailed, errors.Is(ErrNotCancellable)-matching error.
func NotCancellablef(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrNotCancellable}, args...)...)
}

// NotAmendablef builds a detailed, errors.Is(ErrNotAmendable)-matching error.
func NotAmendablef(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrNotAmendable}, args...)...)
}
