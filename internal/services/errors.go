package services

import (
	"errors"
	"fmt"

	"fundops/backend/internal/notice"
	"fundops/backend/internal/repository"
	"fundops/backend/internal/sideeffect"
)

// Kind sentinels. Match with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid transition")
)

// Error is a classified service failure.
type Error struct {
	Kind    error  // one of ErrNotFound, ErrValidation, ErrInvalidTransition
	Op      string // operation name
	Message string // human-readable reason
	Err     error  // underlying error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the error's kind as well as its chain.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func notFoundf(op, format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Op: op, Message: fmt.Sprintf(format, args...)}
}

func validationf(op, format string, args ...any) error {
	return &Error{Kind: ErrValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

func transitionf(op, format string, args ...any) error {
	return &Error{Kind: ErrInvalidTransition, Op: op, Message: fmt.Sprintf(format, args...)}
}

// classify wraps lower-layer errors into service kinds. Unknown errors are
// wrapped with op and pass through unclassified.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return &Error{Kind: ErrNotFound, Op: op, Message: err.Error(), Err: err}
	case errors.Is(err, sideeffect.ErrValidation),
		errors.Is(err, notice.ErrOutOfRange),
		errors.Is(err, notice.ErrInvalidDayBasis):
		return &Error{Kind: ErrValidation, Op: op, Message: err.Error(), Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
