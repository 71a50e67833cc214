package domain

import "errors"

// Domain errors
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrCenterNotFound      = errors.New("recycling center not found")
	ErrInvalidInput        = errors.New("missing or unreadable image")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrBackendUnavailable  = errors.New("detection backend unavailable")
	ErrPersistence         = errors.New("stats could not be recorded")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInternalError       = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrCenterNotFound)
}

// IsInputError checks if an error was caused by the caller's input and
// should not be treated as a server fault.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrUnsupportedFileType) || errors.Is(err, ErrInvalidRequest)
}
