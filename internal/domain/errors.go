package domain

import "errors"

var (
	ErrUnauthorized     = errors.New("not authorized")
	ErrMissingIdentity  = errors.New("roomId and userId are required")
	ErrMalformedMessage = errors.New("malformed message")
	ErrEmptyMessage     = errors.New("message is required")
	ErrNoRoom           = errors.New("sender has no current room")
	ErrPublishFailed    = errors.New("publish failed")
	ErrLogUnavailable   = errors.New("shared log unavailable")
)

// IsValidationError reports whether err should be reported back to the sender.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrMalformedMessage) || errors.Is(err, ErrEmptyMessage)
}
