package privacy

// SanitizedError wraps an error while providing a scrubbed message for logging.
// The original error stays reachable through Unwrap.
type SanitizedError struct {
	original     error
	sanitizedMsg string
}

// Error returns the sanitized error message, safe for logging.
func (e *SanitizedError) Error() string {
	return e.sanitizedMsg
}

// Unwrap returns the original error, allowing errors.Is() and errors.As() to work.
func (e *SanitizedError) Unwrap() error {
	return e.original
}

// WrapError scrubs an error message with ScrubMessage. Returns nil for a nil error.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &SanitizedError{
		original:     err,
		sanitizedMsg: ScrubMessage(err.Error()),
	}
}
