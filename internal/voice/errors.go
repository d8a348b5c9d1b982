package voice

import "errors"

// ErrorKind classifies failures surfaced through the session error callback.
type ErrorKind string

const (
	ErrPermissionDenied  ErrorKind = "permission_denied"
	ErrDeviceUnavailable ErrorKind = "device_unavailable"
	ErrTransportFailure  ErrorKind = "transport_failure"
	ErrMalformedResponse ErrorKind = "malformed_response"
	ErrUnknown           ErrorKind = "unknown"
)

// Error pairs a failure kind with its cause.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Tag wraps err with kind. Tagging a nil error returns nil; an already tagged
// error keeps its original kind.
func Tag(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	var ve *Error
	if errors.As(err, &ve) {
		return err
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf extracts the kind from err, defaulting to ErrUnknown.
func KindOf(err error) ErrorKind {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return ErrUnknown
}
