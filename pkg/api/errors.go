package api

import (
	"errors"
	"fmt"
)

// Kind classifies a fetch failure. The retry layer keys its backoff
// decision on it, so classification must survive wrapping.
type Kind int

const (
	// KindUnknown covers everything that does not fit another kind,
	// including logical failures reported inside an HTTP 200 envelope.
	KindUnknown Kind = iota
	// KindInvalidParameter means the query failed local validation and
	// no network call was made.
	KindInvalidParameter
	// KindUnauthorized means the upstream rejected the credential.
	KindUnauthorized
	// KindTimeout means the connection was aborted or timed out.
	KindTimeout
	// KindNoResponse means the request went out but no response came back.
	KindNoResponse
	// KindServerError means the upstream answered with a 5xx status.
	KindServerError
)

func (k Kind) String() string {
	switch k {
	case KindInvalidParameter:
		return "invalid parameter"
	case KindUnauthorized:
		return "unauthorized"
	case KindTimeout:
		return "timeout"
	case KindNoResponse:
		return "no response"
	case KindServerError:
		return "server error"
	}
	return "unknown"
}

// Error is the typed failure returned by Client.Fetch.
type Error struct {
	Kind    Kind
	Message string
	// Status is the HTTP status code, if a response was received.
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind, so errors.Is works against kind sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewInvalidParameter returns a validation error, for callers that
// validate input before building a Query.
func NewInvalidParameter(message string) *Error {
	return newError(KindInvalidParameter, message)
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from err, KindUnknown if err is not a fetch
// error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsInvalidParameter reports whether err is a validation failure.
func IsInvalidParameter(err error) bool { return is(err, KindInvalidParameter) }

// IsUnauthorized reports whether err is a credential rejection.
func IsUnauthorized(err error) bool { return is(err, KindUnauthorized) }

// IsTimeout reports whether err is a timeout.
func IsTimeout(err error) bool { return is(err, KindTimeout) }

// IsNoResponse reports whether err is a sent-but-unanswered failure.
func IsNoResponse(err error) bool { return is(err, KindNoResponse) }

// IsServerError reports whether err is an upstream 5xx.
func IsServerError(err error) bool { return is(err, KindServerError) }

// IsRetryable reports whether a retry could plausibly succeed. Invalid
// parameters and rejected credentials never are; retrying them wastes
// attempts and hides the real problem.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindNoResponse, KindServerError:
		return true
	}
	return false
}

func is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
