// Package errs defines the small closed family of error kinds the rest
// of the system classifies failures into. Each outbox/webhook caller
// inspects the Kind to decide retry vs. terminal handling.
package errs

import "fmt"

// Kind is a closed enumeration of the error classes the middleware
// distinguishes between.
type Kind int

const (
	KindInvariantViolation Kind = iota
	KindTransient
	KindPermanent
	KindSignatureFailure
	KindDuplicate
	KindAdvisorUnavailable
	KindLeaseExpired
)

func (k Kind) String() string {
	switch k {
	case KindInvariantViolation:
		return "invariant_violation"
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindSignatureFailure:
		return "signature_failure"
	case KindDuplicate:
		return "duplicate"
	case KindAdvisorUnavailable:
		return "advisor_unavailable"
	case KindLeaseExpired:
		return "lease_expired"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a classification.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a classified error.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds a classified error around a cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

// ClassifyHTTPStatus maps a backend HTTP status code to a Kind: 2xx is
// not an error (callers should not invoke this for success),
// 400/401/403/404/409 are permanent, 408/425/429/5xx are transient.
func ClassifyHTTPStatus(status int) Kind {
	switch {
	case status == 400 || status == 401 || status == 403 || status == 404 || status == 409:
		return KindPermanent
	case status == 408 || status == 425 || status == 429:
		return KindTransient
	case status >= 500:
		return KindTransient
	default:
		return KindTransient
	}
}
