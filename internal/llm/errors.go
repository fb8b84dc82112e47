package llm

import "errors"

// ErrorKind classifies backend failures so retry and re-auth logic stays
// provider-agnostic.
type ErrorKind int

const (
	KindTransport ErrorKind = iota
	KindRateLimited
	KindAuthExpired
	KindUnsupported
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate limited"
	case KindAuthExpired:
		return "auth expired"
	case KindUnsupported:
		return "unsupported"
	default:
		return "transport"
	}
}

// Error is a backend failure tagged with its kind.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether an explicit user retry can reasonably succeed
// without changing anything else.
func (e *Error) Retryable() bool {
	return e.Kind == KindRateLimited || e.Kind == KindTransport
}

// KindOf extracts the kind from err, defaulting to transport for anything
// that is not a backend *Error.
func KindOf(err error) ErrorKind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindTransport
}

func wrapKind(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// statusKind maps an HTTP status to an error kind. Every provider's auth
// failure funnels through AuthExpired here, which is what lets the UI route
// all of them to credential re-entry.
func statusKind(status int) ErrorKind {
	switch {
	case status == 401 || status == 403:
		return KindAuthExpired
	case status == 429:
		return KindRateLimited
	case status >= 400 && status < 500:
		return KindUnsupported
	default:
		return KindTransport
	}
}
