// Package jgerrors defines the error taxonomy shared by the client and server
// halves of the RPC runtime.
package jgerrors

import "fmt"

// Kind discriminates the family of failure a CallFailed represents, so callers
// can branch on the reason a call did not succeed instead of parsing strings.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidFrame
	KindUnknownSerializer
	KindServiceNotFound
	KindMethodNotFound
	KindInvocationFailed
	KindTimeout
	KindConnect
	KindNoProvider
	KindDirectory
	KindConnectionLost
)

func (k Kind) String() string {
	switch k {
	case KindInvalidFrame:
		return "InvalidFrame"
	case KindUnknownSerializer:
		return "UnknownSerializer"
	case KindServiceNotFound:
		return "ServiceNotFound"
	case KindMethodNotFound:
		return "MethodNotFound"
	case KindInvocationFailed:
		return "InvocationFailed"
	case KindTimeout:
		return "Timeout"
	case KindConnect:
		return "Connect"
	case KindNoProvider:
		return "NoProvider"
	case KindDirectory:
		return "Directory"
	case KindConnectionLost:
		return "ConnectionLost"
	default:
		return "Unknown"
	}
}

// CallFailed is the single error shape observed by a caller of a remote
// method: one kind discriminator plus the server's (or the local runtime's)
// message. No partial success is ever reported.
type CallFailed struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *CallFailed) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CallFailed) Unwrap() error {
	return e.cause
}

// New builds a CallFailed with no wrapped cause.
func New(kind Kind, message string) *CallFailed {
	return &CallFailed{Kind: kind, Message: message}
}

// Wrap builds a CallFailed carrying an underlying cause; Error() still returns
// just kind + message, but errors.Is/As can reach the original cause.
func Wrap(kind Kind, cause error) *CallFailed {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &CallFailed{Kind: kind, Message: msg, cause: cause}
}

// Is reports whether err is a CallFailed of the given kind.
func Is(err error, kind Kind) bool {
	cf, ok := err.(*CallFailed)
	return ok && cf.Kind == kind
}
