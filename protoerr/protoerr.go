// Package protoerr provides the cross-protocol error taxonomy shared by
// the pop3, smtp, and pool packages, and marks which kinds are fatal to a
// session (the session must be discarded rather than reused).
//
// Errors carry a stack trace via github.com/rotisserie/eris so a fatal
// error surfacing out of a pooled connection can be diagnosed back to the
// read/write call that tripped it, not just the call site that noticed.
package protoerr

import (
	"github.com/rotisserie/eris"

	"github.com/mailcore/mailproto/retry"
)

// Kind is one of the error taxonomy kinds named by the taxonomy section
// of this module's design: not distinct types, just a label carried on a
// common *Error so the pool and retry layer can dispatch on it without a
// type switch per protocol.
type Kind int

const (
	InvalidPhase Kind = iota
	Timeout
	TransportWrite
	TransportRead
	SmtpError
	Pop3Error
	ImapError
	StartTlsNotSupported
	IdleNotSupported
	NotifyNotSupported
	AuthenticationFailed
	BadResponse
	PoolExhausted
	PoolClosed
)

func (k Kind) String() string {
	switch k {
	case InvalidPhase:
		return "invalid phase"
	case Timeout:
		return "timeout"
	case TransportWrite:
		return "transport write"
	case TransportRead:
		return "transport read"
	case SmtpError:
		return "smtp error"
	case Pop3Error:
		return "pop3 error"
	case ImapError:
		return "imap error"
	case StartTlsNotSupported:
		return "starttls not supported"
	case IdleNotSupported:
		return "idle not supported"
	case NotifyNotSupported:
		return "notify not supported"
	case AuthenticationFailed:
		return "authentication failed"
	case BadResponse:
		return "bad response"
	case PoolExhausted:
		return "pool exhausted"
	case PoolClosed:
		return "pool closed"
	default:
		return "unknown"
	}
}

// Fatal reports whether an error of this kind must mark its session
// broken, per spec.md §7: timeouts, transport write/read failures, and
// protocol-framing violations (reported as BadResponse) are fatal; a
// server-side NO/BAD/-ERR/4xx/5xx for a single command is not.
func (k Kind) Fatal() bool {
	switch k {
	case Timeout, TransportWrite, TransportRead, BadResponse:
		return true
	default:
		return false
	}
}

// Error is a taxonomy-tagged error with an attached stack trace.
type Error struct {
	Kind Kind
	err  error
}

// New creates an *Error of the given kind with a fresh stack trace.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, err: eris.New(message)}
}

// Wrap attaches a stack trace (if cause doesn't already carry one) and a
// taxonomy kind to cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, err: eris.Wrap(cause, message)}
}

func (e *Error) Error() string { return e.Kind.String() + ": " + e.err.Error() }

func (e *Error) Unwrap() error { return e.err }

// Fatal reports whether this error's kind marks the session broken.
func (e *Error) Fatal() bool { return e.Kind.Fatal() }

// Stack renders the attached stack trace for logging/diagnostics.
func (e *Error) Stack() string { return eris.ToString(e.err, true) }

// Is supports errors.Is(err, protoerr.Kind) style matching against a
// sentinel of the same kind with no message.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	return ok && other.Kind == e.Kind
}

// Classification implements retry.Classified per the built-in rules of
// spec.md §4.9: timeouts are transient; a failed transport write/read
// means the connection itself is suspect and must be discarded; auth
// failures and capability-absent errors are permanent.
func (e *Error) Classification() retry.Classification {
	switch e.Kind {
	case Timeout:
		return retry.Transient
	case TransportWrite, TransportRead, BadResponse:
		return retry.RequiresReconnection
	default:
		return retry.Permanent
	}
}
