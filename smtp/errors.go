// Package smtp implements a client-side SMTP/ESMTP (RFC 5321) session:
// EHLO/HELO negotiation, SASL authentication, and the three envelope
// submission modes (sequential DATA, pipelined, and BDAT chunking).
package smtp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mailcore/mailproto/retry"
	"github.com/mailcore/mailproto/wire"
)

// Phase is the session's connection phase.
type Phase int

const (
	// PhaseDisconnected is the phase before a connection is established.
	PhaseDisconnected Phase = iota
	// PhaseConnected is the phase after the server greeting, before
	// authentication.
	PhaseConnected
	// PhaseAuthenticated is the phase after a successful AUTH exchange.
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseDisconnected:
		return "Disconnected"
	case PhaseConnected:
		return "Connected"
	case PhaseAuthenticated:
		return "Authenticated"
	default:
		return "Unknown"
	}
}

// Severity classifies an SMTP reply code per spec.md §4.5: 4xx is
// transient and retry-eligible, 5xx is permanent.
type Severity int

const (
	SeverityPositive Severity = iota
	SeverityTransient
	SeverityPermanent
)

// ClassifyCode returns the Severity of a three-digit SMTP reply code.
func ClassifyCode(code int) Severity {
	switch code / 100 {
	case 4:
		return SeverityTransient
	case 5:
		return SeverityPermanent
	default:
		return SeverityPositive
	}
}

// Error is a 4xx/5xx SMTP reply.
type Error struct {
	Command        string
	Response       wire.SmtpResponse
	EnhancedStatus string // "X.Y.Z" if the reply text carried one
}

func (e *Error) Error() string {
	text := strings.Join(e.Response.Lines, "; ")
	if e.EnhancedStatus != "" {
		return fmt.Sprintf("smtp: %s: %d %s %s", e.Command, e.Response.Code, e.EnhancedStatus, text)
	}
	return fmt.Sprintf("smtp: %s: %d %s", e.Command, e.Response.Code, text)
}

// Severity classifies this error's reply code.
func (e *Error) Severity() Severity {
	return ClassifyCode(e.Response.Code)
}

// Classification implements retry.Classified per spec.md §4.9's built-in
// rule: SMTP 4xx is transient, 5xx is permanent.
func (e *Error) Classification() retry.Classification {
	if e.Severity() == SeverityTransient {
		return retry.Transient
	}
	return retry.Permanent
}

// newError builds an *Error from a non-2xx/3xx response, extracting an
// enhanced status code (RFC 3463) from the first line's leading token if
// present.
func newError(command string, resp wire.SmtpResponse) *Error {
	enhanced := ""
	if len(resp.Lines) > 0 {
		enhanced = extractEnhancedStatus(resp.Lines[0])
	}
	return &Error{Command: command, Response: resp, EnhancedStatus: enhanced}
}

// extractEnhancedStatus extracts a leading "X.Y.Z " enhanced status code
// from reply text, e.g. "5.1.1 Mailbox unavailable" -> "5.1.1". Returns ""
// if the text doesn't start with that form.
func extractEnhancedStatus(text string) string {
	fields := strings.SplitN(text, " ", 2)
	if len(fields) == 0 {
		return ""
	}
	candidate := fields[0]
	parts := strings.Split(candidate, ".")
	if len(parts) != 3 {
		return ""
	}
	for _, p := range parts {
		if p == "" {
			return ""
		}
		if _, err := strconv.Atoi(p); err != nil {
			return ""
		}
	}
	return candidate
}

// ErrWrongPhase is returned when a command is issued in a phase that
// doesn't permit it.
type ErrWrongPhase struct {
	Command string
	Have    Phase
	Want    Phase
}

func (e *ErrWrongPhase) Error() string {
	return fmt.Sprintf("smtp: %s requires phase %s, have %s", e.Command, e.Want, e.Have)
}
