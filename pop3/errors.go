// Package pop3 implements a client-side POP3 (RFC 1939) session: USER/PASS,
// APOP, and SASL authentication, and the STAT/LIST/UIDL/RETR/TOP/DELE
// transaction commands.
package pop3

import (
	"fmt"

	"github.com/mailcore/mailproto/retry"
)

// Phase is the session's authentication phase.
type Phase int

const (
	// PhaseDisconnected is the phase before a connection is established.
	PhaseDisconnected Phase = iota
	// PhaseConnected is the phase after the greeting, before authentication.
	PhaseConnected
	// PhaseAuthenticated is the phase after USER/PASS, APOP, or AUTH succeeds.
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

// Error is a negative ("-ERR") response from the server.
type Error struct {
	Command string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("pop3: %s: -ERR %s", e.Command, e.Message)
}

// Classification implements retry.Classified. POP3's -ERR carries no
// status code to distinguish transient from permanent, so every -ERR is
// treated as permanent; retrying USER/PASS/APOP/AUTH with the same
// credentials would never succeed, and neither would retrying any other
// command against an unchanged mailbox state.
func (e *Error) Classification() retry.Classification {
	return retry.Permanent
}

// ErrWrongPhase is returned when a command is issued in a phase that
// doesn't permit it (e.g. RETR before authentication).
type ErrWrongPhase struct {
	Command string
	Have    Phase
	Want    Phase
}

func (e *ErrWrongPhase) Error() string {
	return fmt.Sprintf("pop3: %s requires phase %s, have %s", e.Command, e.Want, e.Have)
}
