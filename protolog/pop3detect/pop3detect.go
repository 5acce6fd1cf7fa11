// Package pop3detect implements protolog.SecretDetector for the POP3
// client->server direction: redacts USER/PASS/APOP arguments and the
// base64 body of an AUTH exchange.
package pop3detect

import (
	"strings"

	"github.com/mailcore/mailproto/protolog"
)

// Detector tracks POP3 command lines sent by the client and flags the
// byte ranges that carry credentials. It is byte-position accurate:
// Detect may be called with any partitioning of the overall stream, in
// order, and the union of results equals what a single whole-buffer call
// would report.
type Detector struct {
	// pendingLine accumulates partial line text across Detect calls.
	pendingLine strings.Builder
	// pendingStart is the absolute offset at which pendingLine began.
	pendingStart int

	// inAuthExchange is true after "AUTH MECH" with no initial response,
	// while subsequent standalone base64 lines are still credentials.
	inAuthExchange bool
}

// New creates a Detector positioned at the start of the client stream.
func New() *Detector {
	return &Detector{}
}

// NotifyServerReply must be called by the caller with each server status
// line observed (a line starting with "+OK" or "-ERR"), so the detector
// knows when an in-progress AUTH exchange has closed.
func (d *Detector) NotifyServerReply(line string) {
	if strings.HasPrefix(line, "+OK") || strings.HasPrefix(line, "-ERR") {
		d.inAuthExchange = false
	}
}

// Detect implements protolog.SecretDetector.
func (d *Detector) Detect(offset int, data []byte) []protolog.Interval {
	if d.pendingLine.Len() == 0 {
		d.pendingStart = offset
	}

	var out []protolog.Interval
	start := 0
	for i := 0; i < len(data); i++ {
		if data[i] != '\n' {
			continue
		}
		d.pendingLine.Write(data[start:i])
		line := d.pendingLine.String()
		lineStart := d.pendingStart
		out = append(out, d.detectLine(lineStart, line)...)
		d.pendingLine.Reset()
		start = i + 1
		d.pendingStart = offset + start
	}
	d.pendingLine.Write(data[start:])
	return out
}

func (d *Detector) detectLine(lineStart int, rawLine string) []protolog.Interval {
	line := strings.TrimSuffix(rawLine, "\r")

	upper := strings.ToUpper(line)
	switch {
	case strings.HasPrefix(upper, "USER "):
		argStart := lineStart + len("USER ")
		return []protolog.Interval{{Start: argStart, Length: len(line) - len("USER ")}}

	case strings.HasPrefix(upper, "PASS "):
		argStart := lineStart + len("PASS ")
		return []protolog.Interval{{Start: argStart, Length: len(line) - len("PASS ")}}

	case strings.HasPrefix(upper, "APOP "):
		argStart := lineStart + len("APOP ")
		return []protolog.Interval{{Start: argStart, Length: len(line) - len("APOP ")}}

	case strings.HasPrefix(upper, "AUTH "):
		rest := strings.TrimSpace(line[len("AUTH "):])
		fields := strings.Fields(rest)
		if len(fields) >= 2 {
			// AUTH MECH ir: redact only the initial-response token.
			irOffset := lineStart + strings.LastIndex(line, fields[len(fields)-1])
			return []protolog.Interval{{Start: irOffset, Length: len(fields[len(fields)-1])}}
		}
		// AUTH MECH with no initial response: subsequent standalone
		// lines are base64 credentials until the server closes it.
		d.inAuthExchange = true
		return nil

	default:
		if d.inAuthExchange {
			return []protolog.Interval{{Start: lineStart, Length: len(line)}}
		}
		return nil
	}
}
