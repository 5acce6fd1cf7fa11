// Package imapdetect implements protolog.SecretDetector for the IMAP
// client->server direction: redacts LOGIN arguments and AUTHENTICATE
// continuation lines.
package imapdetect

import (
	"strings"

	"github.com/mailcore/mailproto/protolog"
)

// Detector tracks IMAP command lines sent by the client.
type Detector struct {
	pendingLine  strings.Builder
	pendingStart int

	inAuthContinuation bool
}

// New creates a Detector positioned at the start of the client stream.
func New() *Detector {
	return &Detector{}
}

// NotifyServerReply must be called with each tagged/untagged server reply
// line observed; a tagged OK/NO/BAD closes an in-progress AUTHENTICATE
// continuation exchange.
func (d *Detector) NotifyServerReply(line string) {
	upper := strings.ToUpper(line)
	if strings.Contains(upper, " OK ") || strings.Contains(upper, " NO ") ||
		strings.Contains(upper, " BAD ") || strings.HasSuffix(upper, " OK") {
		d.inAuthContinuation = false
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

	if d.inAuthContinuation {
		// A bare continuation line following AUTHENTICATE: entirely
		// credential-bearing base64.
		return []protolog.Interval{{Start: lineStart, Length: len(line)}}
	}

	fields := strings.Fields(line)
	for i, f := range fields {
		upper := strings.ToUpper(f)
		if upper == "LOGIN" && i+2 < len(fields) {
			userStart := lineStart + indexOfField(line, fields, i+1)
			return []protolog.Interval{
				{Start: userStart, Length: len(line) - (userStart - lineStart)},
			}
		}
		if upper == "AUTHENTICATE" {
			d.inAuthContinuation = true
			return nil
		}
	}
	return nil
}

// indexOfField returns the byte offset of fields[idx] within line,
// computed by walking the preceding fields (all single-space separated
// in IMAP's canonical tag/command/args form).
func indexOfField(line string, fields []string, idx int) int {
	pos := 0
	count := 0
	for i, f := range fields {
		j := strings.Index(line[pos:], f)
		if j < 0 {
			return pos
		}
		pos += j
		if count == idx {
			return pos
		}
		pos += len(f)
		count++
		_ = i
	}
	return pos
}
