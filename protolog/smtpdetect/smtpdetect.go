// Package smtpdetect implements protolog.SecretDetector for the SMTP
// client->server direction: redacts the initial response of an AUTH
// command and any subsequent standalone base64 response line until the
// exchange closes.
package smtpdetect

import (
	"strings"

	"github.com/mailcore/mailproto/protolog"
)

// Detector tracks SMTP command lines sent by the client during an AUTH
// exchange.
type Detector struct {
	pendingLine  strings.Builder
	pendingStart int

	inAuthExchange bool
}

// New creates a Detector positioned at the start of the client stream.
func New() *Detector {
	return &Detector{}
}

// NotifyServerReply must be called with each server status line observed;
// a 2xx or 5xx reply closes an in-progress AUTH exchange.
func (d *Detector) NotifyServerReply(line string) {
	if len(line) < 3 {
		return
	}
	switch line[0] {
	case '2', '5':
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

	if strings.HasPrefix(upper, "AUTH ") {
		rest := strings.TrimSpace(line[len("AUTH "):])
		fields := strings.Fields(rest)
		if len(fields) >= 2 {
			ir := fields[len(fields)-1]
			irOffset := lineStart + strings.LastIndex(line, ir)
			return []protolog.Interval{{Start: irOffset, Length: len(ir)}}
		}
		d.inAuthExchange = true
		return nil
	}

	if d.inAuthExchange {
		return []protolog.Interval{{Start: lineStart, Length: len(line)}}
	}
	return nil
}
