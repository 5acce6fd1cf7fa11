// Package protolog implements a protocol trace logger that redacts
// authentication secrets before writing client/server bytes to a sink.
package protolog

import (
	"bytes"
	"log/slog"
)

// Interval is a half-open byte range [Start, Start+Length) within a
// buffer that must be overwritten with the redaction mask before output.
type Interval struct {
	Start  int
	Length int
}

// SecretDetector scans a buffer (or a substring of a larger buffer,
// identified by offset) and returns the intervals that must be redacted.
// Implementations must be byte-position accurate: calling Detect on a
// substring [offset, offset+len(data)) of a larger buffer must return
// intervals consistent with calling Detect on the whole buffer, i.e. the
// union of per-substring detections equals the whole-buffer detection.
type SecretDetector interface {
	// Detect returns redaction intervals for data, which is the bytes at
	// [offset, offset+len(data)) of the logical stream being scanned.
	// Detectors are stateful per direction (client vs server) since
	// redaction rules depend on prior lines (e.g. "after AUTH until
	// +OK/-ERR").
	Detect(offset int, data []byte) []Interval
}

const redactionMask = "[REDACTED]"

// Logger writes client/server byte traces with "C: "/"S: " prefixes,
// applying a SecretDetector to each direction independently before
// writing.
type Logger struct {
	logger *slog.Logger

	clientDetector SecretDetector
	serverDetector SecretDetector

	clientOffset int
	serverOffset int
}

// New creates a Logger that writes through slog at Info level. Either
// detector may be nil to disable redaction for that direction (e.g. a
// protocol that does not need the client-side path redacted).
func New(logger *slog.Logger, clientDetector, serverDetector SecretDetector) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger, clientDetector: clientDetector, serverDetector: serverDetector}
}

// LogClient records bytes written to the server, redacting secrets.
func (l *Logger) LogClient(data []byte) {
	redacted := redact(l.clientDetector, l.clientOffset, data)
	l.clientOffset += len(data)
	l.logger.Info("C: "+string(redacted), slog.String("dir", "C"))
}

// LogServer records bytes read from the server, redacting secrets.
func (l *Logger) LogServer(data []byte) {
	redacted := redact(l.serverDetector, l.serverOffset, data)
	l.serverOffset += len(data)
	l.logger.Info("S: "+string(redacted), slog.String("dir", "S"))
}

func redact(detector SecretDetector, offset int, data []byte) []byte {
	if detector == nil {
		return data
	}
	intervals := detector.Detect(offset, data)
	if len(intervals) == 0 {
		return data
	}
	out := append([]byte(nil), data...)
	for _, iv := range intervals {
		start := iv.Start - offset
		end := start + iv.Length
		if start < 0 {
			start = 0
		}
		if end > len(out) {
			end = len(out)
		}
		if start >= end {
			continue
		}
		mask := bytes.Repeat([]byte(redactionMask), 1)
		for i := start; i < end; i++ {
			if i-start < len(mask) {
				out[i] = mask[i-start]
			} else {
				out[i] = '*'
			}
		}
	}
	return out
}
