package wire

import (
	"bytes"
)

// LiteralMessage is a fully assembled IMAP response unit: a line of text
// with zero or more literal payloads resolved out-of-band. Wherever the
// line contains an unresolved "{N}" placeholder, the payload at the
// matching position in Payloads is the literal's bytes; placeholders are
// consumed in order by a monotonically advancing cursor (see MessageReader).
type LiteralMessage struct {
	// Line is the logical line of the response, with each literal
	// header ("{N}" or "{N+}") left in place as a placeholder.
	Line string
	// Payloads holds the raw bytes collected for each literal marker
	// encountered on Line, in the order they appeared.
	Payloads [][]byte
}

type literalDecoderState int

const (
	stateLine literalDecoderState = iota
	stateLiteral
)

// LiteralDecoder incrementally frames IMAP responses out of arbitrary byte
// chunks, resolving "{N}\r\n" literals inline. Unlike Decoder, it never
// blocks on I/O: Feed accepts whatever bytes are available and returns
// every message that became fully framed as a result. Bytes that don't yet
// complete a message are held until the next Feed call, so any partition
// of the same overall byte stream into chunks yields the same sequence of
// emitted messages.
type LiteralDecoder struct {
	buf   []byte
	state literalDecoderState

	// in-progress message
	line     bytes.Buffer
	payloads [][]byte

	// in-progress literal
	litRemaining int64
	litBuf       bytes.Buffer
}

// NewLiteralDecoder creates a new, empty LiteralDecoder.
func NewLiteralDecoder() *LiteralDecoder {
	return &LiteralDecoder{}
}

// Feed appends p to the decoder's internal buffer and returns every
// LiteralMessage that became fully framed as a result, in order. Feed
// never blocks and never consumes from an io.Reader; callers own reading
// bytes off the transport and handing them to Feed.
func (d *LiteralDecoder) Feed(p []byte) ([]*LiteralMessage, error) {
	d.buf = append(d.buf, p...)

	var out []*LiteralMessage
	for {
		msg, progressed, err := d.step()
		if err != nil {
			return out, err
		}
		if msg != nil {
			out = append(out, msg)
		}
		if !progressed {
			break
		}
	}
	return out, nil
}

// step attempts to make one unit of progress: either collecting the
// remainder of a pending literal, or scanning for the next CRLF-terminated
// line segment. progressed is true whenever internal state advanced (so the
// caller should call step again); msg is non-nil only when a full logical
// line, with all its literals resolved, has just been assembled.
func (d *LiteralDecoder) step() (*LiteralMessage, bool, error) {
	switch d.state {
	case stateLiteral:
		if int64(len(d.buf)) < d.litRemaining {
			// Not enough data yet; consume what we have and wait.
			d.litBuf.Write(d.buf)
			d.litRemaining -= int64(len(d.buf))
			d.buf = d.buf[:0]
			return nil, false, nil
		}
		d.litBuf.Write(d.buf[:d.litRemaining])
		d.buf = d.buf[d.litRemaining:]
		d.litRemaining = 0

		payload := make([]byte, d.litBuf.Len())
		copy(payload, d.litBuf.Bytes())
		d.payloads = append(d.payloads, payload)
		d.litBuf.Reset()
		d.state = stateLine
		return nil, true, nil // signal caller to loop; no message yet

	case stateLine:
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			// No LF yet: hold every byte (a trailing lone CR included)
			// in buf until one arrives, so the segment examined below is
			// always the full text added since the last LF or literal,
			// however the stream was split across Feed calls.
			return nil, false, nil
		}

		// Found LF at idx. The segment up to idx is the rest of this
		// line; a preceding CR (if any) is leniently treated as part
		// of the terminator whether or not it's actually there.
		segment := d.buf[:idx]
		if len(segment) > 0 && segment[len(segment)-1] == '\r' {
			segment = segment[:len(segment)-1]
		}
		d.line.Write(segment)
		d.buf = d.buf[idx+1:]

		// Only test for a literal marker when this step actually appended
		// new text. If segment is empty (a literal's data was immediately
		// followed by CRLF with nothing else on the logical line), the
		// line's cached tail still ends in the marker that was already
		// resolved into the literal we just finished collecting; without
		// this guard that stale tail would be mistaken for a fresh marker
		// and the decoder would wait forever for a literal that isn't
		// there.
		if len(segment) == 0 {
			msg := &LiteralMessage{
				Line:     d.line.String(),
				Payloads: d.payloads,
			}
			d.line.Reset()
			d.payloads = nil
			return msg, true, nil
		}

		lineSoFar := d.line.String()
		if n, nonSync, ok := literalMarker(lineSoFar); ok {
			_ = nonSync
			d.litRemaining = n
			if n == 0 {
				// Zero-length literal: emit an empty payload and stay
				// in LINE state, continuing the same logical line.
				d.payloads = append(d.payloads, []byte{})
				return nil, true, nil
			}
			d.state = stateLiteral
			return nil, true, nil
		}

		// No pending literal: this line is complete.
		msg := &LiteralMessage{
			Line:     d.line.String(),
			Payloads: d.payloads,
		}
		d.line.Reset()
		d.payloads = nil
		return msg, true, nil
	}

	return nil, false, nil
}

// literalMarker reports whether line ends in an unresolved "{N}" or "{N+}"
// literal header. The marker must immediately precede the end of line; a
// "{5}" occurring mid-line (e.g. "{5} rest-of-text") is not a literal
// introduction.
func literalMarker(line string) (size int64, nonSync bool, ok bool) {
	if len(line) == 0 || line[len(line)-1] != '}' {
		return 0, false, false
	}
	end := len(line) - 1
	start := end
	if start > 0 && line[start-1] == '+' {
		nonSync = true
		start--
	}
	numEnd := start
	numStart := numEnd
	for numStart > 0 && line[numStart-1] >= '0' && line[numStart-1] <= '9' {
		numStart--
	}
	if numStart == numEnd {
		return 0, false, false
	}
	if numStart == 0 || line[numStart-1] != '{' {
		return 0, false, false
	}

	var n int64
	for i := numStart; i < numEnd; i++ {
		n = n*10 + int64(line[i]-'0')
	}
	return n, nonSync, true
}
