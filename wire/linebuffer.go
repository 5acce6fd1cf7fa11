package wire

import "bytes"

// LineBuffer incrementally splits arbitrary byte chunks into CRLF-terminated
// lines. It never blocks, never enforces a maximum length, and tolerates a
// CRLF terminator split across two Feed calls.
type LineBuffer struct {
	buf  []byte
	line bytes.Buffer
}

// NewLineBuffer creates a new, empty LineBuffer.
func NewLineBuffer() *LineBuffer {
	return &LineBuffer{}
}

// Feed appends p and returns every line (CRLF stripped) that became
// complete as a result, in order.
func (b *LineBuffer) Feed(p []byte) []string {
	b.buf = append(b.buf, p...)

	var out []string
	for {
		idx := bytes.IndexByte(b.buf, '\n')
		if idx < 0 {
			if len(b.buf) > 0 && b.buf[len(b.buf)-1] == '\r' {
				b.line.Write(b.buf[:len(b.buf)-1])
				b.buf = b.buf[len(b.buf)-1:]
			} else {
				b.line.Write(b.buf)
				b.buf = b.buf[:0]
			}
			return out
		}

		segment := b.buf[:idx]
		if len(segment) > 0 && segment[len(segment)-1] == '\r' {
			segment = segment[:len(segment)-1]
		}
		b.line.Write(segment)
		b.buf = b.buf[idx+1:]

		out = append(out, b.line.String())
		b.line.Reset()
	}
}
