package wire

import "bytes"

// DotUnstuffer is a small stateful byte sink that reverses POP3/SMTP
// dot-stuffing: a line that begins with "." has its first "." removed,
// and a line that is exactly "." on its own terminates the stream. Feeding
// it any partitioning of the same input yields the same output, since it
// tracks only whether it is at the start of a line.
type DotUnstuffer struct {
	atLineStart bool
	done        bool
	line        bytes.Buffer
}

// NewDotUnstuffer creates a DotUnstuffer positioned at the start of a line.
func NewDotUnstuffer() *DotUnstuffer {
	return &DotUnstuffer{atLineStart: true}
}

// Done reports whether the terminating "." line has been observed.
func (u *DotUnstuffer) Done() bool {
	return u.done
}

// Feed processes p and returns the unstuffed bytes produced so far. Once
// Done reports true, further Feed calls are no-ops.
func (u *DotUnstuffer) Feed(p []byte) []byte {
	var out []byte
	for _, b := range p {
		if u.done {
			break
		}
		u.line.WriteByte(b)
		if b == '\n' {
			out = append(out, u.flushLine()...)
			u.atLineStart = true
			continue
		}
		u.atLineStart = false
	}
	return out
}

// flushLine drains the pending line buffer. Only called at '\n'.
func (u *DotUnstuffer) flushLine() []byte {
	line := u.line.Bytes()
	u.line.Reset()

	trimmed := line
	switch {
	case bytes.HasSuffix(trimmed, []byte("\r\n")):
		trimmed = trimmed[:len(trimmed)-2]
	case bytes.HasSuffix(trimmed, []byte("\n")):
		trimmed = trimmed[:len(trimmed)-1]
	}
	if string(trimmed) == "." {
		u.done = true
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '.' {
		trimmed = trimmed[1:]
	}
	out := make([]byte, 0, len(trimmed)+2)
	out = append(out, trimmed...)
	out = append(out, '\r', '\n')
	return out
}

// DotStuff applies dot-stuffing to an 8-bit-clean payload: any line
// starting with "." gets an extra "." prepended. Lines are assumed to be
// CRLF-terminated; DotStuff does not itself normalize line endings.
func DotStuff(payload []byte) []byte {
	lines := bytes.Split(payload, []byte("\r\n"))
	for i, line := range lines {
		if len(line) > 0 && line[0] == '.' {
			stuffed := make([]byte, 0, len(line)+1)
			stuffed = append(stuffed, '.')
			stuffed = append(stuffed, line...)
			lines[i] = stuffed
		}
	}
	return bytes.Join(lines, []byte("\r\n"))
}
