package wire

import (
	"fmt"
	"strings"
)

// Pop3Status is the status word of a single-line POP3 response.
type Pop3Status int

const (
	Pop3StatusOK Pop3Status = iota
	Pop3StatusErr
	Pop3StatusContinuation
)

// Pop3Event is one decoded POP3 protocol unit: either a single-line
// response or (once ExpectMultiline has been armed) a collected multiline
// body.
type Pop3Event struct {
	// Single-line event.
	Status  Pop3Status
	Message string

	// Multiline event (Multiline is true). Lines have been dot-unstuffed
	// and the terminating "." line is not included.
	Multiline bool
	Lines     []string
}

// Pop3MultilineDecoder incrementally frames POP3 responses. By default
// each line yields a single-line event; calling ExpectMultiline before
// feeding the response to a multiline command (LIST, UIDL, CAPA, TOP,
// RETR) switches the next response into multiline-collection mode, which
// reverts to single-line mode once the terminator is seen.
type Pop3MultilineDecoder struct {
	lines  *LineBuffer
	expect bool

	collecting bool
	status     Pop3Status
	first      string
	body       []string
}

// NewPop3MultilineDecoder creates a new, empty decoder.
func NewPop3MultilineDecoder() *Pop3MultilineDecoder {
	return &Pop3MultilineDecoder{lines: NewLineBuffer()}
}

// ExpectMultiline arms the decoder to treat the next response as a
// multiline reply. Must be called after sending a multiline-reply command
// and before the corresponding Feed calls arrive.
func (d *Pop3MultilineDecoder) ExpectMultiline() {
	d.expect = true
}

// Feed appends p and returns every Pop3Event that became complete.
func (d *Pop3MultilineDecoder) Feed(p []byte) ([]Pop3Event, error) {
	var out []Pop3Event
	for _, line := range d.lines.Feed(p) {
		ev, err := d.consumeLine(line)
		if err != nil {
			return out, err
		}
		if ev != nil {
			out = append(out, *ev)
		}
	}
	return out, nil
}

func (d *Pop3MultilineDecoder) consumeLine(line string) (*Pop3Event, error) {
	if d.collecting {
		if line == "." {
			d.collecting = false
			ev := &Pop3Event{
				Status:    d.status,
				Message:   d.first,
				Multiline: true,
				Lines:     d.body,
			}
			d.body = nil
			return ev, nil
		}
		if strings.HasPrefix(line, ".") {
			line = line[1:]
		}
		d.body = append(d.body, line)
		return nil, nil
	}

	status, msg, err := ParsePop3StatusLine(line)
	if err != nil {
		return nil, err
	}

	if d.expect && status == Pop3StatusOK {
		d.expect = false
		d.collecting = true
		d.status = status
		d.first = msg
		d.body = nil
		return nil, nil
	}
	d.expect = false
	return &Pop3Event{Status: status, Message: msg}, nil
}

// ParsePop3StatusLine parses a single POP3 status line into its status word
// and trailing text, recognizing "+OK", "-ERR", and the bare "+" continuation
// prompt used by AUTH/APOP base64 exchanges.
func ParsePop3StatusLine(line string) (Pop3Status, string, error) {
	switch {
	case strings.HasPrefix(line, "+OK"):
		return Pop3StatusOK, strings.TrimSpace(strings.TrimPrefix(line, "+OK")), nil
	case strings.HasPrefix(line, "-ERR"):
		return Pop3StatusErr, strings.TrimSpace(strings.TrimPrefix(line, "-ERR")), nil
	case strings.HasPrefix(line, "+"):
		// A continuation prompt for AUTH/APOP base64 exchanges, not a
		// +OK reply: "+OK" is handled above, so anything else starting
		// with "+" is the bare continuation form.
		return Pop3StatusContinuation, strings.TrimSpace(strings.TrimPrefix(line, "+")), nil
	default:
		return 0, "", fmt.Errorf("pop3: malformed status line %q", line)
	}
}
