package pop3

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/mailcore/mailproto/wire"
)

// RetrLines returns message num line-by-line, UTF-8 decoded with invalid
// byte sequences substituted by the replacement character.
func (s *Session) RetrLines(num int) ([]string, error) {
	lines, err := s.retrieveMultiline("RETR", num)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = strings.ToValidUTF8(line, "�")
	}
	return out, nil
}

// RetrRaw returns the exact 8-bit-clean payload of message num: the bytes
// between the status line and the terminating ".\r\n", dot-unstuffed, with
// CRLF line endings restored but without a final trailing CRLF.
func (s *Session) RetrRaw(num int) ([]byte, error) {
	lines, err := s.retrieveMultiline("RETR", num)
	if err != nil {
		return nil, err
	}
	return joinRaw(lines), nil
}

// RetrStream streams message num to fn one dot-unstuffed line at a time
// (CRLF stripped), without buffering the whole message in memory. If fn
// returns an error, the remaining lines are drained from the connection
// before returning it so the session stays usable.
func (s *Session) RetrStream(num int, fn func(line []byte) error) error {
	return s.streamMultiline("RETR", num, fn)
}

// TopLines returns the headers and the first n body lines of message num,
// line-by-line, UTF-8 sanitized.
func (s *Session) TopLines(num, n int) ([]string, error) {
	lines, err := s.retrieveMultilineN("TOP", num, n)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = strings.ToValidUTF8(line, "�")
	}
	return out, nil
}

// TopRaw returns the raw 8-bit-clean payload of TOP num n.
func (s *Session) TopRaw(num, n int) ([]byte, error) {
	lines, err := s.retrieveMultilineN("TOP", num, n)
	if err != nil {
		return nil, err
	}
	return joinRaw(lines), nil
}

// TopStream streams TOP num n to fn one line at a time.
func (s *Session) TopStream(num, n int, fn func(line []byte) error) error {
	return s.streamMultilineN("TOP", num, n, fn)
}

func joinRaw(lines []string) []byte {
	var buf bytes.Buffer
	for i, line := range lines {
		if i > 0 {
			buf.WriteString("\r\n")
		}
		buf.WriteString(line)
	}
	return buf.Bytes()
}

func (s *Session) retrieveMultiline(name string, num int) ([]string, error) {
	if err := s.requirePhase(name, PhaseAuthenticated); err != nil {
		return nil, err
	}
	status, msg, err := s.command("%s %d", name, num)
	if err != nil {
		return nil, err
	}
	if status != wire.Pop3StatusOK {
		return nil, &Error{Command: name, Message: msg}
	}
	return s.readMultiline()
}

func (s *Session) retrieveMultilineN(name string, num, n int) ([]string, error) {
	if err := s.requirePhase(name, PhaseAuthenticated); err != nil {
		return nil, err
	}
	status, msg, err := s.command("%s %d %d", name, num, n)
	if err != nil {
		return nil, err
	}
	if status != wire.Pop3StatusOK {
		return nil, &Error{Command: name, Message: msg}
	}
	return s.readMultiline()
}

func (s *Session) streamMultiline(name string, num int, fn func(line []byte) error) error {
	if err := s.requirePhase(name, PhaseAuthenticated); err != nil {
		return err
	}
	status, msg, err := s.command("%s %d", name, num)
	if err != nil {
		return err
	}
	if status != wire.Pop3StatusOK {
		return &Error{Command: name, Message: msg}
	}
	return s.streamBody(fn)
}

func (s *Session) streamMultilineN(name string, num, n int, fn func(line []byte) error) error {
	if err := s.requirePhase(name, PhaseAuthenticated); err != nil {
		return err
	}
	status, msg, err := s.command("%s %d %d", name, num, n)
	if err != nil {
		return err
	}
	if status != wire.Pop3StatusOK {
		return &Error{Command: name, Message: msg}
	}
	return s.streamBody(fn)
}

// streamBody reads body lines until the terminator, invoking fn per line.
// On a callback error, the remaining lines are still drained so the wire
// stays framed for the next command.
func (s *Session) streamBody(fn func(line []byte) error) error {
	var callbackErr error
	for {
		line, err := s.readLine()
		if err != nil {
			if callbackErr != nil {
				return callbackErr
			}
			return err
		}
		if line == "." {
			return callbackErr
		}
		if strings.HasPrefix(line, ".") {
			line = line[1:]
		}
		if callbackErr == nil {
			if cbErr := fn([]byte(line)); cbErr != nil {
				callbackErr = fmt.Errorf("pop3: stream callback: %w", cbErr)
			}
		}
	}
}
