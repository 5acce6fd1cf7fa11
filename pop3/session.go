package pop3

import (
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/mailcore/mailproto/wire"
)

// Session is a POP3 client session over a single connection.
type Session struct {
	conn    net.Conn
	options *Options

	mu        sync.Mutex
	phase     Phase
	greeting  string
	apopNonce string // the <...> challenge from the greeting, if present
	caps      []string

	lineBuf *wire.LineBuffer
	pending []string
	scratch [4096]byte
}

// New creates a Session from an existing connection and reads the greeting.
// The caller is responsible for having already completed any negotiation
// (e.g. TLS) required before the greeting line arrives.
func New(conn net.Conn, opts ...Option) (*Session, error) {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	s := &Session{
		conn:    conn,
		options: options,
		phase:   PhaseConnected,
		lineBuf: wire.NewLineBuffer(),
	}

	line, err := s.readLine()
	if err != nil {
		return nil, fmt.Errorf("reading greeting: %w", err)
	}
	status, msg, err := wire.ParsePop3StatusLine(line)
	if err != nil {
		return nil, fmt.Errorf("parsing greeting: %w", err)
	}
	if status != wire.Pop3StatusOK {
		return nil, &Error{Command: "greeting", Message: msg}
	}
	s.greeting = msg
	s.apopNonce = extractAngleToken(msg)

	s.options.Logger.Debug("greeting", "line", line)
	return s, nil
}

// Dial connects to a POP3 server at the given address.
func Dial(addr string, opts ...Option) (*Session, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	return New(conn, opts...)
}

// DialTLS connects to a POP3 server using implicit TLS (port 995).
func DialTLS(addr string, config *tls.Config, opts ...Option) (*Session, error) {
	conn, err := tls.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("dial TLS: %w", err)
	}
	return New(conn, opts...)
}

// Phase returns the session's current authentication phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Close closes the underlying connection.
func (s *Session) Close() error {
	return s.conn.Close()
}

// Connected reports whether the session's connection is still usable.
// Implements pool.Session.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase != PhaseDisconnected
}

// Authenticated reports whether the session has completed authentication.
// Implements pool.Session.
func (s *Session) Authenticated() bool {
	return s.Phase() == PhaseAuthenticated
}

func (s *Session) requirePhase(cmd string, want Phase) error {
	if s.Phase() != want {
		return &ErrWrongPhase{Command: cmd, Have: s.Phase(), Want: want}
	}
	return nil
}

// readLine blocks until a full CRLF-terminated line is available.
func (s *Session) readLine() (string, error) {
	for len(s.pending) == 0 {
		n, err := s.conn.Read(s.scratch[:])
		if n > 0 {
			if s.options.ProtoLog != nil {
				s.options.ProtoLog.LogServer(s.scratch[:n])
			}
			s.pending = append(s.pending, s.lineBuf.Feed(s.scratch[:n])...)
		}
		if err != nil {
			if len(s.pending) > 0 {
				break
			}
			return "", err
		}
	}
	line := s.pending[0]
	s.pending = s.pending[1:]
	return line, nil
}

// readStatus reads and parses a single status line.
func (s *Session) readStatus() (wire.Pop3Status, string, error) {
	line, err := s.readLine()
	if err != nil {
		return 0, "", err
	}
	return wire.ParsePop3StatusLine(line)
}

// readMultiline reads lines (dot-unstuffed) up to and including the "."
// terminator, which is consumed but not returned.
func (s *Session) readMultiline() ([]string, error) {
	var out []string
	for {
		line, err := s.readLine()
		if err != nil {
			return out, err
		}
		if line == "." {
			return out, nil
		}
		if strings.HasPrefix(line, ".") {
			line = line[1:]
		}
		out = append(out, line)
	}
}

// sendLine writes a command line, appending CRLF.
func (s *Session) sendLine(format string, args ...interface{}) error {
	line := fmt.Sprintf(format, args...)
	s.options.Logger.Debug("send", "line", redactForLog(line))
	raw := []byte(line + "\r\n")
	if s.options.ProtoLog != nil {
		s.options.ProtoLog.LogClient(raw)
	}
	_, err := s.conn.Write(raw)
	return err
}

// command sends a command line and reads back the single status response.
func (s *Session) command(format string, args ...interface{}) (wire.Pop3Status, string, error) {
	if err := s.sendLine(format, args...); err != nil {
		return 0, "", err
	}
	return s.readStatus()
}

// commandOK sends a command and returns an error unless the reply is +OK.
func (s *Session) commandOK(name string, format string, args ...interface{}) error {
	status, msg, err := s.command(format, args...)
	if err != nil {
		return err
	}
	if status != wire.Pop3StatusOK {
		return &Error{Command: name, Message: msg}
	}
	return nil
}

// Noop sends NOOP.
func (s *Session) Noop() error {
	if err := s.requirePhase("NOOP", PhaseAuthenticated); err != nil {
		return err
	}
	return s.commandOK("NOOP", "NOOP")
}

// Rset sends RSET, unmarking any messages scheduled for deletion.
func (s *Session) Rset() error {
	if err := s.requirePhase("RSET", PhaseAuthenticated); err != nil {
		return err
	}
	return s.commandOK("RSET", "RSET")
}

// Dele marks message num for deletion on QUIT.
func (s *Session) Dele(num int) error {
	if err := s.requirePhase("DELE", PhaseAuthenticated); err != nil {
		return err
	}
	return s.commandOK("DELE", "DELE %d", num)
}

// Stat returns the message count and total octet size of the mailbox.
func (s *Session) Stat() (count int, octets int64, err error) {
	if err := s.requirePhase("STAT", PhaseAuthenticated); err != nil {
		return 0, 0, err
	}
	status, msg, err := s.command("STAT")
	if err != nil {
		return 0, 0, err
	}
	if status != wire.Pop3StatusOK {
		return 0, 0, &Error{Command: "STAT", Message: msg}
	}
	fields := strings.Fields(msg)
	if len(fields) < 2 {
		return 0, 0, fmt.Errorf("pop3: malformed STAT reply %q", msg)
	}
	count, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("pop3: malformed STAT count: %w", err)
	}
	octets, err = strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("pop3: malformed STAT size: %w", err)
	}
	return count, octets, nil
}

// Last returns the highest message number accessed during the session,
// or 0 if none.
func (s *Session) Last() (int, error) {
	if err := s.requirePhase("LAST", PhaseAuthenticated); err != nil {
		return 0, err
	}
	status, msg, err := s.command("LAST")
	if err != nil {
		return 0, err
	}
	if status != wire.Pop3StatusOK {
		return 0, &Error{Command: "LAST", Message: msg}
	}
	n, err := strconv.Atoi(strings.TrimSpace(msg))
	if err != nil {
		return 0, fmt.Errorf("pop3: malformed LAST reply: %w", err)
	}
	return n, nil
}

// ListEntry is one line of a LIST or UIDL response.
type ListEntry struct {
	Num   int
	Size  int64 // for LIST
	UID   string // for UIDL
}

// List returns the size of every message, or of a single message if num > 0.
func (s *Session) List(num int) ([]ListEntry, error) {
	if err := s.requirePhase("LIST", PhaseAuthenticated); err != nil {
		return nil, err
	}
	if num > 0 {
		status, msg, err := s.command("LIST %d", num)
		if err != nil {
			return nil, err
		}
		if status != wire.Pop3StatusOK {
			return nil, &Error{Command: "LIST", Message: msg}
		}
		entry, err := parseListLine(msg)
		if err != nil {
			return nil, err
		}
		return []ListEntry{entry}, nil
	}

	status, msg, err := s.command("LIST")
	if err != nil {
		return nil, err
	}
	if status != wire.Pop3StatusOK {
		return nil, &Error{Command: "LIST", Message: msg}
	}
	lines, err := s.readMultiline()
	if err != nil {
		return nil, err
	}
	out := make([]ListEntry, 0, len(lines))
	for _, line := range lines {
		entry, err := parseListLine(line)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

func parseListLine(line string) (ListEntry, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return ListEntry{}, fmt.Errorf("pop3: malformed LIST entry %q", line)
	}
	num, err := strconv.Atoi(fields[0])
	if err != nil {
		return ListEntry{}, fmt.Errorf("pop3: malformed LIST entry number: %w", err)
	}
	size, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return ListEntry{}, fmt.Errorf("pop3: malformed LIST entry size: %w", err)
	}
	return ListEntry{Num: num, Size: size}, nil
}

// Uidl returns the unique ID of every message, or of a single message if
// num > 0.
func (s *Session) Uidl(num int) ([]ListEntry, error) {
	if err := s.requirePhase("UIDL", PhaseAuthenticated); err != nil {
		return nil, err
	}
	if num > 0 {
		status, msg, err := s.command("UIDL %d", num)
		if err != nil {
			return nil, err
		}
		if status != wire.Pop3StatusOK {
			return nil, &Error{Command: "UIDL", Message: msg}
		}
		entry, err := parseUidlLine(msg)
		if err != nil {
			return nil, err
		}
		return []ListEntry{entry}, nil
	}

	status, msg, err := s.command("UIDL")
	if err != nil {
		return nil, err
	}
	if status != wire.Pop3StatusOK {
		return nil, &Error{Command: "UIDL", Message: msg}
	}
	lines, err := s.readMultiline()
	if err != nil {
		return nil, err
	}
	out := make([]ListEntry, 0, len(lines))
	for _, line := range lines {
		entry, err := parseUidlLine(line)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

func parseUidlLine(line string) (ListEntry, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return ListEntry{}, fmt.Errorf("pop3: malformed UIDL entry %q", line)
	}
	num, err := strconv.Atoi(fields[0])
	if err != nil {
		return ListEntry{}, fmt.Errorf("pop3: malformed UIDL entry number: %w", err)
	}
	return ListEntry{Num: num, UID: fields[1]}, nil
}

// Quit sends QUIT and closes the connection.
func (s *Session) Quit() error {
	err := s.commandOK("QUIT", "QUIT")
	s.mu.Lock()
	s.phase = PhaseDisconnected
	s.mu.Unlock()
	_ = s.Close()
	return err
}

// extractAngleToken returns the substring between '<' and '>' in s, if any,
// inclusive of the angle brackets (the form APOP hashes verbatim).
func extractAngleToken(s string) string {
	start := strings.IndexByte(s, '<')
	if start < 0 {
		return ""
	}
	end := strings.IndexByte(s[start:], '>')
	if end < 0 {
		return ""
	}
	return s[start : start+end+1]
}

// redactForLog is a best-effort redaction for the debug log line echoing a
// command before it's sent; full redaction for a persistent trace belongs
// to the protolog package, which operates on the raw wire bytes.
func redactForLog(line string) string {
	upper := strings.ToUpper(line)
	if strings.HasPrefix(upper, "PASS ") || strings.HasPrefix(upper, "APOP ") {
		fields := strings.SplitN(line, " ", 2)
		return fields[0] + " [redacted]"
	}
	return line
}
