package smtp

import (
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/mailcore/mailproto/wire"
)

// Session is an SMTP client session over a single connection.
type Session struct {
	conn    net.Conn
	options *Options

	mu    sync.Mutex
	phase Phase
	caps  map[string][]string // EHLO keyword -> arguments

	decoder *wire.SmtpResponseDecoder
	scratch [4096]byte
}

// New creates a Session from an existing connection and reads the greeting.
func New(conn net.Conn, opts ...Option) (*Session, error) {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	s := &Session{
		conn:    conn,
		options: options,
		phase:   PhaseDisconnected,
		caps:    make(map[string][]string),
		decoder: wire.NewSmtpResponseDecoder(),
	}

	resp, err := s.readResponse()
	if err != nil {
		return nil, fmt.Errorf("reading greeting: %w", err)
	}
	if ClassifyCode(resp.Code) != SeverityPositive {
		return nil, newError("greeting", resp)
	}
	s.phase = PhaseConnected

	s.options.Logger.Debug("greeting", "code", resp.Code, "lines", resp.Lines)
	return s, nil
}

// Dial connects to an SMTP server at the given address.
func Dial(addr string, opts ...Option) (*Session, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	return New(conn, opts...)
}

// DialTLS connects to an SMTP server using implicit TLS (e.g. port 465).
func DialTLS(addr string, config *tls.Config, opts ...Option) (*Session, error) {
	conn, err := tls.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("dial TLS: %w", err)
	}
	return New(conn, opts...)
}

// Phase returns the session's current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Close closes the underlying connection.
func (s *Session) Close() error {
	return s.conn.Close()
}

// Connected implements pool.Session.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase != PhaseDisconnected
}

// Authenticated implements pool.Session.
func (s *Session) Authenticated() bool {
	return s.Phase() == PhaseAuthenticated
}

// HasCap reports whether the server advertised the given EHLO keyword
// (case-insensitive), e.g. "PIPELINING", "CHUNKING", "STARTTLS".
func (s *Session) HasCap(keyword string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.caps[strings.ToUpper(keyword)]
	return ok
}

// CapArgs returns the arguments of an EHLO keyword, e.g. CapArgs("AUTH")
// might return ["PLAIN", "LOGIN", "CRAM-MD5"], or an empty slice if absent.
func (s *Session) CapArgs(keyword string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	args := s.caps[strings.ToUpper(keyword)]
	out := make([]string, len(args))
	copy(out, args)
	return out
}

func (s *Session) requirePhaseAtLeast(cmd string, want Phase) error {
	if s.Phase() < want {
		return &ErrWrongPhase{Command: cmd, Have: s.Phase(), Want: want}
	}
	return nil
}

// readResponse blocks until a complete ESMTP response has been framed.
func (s *Session) readResponse() (wire.SmtpResponse, error) {
	for {
		n, err := s.conn.Read(s.scratch[:])
		if n > 0 {
			if s.options.ProtoLog != nil {
				s.options.ProtoLog.LogServer(s.scratch[:n])
			}
			events, feedErr := s.decoder.Feed(s.scratch[:n])
			if feedErr != nil {
				return wire.SmtpResponse{}, feedErr
			}
			if len(events) > 0 {
				return events[0], nil
			}
		}
		if err != nil {
			return wire.SmtpResponse{}, err
		}
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

// command sends a single command line and returns its response.
func (s *Session) command(format string, args ...interface{}) (wire.SmtpResponse, error) {
	if err := s.sendLine(format, args...); err != nil {
		return wire.SmtpResponse{}, err
	}
	return s.readResponse()
}

// commandOK sends a command and returns an *Error unless the reply is 2xx.
func (s *Session) commandOK(name, format string, args ...interface{}) error {
	resp, err := s.command(format, args...)
	if err != nil {
		return err
	}
	if ClassifyCode(resp.Code) != SeverityPositive {
		return newError(name, resp)
	}
	return nil
}

// Ehlo sends EHLO, falling back to HELO if the server rejects it with a
// 5xx, per spec.md §4.5. Parses capability lines (every response line
// after the first) into the session's capability set.
func (s *Session) Ehlo() error {
	resp, err := s.command("EHLO %s", s.options.LocalName)
	if err != nil {
		return err
	}
	if ClassifyCode(resp.Code) == SeverityPermanent {
		return s.helo()
	}
	if ClassifyCode(resp.Code) != SeverityPositive {
		return newError("EHLO", resp)
	}
	s.setCaps(resp.Lines)
	return nil
}

func (s *Session) helo() error {
	resp, err := s.command("HELO %s", s.options.LocalName)
	if err != nil {
		return err
	}
	if ClassifyCode(resp.Code) != SeverityPositive {
		return newError("HELO", resp)
	}
	s.mu.Lock()
	s.caps = make(map[string][]string)
	s.mu.Unlock()
	return nil
}

// setCaps parses EHLO continuation lines (the first line is the greeting
// domain, not a capability) into the capability set.
func (s *Session) setCaps(lines []string) {
	caps := make(map[string][]string)
	for i, line := range lines {
		if i == 0 {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		caps[strings.ToUpper(fields[0])] = fields[1:]
	}
	s.mu.Lock()
	s.caps = caps
	s.mu.Unlock()
}

// StartTLS issues STARTTLS and upgrades the connection. The caller must
// re-issue Ehlo afterward since capabilities may change post-TLS.
func (s *Session) StartTLS(config *tls.Config) error {
	if config == nil {
		config = s.options.TLSConfig
	}
	if config == nil {
		return fmt.Errorf("smtp: TLS config required")
	}
	if err := s.commandOK("STARTTLS", "STARTTLS"); err != nil {
		return err
	}

	tlsConn := tls.Client(s.conn, config)
	if err := tlsConn.Handshake(); err != nil {
		return fmt.Errorf("smtp: TLS handshake: %w", err)
	}

	s.mu.Lock()
	s.conn = tlsConn
	s.caps = make(map[string][]string)
	s.mu.Unlock()
	s.decoder = wire.NewSmtpResponseDecoder()
	return nil
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

// redactForLog is a best-effort redaction for the debug log line echoing a
// command before it's sent; full redaction for a persistent trace belongs
// to protolog, which operates on the raw wire bytes.
func redactForLog(line string) string {
	if strings.HasPrefix(strings.ToUpper(line), "AUTH ") {
		fields := strings.SplitN(line, " ", 3)
		if len(fields) >= 2 {
			return fields[0] + " " + fields[1] + " [redacted]"
		}
	}
	return line
}
