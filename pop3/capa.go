package pop3

import (
	"strings"

	"github.com/mailcore/mailproto/wire"
)

// Capa sends CAPA and returns the advertised capability lines, e.g.
// "UIDL", "TOP", "SASL PLAIN LOGIN CRAM-MD5". Valid in any phase per
// RFC 2449, though most servers only answer meaningfully before STLS.
func (s *Session) Capa() ([]string, error) {
	status, msg, err := s.command("CAPA")
	if err != nil {
		return nil, err
	}
	if status != wire.Pop3StatusOK {
		return nil, &Error{Command: "CAPA", Message: msg}
	}
	lines, err := s.readMultiline()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.caps = lines
	s.mu.Unlock()
	return lines, nil
}

// SASLMechanisms extracts the mechanism names from a CAPA response's
// "SASL ..." line, if present.
func SASLMechanisms(capaLines []string) []string {
	for _, line := range capaLines {
		upper := strings.ToUpper(line)
		if strings.HasPrefix(upper, "SASL") {
			fields := strings.Fields(line)
			if len(fields) > 1 {
				return fields[1:]
			}
			return nil
		}
	}
	return nil
}
