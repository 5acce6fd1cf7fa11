package smtp

import "github.com/mailcore/mailproto/wire"

// Vrfy sends VRFY <address> and returns the server's reply text, or an
// error for a 5xx (address unknown/ambiguous).
func (s *Session) Vrfy(address string) (string, error) {
	resp, err := s.command("VRFY %s", address)
	if err != nil {
		return "", err
	}
	if ClassifyCode(resp.Code) != SeverityPositive {
		return "", newError("VRFY", resp)
	}
	return joinLines(resp.Lines), nil
}

// Expn sends EXPN <list> and returns the expanded membership lines.
func (s *Session) Expn(list string) ([]string, error) {
	resp, err := s.command("EXPN %s", list)
	if err != nil {
		return nil, err
	}
	if ClassifyCode(resp.Code) != SeverityPositive {
		return nil, newError("EXPN", resp)
	}
	return resp.Lines, nil
}

// Help sends HELP [arg] and returns the server's help text.
func (s *Session) Help(arg string) (string, error) {
	var resp wire.SmtpResponse
	var err error
	if arg == "" {
		resp, err = s.command("HELP")
	} else {
		resp, err = s.command("HELP %s", arg)
	}
	if err != nil {
		return "", err
	}
	if ClassifyCode(resp.Code) != SeverityPositive {
		return "", newError("HELP", resp)
	}
	return joinLines(resp.Lines), nil
}

// Etrn sends ETRN <domain> to request queued-mail delivery (RFC 1985).
func (s *Session) Etrn(domain string) error {
	return s.commandOK("ETRN", "ETRN %s", domain)
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}
