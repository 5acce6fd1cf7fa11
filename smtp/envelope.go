package smtp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mailcore/mailproto/wire"
)

// Param is a MAIL FROM / RCPT TO parameter, e.g. SIZE=1024 or REQUIRETLS
// (no value).
type Param struct {
	Name  string
	Value string // empty for a value-less parameter like REQUIRETLS
}

func (p Param) String() string {
	if p.Value == "" {
		return p.Name
	}
	return p.Name + "=" + p.Value
}

// SMTPUTF8 is the SMTPUTF8 parameter (RFC 6531).
func SMTPUTF8() Param { return Param{Name: "SMTPUTF8"} }

// Body sets BODY=7BIT|8BITMIME|BINARYMIME.
func Body(kind string) Param { return Param{Name: "BODY", Value: kind} }

// Size sets SIZE=<octets> (RFC 1870).
func Size(octets int64) Param { return Param{Name: "SIZE", Value: strconv.FormatInt(octets, 10)} }

// Ret sets RET=FULL|HDRS (RFC 3461 DSN).
func Ret(value string) Param { return Param{Name: "RET", Value: value} }

// Envid sets ENVID=<envelope-id> (RFC 3461 DSN).
func Envid(id string) Param { return Param{Name: "ENVID", Value: id} }

// RequireTLS is the REQUIRETLS parameter (RFC 8689).
func RequireTLS() Param { return Param{Name: "REQUIRETLS"} }

// Notify sets NOTIFY=<comma-separated-list> (RFC 3461 DSN), e.g. "SUCCESS,FAILURE".
func Notify(value string) Param { return Param{Name: "NOTIFY", Value: value} }

// Orcpt sets ORCPT=<addr-type;addr> (RFC 3461 DSN).
func Orcpt(value string) Param { return Param{Name: "ORCPT", Value: value} }

func paramString(params []Param) string {
	if len(params) == 0 {
		return ""
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.String()
	}
	return " " + strings.Join(parts, " ")
}

// Mail sends MAIL FROM:<from> [params]. Expects a 250 reply.
func (s *Session) Mail(from string, params ...Param) error {
	if err := s.requirePhaseAtLeast("MAIL", PhaseConnected); err != nil {
		return err
	}
	return s.commandOK("MAIL", "MAIL FROM:<%s>%s", from, paramString(params))
}

// RecipientResult is the outcome of one RCPT TO for a given recipient.
type RecipientResult struct {
	Recipient string
	Err       error // nil if accepted (2xx)
}

// Rcpt sends RCPT TO:<to> [params] and returns an error only if the
// recipient was rejected; callers submitting to multiple recipients should
// use RcptAll to collect per-recipient failures per spec.md §4.5 (the
// envelope only fails outright when every recipient is rejected).
func (s *Session) Rcpt(to string, params ...Param) error {
	if err := s.requirePhaseAtLeast("RCPT", PhaseConnected); err != nil {
		return err
	}
	return s.commandOK("RCPT", "RCPT TO:<%s>%s", to, paramString(params))
}

// RcptAll sends RCPT TO for every recipient, collecting a RecipientResult
// per recipient. err is non-nil only when every recipient was rejected.
func (s *Session) RcptAll(recipients []string, params ...Param) ([]RecipientResult, error) {
	results := make([]RecipientResult, len(recipients))
	accepted := 0
	for i, r := range recipients {
		err := s.Rcpt(r, params...)
		results[i] = RecipientResult{Recipient: r, Err: err}
		if err == nil {
			accepted++
		}
	}
	if accepted == 0 && len(recipients) > 0 {
		return results, fmt.Errorf("smtp: all %d recipients rejected", len(recipients))
	}
	return results, nil
}

// Data sends DATA, expects a 354 continuation, writes the dot-stuffed
// payload terminated by "\r\n.\r\n", and returns the final 250/5xx reply.
func (s *Session) Data(payload []byte) error {
	if err := s.requirePhaseAtLeast("DATA", PhaseConnected); err != nil {
		return err
	}
	resp, err := s.command("DATA")
	if err != nil {
		return err
	}
	if resp.Code != 354 {
		return newError("DATA", resp)
	}

	stuffed := wire.DotStuff(payload)
	if _, err := s.conn.Write(stuffed); err != nil {
		return err
	}
	if s.options.ProtoLog != nil {
		s.options.ProtoLog.LogClient(stuffed)
	}
	if _, err := s.conn.Write([]byte("\r\n.\r\n")); err != nil {
		return err
	}

	final, err := s.readResponse()
	if err != nil {
		return err
	}
	if ClassifyCode(final.Code) != SeverityPositive {
		return newError("DATA", final)
	}
	return nil
}

// SendSequential performs the sequential submission mode: MAIL, RCPT per
// recipient (collecting failures), DATA, all waited for in turn.
func (s *Session) SendSequential(from string, to []string, payload []byte, mailParams ...Param) ([]RecipientResult, error) {
	if err := s.Mail(from, mailParams...); err != nil {
		return nil, err
	}
	results, err := s.RcptAll(to)
	if err != nil {
		return results, err
	}
	if err := s.Data(payload); err != nil {
		return results, err
	}
	return results, nil
}

// SendPipelined performs the pipelined submission mode (requires
// PIPELINING): MAIL+RCPT*+DATA are written back-to-back before any
// response is read, then responses are drained in the order they were
// sent.
func (s *Session) SendPipelined(from string, to []string, payload []byte, mailParams ...Param) ([]RecipientResult, error) {
	if !s.HasCap("PIPELINING") {
		return nil, fmt.Errorf("smtp: server does not advertise PIPELINING")
	}
	if err := s.requirePhaseAtLeast("MAIL", PhaseConnected); err != nil {
		return nil, err
	}

	if err := s.sendLine("MAIL FROM:<%s>%s", from, paramString(mailParams)); err != nil {
		return nil, err
	}
	for _, r := range to {
		if err := s.sendLine("RCPT TO:<%s>", r); err != nil {
			return nil, err
		}
	}
	if err := s.sendLine("DATA"); err != nil {
		return nil, err
	}

	mailResp, err := s.readResponse()
	if err != nil {
		return nil, err
	}
	if ClassifyCode(mailResp.Code) != SeverityPositive {
		return nil, newError("MAIL", mailResp)
	}

	results := make([]RecipientResult, len(to))
	accepted := 0
	for i, r := range to {
		resp, err := s.readResponse()
		if err != nil {
			return results, err
		}
		if ClassifyCode(resp.Code) == SeverityPositive {
			results[i] = RecipientResult{Recipient: r}
			accepted++
		} else {
			results[i] = RecipientResult{Recipient: r, Err: newError("RCPT", resp)}
		}
	}

	dataResp, err := s.readResponse()
	if err != nil {
		return results, err
	}
	if dataResp.Code != 354 {
		return results, newError("DATA", dataResp)
	}
	if accepted == 0 && len(to) > 0 {
		// Still must send something to keep the wire framed; abort with
		// an empty body rather than leave the server waiting.
		_, _ = s.conn.Write([]byte(".\r\n"))
		_, _ = s.readResponse()
		return results, fmt.Errorf("smtp: all %d recipients rejected", len(to))
	}

	stuffed := wire.DotStuff(payload)
	if _, err := s.conn.Write(stuffed); err != nil {
		return results, err
	}
	if s.options.ProtoLog != nil {
		s.options.ProtoLog.LogClient(stuffed)
	}
	if _, err := s.conn.Write([]byte("\r\n.\r\n")); err != nil {
		return results, err
	}

	final, err := s.readResponse()
	if err != nil {
		return results, err
	}
	if ClassifyCode(final.Code) != SeverityPositive {
		return results, newError("DATA", final)
	}
	return results, nil
}

// SendChunked performs the BDAT submission mode (requires CHUNKING): the
// payload is split into chunks of at most chunkSize bytes, each sent as
// "BDAT n", the final one as "BDAT n LAST". No dot-stuffing is performed.
func (s *Session) SendChunked(from string, to []string, payload []byte, chunkSize int, mailParams ...Param) ([]RecipientResult, error) {
	if !s.HasCap("CHUNKING") {
		return nil, fmt.Errorf("smtp: server does not advertise CHUNKING")
	}
	if chunkSize <= 0 {
		chunkSize = len(payload)
		if chunkSize == 0 {
			chunkSize = 1
		}
	}

	if err := s.Mail(from, mailParams...); err != nil {
		return nil, err
	}
	results, err := s.RcptAll(to)
	if err != nil {
		return results, err
	}

	for offset := 0; offset < len(payload) || offset == 0; {
		end := offset + chunkSize
		last := false
		if end >= len(payload) {
			end = len(payload)
			last = true
		}
		chunk := payload[offset:end]

		var sendErr error
		if last {
			sendErr = s.sendLine("BDAT %d LAST", len(chunk))
		} else {
			sendErr = s.sendLine("BDAT %d", len(chunk))
		}
		if sendErr != nil {
			return results, sendErr
		}
		if len(chunk) > 0 {
			if _, werr := s.conn.Write(chunk); werr != nil {
				return results, werr
			}
			if s.options.ProtoLog != nil {
				s.options.ProtoLog.LogClient(chunk)
			}
		}

		resp, err := s.readResponse()
		if err != nil {
			return results, err
		}
		if ClassifyCode(resp.Code) != SeverityPositive {
			return results, newError("BDAT", resp)
		}
		if last {
			break
		}
		offset = end
	}
	return results, nil
}
