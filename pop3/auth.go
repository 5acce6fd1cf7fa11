package pop3

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	imapauth "github.com/mailcore/mailproto/auth"
	"github.com/mailcore/mailproto/auth/crammd5"
	"github.com/mailcore/mailproto/auth/login"
	"github.com/mailcore/mailproto/auth/ntlm"
	"github.com/mailcore/mailproto/auth/oauthbearer"
	"github.com/mailcore/mailproto/auth/plain"
	"github.com/mailcore/mailproto/auth/scram"
	"github.com/mailcore/mailproto/auth/xoauth2"
	"github.com/mailcore/mailproto/wire"
)

// UserPass authenticates with the USER/PASS command pair.
func (s *Session) UserPass(username, password string) error {
	if err := s.requirePhase("USER", PhaseConnected); err != nil {
		return err
	}
	if err := s.commandOK("USER", "USER %s", username); err != nil {
		return err
	}
	if err := s.commandOK("PASS", "PASS %s", password); err != nil {
		return err
	}
	s.mu.Lock()
	s.phase = PhaseAuthenticated
	s.mu.Unlock()
	return nil
}

// Apop authenticates with APOP, hashing the greeting's challenge and the
// password with MD5 as RFC 1939 §7 specifies. Returns an error if the
// server's greeting carried no angle-bracketed challenge.
func (s *Session) Apop(username, password string) error {
	if err := s.requirePhase("APOP", PhaseConnected); err != nil {
		return err
	}
	if s.apopNonce == "" {
		return fmt.Errorf("pop3: server greeting did not include an APOP challenge")
	}
	sum := md5.Sum([]byte(s.apopNonce + password))
	digest := hex.EncodeToString(sum[:])

	if err := s.commandOK("APOP", "APOP %s %s", username, digest); err != nil {
		return err
	}
	s.mu.Lock()
	s.phase = PhaseAuthenticated
	s.mu.Unlock()
	return nil
}

// Authenticate performs a SASL exchange with the given mechanism via
// AUTH mech [initial-response], driving the continuation rounds until the
// server's final +OK/-ERR.
func (s *Session) Authenticate(mechanism imapauth.ClientMechanism) error {
	if err := s.requirePhase("AUTH", PhaseConnected); err != nil {
		return err
	}

	ir, err := mechanism.Start()
	if err != nil {
		return fmt.Errorf("SASL start: %w", err)
	}

	var status wire.Pop3Status
	var msg string
	if ir != nil {
		status, msg, err = s.command("AUTH %s %s", mechanism.Name(), base64.StdEncoding.EncodeToString(ir))
	} else {
		status, msg, err = s.command("AUTH %s", mechanism.Name())
	}
	if err != nil {
		return err
	}

	for status == wire.Pop3StatusContinuation {
		challenge, decErr := base64.StdEncoding.DecodeString(msg)
		if decErr != nil {
			_ = s.sendLine("*")
			_, _, _ = s.readStatus()
			return fmt.Errorf("decoding challenge: %w", decErr)
		}
		response, respErr := mechanism.Next(challenge)
		if respErr != nil {
			_ = s.sendLine("*")
			_, _, _ = s.readStatus()
			return fmt.Errorf("SASL response: %w", respErr)
		}
		status, msg, err = s.command("%s", base64.StdEncoding.EncodeToString(response))
		if err != nil {
			return err
		}
	}

	if status != wire.Pop3StatusOK {
		return &Error{Command: "AUTH " + mechanism.Name(), Message: msg}
	}

	s.mu.Lock()
	s.phase = PhaseAuthenticated
	s.mu.Unlock()
	return nil
}

// ChooseAndAuthenticate selects the strongest SASL mechanism offered by the
// server (auth.ChooseMechanism's order: SCRAM-SHA-256 > SCRAM-SHA-1 >
// CRAM-MD5 > NTLM > PLAIN > LOGIN, with OAUTHBEARER and then XOAUTH2 ahead
// of all of them only when accessToken is non-empty) and authenticates with
// it. offered is typically parsed from a CAPA response's "SASL ..." line.
func (s *Session) ChooseAndAuthenticate(offered []string, username, password, accessToken string) error {
	name := imapauth.ChooseMechanism(offered, accessToken != "")
	if name == "" {
		return fmt.Errorf("pop3: no mutually supported SASL mechanism in %v", offered)
	}
	mechanism, err := buildMechanism(name, username, password, accessToken)
	if err != nil {
		return err
	}
	return s.Authenticate(mechanism)
}

// buildMechanism constructs a ClientMechanism by name, mirroring how each
// auth subpackage is meant to be used directly (struct literal, not the
// server-side Registry, which only resolves ServerMechanism factories for
// most of these mechanisms).
func buildMechanism(name, username, password, accessToken string) (imapauth.ClientMechanism, error) {
	switch name {
	case "PLAIN":
		return &plain.ClientMechanism{Username: username, Password: password}, nil
	case "LOGIN":
		return &login.ClientMechanism{Username: username, Password: password}, nil
	case "CRAM-MD5":
		return &crammd5.ClientMechanism{Username: username, Password: password}, nil
	case "NTLM":
		return &ntlm.ClientMechanism{Username: username, Password: password}, nil
	case "SCRAM-SHA-1":
		return scram.NewSHA1(username, password), nil
	case "SCRAM-SHA-256":
		return scram.NewSHA256(username, password), nil
	case "XOAUTH2":
		return &xoauth2.ClientMechanism{Username: username, AccessToken: accessToken}, nil
	case "OAUTHBEARER":
		return &oauthbearer.ClientMechanism{Username: username, AccessToken: accessToken}, nil
	default:
		return nil, fmt.Errorf("pop3: unsupported SASL mechanism %q", name)
	}
}
