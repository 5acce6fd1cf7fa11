package smtp

import (
	"encoding/base64"
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

// Authenticate performs a SASL exchange with the given mechanism via
// AUTH mech [initial-response] (RFC 4954), answering 334 continuation
// challenges until the server's final 235/5xx reply.
func (s *Session) Authenticate(mechanism imapauth.ClientMechanism) error {
	if err := s.requirePhaseAtLeast("AUTH", PhaseConnected); err != nil {
		return err
	}

	ir, err := mechanism.Start()
	if err != nil {
		return fmt.Errorf("SASL start: %w", err)
	}

	var resp wire.SmtpResponse
	if ir != nil {
		resp, err = s.command("AUTH %s %s", mechanism.Name(), base64.StdEncoding.EncodeToString(ir))
	} else {
		resp, err = s.command("AUTH %s", mechanism.Name())
	}
	if err != nil {
		return err
	}

	for resp.Code == 334 {
		challengeText := ""
		if len(resp.Lines) > 0 {
			challengeText = resp.Lines[0]
		}
		challenge, decErr := base64.StdEncoding.DecodeString(challengeText)
		if decErr != nil {
			_ = s.sendLine("*")
			_, _ = s.readResponse()
			return fmt.Errorf("decoding challenge: %w", decErr)
		}
		response, respErr := mechanism.Next(challenge)
		if respErr != nil {
			_ = s.sendLine("*")
			_, _ = s.readResponse()
			return fmt.Errorf("SASL response: %w", respErr)
		}
		resp, err = s.command("%s", base64.StdEncoding.EncodeToString(response))
		if err != nil {
			return err
		}
	}

	if ClassifyCode(resp.Code) != SeverityPositive {
		return newError("AUTH "+mechanism.Name(), resp)
	}

	s.mu.Lock()
	s.phase = PhaseAuthenticated
	s.mu.Unlock()
	return nil
}

// ChooseAndAuthenticate selects the strongest SASL mechanism offered by
// the server's AUTH capability (priority per spec.md §4.6, OAUTHBEARER and
// XOAUTH2 only when accessToken is non-empty) and authenticates with it.
func (s *Session) ChooseAndAuthenticate(username, password, accessToken string) error {
	offered := s.CapArgs("AUTH")
	name := imapauth.ChooseMechanism(offered, accessToken != "")
	if name == "" {
		return fmt.Errorf("smtp: no mutually supported SASL mechanism in %v", offered)
	}
	mechanism, err := buildMechanism(name, username, password, accessToken)
	if err != nil {
		return err
	}
	return s.Authenticate(mechanism)
}

// buildMechanism constructs a ClientMechanism by name via direct struct
// literal, matching how each auth subpackage is meant to be used (most
// have no client-side Registry entry to resolve).
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
		return nil, fmt.Errorf("smtp: unsupported SASL mechanism %q", name)
	}
}
