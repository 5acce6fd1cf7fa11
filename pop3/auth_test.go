package pop3

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"net"
	"strings"
	"testing"

	"github.com/mailcore/mailproto/auth/plain"
)

func TestAuthenticatePlainSendsInitialResponse(t *testing.T) {
	s, cleanup := pipeSession(t, "+OK ready", func(server net.Conn, r *bufio.Reader) {
		line, _ := r.ReadString('\n')
		if !strings.HasPrefix(line, "AUTH PLAIN ") {
			t.Errorf("got %q", line)
		}
		ir, _ := base64.StdEncoding.DecodeString(strings.TrimSpace(strings.TrimPrefix(line, "AUTH PLAIN ")))
		if string(ir) != "\x00alice\x00hunter2" {
			t.Errorf("decoded IR = %q", ir)
		}
		fmt.Fprint(server, "+OK authenticated\r\n")
	})
	defer cleanup()

	mech := &plain.ClientMechanism{Username: "alice", Password: "hunter2"}
	if err := s.Authenticate(mech); err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}
	if s.Phase() != PhaseAuthenticated {
		t.Errorf("Phase() = %v, want Authenticated", s.Phase())
	}
}

func TestChooseAndAuthenticatePicksStrongestOffered(t *testing.T) {
	s, cleanup := pipeSession(t, "+OK ready", func(server net.Conn, r *bufio.Reader) {
		line, _ := r.ReadString('\n')
		if !strings.HasPrefix(line, "AUTH CRAM-MD5") {
			t.Fatalf("got %q, want CRAM-MD5 chosen over PLAIN/LOGIN", line)
		}
		fmt.Fprint(server, "+ PDEyMzQuMDMyNTQyMjZAbGVyY2lwLmZyPg==\r\n")
		line, _ = r.ReadString('\n')
		if strings.TrimSpace(line) == "" {
			t.Fatalf("expected base64 response line")
		}
		fmt.Fprint(server, "+OK authenticated\r\n")
	})
	defer cleanup()

	err := s.ChooseAndAuthenticate([]string{"PLAIN", "LOGIN", "CRAM-MD5"}, "alice", "hunter2", "")
	if err != nil {
		t.Fatalf("ChooseAndAuthenticate() error: %v", err)
	}
}

func TestAuthenticateRejectedReturnsError(t *testing.T) {
	s, cleanup := pipeSession(t, "+OK ready", func(server net.Conn, r *bufio.Reader) {
		r.ReadString('\n')
		fmt.Fprint(server, "-ERR authentication failed\r\n")
	})
	defer cleanup()

	mech := &plain.ClientMechanism{Username: "alice", Password: "wrong"}
	if err := s.Authenticate(mech); err == nil {
		t.Fatal("Authenticate() error = nil, want error")
	}
	if s.Phase() != PhaseConnected {
		t.Errorf("Phase() = %v, want Connected after rejection", s.Phase())
	}
}
