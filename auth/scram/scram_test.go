package scram

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"testing"

	"golang.org/x/crypto/pbkdf2"
)

func TestClientMechanismSHA256HappyPath(t *testing.T) {
	m := NewSHA256("user", "pencil")
	m.clientNonce = "fyko+d2lbbFgONRv9qkxdawL"

	start, err := m.Start()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(start), "n,,n=user,r=fyko+d2lbbFgONRv9qkxdawL") {
		t.Fatalf("Start = %q", start)
	}

	salt := []byte("pepper-salt-bytes")
	saltB64 := base64.StdEncoding.EncodeToString(salt)
	serverNonce := m.clientNonce + "server-extension"
	serverFirst := fmt.Sprintf("r=%s,s=%s,i=4096", serverNonce, saltB64)

	resp, err := m.Next([]byte(serverFirst))
	if err != nil {
		t.Fatalf("Next(serverFirst): %v", err)
	}
	if !strings.Contains(string(resp), "r="+serverNonce) {
		t.Errorf("client-final missing server nonce: %q", resp)
	}
	if !strings.Contains(string(resp), "p=") {
		t.Errorf("client-final missing proof: %q", resp)
	}

	// Reconstruct what a correct server would send back and confirm the
	// client accepts it.
	channelBinding := base64.StdEncoding.EncodeToString([]byte("n,,"))
	clientFinalWithoutProof := fmt.Sprintf("c=%s,r=%s", channelBinding, serverNonce)
	authMessage := m.clientFirstBare + "," + serverFirst + "," + clientFinalWithoutProof
	saltedPassword := pbkdf2.Key([]byte("pencil"), salt, 4096, sha256.Size, sha256.New)
	serverKey := hmacSum(sha256.New, saltedPassword, []byte("Server Key"))
	serverSignature := hmacSum(sha256.New, serverKey, []byte(authMessage))
	serverFinal := "v=" + base64.StdEncoding.EncodeToString(serverSignature)

	if _, err := m.Next([]byte(serverFinal)); err != nil {
		t.Fatalf("Next(serverFinal): %v", err)
	}
}

func TestClientMechanismRejectsBadServerSignature(t *testing.T) {
	m := NewSHA1("user", "pencil")
	m.clientNonce = "abc"

	if _, err := m.Start(); err != nil {
		t.Fatal(err)
	}
	salt := base64.StdEncoding.EncodeToString([]byte("salt"))
	serverFirst := fmt.Sprintf("r=%sxyz,s=%s,i=1000", m.clientNonce, salt)
	if _, err := m.Next([]byte(serverFirst)); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Next([]byte("v=" + base64.StdEncoding.EncodeToString([]byte("bogus-signature-bytes")))); err == nil {
		t.Fatal("expected server signature mismatch error")
	}
}

func TestClientMechanismRejectsNonExtendingNonce(t *testing.T) {
	m := NewSHA256("user", "pencil")
	m.clientNonce = "abc"
	if _, err := m.Start(); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Next([]byte("r=totally-different,s=c2FsdA==,i=1000")); err == nil {
		t.Fatal("expected nonce mismatch error")
	}
}
