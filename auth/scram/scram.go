// Package scram implements the SCRAM-SHA-1 and SCRAM-SHA-256 SASL
// mechanisms (RFC 5802), client side only: PBKDF2-derived salted password,
// a client-first/server-first/client-final/server-final round trip.
package scram

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"hash"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/mailcore/mailproto/auth"
)

// Mechanism names.
const (
	NameSHA1   = "SCRAM-SHA-1"
	NameSHA256 = "SCRAM-SHA-256"
)

// ClientMechanism implements SCRAM authentication for clients. Channel
// binding ("-PLUS" variants) is not implemented: the core never opens
// transports itself and so has no TLS channel-binding data to offer.
type ClientMechanism struct {
	Username string
	Password string

	hashName string
	newHash  func() hash.Hash

	step            int
	clientNonce     string
	clientFirstBare string
	serverSignature []byte
}

// NewSHA1 returns a SCRAM-SHA-1 client mechanism.
func NewSHA1(username, password string) *ClientMechanism {
	return &ClientMechanism{Username: username, Password: password, hashName: NameSHA1, newHash: sha1.New}
}

// NewSHA256 returns a SCRAM-SHA-256 client mechanism.
func NewSHA256(username, password string) *ClientMechanism {
	return &ClientMechanism{Username: username, Password: password, hashName: NameSHA256, newHash: sha256.New}
}

// Name returns the SASL mechanism name.
func (m *ClientMechanism) Name() string { return m.hashName }

// Start returns the client-first message.
func (m *ClientMechanism) Start() ([]byte, error) {
	if m.clientNonce == "" {
		m.clientNonce = generateNonce()
	}
	m.clientFirstBare = fmt.Sprintf("n=%s,r=%s", saslEscape(m.Username), m.clientNonce)
	return []byte("n,," + m.clientFirstBare), nil
}

// Next processes a server challenge and returns the client response.
func (m *ClientMechanism) Next(challenge []byte) ([]byte, error) {
	m.step++
	switch m.step {
	case 1:
		return m.handleServerFirst(challenge)
	case 2:
		return nil, m.handleServerFinal(challenge)
	default:
		return nil, fmt.Errorf("scram: unexpected challenge at step %d", m.step)
	}
}

func (m *ClientMechanism) handleServerFirst(serverFirst []byte) ([]byte, error) {
	fields, err := parseFields(string(serverFirst))
	if err != nil {
		return nil, err
	}
	serverNonce, ok := fields["r"]
	if !ok || !strings.HasPrefix(serverNonce, m.clientNonce) {
		return nil, fmt.Errorf("scram: server nonce does not extend client nonce")
	}
	saltB64, ok := fields["s"]
	if !ok {
		return nil, fmt.Errorf("scram: missing salt")
	}
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return nil, fmt.Errorf("scram: invalid salt: %w", err)
	}
	iterStr, ok := fields["i"]
	if !ok {
		return nil, fmt.Errorf("scram: missing iteration count")
	}
	iterations, err := strconv.Atoi(iterStr)
	if err != nil || iterations <= 0 {
		return nil, fmt.Errorf("scram: invalid iteration count %q", iterStr)
	}

	channelBinding := base64.StdEncoding.EncodeToString([]byte("n,,"))
	clientFinalWithoutProof := fmt.Sprintf("c=%s,r=%s", channelBinding, serverNonce)
	authMessage := m.clientFirstBare + "," + string(serverFirst) + "," + clientFinalWithoutProof

	saltedPassword := pbkdf2.Key([]byte(m.Password), salt, iterations, m.newHash().Size(), m.newHash)
	clientKey := hmacSum(m.newHash, saltedPassword, []byte("Client Key"))
	storedKey := hashSum(m.newHash, clientKey)
	clientSignature := hmacSum(m.newHash, storedKey, []byte(authMessage))
	clientProof := xorBytes(clientKey, clientSignature)

	serverKey := hmacSum(m.newHash, saltedPassword, []byte("Server Key"))
	m.serverSignature = hmacSum(m.newHash, serverKey, []byte(authMessage))

	resp := clientFinalWithoutProof + ",p=" + base64.StdEncoding.EncodeToString(clientProof)
	return []byte(resp), nil
}

func (m *ClientMechanism) handleServerFinal(serverFinal []byte) error {
	fields, err := parseFields(string(serverFinal))
	if err != nil {
		return err
	}
	if errMsg, ok := fields["e"]; ok {
		return fmt.Errorf("scram: server reported error: %s", errMsg)
	}
	sigB64, ok := fields["v"]
	if !ok {
		return fmt.Errorf("scram: missing server signature")
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return fmt.Errorf("scram: invalid server signature: %w", err)
	}
	if subtle.ConstantTimeCompare(sig, m.serverSignature) != 1 {
		return fmt.Errorf("scram: server signature mismatch")
	}
	return nil
}

func hmacSum(newHash func() hash.Hash, key, data []byte) []byte {
	h := hmac.New(newHash, key)
	h.Write(data)
	return h.Sum(nil)
}

func hashSum(newHash func() hash.Hash, data []byte) []byte {
	h := newHash()
	h.Write(data)
	return h.Sum(nil)
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// parseFields splits a SCRAM message of the form "k=v,k=v,..." into a map.
func parseFields(msg string) (map[string]string, error) {
	fields := make(map[string]string)
	for _, part := range strings.Split(msg, ",") {
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("scram: malformed attribute %q", part)
		}
		fields[kv[0]] = kv[1]
	}
	return fields, nil
}

// saslEscape escapes "=" and "," per RFC 5802 saslname rules.
func saslEscape(s string) string {
	s = strings.ReplaceAll(s, "=", "=3D")
	s = strings.ReplaceAll(s, ",", "=2C")
	return s
}

// generateNonce is overridable for deterministic tests.
var generateNonce = func() string {
	return base64.RawStdEncoding.EncodeToString(randomBytes(18))
}

func init() {
	auth.DefaultRegistry.RegisterClient(NameSHA1, func() auth.ClientMechanism {
		return &ClientMechanism{hashName: NameSHA1, newHash: sha1.New}
	})
	auth.DefaultRegistry.RegisterClient(NameSHA256, func() auth.ClientMechanism {
		return &ClientMechanism{hashName: NameSHA256, newHash: sha256.New}
	})
}
