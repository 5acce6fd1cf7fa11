// Package ntlm implements the client side of the NTLM SASL mechanism: a
// three-message exchange (negotiate, challenge, authenticate) using
// NTLMv2 responses.
package ntlm

import (
	"bytes"
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"golang.org/x/text/encoding/unicode"

	"github.com/mailcore/mailproto/auth"
)

// Mechanism name.
const Name = "NTLM"

const (
	signature = "NTLMSSP\x00"

	typeNegotiate    = 1
	typeChallenge    = 2
	typeAuthenticate = 3

	flagNegotiateUnicode    = 0x00000001
	flagNegotiateNTLM       = 0x00000200
	flagNegotiateAlwaysSign = 0x00008000
	flagNegotiateTargetInfo = 0x00800000
	flagNegotiate128        = 0x20000000
	flagNegotiate56         = 0x80000000
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()

// ClientMechanism implements NTLM authentication for clients.
type ClientMechanism struct {
	Domain   string
	Username string
	Password string

	step int
}

// Name returns "NTLM".
func (m *ClientMechanism) Name() string { return Name }

// Start returns the Type-1 negotiate message.
func (m *ClientMechanism) Start() ([]byte, error) {
	return encodeNegotiate(m.Domain), nil
}

// Next processes the Type-2 challenge and returns the Type-3 response.
func (m *ClientMechanism) Next(challenge []byte) ([]byte, error) {
	m.step++
	if m.step != 1 {
		return nil, fmt.Errorf("ntlm: unexpected challenge at step %d", m.step)
	}
	ch, err := decodeChallenge(challenge)
	if err != nil {
		return nil, err
	}
	return m.encodeAuthenticate(ch)
}

type challengeMessage struct {
	serverChallenge []byte
	targetInfo      []byte
}

func encodeNegotiate(domain string) []byte {
	var buf bytes.Buffer
	buf.WriteString(signature)
	writeUint32(&buf, typeNegotiate)
	flags := uint32(flagNegotiateUnicode | flagNegotiateNTLM | flagNegotiateAlwaysSign |
		flagNegotiateTargetInfo | flagNegotiate128 | flagNegotiate56)
	writeUint32(&buf, flags)
	// Domain/workstation security buffers: left empty (offset points past
	// the fixed header, length zero).
	writeSecurityBuffer(&buf, 0, 32)
	writeSecurityBuffer(&buf, 0, 32)
	_ = domain
	return buf.Bytes()
}

func decodeChallenge(msg []byte) (*challengeMessage, error) {
	if len(msg) < 32 || string(msg[:8]) != signature {
		return nil, fmt.Errorf("ntlm: malformed challenge message")
	}
	if binary.LittleEndian.Uint32(msg[8:12]) != typeChallenge {
		return nil, fmt.Errorf("ntlm: expected type-2 challenge message")
	}
	serverChallenge := append([]byte(nil), msg[24:32]...)

	targetInfoLen := binary.LittleEndian.Uint16(msg[40:42])
	targetInfoOffset := binary.LittleEndian.Uint32(msg[44:48])
	var targetInfo []byte
	if int(targetInfoOffset)+int(targetInfoLen) <= len(msg) {
		targetInfo = append([]byte(nil), msg[targetInfoOffset:targetInfoOffset+uint32(targetInfoLen)]...)
	}
	return &challengeMessage{serverChallenge: serverChallenge, targetInfo: targetInfo}, nil
}

// encodeAuthenticate computes the NTLMv2 response: HMAC-MD5 over
// UTF-16LE(upper(username)+domain) keyed NTLM hash, applied to the server
// challenge plus a constructed "blob" (timestamp, client challenge, target
// info), then a second HMAC-MD5 producing the 16-byte session key.
func (m *ClientMechanism) encodeAuthenticate(ch *challengeMessage) ([]byte, error) {
	ntlmHash := md4Hash(utf16leString(m.Password))
	ntlmv2Hash := hmacMD5(ntlmHash, utf16leString(upperASCII(m.Username)+m.Domain))

	clientChallenge := randomBytes(8)
	timestamp := ntlmTimestamp()

	blob := buildBlob(timestamp, clientChallenge, ch.targetInfo)
	ntProofInput := append(append([]byte{}, ch.serverChallenge...), blob...)
	ntProof := hmacMD5(ntlmv2Hash, ntProofInput)
	ntChallengeResponse := append(ntProof, blob...)

	sessionBaseKey := hmacMD5(ntlmv2Hash, ntProof)

	var buf bytes.Buffer
	buf.WriteString(signature)
	writeUint32(&buf, typeAuthenticate)

	offset := uint32(64) // fixed-header size before variable buffers, filled below
	// Security buffers: LM response (24 zero bytes), NT response, domain,
	// user, workstation, session key (the 16-byte session base key), in
	// that wire order. We lay the
	// payload out in the same order so offsets are simple running sums.
	lmResponse := make([]byte, 24)
	domainUTF16 := utf16leString(m.Domain)
	userUTF16 := utf16leString(m.Username)
	workstationUTF16 := utf16leString("")
	sessionKeyBlob := sessionBaseKey

	fields := [][]byte{lmResponse, ntChallengeResponse, domainUTF16, userUTF16, workstationUTF16, sessionKeyBlob}
	offsets := make([]uint32, len(fields))
	cur := offset
	for i, f := range fields {
		offsets[i] = cur
		cur += uint32(len(f))
	}

	writeSecurityBuffer(&buf, offsets[0], len(fields[0]))
	writeSecurityBuffer(&buf, offsets[1], len(fields[1]))
	writeSecurityBuffer(&buf, offsets[2], len(fields[2]))
	writeSecurityBuffer(&buf, offsets[3], len(fields[3]))
	writeSecurityBuffer(&buf, offsets[4], len(fields[4]))
	writeUint32(&buf, uint32(flagNegotiateUnicode|flagNegotiateNTLM|flagNegotiateAlwaysSign|flagNegotiate128))
	writeSecurityBuffer(&buf, offsets[5], len(fields[5]))

	if buf.Len() != int(offset) {
		return nil, fmt.Errorf("ntlm: internal header size mismatch: %d != %d", buf.Len(), offset)
	}
	for _, f := range fields {
		buf.Write(f)
	}
	return buf.Bytes(), nil
}

func buildBlob(timestamp uint64, clientChallenge, targetInfo []byte) []byte {
	var buf bytes.Buffer
	writeUint32(&buf, 0x00000101) // resp type, hi resp type
	writeUint32(&buf, 0)          // reserved
	writeUint64(&buf, timestamp)
	buf.Write(clientChallenge)
	writeUint32(&buf, 0) // unknown
	buf.Write(targetInfo)
	writeUint32(&buf, 0) // terminator
	return buf.Bytes()
}

func hmacMD5(key, data []byte) []byte {
	h := hmac.New(md5.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func utf16leString(s string) []byte {
	b, err := utf16le.Bytes([]byte(s))
	if err != nil {
		return nil
	}
	return b
}

func upperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeSecurityBuffer(buf *bytes.Buffer, offset uint32, length int) {
	var b [8]byte
	binary.LittleEndian.PutUint16(b[0:2], uint16(length))
	binary.LittleEndian.PutUint16(b[2:4], uint16(length))
	binary.LittleEndian.PutUint32(b[4:8], offset)
	buf.Write(b[:])
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("ntlm: failed to read random bytes: " + err.Error())
	}
	return b
}

// ntlmTimestamp is overridable for deterministic tests.
var ntlmTimestamp = func() uint64 {
	return windowsEpochNow()
}

func init() {
	auth.DefaultRegistry.RegisterClient(Name, func() auth.ClientMechanism {
		return &ClientMechanism{}
	})
}
