package scram

import "crypto/rand"

func randomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("scram: failed to read random bytes: " + err.Error())
	}
	return b
}
