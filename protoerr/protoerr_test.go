package protoerr

import (
	"errors"
	"testing"
)

func TestFatalKinds(t *testing.T) {
	fatal := []Kind{Timeout, TransportWrite, TransportRead, BadResponse}
	for _, k := range fatal {
		if !k.Fatal() {
			t.Errorf("%v.Fatal() = false, want true", k)
		}
	}
	notFatal := []Kind{SmtpError, Pop3Error, ImapError, InvalidPhase, AuthenticationFailed}
	for _, k := range notFatal {
		if k.Fatal() {
			t.Errorf("%v.Fatal() = true, want false", k)
		}
	}
}

func TestWrapPreservesCauseViaUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(TransportRead, cause, "reading response")
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(err, cause) = false, want true")
	}
}

func TestErrorStringIncludesKind(t *testing.T) {
	err := New(PoolExhausted, "no connections available")
	if got := err.Error(); got == "" {
		t.Error("Error() = empty string")
	}
}

func TestIsMatchesSameKind(t *testing.T) {
	a := New(PoolClosed, "closed")
	b := New(PoolClosed, "closed again")
	if !errors.Is(a, b) {
		t.Error("errors.Is(a, b) = false for same-kind errors, want true")
	}
	c := New(PoolExhausted, "exhausted")
	if errors.Is(a, c) {
		t.Error("errors.Is(a, c) = true for different-kind errors, want false")
	}
}
