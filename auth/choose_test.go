package auth

import "testing"

func TestChooseMechanismPrefersStrongest(t *testing.T) {
	got := ChooseMechanism([]string{"PLAIN", "LOGIN", "CRAM-MD5"}, false)
	if got != "CRAM-MD5" {
		t.Errorf("got %q, want CRAM-MD5", got)
	}
}

func TestChooseMechanismOAuthPreferredWhenTokenPresent(t *testing.T) {
	got := ChooseMechanism([]string{"PLAIN", "XOAUTH2", "CRAM-MD5"}, true)
	if got != "XOAUTH2" {
		t.Errorf("got %q, want XOAUTH2", got)
	}
}

func TestChooseMechanismNoOverlapReturnsEmpty(t *testing.T) {
	got := ChooseMechanism([]string{"GSSAPI"}, false)
	if got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestChooseMechanismCaseInsensitive(t *testing.T) {
	got := ChooseMechanism([]string{"plain", "login"}, false)
	if got != "PLAIN" {
		t.Errorf("got %q, want PLAIN", got)
	}
}
