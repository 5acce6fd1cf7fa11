package wire

import (
	"reflect"
	"testing"
)

func TestSmtpResponseDecoderMultiline(t *testing.T) {
	d := NewSmtpResponseDecoder()
	whole := "250-mail.example.com Hello\r\n250-SIZE 35882577\r\n250 PIPELINING\r\n"
	resps, err := d.Feed([]byte(whole))
	if err != nil {
		t.Fatal(err)
	}
	if len(resps) != 1 {
		t.Fatalf("expected 1 response, got %d", len(resps))
	}
	if resps[0].Code != 250 {
		t.Errorf("Code = %d", resps[0].Code)
	}
	want := []string{"mail.example.com Hello", "SIZE 35882577", "PIPELINING"}
	if !reflect.DeepEqual(resps[0].Lines, want) {
		t.Errorf("Lines = %v, want %v", resps[0].Lines, want)
	}
}

func TestSmtpResponseDecoderSingleLine(t *testing.T) {
	d := NewSmtpResponseDecoder()
	resps, err := d.Feed([]byte("354 Start mail input\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(resps) != 1 || resps[0].Code != 354 {
		t.Fatalf("resps = %+v", resps)
	}
}

func TestSmtpResponseDecoderCodeMismatch(t *testing.T) {
	d := NewSmtpResponseDecoder()
	_, err := d.Feed([]byte("250-first\r\n251-second\r\n"))
	if err == nil {
		t.Fatal("expected error for mismatched response codes")
	}
}

func TestSmtpResponseDecoderSplitAcrossChunks(t *testing.T) {
	d := NewSmtpResponseDecoder()
	var got []SmtpResponse
	for _, chunk := range []string{"250-mail.exa", "mple.com\r\n250 OK", "\r\n"} {
		resps, err := d.Feed([]byte(chunk))
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, resps...)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 response, got %d", len(got))
	}
	want := []string{"mail.example.com", "OK"}
	if !reflect.DeepEqual(got[0].Lines, want) {
		t.Errorf("Lines = %v, want %v", got[0].Lines, want)
	}
}

func TestSmtpResponseDecoderBareCode(t *testing.T) {
	d := NewSmtpResponseDecoder()
	resps, err := d.Feed([]byte("221\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(resps) != 1 || resps[0].Code != 221 || resps[0].Lines[0] != "" {
		t.Fatalf("resps = %+v", resps)
	}
}
