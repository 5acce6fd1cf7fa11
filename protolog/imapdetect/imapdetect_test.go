package imapdetect

import "testing"

func TestDetectorRedactsLoginArguments(t *testing.T) {
	d := New()
	whole := "a1 LOGIN alice secretpass\r\n"
	intervals := d.Detect(0, []byte(whole))
	if len(intervals) != 1 {
		t.Fatalf("expected 1 interval, got %d: %+v", len(intervals), intervals)
	}
	got := whole[intervals[0].Start : intervals[0].Start+intervals[0].Length]
	if got != "alice secretpass" {
		t.Errorf("got %q", got)
	}
}

func TestDetectorRedactsAuthenticateContinuation(t *testing.T) {
	d := New()
	whole := "a2 AUTHENTICATE PLAIN\r\nAGFsaWNlAHNlY3JldA==\r\n"
	intervals := d.Detect(0, []byte(whole))
	if len(intervals) != 1 {
		t.Fatalf("expected 1 interval, got %d: %+v", len(intervals), intervals)
	}
	got := whole[intervals[0].Start : intervals[0].Start+intervals[0].Length]
	if got != "AGFsaWNlAHNlY3JldA==" {
		t.Errorf("got %q", got)
	}

	d.NotifyServerReply("a2 OK AUTHENTICATE completed")
	after := d.Detect(len(whole), []byte("a3 NOOP\r\n"))
	if len(after) != 0 {
		t.Errorf("expected no redaction after tagged OK closes exchange, got %+v", after)
	}
}
