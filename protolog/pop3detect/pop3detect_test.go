package pop3detect

import (
	"reflect"
	"testing"
)

func TestDetectorRedactsUserAndPass(t *testing.T) {
	d := New()
	whole := "USER alice\r\nPASS hunter2\r\n"
	intervals := d.Detect(0, []byte(whole))

	if len(intervals) != 2 {
		t.Fatalf("expected 2 intervals, got %d: %+v", len(intervals), intervals)
	}
	if got := whole[intervals[0].Start : intervals[0].Start+intervals[0].Length]; got != "alice" {
		t.Errorf("interval 0 = %q, want %q", got, "alice")
	}
	if got := whole[intervals[1].Start : intervals[1].Start+intervals[1].Length]; got != "hunter2" {
		t.Errorf("interval 1 = %q, want %q", got, "hunter2")
	}
}

func TestDetectorRedactsApopBothTokens(t *testing.T) {
	d := New()
	whole := "APOP mrose c4c9334bac560ecc979e58001b3e22fb\r\n"
	intervals := d.Detect(0, []byte(whole))
	if len(intervals) != 1 {
		t.Fatalf("expected 1 interval, got %d", len(intervals))
	}
	got := whole[intervals[0].Start : intervals[0].Start+intervals[0].Length]
	want := "mrose c4c9334bac560ecc979e58001b3e22fb"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDetectorAuthExchangeUntilServerCloses(t *testing.T) {
	d := New()
	whole := "AUTH CRAM-MD5\r\ndGltIGI5MTNhNjAy\r\n"
	intervals := d.Detect(0, []byte(whole))
	if len(intervals) != 1 {
		t.Fatalf("expected 1 interval (base64 continuation), got %d: %+v", len(intervals), intervals)
	}
	got := whole[intervals[0].Start : intervals[0].Start+intervals[0].Length]
	if got != "dGltIGI5MTNhNjAy" {
		t.Errorf("got %q", got)
	}

	d.NotifyServerReply("+OK")
	more := d.Detect(len(whole), []byte("LIST\r\n"))
	if len(more) != 0 {
		t.Errorf("expected no redaction after server closed exchange, got %+v", more)
	}
}

func TestDetectorLocalityAcrossSplitChunks(t *testing.T) {
	whole := "USER alice\r\nPASS hunter2\r\n"

	dWhole := New()
	refIntervals := dWhole.Detect(0, []byte(whole))

	dSplit := New()
	mid := 14
	a := dSplit.Detect(0, []byte(whole[:mid]))
	b := dSplit.Detect(mid, []byte(whole[mid:]))
	got := append(a, b...)

	if !reflect.DeepEqual(got, refIntervals) {
		t.Errorf("split detection = %v, want %v", got, refIntervals)
	}
}
