package wire

import (
	"reflect"
	"testing"
)

func TestPop3MultilineDecoderSingleLine(t *testing.T) {
	d := NewPop3MultilineDecoder()
	events, err := d.Feed([]byte("+OK POP3 ready\r\n-ERR bad command\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Status != Pop3StatusOK || events[0].Message != "POP3 ready" {
		t.Errorf("event 0 = %+v", events[0])
	}
	if events[1].Status != Pop3StatusErr || events[1].Message != "bad command" {
		t.Errorf("event 1 = %+v", events[1])
	}
}

func TestPop3MultilineDecoderMultiline(t *testing.T) {
	d := NewPop3MultilineDecoder()
	d.ExpectMultiline()

	events, err := d.Feed([]byte("+OK 2 messages\r\n1 120\r\n2 200\r\n.\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if !ev.Multiline || ev.Message != "2 messages" {
		t.Fatalf("event = %+v", ev)
	}
	want := []string{"1 120", "2 200"}
	if !reflect.DeepEqual(ev.Lines, want) {
		t.Errorf("Lines = %v, want %v", ev.Lines, want)
	}
}

func TestPop3MultilineDecoderDotUnstuffing(t *testing.T) {
	d := NewPop3MultilineDecoder()
	d.ExpectMultiline()

	events, err := d.Feed([]byte("+OK\r\n..leading dot\r\nplain\r\n.\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatal("expected 1 event")
	}
	want := []string{".leading dot", "plain"}
	if !reflect.DeepEqual(events[0].Lines, want) {
		t.Errorf("Lines = %v, want %v", events[0].Lines, want)
	}
}

func TestPop3MultilineDecoderSplitTerminator(t *testing.T) {
	d := NewPop3MultilineDecoder()
	d.ExpectMultiline()

	var got []Pop3Event
	for _, chunk := range []string{"+OK\r\nhello\r\n", ".", "\r\n"} {
		events, err := d.Feed([]byte(chunk))
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, events...)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if !reflect.DeepEqual(got[0].Lines, []string{"hello"}) {
		t.Errorf("Lines = %v", got[0].Lines)
	}
}

func TestPop3MultilineDecoderErrSkipsMultiline(t *testing.T) {
	d := NewPop3MultilineDecoder()
	d.ExpectMultiline()

	events, err := d.Feed([]byte("-ERR no such message\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Multiline {
		t.Fatalf("expected single-line ERR event, got %+v", events)
	}
}
