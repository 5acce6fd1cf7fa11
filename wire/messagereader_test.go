package wire

import "testing"

func TestMessageReaderLiteralPlaceholderCursor(t *testing.T) {
	d := NewLiteralDecoder()
	msgs, err := d.Feed([]byte("* 1 FETCH (BODY[HEADER] {2}\r\nhi BODY[TEXT] {3}\r\nbye)\r\n"))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}

	r := NewMessageReader(msgs[0])

	if err := r.ExpectByte('*'); err != nil {
		t.Fatalf("ExpectByte('*'): %v", err)
	}
	if err := r.SkipSpace(); err != nil {
		t.Fatal(err)
	}
	if _, err := r.ReadNumber(); err != nil {
		t.Fatal(err)
	}
	if err := r.SkipSpace(); err != nil {
		t.Fatal(err)
	}
	atom, err := r.ReadAtom()
	if err != nil || atom != "FETCH" {
		t.Fatalf("ReadAtom = %q, %v", atom, err)
	}
	if err := r.SkipSpace(); err != nil {
		t.Fatal(err)
	}
	if err := r.ExpectByte('('); err != nil {
		t.Fatal(err)
	}

	// BODY[HEADER] contains '[' and ']', which aren't atom chars; skip
	// straight to the first literal placeholder rather than tokenizing
	// the section name (that's the fetch parser's job, not this test's).
	for {
		if _, _, ok := r.PeekLiteral(); ok {
			break
		}
		if r.AtEnd() {
			t.Fatal("never found first literal placeholder")
		}
		r.pos++
	}
	payload, err := r.ReadLiteralPlaceholder()
	if err != nil {
		t.Fatalf("ReadLiteralPlaceholder 1: %v", err)
	}
	if string(payload) != "hi" {
		t.Errorf("first payload = %q, want %q", payload, "hi")
	}
	if r.bytesCursor() != 1 {
		t.Errorf("cursor after first literal = %d, want 1", r.bytesCursor())
	}

	for {
		if _, _, ok := r.PeekLiteral(); ok {
			break
		}
		if r.AtEnd() {
			t.Fatal("never found second literal placeholder")
		}
		r.pos++
	}
	payload, err = r.ReadLiteralPlaceholder()
	if err != nil {
		t.Fatalf("ReadLiteralPlaceholder 2: %v", err)
	}
	if string(payload) != "bye" {
		t.Errorf("second payload = %q, want %q", payload, "bye")
	}
	if r.bytesCursor() != 2 {
		t.Errorf("cursor after second literal = %d, want 2", r.bytesCursor())
	}
}

func TestMessageReaderQuotedStringEscapes(t *testing.T) {
	r := NewMessageReaderString(`"hello \"world\\"`)
	s, err := r.ReadQuotedString()
	if err != nil {
		t.Fatal(err)
	}
	want := `hello "world\`
	if s != want {
		t.Errorf("ReadQuotedString = %q, want %q", s, want)
	}
	if !r.AtEnd() {
		t.Errorf("expected AtEnd, remaining = %q", r.Remaining())
	}
}

func TestMessageReaderNString(t *testing.T) {
	r := NewMessageReaderString("NIL")
	s, ok, err := r.ReadNString()
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Errorf("expected NIL, got %q", s)
	}

	r2 := NewMessageReaderString(`"value"`)
	s2, ok2, err := r2.ReadNString()
	if err != nil {
		t.Fatal(err)
	}
	if !ok2 || s2 != "value" {
		t.Errorf("ReadNString = %q, %v", s2, ok2)
	}
}

func TestMessageReaderFlags(t *testing.T) {
	r := NewMessageReaderString(`(\Seen \Answered customflag)`)
	flags, err := r.ReadFlags()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{`\Seen`, `\Answered`, "customflag"}
	if len(flags) != len(want) {
		t.Fatalf("flags = %v, want %v", flags, want)
	}
	for i := range want {
		if flags[i] != want[i] {
			t.Errorf("flags[%d] = %q, want %q", i, flags[i], want[i])
		}
	}
}
