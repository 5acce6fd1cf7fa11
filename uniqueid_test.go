package imap

import "testing"

func TestUniqueID_IsZero(t *testing.T) {
	if !(UniqueID{}).IsZero() {
		t.Error("zero UniqueID.IsZero() = false, want true")
	}
	if (UniqueID{Value: 1, Validity: 1}).IsZero() {
		t.Error("non-zero UniqueID.IsZero() = true, want false")
	}
}

func TestNewUIDMap(t *testing.T) {
	src, _ := ParseUIDSet("1:3")
	dst, _ := ParseUIDSet("10:12")

	m, err := NewUIDMap(42, src, dst)
	if err != nil {
		t.Fatalf("NewUIDMap() error: %v", err)
	}

	want := map[UID]UID{1: 10, 2: 11, 3: 12}
	for s, d := range want {
		got, ok := m.Lookup(s)
		if !ok {
			t.Errorf("Lookup(%d) ok = false, want true", s)
		}
		if got != d {
			t.Errorf("Lookup(%d) = %d, want %d", s, got, d)
		}
	}
	if _, ok := m.Lookup(99); ok {
		t.Error("Lookup(99) ok = true, want false")
	}
}

func TestNewUIDMap_LengthMismatch(t *testing.T) {
	src, _ := ParseUIDSet("1:3")
	dst, _ := ParseUIDSet("10:11")

	_, err := NewUIDMap(42, src, dst)
	if err != ErrUIDMapLengthMismatch {
		t.Errorf("NewUIDMap() error = %v, want ErrUIDMapLengthMismatch", err)
	}
}

func TestCopyData_Map(t *testing.T) {
	src, _ := ParseUIDSet("5,6")
	dst, _ := ParseUIDSet("100,101")
	data := &CopyData{UIDValidity: 7, SourceUIDs: *src, DestUIDs: *dst}

	m, err := data.Map()
	if err != nil {
		t.Fatalf("Map() error: %v", err)
	}
	got, ok := m.Lookup(5)
	if !ok || got != 100 {
		t.Errorf("Lookup(5) = (%d, %v), want (100, true)", got, ok)
	}
}
