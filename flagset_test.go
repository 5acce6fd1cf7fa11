package imap

import "testing"

func TestFlagsToFlagSet(t *testing.T) {
	flags := []Flag{FlagSeen, FlagDeleted, Flag("$Custom")}

	fs, keywords := FlagsToFlagSet(flags)

	if !fs.Has(FlagSetSeen) || !fs.Has(FlagSetDeleted) || !fs.Has(FlagSetHasKeywords) {
		t.Errorf("FlagsToFlagSet() fs = %v, missing expected bits", fs)
	}
	if fs.Has(FlagSetAnswered) {
		t.Error("FlagsToFlagSet() fs has FlagSetAnswered set, want unset")
	}
	if len(keywords) != 1 || keywords[0] != "$Custom" {
		t.Errorf("FlagsToFlagSet() keywords = %v, want [$Custom]", keywords)
	}
}

func TestFlagSetToFlags_RoundTrip(t *testing.T) {
	original := []Flag{FlagSeen, FlagFlagged, FlagDraft}
	fs, keywords := FlagsToFlagSet(original)

	got := FlagSetToFlags(fs, keywords)
	if len(got) != len(original) {
		t.Fatalf("FlagSetToFlags() = %v, want %d flags", got, len(original))
	}
	for _, want := range original {
		found := false
		for _, g := range got {
			if g == want {
				found = true
			}
		}
		if !found {
			t.Errorf("FlagSetToFlags() missing %q", want)
		}
	}
}

func TestFlagSet_String(t *testing.T) {
	if (FlagSet(0)).String() != "(none)" {
		t.Errorf("FlagSet(0).String() = %q, want (none)", FlagSet(0).String())
	}
	got := (FlagSetSeen | FlagSetDeleted).String()
	if got != "Seen Deleted" {
		t.Errorf("String() = %q, want %q", got, "Seen Deleted")
	}
}
