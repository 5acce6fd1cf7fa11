package imap

import "strings"

// FlagSet is a bitmask representation of the handful of IMAP system flags,
// sitting beside the teacher's []Flag slice representation for callers
// that want cheap set operations (union, membership test) without
// allocating or scanning a slice. Keywords (any flag other than the system
// ones below) don't fit a fixed bitmask, so they ride along in a separate
// side list.
type FlagSet uint8

const (
	FlagSetSeen FlagSet = 1 << iota
	FlagSetAnswered
	FlagSetFlagged
	FlagSetDeleted
	FlagSetDraft
	FlagSetRecent
	FlagSetHasKeywords
)

// Has reports whether every bit in want is set in fs.
func (fs FlagSet) Has(want FlagSet) bool {
	return fs&want == want
}

// FlagsToFlagSet converts a []Flag slice (as produced by wire parsing) into
// a FlagSet plus the keyword flags that don't map onto a system bit.
func FlagsToFlagSet(flags []Flag) (FlagSet, []string) {
	var fs FlagSet
	var keywords []string
	for _, f := range flags {
		switch f {
		case FlagSeen:
			fs |= FlagSetSeen
		case FlagAnswered:
			fs |= FlagSetAnswered
		case FlagFlagged:
			fs |= FlagSetFlagged
		case FlagDeleted:
			fs |= FlagSetDeleted
		case FlagDraft:
			fs |= FlagSetDraft
		case FlagRecent:
			fs |= FlagSetRecent
		case FlagWildcard:
			// not a per-message flag, never appears in a FETCH FLAGS response
		default:
			keywords = append(keywords, string(f))
		}
	}
	if len(keywords) > 0 {
		fs |= FlagSetHasKeywords
	}
	return fs, keywords
}

// FlagSetToFlags is the inverse of FlagsToFlagSet, for building a STORE
// command's flag list from a FlagSet plus its keyword side list.
func FlagSetToFlags(fs FlagSet, keywords []string) []Flag {
	var flags []Flag
	if fs.Has(FlagSetSeen) {
		flags = append(flags, FlagSeen)
	}
	if fs.Has(FlagSetAnswered) {
		flags = append(flags, FlagAnswered)
	}
	if fs.Has(FlagSetFlagged) {
		flags = append(flags, FlagFlagged)
	}
	if fs.Has(FlagSetDeleted) {
		flags = append(flags, FlagDeleted)
	}
	if fs.Has(FlagSetDraft) {
		flags = append(flags, FlagDraft)
	}
	if fs.Has(FlagSetRecent) {
		flags = append(flags, FlagRecent)
	}
	for _, kw := range keywords {
		flags = append(flags, Flag(kw))
	}
	return flags
}

// String renders fs as a space-joined list of its system flag names, for
// logging; keywords aren't known to FlagSet alone so they're omitted.
func (fs FlagSet) String() string {
	var names []string
	if fs.Has(FlagSetSeen) {
		names = append(names, "Seen")
	}
	if fs.Has(FlagSetAnswered) {
		names = append(names, "Answered")
	}
	if fs.Has(FlagSetFlagged) {
		names = append(names, "Flagged")
	}
	if fs.Has(FlagSetDeleted) {
		names = append(names, "Deleted")
	}
	if fs.Has(FlagSetDraft) {
		names = append(names, "Draft")
	}
	if fs.Has(FlagSetRecent) {
		names = append(names, "Recent")
	}
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, " ")
}
