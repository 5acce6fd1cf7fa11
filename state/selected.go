package state

import imap "github.com/mailcore/mailproto"

// Selected tracks the authoritative view of the currently selected IMAP
// mailbox, reconciling untagged EXISTS/EXPUNGE/VANISHED/FETCH events and
// response codes into a consistent snapshot. All mutation happens through
// the Apply* methods so invariants (sequence<->UID maps agree; message
// count matches the UID set) hold after every step, provided events are
// applied strictly in arrival order.
type Selected struct {
	UIDValidity   uint32
	UIDNext       uint32
	HighestModSeq uint64
	MessageCount  uint32
	RecentCount   uint32

	// LastExpunged is the sequence number most recently removed by an
	// EXPUNGE event, kept only for diagnostics.
	LastExpunged uint32

	seqToUID map[uint32]uint32
	uidToSeq map[uint32]uint32
}

// NewSelected returns a freshly reset selected-mailbox state, as produced
// by a SELECT/EXAMINE response before any untagged events arrive.
func NewSelected() *Selected {
	return &Selected{
		seqToUID: make(map[uint32]uint32),
		uidToSeq: make(map[uint32]uint32),
	}
}

// UIDForSeq returns the UID known for a sequence number, if any.
func (s *Selected) UIDForSeq(seq uint32) (uint32, bool) {
	uid, ok := s.seqToUID[seq]
	return uid, ok
}

// SeqForUID returns the sequence number known for a UID, if any.
func (s *Selected) SeqForUID(uid uint32) (uint32, bool) {
	seq, ok := s.uidToSeq[uid]
	return seq, ok
}

// UIDSet returns the set of UIDs currently known to the reducer.
func (s *Selected) UIDSet() []uint32 {
	uids := make([]uint32, 0, len(s.uidToSeq))
	for uid := range s.uidToSeq {
		uids = append(uids, uid)
	}
	return uids
}

// UniqueIDForSeq returns the validity-scoped UniqueID for a sequence
// number, if its UID is known. This is the only place in the module that
// constructs a UniqueID: validity is a fact about the current SELECT, not
// about the bare UID number FETCH/SEARCH/STORE exchange on the wire.
func (s *Selected) UniqueIDForSeq(seq uint32) (imap.UniqueID, bool) {
	uid, ok := s.seqToUID[seq]
	if !ok {
		return imap.UniqueID{}, false
	}
	return imap.UniqueID{Value: uid, Validity: s.UIDValidity}, true
}

// ApplyExists folds an untagged "n EXISTS" into the state. Sequence numbers
// newly in range (previous message count, n] appear with unknown UID until
// a subsequent FETCH supplies one.
func (s *Selected) ApplyExists(n uint32) {
	s.MessageCount = n
}

// ApplyExpunge folds an untagged "seq EXPUNGE" into the state: seq is
// removed from both maps and every sequence above it shifts down by one so
// the maps keep indexing the contiguous range 1..MessageCount.
func (s *Selected) ApplyExpunge(seq uint32) {
	if seq == 0 || seq > s.MessageCount {
		return
	}
	if uid, ok := s.seqToUID[seq]; ok {
		delete(s.seqToUID, seq)
		delete(s.uidToSeq, uid)
	}
	for from := seq + 1; from <= s.MessageCount; from++ {
		uid, ok := s.seqToUID[from]
		delete(s.seqToUID, from)
		if ok {
			s.seqToUID[from-1] = uid
			s.uidToSeq[uid] = from - 1
		}
	}
	s.MessageCount--
	s.LastExpunged = seq
}

// ApplyVanished folds a QRESYNC VANISHED event: every UID in uids is
// removed from both maps and the message count shrinks to match. The
// earlier flag marks a historical (non-live) VANISHED notification; the
// reducer applies it identically, but callers should still surface
// earlier to the caller since it changes how the event is presented.
func (s *Selected) ApplyVanished(uids []uint32, earlier bool) {
	_ = earlier
	for _, uid := range uids {
		seq, ok := s.uidToSeq[uid]
		if !ok {
			// Idempotent: VANISHED and EXPUNGE may both reference the
			// same message: applying it twice must be a no-op.
			continue
		}
		s.ApplyExpunge(seq)
	}
}

// ApplyFetchUID folds a FETCH response's UID attribute: seq<->uid is
// installed in both maps and modSeq (if non-zero) updates HighestModSeq.
func (s *Selected) ApplyFetchUID(seq, uid uint32, modSeq uint64) {
	if old, ok := s.seqToUID[seq]; ok && old != uid {
		delete(s.uidToSeq, old)
	}
	s.seqToUID[seq] = uid
	s.uidToSeq[uid] = seq
	if modSeq > s.HighestModSeq {
		s.HighestModSeq = modSeq
	}
}

// ApplyUIDValidity sets UIDValidity from a [UIDVALIDITY v] response code.
// A value that differs from the prior validity invalidates every
// previously known seq<->uid mapping, since UIDs are only meaningful
// within a single validity epoch.
func (s *Selected) ApplyUIDValidity(v uint32) {
	if s.UIDValidity != 0 && s.UIDValidity != v {
		s.seqToUID = make(map[uint32]uint32)
		s.uidToSeq = make(map[uint32]uint32)
	}
	s.UIDValidity = v
}

// ApplyUIDNext sets UIDNext from a [UIDNEXT n] response code.
func (s *Selected) ApplyUIDNext(n uint32) {
	s.UIDNext = n
}

// ApplyHighestModSeq sets HighestModSeq from a [HIGHESTMODSEQ m] response
// code, never moving it backwards.
func (s *Selected) ApplyHighestModSeq(m uint64) {
	if m > s.HighestModSeq {
		s.HighestModSeq = m
	}
}

// ApplyRecent folds an untagged "n RECENT".
func (s *Selected) ApplyRecent(n uint32) {
	s.RecentCount = n
}
