package client

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	imap "github.com/mailcore/mailproto"
	"github.com/mailcore/mailproto/wire"
)

// reader is the background goroutine that reads responses from the server.
// It feeds raw bytes into a wire.LiteralDecoder rather than blocking on a
// line-oriented reader, so a literal's payload (which may contain bare
// CRLFs) never gets mis-framed as multiple lines. src must be the
// connection's current Decoder.Reader(), not the bare net.Conn, so bytes
// already sitting in the Decoder's internal buffer aren't stranded.
type reader struct {
	src    io.Reader
	ld     *wire.LiteralDecoder
	client *Client

	mu       sync.Mutex
	pauseTag string
	pausedCh chan struct{}
	stopped  bool
}

func newReader(src io.Reader, c *Client) *reader {
	return &reader{
		src:    src,
		ld:     wire.NewLiteralDecoder(),
		client: c,
	}
}

// pauseAfterTag arranges for run to return as soon as the tagged response
// for tag has been processed, before issuing another Read. STARTTLS uses
// this to guarantee the plaintext reader goroutine isn't blocked in a Read
// on the raw connection when the TLS handshake's first bytes arrive on it.
func (r *reader) pauseAfterTag(tag string) <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pauseTag = tag
	r.pausedCh = make(chan struct{})
	return r.pausedCh
}

func (r *reader) isStopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

// run reads and dispatches server responses until the connection is closed
// or pauseAfterTag's tag has been delivered.
func (r *reader) run() {
	buf := make([]byte, 4096)
	for {
		n, err := r.src.Read(buf)
		if n > 0 {
			msgs, decErr := r.ld.Feed(buf[:n])
			for _, msg := range msgs {
				if procErr := r.processMessage(msg); procErr != nil {
					r.client.options.Logger.Debug("process error", "error", procErr)
				}
				if r.isStopped() {
					return
				}
			}
			if decErr != nil {
				r.client.options.Logger.Debug("decode error", "error", decErr)
				r.client.handleDisconnect(decErr)
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			r.client.options.Logger.Debug("reader error", "error", err)
			r.client.handleDisconnect(err)
			return
		}
	}
}

// processMessage resolves a framed message's literal placeholders back
// into the line text (the existing prefix-based response dispatch below
// operates on strings) and dispatches it.
//
// FETCH's UID/MODSEQ attributes are folded into the selected-mailbox state
// here, against msg directly, before literals are spliced into a flat
// string: a literal payload (message body text) can legitimately contain
// the bytes "UID 5" or "MODSEQ (9)", and only a structural walk that
// tracks placeholders as opaque payload slots rather than re-scanning
// their content as protocol text can tell the two apart.
func (r *reader) processMessage(msg *wire.LiteralMessage) error {
	if seq, uid, hasUID, modSeq, hasModSeq, ok := parseFetchAttrsFromMessage(msg); ok {
		r.client.mu.Lock()
		if hasUID {
			r.client.selected.ApplyFetchUID(seq, uid, modSeq)
		} else if hasModSeq {
			r.client.selected.ApplyHighestModSeq(modSeq)
		}
		r.client.mu.Unlock()

		if data, ok := parseFullFetchMessage(msg); ok {
			r.client.storeFetchData(data)
		}
	}

	line := resolveLiterals(msg)
	r.client.options.Logger.Debug("recv", "line", line)
	return r.processLine(line)
}

// parseFetchAttrsFromMessage reports whether msg is an untagged FETCH
// response and, if so, its sequence number plus any UID/MODSEQ attribute
// values present.
func parseFetchAttrsFromMessage(msg *wire.LiteralMessage) (seq, uid uint32, hasUID bool, modSeq uint64, hasModSeq bool, isFetch bool) {
	mr := wire.NewMessageReader(msg)
	if err := mr.ExpectByte('*'); err != nil {
		return
	}
	if err := mr.SkipSpace(); err != nil {
		return
	}
	n, err := mr.ReadNumber()
	if err != nil {
		return
	}
	if err := mr.SkipSpace(); err != nil {
		return
	}
	name, err := mr.ReadAtom()
	if err != nil || !strings.EqualFold(name, "FETCH") {
		return
	}
	if err := mr.SkipSpace(); err != nil {
		return
	}
	seq = n
	isFetch = true
	uid, hasUID, modSeq, hasModSeq = scanFetchAttrs(mr)
	return
}

// scanFetchAttrs walks a FETCH response's parenthesized attribute list,
// extracting UID and MODSEQ when present and skipping every other
// attribute (FLAGS, ENVELOPE, BODY[section], ...) without attempting to
// parse its value.
func scanFetchAttrs(mr *wire.MessageReader) (uid uint32, hasUID bool, modSeq uint64, hasModSeq bool) {
	if err := mr.ExpectByte('('); err != nil {
		return
	}
	first := true
	for {
		b, ok := mr.PeekByte()
		if !ok {
			return
		}
		if b == ')' {
			return
		}
		if !first {
			if err := mr.SkipSpace(); err != nil {
				return
			}
		}
		first = false

		name, err := mr.ReadAtom()
		if err != nil {
			return
		}
		skipFetchAttrQualifiers(mr, name)
		if err := mr.SkipSpace(); err != nil {
			return
		}

		switch strings.ToUpper(name) {
		case "UID":
			n, err := mr.ReadNumber()
			if err != nil {
				return
			}
			uid, hasUID = n, true
		case "MODSEQ":
			_ = mr.ReadList(func() error {
				n, err := mr.ReadNumber64()
				if err != nil {
					return err
				}
				modSeq, hasModSeq = n, true
				return nil
			})
		default:
			if err := mr.SkipValue(); err != nil {
				return
			}
		}
	}
}

// skipFetchAttrQualifiers consumes a FETCH attribute name's optional
// section ("[...]", possibly containing a header-field-name list) and
// partial range ("<start.count>") qualifiers, as in "BODY[HEADER.FIELDS
// (To Subject)]<0.100>". name is the atom already read by the caller: '['
// is not an atom-special, so a bracket with no embedded space is already
// part of it (e.g. "BODY[TEXT"), leaving only the closing ']' to consume.
func skipFetchAttrQualifiers(mr *wire.MessageReader, name string) {
	if strings.Contains(name, "[") && !strings.Contains(name, "]") {
		mr.SkipSpaces()
		if b, ok := mr.PeekByte(); ok && b == '(' {
			_ = mr.ReadList(mr.SkipValue)
		}
		mr.SkipSpaces()
		_ = mr.ExpectByte(']')
	}
	if b, ok := mr.PeekByte(); ok && b == '<' {
		_ = mr.ExpectByte('<')
		for {
			b, ok := mr.PeekByte()
			if !ok {
				return
			}
			_ = mr.ExpectByte(b)
			if b == '>' {
				return
			}
		}
	}
}

// resolveLiterals splices each literal's raw bytes back into msg.Line in
// place of its "{N}"/"{N+}" placeholder, so downstream parsing sees one
// flat string with the literal's content inline, the same shape a
// non-literal response line already has.
func resolveLiterals(msg *wire.LiteralMessage) string {
	if len(msg.Payloads) == 0 {
		return msg.Line
	}
	r := wire.NewMessageReader(msg)
	var out strings.Builder
	for !r.AtEnd() {
		if _, _, ok := r.PeekLiteral(); ok {
			payload, err := r.ReadLiteralPlaceholder()
			if err != nil {
				out.WriteString(r.Remaining())
				break
			}
			out.Write(payload)
			continue
		}
		b, ok := r.PeekByte()
		if !ok {
			break
		}
		out.WriteByte(b)
		_ = r.ExpectByte(b)
	}
	return out.String()
}

// processLine handles a single response line.
func (r *reader) processLine(line string) error {
	if len(line) == 0 {
		return nil
	}

	// Continuation request
	if line[0] == '+' {
		r.client.handleContinuation(line)
		return nil
	}

	// Untagged response
	if strings.HasPrefix(line, "* ") {
		return r.processUntagged(line[2:])
	}

	// Tagged response
	return r.processTagged(line)
}

// processUntagged handles an untagged response.
func (r *reader) processUntagged(line string) error {
	// Try to parse as numeric response: "123 EXISTS", "456 EXPUNGE", etc.
	spaceIdx := strings.IndexByte(line, ' ')
	if spaceIdx > 0 {
		numStr := line[:spaceIdx]
		if num, err := strconv.ParseUint(numStr, 10, 32); err == nil {
			rest := line[spaceIdx+1:]
			return r.processNumericResponse(uint32(num), rest)
		}
	}

	// Named response
	upperLine := strings.ToUpper(line)

	if strings.HasPrefix(upperLine, "OK ") {
		r.handleStatusResponse("OK", line[3:])
		return nil
	}
	if strings.HasPrefix(upperLine, "NO ") {
		r.handleStatusResponse("NO", line[3:])
		return nil
	}
	if strings.HasPrefix(upperLine, "BAD ") {
		r.handleStatusResponse("BAD", line[4:])
		return nil
	}
	if strings.HasPrefix(upperLine, "BYE ") {
		r.handleStatusResponse("BYE", line[4:])
		return nil
	}
	if strings.HasPrefix(upperLine, "PREAUTH ") {
		r.handleStatusResponse("PREAUTH", line[8:])
		return nil
	}
	if strings.HasPrefix(upperLine, "CAPABILITY ") {
		r.handleCapability(line[11:])
		return nil
	}
	if strings.HasPrefix(upperLine, "FLAGS ") {
		r.handleFlags(line[6:])
		return nil
	}
	if strings.HasPrefix(upperLine, "LIST ") {
		r.handleList(line[5:])
		return nil
	}
	if strings.HasPrefix(upperLine, "LSUB ") {
		r.handleList(line[5:])
		return nil
	}
	if strings.HasPrefix(upperLine, "STATUS ") {
		r.handleStatus(line[7:])
		return nil
	}
	if strings.HasPrefix(upperLine, "SEARCH ") || upperLine == "SEARCH" {
		r.handleSearch(line)
		return nil
	}
	if strings.HasPrefix(upperLine, "ESEARCH ") {
		r.handleESearch(line[8:])
		return nil
	}
	if strings.HasPrefix(upperLine, "NAMESPACE ") {
		r.handleNamespace(line[10:])
		return nil
	}
	if strings.HasPrefix(upperLine, "VANISHED ") {
		r.handleVanished(line[9:])
		return nil
	}

	// Store for any waiting data collector
	r.client.storeUntagged(line)
	return nil
}

// processNumericResponse handles "* 123 SOMETHING" responses.
func (r *reader) processNumericResponse(num uint32, rest string) error {
	upper := strings.ToUpper(rest)

	switch {
	case upper == "EXISTS":
		r.client.mu.Lock()
		r.client.mailboxMessages = num
		r.client.selected.ApplyExists(num)
		r.client.mu.Unlock()
		if h := r.client.options.UnilateralDataHandler; h != nil && h.Exists != nil {
			h.Exists(num)
		}
	case upper == "RECENT":
		r.client.mu.Lock()
		r.client.mailboxRecent = num
		r.client.selected.ApplyRecent(num)
		r.client.mu.Unlock()
		if h := r.client.options.UnilateralDataHandler; h != nil && h.Recent != nil {
			h.Recent(num)
		}
	case upper == "EXPUNGE":
		r.client.mu.Lock()
		r.client.selected.ApplyExpunge(num)
		r.client.mailboxMessages = r.client.selected.MessageCount
		r.client.mu.Unlock()
		if h := r.client.options.UnilateralDataHandler; h != nil && h.Expunge != nil {
			h.Expunge(num)
		}
	case strings.HasPrefix(upper, "FETCH "):
		r.handleFetchResponse(num, rest[6:])
	default:
		r.client.storeUntagged(fmt.Sprintf("%d %s", num, rest))
	}

	return nil
}

// processTagged handles a tagged response (completes a pending command).
func (r *reader) processTagged(line string) error {
	// Format: TAG STATUS [CODE] text
	spaceIdx := strings.IndexByte(line, ' ')
	if spaceIdx < 0 {
		return fmt.Errorf("malformed tagged response: %q", line)
	}

	tag := line[:spaceIdx]
	rest := line[spaceIdx+1:]

	status, code, text := parseStatusResponse(rest)

	r.client.pending.Complete(tag, &commandResult{
		status: status,
		code:   code,
		text:   text,
	})

	r.mu.Lock()
	if r.pauseTag != "" && tag == r.pauseTag {
		r.stopped = true
		ch := r.pausedCh
		r.pauseTag = ""
		r.pausedCh = nil
		r.mu.Unlock()
		if ch != nil {
			close(ch)
		}
		return nil
	}
	r.mu.Unlock()

	return nil
}

func parseStatusResponse(s string) (status, code, text string) {
	spaceIdx := strings.IndexByte(s, ' ')
	if spaceIdx < 0 {
		return s, "", ""
	}
	status = s[:spaceIdx]
	rest := s[spaceIdx+1:]

	if strings.HasPrefix(rest, "[") {
		endBracket := strings.IndexByte(rest, ']')
		if endBracket > 0 {
			code = rest[1:endBracket]
			if endBracket+2 < len(rest) {
				text = rest[endBracket+2:]
			}
			return
		}
	}

	text = rest
	return
}

// Stub handlers - these store data for the client to consume

func (r *reader) handleStatusResponse(status, text string) {
	// Parse response code if present
	if strings.HasPrefix(text, "[") {
		endBracket := strings.IndexByte(text, ']')
		if endBracket > 0 {
			code := text[1:endBracket]
			r.handleResponseCode(code)
		}
	}
}

func (r *reader) handleResponseCode(code string) {
	upper := strings.ToUpper(code)

	parts := strings.SplitN(code, " ", 2)
	name := strings.ToUpper(parts[0])
	var arg string
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch name {
	case "UIDVALIDITY":
		if n, err := strconv.ParseUint(arg, 10, 32); err == nil {
			r.client.mu.Lock()
			r.client.mailboxUIDValidity = uint32(n)
			r.client.selected.ApplyUIDValidity(uint32(n))
			r.client.mu.Unlock()
		}
	case "UIDNEXT":
		if n, err := strconv.ParseUint(arg, 10, 32); err == nil {
			r.client.mu.Lock()
			r.client.mailboxUIDNext = uint32(n)
			r.client.selected.ApplyUIDNext(uint32(n))
			r.client.mu.Unlock()
		}
	case "HIGHESTMODSEQ":
		if n, err := strconv.ParseUint(arg, 10, 64); err == nil {
			r.client.mu.Lock()
			r.client.selected.ApplyHighestModSeq(n)
			r.client.mu.Unlock()
		}
	case "UNSEEN":
		if n, err := strconv.ParseUint(arg, 10, 32); err == nil {
			r.client.mu.Lock()
			r.client.mailboxUnseen = uint32(n)
			r.client.mu.Unlock()
		}
	case "PERMANENTFLAGS":
		r.client.storeUntagged("PERMANENTFLAGS " + arg)
	case "CAPABILITY":
		r.handleCapability(arg)
	case "READ-ONLY":
		r.client.mu.Lock()
		r.client.mailboxReadOnly = true
		r.client.mu.Unlock()
	case "READ-WRITE":
		r.client.mu.Lock()
		r.client.mailboxReadOnly = false
		r.client.mu.Unlock()
	default:
		_ = upper
	}
}

func (r *reader) handleCapability(line string) {
	fresh := imap.NewCapSet()
	addCaps(fresh, strings.Fields(line))
	r.client.mu.Lock()
	r.client.caps = fresh
	r.client.mu.Unlock()
}

func (r *reader) handleFlags(line string) {
	r.client.storeUntagged("FLAGS " + line)
}

func (r *reader) handleList(line string) {
	r.client.storeUntagged("LIST " + line)
}

func (r *reader) handleStatus(line string) {
	r.client.storeUntagged("STATUS " + line)
}

func (r *reader) handleSearch(line string) {
	r.client.storeUntagged(line)
}

func (r *reader) handleESearch(line string) {
	r.client.storeUntagged("ESEARCH " + line)
}

func (r *reader) handleNamespace(line string) {
	r.client.storeUntagged("NAMESPACE " + line)
}

func (r *reader) handleFetchResponse(seqNum uint32, data string) {
	r.client.storeUntagged(fmt.Sprintf("FETCH %d %s", seqNum, data))
}

// handleVanished folds a QRESYNC "VANISHED [(EARLIER)] <uid-set>" untagged
// response into the selected-mailbox state and notifies the unilateral
// data handler. earlier marks a historical resync notification rather
// than a live expunge; ApplyVanished folds both identically but callers
// still need to tell them apart to present them correctly.
func (r *reader) handleVanished(arg string) {
	arg = strings.TrimSpace(arg)
	earlier := false
	if rest, ok := stripVanishedEarlier(arg); ok {
		earlier = true
		arg = rest
	}

	var uids []uint32
	if set, err := imap.ParseUIDSet(arg); err == nil {
		for _, rng := range set.Ranges() {
			start, stop := rng.Start, rng.Stop
			if stop == 0 {
				stop = start
			}
			for uid := start; uid <= stop; uid++ {
				uids = append(uids, uid)
			}
		}
	}

	r.client.mu.Lock()
	r.client.selected.ApplyVanished(uids, earlier)
	r.client.mailboxMessages = r.client.selected.MessageCount
	r.client.mu.Unlock()

	if h := r.client.options.UnilateralDataHandler; h != nil && h.Vanished != nil {
		imapUIDs := make([]imap.UID, len(uids))
		for i, uid := range uids {
			imapUIDs[i] = imap.UID(uid)
		}
		h.Vanished(imapUIDs, earlier)
	}

	r.client.storeUntagged("VANISHED " + arg)
}

// stripVanishedEarlier reports whether arg begins with the optional
// "(EARLIER)" tag and, if so, returns the remainder.
func stripVanishedEarlier(arg string) (string, bool) {
	const tag = "(EARLIER)"
	if len(arg) < len(tag) || !strings.EqualFold(arg[:len(tag)], tag) {
		return arg, false
	}
	return strings.TrimSpace(arg[len(tag):]), true
}
