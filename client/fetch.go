package client

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	imap "github.com/mailcore/mailproto"
	"github.com/mailcore/mailproto/wire"
)

// FetchMessages retrieves structured message data for the given sequence
// set according to opts, translating it into the FetchOptions/
// FetchMessageData vocabulary instead of leaving the caller to parse raw
// FETCH lines (see Fetch for the lower-level form).
func (c *Client) FetchMessages(seqSet string, opts *imap.FetchOptions) ([]*imap.FetchMessageData, error) {
	return c.fetchMessages("FETCH", seqSet, opts)
}

// UIDFetchMessages is FetchMessages using UIDs instead of sequence numbers.
func (c *Client) UIDFetchMessages(uidSet string, opts *imap.FetchOptions) ([]*imap.FetchMessageData, error) {
	return c.fetchMessages("UID FETCH", uidSet, opts)
}

func (c *Client) fetchMessages(cmdName, set string, opts *imap.FetchOptions) ([]*imap.FetchMessageData, error) {
	if opts != nil && (len(opts.BinarySection) > 0 || len(opts.BinarySizeSection) > 0) {
		if err := c.RequireCap("BINARY"); err != nil {
			return nil, err
		}
	}
	if opts != nil && opts.Preview {
		if err := c.RequireCap("PREVIEW"); err != nil {
			return nil, err
		}
	}
	if opts != nil && (opts.EmailID || opts.ThreadID) {
		if err := c.RequireCap("OBJECTID"); err != nil {
			return nil, err
		}
	}
	if opts != nil && opts.SaveDate {
		if err := c.RequireCap("SAVEDATE"); err != nil {
			return nil, err
		}
	}
	if opts != nil && opts.ChangedSince > 0 {
		if err := c.RequireCap("CONDSTORE"); err != nil {
			return nil, err
		}
	}

	c.collectUntagged()
	c.collectFetchData()

	items := buildFetchItems(opts)
	modifiers := buildFetchModifiers(opts)

	var result *commandResult
	var err error
	if modifiers == "" {
		result, err = c.execute(cmdName, set, items)
	} else {
		result, err = c.execute(cmdName, set, items, modifiers)
	}
	if err != nil {
		return nil, err
	}
	if result.status != "OK" {
		c.collectFetchData()
		return nil, &imap.IMAPError{StatusResponse: &imap.StatusResponse{
			Type: imap.StatusResponseType(result.status),
			Code: imap.ResponseCode(result.code),
			Text: result.text,
		}}
	}

	c.collectUntagged()
	return c.collectFetchData(), nil
}

// buildFetchItems renders a FetchOptions as a parenthesized FETCH
// attribute list, e.g. "(FLAGS UID BODY[TEXT])".
func buildFetchItems(opts *imap.FetchOptions) string {
	var items []string

	if opts.Envelope {
		items = append(items, "ENVELOPE")
	}
	if opts.Flags {
		items = append(items, "FLAGS")
	}
	if opts.InternalDate {
		items = append(items, "INTERNALDATE")
	}
	if opts.RFC822Size {
		items = append(items, "RFC822.SIZE")
	}
	if opts.UID {
		items = append(items, "UID")
	}
	if opts.ModSeq {
		items = append(items, "MODSEQ")
	}
	if opts.BodyStructure {
		items = append(items, "BODYSTRUCTURE")
	}
	if opts.SaveDate {
		items = append(items, "SAVEDATE")
	}
	if opts.EmailID {
		items = append(items, "EMAILID")
	}
	if opts.ThreadID {
		items = append(items, "THREADID")
	}
	if opts.Preview {
		if opts.PreviewLazy {
			items = append(items, "PREVIEW (LAZY)")
		} else {
			items = append(items, "PREVIEW")
		}
	}
	for _, sec := range opts.BodySection {
		items = append(items, buildBodySectionItem(sec))
	}
	for _, sec := range opts.BinarySection {
		items = append(items, buildBinarySectionItem(sec))
	}
	for _, part := range opts.BinarySizeSection {
		items = append(items, fmt.Sprintf("BINARY.SIZE[%s]", partString(part)))
	}

	if len(items) == 0 {
		items = []string{"UID"}
	}
	return "(" + strings.Join(items, " ") + ")"
}

// buildFetchModifiers renders the CHANGEDSINCE/VANISHED FETCH modifiers
// (RFC 7162), or "" if neither was requested.
func buildFetchModifiers(opts *imap.FetchOptions) string {
	var mods []string
	if opts.ChangedSince > 0 {
		mods = append(mods, fmt.Sprintf("CHANGEDSINCE %d", opts.ChangedSince))
	}
	if opts.Vanished {
		mods = append(mods, "VANISHED")
	}
	if len(mods) == 0 {
		return ""
	}
	return "(" + strings.Join(mods, " ") + ")"
}

// parsePartPath parses a dotted MIME part path (e.g. "1.2") into its
// component numbers, ignoring a trailing non-numeric segment such as
// ".MIME" or ".HEADER" if present.
func parsePartPath(section string) []int {
	var part []int
	for _, f := range strings.Split(section, ".") {
		n, err := strconv.Atoi(f)
		if err != nil {
			break
		}
		part = append(part, n)
	}
	return part
}

// splitSectionPath splits a BODY section specifier like "1.2.TEXT" or
// "HEADER (To Subject)" into its leading dotted MIME part path and trailing
// non-numeric specifier.
func splitSectionPath(section string) (part []int, specifier string) {
	segs := strings.Split(section, ".")
	i := 0
	for ; i < len(segs); i++ {
		n, err := strconv.Atoi(segs[i])
		if err != nil {
			break
		}
		part = append(part, n)
	}
	specifier = strings.Join(segs[i:], ".")
	return part, specifier
}

func partString(part []int) string {
	strs := make([]string, len(part))
	for i, p := range part {
		strs[i] = strconv.Itoa(p)
	}
	return strings.Join(strs, ".")
}

func buildBodySectionItem(sec *imap.FetchItemBodySection) string {
	var b strings.Builder
	b.WriteString("BODY")
	if sec.Peek {
		b.WriteString(".PEEK")
	}
	b.WriteByte('[')
	if p := partString(sec.Part); p != "" {
		b.WriteString(p)
		if sec.Specifier != "" {
			b.WriteByte('.')
		}
	}
	b.WriteString(sec.Specifier)
	if strings.EqualFold(sec.Specifier, "HEADER.FIELDS") || strings.EqualFold(sec.Specifier, "HEADER.FIELDS.NOT") {
		b.WriteString(" (")
		b.WriteString(strings.Join(sec.Fields, " "))
		b.WriteByte(')')
	}
	b.WriteByte(']')
	if sec.Partial != nil {
		fmt.Fprintf(&b, "<%d.%d>", sec.Partial.Offset, sec.Partial.Count)
	}
	return b.String()
}

func buildBinarySectionItem(sec *imap.FetchItemBinarySection) string {
	var b strings.Builder
	b.WriteString("BINARY")
	if sec.Peek {
		b.WriteString(".PEEK")
	}
	b.WriteByte('[')
	b.WriteString(partString(sec.Part))
	b.WriteByte(']')
	if sec.Partial != nil {
		fmt.Fprintf(&b, "<%d.%d>", sec.Partial.Offset, sec.Partial.Count)
	}
	return b.String()
}

// parseFullFetchMessage parses an untagged "* N FETCH (...)" message into a
// FetchMessageData, walking msg structurally so literal body sections are
// captured as raw bytes rather than re-scanned as protocol text. It reports
// false for anything that isn't a well-formed FETCH response.
func parseFullFetchMessage(msg *wire.LiteralMessage) (*imap.FetchMessageData, bool) {
	mr := wire.NewMessageReader(msg)
	if err := mr.ExpectByte('*'); err != nil {
		return nil, false
	}
	if err := mr.SkipSpace(); err != nil {
		return nil, false
	}
	seq, err := mr.ReadNumber()
	if err != nil {
		return nil, false
	}
	if err := mr.SkipSpace(); err != nil {
		return nil, false
	}
	name, err := mr.ReadAtom()
	if err != nil || !strings.EqualFold(name, "FETCH") {
		return nil, false
	}
	if err := mr.SkipSpace(); err != nil {
		return nil, false
	}

	data := &imap.FetchMessageData{SeqNum: seq}
	err = mr.ReadList(func() error {
		return parseFetchAttr(mr, data)
	})
	if err != nil {
		return nil, false
	}
	return data, true
}

func parseFetchAttr(mr *wire.MessageReader, data *imap.FetchMessageData) error {
	name, err := mr.ReadAtom()
	if err != nil {
		return err
	}
	section, partial, hasSection := parseFetchSectionQualifier(mr, name)
	if err := mr.SkipSpace(); err != nil {
		return err
	}

	upper := strings.ToUpper(name)
	switch {
	case upper == "UID":
		n, err := mr.ReadNumber()
		if err != nil {
			return err
		}
		data.UID = imap.UID(n)
	case upper == "FLAGS":
		flags, err := mr.ReadFlags()
		if err != nil {
			return err
		}
		for _, f := range flags {
			data.Flags = append(data.Flags, imap.Flag(f))
		}
	case upper == "INTERNALDATE":
		s, _, err := mr.ReadNString()
		if err != nil {
			return err
		}
		if t, err := time.Parse(imap.InternalDateLayout, s); err == nil {
			data.InternalDate = t
		}
	case upper == "RFC822.SIZE":
		n, err := mr.ReadNumber64()
		if err != nil {
			return err
		}
		data.RFC822Size = int64(n)
	case upper == "MODSEQ":
		return mr.ReadList(func() error {
			n, err := mr.ReadNumber64()
			if err != nil {
				return err
			}
			data.ModSeq = n
			return nil
		})
	case upper == "ENVELOPE":
		env, err := parseEnvelope(mr)
		if err != nil {
			return err
		}
		data.Envelope = env
	case upper == "BODYSTRUCTURE" || upper == "BODY" && !hasSection:
		bs, err := parseBodyStructure(mr)
		if err != nil {
			return err
		}
		data.BodyStructure = bs
	case upper == "BODY" && hasSection:
		return readSectionValue(mr, func(payload []byte) {
			if data.BodySection == nil {
				data.BodySection = map[*imap.FetchItemBodySection]imap.SectionReader{}
			}
			part, specifier := splitSectionPath(section)
			key := &imap.FetchItemBodySection{Part: part, Specifier: specifier, Partial: partial}
			data.BodySection[key] = imap.SectionReader{Reader: strings.NewReader(string(payload)), Size: int64(len(payload))}
		})
	case strings.HasPrefix(upper, "BINARY.SIZE"):
		n, err := mr.ReadNumber()
		if err != nil {
			return err
		}
		data.BinarySizeSection = append(data.BinarySizeSection, imap.BinarySizeData{Part: parsePartPath(section), Size: n})
	case strings.HasPrefix(upper, "BINARY"):
		return readSectionValue(mr, func(payload []byte) {
			if data.BinarySection == nil {
				data.BinarySection = map[*imap.FetchItemBinarySection]imap.SectionReader{}
			}
			key := &imap.FetchItemBinarySection{Part: parsePartPath(section), Partial: partial}
			data.BinarySection[key] = imap.SectionReader{Reader: strings.NewReader(string(payload)), Size: int64(len(payload))}
		})
	case upper == "PREVIEW":
		s, ok, err := mr.ReadNString()
		if err != nil {
			return err
		}
		data.Preview = s
		data.PreviewNIL = !ok
	case upper == "SAVEDATE":
		s, ok, err := mr.ReadNString()
		if err != nil {
			return err
		}
		if ok {
			if t, err := time.Parse(imap.InternalDateLayout, s); err == nil {
				data.SaveDate = &t
			}
		}
	case upper == "EMAILID":
		return mr.ReadList(func() error {
			s, err := mr.ReadAtom()
			if err != nil {
				return err
			}
			data.EmailID = s
			return nil
		})
	case upper == "THREADID":
		if b, ok := mr.PeekByte(); ok && b == '(' {
			return mr.ReadList(func() error {
				s, err := mr.ReadAtom()
				if err != nil {
					return err
				}
				data.ThreadID = s
				return nil
			})
		}
		s, _, err := mr.ReadNString()
		if err != nil {
			return err
		}
		data.ThreadID = s
	default:
		return mr.SkipValue()
	}
	return nil
}

// parseFetchSectionQualifier extracts a "[section]"/"<partial>" qualifier
// trailing a BODY/BINARY/BINARY.SIZE attribute name, consuming it from mr.
func parseFetchSectionQualifier(mr *wire.MessageReader, name string) (section string, partial *imap.SectionPartial, ok bool) {
	if idx := strings.IndexByte(name, '['); idx >= 0 {
		section = name[idx+1:]
		ok = true
	} else if b, peeked := mr.PeekByte(); !peeked || b != '[' {
		return "", nil, false
	} else {
		ok = true
		_ = mr.ExpectByte('[')
	}

	if !strings.Contains(section, "]") {
		mr.SkipSpaces()
		if b, peeked := mr.PeekByte(); peeked && b == '(' {
			var fields []string
			_ = mr.ReadList(func() error {
				f, err := mr.ReadAtom()
				if err != nil {
					return err
				}
				fields = append(fields, f)
				return nil
			})
			section += " (" + strings.Join(fields, " ") + ")"
		}
		mr.SkipSpaces()
		_ = mr.ExpectByte(']')
	} else {
		section = strings.TrimSuffix(section, "]")
	}

	if b, peeked := mr.PeekByte(); peeked && b == '<' {
		_ = mr.ExpectByte('<')
		offset, err := mr.ReadNumber64()
		if err == nil {
			_ = mr.ExpectByte('.')
			if count, err := mr.ReadNumber64(); err == nil {
				partial = &imap.SectionPartial{Offset: int64(offset), Count: int64(count)}
			}
			_ = mr.ExpectByte('>')
		}
	}
	return section, partial, ok
}

// readSectionValue reads an nstring-or-literal FETCH attribute value
// (a BODY[section] or BINARY[section] payload) and hands its bytes to fn;
// NIL yields no call.
func readSectionValue(mr *wire.MessageReader, fn func(payload []byte)) error {
	if strings.HasPrefix(strings.ToUpper(mr.Remaining()), "NIL") {
		_, _, err := mr.ReadNString()
		return err
	}
	s, err := mr.ReadString()
	if err != nil {
		return err
	}
	fn([]byte(s))
	return nil
}
