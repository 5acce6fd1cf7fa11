package client

import (
	"strings"

	imap "github.com/mailcore/mailproto"
	"github.com/mailcore/mailproto/wire"
)

// parseBodyStructure parses a BODY/BODYSTRUCTURE response (RFC 3501 §7.4.2).
// A multipart body is a list of child bodies followed by the subtype; a
// non-multipart body is a flat list of MIME fields. Extended fields (MD5,
// disposition, language, location) are only present for BODYSTRUCTURE, not
// plain BODY, and are read best-effort since the caller can't tell which
// form it requested from the payload alone.
func parseBodyStructure(mr *wire.MessageReader) (*imap.BodyStructure, error) {
	if err := mr.ExpectByte('('); err != nil {
		return nil, err
	}

	bs := &imap.BodyStructure{}

	if b, ok := mr.PeekByte(); ok && b == '(' {
		if err := parseMultipartBody(mr, bs); err != nil {
			return nil, err
		}
	} else {
		if err := parseSinglepartBody(mr, bs); err != nil {
			return nil, err
		}
	}

	if err := mr.ExpectByte(')'); err != nil {
		return nil, err
	}
	return bs, nil
}

func parseMultipartBody(mr *wire.MessageReader, bs *imap.BodyStructure) error {
	bs.Type = "multipart"
	for {
		b, ok := mr.PeekByte()
		if !ok {
			return nil
		}
		if b != '(' {
			break
		}
		child, err := parseBodyStructure(mr)
		if err != nil {
			return err
		}
		bs.Children = append(bs.Children, *child)
		if err := mr.SkipSpace(); err != nil {
			return err
		}
	}

	subtype, _, err := mr.ReadNString()
	if err != nil {
		return err
	}
	bs.Subtype = subtype

	// Extended multipart fields: body parameters, disposition, language,
	// location. All optional; stop as soon as the list runs out.
	if mr.AtEnd() {
		return nil
	}
	if b, ok := mr.PeekByte(); !ok || b == ')' {
		return nil
	}
	if err := mr.SkipSpace(); err != nil {
		return nil
	}
	bs.Params, err = parseBodyParams(mr)
	if err != nil {
		return err
	}
	return parseExtendedFields(mr, bs)
}

func parseSinglepartBody(mr *wire.MessageReader, bs *imap.BodyStructure) error {
	var err error
	if bs.Type, _, err = mr.ReadNString(); err != nil {
		return err
	}
	if err := mr.SkipSpace(); err != nil {
		return err
	}
	if bs.Subtype, _, err = mr.ReadNString(); err != nil {
		return err
	}
	if err := mr.SkipSpace(); err != nil {
		return err
	}
	if bs.Params, err = parseBodyParams(mr); err != nil {
		return err
	}
	if err := mr.SkipSpace(); err != nil {
		return err
	}
	if bs.ID, _, err = mr.ReadNString(); err != nil {
		return err
	}
	if err := mr.SkipSpace(); err != nil {
		return err
	}
	if bs.Description, _, err = mr.ReadNString(); err != nil {
		return err
	}
	if err := mr.SkipSpace(); err != nil {
		return err
	}
	if bs.Encoding, _, err = mr.ReadNString(); err != nil {
		return err
	}
	if err := mr.SkipSpace(); err != nil {
		return err
	}
	size, err := mr.ReadNumber()
	if err != nil {
		return err
	}
	bs.Size = size

	isMessageRFC822 := strings.EqualFold(bs.Type, "message") && strings.EqualFold(bs.Subtype, "rfc822")
	isText := strings.EqualFold(bs.Type, "text")

	if isMessageRFC822 {
		if err := mr.SkipSpace(); err != nil {
			return err
		}
		env, err := parseEnvelope(mr)
		if err != nil {
			return err
		}
		bs.Envelope = env

		if err := mr.SkipSpace(); err != nil {
			return err
		}
		child, err := parseBodyStructure(mr)
		if err != nil {
			return err
		}
		bs.BodyStructure = child

		if err := mr.SkipSpace(); err != nil {
			return err
		}
		lines, err := mr.ReadNumber()
		if err != nil {
			return err
		}
		bs.Lines = lines
	} else if isText {
		if err := mr.SkipSpace(); err != nil {
			return err
		}
		lines, err := mr.ReadNumber()
		if err != nil {
			return err
		}
		bs.Lines = lines
	}

	if mr.AtEnd() {
		return nil
	}
	if b, ok := mr.PeekByte(); !ok || b == ')' {
		return nil
	}
	return parseExtendedFields(mr, bs)
}

// parseBodyParams parses a NIL or parenthesized (name value name value ...)
// list of body parameters.
func parseBodyParams(mr *wire.MessageReader) (map[string]string, error) {
	if b, ok := mr.PeekByte(); ok && b != '(' {
		_, _, err := mr.ReadNString()
		return nil, err
	}

	params := map[string]string{}
	var key string
	haveKey := false
	err := mr.ReadList(func() error {
		s, _, err := mr.ReadNString()
		if err != nil {
			return err
		}
		if !haveKey {
			key = s
			haveKey = true
			return nil
		}
		params[key] = s
		haveKey = false
		return nil
	})
	return params, err
}

// parseExtendedFields parses the optional extended BODYSTRUCTURE fields
// that trail every form: MD5, disposition, language, location. Each is
// separated by a space and may be NIL; parsing stops at the first field
// missing or malformed, since servers vary in how many they send.
func parseExtendedFields(mr *wire.MessageReader, bs *imap.BodyStructure) error {
	if mr.AtEnd() {
		return nil
	}
	if b, ok := mr.PeekByte(); !ok || b == ')' {
		return nil
	}
	md5, _, err := mr.ReadNString()
	if err != nil {
		return nil
	}
	bs.MD5 = md5

	if mr.AtEnd() {
		return nil
	}
	if b, ok := mr.PeekByte(); !ok || b == ')' {
		return nil
	}
	if err := mr.SkipSpace(); err != nil {
		return nil
	}
	if err := parseDisposition(mr, bs); err != nil {
		return nil
	}

	if mr.AtEnd() {
		return nil
	}
	if b, ok := mr.PeekByte(); !ok || b == ')' {
		return nil
	}
	if err := mr.SkipSpace(); err != nil {
		return nil
	}
	if lang, ok := parseLanguage(mr); ok {
		bs.Language = lang
	}

	if mr.AtEnd() {
		return nil
	}
	if b, ok := mr.PeekByte(); !ok || b == ')' {
		return nil
	}
	if err := mr.SkipSpace(); err != nil {
		return nil
	}
	if loc, _, err := mr.ReadNString(); err == nil {
		bs.Location = loc
	}
	return nil
}

func parseDisposition(mr *wire.MessageReader, bs *imap.BodyStructure) error {
	if b, ok := mr.PeekByte(); ok && b != '(' {
		_, _, err := mr.ReadNString()
		return err
	}
	return mr.ReadList(func() error {
		if bs.Disposition == "" {
			d, _, err := mr.ReadNString()
			if err != nil {
				return err
			}
			bs.Disposition = d
			if err := mr.SkipSpace(); err != nil {
				return err
			}
			params, err := parseBodyParams(mr)
			if err != nil {
				return err
			}
			bs.DispositionParams = params
			return nil
		}
		return mr.SkipValue()
	})
}

func parseLanguage(mr *wire.MessageReader) ([]string, bool) {
	if b, ok := mr.PeekByte(); ok && b == '(' {
		var langs []string
		if err := mr.ReadList(func() error {
			s, _, err := mr.ReadNString()
			if err != nil {
				return err
			}
			langs = append(langs, s)
			return nil
		}); err != nil {
			return nil, false
		}
		return langs, true
	}
	s, ok, err := mr.ReadNString()
	if err != nil || !ok {
		return nil, false
	}
	return []string{s}, true
}
