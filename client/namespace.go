package client

import (
	"strings"

	imap "github.com/mailcore/mailproto"
	"github.com/mailcore/mailproto/wire"
)

// Namespace sends a NAMESPACE command (RFC 2342) and parses the untagged
// response into personal/other-users/shared namespace lists.
func (c *Client) Namespace() (*imap.NamespaceData, error) {
	c.collectUntagged()

	result, err := c.execute("NAMESPACE")
	if err != nil {
		return nil, err
	}
	if result.status != "OK" {
		c.collectUntagged()
		return nil, &imap.IMAPError{StatusResponse: &imap.StatusResponse{
			Type: imap.StatusResponseType(result.status),
			Code: imap.ResponseCode(result.code),
			Text: result.text,
		}}
	}

	data := &imap.NamespaceData{}
	for _, line := range c.collectUntagged() {
		if !strings.HasPrefix(line, "NAMESPACE ") {
			continue
		}
		mr := wire.NewMessageReaderString(line[len("NAMESPACE "):])
		personal, err := parseNamespaceGroup(mr)
		if err != nil {
			continue
		}
		if err := mr.SkipSpace(); err != nil {
			continue
		}
		other, err := parseNamespaceGroup(mr)
		if err != nil {
			continue
		}
		if err := mr.SkipSpace(); err != nil {
			continue
		}
		shared, err := parseNamespaceGroup(mr)
		if err != nil {
			continue
		}
		data.Personal = personal
		data.Other = other
		data.Shared = shared
	}
	return data, nil
}

// parseNamespaceGroup parses one of NAMESPACE's three NIL-or-list groups,
// each a list of (prefix delim) pairs.
func parseNamespaceGroup(mr *wire.MessageReader) ([]imap.NamespaceDescriptor, error) {
	if strings.HasPrefix(strings.ToUpper(mr.Remaining()), "NIL") {
		_, _, err := mr.ReadNString()
		return nil, err
	}

	var descriptors []imap.NamespaceDescriptor
	err := mr.ReadList(func() error {
		var d imap.NamespaceDescriptor
		if err := mr.ExpectByte('('); err != nil {
			return err
		}
		prefix, err := mr.ReadAString()
		if err != nil {
			return err
		}
		d.Prefix = prefix
		if err := mr.SkipSpace(); err != nil {
			return err
		}
		delim, hasDelim, err := mr.ReadNString()
		if err != nil {
			return err
		}
		if hasDelim && len(delim) > 0 {
			d.Delim = rune(delim[0])
		}
		// Namespace response extensions (param lists) may follow; skip
		// anything up to the closing paren.
		for {
			mr.SkipSpaces()
			b, ok := mr.PeekByte()
			if !ok || b == ')' {
				break
			}
			if err := mr.SkipValue(); err != nil {
				return err
			}
		}
		if err := mr.ExpectByte(')'); err != nil {
			return err
		}
		descriptors = append(descriptors, d)
		return nil
	})
	return descriptors, err
}
