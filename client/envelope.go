package client

import (
	"strings"
	"time"

	imap "github.com/mailcore/mailproto"
	"github.com/mailcore/mailproto/wire"
)

// parseEnvelope parses an ENVELOPE structure (RFC 3501 §7.4.2): a 10-element
// parenthesized list of date, subject, from/sender/reply-to/to/cc/bcc
// address lists, in-reply-to and message-id.
func parseEnvelope(mr *wire.MessageReader) (*imap.Envelope, error) {
	env := &imap.Envelope{}

	if err := mr.ExpectByte('('); err != nil {
		return nil, err
	}

	date, ok, err := mr.ReadNString()
	if err != nil {
		return nil, err
	}
	if ok {
		env.Date = parseEnvelopeDate(date)
	}
	if err := mr.SkipSpace(); err != nil {
		return nil, err
	}

	subject, ok, err := mr.ReadNString()
	if err != nil {
		return nil, err
	}
	if ok {
		env.Subject = subject
	}

	fields := []*[]*imap.Address{&env.From, &env.Sender, &env.ReplyTo, &env.To, &env.Cc, &env.Bcc}
	for _, f := range fields {
		if err := mr.SkipSpace(); err != nil {
			return nil, err
		}
		addrs, err := parseAddressList(mr)
		if err != nil {
			return nil, err
		}
		*f = addrs
	}

	if err := mr.SkipSpace(); err != nil {
		return nil, err
	}
	if inReplyTo, ok, err := mr.ReadNString(); err != nil {
		return nil, err
	} else if ok {
		env.InReplyTo = inReplyTo
	}

	if err := mr.SkipSpace(); err != nil {
		return nil, err
	}
	if msgID, ok, err := mr.ReadNString(); err != nil {
		return nil, err
	} else if ok {
		env.MessageID = msgID
	}

	if err := mr.ExpectByte(')'); err != nil {
		return nil, err
	}
	return env, nil
}

// parseAddressList parses a NIL or parenthesized list of address structures.
func parseAddressList(mr *wire.MessageReader) ([]*imap.Address, error) {
	if b, ok := mr.PeekByte(); ok && b != '(' {
		// NIL
		if _, _, err := mr.ReadNString(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	var addrs []*imap.Address
	err := mr.ReadList(func() error {
		a, err := parseAddress(mr)
		if err != nil {
			return err
		}
		addrs = append(addrs, a)
		return nil
	})
	return addrs, err
}

// parseAddress parses a single address structure: (name adl mailbox host).
func parseAddress(mr *wire.MessageReader) (*imap.Address, error) {
	a := &imap.Address{}
	if err := mr.ExpectByte('('); err != nil {
		return nil, err
	}

	if name, ok, err := mr.ReadNString(); err != nil {
		return nil, err
	} else if ok {
		a.Name = name
	}
	if err := mr.SkipSpace(); err != nil {
		return nil, err
	}
	// adl (at-domain-list / source route) is obsolete and discarded.
	if _, _, err := mr.ReadNString(); err != nil {
		return nil, err
	}
	if err := mr.SkipSpace(); err != nil {
		return nil, err
	}
	if mailbox, ok, err := mr.ReadNString(); err != nil {
		return nil, err
	} else {
		a.Mailbox = mailbox
		a.MailboxIsNil = !ok
	}
	if err := mr.SkipSpace(); err != nil {
		return nil, err
	}
	if host, ok, err := mr.ReadNString(); err != nil {
		return nil, err
	} else {
		a.Host = host
		a.HostIsNil = !ok
	}

	if err := mr.ExpectByte(')'); err != nil {
		return nil, err
	}
	return a, nil
}

func parseEnvelopeDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{
		"Mon, 02 Jan 2006 15:04:05 -0700",
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"02 Jan 2006 15:04:05 -0700",
		"2 Jan 2006 15:04:05 -0700",
		time.RFC1123Z,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
