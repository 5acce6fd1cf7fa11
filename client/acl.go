package client

import (
	"strings"

	imap "github.com/mailcore/mailproto"
)

// GetACL requests the access control list for a mailbox (RFC 4314).
func (c *Client) GetACL(mailbox string) (*imap.ACLData, error) {
	c.collectUntagged()

	result, err := c.execute(imap.CommandGetACL, quoteArg(mailbox))
	if err != nil {
		return nil, err
	}
	if result.status != "OK" {
		return nil, &imap.IMAPError{StatusResponse: &imap.StatusResponse{
			Type: imap.StatusResponseType(result.status),
			Code: imap.ResponseCode(result.code),
			Text: result.text,
		}}
	}

	data := &imap.ACLData{Mailbox: mailbox, Rights: make(map[string]imap.ACLRights)}
	for _, line := range c.collectUntagged() {
		if !strings.HasPrefix(line, "ACL ") {
			continue
		}
		parseACLResponse(line[4:], data)
	}
	return data, nil
}

// SetACL sets rights for an identifier on a mailbox. mode is "", "+", or
// "-" to replace, add, or remove the given rights respectively.
func (c *Client) SetACL(mailbox, identifier string, mode string, rights imap.ACLRights) error {
	return c.executeCheck(imap.CommandSetACL, quoteArg(mailbox), quoteArg(identifier), mode+string(rights))
}

// DeleteACL removes an identifier's ACL entry for a mailbox.
func (c *Client) DeleteACL(mailbox, identifier string) error {
	return c.executeCheck(imap.CommandDeleteACL, quoteArg(mailbox), quoteArg(identifier))
}

// ListRights reports the rights an identifier can be granted on a mailbox.
func (c *Client) ListRights(mailbox, identifier string) (*imap.ACLListRightsData, error) {
	c.collectUntagged()

	result, err := c.execute(imap.CommandListRights, quoteArg(mailbox), quoteArg(identifier))
	if err != nil {
		return nil, err
	}
	if result.status != "OK" {
		return nil, &imap.IMAPError{StatusResponse: &imap.StatusResponse{
			Type: imap.StatusResponseType(result.status),
			Code: imap.ResponseCode(result.code),
			Text: result.text,
		}}
	}

	data := &imap.ACLListRightsData{Mailbox: mailbox, Identifier: identifier}
	for _, line := range c.collectUntagged() {
		if strings.HasPrefix(line, "LISTRIGHTS ") {
			parseListRightsResponse(line[len("LISTRIGHTS "):], data)
		}
	}
	return data, nil
}

// MyRights reports the caller's own rights on a mailbox.
func (c *Client) MyRights(mailbox string) (*imap.ACLMyRightsData, error) {
	c.collectUntagged()

	result, err := c.execute(imap.CommandMyRights, quoteArg(mailbox))
	if err != nil {
		return nil, err
	}
	if result.status != "OK" {
		return nil, &imap.IMAPError{StatusResponse: &imap.StatusResponse{
			Type: imap.StatusResponseType(result.status),
			Code: imap.ResponseCode(result.code),
			Text: result.text,
		}}
	}

	data := &imap.ACLMyRightsData{Mailbox: mailbox}
	for _, line := range c.collectUntagged() {
		if strings.HasPrefix(line, "MYRIGHTS ") {
			_, rights := splitMailboxArg(line[len("MYRIGHTS "):])
			data.Rights = imap.ACLRights(rights)
		}
	}
	return data, nil
}

// parseACLResponse parses "mailbox identifier rights identifier rights ..."
// into data.Rights.
func parseACLResponse(s string, data *imap.ACLData) {
	_, rest := splitMailboxArg(s)
	fields := splitQuotedFields(rest)
	for i := 0; i+1 < len(fields); i += 2 {
		data.Rights[fields[i]] = imap.ACLRights(fields[i+1])
	}
}

// parseListRightsResponse parses "mailbox identifier required optional...".
func parseListRightsResponse(s string, data *imap.ACLListRightsData) {
	_, rest := splitMailboxArg(s)
	fields := splitQuotedFields(rest)
	if len(fields) == 0 {
		return
	}
	// fields[0] is the identifier (echoed back), already known to the caller.
	if len(fields) > 1 {
		data.Required = imap.ACLRights(fields[1])
	}
	for _, f := range fields[2:] {
		data.Optional = append(data.Optional, imap.ACLRights(f))
	}
}

// splitMailboxArg splits a leading (possibly quoted) mailbox name off s,
// returning the mailbox name and the remaining, left-trimmed text.
func splitMailboxArg(s string) (string, string) {
	mailbox, rest := parseMailboxName(s)
	return mailbox, strings.TrimLeft(rest, " ")
}

// splitQuotedFields splits s on spaces, honoring double-quoted fields.
func splitQuotedFields(s string) []string {
	var fields []string
	for len(s) > 0 {
		s = strings.TrimLeft(s, " ")
		if s == "" {
			break
		}
		val, rest := readQuotedOrAtom(s)
		fields = append(fields, val)
		s = rest
	}
	return fields
}
