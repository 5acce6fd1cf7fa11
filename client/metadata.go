package client

import (
	"fmt"
	"strconv"
	"strings"

	imap "github.com/mailcore/mailproto"
)

// GetMetadata requests server or mailbox annotations (RFC 5464).
// mailbox is empty for server-level metadata.
func (c *Client) GetMetadata(mailbox string, entries []string, opts *imap.MetadataOptions) (*imap.MetadataData, error) {
	c.collectUntagged()

	entryList := "(" + quoteList(entries) + ")"
	args := []string{quoteArg(mailbox)}
	if opts != nil && (opts.MaxSize != nil || opts.Depth != "") {
		var optParts []string
		if opts.Depth != "" {
			optParts = append(optParts, "DEPTH "+opts.Depth)
		}
		if opts.MaxSize != nil {
			optParts = append(optParts, fmt.Sprintf("MAXSIZE %d", *opts.MaxSize))
		}
		args = append(args, "("+strings.Join(optParts, " ")+")")
	}
	args = append(args, entryList)

	result, err := c.execute(imap.CommandGetMetadata, args...)
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

	data := &imap.MetadataData{Mailbox: mailbox, Entries: make(map[string]*string)}
	for _, line := range c.collectUntagged() {
		if strings.HasPrefix(line, "METADATA ") {
			parseMetadataResponse(line[len("METADATA "):], data)
		}
	}
	return data, nil
}

// SetMetadata sets or removes server or mailbox annotations. A nil value
// removes the entry.
func (c *Client) SetMetadata(mailbox string, entries map[string]*string) error {
	var parts []string
	for name, value := range entries {
		if value == nil {
			parts = append(parts, quoteArg(name)+" NIL")
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %s", quoteArg(name), strconv.Quote(*value)))
	}
	return c.executeCheck(imap.CommandSetMetadata, quoteArg(mailbox), "("+strings.Join(parts, " ")+")")
}

// parseMetadataResponse parses "mailbox (entry value entry value ...)".
func parseMetadataResponse(s string, data *imap.MetadataData) {
	_, rest := splitMailboxArg(s)
	rest = strings.TrimPrefix(rest, "(")
	rest = strings.TrimSuffix(rest, ")")

	for len(rest) > 0 {
		rest = strings.TrimLeft(rest, " ")
		if rest == "" {
			break
		}
		name, r := readQuotedOrAtom(rest)
		r = strings.TrimLeft(r, " ")
		if strings.HasPrefix(strings.ToUpper(r), "NIL") {
			data.Entries[name] = nil
			rest = strings.TrimLeft(r[3:], " ")
			continue
		}
		val, r2 := readQuotedOrAtom(r)
		v := val
		data.Entries[name] = &v
		rest = strings.TrimLeft(r2, " ")
	}
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = quoteArg(it)
	}
	return strings.Join(quoted, " ")
}
