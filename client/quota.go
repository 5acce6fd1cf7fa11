package client

import (
	"fmt"
	"strconv"
	"strings"

	imap "github.com/mailcore/mailproto"
)

// GetQuota requests the resource usage and limits for a quota root
// (RFC 9208).
func (c *Client) GetQuota(root string) (*imap.QuotaData, error) {
	c.collectUntagged()

	result, err := c.execute(imap.CommandGetQuota, quoteArg(root))
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

	var data *imap.QuotaData
	for _, line := range c.collectUntagged() {
		if strings.HasPrefix(line, "QUOTA ") {
			data = parseQuotaResponse(line[len("QUOTA "):])
		}
	}
	if data == nil {
		data = &imap.QuotaData{Root: root}
	}
	return data, nil
}

// GetQuotaRoot requests the quota roots that apply to a mailbox.
func (c *Client) GetQuotaRoot(mailbox string) (*imap.QuotaRootData, []*imap.QuotaData, error) {
	c.collectUntagged()

	result, err := c.execute(imap.CommandGetQuotaRoot, quoteArg(mailbox))
	if err != nil {
		return nil, nil, err
	}
	if result.status != "OK" {
		return nil, nil, &imap.IMAPError{StatusResponse: &imap.StatusResponse{
			Type: imap.StatusResponseType(result.status),
			Code: imap.ResponseCode(result.code),
			Text: result.text,
		}}
	}

	rootData := &imap.QuotaRootData{Mailbox: mailbox}
	var quotas []*imap.QuotaData
	for _, line := range c.collectUntagged() {
		switch {
		case strings.HasPrefix(line, "QUOTAROOT "):
			_, rest := splitMailboxArg(line[len("QUOTAROOT "):])
			rootData.Roots = splitQuotedFields(rest)
		case strings.HasPrefix(line, "QUOTA "):
			quotas = append(quotas, parseQuotaResponse(line[len("QUOTA "):]))
		}
	}
	return rootData, quotas, nil
}

// SetQuota sets resource limits for a quota root.
func (c *Client) SetQuota(root string, limits map[imap.QuotaResource]int64) error {
	var parts []string
	for name, limit := range limits {
		parts = append(parts, fmt.Sprintf("%s %d", name, limit))
	}
	return c.executeCheck(imap.CommandSetQuota, quoteArg(root), "("+strings.Join(parts, " ")+")")
}

// parseQuotaResponse parses "root (resource usage limit ...)".
func parseQuotaResponse(s string) *imap.QuotaData {
	root, rest := splitMailboxArg(s)
	data := &imap.QuotaData{Root: root}

	rest = strings.TrimPrefix(rest, "(")
	rest = strings.TrimSuffix(rest, ")")
	fields := strings.Fields(rest)
	for i := 0; i+2 < len(fields); i += 3 {
		usage, err1 := strconv.ParseInt(fields[i+1], 10, 64)
		limit, err2 := strconv.ParseInt(fields[i+2], 10, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		data.Resources = append(data.Resources, imap.QuotaResourceData{
			Name:  imap.QuotaResource(strings.ToUpper(fields[i])),
			Usage: usage,
			Limit: limit,
		})
	}
	return data
}
