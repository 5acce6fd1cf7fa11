package client

import "fmt"

// SupportsIMAP4rev2 returns true if the server supports IMAP4rev2.
func (c *Client) SupportsIMAP4rev2() bool {
	return c.HasCap("IMAP4rev2")
}

// SupportsIdle returns true if the server supports IDLE.
func (c *Client) SupportsIdle() bool {
	return c.HasCap("IDLE")
}

// SupportsMove returns true if the server supports MOVE.
func (c *Client) SupportsMove() bool {
	return c.HasCap("MOVE")
}

// SupportsLiteralPlus returns true if the server supports LITERAL+.
func (c *Client) SupportsLiteralPlus() bool {
	return c.HasCap("LITERAL+")
}

// SupportsUIDPlus returns true if the server supports UIDPLUS.
func (c *Client) SupportsUIDPlus() bool {
	return c.HasCap("UIDPLUS")
}

// SupportsCondStore returns true if the server supports CONDSTORE.
func (c *Client) SupportsCondStore() bool {
	return c.HasCap("CONDSTORE")
}

// SupportsQResync returns true if the server supports QRESYNC.
func (c *Client) SupportsQResync() bool {
	return c.HasCap("QRESYNC")
}

// SupportsNamespace returns true if the server supports NAMESPACE.
func (c *Client) SupportsNamespace() bool {
	return c.HasCap("NAMESPACE")
}

// SupportsSort returns true if the server supports SORT.
func (c *Client) SupportsSort() bool {
	return c.HasCap("SORT")
}

// SupportsID returns true if the server supports ID.
func (c *Client) SupportsID() bool {
	return c.HasCap("ID")
}

// SupportsEnable returns true if the server supports ENABLE.
func (c *Client) SupportsEnable() bool {
	return c.HasCap("ENABLE")
}

// SupportsStartTLS returns true if the server supports STARTTLS.
func (c *Client) SupportsStartTLS() bool {
	return c.HasCap("STARTTLS")
}

// SupportsESearch returns true if the server supports extended SEARCH
// (ESEARCH, RFC 4731) return options such as MIN/MAX/COUNT/SAVE.
func (c *Client) SupportsESearch() bool {
	return c.HasCap("ESEARCH")
}

// SupportsSearchRes returns true if the server supports the SEARCHRES saved
// search result ("$", RFC 5182).
func (c *Client) SupportsSearchRes() bool {
	return c.HasCap("SEARCHRES")
}

// SupportsPartialSearch returns true if the server supports the PARTIAL
// SEARCH return option (RFC 9394).
func (c *Client) SupportsPartialSearch() bool {
	return c.HasCap("PARTIAL")
}

// SupportsObjectID returns true if the server supports OBJECTID mailbox and
// message identifiers (EMAILID/THREADID, RFC 8474).
func (c *Client) SupportsObjectID() bool {
	return c.HasCap("OBJECTID")
}

// SupportsSaveDate returns true if the server supports the SAVEDATE FETCH
// item and search key (RFC 8514).
func (c *Client) SupportsSaveDate() bool {
	return c.HasCap("SAVEDATE")
}

// SupportsBinary returns true if the server supports the BINARY and
// BINARY.SIZE FETCH items (RFC 3516).
func (c *Client) SupportsBinary() bool {
	return c.HasCap("BINARY")
}

// SupportsPreview returns true if the server supports the PREVIEW FETCH
// item (RFC 8970).
func (c *Client) SupportsPreview() bool {
	return c.HasCap("PREVIEW")
}

// SupportsWithin returns true if the server supports the YOUNGER/OLDER
// SEARCH keys (RFC 5032).
func (c *Client) SupportsWithin() bool {
	return c.HasCap("WITHIN")
}

// SupportsFuzzySearch returns true if the server supports the FUZZY SEARCH
// key (RFC 6203).
func (c *Client) SupportsFuzzySearch() bool {
	return c.HasCap("SEARCH=FUZZY")
}

// RequireCap returns an error naming the given capability if the server has
// not advertised it, so callers can fail fast before sending a command the
// server would reject.
func (c *Client) RequireCap(cap string) error {
	if c.HasCap(cap) {
		return nil
	}
	return fmt.Errorf("server does not advertise %s capability", cap)
}
