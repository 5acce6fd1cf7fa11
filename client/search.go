package client

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	imap "github.com/mailcore/mailproto"
)

// SearchMessages runs a SEARCH command built from structured criteria and
// options, parsing either a plain SEARCH or an ESEARCH response into
// SearchData (see Search for the raw criteria-string form).
func (c *Client) SearchMessages(crit *imap.SearchCriteria, opts *imap.SearchOptions) (*imap.SearchData, error) {
	return c.searchMessages("SEARCH", crit, opts)
}

// UIDSearchMessages is SearchMessages using UIDs.
func (c *Client) UIDSearchMessages(crit *imap.SearchCriteria, opts *imap.SearchOptions) (*imap.SearchData, error) {
	return c.searchMessages("UID SEARCH", crit, opts)
}

func (c *Client) searchMessages(cmdName string, crit *imap.SearchCriteria, opts *imap.SearchOptions) (*imap.SearchData, error) {
	if ret := buildSearchReturn(opts); ret != "" {
		if err := c.RequireCap("ESEARCH"); err != nil {
			return nil, err
		}
	}
	if crit != nil && crit.Fuzzy {
		if err := c.RequireCap("SEARCH=FUZZY"); err != nil {
			return nil, err
		}
	}

	c.collectUntagged()

	args := []string{}
	if ret := buildSearchReturn(opts); ret != "" {
		args = append(args, ret)
	}
	args = append(args, buildSearchCriteria(crit))

	result, err := c.execute(cmdName, args...)
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

	data := &imap.SearchData{}
	for _, line := range c.collectUntagged() {
		switch {
		case strings.HasPrefix(line, "SEARCH"):
			parsePlainSearch(line, data)
		case strings.HasPrefix(line, "ESEARCH"):
			parseESearchData(line[len("ESEARCH"):], data)
		}
	}
	return data, nil
}

// buildSearchReturn renders the "RETURN (...)" modifier for SearchOptions.
func buildSearchReturn(opts *imap.SearchOptions) string {
	if opts == nil {
		return ""
	}
	var items []string
	if opts.ReturnMin {
		items = append(items, "MIN")
	}
	if opts.ReturnMax {
		items = append(items, "MAX")
	}
	if opts.ReturnAll {
		items = append(items, "ALL")
	}
	if opts.ReturnCount {
		items = append(items, "COUNT")
	}
	if opts.ReturnSave {
		items = append(items, "SAVE")
	}
	if p := opts.ReturnPartial; p != nil {
		items = append(items, fmt.Sprintf("PARTIAL (%d:%d)", p.Offset, int64(p.Offset)+int64(p.Count)-1))
	}
	if len(items) == 0 {
		return ""
	}
	return "RETURN (" + strings.Join(items, " ") + ")"
}

// buildSearchCriteria renders a SearchCriteria as an IMAP search-key string
// (RFC 3501 §6.4.4, RFC 7162 §3.1.5 MODSEQ, RFC 5032 WITHIN, RFC 5182
// SEARCHRES, RFC 6203 FUZZY).
func buildSearchCriteria(crit *imap.SearchCriteria) string {
	if crit == nil {
		return "ALL"
	}
	var keys []string

	if crit.SeqNum != nil {
		keys = append(keys, crit.SeqNum.String())
	}
	if crit.UID != nil {
		keys = append(keys, "UID "+crit.UID.String())
	}
	if !crit.Since.IsZero() {
		keys = append(keys, "SINCE "+searchDate(crit.Since))
	}
	if !crit.Before.IsZero() {
		keys = append(keys, "BEFORE "+searchDate(crit.Before))
	}
	if !crit.SentSince.IsZero() {
		keys = append(keys, "SENTSINCE "+searchDate(crit.SentSince))
	}
	if !crit.SentBefore.IsZero() {
		keys = append(keys, "SENTBEFORE "+searchDate(crit.SentBefore))
	}
	if !crit.SentOn.IsZero() {
		keys = append(keys, "SENTON "+searchDate(crit.SentOn))
	}
	if !crit.On.IsZero() {
		keys = append(keys, "ON "+searchDate(crit.On))
	}
	for _, h := range crit.Header {
		if strings.EqualFold(h.Key, "bcc") || strings.EqualFold(h.Key, "cc") || strings.EqualFold(h.Key, "from") ||
			strings.EqualFold(h.Key, "subject") || strings.EqualFold(h.Key, "to") {
			keys = append(keys, fmt.Sprintf("%s %s", strings.ToUpper(h.Key), searchAString(h.Value)))
		} else {
			keys = append(keys, fmt.Sprintf("HEADER %s %s", searchAString(h.Key), searchAString(h.Value)))
		}
	}
	for _, s := range crit.Body {
		keys = append(keys, "BODY "+searchAString(s))
	}
	for _, s := range crit.Text {
		keys = append(keys, "TEXT "+searchAString(s))
	}
	if crit.Larger > 0 {
		keys = append(keys, "LARGER "+strconv.FormatInt(crit.Larger, 10))
	}
	if crit.Smaller > 0 {
		keys = append(keys, "SMALLER "+strconv.FormatInt(crit.Smaller, 10))
	}
	for _, f := range crit.Flag {
		keys = append(keys, searchFlagKey(f, true))
	}
	for _, f := range crit.NotFlag {
		keys = append(keys, searchFlagKey(f, false))
	}
	if crit.ModSeq != nil {
		m := crit.ModSeq
		if m.MetadataName != "" {
			keys = append(keys, fmt.Sprintf("MODSEQ %q %s %d", m.MetadataName, strings.ToUpper(m.MetadataType), m.ModSeq))
		} else {
			keys = append(keys, fmt.Sprintf("MODSEQ %d", m.ModSeq))
		}
	}
	for _, pair := range crit.Or {
		keys = append(keys, fmt.Sprintf("OR (%s) (%s)", buildSearchCriteria(&pair[0]), buildSearchCriteria(&pair[1])))
	}
	for _, n := range crit.Not {
		keys = append(keys, fmt.Sprintf("NOT (%s)", buildSearchCriteria(&n)))
	}
	if crit.Younger > 0 {
		keys = append(keys, fmt.Sprintf("YOUNGER %d", crit.Younger))
	}
	if crit.Older > 0 {
		keys = append(keys, fmt.Sprintf("OLDER %d", crit.Older))
	}
	if crit.SaveResult {
		keys = append(keys, "SAVE")
	}
	if crit.Fuzzy {
		keys = append(keys, "FUZZY")
	}

	if len(keys) == 0 {
		return "ALL"
	}
	return strings.Join(keys, " ")
}

func searchFlagKey(f imap.Flag, present bool) string {
	name := strings.TrimPrefix(string(f), "\\")
	name = strings.ToUpper(name)
	switch name {
	case "SEEN", "ANSWERED", "FLAGGED", "DELETED", "DRAFT", "RECENT":
		if present {
			return name
		}
		return "UN" + name
	default:
		if present {
			return "KEYWORD " + name
		}
		return "UNKEYWORD " + name
	}
}

func searchDate(t time.Time) string {
	return t.Format("02-Jan-2006")
}

func searchAString(s string) string {
	if s == "" {
		return `""`
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 0x21 || s[i] == '"' || s[i] == '\\' || s[i] > 0x7e {
			return strconv.Quote(s)
		}
	}
	return s
}

func parsePlainSearch(line string, data *imap.SearchData) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	rest := fields[1:]
	// A trailing "(MODSEQ n)" qualifier (RFC 7162) isn't a result number.
	if len(rest) >= 2 && strings.EqualFold(rest[len(rest)-2], "(MODSEQ") {
		if n, err := strconv.ParseUint(strings.TrimSuffix(rest[len(rest)-1], ")"), 10, 64); err == nil {
			data.ModSeq = n
		}
		rest = rest[:len(rest)-2]
	}
	for _, f := range rest {
		if n, err := strconv.ParseUint(f, 10, 32); err == nil {
			data.AllSeqNums = append(data.AllSeqNums, uint32(n))
			data.AllUIDs = append(data.AllUIDs, imap.UID(n))
		}
	}
}

// parseESearchData parses an ESEARCH response's tagged-ext result pairs
// (RFC 4731/RFC 9394): "[tag] (UID)? (MIN n | MAX n | ALL set | COUNT n |
// MODSEQ n | PARTIAL (range results))*".
func parseESearchData(line string, data *imap.SearchData) {
	fields := strings.Fields(line)
	i := 0
	if i < len(fields) && strings.HasPrefix(fields[i], "(TAG") {
		// (TAG "a") correlation identifier; skip both tokens.
		i++
		if i < len(fields) {
			i++
		}
	}
	if i < len(fields) && strings.EqualFold(fields[i], "UID") {
		data.UID = true
		i++
	}
	for i < len(fields) {
		switch strings.ToUpper(fields[i]) {
		case "MIN":
			i++
			if i < len(fields) {
				if n, err := strconv.ParseUint(fields[i], 10, 32); err == nil {
					data.Min = uint32(n)
				}
				i++
			}
		case "MAX":
			i++
			if i < len(fields) {
				if n, err := strconv.ParseUint(fields[i], 10, 32); err == nil {
					data.Max = uint32(n)
				}
				i++
			}
		case "COUNT":
			i++
			if i < len(fields) {
				if n, err := strconv.ParseUint(fields[i], 10, 32); err == nil {
					data.Count = uint32(n)
				}
				i++
			}
		case "MODSEQ":
			i++
			if i < len(fields) {
				if n, err := strconv.ParseUint(fields[i], 10, 64); err == nil {
					data.ModSeq = n
				}
				i++
			}
		case "ALL":
			i++
			if i < len(fields) {
				if all, err := imap.ParseSeqSet(fields[i]); err == nil {
					data.All = all
				}
				i++
			}
		case "PARTIAL":
			i++
			if i < len(fields) {
				data.Partial = parsePartialResult(fields[i])
				i++
			}
		default:
			i++
		}
	}
}

func parsePartialResult(s string) *imap.SearchPartialData {
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	parts := strings.SplitN(s, " ", 2)
	if len(parts) != 2 {
		return nil
	}
	rangeParts := strings.SplitN(parts[0], ":", 2)
	if len(rangeParts) != 2 {
		return nil
	}
	offset, err := strconv.ParseInt(rangeParts[0], 10, 32)
	if err != nil {
		return nil
	}
	total, _ := strconv.ParseUint(rangeParts[1], 10, 32)

	uidSet, err := imap.ParseUIDSet(parts[1])
	var uids []imap.UID
	if err == nil {
		for _, rng := range uidSet.Ranges() {
			stop := rng.Stop
			if stop == 0 {
				stop = rng.Start
			}
			for u := rng.Start; u <= stop; u++ {
				uids = append(uids, imap.UID(u))
			}
		}
	}
	return &imap.SearchPartialData{Offset: int32(offset), Total: uint32(total), UIDs: uids}
}
