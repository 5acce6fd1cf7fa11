package client

import (
	"strconv"
	"strings"

	imap "github.com/mailcore/mailproto"
)

// SortMessages runs a SORT command (RFC 5256) built from structured sort
// and search criteria, alongside the teacher's raw-string Sort.
func (c *Client) SortMessages(opts *imap.SortOptions) (*imap.SortData, error) {
	return c.sortMessages("SORT", opts)
}

// UIDSortMessages is SortMessages using UIDs.
func (c *Client) UIDSortMessages(opts *imap.SortOptions) (*imap.SortData, error) {
	return c.sortMessages("UID SORT", opts)
}

func (c *Client) sortMessages(cmdName string, opts *imap.SortOptions) (*imap.SortData, error) {
	if err := c.RequireCap("SORT"); err != nil {
		return nil, err
	}
	c.collectUntagged()

	charset := opts.Charset
	if charset == "" {
		charset = "UTF-8"
	}
	args := []string{buildSortCriteria(opts.SortCriteria), charset, buildSearchCriteria(opts.SearchCriteria)}

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

	data := &imap.SortData{}
	for _, line := range c.collectUntagged() {
		if !strings.HasPrefix(line, "SORT") {
			continue
		}
		for _, f := range strings.Fields(strings.TrimPrefix(line, "SORT")) {
			if n, err := strconv.ParseUint(f, 10, 32); err == nil {
				data.AllNums = append(data.AllNums, uint32(n))
			}
		}
	}
	return data, nil
}

func buildSortCriteria(criteria []imap.SortCriterion) string {
	if len(criteria) == 0 {
		return "(DATE)"
	}
	var keys []string
	for _, sc := range criteria {
		key := string(sc.Key)
		if sc.Reverse {
			key = "REVERSE " + key
		}
		keys = append(keys, key)
	}
	return "(" + strings.Join(keys, " ") + ")"
}

// ThreadMessages runs a THREAD command (RFC 5256) using the requested
// threading algorithm and search criteria.
func (c *Client) ThreadMessages(algo imap.ThreadAlgorithm, crit *imap.SearchCriteria) (*imap.ThreadData, error) {
	return c.threadMessages("THREAD", algo, crit)
}

// UIDThreadMessages is ThreadMessages using UIDs.
func (c *Client) UIDThreadMessages(algo imap.ThreadAlgorithm, crit *imap.SearchCriteria) (*imap.ThreadData, error) {
	return c.threadMessages("UID THREAD", algo, crit)
}

func (c *Client) threadMessages(cmdName string, algo imap.ThreadAlgorithm, crit *imap.SearchCriteria) (*imap.ThreadData, error) {
	if err := c.RequireCap("THREAD=" + string(algo)); err != nil {
		return nil, err
	}
	c.collectUntagged()

	result, err := c.execute(cmdName, string(algo), "UTF-8", buildSearchCriteria(crit))
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

	data := &imap.ThreadData{}
	for _, line := range c.collectUntagged() {
		if !strings.HasPrefix(line, "THREAD") {
			continue
		}
		rest := strings.TrimSpace(strings.TrimPrefix(line, "THREAD"))
		for len(rest) > 0 && rest[0] == '(' {
			node, remaining, ok := parseThreadNode(rest)
			if !ok {
				break
			}
			data.Threads = append(data.Threads, node)
			rest = strings.TrimSpace(remaining)
		}
	}
	return data, nil
}

// threadNode is a pointer-linked build-time mirror of imap.Thread, used so
// a deepening chain of numbers can append to whichever node is currently
// the tail without slice reallocation invalidating earlier pointers.
type threadNode struct {
	num      uint32
	children []*threadNode
}

func (n *threadNode) toThread() imap.Thread {
	t := imap.Thread{Num: n.num}
	for _, c := range n.children {
		t.Children = append(t.Children, c.toThread())
	}
	return t
}

// parseThreadNode parses one top-level "(num num (num num) ...)" thread
// tree node (RFC 5256 §4), where a run of numbers forms a linear chain
// (each number is the child of the previous) and a nested "(...)" starts a
// branch attached to the current chain tail, and returns the remainder of
// the line after its closing paren.
func parseThreadNode(s string) (imap.Thread, string, bool) {
	if len(s) == 0 || s[0] != '(' {
		return imap.Thread{}, s, false
	}
	root, rest, ok := parseThreadChain(s[1:])
	if !ok || len(rest) == 0 || rest[0] != ')' {
		return imap.Thread{}, s, false
	}
	if root == nil {
		return imap.Thread{}, s, false
	}
	return root.toThread(), rest[1:], true
}

// parseThreadChain parses a sequence of numbers and nested branch groups
// until the enclosing ')'. Bare numbers deepen a single chain (each becomes
// the sole child of the previous number); a parenthesized group branches
// off the current chain tail without advancing it.
func parseThreadChain(s string) (*threadNode, string, bool) {
	var root, tail *threadNode
	for {
		s = strings.TrimLeft(s, " ")
		if len(s) == 0 {
			return root, s, false
		}
		if s[0] == ')' {
			return root, s, true
		}
		if s[0] == '(' {
			child, rest, ok := parseThreadChain(s[1:])
			if !ok || len(rest) == 0 || rest[0] != ')' {
				return root, s, false
			}
			s = rest[1:]
			if tail != nil && child != nil {
				tail.children = append(tail.children, child)
			}
			continue
		}
		end := strings.IndexAny(s, " ()")
		if end < 0 {
			end = len(s)
		}
		n, err := strconv.ParseUint(s[:end], 10, 32)
		if err != nil {
			return root, s, false
		}
		node := &threadNode{num: uint32(n)}
		if tail == nil {
			root = node
		} else {
			tail.children = append(tail.children, node)
		}
		tail = node
		s = s[end:]
	}
}
