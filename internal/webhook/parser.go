// Package webhook is the Webhook Parser & Dispatcher (spec.md §4.J): it
// decodes Bitrix's URL-encoded form bodies with nested bracket keys and
// routes the 12 known CRM events to the sync queue.
package webhook

import (
	"net/url"
	"strings"
)

// ParseForm decodes a Bitrix webhook body into a nested map following
// spec.md §4.J's parsing rules: split with parse_qsl equivalent
// (url.ParseQuery, which already handles percent-decoding and repeated
// keys), then for each key split on "[" after stripping the trailing
// "]", ignoring empty segments, and merge into nested maps. A terminal
// segment whose value already exists is turned into a list.
func ParseForm(body string) (map[string]any, error) {
	values, err := url.ParseQuery(body)
	if err != nil {
		return nil, err
	}

	root := map[string]any{}
	for key, vals := range values {
		for _, v := range vals {
			segments := splitBracketKey(key)
			if len(segments) == 0 {
				continue
			}
			setNested(root, segments, v)
		}
	}
	return root, nil
}

// splitBracketKey turns "data[FIELDS][ID]" into ["data", "FIELDS", "ID"],
// dropping empty segments produced by "[]" or a trailing "[".
func splitBracketKey(key string) []string {
	key = strings.ReplaceAll(key, "]", "")
	parts := strings.Split(key, "[")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// setNested walks path into root, creating intermediate maps as needed,
// and assigns value at the terminal segment. If a value is already
// present there, it is promoted to (or appended onto) a list, per
// spec.md §4.J "terminal segment whose value already exists is merged
// into a list".
func setNested(root map[string]any, path []string, value string) {
	node := root
	for i, seg := range path {
		if i == len(path)-1 {
			assignTerminal(node, seg, value)
			return
		}
		next, ok := node[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			node[seg] = next
		}
		node = next
	}
}

func assignTerminal(node map[string]any, key, value string) {
	existing, ok := node[key]
	if !ok {
		node[key] = value
		return
	}

	switch v := existing.(type) {
	case []string:
		node[key] = append(v, value)
	case string:
		node[key] = []string{v, value}
	default:
		node[key] = value
	}
}

// StringAt reads a string value out of a parsed form at the given
// dotted path (e.g. "data.FIELDS.ID"), returning "" if any segment is
// missing or not a string.
func StringAt(root map[string]any, path string) string {
	segments := strings.Split(path, ".")
	var cur any = root
	for _, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur, ok = m[seg]
		if !ok {
			return ""
		}
	}
	s, _ := cur.(string)
	return s
}
