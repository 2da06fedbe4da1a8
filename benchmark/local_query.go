package benchmark

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// localQueryPattern matches the query shapes the local backend can evaluate:
//
//	SELECT [TOP n] <* | alias.path[, alias.path...]> FROM alias [WHERE CONTAINS(alias.path, "text")]
var localQueryPattern = regexp.MustCompile(
	`(?is)^\s*SELECT\s+(?:TOP\s+(\d+)\s+)?(.+?)\s+FROM\s+([A-Za-z_][A-Za-z0-9_]*)` +
		`(?:\s+WHERE\s+CONTAINS\s*\(\s*([A-Za-z_][A-Za-z0-9_.]*)\s*,\s*(?:"([^"]*)"|'([^']*)')\s*\))?\s*$`,
)

var fieldRefPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)+$`)

// localQuery is a parsed query the pebble backend evaluates in process
type localQuery struct {
	top        int        // 0 means no limit
	fields     [][]string // nil selects the whole document
	filterPath []string   // nil means no filter
	filterText string
}

// parseLocalQuery parses query, returning ErrUnsupportedQuery for anything
// outside the supported grammar
func parseLocalQuery(query string) (*localQuery, error) {
	m := localQueryPattern.FindStringSubmatch(query)
	if m == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedQuery, query)
	}
	alias := m[3]
	q := &localQuery{}

	if m[1] != "" {
		top, err := strconv.Atoi(m[1])
		if err != nil || top <= 0 {
			return nil, fmt.Errorf("%w: invalid TOP value %q", ErrUnsupportedQuery, m[1])
		}
		q.top = top
	}

	if projection := strings.TrimSpace(m[2]); projection != "*" {
		for _, ref := range strings.Split(projection, ",") {
			path, err := resolveFieldRef(strings.TrimSpace(ref), alias)
			if err != nil {
				return nil, err
			}
			q.fields = append(q.fields, path)
		}
	}

	if m[4] != "" {
		path, err := resolveFieldRef(m[4], alias)
		if err != nil {
			return nil, err
		}
		q.filterPath = path
		q.filterText = m[5] + m[6]
	}

	return q, nil
}

// resolveFieldRef turns "c.a.b" into ["a", "b"] after checking the alias
func resolveFieldRef(ref, alias string) ([]string, error) {
	if !fieldRefPattern.MatchString(ref) {
		return nil, fmt.Errorf("%w: invalid field reference %q", ErrUnsupportedQuery, ref)
	}
	parts := strings.Split(ref, ".")
	if parts[0] != alias {
		return nil, fmt.Errorf("%w: unknown alias %q in %q", ErrUnsupportedQuery, parts[0], ref)
	}
	return parts[1:], nil
}

// apply evaluates the query against one JSON document. It reports whether the
// document matched and, if so, the projected item.
func (q *localQuery) apply(document []byte) ([]byte, bool, error) {
	var doc map[string]any
	if err := json.Unmarshal(document, &doc); err != nil {
		return nil, false, fmt.Errorf("failed to decode document: %w", err)
	}

	if q.filterPath != nil {
		s, ok := lookup(doc, q.filterPath).(string)
		if !ok || !strings.Contains(s, q.filterText) {
			return nil, false, nil
		}
	}

	if q.fields == nil {
		return document, true, nil
	}

	projected := make(map[string]any, len(q.fields))
	for _, path := range q.fields {
		if v := lookup(doc, path); v != nil {
			projected[path[len(path)-1]] = v
		}
	}
	item, err := json.Marshal(projected)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode projection: %w", err)
	}
	return item, true, nil
}

func lookup(doc map[string]any, path []string) any {
	var cur any = doc
	for _, p := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[p]
	}
	return cur
}
