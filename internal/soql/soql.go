// Package soql parses and evaluates the query subset the emulator supports:
// SELECT field lists or COUNT(), WHERE with AND/OR folded left to right,
// ORDER BY, LIMIT and OFFSET. There is no operator precedence; conditions
// combine in the order written, which is what the platform's test traffic
// relies on.
package soql

import (
	"fmt"
	"regexp"
	"strings"
)

// Query is a parsed SOQL statement.
type Query struct {
	Object   string
	Fields   []string
	Wildcard bool
	Count    bool
	Where    *WhereClause
	Order    []OrderTerm
	Limit    int // -1 when absent
	Offset   int
}

// WhereClause is a flat condition list with the boolean operators between
// adjacent conditions. len(Operators) == len(Conditions)-1.
type WhereClause struct {
	Conditions []Condition
	Operators  []string
}

// Condition is a single field comparison.
type Condition struct {
	Field string
	Op    string
	// Value is a string, float64, bool, nil, or []any for IN lists.
	Value any
}

// OrderTerm is one ORDER BY term.
type OrderTerm struct {
	Field     string
	Desc      bool
	NullsLast bool
}

var (
	selectRe = regexp.MustCompile(`(?is)^\s*SELECT\s+(.+?)\s+FROM\s+([A-Za-z0-9_]+)\s*(.*)$`)
	countRe  = regexp.MustCompile(`(?i)^COUNT\(\s*\)$`)
	condRe   = regexp.MustCompile(`(?is)^\s*([A-Za-z0-9_.]+)\s*(!=|<>|>=|<=|=|>|<|\bLIKE\b|\bNOT\s+IN\b|\bIN\b)\s*(.+?)\s*$`)
	orderRe  = regexp.MustCompile(`(?i)^([A-Za-z0-9_.]+)(?:\s+(ASC|DESC))?(?:\s+NULLS\s+(FIRST|LAST))?$`)
	numRe    = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
)

// Parse parses a SOQL statement.
func Parse(text string) (*Query, error) {
	m := selectRe.FindStringSubmatch(text)
	if m == nil {
		return nil, fmt.Errorf("unable to parse query: %s", text)
	}

	q := &Query{Object: m[2], Limit: -1}

	fieldList := strings.TrimSpace(m[1])
	switch {
	case countRe.MatchString(fieldList):
		q.Count = true
	case fieldList == "*":
		q.Wildcard = true
	default:
		for _, f := range splitTopLevel(fieldList, ',') {
			f = strings.TrimSpace(f)
			if f == "" {
				return nil, fmt.Errorf("empty field in select list: %s", text)
			}
			q.Fields = append(q.Fields, f)
		}
	}

	if err := parseTail(q, strings.TrimSpace(m[3])); err != nil {
		return nil, err
	}
	return q, nil
}

// parseTail handles the optional WHERE / ORDER BY / LIMIT / OFFSET clauses,
// located by scanning for keywords outside quoted strings.
func parseTail(q *Query, tail string) error {
	if tail == "" {
		return nil
	}

	type clause struct {
		keyword string
		pos     int
	}
	var clauses []clause
	for _, kw := range []string{"WHERE", "ORDER BY", "LIMIT", "OFFSET"} {
		if pos := indexOfKeyword(tail, kw); pos >= 0 {
			clauses = append(clauses, clause{kw, pos})
		}
	}
	if len(clauses) == 0 {
		return fmt.Errorf("unexpected trailing clause: %s", tail)
	}
	for i := 1; i < len(clauses); i++ {
		if clauses[i].pos < clauses[i-1].pos {
			return fmt.Errorf("clauses out of order near: %s", tail)
		}
	}
	if clauses[0].pos != 0 {
		return fmt.Errorf("unexpected text before %s clause: %s", clauses[0].keyword, tail)
	}

	for i, c := range clauses {
		start := c.pos + len(c.keyword)
		end := len(tail)
		if i+1 < len(clauses) {
			end = clauses[i+1].pos
		}
		body := strings.TrimSpace(tail[start:end])

		var err error
		switch c.keyword {
		case "WHERE":
			q.Where, err = ParseConditions(body)
		case "ORDER BY":
			q.Order, err = parseOrder(body)
		case "LIMIT":
			_, scanErr := fmt.Sscanf(body, "%d", &q.Limit)
			if scanErr != nil || q.Limit < 0 {
				err = fmt.Errorf("invalid LIMIT: %s", body)
			}
		case "OFFSET":
			_, scanErr := fmt.Sscanf(body, "%d", &q.Offset)
			if scanErr != nil || q.Offset < 0 {
				err = fmt.Errorf("invalid OFFSET: %s", body)
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// ParseConditions parses a WHERE body into a flat clause. Exported because
// SOSL RETURNING filters reuse the same grammar.
func ParseConditions(body string) (*WhereClause, error) {
	parts, ops := splitConditions(body)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty WHERE clause")
	}

	w := &WhereClause{Operators: ops}
	for _, p := range parts {
		cond, err := parseCondition(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		w.Conditions = append(w.Conditions, cond)
	}
	return w, nil
}

func parseCondition(text string) (Condition, error) {
	m := condRe.FindStringSubmatch(text)
	if m == nil {
		return Condition{}, fmt.Errorf("unable to parse condition: %s", text)
	}

	op := strings.ToUpper(strings.Join(strings.Fields(m[2]), " "))
	cond := Condition{Field: m[1], Op: op}

	raw := strings.TrimSpace(m[3])
	if op == "IN" || op == "NOT IN" {
		if !strings.HasPrefix(raw, "(") || !strings.HasSuffix(raw, ")") {
			return Condition{}, fmt.Errorf("%s requires a parenthesized list: %s", op, text)
		}
		var list []any
		for _, item := range splitTopLevel(raw[1:len(raw)-1], ',') {
			list = append(list, coerceValue(strings.TrimSpace(item)))
		}
		cond.Value = list
		return cond, nil
	}

	cond.Value = coerceValue(raw)
	return cond, nil
}

// coerceValue interprets a literal: quoted string, boolean, null, or number.
// Anything else stays a raw string.
func coerceValue(raw string) any {
	if len(raw) >= 2 && raw[0] == '\'' && raw[len(raw)-1] == '\'' {
		return strings.ReplaceAll(raw[1:len(raw)-1], `\'`, `'`)
	}
	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if numRe.MatchString(raw) {
		var f float64
		_, _ = fmt.Sscanf(raw, "%g", &f)
		return f
	}
	return raw
}

func parseOrder(body string) ([]OrderTerm, error) {
	var terms []OrderTerm
	for _, part := range splitTopLevel(body, ',') {
		m := orderRe.FindStringSubmatch(strings.TrimSpace(part))
		if m == nil {
			return nil, fmt.Errorf("unable to parse ORDER BY term: %s", part)
		}
		terms = append(terms, OrderTerm{
			Field:     m[1],
			Desc:      strings.EqualFold(m[2], "DESC"),
			NullsLast: strings.EqualFold(m[3], "LAST"),
		})
	}
	return terms, nil
}

// splitConditions splits a WHERE body on AND/OR keywords outside quotes,
// returning the condition texts and the operators between them. tokenize
// keeps quoted runs inside a single token, so an AND inside a string literal
// never splits.
func splitConditions(body string) ([]string, []string) {
	var parts, ops []string
	var cur strings.Builder

	for _, w := range tokenize(body) {
		upper := strings.ToUpper(w)
		if upper == "AND" || upper == "OR" {
			parts = append(parts, cur.String())
			ops = append(ops, upper)
			cur.Reset()
			continue
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(w)
	}
	if strings.TrimSpace(cur.String()) != "" {
		parts = append(parts, cur.String())
	}
	return parts, ops
}

// tokenize splits on whitespace but keeps quoted runs (which may contain
// spaces) intact within a token stream by tracking quote parity per word.
func tokenize(s string) []string {
	var words []string
	var cur strings.Builder
	inQuote := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\'' {
			inQuote = !inQuote
			cur.WriteByte(c)
			continue
		}
		if (c == ' ' || c == '\t' || c == '\n') && !inQuote {
			if cur.Len() > 0 {
				words = append(words, cur.String())
				cur.Reset()
			}
			continue
		}
		cur.WriteByte(c)
	}
	if cur.Len() > 0 {
		words = append(words, cur.String())
	}
	return words
}

// splitTopLevel splits on sep outside quotes and parentheses.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	var cur strings.Builder
	inQuote := false
	depth := 0

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			cur.WriteByte(c)
		case !inQuote && c == '(':
			depth++
			cur.WriteByte(c)
		case !inQuote && c == ')':
			depth--
			cur.WriteByte(c)
		case !inQuote && depth == 0 && c == sep:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	parts = append(parts, cur.String())
	return parts
}

// indexOfKeyword returns the byte offset of the first occurrence of kw as a
// whole word outside quoted strings, or -1.
func indexOfKeyword(s, kw string) int {
	upper := strings.ToUpper(s)
	kwUpper := strings.ToUpper(kw)
	inQuote := false

	for i := 0; i+len(kw) <= len(s); i++ {
		if s[i] == '\'' {
			inQuote = !inQuote
			continue
		}
		if inQuote {
			continue
		}
		if !strings.HasPrefix(upper[i:], kwUpper) {
			continue
		}
		beforeOK := i == 0 || isSpace(s[i-1])
		after := i + len(kw)
		afterOK := after == len(s) || isSpace(s[after])
		if beforeOK && afterOK {
			return i
		}
	}
	return -1
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
