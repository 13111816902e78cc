// Package sosl parses and evaluates search statements:
// FIND {term} [IN <scope> FIELDS] [RETURNING Obj(fields [WHERE ...] [LIMIT n]), ...]
package sosl

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/johnwards/notforce/internal/domain"
	"github.com/johnwards/notforce/internal/soql"
)

// Search is a parsed SOSL statement.
type Search struct {
	Term      string
	Scope     string // ALL, NAME, EMAIL, PHONE
	Returning []Returning
}

// Returning is one RETURNING clause entry.
type Returning struct {
	Object string
	Fields []string
	Where  *soql.WhereClause
	Limit  int // -1 when absent
}

var (
	findRe      = regexp.MustCompile(`(?is)^\s*FIND\s*\{(.*?)\}\s*(.*)$`)
	scopeRe     = regexp.MustCompile(`(?is)^IN\s+(ALL|NAME|EMAIL|PHONE|SIDEBAR)\s+FIELDS\s*(.*)$`)
	returningRe = regexp.MustCompile(`(?is)^RETURNING\s+(.+)$`)
	entryRe     = regexp.MustCompile(`(?is)^([A-Za-z0-9_]+)\s*(?:\((.*)\))?$`)
)

// scopeFields maps a search scope to the fields it covers. ALL means every
// field on the record.
var scopeFields = map[string][]string{
	"NAME":  {"Name", "FirstName", "LastName"},
	"EMAIL": {"Email"},
	"PHONE": {"Phone", "MobilePhone"},
}

// Parse parses a SOSL statement.
func Parse(text string) (*Search, error) {
	m := findRe.FindStringSubmatch(text)
	if m == nil {
		return nil, fmt.Errorf("unable to parse search: %s", text)
	}

	s := &Search{Term: m[1], Scope: "ALL"}
	rest := strings.TrimSpace(m[2])

	if sm := scopeRe.FindStringSubmatch(rest); sm != nil {
		s.Scope = strings.ToUpper(sm[1])
		if s.Scope == "SIDEBAR" {
			s.Scope = "ALL"
		}
		rest = strings.TrimSpace(sm[2])
	}

	if rest == "" {
		return s, nil
	}

	rm := returningRe.FindStringSubmatch(rest)
	if rm == nil {
		return nil, fmt.Errorf("unexpected clause in search: %s", rest)
	}

	for _, entry := range splitEntries(rm[1]) {
		ret, err := parseEntry(strings.TrimSpace(entry))
		if err != nil {
			return nil, err
		}
		s.Returning = append(s.Returning, ret)
	}
	if len(s.Returning) == 0 {
		return nil, fmt.Errorf("empty RETURNING clause: %s", text)
	}
	return s, nil
}

func parseEntry(entry string) (Returning, error) {
	m := entryRe.FindStringSubmatch(entry)
	if m == nil {
		return Returning{}, fmt.Errorf("unable to parse RETURNING entry: %s", entry)
	}

	ret := Returning{Object: m[1], Limit: -1}
	body := strings.TrimSpace(m[2])
	if body == "" {
		return ret, nil
	}

	// Inside the parens: field list, then optional WHERE and LIMIT.
	fieldPart := body
	if pos := indexOfWord(body, "WHERE"); pos >= 0 {
		fieldPart = body[:pos]
		wherePart := body[pos+len("WHERE"):]
		if lpos := indexOfWord(wherePart, "LIMIT"); lpos >= 0 {
			limitBody := strings.TrimSpace(wherePart[lpos+len("LIMIT"):])
			if _, err := fmt.Sscanf(limitBody, "%d", &ret.Limit); err != nil {
				return Returning{}, fmt.Errorf("invalid LIMIT in RETURNING entry: %s", entry)
			}
			wherePart = wherePart[:lpos]
		}
		w, err := soql.ParseConditions(strings.TrimSpace(wherePart))
		if err != nil {
			return Returning{}, err
		}
		ret.Where = w
	} else if pos := indexOfWord(body, "LIMIT"); pos >= 0 {
		fieldPart = body[:pos]
		limitBody := strings.TrimSpace(body[pos+len("LIMIT"):])
		if _, err := fmt.Sscanf(limitBody, "%d", &ret.Limit); err != nil {
			return Returning{}, fmt.Errorf("invalid LIMIT in RETURNING entry: %s", entry)
		}
	}

	for _, f := range strings.Split(fieldPart, ",") {
		f = strings.TrimSpace(f)
		if f != "" {
			ret.Fields = append(ret.Fields, f)
		}
	}
	return ret, nil
}

// Match reports whether the record contains the term, case-insensitively, in
// any field the scope covers.
func (s *Search) Match(rec domain.Record) bool {
	term := strings.ToLower(s.Term)
	if term == "" {
		return false
	}

	if s.Scope == "ALL" {
		for _, v := range rec {
			if strings.Contains(strings.ToLower(domain.Stringify(v)), term) {
				return true
			}
		}
		return false
	}

	for _, f := range scopeFields[s.Scope] {
		if v, ok := rec[f]; ok {
			if strings.Contains(strings.ToLower(domain.Stringify(v)), term) {
				return true
			}
		}
	}
	return false
}

// splitEntries splits RETURNING entries on commas outside parentheses.
func splitEntries(s string) []string {
	var parts []string
	var cur strings.Builder
	depth := 0
	inQuote := false

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
		case !inQuote && depth == 0 && c == ',':
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if strings.TrimSpace(cur.String()) != "" {
		parts = append(parts, cur.String())
	}
	return parts
}

// indexOfWord finds kw as a whole word outside quotes, or -1.
func indexOfWord(s, kw string) int {
	upper := strings.ToUpper(s)
	inQuote := false
	for i := 0; i+len(kw) <= len(s); i++ {
		if s[i] == '\'' {
			inQuote = !inQuote
			continue
		}
		if inQuote || !strings.HasPrefix(upper[i:], kw) {
			continue
		}
		beforeOK := i == 0 || s[i-1] == ' ' || s[i-1] == '\t'
		after := i + len(kw)
		afterOK := after == len(s) || s[after] == ' ' || s[after] == '\t'
		if beforeOK && afterOK {
			return i
		}
	}
	return -1
}
