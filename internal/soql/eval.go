package soql

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/johnwards/notforce/internal/domain"
)

// Run filters, orders, and slices records per the query. Projection is left
// to the caller since the REST and bulk surfaces shape rows differently.
func Run(q *Query, records []domain.Record) []domain.Record {
	var out []domain.Record
	for _, rec := range records {
		if q.Where == nil || Eval(q.Where, rec) {
			out = append(out, rec)
		}
	}

	if len(q.Order) > 0 {
		sortRecords(out, q.Order)
	}

	if q.Offset > 0 {
		if q.Offset >= len(out) {
			out = nil
		} else {
			out = out[q.Offset:]
		}
	}
	if q.Limit >= 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out
}

// Eval folds the clause left to right: the running result combines with each
// next condition via the operator between them. No precedence.
func Eval(w *WhereClause, rec domain.Record) bool {
	if len(w.Conditions) == 0 {
		return true
	}
	result := evalCondition(w.Conditions[0], rec)
	for i := 1; i < len(w.Conditions) && i-1 < len(w.Operators); i++ {
		next := evalCondition(w.Conditions[i], rec)
		if w.Operators[i-1] == "OR" {
			result = result || next
		} else {
			result = result && next
		}
	}
	return result
}

func evalCondition(c Condition, rec domain.Record) bool {
	actual, present := rec[c.Field]
	if actual == nil {
		present = false
	}

	switch c.Op {
	case "=":
		if c.Value == nil {
			return !present
		}
		return present && domain.Stringify(actual) == literalString(c.Value)
	case "!=", "<>":
		if c.Value == nil {
			return present
		}
		return !present || domain.Stringify(actual) != literalString(c.Value)
	case ">", ">=", "<", "<=":
		a, aok := toNumber(actual)
		b, bok := toNumber(c.Value)
		if !aok || !bok {
			return false
		}
		switch c.Op {
		case ">":
			return a > b
		case ">=":
			return a >= b
		case "<":
			return a < b
		default:
			return a <= b
		}
	case "LIKE":
		if !present {
			return false
		}
		return likeMatch(literalString(c.Value), domain.Stringify(actual))
	case "IN", "NOT IN":
		list, _ := c.Value.([]any)
		found := false
		for _, item := range list {
			if item == nil {
				if !present {
					found = true
					break
				}
				continue
			}
			if present && domain.Stringify(actual) == literalString(item) {
				found = true
				break
			}
		}
		if c.Op == "IN" {
			return found
		}
		return !found
	}
	return false
}

// likeMatch translates a LIKE pattern (% any run, _ any char) into an
// anchored case-insensitive regexp.
func likeMatch(pattern, value string) bool {
	var b strings.Builder
	b.WriteString(`(?is)^`)
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(`.*`)
		case '_':
			b.WriteString(`.`)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString(`$`)

	re, err := regexp.Compile(b.String())
	if err != nil {
		return false
	}
	return re.MatchString(value)
}

func literalString(v any) string {
	return domain.Stringify(v)
}

func toNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	case bool, nil:
		return 0, false
	}
	f, err := strconv.ParseFloat(domain.Stringify(v), 64)
	return f, err == nil
}

// sortRecords is a stable multi-term sort. Nulls order first unless the term
// says NULLS LAST; direction does not move nulls.
func sortRecords(records []domain.Record, terms []OrderTerm) {
	sort.SliceStable(records, func(i, j int) bool {
		for _, term := range terms {
			c := compareTerm(records[i], records[j], term)
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
}

func compareTerm(a, b domain.Record, term OrderTerm) int {
	av, aok := a[term.Field]
	bv, bok := b[term.Field]
	aNull := !aok || av == nil
	bNull := !bok || bv == nil

	if aNull || bNull {
		switch {
		case aNull && bNull:
			return 0
		case aNull:
			if term.NullsLast {
				return 1
			}
			return -1
		default:
			if term.NullsLast {
				return -1
			}
			return 1
		}
	}

	var c int
	an, aNum := toNumber(av)
	bn, bNum := toNumber(bv)
	if aNum && bNum {
		switch {
		case an < bn:
			c = -1
		case an > bn:
			c = 1
		}
	} else {
		c = strings.Compare(domain.Stringify(av), domain.Stringify(bv))
	}

	if term.Desc {
		c = -c
	}
	return c
}

// Project shapes records for an explicit field list. Missing fields render
// as null.
func Project(q *Query, records []domain.Record) []map[string]any {
	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		row := make(map[string]any, len(q.Fields))
		for _, f := range q.Fields {
			if v, ok := rec[f]; ok {
				row[f] = v
			} else {
				row[f] = nil
			}
		}
		out = append(out, row)
	}
	return out
}

// Headers resolves the CSV column set for a result. Explicit field lists are
// used verbatim. A wildcard infers columns from the first record, Id first
// then the rest sorted; with no records it falls back to Id plus the schema's
// field names.
func Headers(q *Query, records []domain.Record, schemaFields []string) []string {
	if !q.Wildcard {
		return q.Fields
	}

	if len(records) == 0 {
		headers := []string{"Id"}
		for _, f := range schemaFields {
			if f != "Id" {
				headers = append(headers, f)
			}
		}
		return headers
	}

	var rest []string
	hasID := false
	for k := range records[0] {
		if k == "Id" {
			hasID = true
			continue
		}
		rest = append(rest, k)
	}
	sort.Strings(rest)
	if hasID {
		return append([]string{"Id"}, rest...)
	}
	return rest
}
