// Package bulkcsv implements the CSV dialect the Bulk APIs speak: RFC 4180
// quoting with lenient parsing of the payloads real clients actually send.
// encoding/csv is deliberately not used here. It rejects inputs the platform
// accepts (bare quotes inside unquoted fields), quotes leading-space fields on
// write, and always emits CRLF; all three would change observable behavior.
package bulkcsv

import "strings"

// Parse splits a CSV document into a header row and data rows. Input with
// fewer than two non-empty lines yields headers (when present) and no rows.
// Rows map header names to values positionally; short rows fill "".
func Parse(text string) (headers []string, rows []map[string]string) {
	lines := splitLines(strings.TrimSpace(text))
	if len(lines) == 0 {
		return nil, nil
	}

	headers = parseLine(lines[0])
	if len(lines) < 2 {
		return headers, nil
	}

	for _, line := range lines[1:] {
		values := parseLine(line)
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(values) {
				row[h] = values[i]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return headers, rows
}

// HeaderLine returns the raw first line of a CSV document without parsing the
// rest. Used to detect a repeated header across chunked uploads.
func HeaderLine(text string) string {
	trimmed := strings.TrimSpace(text)
	for i := 0; i < len(trimmed); i++ {
		if trimmed[i] == '\n' {
			return strings.TrimSuffix(trimmed[:i], "\r")
		}
	}
	return trimmed
}

// Serialize renders rows under the given headers. Fields are quoted only when
// they contain a comma, quote, or newline; embedded quotes are doubled. Lines
// join with LF.
func Serialize(headers []string, rows []map[string]string) string {
	var b strings.Builder

	writeRow := func(values []string) {
		for i, v := range values {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(escape(v))
		}
		b.WriteByte('\n')
	}

	writeRow(headers)
	for _, row := range rows {
		values := make([]string, len(headers))
		for i, h := range headers {
			values[i] = row[h]
		}
		writeRow(values)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func escape(v string) string {
	if !strings.ContainsAny(v, ",\"\n\r") {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}

// splitLines splits on newlines that are outside quoted fields, so quoted
// values keep embedded line breaks. A CR immediately before a break or inside
// an unquoted field is dropped.
func splitLines(text string) []string {
	var lines []string
	var cur strings.Builder
	inQuote := false

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '"':
			inQuote = !inQuote
			cur.WriteByte(c)
		case c == '\n' && !inQuote:
			lines = append(lines, cur.String())
			cur.Reset()
		case c == '\r' && !inQuote:
			// skip
		default:
			cur.WriteByte(c)
		}
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}

	out := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

// parseLine splits a single CSV line into fields. A doubled quote inside a
// quoted field is an escaped quote.
func parseLine(line string) []string {
	var fields []string
	var cur strings.Builder
	inQuote := false

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			if inQuote && i+1 < len(line) && line[i+1] == '"' {
				cur.WriteByte('"')
				i++
			} else {
				inQuote = !inQuote
			}
		case c == ',' && !inQuote:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	fields = append(fields, cur.String())
	return fields
}
