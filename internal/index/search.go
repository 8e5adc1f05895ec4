package index

import (
	"database/sql"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	defaultSearchLimit = 20
	snippetRadius      = 60
)

// searchTerms splits a query into words. Markdown markers such as "#",
// "-" or "[ ]" are not words and never reach SQL.
func searchTerms(query string) []string {
	return strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '_' && r != '\''
	})
}

// matchExpr quotes each term as an FTS5 prefix query; terms are ANDed.
func matchExpr(terms []string) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"*`
	}
	return strings.Join(parts, " ")
}

// likePattern is a LIKE argument matching term anywhere, with \ as escape.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}

// snippet returns a window of body around the first term it contains,
// collapsed onto one line.
func snippet(body string, terms []string) string {
	flat := strings.Join(strings.Fields(body), " ")
	lower := strings.ToLower(flat)
	at := -1
	for _, t := range terms {
		if i := strings.Index(lower, strings.ToLower(t)); i >= 0 && (at < 0 || i < at) {
			at = i
		}
	}
	if at < 0 {
		at = 0
	}
	start, end := at-snippetRadius, at+snippetRadius
	prefix, suffix := "...", "..."
	if start <= 0 {
		start, prefix = 0, ""
	}
	if end >= len(flat) {
		end, suffix = len(flat), ""
	}
	// Stay on rune boundaries.
	for start > 0 && !utf8.RuneStart(flat[start]) {
		start--
	}
	for end < len(flat) && !utf8.RuneStart(flat[end]) {
		end++
	}
	return prefix + flat[start:end] + suffix
}

func scanResults(rows *sql.Rows) ([]SearchResult, error) {
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Date, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
