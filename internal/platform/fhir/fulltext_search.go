package fhir

import "strings"

// narrativeFields are the fields _text is restricted to. _content searches
// the whole document.
var narrativeFields = []string{"text.div"}

// FullTextQuery represents a parsed _text or _content search value.
type FullTextQuery struct {
	RawQuery string
	Query    string   // escaped engine query expression
	Fields   []string // empty means all fields
}

// ParseFullTextQuery parses a FHIR _text or _content value.
func ParseFullTextQuery(raw string, fields []string) (*FullTextQuery, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, NewInvalidSearchParameterError("Full-text search query must not be empty")
	}

	// Check if the query has any alphanumeric characters
	hasAlphaNum := false
	for _, r := range trimmed {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r > 127 {
			hasAlphaNum = true
			break
		}
	}
	if !hasAlphaNum {
		return nil, NewInvalidSearchParameterError("Full-text search query must contain at least one word")
	}

	return &FullTextQuery{
		RawQuery: raw,
		Query:    EscapeFullTextQuery(trimmed),
		Fields:   fields,
	}, nil
}

// ParseTextSearchParam handles the _text parameter (searches narrative text).
func ParseTextSearchParam(value string) (*FullTextQuery, error) {
	return ParseFullTextQuery(value, narrativeFields)
}

// ParseContentSearchParam handles the _content parameter (searches all content).
func ParseContentSearchParam(value string) (*FullTextQuery, error) {
	return ParseFullTextQuery(value, nil)
}

// Clause renders the query as an engine query_string clause.
func (q *FullTextQuery) Clause() map[string]interface{} {
	return queryStringClause(q.Fields, q.Query)
}

// EscapeFullTextQuery escapes the characters the engine query syntax
// reserves so user input matches literally.
func EscapeFullTextQuery(input string) string {
	if input == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(input))

	for _, r := range input {
		switch r {
		case '+', '-', '=', '>', '<', '!', '(', ')', '{', '}', '[', ']', '^', '"', '~', '*', '?', ':', '\\', '/', '&', '|':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}

	return b.String()
}
