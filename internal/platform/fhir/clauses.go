package fhir

// keywordSubField is the index convention for the exact-match sub-field
// mapped alongside analyzed text fields.
const keywordSubField = ".keyword"

// multiMatchClause builds a lenient multi_match of query across fields.
// Lenient matching ignores type mismatches on individual fields, which the
// fail-safe field selection relies on.
func multiMatchClause(fields []string, query string) map[string]interface{} {
	return map[string]interface{}{
		"multi_match": map[string]interface{}{
			"fields":  fields,
			"query":   query,
			"lenient": true,
		},
	}
}

// phrasePrefixClause builds a lenient starts-with multi_match.
func phrasePrefixClause(fields []string, query string) map[string]interface{} {
	return map[string]interface{}{
		"multi_match": map[string]interface{}{
			"fields":  fields,
			"query":   query,
			"type":    "phrase_prefix",
			"lenient": true,
		},
	}
}

// notClause negates a single clause.
func notClause(clause map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"bool": map[string]interface{}{
			"must_not": clause,
		},
	}
}

// mustNotExistClause asserts the document holds no value at field.
func mustNotExistClause(field string) map[string]interface{} {
	return map[string]interface{}{
		"bool": map[string]interface{}{
			"must_not": map[string]interface{}{
				"exists": map[string]interface{}{
					"field": field,
				},
			},
		},
	}
}

// andClauses combines clauses under bool.must. An empty input yields an
// empty must list, which the engine reads as match-all; callers guard the
// degenerate case.
func andClauses(clauses []map[string]interface{}) map[string]interface{} {
	must := make([]interface{}, len(clauses))
	for i, clause := range clauses {
		must[i] = clause
	}
	return map[string]interface{}{
		"bool": map[string]interface{}{
			"must": must,
		},
	}
}

// orClauses combines clauses under bool.should with at least one required.
func orClauses(clauses []map[string]interface{}) map[string]interface{} {
	should := make([]interface{}, len(clauses))
	for i, clause := range clauses {
		should[i] = clause
	}
	return map[string]interface{}{
		"bool": map[string]interface{}{
			"should":               should,
			"minimum_should_match": 1,
		},
	}
}

// termClause builds an exact term match on a single field.
func termClause(field string, value interface{}) map[string]interface{} {
	return map[string]interface{}{
		"term": map[string]interface{}{
			field: value,
		},
	}
}

// termsClause builds an any-of term match on a single field.
func termsClause(field string, values []string) map[string]interface{} {
	return map[string]interface{}{
		"terms": map[string]interface{}{
			field: values,
		},
	}
}

// rangeClause builds a range query on field from the given bounds, e.g.
// {"gte": x, "lte": y}.
func rangeClause(field string, bounds map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"range": map[string]interface{}{
			field: bounds,
		},
	}
}

// wildcardClause builds a wildcard match on a single field.
func wildcardClause(field, pattern string) map[string]interface{} {
	return map[string]interface{}{
		"wildcard": map[string]interface{}{
			field: map[string]interface{}{
				"value": pattern,
			},
		},
	}
}

// queryStringClause builds a query_string clause over the given fields.
func queryStringClause(fields []string, query string) map[string]interface{} {
	qs := map[string]interface{}{
		"query":   query,
		"lenient": true,
	}
	if len(fields) > 0 {
		qs["fields"] = fields
	}
	return map[string]interface{}{
		"query_string": qs,
	}
}
