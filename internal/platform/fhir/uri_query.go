package fhir

// supportedURIModifiers is the set of modifiers the uri compiler accepts.
// Empty: FHIR defines :above and :below for uris, neither implemented yet.
var supportedURIModifiers = map[string]bool{}

// URIQuery builds the engine query fragment for a uri parameter value.
// URIs match exactly.
func URIQuery(field CompiledSearchParam, value string, useKeywordSubFields bool, modifier string) (map[string]interface{}, error) {
	if modifier != "" && !supportedURIModifiers[modifier] {
		return nil, NewInvalidSearchParameterError("Unsupported uri search modifier: %s", modifier)
	}
	target := field.Path
	if useKeywordSubFields && !fieldsWithoutKeyword[field.Path] {
		target += keywordSubField
	}
	return termClause(target, value), nil
}
