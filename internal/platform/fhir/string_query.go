package fhir

import "strings"

// supportedStringModifiers is the set of modifiers the string compiler
// accepts.
var supportedStringModifiers = map[string]bool{
	string(ModifierExact):    true,
	string(ModifierContains): true,
}

// StringQuery builds the engine query fragment for a string parameter value.
// The default search is a starts-with match across the path and its
// sub-fields; :exact matches the keyword fields verbatim; :contains matches
// anywhere in the keyword value, lowercasing the pattern first.
func StringQuery(field CompiledSearchParam, value string, useKeywordSubFields bool, modifier string) (map[string]interface{}, error) {
	if modifier != "" && !supportedStringModifiers[modifier] {
		return nil, NewInvalidSearchParameterError("Unsupported string search modifier: %s", modifier)
	}

	path := field.Path
	useKeywordSuffix := useKeywordSubFields && !fieldsWithoutKeyword[path]

	switch SearchModifier(modifier) {
	case ModifierExact:
		fields := []string{path, path + ".*"}
		if useKeywordSuffix {
			fields = []string{path + keywordSubField, path + ".*" + keywordSubField}
		}
		return multiMatchClause(fields, value), nil
	case ModifierContains:
		target := path
		if useKeywordSuffix {
			target += keywordSubField
		}
		return wildcardClause(target, "*"+strings.ToLower(value)+"*"), nil
	default:
		return phrasePrefixClause([]string{path, path + ".*"}, value), nil
	}
}
