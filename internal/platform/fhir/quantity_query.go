package fhir

// supportedQuantityModifiers is the set of modifiers the quantity compiler
// accepts.
var supportedQuantityModifiers = map[string]bool{}

// QuantityQuery builds the engine query fragment for a quantity parameter
// value. The number matches <path>.value; a system and code pair filters the
// unit exactly, while a bare code matches either the coded or the
// human-readable unit.
func QuantityQuery(field CompiledSearchParam, value QuantitySearchValue, useKeywordSubFields bool, modifier string) (map[string]interface{}, error) {
	if modifier != "" && !supportedQuantityModifiers[modifier] {
		return nil, NewInvalidSearchParameterError("Unsupported quantity search modifier: %s", modifier)
	}

	path := field.Path
	suffix := ""
	if useKeywordSubFields {
		suffix = keywordSubField
	}

	clauses := []map[string]interface{}{
		numberRangeClause(path+".value", value.NumberSearchValue),
	}
	switch {
	case value.System != "" && value.Code != "":
		clauses = append(clauses,
			multiMatchClause([]string{path + ".system" + suffix}, value.System),
			multiMatchClause([]string{path + ".code" + suffix}, value.Code),
		)
	case value.Code != "":
		clauses = append(clauses,
			multiMatchClause([]string{path + ".code" + suffix, path + ".unit" + suffix}, value.Code),
		)
	case value.System != "":
		clauses = append(clauses,
			multiMatchClause([]string{path + ".system" + suffix}, value.System),
		)
	}

	if len(clauses) == 1 {
		return clauses[0], nil
	}
	return andClauses(clauses), nil
}
