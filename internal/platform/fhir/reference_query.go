package fhir

// supportedReferenceModifiers is the set of modifiers the reference compiler
// accepts. Empty: FHIR defines :identifier and type modifiers for
// references, none implemented yet.
var supportedReferenceModifiers = map[string]bool{}

// ReferenceQuery builds the engine query fragment for a reference parameter
// value. References are stored in "Type/id" form, so a bare id expands
// against the parameter's declared target types; absolute URLs also match
// verbatim.
func ReferenceQuery(field CompiledSearchParam, value ReferenceSearchValue, useKeywordSubFields bool, targets []string, modifier string) (map[string]interface{}, error) {
	if modifier != "" && !supportedReferenceModifiers[modifier] {
		return nil, NewInvalidSearchParameterError("Unsupported reference search modifier: %s", modifier)
	}

	var references []string
	switch {
	case value.IDOnly:
		for _, target := range targets {
			references = append(references, target+"/"+value.ID)
		}
		if len(references) == 0 {
			references = append(references, value.ID)
		}
	case value.URL != "":
		references = append(references, value.URL, value.ResourceType+"/"+value.ID)
	default:
		references = append(references, value.ResourceType+"/"+value.ID)
	}

	target := field.Path + ".reference"
	if useKeywordSubFields {
		target += keywordSubField
	}
	return termsClause(target, references), nil
}
