package fhir

import "strings"

// SortSpec represents a single sort directive.
type SortSpec struct {
	Field      string
	Descending bool
}

// ParseSort parses the _sort query parameter value.
// Format: "-date,status" means date DESC, status ASC.
// A leading "-" indicates descending order.
func ParseSort(sortParam string) []SortSpec {
	if sortParam == "" {
		return nil
	}

	parts := strings.Split(sortParam, ",")
	specs := make([]SortSpec, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		spec := SortSpec{}
		if strings.HasPrefix(part, "-") {
			spec.Descending = true
			spec.Field = part[1:]
		} else {
			spec.Field = part
		}

		if spec.Field != "" {
			specs = append(specs, spec)
		}
	}

	return specs
}

// BuildSortClauses translates sort directives into the engine sort array.
// Each directive must name a known search parameter of the resource type.
// Date and number parameters sort on their raw field, quantities on the
// value sub-field; everything else needs the keyword sub-field when enabled.
func BuildSortClauses(registry *SearchParametersRegistry, resourceType string, specs []SortSpec, useKeywordSubFields bool) ([]interface{}, error) {
	if len(specs) == 0 {
		return nil, nil
	}

	clauses := make([]interface{}, 0, len(specs))
	for _, spec := range specs {
		def, ok := registry.Lookup(resourceType, spec.Field)
		if !ok {
			return nil, NewInvalidSearchParameterError("Unknown sort parameter: %s", spec.Field)
		}

		field := def.Path
		switch def.Type {
		case SearchParamDate, SearchParamNumber:
		case SearchParamQuantity:
			field += ".value"
		default:
			if useKeywordSubFields && !fieldsWithoutKeyword[field] {
				field += keywordSubField
			}
		}

		order := "asc"
		if spec.Descending {
			order = "desc"
		}
		clauses = append(clauses, map[string]interface{}{
			field: map[string]interface{}{"order": order},
		})
	}
	return clauses, nil
}
