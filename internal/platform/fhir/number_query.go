package fhir

import "math"

// supportedNumberModifiers is the set of modifiers the number compiler
// accepts.
var supportedNumberModifiers = map[string]bool{}

// NumberQuery builds the engine query fragment for a number parameter value.
// Equality matches the implicit range the written precision covers.
func NumberQuery(field CompiledSearchParam, value NumberSearchValue, modifier string) (map[string]interface{}, error) {
	if modifier != "" && !supportedNumberModifiers[modifier] {
		return nil, NewInvalidSearchParameterError("Unsupported number search modifier: %s", modifier)
	}
	return numberRangeClause(field.Path, value), nil
}

// numberRangeClause translates a prefixed number into a range query.
func numberRangeClause(path string, value NumberSearchValue) map[string]interface{} {
	switch value.Prefix {
	case PrefixNe:
		return notClause(rangeClause(path, map[string]interface{}{"gte": value.Low, "lte": value.High}))
	case PrefixGt, PrefixSa:
		return rangeClause(path, map[string]interface{}{"gt": value.Number})
	case PrefixLt, PrefixEb:
		return rangeClause(path, map[string]interface{}{"lt": value.Number})
	case PrefixGe:
		return rangeClause(path, map[string]interface{}{"gte": value.Number})
	case PrefixLe:
		return rangeClause(path, map[string]interface{}{"lte": value.Number})
	case PrefixAp:
		// approximately: widen the implicit range by 10% of the value
		pad := math.Abs(value.Number) * 0.1
		return rangeClause(path, map[string]interface{}{"gte": value.Low - pad, "lte": value.High + pad})
	default: // eq
		return rangeClause(path, map[string]interface{}{"gte": value.Low, "lte": value.High})
	}
}
