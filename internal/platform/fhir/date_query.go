package fhir

import "time"

// supportedDateModifiers is the set of modifiers the date compiler accepts.
// Empty: FHIR defines :missing for dates, which is not implemented yet.
var supportedDateModifiers = map[string]bool{}

// dateFormat renders bounds with fixed millisecond precision so range edges
// like 23:59:59.999 survive serialization.
const dateFormat = "2006-01-02T15:04:05.000Z07:00"

// DateQuery builds the engine query fragment for a date parameter value.
// The bound path may hold a scalar date or a period, so every prefix matches
// either the scalar path or the period's start/end sub-fields.
func DateQuery(field CompiledSearchParam, value DateSearchValue, modifier string) (map[string]interface{}, error) {
	if modifier != "" && !supportedDateModifiers[modifier] {
		return nil, NewInvalidSearchParameterError("Unsupported date search modifier: %s", modifier)
	}

	path := field.Path
	start := value.Start.UTC().Format(dateFormat)
	end := value.End.UTC().Format(dateFormat)

	switch value.Prefix {
	case PrefixNe:
		return notClause(dateEqClause(path, start, end)), nil
	case PrefixGt:
		return dateBoundClause(path, path+".end", "gt", end), nil
	case PrefixGe:
		return dateBoundClause(path, path+".end", "gte", start), nil
	case PrefixLt:
		return dateBoundClause(path, path+".start", "lt", start), nil
	case PrefixLe:
		return dateBoundClause(path, path+".start", "lte", end), nil
	case PrefixSa:
		return dateBoundClause(path, path+".start", "gt", end), nil
	case PrefixEb:
		return dateBoundClause(path, path+".end", "lt", start), nil
	case PrefixAp:
		// approximately: widen the implicit range by a day on each side
		padStart := value.Start.UTC().Add(-24 * time.Hour).Format(dateFormat)
		padEnd := value.End.UTC().Add(24 * time.Hour).Format(dateFormat)
		return dateEqClause(path, padStart, padEnd), nil
	default: // eq
		return dateEqClause(path, start, end), nil
	}
}

// dateEqClause matches values inside [start, end]: a scalar within the
// range, or a period contained by it.
func dateEqClause(path, start, end string) map[string]interface{} {
	return orClauses([]map[string]interface{}{
		rangeClause(path, map[string]interface{}{"gte": start, "lte": end}),
		andClauses([]map[string]interface{}{
			rangeClause(path+".start", map[string]interface{}{"gte": start}),
			rangeClause(path+".end", map[string]interface{}{"lte": end}),
		}),
	})
}

// dateBoundClause applies one comparison against the scalar path or the
// given period sub-field.
func dateBoundClause(path, periodField, op, bound string) map[string]interface{} {
	return orClauses([]map[string]interface{}{
		rangeClause(path, map[string]interface{}{op: bound}),
		rangeClause(periodField, map[string]interface{}{op: bound}),
	})
}
