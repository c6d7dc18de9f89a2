package fhir

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// SearchPrefix represents a FHIR search prefix for ordered values.
type SearchPrefix string

const (
	PrefixEq SearchPrefix = "eq"
	PrefixNe SearchPrefix = "ne"
	PrefixGt SearchPrefix = "gt"
	PrefixLt SearchPrefix = "lt"
	PrefixGe SearchPrefix = "ge"
	PrefixLe SearchPrefix = "le"
	PrefixSa SearchPrefix = "sa" // starts after
	PrefixEb SearchPrefix = "eb" // ends before
	PrefixAp SearchPrefix = "ap" // approximately
)

// SearchModifier represents a FHIR search modifier.
type SearchModifier string

const (
	ModifierExact    SearchModifier = "exact"
	ModifierContains SearchModifier = "contains"
	ModifierText     SearchModifier = "text"
	ModifierNot      SearchModifier = "not"
	ModifierAbove    SearchModifier = "above"
	ModifierBelow    SearchModifier = "below"
	ModifierMissing  SearchModifier = "missing"
)

// ParsedSearch holds a parsed search parameter value with its prefix.
type ParsedSearch struct {
	Prefix SearchPrefix
	Value  string
}

// ParseSearchValue extracts the prefix from a FHIR search value.
// Examples: "gt2023-01-01" -> (gt, "2023-01-01"), "100" -> (eq, "100")
func ParseSearchValue(raw string) ParsedSearch {
	if len(raw) >= 2 {
		prefix := SearchPrefix(strings.ToLower(raw[:2]))
		switch prefix {
		case PrefixEq, PrefixNe, PrefixGt, PrefixLt, PrefixGe, PrefixLe, PrefixSa, PrefixEb, PrefixAp:
			return ParsedSearch{Prefix: prefix, Value: raw[2:]}
		}
	}
	return ParsedSearch{Prefix: PrefixEq, Value: raw}
}

// ParseParamModifier splits a parameter name from its modifier.
// Examples: "name:exact" -> ("name", "exact"), "code" -> ("code", "")
func ParseParamModifier(paramName string) (string, string) {
	parts := strings.SplitN(paramName, ":", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}

// TokenSearchValue is the normalized form of a token parameter value.
// System and Code are nil when the component was not given; an empty string
// is a present, empty component. ExplicitNoSystemProperty records the
// "|code" syntax asserting the indexed value carries no system.
type TokenSearchValue struct {
	System                   *string
	Code                     *string
	ExplicitNoSystemProperty bool
}

// ParseTokenValue parses the FHIR token syntax: "code", "system|code",
// "|code", or "system|". A lone "|" or more than one pipe is invalid.
func ParseTokenValue(raw string) (TokenSearchValue, error) {
	if raw == "|" {
		return TokenSearchValue{}, NewInvalidSearchParameterError("Invalid token search parameter: %s", raw)
	}
	parts := strings.Split(raw, "|")
	switch len(parts) {
	case 1:
		return TokenSearchValue{Code: &parts[0]}, nil
	case 2:
		value := TokenSearchValue{}
		if parts[0] != "" {
			value.System = &parts[0]
		} else {
			value.ExplicitNoSystemProperty = true
		}
		if parts[1] != "" {
			value.Code = &parts[1]
		}
		return value, nil
	default:
		return TokenSearchValue{}, NewInvalidSearchParameterError("Invalid token search parameter: %s", raw)
	}
}

// DateSearchValue is a date parameter value expanded to the implicit
// [Start, End] range its precision covers.
type DateSearchValue struct {
	Prefix SearchPrefix
	Start  time.Time
	End    time.Time
}

// ParseDateValue parses a FHIR date value with optional comparison prefix.
func ParseDateValue(raw string) (DateSearchValue, error) {
	parsed := ParseSearchValue(raw)
	start, end, err := parseDateRange(parsed.Value)
	if err != nil {
		return DateSearchValue{}, NewInvalidSearchParameterError("Invalid date search parameter: %s", raw)
	}
	return DateSearchValue{Prefix: parsed.Prefix, Start: start, End: end}, nil
}

// parseDateRange expands a date string to the range its precision covers:
// "2023" spans the year, "2023-05" the month, "2023-05-10" the day. Full
// timestamps collapse to a point range.
func parseDateRange(s string) (time.Time, time.Time, error) {
	switch len(s) {
	case 4: // YYYY
		t, err := time.Parse("2006", s)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		return t, t.AddDate(1, 0, 0).Add(-time.Millisecond), nil
	case 7: // YYYY-MM
		t, err := time.Parse("2006-01", s)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		return t, t.AddDate(0, 1, 0).Add(-time.Millisecond), nil
	case 10: // YYYY-MM-DD
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		return t, t.AddDate(0, 0, 1).Add(-time.Millisecond), nil
	default:
		t, err := parseFlexDate(s)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		return t, t, nil
	}
}

// parseFlexDate parses a date string in multiple FHIR-supported formats.
func parseFlexDate(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
		"2006-01",
		"2006",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", s)
}

// NumberSearchValue is a number parameter value with the implicit range its
// significant figures cover: "100" spans [99.5, 100.5], "100.00" spans
// [99.995, 100.005].
type NumberSearchValue struct {
	Prefix SearchPrefix
	Number float64
	Low    float64
	High   float64
}

// ParseNumberValue parses a FHIR number value with optional comparison prefix.
func ParseNumberValue(raw string) (NumberSearchValue, error) {
	parsed := ParseSearchValue(raw)
	number, err := strconv.ParseFloat(parsed.Value, 64)
	if err != nil {
		return NumberSearchValue{}, NewInvalidSearchParameterError("Invalid number search parameter: %s", raw)
	}
	delta := implicitRangeDelta(parsed.Value)
	return NumberSearchValue{
		Prefix: parsed.Prefix,
		Number: number,
		Low:    number - delta,
		High:   number + delta,
	}, nil
}

// implicitRangeDelta derives half the width of the implicit range from the
// written precision, honoring scientific notation.
func implicitRangeDelta(s string) float64 {
	mantissa := s
	exponent := 0
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		mantissa = s[:i]
		exponent, _ = strconv.Atoi(s[i+1:])
	}
	decimals := 0
	if i := strings.Index(mantissa, "."); i >= 0 {
		decimals = len(mantissa) - i - 1
	}
	return 0.5 * math.Pow(10, float64(exponent-decimals))
}

// QuantitySearchValue is a quantity parameter value: a number with optional
// unit system and code, written "number|system|code".
type QuantitySearchValue struct {
	NumberSearchValue
	System string
	Code   string
}

// ParseQuantityValue parses a FHIR quantity value. Valid forms are a bare
// number or number|system|code; system may be empty.
func ParseQuantityValue(raw string) (QuantitySearchValue, error) {
	parts := strings.Split(raw, "|")
	if len(parts) != 1 && len(parts) != 3 {
		return QuantitySearchValue{}, NewInvalidSearchParameterError("Invalid quantity search parameter: %s", raw)
	}
	number, err := ParseNumberValue(parts[0])
	if err != nil {
		return QuantitySearchValue{}, NewInvalidSearchParameterError("Invalid quantity search parameter: %s", raw)
	}
	value := QuantitySearchValue{NumberSearchValue: number}
	if len(parts) == 3 {
		value.System = parts[1]
		value.Code = parts[2]
	}
	return value, nil
}

// ReferenceSearchValue is a reference parameter value in one of its three
// written forms: bare id, "Type/id", or an absolute URL.
type ReferenceSearchValue struct {
	ResourceType string
	ID           string
	URL          string
	IDOnly       bool
}

// ParseReferenceValue parses a FHIR reference value.
func ParseReferenceValue(raw string) (ReferenceSearchValue, error) {
	if raw == "" {
		return ReferenceSearchValue{}, NewInvalidSearchParameterError("Invalid reference search parameter: %s", raw)
	}
	if strings.Contains(raw, "://") {
		trimmed := strings.TrimSuffix(raw, "/")
		segments := strings.Split(trimmed, "/")
		if len(segments) < 2 {
			return ReferenceSearchValue{}, NewInvalidSearchParameterError("Invalid reference search parameter: %s", raw)
		}
		return ReferenceSearchValue{
			URL:          raw,
			ResourceType: segments[len(segments)-2],
			ID:           segments[len(segments)-1],
		}, nil
	}
	parts := strings.Split(raw, "/")
	switch len(parts) {
	case 1:
		return ReferenceSearchValue{ID: parts[0], IDOnly: true}, nil
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return ReferenceSearchValue{}, NewInvalidSearchParameterError("Invalid reference search parameter: %s", raw)
		}
		return ReferenceSearchValue{ResourceType: parts[0], ID: parts[1]}, nil
	default:
		return ReferenceSearchValue{}, NewInvalidSearchParameterError("Invalid reference search parameter: %s", raw)
	}
}
