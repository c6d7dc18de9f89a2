package fhir

import (
	"net/url"
	"sort"
	"strings"
)

// Control parameters handled outside the per-type compilers.
const (
	ParamCount       = "_count"
	ParamOffset      = "_offset"
	ParamOffsetAlias = "_getpagesoffset"
	ParamSort        = "_sort"
	ParamID          = "_id"
	ParamText        = "_text"
	ParamContent     = "_content"
	ParamFormat      = "_format"
	ParamInclude     = "_include"
	ParamRevInclude  = "_revinclude"
)

// ParsedParam is one occurrence of a search parameter with its definition
// resolved. Values holds the comma-separated alternatives, OR-ed together.
type ParsedParam struct {
	Def      SearchParamDef
	Modifier string
	Values   []string
}

// IncludeSpec is one _include or _revinclude directive.
type IncludeSpec struct {
	Reverse    bool
	SourceType string
	Param      string
	TargetType string // optional ":targetType" narrowing
}

// ParsedQuery is a search request reduced to typed parts. Distinct Params
// AND together; pagination is carried separately by the caller.
type ParsedQuery struct {
	ResourceType string
	Params       []ParsedParam
	Sort         []SortSpec
	Includes     []IncludeSpec
	Text         string
	Content      string
}

// QueryParser resolves raw query strings against the parameter registry.
type QueryParser struct {
	registry *SearchParametersRegistry
}

// NewQueryParser creates a parser over the given registry.
func NewQueryParser(registry *SearchParametersRegistry) *QueryParser {
	return &QueryParser{registry: registry}
}

// Parse validates and types every search parameter of a request. Control
// parameters are routed to their owners; unknown parameter names and
// malformed directives are rejected.
func (p *QueryParser) Parse(resourceType string, values url.Values) (*ParsedQuery, error) {
	if !p.registry.Supports(resourceType) {
		return nil, NewInvalidSearchParameterError("Unsupported resource type: %s", resourceType)
	}

	parsed := &ParsedQuery{ResourceType: resourceType}

	// Parameter order in a query string carries no meaning; iterate sorted
	// so the built query is deterministic.
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		switch name {
		case ParamCount, ParamOffset, ParamOffsetAlias, ParamFormat:
			continue
		case ParamSort:
			parsed.Sort = ParseSort(values.Get(ParamSort))
			continue
		case ParamText:
			parsed.Text = values.Get(ParamText)
			continue
		case ParamContent:
			parsed.Content = values.Get(ParamContent)
			continue
		case ParamInclude, ParamRevInclude:
			for _, raw := range values[name] {
				spec, err := parseIncludeSpec(raw, name == ParamRevInclude)
				if err != nil {
					return nil, err
				}
				parsed.Includes = append(parsed.Includes, spec)
			}
			continue
		}

		base, modifier := ParseParamModifier(name)
		def, ok := p.registry.Lookup(resourceType, base)
		if !ok {
			return nil, NewInvalidSearchParameterError("Invalid search parameter '%s' for resource type %s", base, resourceType)
		}
		for _, raw := range values[name] {
			alternatives := splitOrValues(raw)
			if len(alternatives) == 0 {
				continue
			}
			parsed.Params = append(parsed.Params, ParsedParam{
				Def:      def,
				Modifier: modifier,
				Values:   alternatives,
			})
		}
	}
	return parsed, nil
}

// splitOrValues splits the comma-separated alternatives of one parameter
// value, dropping empty entries.
func splitOrValues(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseIncludeSpec parses "SourceType:param" or "SourceType:param:TargetType".
func parseIncludeSpec(raw string, reverse bool) (IncludeSpec, error) {
	name := ParamInclude
	if reverse {
		name = ParamRevInclude
	}
	parts := strings.Split(raw, ":")
	switch len(parts) {
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return IncludeSpec{}, NewInvalidSearchParameterError("Invalid %s value: %s", name, raw)
		}
		return IncludeSpec{Reverse: reverse, SourceType: parts[0], Param: parts[1]}, nil
	case 3:
		if parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return IncludeSpec{}, NewInvalidSearchParameterError("Invalid %s value: %s", name, raw)
		}
		return IncludeSpec{Reverse: reverse, SourceType: parts[0], Param: parts[1], TargetType: parts[2]}, nil
	default:
		return IncludeSpec{}, NewInvalidSearchParameterError("Invalid %s value: %s", name, raw)
	}
}
