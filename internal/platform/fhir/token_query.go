package fhir

// supportedTokenModifiers is the set of modifiers the token compiler accepts.
// Deliberately empty: FHIR defines :text, :not, :above, :below, :in, :not-in
// and :of-type for token parameters, none of which are implemented yet.
var supportedTokenModifiers = map[string]bool{}

// fieldsWithoutKeyword lists paths that carry no .keyword sub-field in the
// index mapping. Only consulted when keyword sub-fields are enabled.
var fieldsWithoutKeyword = map[string]bool{
	"id": true,
}

// tokenFieldRule contributes one sub-field when any of its tags resolved for
// the path. rel is appended to the parameter path; "" selects the path itself.
type tokenFieldRule struct {
	tags []TypeTag
	rel  string
}

// Field selection tables for the two token components, in emission order.
// The same tables drive the fallback: when no rule fires (path unknown to the
// type map, or known with no recognized tag) every rule's field is included,
// widening the search instead of failing it.
var (
	tokenSystemRules = []tokenFieldRule{
		{tags: []TypeTag{TypeIdentifier, TypeCoding}, rel: ".system"},
		{tags: []TypeTag{TypeCodeableConcept}, rel: ".coding.system"},
	}
	tokenCodeRules = []tokenFieldRule{
		{tags: []TypeTag{TypeCoding}, rel: ".code"},
		{tags: []TypeTag{TypeCodeableConcept}, rel: ".coding.code"},
		{tags: []TypeTag{TypeIdentifier, TypeContactPoint}, rel: ".value"},
		{tags: []TypeTag{TypeCode, TypeString, TypeBoolean, TypeID}, rel: ""},
	}
)

// TokenQueryCompiler translates normalized token search values into engine
// query fragments. Field selection consults the injected type map; an
// unresolvable type widens the search rather than failing it.
type TokenQueryCompiler struct {
	types TypeMap
}

// NewTokenQueryCompiler creates a compiler over the given type map snapshot.
func NewTokenQueryCompiler(types TypeMap) *TokenQueryCompiler {
	return &TokenQueryCompiler{types: types}
}

// Compile builds the engine query fragment for one token parameter value.
// One lenient multi_match clause is emitted per present component (system,
// code) plus a must-not-exist clause when the value asserts the absence of a
// system. A single clause is returned unwrapped; several are combined under
// bool.must; none produce an empty bool.must that matches everything, which
// callers must guard against.
func (c *TokenQueryCompiler) Compile(field CompiledSearchParam, value TokenSearchValue, useKeywordSubFields bool, modifier string) (map[string]interface{}, error) {
	if modifier != "" && !supportedTokenModifiers[modifier] {
		return nil, NewInvalidSearchParameterError("Unsupported token search modifier: %s", modifier)
	}

	tags, dataTypeExists := c.types.Lookup(field.ResourceType, field.Path)

	useKeywordSuffix := useKeywordSubFields && !fieldsWithoutKeyword[field.Path]
	suffix := ""
	if useKeywordSuffix {
		suffix = keywordSubField
	}

	queries := make([]map[string]interface{}, 0, 3)

	if value.System != nil {
		fields := tokenSystemFields(field.Path, suffix, tags, dataTypeExists)
		queries = append(queries, multiMatchClause(fields, *value.System))
	}

	if value.Code != nil {
		fields := tokenCodeFields(field.Path, suffix, useKeywordSuffix, tags, dataTypeExists)
		queries = append(queries, multiMatchClause(fields, *value.Code))
	}

	if value.ExplicitNoSystemProperty {
		queries = append(queries, mustNotExistClause(field.Path+".system"))
	}

	if len(queries) == 1 {
		return queries[0], nil
	}
	return andClauses(queries), nil
}

// tokenSystemFields selects the sub-fields matched against the system
// component.
func tokenSystemFields(path, suffix string, tags map[TypeTag]bool, dataTypeExists bool) []string {
	fields := applyTokenRules(tokenSystemRules, path, suffix, tags, dataTypeExists)
	if len(fields) == 0 {
		fields = allTokenRuleFields(tokenSystemRules, path, suffix)
	}
	return fields
}

// tokenCodeFields selects the sub-fields matched against the code component.
// Boolean paths additionally match the bare path when the keyword suffix is
// in play: booleans index no keyword sub-field. The fallback includes the
// bare path under the same condition, since without type information the
// boolean case cannot be ruled out.
func tokenCodeFields(path, suffix string, useKeywordSuffix bool, tags map[TypeTag]bool, dataTypeExists bool) []string {
	fields := applyTokenRules(tokenCodeRules, path, suffix, tags, dataTypeExists)
	if len(fields) == 0 {
		fields = allTokenRuleFields(tokenCodeRules, path, suffix)
		if useKeywordSuffix {
			fields = append(fields, path)
		}
		return fields
	}
	if useKeywordSuffix && tags[TypeBoolean] {
		fields = append(fields, path)
	}
	return fields
}

// applyTokenRules evaluates the rule table against the resolved tags. A nil
// result means no rule fired and the caller falls back to the full field set.
func applyTokenRules(rules []tokenFieldRule, path, suffix string, tags map[TypeTag]bool, dataTypeExists bool) []string {
	if !dataTypeExists {
		return nil
	}
	var fields []string
	for _, rule := range rules {
		for _, tag := range rule.tags {
			if tags[tag] {
				fields = append(fields, path+rule.rel+suffix)
				break
			}
		}
	}
	return fields
}

// allTokenRuleFields expands every rule in the table, in table order.
func allTokenRuleFields(rules []tokenFieldRule, path, suffix string) []string {
	fields := make([]string, 0, len(rules))
	for _, rule := range rules {
		fields = append(fields, path+rule.rel+suffix)
	}
	return fields
}
