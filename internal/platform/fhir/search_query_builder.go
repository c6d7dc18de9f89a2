package fhir

// QueryBuilder assembles complete engine request bodies from parsed search
// requests. One builder serves all resource types; the type map snapshot is
// re-read per request so registry reloads take effect without a restart.
type QueryBuilder struct {
	registry            *SearchParametersRegistry
	types               *TypeMapService
	useKeywordSubFields bool
}

// NewQueryBuilder creates a builder over the given registry and type map.
func NewQueryBuilder(registry *SearchParametersRegistry, types *TypeMapService, useKeywordSubFields bool) *QueryBuilder {
	return &QueryBuilder{
		registry:            registry,
		types:               types,
		useKeywordSubFields: useKeywordSubFields,
	}
}

// Build assembles the request body for a parsed query. from and size carry
// the pagination window. A query without clauses yields an empty must list,
// which the engine reads as match-all.
func (b *QueryBuilder) Build(query *ParsedQuery, from, size int) (map[string]interface{}, error) {
	clauses := make([]map[string]interface{}, 0, len(query.Params)+2)
	tokens := NewTokenQueryCompiler(b.types.Current())

	for _, param := range query.Params {
		clause, err := b.paramClause(tokens, query.ResourceType, param)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}

	if query.Text != "" {
		ft, err := ParseTextSearchParam(query.Text)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, ft.Clause())
	}
	if query.Content != "" {
		ft, err := ParseContentSearchParam(query.Content)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, ft.Clause())
	}

	body := map[string]interface{}{
		"from":  from,
		"size":  size,
		"query": andClauses(clauses),
	}

	if len(query.Sort) > 0 {
		sort, err := BuildSortClauses(b.registry, query.ResourceType, query.Sort, b.useKeywordSubFields)
		if err != nil {
			return nil, err
		}
		body["sort"] = sort
	}

	return body, nil
}

// paramClause compiles one parameter occurrence. Comma-separated values OR
// together; a single value stays unwrapped.
func (b *QueryBuilder) paramClause(tokens *TokenQueryCompiler, resourceType string, param ParsedParam) (map[string]interface{}, error) {
	field := b.registry.Compile(resourceType, param.Def)

	valueClauses := make([]map[string]interface{}, 0, len(param.Values))
	for _, raw := range param.Values {
		clause, err := b.valueClause(tokens, field, param, raw)
		if err != nil {
			return nil, err
		}
		valueClauses = append(valueClauses, clause)
	}

	if len(valueClauses) == 1 {
		return valueClauses[0], nil
	}
	return orClauses(valueClauses), nil
}

// valueClause dispatches one raw value to the compiler for its type.
func (b *QueryBuilder) valueClause(tokens *TokenQueryCompiler, field CompiledSearchParam, param ParsedParam, raw string) (map[string]interface{}, error) {
	switch param.Def.Type {
	case SearchParamToken:
		value, err := ParseTokenValue(raw)
		if err != nil {
			return nil, err
		}
		return tokens.Compile(field, value, b.useKeywordSubFields, param.Modifier)
	case SearchParamString:
		return StringQuery(field, raw, b.useKeywordSubFields, param.Modifier)
	case SearchParamDate:
		value, err := ParseDateValue(raw)
		if err != nil {
			return nil, err
		}
		return DateQuery(field, value, param.Modifier)
	case SearchParamNumber:
		value, err := ParseNumberValue(raw)
		if err != nil {
			return nil, err
		}
		return NumberQuery(field, value, param.Modifier)
	case SearchParamQuantity:
		value, err := ParseQuantityValue(raw)
		if err != nil {
			return nil, err
		}
		return QuantityQuery(field, value, b.useKeywordSubFields, param.Modifier)
	case SearchParamURI:
		return URIQuery(field, raw, b.useKeywordSubFields, param.Modifier)
	case SearchParamReference:
		value, err := ParseReferenceValue(raw)
		if err != nil {
			return nil, err
		}
		return ReferenceQuery(field, value, b.useKeywordSubFields, param.Def.Targets, param.Modifier)
	}
	return nil, NewInvalidSearchParameterError("Unsupported search parameter type: %s", param.Def.Type)
}
