package search

import (
	"context"
	"sort"
	"strings"

	"github.com/ResMedOSS/fhir-works-on-aws-search-es/internal/platform/fhir"
	"github.com/ResMedOSS/fhir-works-on-aws-search-es/pkg/pagination"
)

// maxIncludeHits caps the window of one _revinclude follow-up query. Reverse
// includes have no id list to size against, so the cap bounds the fan-out.
const maxIncludeHits = 1000

type Service struct {
	repo                Repository
	registry            *fhir.SearchParametersRegistry
	parser              *fhir.QueryParser
	builder             *fhir.QueryBuilder
	useKeywordSubFields bool
}

func NewService(repo Repository, registry *fhir.SearchParametersRegistry, types *fhir.TypeMapService, useKeywordSubFields bool) *Service {
	return &Service{
		repo:                repo,
		registry:            registry,
		parser:              fhir.NewQueryParser(registry),
		builder:             fhir.NewQueryBuilder(registry, types, useKeywordSubFields),
		useKeywordSubFields: useKeywordSubFields,
	}
}

// Search runs one request end to end: parse and validate the parameters,
// assemble the engine query, execute it, resolve _include and _revinclude
// directives, and fold everything into a searchset bundle. A request whose
// parameters produce no clauses matches the whole index but stays scoped to
// the searched resource type, since each type lives in its own index.
func (s *Service) Search(ctx context.Context, req Request) (*fhir.Bundle, error) {
	page := pagination.FromValues(req.Values)

	query, err := s.parser.Parse(req.ResourceType, req.Values)
	if err != nil {
		return nil, err
	}

	body, err := s.builder.Build(query, page.Offset, page.Count)
	if err != nil {
		return nil, err
	}

	result, err := s.repo.Search(ctx, req.ResourceType, body)
	if err != nil {
		return nil, err
	}

	includes, err := s.resolveIncludes(ctx, query, result.Resources)
	if err != nil {
		return nil, err
	}

	return fhir.NewSearchBundle(result.Resources, includes, fhir.SearchBundleParams{
		BaseURL:  req.BaseURL,
		QueryStr: pagination.QueryString(req.Values),
		Count:    page.Count,
		Offset:   page.Offset,
		Total:    result.Total,
	})
}

// Ping reports engine reachability for the readiness endpoint.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// resolveIncludes fetches the additional resources requested by _include and
// _revinclude directives. Results are deduplicated against the matches and
// against each other by their "Type/id" reference.
func (s *Service) resolveIncludes(ctx context.Context, query *fhir.ParsedQuery, matches []map[string]interface{}) ([]map[string]interface{}, error) {
	if len(query.Includes) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool, len(matches))
	for _, match := range matches {
		if ref := fhir.RelativeReference(match); ref != "" {
			seen[ref] = true
		}
	}

	var includes []map[string]interface{}
	for _, spec := range query.Includes {
		var (
			found []map[string]interface{}
			err   error
		)
		if spec.Reverse {
			found, err = s.resolveRevInclude(ctx, query.ResourceType, spec, matches)
		} else {
			found, err = s.resolveInclude(ctx, query.ResourceType, spec, matches)
		}
		if err != nil {
			return nil, err
		}
		for _, res := range found {
			ref := fhir.RelativeReference(res)
			if ref == "" || seen[ref] {
				continue
			}
			seen[ref] = true
			includes = append(includes, res)
		}
	}
	return includes, nil
}

// resolveInclude follows the references of one _include directive forward:
// collect the target references the matches hold at the parameter's path,
// then fetch those documents by id from their type's index. Directives whose
// source type is not the searched type do not apply and are skipped.
func (s *Service) resolveInclude(ctx context.Context, resourceType string, spec fhir.IncludeSpec, matches []map[string]interface{}) ([]map[string]interface{}, error) {
	if spec.SourceType != resourceType {
		return nil, nil
	}

	def, ok := s.registry.Lookup(spec.SourceType, spec.Param)
	if !ok || def.Type != fhir.SearchParamReference {
		return nil, fhir.NewInvalidSearchParameterError("Invalid _include parameter '%s' for resource type %s", spec.Param, spec.SourceType)
	}
	field := s.registry.Compile(spec.SourceType, def)

	idsByType := make(map[string][]string)
	for _, match := range matches {
		for _, ref := range fhir.ReferencesAt(match, field.Path) {
			targetType, id, ok := splitReference(ref)
			if !ok {
				continue
			}
			if spec.TargetType != "" && targetType != spec.TargetType {
				continue
			}
			if !targetAllowed(def.Targets, targetType) {
				continue
			}
			if !s.registry.Supports(targetType) {
				continue
			}
			idsByType[targetType] = append(idsByType[targetType], id)
		}
	}

	var includes []map[string]interface{}
	for _, targetType := range sortedKeys(idsByType) {
		result, err := s.repo.Search(ctx, targetType, fhir.IncludeIDQuery(dedupe(idsByType[targetType])))
		if err != nil {
			return nil, err
		}
		includes = append(includes, result.Resources...)
	}
	return includes, nil
}

// resolveRevInclude follows one _revinclude directive backward: find the
// documents of the directive's source type whose reference parameter points
// at any matched resource. A target-type narrowing that does not name the
// searched type, or a parameter that cannot reference it, yields nothing.
func (s *Service) resolveRevInclude(ctx context.Context, resourceType string, spec fhir.IncludeSpec, matches []map[string]interface{}) ([]map[string]interface{}, error) {
	if spec.TargetType != "" && spec.TargetType != resourceType {
		return nil, nil
	}
	if !s.registry.Supports(spec.SourceType) {
		return nil, fhir.NewInvalidSearchParameterError("Invalid _revinclude source type: %s", spec.SourceType)
	}

	def, ok := s.registry.Lookup(spec.SourceType, spec.Param)
	if !ok || def.Type != fhir.SearchParamReference {
		return nil, fhir.NewInvalidSearchParameterError("Invalid _revinclude parameter '%s' for resource type %s", spec.Param, spec.SourceType)
	}
	if !targetAllowed(def.Targets, resourceType) {
		return nil, nil
	}
	field := s.registry.Compile(spec.SourceType, def)

	refs := make([]string, 0, len(matches))
	for _, match := range matches {
		if ref := fhir.RelativeReference(match); ref != "" {
			refs = append(refs, ref)
		}
	}
	if len(refs) == 0 {
		return nil, nil
	}

	result, err := s.repo.Search(ctx, spec.SourceType, fhir.RevIncludeQuery(field.Path, refs, s.useKeywordSubFields, maxIncludeHits))
	if err != nil {
		return nil, err
	}
	return result.Resources, nil
}

// splitReference parses a "Type/id" relative reference. Absolute URLs reduce
// to their two trailing segments.
func splitReference(ref string) (resourceType, id string, ok bool) {
	parts := strings.Split(strings.TrimSuffix(ref, "/"), "/")
	if len(parts) < 2 {
		return "", "", false
	}
	resourceType, id = parts[len(parts)-2], parts[len(parts)-1]
	if resourceType == "" || id == "" {
		return "", "", false
	}
	return resourceType, id, true
}

// targetAllowed reports whether a reference parameter's declared targets
// cover the type. An empty declaration allows any type.
func targetAllowed(targets []string, resourceType string) bool {
	if len(targets) == 0 {
		return true
	}
	for _, t := range targets {
		if t == resourceType {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
