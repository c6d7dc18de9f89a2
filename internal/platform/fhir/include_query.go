package fhir

import "strings"

// RelativeReference derives the "ResourceType/id" reference for an indexed
// resource document. Documents missing either field yield an empty string.
func RelativeReference(res map[string]interface{}) string {
	rt, _ := res["resourceType"].(string)
	id, _ := res["id"].(string)
	if rt == "" || id == "" {
		return ""
	}
	return rt + "/" + id
}

// ReferencesAt collects the reference strings stored at a dotted field path
// inside a resource document. Arrays fan out at every depth, so a path over a
// repeated Reference field returns one string per element. Leaves that are
// not Reference-shaped are skipped.
func ReferencesAt(res map[string]interface{}, path string) []string {
	nodes := []interface{}{res}
	for _, segment := range strings.Split(path, ".") {
		nodes = descend(nodes, segment)
		if len(nodes) == 0 {
			return nil
		}
	}

	var refs []string
	for _, node := range nodes {
		refs = append(refs, leafReferences(node)...)
	}
	return refs
}

// descend resolves one path segment against every current node, flattening
// arrays as it goes.
func descend(nodes []interface{}, segment string) []interface{} {
	var next []interface{}
	for _, node := range nodes {
		switch v := node.(type) {
		case map[string]interface{}:
			if child, ok := v[segment]; ok {
				next = append(next, child)
			}
		case []interface{}:
			for _, elem := range v {
				m, ok := elem.(map[string]interface{})
				if !ok {
					continue
				}
				if child, ok := m[segment]; ok {
					next = append(next, child)
				}
			}
		}
	}
	return next
}

// leafReferences pulls the reference strings out of a terminal node, which is
// either a single Reference object or an array of them.
func leafReferences(node interface{}) []string {
	switch v := node.(type) {
	case map[string]interface{}:
		if ref, ok := v["reference"].(string); ok && ref != "" {
			return []string{ref}
		}
	case []interface{}:
		var refs []string
		for _, elem := range v {
			refs = append(refs, leafReferences(elem)...)
		}
		return refs
	}
	return nil
}

// IncludeIDQuery builds the follow-up request body fetching the referenced
// resources of an _include directive by document id. The window is sized to
// the id list, so one request retrieves every target.
func IncludeIDQuery(ids []string) map[string]interface{} {
	return map[string]interface{}{
		"from":  0,
		"size":  len(ids),
		"query": termsClause("id", ids),
	}
}

// RevIncludeQuery builds the follow-up request body for a _revinclude
// directive: resources whose reference parameter at path points at any of the
// given "ResourceType/id" targets. The reference field follows the keyword
// suffix convention of the index.
func RevIncludeQuery(path string, targetRefs []string, useKeywordSubFields bool, size int) map[string]interface{} {
	field := path + ".reference"
	if useKeywordSubFields {
		field += keywordSubField
	}
	return map[string]interface{}{
		"from":  0,
		"size":  size,
		"query": termsClause(field, targetRefs),
	}
}
