package fhir

import (
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"
)

// TypeTag identifies the structural data type a search path resolves to in
// the FHIR R4 structure definitions.
type TypeTag string

// Type tags recognized by the token field selectors. A type map may carry
// other codes (date, Reference, HumanName, ...); those set no flags and the
// selectors fall back to the broad field set.
const (
	TypeIdentifier      TypeTag = "Identifier"
	TypeCode            TypeTag = "code"
	TypeCodeableConcept TypeTag = "CodeableConcept"
	TypeID              TypeTag = "id"
	TypeString          TypeTag = "string"
	TypeBoolean         TypeTag = "boolean"
	TypeCoding          TypeTag = "Coding"
	TypeContactPoint    TypeTag = "ContactPoint"
)

// TypeRef is one candidate data type recorded for a search path.
type TypeRef struct {
	Code TypeTag `json:"code"`
}

// TypeMap maps resource type and field path to the candidate data types the
// path may hold, as compiled from structure definitions. Read-only once built.
type TypeMap map[string]map[string][]TypeRef

// Lookup returns the set of type tags recorded for (resourceType, path).
// The second return is false when the map has no entry for the pair; an entry
// with an empty tag list returns an empty set and true.
func (m TypeMap) Lookup(resourceType, path string) (map[TypeTag]bool, bool) {
	paths, ok := m[resourceType]
	if !ok {
		return nil, false
	}
	refs, ok := paths[path]
	if !ok {
		return nil, false
	}
	tags := make(map[TypeTag]bool, len(refs))
	for _, ref := range refs {
		tags[ref.Code] = true
	}
	return tags, true
}

// TypeMapService holds the active type map snapshot. Readers always see a
// complete map; Replace swaps in a fully built replacement and never mutates
// the map readers hold.
type TypeMapService struct {
	snapshot atomic.Pointer[TypeMap]
}

// NewTypeMapService creates a service serving the given map.
func NewTypeMapService(m TypeMap) *TypeMapService {
	s := &TypeMapService{}
	s.snapshot.Store(&m)
	return s
}

// Current returns the active snapshot. Callers must not mutate it.
func (s *TypeMapService) Current() TypeMap {
	return *s.snapshot.Load()
}

// Replace swaps the active snapshot.
func (s *TypeMapService) Replace(m TypeMap) {
	s.snapshot.Store(&m)
}

// LoadTypeMap reads a type map from a JSON file in the shape
// {"Patient": {"identifier": [{"code": "Identifier"}]}}.
func LoadTypeMap(path string) (TypeMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read type map: %w", err)
	}
	var m TypeMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse type map %s: %w", path, err)
	}
	return m, nil
}

// DefaultTypeMap returns the compiled type entries for the resource types the
// server indexes, keyed by resource type then field path.
func DefaultTypeMap() TypeMap {
	return TypeMap{
		"Patient": {
			"id":                     {{Code: TypeID}},
			"identifier":             {{Code: TypeIdentifier}},
			"active":                 {{Code: TypeBoolean}},
			"gender":                 {{Code: TypeCode}},
			"telecom":                {{Code: TypeContactPoint}},
			"maritalStatus":          {{Code: TypeCodeableConcept}},
			"communication.language": {{Code: TypeCodeableConcept}},
			"deceasedBoolean":        {{Code: TypeBoolean}},
			"name":                   {{Code: "HumanName"}},
			"birthDate":              {{Code: "date"}},
			"generalPractitioner":    {{Code: "Reference"}},
		},
		"Practitioner": {
			"id":            {{Code: TypeID}},
			"identifier":    {{Code: TypeIdentifier}},
			"active":        {{Code: TypeBoolean}},
			"gender":        {{Code: TypeCode}},
			"telecom":       {{Code: TypeContactPoint}},
			"communication": {{Code: TypeCodeableConcept}},
			"name":          {{Code: "HumanName"}},
		},
		"Organization": {
			"id":         {{Code: TypeID}},
			"identifier": {{Code: TypeIdentifier}},
			"active":     {{Code: TypeBoolean}},
			"type":       {{Code: TypeCodeableConcept}},
			"name":       {{Code: TypeString}},
		},
		"Observation": {
			"id":                   {{Code: TypeID}},
			"identifier":           {{Code: TypeIdentifier}},
			"status":               {{Code: TypeCode}},
			"code":                 {{Code: TypeCodeableConcept}},
			"category":             {{Code: TypeCodeableConcept}},
			"valueCodeableConcept": {{Code: TypeCodeableConcept}},
			"effectiveDateTime":    {{Code: "dateTime"}},
			"subject":              {{Code: "Reference"}},
			"valueQuantity.value":  {{Code: "decimal"}},
		},
		"Condition": {
			"id":                 {{Code: TypeID}},
			"identifier":         {{Code: TypeIdentifier}},
			"code":               {{Code: TypeCodeableConcept}},
			"clinicalStatus":     {{Code: TypeCodeableConcept}},
			"verificationStatus": {{Code: TypeCodeableConcept}},
			"category":           {{Code: TypeCodeableConcept}},
			"severity":           {{Code: TypeCodeableConcept}},
			"subject":            {{Code: "Reference"}},
		},
		"Encounter": {
			"id":         {{Code: TypeID}},
			"identifier": {{Code: TypeIdentifier}},
			"status":     {{Code: TypeCode}},
			"class":      {{Code: TypeCoding}},
			"type":       {{Code: TypeCodeableConcept}},
			"period":     {{Code: "Period"}},
			"subject":    {{Code: "Reference"}},
		},
		"MedicationRequest": {
			"id":                        {{Code: TypeID}},
			"identifier":                {{Code: TypeIdentifier}},
			"status":                    {{Code: TypeCode}},
			"intent":                    {{Code: TypeCode}},
			"medicationCodeableConcept": {{Code: TypeCodeableConcept}},
			"subject":                   {{Code: "Reference"}},
			"authoredOn":                {{Code: "dateTime"}},
		},
		"DiagnosticReport": {
			"id":         {{Code: TypeID}},
			"identifier": {{Code: TypeIdentifier}},
			"status":     {{Code: TypeCode}},
			"code":       {{Code: TypeCodeableConcept}},
			"category":   {{Code: TypeCodeableConcept}},
			"subject":    {{Code: "Reference"}},
		},
		"Immunization": {
			"id":          {{Code: TypeID}},
			"identifier":  {{Code: TypeIdentifier}},
			"status":      {{Code: TypeCode}},
			"vaccineCode": {{Code: TypeCodeableConcept}},
			"patient":     {{Code: "Reference"}},
		},
		"Procedure": {
			"id":         {{Code: TypeID}},
			"identifier": {{Code: TypeIdentifier}},
			"status":     {{Code: TypeCode}},
			"code":       {{Code: TypeCodeableConcept}},
			"category":   {{Code: TypeCodeableConcept}},
			"subject":    {{Code: "Reference"}},
		},
		"AllergyIntolerance": {
			"id":                 {{Code: TypeID}},
			"identifier":         {{Code: TypeIdentifier}},
			"clinicalStatus":     {{Code: TypeCodeableConcept}},
			"verificationStatus": {{Code: TypeCodeableConcept}},
			"code":               {{Code: TypeCodeableConcept}},
			"category":           {{Code: TypeCode}},
			"criticality":        {{Code: TypeCode}},
			"type":               {{Code: TypeCode}},
			"patient":            {{Code: "Reference"}},
		},
		"ServiceRequest": {
			"id":         {{Code: TypeID}},
			"identifier": {{Code: TypeIdentifier}},
			"status":     {{Code: TypeCode}},
			"intent":     {{Code: TypeCode}},
			"code":       {{Code: TypeCodeableConcept}},
			"category":   {{Code: TypeCodeableConcept}},
			"subject":    {{Code: "Reference"}},
		},
		"DocumentReference": {
			"id":         {{Code: TypeID}},
			"identifier": {{Code: TypeIdentifier}},
			"status":     {{Code: TypeCode}},
			"type":       {{Code: TypeCodeableConcept}},
			"category":   {{Code: TypeCodeableConcept}},
			"subject":    {{Code: "Reference"}},
			"date":       {{Code: "instant"}},
		},
		"Questionnaire": {
			"id":         {{Code: TypeID}},
			"identifier": {{Code: TypeIdentifier}},
			"status":     {{Code: TypeCode}},
			"title":      {{Code: TypeString}},
			"url":        {{Code: "uri"}},
			"date":       {{Code: "dateTime"}},
		},
		"RiskAssessment": {
			"id":                            {{Code: TypeID}},
			"identifier":                    {{Code: TypeIdentifier}},
			"status":                        {{Code: TypeCode}},
			"prediction.qualitativeRisk":    {{Code: TypeCodeableConcept}},
			"prediction.probabilityDecimal": {{Code: "decimal"}},
			"subject":                       {{Code: "Reference"}},
		},
	}
}
