package fhir

import "sort"

// SearchParamType defines the FHIR search parameter type.
type SearchParamType int

const (
	SearchParamToken     SearchParamType = iota // Token: status, code, identifier (system|code syntax)
	SearchParamDate                             // Date: supports prefixes (gt, lt, ge, le, eq, etc.)
	SearchParamString                           // String: prefix match, supports :exact, :contains
	SearchParamReference                        // Reference: "ResourceType/id", bare id, or full URL
	SearchParamNumber                           // Number: prefix support, implicit precision range
	SearchParamQuantity                         // Quantity: number plus |system|code unit filter
	SearchParamURI                              // URI: exact match
)

// String returns the FHIR wire name of the type, as published in the
// capability statement.
func (t SearchParamType) String() string {
	switch t {
	case SearchParamToken:
		return "token"
	case SearchParamDate:
		return "date"
	case SearchParamString:
		return "string"
	case SearchParamReference:
		return "reference"
	case SearchParamNumber:
		return "number"
	case SearchParamQuantity:
		return "quantity"
	case SearchParamURI:
		return "uri"
	default:
		return "unknown"
	}
}

// SearchParamDef describes one search parameter of a resource type.
type SearchParamDef struct {
	Name    string
	Type    SearchParamType
	Path    string   // document field path the parameter binds to
	Targets []string // reference parameters: allowed target resource types
}

// CompiledSearchParam is the concrete field binding a parameter resolves to
// for one resource type. The per-type query compilers consume it read-only.
type CompiledSearchParam struct {
	ResourceType string
	Path         string
}

// SearchParametersRegistry resolves parameter names against the supported
// resource types. The definition map is built once at startup and never
// mutated, so reads need no locking.
type SearchParametersRegistry struct {
	defs map[string]map[string]SearchParamDef
}

// NewSearchParametersRegistry creates a registry over the given definitions.
func NewSearchParametersRegistry(defs map[string]map[string]SearchParamDef) *SearchParametersRegistry {
	return &SearchParametersRegistry{defs: defs}
}

// Supports reports whether the registry knows the resource type.
func (r *SearchParametersRegistry) Supports(resourceType string) bool {
	_, ok := r.defs[resourceType]
	return ok
}

// Lookup resolves (resourceType, name) to its definition. The global _id
// parameter resolves for every supported resource type.
func (r *SearchParametersRegistry) Lookup(resourceType, name string) (SearchParamDef, bool) {
	params, ok := r.defs[resourceType]
	if !ok {
		return SearchParamDef{}, false
	}
	if name == "_id" {
		return SearchParamDef{Name: "_id", Type: SearchParamToken, Path: "id"}, true
	}
	def, ok := params[name]
	return def, ok
}

// Compile returns the field binding for a definition on a resource type.
func (r *SearchParametersRegistry) Compile(resourceType string, def SearchParamDef) CompiledSearchParam {
	return CompiledSearchParam{ResourceType: resourceType, Path: def.Path}
}

// ResourceTypes returns the supported resource types in sorted order.
func (r *SearchParametersRegistry) ResourceTypes() []string {
	types := make([]string, 0, len(r.defs))
	for rt := range r.defs {
		types = append(types, rt)
	}
	sort.Strings(types)
	return types
}

// Params returns the parameters of a resource type sorted by name.
func (r *SearchParametersRegistry) Params(resourceType string) []SearchParamDef {
	params := r.defs[resourceType]
	out := make([]SearchParamDef, 0, len(params))
	for _, def := range params {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DefaultSearchParameters returns the base FHIR R4 search parameters for the
// resource types the server indexes.
func DefaultSearchParameters() map[string]map[string]SearchParamDef {
	return map[string]map[string]SearchParamDef{
		"Patient": {
			"identifier": {Name: "identifier", Type: SearchParamToken, Path: "identifier"},
			"active":     {Name: "active", Type: SearchParamToken, Path: "active"},
			"gender":     {Name: "gender", Type: SearchParamToken, Path: "gender"},
			"telecom":    {Name: "telecom", Type: SearchParamToken, Path: "telecom"},
			"language":   {Name: "language", Type: SearchParamToken, Path: "communication.language"},
			"deceased":   {Name: "deceased", Type: SearchParamToken, Path: "deceasedBoolean"},
			"name":       {Name: "name", Type: SearchParamString, Path: "name"},
			"family":     {Name: "family", Type: SearchParamString, Path: "name.family"},
			"given":      {Name: "given", Type: SearchParamString, Path: "name.given"},
			"address":    {Name: "address", Type: SearchParamString, Path: "address"},
			"birthdate":  {Name: "birthdate", Type: SearchParamDate, Path: "birthDate"},
			"general-practitioner": {
				Name: "general-practitioner", Type: SearchParamReference, Path: "generalPractitioner",
				Targets: []string{"Practitioner", "Organization", "PractitionerRole"},
			},
		},
		"Practitioner": {
			"identifier": {Name: "identifier", Type: SearchParamToken, Path: "identifier"},
			"active":     {Name: "active", Type: SearchParamToken, Path: "active"},
			"gender":     {Name: "gender", Type: SearchParamToken, Path: "gender"},
			"telecom":    {Name: "telecom", Type: SearchParamToken, Path: "telecom"},
			"name":       {Name: "name", Type: SearchParamString, Path: "name"},
			"family":     {Name: "family", Type: SearchParamString, Path: "name.family"},
			"given":      {Name: "given", Type: SearchParamString, Path: "name.given"},
		},
		"Organization": {
			"identifier": {Name: "identifier", Type: SearchParamToken, Path: "identifier"},
			"active":     {Name: "active", Type: SearchParamToken, Path: "active"},
			"type":       {Name: "type", Type: SearchParamToken, Path: "type"},
			"name":       {Name: "name", Type: SearchParamString, Path: "name"},
		},
		"Observation": {
			"identifier":    {Name: "identifier", Type: SearchParamToken, Path: "identifier"},
			"status":        {Name: "status", Type: SearchParamToken, Path: "status"},
			"code":          {Name: "code", Type: SearchParamToken, Path: "code"},
			"category":      {Name: "category", Type: SearchParamToken, Path: "category"},
			"value-concept": {Name: "value-concept", Type: SearchParamToken, Path: "valueCodeableConcept"},
			"date":          {Name: "date", Type: SearchParamDate, Path: "effectiveDateTime"},
			"value-quantity": {
				Name: "value-quantity", Type: SearchParamQuantity, Path: "valueQuantity",
			},
			"subject": {
				Name: "subject", Type: SearchParamReference, Path: "subject",
				Targets: []string{"Patient", "Group", "Device", "Location"},
			},
			"patient": {
				Name: "patient", Type: SearchParamReference, Path: "subject",
				Targets: []string{"Patient"},
			},
		},
		"Condition": {
			"identifier":          {Name: "identifier", Type: SearchParamToken, Path: "identifier"},
			"code":                {Name: "code", Type: SearchParamToken, Path: "code"},
			"clinical-status":     {Name: "clinical-status", Type: SearchParamToken, Path: "clinicalStatus"},
			"verification-status": {Name: "verification-status", Type: SearchParamToken, Path: "verificationStatus"},
			"category":            {Name: "category", Type: SearchParamToken, Path: "category"},
			"severity":            {Name: "severity", Type: SearchParamToken, Path: "severity"},
			"subject": {
				Name: "subject", Type: SearchParamReference, Path: "subject",
				Targets: []string{"Patient", "Group"},
			},
			"patient": {
				Name: "patient", Type: SearchParamReference, Path: "subject",
				Targets: []string{"Patient"},
			},
		},
		"Encounter": {
			"identifier": {Name: "identifier", Type: SearchParamToken, Path: "identifier"},
			"status":     {Name: "status", Type: SearchParamToken, Path: "status"},
			"class":      {Name: "class", Type: SearchParamToken, Path: "class"},
			"type":       {Name: "type", Type: SearchParamToken, Path: "type"},
			"date":       {Name: "date", Type: SearchParamDate, Path: "period"},
			"subject": {
				Name: "subject", Type: SearchParamReference, Path: "subject",
				Targets: []string{"Patient", "Group"},
			},
			"patient": {
				Name: "patient", Type: SearchParamReference, Path: "subject",
				Targets: []string{"Patient"},
			},
		},
		"MedicationRequest": {
			"identifier": {Name: "identifier", Type: SearchParamToken, Path: "identifier"},
			"status":     {Name: "status", Type: SearchParamToken, Path: "status"},
			"intent":     {Name: "intent", Type: SearchParamToken, Path: "intent"},
			"code":       {Name: "code", Type: SearchParamToken, Path: "medicationCodeableConcept"},
			"authoredon": {Name: "authoredon", Type: SearchParamDate, Path: "authoredOn"},
			"subject": {
				Name: "subject", Type: SearchParamReference, Path: "subject",
				Targets: []string{"Patient", "Group"},
			},
			"patient": {
				Name: "patient", Type: SearchParamReference, Path: "subject",
				Targets: []string{"Patient"},
			},
		},
		"DiagnosticReport": {
			"identifier": {Name: "identifier", Type: SearchParamToken, Path: "identifier"},
			"status":     {Name: "status", Type: SearchParamToken, Path: "status"},
			"code":       {Name: "code", Type: SearchParamToken, Path: "code"},
			"category":   {Name: "category", Type: SearchParamToken, Path: "category"},
			"subject": {
				Name: "subject", Type: SearchParamReference, Path: "subject",
				Targets: []string{"Patient", "Group", "Device", "Location"},
			},
			"patient": {
				Name: "patient", Type: SearchParamReference, Path: "subject",
				Targets: []string{"Patient"},
			},
		},
		"Immunization": {
			"identifier":   {Name: "identifier", Type: SearchParamToken, Path: "identifier"},
			"status":       {Name: "status", Type: SearchParamToken, Path: "status"},
			"vaccine-code": {Name: "vaccine-code", Type: SearchParamToken, Path: "vaccineCode"},
			"patient": {
				Name: "patient", Type: SearchParamReference, Path: "patient",
				Targets: []string{"Patient"},
			},
		},
		"Procedure": {
			"identifier": {Name: "identifier", Type: SearchParamToken, Path: "identifier"},
			"status":     {Name: "status", Type: SearchParamToken, Path: "status"},
			"code":       {Name: "code", Type: SearchParamToken, Path: "code"},
			"category":   {Name: "category", Type: SearchParamToken, Path: "category"},
			"subject": {
				Name: "subject", Type: SearchParamReference, Path: "subject",
				Targets: []string{"Patient", "Group"},
			},
			"patient": {
				Name: "patient", Type: SearchParamReference, Path: "subject",
				Targets: []string{"Patient"},
			},
		},
		"AllergyIntolerance": {
			"identifier":          {Name: "identifier", Type: SearchParamToken, Path: "identifier"},
			"clinical-status":     {Name: "clinical-status", Type: SearchParamToken, Path: "clinicalStatus"},
			"verification-status": {Name: "verification-status", Type: SearchParamToken, Path: "verificationStatus"},
			"code":                {Name: "code", Type: SearchParamToken, Path: "code"},
			"category":            {Name: "category", Type: SearchParamToken, Path: "category"},
			"criticality":         {Name: "criticality", Type: SearchParamToken, Path: "criticality"},
			"type":                {Name: "type", Type: SearchParamToken, Path: "type"},
			"patient": {
				Name: "patient", Type: SearchParamReference, Path: "patient",
				Targets: []string{"Patient"},
			},
		},
		"ServiceRequest": {
			"identifier": {Name: "identifier", Type: SearchParamToken, Path: "identifier"},
			"status":     {Name: "status", Type: SearchParamToken, Path: "status"},
			"intent":     {Name: "intent", Type: SearchParamToken, Path: "intent"},
			"code":       {Name: "code", Type: SearchParamToken, Path: "code"},
			"category":   {Name: "category", Type: SearchParamToken, Path: "category"},
			"subject": {
				Name: "subject", Type: SearchParamReference, Path: "subject",
				Targets: []string{"Patient", "Group", "Device", "Location"},
			},
			"patient": {
				Name: "patient", Type: SearchParamReference, Path: "subject",
				Targets: []string{"Patient"},
			},
		},
		"DocumentReference": {
			"identifier": {Name: "identifier", Type: SearchParamToken, Path: "identifier"},
			"status":     {Name: "status", Type: SearchParamToken, Path: "status"},
			"type":       {Name: "type", Type: SearchParamToken, Path: "type"},
			"category":   {Name: "category", Type: SearchParamToken, Path: "category"},
			"date":       {Name: "date", Type: SearchParamDate, Path: "date"},
			"subject": {
				Name: "subject", Type: SearchParamReference, Path: "subject",
				Targets: []string{"Patient", "Group", "Device", "Practitioner"},
			},
			"patient": {
				Name: "patient", Type: SearchParamReference, Path: "subject",
				Targets: []string{"Patient"},
			},
		},
		"Questionnaire": {
			"identifier": {Name: "identifier", Type: SearchParamToken, Path: "identifier"},
			"status":     {Name: "status", Type: SearchParamToken, Path: "status"},
			"title":      {Name: "title", Type: SearchParamString, Path: "title"},
			"url":        {Name: "url", Type: SearchParamURI, Path: "url"},
			"date":       {Name: "date", Type: SearchParamDate, Path: "date"},
		},
		"RiskAssessment": {
			"identifier":  {Name: "identifier", Type: SearchParamToken, Path: "identifier"},
			"status":      {Name: "status", Type: SearchParamToken, Path: "status"},
			"probability": {Name: "probability", Type: SearchParamNumber, Path: "prediction.probabilityDecimal"},
			"risk":        {Name: "risk", Type: SearchParamToken, Path: "prediction.qualitativeRisk"},
			"subject": {
				Name: "subject", Type: SearchParamReference, Path: "subject",
				Targets: []string{"Patient", "Group"},
			},
			"patient": {
				Name: "patient", Type: SearchParamReference, Path: "subject",
				Targets: []string{"Patient"},
			},
		},
	}
}
