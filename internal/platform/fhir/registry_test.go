package fhir

import "testing"

func testRegistry() *SearchParametersRegistry {
	return NewSearchParametersRegistry(DefaultSearchParameters())
}

func TestRegistrySupports(t *testing.T) {
	registry := testRegistry()

	if !registry.Supports("Patient") {
		t.Error("Supports(Patient) = false, want true")
	}
	if registry.Supports("Starship") {
		t.Error("Supports(Starship) = true, want false")
	}
}

func TestRegistryLookup(t *testing.T) {
	registry := testRegistry()

	def, ok := registry.Lookup("Patient", "gender")
	if !ok {
		t.Fatal("Lookup(Patient, gender) not found")
	}
	if def.Type != SearchParamToken || def.Path != "gender" {
		t.Errorf("gender def = %+v, want token on gender", def)
	}

	if _, ok := registry.Lookup("Patient", "favorite-color"); ok {
		t.Error("Lookup(Patient, favorite-color) found, want miss")
	}
	if _, ok := registry.Lookup("Starship", "gender"); ok {
		t.Error("Lookup(Starship, gender) found, want miss")
	}
}

func TestRegistryLookupSynthesizesID(t *testing.T) {
	registry := testRegistry()

	def, ok := registry.Lookup("Patient", "_id")
	if !ok {
		t.Fatal("Lookup(Patient, _id) not found")
	}
	if def.Type != SearchParamToken || def.Path != "id" {
		t.Errorf("_id def = %+v, want token on id", def)
	}

	// _id only resolves for supported resource types.
	if _, ok := registry.Lookup("Starship", "_id"); ok {
		t.Error("Lookup(Starship, _id) found, want miss")
	}
}

func TestRegistryLookupRenamedPath(t *testing.T) {
	registry := testRegistry()

	def, ok := registry.Lookup("Patient", "language")
	if !ok {
		t.Fatal("Lookup(Patient, language) not found")
	}
	if def.Path != "communication.language" {
		t.Errorf("language path = %q, want communication.language", def.Path)
	}
}

func TestRegistryCompile(t *testing.T) {
	registry := testRegistry()

	def, _ := registry.Lookup("Patient", "deceased")
	field := registry.Compile("Patient", def)
	if field.ResourceType != "Patient" || field.Path != "deceasedBoolean" {
		t.Errorf("Compile = %+v, want Patient/deceasedBoolean", field)
	}
}

func TestRegistryResourceTypesSorted(t *testing.T) {
	registry := testRegistry()

	types := registry.ResourceTypes()
	if len(types) == 0 {
		t.Fatal("ResourceTypes returned nothing")
	}
	for i := 1; i < len(types); i++ {
		if types[i-1] >= types[i] {
			t.Fatalf("ResourceTypes not sorted: %q before %q", types[i-1], types[i])
		}
	}
}

func TestRegistryParamsSorted(t *testing.T) {
	registry := testRegistry()

	params := registry.Params("Patient")
	if len(params) == 0 {
		t.Fatal("Params(Patient) returned nothing")
	}
	for i := 1; i < len(params); i++ {
		if params[i-1].Name >= params[i].Name {
			t.Fatalf("Params not sorted: %q before %q", params[i-1].Name, params[i].Name)
		}
	}
}

func TestRegistryReferenceTargets(t *testing.T) {
	registry := testRegistry()

	def, ok := registry.Lookup("Observation", "patient")
	if !ok {
		t.Fatal("Lookup(Observation, patient) not found")
	}
	if def.Type != SearchParamReference || def.Path != "subject" {
		t.Errorf("patient def = %+v, want reference on subject", def)
	}
	if len(def.Targets) != 1 || def.Targets[0] != "Patient" {
		t.Errorf("patient targets = %v, want [Patient]", def.Targets)
	}
}

func TestSearchParamTypeString(t *testing.T) {
	tests := []struct {
		paramType SearchParamType
		want      string
	}{
		{SearchParamToken, "token"},
		{SearchParamDate, "date"},
		{SearchParamString, "string"},
		{SearchParamReference, "reference"},
		{SearchParamNumber, "number"},
		{SearchParamQuantity, "quantity"},
		{SearchParamURI, "uri"},
		{SearchParamType(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.paramType.String(); got != tt.want {
			t.Errorf("SearchParamType(%d).String() = %q, want %q", tt.paramType, got, tt.want)
		}
	}
}
