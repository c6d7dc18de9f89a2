package fhir

import "testing"

func mustParseReference(t *testing.T, raw string) ReferenceSearchValue {
	t.Helper()
	value, err := ParseReferenceValue(raw)
	if err != nil {
		t.Fatalf("ParseReferenceValue(%q) unexpected error: %v", raw, err)
	}
	return value
}

func TestReferenceQueryTyped(t *testing.T) {
	field := CompiledSearchParam{ResourceType: "Patient", Path: "generalPractitioner"}

	got, err := ReferenceQuery(field, mustParseReference(t, "Practitioner/p1"), true, []string{"Practitioner", "Organization"}, "")
	if err != nil {
		t.Fatalf("ReferenceQuery unexpected error: %v", err)
	}
	want := `{"terms":{"generalPractitioner.reference.keyword":["Practitioner/p1"]}}`
	if asJSON(t, got) != want {
		t.Errorf("ReferenceQuery = %s, want %s", asJSON(t, got), want)
	}
}

func TestReferenceQueryBareIDExpandsTargets(t *testing.T) {
	field := CompiledSearchParam{ResourceType: "Patient", Path: "generalPractitioner"}

	got, err := ReferenceQuery(field, mustParseReference(t, "p1"), true, []string{"Practitioner", "Organization"}, "")
	if err != nil {
		t.Fatalf("ReferenceQuery unexpected error: %v", err)
	}
	want := `{"terms":{"generalPractitioner.reference.keyword":["Practitioner/p1","Organization/p1"]}}`
	if asJSON(t, got) != want {
		t.Errorf("ReferenceQuery = %s, want %s", asJSON(t, got), want)
	}
}

func TestReferenceQueryBareIDWithoutTargets(t *testing.T) {
	field := CompiledSearchParam{ResourceType: "Observation", Path: "subject"}

	got, err := ReferenceQuery(field, mustParseReference(t, "p1"), true, nil, "")
	if err != nil {
		t.Fatalf("ReferenceQuery unexpected error: %v", err)
	}
	want := `{"terms":{"subject.reference.keyword":["p1"]}}`
	if asJSON(t, got) != want {
		t.Errorf("ReferenceQuery = %s, want %s", asJSON(t, got), want)
	}
}

func TestReferenceQueryURLMatchesBothForms(t *testing.T) {
	field := CompiledSearchParam{ResourceType: "Observation", Path: "subject"}

	got, err := ReferenceQuery(field, mustParseReference(t, "https://example.org/fhir/Patient/123"), true, []string{"Patient"}, "")
	if err != nil {
		t.Fatalf("ReferenceQuery unexpected error: %v", err)
	}
	want := `{"terms":{"subject.reference.keyword":["https://example.org/fhir/Patient/123","Patient/123"]}}`
	if asJSON(t, got) != want {
		t.Errorf("ReferenceQuery = %s, want %s", asJSON(t, got), want)
	}
}

func TestReferenceQueryWithoutKeywordSubFields(t *testing.T) {
	field := CompiledSearchParam{ResourceType: "Observation", Path: "subject"}

	got, err := ReferenceQuery(field, mustParseReference(t, "Patient/123"), false, []string{"Patient"}, "")
	if err != nil {
		t.Fatalf("ReferenceQuery unexpected error: %v", err)
	}
	want := `{"terms":{"subject.reference":["Patient/123"]}}`
	if asJSON(t, got) != want {
		t.Errorf("ReferenceQuery = %s, want %s", asJSON(t, got), want)
	}
}

func TestReferenceQueryUnsupportedModifier(t *testing.T) {
	field := CompiledSearchParam{ResourceType: "Observation", Path: "subject"}

	_, err := ReferenceQuery(field, mustParseReference(t, "Patient/123"), true, nil, "identifier")
	if err == nil {
		t.Fatal("expected error for :identifier, got nil")
	}
	if err.Error() != "Unsupported reference search modifier: identifier" {
		t.Errorf("error message = %q, want %q", err.Error(), "Unsupported reference search modifier: identifier")
	}
}
