package fhir

import (
	"reflect"
	"testing"
)

func TestRelativeReference(t *testing.T) {
	tests := []struct {
		name string
		res  map[string]interface{}
		want string
	}{
		{"Complete", map[string]interface{}{"resourceType": "Patient", "id": "p1"}, "Patient/p1"},
		{"MissingID", map[string]interface{}{"resourceType": "Patient"}, ""},
		{"MissingType", map[string]interface{}{"id": "p1"}, ""},
		{"NonStringID", map[string]interface{}{"resourceType": "Patient", "id": 7.0}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RelativeReference(tt.res); got != tt.want {
				t.Errorf("RelativeReference(%v) = %q, want %q", tt.res, got, tt.want)
			}
		})
	}
}

func TestReferencesAt(t *testing.T) {
	tests := []struct {
		name string
		res  map[string]interface{}
		path string
		want []string
	}{
		{
			name: "SingleReference",
			res: map[string]interface{}{
				"subject": map[string]interface{}{"reference": "Patient/p1"},
			},
			path: "subject",
			want: []string{"Patient/p1"},
		},
		{
			name: "RepeatedReference",
			res: map[string]interface{}{
				"generalPractitioner": []interface{}{
					map[string]interface{}{"reference": "Practitioner/dr1"},
					map[string]interface{}{"reference": "Organization/org1"},
				},
			},
			path: "generalPractitioner",
			want: []string{"Practitioner/dr1", "Organization/org1"},
		},
		{
			name: "NestedPath",
			res: map[string]interface{}{
				"performer": []interface{}{
					map[string]interface{}{
						"actor": map[string]interface{}{"reference": "Practitioner/dr2"},
					},
				},
			},
			path: "performer.actor",
			want: []string{"Practitioner/dr2"},
		},
		{
			name: "MissingPath",
			res:  map[string]interface{}{"status": "final"},
			path: "subject",
			want: nil,
		},
		{
			name: "NonReferenceLeaf",
			res:  map[string]interface{}{"subject": "not a reference"},
			path: "subject",
			want: nil,
		},
		{
			name: "EmptyReferenceSkipped",
			res: map[string]interface{}{
				"subject": map[string]interface{}{"reference": ""},
			},
			path: "subject",
			want: nil,
		},
		{
			name: "DisplayOnlyReferenceSkipped",
			res: map[string]interface{}{
				"subject": map[string]interface{}{"display": "Jane Doe"},
			},
			path: "subject",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReferencesAt(tt.res, tt.path)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ReferencesAt(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestIncludeIDQuery(t *testing.T) {
	body := IncludeIDQuery([]string{"p1", "p2", "p3"})

	if body["from"] != 0 {
		t.Errorf("expected from 0, got %v", body["from"])
	}
	if body["size"] != 3 {
		t.Errorf("expected size to cover every id, got %v", body["size"])
	}

	want := map[string]interface{}{
		"terms": map[string]interface{}{
			"id": []string{"p1", "p2", "p3"},
		},
	}
	if !reflect.DeepEqual(body["query"], want) {
		t.Errorf("query = %v, want %v", body["query"], want)
	}
}

func TestRevIncludeQuery(t *testing.T) {
	refs := []string{"Patient/p1", "Patient/p2"}

	body := RevIncludeQuery("subject", refs, true, 1000)

	if body["size"] != 1000 {
		t.Errorf("expected size 1000, got %v", body["size"])
	}
	want := map[string]interface{}{
		"terms": map[string]interface{}{
			"subject.reference.keyword": refs,
		},
	}
	if !reflect.DeepEqual(body["query"], want) {
		t.Errorf("query = %v, want %v", body["query"], want)
	}
}

func TestRevIncludeQueryNoKeywordSuffix(t *testing.T) {
	body := RevIncludeQuery("subject", []string{"Patient/p1"}, false, 10)

	terms := body["query"].(map[string]interface{})["terms"].(map[string]interface{})
	if _, ok := terms["subject.reference"]; !ok {
		t.Errorf("expected field subject.reference without suffix, got %v", terms)
	}
}
