package fhir

import (
	"sort"
	"testing"
)

func resourceEntryFor(t *testing.T, cs map[string]interface{}, resourceType string) map[string]interface{} {
	t.Helper()
	rest := cs["rest"].([]map[string]interface{})
	resources := rest[0]["resource"].([]map[string]interface{})
	for _, res := range resources {
		if res["type"] == resourceType {
			return res
		}
	}
	t.Fatalf("resource type %s not in capability statement", resourceType)
	return nil
}

func TestBuildCapabilityStatement(t *testing.T) {
	reg := testRegistry()
	cs := BuildCapabilityStatement(CapabilityConfig{
		ServerVersion: "1.2.3",
		BaseURL:       "http://localhost:8080/fhir",
	}, reg)

	if cs["resourceType"] != "CapabilityStatement" {
		t.Errorf("resourceType = %v", cs["resourceType"])
	}
	if cs["fhirVersion"] != "4.0.1" {
		t.Errorf("expected default fhirVersion 4.0.1, got %v", cs["fhirVersion"])
	}

	software := cs["software"].(map[string]string)
	if software["version"] != "1.2.3" {
		t.Errorf("software version = %q", software["version"])
	}
	if software["name"] != "FHIR Search Service" {
		t.Errorf("expected default server name, got %q", software["name"])
	}

	if _, ok := cs["publisher"]; ok {
		t.Error("publisher should be omitted when unset")
	}

	rest := cs["rest"].([]map[string]interface{})
	if len(rest) != 1 {
		t.Fatalf("expected one rest entry, got %d", len(rest))
	}
	if rest[0]["mode"] != "server" {
		t.Errorf("rest mode = %v", rest[0]["mode"])
	}

	resources := rest[0]["resource"].([]map[string]interface{})
	if len(resources) != len(reg.ResourceTypes()) {
		t.Errorf("expected %d resource entries, got %d", len(reg.ResourceTypes()), len(resources))
	}
	if resources[0]["type"] != "AllergyIntolerance" {
		t.Errorf("expected alphabetical resource order, first was %v", resources[0]["type"])
	}
}

func TestCapabilityResourceEntry(t *testing.T) {
	cs := BuildCapabilityStatement(CapabilityConfig{}, testRegistry())
	patient := resourceEntryFor(t, cs, "Patient")

	interactions := patient["interaction"].([]map[string]string)
	if len(interactions) != 1 || interactions[0]["code"] != "search-type" {
		t.Errorf("expected only search-type interaction, got %v", interactions)
	}

	params := patient["searchParam"].([]map[string]string)
	if params[0]["name"] != "_id" || params[0]["type"] != "token" {
		t.Errorf("expected _id token listed first, got %v", params[0])
	}

	byName := make(map[string]string, len(params))
	for _, p := range params {
		byName[p["name"]] = p["type"]
	}
	for name, typ := range map[string]string{
		"gender":               "token",
		"birthdate":            "date",
		"name":                 "string",
		"general-practitioner": "reference",
	} {
		if byName[name] != typ {
			t.Errorf("searchParam %s type = %q, want %q", name, byName[name], typ)
		}
	}

	includes := patient["searchInclude"].([]string)
	if len(includes) != 1 || includes[0] != "Patient:general-practitioner" {
		t.Errorf("searchInclude = %v", includes)
	}

	rev := patient["searchRevInclude"].([]string)
	if !sort.StringsAreSorted(rev) {
		t.Errorf("searchRevInclude not sorted: %v", rev)
	}
	revSet := make(map[string]bool, len(rev))
	for _, r := range rev {
		revSet[r] = true
	}
	for _, want := range []string{"Observation:patient", "Observation:subject", "Condition:subject"} {
		if !revSet[want] {
			t.Errorf("searchRevInclude missing %s: %v", want, rev)
		}
	}
}

func TestCapabilitySecurity(t *testing.T) {
	cs := BuildCapabilityStatement(CapabilityConfig{}, testRegistry())
	rest := cs["rest"].([]map[string]interface{})
	security := rest[0]["security"].(map[string]interface{})

	if security["cors"] != true {
		t.Error("expected cors true")
	}
	service := security["service"].([]map[string]interface{})
	coding := service[0]["coding"].([]map[string]string)
	if coding[0]["code"] != "SMART-on-FHIR" {
		t.Errorf("security service coding = %v", coding[0])
	}
	if _, ok := security["extension"]; ok {
		t.Error("oauth extension should be absent without configured endpoints")
	}
}

func TestCapabilitySecurityOAuthURIs(t *testing.T) {
	cs := BuildCapabilityStatement(CapabilityConfig{
		AuthorizeURL: "https://auth.example.com/authorize",
		TokenURL:     "https://auth.example.com/token",
	}, testRegistry())
	rest := cs["rest"].([]map[string]interface{})
	security := rest[0]["security"].(map[string]interface{})

	exts := security["extension"].([]map[string]interface{})
	if len(exts) != 1 {
		t.Fatalf("expected one oauth-uris extension, got %d", len(exts))
	}
	oauth := exts[0]["extension"].([]map[string]string)
	if len(oauth) != 2 {
		t.Fatalf("expected authorize and token entries, got %v", oauth)
	}
	if oauth[0]["url"] != "authorize" || oauth[0]["valueUri"] != "https://auth.example.com/authorize" {
		t.Errorf("authorize entry = %v", oauth[0])
	}
	if oauth[1]["url"] != "token" || oauth[1]["valueUri"] != "https://auth.example.com/token" {
		t.Errorf("token entry = %v", oauth[1])
	}
}
