package fhir

import (
	"sort"
	"time"
)

// CapabilityConfig holds top-level server metadata for the CapabilityStatement.
type CapabilityConfig struct {
	ServerName    string
	ServerVersion string
	FHIRVersion   string
	Publisher     string
	Description   string
	BaseURL       string
	AuthorizeURL  string
	TokenURL      string
}

func (c CapabilityConfig) withDefaults() CapabilityConfig {
	if c.ServerName == "" {
		c.ServerName = "FHIR Search Service"
	}
	if c.FHIRVersion == "" {
		c.FHIRVersion = "4.0.1"
	}
	if c.Description == "" {
		c.Description = "FHIR R4 search API backed by OpenSearch"
	}
	return c
}

// BuildCapabilityStatement constructs the /metadata response as a map
// suitable for JSON serialization. The statement is derived from the search
// parameters registry, so it advertises exactly the resource types and
// parameters the query compiler accepts. Every resource supports only the
// search-type interaction.
func BuildCapabilityStatement(cfg CapabilityConfig, reg *SearchParametersRegistry) map[string]interface{} {
	cfg = cfg.withDefaults()

	types := reg.ResourceTypes()
	resources := make([]map[string]interface{}, 0, len(types))
	for _, rt := range types {
		resources = append(resources, buildResourceEntry(reg, rt))
	}

	rest := map[string]interface{}{
		"mode":     "server",
		"security": buildSecurity(cfg),
		"resource": resources,
	}

	cs := map[string]interface{}{
		"resourceType": "CapabilityStatement",
		"status":       "active",
		"date":         time.Now().UTC().Format("2006-01-02"),
		"kind":         "instance",
		"fhirVersion":  cfg.FHIRVersion,
		"format":       []string{"application/fhir+json", "json"},
		"software": map[string]string{
			"name":    cfg.ServerName,
			"version": cfg.ServerVersion,
		},
		"implementation": map[string]string{
			"description": cfg.Description,
			"url":         cfg.BaseURL,
		},
		"rest": []map[string]interface{}{rest},
	}

	if cfg.Publisher != "" {
		cs["publisher"] = cfg.Publisher
	}

	return cs
}

// buildResourceEntry constructs the capability entry for a single resource
// type. The _id parameter is listed first since the registry resolves it for
// every type; declared parameters follow in name order. Reference parameters
// double as _include targets, and searchRevInclude lists the parameters of
// other types that can point back at this one.
func buildResourceEntry(reg *SearchParametersRegistry, resourceType string) map[string]interface{} {
	params := reg.Params(resourceType)

	searchParams := make([]map[string]string, 0, len(params)+1)
	searchParams = append(searchParams, map[string]string{"name": "_id", "type": "token"})

	var includes []string
	for _, def := range params {
		searchParams = append(searchParams, map[string]string{
			"name": def.Name,
			"type": def.Type.String(),
		})
		if def.Type == SearchParamReference {
			includes = append(includes, resourceType+":"+def.Name)
		}
	}

	res := map[string]interface{}{
		"type":        resourceType,
		"interaction": []map[string]string{{"code": "search-type"}},
		"versioning":  "no-version",
		"searchParam": searchParams,
	}

	if len(includes) > 0 {
		res["searchInclude"] = includes
	}
	if rev := revIncludesFor(reg, resourceType); len(rev) > 0 {
		res["searchRevInclude"] = rev
	}

	return res
}

// revIncludesFor finds the reference parameters of other resource types whose
// declared targets cover the given type.
func revIncludesFor(reg *SearchParametersRegistry, resourceType string) []string {
	var rev []string
	for _, src := range reg.ResourceTypes() {
		if src == resourceType {
			continue
		}
		for _, def := range reg.Params(src) {
			if def.Type != SearchParamReference {
				continue
			}
			for _, target := range def.Targets {
				if target == resourceType {
					rev = append(rev, src+":"+def.Name)
					break
				}
			}
		}
	}
	sort.Strings(rev)
	return rev
}

// buildSecurity creates the SMART on FHIR security section. The oauth-uris
// extension is included only when the endpoints are configured.
func buildSecurity(cfg CapabilityConfig) map[string]interface{} {
	service := map[string]interface{}{
		"coding": []map[string]string{
			{
				"system":  "http://terminology.hl7.org/CodeSystem/restful-security-service",
				"code":    "SMART-on-FHIR",
				"display": "SMART on FHIR",
			},
		},
	}

	security := map[string]interface{}{
		"cors":        true,
		"service":     []map[string]interface{}{service},
		"description": "OAuth2 using SMART on FHIR profile (see http://docs.smarthealthit.org)",
	}

	if cfg.AuthorizeURL != "" || cfg.TokenURL != "" {
		oauthExtensions := make([]map[string]string, 0, 2)
		if cfg.AuthorizeURL != "" {
			oauthExtensions = append(oauthExtensions, map[string]string{
				"url":      "authorize",
				"valueUri": cfg.AuthorizeURL,
			})
		}
		if cfg.TokenURL != "" {
			oauthExtensions = append(oauthExtensions, map[string]string{
				"url":      "token",
				"valueUri": cfg.TokenURL,
			})
		}
		security["extension"] = []map[string]interface{}{
			{
				"url":       "http://fhir-registry.smarthealthit.org/StructureDefinition/oauth-uris",
				"extension": oauthExtensions,
			},
		}
	}

	return security
}
