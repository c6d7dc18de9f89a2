package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ResMedOSS/fhir-works-on-aws-search-es/internal/platform/fhir"
)

// SMARTScope represents a parsed SMART on FHIR scope.
// Format: <context>/<resourceType>.<operation>
// Examples: patient/Patient.read, user/Observation.write, patient/*.read
type SMARTScope struct {
	Context      string // "patient", "user", or "system"
	ResourceType string // e.g. "Patient", "Observation", "*"
	Operation    string // "read", "write", or "*"
}

// ParseSMARTScope parses a SMART on FHIR scope string into its components.
// Valid formats:
//   - patient/Patient.read
//   - user/Observation.write
//   - patient/*.read
//   - user/*.*
//
// Returns an error for scopes that are not resource-level SMART scopes
// (e.g. "openid", "profile", "launch").
func ParseSMARTScope(scope string) (*SMARTScope, error) {
	slashIdx := strings.Index(scope, "/")
	if slashIdx < 0 {
		return nil, fmt.Errorf("not a resource scope: %s", scope)
	}

	ctx := scope[:slashIdx]
	remainder := scope[slashIdx+1:]

	if ctx != "patient" && ctx != "user" && ctx != "system" {
		return nil, fmt.Errorf("invalid scope context %q: must be patient, user, or system", ctx)
	}

	dotIdx := strings.LastIndex(remainder, ".")
	if dotIdx < 0 {
		return nil, fmt.Errorf("invalid scope format %q: missing operation", scope)
	}

	resourceType := remainder[:dotIdx]
	operation := remainder[dotIdx+1:]

	if resourceType == "" {
		return nil, fmt.Errorf("invalid scope %q: empty resource type", scope)
	}
	if operation != "read" && operation != "write" && operation != "*" {
		return nil, fmt.Errorf("invalid operation %q: must be read, write, or *", operation)
	}

	return &SMARTScope{
		Context:      ctx,
		ResourceType: resourceType,
		Operation:    operation,
	}, nil
}

// ParseSMARTScopes parses a list of scope strings, returning only the valid
// SMART resource scopes. Non-resource scopes (openid, profile, launch, etc.)
// are silently skipped.
func ParseSMARTScopes(scopes []string) []SMARTScope {
	var result []SMARTScope
	for _, s := range scopes {
		parsed, err := ParseSMARTScope(s)
		if err != nil {
			continue // skip non-resource scopes
		}
		result = append(result, *parsed)
	}
	return result
}

// ScopeAllows checks whether a list of SMART scopes grants access for the
// given resource type and operation.
func ScopeAllows(scopes []SMARTScope, resourceType, operation string) bool {
	for _, s := range scopes {
		if !resourceMatches(s.ResourceType, resourceType) {
			continue
		}
		if !operationMatches(s.Operation, operation) {
			continue
		}
		return true
	}
	return false
}

// resourceMatches checks if a granted resource type covers the requested one.
func resourceMatches(granted, requested string) bool {
	return granted == "*" || granted == requested
}

// operationMatches checks if a granted operation covers the requested one.
func operationMatches(granted, requested string) bool {
	return granted == "*" || granted == requested
}

// SearchScopeMiddleware enforces SMART on FHIR scopes on the FHIR route
// group. Every operation this server exposes is a search, so the required
// operation is always "read"; the resource type comes from the URL path.
//
// Scope format: "patient/<Resource>.read", "user/*.read", "system/*.*", etc.
//
// Bypass conditions:
//   - /fhir/metadata and /fhir/.well-known/* endpoints (always public)
//   - Users with the "admin" role
//   - Requests with no scopes in context (auth disabled or dev mode without
//     auth middleware)
func SearchScopeMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path

			if isScopeExemptPath(path) {
				return next(c)
			}

			ctx := c.Request().Context()

			roles := RolesFromContext(ctx)
			for _, r := range roles {
				if r == "admin" {
					return next(c)
				}
			}

			rawScopes := ScopesFromContext(ctx)
			if len(rawScopes) == 0 {
				return next(c)
			}

			resourceType := scopeResourceType(path)
			if resourceType == "" {
				return next(c)
			}

			smartScopes := ParseSMARTScopes(rawScopes)
			if ScopeAllows(smartScopes, resourceType, "read") {
				return next(c)
			}

			outcome := fhir.NewOperationOutcome(
				fhir.IssueSeverityError,
				fhir.IssueTypeForbidden,
				fmt.Sprintf("insufficient scope: required %s.read", resourceType),
			)
			return c.JSON(http.StatusForbidden, outcome)
		}
	}
}

// isScopeExemptPath returns true for FHIR paths that should not require
// scope authorization (discovery and capability endpoints).
func isScopeExemptPath(path string) bool {
	p := strings.TrimRight(path, "/")

	if p == "/fhir/metadata" {
		return true
	}
	if strings.HasPrefix(p, "/fhir/.well-known/") || p == "/fhir/.well-known" {
		return true
	}

	return false
}

// scopeResourceType extracts the FHIR resource type from a path like
// /fhir/Patient or /fhir/Patient/_search. Returns an empty string if the
// resource type cannot be determined.
func scopeResourceType(path string) string {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) < 2 || parts[0] != "fhir" {
		return ""
	}

	candidate := parts[1]
	if candidate == "" || strings.HasPrefix(candidate, "$") || strings.HasPrefix(candidate, ".") {
		return ""
	}
	if candidate == "metadata" {
		return ""
	}

	return candidate
}
