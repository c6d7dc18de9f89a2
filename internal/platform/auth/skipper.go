package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists URL paths that bypass authentication. These are
// infrastructure endpoints (health checks) and FHIR discovery endpoints
// that must be accessible without credentials.
var publicPaths = map[string]bool{
	"/healthz":                              true,
	"/readyz":                               true,
	"/fhir/metadata":                        true,
	"/fhir/.well-known/smart-configuration": true,
}

// AuthSkipper returns true for requests whose path should skip
// authentication. Pass this function as the Skipper on JWTConfig so that
// health-check and FHIR discovery endpoints remain accessible without a
// bearer token.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Request().URL.Path]
}

// IsPublicPath reports whether the given path is a public infrastructure
// endpoint that bypasses auth.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
