package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// SMARTConfiguration is the SMART on FHIR well-known discovery document, per
// the SMART App Launch framework.
type SMARTConfiguration struct {
	AuthorizationEndpoint         string   `json:"authorization_endpoint"`
	TokenEndpoint                 string   `json:"token_endpoint"`
	TokenEndpointAuthMethods      []string `json:"token_endpoint_auth_methods_supported"`
	GrantTypes                    []string `json:"grant_types_supported"`
	Scopes                        []string `json:"scopes_supported"`
	ResponseTypes                 []string `json:"response_types_supported"`
	Capabilities                  []string `json:"capabilities"`
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported"`
}

// SMARTConfigurationHandler serves the discovery document for the configured
// authorization server. A search-only server advertises read permissions and
// standalone launch.
func SMARTConfigurationHandler(authorizeURL, tokenURL string) echo.HandlerFunc {
	cfg := SMARTConfiguration{
		AuthorizationEndpoint:    authorizeURL,
		TokenEndpoint:            tokenURL,
		TokenEndpointAuthMethods: []string{"client_secret_basic", "client_secret_post"},
		GrantTypes:               []string{"authorization_code", "client_credentials"},
		Scopes: []string{
			"openid", "profile", "fhirUser",
			"patient/*.read", "user/*.read", "system/*.read",
		},
		ResponseTypes: []string{"code"},
		Capabilities: []string{
			"launch-standalone",
			"client-public", "client-confidential-symmetric",
			"context-standalone-patient",
			"permission-patient", "permission-user",
		},
		CodeChallengeMethodsSupported: []string{"S256"},
	}
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, cfg)
	}
}
