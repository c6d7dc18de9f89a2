package search

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ResMedOSS/fhir-works-on-aws-search-es/internal/platform/fhir"
)

const fhirJSONContentType = "application/fhir+json"

type Handler struct {
	svc      *Service
	registry *fhir.SearchParametersRegistry
	capCfg   fhir.CapabilityConfig
}

func NewHandler(svc *Service, registry *fhir.SearchParametersRegistry, capCfg fhir.CapabilityConfig) *Handler {
	return &Handler{svc: svc, registry: registry, capCfg: capCfg}
}

// RegisterRoutes mounts the health probes on the root and the FHIR API under
// /fhir. Middleware passed here applies to the /fhir group only, so rate
// limits and scope checks never gate the probes.
func (h *Handler) RegisterRoutes(e *echo.Echo, fhirMiddleware ...echo.MiddlewareFunc) {
	e.GET("/healthz", h.Health)
	e.GET("/readyz", h.Ready)

	g := e.Group("/fhir", fhirMiddleware...)
	g.GET("/metadata", h.Metadata)
	g.GET("/:resourceType", h.Search)
	g.POST("/:resourceType/_search", h.SearchPost)
}

// Search serves GET search requests for one resource type.
func (h *Handler) Search(c echo.Context) error {
	return h.search(c, c.QueryParams())
}

// SearchPost serves POST _search requests. Parameters arrive form-encoded in
// the body and merge with any URL query parameters, per the FHIR http spec.
func (h *Handler) SearchPost(c echo.Context) error {
	values, err := c.FormParams()
	if err != nil {
		return fhirJSON(c, http.StatusBadRequest,
			fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeInvalid, "Malformed form body"))
	}
	return h.search(c, values)
}

func (h *Handler) search(c echo.Context, values url.Values) error {
	req := Request{
		ResourceType: c.Param("resourceType"),
		Values:       values,
		BaseURL:      h.requestBaseURL(c),
	}

	bundle, err := h.svc.Search(c.Request().Context(), req)
	if err != nil {
		status, outcome := fhir.OutcomeForError(err)
		return fhirJSON(c, status, outcome)
	}
	return fhirJSON(c, http.StatusOK, bundle)
}

// Metadata serves the server's CapabilityStatement, derived from the search
// parameter registry.
func (h *Handler) Metadata(c echo.Context) error {
	return fhirJSON(c, http.StatusOK, fhir.BuildCapabilityStatement(h.capCfg, h.registry))
}

// Health reports process liveness.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports whether the search engine is reachable.
func (h *Handler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.svc.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

// requestBaseURL rebuilds the external URL of the searched type for bundle
// links. A configured base takes precedence over the request's host, which
// may be an internal address behind a proxy.
func (h *Handler) requestBaseURL(c echo.Context) string {
	if h.capCfg.BaseURL != "" {
		return h.capCfg.BaseURL + "/fhir/" + c.Param("resourceType")
	}
	return c.Scheme() + "://" + c.Request().Host + "/fhir/" + c.Param("resourceType")
}

// fhirJSON writes a response with the FHIR media type. echo's JSON writer
// keeps a Content-Type that is already set.
func fhirJSON(c echo.Context, status int, v interface{}) error {
	c.Response().Header().Set(echo.HeaderContentType, fhirJSONContentType)
	return c.JSON(status, v)
}
