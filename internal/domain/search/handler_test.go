package search

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ResMedOSS/fhir-works-on-aws-search-es/internal/platform/fhir"
)

var errTest = errors.New("connection refused")

func newTestHandler(repo Repository) (*Handler, *echo.Echo) {
	registry := fhir.NewSearchParametersRegistry(fhir.DefaultSearchParameters())
	types := fhir.NewTypeMapService(fhir.DefaultTypeMap())
	svc := NewService(repo, registry, types, true)
	h := NewHandler(svc, registry, fhir.CapabilityConfig{
		ServerName:    "test-server",
		ServerVersion: "0.0.1",
		BaseURL:       "https://example.com",
	})
	return h, echo.New()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestSearchHandler_Success(t *testing.T) {
	repo := &mockSearchRepo{results: []*Result{
		{Resources: []map[string]interface{}{patientDoc("p1")}, Total: 1},
	}}
	h, e := newTestHandler(repo)

	req := httptest.NewRequest(http.MethodGet, "/fhir/Patient?gender=male", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("resourceType")
	c.SetParamValues("Patient")

	if err := h.Search(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != fhirJSONContentType {
		t.Errorf("expected %s, got %s", fhirJSONContentType, ct)
	}

	bundle := decodeBody(t, rec)
	if bundle["resourceType"] != "Bundle" || bundle["type"] != "searchset" {
		t.Errorf("expected searchset Bundle, got %v/%v", bundle["resourceType"], bundle["type"])
	}
	if bundle["total"] != float64(1) {
		t.Errorf("expected total 1, got %v", bundle["total"])
	}
}

func TestSearchHandler_SelfLinkUsesConfiguredBase(t *testing.T) {
	repo := &mockSearchRepo{results: []*Result{
		{Resources: []map[string]interface{}{patientDoc("p1")}, Total: 1},
	}}
	h, e := newTestHandler(repo)

	req := httptest.NewRequest(http.MethodGet, "/fhir/Patient", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("resourceType")
	c.SetParamValues("Patient")

	if err := h.Search(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bundle := decodeBody(t, rec)
	links := bundle["link"].([]interface{})
	self := links[0].(map[string]interface{})
	if url, _ := self["url"].(string); !strings.HasPrefix(url, "https://example.com/fhir/Patient?") {
		t.Errorf("expected self link on the configured base, got %q", url)
	}
}

func TestSearchHandler_InvalidParam(t *testing.T) {
	h, e := newTestHandler(&mockSearchRepo{})

	req := httptest.NewRequest(http.MethodGet, "/fhir/Patient?favorite-color=blue", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("resourceType")
	c.SetParamValues("Patient")

	if err := h.Search(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}

	outcome := decodeBody(t, rec)
	if outcome["resourceType"] != "OperationOutcome" {
		t.Errorf("expected OperationOutcome, got %v", outcome["resourceType"])
	}
	issue := outcome["issue"].([]interface{})[0].(map[string]interface{})
	if issue["code"] != "invalid" {
		t.Errorf("expected issue code invalid, got %v", issue["code"])
	}
}

func TestSearchHandler_UnsupportedResourceType(t *testing.T) {
	h, e := newTestHandler(&mockSearchRepo{})

	req := httptest.NewRequest(http.MethodGet, "/fhir/Widget", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("resourceType")
	c.SetParamValues("Widget")

	if err := h.Search(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestSearchHandler_EngineError(t *testing.T) {
	repo := &mockSearchRepo{err: errTest}
	h, e := newTestHandler(repo)

	req := httptest.NewRequest(http.MethodGet, "/fhir/Patient", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("resourceType")
	c.SetParamValues("Patient")

	if err := h.Search(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}

	outcome := decodeBody(t, rec)
	issue := outcome["issue"].([]interface{})[0].(map[string]interface{})
	if issue["code"] != "exception" {
		t.Errorf("expected issue code exception, got %v", issue["code"])
	}
	if diag, _ := issue["diagnostics"].(string); strings.Contains(diag, "connection refused") {
		t.Errorf("engine internals must not leak into the response: %q", diag)
	}
}

func TestSearchPost_MergesBodyAndQuery(t *testing.T) {
	repo := &mockSearchRepo{results: []*Result{
		{Resources: []map[string]interface{}{patientDoc("p1")}, Total: 1},
	}}
	h, e := newTestHandler(repo)

	req := httptest.NewRequest(http.MethodPost, "/fhir/Patient/_search?_count=5", strings.NewReader("gender=female"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("resourceType")
	c.SetParamValues("Patient")

	if err := h.SearchPost(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	body := repo.calls[0].body
	if body["size"] != 5 {
		t.Errorf("expected _count from the URL to apply, got size %v", body["size"])
	}
	if got := len(mustClauses(t, body)); got != 1 {
		t.Errorf("expected the form-body parameter to apply, got %d clauses", got)
	}
}

func TestMetadata(t *testing.T) {
	h, e := newTestHandler(&mockSearchRepo{})

	req := httptest.NewRequest(http.MethodGet, "/fhir/metadata", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Metadata(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != fhirJSONContentType {
		t.Errorf("expected %s, got %s", fhirJSONContentType, ct)
	}

	cs := decodeBody(t, rec)
	if cs["resourceType"] != "CapabilityStatement" {
		t.Errorf("expected CapabilityStatement, got %v", cs["resourceType"])
	}
	rest := cs["rest"].([]interface{})[0].(map[string]interface{})
	resources := rest["resource"].([]interface{})
	if len(resources) == 0 {
		t.Error("expected resource entries from the registry")
	}
}

func TestHealth(t *testing.T) {
	h, e := newTestHandler(&mockSearchRepo{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Health(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReady_Success(t *testing.T) {
	h, e := newTestHandler(&mockSearchRepo{})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Ready(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReady_EngineDown(t *testing.T) {
	h, e := newTestHandler(&mockSearchRepo{pingErr: errTest})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Ready(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["status"] != "unavailable" {
		t.Errorf("expected status unavailable, got %v", body["status"])
	}
}

func TestHandler_RegisterRoutes(t *testing.T) {
	h, e := newTestHandler(&mockSearchRepo{})
	h.RegisterRoutes(e)

	routePaths := make(map[string]bool)
	for _, r := range e.Routes() {
		routePaths[r.Method+":"+r.Path] = true
	}
	expected := []string{
		"GET:/healthz",
		"GET:/readyz",
		"GET:/fhir/metadata",
		"GET:/fhir/:resourceType",
		"POST:/fhir/:resourceType/_search",
	}
	for _, path := range expected {
		if !routePaths[path] {
			t.Errorf("missing route: %s", path)
		}
	}
}
