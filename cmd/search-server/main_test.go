package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ResMedOSS/fhir-works-on-aws-search-es/internal/config"
	"github.com/ResMedOSS/fhir-works-on-aws-search-es/internal/platform/opensearch"
)

// ---------------------------------------------------------------------------
// parseLogLevel tests
// ---------------------------------------------------------------------------

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// engineConfig tests
// ---------------------------------------------------------------------------

func TestEngineConfig_BasicAuth(t *testing.T) {
	cfg := &config.Config{
		OpenSearchEndpoint: "https://search.internal:9200",
		OpenSearchUsername: "svc",
		OpenSearchPassword: "secret",
		AWSService:         "es",
	}

	got := engineConfig(cfg)
	want := opensearch.Config{
		Endpoint:   "https://search.internal:9200",
		AWSService: "es",
		Username:   "svc",
		Password:   "secret",
	}
	if got != want {
		t.Errorf("engineConfig = %+v, want %+v", got, want)
	}
}

func TestEngineConfig_AWSMode(t *testing.T) {
	cfg := &config.Config{
		OpenSearchEndpoint: "https://search-domain.eu-west-1.es.amazonaws.com",
		AWSRegion:          "eu-west-1",
		AWSService:         "es",
	}

	got := engineConfig(cfg)
	if got.AWSRegion != "eu-west-1" {
		t.Errorf("AWSRegion = %q, want eu-west-1", got.AWSRegion)
	}
}

func TestEngineConfig_ExplicitModeDisablesSigning(t *testing.T) {
	cfg := &config.Config{
		OpenSearchEndpoint: "http://localhost:9200",
		OpenSearchAuthMode: "none",
		AWSRegion:          "eu-west-1",
	}

	got := engineConfig(cfg)
	if got.AWSRegion != "" {
		t.Errorf("AWSRegion = %q, want empty when auth mode is none", got.AWSRegion)
	}
}

// ---------------------------------------------------------------------------
// statusIssueType tests
// ---------------------------------------------------------------------------

func TestStatusIssueType(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{http.StatusBadRequest, "invalid"},
		{http.StatusUnauthorized, "login"},
		{http.StatusForbidden, "forbidden"},
		{http.StatusNotFound, "not-found"},
		{http.StatusMethodNotAllowed, "not-supported"},
		{http.StatusTooManyRequests, "throttled"},
		{http.StatusGatewayTimeout, "timeout"},
		{http.StatusInternalServerError, "exception"},
		{http.StatusBadGateway, "exception"},
	}

	for _, tt := range tests {
		if got := statusIssueType(tt.status); got != tt.want {
			t.Errorf("statusIssueType(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// fhirErrorHandler tests
// ---------------------------------------------------------------------------

func newErrorContext(method, target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestFHIRErrorHandler_NotFound(t *testing.T) {
	handle := fhirErrorHandler(zerolog.Nop())
	c, rec := newErrorContext(http.MethodGet, "/nope")

	handle(echo.NewHTTPError(http.StatusNotFound, "Not Found"), c)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, "application/fhir+json") {
		t.Errorf("Content-Type = %q, want application/fhir+json", ct)
	}

	var outcome map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if outcome["resourceType"] != "OperationOutcome" {
		t.Errorf("resourceType = %v, want OperationOutcome", outcome["resourceType"])
	}
	issues, ok := outcome["issue"].([]interface{})
	if !ok || len(issues) != 1 {
		t.Fatalf("expected one issue, got %v", outcome["issue"])
	}
	issue := issues[0].(map[string]interface{})
	if issue["code"] != "not-found" {
		t.Errorf("issue code = %v, want not-found", issue["code"])
	}
}

func TestFHIRErrorHandler_MasksInternalErrors(t *testing.T) {
	handle := fhirErrorHandler(zerolog.Nop())
	c, rec := newErrorContext(http.MethodGet, "/fhir/Patient")

	handle(errors.New("dial tcp 10.0.0.4:9200: connection refused"), c)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if body := rec.Body.String(); strings.Contains(body, "connection refused") {
		t.Errorf("response leaks internal error details: %s", body)
	}
}

func TestFHIRErrorHandler_CommittedResponseUntouched(t *testing.T) {
	handle := fhirErrorHandler(zerolog.Nop())
	c, rec := newErrorContext(http.MethodGet, "/fhir/Patient")

	c.Response().WriteHeader(http.StatusOK)
	handle(errors.New("late failure"), c)

	if rec.Code != http.StatusOK {
		t.Errorf("committed response was rewritten: %d", rec.Code)
	}
}
