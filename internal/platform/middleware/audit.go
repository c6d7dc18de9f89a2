package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ResMedOSS/fhir-works-on-aws-search-es/internal/platform/auth"
)

// AuditEntry captures one search API access: who queried what, from where,
// and how the request concluded.
type AuditEntry struct {
	UserID       string
	UserRoles    []string
	ResourceType string
	PatientID    string
	Action       string
	Query        string
	IPAddress    string
	UserAgent    string
	Path         string
	Method       string
	Timestamp    time.Time
	RequestID    string
	StatusCode   int
}

// AuditRecorder persists audit entries. Keeping the sink behind an interface
// lets tests capture entries in memory.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit returns middleware that records every /fhir/ access with the
// authenticated principal, the resource type and the query string. Searches
// over clinical resources are PHI access and must leave a trail even when
// the request fails.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path

			if !strings.HasPrefix(path, "/fhir/") {
				return next(c)
			}

			err := next(c)

			entry := AuditEntry{
				Timestamp:  time.Now().UTC(),
				Path:       path,
				Method:     req.Method,
				Query:      req.URL.RawQuery,
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				StatusCode: c.Response().Status,
			}

			ctx := req.Context()
			entry.UserID = auth.UserIDFromContext(ctx)
			entry.UserRoles = auth.RolesFromContext(ctx)

			if rid, ok := c.Get("request_id").(string); ok {
				entry.RequestID = rid
			}

			entry.Action = actionForRequest(req.Method, path)
			entry.ResourceType = extractResourceType(path)
			entry.PatientID = extractPatientID(c)

			if len(recorders) > 0 && recorders[0] != nil {
				if recErr := recorders[0].RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "phi_audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("resource_type", entry.ResourceType).
				Str("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("query", entry.Query).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("phi_access")

			return err
		}
	}
}

// actionForRequest classifies the access. Every resource route on this
// server is a search; metadata reads are the exception.
func actionForRequest(method, path string) string {
	if path == "/fhir/metadata" {
		return "read"
	}
	if method == http.MethodPost && strings.HasSuffix(path, "/_search") {
		return "search"
	}
	if method == http.MethodGet || method == http.MethodHead {
		return "search"
	}
	return "read"
}

// extractResourceType parses the resource type from /fhir/<Type> or
// /fhir/<Type>/_search.
func extractResourceType(path string) string {
	segments := strings.Split(strings.TrimPrefix(path, "/fhir/"), "/")
	if len(segments) > 0 && segments[0] != "" {
		return segments[0]
	}
	return "unknown"
}

// extractPatientID finds the patient a search is scoped to, when one is
// named via the patient or subject parameters.
func extractPatientID(c echo.Context) string {
	for _, name := range []string{"patient", "subject"} {
		if v := c.QueryParam(name); v != "" {
			return strings.TrimPrefix(v, "Patient/")
		}
	}
	return ""
}
