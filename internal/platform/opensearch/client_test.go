package opensearch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// newFakeEngine starts an HTTP server that answers pings and serves the
// given search handler for everything else.
func newFakeEngine(t *testing.T, search http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		search(w, r)
	}))
}

func TestNewClientPingsEngine(t *testing.T) {
	pinged := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			pinged = true
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), Config{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client == nil {
		t.Fatal("expected non-nil client")
	}
	if !pinged {
		t.Error("expected constructor to ping the engine")
	}
}

func TestNewClientEngineDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewClient(context.Background(), Config{Endpoint: server.URL})
	if err == nil {
		t.Fatal("expected error when engine is unavailable")
	}
}

func TestSearch(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}

	server := newFakeEngine(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"took": 3,
			"hits": {
				"total": {"value": 5, "relation": "eq"},
				"hits": [
					{"_id": "p1", "_source": {"resourceType": "Patient", "id": "p1"}},
					{"_id": "p2", "_source": {"resourceType": "Patient", "id": "p2"}}
				]
			}
		}`)
	})
	defer server.Close()

	client, err := NewClient(context.Background(), Config{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"gender.keyword": "male"}},
				},
			},
		},
		"size": 20,
	}

	result, err := client.Search(context.Background(), "patient", query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(gotPath, "/patient/_search") {
		t.Errorf("expected request to /patient/_search, got %s", gotPath)
	}
	if gotBody["size"] != float64(20) {
		t.Errorf("expected size 20 in request body, got %v", gotBody["size"])
	}

	if result.Total != 5 {
		t.Errorf("expected total 5, got %d", result.Total)
	}
	if len(result.Hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(result.Hits))
	}
	if result.Hits[0]["id"] != "p1" {
		t.Errorf("expected first hit id p1, got %v", result.Hits[0]["id"])
	}
}

func TestSearchEmptyResult(t *testing.T) {
	server := newFakeEngine(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"took": 1, "hits": {"total": {"value": 0, "relation": "eq"}, "hits": []}}`)
	})
	defer server.Close()

	client, err := NewClient(context.Background(), Config{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := client.Search(context.Background(), "patient", map[string]interface{}{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 0 {
		t.Errorf("expected total 0, got %d", result.Total)
	}
	if len(result.Hits) != 0 {
		t.Errorf("expected no hits, got %d", len(result.Hits))
	}
}

func TestSearchEngineError(t *testing.T) {
	server := newFakeEngine(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error": {"type": "parsing_exception", "reason": "unknown field"}}`)
	})
	defer server.Close()

	client, err := NewClient(context.Background(), Config{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = client.Search(context.Background(), "patient", map[string]interface{}{})
	if err == nil {
		t.Fatal("expected error for engine failure")
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError in chain, got %v", err)
	}
	if statusErr.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", statusErr.StatusCode)
	}
	if !strings.Contains(statusErr.Message, "parsing_exception") {
		t.Errorf("expected engine detail in message, got %s", statusErr.Message)
	}
}

func TestIndexForResourceType(t *testing.T) {
	tests := []struct {
		resourceType string
		want         string
	}{
		{"Patient", "patient"},
		{"AllergyIntolerance", "allergyintolerance"},
		{"Observation", "observation"},
	}

	for _, tt := range tests {
		if got := IndexForResourceType(tt.resourceType); got != tt.want {
			t.Errorf("IndexForResourceType(%q) = %q, want %q", tt.resourceType, got, tt.want)
		}
	}
}
