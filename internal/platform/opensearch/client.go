package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	opensearchgo "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	requestsigner "github.com/opensearch-project/opensearch-go/v2/signer/awsv2"
)

// Config holds the connection settings for the search engine.
type Config struct {
	// Endpoint is the engine URL, e.g. https://search-domain.eu-west-1.es.amazonaws.com.
	Endpoint string
	// AWSRegion enables SigV4 request signing when set.
	AWSRegion string
	// AWSService is the signing service name. Defaults to "es".
	AWSService string
	// Username and Password enable basic auth for self-managed clusters.
	Username string
	Password string
}

// Client wraps the engine connection and exposes the two operations the
// search service needs.
type Client struct {
	es *opensearchgo.Client
}

// StatusError is returned when the engine answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("engine returned status %d: %s", e.StatusCode, e.Message)
}

// NewClient connects to the engine and verifies it is reachable. With an AWS
// region configured, requests are signed SigV4 using the default credential
// chain; otherwise basic auth applies when a username is set.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	esCfg := opensearchgo.Config{
		Addresses: []string{cfg.Endpoint},
		Username:  cfg.Username,
		Password:  cfg.Password,
	}

	if cfg.AWSRegion != "" {
		service := cfg.AWSService
		if service == "" {
			service = "es"
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		signer, err := requestsigner.NewSignerWithService(awsCfg, service)
		if err != nil {
			return nil, fmt.Errorf("create request signer: %w", err)
		}
		esCfg.Signer = signer
	}

	es, err := opensearchgo.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("create engine client: %w", err)
	}

	client := &Client{es: es}
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping engine: %w", err)
	}

	return client, nil
}

// Ping checks engine reachability. Used at startup and by the readiness
// endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req := opensearchapi.PingRequest{}
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("ping request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return &StatusError{StatusCode: res.StatusCode, Message: res.Status()}
	}
	return nil
}

// SearchResult carries the parsed documents and the engine's total match
// count for one query.
type SearchResult struct {
	Hits  []map[string]interface{}
	Total int
}

// searchResponse mirrors the slice of the engine response envelope the
// service consumes.
type searchResponse struct {
	Hits struct {
		Total struct {
			Value    int    `json:"value"`
			Relation string `json:"relation"`
		} `json:"total"`
		Hits []struct {
			ID     string                 `json:"_id"`
			Source map[string]interface{} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search executes a query against one index and returns the matching source
// documents with the total match count.
func (c *Client) Search(ctx context.Context, index string, body map[string]interface{}) (*SearchResult, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	req := opensearchapi.SearchRequest{
		Index: []string{index},
		Body:  bytes.NewReader(payload),
	}
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return nil, fmt.Errorf("search index %s: %w", index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg := res.Status()
		if detail, readErr := io.ReadAll(res.Body); readErr == nil && len(detail) > 0 {
			msg = string(detail)
		}
		return nil, fmt.Errorf("search index %s: %w", index, &StatusError{StatusCode: res.StatusCode, Message: msg})
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	result := &SearchResult{
		Hits:  make([]map[string]interface{}, 0, len(parsed.Hits.Hits)),
		Total: parsed.Hits.Total.Value,
	}
	for _, hit := range parsed.Hits.Hits {
		result.Hits = append(result.Hits, hit.Source)
	}
	return result, nil
}

// IndexForResourceType maps a FHIR resource type to its engine index. One
// index per resource type, named by the lowercased type.
func IndexForResourceType(resourceType string) string {
	return strings.ToLower(resourceType)
}
