package search

import (
	"context"

	"github.com/ResMedOSS/fhir-works-on-aws-search-es/internal/platform/opensearch"
)

// OpenSearchRepository executes queries against the per-resource-type indices
// of an OpenSearch cluster.
type OpenSearchRepository struct {
	client *opensearch.Client
}

func NewOpenSearchRepository(client *opensearch.Client) *OpenSearchRepository {
	return &OpenSearchRepository{client: client}
}

func (r *OpenSearchRepository) Search(ctx context.Context, resourceType string, body map[string]interface{}) (*Result, error) {
	res, err := r.client.Search(ctx, opensearch.IndexForResourceType(resourceType), body)
	if err != nil {
		return nil, err
	}
	return &Result{Resources: res.Hits, Total: res.Total}, nil
}

func (r *OpenSearchRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}
