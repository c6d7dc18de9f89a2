package search

import "context"

// Result is one page of engine hits: the source documents of the page and
// the total number of matches across all pages.
type Result struct {
	Resources []map[string]interface{}
	Total     int
}

type Repository interface {
	Search(ctx context.Context, resourceType string, body map[string]interface{}) (*Result, error)
	Ping(ctx context.Context) error
}
