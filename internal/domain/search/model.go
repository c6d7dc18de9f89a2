package search

import "net/url"

// Request is one search invocation against a resource type. Values carries
// the combined request parameters; for POST _search the form body is merged
// over the URL query before it reaches the service. BaseURL is the external
// URL of the searched type, used for bundle links.
type Request struct {
	ResourceType string
	Values       url.Values
	BaseURL      string
}
