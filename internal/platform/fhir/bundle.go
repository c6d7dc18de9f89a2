package fhir

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Bundle is a FHIR Bundle resource. Search responses use type "searchset".
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Type         string        `json:"type"`
	Timestamp    string        `json:"timestamp,omitempty"`
	Total        *int          `json:"total,omitempty"`
	Link         []BundleLink  `json:"link,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
}

// BundleLink is a pagination or navigation link.
type BundleLink struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

// BundleEntry is a single entry in a Bundle.
type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
	Search   *BundleSearch   `json:"search,omitempty"`
}

// BundleSearch carries search-related entry metadata.
type BundleSearch struct {
	Mode  string   `json:"mode,omitempty"`
	Score *float64 `json:"score,omitempty"`
}

// SearchBundleParams collects everything needed to assemble a searchset
// Bundle: the request base URL, the original query string with _count and
// _offset stripped, the pagination window, and the engine's total hit count.
type SearchBundleParams struct {
	BaseURL  string
	QueryStr string
	Count    int
	Offset   int
	Total    int
}

// NewSearchBundle assembles a searchset Bundle from matched resources and
// any resources pulled in by _include or _revinclude. Matched entries get
// search mode "match", included entries "include". Total reflects matches
// only, as required for searchset Bundles.
func NewSearchBundle(matches, includes []map[string]interface{}, params SearchBundleParams) (*Bundle, error) {
	entries := make([]BundleEntry, 0, len(matches)+len(includes))

	for _, res := range matches {
		entry, err := newSearchEntry(res, "match")
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	for _, res := range includes {
		entry, err := newSearchEntry(res, "include")
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	total := params.Total
	return &Bundle{
		ResourceType: "Bundle",
		ID:           uuid.NewString(),
		Type:         "searchset",
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Total:        &total,
		Link:         buildPaginationLinks(params),
		Entry:        entries,
	}, nil
}

func newSearchEntry(res map[string]interface{}, mode string) (BundleEntry, error) {
	raw, err := json.Marshal(res)
	if err != nil {
		return BundleEntry{}, fmt.Errorf("marshal bundle entry: %w", err)
	}
	return BundleEntry{
		FullURL:  RelativeReference(res),
		Resource: raw,
		Search:   &BundleSearch{Mode: mode},
	}, nil
}

// buildPaginationLinks produces self, next and previous links. The next link
// appears only while more matches remain past the current window; previous
// appears whenever the window has a non-zero offset, clamped at zero.
func buildPaginationLinks(params SearchBundleParams) []BundleLink {
	links := []BundleLink{
		{Relation: "self", URL: pageURL(params, params.Offset)},
	}

	if params.Offset+params.Count < params.Total {
		links = append(links, BundleLink{Relation: "next", URL: pageURL(params, params.Offset+params.Count)})
	}

	if params.Offset > 0 {
		prev := params.Offset - params.Count
		if prev < 0 {
			prev = 0
		}
		links = append(links, BundleLink{Relation: "previous", URL: pageURL(params, prev)})
	}

	return links
}

func pageURL(params SearchBundleParams, offset int) string {
	return fmt.Sprintf("%s?%s_count=%d&_offset=%d", params.BaseURL, conditionalAmpersand(params.QueryStr), params.Count, offset)
}

func conditionalAmpersand(queryStr string) string {
	if queryStr == "" {
		return ""
	}
	return queryStr + "&"
}
