package pagination

import (
	"net/url"
	"strconv"
)

const (
	DefaultCount = 20
	MaxCount     = 100
)

// Params holds the page window of a search request, mapped onto the engine's
// from/size pair.
type Params struct {
	Count  int
	Offset int
}

// FromValues extracts the page window from request values. _count caps the
// page size and _offset positions the window; _getpagesoffset is accepted as
// an alias for _offset. Missing or malformed values fall back to the first
// page at the default size.
func FromValues(values url.Values) Params {
	count, _ := strconv.Atoi(values.Get("_count"))
	if count <= 0 {
		count = DefaultCount
	}
	if count > MaxCount {
		count = MaxCount
	}

	offset, _ := strconv.Atoi(values.Get("_offset"))
	if offset <= 0 {
		offset, _ = strconv.Atoi(values.Get("_getpagesoffset"))
	}
	if offset < 0 {
		offset = 0
	}

	return Params{Count: count, Offset: offset}
}

// QueryString re-encodes the request values with the page window parameters
// stripped, so bundle links can append their own _count and _offset while
// preserving every search parameter. Encoding sorts keys, keeping links
// stable across requests.
func QueryString(values url.Values) string {
	rest := url.Values{}
	for name, vals := range values {
		switch name {
		case "_count", "_offset", "_getpagesoffset":
			continue
		}
		rest[name] = vals
	}
	return rest.Encode()
}
