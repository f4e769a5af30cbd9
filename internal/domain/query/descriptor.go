package query

import (
	"context"
	"time"
)

// FetchFunc loads the data for one query. The returned value is stored as
// JSON; json.RawMessage and []byte values are stored as-is.
type FetchFunc func(ctx context.Context) (any, error)

// Descriptor pairs a query key with the function that loads it.
type Descriptor struct {
	Key   Key
	Fetch FetchFunc
	// StaleTime overrides the cache default for this query when non-zero.
	StaleTime time.Duration
}

// Keys returns the keys of descriptors in order.
func Keys(descriptors []Descriptor) []Key {
	keys := make([]Key, 0, len(descriptors))
	for _, d := range descriptors {
		keys = append(keys, d.Key)
	}
	return keys
}
