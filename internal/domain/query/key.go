// Package query defines the serializable query-cache vocabulary shared by the
// server renderer and the client: keys, dehydrated entries, snapshots and the
// loader results that carry them between route steps.
package query

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// Key is an ordered list of primitive segments such as
// ["health", "server"]. Keys are compared structurally through Hash.
type Key []any

// NewKey builds a key from its segments.
func NewKey(segments ...any) Key {
	return Key(segments)
}

// Validate reports the first segment that is not a primitive.
func (k Key) Validate() error {
	if len(k) == 0 {
		return fmt.Errorf("query key is empty")
	}
	for i, seg := range k {
		switch seg.(type) {
		case nil, string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64, json.Number:
		default:
			return fmt.Errorf("query key segment %d has non-primitive type %T", i, seg)
		}
	}
	return nil
}

// Hash returns the canonical JSON encoding of the key. 1 and 1.0 hash the
// same, so keys survive a JSON round trip unchanged.
func (k Key) Hash() string {
	if k == nil {
		return "[]"
	}
	b, err := json.Marshal([]any(k))
	if err != nil {
		return fmt.Sprintf("%v", []any(k))
	}
	return string(b)
}

// Equal compares keys structurally.
func (k Key) Equal(other Key) bool {
	return k.Hash() == other.Hash()
}

func (k Key) String() string {
	return k.Hash()
}

// HasPrefix reports whether k starts with every segment of prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	return Key(k[:len(prefix)]).Equal(prefix)
}
