package query

import (
	json "github.com/goccy/go-json"
)

// LoaderResult is what a route step hands back to the renderer. It is either
// Ok, carrying that step's dehydrated snapshot, or NotApplicable for steps
// that have no cache state to contribute.
type LoaderResult interface {
	loaderResult()
}

// Ok carries a dehydrated snapshot produced by one route step.
type Ok struct {
	Snapshot Snapshot
}

// NotApplicable marks a route step without cache state.
type NotApplicable struct{}

func (Ok) loaderResult()            {}
func (NotApplicable) loaderResult() {}

// SnapshotOf returns the snapshot carried by r, or an empty one.
func SnapshotOf(r LoaderResult) Snapshot {
	if ok, isOk := r.(Ok); isOk {
		return ok.Snapshot.Normalize()
	}
	return Empty()
}

// Merge concatenates the snapshots of results in route order. NotApplicable
// and nil results contribute nothing.
func Merge(results ...LoaderResult) Snapshot {
	snapshots := make([]Snapshot, 0, len(results))
	for _, r := range results {
		snapshots = append(snapshots, SnapshotOf(r))
	}
	return MergeSnapshots(snapshots...)
}

// IsSnapshotShape reports whether v, as produced by decoding untyped JSON,
// is an object whose "queries" and "mutations" members are both arrays.
func IsSnapshotShape(v any) bool {
	obj, ok := v.(map[string]any)
	if !ok {
		return false
	}
	queries, ok := obj["queries"].([]any)
	if !ok {
		return false
	}
	mutations, ok := obj["mutations"].([]any)
	if !ok {
		return false
	}
	for _, q := range queries {
		entry, ok := q.(map[string]any)
		if !ok {
			return false
		}
		if _, ok := entry["queryKey"].([]any); !ok {
			return false
		}
		if _, ok := entry["state"].(map[string]any); !ok {
			return false
		}
	}
	for _, m := range mutations {
		if _, ok := m.(map[string]any); !ok {
			return false
		}
	}
	return true
}

// FromLoaderData converts untyped loader data received over the wire into a
// LoaderResult. Anything that does not have the snapshot shape, or whose keys
// are not primitive, is NotApplicable.
func FromLoaderData(raw json.RawMessage) LoaderResult {
	if len(raw) == 0 {
		return NotApplicable{}
	}

	var probe any
	if err := json.Unmarshal(raw, &probe); err != nil {
		return NotApplicable{}
	}
	if !IsSnapshotShape(probe) {
		return NotApplicable{}
	}

	var snapshot Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return NotApplicable{}
	}
	for _, q := range snapshot.Queries {
		if err := q.QueryKey.Validate(); err != nil {
			return NotApplicable{}
		}
	}
	return Ok{Snapshot: snapshot.Normalize()}
}
