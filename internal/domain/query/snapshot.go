package query

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
)

// Status is the lifecycle state of a cached query or mutation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusPending Status = "pending"
)

// QueryError is the serializable form of a failed fetch. It mirrors the
// backend's structured error payload.
type QueryError struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *QueryError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

// Structured is implemented by errors that carry their own serializable
// payload, such as backend error responses.
type Structured interface {
	QueryError() *QueryError
}

// NewQueryError converts any error into its serializable form.
func NewQueryError(err error) *QueryError {
	if err == nil {
		return nil
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return &QueryError{Message: qe.Message, Details: qe.Details}
	}
	var se Structured
	if errors.As(err, &se) {
		if payload := se.QueryError(); payload != nil {
			return payload
		}
	}
	return &QueryError{Message: err.Error()}
}

// QueryState is the dehydrated state of one query.
type QueryState struct {
	Status         Status          `json:"status"`
	Data           json.RawMessage `json:"data,omitempty"`
	Error          *QueryError     `json:"error,omitempty"`
	DataUpdatedAt  int64           `json:"dataUpdatedAt"`
	ErrorUpdatedAt int64           `json:"errorUpdatedAt,omitempty"`
}

// DehydratedQuery is one query entry of a snapshot.
type DehydratedQuery struct {
	QueryKey  Key        `json:"queryKey"`
	QueryHash string     `json:"queryHash"`
	State     QueryState `json:"state"`
}

// MutationState is the dehydrated state of one mutation.
type MutationState struct {
	Status      Status          `json:"status"`
	Variables   json.RawMessage `json:"variables,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	Error       *QueryError     `json:"error,omitempty"`
	SubmittedAt int64           `json:"submittedAt"`
}

// DehydratedMutation is one mutation entry of a snapshot.
type DehydratedMutation struct {
	MutationKey Key           `json:"mutationKey,omitempty"`
	State       MutationState `json:"state"`
}

// Snapshot is the dehydrated contents of a query cache at a point in time.
type Snapshot struct {
	Queries   []DehydratedQuery    `json:"queries"`
	Mutations []DehydratedMutation `json:"mutations"`
}

// Empty returns a snapshot with empty, non-nil lists.
func Empty() Snapshot {
	return Snapshot{
		Queries:   []DehydratedQuery{},
		Mutations: []DehydratedMutation{},
	}
}

// Normalize replaces nil lists with empty ones so the snapshot always encodes
// as {"queries":[],"mutations":[]}.
func (s Snapshot) Normalize() Snapshot {
	if s.Queries == nil {
		s.Queries = []DehydratedQuery{}
	}
	if s.Mutations == nil {
		s.Mutations = []DehydratedMutation{}
	}
	return s
}

// IsEmpty reports whether the snapshot carries no entries.
func (s Snapshot) IsEmpty() bool {
	return len(s.Queries) == 0 && len(s.Mutations) == 0
}

// Lookup returns the last entry for key, matching hydration's
// last-write-wins rule.
func (s Snapshot) Lookup(key Key) (DehydratedQuery, bool) {
	hash := key.Hash()
	for i := len(s.Queries) - 1; i >= 0; i-- {
		if s.Queries[i].Hash() == hash {
			return s.Queries[i], true
		}
	}
	return DehydratedQuery{}, false
}

// Hash returns the structural hash of the entry's key. The stored QueryHash
// is informational; payloads decoded from untyped data may omit or forge it.
func (q DehydratedQuery) Hash() string {
	return q.QueryKey.Hash()
}

// MergeSnapshots concatenates the queries and mutations of every snapshot in
// order. Duplicate keys are kept; resolving them is hydration's job.
func MergeSnapshots(snapshots ...Snapshot) Snapshot {
	merged := Empty()
	for _, s := range snapshots {
		merged.Queries = append(merged.Queries, s.Queries...)
		merged.Mutations = append(merged.Mutations, s.Mutations...)
	}
	return merged
}
