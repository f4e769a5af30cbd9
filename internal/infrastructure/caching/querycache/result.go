package querycache

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/AtRiskMedia/spabook-go/internal/domain/query"
)

// Result is a read of one query.
type Result struct {
	Key       query.Key
	Found     bool
	Status    query.Status
	Data      json.RawMessage
	Err       *query.QueryError
	UpdatedAt time.Time
	FromCache bool
}

// IsSuccess reports whether the read produced data.
func (r Result) IsSuccess() bool {
	return r.Found && r.Status == query.StatusSuccess
}

// IsError reports whether the read holds a recorded failure.
func (r Result) IsError() bool {
	return r.Found && r.Status == query.StatusError
}

// Decode unmarshals the result's data into v. Error results return their
// QueryError.
func (r Result) Decode(v any) error {
	switch {
	case !r.Found:
		return fmt.Errorf("query %s is not cached", r.Key)
	case r.Status == query.StatusError:
		if r.Err != nil {
			return r.Err
		}
		return fmt.Errorf("query %s failed", r.Key)
	case len(r.Data) == 0:
		return fmt.Errorf("query %s has no data", r.Key)
	}
	return json.Unmarshal(r.Data, v)
}

func resultFrom(e entry, fromCache bool) Result {
	r := Result{
		Key:       e.key,
		Found:     true,
		Status:    e.state.Status,
		Data:      e.state.Data,
		Err:       e.state.Error,
		FromCache: fromCache,
	}
	if e.state.Status == query.StatusError {
		r.UpdatedAt = time.UnixMilli(e.state.ErrorUpdatedAt)
	} else {
		r.UpdatedAt = time.UnixMilli(e.state.DataUpdatedAt)
	}
	return r
}
