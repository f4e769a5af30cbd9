// Package ssr defines the state payload embedded in server-rendered pages and
// read back by the client on its first render.
package ssr

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/AtRiskMedia/spabook-go/internal/domain/query"
)

// ScriptID is the id of the <script> element carrying the payload.
const ScriptID = "__SPABOOK_STATE__"

// Payload is the page state handed to the client.
type Payload struct {
	Routes []RoutePayload `json:"routes"`
	// DehydratedState is the merge of every route's snapshot.
	DehydratedState query.Snapshot `json:"dehydratedState"`
}

// RoutePayload is one matched route's loader data. LoaderData is untyped on
// the wire: {"dehydratedState": snapshot} for routes that prefetched, null
// otherwise.
type RoutePayload struct {
	ID         string          `json:"id"`
	LoaderData json.RawMessage `json:"loaderData"`
}

type loaderData struct {
	DehydratedState query.Snapshot `json:"dehydratedState"`
}

// RouteResult pairs a route ID with its loader result.
type RouteResult struct {
	ID     string
	Result query.LoaderResult
}

// BuildPayload encodes loader results into a payload.
func BuildPayload(routes []RouteResult) (*Payload, error) {
	payload := &Payload{Routes: make([]RoutePayload, 0, len(routes))}
	results := make([]query.LoaderResult, 0, len(routes))

	for _, r := range routes {
		rp := RoutePayload{ID: r.ID, LoaderData: json.RawMessage("null")}
		if ok, isOk := r.Result.(query.Ok); isOk {
			raw, err := json.Marshal(loaderData{DehydratedState: ok.Snapshot.Normalize()})
			if err != nil {
				return nil, fmt.Errorf("failed to encode loader data for route %s: %w", r.ID, err)
			}
			rp.LoaderData = raw
		}
		payload.Routes = append(payload.Routes, rp)
		results = append(results, r.Result)
	}

	payload.DehydratedState = query.Merge(results...)
	return payload, nil
}

// RouteResults reads each route's loader data back into a LoaderResult.
// Loader data that is not an object with a snapshot-shaped dehydratedState
// member is NotApplicable.
func (p *Payload) RouteResults() []RouteResult {
	out := make([]RouteResult, 0, len(p.Routes))
	for _, r := range p.Routes {
		out = append(out, RouteResult{ID: r.ID, Result: fromLoaderData(r.LoaderData)})
	}
	return out
}

func fromLoaderData(raw json.RawMessage) query.LoaderResult {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return query.NotApplicable{}
	}
	return query.FromLoaderData(fields["dehydratedState"])
}

// EncodeForScript encodes the payload for inclusion inside a <script>
// element. Characters that could close the element or start markup are
// escaped; they can only occur inside JSON strings, where the escapes are
// equivalent.
func (p *Payload) EncodeForScript() ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode page payload: %w", err)
	}
	var buf bytes.Buffer
	buf.Grow(len(raw))
	for _, r := range string(raw) {
		switch r {
		case '<':
			buf.WriteString(`\u003c`)
		case '>':
			buf.WriteString(`\u003e`)
		case '&':
			buf.WriteString(`\u0026`)
		case '\u2028':
			buf.WriteString(`\u2028`)
		case '\u2029':
			buf.WriteString(`\u2029`)
		default:
			buf.WriteRune(r)
		}
	}
	return buf.Bytes(), nil
}
