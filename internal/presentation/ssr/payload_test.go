package ssr

import (
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AtRiskMedia/spabook-go/internal/domain/query"
)

func okResult(key query.Key, data string) query.Ok {
	return query.Ok{Snapshot: query.Snapshot{Queries: []query.DehydratedQuery{{
		QueryKey: key,
		State:    query.QueryState{Status: query.StatusSuccess, Data: json.RawMessage(data)},
	}}}}
}

func TestBuildPayloadShape(t *testing.T) {
	payload, err := BuildPayload([]RouteResult{
		{ID: "root", Result: okResult(query.NewKey("auth", "status"), `{"authenticated":false}`)},
		{ID: "home", Result: query.NotApplicable{}},
	})
	require.NoError(t, err)

	require.Len(t, payload.Routes, 2)
	assert.JSONEq(t, `null`, string(payload.Routes[1].LoaderData))
	assert.Len(t, payload.DehydratedState.Queries, 1)

	var loader map[string]any
	require.NoError(t, json.Unmarshal(payload.Routes[0].LoaderData, &loader))
	assert.True(t, query.IsSnapshotShape(loader["dehydratedState"]))
}

func TestRouteResultsRoundTrip(t *testing.T) {
	payload, err := BuildPayload([]RouteResult{
		{ID: "root", Result: okResult(query.NewKey("a"), `1`)},
		{ID: "health", Result: okResult(query.NewKey("b"), `2`)},
	})
	require.NoError(t, err)

	encoded, err := payload.EncodeForScript()
	require.NoError(t, err)
	var decoded Payload
	require.NoError(t, json.Unmarshal(encoded, &decoded))

	results := decoded.RouteResults()
	require.Len(t, results, 2)
	merged := query.Merge(results[0].Result, results[1].Result)
	require.Len(t, merged.Queries, 2)
	assert.Equal(t, `["a"]`, merged.Queries[0].Hash())
	assert.Equal(t, `["b"]`, merged.Queries[1].Hash())
}

func TestRouteResultsIgnoreForeignLoaderData(t *testing.T) {
	payload := Payload{Routes: []RoutePayload{
		{ID: "a", LoaderData: json.RawMessage(`"just a string"`)},
		{ID: "b", LoaderData: json.RawMessage(`{"dehydratedState":{"mutations":[]}}`)},
		{ID: "c", LoaderData: json.RawMessage(`{"other":true}`)},
		{ID: "d", LoaderData: json.RawMessage(`null`)},
		{ID: "e"},
	}}

	for _, r := range payload.RouteResults() {
		assert.IsType(t, query.NotApplicable{}, r.Result, r.ID)
	}
}

func TestEncodeForScriptEscapesMarkup(t *testing.T) {
	payload, err := BuildPayload([]RouteResult{
		{ID: "root", Result: okResult(query.NewKey("x"), `{"note":"</script><script>alert(1)</script>&"}`)},
	})
	require.NoError(t, err)

	encoded, err := payload.EncodeForScript()
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(encoded), "</script"))
	assert.False(t, strings.Contains(string(encoded), "<"))

	var decoded Payload
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	q, ok := decoded.DehydratedState.Lookup(query.NewKey("x"))
	require.True(t, ok)
	assert.JSONEq(t, `{"note":"</script><script>alert(1)</script>&"}`, string(q.State.Data))
}
