package querycache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/AtRiskMedia/spabook-go/internal/domain/query"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	serverKey   = query.NewKey("health", "server")
	databaseKey = query.NewKey("health", "database")
)

type healthPayload struct {
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func constant(v any) query.FetchFunc {
	return func(context.Context) (any, error) { return v, nil }
}

func failing(msg string) query.FetchFunc {
	return func(context.Context) (any, error) { return nil, errors.New(msg) }
}

func TestPrefetchAllRecordsSuccessAndError(t *testing.T) {
	cache := New(Options{Concurrency: 2})

	cache.PrefetchAll(context.Background(),
		query.Descriptor{Key: serverKey, Fetch: constant(healthPayload{Service: "ok", Timestamp: "T"})},
		query.Descriptor{Key: databaseKey, Fetch: failing("Database unavailable")},
	)

	snapshot := cache.Dehydrate(serverKey, databaseKey)
	require.Len(t, snapshot.Queries, 2)
	assert.Equal(t, query.StatusSuccess, snapshot.Queries[0].State.Status)
	assert.JSONEq(t, `{"service":"ok","timestamp":"T"}`, string(snapshot.Queries[0].State.Data))
	assert.Equal(t, query.StatusError, snapshot.Queries[1].State.Status)
	assert.Equal(t, "Database unavailable", snapshot.Queries[1].State.Error.Message)
}

func TestPrefetchRecoversPanics(t *testing.T) {
	cache := New(Options{})

	assert.NotPanics(t, func() {
		cache.PrefetchAll(context.Background(), query.Descriptor{
			Key:   serverKey,
			Fetch: func(context.Context) (any, error) { panic("kaboom") },
		})
	})

	result := cache.Get(serverKey)
	require.True(t, result.IsError())
	assert.Contains(t, result.Err.Message, "kaboom")
}

func TestPrefetchWithoutFetcherIsAnErrorEntry(t *testing.T) {
	cache := New(Options{})
	cache.Prefetch(context.Background(), query.Descriptor{Key: serverKey})
	assert.True(t, cache.Get(serverKey).IsError())
}

func TestInvalidKeyIsRecordedAsErrorEntry(t *testing.T) {
	cache := New(Options{})
	invalid := query.NewKey("x", []string{"nested"})
	cache.Prefetch(context.Background(), query.Descriptor{Key: invalid, Fetch: constant(1)})

	snapshot := cache.Dehydrate(invalid)
	require.Len(t, snapshot.Queries, 1)
	q := snapshot.Queries[0]
	require.NoError(t, q.QueryKey.Validate())
	assert.Equal(t, `["x","[\"nested\"]"]`, q.QueryHash)
	assert.Equal(t, query.StatusError, q.State.Status)
	assert.Contains(t, q.State.Error.Message, "non-primitive")
	assert.True(t, cache.Get(invalid).IsError())

	wire, err := json.Marshal(snapshot)
	require.NoError(t, err)
	assert.IsType(t, query.Ok{}, query.FromLoaderData(wire))
}

func TestEmptyKeyIsNeverCached(t *testing.T) {
	cache := New(Options{})
	cache.Prefetch(context.Background(), query.Descriptor{Key: query.NewKey(), Fetch: constant(1)})
	assert.Zero(t, cache.Len())
}

func TestDehydrateIsScopedToRequestedKeys(t *testing.T) {
	cache := New(Options{})
	ctx := context.Background()
	cache.Prefetch(ctx, query.Descriptor{Key: query.NewKey("auth", "status"), Fetch: constant(true)})
	cache.Prefetch(ctx, query.Descriptor{Key: serverKey, Fetch: constant("ok")})

	scoped := cache.Dehydrate(serverKey, query.NewKey("unknown"))
	require.Len(t, scoped.Queries, 1)
	assert.Equal(t, serverKey.Hash(), scoped.Queries[0].QueryHash)

	all := cache.Dehydrate()
	got := []string{all.Queries[0].QueryHash, all.Queries[1].QueryHash}
	assert.Equal(t, []string{`["auth","status"]`, `["health","server"]`}, got)
}

func TestHydratedSuccessIsReadSynchronously(t *testing.T) {
	server := New(Options{})
	server.Prefetch(context.Background(), query.Descriptor{
		Key:   serverKey,
		Fetch: constant(healthPayload{Service: "ok", Timestamp: "T"}),
	})

	wire, err := json.Marshal(server.Dehydrate(serverKey))
	require.NoError(t, err)
	result := query.FromLoaderData(wire)

	var calls atomic.Int32
	client := New(Options{StaleTime: time.Minute})
	client.Hydrate(query.SnapshotOf(result))

	got := client.Get(query.NewKey("health", "server"))
	require.True(t, got.IsSuccess())
	assert.True(t, got.FromCache)

	var payload healthPayload
	require.NoError(t, got.Decode(&payload))
	assert.Equal(t, healthPayload{Service: "ok", Timestamp: "T"}, payload)

	fetched := client.Fetch(context.Background(), query.Descriptor{
		Key: serverKey,
		Fetch: func(context.Context) (any, error) {
			calls.Add(1)
			return nil, errors.New("network must not be used")
		},
	})
	assert.True(t, fetched.FromCache)
	assert.Zero(t, calls.Load())
}

func TestHydratedErrorSurfacesOriginalMessage(t *testing.T) {
	client := New(Options{StaleTime: time.Minute})
	client.Hydrate(query.Snapshot{Queries: []query.DehydratedQuery{{
		QueryKey: databaseKey,
		State: query.QueryState{
			Status:         query.StatusError,
			Error:          &query.QueryError{Message: "Database unavailable", Details: "dial tcp: refused"},
			ErrorUpdatedAt: 10,
		},
	}}})

	result := client.Get(databaseKey)
	require.True(t, result.IsError())
	assert.False(t, result.IsSuccess())
	assert.Equal(t, "Database unavailable", result.Err.Message)

	err := result.Decode(&struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Database unavailable")
}

func TestHydratedErrorIsRefetchedByFetch(t *testing.T) {
	client := New(Options{StaleTime: time.Minute})
	client.Hydrate(query.Snapshot{Queries: []query.DehydratedQuery{{
		QueryKey: databaseKey,
		State:    query.QueryState{Status: query.StatusError, Error: &query.QueryError{Message: "down"}},
	}}})

	result := client.Fetch(context.Background(), query.Descriptor{Key: databaseKey, Fetch: constant(map[string]string{"database": "ok"})})
	require.True(t, result.IsSuccess())
	assert.False(t, result.FromCache)
	assert.True(t, client.Get(databaseKey).IsSuccess())
}

func TestHydrateTwiceEqualsHydrateOnce(t *testing.T) {
	snapshot := query.Snapshot{
		Queries: []query.DehydratedQuery{
			{QueryKey: serverKey, State: query.QueryState{Status: query.StatusSuccess, Data: json.RawMessage(`{"service":"ok"}`), DataUpdatedAt: 1}},
			{QueryKey: databaseKey, State: query.QueryState{Status: query.StatusError, Error: &query.QueryError{Message: "down"}}},
			{QueryKey: serverKey, State: query.QueryState{Status: query.StatusSuccess, Data: json.RawMessage(`{"service":"degraded"}`), DataUpdatedAt: 2}},
		},
		Mutations: []query.DehydratedMutation{
			{MutationKey: query.NewKey("auth", "signin"), State: query.MutationState{Status: query.StatusError, SubmittedAt: 3}},
		},
	}

	once := New(Options{})
	once.Hydrate(snapshot)

	twice := New(Options{})
	twice.Hydrate(snapshot)
	twice.Hydrate(snapshot)

	if diff := cmp.Diff(once.Dehydrate(), twice.Dehydrate()); diff != "" {
		t.Fatalf("second hydration changed the cache (-once +twice):\n%s", diff)
	}
	assert.Equal(t, 2, twice.Len())
}

func TestRehydrateKeepsNewerClientData(t *testing.T) {
	clock := time.UnixMilli(1_000)
	client := New(Options{StaleTime: time.Second, Now: func() time.Time { return clock }})

	snapshot := query.Snapshot{Queries: []query.DehydratedQuery{{
		QueryKey: serverKey,
		State:    query.QueryState{Status: query.StatusSuccess, Data: json.RawMessage(`"server-old"`), DataUpdatedAt: 1_000},
	}}}
	client.Hydrate(snapshot)

	clock = time.UnixMilli(5_000)
	fetched := client.Fetch(context.Background(), query.Descriptor{Key: serverKey, Fetch: constant("client-new")})
	require.False(t, fetched.FromCache)

	client.Hydrate(snapshot)

	got := client.Get(serverKey)
	assert.JSONEq(t, `"client-new"`, string(got.Data))
	assert.Equal(t, time.UnixMilli(5_000), got.UpdatedAt)

	newer := query.Snapshot{Queries: []query.DehydratedQuery{{
		QueryKey: serverKey,
		State:    query.QueryState{Status: query.StatusSuccess, Data: json.RawMessage(`"server-new"`), DataUpdatedAt: 9_000},
	}}}
	client.Hydrate(newer)
	assert.JSONEq(t, `"server-new"`, string(client.Get(serverKey).Data))
}

func TestConcurrentHydrateAndReads(t *testing.T) {
	cache := New(Options{StaleTime: time.Hour})
	snapshot := query.Snapshot{Queries: []query.DehydratedQuery{
		{QueryKey: serverKey, State: query.QueryState{Status: query.StatusSuccess, Data: json.RawMessage(`"ok"`), DataUpdatedAt: 1}},
		{QueryKey: databaseKey, State: query.QueryState{Status: query.StatusError, Error: &query.QueryError{Message: "down"}, ErrorUpdatedAt: 1}},
	}}
	cache.Hydrate(snapshot)

	const rounds = 2000
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			cache.Hydrate(snapshot)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			assert.True(t, cache.Get(serverKey).IsSuccess())
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			r := cache.Fetch(context.Background(), query.Descriptor{Key: databaseKey, Fetch: failing("down")})
			assert.True(t, r.IsError())
		}
	}()
	wg.Wait()
}

func TestHydrateDuplicateKeysLastWriteWins(t *testing.T) {
	success := func(v string) query.DehydratedQuery {
		return query.DehydratedQuery{QueryKey: serverKey, State: query.QueryState{Status: query.StatusSuccess, Data: json.RawMessage(v)}}
	}
	failure := func(msg string) query.DehydratedQuery {
		return query.DehydratedQuery{QueryKey: serverKey, State: query.QueryState{Status: query.StatusError, Error: &query.QueryError{Message: msg}}}
	}

	cases := []struct {
		name       string
		entries    []query.DehydratedQuery
		wantStatus query.Status
		wantData   string
		wantErr    string
	}{
		{name: "success then success", entries: []query.DehydratedQuery{success(`1`), success(`2`)}, wantStatus: query.StatusSuccess, wantData: `2`},
		{name: "error then success", entries: []query.DehydratedQuery{failure("x"), success(`2`)}, wantStatus: query.StatusSuccess, wantData: `2`},
		{name: "success then error", entries: []query.DehydratedQuery{success(`1`), failure("late")}, wantStatus: query.StatusError, wantErr: "late"},
		{name: "three copies", entries: []query.DehydratedQuery{success(`1`), failure("x"), success(`3`)}, wantStatus: query.StatusSuccess, wantData: `3`},
		{
			name: "equal keys with different numeric spelling",
			entries: []query.DehydratedQuery{
				{QueryKey: query.NewKey("page", 1), State: query.QueryState{Status: query.StatusSuccess, Data: json.RawMessage(`"int"`)}},
				{QueryKey: query.NewKey("page", 1.0), State: query.QueryState{Status: query.StatusSuccess, Data: json.RawMessage(`"float"`)}},
			},
			wantStatus: query.StatusSuccess,
			wantData:   `"float"`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cache := New(Options{})
			for _, split := range []bool{false, true} {
				if split {
					// Split across route snapshots and merged, as a page payload would be.
					cache = New(Options{})
					results := make([]query.LoaderResult, 0, len(tc.entries))
					for _, e := range tc.entries {
						results = append(results, query.Ok{Snapshot: query.Snapshot{Queries: []query.DehydratedQuery{e}}})
					}
					cache.Hydrate(query.Merge(results...))
				} else {
					cache.Hydrate(query.Snapshot{Queries: tc.entries})
				}

				require.Equal(t, 1, cache.Len())
				got := cache.Get(tc.entries[0].QueryKey)
				assert.Equal(t, tc.wantStatus, got.Status)
				if tc.wantData != "" {
					assert.JSONEq(t, tc.wantData, string(got.Data))
				}
				if tc.wantErr != "" {
					assert.Equal(t, tc.wantErr, got.Err.Message)
				}
			}
		})
	}
}

func TestGetMissingKey(t *testing.T) {
	result := New(Options{}).Get(serverKey)
	assert.False(t, result.Found)
	assert.Error(t, result.Decode(&struct{}{}))
}

func TestFetchServesFreshDataAndRefetchesStale(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := now
	cache := New(Options{StaleTime: time.Minute, Now: func() time.Time { return clock }})

	var calls atomic.Int32
	d := query.Descriptor{Key: serverKey, Fetch: func(context.Context) (any, error) {
		return calls.Add(1), nil
	}}

	first := cache.Fetch(context.Background(), d)
	assert.False(t, first.FromCache)
	second := cache.Fetch(context.Background(), d)
	assert.True(t, second.FromCache)
	assert.Equal(t, int32(1), calls.Load())

	clock = now.Add(2 * time.Minute)
	third := cache.Fetch(context.Background(), d)
	assert.False(t, third.FromCache)
	assert.Equal(t, int32(2), calls.Load())
	assert.JSONEq(t, `2`, string(third.Data))
}

func TestConcurrentFetchesShareOneCall(t *testing.T) {
	cache := New(Options{StaleTime: time.Minute})
	release := make(chan struct{})
	started := make(chan struct{})
	var calls atomic.Int32
	var once sync.Once

	d := query.Descriptor{Key: serverKey, Fetch: func(context.Context) (any, error) {
		calls.Add(1)
		once.Do(func() { close(started) })
		<-release
		return "ok", nil
	}}

	var wg sync.WaitGroup
	results := make([]Result, 5)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = cache.Fetch(context.Background(), d)
	}()
	<-started
	for i := 1; i < len(results); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = cache.Fetch(context.Background(), d)
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.True(t, r.IsSuccess())
	}
}

func TestInvalidateByPrefix(t *testing.T) {
	cache := New(Options{})
	cache.PrefetchAll(context.Background(),
		query.Descriptor{Key: serverKey, Fetch: constant("ok")},
		query.Descriptor{Key: databaseKey, Fetch: constant("ok")},
		query.Descriptor{Key: query.NewKey("auth", "status"), Fetch: constant(true)},
	)

	assert.Equal(t, 2, cache.Invalidate(query.NewKey("health")))
	assert.Equal(t, 1, cache.Len())
	assert.True(t, cache.Get(query.NewKey("auth", "status")).IsSuccess())
}

func TestRecordMutationIsDehydrated(t *testing.T) {
	cache := New(Options{Now: fixedClock(time.UnixMilli(42))})
	cache.RecordMutation(query.NewKey("auth", "signin"), map[string]string{"email": "a@b.c"}, nil, errors.New("Invalid credentials"))

	assert.Empty(t, cache.Dehydrate(query.NewKey("auth", "status")).Mutations)

	snapshot := cache.DehydrateMutations()
	require.Len(t, snapshot.Mutations, 1)
	require.Len(t, cache.Dehydrate().Mutations, 1)
	m := snapshot.Mutations[0]
	assert.Equal(t, query.StatusError, m.State.Status)
	assert.Equal(t, "Invalid credentials", m.State.Error.Message)
	assert.Equal(t, int64(42), m.State.SubmittedAt)
	assert.JSONEq(t, `{"email":"a@b.c"}`, string(m.State.Variables))
}
