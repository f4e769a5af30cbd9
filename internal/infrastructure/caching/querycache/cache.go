// Package querycache provides the keyed query cache used on both sides of a
// page render: a request-scoped instance on the server that is prefetched and
// dehydrated, and a process-wide instance on the client that is hydrated from
// the embedded payload and then read synchronously.
package querycache

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/singleflight"

	"github.com/AtRiskMedia/spabook-go/internal/domain/query"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/observability/logging"
)

// Options configures a Cache.
type Options struct {
	// StaleTime is how long successful data is served by Fetch without
	// calling the fetcher again.
	StaleTime time.Duration
	// Concurrency bounds PrefetchAll. Zero or less means one goroutine per
	// descriptor.
	Concurrency int
	Logger      *logging.ChanneledLogger
	// Now is the clock used for update timestamps.
	Now func() time.Time
}

type entry struct {
	key   query.Key
	state query.QueryState
}

// Cache is safe for concurrent use.
type Cache struct {
	mu        sync.RWMutex
	entries   map[string]*entry
	order     []string
	mutations []query.DehydratedMutation

	opts  Options
	group singleflight.Group
}

// New creates an empty cache.
func New(opts Options) *Cache {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{
		entries: make(map[string]*entry),
		opts:    opts,
	}
}

// Prefetch runs the descriptor's fetcher and records the outcome. A failing
// or panicking fetcher produces an error-state entry; nothing is returned to
// the caller.
func (c *Cache) Prefetch(ctx context.Context, d query.Descriptor) {
	c.store(d.Key, c.run(ctx, d))
}

// PrefetchAll prefetches every descriptor concurrently and waits for all of
// them.
func (c *Cache) PrefetchAll(ctx context.Context, descriptors ...query.Descriptor) {
	if len(descriptors) == 0 {
		return
	}

	p := pool.New()
	if c.opts.Concurrency > 0 {
		p = p.WithMaxGoroutines(c.opts.Concurrency)
	}
	for _, d := range descriptors {
		d := d
		p.Go(func() {
			c.Prefetch(ctx, d)
		})
	}
	p.Wait()
}

// Dehydrate returns the cached queries for keys, in the order the keys are
// given. With no keys, every query is returned in insertion order together
// with the recorded mutations. Pending entries and unknown keys are skipped.
func (c *Cache) Dehydrate(keys ...query.Key) query.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := query.Empty()

	hashes := c.order
	if len(keys) > 0 {
		hashes = make([]string, 0, len(keys))
		for _, k := range keys {
			hashes = append(hashes, recordableKey(k).Hash())
		}
	}

	for _, hash := range hashes {
		e, ok := c.entries[hash]
		if !ok || e.state.Status == query.StatusPending {
			continue
		}
		snapshot.Queries = append(snapshot.Queries, query.DehydratedQuery{
			QueryKey:  e.key,
			QueryHash: hash,
			State:     e.state,
		})
	}
	if len(keys) == 0 {
		snapshot.Mutations = append(snapshot.Mutations, c.mutations...)
	}
	return snapshot
}

// DehydrateMutations returns a snapshot holding only the recorded mutations.
func (c *Cache) DehydrateMutations() query.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := query.Empty()
	snapshot.Mutations = append(snapshot.Mutations, c.mutations...)
	return snapshot
}

// Hydrate seeds the cache from a snapshot. When a snapshot lists a key more
// than once the last occurrence wins. An incoming entry never replaces one the
// cache updated more recently, so hydrating the same snapshot again leaves
// the cache unchanged even after the client has fetched newer data.
func (c *Cache) Hydrate(snapshot query.Snapshot) {
	latest := make(map[string]int, len(snapshot.Queries))
	for i, q := range snapshot.Queries {
		if err := q.QueryKey.Validate(); err != nil {
			c.logQuery().Warn("Skipping dehydrated query with invalid key", "error", err)
			continue
		}
		latest[q.QueryKey.Hash()] = i
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, q := range snapshot.Queries {
		hash := q.QueryKey.Hash()
		if j, ok := latest[hash]; !ok || j != i {
			continue
		}
		if e, ok := c.entries[hash]; ok && updatedAt(e.state) > updatedAt(q.State) {
			continue
		}
		c.putLocked(q.QueryKey, q.State)
	}

	for _, m := range snapshot.Mutations {
		c.upsertMutationLocked(m)
	}
}

// Get reads a query synchronously. Error entries report their original
// message through Result.Err.
func (c *Cache) Get(key query.Key) Result {
	e, ok := c.lookup(recordableKey(key).Hash())
	if !ok {
		return Result{Key: key, Status: query.StatusPending}
	}
	return resultFrom(e, true)
}

// Fetch is the read-through path: fresh successful data is served from the
// cache, anything else calls the fetcher. Concurrent fetches of the same key
// share one call.
func (c *Cache) Fetch(ctx context.Context, d query.Descriptor) Result {
	hash := recordableKey(d.Key).Hash()

	e, ok := c.lookup(hash)
	if ok && c.isFresh(e, d) {
		return resultFrom(e, true)
	}

	v, _, _ := c.group.Do(hash, func() (any, error) {
		state := c.run(ctx, d)
		c.store(d.Key, state)
		return resultFrom(entry{key: d.Key, state: state}, false), nil
	})
	return v.(Result)
}

// RecordMutation stores the outcome of a mutation so it is carried in the
// next dehydration.
func (c *Cache) RecordMutation(key query.Key, variables, data any, err error) {
	state := query.MutationState{
		Status:      query.StatusSuccess,
		SubmittedAt: c.opts.Now().UnixMilli(),
	}
	if raw, encErr := encode(variables); encErr == nil && variables != nil {
		state.Variables = raw
	}
	if err != nil {
		state.Status = query.StatusError
		state.Error = query.NewQueryError(err)
	} else if raw, encErr := encode(data); encErr == nil && data != nil {
		state.Data = raw
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.mutations = append(c.mutations, query.DehydratedMutation{MutationKey: key, State: state})
}

// Invalidate removes every query whose key starts with prefix and returns how
// many were removed.
func (c *Cache) Invalidate(prefix query.Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.order[:0]
	removed := 0
	for _, hash := range c.order {
		e := c.entries[hash]
		if e.key.HasPrefix(prefix) {
			delete(c.entries, hash)
			removed++
			continue
		}
		kept = append(kept, hash)
	}
	c.order = kept
	return removed
}

// Len returns the number of cached queries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) run(ctx context.Context, d query.Descriptor) (state query.QueryState) {
	now := c.opts.Now().UnixMilli()

	defer func() {
		if r := recover(); r != nil {
			c.logQuery().Error("Query fetcher panicked",
				"key", d.Key.String(), "panic", r, "stack", string(debug.Stack()))
			state = query.QueryState{
				Status:         query.StatusError,
				Error:          &query.QueryError{Message: fmt.Sprintf("query panicked: %v", r)},
				ErrorUpdatedAt: now,
			}
		}
	}()

	if err := d.Key.Validate(); err != nil {
		return errorState(err, now)
	}
	if d.Fetch == nil {
		return errorState(fmt.Errorf("no fetcher for query %s", d.Key), now)
	}

	v, err := d.Fetch(ctx)
	if err != nil {
		c.logQuery().Warn("Query fetch failed", "key", d.Key.String(), "error", err)
		return errorState(err, now)
	}

	data, err := encode(v)
	if err != nil {
		return errorState(fmt.Errorf("failed to encode query data: %w", err), now)
	}
	return query.QueryState{
		Status:        query.StatusSuccess,
		Data:          data,
		DataUpdatedAt: now,
	}
}

// store records state under key. A key that is not made of primitives is
// recorded under its primitive form so the failure still reaches the
// snapshot.
func (c *Cache) store(key query.Key, state query.QueryState) {
	if err := key.Validate(); err != nil {
		recordable := recordableKey(key)
		if recordable.Validate() != nil {
			c.logQuery().Error("Dropping query result with empty key", "error", err)
			return
		}
		c.logQuery().Warn("Caching query under primitive form of invalid key",
			"key", recordable.String(), "error", err)
		key = recordable
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(key, state)
}

// lookup copies the entry for hash while holding the read lock.
func (c *Cache) lookup(hash string) (entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[hash]
	if !ok {
		return entry{}, false
	}
	return *e, true
}

// putLocked replaces entries rather than mutating them; readers may still
// hold the previous pointer.
func (c *Cache) putLocked(key query.Key, state query.QueryState) {
	hash := key.Hash()
	if _, ok := c.entries[hash]; !ok {
		c.order = append(c.order, hash)
	}
	c.entries[hash] = &entry{key: key, state: state}
}

func (c *Cache) upsertMutationLocked(m query.DehydratedMutation) {
	for i := range c.mutations {
		existing := c.mutations[i]
		if existing.MutationKey.Equal(m.MutationKey) && existing.State.SubmittedAt == m.State.SubmittedAt {
			c.mutations[i] = m
			return
		}
	}
	c.mutations = append(c.mutations, m)
}

func (c *Cache) isFresh(e entry, d query.Descriptor) bool {
	if e.state.Status != query.StatusSuccess {
		return false
	}
	staleTime := c.opts.StaleTime
	if d.StaleTime > 0 {
		staleTime = d.StaleTime
	}
	if staleTime <= 0 {
		return false
	}
	age := c.opts.Now().Sub(time.UnixMilli(e.state.DataUpdatedAt))
	return age < staleTime
}

func (c *Cache) logQuery() logger {
	if c.opts.Logger == nil {
		return nopLogger{}
	}
	return c.opts.Logger.Query()
}

type logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func updatedAt(state query.QueryState) int64 {
	return max(state.DataUpdatedAt, state.ErrorUpdatedAt)
}

// recordableKey returns key unchanged when it is valid. Otherwise every
// non-primitive segment is replaced by its JSON text.
func recordableKey(key query.Key) query.Key {
	if key.Validate() == nil {
		return key
	}
	out := make(query.Key, len(key))
	for i, seg := range key {
		if query.NewKey(seg).Validate() == nil {
			out[i] = seg
			continue
		}
		b, err := json.Marshal(seg)
		if err != nil {
			out[i] = fmt.Sprintf("%v", seg)
			continue
		}
		out[i] = string(b)
	}
	return out
}

func errorState(err error, now int64) query.QueryState {
	return query.QueryState{
		Status:         query.StatusError,
		Error:          query.NewQueryError(err),
		ErrorUpdatedAt: now,
	}
}

func encode(v any) (json.RawMessage, error) {
	switch raw := v.(type) {
	case json.RawMessage:
		return raw, nil
	case []byte:
		return json.RawMessage(raw), nil
	}
	return json.Marshal(v)
}
