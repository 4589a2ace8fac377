package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/pscheid92/pagerating/internal/domain"
)

// --- Mock implementations ---

type mockTallyClient struct {
	fetchRatingFn func(ctx context.Context, pageURL string) (domain.Tally, error)
	submitVoteFn  func(ctx context.Context, pageURL string, kind domain.VoteKind) (domain.VoteOutcome, error)

	fetchCalls atomic.Int32
	voteCalls  atomic.Int32
}

func (m *mockTallyClient) FetchRating(ctx context.Context, pageURL string) (domain.Tally, error) {
	m.fetchCalls.Add(1)
	if m.fetchRatingFn != nil {
		return m.fetchRatingFn(ctx, pageURL)
	}
	return domain.Tally{}, errors.New("not implemented")
}

func (m *mockTallyClient) SubmitVote(ctx context.Context, pageURL string, kind domain.VoteKind) (domain.VoteOutcome, error) {
	m.voteCalls.Add(1)
	if m.submitVoteFn != nil {
		return m.submitVoteFn(ctx, pageURL, kind)
	}
	return domain.VoteFailure, errors.New("not implemented")
}

func fetchReturns(t domain.Tally) func(context.Context, string) (domain.Tally, error) {
	return func(context.Context, string) (domain.Tally, error) { return t, nil }
}

func voteReturns(o domain.VoteOutcome) func(context.Context, string, domain.VoteKind) (domain.VoteOutcome, error) {
	return func(context.Context, string, domain.VoteKind) (domain.VoteOutcome, error) { return o, nil }
}

// mockCacheStore is an in-memory CacheStore that never expires entries.
type mockCacheStore struct {
	mu       sync.Mutex
	entries  map[string]domain.Tally
	getCalls int
	setCalls int
}

func newMockCacheStore() *mockCacheStore {
	return &mockCacheStore{entries: make(map[string]domain.Tally)}
}

func (m *mockCacheStore) Get(_ context.Context, pageKey string) (domain.CacheEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	t, ok := m.entries[pageKey]
	return domain.CacheEntry{Tally: t}, ok
}

func (m *mockCacheStore) Set(_ context.Context, pageKey string, tally domain.Tally) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls++
	m.entries[pageKey] = tally
}

func (m *mockCacheStore) GetAll(context.Context) map[string]domain.CacheEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make(map[string]domain.CacheEntry, len(m.entries))
	for k, t := range m.entries {
		all[k] = domain.CacheEntry{Tally: t}
	}
	return all
}

func (m *mockCacheStore) sets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setCalls
}

func (m *mockCacheStore) entry(key string) (domain.Tally, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.entries[key]
	return t, ok
}

type renderCall struct {
	channel string
	view    domain.View
}

type mockRenderer struct {
	mu    sync.Mutex
	calls []renderCall
}

func (m *mockRenderer) Render(_ context.Context, channel string, view domain.View) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, renderCall{channel: channel, view: view})
}

func (m *mockRenderer) rendered() []renderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]renderCall(nil), m.calls...)
}
