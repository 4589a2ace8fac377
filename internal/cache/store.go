package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/pagerating/internal/adapter/metrics"
	"github.com/pscheid92/pagerating/internal/domain"
)

const (
	// DefaultTTL is applied to every write.
	DefaultTTL = 1 * time.Hour
	// DefaultKey is the storage key holding the whole table.
	DefaultKey = "rating-cache"
)

var _ domain.CacheStore = (*Store)(nil)

// Store is the tally cache store for one client profile.
type Store struct {
	storage domain.Storage
	key     string
	ttl     time.Duration
	clock   clockwork.Clock
	metrics *metrics.CacheMetrics
}

type Option func(*Store)

// WithKey overrides the storage key the table is persisted under.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithTTL overrides the TTL applied to every write.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithMetrics records lookups, writes and absorbed faults.
func WithMetrics(m *metrics.CacheMetrics) Option {
	return func(s *Store) { s.metrics = m }
}

// NewStore creates a cache store over storage.
func NewStore(storage domain.Storage, clock clockwork.Clock, opts ...Option) *Store {
	s := &Store{
		storage: storage,
		key:     DefaultKey,
		ttl:     DefaultTTL,
		clock:   clock,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// entry is the persisted form of a domain.CacheEntry.
type entry struct {
	Likes     int   `json:"likes"`
	Dislikes  int   `json:"dislikes"`
	ExpiresAt int64 `json:"expiresAt"` // unix milliseconds
}

// Get returns the entry for pageKey, or false if there is none or it has expired.
func (s *Store) Get(ctx context.Context, pageKey string) (domain.CacheEntry, bool) {
	table := s.load(ctx)

	e, ok := table[pageKey]
	if !ok {
		s.countLookup("miss")
		return domain.CacheEntry{}, false
	}

	ce := toDomain(e)
	if !s.clock.Now().Before(ce.ExpiresAt) {
		s.countLookup("expired")
		return domain.CacheEntry{}, false
	}

	s.countLookup("hit")
	return ce, true
}

// Set writes tally for pageKey with a fresh TTL and persists the whole table.
func (s *Store) Set(ctx context.Context, pageKey string, tally domain.Tally) {
	tally, clamped := tally.Clamp()
	if clamped {
		slog.ErrorContext(ctx, "Refusing to cache negative tally, clamped to zero", "page", pageKey)
	}

	table := s.load(ctx)
	table[pageKey] = entry{
		Likes:     tally.Likes,
		Dislikes:  tally.Dislikes,
		ExpiresAt: s.clock.Now().Add(s.ttl).UnixMilli(),
	}

	encoded, err := json.Marshal(table)
	if err != nil {
		slog.WarnContext(ctx, "Failed to encode tally cache", "page", pageKey, "error", err)
		s.countStorageError("write")
		return
	}

	if err := s.storage.SetItem(ctx, s.key, string(encoded)); err != nil {
		slog.WarnContext(ctx, "Failed to persist tally cache", "page", pageKey, "error", err)
		s.countStorageError("write")
		return
	}

	if s.metrics != nil {
		s.metrics.Writes.Inc()
	}
}

// GetAll returns the full table, expired entries included.
func (s *Store) GetAll(ctx context.Context) map[string]domain.CacheEntry {
	table := s.load(ctx)

	all := make(map[string]domain.CacheEntry, len(table))
	for key, e := range table {
		all[key] = toDomain(e)
	}
	return all
}

// load reads the persisted table. Any fault yields an empty table.
func (s *Store) load(ctx context.Context) map[string]entry {
	raw, found, err := s.storage.GetItem(ctx, s.key)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read tally cache, treating as empty", "error", err)
		s.countStorageError("read")
		return make(map[string]entry)
	}
	if !found || raw == "" {
		return make(map[string]entry)
	}

	var table map[string]entry
	if err := json.Unmarshal([]byte(raw), &table); err != nil || table == nil {
		slog.WarnContext(ctx, "Tally cache is corrupt, treating as empty", "error", err)
		s.countStorageError("corrupt")
		return make(map[string]entry)
	}

	for key, e := range table {
		if e.Likes < 0 || e.Dislikes < 0 {
			delete(table, key)
		}
	}
	return table
}

func toDomain(e entry) domain.CacheEntry {
	return domain.CacheEntry{
		Tally:     domain.Tally{Likes: e.Likes, Dislikes: e.Dislikes},
		ExpiresAt: time.UnixMilli(e.ExpiresAt),
	}
}

func (s *Store) countLookup(result string) {
	if s.metrics != nil {
		s.metrics.Lookups.WithLabelValues(result).Inc()
	}
}

func (s *Store) countStorageError(kind string) {
	if s.metrics != nil {
		s.metrics.StorageErrors.WithLabelValues(kind).Inc()
	}
}
