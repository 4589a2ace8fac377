package domain

import (
	"context"
	"time"
)

// CacheEntry is a cached tally with its absolute expiry.
type CacheEntry struct {
	Tally
	ExpiresAt time.Time
}

// Storage is the durable string-keyed medium behind the cache store,
// scoped to one client profile.
type Storage interface {
	GetItem(ctx context.Context, key string) (value string, found bool, err error)
	SetItem(ctx context.Context, key, value string) error
}

// StorageProvider hands out the storage scoped to a profile.
type StorageProvider interface {
	ForProfile(profileID string) Storage
}

// CacheStore maps normalized page URLs to expiring tallies.
// Implementations absorb their own faults: reads degrade to a miss and
// writes never fail the caller.
type CacheStore interface {
	Get(ctx context.Context, pageKey string) (CacheEntry, bool)
	Set(ctx context.Context, pageKey string, tally Tally)
	GetAll(ctx context.Context) map[string]CacheEntry
}
