package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/pagerating/internal/domain"
)

var (
	_ domain.StorageProvider = (*StorageProvider)(nil)
	_ domain.Storage         = (*Storage)(nil)
)

// StorageProvider scopes Redis keys per profile.
type StorageProvider struct {
	rdb *goredis.Client
}

func NewStorageProvider(rdb *goredis.Client) *StorageProvider {
	return &StorageProvider{rdb: rdb}
}

func (p *StorageProvider) ForProfile(profileID string) domain.Storage {
	return &Storage{rdb: p.rdb, profileID: profileID}
}

// Ping is a readiness check.
func (p *StorageProvider) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

// Storage holds one profile's items as plain Redis strings without expiry.
// Item expiry is the cache store's business.
type Storage struct {
	rdb       *goredis.Client
	profileID string
}

func (s *Storage) GetItem(ctx context.Context, key string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, storageKey(s.profileID, key)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

func (s *Storage) SetItem(ctx context.Context, key, value string) error {
	if err := s.rdb.Set(ctx, storageKey(s.profileID, key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func storageKey(profileID, key string) string {
	return "storage:" + profileID + ":" + key
}
