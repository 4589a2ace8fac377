package localstore

import (
	"context"
	"sync"

	"github.com/pscheid92/pagerating/internal/domain"
)

var _ domain.StorageProvider = (*MemoryProvider)(nil)

// MemoryProvider keeps items for the lifetime of the process.
type MemoryProvider struct {
	mu       sync.Mutex
	profiles map[string]map[string]string
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{profiles: make(map[string]map[string]string)}
}

func (p *MemoryProvider) ForProfile(profileID string) domain.Storage {
	return &memoryStorage{provider: p, profileID: profileID}
}

// Ping always succeeds.
func (p *MemoryProvider) Ping(context.Context) error { return nil }

type memoryStorage struct {
	provider  *MemoryProvider
	profileID string
}

func (s *memoryStorage) GetItem(_ context.Context, key string) (string, bool, error) {
	s.provider.mu.Lock()
	defer s.provider.mu.Unlock()

	val, ok := s.provider.profiles[s.profileID][key]
	return val, ok, nil
}

func (s *memoryStorage) SetItem(_ context.Context, key, value string) error {
	s.provider.mu.Lock()
	defer s.provider.mu.Unlock()

	items, ok := s.provider.profiles[s.profileID]
	if !ok {
		items = make(map[string]string)
		s.provider.profiles[s.profileID] = items
	}
	items[key] = value
	return nil
}
