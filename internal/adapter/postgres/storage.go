package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pscheid92/pagerating/internal/domain"
)

const (
	selectItemSQL = `SELECT value FROM widget_storage WHERE profile_id = $1 AND key = $2`
	upsertItemSQL = `INSERT INTO widget_storage (profile_id, key, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (profile_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
)

var (
	_ domain.StorageProvider = (*StorageProvider)(nil)
	_ domain.Storage         = (*Storage)(nil)
)

// StorageProvider keeps every profile's items in the widget_storage table.
type StorageProvider struct {
	pool *pgxpool.Pool
}

func NewStorageProvider(pool *pgxpool.Pool) *StorageProvider {
	return &StorageProvider{pool: pool}
}

func (p *StorageProvider) ForProfile(profileID string) domain.Storage {
	return &Storage{pool: p.pool, profileID: profileID}
}

// Ping is a readiness check.
func (p *StorageProvider) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

type Storage struct {
	pool      *pgxpool.Pool
	profileID string
}

func (s *Storage) GetItem(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, selectItemSQL, s.profileID, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get storage item %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Storage) SetItem(ctx context.Context, key, value string) error {
	if _, err := s.pool.Exec(ctx, upsertItemSQL, s.profileID, key, value); err != nil {
		return fmt.Errorf("failed to set storage item %s: %w", key, err)
	}
	return nil
}
