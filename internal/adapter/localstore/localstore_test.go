package localstore

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/pagerating/internal/adapter/metrics"
	"github.com/pscheid92/pagerating/internal/cache"
	"github.com/pscheid92/pagerating/internal/domain"
)

func providers(t *testing.T) map[string]domain.StorageProvider {
	t.Helper()
	fp, err := NewFileProvider(t.TempDir(), nil)
	require.NoError(t, err)
	return map[string]domain.StorageProvider{
		"memory": NewMemoryProvider(),
		"file":   fp,
	}
}

func TestStorage_Contract(t *testing.T) {
	for name, provider := range providers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := provider.ForProfile("p1")

			_, found, err := s.GetItem(ctx, "k")
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, s.SetItem(ctx, "k", "v1"))
			require.NoError(t, s.SetItem(ctx, "k", "v2"))
			require.NoError(t, s.SetItem(ctx, "other", "x"))

			val, found, err := s.GetItem(ctx, "k")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, "v2", val)

			_, found, err = provider.ForProfile("p2").GetItem(ctx, "k")
			require.NoError(t, err)
			assert.False(t, found, "profiles are isolated")
		})
	}
}

func TestStorage_ConcurrentWriters(t *testing.T) {
	for name, provider := range providers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			keys := []string{"a", "b", "c", "d", "e", "f", "g", "h"}

			var wg sync.WaitGroup
			for _, k := range keys {
				wg.Add(1)
				go func() {
					defer wg.Done()
					assert.NoError(t, provider.ForProfile("p1").SetItem(ctx, k, k+"-value"))
				}()
			}
			wg.Wait()

			for _, k := range keys {
				val, found, err := provider.ForProfile("p1").GetItem(ctx, k)
				require.NoError(t, err)
				assert.True(t, found, k)
				assert.Equal(t, k+"-value", val)
			}
		})
	}
}

func TestFileProvider_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	first, err := NewFileProvider(dir, nil)
	require.NoError(t, err)
	cache.NewStore(first.ForProfile("p1"), clock).Set(ctx, "example.com/a", domain.Tally{Likes: 4, Dislikes: 1})

	second, err := NewFileProvider(dir, nil)
	require.NoError(t, err)
	entry, ok := cache.NewStore(second.ForProfile("p1"), clock).Get(ctx, "example.com/a")
	require.True(t, ok)
	assert.Equal(t, domain.Tally{Likes: 4, Dislikes: 1}, entry.Tally)

	_, err = os.Stat(filepath.Join(dir, "p1.json"))
	assert.NoError(t, err)
}

func TestFileProvider_RejectsUnsafeProfileID(t *testing.T) {
	fp, err := NewFileProvider(t.TempDir(), nil)
	require.NoError(t, err)

	for _, id := range []string{"", "../escape", "a/b", "with space"} {
		err := fp.ForProfile(id).SetItem(context.Background(), "k", "v")
		assert.Error(t, err, id)
	}
}

func TestFileProvider_CorruptFileIsAnError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "p1.json"), []byte("{not json"), 0o600))

	m := metrics.NewStorageMetrics(prometheus.NewRegistry())
	fp, err := NewFileProvider(dir, m)
	require.NoError(t, err)

	_, _, err = fp.ForProfile("p1").GetItem(context.Background(), "k")
	assert.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues(backendName, "get", "error")))
}

func TestFileProvider_SetItemRecoversCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "p1.json"), []byte("{not json"), 0o600))

	fp, err := NewFileProvider(dir, nil)
	require.NoError(t, err)
	st := fp.ForProfile("p1")

	require.NoError(t, st.SetItem(context.Background(), "k", "v"))

	val, found, err := st.GetItem(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", val)
}

func TestFileProvider_Ping(t *testing.T) {
	fp, err := NewFileProvider(filepath.Join(t.TempDir(), "nested", "dir"), nil)
	require.NoError(t, err)
	assert.NoError(t, fp.Ping(context.Background()))
}
