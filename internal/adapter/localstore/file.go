package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/pscheid92/pagerating/internal/adapter/metrics"
	"github.com/pscheid92/pagerating/internal/domain"
)

const backendName = "file"

// profileIDPattern keeps profile IDs safe to use as file names.
var profileIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

var errCorruptDocument = errors.New("corrupt storage file")

var _ domain.StorageProvider = (*FileProvider)(nil)

// FileProvider stores each profile's items as one JSON object in
// <dir>/<profile>.json. Writes replace the file atomically.
type FileProvider struct {
	dir     string
	metrics *metrics.StorageMetrics

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFileProvider creates dir if needed. m may be nil.
func NewFileProvider(dir string, m *metrics.StorageMetrics) (*FileProvider, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &FileProvider{
		dir:     dir,
		metrics: m,
		locks:   make(map[string]*sync.Mutex),
	}, nil
}

func (p *FileProvider) ForProfile(profileID string) domain.Storage {
	return &fileStorage{provider: p, profileID: profileID}
}

// Ping is a readiness check: the directory must still be writable.
func (p *FileProvider) Ping(context.Context) error {
	f, err := os.CreateTemp(p.dir, ".ping-*")
	if err != nil {
		return fmt.Errorf("storage dir not writable: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func (p *FileProvider) lockFor(profileID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.locks[profileID]
	if !ok {
		l = &sync.Mutex{}
		p.locks[profileID] = l
	}
	return l
}

func (p *FileProvider) path(profileID string) (string, error) {
	if !profileIDPattern.MatchString(profileID) {
		return "", fmt.Errorf("invalid profile id %q", profileID)
	}
	return filepath.Join(p.dir, profileID+".json"), nil
}

type fileStorage struct {
	provider  *FileProvider
	profileID string
}

func (s *fileStorage) GetItem(_ context.Context, key string) (val string, found bool, err error) {
	start := time.Now()
	defer func() { s.provider.metrics.Observe(backendName, "get", err, time.Since(start).Seconds()) }()

	l := s.provider.lockFor(s.profileID)
	l.Lock()
	defer l.Unlock()

	items, err := s.read()
	if err != nil {
		return "", false, err
	}
	val, found = items[key]
	return val, found, nil
}

// SetItem rewrites a corrupt document from scratch so one bad file cannot
// block every later write for the profile.
func (s *fileStorage) SetItem(ctx context.Context, key, value string) (err error) {
	start := time.Now()
	defer func() { s.provider.metrics.Observe(backendName, "set", err, time.Since(start).Seconds()) }()

	l := s.provider.lockFor(s.profileID)
	l.Lock()
	defer l.Unlock()

	items, err := s.read()
	if errors.Is(err, errCorruptDocument) {
		slog.WarnContext(ctx, "Discarding corrupt storage file", "profile", s.profileID, "error", err)
		items = make(map[string]string)
	} else if err != nil {
		return err
	}
	items[key] = value
	return s.write(items)
}

func (s *fileStorage) read() (map[string]string, error) {
	path, err := s.provider.path(s.profileID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read storage file: %w", err)
	}

	items := make(map[string]string)
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w %s: %w", errCorruptDocument, filepath.Base(path), err)
	}
	return items, nil
}

func (s *fileStorage) write(items map[string]string) error {
	path, err := s.provider.path(s.profileID)
	if err != nil {
		return err
	}

	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode storage file: %w", err)
	}

	tmp, err := os.CreateTemp(s.provider.dir, s.profileID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace storage file: %w", err)
	}
	return nil
}
