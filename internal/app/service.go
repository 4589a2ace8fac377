package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/pagerating/internal/adapter/metrics"
	"github.com/pscheid92/pagerating/internal/domain"
	"github.com/pscheid92/pagerating/internal/pageurl"
)

const (
	DefaultIdleTTL       = 30 * time.Minute
	DefaultEvictInterval = 1 * time.Minute
)

// CacheFactory returns the cache store for a visitor profile.
type CacheFactory func(profileID string) domain.CacheStore

// ClientFactory returns the tally client acting on behalf of a visitor profile.
type ClientFactory func(profileID string) domain.TallyClient

// Channel is the render channel of the session for (profileID, page key).
func Channel(profileID, key string) string {
	return profileID + "|" + key
}

// Rating is a view of a page's tally as returned to callers of the Service.
// Stale is set when a refresh failed and the previous tally is being shown.
type Rating struct {
	Tally     domain.Tally
	View      domain.View
	FromCache bool
	Stale     bool
}

type sessionKey struct {
	profileID string
	key       string
}

type sessionEntry struct {
	session  *Session
	lastUsed time.Time
}

// Service owns the sessions of every visitor profile and page, creating them
// on first use and evicting them when idle.
type Service struct {
	caches   CacheFactory
	clients  ClientFactory
	renderer domain.Renderer
	clock    clockwork.Clock
	timeout  time.Duration
	idleTTL  time.Duration
	metrics  *metrics.SessionMetrics

	mu       sync.Mutex
	sessions map[sessionKey]*sessionEntry
}

type ServiceOption func(*Service)

// WithSessionRenderer installs the render hook on every session created.
func WithSessionRenderer(r domain.Renderer) ServiceOption {
	return func(s *Service) { s.renderer = r }
}

// WithRequestTimeout bounds each load and vote.
func WithRequestTimeout(d time.Duration) ServiceOption {
	return func(s *Service) { s.timeout = d }
}

// WithIdleTTL sets how long an unused session is kept.
func WithIdleTTL(d time.Duration) ServiceOption {
	return func(s *Service) { s.idleTTL = d }
}

func WithSessionMetrics(m *metrics.SessionMetrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

func NewService(caches CacheFactory, clients ClientFactory, clock clockwork.Clock, opts ...ServiceOption) *Service {
	s := &Service{
		caches:   caches,
		clients:  clients,
		clock:    clock,
		timeout:  DefaultRequestTimeout,
		idleTTL:  DefaultIdleTTL,
		sessions: make(map[sessionKey]*sessionEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Session returns the session for profileID and pageURL, creating it if needed.
// URLs that normalize to the same key share a session, which keeps the full
// URL it was first created with.
func (s *Service) Session(_ context.Context, profileID, pageURL string) (*Session, error) {
	key, err := pageurl.Normalize(pageURL)
	if err != nil {
		return nil, err
	}
	sk := sessionKey{profileID: profileID, key: key}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.sessions[sk]; ok {
		e.lastUsed = s.clock.Now()
		return e.session, nil
	}

	opts := []SessionOption{WithTimeout(s.timeout), WithMetrics(s.metrics)}
	if s.renderer != nil {
		opts = append(opts, WithRenderer(s.renderer, Channel(profileID, key)))
	}
	session, err := NewSession(pageURL, s.caches(profileID), s.clients(profileID), opts...)
	if err != nil {
		return nil, err
	}

	s.sessions[sk] = &sessionEntry{session: session, lastUsed: s.clock.Now()}
	s.updateGauge()
	return session, nil
}

// Rating loads the page's tally. If a refresh fails but the session already
// holds a tally, that tally is returned marked stale.
func (s *Service) Rating(ctx context.Context, profileID, pageURL string) (Rating, error) {
	session, err := s.Session(ctx, profileID, pageURL)
	if err != nil {
		return Rating{}, err
	}

	res, err := session.Load(ctx)
	if err != nil {
		if session.State() != StateReady {
			return Rating{}, err
		}
		slog.WarnContext(ctx, "Rating refresh failed, serving previous tally", "page", session.Key(), "error", err)
		tally := session.Tally()
		return Rating{Tally: tally, View: tally.View(), Stale: true}, nil
	}

	return Rating{Tally: res.Tally, View: res.Tally.View(), FromCache: res.FromCache}, nil
}

// Like votes for pageURL on behalf of profileID, loading the session first if needed.
func (s *Service) Like(ctx context.Context, profileID, pageURL string) (VoteResult, error) {
	return s.Vote(ctx, profileID, pageURL, domain.VoteLike)
}

// Dislike votes against pageURL on behalf of profileID, loading the session first if needed.
func (s *Service) Dislike(ctx context.Context, profileID, pageURL string) (VoteResult, error) {
	return s.Vote(ctx, profileID, pageURL, domain.VoteDislike)
}

func (s *Service) Vote(ctx context.Context, profileID, pageURL string, kind domain.VoteKind) (VoteResult, error) {
	session, err := s.Session(ctx, profileID, pageURL)
	if err != nil {
		return VoteResult{}, err
	}

	if session.State() != StateReady {
		if _, err := session.Load(ctx); err != nil {
			return VoteResult{}, err
		}
	}

	return session.Vote(ctx, kind)
}

// Len is the number of sessions held.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// EvictIdle drops sessions unused for at least the idle TTL and returns how many it dropped.
func (s *Service) EvictIdle() int {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for sk, e := range s.sessions {
		if now.Sub(e.lastUsed) >= s.idleTTL {
			delete(s.sessions, sk)
			evicted++
		}
	}

	if evicted > 0 {
		s.updateGauge()
		if s.metrics != nil {
			s.metrics.Evictions.Add(float64(evicted))
		}
		slog.Debug("Evicted idle rating sessions", "count", evicted, "remaining", len(s.sessions))
	}
	return evicted
}

// StartEvictionTimer runs EvictIdle every interval until the returned stop
// function is called.
func (s *Service) StartEvictionTimer(interval time.Duration) func() {
	ticker := s.clock.NewTicker(interval)
	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ticker.Chan():
				s.EvictIdle()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	slog.Info("Session eviction timer started", "interval", interval.String(), "idle_ttl", s.idleTTL.String())

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
		wg.Wait()
	}
}

// must be called with s.mu held
func (s *Service) updateGauge() {
	if s.metrics != nil {
		s.metrics.ActiveSessions.Set(float64(len(s.sessions)))
	}
}
