package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pscheid92/pagerating/internal/adapter/metrics"
	"github.com/pscheid92/pagerating/internal/domain"
	"github.com/pscheid92/pagerating/internal/pageurl"
)

// DefaultRequestTimeout bounds every load and vote when no other timeout is set.
const DefaultRequestTimeout = 10 * time.Second

// State is the lifecycle position of a Session.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// LoadResult is the tally adopted by a load and where it came from.
type LoadResult struct {
	Tally     domain.Tally
	FromCache bool
}

// VoteResult is the outcome of one vote and the tally after applying it.
// Clamped reports that the outcome would have pushed a counter below zero.
type VoteResult struct {
	Outcome domain.VoteOutcome
	Tally   domain.Tally
	Clamped bool
}

// Session is the rating state for one page.
type Session struct {
	pageURL string
	key     string

	cache    domain.CacheStore
	remote   domain.TallyClient
	renderer domain.Renderer
	channel  string
	timeout  time.Duration
	metrics  *metrics.SessionMetrics

	mu    sync.Mutex
	state State
	tally domain.Tally
	// version counts tally changes made by votes.
	version uint64

	// writeMu orders tally updates with their cache writes.
	writeMu sync.Mutex

	loads singleflight.Group
	votes singleflight.Group
}

type SessionOption func(*Session)

// WithRenderer calls r with the session's view after every state transition,
// tagged with channel.
func WithRenderer(r domain.Renderer, channel string) SessionOption {
	return func(s *Session) {
		s.renderer = r
		s.channel = channel
	}
}

// WithTimeout bounds each load and vote.
func WithTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.timeout = d }
}

func WithMetrics(m *metrics.SessionMetrics) SessionOption {
	return func(s *Session) { s.metrics = m }
}

// NewSession creates an uninitialized session for pageURL. The full URL is
// what the remote service sees; its normalized form keys the cache.
func NewSession(pageURL string, cache domain.CacheStore, remote domain.TallyClient, opts ...SessionOption) (*Session, error) {
	key, err := pageurl.Normalize(pageURL)
	if err != nil {
		return nil, err
	}

	s := &Session{
		pageURL: pageURL,
		key:     key,
		cache:   cache,
		remote:  remote,
		channel: key,
		timeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// PageURL is the full URL the session was created for.
func (s *Session) PageURL() string { return s.pageURL }

// Key is the normalized URL the session caches under.
func (s *Session) Key() string { return s.key }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Tally returns the in-memory tally. It is the zero tally until the first load succeeds.
func (s *Session) Tally() domain.Tally {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tally
}

// View returns the render tuple for the current tally.
func (s *Session) View() domain.View {
	return s.Tally().View()
}

// Load serves the tally from the cache or, on a miss, from the remote
// service. Concurrent calls share one load. A remote failure is returned as
// is: from Uninitialized the session falls back to Uninitialized, from Ready
// it keeps its current tally. A refresh that overlaps a vote keeps the voted
// tally rather than the older fetched one.
func (s *Session) Load(ctx context.Context) (LoadResult, error) {
	v, err, _ := s.loads.Do("load", func() (any, error) {
		return s.load(context.WithoutCancel(ctx))
	})
	if err != nil {
		return LoadResult{}, err
	}
	return v.(LoadResult), nil
}

func (s *Session) load(ctx context.Context) (LoadResult, error) {
	s.mu.Lock()
	if s.state == StateUninitialized {
		s.state = StateLoading
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.writeMu.Lock()
	entry, hit := s.cache.Get(ctx, s.key)
	if hit {
		s.adopt(entry.Tally)
	}
	s.mu.Lock()
	version := s.version
	s.mu.Unlock()
	s.writeMu.Unlock()

	if hit {
		s.countLoad("cache")
		slog.DebugContext(ctx, "Rating served from cache", "page", s.key, "likes", entry.Likes, "dislikes", entry.Dislikes)
		s.render(ctx, entry.Tally)
		return LoadResult{Tally: entry.Tally, FromCache: true}, nil
	}

	tally, err := s.remote.FetchRating(ctx, s.pageURL)
	if err != nil {
		s.mu.Lock()
		if s.state == StateLoading {
			s.state = StateUninitialized
		}
		s.mu.Unlock()
		s.countLoad("error")
		return LoadResult{}, fmt.Errorf("load rating for %s: %w", s.key, err)
	}

	tally = s.guard(ctx, tally)

	s.writeMu.Lock()
	s.mu.Lock()
	stale := s.version != version
	current := s.tally
	s.mu.Unlock()
	if stale {
		s.writeMu.Unlock()
		s.countLoad("remote")
		slog.DebugContext(ctx, "Fetched tally superseded by a vote", "page", s.key)
		return LoadResult{Tally: current, FromCache: false}, nil
	}
	s.adopt(tally)
	s.cache.Set(ctx, s.key, tally)
	s.writeMu.Unlock()

	s.countLoad("remote")
	s.render(ctx, tally)
	return LoadResult{Tally: tally, FromCache: false}, nil
}

// Like votes for the page.
func (s *Session) Like(ctx context.Context) (VoteResult, error) {
	return s.Vote(ctx, domain.VoteLike)
}

// Dislike votes against the page.
func (s *Session) Dislike(ctx context.Context) (VoteResult, error) {
	return s.Vote(ctx, domain.VoteDislike)
}

// Vote submits kind to the remote service and applies the outcome to the
// tally. It fails with ErrNotReady before the first successful load. Remote
// faults are not errors: they come back as VoteFailure with the tally
// unchanged. Calls of the same kind that overlap share one submission, which
// runs detached from any single caller's cancellation.
func (s *Session) Vote(ctx context.Context, kind domain.VoteKind) (VoteResult, error) {
	if s.State() != StateReady {
		return VoteResult{Outcome: domain.VoteFailure, Tally: s.Tally()}, domain.ErrNotReady
	}

	v, _, shared := s.votes.Do(kind.String(), func() (any, error) {
		return s.vote(context.WithoutCancel(ctx), kind), nil
	})
	if shared {
		slog.DebugContext(ctx, "Vote collapsed into in-flight submission", "page", s.key, "kind", kind.String())
	}
	return v.(VoteResult), nil
}

func (s *Session) vote(ctx context.Context, kind domain.VoteKind) VoteResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	outcome, err := s.remote.SubmitVote(ctx, s.pageURL, kind)
	if err != nil {
		slog.WarnContext(ctx, "Vote submission failed", "page", s.key, "kind", kind.String(), "error", err)
		outcome = domain.VoteFailure
	}

	s.writeMu.Lock()
	s.mu.Lock()
	next, changed, clamped := s.tally.Apply(kind, outcome)
	s.tally = next
	if changed {
		s.version++
	}
	s.mu.Unlock()
	if changed {
		s.cache.Set(ctx, s.key, next)
	}
	s.writeMu.Unlock()

	s.countVote(kind, outcome)
	switch {
	case clamped:
		slog.ErrorContext(ctx, "Vote outcome would make the tally negative, clamped to zero",
			"page", s.key, "kind", kind.String(), "outcome", outcome.String())
		s.countAnomaly()
	case outcome == domain.VoteRejected:
		slog.InfoContext(ctx, "Vote rejected by tally service", "page", s.key, "kind", kind.String())
	}

	if changed {
		s.render(ctx, next)
	}
	return VoteResult{Outcome: outcome, Tally: next, Clamped: clamped}
}

func (s *Session) adopt(tally domain.Tally) {
	s.mu.Lock()
	s.tally = tally
	s.state = StateReady
	s.mu.Unlock()
}

// guard clamps a tally that arrived with negative counters.
func (s *Session) guard(ctx context.Context, tally domain.Tally) domain.Tally {
	tally, clamped := tally.Clamp()
	if clamped {
		slog.ErrorContext(ctx, "Remote tally had negative counters, clamped to zero", "page", s.key)
		s.countAnomaly()
	}
	return tally
}

func (s *Session) render(ctx context.Context, tally domain.Tally) {
	if s.renderer == nil {
		return
	}
	s.renderer.Render(ctx, s.channel, tally.View())
}

func (s *Session) countLoad(source string) {
	if s.metrics != nil {
		s.metrics.Loads.WithLabelValues(source).Inc()
	}
}

func (s *Session) countVote(kind domain.VoteKind, outcome domain.VoteOutcome) {
	if s.metrics != nil {
		s.metrics.VotesByOutcome.WithLabelValues(kind.String(), outcome.String()).Inc()
	}
}

func (s *Session) countAnomaly() {
	if s.metrics != nil {
		s.metrics.Anomalies.Inc()
	}
}
