package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/pagerating/internal/app"
	"github.com/pscheid92/pagerating/internal/domain"
	"github.com/pscheid92/pagerating/internal/platform/config"
)

const testPage = "https://www.example.com/posts/42"

// --- Mock implementations ---

type ratingCall struct {
	profileID string
	pageURL   string
	kind      domain.VoteKind
}

type mockRatingService struct {
	ratingFn func(ctx context.Context, profileID, pageURL string) (app.Rating, error)
	voteFn   func(ctx context.Context, profileID, pageURL string, kind domain.VoteKind) (app.VoteResult, error)

	mu    sync.Mutex
	calls []ratingCall
}

func (m *mockRatingService) Rating(ctx context.Context, profileID, pageURL string) (app.Rating, error) {
	m.record(ratingCall{profileID: profileID, pageURL: pageURL})
	if m.ratingFn != nil {
		return m.ratingFn(ctx, profileID, pageURL)
	}
	return app.Rating{}, errors.New("not implemented")
}

func (m *mockRatingService) Vote(ctx context.Context, profileID, pageURL string, kind domain.VoteKind) (app.VoteResult, error) {
	m.record(ratingCall{profileID: profileID, pageURL: pageURL, kind: kind})
	if m.voteFn != nil {
		return m.voteFn(ctx, profileID, pageURL, kind)
	}
	return app.VoteResult{}, errors.New("not implemented")
}

func (m *mockRatingService) record(call ratingCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockRatingService) recorded() []ratingCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ratingCall(nil), m.calls...)
}

type mockHub struct {
	registerFn func(channel string, conn *websocket.Conn) error
}

func (m *mockHub) Register(channel string, conn *websocket.Conn) error {
	if m.registerFn != nil {
		return m.registerFn(channel, conn)
	}
	return nil
}

func (m *mockHub) Unregister(string, *websocket.Conn) {}

// --- Test helpers ---

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:        "development",
		Port:          "0",
		SessionSecret: "test-secret-key-32-bytes-long!!!",
		SessionMaxAge: time.Hour,
		VoteRateLimit: 100,
		VoteRateBurst: 100,

		WSMaxConnections:      100,
		WSMaxConnectionsPerIP: 10,
	}
}

func newTestServer(t *testing.T, ratings ratingService, hub viewHub, opts ...Option) *Server {
	t.Helper()
	if hub == nil {
		hub = &mockHub{}
	}
	return NewServer(testConfig(), ratings, hub, opts...)
}

func newTestContext(req *http.Request) (echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

// serve runs req through the full middleware chain.
func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}
