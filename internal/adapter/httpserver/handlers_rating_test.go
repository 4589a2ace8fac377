package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wshub "github.com/pscheid92/pagerating/internal/adapter/websocket"
	"github.com/pscheid92/pagerating/internal/app"
	"github.com/pscheid92/pagerating/internal/domain"
	"github.com/pscheid92/pagerating/internal/pageurl"
	apperrors "github.com/pscheid92/pagerating/internal/platform/errors"
)

func ratingPath(action string) string {
	return "/api/rating" + action + "?url=" + url.QueryEscape(testPage)
}

func TestGetRating(t *testing.T) {
	tally := domain.Tally{Likes: 5, Dislikes: 3}
	ratings := &mockRatingService{
		ratingFn: func(_ context.Context, _, _ string) (app.Rating, error) {
			return app.Rating{Tally: tally, View: tally.View(), FromCache: true}, nil
		},
	}
	srv := newTestServer(t, ratings, nil)

	rec := serve(srv, httptest.NewRequest(http.MethodGet, ratingPath(""), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"likes":5,"dislikes":3,"total":8,"value":5,"max":8,"ratio":0.625,"fromCache":true}`, rec.Body.String())

	calls := ratings.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, testPage, calls[0].pageURL)
	assert.NotEmpty(t, calls[0].profileID)
}

func TestGetRating_Stale(t *testing.T) {
	ratings := &mockRatingService{
		ratingFn: func(_ context.Context, _, _ string) (app.Rating, error) {
			return app.Rating{View: domain.Tally{}.View(), Stale: true}, nil
		},
	}
	srv := newTestServer(t, ratings, nil)

	rec := serve(srv, httptest.NewRequest(http.MethodGet, ratingPath(""), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"stale":true`)
}

func TestGetRating_MissingURL(t *testing.T) {
	ratings := &mockRatingService{}
	srv := newTestServer(t, ratings, nil)

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/rating", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, ratings.recorded())
}

func TestGetRating_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   apperrors.ErrorType
	}{
		{"invalid url", fmt.Errorf("%w: missing host", domain.ErrInvalidPageURL), http.StatusBadRequest, apperrors.TypeValidation},
		{"circuit open", fmt.Errorf("fetch_rating: %w", domain.ErrRemoteUnavailable), http.StatusServiceUnavailable, apperrors.TypeUnavailable},
		{"malformed payload", fmt.Errorf("load: %w", domain.ErrMalformedPayload), http.StatusBadGateway, apperrors.TypeExternal},
		{"transport", errors.New("connection refused"), http.StatusBadGateway, apperrors.TypeExternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ratings := &mockRatingService{
				ratingFn: func(_ context.Context, _, _ string) (app.Rating, error) {
					return app.Rating{}, tt.err
				},
			}
			srv := newTestServer(t, ratings, nil)

			rec := serve(srv, httptest.NewRequest(http.MethodGet, ratingPath(""), nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var resp apperrors.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantType, resp.Type)
			assert.Equal(t, testPage, resp.Context["url"])
		})
	}
}

func TestVote(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		wantKind domain.VoteKind
		result   app.VoteResult
		wantBody string
	}{
		{
			name:     "like created",
			path:     ratingPath("/like"),
			wantKind: domain.VoteLike,
			result:   app.VoteResult{Outcome: domain.VoteCreated, Tally: domain.Tally{Likes: 6, Dislikes: 3}},
			wantBody: `{"outcome":"created","view":{"likes":6,"dislikes":3,"total":9,"value":6,"max":9,"ratio":0.6666666666666666}}`,
		},
		{
			name:     "dislike switched",
			path:     ratingPath("/dislike"),
			wantKind: domain.VoteDislike,
			result:   app.VoteResult{Outcome: domain.VoteSwitched, Tally: domain.Tally{Likes: 1, Dislikes: 1}},
			wantBody: `{"outcome":"switched","view":{"likes":1,"dislikes":1,"total":2,"value":1,"max":2,"ratio":0.5}}`,
		},
		{
			name:     "failure keeps view",
			path:     ratingPath("/like"),
			wantKind: domain.VoteLike,
			result:   app.VoteResult{Outcome: domain.VoteFailure},
			wantBody: `{"outcome":"failure","view":{"likes":0,"dislikes":0,"total":0,"value":1,"max":2,"ratio":0.5}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ratings := &mockRatingService{
				voteFn: func(_ context.Context, _, _ string, _ domain.VoteKind) (app.VoteResult, error) {
					return tt.result, nil
				},
			}
			srv := newTestServer(t, ratings, nil)

			rec := serve(srv, httptest.NewRequest(http.MethodPost, tt.path, nil))

			require.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())

			calls := ratings.recorded()
			require.Len(t, calls, 1)
			assert.Equal(t, tt.wantKind, calls[0].kind)
		})
	}
}

func TestVote_LoadFailure(t *testing.T) {
	ratings := &mockRatingService{
		voteFn: func(_ context.Context, _, _ string, _ domain.VoteKind) (app.VoteResult, error) {
			return app.VoteResult{}, errors.New("load rating: 500")
		},
	}
	srv := newTestServer(t, ratings, nil)

	rec := serve(srv, httptest.NewRequest(http.MethodPost, ratingPath("/like"), nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "like", resp.Context["vote"])
}

func TestVote_RateLimited(t *testing.T) {
	ratings := &mockRatingService{
		voteFn: func(_ context.Context, _, _ string, _ domain.VoteKind) (app.VoteResult, error) {
			return app.VoteResult{Outcome: domain.VoteCreated, Tally: domain.Tally{Likes: 1}}, nil
		},
	}
	cfg := testConfig()
	cfg.VoteRateLimit = 0.01
	cfg.VoteRateBurst = 1
	srv := NewServer(cfg, ratings, &mockHub{})

	first := serve(srv, httptest.NewRequest(http.MethodPost, ratingPath("/like"), nil))
	second := serve(srv, httptest.NewRequest(http.MethodPost, ratingPath("/like"), nil))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Len(t, ratings.recorded(), 1)
}

func TestVote_CORSPreflight(t *testing.T) {
	srv := newTestServer(t, &mockRatingService{}, nil)

	req := httptest.NewRequest(http.MethodOptions, ratingPath("/like"), nil)
	req.Header.Set("Origin", "https://blog.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := serve(srv, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://blog.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestWebSocket_ReceivesInitialView(t *testing.T) {
	hub := wshub.NewHub(nil)
	t.Cleanup(hub.Stop)

	tally := domain.Tally{Likes: 2, Dislikes: 1}
	ratings := &mockRatingService{
		ratingFn: func(ctx context.Context, profileID, pageURL string) (app.Rating, error) {
			hub.Render(ctx, app.Channel(profileID, pageurl.MustNormalize(pageURL)), tally.View())
			return app.Rating{Tally: tally, View: tally.View()}, nil
		},
	}
	srv := newTestServer(t, ratings, hub)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?url=" + url.QueryEscape(testPage)
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	assert.NotEmpty(t, resp.Header.Get("Set-Cookie"), "profile cookie should be issued on upgrade")

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var view domain.View
	require.NoError(t, json.Unmarshal(msg, &view))
	assert.Equal(t, tally.View(), view)
}

func TestWebSocket_InvalidURL(t *testing.T) {
	srv := newTestServer(t, &mockRatingService{}, nil)

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/ws?url="+url.QueryEscape("http://"), nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebSocket_RegisterRejected(t *testing.T) {
	ratings := &mockRatingService{}
	hub := &mockHub{registerFn: func(string, *websocket.Conn) error { return wshub.ErrChannelFull }}
	srv := newTestServer(t, ratings, hub)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?url=" + url.QueryEscape(testPage)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "connection should be closed when registration fails")
	assert.Empty(t, ratings.recorded())
}

func TestWebSocket_ConnectionLimit(t *testing.T) {
	cfg := testConfig()
	cfg.WSMaxConnectionsPerIP = 1
	srv := NewServer(cfg, &mockRatingService{}, &mockHub{})

	require.True(t, srv.conns.Acquire("192.0.2.1"))

	req := httptest.NewRequest(http.MethodGet, "/ws?url="+url.QueryEscape(testPage), nil)
	req.RemoteAddr = "192.0.2.1:5555"
	rec := serve(srv, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, int64(1), srv.conns.Current())
}
