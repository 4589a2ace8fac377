package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/pagerating/internal/app"
	"github.com/pscheid92/pagerating/internal/domain"
	"github.com/pscheid92/pagerating/internal/pageurl"
	apperrors "github.com/pscheid92/pagerating/internal/platform/errors"
)

type ratingResponse struct {
	domain.View
	FromCache bool `json:"fromCache"`
	Stale     bool `json:"stale,omitempty"`
}

type voteResponse struct {
	Outcome string      `json:"outcome"`
	View    domain.View `json:"view"`
}

func (s *Server) registerRatingRoutes() {
	api := s.echo.Group("/api/rating", s.profileMiddleware)
	api.GET("", s.handleGetRating)

	limiter := newRateLimiter(s.config.VoteRateLimit, s.config.VoteRateBurst)
	api.POST("/like", s.handleVote(domain.VoteLike), limiter)
	api.POST("/dislike", s.handleVote(domain.VoteDislike), limiter)

	s.echo.GET("/ws", s.handleWebSocket, s.profileMiddleware)
}

func pageURLParam(c echo.Context) (string, error) {
	raw := c.QueryParam("url")
	if raw == "" {
		return "", apperrors.ValidationError("url query parameter is required")
	}
	return raw, nil
}

func (s *Server) handleGetRating(c echo.Context) error {
	pageURL, err := pageURLParam(c)
	if err != nil {
		return err
	}

	rating, err := s.ratings.Rating(c.Request().Context(), profileID(c), pageURL)
	if err != nil {
		return serviceError(err, pageURL)
	}

	response := ratingResponse{View: rating.View, FromCache: rating.FromCache, Stale: rating.Stale}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// handleVote answers 200 for every outcome, including a failed submission; the
// response carries the unchanged view in that case.
func (s *Server) handleVote(kind domain.VoteKind) echo.HandlerFunc {
	return func(c echo.Context) error {
		pageURL, err := pageURLParam(c)
		if err != nil {
			return err
		}

		result, err := s.ratings.Vote(c.Request().Context(), profileID(c), pageURL, kind)
		if err != nil {
			return serviceError(err, pageURL).WithField("vote", kind.String())
		}

		response := voteResponse{Outcome: result.Outcome.String(), View: result.Tally.View()}
		if err := c.JSON(http.StatusOK, response); err != nil {
			return fmt.Errorf("failed to send JSON response: %w", err)
		}
		return nil
	}
}

// handleWebSocket subscribes the connection to the visitor's view channel for
// the page, then loads the rating so the client receives the current view.
func (s *Server) handleWebSocket(c echo.Context) error {
	pageURL, err := pageURLParam(c)
	if err != nil {
		return err
	}
	key, err := pageurl.Normalize(pageURL)
	if err != nil {
		return serviceError(err, pageURL)
	}

	ip := c.RealIP()
	if !s.conns.Acquire(ip) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many connections")
	}
	defer s.conns.Release(ip)

	ctx := c.Request().Context()
	profile := profileID(c)
	channel := app.Channel(profile, key)

	// Pass the response headers so a freshly issued profile cookie reaches the client.
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), c.Response().Header())
	if err != nil {
		slog.DebugContext(ctx, "WebSocket upgrade failed", "error", err)
		return nil
	}

	if err := s.hub.Register(channel, conn); err != nil {
		slog.WarnContext(ctx, "Failed to register websocket client", "page", key, "error", err)
		_ = conn.Close()
		return nil
	}
	defer s.hub.Unregister(channel, conn)

	if _, err := s.ratings.Rating(ctx, profile, pageURL); err != nil && !errors.Is(err, domain.ErrInvalidPageURL) {
		slog.WarnContext(ctx, "Initial rating load failed", "page", key, "error", err)
	}

	// Read pump: blocks until the client goes away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	return nil
}
