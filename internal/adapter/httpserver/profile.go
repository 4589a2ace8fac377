package httpserver

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	apperrors "github.com/pscheid92/pagerating/internal/platform/errors"
)

const (
	profileCookieName = "pagerating-profile"
	sessionKeyProfile = "profile_id"
	ctxKeyProfileID   = "profileID"
)

// profileMiddleware resolves the visitor profile from the signed cookie,
// issuing a new one when the cookie is missing or cannot be verified. The
// profile scopes the visitor's cache and is sent to the tally service.
func (s *Server) profileMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		// A cookie that fails verification yields a fresh session.
		session, _ := s.sessionStore.Get(c.Request(), profileCookieName)

		raw, _ := session.Values[sessionKeyProfile].(string)
		id, err := uuid.Parse(raw)
		if err != nil {
			id = uuid.New()
			session.Values[sessionKeyProfile] = id.String()
			if err := session.Save(c.Request(), c.Response()); err != nil {
				return apperrors.InternalError("failed to issue profile cookie", err)
			}
		}

		c.Set(ctxKeyProfileID, id.String())
		return next(c)
	}
}

func profileID(c echo.Context) string {
	id, _ := c.Get(ctxKeyProfileID).(string)
	return id
}
