package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/pscheid92/pagerating/internal/pageurl"
)

// NewCheckOrigin returns a CheckOrigin function for the view push endpoint.
// The widget is embedded in the rated page, so a browser origin must be the
// host of the page named by the url query parameter (with or without "www.").
// Empty origins (non-browser clients) are allowed. When isDevelopment is true,
// localhost origins are additionally allowed.
func NewCheckOrigin(isDevelopment bool) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}

		if isDevelopment && isLocalhostOrigin(origin) {
			return true
		}

		if originHost(origin) != "" && originHost(origin) == pageHost(r.URL.Query().Get("url")) {
			return true
		}

		slog.Warn("WebSocket origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
		return false
	}
}

func originHost(origin string) string {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}

func pageHost(pageURL string) string {
	key, err := pageurl.Normalize(pageURL)
	if err != nil {
		return ""
	}
	host, _, _ := strings.Cut(key, "/")
	return host
}

func isLocalhostOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1"
}
