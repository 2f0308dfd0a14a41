// Package api exposes the question-answering pipeline over HTTP:
// POST /api/ask plus a health endpoint, behind per-IP rate limiting.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Config holds the HTTP server settings.
type Config struct {
	ListenAddr string
	RateLimit  float64 // tokens per second per IP
	RateBurst  int     // bucket size per IP
	TrustProxy bool    // trust X-Forwarded-For from a reverse proxy
}

// Server is the JSON API server.
type Server struct {
	echo   *echo.Echo
	cfg    Config
	logger *slog.Logger
}

// NewServer wires routes and middleware around the answering service.
func NewServer(service Asker, cfg Config, logger *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	if cfg.TrustProxy {
		e.IPExtractor = echo.ExtractIPFromXFFHeader()
	} else {
		e.IPExtractor = echo.ExtractIPDirect()
	}

	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		kind := "internal"
		message := "internal server error"
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if code == http.StatusNotFound {
				kind, message = "not_found", "not found"
			} else if code == http.StatusMethodNotAllowed {
				kind, message = "method_not_allowed", "method not allowed"
			}
		} else {
			logger.Error("request failed", "path", c.Request().URL.Path, "error", err)
		}
		_ = writeError(c, code, kind, message)
	}

	e.Use(middleware.Recover())

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 1.0
	}
	rl := newRateLimiter(limit, burst)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	ah := &askHandler{service: service, logger: logger}
	e.POST("/api/ask", ah.handle, rateLimitMiddleware(rl, logger))

	return &Server{echo: e, cfg: cfg, logger: logger}
}

// Start serves until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.cfg.ListenAddr)
	if err := s.echo.Start(s.cfg.ListenAddr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routing tree for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
