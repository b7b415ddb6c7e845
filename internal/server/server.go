package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/bakkerme/summary-desk/internal/config"
	"github.com/bakkerme/summary-desk/internal/desk"
	"github.com/bakkerme/summary-desk/internal/render"
	"github.com/bakkerme/summary-desk/internal/summarizer"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

// Version is reported by /api/v1/status and on trace resources.
const Version = "0.1.0"

type Server struct {
	config config.EnvConfig
	desk   *desk.Desk
	client summarizer.Client
	logger *slog.Logger
	echo   *echo.Echo
}

func NewServer(cfg config.EnvConfig, d *desk.Desk, client summarizer.Client, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	renderer, err := newPageRenderer(render.NewMarkdown())
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer

	if cfg.OTel.Enabled {
		e.Use(otelecho.Middleware(cfg.OTel.ServiceName))
	}
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogError:   true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ctx := c.Request().Context()
			if v.Error == nil {
				logger.DebugContext(ctx, "request completed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds())
				return nil
			}
			logger.ErrorContext(ctx, "request failed",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"error", v.Error.Error())
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	e.Use(middleware.BodyLimit("64K"))

	server := &Server{
		config: cfg,
		desk:   d,
		client: client,
		logger: logger,
		echo:   e,
	}

	server.setupRoutes()
	return server, nil
}

func (s *Server) setupRoutes() {
	sessions := sessionMiddleware(s.config.Server.CookieSecure)

	s.echo.GET("/", s.handleIndex, sessions)
	s.echo.POST("/summarize/rss", s.handleSummarizeRSS, sessions)
	s.echo.POST("/summarize/article", s.handleSummarizeArticle, sessions)

	api := s.echo.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/status", s.handleStatus)
	api.GET("/state", s.handleState, sessions)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(addr string) error {
	s.logger.Info("starting summary desk", "addr", addr, "summarizer", s.config.Summarizer.BaseURL)
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
