package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bakkerme/summary-desk/internal/core"
	"github.com/bakkerme/summary-desk/internal/desk"
	"github.com/labstack/echo/v4"
)

type indexPage struct {
	State          desk.ViewState
	RefreshSeconds int
}

func (s *Server) handleIndex(c echo.Context) error {
	state, err := s.desk.Snapshot(c.Request().Context(), sessionID(c))
	if err != nil {
		return deskError(err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.Render(http.StatusOK, "index.html", indexPage{
		State:          state,
		RefreshSeconds: int(s.config.Server.RefreshInterval / time.Second),
	})
}

func (s *Server) handleSummarizeRSS(c echo.Context) error {
	count := core.ParseArticleCount(c.FormValue("num_articles"))
	if _, err := s.desk.SubmitFeed(c.Request().Context(), sessionID(c), c.FormValue("rss_url"), count); err != nil {
		return deskError(err)
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleSummarizeArticle(c echo.Context) error {
	if _, err := s.desk.SubmitArticle(c.Request().Context(), sessionID(c), c.FormValue("article_url")); err != nil {
		return deskError(err)
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleState(c echo.Context) error {
	state, err := s.desk.Snapshot(c.Request().Context(), sessionID(c))
	if err != nil {
		return deskError(err)
	}
	return c.JSON(http.StatusOK, state)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "summary-desk",
	})
}

func (s *Server) handleStatus(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	backend := map[string]interface{}{
		"base_url":  s.config.Summarizer.BaseURL,
		"reachable": false,
	}
	if message, err := s.client.Ping(ctx); err != nil {
		backend["error"] = err.Error()
	} else {
		backend["reachable"] = true
		backend["message"] = message
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "running",
		"version": Version,
		"config": map[string]interface{}{
			"stale_policy":    s.config.Desk.StalePolicy,
			"request_timeout": s.config.Summarizer.HTTPTimeout.String(),
		},
		"backend": backend,
	})
}

func deskError(err error) error {
	if errors.Is(err, desk.ErrClosed) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "summary desk is shutting down")
	}
	return err
}
