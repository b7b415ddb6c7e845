package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/bakkerme/summary-desk/internal/config"
	"github.com/bakkerme/summary-desk/internal/core"
	"github.com/bakkerme/summary-desk/internal/desk"
	"github.com/bakkerme/summary-desk/internal/summarizer"
	"github.com/bakkerme/summary-desk/internal/summarizer/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	server *Server
	client *mock.Client
	cookie *http.Cookie
}

func newHarness(t *testing.T, client *mock.Client) *harness {
	t.Helper()
	cfg := config.Defaults()
	d := desk.New(client, nil, desk.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	srv, err := NewServer(cfg, d, client, nil)
	require.NoError(t, err)
	return &harness{server: srv, client: client}
}

func (h *harness) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if h.cookie != nil {
		req.AddCookie(h.cookie)
	}
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			h.cookie = c
		}
	}
	return rec
}

func (h *harness) postForm(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return h.do(t, req)
}

func (h *harness) state(t *testing.T) desk.ViewState {
	t.Helper()
	rec := h.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/state", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var state desk.ViewState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	return state
}

func (h *harness) waitSettled(t *testing.T) desk.ViewState {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		state := h.state(t)
		if !state.IsLoading {
			return state
		}
		require.False(t, time.Now().After(deadline), "request never settled")
		time.Sleep(5 * time.Millisecond)
	}
}

func (h *harness) index(t *testing.T) string {
	t.Helper()
	rec := h.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestIndex_InitialPage(t *testing.T) {
	h := newHarness(t, &mock.Client{})

	body := h.index(t)

	assert.Contains(t, body, "Daily News Summarizer Bot")
	assert.Contains(t, body, "Get RSS Summaries")
	assert.Contains(t, body, "Get Article Summary")
	assert.Contains(t, body, `value="3"`)
	assert.NotContains(t, body, `http-equiv="refresh"`)
	assert.Zero(t, strings.Count(body, `class="article-summary-card"`))
	require.NotNil(t, h.cookie, "session cookie should be issued")
	assert.True(t, h.cookie.HttpOnly)
}

func TestSummarizeRSS_EmptyURL(t *testing.T) {
	client := &mock.Client{}
	h := newHarness(t, client)

	rec := h.postForm(t, "/summarize/rss", url.Values{"rss_url": {""}, "num_articles": {"3"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	body := h.index(t)
	assert.Contains(t, body, "Please enter an RSS Feed URL.")
	assert.Contains(t, body, `role="alert"`)
	assert.Empty(t, client.Calls())
}

func TestSummarizeArticle_EmptyURL(t *testing.T) {
	client := &mock.Client{}
	h := newHarness(t, client)

	h.postForm(t, "/summarize/article", url.Values{"article_url": {"  "}})

	assert.Contains(t, h.index(t), "Please enter an Article URL.")
	assert.Empty(t, client.Calls())
}

func TestSummarizeRSS_CountIsClamped(t *testing.T) {
	for _, tc := range []struct {
		raw  string
		want int
	}{
		{"-5", 1},
		{"abc", 1},
		{"7", 7},
		{"50", 10},
	} {
		client := &mock.Client{Responses: []summarizer.Response{{Message: "ok"}}}
		h := newHarness(t, client)

		h.postForm(t, "/summarize/rss", url.Values{"rss_url": {"http://feeds.example.com/rss"}, "num_articles": {tc.raw}})
		h.waitSettled(t)

		calls := client.Calls()
		require.Len(t, calls, 1, "num_articles=%q", tc.raw)
		assert.Equal(t, tc.want, calls[0].Feed.ArticleCount, "num_articles=%q", tc.raw)
	}
}

func TestSummarizeRSS_SuccessRendersCard(t *testing.T) {
	release := make(chan struct{})
	client := &mock.Client{
		Handle: func(ctx context.Context, call mock.Call) (summarizer.Response, error) {
			<-release
			return summarizer.Response{
				Summaries: []core.ArticleSummary{{Title: "A", Link: "http://x", Summary: "s"}},
				Message:   "ok",
			}, nil
		},
	}
	h := newHarness(t, client)

	h.postForm(t, "/summarize/rss", url.Values{"rss_url": {"http://feeds.example.com/rss"}, "num_articles": {"3"}})

	loading := h.index(t)
	assert.Contains(t, loading, `http-equiv="refresh"`)
	assert.Contains(t, loading, "Summarizing RSS...")
	assert.Contains(t, loading, " disabled")

	close(release)
	h.waitSettled(t)

	body := h.index(t)
	assert.Equal(t, 1, strings.Count(body, `class="article-summary-card"`))
	assert.Contains(t, body, `href="http://x"`)
	assert.Contains(t, body, `<div class="info-message">ok</div>`)
	assert.NotContains(t, body, `role="alert"`)
	assert.NotContains(t, body, `http-equiv="refresh"`)
	assert.Contains(t, body, `value="http://feeds.example.com/rss"`)
}

func TestSummarizeRSS_FailureShowsDetail(t *testing.T) {
	client := &mock.Client{Err: &summarizer.RemoteError{Endpoint: summarizer.EndpointFeed, StatusCode: http.StatusBadRequest, Detail: "bad url"}}
	h := newHarness(t, client)

	h.postForm(t, "/summarize/rss", url.Values{"rss_url": {"http://bad.example.com"}})
	state := h.waitSettled(t)

	assert.Contains(t, state.Error, "bad url")
	assert.Empty(t, state.Summaries)

	body := h.index(t)
	assert.Contains(t, body, "bad url")
	assert.Zero(t, strings.Count(body, `class="article-summary-card"`))
}

func TestSummarizeArticle_SingleCard(t *testing.T) {
	client := &mock.Client{Responses: []summarizer.Response{{
		Summaries: []core.ArticleSummary{{Title: "Story", Link: "https://example.com/story", Summary: "**Big** news"}},
		Message:   "Article summary generated successfully!",
	}}}
	h := newHarness(t, client)

	h.postForm(t, "/summarize/article", url.Values{"article_url": {"https://example.com/story"}})
	h.waitSettled(t)

	body := h.index(t)
	assert.Equal(t, 1, strings.Count(body, `class="article-summary-card"`))
	assert.Contains(t, body, "<strong>Big</strong> news")
	assert.Contains(t, body, "Read Full Article")
}

func TestSessionsDoNotLeak(t *testing.T) {
	client := &mock.Client{Err: errors.New("boom")}
	h := newHarness(t, client)

	h.postForm(t, "/summarize/rss", url.Values{"rss_url": {"http://feeds.example.com/rss"}})
	h.waitSettled(t)

	stranger := &harness{server: h.server, client: client}
	body := stranger.index(t)
	assert.NotContains(t, body, `role="alert"`)
}

func TestHealthAndStatus(t *testing.T) {
	client := &mock.Client{PingMsg: "Daily News Summarizer API is running!"}
	h := newHarness(t, client)

	rec := h.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)

	rec = h.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var status struct {
		Backend struct {
			BaseURL   string `json:"base_url"`
			Reachable bool   `json:"reachable"`
			Message   string `json:"message"`
		} `json:"backend"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "http://localhost:8888", status.Backend.BaseURL)
	assert.True(t, status.Backend.Reachable)
	assert.Equal(t, "Daily News Summarizer API is running!", status.Backend.Message)
}

func TestStatus_BackendDown(t *testing.T) {
	h := newHarness(t, &mock.Client{PingErr: errors.New("connection refused")})

	rec := h.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reachable":false`)
	assert.Contains(t, rec.Body.String(), "connection refused")
}
