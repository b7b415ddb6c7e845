package impl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bakkerme/summary-desk/internal/core"
	"github.com/bakkerme/summary-desk/internal/summarizer"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const defaultBaseURL = "http://localhost:8888"

const tracerName = "github.com/bakkerme/summary-desk/internal/summarizer"

type Client struct {
	client      *http.Client
	baseURL     string
	userAgent   string
	maxBodySize int64
	tracer      trace.Tracer
}

// NewClient builds a client for the service at baseURL. A zero timeout leaves
// requests unbounded; callers bound them through the context instead.
func NewClient(timeout time.Duration, userAgent, baseURL string) *Client {
	if userAgent == "" {
		userAgent = "summary-desk/0.1"
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		client:      &http.Client{Timeout: timeout},
		baseURL:     baseURL,
		userAgent:   userAgent,
		maxBodySize: 4 << 20, // 4 MiB
		tracer:      otel.Tracer(tracerName),
	}
}

func (c *Client) SummarizeFeed(ctx context.Context, request summarizer.FeedRequest) (summarizer.Response, error) {
	if strings.TrimSpace(request.FeedURL) == "" {
		return summarizer.Response{}, fmt.Errorf("summarizer: feed url is required")
	}
	request.ArticleCount = core.ClampArticleCount(request.ArticleCount)
	return c.post(ctx, summarizer.EndpointFeed, request,
		attribute.String("summarizer.rss_url", request.FeedURL),
		attribute.Int("summarizer.num_articles", request.ArticleCount),
	)
}

func (c *Client) SummarizeArticle(ctx context.Context, request summarizer.ArticleRequest) (summarizer.Response, error) {
	if strings.TrimSpace(request.ArticleURL) == "" {
		return summarizer.Response{}, fmt.Errorf("summarizer: article url is required")
	}
	return c.post(ctx, summarizer.EndpointArticle, request,
		attribute.String("summarizer.article_url", request.ArticleURL),
	)
}

func (c *Client) Ping(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	status, body, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("summarizer: ping: %w", err)
	}
	if status < 200 || status >= 300 {
		return "", &summarizer.RemoteError{Endpoint: "/", StatusCode: status, Detail: parseDetail(body)}
	}
	var banner struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &banner); err != nil {
		return "", fmt.Errorf("summarizer: decode ping response: %w", err)
	}
	return banner.Message, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, attrs ...attribute.KeyValue) (summarizer.Response, error) {
	ctx, span := c.tracer.Start(ctx, "summarizer."+endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	logger := core.Logger(ctx)
	started := time.Now()

	response, err := c.postJSON(ctx, endpoint, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("summarize request failed", "endpoint", endpoint, "error", err, "elapsed", time.Since(started))
		return summarizer.Response{}, err
	}

	span.SetAttributes(attribute.Int("summarizer.summaries", len(response.Summaries)))
	logger.Info("summarize request completed", "endpoint", endpoint, "summaries", len(response.Summaries), "elapsed", time.Since(started))
	return response, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload any) (summarizer.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return summarizer.Response{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewReader(body))
	if err != nil {
		return summarizer.Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	status, respBody, err := c.do(req)
	if err != nil {
		return summarizer.Response{}, fmt.Errorf("summarizer: %s: %w", endpoint, err)
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("http.response.status_code", status))

	if status < 200 || status >= 300 {
		return summarizer.Response{}, &summarizer.RemoteError{
			Endpoint:   endpoint,
			StatusCode: status,
			Detail:     parseDetail(respBody),
		}
	}

	var response summarizer.Response
	if err := json.Unmarshal(respBody, &response); err != nil {
		return summarizer.Response{}, fmt.Errorf("summarizer: decode %s response: %w", endpoint, err)
	}
	if response.Summaries == nil {
		response.Summaries = []core.ArticleSummary{}
	}
	return response, nil
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, c.maxBodySize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	if int64(len(body)) > c.maxBodySize {
		return resp.StatusCode, nil, fmt.Errorf("response too large")
	}
	return resp.StatusCode, body, nil
}

// parseDetail extracts the service's error explanation. Handler errors carry
// a string detail; request validation errors carry a list of {loc, msg}.
func parseDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(envelope.Detail, &text); err == nil {
		return strings.TrimSpace(text)
	}

	var items []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &items); err != nil {
		return ""
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if item.Msg == "" {
			continue
		}
		loc := make([]string, 0, len(item.Loc))
		for _, l := range item.Loc {
			loc = append(loc, fmt.Sprint(l))
		}
		if len(loc) == 0 {
			parts = append(parts, item.Msg)
			continue
		}
		parts = append(parts, strings.Join(loc, ".")+": "+item.Msg)
	}
	return strings.Join(parts, "; ")
}
