package summarizer

import (
	"context"
	"fmt"

	"github.com/bakkerme/summary-desk/internal/core"
)

const (
	EndpointFeed    = "summarize_rss"
	EndpointArticle = "summarize_article"
)

// FeedRequest asks the service to summarise the first ArticleCount entries of a feed.
type FeedRequest struct {
	FeedURL      string `json:"rss_url"`
	ArticleCount int    `json:"num_articles"`
}

// ArticleRequest asks the service to summarise a single article.
type ArticleRequest struct {
	ArticleURL string `json:"article_url"`
}

// Response is the success payload of both summarize endpoints.
type Response struct {
	Summaries []core.ArticleSummary `json:"summaries"`
	Message   string                `json:"message"`
}

// Client talks to the remote summarization service.
type Client interface {
	SummarizeFeed(ctx context.Context, request FeedRequest) (Response, error)
	SummarizeArticle(ctx context.Context, request ArticleRequest) (Response, error)
	// Ping calls the service root and returns its banner message.
	Ping(ctx context.Context) (string, error)
}

// RemoteError is a non-success HTTP answer from the service. Detail holds the
// service's own explanation when the body carried one.
type RemoteError struct {
	Endpoint   string
	StatusCode int
	Detail     string
}

func (e *RemoteError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("summarizer: %s returned status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("summarizer: %s returned status %d: %s", e.Endpoint, e.StatusCode, e.Detail)
}
