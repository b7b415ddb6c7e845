package mock

import (
	"context"
	"sync"

	"github.com/bakkerme/summary-desk/internal/summarizer"
)

// Call records one request made through Client.
type Call struct {
	Endpoint string
	Feed     summarizer.FeedRequest
	Article  summarizer.ArticleRequest
}

// Client is a concurrency-safe fake. Handle, when set, answers every call;
// otherwise Responses are handed out in order (the last one repeats) or Err
// is returned.
type Client struct {
	Handle    func(ctx context.Context, call Call) (summarizer.Response, error)
	Responses []summarizer.Response
	Err       error
	PingMsg   string
	PingErr   error

	mu    sync.Mutex
	calls []Call
}

func (c *Client) SummarizeFeed(ctx context.Context, request summarizer.FeedRequest) (summarizer.Response, error) {
	return c.do(ctx, Call{Endpoint: summarizer.EndpointFeed, Feed: request})
}

func (c *Client) SummarizeArticle(ctx context.Context, request summarizer.ArticleRequest) (summarizer.Response, error) {
	return c.do(ctx, Call{Endpoint: summarizer.EndpointArticle, Article: request})
}

func (c *Client) Ping(_ context.Context) (string, error) {
	return c.PingMsg, c.PingErr
}

// Calls returns a copy of the recorded calls.
func (c *Client) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

func (c *Client) do(ctx context.Context, call Call) (summarizer.Response, error) {
	c.mu.Lock()
	c.calls = append(c.calls, call)
	handle := c.Handle
	var (
		response summarizer.Response
		err      = c.Err
	)
	if handle == nil && err == nil && len(c.Responses) > 0 {
		response = c.Responses[0]
		if len(c.Responses) > 1 {
			c.Responses = c.Responses[1:]
		}
	}
	c.mu.Unlock()

	if handle != nil {
		return handle(ctx, call)
	}
	return response, err
}
