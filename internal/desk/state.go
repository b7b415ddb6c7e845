package desk

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bakkerme/summary-desk/internal/core"
	"github.com/bakkerme/summary-desk/internal/summarizer"
)

// Flow names one of the two request paths.
type Flow string

const (
	FlowFeed    Flow = "rss"
	FlowArticle Flow = "article"
)

// FormValues echoes what the user last entered so the page can refill inputs.
type FormValues struct {
	FeedURL      string `json:"rss_url"`
	ArticleCount int    `json:"num_articles"`
	ArticleURL   string `json:"article_url"`
}

// ViewState is everything the page renders for one browser session.
type ViewState struct {
	Summaries []core.ArticleSummary `json:"summaries"`
	Message   string                `json:"message,omitempty"`
	Error     string                `json:"error,omitempty"`
	IsLoading bool                  `json:"is_loading"`
	Form      FormValues            `json:"form"`
}

func newViewState() ViewState {
	return ViewState{
		Summaries: []core.ArticleSummary{},
		Form:      FormValues{ArticleCount: core.DefaultArticleCount},
	}
}

// DisplayMessage is the informational line to show; errors hide it.
func (v ViewState) DisplayMessage() string {
	if v.Error != "" {
		return ""
	}
	return v.Message
}

func (v ViewState) clone() ViewState {
	v.Summaries = append([]core.ArticleSummary{}, v.Summaries...)
	return v
}

func (f Flow) validationMessage() string {
	if f == FlowArticle {
		return "Please enter an Article URL."
	}
	return "Please enter an RSS Feed URL."
}

func (f Flow) fallbackDetail() string {
	if f == FlowArticle {
		return "Failed to fetch article summary."
	}
	return "Failed to fetch RSS summaries."
}

func (f Flow) inputLabel() string {
	if f == FlowArticle {
		return "Article URL"
	}
	return "RSS URL"
}

// failureMessage prefers the service's detail, falls back to a generic line,
// and appends what the user should check.
func failureMessage(flow Flow, err error) string {
	detail := flow.fallbackDetail()
	var remote *summarizer.RemoteError
	if errors.As(err, &remote) && remote.Detail != "" {
		detail = remote.Detail
	}
	detail = strings.TrimRight(detail, ". ")
	return fmt.Sprintf("Error: %s. Please check the %s and ensure the backend is running.", detail, flow.inputLabel())
}

type session struct {
	view       ViewState
	generation uint64
	inFlight   int
	lastSeen   time.Time
}
