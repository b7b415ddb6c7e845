// Package desk owns the view state behind the summary page. A single event
// loop goroutine (Run) holds every session's state; submissions, completed
// requests, snapshots and sweeps all reach it as events, so the state needs
// no locks.
package desk

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bakkerme/summary-desk/internal/config"
	"github.com/bakkerme/summary-desk/internal/core"
	"github.com/bakkerme/summary-desk/internal/summarizer"
	"github.com/robfig/cron/v3"
)

// ErrClosed is returned once Run has exited.
var ErrClosed = errors.New("desk: closed")

// StalePolicy decides what happens to a response whose submission has since
// been superseded by another one from the same session.
type StalePolicy string

const (
	// LastResponseWins applies every response as it arrives.
	LastResponseWins StalePolicy = config.StaleLastResponseWins
	// LatestRequestWins drops responses from superseded submissions.
	LatestRequestWins StalePolicy = config.StaleLatestRequestWins
)

type Config struct {
	StalePolicy StalePolicy
	// RequestTimeout bounds each summarize call; zero waits indefinitely.
	RequestTimeout time.Duration
	// SessionIdleTTL is how long an idle session survives a sweep.
	SessionIdleTTL time.Duration
	// SweepSchedule is a cron spec for sweeping; empty disables it.
	SweepSchedule string
}

type Desk struct {
	client summarizer.Client
	logger *slog.Logger
	config Config
	now    func() time.Time

	events chan event
	done   chan struct{}

	sessions map[string]*session
}

type event interface{}

type submitEvent struct {
	session string
	flow    Flow
	form    FormValues
	reply   chan ViewState
}

type completeEvent struct {
	session    string
	flow       Flow
	generation uint64
	response   summarizer.Response
	err        error
}

type snapshotEvent struct {
	session string
	reply   chan ViewState
}

type sweepEvent struct {
	reply chan int
}

func New(client summarizer.Client, logger *slog.Logger, cfg Config) *Desk {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StalePolicy == "" {
		cfg.StalePolicy = LastResponseWins
	}
	return &Desk{
		client:   client,
		logger:   logger,
		config:   cfg,
		now:      time.Now,
		events:   make(chan event),
		done:     make(chan struct{}),
		sessions: map[string]*session{},
	}
}

// Run processes events until ctx is cancelled. It must be called exactly once.
func (d *Desk) Run(ctx context.Context) error {
	defer close(d.done)

	if d.config.SweepSchedule != "" {
		scheduler := cron.New()
		if _, err := scheduler.AddFunc(d.config.SweepSchedule, func() {
			if _, err := d.Sweep(ctx); err != nil && !errors.Is(err, ErrClosed) && ctx.Err() == nil {
				d.logger.Warn("session sweep failed", "error", err)
			}
		}); err != nil {
			return err
		}
		scheduler.Start()
		defer func() {
			<-scheduler.Stop().Done()
		}()
	}

	d.logger.Info("desk started", "stale_policy", d.config.StalePolicy, "sweep_schedule", d.config.SweepSchedule)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-d.events:
			d.handle(ctx, ev)
		}
	}
}

// SubmitFeed starts the feed flow for a session and returns the state right
// after submission: either a validation error or loading.
func (d *Desk) SubmitFeed(ctx context.Context, sessionID, feedURL string, articleCount int) (ViewState, error) {
	return d.submit(ctx, sessionID, FlowFeed, FormValues{
		FeedURL:      core.NormalizeURL(feedURL),
		ArticleCount: core.ClampArticleCount(articleCount),
	})
}

// SubmitArticle starts the single-article flow for a session.
func (d *Desk) SubmitArticle(ctx context.Context, sessionID, articleURL string) (ViewState, error) {
	return d.submit(ctx, sessionID, FlowArticle, FormValues{
		ArticleURL: core.NormalizeURL(articleURL),
	})
}

// Snapshot returns a copy of the session's current state. Unknown sessions
// get the initial state.
func (d *Desk) Snapshot(ctx context.Context, sessionID string) (ViewState, error) {
	reply := make(chan ViewState, 1)
	if err := d.send(ctx, snapshotEvent{session: sessionID, reply: reply}); err != nil {
		return ViewState{}, err
	}
	return await(ctx, d.done, reply)
}

// Sweep drops sessions idle for longer than SessionIdleTTL that have nothing
// in flight, and reports how many went.
func (d *Desk) Sweep(ctx context.Context) (int, error) {
	reply := make(chan int, 1)
	if err := d.send(ctx, sweepEvent{reply: reply}); err != nil {
		return 0, err
	}
	return await(ctx, d.done, reply)
}

func (d *Desk) submit(ctx context.Context, sessionID string, flow Flow, form FormValues) (ViewState, error) {
	reply := make(chan ViewState, 1)
	if err := d.send(ctx, submitEvent{session: sessionID, flow: flow, form: form, reply: reply}); err != nil {
		return ViewState{}, err
	}
	return await(ctx, d.done, reply)
}

func (d *Desk) send(ctx context.Context, ev event) error {
	select {
	case d.events <- ev:
		return nil
	case <-d.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func await[T any](ctx context.Context, done <-chan struct{}, reply <-chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-done:
		// Run may have answered just before exiting.
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, ErrClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (d *Desk) handle(ctx context.Context, ev event) {
	switch ev := ev.(type) {
	case submitEvent:
		ev.reply <- d.handleSubmit(ctx, ev)
	case completeEvent:
		d.handleComplete(ev)
	case snapshotEvent:
		if s, ok := d.sessions[ev.session]; ok {
			s.lastSeen = d.now()
			ev.reply <- s.view.clone()
			return
		}
		ev.reply <- newViewState()
	case sweepEvent:
		ev.reply <- d.handleSweep()
	}
}

func (d *Desk) handleSubmit(ctx context.Context, ev submitEvent) ViewState {
	s, ok := d.sessions[ev.session]
	if !ok {
		s = &session{view: newViewState()}
		d.sessions[ev.session] = s
	}
	s.lastSeen = d.now()

	switch ev.flow {
	case FlowFeed:
		s.view.Form.FeedURL = ev.form.FeedURL
		s.view.Form.ArticleCount = ev.form.ArticleCount
	case FlowArticle:
		s.view.Form.ArticleURL = ev.form.ArticleURL
	}

	s.view.Summaries = []core.ArticleSummary{}
	s.view.Message = ""
	s.view.Error = ""
	s.generation++

	logger := d.logger.With("session", ev.session, "flow", string(ev.flow))

	var url string
	if ev.flow == FlowArticle {
		url = ev.form.ArticleURL
	} else {
		url = ev.form.FeedURL
	}
	if url == "" {
		s.view.Error = ev.flow.validationMessage()
		s.view.IsLoading = false
		logger.Debug("submission rejected", "reason", "missing url")
		return s.view.clone()
	}

	s.view.IsLoading = true
	s.inFlight++
	logger.Info("submission started", "url", url, "generation", s.generation)

	go d.call(core.WithLogger(ctx, logger), ev.session, ev.flow, ev.form, s.generation)
	return s.view.clone()
}

// call performs one summarize request off the loop and reports back.
func (d *Desk) call(ctx context.Context, sessionID string, flow Flow, form FormValues, generation uint64) {
	if d.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.RequestTimeout)
		defer cancel()
	}

	var (
		response summarizer.Response
		err      error
	)
	switch flow {
	case FlowArticle:
		response, err = d.client.SummarizeArticle(ctx, summarizer.ArticleRequest{ArticleURL: form.ArticleURL})
	default:
		response, err = d.client.SummarizeFeed(ctx, summarizer.FeedRequest{FeedURL: form.FeedURL, ArticleCount: form.ArticleCount})
	}

	select {
	case d.events <- completeEvent{session: sessionID, flow: flow, generation: generation, response: response, err: err}:
	case <-d.done:
	}
}

func (d *Desk) handleComplete(ev completeEvent) {
	s, ok := d.sessions[ev.session]
	if !ok {
		return
	}
	s.inFlight--
	s.lastSeen = d.now()

	logger := d.logger.With("session", ev.session, "flow", string(ev.flow), "generation", ev.generation)
	if d.config.StalePolicy == LatestRequestWins && ev.generation != s.generation {
		logger.Debug("discarding stale response", "current_generation", s.generation)
		return
	}

	s.view.IsLoading = false
	if ev.err != nil {
		s.view.Summaries = []core.ArticleSummary{}
		s.view.Message = ""
		s.view.Error = failureMessage(ev.flow, ev.err)
		logger.Warn("submission failed", "error", ev.err)
		return
	}

	s.view.Summaries = ev.response.Summaries
	if s.view.Summaries == nil {
		s.view.Summaries = []core.ArticleSummary{}
	}
	s.view.Message = ev.response.Message
	s.view.Error = ""
	if ev.flow == FlowArticle && len(s.view.Summaries) != 1 {
		logger.Warn("article response with unexpected summary count", "summaries", len(s.view.Summaries))
	}
}

func (d *Desk) handleSweep() int {
	if d.config.SessionIdleTTL <= 0 {
		return 0
	}
	cutoff := d.now().Add(-d.config.SessionIdleTTL)
	removed := 0
	for id, s := range d.sessions {
		if s.inFlight > 0 || s.lastSeen.After(cutoff) {
			continue
		}
		delete(d.sessions, id)
		removed++
	}
	if removed > 0 {
		d.logger.Info("swept idle sessions", "removed", removed, "remaining", len(d.sessions))
	}
	return removed
}
