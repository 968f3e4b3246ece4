// Package ask answers one question end to end: extraction, routing, fetch,
// disambiguation, evidence, generation and verification.
package ask

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/wicket/pkg/adapter"
	"github.com/m-mizutani/wicket/pkg/disambig"
	"github.com/m-mizutani/wicket/pkg/evidence"
	"github.com/m-mizutani/wicket/pkg/fetch"
	"github.com/m-mizutani/wicket/pkg/metrics"
	"github.com/m-mizutani/wicket/pkg/model"
	"github.com/m-mizutani/wicket/pkg/repository"
	"github.com/m-mizutani/wicket/pkg/router"
	"github.com/m-mizutani/wicket/pkg/source"
	"github.com/m-mizutani/wicket/pkg/utils/logging"
	"github.com/m-mizutani/wicket/pkg/verify"
)

// Extractor turns a question into intent and entities.
type Extractor interface {
	Extract(ctx context.Context, q *model.QueryContext) (*model.Extraction, error)
}

const (
	pathAnswer        = "answer"
	pathClarification = "clarification"
	pathNoData        = "no_data"
	pathAmbiguous     = "ambiguous"
)

// Pipeline wires the query stages together. It is safe for concurrent use;
// each Ask call is an independent pipeline instance.
type Pipeline struct {
	extractor  Extractor
	router     *router.Router
	fetcher    *fetch.Orchestrator
	aggregator *evidence.Aggregator
	verifier   *verify.Controller

	repo     repository.Repository
	storage  adapter.Storage
	now      func() time.Time
	language string

	// maxCandidates bounds the ambiguous_candidates topic.
	maxCandidates int

	wg sync.WaitGroup
}

type Option func(*Pipeline)

// WithRepository enables session persistence and archival of finished
// matches.
func WithRepository(repo repository.Repository) Option {
	return func(p *Pipeline) { p.repo = repo }
}

// WithStorage enables trace and transcript uploads.
func WithStorage(storage adapter.Storage) Option {
	return func(p *Pipeline) { p.storage = storage }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithDefaultLanguage is used when the extractor cannot tell the language.
func WithDefaultLanguage(lang string) Option {
	return func(p *Pipeline) { p.language = lang }
}

func New(extractor Extractor, rt *router.Router, fetcher *fetch.Orchestrator, aggregator *evidence.Aggregator, verifier *verify.Controller, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor:     extractor,
		router:        rt,
		fetcher:       fetcher,
		aggregator:    aggregator,
		verifier:      verifier,
		now:           time.Now,
		language:      "en",
		maxCandidates: 5,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Response is the terminal output of one question.
type Response struct {
	Answer  string
	Trace   *model.Trace
	Session *model.Session
}

// Ask answers text within session. Every terminal path yields an answer, a
// clarification question or a no-data statement; an error is returned only
// when ctx is done before that.
func (p *Pipeline) Ask(ctx context.Context, session *model.Session, text string) (*Response, error) {
	started := p.now()
	if session == nil {
		session = &model.Session{ID: model.NewSessionID(), CreatedAt: started}
	}

	trace := &model.Trace{
		ID:        model.NewTraceID(),
		SessionID: session.ID,
		Query:     text,
		Verdict:   model.VerdictUnverified,
		StartedAt: started,
	}
	logger := logging.From(ctx).With("trace_id", trace.ID, "session_id", session.ID)
	ctx = logging.With(ctx, logger)

	q := &model.QueryContext{
		Text:    text,
		History: session.History,
		Memory:  session.Memory,
		Now:     started,
	}

	ext, err := p.extractor.Extract(ctx, q)
	if err != nil {
		if ctx.Err() != nil {
			return nil, goerr.Wrap(ctx.Err(), "query abandoned during extraction")
		}
		logger.Warn("extraction failed, answering as a general question", "error", err)
		ext = &model.Extraction{Intent: model.IntentGeneral, TimeContext: model.TimeUnspecified}
	}
	if ext.Language == "" {
		ext.Language = p.language
	}
	q.Intent = ext.Intent
	q.TimeContext = ext.TimeContext
	q.StatsType = ext.StatsType
	q.Language = ext.Language
	trace.Intent = ext.Intent
	logger.Debug("query extracted", "intent", ext.Intent, "time_context", ext.TimeContext, "entities", ext.Entities, "language", ext.Language)

	if ext.NeedsClarification {
		trace.Clarification = true
		answer := ext.ClarificationQuestion
		if answer == "" {
			answer = ClarificationMessage(q.Language)
		}
		return p.finish(ctx, session, session.Memory, trace, answer, pathClarification), nil
	}

	entities, memory := ApplyContext(session.Memory, ext)
	q.Entities = entities

	plan, err := p.router.Route(q)
	if err != nil {
		if !errors.Is(err, model.ErrClarificationNeeded) {
			logger.Warn("routing failed", "error", err)
		}
		trace.Clarification = true
		answer := ext.ClarificationQuestion
		if answer == "" {
			answer = ClarificationMessage(q.Language)
		}
		return p.finish(ctx, session, session.Memory, trace, answer, pathClarification), nil
	}
	for _, s := range plan.Sources() {
		trace.Sources = append(trace.Sources, string(s))
	}
	logger.Debug("fetch plan built", "buckets", len(plan.Buckets), "tasks", len(plan.Tasks()), "fallback", plan.Fallback())

	outcome := p.fetcher.Execute(ctx, plan.Tasks())
	if ctx.Err() != nil {
		return nil, goerr.Wrap(ctx.Err(), "query abandoned during fetch")
	}
	trace.Failed = outcome.Failed()
	trace.Simplified = outcome.Simplified()
	p.archive(ctx, outcome)

	topics := rawTopics(outcome)
	identifiers := recordIDs(outcome)
	simplified := outcome.Simplified()

	path := pathAnswer
	if shouldDisambiguate(q) {
		sel := p.disambiguate(ctx, q, plan, outcome)
		switch {
		case sel.err != nil && len(sel.result.Ranked) > 0:
			path = pathAmbiguous
			trace.Ambiguous = true
			topics = append(topics, p.ambiguityTopic(sel))
			identifiers = append(identifiers, candidateIDs(sel.result)...)
		case sel.result != nil && sel.result.Winner != nil:
			winner := sel.result.Winner
			trace.Winner = winner.Name()
			focus, simple := p.focus(ctx, winner, outcome)
			topics = append(topics, focus)
			if simple {
				simplified = append(simplified, focus.Name)
			}
			identifiers = append(identifiers, winner.ID())
		}
	}

	bundle, err := p.aggregator.Build(ctx, evidence.Input{
		Query:      q,
		Topics:     topics,
		Fallback:   plan.Fallback(),
		Simplified: simplified,
	})
	if err != nil {
		logger.Warn("failed to build evidence", "error", err)
		return p.finish(ctx, session, memory, trace, NoDataMessage(q.Language), pathNoData), nil
	}
	trace.Topics = bundle.TopicNames()

	if bundle.IsEmpty() && !anyFallback(bundle) {
		logger.Debug("no evidence and no knowledge fallback")
		return p.finish(ctx, session, memory, trace, NoDataMessage(q.Language), pathNoData), nil
	}

	out, err := p.verifier.Answer(ctx, verify.GenerateRequest{
		Bundle:   bundle,
		Query:    q,
		Language: q.Language,
	}, identifiers)
	if err != nil {
		if ctx.Err() != nil {
			return nil, goerr.Wrap(ctx.Err(), "query abandoned during generation")
		}
		logger.Warn("answer generation failed", "error", err)
		return p.finish(ctx, session, memory, trace, NoDataMessage(q.Language), pathNoData), nil
	}

	trace.Verdict = out.Verdict
	trace.Regenerated = out.Regenerated
	for _, v := range out.Violations {
		trace.Violations = append(trace.Violations, v.String())
	}
	return p.finish(ctx, session, memory, trace, out.Answer, path), nil
}

func anyFallback(b *evidence.Bundle) bool {
	for _, ok := range b.Fallback {
		if ok {
			return true
		}
	}
	return false
}

// rawTopics groups task payloads by topic.
func rawTopics(outcome *fetch.Outcome) []evidence.RawTopic {
	var topics []evidence.RawTopic
	for _, r := range outcome.Results {
		t := evidence.RawTopic{Name: r.Task.Topic}
		if r.Payload != nil {
			for _, m := range r.Payload.Matches {
				t.Records = append(t.Records, m)
			}
			for _, s := range r.Payload.Series {
				t.Records = append(t.Records, s)
			}
		}
		topics = append(topics, t)
	}
	return topics
}

func recordIDs(outcome *fetch.Outcome) []string {
	var ids []string
	for _, m := range outcome.Matches {
		ids = append(ids, string(m.ID))
	}
	for _, s := range outcome.Series {
		ids = append(ids, string(s.ID))
	}
	return ids
}

// finish records the turn on the session and schedules persistence.
func (p *Pipeline) finish(ctx context.Context, session *model.Session, memory model.SessionMemory, trace *model.Trace, answer, path string) *Response {
	now := p.now()
	trace.Duration = now.Sub(trace.StartedAt)
	metrics.AnswersTotal.WithLabelValues(path).Inc()

	next := *session
	next.Memory = memory
	next.UpdatedAt = now
	if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}
	next.History = append(append([]model.Turn{}, session.History...),
		model.Turn{Role: model.RoleUser, Text: trace.Query},
		model.Turn{Role: model.RoleAssistant, Text: answer},
	)

	logging.From(ctx).Info("answered",
		"path", path,
		"intent", trace.Intent,
		"verdict", trace.Verdict,
		"regenerated", trace.Regenerated,
		"duration", trace.Duration)

	p.record(ctx, &next, trace)
	return &Response{Answer: answer, Trace: trace, Session: &next}
}

// Wait blocks until detached background work has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// background runs fn detached from the request so it never blocks or is
// cancelled by the response path.
func (p *Pipeline) background(ctx context.Context, name string, fn func(ctx context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := fn(ctx); err != nil {
			logging.From(ctx).Warn("background task failed", "task", name, "error", err)
		}
	}()
}

type selection struct {
	result *disambig.Result
	err    error
}

func shouldDisambiguate(q *model.QueryContext) bool {
	switch q.Intent {
	case model.IntentMatchResult, model.IntentLiveScore:
		return true
	}
	return q.Entities.MatchOrder != ""
}

func (p *Pipeline) request(q *model.QueryContext) disambig.Request {
	req := disambig.Request{
		Team:         q.Entities.Team,
		Opponent:     q.Entities.Opponent,
		Player:       q.Entities.Player,
		Order:        q.Entities.MatchOrder,
		PreferLatest: q.Intent == model.IntentLiveScore || q.TimeContext == model.TimePresent,
	}
	if len(q.Entities.Years) == 1 {
		req.Year = q.Entities.Years[0]
	}
	if d, ok := q.Entities.Date(p.router.Today().Location()); ok {
		req.Date = &d
	}
	return req
}

func (p *Pipeline) disambiguate(ctx context.Context, q *model.QueryContext, plan *router.Plan, outcome *fetch.Outcome) selection {
	logger := logging.From(ctx)
	req := p.request(q)
	pool := disambig.FromMatches(outcome.Matches)

	result, err := disambig.Select(req, pool, nil)
	if req.Team != "" && (len(result.Ranked) == 0 || result.Ranked[0].Score < disambig.ConfidenceFloor) {
		if broader := p.broaden(ctx, plan); len(broader) > 0 {
			result, err = disambig.Select(req, pool, broader)
		}
	}

	if err != nil {
		logger.Debug("disambiguation unresolved", "error", err, "candidates", len(result.Ranked))
		return selection{result: result, err: err}
	}
	logger.Debug("disambiguation winner",
		"winner", result.Winner.Name(),
		"score", result.Winner.Score,
		"rules", result.Winner.Rules,
		"escalated", result.Escalated)
	return selection{result: result}
}

// broaden refetches the match tasks of plan without entity filters.
func (p *Pipeline) broaden(ctx context.Context, plan *router.Plan) []disambig.Candidate {
	var tasks []router.Task
	for _, t := range plan.Tasks() {
		if t.Topic == router.TopicSeriesSummary || t.Topic == router.TopicStandings {
			continue
		}
		params := make(map[string]string, len(t.Params))
		for k, v := range t.Params {
			switch k {
			case "team", "opponent", "player":
			default:
				params[k] = v
			}
		}
		t.Params = params
		tasks = append(tasks, t)
	}
	if len(tasks) == 0 {
		return nil
	}
	return disambig.FromMatches(p.fetcher.Execute(ctx, tasks).Matches)
}

type candidateView struct {
	Name   string            `json:"name"`
	Date   string            `json:"date"`
	Status model.MatchStatus `json:"status,omitempty"`
	Venue  string            `json:"venue,omitempty"`
	Result string            `json:"result,omitempty"`
}

type ambiguity struct {
	Reason     string          `json:"reason"`
	Candidates []candidateView `json:"candidates"`
}

func (p *Pipeline) ambiguityTopic(sel selection) evidence.RawTopic {
	record := ambiguity{Reason: "several records match the question"}
	if errors.Is(sel.err, model.ErrResolutionFailure) {
		record.Reason = "no record matches the named teams or players"
	}
	if sel.result != nil {
		for i, c := range sel.result.Ranked {
			if i >= p.maxCandidates {
				break
			}
			view := candidateView{Name: c.Name(), Date: c.Date().Format("2006-01-02")}
			if c.Match != nil {
				view.Status = c.Match.Status
				view.Venue = c.Match.Venue
				view.Result = c.Match.Result
			}
			record.Candidates = append(record.Candidates, view)
		}
	}
	return evidence.RawTopic{Name: evidence.TopicAmbiguousCandidates, Records: []any{record}}
}

func candidateIDs(result *disambig.Result) []string {
	if result == nil {
		return nil
	}
	ids := make([]string, 0, len(result.Ranked))
	for _, c := range result.Ranked {
		ids = append(ids, c.ID())
	}
	return ids
}

// origin returns the task whose payload carried the match.
func origin(outcome *fetch.Outcome, id model.MatchID) (router.Task, bool) {
	for _, r := range outcome.Results {
		if r.Payload == nil {
			continue
		}
		for _, m := range r.Payload.Matches {
			if m.ID == id {
				return r.Task, true
			}
		}
	}
	return router.Task{}, false
}

// focus attaches the chosen match. Remote winners are refreshed with a
// detailed fixture lookup; archived winners are used as stored.
func (p *Pipeline) focus(ctx context.Context, winner *disambig.Candidate, outcome *fetch.Outcome) (evidence.RawTopic, bool) {
	if winner.Match == nil {
		return evidence.RawTopic{Name: evidence.TopicHistoricalMatchFocus, Records: []any{winner.Series}}, false
	}

	task, ok := origin(outcome, winner.Match.ID)
	if !ok || task.Source == router.SourceArchive {
		return evidence.RawTopic{Name: evidence.TopicHistoricalMatchFocus, Records: []any{winner.Match}}, false
	}

	res := p.fetcher.Lookup(ctx, router.Task{
		Source:   task.Source,
		Topic:    evidence.TopicMatchFocus,
		Endpoint: source.EndpointFixture,
		Params:   map[string]string{"id": string(winner.Match.ID)},
		Expanded: map[string]string{"include": "scores,venue,result"},
		TTL:      task.TTL,
		Year:     task.Year,
	})
	topic := evidence.RawTopic{Name: evidence.TopicMatchFocus, Records: []any{winner.Match}}
	if res.Err == nil && res.Payload != nil && len(res.Payload.Matches) > 0 {
		m := *winner.Match
		m.Merge(res.Payload.Matches[0])
		topic.Records = []any{&m}
	}
	return topic, res.Simplified
}
