// Package fetch executes fetch plans concurrently behind a TTL cache.
package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/wicket/pkg/metrics"
	"github.com/m-mizutani/wicket/pkg/model"
	"github.com/m-mizutani/wicket/pkg/router"
	"github.com/m-mizutani/wicket/pkg/utils/logging"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// Result is the outcome of one task. A failed task carries an empty payload
// and the error that caused it.
type Result struct {
	Task       router.Task
	Payload    *Payload
	Simplified bool
	Cached     bool
	Err        error
}

// Outcome is the joined result of a plan.
type Outcome struct {
	Results []*Result
	Matches []*model.Match
	Series  []*model.Series
}

// Failed returns the topics whose task failed.
func (x *Outcome) Failed() []string {
	var out []string
	for _, r := range x.Results {
		if r.Err != nil {
			out = append(out, r.Task.Topic)
		}
	}
	return out
}

// Simplified returns the topics served with expanded parameters stripped.
func (x *Outcome) Simplified() []string {
	var out []string
	for _, r := range x.Results {
		if r.Simplified {
			out = append(out, r.Task.Topic)
		}
	}
	return out
}

// Orchestrator runs tasks against registered sources.
type Orchestrator struct {
	sources map[router.Source]Source
	cache   Cache
	timeout time.Duration
	now     func() time.Time
	sem     *semaphore.Weighted
	group   singleflight.Group
}

type Option func(*Orchestrator)

func WithCache(cache Cache) Option {
	return func(o *Orchestrator) { o.cache = cache }
}

// WithTimeout bounds every upstream call.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithConcurrency limits the number of upstream calls in flight across all
// queries sharing the orchestrator.
func WithConcurrency(n int64) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.sem = semaphore.NewWeighted(n)
		}
	}
}

func WithSource(name router.Source, src Source) Option {
	return func(o *Orchestrator) { o.sources[name] = src }
}

func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sources: make(map[router.Source]Source),
		cache:   NewMemoryCache(10 * time.Minute),
		timeout: 8 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Execute runs all tasks concurrently and joins them. It returns when every
// task finished or ctx is done; tasks still running at that point keep going
// in the background and only warm the cache.
func (o *Orchestrator) Execute(ctx context.Context, tasks []router.Task) *Outcome {
	type indexed struct {
		i int
		r *Result
	}

	ch := make(chan indexed, len(tasks))
	for i, task := range tasks {
		go func(i int, task router.Task) {
			ch <- indexed{i: i, r: o.run(ctx, task)}
		}(i, task)
	}

	results := make([]*Result, len(tasks))
	remaining := len(tasks)
	for remaining > 0 {
		select {
		case x := <-ch:
			results[x.i] = x.r
			remaining--
		case <-ctx.Done():
			for i, r := range results {
				if r == nil {
					metrics.FetchTasksTotal.WithLabelValues(string(tasks[i].Source), "abandoned").Inc()
					results[i] = &Result{
						Task:    tasks[i],
						Payload: &Payload{},
						Err:     goerr.Wrap(model.ErrFetchFailure, "task abandoned", goerr.V("topic", tasks[i].Topic), goerr.V("cause", ctx.Err())),
					}
				}
			}
			remaining = 0
		}
	}

	out := &Outcome{Results: results}
	for _, r := range results {
		out.Matches = MergeMatches(out.Matches, r.Payload.Matches)
		out.Series = MergeSeries(out.Series, r.Payload.Series)
	}
	return out
}

// Lookup runs a single task synchronously with the same cache and retry
// behavior as Execute.
func (o *Orchestrator) Lookup(ctx context.Context, task router.Task) *Result {
	return o.run(ctx, task)
}

func (o *Orchestrator) run(ctx context.Context, task router.Task) *Result {
	logger := logging.From(ctx).With("topic", task.Topic, "source", task.Source)
	result := &Result{Task: task}

	payload, cached, err := o.lookup(ctx, task, task.AllParams())
	if err != nil && ctx.Err() == nil && len(task.Expanded) > 0 && isDegradable(err) {
		logger.Warn("retrying without expanded parameters", "error", err)
		payload, cached, err = o.lookup(ctx, task, task.Params)
		result.Simplified = true
	}

	if err != nil {
		logger.Warn("fetch task failed", "error", err)
		metrics.FetchTasksTotal.WithLabelValues(string(task.Source), "failed").Inc()
		result.Payload = &Payload{}
		result.Err = goerr.Wrap(model.ErrFetchFailure, "fetch task failed",
			goerr.V("topic", task.Topic),
			goerr.V("endpoint", task.Endpoint),
			goerr.V("cause", err.Error()))
		return result
	}

	outcome := "ok"
	if result.Simplified {
		outcome = "simplified"
	}
	metrics.FetchTasksTotal.WithLabelValues(string(task.Source), outcome).Inc()
	logger.Debug("fetch task done", "cached", cached, "matches", len(payload.Matches), "series", len(payload.Series))

	result.Payload = payload
	result.Cached = cached
	return result
}

func (o *Orchestrator) lookup(ctx context.Context, task router.Task, params map[string]string) (*Payload, bool, error) {
	key := Key(string(task.Source), task.Endpoint, params)

	if entry, err := o.cache.Get(ctx, key); err != nil {
		logging.From(ctx).Warn("cache read failed", "error", err)
	} else if entry != nil && entry.Fresh(o.now()) {
		metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
		return entry.Payload, true, nil
	}
	metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()

	src, ok := o.sources[task.Source]
	if !ok {
		return nil, false, goerr.New("source not registered", goerr.V("source", task.Source))
	}

	// Upstream work is detached from the caller so an abandoned request
	// still completes and stores its result.
	bg := context.WithoutCancel(ctx)
	ch := o.group.DoChan(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(bg, o.timeout)
		defer cancel()

		if o.sem != nil {
			if err := o.sem.Acquire(callCtx, 1); err != nil {
				return nil, goerr.Wrap(err, "failed to acquire fetch slot")
			}
			defer o.sem.Release(1)
		}

		started := time.Now()
		payload, err := src.Lookup(callCtx, Request{Endpoint: task.Endpoint, Params: params})
		metrics.FetchDuration.WithLabelValues(string(task.Source)).Observe(time.Since(started).Seconds())
		if err != nil {
			if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
				return nil, goerr.Wrap(context.DeadlineExceeded, "lookup timed out", goerr.V("cause", err.Error()))
			}
			return nil, err
		}
		if payload == nil {
			payload = &Payload{}
		}

		entry := &Entry{Key: key, Payload: payload, StoredAt: o.now(), TTL: task.TTL}
		if err := o.cache.Put(bg, entry); err != nil {
			logging.From(ctx).Warn("cache write failed", "error", err)
		}
		return payload, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(*Payload), false, nil
	case <-ctx.Done():
		return nil, false, goerr.Wrap(ctx.Err(), "lookup abandoned")
	}
}

func isDegradable(err error) bool {
	return errors.Is(err, model.ErrUpstreamUnavailable) || errors.Is(err, context.DeadlineExceeded)
}
