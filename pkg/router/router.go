// Package router decides which sources are authoritative for a query.
package router

import (
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/wicket/pkg/model"
)

// TTLs is the cache lifetime per topic family.
type TTLs struct {
	Live     time.Duration `yaml:"live"`
	Today    time.Duration `yaml:"today"`
	Recent   time.Duration `yaml:"recent"`
	Archive  time.Duration `yaml:"archive"`
	Schedule time.Duration `yaml:"schedule"`
}

// DefaultTTLs are used unless overridden.
var DefaultTTLs = TTLs{
	Live:     15 * time.Second,
	Today:    60 * time.Second,
	Recent:   5 * time.Minute,
	Archive:  time.Hour,
	Schedule: time.Hour,
}

// Router builds fetch plans. It holds no per-query state.
type Router struct {
	now             func() time.Time
	loc             *time.Location
	ttl             TTLs
	knowledgeCutoff int
}

type Option func(*Router)

// WithClock sets the source of "today".
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// WithLocation sets the timezone used to decide calendar days.
func WithLocation(loc *time.Location) Option {
	return func(r *Router) { r.loc = loc }
}

func WithTTLs(ttl TTLs) Option {
	return func(r *Router) { r.ttl = ttl }
}

// WithKnowledgeCutoff sets the last season general model knowledge may
// cover. Archived years up to and including it allow knowledge fallback.
func WithKnowledgeCutoff(year int) Option {
	return func(r *Router) { r.knowledgeCutoff = year }
}

func New(opts ...Option) *Router {
	r := &Router{
		now:             time.Now,
		loc:             time.UTC,
		ttl:             DefaultTTLs,
		knowledgeCutoff: 2023,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Today returns the current time in the router's location.
func (r *Router) Today() time.Time {
	return r.now().In(r.loc)
}

// Route turns a resolved query into a plan. It returns an error wrapping
// model.ErrClarificationNeeded when nothing can be fetched and the intent
// requires data.
func (r *Router) Route(q *model.QueryContext) (*Plan, error) {
	today := r.Today()
	date, hasDate := q.Entities.Date(r.loc)

	years := uniqueYears(q.Entities.Years)
	if len(years) == 0 && hasDate {
		years = []int{date.Year()}
	}

	plan := &Plan{}

	if len(years) == 0 {
		in := yearInput{year: today.Year(), today: today, intent: q.Intent, timeCtx: q.TimeContext}
		switch {
		case in.presentIntent():
			plan.Buckets = append(plan.Buckets, r.bucketPlan(q, in, BucketLive, "present intent"))
		case in.futureIntent() && q.Entities.HasSubject():
			plan.Buckets = append(plan.Buckets, r.bucketPlan(q, in, BucketUpcoming, "schedule intent"))
		case q.Entities.HasSubject() || q.Intent.IsOpenEnded():
			in.year = 0
			plan.Buckets = append(plan.Buckets, r.bucketPlan(q, in, BucketHybrid, "unresolved time"))
		default:
			return nil, goerr.Wrap(model.ErrClarificationNeeded, "no year, date or entity to route",
				goerr.V("intent", q.Intent),
				goerr.V("time_context", q.TimeContext))
		}
		return plan, nil
	}

	for _, year := range years {
		in := yearInput{year: year, today: today, intent: q.Intent, timeCtx: q.TimeContext}
		if hasDate && date.Year() == year {
			d := date
			in.date = &d
		}
		bucket, name := classify(in)
		bp := r.bucketPlan(q, in, bucket, name)

		// Same-day events are never answered without the live feed.
		if in.dateIsToday() && bucket != BucketLive {
			bp.Tasks = append(bp.Tasks, r.liveTasks(q, in)...)
		}
		plan.Buckets = append(plan.Buckets, bp)
	}

	return plan, nil
}

func (r *Router) bucketPlan(q *model.QueryContext, in yearInput, bucket Bucket, ruleName string) BucketPlan {
	bp := BucketPlan{
		Year:   in.year,
		Bucket: bucket,
		Rule:   ruleName,
	}

	switch bucket {
	case BucketArchived:
		bp.KnowledgeFallback = in.year <= r.knowledgeCutoff
		bp.Tasks = r.archiveTasks(q, in.year)
	case BucketRecentPast:
		bp.Tasks = r.recentTasks(q, in)
	case BucketLive:
		bp.Tasks = r.liveTasks(q, in)
	case BucketUpcoming:
		bp.Tasks = r.upcomingTasks(q, in)
	case BucketHybrid:
		bp.KnowledgeFallback = true
		if q.Entities.HasSubject() {
			bp.Tasks = r.archiveTasks(q, 0)
		} else {
			bp.Tasks = []Task{r.latestArchiveTask()}
		}
	}
	return bp
}

func entityParams(q *model.QueryContext) map[string]string {
	p := map[string]string{}
	if q.Entities.Team != "" {
		p["team"] = q.Entities.Team
	}
	if q.Entities.Opponent != "" {
		p["opponent"] = q.Entities.Opponent
	}
	if q.Entities.Player != "" {
		p["player"] = q.Entities.Player
	}
	if q.Entities.Series != "" {
		p["series"] = q.Entities.Series
	}
	return p
}

func withParam(p map[string]string, k, v string) map[string]string {
	out := make(map[string]string, len(p)+1)
	for key, val := range p {
		out[key] = val
	}
	if v != "" {
		out[k] = v
	}
	return out
}

func yearString(year int) string {
	if year == 0 {
		return ""
	}
	return strconv.Itoa(year)
}

func wantsSeries(q *model.QueryContext) bool {
	return q.Entities.Series != "" || q.Intent == model.IntentStandings || q.Intent == model.IntentSeriesInfo
}

func (r *Router) archiveTasks(q *model.QueryContext, year int) []Task {
	base := entityParams(q)
	tasks := []Task{{
		Source:   SourceArchive,
		Topic:    TopicHistoricalMatches,
		Endpoint: "matches",
		Params:   withParam(base, "year", yearString(year)),
		TTL:      r.ttl.Archive,
		Year:     year,
	}}
	if wantsSeries(q) {
		tasks = append(tasks, Task{
			Source:   SourceArchive,
			Topic:    TopicSeriesSummary,
			Endpoint: "series",
			Params:   withParam(base, "year", yearString(year)),
			TTL:      r.ttl.Archive,
			Year:     year,
		})
	}
	return tasks
}

// HybridLookupLimit caps the unfiltered archive lookup of a hybrid bucket
// without any named subject.
const HybridLookupLimit = 20

func (r *Router) latestArchiveTask() Task {
	return Task{
		Source:   SourceArchive,
		Topic:    TopicHistoricalMatches,
		Endpoint: "matches",
		Params:   map[string]string{"limit": strconv.Itoa(HybridLookupLimit)},
		TTL:      r.ttl.Archive,
	}
}

func (r *Router) recentTasks(q *model.QueryContext, in yearInput) []Task {
	params := withParam(entityParams(q), "season", yearString(in.year))
	if in.date != nil {
		day := in.date.Format("2006-01-02")
		params = withParam(params, "from", day)
		params = withParam(params, "to", day)
	} else {
		params = withParam(params, "to", in.today.Format("2006-01-02"))
	}
	tasks := []Task{{
		Source:   SourceHistorical,
		Topic:    TopicRecentResults,
		Endpoint: "fixtures",
		Params:   params,
		Expanded: map[string]string{"include": "scores,venue,result"},
		TTL:      r.ttl.Recent,
		Year:     in.year,
	}}
	if wantsSeries(q) {
		tasks = append(tasks, Task{
			Source:   SourceHistorical,
			Topic:    TopicStandings,
			Endpoint: "standings",
			Params:   withParam(entityParams(q), "season", yearString(in.year)),
			Expanded: map[string]string{"include": "standings"},
			TTL:      r.ttl.Recent,
			Year:     in.year,
		})
	}
	return tasks
}

func (r *Router) liveTasks(q *model.QueryContext, in yearInput) []Task {
	year := in.year
	if year == 0 {
		year = in.today.Year()
	}
	return []Task{
		{
			Source:   SourceLive,
			Topic:    TopicLiveMatches,
			Endpoint: "livescores",
			Params:   entityParams(q),
			Expanded: map[string]string{"include": "scores,venue"},
			TTL:      r.ttl.Live,
			Year:     year,
		},
		{
			Source:   SourceSchedule,
			Topic:    TopicUpcomingToday,
			Endpoint: "fixtures",
			Params:   withParam(entityParams(q), "date", in.today.Format("2006-01-02")),
			TTL:      r.ttl.Today,
			Year:     year,
		},
	}
}

func (r *Router) upcomingTasks(q *model.QueryContext, in yearInput) []Task {
	params := withParam(entityParams(q), "season", yearString(in.year))
	if in.date != nil {
		params = withParam(params, "from", in.date.Format("2006-01-02"))
		params = withParam(params, "to", in.date.Format("2006-01-02"))
	} else if in.year == in.today.Year() {
		params = withParam(params, "from", in.today.Format("2006-01-02"))
	}
	tasks := []Task{{
		Source:   SourceSchedule,
		Topic:    TopicUpcomingFixtures,
		Endpoint: "fixtures",
		Params:   params,
		TTL:      r.ttl.Schedule,
		Year:     in.year,
	}}
	if wantsSeries(q) {
		tasks = append(tasks, Task{
			Source:   SourceSchedule,
			Topic:    TopicSeriesSummary,
			Endpoint: "series",
			Params:   withParam(entityParams(q), "season", yearString(in.year)),
			TTL:      r.ttl.Schedule,
			Year:     in.year,
		})
	}
	return tasks
}

func uniqueYears(years []int) []int {
	seen := map[int]bool{}
	var out []int
	for _, y := range years {
		if y <= 0 || seen[y] {
			continue
		}
		seen[y] = true
		out = append(out, y)
	}
	return out
}
