package router

import (
	"sort"
	"time"
)

// Source identifies a data backend a task is executed against.
type Source string

const (
	// SourceArchive is the local persisted store.
	SourceArchive Source = "archive"
	// SourceHistorical is the remote historical lookup for the current season.
	SourceHistorical Source = "historical"
	// SourceLive is the real-time feed.
	SourceLive Source = "live"
	// SourceSchedule is the fixture schedule.
	SourceSchedule Source = "schedule"
)

type Bucket string

const (
	BucketArchived   Bucket = "archived"
	BucketRecentPast Bucket = "recent_past"
	BucketLive       Bucket = "live"
	BucketUpcoming   Bucket = "upcoming"
	BucketHybrid     Bucket = "hybrid"
)

// Evidence topic names produced by plans.
const (
	TopicLiveMatches       = "live_matches"
	TopicUpcomingToday     = "upcoming_today"
	TopicRecentResults     = "recent_results"
	TopicHistoricalMatches = "historical_matches"
	TopicSeriesSummary     = "series_summary"
	TopicStandings         = "standings"
	TopicUpcomingFixtures  = "upcoming_fixtures"
)

// Task is a single keyed lookup against a source.
type Task struct {
	Source   Source
	Topic    string
	Endpoint string
	Params   map[string]string
	// Expanded holds optional parameters that increase fidelity but may be
	// dropped when the source cannot serve them.
	Expanded map[string]string
	TTL      time.Duration
	Year     int
}

// AllParams returns Params merged with Expanded.
func (x Task) AllParams() map[string]string {
	out := make(map[string]string, len(x.Params)+len(x.Expanded))
	for k, v := range x.Params {
		out[k] = v
	}
	for k, v := range x.Expanded {
		out[k] = v
	}
	return out
}

// BucketPlan is the sub-plan for one year.
type BucketPlan struct {
	Year              int
	Bucket            Bucket
	Rule              string
	KnowledgeFallback bool
	Tasks             []Task
}

// Plan is the ordered fetch plan for one query.
type Plan struct {
	Buckets []BucketPlan
}

// Tasks flattens the plan in bucket order.
func (x *Plan) Tasks() []Task {
	var tasks []Task
	for _, b := range x.Buckets {
		tasks = append(tasks, b.Tasks...)
	}
	return tasks
}

// Sources returns the distinct sources used by the plan in first-use order.
func (x *Plan) Sources() []Source {
	seen := map[Source]bool{}
	var out []Source
	for _, t := range x.Tasks() {
		if !seen[t.Source] {
			seen[t.Source] = true
			out = append(out, t.Source)
		}
	}
	return out
}

// Fallback maps each planned year to its knowledge-fallback permission.
// Year 0 stands for a plan without a resolvable year.
func (x *Plan) Fallback() map[int]bool {
	out := make(map[int]bool, len(x.Buckets))
	for _, b := range x.Buckets {
		out[b.Year] = out[b.Year] || b.KnowledgeFallback
	}
	return out
}

// HasLive reports whether any task reads the live feed.
func (x *Plan) HasLive() bool {
	for _, t := range x.Tasks() {
		if t.Source == SourceLive {
			return true
		}
	}
	return false
}

// Years returns the distinct non-zero years of the plan in ascending order.
func (x *Plan) Years() []int {
	var years []int
	for y := range x.Fallback() {
		if y != 0 {
			years = append(years, y)
		}
	}
	sort.Ints(years)
	return years
}
