package router_test

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/wicket/pkg/model"
	"github.com/m-mizutani/wicket/pkg/router"
)

var fixedNow = time.Date(2025, 5, 20, 14, 0, 0, 0, time.UTC)

func newRouter() *router.Router {
	return router.New(router.WithClock(func() time.Time { return fixedNow }))
}

func topics(plan *router.Plan) []string {
	var out []string
	for _, t := range plan.Tasks() {
		out = append(out, t.Topic)
	}
	return out
}

func TestRouteByYear(t *testing.T) {
	testCases := []struct {
		name   string
		q      model.QueryContext
		bucket router.Bucket
		source router.Source
	}{
		{
			name:   "past year routes to archive",
			q:      model.QueryContext{Intent: model.IntentMatchResult, Entities: model.Entities{Years: []int{2022}}},
			bucket: router.BucketArchived,
			source: router.SourceArchive,
		},
		{
			name:   "future year routes to schedule",
			q:      model.QueryContext{Intent: model.IntentMatchResult, Entities: model.Entities{Years: []int{2027}}},
			bucket: router.BucketUpcoming,
			source: router.SourceSchedule,
		},
		{
			name:   "current year earlier date routes to remote history",
			q:      model.QueryContext{Intent: model.IntentMatchResult, Entities: model.Entities{Years: []int{2025}, TargetDate: "2025-04-02"}},
			bucket: router.BucketRecentPast,
			source: router.SourceHistorical,
		},
		{
			name:   "current year without date routes to remote history",
			q:      model.QueryContext{Intent: model.IntentMatchResult, Entities: model.Entities{Team: "India", Years: []int{2025}}},
			bucket: router.BucketRecentPast,
			source: router.SourceHistorical,
		},
		{
			name:   "current year with present intent routes to live",
			q:      model.QueryContext{Intent: model.IntentLiveScore, Entities: model.Entities{Years: []int{2025}}},
			bucket: router.BucketLive,
			source: router.SourceLive,
		},
		{
			name:   "later date this season routes to schedule",
			q:      model.QueryContext{Intent: model.IntentSchedule, Entities: model.Entities{TargetDate: "2025-06-01"}},
			bucket: router.BucketUpcoming,
			source: router.SourceSchedule,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			plan, err := newRouter().Route(&tc.q)
			gt.NoError(t, err)
			gt.A(t, plan.Buckets).Length(1)
			gt.Equal(t, plan.Buckets[0].Bucket, tc.bucket)
			gt.Equal(t, plan.Tasks()[0].Source, tc.source)
		})
	}
}

func TestRoutePastYearAlwaysArchived(t *testing.T) {
	r := newRouter()
	intents := []model.Intent{model.IntentLiveScore, model.IntentSchedule, model.IntentMatchResult}
	for year := 2000; year < 2025; year++ {
		for _, intent := range intents {
			plan, err := r.Route(&model.QueryContext{Intent: intent, TimeContext: model.TimePresent, Entities: model.Entities{Years: []int{year}}})
			gt.NoError(t, err)
			gt.Equal(t, plan.Buckets[0].Bucket, router.BucketArchived)
			gt.False(t, plan.HasLive())
		}
	}
}

func TestRouteFutureYearAlwaysUpcoming(t *testing.T) {
	r := newRouter()
	for year := 2026; year < 2030; year++ {
		plan, err := r.Route(&model.QueryContext{Intent: model.IntentLiveScore, TimeContext: model.TimePresent, Entities: model.Entities{Years: []int{year}}})
		gt.NoError(t, err)
		gt.Equal(t, plan.Buckets[0].Bucket, router.BucketUpcoming)
	}
}

func TestRouteTodayAddsLiveTask(t *testing.T) {
	r := newRouter()
	intents := []model.Intent{model.IntentMatchResult, model.IntentSchedule, model.IntentStandings, model.IntentPlayerStats}
	for _, intent := range intents {
		t.Run(string(intent), func(t *testing.T) {
			plan, err := r.Route(&model.QueryContext{
				Intent:   intent,
				Entities: model.Entities{Team: "India", TargetDate: "2025-05-20"},
			})
			gt.NoError(t, err)
			gt.True(t, plan.HasLive())
			gt.True(t, slices.Contains(topics(plan), router.TopicUpcomingToday))
		})
	}
}

func TestRouteTodayOverrideOnYearList(t *testing.T) {
	// Date is today but the series table for the same year was also asked.
	plan, err := newRouter().Route(&model.QueryContext{
		Intent:   model.IntentStandings,
		Entities: model.Entities{Series: "IPL", Years: []int{2025}, TargetDate: "2025-05-20"},
	})
	gt.NoError(t, err)
	gt.True(t, plan.HasLive())
}

func TestRouteMultipleYears(t *testing.T) {
	plan, err := newRouter().Route(&model.QueryContext{
		Intent:   model.IntentHeadToHead,
		Entities: model.Entities{Team: "India", Opponent: "Australia", Years: []int{2019, 2025, 2019}},
	})
	gt.NoError(t, err)
	gt.A(t, plan.Buckets).Length(2)
	gt.Equal(t, plan.Buckets[0].Year, 2019)
	gt.Equal(t, plan.Buckets[0].Bucket, router.BucketArchived)
	gt.Equal(t, plan.Buckets[1].Year, 2025)
	gt.Equal(t, plan.Buckets[1].Bucket, router.BucketRecentPast)
	gt.Equal(t, plan.Years(), []int{2019, 2025})
}

func TestRouteKnowledgeFallback(t *testing.T) {
	r := router.New(
		router.WithClock(func() time.Time { return fixedNow }),
		router.WithKnowledgeCutoff(2023),
	)
	plan, err := r.Route(&model.QueryContext{
		Intent:   model.IntentMatchResult,
		Entities: model.Entities{Team: "India", Years: []int{2022, 2024, 2025}},
	})
	gt.NoError(t, err)
	fb := plan.Fallback()
	gt.True(t, fb[2022])
	gt.False(t, fb[2024])
	gt.False(t, fb[2025])
}

func TestRouteHybrid(t *testing.T) {
	plan, err := newRouter().Route(&model.QueryContext{
		Intent:   model.IntentMatchResult,
		Entities: model.Entities{Team: "India", Opponent: "Pakistan"},
	})
	gt.NoError(t, err)
	gt.Equal(t, plan.Buckets[0].Bucket, router.BucketHybrid)
	gt.True(t, plan.Buckets[0].KnowledgeFallback)
	gt.Equal(t, plan.Tasks()[0].Source, router.SourceArchive)
	gt.Equal(t, plan.Tasks()[0].Params["opponent"], "Pakistan")
	gt.True(t, plan.Fallback()[0])
}

func TestRouteGeneralWithoutEntities(t *testing.T) {
	plan, err := newRouter().Route(&model.QueryContext{Intent: model.IntentGeneral})
	gt.NoError(t, err)
	gt.Equal(t, plan.Buckets[0].Bucket, router.BucketHybrid)
	gt.True(t, plan.Fallback()[0])

	// best-effort local lookup, bounded and unfiltered
	tasks := plan.Tasks()
	gt.A(t, tasks).Length(1)
	gt.Equal(t, tasks[0].Source, router.SourceArchive)
	gt.Equal(t, tasks[0].Params, map[string]string{"limit": "20"})
}

func TestRoutePresentIntentWithoutYear(t *testing.T) {
	plan, err := newRouter().Route(&model.QueryContext{
		Intent:      model.IntentMatchResult,
		TimeContext: model.TimePresent,
		Entities:    model.Entities{Team: "India"},
	})
	gt.NoError(t, err)
	gt.Equal(t, plan.Buckets[0].Bucket, router.BucketLive)
	gt.Equal(t, topics(plan), []string{router.TopicLiveMatches, router.TopicUpcomingToday})
}

func TestRouteClarificationNeeded(t *testing.T) {
	_, err := newRouter().Route(&model.QueryContext{Intent: model.IntentMatchResult, TimeContext: model.TimePast})
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrClarificationNeeded))
}

func TestRouteRecentPastCarriesExpandedParams(t *testing.T) {
	plan, err := newRouter().Route(&model.QueryContext{
		Intent:   model.IntentMatchResult,
		Entities: model.Entities{Team: "India", Years: []int{2025}},
	})
	gt.NoError(t, err)
	task := plan.Tasks()[0]
	gt.Equal(t, task.Params["season"], "2025")
	gt.Equal(t, task.Params["to"], "2025-05-20")
	gt.Map(t, task.Expanded).HasKey("include")
	gt.Map(t, task.AllParams()).HasKey("include")
	gt.Equal(t, task.TTL, router.DefaultTTLs.Recent)
}

func TestRouteIsPure(t *testing.T) {
	r := newRouter()
	q := &model.QueryContext{Intent: model.IntentMatchResult, Entities: model.Entities{Team: "India", Years: []int{2022}}}
	a, err := r.Route(q)
	gt.NoError(t, err)
	b, err := r.Route(q)
	gt.NoError(t, err)
	gt.Equal(t, a, b)
}
