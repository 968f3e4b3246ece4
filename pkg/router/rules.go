package router

import (
	"time"

	"github.com/m-mizutani/wicket/pkg/model"
)

// yearInput is what a routing rule sees for one year of a query.
type yearInput struct {
	year    int
	date    *time.Time
	today   time.Time
	intent  model.Intent
	timeCtx model.TimeContext
}

func (x yearInput) dateIsToday() bool {
	return x.date != nil && sameDay(*x.date, x.today)
}

func (x yearInput) dateBeforeToday() bool {
	return x.date != nil && x.date.Before(startOfDay(x.today))
}

func (x yearInput) dateAfterToday() bool {
	return x.date != nil && !x.dateBeforeToday() && !x.dateIsToday()
}

func (x yearInput) presentIntent() bool {
	return x.intent == model.IntentLiveScore || x.timeCtx == model.TimePresent
}

func (x yearInput) futureIntent() bool {
	return x.intent == model.IntentSchedule || x.timeCtx == model.TimeFuture
}

// rule is one row of the routing table. Rules are evaluated top-down and
// the first match wins.
type rule struct {
	name   string
	match  func(in yearInput) bool
	bucket Bucket
}

var routingTable = []rule{
	{
		name:   "past season",
		match:  func(in yearInput) bool { return in.year < in.today.Year() },
		bucket: BucketArchived,
	},
	{
		name:   "future season",
		match:  func(in yearInput) bool { return in.year > in.today.Year() },
		bucket: BucketUpcoming,
	},
	{
		name:   "same day",
		match:  yearInput.dateIsToday,
		bucket: BucketLive,
	},
	{
		name:   "earlier this season",
		match:  yearInput.dateBeforeToday,
		bucket: BucketRecentPast,
	},
	{
		name:   "later this season",
		match:  yearInput.dateAfterToday,
		bucket: BucketUpcoming,
	},
	{
		name:   "present intent",
		match:  yearInput.presentIntent,
		bucket: BucketLive,
	},
	{
		name:   "schedule intent",
		match:  yearInput.futureIntent,
		bucket: BucketUpcoming,
	},
	{
		name:   "current season",
		match:  func(yearInput) bool { return true },
		bucket: BucketRecentPast,
	},
}

func classify(in yearInput) (Bucket, string) {
	for _, r := range routingTable {
		if r.match(in) {
			return r.bucket, r.name
		}
	}
	return BucketHybrid, "unmatched"
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
