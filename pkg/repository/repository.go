package repository

import (
	"context"
	"sort"
	"time"

	"github.com/m-mizutani/wicket/pkg/model"
	"github.com/m-mizutani/wicket/pkg/resolver"
)

// Repository is the local persisted store. Match and series writes are
// idempotent upserts keyed by id and safe under concurrent writers; a match
// status never regresses.
type Repository interface {
	PutMatch(ctx context.Context, match *model.Match) error
	GetMatch(ctx context.Context, id model.MatchID) (*model.Match, error)
	FindMatches(ctx context.Context, query MatchQuery) ([]*model.Match, error)

	PutSeries(ctx context.Context, series *model.Series) error
	FindSeries(ctx context.Context, query SeriesQuery) ([]*model.Series, error)

	GetSession(ctx context.Context, id model.SessionID) (*model.Session, error)
	PutSession(ctx context.Context, session *model.Session) error
}

// MatchQuery selects matches. Names are matched with the resolver, so
// "CSK" finds "Chennai Super Kings". Zero values do not filter.
type MatchQuery struct {
	Team     string
	Opponent string
	Series   string
	Year     int
	Limit    int
}

type SeriesQuery struct {
	Name  string
	Team  string
	Year  int
	Limit int
}

const defaultLimit = 200

func yearRange(year int) (time.Time, time.Time) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(1, 0, 0)
}

func (x MatchQuery) accepts(m *model.Match) bool {
	if x.Year != 0 && m.Date.Year() != x.Year {
		return false
	}
	if x.Team != "" && !resolver.MatchesAny(x.Team, m.Home, m.Away) {
		return false
	}
	if x.Opponent != "" && !resolver.MatchesAny(x.Opponent, m.Home, m.Away) {
		return false
	}
	if x.Series != "" && !resolver.Matches(x.Series, m.SeriesName) {
		return false
	}
	return true
}

func (x SeriesQuery) accepts(s *model.Series) bool {
	if x.Year != 0 && s.Year != x.Year {
		return false
	}
	if x.Name != "" && !resolver.Matches(x.Name, s.Name) {
		return false
	}
	if x.Team != "" && !resolver.MatchesAny(x.Team, s.Participants...) {
		return false
	}
	return true
}

func limitOf(n int) int {
	if n <= 0 {
		return defaultLimit
	}
	return n
}

// filterMatches applies q and returns the newest matches first.
func filterMatches(all []*model.Match, q MatchQuery) []*model.Match {
	var out []*model.Match
	for _, m := range all {
		if q.accepts(m) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	if limit := limitOf(q.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out
}

func filterSeries(all []*model.Series, q SeriesQuery) []*model.Series {
	var out []*model.Series
	for _, s := range all {
		if q.accepts(s) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].ID < out[j].ID
	})
	if limit := limitOf(q.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out
}

// upsertMatch merges update into stored, or returns update when nothing is
// stored yet.
func upsertMatch(stored, update *model.Match) *model.Match {
	if stored == nil {
		m := *update
		m.UpdatedAt = time.Now().UTC()
		return &m
	}
	m := *stored
	m.Merge(update)
	m.UpdatedAt = time.Now().UTC()
	return &m
}
