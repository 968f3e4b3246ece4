package disambig_test

import (
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/wicket/pkg/disambig"
	"github.com/m-mizutani/wicket/pkg/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 14, 0, 0, 0, time.UTC)
}

func finished(id, home, away, name string, date time.Time) *model.Match {
	return &model.Match{
		ID:     model.MatchID(id),
		Home:   home,
		Away:   away,
		Name:   name,
		Date:   date,
		Status: model.MatchStatusFinished,
		Winner: home,
		Scores: []model.Innings{{Team: home, Runs: 170, Wickets: 6}, {Team: away, Runs: 150, Wickets: 9}},
	}
}

func asiaCup2022() []*model.Match {
	return []*model.Match{
		finished("ac-1", "Sri Lanka", "Afghanistan", "1st Match", day(2022, 8, 27)),
		finished("ac-2", "India", "Pakistan", "2nd Match", day(2022, 8, 28)),
		finished("ac-sf", "Sri Lanka", "India", "Super Four", day(2022, 9, 6)),
		finished("ac-semi", "Pakistan", "Afghanistan", "Semi-Final", day(2022, 9, 7)),
		finished("ac-final", "Sri Lanka", "Pakistan", "Final", day(2022, 9, 11)),
	}
}

func TestSelectFinal(t *testing.T) {
	pool := disambig.FromMatches(asiaCup2022())
	res, err := disambig.Select(disambig.Request{Year: 2022, Order: "final"}, pool, nil)
	gt.NoError(t, err)
	gt.Equal(t, res.Winner.Match.ID, model.MatchID("ac-final"))
	gt.True(t, res.Winner.Score >= disambig.ScoreFinalLast)
}

func TestSelectFinalNotSemi(t *testing.T) {
	pool := disambig.FromMatches([]*model.Match{
		finished("semi", "India", "England", "Semi-Final", day(2022, 11, 10)),
		finished("final", "Pakistan", "England", "Final", day(2022, 11, 13)),
	})
	res, err := disambig.Select(disambig.Request{Year: 2022, Order: "-1"}, pool, nil)
	gt.NoError(t, err)
	gt.Equal(t, res.Winner.Match.ID, model.MatchID("final"))

	for _, c := range res.Ranked {
		if c.Match.ID == "semi" {
			gt.True(t, c.Score < disambig.ScoreFinalLast)
		}
	}
}

func TestFinalOutranksTeamOnly(t *testing.T) {
	pool := disambig.FromMatches([]*model.Match{
		finished("league", "India", "Netherlands", "Group 2", day(2022, 10, 27)),
		finished("final", "Pakistan", "England", "Final", day(2022, 11, 13)),
	})
	res, err := disambig.Select(disambig.Request{Team: "India", Order: "last", Year: 2022}, pool, nil)
	gt.NoError(t, err)
	gt.Equal(t, res.Winner.Match.ID, model.MatchID("final"))
	gt.Equal(t, res.Ranked[1].Match.ID, model.MatchID("league"))
	gt.True(t, res.Ranked[1].Score >= disambig.ScoreTeamOnly)
}

func TestSelectAmbiguous(t *testing.T) {
	pool := disambig.FromMatches([]*model.Match{
		finished("wc-2022", "India", "Pakistan", "Super 12", day(2022, 10, 23)),
		finished("ac-2023", "India", "Pakistan", "Super Four", day(2023, 9, 10)),
	})
	res, err := disambig.Select(disambig.Request{Team: "India", Opponent: "Pakistan"}, pool, nil)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrDisambiguationAmbiguous))
	gt.V(t, res).NotNil()
	gt.A(t, res.Ranked).Length(2)
	gt.True(t, res.Winner == nil)
	gt.Equal(t, res.Ranked[0].Score, disambig.ScoreTeamOpponent)
}

func TestSelectTieBrokenByLatestDate(t *testing.T) {
	pool := disambig.FromMatches([]*model.Match{
		finished("older", "India", "Pakistan", "", day(2023, 9, 2)),
		finished("newer", "India", "Pakistan", "", day(2023, 9, 10)),
	})
	res, err := disambig.Select(disambig.Request{Team: "India", Opponent: "Pakistan", Year: 2023}, pool, nil)
	gt.NoError(t, err)
	gt.Equal(t, res.Winner.Match.ID, model.MatchID("newer"))
}

func TestSelectDeterministic(t *testing.T) {
	req := disambig.Request{Team: "Sri Lanka", Order: "final", Year: 2022}
	first, err := disambig.Select(req, disambig.FromMatches(asiaCup2022()), nil)
	gt.NoError(t, err)

	for i := 0; i < 20; i++ {
		pool := disambig.FromMatches(asiaCup2022())
		// reverse order of the pool must not change the outcome
		for l, r := 0, len(pool)-1; l < r; l, r = l+1, r-1 {
			pool[l], pool[r] = pool[r], pool[l]
		}
		res, err := disambig.Select(req, pool, nil)
		gt.NoError(t, err)
		gt.Equal(t, res.Winner.ID(), first.Winner.ID())
		gt.Equal(t, res.Winner.Score, first.Winner.Score)
	}
}

func TestTeamTierIsExclusive(t *testing.T) {
	pool := disambig.FromMatches([]*model.Match{
		finished("m1", "India", "Pakistan", "", day(2023, 9, 10)),
	})
	res, err := disambig.Select(disambig.Request{Team: "India", Opponent: "Pakistan", Year: 2023}, pool, nil)
	gt.NoError(t, err)
	gt.Equal(t, res.Winner.Score, disambig.ScoreTeamOpponent)
	gt.Equal(t, res.Winner.Rules, []string{"team_opponent"})
}

func TestOrdinalHit(t *testing.T) {
	pool := disambig.FromMatches([]*model.Match{
		finished("g1", "Chennai Super Kings", "Gujarat Titans", "Match 1", day(2023, 3, 31)),
		finished("g2", "Chennai Super Kings", "Lucknow Super Giants", "Match 6", day(2023, 4, 3)),
		finished("g3", "Mumbai Indians", "Chennai Super Kings", "Match 12", day(2023, 4, 8)),
	})

	res, err := disambig.Select(disambig.Request{Team: "CSK", Order: "2nd", Year: 2023}, pool, nil)
	gt.NoError(t, err)
	gt.Equal(t, res.Winner.Match.ID, model.MatchID("g2"))
	gt.Equal(t, res.Winner.Score, disambig.ScoreOrdinalHit+disambig.ScoreTeamOnly)

	res, err = disambig.Select(disambig.Request{Team: "CSK", Order: "1", Year: 2023}, pool, nil)
	gt.NoError(t, err)
	gt.Equal(t, res.Winner.Match.ID, model.MatchID("g1"))
	gt.Equal(t, res.Winner.Score, disambig.ScoreOrdinalHit+disambig.ScoreOpener+disambig.ScoreTeamOnly)
}

func TestAbandonedPenalty(t *testing.T) {
	washed := &model.Match{
		ID:     "rain",
		Home:   "India",
		Away:   "Pakistan",
		Date:   day(2023, 9, 2),
		Status: model.MatchStatusAbandoned,
	}
	pool := disambig.FromMatches([]*model.Match{
		washed,
		finished("played", "India", "Nepal", "", day(2023, 9, 4)),
		finished("other", "Bangladesh", "Sri Lanka", "", day(2023, 8, 31)),
	})

	res, err := disambig.Select(disambig.Request{Team: "India", Year: 2023}, pool, nil)
	gt.NoError(t, err)
	gt.Equal(t, res.Winner.Match.ID, model.MatchID("played"))
	gt.Equal(t, res.Ranked[len(res.Ranked)-1].Match.ID, model.MatchID("rain"))
	gt.Equal(t, res.Ranked[len(res.Ranked)-1].Score, disambig.ScoreTeamOnly+disambig.PenaltyNoScorecard)
}

func TestEscalationToBroaderPool(t *testing.T) {
	narrow := disambig.FromMatches([]*model.Match{
		finished("n1", "Australia", "England", "", day(2023, 6, 16)),
	})
	broader := disambig.FromMatches([]*model.Match{
		finished("n1", "Australia", "England", "", day(2023, 6, 16)),
		finished("b1", "India", "Australia", "Final", day(2023, 6, 7)),
	})

	res, err := disambig.Select(disambig.Request{Team: "India", Opponent: "Australia", Year: 2023}, narrow, broader)
	gt.NoError(t, err)
	gt.True(t, res.Escalated)
	gt.Equal(t, res.Winner.Match.ID, model.MatchID("b1"))
}

func TestNoEscalationAboveFloor(t *testing.T) {
	narrow := disambig.FromMatches([]*model.Match{
		finished("n1", "India", "Australia", "", day(2023, 6, 16)),
	})
	broader := disambig.FromMatches([]*model.Match{
		finished("b1", "India", "Australia", "Final", day(2023, 6, 7)),
	})
	res, err := disambig.Select(disambig.Request{Team: "India", Opponent: "Australia", Year: 2023}, narrow, broader)
	gt.NoError(t, err)
	gt.False(t, res.Escalated)
	gt.Equal(t, res.Winner.Match.ID, model.MatchID("n1"))
}

func TestResolutionFailure(t *testing.T) {
	_, err := disambig.Select(disambig.Request{Team: "India"}, nil, nil)
	gt.True(t, errors.Is(err, model.ErrResolutionFailure))

	pool := disambig.FromMatches([]*model.Match{
		finished("m1", "Australia", "England", "", day(2023, 6, 16)),
	})
	_, err = disambig.Select(disambig.Request{Team: "Zimbabwe", Year: 2023}, pool, nil)
	gt.True(t, errors.Is(err, model.ErrResolutionFailure))
}

func TestDateFilter(t *testing.T) {
	d := day(2023, 9, 10)
	pool := disambig.FromMatches([]*model.Match{
		finished("a", "India", "Pakistan", "", day(2023, 9, 2)),
		finished("b", "India", "Pakistan", "", day(2023, 9, 10)),
	})
	res, err := disambig.Select(disambig.Request{Team: "India", Date: &d}, pool, nil)
	gt.NoError(t, err)
	gt.Equal(t, res.Winner.Match.ID, model.MatchID("b"))
	gt.A(t, res.Ranked).Length(1)
}

func TestDateFilterUsesRequestedZone(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	d := time.Date(2023, 9, 11, 0, 0, 0, 0, ist)
	pool := disambig.FromMatches([]*model.Match{
		// 2023-09-11 04:30 IST
		finished("late", "India", "Pakistan", "", time.Date(2023, 9, 10, 23, 0, 0, 0, time.UTC)),
		finished("prev", "India", "Pakistan", "", time.Date(2023, 9, 10, 10, 0, 0, 0, time.UTC)),
	})
	res, err := disambig.Select(disambig.Request{Team: "India", Date: &d}, pool, nil)
	gt.NoError(t, err)
	gt.Equal(t, res.Winner.Match.ID, model.MatchID("late"))
	gt.A(t, res.Ranked).Length(1)
}

func TestSeriesCandidates(t *testing.T) {
	pool := disambig.FromSeries([]*model.Series{
		{ID: "ipl-2022", Name: "Indian Premier League", Year: 2022, Participants: []string{"Gujarat Titans", "Rajasthan Royals"}},
		{ID: "ipl-2023", Name: "Indian Premier League", Year: 2023, Participants: []string{"Chennai Super Kings", "Gujarat Titans"}},
	})
	res, err := disambig.Select(disambig.Request{Team: "CSK"}, pool, nil)
	gt.NoError(t, err)
	gt.Equal(t, res.Winner.Series.ID, model.SeriesID("ipl-2023"))
}
