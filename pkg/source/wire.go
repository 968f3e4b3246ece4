package source

import (
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/wicket/pkg/model"
)

type wireTeam struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

type wireVenue struct {
	Name string `json:"name"`
	City string `json:"city,omitempty"`
}

type wireSeason struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Year int    `json:"year"`
}

type wireRuns struct {
	TeamID  int64   `json:"team_id"`
	Score   int     `json:"score"`
	Wickets int     `json:"wickets"`
	Overs   float64 `json:"overs"`
}

type wireFixture struct {
	ID          int64       `json:"id"`
	Round       string      `json:"round,omitempty"`
	StartingAt  time.Time   `json:"starting_at"`
	Status      string      `json:"status"`
	LocalTeam   wireTeam    `json:"localteam"`
	VisitorTeam wireTeam    `json:"visitorteam"`
	Venue       *wireVenue  `json:"venue,omitempty"`
	Season      *wireSeason `json:"season,omitempty"`
	Runs        []wireRuns  `json:"runs,omitempty"`
	WinnerTeam  *wireTeam   `json:"winnerteam,omitempty"`
	Note        string      `json:"note,omitempty"`
}

type wireStanding struct {
	Team       wireTeam `json:"team"`
	Played     int      `json:"played"`
	Won        int      `json:"won"`
	Lost       int      `json:"lost"`
	NoResult   int      `json:"no_result"`
	Points     int      `json:"points"`
	NetRunRate float64  `json:"netto_run_rate"`
}

type wireSeries struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	Year      int            `json:"year"`
	Teams     []wireTeam     `json:"teams,omitempty"`
	Standings []wireStanding `json:"standings,omitempty"`
}

// statusOf maps feed status labels to the match lifecycle.
func statusOf(label string) model.MatchStatus {
	s := strings.ToLower(strings.TrimSpace(label))
	switch {
	case s == "ns", s == "not started", s == "upcoming", s == "postp.":
		return model.MatchStatusUpcoming
	case s == "innings break", s == "int.", s == "innings_break":
		return model.MatchStatusInningsBreak
	case s == "delayed", s == "stump day 1", s == "stump day 2", s == "stump day 3", s == "stump day 4":
		return model.MatchStatusDelayed
	case s == "finished", s == "complete":
		return model.MatchStatusFinished
	case s == "aban.", s == "abandoned", s == "cancl.", s == "no result":
		return model.MatchStatusAbandoned
	case strings.HasSuffix(s, "innings"), s == "live":
		return model.MatchStatusLive
	default:
		return model.MatchStatusUpcoming
	}
}

func formatOvers(overs float64) string {
	if overs == 0 {
		return ""
	}
	return strconv.FormatFloat(overs, 'f', -1, 64)
}

func (x *wireFixture) toMatch() *model.Match {
	m := &model.Match{
		ID:     model.MatchID(strconv.FormatInt(x.ID, 10)),
		Name:   x.Round,
		Home:   x.LocalTeam.Name,
		Away:   x.VisitorTeam.Name,
		Date:   x.StartingAt.UTC(),
		Status: statusOf(x.Status),
		Result: x.Note,
	}
	if x.Venue != nil {
		m.Venue = x.Venue.Name
		if x.Venue.City != "" {
			m.Venue += ", " + x.Venue.City
		}
	}
	if x.Season != nil {
		m.SeriesID = model.SeriesID(strconv.FormatInt(x.Season.ID, 10))
		m.SeriesName = x.Season.Name
	}
	if x.WinnerTeam != nil {
		m.Winner = x.WinnerTeam.Name
	}

	teams := map[int64]string{
		x.LocalTeam.ID:   x.LocalTeam.Name,
		x.VisitorTeam.ID: x.VisitorTeam.Name,
	}
	for _, r := range x.Runs {
		m.Scores = append(m.Scores, model.Innings{
			Team:    teams[r.TeamID],
			Runs:    r.Score,
			Wickets: r.Wickets,
			Overs:   formatOvers(r.Overs),
		})
	}
	return m
}

func (x *wireSeries) toSeries() *model.Series {
	s := &model.Series{
		ID:   model.SeriesID(strconv.FormatInt(x.ID, 10)),
		Name: x.Name,
		Year: x.Year,
	}
	for _, t := range x.Teams {
		s.Participants = append(s.Participants, t.Name)
	}
	for _, st := range x.Standings {
		s.Standings = append(s.Standings, model.Standing{
			Team:       st.Team.Name,
			Played:     st.Played,
			Won:        st.Won,
			Lost:       st.Lost,
			NoResult:   st.NoResult,
			Points:     st.Points,
			NetRunRate: st.NetRunRate,
		})
		if len(x.Teams) == 0 {
			s.Participants = append(s.Participants, st.Team.Name)
		}
	}
	return s
}
