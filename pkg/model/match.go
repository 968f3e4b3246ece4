package model

import (
	"fmt"
	"strings"
	"time"
)

type MatchID string

type MatchStatus string

const (
	MatchStatusUpcoming     MatchStatus = "upcoming"
	MatchStatusLive         MatchStatus = "live"
	MatchStatusInningsBreak MatchStatus = "innings_break"
	MatchStatusDelayed      MatchStatus = "delayed"
	MatchStatusFinished     MatchStatus = "finished"
	MatchStatusAbandoned    MatchStatus = "abandoned"
)

// stage returns the position of the status in the match lifecycle:
// 0 scheduled, 1 in progress (live family), 2 terminal. Unknown values are
// treated as scheduled.
func (s MatchStatus) stage() int {
	switch s {
	case MatchStatusLive, MatchStatusInningsBreak, MatchStatusDelayed:
		return 1
	case MatchStatusFinished, MatchStatusAbandoned:
		return 2
	default:
		return 0
	}
}

// IsLive reports whether the status belongs to the in-progress family.
func (s MatchStatus) IsLive() bool { return s.stage() == 1 }

// IsTerminal reports whether the match is finished or abandoned.
func (s MatchStatus) IsTerminal() bool { return s.stage() == 2 }

// CanAdvanceTo reports whether moving from s to next keeps the lifecycle
// monotonic. Moves inside the live family are allowed; a terminal status
// never changes.
func (s MatchStatus) CanAdvanceTo(next MatchStatus) bool {
	if s == next {
		return true
	}
	if s.IsTerminal() {
		return false
	}
	return next.stage() >= s.stage()
}

// Advance returns the status the record should carry after observing next.
func (s MatchStatus) Advance(next MatchStatus) MatchStatus {
	if s == "" {
		return next
	}
	if s.CanAdvanceTo(next) {
		return next
	}
	return s
}

// Innings is a single batting score line.
type Innings struct {
	Team    string `json:"team" firestore:"team"`
	Runs    int    `json:"runs" firestore:"runs"`
	Wickets int    `json:"wickets" firestore:"wickets"`
	Overs   string `json:"overs,omitempty" firestore:"overs"`
}

func (x Innings) String() string {
	if x.Overs == "" {
		return fmt.Sprintf("%s %d/%d", x.Team, x.Runs, x.Wickets)
	}
	return fmt.Sprintf("%s %d/%d (%s ov)", x.Team, x.Runs, x.Wickets, x.Overs)
}

// Match is a single fixture with its latest known state.
type Match struct {
	ID         MatchID     `json:"id" firestore:"id"`
	Name       string      `json:"name,omitempty" firestore:"name"`
	Home       string      `json:"home" firestore:"home"`
	Away       string      `json:"away" firestore:"away"`
	Date       time.Time   `json:"date" firestore:"date"`
	Status     MatchStatus `json:"status" firestore:"status"`
	Venue      string      `json:"venue,omitempty" firestore:"venue"`
	SeriesID   SeriesID    `json:"series_id,omitempty" firestore:"series_id"`
	SeriesName string      `json:"series_name,omitempty" firestore:"series_name"`
	Scores     []Innings   `json:"scores,omitempty" firestore:"scores"`
	Winner     string      `json:"winner,omitempty" firestore:"winner"`
	Result     string      `json:"result,omitempty" firestore:"result"`
	UpdatedAt  time.Time   `json:"-" firestore:"updated_at"`
}

// Title is the display name used for matching and for evidence, e.g.
// "India vs Pakistan, Final, Asia Cup".
func (m *Match) Title() string {
	parts := []string{m.Home + " vs " + m.Away}
	if m.Name != "" {
		parts = append(parts, m.Name)
	}
	if m.SeriesName != "" {
		parts = append(parts, m.SeriesName)
	}
	return strings.Join(parts, ", ")
}

// Involves reports whether the named participant appears exactly in the match.
// Fuzzy matching is done by the resolver package.
func (m *Match) Involves(team string) bool {
	return strings.EqualFold(m.Home, team) || strings.EqualFold(m.Away, team)
}

// HasScorecard reports whether any innings were recorded.
func (m *Match) HasScorecard() bool {
	return len(m.Scores) > 0
}

// Merge applies an observed update to the stored record without regressing
// the status. Fields present in the update win.
func (m *Match) Merge(update *Match) {
	m.Status = m.Status.Advance(update.Status)
	if m.Status != update.Status {
		// Late snapshot of an older state; keep the stored terminal data.
		return
	}
	if update.Name != "" {
		m.Name = update.Name
	}
	if update.Home != "" {
		m.Home = update.Home
	}
	if update.Away != "" {
		m.Away = update.Away
	}
	if !update.Date.IsZero() {
		m.Date = update.Date
	}
	if update.Venue != "" {
		m.Venue = update.Venue
	}
	if update.SeriesID != "" {
		m.SeriesID = update.SeriesID
	}
	if update.SeriesName != "" {
		m.SeriesName = update.SeriesName
	}
	if len(update.Scores) > 0 {
		m.Scores = update.Scores
	}
	if update.Winner != "" {
		m.Winner = update.Winner
	}
	if update.Result != "" {
		m.Result = update.Result
	}
}
