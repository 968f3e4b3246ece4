// Package disambig picks one record out of a pool of candidates using
// weighted rules.
package disambig

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/wicket/pkg/model"
	"github.com/m-mizutani/wicket/pkg/resolver"
)

const (
	ScoreOrdinalHit    = 150
	ScoreFinalLast     = 500
	ScoreTeamOpponent  = 60
	ScoreTeamPlayer    = 55
	ScoreOpener        = 14
	ScoreTeamOnly      = 10
	ScorePlayerOnly    = 5
	PenaltyNoScorecard = -100

	// ConfidenceFloor is the score below which a broader pool is tried.
	ConfidenceFloor = 40
)

// Request is the reference being resolved.
type Request struct {
	Team     string
	Opponent string
	Player   string
	Year     int
	Date     *time.Time
	// Order is an ordinal position: "1", "2", "-1", "last", "first" or "final".
	Order string
	// PreferLatest marks the request as asking for the most recent record.
	PreferLatest bool
}

func (x Request) hasEntity() bool {
	return x.Team != "" || x.Opponent != "" || x.Player != ""
}

func (x Request) hasTemporalQualifier() bool {
	return x.Year != 0 || x.Date != nil || x.Order != "" || x.PreferLatest
}

// ordinal parses Order. ok is false when no ordinal was requested.
func (x Request) ordinal() (n int, ok bool) {
	o := strings.ToLower(strings.TrimSpace(x.Order))
	switch o {
	case "":
		return 0, false
	case "first", "opener":
		return 1, true
	case "last", "final", "latest":
		return -1, true
	}
	o = strings.TrimRight(o, "stndrdth")
	n, err := strconv.Atoi(o)
	if err != nil || n == 0 {
		return 0, false
	}
	return n, true
}

func (x Request) wantsLast() bool {
	n, ok := x.ordinal()
	return ok && n == -1
}

// Result is the ranked pool with the chosen candidate.
type Result struct {
	Winner    *Candidate
	Ranked    []Candidate
	Escalated bool
}

// Select scores the pool and returns the single best candidate. On
// ErrDisambiguationAmbiguous the Result still carries the ranked pool.
// broader is used when the best score stays below ConfidenceFloor and a
// team was named.
func Select(req Request, pool, broader []Candidate) (*Result, error) {
	pool = filterByDate(pool, req.Date)
	ranked := rank(req, pool)
	result := &Result{Ranked: ranked}

	if req.Team != "" && len(broader) > 0 && (len(ranked) == 0 || ranked[0].Score < ConfidenceFloor) {
		wide := rank(req, filterByDate(broader, req.Date))
		if len(wide) > 0 && (len(ranked) == 0 || wide[0].Score > ranked[0].Score) {
			result.Ranked = wide
			result.Escalated = true
		}
	}

	if len(result.Ranked) == 0 {
		return result, goerr.Wrap(model.ErrResolutionFailure, "empty candidate pool")
	}

	top := result.Ranked[0]
	if req.hasEntity() && top.Score <= 0 {
		return result, goerr.Wrap(model.ErrResolutionFailure, "no candidate matches the requested entities",
			goerr.V("team", req.Team),
			goerr.V("opponent", req.Opponent),
			goerr.V("player", req.Player))
	}

	if len(result.Ranked) > 1 && result.Ranked[1].Score == top.Score && !req.hasTemporalQualifier() {
		return result, goerr.Wrap(model.ErrDisambiguationAmbiguous, "several candidates share the top score",
			goerr.V("score", top.Score),
			goerr.V("candidates", len(result.Ranked)))
	}

	result.Winner = &result.Ranked[0]
	return result, nil
}

func rank(req Request, pool []Candidate) []Candidate {
	seq := ordinalSequence(req, pool)

	scored := make([]Candidate, 0, len(pool))
	for _, c := range pool {
		c.Score, c.Rules = 0, nil
		for _, r := range rules {
			if r.match(req, c, seq) {
				c.Score += r.score
				c.Rules = append(c.Rules, r.name)
			}
		}
		scored = append(scored, c)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Date().Equal(b.Date()) {
			return a.Date().After(b.Date())
		}
		return a.ID() < b.ID()
	})
	return scored
}

func filterByDate(pool []Candidate, date *time.Time) []Candidate {
	if date == nil {
		return pool
	}
	var out []Candidate
	for _, c := range pool {
		if c.Match == nil {
			continue
		}
		y1, m1, d1 := c.Match.Date.In(date.Location()).Date()
		y2, m2, d2 := date.Date()
		if y1 == y2 && m1 == m2 && d1 == d2 {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return pool
	}
	return out
}

// ordinalSequence returns the id of the match at the requested position in
// the requested team's chronological sequence, or "" if none.
func ordinalSequence(req Request, pool []Candidate) string {
	n, ok := req.ordinal()
	if !ok {
		return ""
	}

	var seq []Candidate
	for _, c := range pool {
		if c.Match == nil {
			continue
		}
		if req.Team != "" && !resolver.MatchesAny(req.Team, c.participants()...) {
			continue
		}
		seq = append(seq, c)
	}
	sort.SliceStable(seq, func(i, j int) bool {
		if !seq[i].Date().Equal(seq[j].Date()) {
			return seq[i].Date().Before(seq[j].Date())
		}
		return seq[i].ID() < seq[j].ID()
	})

	idx := n - 1
	if n < 0 {
		idx = len(seq) + n
	}
	if idx < 0 || idx >= len(seq) {
		return ""
	}
	return seq[idx].ID()
}
