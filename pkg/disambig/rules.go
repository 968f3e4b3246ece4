package disambig

import "github.com/m-mizutani/wicket/pkg/resolver"

// scoringRule adds score to a candidate when match holds. Rules are additive
// except the team tier, where only the first matching row applies.
type scoringRule struct {
	name  string
	score int
	match func(req Request, c Candidate, ordinalHit string) bool
}

func teamMatches(req Request, c Candidate) bool {
	return req.Team != "" && (resolver.MatchesAny(req.Team, c.participants()...) || resolver.Matches(req.Team, c.Name()))
}

func opponentMatches(req Request, c Candidate) bool {
	return req.Opponent != "" && (resolver.MatchesAny(req.Opponent, c.participants()...) || resolver.Matches(req.Opponent, c.Name()))
}

func playerMatches(req Request, c Candidate) bool {
	return req.Player != "" && resolver.Matches(req.Player, c.Name())
}

// teamTier returns the name of the team-tier row that applies, if any.
func teamTier(req Request, c Candidate) string {
	team := teamMatches(req, c)
	switch {
	case team && opponentMatches(req, c):
		return "team_opponent"
	case team && playerMatches(req, c):
		return "team_player"
	case team:
		return "team_only"
	case playerMatches(req, c):
		return "player_only"
	}
	return ""
}

func tier(name string) func(Request, Candidate, string) bool {
	return func(req Request, c Candidate, _ string) bool {
		return teamTier(req, c) == name
	}
}

var rules = []scoringRule{
	{
		name:  "ordinal_hit",
		score: ScoreOrdinalHit,
		match: func(req Request, c Candidate, hit string) bool {
			return hit != "" && c.ID() == hit
		},
	},
	{
		name:  "final_last",
		score: ScoreFinalLast,
		match: func(req Request, c Candidate, _ string) bool {
			return req.wantsLast() && c.impliesFinal()
		},
	},
	{name: "team_opponent", score: ScoreTeamOpponent, match: tier("team_opponent")},
	{name: "team_player", score: ScoreTeamPlayer, match: tier("team_player")},
	{
		name:  "opener",
		score: ScoreOpener,
		match: func(req Request, c Candidate, _ string) bool {
			n, ok := req.ordinal()
			return ok && n == 1 && c.impliesOpener()
		},
	},
	{name: "team_only", score: ScoreTeamOnly, match: tier("team_only")},
	{name: "player_only", score: ScorePlayerOnly, match: tier("player_only")},
	{
		name:  "no_scorecard",
		score: PenaltyNoScorecard,
		match: func(req Request, c Candidate, _ string) bool {
			return c.withoutScorecard()
		},
	},
}
