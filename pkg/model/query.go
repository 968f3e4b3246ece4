package model

import (
	"strings"
	"time"
)

type Intent string

const (
	IntentMatchResult    Intent = "match_result"
	IntentLiveScore      Intent = "live_score"
	IntentSchedule       Intent = "schedule"
	IntentStandings      Intent = "standings"
	IntentSeriesInfo     Intent = "series_info"
	IntentPlayerStats    Intent = "player_stats"
	IntentHeadToHead     Intent = "head_to_head"
	IntentAnalysis       Intent = "analysis"
	IntentGeneral        Intent = "general"
	IntentConversational Intent = "conversational"
)

// Intents lists every intent the extractor may return.
var Intents = []Intent{
	IntentMatchResult, IntentLiveScore, IntentSchedule, IntentStandings,
	IntentSeriesInfo, IntentPlayerStats, IntentHeadToHead, IntentAnalysis,
	IntentGeneral, IntentConversational,
}

// IsOpenEnded reports whether the intent can be answered without any
// resolved entity.
func (x Intent) IsOpenEnded() bool {
	return x == IntentGeneral || x == IntentConversational
}

type TimeContext string

const (
	TimePast        TimeContext = "past"
	TimePresent     TimeContext = "present"
	TimeFuture      TimeContext = "future"
	TimeUnspecified TimeContext = "unspecified"
)

const dateLayout = "2006-01-02"

// Entities are the named references pulled out of a query.
type Entities struct {
	Team     string `json:"team,omitempty" jsonschema:"Primary team mentioned, full name if known"`
	Opponent string `json:"opponent,omitempty" jsonschema:"Second team mentioned"`
	Player   string `json:"player,omitempty" jsonschema:"Player mentioned"`
	Series   string `json:"series,omitempty" jsonschema:"Tournament or series name"`
	Years    []int  `json:"years,omitempty" jsonschema:"Seasons mentioned, four digit years"`
	// TargetDate is a calendar date in YYYY-MM-DD form.
	TargetDate string `json:"target_date,omitempty" jsonschema:"Specific date in YYYY-MM-DD, today's date for 'today'"`
	// MatchOrder is an ordinal position: "1", "2", "-1" or "last", "final".
	MatchOrder string `json:"match_order,omitempty" jsonschema:"Ordinal position of a match: 1, 2, -1 for last, or 'final'"`
}

// Date parses TargetDate in loc.
func (x Entities) Date(loc *time.Location) (time.Time, bool) {
	if x.TargetDate == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(x.TargetDate), loc)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// HasSubject reports whether any team, player or series is named.
func (x Entities) HasSubject() bool {
	return x.Team != "" || x.Opponent != "" || x.Player != "" || x.Series != ""
}

// Extraction is the structured output of the intent/entity extractor.
type Extraction struct {
	Intent                Intent      `json:"intent"`
	TimeContext           TimeContext `json:"time_context"`
	Entities              Entities    `json:"entities"`
	StatsType             string      `json:"stats_type,omitempty"`
	Language              string      `json:"language"`
	NeedsClarification    bool        `json:"needs_clarification,omitempty"`
	ClarificationQuestion string      `json:"clarification_question,omitempty"`
}

// Turn is one message of the conversation.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// QueryContext carries everything known about a single request.
type QueryContext struct {
	Text        string
	History     []Turn
	Memory      SessionMemory
	Entities    Entities
	Intent      Intent
	TimeContext TimeContext
	StatsType   string
	Language    string
	Now         time.Time
}

// Subjects returns the non-empty team, opponent and player names.
func (x *QueryContext) Subjects() []string {
	var names []string
	for _, s := range []string{x.Entities.Team, x.Entities.Opponent, x.Entities.Player} {
		if s != "" {
			names = append(names, s)
		}
	}
	return names
}
