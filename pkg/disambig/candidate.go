package disambig

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/m-mizutani/wicket/pkg/model"
)

// Candidate is a match or series considered as the answer to a reference.
type Candidate struct {
	Match  *model.Match  `json:"match,omitempty"`
	Series *model.Series `json:"series,omitempty"`
	Score  int           `json:"score"`
	Rules  []string      `json:"rules,omitempty"`
}

func FromMatches(matches []*model.Match) []Candidate {
	out := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		out = append(out, Candidate{Match: m})
	}
	return out
}

func FromSeries(series []*model.Series) []Candidate {
	out := make([]Candidate, 0, len(series))
	for _, s := range series {
		out = append(out, Candidate{Series: s})
	}
	return out
}

func (x Candidate) ID() string {
	if x.Match != nil {
		return "match:" + string(x.Match.ID)
	}
	if x.Series != nil {
		return "series:" + string(x.Series.ID)
	}
	return ""
}

// Name is the display name the scoring rules match against.
func (x Candidate) Name() string {
	if x.Match != nil {
		return x.Match.Title()
	}
	if x.Series != nil {
		return fmt.Sprintf("%s %d", x.Series.Name, x.Series.Year)
	}
	return ""
}

// Date is the sort key. Series sort by the first day of their season.
func (x Candidate) Date() time.Time {
	if x.Match != nil {
		return x.Match.Date
	}
	if x.Series != nil && x.Series.Year > 0 {
		return time.Date(x.Series.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Time{}
}

// participants lists the names a team reference is matched against.
func (x Candidate) participants() []string {
	if x.Match != nil {
		return []string{x.Match.Home, x.Match.Away}
	}
	if x.Series != nil {
		return x.Series.Participants
	}
	return nil
}

func (x Candidate) nameHas(words ...string) bool {
	name := strings.ToLower(x.Name())
	for _, w := range words {
		if strings.Contains(name, w) {
			return true
		}
	}
	return false
}

func (x Candidate) impliesFinal() bool {
	return x.nameHas("final") && !x.nameHas("semi", "quarter")
}

var openerPattern = regexp.MustCompile(`\b(opener|opening|1st match|first match|match 1)\b`)

func (x Candidate) impliesOpener() bool {
	return openerPattern.MatchString(strings.ToLower(x.Name()))
}

func (x Candidate) withoutScorecard() bool {
	if x.Match == nil {
		return false
	}
	m := x.Match
	if m.Status == model.MatchStatusAbandoned {
		return true
	}
	return m.Status == model.MatchStatusFinished && !m.HasScorecard() && m.Winner == "" && m.Result == ""
}
