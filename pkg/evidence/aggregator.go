// Package evidence turns fetched records into a bounded, prioritized bundle.
package evidence

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"unicode"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/wicket/pkg/model"
	"github.com/m-mizutani/wicket/pkg/resolver"
	"github.com/m-mizutani/wicket/pkg/router"
	"github.com/m-mizutani/wicket/pkg/utils/logging"
)

// Topic names produced outside the router.
const (
	TopicAmbiguousCandidates  = "ambiguous_candidates"
	TopicMatchFocus           = "match_focus"
	TopicHistoricalMatchFocus = "historical_match_focus"
	TopicSquads               = "squads"
)

// DefaultPriority is the nominal topic order.
var DefaultPriority = []string{
	TopicAmbiguousCandidates,
	TopicMatchFocus,
	TopicHistoricalMatchFocus,
	router.TopicLiveMatches,
	router.TopicUpcomingToday,
	router.TopicRecentResults,
	router.TopicHistoricalMatches,
	router.TopicSeriesSummary,
	router.TopicStandings,
	router.TopicUpcomingFixtures,
	TopicSquads,
}

// RawTopic is unserialized evidence for one topic.
type RawTopic struct {
	Name    string
	Records []any
}

// Analyzer condenses raw evidence into a short brief for complex queries.
type Analyzer interface {
	Analyze(ctx context.Context, q *model.QueryContext, topics []Topic) (string, error)
}

// Classifier decides whether a query is complex.
type Classifier interface {
	IsComplex(ctx context.Context, q *model.QueryContext) (bool, error)
}

// Config bounds the bundle size in bytes.
type Config struct {
	Priority  []string `yaml:"priority"`
	TopicCap  int      `yaml:"topic_cap"`
	GlobalCap int      `yaml:"global_cap"`
	// RawSliceCap bounds the raw evidence kept next to an analysis brief.
	RawSliceCap int `yaml:"raw_slice_cap"`
}

var DefaultConfig = Config{
	Priority:    DefaultPriority,
	TopicCap:    6000,
	GlobalCap:   24000,
	RawSliceCap: 3000,
}

type Aggregator struct {
	cfg        Config
	analyzer   Analyzer
	classifier Classifier
}

type Option func(*Aggregator)

func WithConfig(cfg Config) Option {
	return func(a *Aggregator) {
		if len(cfg.Priority) == 0 {
			cfg.Priority = DefaultPriority
		}
		a.cfg = cfg
	}
}

func WithAnalyzer(analyzer Analyzer) Option {
	return func(a *Aggregator) { a.analyzer = analyzer }
}

func WithClassifier(classifier Classifier) Option {
	return func(a *Aggregator) { a.classifier = classifier }
}

func New(opts ...Option) *Aggregator {
	a := &Aggregator{cfg: DefaultConfig}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Input is what Build assembles into a bundle.
type Input struct {
	Query      *model.QueryContext
	Topics     []RawTopic
	Fallback   map[int]bool
	Simplified []string
}

// Build serializes, orders and caps the topics. For complex queries with an
// analyzer configured the bundle is the brief plus a small raw slice.
// Topics that do not fit are listed in Dropped, never omitted silently.
func (a *Aggregator) Build(ctx context.Context, in Input) (*Bundle, error) {
	topics, oversized, err := a.serialize(in.Topics, a.cfg.TopicCap)
	if err != nil {
		return nil, err
	}
	topics = a.order(topics, in.Query)

	bundle := &Bundle{
		Fallback:   in.Fallback,
		Simplified: in.Simplified,
	}

	if a.isComplex(ctx, in.Query) {
		included, _ := fit(topics, a.cfg.GlobalCap)
		brief, err := a.analyzer.Analyze(ctx, in.Query, included)
		if err != nil {
			logging.From(ctx).Warn("analysis brief failed, using raw evidence", "error", err)
		} else if brief != "" {
			raw, dropped, err := rawSlice(topics, a.cfg.RawSliceCap)
			if err != nil {
				return nil, err
			}
			bundle.Brief = brief
			bundle.Topics = raw
			bundle.Dropped = append(dropped, oversized...)
			return bundle, nil
		}
	}

	bundle.Topics, bundle.Dropped = fit(topics, a.cfg.GlobalCap)
	bundle.Dropped = append(bundle.Dropped, oversized...)
	return bundle, nil
}

func (a *Aggregator) isComplex(ctx context.Context, q *model.QueryContext) bool {
	if a.analyzer == nil || a.classifier == nil || q == nil {
		return false
	}
	complex, err := a.classifier.IsComplex(ctx, q)
	if err != nil {
		logging.From(ctx).Warn("complexity check failed", "error", err)
		return false
	}
	return complex
}

// serialize merges raw topics sharing a name and applies the per-topic cap
// by dropping tail records. Topics whose first record alone exceeds the cap
// are returned as oversized.
func (a *Aggregator) serialize(raw []RawTopic, capBytes int) ([]Topic, []string, error) {
	var names []string
	merged := map[string][]any{}
	for _, r := range raw {
		if _, ok := merged[r.Name]; !ok {
			names = append(names, r.Name)
		}
		merged[r.Name] = append(merged[r.Name], r.Records...)
	}

	topics := make([]Topic, 0, len(names))
	var oversized []string
	for _, name := range names {
		records := merged[name]
		if len(records) == 0 {
			continue
		}
		content, kept, err := encodeCapped(records, capBytes)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to encode topic", goerr.V("topic", name))
		}
		if kept == 0 {
			oversized = append(oversized, name)
			continue
		}
		topics = append(topics, Topic{
			Name:      name,
			Content:   content,
			Records:   kept,
			Truncated: kept < len(records),
			records:   records,
		})
	}
	return topics, oversized, nil
}

// rawSlice takes the leading record of each topic in bundle order until
// capBytes is used up; the remaining topics are dropped whole.
func rawSlice(topics []Topic, capBytes int) ([]Topic, []string, error) {
	var included []Topic
	used := 0
	for i, t := range topics {
		content, kept, err := encodeCapped(t.records[:1], capBytes-used-len(t.Name))
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to encode topic", goerr.V("topic", t.Name))
		}
		size := len(t.Name) + len(content)
		if kept == 0 || (capBytes > 0 && used+size > capBytes) {
			var dropped []string
			for _, rest := range topics[i:] {
				dropped = append(dropped, rest.Name)
			}
			return included, dropped, nil
		}
		used += size
		t.Content = content
		t.Records = kept
		t.Truncated = len(t.records) > kept
		included = append(included, t)
	}
	return included, nil, nil
}

// encodeCapped encodes records as a JSON array holding as many leading
// records as fit in capBytes.
func encodeCapped(records []any, capBytes int) (string, int, error) {
	var b strings.Builder
	b.WriteByte('[')
	kept := 0
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return "", 0, goerr.Wrap(err, "failed to marshal record")
		}
		extra := len(data) + 1 // closing bracket
		if kept > 0 {
			extra++
		}
		if capBytes > 0 && b.Len()+extra > capBytes {
			break
		}
		if kept > 0 {
			b.WriteByte(',')
		}
		b.Write(data)
		kept++
	}
	b.WriteByte(']')
	return b.String(), kept, nil
}

// order sorts topics by nominal priority, promoting those that mention the
// active team, opponent or player.
func (a *Aggregator) order(topics []Topic, q *model.QueryContext) []Topic {
	rank := make(map[string]int, len(a.cfg.Priority))
	for i, name := range a.cfg.Priority {
		rank[name] = i
	}
	nominal := func(name string) int {
		if r, ok := rank[name]; ok {
			return r
		}
		return len(rank)
	}

	if q != nil {
		for i := range topics {
			topics[i].Promoted = mentions(&topics[i], q)
		}
	}

	sort.SliceStable(topics, func(i, j int) bool {
		if topics[i].Promoted != topics[j].Promoted {
			return topics[i].Promoted
		}
		return nominal(topics[i].Name) < nominal(topics[j].Name)
	})
	return topics
}

// mentions reports whether the topic refers to one of the query subjects.
// Teams are resolved against participant names of match and series records;
// players and untyped records need a whole-word hit in the content.
func mentions(t *Topic, q *model.QueryContext) bool {
	var teams []string
	for _, s := range []string{q.Entities.Team, q.Entities.Opponent} {
		if s != "" {
			teams = append(teams, s)
		}
	}

	untyped := false
	for _, r := range t.records {
		var participants []string
		switch v := r.(type) {
		case *model.Match:
			participants = []string{v.Home, v.Away}
		case *model.Series:
			participants = append([]string{}, v.Participants...)
			for _, st := range v.Standings {
				participants = append(participants, st.Team)
			}
		default:
			untyped = true
			continue
		}
		for _, team := range teams {
			if resolver.MatchesAny(team, participants...) {
				return true
			}
		}
	}

	words := contentWords(t.Content)
	if q.Entities.Player != "" && containsPhrase(words, q.Entities.Player) {
		return true
	}
	if untyped {
		for _, team := range teams {
			if containsPhrase(words, team) {
				return true
			}
		}
	}
	return false
}

func contentWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// containsPhrase reports whether the words of phrase appear consecutively.
func containsPhrase(words []string, phrase string) bool {
	want := contentWords(phrase)
	if len(want) == 0 {
		return false
	}
	for i := 0; i+len(want) <= len(words); i++ {
		hit := true
		for j, w := range want {
			if words[i+j] != w {
				hit = false
				break
			}
		}
		if hit {
			return true
		}
	}
	return false
}

// fit includes topics in order until the first one that does not fit; it and
// every later topic are dropped whole.
func fit(topics []Topic, capBytes int) (included []Topic, dropped []string) {
	used := 0
	for i, t := range topics {
		size := len(t.Name) + len(t.Content)
		if capBytes > 0 && used+size > capBytes {
			for _, rest := range topics[i:] {
				dropped = append(dropped, rest.Name)
			}
			return included, dropped
		}
		used += size
		included = append(included, t)
	}
	return included, nil
}
