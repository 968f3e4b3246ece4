package verify_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/wicket/pkg/evidence"
	"github.com/m-mizutani/wicket/pkg/verify"
)

func finalBundle() *evidence.Bundle {
	return &evidence.Bundle{
		Topics: []evidence.Topic{{
			Name:    "historical_match_focus",
			Content: `[{"id":"ac22-final","home":"Sri Lanka","away":"Pakistan","name":"Final","date":"2022-09-11T14:00:00Z","status":"finished","scores":[{"team":"Sri Lanka","runs":170,"wickets":6,"overs":"20"},{"team":"Pakistan","runs":147,"wickets":10,"overs":"20"}],"winner":"Sri Lanka","result":"Sri Lanka won by 23 runs"}]`,
			Records: 1,
		}},
		Fallback: map[int]bool{2022: false},
	}
}

func TestCheckNumbersGrounded(t *testing.T) {
	in := &verify.Input{
		Draft:  "Sri Lanka won the 2022 final on 11 September, beating Pakistan by 23 runs after posting 170/6.",
		Bundle: finalBundle(),
	}
	gt.A(t, verify.CheckNumbersGrounded(in)).Length(0)

	in = &verify.Input{
		Draft:  "Sri Lanka won by 45 runs.",
		Bundle: finalBundle(),
	}
	violations := verify.CheckNumbersGrounded(in)
	gt.A(t, violations).Length(1)
	gt.S(t, violations[0].Detail).Contains("45")
}

func TestCheckNumbersDecimals(t *testing.T) {
	in := &verify.Input{
		Draft:  "Pakistan were bowled out in 19.4 overs. They needed 24 more.",
		Bundle: &evidence.Bundle{Topics: []evidence.Topic{{Name: "t", Content: `{"overs":"19.4","target":24}`, Records: 1}}},
	}
	gt.A(t, verify.CheckNumbersGrounded(in)).Length(0)
}

func TestCheckNumbersQueryIsEvidence(t *testing.T) {
	in := &verify.Input{
		Draft:  "There is no record of a 2031 edition yet.",
		Query:  "who won in 2031",
		Bundle: &evidence.Bundle{},
	}
	gt.A(t, verify.CheckNumbersGrounded(in)).Length(0)
}

func TestCheckNumbersKnowledgeFallback(t *testing.T) {
	bundle := &evidence.Bundle{Fallback: map[int]bool{2011: true, 2025: false}}

	allowed := &verify.Input{Draft: "India won the 2011 World Cup final by 6 wickets.", Bundle: bundle}
	gt.A(t, verify.CheckNumbersGrounded(allowed)).Length(0)

	denied := &verify.Input{Draft: "India won the 2025 final by 6 wickets.", Bundle: bundle}
	gt.A(t, verify.CheckNumbersGrounded(denied)).Longer(0)

	hybrid := &verify.Input{Draft: "They have met 200 times.", Bundle: &evidence.Bundle{Fallback: map[int]bool{0: true}}}
	gt.A(t, verify.CheckNumbersGrounded(hybrid)).Length(0)
}

func TestCheckNoMetaCommentary(t *testing.T) {
	gt.A(t, verify.CheckNoMetaCommentary(&verify.Input{Draft: "Based on my training data, India won."})).Longer(0)
	gt.A(t, verify.CheckNoMetaCommentary(&verify.Input{Draft: "As an AI I cannot know."})).Longer(0)
	gt.A(t, verify.CheckNoMetaCommentary(&verify.Input{Draft: "India won by 5 wickets."})).Length(0)
}

func TestCheckLanguageScript(t *testing.T) {
	testCases := []struct {
		name   string
		lang   string
		draft  string
		passes bool
	}{
		{"english", "en", "India won by 5 wickets.", true},
		{"hindi", "hi", "भारत ने पाकिस्तान को 5 विकेट से हराया।", true},
		{"hindi with latin names", "hi", "भारत ने Asia Cup में पाकिस्तान को हराया।", true},
		{"hindi requested english given", "hi", "India beat Pakistan by 5 wickets.", false},
		{"english requested hindi given", "en", "भारत ने पाकिस्तान को हराया।", false},
		{"tamil", "ta", "இந்தியா வென்றது", true},
		{"region suffix", "en-IN", "India won.", true},
		{"unknown language", "xx", "anything", true},
		{"digits only", "hi", "170/6", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v := verify.CheckLanguageScript(&verify.Input{Draft: tc.draft, Language: tc.lang})
			gt.Equal(t, len(v) == 0, tc.passes)
		})
	}
}

func TestCheckNoInternalIdentifiers(t *testing.T) {
	in := &verify.Input{
		Draft:       "The match ac22-final was won by Sri Lanka.",
		Identifiers: []string{"ac22-final"},
	}
	gt.A(t, verify.CheckNoInternalIdentifiers(in)).Length(1)

	in = &verify.Input{Draft: "See series_id for details."}
	gt.A(t, verify.CheckNoInternalIdentifiers(in)).Length(1)

	in = &verify.Input{Draft: "Trace 0b7c8a4e-1f2d-4c3b-9a8e-7d6c5b4a3f21 failed."}
	gt.A(t, verify.CheckNoInternalIdentifiers(in)).Length(1)

	in = &verify.Input{Draft: "Sri Lanka won the final.", Identifiers: []string{"ac22-final", "m1"}}
	gt.A(t, verify.CheckNoInternalIdentifiers(in)).Length(0)
}
