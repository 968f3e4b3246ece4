package verify

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Violation is one failed check.
type Violation struct {
	Check  string `json:"check"`
	Detail string `json:"detail"`
}

func (x Violation) String() string {
	return x.Check + ": " + x.Detail
}

const (
	CheckGrounding  = "grounding"
	CheckMeta       = "meta_commentary"
	CheckLanguage   = "language"
	CheckIdentifier = "internal_identifier"
	CheckClaim      = "claim"
)

// Check inspects a draft and returns what it found wrong.
type Check func(in *Input) []Violation

// DefaultChecks are the rule-based checks every draft goes through.
var DefaultChecks = []Check{
	CheckNumbersGrounded,
	CheckNoMetaCommentary,
	CheckLanguageScript,
	CheckNoInternalIdentifiers,
}

var (
	numberPattern    = regexp.MustCompile(`\d+(?:[.,]\d+)*`)
	sentenceBoundary = regexp.MustCompile(`[.!?।]+(?:\s+|$)|\n+`)
)

func normalizeNumber(s string) string {
	s = strings.ReplaceAll(s, ",", "")
	if i := strings.IndexByte(s, '.'); i < 0 {
		s = strings.TrimLeft(s, "0")
		if s == "" {
			s = "0"
		}
	}
	return s
}

func numbersIn(s string) []string {
	raw := numberPattern.FindAllString(s, -1)
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		out = append(out, normalizeNumber(r))
	}
	return out
}

// knownNumbers indexes every number of s, including the integer parts of
// decimals so "19.4 overs" supports both "19.4" and "19".
func knownNumbers(dst map[string]bool, s string) {
	for _, n := range numbersIn(s) {
		dst[n] = true
		if strings.Contains(n, ".") {
			for _, part := range strings.Split(n, ".") {
				dst[normalizeNumber(part)] = true
			}
		}
	}
}

func asYear(n string) (int, bool) {
	if len(n) != 4 {
		return 0, false
	}
	y, err := strconv.Atoi(n)
	if err != nil || y < 1870 || y > 2100 {
		return 0, false
	}
	return y, true
}

// CheckNumbersGrounded requires every number in the draft to appear in the
// evidence or the question, unless the sentence is about a year whose
// knowledge fallback is allowed.
func CheckNumbersGrounded(in *Input) []Violation {
	known := map[string]bool{}
	knownNumbers(known, in.evidenceText())
	knownNumbers(known, in.Query)

	var violations []Violation
	for _, sentence := range sentenceBoundary.Split(in.Draft, -1) {
		nums := numbersIn(sentence)
		if len(nums) == 0 {
			continue
		}

		fallback := in.fallbackAllowed(0)
		for _, n := range nums {
			if y, ok := asYear(n); ok && in.fallbackAllowed(y) {
				fallback = true
			}
		}
		if fallback {
			continue
		}

		for _, n := range nums {
			if !known[n] {
				violations = append(violations, Violation{
					Check:  CheckGrounding,
					Detail: "unsupported figure " + n + " in: " + strings.TrimSpace(sentence),
				})
			}
		}
	}
	return violations
}

var metaPhrases = []string{
	"as an ai",
	"language model",
	"my training",
	"training data",
	"knowledge cutoff",
	"knowledge cut-off",
	"my knowledge",
	"my last update",
	"based on my memory",
	"from my memory",
	"i don't have access to real-time",
	"i do not have access to real-time",
	"i cannot browse",
	"provided context",
	"provided evidence",
	"the evidence bundle",
}

// CheckNoMetaCommentary rejects drafts that talk about the model itself or
// the retrieval machinery.
func CheckNoMetaCommentary(in *Input) []Violation {
	lower := strings.ToLower(in.Draft)
	var violations []Violation
	for _, p := range metaPhrases {
		if strings.Contains(lower, p) {
			violations = append(violations, Violation{Check: CheckMeta, Detail: "contains \"" + p + "\""})
		}
	}
	return violations
}

var scripts = map[string]*unicode.RangeTable{
	"en": unicode.Latin,
	"hi": unicode.Devanagari,
	"mr": unicode.Devanagari,
	"ne": unicode.Devanagari,
	"bn": unicode.Bengali,
	"ta": unicode.Tamil,
	"te": unicode.Telugu,
	"kn": unicode.Kannada,
	"ml": unicode.Malayalam,
	"gu": unicode.Gujarati,
	"pa": unicode.Gurmukhi,
	"ur": unicode.Arabic,
	"ar": unicode.Arabic,
}

const (
	minLatinShare  = 0.8
	minNativeShare = 0.3
)

// ScriptFor returns the expected script of a language code, or nil when
// unknown.
func ScriptFor(language string) *unicode.RangeTable {
	lang := strings.ToLower(language)
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return scripts[lang]
}

// CheckLanguageScript requires the draft to be written mostly in the
// requested language's script. Proper nouns in Latin script are tolerated
// in non-Latin answers.
func CheckLanguageScript(in *Input) []Violation {
	script := ScriptFor(in.Language)
	if script == nil {
		return nil
	}

	letters, matched := 0, 0
	for _, r := range in.Draft {
		if !unicode.IsLetter(r) && !unicode.Is(unicode.Mn, r) && !unicode.Is(unicode.Mc, r) {
			continue
		}
		letters++
		if unicode.Is(script, r) {
			matched++
		}
	}
	if letters == 0 {
		return nil
	}

	minShare := minNativeShare
	if script == unicode.Latin {
		minShare = minLatinShare
	}
	if float64(matched)/float64(letters) < minShare {
		return []Violation{{Check: CheckLanguage, Detail: "answer is not written in " + in.Language}}
	}
	return nil
}

var identifierPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`),
	regexp.MustCompile(`\b[a-z]+_id\b`),
	regexp.MustCompile(`\b(?:match|series|fixture):[\w-]+`),
}

// CheckNoInternalIdentifiers rejects raw record ids or field names.
func CheckNoInternalIdentifiers(in *Input) []Violation {
	var violations []Violation
	for _, p := range identifierPatterns {
		if m := p.FindString(in.Draft); m != "" {
			violations = append(violations, Violation{Check: CheckIdentifier, Detail: "exposes " + m})
		}
	}
	for _, id := range in.Identifiers {
		if len(id) < 4 {
			continue
		}
		if strings.Contains(in.Draft, id) {
			violations = append(violations, Violation{Check: CheckIdentifier, Detail: "exposes record id " + id})
		}
	}
	return violations
}
