package ask

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/wicket/pkg/adapter"
	"github.com/m-mizutani/wicket/pkg/evidence"
	"github.com/m-mizutani/wicket/pkg/model"
	"github.com/m-mizutani/wicket/pkg/verify"
	"google.golang.org/genai"
)

var (
	//go:embed prompt/extract.md
	extractPromptRaw string
	//go:embed prompt/answer.md
	answerPromptRaw string
	//go:embed prompt/analyze.md
	analyzePromptRaw string
	//go:embed prompt/claims.md
	claimsPromptRaw string
)

var (
	extractPromptTmpl = template.Must(template.New("extract").Parse(extractPromptRaw))
	answerPromptTmpl  = template.Must(template.New("answer").Parse(answerPromptRaw))
	analyzePromptTmpl = template.Must(template.New("analyze").Parse(analyzePromptRaw))
	claimsPromptTmpl  = template.Must(template.New("claims").Parse(claimsPromptRaw))
)

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", goerr.Wrap(err, "failed to execute prompt template", goerr.V("template", tmpl.Name()))
	}
	return buf.String(), nil
}

func jsonConfig(schema *genai.Schema) *genai.GenerateContentConfig {
	thinkingBudget := int32(0)
	return &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
		Temperature:      genai.Ptr(float32(0)),
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  &thinkingBudget,
		},
	}
}

// generateJSON sends prompt and decodes the structured response into out.
func generateJSON(ctx context.Context, gemini adapter.Gemini, prompt string, schema *genai.Schema, out any) error {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := gemini.GenerateContent(ctx, contents, jsonConfig(schema))
	if err != nil {
		return goerr.Wrap(err, "failed to generate content")
	}

	raw := adapter.ResponseText(resp)
	if raw == "" {
		return goerr.New("empty response from gemini")
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return goerr.Wrap(err, "failed to unmarshal response", goerr.V("json", raw))
	}
	return nil
}

func intentNames() []string {
	names := make([]string, 0, len(model.Intents))
	for _, i := range model.Intents {
		names = append(names, string(i))
	}
	return names
}

var extractionSchema = sync.OnceValues(func() (*genai.Schema, error) {
	schema, err := adapter.SchemaFor[model.Extraction]()
	if err != nil {
		return nil, err
	}
	schema.Properties["intent"].Enum = intentNames()
	schema.Properties["time_context"].Enum = []string{
		string(model.TimePast), string(model.TimePresent),
		string(model.TimeFuture), string(model.TimeUnspecified),
	}
	return schema, nil
})

// GeminiExtractor classifies queries with Gemini.
type GeminiExtractor struct {
	gemini adapter.Gemini
	loc    *time.Location
}

func NewGeminiExtractor(gemini adapter.Gemini, loc *time.Location) *GeminiExtractor {
	if loc == nil {
		loc = time.UTC
	}
	return &GeminiExtractor{gemini: gemini, loc: loc}
}

const historyWindow = 6

func recentTurns(history []model.Turn) []model.Turn {
	if len(history) > historyWindow {
		return history[len(history)-historyWindow:]
	}
	return history
}

func (x *GeminiExtractor) Extract(ctx context.Context, q *model.QueryContext) (*model.Extraction, error) {
	schema, err := extractionSchema()
	if err != nil {
		return nil, err
	}

	now := q.Now.In(x.loc)
	const day = "2006-01-02"
	var memory *model.SessionMemory
	if q.Memory != (model.SessionMemory{}) {
		memory = &q.Memory
	}
	prompt, err := render(extractPromptTmpl, map[string]any{
		"Today":     now.Format(day),
		"Weekday":   now.Weekday().String(),
		"Yesterday": now.AddDate(0, 0, -1).Format(day),
		"Tomorrow":  now.AddDate(0, 0, 1).Format(day),
		"Year":      now.Year(),
		"LastYear":  now.Year() - 1,
		"Timezone":  x.loc.String(),
		"Memory":    memory,
		"History":   recentTurns(q.History),
		"Intents":   strings.Join(intentNames(), ", "),
		"Query":     q.Text,
	})
	if err != nil {
		return nil, err
	}

	var ext model.Extraction
	if err := generateJSON(ctx, x.gemini, prompt, schema, &ext); err != nil {
		return nil, goerr.Wrap(err, "failed to extract query", goerr.V("query", q.Text))
	}
	return &ext, nil
}

// GeminiGenerator drafts answers with Gemini.
type GeminiGenerator struct {
	gemini adapter.Gemini
}

func NewGeminiGenerator(gemini adapter.Gemini) *GeminiGenerator {
	return &GeminiGenerator{gemini: gemini}
}

// fallbackYears lists the years general knowledge may cover, 0 standing
// for claims without a season.
func fallbackYears(b *evidence.Bundle) []int {
	years := b.FallbackYears()
	if b.Fallback[0] {
		years = append([]int{0}, years...)
	}
	return years
}

func yearList(years []int) string {
	parts := make([]string, 0, len(years))
	for _, y := range years {
		if y == 0 {
			parts = append(parts, "questions without a specific season")
			continue
		}
		parts = append(parts, fmt.Sprint(y))
	}
	return strings.Join(parts, ", ")
}

func (x *GeminiGenerator) Generate(ctx context.Context, req verify.GenerateRequest) (string, error) {
	data := map[string]any{
		"Language":      req.Language,
		"Strict":        req.Strict,
		"Feedback":      req.Feedback,
		"FallbackYears": "",
		"Evidence":      "(no evidence retrieved)",
	}
	if req.Query != nil {
		data["Query"] = req.Query.Text
		data["Today"] = req.Query.Now.Format("2006-01-02")
		data["History"] = recentTurns(req.Query.History)
	}
	if req.Bundle != nil {
		if !req.Bundle.IsEmpty() {
			data["Evidence"] = req.Bundle.Render()
		}
		if !req.Strict {
			data["FallbackYears"] = yearList(fallbackYears(req.Bundle))
		}
	}

	prompt, err := render(answerPromptTmpl, data)
	if err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{}
	if req.Strict {
		config.Temperature = genai.Ptr(float32(0))
	}
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := x.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate answer", goerr.V("strict", req.Strict))
	}

	text := strings.TrimSpace(adapter.ResponseText(resp))
	if text == "" {
		return "", goerr.New("empty answer from gemini")
	}
	return text, nil
}

// GeminiAnalyzer condenses evidence for complex questions.
type GeminiAnalyzer struct {
	gemini   adapter.Gemini
	maxWords int
}

func NewGeminiAnalyzer(gemini adapter.Gemini) *GeminiAnalyzer {
	return &GeminiAnalyzer{gemini: gemini, maxWords: 150}
}

func (x *GeminiAnalyzer) Analyze(ctx context.Context, q *model.QueryContext, topics []evidence.Topic) (string, error) {
	prompt, err := render(analyzePromptTmpl, map[string]any{
		"MaxWords": x.maxWords,
		"Query":    q.Text,
		"Topics":   topics,
	})
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := x.gemini.GenerateContent(ctx, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0)),
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to analyze evidence")
	}
	return strings.TrimSpace(adapter.ResponseText(resp)), nil
}

type unsupportedClaim struct {
	Claim  string `json:"claim" jsonschema:"The unsupported statement as written in the answer"`
	Reason string `json:"reason" jsonschema:"Why the evidence does not support it"`
}

type claimAudit struct {
	Unsupported []unsupportedClaim `json:"unsupported"`
}

var claimAuditSchema = sync.OnceValues(adapter.SchemaFor[claimAudit])

// GeminiClaimChecker asks Gemini to find claims the evidence does not
// support.
type GeminiClaimChecker struct {
	gemini adapter.Gemini
}

func NewGeminiClaimChecker(gemini adapter.Gemini) *GeminiClaimChecker {
	return &GeminiClaimChecker{gemini: gemini}
}

func (x *GeminiClaimChecker) CheckClaims(ctx context.Context, in *verify.Input) ([]verify.Violation, error) {
	schema, err := claimAuditSchema()
	if err != nil {
		return nil, err
	}

	ev := "(no evidence retrieved)"
	var years []int
	if in.Bundle != nil {
		if !in.Bundle.IsEmpty() {
			ev = in.Bundle.Render()
		}
		years = fallbackYears(in.Bundle)
	}
	prompt, err := render(claimsPromptTmpl, map[string]any{
		"Evidence":      ev,
		"Draft":         in.Draft,
		"FallbackYears": yearList(years),
	})
	if err != nil {
		return nil, err
	}

	var audit claimAudit
	if err := generateJSON(ctx, x.gemini, prompt, schema, &audit); err != nil {
		return nil, goerr.Wrap(err, "failed to check claims")
	}

	violations := make([]verify.Violation, 0, len(audit.Unsupported))
	for _, c := range audit.Unsupported {
		violations = append(violations, verify.Violation{
			Check:  verify.CheckClaim,
			Detail: c.Claim + " (" + c.Reason + ")",
		})
	}
	return violations, nil
}
