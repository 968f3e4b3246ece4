// Package policy evaluates Rego policies that tune the query pipeline.
package policy

import (
	"context"
	_ "embed"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/wicket/pkg/model"
	"github.com/open-policy-agent/opa/v1/rego"
)

//go:embed complexity.rego
var defaultComplexityPolicy string

const complexityQuery = "data.wicket.complexity"

// Decision is the outcome of the complexity policy.
type Decision struct {
	Complex bool
	Reasons []string
}

// Complexity decides whether a query needs an analysis brief before
// generation.
type Complexity struct {
	query          *rego.PreparedEvalQuery
	tokenThreshold int
}

type ComplexityOption func(*Complexity)

// WithTokenThreshold overrides the policy's default query length threshold.
func WithTokenThreshold(n int) ComplexityOption {
	return func(c *Complexity) { c.tokenThreshold = n }
}

// NewComplexity loads *.rego files from policyDir, or the embedded default
// policy when policyDir is empty or holds no policy file.
func NewComplexity(ctx context.Context, policyDir string, opts ...ComplexityOption) (*Complexity, error) {
	modules, err := loadModules(policyDir)
	if err != nil {
		return nil, err
	}
	if len(modules) == 0 {
		modules = append(modules, rego.Module("complexity.rego", defaultComplexityPolicy))
	}

	query, err := prepareQuery(ctx, modules, complexityQuery)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare complexity policy")
	}

	c := &Complexity{query: query}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type complexityInput struct {
	Text           string `json:"text"`
	Tokens         int    `json:"tokens"`
	Intent         string `json:"intent"`
	Language       string `json:"language"`
	TokenThreshold int    `json:"token_threshold"`
}

// Evaluate classifies q.
func (c *Complexity) Evaluate(ctx context.Context, q *model.QueryContext) (*Decision, error) {
	input := complexityInput{
		Text:           q.Text,
		Tokens:         len(strings.Fields(q.Text)),
		Intent:         string(q.Intent),
		Language:       q.Language,
		TokenThreshold: c.tokenThreshold,
	}

	rs, err := c.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to evaluate complexity policy")
	}

	decision := &Decision{}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return decision, nil
	}

	data, ok := rs[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return nil, goerr.New("unexpected complexity policy result", goerr.V("value", rs[0].Expressions[0].Value))
	}
	if v, ok := data["complex"].(bool); ok {
		decision.Complex = v
	}
	if reasons, ok := data["reasons"].([]any); ok {
		for _, r := range reasons {
			if s, ok := r.(string); ok {
				decision.Reasons = append(decision.Reasons, s)
			}
		}
	}
	return decision, nil
}

// IsComplex reports only the decision flag.
func (c *Complexity) IsComplex(ctx context.Context, q *model.QueryContext) (bool, error) {
	d, err := c.Evaluate(ctx, q)
	if err != nil {
		return false, err
	}
	return d.Complex, nil
}

func loadModules(policyDir string) ([]func(*rego.Rego), error) {
	if policyDir == "" {
		return nil, nil
	}

	files, err := filepath.Glob(filepath.Join(policyDir, "*.rego"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to glob policy files", goerr.V("dir", policyDir))
	}

	modules := make([]func(*rego.Rego), 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", file))
		}
		modules = append(modules, rego.Module(file, string(data)))
	}
	return modules, nil
}

func prepareQuery(ctx context.Context, modules []func(*rego.Rego), query string) (*rego.PreparedEvalQuery, error) {
	options := make([]func(*rego.Rego), 0, len(modules)+1)
	options = append(options, rego.Query(query))
	options = append(options, modules...)

	prepared, err := rego.New(options...).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare query", goerr.V("query", query))
	}
	return &prepared, nil
}
