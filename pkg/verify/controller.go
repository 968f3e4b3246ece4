// Package verify checks drafted answers against evidence and regenerates
// once in strict mode when they fail.
package verify

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/wicket/pkg/evidence"
	"github.com/m-mizutani/wicket/pkg/metrics"
	"github.com/m-mizutani/wicket/pkg/model"
	"github.com/m-mizutani/wicket/pkg/utils/logging"
)

// Input is a draft and what it must be consistent with.
type Input struct {
	Draft    string
	Query    string
	Language string
	Bundle   *evidence.Bundle
	// Identifiers are record ids that must not appear in the answer.
	Identifiers []string

	rendered *string
}

func (x *Input) evidenceText() string {
	if x.rendered == nil {
		s := ""
		if x.Bundle != nil {
			s = x.Bundle.Render()
		}
		x.rendered = &s
	}
	return *x.rendered
}

func (x *Input) fallbackAllowed(year int) bool {
	if x.Bundle == nil {
		return false
	}
	if year == 0 {
		return x.Bundle.Fallback[0]
	}
	return x.Bundle.FallbackAllowed(year)
}

// GenerateRequest asks the answer generator for a draft.
type GenerateRequest struct {
	Bundle   *evidence.Bundle
	Query    *model.QueryContext
	Language string
	// Strict forbids any claim not present in the bundle.
	Strict bool
	// Feedback lists what was wrong with the previous draft.
	Feedback []Violation
}

type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// ClaimChecker is an optional model-backed check of factual claims.
type ClaimChecker interface {
	CheckClaims(ctx context.Context, in *Input) ([]Violation, error)
}

// Report is the verdict on one draft.
type Report struct {
	Verdict    model.Verdict
	Violations []Violation
}

// Outcome is the terminal output of the controller.
type Outcome struct {
	Answer      string
	Verdict     model.Verdict
	Violations  []Violation
	Regenerated bool
	// First is the report on the initial draft.
	First *Report
}

type Controller struct {
	generator Generator
	checks    []Check
	claims    ClaimChecker
}

type Option func(*Controller)

func WithChecks(checks ...Check) Option {
	return func(c *Controller) { c.checks = checks }
}

func WithClaimChecker(claims ClaimChecker) Option {
	return func(c *Controller) { c.claims = claims }
}

func New(generator Generator, opts ...Option) *Controller {
	c := &Controller{
		generator: generator,
		checks:    DefaultChecks,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Verify runs every check on in.
func (c *Controller) Verify(ctx context.Context, in *Input) *Report {
	var violations []Violation
	for _, check := range c.checks {
		violations = append(violations, check(in)...)
	}

	if c.claims != nil {
		v, err := c.claims.CheckClaims(ctx, in)
		if err != nil {
			logging.From(ctx).Warn("claim check failed", "error", err)
		}
		violations = append(violations, v...)
	}

	report := &Report{Verdict: model.VerdictPassed, Violations: violations}
	if len(violations) > 0 {
		report.Verdict = model.VerdictFailed
	}
	metrics.VerificationsTotal.WithLabelValues(string(report.Verdict)).Inc()
	return report
}

// Answer generates, verifies and regenerates at most once. The second draft
// is returned whatever its verdict.
func (c *Controller) Answer(ctx context.Context, req GenerateRequest, identifiers []string) (*Outcome, error) {
	logger := logging.From(ctx)

	draft, err := c.generator.Generate(ctx, req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate answer")
	}

	in := c.input(draft, req, identifiers)
	first := c.Verify(ctx, in)
	if first.Verdict == model.VerdictPassed {
		return &Outcome{Answer: draft, Verdict: first.Verdict, First: first}, nil
	}

	logger.Warn("draft failed verification, regenerating in strict mode",
		"error", goerr.Wrap(model.ErrVerificationFailure, "draft rejected", goerr.V("violations", first.Violations)))
	metrics.RegenerationsTotal.Inc()

	strict := req
	strict.Strict = true
	strict.Feedback = first.Violations

	second, err := c.generator.Generate(ctx, strict)
	if err != nil {
		logger.Warn("strict regeneration failed, keeping first draft", "error", err)
		return &Outcome{
			Answer:      draft,
			Verdict:     first.Verdict,
			Violations:  first.Violations,
			Regenerated: true,
			First:       first,
		}, nil
	}

	final := c.Verify(ctx, c.input(second, req, identifiers))
	return &Outcome{
		Answer:      second,
		Verdict:     final.Verdict,
		Violations:  final.Violations,
		Regenerated: true,
		First:       first,
	}, nil
}

func (c *Controller) input(draft string, req GenerateRequest, identifiers []string) *Input {
	in := &Input{
		Draft:       draft,
		Language:    req.Language,
		Bundle:      req.Bundle,
		Identifiers: identifiers,
	}
	if req.Query != nil {
		in.Query = req.Query.Text
	}
	return in
}
