package fetch

import (
	"context"

	"github.com/m-mizutani/wicket/pkg/model"
)

// Request is a keyed GET-style lookup.
type Request struct {
	Endpoint string
	Params   map[string]string
}

// Payload is the normalized result of a lookup.
type Payload struct {
	Matches []*model.Match  `json:"matches,omitempty"`
	Series  []*model.Series `json:"series,omitempty"`
}

// IsEmpty reports whether the payload carries no record.
func (x *Payload) IsEmpty() bool {
	return x == nil || (len(x.Matches) == 0 && len(x.Series) == 0)
}

// Source serves lookups for one router.Source. Implementations must be safe
// for concurrent use and return an error wrapping model.ErrUpstreamUnavailable
// for server-side failures.
type Source interface {
	Lookup(ctx context.Context, req Request) (*Payload, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, req Request) (*Payload, error)

func (f SourceFunc) Lookup(ctx context.Context, req Request) (*Payload, error) {
	return f(ctx, req)
}
