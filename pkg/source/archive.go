package source

import (
	"context"
	"strconv"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/wicket/pkg/fetch"
	"github.com/m-mizutani/wicket/pkg/repository"
)

// Endpoints served by Archive.
const (
	EndpointMatches = "matches"
)

// Archive serves lookups from persisted stores. Readers are consulted in
// order and results merged by id, the first reader winning.
type Archive struct {
	readers []repository.Reader
	limit   int
}

type ArchiveOption func(*Archive)

// WithArchiveLimit caps records returned per reader.
func WithArchiveLimit(n int) ArchiveOption {
	return func(a *Archive) { a.limit = n }
}

func NewArchive(readers []repository.Reader, opts ...ArchiveOption) *Archive {
	a := &Archive{readers: readers}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func yearParam(params map[string]string) (int, error) {
	v := params["year"]
	if v == "" {
		return 0, nil
	}
	year, err := strconv.Atoi(v)
	if err != nil {
		return 0, goerr.Wrap(err, "invalid year parameter", goerr.V("year", v))
	}
	return year, nil
}

// limitParam narrows the configured limit to the request's "limit" parameter.
func (x *Archive) limitParam(params map[string]string) (int, error) {
	v := params["limit"]
	if v == "" {
		return x.limit, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, goerr.New("invalid limit parameter", goerr.V("limit", v))
	}
	if x.limit > 0 && x.limit < n {
		return x.limit, nil
	}
	return n, nil
}

func (x *Archive) Lookup(ctx context.Context, req fetch.Request) (*fetch.Payload, error) {
	year, err := yearParam(req.Params)
	if err != nil {
		return nil, err
	}
	limit, err := x.limitParam(req.Params)
	if err != nil {
		return nil, err
	}

	payload := &fetch.Payload{}
	switch req.Endpoint {
	case EndpointMatches:
		q := repository.MatchQuery{
			Team:     req.Params["team"],
			Opponent: req.Params["opponent"],
			Series:   req.Params["series"],
			Year:     year,
			Limit:    limit,
		}
		for _, r := range x.readers {
			matches, err := r.FindMatches(ctx, q)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to read archived matches")
			}
			payload.Matches = fetch.MergeMatches(payload.Matches, matches)
		}

	case EndpointSeries:
		q := repository.SeriesQuery{
			Name:  req.Params["series"],
			Team:  req.Params["team"],
			Year:  year,
			Limit: limit,
		}
		for _, r := range x.readers {
			series, err := r.FindSeries(ctx, q)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to read archived series")
			}
			payload.Series = fetch.MergeSeries(payload.Series, series)
		}

	default:
		return nil, goerr.New("unsupported endpoint", goerr.V("endpoint", req.Endpoint))
	}
	return payload, nil
}
