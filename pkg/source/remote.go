// Package source implements fetch.Source for the local archive and the
// remote sports-data feed.
package source

import (
	"context"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/wicket/pkg/adapter"
	"github.com/m-mizutani/wicket/pkg/fetch"
	"github.com/m-mizutani/wicket/pkg/model"
	"github.com/m-mizutani/wicket/pkg/resolver"
)

// Endpoints served by Remote.
const (
	EndpointFixtures   = "fixtures"
	EndpointFixture    = "fixture"
	EndpointLivescores = "livescores"
	EndpointStandings  = "standings"
	EndpointSeries     = "series"
)

// entity parameters are names typed by users; the feed is filtered locally
// with the resolver instead.
var entityParams = map[string]bool{
	"team":     true,
	"opponent": true,
	"player":   true,
	"series":   true,
}

// Remote serves lookups from the sports-data API.
type Remote struct {
	client adapter.Sports
}

func NewRemote(client adapter.Sports) *Remote {
	return &Remote{client: client}
}

func upstreamParams(params map[string]string) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		if !entityParams[k] {
			out[k] = v
		}
	}
	return out
}

func (x *Remote) Lookup(ctx context.Context, req fetch.Request) (*fetch.Payload, error) {
	switch req.Endpoint {
	case EndpointFixtures, EndpointLivescores:
		var fixtures []wireFixture
		if err := x.get(ctx, req.Endpoint, upstreamParams(req.Params), &fixtures); err != nil {
			return nil, err
		}
		return &fetch.Payload{Matches: filterFixtures(fixtures, req.Params)}, nil

	case EndpointFixture:
		id := req.Params["id"]
		if id == "" {
			return nil, goerr.New("fixture lookup requires id")
		}
		params := upstreamParams(req.Params)
		delete(params, "id")

		var fixture wireFixture
		if err := x.get(ctx, EndpointFixtures+"/"+id, params, &fixture); err != nil {
			return nil, err
		}
		return &fetch.Payload{Matches: []*model.Match{fixture.toMatch()}}, nil

	case EndpointStandings, EndpointSeries:
		var series []wireSeries
		if err := x.get(ctx, req.Endpoint, upstreamParams(req.Params), &series); err != nil {
			return nil, err
		}
		return &fetch.Payload{Series: filterSeries(series, req.Params)}, nil

	default:
		return nil, goerr.New("unsupported endpoint", goerr.V("endpoint", req.Endpoint))
	}
}

func (x *Remote) get(ctx context.Context, path string, params map[string]string, out any) error {
	data, err := x.client.Get(ctx, path, params)
	if err != nil {
		return goerr.Wrap(err, "sports lookup failed", goerr.V("path", path))
	}
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return goerr.Wrap(err, "failed to decode sports payload", goerr.V("path", path))
	}
	return nil
}

func filterFixtures(fixtures []wireFixture, params map[string]string) []*model.Match {
	var out []*model.Match
	for i := range fixtures {
		m := fixtures[i].toMatch()
		if team := params["team"]; team != "" && !resolver.MatchesAny(team, m.Home, m.Away) {
			continue
		}
		if opp := params["opponent"]; opp != "" && !resolver.MatchesAny(opp, m.Home, m.Away) {
			continue
		}
		if series := params["series"]; series != "" && !resolver.Matches(series, m.SeriesName) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func filterSeries(series []wireSeries, params map[string]string) []*model.Series {
	var out []*model.Series
	for i := range series {
		s := series[i].toSeries()
		if name := params["series"]; name != "" && !resolver.Matches(name, s.Name) {
			continue
		}
		if team := params["team"]; team != "" && !resolver.MatchesAny(team, s.Participants...) {
			continue
		}
		out = append(out, s)
	}
	return out
}
