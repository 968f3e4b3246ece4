package repository

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/wicket/pkg/model"
)

// Memory is an in-process Repository used by tests and the default CLI
// configuration.
type Memory struct {
	mu       sync.RWMutex
	matches  map[model.MatchID]*model.Match
	series   map[model.SeriesID]*model.Series
	sessions map[model.SessionID]*model.Session
}

func NewMemory() *Memory {
	return &Memory{
		matches:  make(map[model.MatchID]*model.Match),
		series:   make(map[model.SeriesID]*model.Series),
		sessions: make(map[model.SessionID]*model.Session),
	}
}

func (r *Memory) PutMatch(ctx context.Context, match *model.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches[match.ID] = upsertMatch(r.matches[match.ID], match)
	return nil
}

func (r *Memory) GetMatch(ctx context.Context, id model.MatchID) (*model.Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.matches[id]
	if !ok {
		return nil, goerr.Wrap(model.ErrNotFound, "match not found", goerr.V("id", id))
	}
	cp := *m
	return &cp, nil
}

func (r *Memory) FindMatches(ctx context.Context, query MatchQuery) ([]*model.Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*model.Match, 0, len(r.matches))
	for _, m := range r.matches {
		cp := *m
		all = append(all, &cp)
	}
	return filterMatches(all, query), nil
}

func (r *Memory) PutSeries(ctx context.Context, series *model.Series) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *series
	r.series[series.ID] = &cp
	return nil
}

func (r *Memory) FindSeries(ctx context.Context, query SeriesQuery) ([]*model.Series, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*model.Series, 0, len(r.series))
	for _, s := range r.series {
		cp := *s
		all = append(all, &cp)
	}
	return filterSeries(all, query), nil
}

func (r *Memory) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, goerr.Wrap(model.ErrNotFound, "session not found", goerr.V("id", id))
	}
	cp := *s
	return &cp, nil
}

func (r *Memory) PutSession(ctx context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *session
	r.sessions[session.ID] = &cp
	return nil
}
