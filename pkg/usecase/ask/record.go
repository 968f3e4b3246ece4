package ask

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/wicket/pkg/adapter"
	"github.com/m-mizutani/wicket/pkg/fetch"
	"github.com/m-mizutani/wicket/pkg/model"
	"github.com/m-mizutani/wicket/pkg/repository"
	"github.com/m-mizutani/wicket/pkg/router"
	"github.com/m-mizutani/wicket/pkg/source"
	"github.com/m-mizutani/wicket/pkg/utils/logging"
)

func traceKey(id model.TraceID) string {
	return "traces/" + string(id) + ".json"
}

func transcriptKey(id model.SessionID) string {
	return "histories/" + string(id) + ".json"
}

// Session loads the session with id, or starts a new one when id is empty
// or unknown.
func (p *Pipeline) Session(ctx context.Context, id model.SessionID) (*model.Session, error) {
	now := p.now()
	if id == "" {
		return &model.Session{ID: model.NewSessionID(), CreatedAt: now, UpdatedAt: now}, nil
	}
	if p.repo == nil {
		return &model.Session{ID: id, CreatedAt: now, UpdatedAt: now}, nil
	}

	session, err := p.repo.GetSession(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return &model.Session{ID: id, CreatedAt: now, UpdatedAt: now}, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load session", goerr.V("session_id", id))
	}

	if p.storage != nil {
		history, err := LoadTranscript(ctx, p.storage, id)
		if err != nil {
			logging.From(ctx).Warn("failed to load transcript", "session_id", id, "error", err)
		}
		session.History = history
	}
	return session, nil
}

// LoadTranscript reads the stored conversation of session id. A missing
// transcript is an empty history.
func LoadTranscript(ctx context.Context, storage adapter.Storage, id model.SessionID) ([]model.Turn, error) {
	reader, err := storage.Get(ctx, transcriptKey(id))
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read transcript")
	}
	var turns []model.Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal transcript")
	}
	return turns, nil
}

func putJSON(ctx context.Context, storage adapter.Storage, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal object", goerr.V("key", key))
	}

	writer, err := storage.Put(ctx, key)
	if err != nil {
		return goerr.Wrap(err, "failed to create storage writer", goerr.V("key", key))
	}
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return goerr.Wrap(err, "failed to write object", goerr.V("key", key))
	}
	if err := writer.Close(); err != nil {
		return goerr.Wrap(err, "failed to close storage writer", goerr.V("key", key))
	}
	return nil
}

// record persists the session memory, its transcript and the trace.
func (p *Pipeline) record(ctx context.Context, session *model.Session, trace *model.Trace) {
	if p.repo != nil {
		snapshot := *session
		p.background(ctx, "save_session", func(ctx context.Context) error {
			return p.repo.PutSession(ctx, &snapshot)
		})
	}
	if p.storage != nil {
		history := append([]model.Turn{}, session.History...)
		traceCopy := *trace
		p.background(ctx, "save_transcript", func(ctx context.Context) error {
			return putJSON(ctx, p.storage, transcriptKey(session.ID), history)
		})
		p.background(ctx, "save_trace", func(ctx context.Context) error {
			return putJSON(ctx, p.storage, traceKey(traceCopy.ID), &traceCopy)
		})
	}
}

// archive upserts finished matches seen on remote sources into the local
// store.
func (p *Pipeline) archive(ctx context.Context, outcome *fetch.Outcome) {
	if p.repo == nil {
		return
	}
	var matches []*model.Match
	for _, r := range outcome.Results {
		if r.Task.Source == router.SourceArchive || r.Payload == nil {
			continue
		}
		for _, m := range r.Payload.Matches {
			if m.Status.IsTerminal() {
				matches = append(matches, m)
			}
		}
	}
	if len(matches) == 0 {
		return
	}
	p.background(ctx, "archive", func(ctx context.Context) error {
		_, err := Archive(ctx, p.repo, matches)
		return err
	})
}

// Archive upserts the terminal matches into repo and returns how many were
// written.
func Archive(ctx context.Context, repo repository.Repository, matches []*model.Match) (int, error) {
	n := 0
	for _, m := range fetch.MergeMatches(matches) {
		if !m.Status.IsTerminal() {
			continue
		}
		if err := repo.PutMatch(ctx, m); err != nil {
			return n, goerr.Wrap(err, "failed to archive match", goerr.V("id", m.ID))
		}
		n++
	}
	return n, nil
}

// SyncRange pulls fixtures between from and to (inclusive dates) from src and
// archives the finished ones.
func SyncRange(ctx context.Context, src fetch.Source, repo repository.Repository, from, to time.Time) (int, error) {
	if to.Before(from) {
		return 0, goerr.New("invalid archive range", goerr.V("from", from), goerr.V("to", to))
	}

	payload, err := src.Lookup(ctx, fetch.Request{
		Endpoint: source.EndpointFixtures,
		Params: map[string]string{
			"from":    from.Format("2006-01-02"),
			"to":      to.Format("2006-01-02"),
			"include": "scores,venue,result",
		},
	})
	if err != nil {
		return 0, goerr.Wrap(err, "failed to fetch fixtures for archival")
	}

	n, err := Archive(ctx, repo, payload.Matches)
	if err != nil {
		return n, err
	}
	for _, s := range payload.Series {
		if err := repo.PutSeries(ctx, s); err != nil {
			return n, goerr.Wrap(err, "failed to archive series", goerr.V("id", s.ID))
		}
	}
	return n, nil
}
