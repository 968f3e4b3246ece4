package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/wicket/pkg/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	collectionMatches  = "matches"
	collectionSeries   = "series"
	collectionSessions = "sessions"
)

// Firestore stores records in Cloud Firestore.
type Firestore struct {
	client *firestore.Client
}

func NewFirestore(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID),
			goerr.V("database", databaseID))
	}
	return &Firestore{client: client}, nil
}

func (r *Firestore) Close() error {
	return r.client.Close()
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func (r *Firestore) PutMatch(ctx context.Context, match *model.Match) error {
	ref := r.client.Collection(collectionMatches).Doc(string(match.ID))
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var stored *model.Match
		snap, err := tx.Get(ref)
		switch {
		case err != nil && isNotFound(err):
		case err != nil:
			return goerr.Wrap(err, "failed to read match")
		default:
			stored = &model.Match{}
			if err := snap.DataTo(stored); err != nil {
				return goerr.Wrap(err, "failed to decode match")
			}
		}
		return tx.Set(ref, upsertMatch(stored, match))
	})
	if err != nil {
		return goerr.Wrap(err, "failed to put match", goerr.V("id", match.ID))
	}
	return nil
}

func (r *Firestore) GetMatch(ctx context.Context, id model.MatchID) (*model.Match, error) {
	snap, err := r.client.Collection(collectionMatches).Doc(string(id)).Get(ctx)
	if isNotFound(err) {
		return nil, goerr.Wrap(model.ErrNotFound, "match not found", goerr.V("id", id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get match", goerr.V("id", id))
	}

	var m model.Match
	if err := snap.DataTo(&m); err != nil {
		return nil, goerr.Wrap(err, "failed to decode match", goerr.V("id", id))
	}
	return &m, nil
}

func (r *Firestore) FindMatches(ctx context.Context, query MatchQuery) ([]*model.Match, error) {
	q := r.client.Collection(collectionMatches).Query
	if query.Year != 0 {
		start, end := yearRange(query.Year)
		q = q.Where("date", ">=", start).Where("date", "<", end)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var all []*model.Match
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate matches")
		}
		var m model.Match
		if err := doc.DataTo(&m); err != nil {
			return nil, goerr.Wrap(err, "failed to decode match", goerr.V("doc", doc.Ref.ID))
		}
		all = append(all, &m)
	}
	return filterMatches(all, query), nil
}

func (r *Firestore) PutSeries(ctx context.Context, series *model.Series) error {
	if _, err := r.client.Collection(collectionSeries).Doc(string(series.ID)).Set(ctx, series); err != nil {
		return goerr.Wrap(err, "failed to put series", goerr.V("id", series.ID))
	}
	return nil
}

func (r *Firestore) FindSeries(ctx context.Context, query SeriesQuery) ([]*model.Series, error) {
	q := r.client.Collection(collectionSeries).Query
	if query.Year != 0 {
		q = q.Where("year", "==", query.Year)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var all []*model.Series
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate series")
		}
		var s model.Series
		if err := doc.DataTo(&s); err != nil {
			return nil, goerr.Wrap(err, "failed to decode series", goerr.V("doc", doc.Ref.ID))
		}
		all = append(all, &s)
	}
	return filterSeries(all, query), nil
}

func (r *Firestore) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	snap, err := r.client.Collection(collectionSessions).Doc(string(id)).Get(ctx)
	if isNotFound(err) {
		return nil, goerr.Wrap(model.ErrNotFound, "session not found", goerr.V("id", id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get session", goerr.V("id", id))
	}

	var s model.Session
	if err := snap.DataTo(&s); err != nil {
		return nil, goerr.Wrap(err, "failed to decode session", goerr.V("id", id))
	}
	return &s, nil
}

func (r *Firestore) PutSession(ctx context.Context, session *model.Session) error {
	if _, err := r.client.Collection(collectionSessions).Doc(string(session.ID)).Set(ctx, session); err != nil {
		return goerr.Wrap(err, "failed to put session", goerr.V("id", session.ID))
	}
	return nil
}
