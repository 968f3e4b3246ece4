package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/wicket/pkg/model"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS matches (
	id         TEXT PRIMARY KEY,
	match_date TIMESTAMP NOT NULL,
	status     TEXT NOT NULL,
	data       TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS matches_date ON matches(match_date);
CREATE TABLE IF NOT EXISTS series (
	id         TEXT PRIMARY KEY,
	year       INTEGER NOT NULL,
	data       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS series_year ON series(year);
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
`

// SQLite stores records in a local database file.
type SQLite struct {
	db *sqlx.DB
}

type dataRow struct {
	Data string `db:"data"`
}

// NewSQLite opens (and creates if needed) the database at path.
func NewSQLite(path string) (*SQLite, error) {
	dsn := "file:" + path + "?_txlock=immediate&_busy_timeout=5000&_journal_mode=WAL"
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite", goerr.V("path", path))
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to create sqlite schema", goerr.V("path", path))
	}
	return &SQLite{db: db}, nil
}

func (r *SQLite) Close() error {
	return r.db.Close()
}

func (r *SQLite) PutMatch(ctx context.Context, match *model.Match) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var stored *model.Match
	var row dataRow
	err = tx.GetContext(ctx, &row, `SELECT data FROM matches WHERE id = ?`, string(match.ID))
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return goerr.Wrap(err, "failed to read match", goerr.V("id", match.ID))
	default:
		stored = &model.Match{}
		if err := json.Unmarshal([]byte(row.Data), stored); err != nil {
			return goerr.Wrap(err, "failed to unmarshal match", goerr.V("id", match.ID))
		}
	}

	merged := upsertMatch(stored, match)
	data, err := json.Marshal(merged)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal match", goerr.V("id", match.ID))
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO matches (id, match_date, status, data, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			match_date = excluded.match_date,
			status = excluded.status,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		string(merged.ID), merged.Date.UTC(), string(merged.Status), string(data), merged.UpdatedAt)
	if err != nil {
		return goerr.Wrap(err, "failed to upsert match", goerr.V("id", match.ID))
	}

	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit match", goerr.V("id", match.ID))
	}
	return nil
}

func (r *SQLite) GetMatch(ctx context.Context, id model.MatchID) (*model.Match, error) {
	var row dataRow
	err := r.db.GetContext(ctx, &row, `SELECT data FROM matches WHERE id = ?`, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(model.ErrNotFound, "match not found", goerr.V("id", id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get match", goerr.V("id", id))
	}

	var m model.Match
	if err := json.Unmarshal([]byte(row.Data), &m); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal match", goerr.V("id", id))
	}
	return &m, nil
}

func (r *SQLite) FindMatches(ctx context.Context, query MatchQuery) ([]*model.Match, error) {
	var rows []dataRow
	var err error
	if query.Year != 0 {
		start, end := yearRange(query.Year)
		err = r.db.SelectContext(ctx, &rows, `SELECT data FROM matches WHERE match_date >= ? AND match_date < ?`, start, end)
	} else {
		err = r.db.SelectContext(ctx, &rows, `SELECT data FROM matches`)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to select matches", goerr.V("year", query.Year))
	}

	all := make([]*model.Match, 0, len(rows))
	for _, row := range rows {
		var m model.Match
		if err := json.Unmarshal([]byte(row.Data), &m); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal match")
		}
		all = append(all, &m)
	}
	return filterMatches(all, query), nil
}

func (r *SQLite) PutSeries(ctx context.Context, series *model.Series) error {
	data, err := json.Marshal(series)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal series", goerr.V("id", series.ID))
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO series (id, year, data) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET year = excluded.year, data = excluded.data`,
		string(series.ID), series.Year, string(data))
	if err != nil {
		return goerr.Wrap(err, "failed to upsert series", goerr.V("id", series.ID))
	}
	return nil
}

func (r *SQLite) FindSeries(ctx context.Context, query SeriesQuery) ([]*model.Series, error) {
	var rows []dataRow
	var err error
	if query.Year != 0 {
		err = r.db.SelectContext(ctx, &rows, `SELECT data FROM series WHERE year = ?`, query.Year)
	} else {
		err = r.db.SelectContext(ctx, &rows, `SELECT data FROM series`)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to select series", goerr.V("year", query.Year))
	}

	all := make([]*model.Series, 0, len(rows))
	for _, row := range rows {
		var s model.Series
		if err := json.Unmarshal([]byte(row.Data), &s); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal series")
		}
		all = append(all, &s)
	}
	return filterSeries(all, query), nil
}

func (r *SQLite) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	var row dataRow
	err := r.db.GetContext(ctx, &row, `SELECT data FROM sessions WHERE id = ?`, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(model.ErrNotFound, "session not found", goerr.V("id", id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get session", goerr.V("id", id))
	}

	var s model.Session
	if err := json.Unmarshal([]byte(row.Data), &s); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal session", goerr.V("id", id))
	}
	return &s, nil
}

func (r *SQLite) PutSession(ctx context.Context, session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal session", goerr.V("id", session.ID))
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		string(session.ID), string(data), time.Now().UTC())
	if err != nil {
		return goerr.Wrap(err, "failed to upsert session", goerr.V("id", session.ID))
	}
	return nil
}
