package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/wicket/pkg/adapter"
	"github.com/m-mizutani/wicket/pkg/model"
)

// Reader is the read side of a store.
type Reader interface {
	FindMatches(ctx context.Context, query MatchQuery) ([]*model.Match, error)
	FindSeries(ctx context.Context, query SeriesQuery) ([]*model.Series, error)
}

// Warehouse reads archived seasons from BigQuery tables `<dataset>.matches`
// (match_year INT64, data STRING) and `<dataset>.series` (year INT64, data
// STRING), where data is the JSON encoded record.
type Warehouse struct {
	bq       adapter.BigQuery
	dataset  string
	maxBytes int64
}

type WarehouseOption func(*Warehouse)

// WithScanLimit rejects queries that would scan more than n bytes.
func WithScanLimit(n int64) WarehouseOption {
	return func(w *Warehouse) { w.maxBytes = n }
}

// NewWarehouse reads from dataset, given as "project.dataset".
func NewWarehouse(bq adapter.BigQuery, dataset string, opts ...WarehouseOption) *Warehouse {
	w := &Warehouse{bq: bq, dataset: dataset}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Warehouse) query(ctx context.Context, table, yearColumn string, year int) ([]string, error) {
	sql := fmt.Sprintf("SELECT data FROM `%s.%s`", w.dataset, table)
	params := map[string]any{}
	if year != 0 {
		sql += fmt.Sprintf(" WHERE %s = @year", yearColumn)
		params["year"] = year
	}

	if w.maxBytes > 0 {
		bytes, err := w.bq.DryRun(ctx, sql, params)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to estimate archive query", goerr.V("table", table))
		}
		if bytes > w.maxBytes {
			return nil, goerr.New("archive query exceeds scan limit",
				goerr.V("table", table),
				goerr.V("bytes", bytes),
				goerr.V("limit", w.maxBytes))
		}
	}

	rows, err := w.bq.Query(ctx, sql, params)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query archive", goerr.V("table", table), goerr.V("year", year))
	}

	out := make([]string, 0, len(rows))
	for _, row := range rows {
		data, ok := row["data"].(string)
		if !ok {
			return nil, goerr.New("archive row has no data column", goerr.V("table", table))
		}
		out = append(out, data)
	}
	return out, nil
}

func (w *Warehouse) FindMatches(ctx context.Context, query MatchQuery) ([]*model.Match, error) {
	rows, err := w.query(ctx, "matches", "match_year", query.Year)
	if err != nil {
		return nil, err
	}

	all := make([]*model.Match, 0, len(rows))
	for _, data := range rows {
		var m model.Match
		if err := json.Unmarshal([]byte(data), &m); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal archived match")
		}
		all = append(all, &m)
	}
	return filterMatches(all, query), nil
}

func (w *Warehouse) FindSeries(ctx context.Context, query SeriesQuery) ([]*model.Series, error) {
	rows, err := w.query(ctx, "series", "year", query.Year)
	if err != nil {
		return nil, err
	}

	all := make([]*model.Series, 0, len(rows))
	for _, data := range rows {
		var s model.Series
		if err := json.Unmarshal([]byte(data), &s); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal archived series")
		}
		all = append(all, &s)
	}
	return filterSeries(all, query), nil
}
