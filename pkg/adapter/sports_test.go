package adapter_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/wicket/pkg/adapter"
	"github.com/m-mizutani/wicket/pkg/model"
)

func TestSportsGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fixtures":
			gt.Equal(t, r.URL.Query().Get("season"), "2024")
			gt.Equal(t, r.URL.Query().Get("api_token"), "secret")
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"data":[{"id":1}]}`))
		case "/broken":
			w.WriteHeader(http.StatusBadGateway)
		case "/limited":
			w.WriteHeader(http.StatusTooManyRequests)
		case "/bad":
			w.WriteHeader(http.StatusBadRequest)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	client := adapter.NewSports("secret",
		adapter.WithSportsBaseURL(srv.URL+"/"),
		adapter.WithSportsRateLimit(0, 0),
	)
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		data, err := client.Get(ctx, "fixtures", map[string]string{"season": "2024"})
		gt.NoError(t, err)
		gt.Equal(t, string(data), `[{"id":1}]`)
	})

	t.Run("server error is upstream unavailable", func(t *testing.T) {
		_, err := client.Get(ctx, "broken", nil)
		gt.True(t, errors.Is(err, model.ErrUpstreamUnavailable))
	})

	t.Run("throttled is upstream unavailable", func(t *testing.T) {
		_, err := client.Get(ctx, "limited", nil)
		gt.True(t, errors.Is(err, model.ErrUpstreamUnavailable))
	})

	t.Run("client error is not retried as degraded", func(t *testing.T) {
		_, err := client.Get(ctx, "bad", nil)
		gt.Error(t, err)
		gt.False(t, errors.Is(err, model.ErrUpstreamUnavailable))
	})

	t.Run("not found", func(t *testing.T) {
		_, err := client.Get(ctx, "fixtures/999", nil)
		gt.True(t, errors.Is(err, model.ErrNotFound))
	})
}

func TestSportsRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	t.Cleanup(srv.Close)

	client := adapter.NewSports("", adapter.WithSportsBaseURL(srv.URL), adapter.WithSportsRateLimit(1, 1))

	_, err := client.Get(context.Background(), "livescores", nil)
	gt.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Get(ctx, "livescores", nil)
	gt.Error(t, err)
	gt.Equal(t, calls.Load(), int32(1))
}
