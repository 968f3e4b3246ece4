package adapter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/wicket/pkg/model"
	"golang.org/x/time/rate"
)

const defaultSportsBaseURL = "https://api.cricket-data.example/v2"

// Sports is a read-only client of the remote sports-data API.
type Sports interface {
	// Get fetches path with query params and returns the "data" member of
	// the response envelope.
	Get(ctx context.Context, path string, params map[string]string) (json.RawMessage, error)
}

type sportsClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type SportsOption func(*sportsClient)

func WithSportsBaseURL(baseURL string) SportsOption {
	return func(c *sportsClient) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

func WithSportsHTTPClient(client *http.Client) SportsOption {
	return func(c *sportsClient) {
		c.httpClient = client
	}
}

// WithSportsRateLimit caps outgoing requests per second. Zero disables the
// limit.
func WithSportsRateLimit(perSecond float64, burst int) SportsOption {
	return func(c *sportsClient) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func NewSports(apiKey string, opts ...SportsOption) Sports {
	c := &sportsClient{
		baseURL: defaultSportsBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(5), 10),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type sportsEnvelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message,omitempty"`
}

func (c *sportsClient) Get(ctx context.Context, path string, params map[string]string) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, goerr.Wrap(err, "rate limiter wait aborted", goerr.V("path", path))
		}
	}

	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	if c.apiKey != "" {
		q.Set("api_token", c.apiKey)
	}
	endpoint := c.baseURL + "/" + strings.TrimPrefix(path, "/")
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request", goerr.V("path", path))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, goerr.Wrap(ctx.Err(), "request aborted", goerr.V("path", path))
		}
		return nil, goerr.Wrap(model.ErrUpstreamUnavailable, "failed to send request",
			goerr.V("path", path), goerr.V("cause", err.Error()))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, goerr.Wrap(model.ErrNotFound, "sports API returned not found", goerr.V("path", path))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, goerr.Wrap(model.ErrUpstreamUnavailable, "sports API unavailable",
			goerr.V("path", path),
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(body)))
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, goerr.New("sports API returned error",
			goerr.V("path", path),
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(body)))
	}

	var env sportsEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, goerr.Wrap(err, "failed to decode response", goerr.V("path", path))
	}
	return env.Data, nil
}
