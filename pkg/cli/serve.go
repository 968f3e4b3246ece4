package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/wicket/pkg/model"
	"github.com/m-mizutani/wicket/pkg/usecase/ask"
	"github.com/m-mizutani/wicket/pkg/utils/logging"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"
)

type askParams struct {
	Question  string `json:"question" jsonschema:"The cricket question in any language"`
	SessionID string `json:"session_id,omitempty" jsonschema:"Session ID returned by a previous call, to keep the conversation context"`
}

type askResult struct {
	Answer    string `json:"answer"`
	SessionID string `json:"session_id"`
	TraceID   string `json:"trace_id"`
}

// askTool answers one question per tool call
func askTool(p *ask.Pipeline) mcp.ToolHandlerFor[*askParams, askResult] {
	return func(ctx context.Context, req *mcp.CallToolRequest, params *askParams) (*mcp.CallToolResult, askResult, error) {
		if params.Question == "" {
			return nil, askResult{}, goerr.New("question is required")
		}

		session, err := p.Session(ctx, model.SessionID(params.SessionID))
		if err != nil {
			return nil, askResult{}, err
		}
		resp, err := p.Ask(ctx, session, params.Question)
		if err != nil {
			return nil, askResult{}, err
		}

		return &mcp.CallToolResult{
				Content: []mcp.Content{
					&mcp.TextContent{Text: resp.Answer},
				},
			}, askResult{
				Answer:    resp.Answer,
				SessionID: string(resp.Session.ID),
				TraceID:   string(resp.Trace.ID),
			}, nil
	}
}

func newMCPServer(p *ask.Pipeline) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "wicket",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_cricket",
		Description: "Answer a question about cricket matches, scores, schedules, standings or players using live and archived match data",
	}, askTool(p))
	return server
}

// serveMetrics exposes Prometheus metrics until ctx is done
func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		logging.From(ctx).Info("metrics server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.From(ctx).Error("metrics server failed", "error", err)
		}
	}()
}

func serveCommand(lc *logConfig) *cli.Command {
	var (
		cfg         config
		metricsAddr string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "metrics-addr",
			Usage:       "Listen address of the Prometheus endpoint, e.g. :9090",
			Sources:     cli.EnvVars("WICKET_METRICS_ADDR"),
			Destination: &metricsAddr,
		},
	}
	flags = append(flags, allFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the ask_cricket tool over MCP stdio",
		Flags: flags,
		Action: withLogger(lc, func(ctx context.Context, c *cli.Command) error {
			rt, err := cfg.newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			if metricsAddr != "" {
				serveMetrics(ctx, metricsAddr)
			}

			if err := newMCPServer(rt.pipeline).Run(ctx, &mcp.StdioTransport{}); err != nil {
				return goerr.Wrap(err, "mcp server stopped")
			}
			return nil
		}),
	}
}
