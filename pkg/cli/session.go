package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/wicket/pkg/model"
	"github.com/m-mizutani/wicket/pkg/usecase/ask"
	"github.com/urfave/cli/v3"
)

type sessionView struct {
	*model.Session
	History []model.Turn `json:"history,omitempty"`
}

func sessionCommand(lc *logConfig) *cli.Command {
	return &cli.Command{
		Name:  "session",
		Usage: "Inspect stored conversations",
		Commands: []*cli.Command{
			sessionShowCommand(lc),
		},
	}
}

func sessionShowCommand(lc *logConfig) *cli.Command {
	var cfg config

	return &cli.Command{
		Name:      "show",
		Usage:     "Show the memory and transcript of a session",
		ArgsUsage: "<session-id>",
		Flags:     storeFlags(&cfg),
		Action: withLogger(lc, func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() == 0 {
				return goerr.New("session-id is required")
			}
			id := model.SessionID(c.Args().Get(0))

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			if closer, ok := repo.(io.Closer); ok {
				defer closer.Close()
			}

			session, err := repo.GetSession(ctx, id)
			if err != nil {
				return goerr.Wrap(err, "failed to get session", goerr.V("session_id", id))
			}
			view := sessionView{Session: session}

			storage, err := cfg.newStorage(ctx)
			if err != nil {
				return err
			}
			if storage != nil {
				history, err := ask.LoadTranscript(ctx, storage, id)
				if err != nil {
					return err
				}
				view.History = history
			}

			data, err := json.MarshalIndent(view, "", "  ")
			if err != nil {
				return goerr.Wrap(err, "failed to marshal session")
			}
			fmt.Fprintf(c.Root().Writer, "%s\n", string(data))
			return nil
		}),
	}
}
