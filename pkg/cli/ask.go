package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/wicket/pkg/model"
	"github.com/m-mizutani/wicket/pkg/usecase/ask"
	"github.com/urfave/cli/v3"
)

// answer runs one question with a progress spinner on w
func answer(ctx context.Context, p *ask.Pipeline, session *model.Session, question string, w io.Writer) (*ask.Response, error) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " checking the scorecards..."
	s.Start()
	defer s.Stop()

	return p.Ask(ctx, session, question)
}

func printTrace(w io.Writer, trace *model.Trace) error {
	data, err := json.MarshalIndent(trace, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "failed to marshal trace")
	}
	fmt.Fprintf(w, "%s\n", string(data))
	return nil
}

func askCommand(lc *logConfig) *cli.Command {
	var (
		cfg       config
		sessionID string
		withTrace bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "session",
			Aliases:     []string{"s"},
			Usage:       "Session ID to continue",
			Sources:     cli.EnvVars("WICKET_SESSION_ID"),
			Destination: &sessionID,
		},
		&cli.BoolFlag{
			Name:        "trace",
			Usage:       "Print the answer trace as JSON",
			Destination: &withTrace,
		},
	}
	flags = append(flags, allFlags(&cfg)...)

	return &cli.Command{
		Name:      "ask",
		Usage:     "Answer a single question",
		ArgsUsage: "<question>",
		Flags:     flags,
		Action: withLogger(lc, func(ctx context.Context, c *cli.Command) error {
			question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if question == "" {
				return goerr.New("question is required")
			}

			rt, err := cfg.newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			session, err := rt.pipeline.Session(ctx, model.SessionID(sessionID))
			if err != nil {
				return err
			}

			resp, err := answer(ctx, rt.pipeline, session, question, c.Root().ErrWriter)
			if err != nil {
				return goerr.Wrap(err, "failed to answer question")
			}

			fmt.Fprintf(c.Root().Writer, "%s\n", resp.Answer)
			fmt.Fprintf(c.Root().ErrWriter, "session: %s\n", resp.Session.ID)
			if withTrace {
				return printTrace(c.Root().Writer, resp.Trace)
			}
			return nil
		}),
	}
}
