package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/wicket/pkg/model"
	"github.com/m-mizutani/wicket/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func defaultHistoryFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "wicket", "chat_history")
}

func chatCommand(lc *logConfig) *cli.Command {
	var (
		cfg         config
		sessionID   string
		historyFile string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "session",
			Aliases:     []string{"s"},
			Usage:       "Session ID to continue",
			Sources:     cli.EnvVars("WICKET_SESSION_ID"),
			Destination: &sessionID,
		},
		&cli.StringFlag{
			Name:        "history-file",
			Usage:       "Readline history file",
			Value:       defaultHistoryFile(),
			Sources:     cli.EnvVars("WICKET_HISTORY_FILE"),
			Destination: &historyFile,
		},
	}
	flags = append(flags, allFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Ask questions interactively, keeping the conversation context",
		Flags: flags,
		Action: withLogger(lc, func(ctx context.Context, c *cli.Command) error {
			rt, err := cfg.newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			session, err := rt.pipeline.Session(ctx, model.SessionID(sessionID))
			if err != nil {
				return err
			}

			if historyFile != "" {
				if err := os.MkdirAll(filepath.Dir(historyFile), 0o700); err != nil {
					logging.From(ctx).Warn("history file disabled", "error", err)
					historyFile = ""
				}
			}
			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "wicket> ",
				HistoryFile:     historyFile,
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
				Stdout:          c.Root().Writer,
				Stderr:          c.Root().ErrWriter,
			})
			if err != nil {
				return goerr.Wrap(err, "failed to start readline")
			}
			defer rl.Close()

			out := c.Root().Writer
			fmt.Fprintf(out, "Session %s. Type 'exit' to quit.\n", session.ID)

			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					if line == "" {
						break
					}
					continue
				}
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read input")
				}

				question := strings.TrimSpace(line)
				switch question {
				case "":
					continue
				case "exit", "quit":
					return nil
				}

				resp, err := answer(ctx, rt.pipeline, session, question, c.Root().ErrWriter)
				if err != nil {
					return goerr.Wrap(err, "failed to answer question")
				}
				session = resp.Session
				fmt.Fprintf(out, "%s\n\n", resp.Answer)
			}

			return nil
		}),
	}
}
