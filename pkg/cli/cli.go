package cli

import (
	"context"

	"github.com/m-mizutani/wicket/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

type logConfig struct {
	level  string
	format string
}

func logFlags(lc *logConfig) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Aliases:     []string{"l"},
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("WICKET_LOG_LEVEL"),
			Destination: &lc.level,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       "console",
			Sources:     cli.EnvVars("WICKET_LOG_FORMAT"),
			Destination: &lc.format,
		},
	}
}

// withLogger installs the configured logger before running action
func withLogger(lc *logConfig, action cli.ActionFunc) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		format, err := logging.ParseFormat(lc.format)
		if err != nil {
			return err
		}
		logger := logging.New(lc.level, c.Root().ErrWriter, logging.WithFormat(format))
		logging.SetDefault(logger)
		return action(logging.With(ctx, logger), c)
	}
}

func newApp() *cli.Command {
	var lc logConfig

	return &cli.Command{
		Name:  "wicket",
		Usage: "Cricket question answering grounded on live and archived match data",
		Flags: logFlags(&lc),
		Commands: []*cli.Command{
			askCommand(&lc),
			chatCommand(&lc),
			serveCommand(&lc),
			archiveCommand(&lc),
			sessionCommand(&lc),
		},
	}
}

func Run(ctx context.Context, argv []string) *Error {
	if err := newApp().Run(ctx, argv); err != nil {
		logging.From(ctx).Error("command failed", "error", err)
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
