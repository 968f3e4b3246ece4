package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/wicket/pkg/source"
	"github.com/m-mizutani/wicket/pkg/usecase/ask"
	"github.com/m-mizutani/wicket/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

const dateLayout = "2006-01-02"

// parseRange parses an inclusive date range; an empty to means the same day
func parseRange(from, to string) (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, from)
	if err != nil {
		return time.Time{}, time.Time{}, goerr.Wrap(err, "invalid --from date", goerr.V("from", from))
	}
	if to == "" {
		return start, start, nil
	}
	end, err := time.Parse(dateLayout, to)
	if err != nil {
		return time.Time{}, time.Time{}, goerr.Wrap(err, "invalid --to date", goerr.V("to", to))
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, goerr.New("--to is before --from", goerr.V("from", from), goerr.V("to", to))
	}
	return start, end, nil
}

func archiveCommand(lc *logConfig) *cli.Command {
	var (
		cfg      config
		from, to string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "from",
			Usage:       "First fixture date (YYYY-MM-DD)",
			Destination: &from,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "to",
			Usage:       "Last fixture date (YYYY-MM-DD), defaults to --from",
			Destination: &to,
		},
	}
	flags = append(flags, storeFlags(&cfg)...)
	flags = append(flags, sourceFlags(&cfg)...)

	return &cli.Command{
		Name:  "archive",
		Usage: "Copy finished fixtures from the sports-data API into the local store",
		Flags: flags,
		Action: withLogger(lc, func(ctx context.Context, c *cli.Command) error {
			start, end, err := parseRange(from, to)
			if err != nil {
				return err
			}

			sports := cfg.newSports()
			if sports == nil {
				return goerr.New("sports-api-key is required")
			}
			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			if closer, ok := repo.(io.Closer); ok {
				defer closer.Close()
			}

			n, err := ask.SyncRange(ctx, source.NewRemote(sports), repo, start, end)
			if err != nil {
				return err
			}

			logging.From(ctx).Info("archive done", "from", from, "to", end.Format(dateLayout), "matches", n)
			fmt.Fprintf(c.Root().Writer, "archived %d finished match(es)\n", n)
			return nil
		}),
	}
}
