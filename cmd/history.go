package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/fareprobe/internal/observability"
	"github.com/xkilldash9x/fareprobe/internal/outcome"
)

// newHistoryCmd creates the `history` command, which prints recorded step
// records or fares, optionally following new step records as they land.
func newHistoryCmd() *cobra.Command {
	var (
		follow       bool
		prices       bool
		failuresOnly bool
		runID        string
	)
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Print recorded step outcomes or fares",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if follow && prices {
				return errors.New("--follow streams step records and cannot be combined with --prices")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFrom(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if prices {
				obs, err := outcome.ReadPrices(cfg.Outcome().PricesCSV)
				if err != nil {
					return err
				}
				for _, o := range obs {
					fmt.Fprintf(out, "%s  %s  %-10s  %.2f\n", o.Timestamp.Format(time.RFC3339), o.DepartureDate, o.ReturnDate, o.Price)
				}
				return nil
			}

			filter := func(rec outcome.StepRecord) bool {
				return (!failuresOnly || !rec.Success) && (runID == "" || rec.RunID == runID)
			}
			path := cfg.Outcome().StepsCSV
			steps, err := outcome.ReadSteps(path)
			if err != nil {
				return err
			}
			for _, rec := range steps {
				if filter(rec) {
					printStep(out, rec)
				}
			}
			if !follow {
				return nil
			}

			logger := observability.GetLogger().Named("history")
			logger.Info("Following step history.", zap.String("path", path))
			err = outcome.Follow(ctx, path, func(rec outcome.StepRecord) {
				if filter(rec) {
					printStep(out, rec)
				}
			}, func(err error) {
				logger.Warn("Skipping unreadable history line.", zap.Error(err))
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	f := historyCmd.Flags()
	f.BoolVarP(&follow, "follow", "f", false, "Keep printing step records as flows append them")
	f.BoolVar(&prices, "prices", false, "Print recorded fares instead of steps")
	f.BoolVar(&failuresOnly, "failures", false, "Only print failed steps")
	f.StringVar(&runID, "run", "", "Only print steps of this run id")
	return historyCmd
}

func printStep(w io.Writer, rec outcome.StepRecord) {
	status := "OK  "
	if !rec.Success {
		status = "FAIL"
	}
	line := fmt.Sprintf("%s  %s  %s  %-18s %6dms  %s",
		rec.Timestamp.Format(time.RFC3339), rec.RunID, status, rec.StepName, rec.DurationMS, rec.Selector)
	if rec.ErrorMessage != "" {
		line += "  error=" + rec.ErrorMessage
	}
	if rec.Context != "" {
		line += "  " + rec.Context
	}
	fmt.Fprintln(w, line)
}
