package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/fareprobe/internal/driver"
	"github.com/xkilldash9x/fareprobe/internal/observability"
	"github.com/xkilldash9x/fareprobe/internal/scenario"
)

// newBatchCmd creates the `batch` command, which runs every scenario of a
// YAML file, each as its own flow.
func newBatchCmd() *cobra.Command {
	var format string

	batchCmd := &cobra.Command{
		Use:   "batch <scenarios.yaml>",
		Short: "Run the searches of a scenario file concurrently",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return checkFormat(format)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg, err := configFrom(ctx)
			if err != nil {
				return err
			}

			scenarios, err := scenario.Load(args[0])
			if err != nil {
				return err
			}

			components, err := initializeFlowComponents(ctx, cfg, logger)
			if err != nil {
				if components != nil {
					components.Shutdown()
				}
				return fmt.Errorf("failed to initialize flow components: %w", err)
			}
			defer components.Shutdown()

			logPreflightRisk(cfg, components.Deps.Profile, logger)

			runner := scenario.NewRunner(driver.Opener(cfg.Browser(), logger), components.Deps, cfg.Batch(), components.Sinks, logger)
			reports, runErr := runner.Run(ctx, scenarios)

			if err := writeOrPrint(cmd.OutOrStdout(), format, reports, func(w io.Writer) { printReports(w, reports) }); err != nil {
				return err
			}
			if runErr != nil {
				return runErr
			}
			if failed := countFailed(reports); failed > 0 {
				return fmt.Errorf("%d of %d scenarios failed", failed, len(reports))
			}
			return nil
		},
	}

	f := batchCmd.Flags()
	f.StringVarP(&format, "output", "o", formatText, "Output format: text or json")
	f.IntP("concurrency", "j", 0, "Number of flows run at once (overrides config/env)")
	f.Duration("start-interval", 0, "Minimum time between flow starts (overrides config/env)")
	f.String("driver", "", "Browser driver: chromedp or playwright (overrides config/env)")
	f.Bool("headless", false, "Run the browsers headless (overrides config/env)")
	f.String("junit", "", "Write a JUnit XML report of every flow's steps to this path")
	bindFlags(batchCmd, map[string]string{
		"concurrency":    "batch.concurrency",
		"start-interval": "batch.start_interval",
		"driver":         "browser.driver",
		"headless":       "browser.headless",
		"junit":          "outcome.junit_path",
	})

	return batchCmd
}

func countFailed(reports []scenario.Report) int {
	n := 0
	for _, r := range reports {
		if !r.Passed {
			n++
		}
	}
	return n
}

func printReports(w io.Writer, reports []scenario.Report) {
	for _, r := range reports {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
		}
		line := fmt.Sprintf("%-4s %s", status, r.Scenario)
		if r.Result != nil {
			line += " run=" + r.Result.RunID
			if o := r.Result.Outcome; o.Found() {
				line += fmt.Sprintf(" price=%.2f", *o.Price)
			}
		}
		if r.Error != "" {
			line += " error=" + r.Error
		}
		fmt.Fprintln(w, line)
		for _, c := range r.Checks {
			mark := "ok"
			if !c.Passed {
				mark = "advisory failed"
			}
			fmt.Fprintf(w, "     check %q: %s\n", c.Check, mark)
		}
	}
	fmt.Fprintf(w, "%d/%d passed\n", len(reports)-countFailed(reports), len(reports))
}
