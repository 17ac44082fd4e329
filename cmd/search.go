package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/fareprobe/internal/booking"
	"github.com/xkilldash9x/fareprobe/internal/driver"
	"github.com/xkilldash9x/fareprobe/internal/observability"
	"github.com/xkilldash9x/fareprobe/internal/outcome"
)

// newSearchCmd creates the `search` command, which runs one flow.
func newSearchCmd() *cobra.Command {
	var (
		req     booking.Request
		oneWay  bool
		format  string
		preview bool
	)

	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "Fill the flight search form once and report the fare found",
		Example: `  fareprobe search --from "New York" --from-code JFK --to Berlin --to-code BER \
    --depart 11/05/2025 --return 11/15/2025`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if oneWay {
				req.Trip = booking.OneWay
			} else {
				req.Trip = booking.RoundTrip
			}
			if err := checkFormat(format); err != nil {
				return err
			}
			return req.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg, err := configFrom(ctx)
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
			if preview {
				res := components.Deps.Resolver.Resolve(req.Departure)
				logger.Info("Departure date preview.", zap.String("resolved", res.Date), zap.String("status", string(res.Status)))
				return nil
			}

			page, release, err := driver.Open(ctx, cfg.Browser(), logger)
			if err != nil {
				return fmt.Errorf("failed to open browser: %w", err)
			}
			defer release()

			rec := outcome.NewRecorder(logger, components.sharedSinks()...)
			deps := components.Deps
			deps.Page = page
			deps.Recorder = rec

			res, runErr := booking.NewFlow(deps).Run(ctx, req)
			_ = rec.Close()
			if res != nil {
				if err := writeOrPrint(cmd.OutOrStdout(), format, res, func(w io.Writer) { printResult(w, res) }); err != nil {
					return err
				}
			}
			return runErr
		},
	}

	f := searchCmd.Flags()
	f.StringVar(&req.Label, "name", "", "Label for this search in logs and reports")
	f.StringVar(&req.Origin.City, "from", "", "Origin city typed into the form (required)")
	f.StringVar(&req.Origin.Code, "from-code", "", "Origin airport code used to pick the suggestion")
	f.StringVar(&req.Destination.City, "to", "", "Destination city typed into the form (required)")
	f.StringVar(&req.Destination.Code, "to-code", "", "Destination airport code used to pick the suggestion")
	f.StringVar(&req.Departure, "depart", "", "Departure date, MM/DD/YYYY (required)")
	f.StringVar(&req.Return, "return", "", "Return date, MM/DD/YYYY (required unless --one-way)")
	f.BoolVar(&oneWay, "one-way", false, "Search a one-way trip")
	f.StringVarP(&format, "output", "o", formatText, "Output format: text or json")
	f.BoolVar(&preview, "dry-run", false, "Resolve the departure date and assess step risk without opening a browser")

	// Config overrides.
	f.String("driver", "", "Browser driver: chromedp or playwright (overrides config/env)")
	f.Bool("headless", false, "Run the browser headless (overrides config/env)")
	f.String("junit", "", "Write a JUnit XML report of the flow's steps to this path")
	bindFlags(searchCmd, map[string]string{
		"driver":   "browser.driver",
		"headless": "browser.headless",
		"junit":    "outcome.junit_path",
	})

	return searchCmd
}

func printResult(w io.Writer, res *booking.Result) {
	fc := res.Context
	fmt.Fprintf(w, "Run:       %s\n", res.RunID)
	if fc != nil {
		fmt.Fprintf(w, "Route:     %s -> %s\n", fc.Request.Origin, fc.Request.Destination)
		fmt.Fprintf(w, "Departure: %s (%s)\n", fc.DepartureResolution.Date, fc.DepartureResolution.Status)
		if fc.ReturnResolution != nil {
			fmt.Fprintf(w, "Return:    %s (%s)\n", fc.ReturnResolution.Date, fc.ReturnResolution.Status)
		}
	}
	o := res.Outcome
	if o.Found() {
		fmt.Fprintf(w, "Price:     %s (%.2f, %s)\n", o.PriceText, *o.Price, o.Strategy)
	} else {
		fmt.Fprintln(w, "Price:     not found")
	}
	if o.Estimate != nil {
		fmt.Fprintf(w, "Estimate:  %.2f\n", *o.Estimate)
	}
	if res.Error != "" {
		fmt.Fprintf(w, "Result:    FAIL %s\n", res.Error)
		if res.Diagnostics.Screenshot != "" {
			fmt.Fprintf(w, "Screenshot: %s\n", res.Diagnostics.Screenshot)
		}
		return
	}
	fmt.Fprintf(w, "Result:    PASS in %s\n", res.Duration.Round(time.Millisecond))
}
