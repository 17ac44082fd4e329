package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/fareprobe/internal/advisor"
	"github.com/xkilldash9x/fareprobe/internal/observability"
)

// newResolveCmd creates the `resolve` command, which shows what the date
// resolver would do with each target date.
func newResolveCmd() *cobra.Command {
	var format string
	resolveCmd := &cobra.Command{
		Use:   "resolve <MM/DD/YYYY>...",
		Short: "Show the date a search would use for each target date",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			cfg, err := configFrom(cmd.Context())
			if err != nil {
				return err
			}
			resolver, err := advisor.LoadDateResolver(cfg.Models().DatePath, observability.GetLogger())
			if err != nil {
				return fmt.Errorf("failed to load date model: %w", err)
			}

			results := make([]advisor.Resolution, len(args))
			for i, a := range args {
				results[i] = resolver.Resolve(a)
			}
			return writeOrPrint(cmd.OutOrStdout(), format, results, func(w io.Writer) {
				for _, r := range results {
					fmt.Fprintf(w, "%s -> %s (%s, lead %d days, p=%.2f)\n", r.Input, r.Date, r.Status, r.LeadDays, r.Probability)
				}
			})
		},
	}
	resolveCmd.Flags().StringVarP(&format, "output", "o", formatText, "Output format: text or json")
	return resolveCmd
}

// fareEstimate is one line of `estimate` output.
type fareEstimate struct {
	Input    string  `json:"input"`
	LeadDays int     `json:"lead_days"`
	Estimate float64 `json:"estimate"`
}

// newEstimateCmd creates the `estimate` command, which queries the price
// model by lead time in days or by departure date.
func newEstimateCmd() *cobra.Command {
	var format string
	estimateCmd := &cobra.Command{
		Use:   "estimate <lead-days|MM/DD/YYYY>...",
		Short: "Estimate the fare for lead times or departure dates",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			cfg, err := configFrom(cmd.Context())
			if err != nil {
				return err
			}
			estimator, err := advisor.LoadPriceEstimator(cfg.Models().PricePath, observability.GetLogger())
			if err != nil {
				return fmt.Errorf("failed to load price model: %w", err)
			}
			if !estimator.Available() {
				return fmt.Errorf("no price model at %s; run `fareprobe train` first", cfg.Models().PricePath)
			}

			results := make([]fareEstimate, 0, len(args))
			for _, a := range args {
				e := fareEstimate{Input: a}
				if lead, err := strconv.Atoi(a); err == nil {
					e.LeadDays = lead
					e.Estimate, _ = estimator.Estimate(lead)
				} else {
					var ok bool
					e.Estimate, e.LeadDays, ok = estimator.EstimateFor(a)
					if !ok {
						return fmt.Errorf("%q is neither a lead time in days nor a MM/DD/YYYY date", a)
					}
				}
				results = append(results, e)
			}
			return writeOrPrint(cmd.OutOrStdout(), format, results, func(w io.Writer) {
				for _, e := range results {
					fmt.Fprintf(w, "%s: %.2f (lead %d days)\n", e.Input, e.Estimate, e.LeadDays)
				}
			})
		},
	}
	estimateCmd.Flags().StringVarP(&format, "output", "o", formatText, "Output format: text or json")
	return estimateCmd
}
