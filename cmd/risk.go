package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/fareprobe/internal/booking"
	"github.com/xkilldash9x/fareprobe/internal/outcome"
	"github.com/xkilldash9x/fareprobe/internal/risk"
)

// newRiskCmd creates the `risk` command, which predicts step failure risk
// from the recorded step history.
func newRiskCmd() *cobra.Command {
	var (
		format    string
		key       risk.Key
		synthetic int
	)
	riskCmd := &cobra.Command{
		Use:   "risk",
		Short: "Predict how likely each step of a search is to fail",
		Long: `Predict the failure probability of each planned step, or of the single
step given with --step, from the recorded step history. Steps above 30% are
HIGH risk and above 10% MODERATE.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			cfg, err := configFrom(cmd.Context())
			if err != nil {
				return err
			}
			history, err := outcome.ReadSteps(cfg.Outcome().StepsCSV)
			if err != nil {
				return fmt.Errorf("failed to read step history: %w", err)
			}

			model, keys := buildRiskModel(history, booking.ProfileFromConfig(cfg.Site()), synthetic, cfg.Training().Seed)
			if key.Step != "" {
				keys = []risk.Key{key}
			}
			assessments := model.AssessAll(keys)

			return writeOrPrint(cmd.OutOrStdout(), format, assessments, func(w io.Writer) {
				fmt.Fprintf(w, "%d recorded steps, %d synthetic\n\n", len(history), model.Samples()-len(history))
				printAssessments(w, assessments)
			})
		},
	}

	f := riskCmd.Flags()
	f.StringVarP(&format, "output", "o", formatText, "Output format: text or json")
	f.StringVar(&key.Step, "step", "", `Assess one step by name, e.g. "Select Dates"`)
	f.StringVar(&key.Action, "action", "", "Action type of --step, e.g. complex_interaction")
	f.StringVar(&key.Target, "target", "", "Selector of --step")
	f.IntVar(&synthetic, "synthetic-runs", defaultSyntheticRuns, "Simulated runs over the planned steps mixed into the history; 0 disables")
	return riskCmd
}

func printAssessments(w io.Writer, assessments []risk.Assessment) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tACTION\tFAILURE\tLEVEL\tBASIS\tSAMPLES")
	for _, a := range assessments {
		fmt.Fprintf(tw, "%s\t%s\t%.1f%%\t%s\t%s\t%d\n",
			a.Key.Step, a.Key.Action, a.FailureProbability*100, a.Level, a.Basis, a.Samples)
	}
	_ = tw.Flush()
	for _, a := range assessments {
		if a.Recommendation != "" {
			fmt.Fprintf(w, "\n%s: %s", a.Key.Step, a.Recommendation)
		}
	}
	fmt.Fprintln(w)
}
