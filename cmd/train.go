package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/fareprobe/internal/advisor"
	"github.com/xkilldash9x/fareprobe/internal/observability"
	"github.com/xkilldash9x/fareprobe/internal/outcome"
)

// newTrainCmd creates the `train` command, which writes both advisor models.
func newTrainCmd() *cobra.Command {
	trainCmd := &cobra.Command{
		Use:   "train",
		Short: "Train the date and price models from synthetic curves and recorded fares",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger().Named("train")
			cfg, err := configFrom(cmd.Context())
			if err != nil {
				return err
			}
			opts := advisor.TrainOptionsFromConfig(cfg.Training())

			prices, err := outcome.ReadPrices(cfg.Outcome().PricesCSV)
			if err != nil {
				return fmt.Errorf("failed to read price history: %w", err)
			}
			history := make([]advisor.Observation, len(prices))
			for i, p := range prices {
				history[i] = advisor.Observation{ObservedAt: p.Timestamp, Departure: p.DepartureDate, Price: p.Price}
			}

			dateModel := advisor.TrainSuccessModel(opts)
			if err := dateModel.Save(cfg.Models().DatePath); err != nil {
				return err
			}
			logger.Info("Date model written.",
				zap.String("path", cfg.Models().DatePath), zap.Int("samples", dateModel.Samples))

			priceModel, used := advisor.TrainPriceModel(opts, history)
			if err := priceModel.Save(cfg.Models().PricePath); err != nil {
				return err
			}
			logger.Info("Price model written.",
				zap.String("path", cfg.Models().PricePath),
				zap.Int("samples", priceModel.Samples),
				zap.Int("observations_used", used),
				zap.Int("observations_read", len(history)))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "date model:  %s (%d samples)\n", cfg.Models().DatePath, dateModel.Samples)
			fmt.Fprintf(out, "price model: %s (%d samples, %d of %d recorded fares)\n",
				cfg.Models().PricePath, priceModel.Samples, used, len(history))
			return nil
		},
	}

	f := trainCmd.Flags()
	f.String("date-out", "", "Where to write the date model (overrides models.date_path)")
	f.String("price-out", "", "Where to write the price model (overrides models.price_path)")
	f.Int64("seed", 0, "Random seed (overrides training.seed)")
	bindFlags(trainCmd, map[string]string{
		"date-out":  "models.date_path",
		"price-out": "models.price_path",
		"seed":      "training.seed",
	})
	return trainCmd
}
