package cmd

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/fareprobe/internal/advisor"
	"github.com/xkilldash9x/fareprobe/internal/artifact"
	"github.com/xkilldash9x/fareprobe/internal/booking"
	"github.com/xkilldash9x/fareprobe/internal/config"
	"github.com/xkilldash9x/fareprobe/internal/outcome"
	"github.com/xkilldash9x/fareprobe/internal/risk"
)

// flowComponents holds the collaborators shared by every flow a command
// starts. Deps has no Page or Recorder; those belong to a single flow.
type flowComponents struct {
	Deps   booking.FlowDeps
	Sinks  []outcome.Sink
	DBPool *pgxpool.Pool
	logger *zap.Logger
}

// Shutdown closes every sink, then the database pool.
func (fc *flowComponents) Shutdown() {
	var errs []error
	for _, s := range fc.Sinks {
		errs = append(errs, s.Close())
	}
	if err := errors.Join(errs...); err != nil {
		fc.logger.Warn("Error closing outcome sinks", zap.Error(err))
	}
	if fc.DBPool != nil {
		fc.DBPool.Close()
	}
}

// sharedSinks wraps the sinks so a flow's recorder cannot close them.
func (fc *flowComponents) sharedSinks() []outcome.Sink {
	out := make([]outcome.Sink, len(fc.Sinks))
	for i, s := range fc.Sinks {
		out[i] = outcome.Shared(s)
	}
	return out
}

// initializeFlowComponents handles dependency injection for flow-running
// commands. Missing advisor models degrade; a broken sink is an error.
func initializeFlowComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*flowComponents, error) {
	fc := &flowComponents{logger: logger}

	// 1. Advisors
	resolver, err := advisor.LoadDateResolver(cfg.Models().DatePath, logger)
	if err != nil {
		logger.Warn("Date model could not be loaded; dates will pass through.", zap.Error(err))
	}
	estimator, err := advisor.LoadPriceEstimator(cfg.Models().PricePath, logger)
	if err != nil {
		logger.Warn("Price model could not be loaded; fare estimates disabled.", zap.Error(err))
	}

	fc.Deps = booking.FlowDeps{
		Profile:   booking.ProfileFromConfig(cfg.Site()),
		Timing:    cfg.Timing(),
		Resolver:  resolver,
		Estimator: estimator,
		Artifacts: artifact.NewStore(cfg.Artifacts().Dir, logger),
		Logger:    logger,
	}

	// 2. Outcome sinks
	out := cfg.Outcome()
	fc.Sinks = append(fc.Sinks, outcome.NewCSVSink(out.StepsCSV, out.PricesCSV))
	if out.JUnitPath != "" {
		fc.Sinks = append(fc.Sinks, outcome.NewJUnitSink(out.JUnitPath, "fareprobe"))
	}
	if out.Postgres.Enabled {
		pool, err := pgxpool.New(ctx, out.Postgres.URL)
		if err != nil {
			return fc, fmt.Errorf("failed to connect to database: %w", err)
		}
		fc.DBPool = pool

		sink, err := outcome.NewPostgresSink(ctx, pool, logger)
		if err != nil {
			return fc, err
		}
		if err := sink.EnsureSchema(ctx); err != nil {
			return fc, err
		}
		fc.Sinks = append(fc.Sinks, sink)
	}
	return fc, nil
}

// defaultSyntheticRuns matches the size of the bootstrap history the step
// risk model was originally trained with.
const defaultSyntheticRuns = 200

// buildRiskModel fits the step risk model on recorded history plus runs
// synthetic passes over the planned steps of profile.
func buildRiskModel(history []outcome.StepRecord, profile booking.Profile, runs int, seed int64) (*risk.Model, []risk.Key) {
	planned := booking.PlannedSteps(profile)
	baselines := make([]risk.Baseline, len(planned))
	keys := make([]risk.Key, len(planned))
	for i, s := range planned {
		keys[i] = risk.Key{Step: s.Name, Action: s.Action, Target: s.Target}
		baselines[i] = risk.Baseline{Key: keys[i], SuccessRate: s.Baseline}
	}
	if runs > 0 {
		rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)+1))
		history = append(history, risk.SyntheticHistory(rng, runs, baselines)...)
	}
	return risk.Fit(history), keys
}

// logPreflightRisk warns about the planned steps most likely to fail.
func logPreflightRisk(cfg *config.Config, profile booking.Profile, logger *zap.Logger) {
	history, err := outcome.ReadSteps(cfg.Outcome().StepsCSV)
	if err != nil {
		logger.Debug("Step history unreadable; risk from baselines only.", zap.Error(err))
	}
	model, keys := buildRiskModel(history, profile, defaultSyntheticRuns, cfg.Training().Seed)
	for _, a := range model.AssessAll(keys) {
		fields := []zap.Field{
			zap.String("step", a.Key.Step),
			zap.Float64("failure_probability", a.FailureProbability),
			zap.String("basis", string(a.Basis)),
		}
		if a.Level == risk.High {
			logger.Warn("High-risk step ahead.", append(fields, zap.String("recommendation", a.Recommendation))...)
		} else {
			logger.Debug("Step risk.", append(fields, zap.String("level", string(a.Level)))...)
		}
	}
}
