package scenario

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/fareprobe/internal/booking"
	"github.com/xkilldash9x/fareprobe/internal/browser"
	"github.com/xkilldash9x/fareprobe/internal/config"
	"github.com/xkilldash9x/fareprobe/internal/outcome"
)

// PageOpener opens a fresh page. release must be called exactly once.
type PageOpener func(ctx context.Context) (page browser.Page, release func(), err error)

// Report is the outcome of one scenario.
type Report struct {
	Scenario string          `json:"scenario"`
	Result   *booking.Result `json:"result,omitempty"`
	Checks   []CheckResult   `json:"checks,omitempty"`
	Passed   bool            `json:"passed"`
	Error    string          `json:"error,omitempty"`
}

// Runner executes scenarios concurrently, each on its own page and with its
// own recorder. Sinks are shared across flows and closed by the caller.
type Runner struct {
	open        PageOpener
	base        booking.FlowDeps
	sinks       []outcome.Sink
	concurrency int
	interval    time.Duration
	logger      *zap.Logger
}

// NewRunner creates a runner. base supplies the shared flow dependencies;
// its Page and Recorder are replaced per scenario.
func NewRunner(open PageOpener, base booking.FlowDeps, cfg config.BatchConfig, sinks []outcome.Sink, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if base.Logger == nil {
		base.Logger = logger
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{
		open:        open,
		base:        base,
		sinks:       sinks,
		concurrency: concurrency,
		interval:    cfg.StartInterval,
		logger:      logger.Named("batch"),
	}
}

// Run executes every scenario and returns their reports in input order.
// Flow failures are reported, not returned; the error is non-nil only when
// ctx ends before every scenario has started.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) ([]Report, error) {
	limit := rate.Inf
	if r.interval > 0 {
		limit = rate.Every(r.interval)
	}
	limiter := rate.NewLimiter(limit, 1)

	reports := make([]Report, len(scenarios))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	r.logger.Info("Starting batch.",
		zap.Int("scenarios", len(scenarios)),
		zap.Int("concurrency", r.concurrency),
		zap.Duration("start_interval", r.interval))

	for i, sc := range scenarios {
		reports[i] = Report{Scenario: sc.Name(), Error: "not started"}
		g.Go(func() error {
			if err := limiter.Wait(gctx); err != nil {
				return err
			}
			reports[i] = r.runOne(gctx, sc)
			return nil
		})
	}
	err := g.Wait()

	passed := 0
	for _, rep := range reports {
		if rep.Passed {
			passed++
		}
	}
	r.logger.Info("Batch finished.", zap.Int("passed", passed), zap.Int("total", len(reports)))
	return reports, err
}

func (r *Runner) runOne(ctx context.Context, sc Scenario) Report {
	rep := Report{Scenario: sc.Name()}
	log := r.logger.With(zap.String("scenario", rep.Scenario))

	page, release, err := r.open(ctx)
	if err != nil {
		rep.Error = err.Error()
		log.Error("Could not open a page.", zap.Error(err))
		return rep
	}
	defer release()

	sinks := make([]outcome.Sink, len(r.sinks))
	for i, s := range r.sinks {
		sinks[i] = outcome.Shared(s)
	}
	rec := outcome.NewRecorder(log, sinks...)
	defer rec.Close()

	deps := r.base
	deps.Page = page
	deps.Recorder = rec

	res, err := booking.NewFlow(deps).Run(ctx, sc.Request)
	rep.Result = res
	if err != nil {
		rep.Error = err.Error()
	}
	rep.Passed = err == nil

	if res != nil {
		rep.Checks = evaluate(sc.compiled, EnvFor(res))
		for _, c := range rep.Checks {
			if !c.Passed {
				log.Warn("Advisory check failed.", zap.String("check", c.Check), zap.String("error", c.Error))
			}
		}
	}
	return rep
}
