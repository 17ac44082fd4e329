package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/fareprobe/internal/advisor"
	"github.com/xkilldash9x/fareprobe/internal/artifact"
	"github.com/xkilldash9x/fareprobe/internal/browser"
	"github.com/xkilldash9x/fareprobe/internal/config"
	"github.com/xkilldash9x/fareprobe/internal/observability"
	"github.com/xkilldash9x/fareprobe/internal/outcome"
)

// FlowDeps are the collaborators of one flow. Page and Recorder are owned by
// this flow alone; Estimator, Resolver and Artifacts may be shared.
type FlowDeps struct {
	Page      browser.Page
	Profile   Profile
	Timing    config.TimingConfig
	Resolver  *advisor.DateResolver
	Estimator *advisor.PriceEstimator
	Recorder  *outcome.Recorder
	Artifacts *artifact.Store
	Logger    *zap.Logger
}

// Result is everything a flow observed.
type Result struct {
	RunID       string           `json:"run_id"`
	Label       string           `json:"label,omitempty"`
	Context     *FlowContext     `json:"context"`
	Overlays    OverlayReport    `json:"overlays"`
	Outcome     Outcome          `json:"outcome"`
	Diagnostics artifact.Capture `json:"diagnostics"`
	Duration    time.Duration    `json:"duration"`
	Error       string           `json:"error,omitempty"`
}

// Flow runs one search end to end on one page.
type Flow struct {
	deps   FlowDeps
	logger *zap.Logger
}

// NewFlow creates a flow. Nil advisor dependencies fall back to pass-through
// date resolution and no fare estimates.
func NewFlow(deps FlowDeps) *Flow {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Resolver == nil {
		deps.Resolver = advisor.NewDateResolver(nil, advisor.WithLogger(deps.Logger))
	}
	if deps.Estimator == nil {
		deps.Estimator = advisor.NewPriceEstimator(nil, nil)
	}
	if deps.Recorder == nil {
		deps.Recorder = outcome.NewRecorder(deps.Logger)
	}
	return &Flow{deps: deps, logger: deps.Logger.Named("flow")}
}

// Run navigates, searches and extracts the fare for req. The returned Result
// is non-nil whenever the flow started. Terminal failures capture a
// screenshot and the page markup and are returned as *FlowError.
func (f *Flow) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	start := time.Now()
	d := f.deps
	rec := d.Recorder
	fc := NewFlowContext(req)
	res := &Result{RunID: rec.RunID(), Label: req.Label, Context: fc}
	log := observability.ForFlow(f.logger, res.RunID, req.Label)
	defer func() { res.Duration = time.Since(start) }()

	log.Info("Starting flow.",
		zap.Stringer("origin", req.Origin),
		zap.Stringer("destination", req.Destination),
		zap.String("departure", req.Departure),
		zap.String("return", req.Return))

	done := rec.Begin(ctx, StepNavigate, ActionNavigation, d.Profile.URL)
	err := d.Page.Navigate(ctx, d.Profile.URL)
	done(err, "")
	if err != nil {
		return res, f.fail(ctx, res, "could not load search page", fmt.Errorf("%w: %w", ErrNavigation, err))
	}
	_ = d.Page.Wait(ctx, d.Timing.PageLoadSettle)

	done = rec.Begin(ctx, StepOverlays, ActionJavaScript, "consent_buttons")
	res.Overlays, err = DismissOverlays(ctx, d.Page, d.Profile, d.Timing, d.Logger.Named("overlays"))
	done(err, fmt.Sprintf("passes=%d removed=%d", res.Overlays.Passes, res.Overlays.Removed))

	searcher := NewSearcher(d.Page, d.Profile, d.Timing, d.Resolver, rec, d.Logger)
	if err := searcher.Search(ctx, fc); err != nil {
		res.Error = err.Error()
		return res, err
	}

	done = rec.Begin(ctx, StepPrice, ActionExtract, firstOf(d.Profile.PriceElements))
	ex, err := NewPriceExtractor(d.Page, d.Profile, d.Timing, d.Logger).Extract(ctx)
	if err == nil {
		res.Outcome = NewOutcome(&ex)
		done(nil, "strategy="+ex.Strategy)
	} else {
		res.Outcome = NewOutcome(nil)
		done(err, "")
	}
	f.advise(res, fc, log)

	if res.Outcome.Found() {
		rec.Price(ctx, outcome.PriceObservation{
			DepartureDate: fc.DepartureResolution.Date,
			ReturnDate:    fc.ResolvedReturn(),
			Price:         *res.Outcome.Price,
		})
	}

	verdict := f.verdict(res.Outcome, err)
	done = rec.Begin(ctx, StepVerdict, ActionAssert, "price")
	done(verdict, res.Outcome.PriceText)
	if verdict != nil {
		return res, f.fail(ctx, res, verdictReason(verdict), verdict)
	}

	log.Info("Flow passed.",
		zap.String("price", res.Outcome.PriceText),
		zap.Float64("value", *res.Outcome.Price))
	return res, nil
}

// advise attaches the fare estimate for the resolved departure date and logs
// how far the found price is from it. It never affects the verdict.
func (f *Flow) advise(res *Result, fc *FlowContext, log *zap.Logger) {
	est, lead, ok := f.deps.Estimator.EstimateFor(fc.DepartureResolution.Date)
	if !ok {
		return
	}
	res.Outcome.Estimate = &est
	fields := []zap.Field{zap.Int("lead_days", lead), zap.Float64("estimate", est)}
	if res.Outcome.Found() && est > 0 {
		fields = append(fields, zap.Float64("deviation", (*res.Outcome.Price-est)/est))
	}
	log.Info("Fare estimate.", fields...)
}

func (f *Flow) verdict(o Outcome, extractErr error) error {
	switch {
	case !o.Found():
		if extractErr != nil {
			return extractErr
		}
		return ErrPriceNotFound
	case !o.WithinSanity:
		return fmt.Errorf("%w: %.2f not in [%.0f, %.0f]", ErrPriceOutOfRange, *o.Price, SanityMin, SanityMax)
	case !o.WithinExpected:
		return fmt.Errorf("%w: %.2f not in [%.0f, %.0f]", ErrPriceUnexpected, *o.Price, ExpectedMin, ExpectedMax)
	}
	return nil
}

func verdictReason(err error) string {
	switch {
	case errors.Is(err, ErrPriceNotFound):
		return "no price on results page"
	case errors.Is(err, ErrPriceOutOfRange):
		return "price failed sanity check"
	case errors.Is(err, ErrPriceUnexpected):
		return "price outside expected range"
	default:
		return "flow failed"
	}
}

// fail captures diagnostics and builds the terminal error.
func (f *Flow) fail(ctx context.Context, res *Result, reason string, cause error) error {
	ferr := &FlowError{RunID: res.RunID, Reason: reason, Err: cause}
	if f.deps.Artifacts != nil {
		capture, err := f.deps.Artifacts.Capture(ctx, f.deps.Page, res.RunID, reason)
		if err != nil {
			f.logger.Warn("Diagnostic capture incomplete.", zap.Error(err))
		}
		ferr.Diagnostics = capture
		res.Diagnostics = capture
	}
	res.Error = ferr.Error()
	f.logger.Error("Flow failed.",
		zap.String("run_id", res.RunID),
		zap.String("reason", reason),
		zap.Error(cause),
		zap.String("screenshot", ferr.Diagnostics.Screenshot),
		zap.String("markup", ferr.Diagnostics.Markup))
	return ferr
}
