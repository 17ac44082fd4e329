package booking

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/fareprobe/internal/advisor"
	"github.com/xkilldash9x/fareprobe/internal/browser"
	"github.com/xkilldash9x/fareprobe/internal/config"
	"github.com/xkilldash9x/fareprobe/internal/outcome"
	"github.com/xkilldash9x/fareprobe/internal/strategy"
)

// TripType selects round trip or one way.
type TripType string

const (
	RoundTrip TripType = "round-trip"
	OneWay    TripType = "one-way"
)

// Search submission methods.
const (
	SubmitClick  = "click"
	SubmitScript = "script"
)

// Request is one search to perform.
type Request struct {
	Label       string   `json:"label,omitempty" yaml:"name"`
	Origin      Endpoint `json:"origin" yaml:"origin"`
	Destination Endpoint `json:"destination" yaml:"destination"`
	Departure   string   `json:"departure" yaml:"departure"`
	Return      string   `json:"return,omitempty" yaml:"return"`
	Trip        TripType `json:"trip" yaml:"trip"`
}

// RoundTrip reports whether the request needs a return date.
func (r Request) RoundTrip() bool { return r.Trip != OneWay }

// Validate checks the request before a browser is spent on it.
func (r Request) Validate() error {
	switch {
	case r.Origin.City == "":
		return errors.New("origin city is required")
	case r.Destination.City == "":
		return errors.New("destination city is required")
	case r.Departure == "":
		return errors.New("departure date is required")
	case r.RoundTrip() && r.Return == "":
		return errors.New("return date is required for a round trip")
	case r.Trip != "" && r.Trip != RoundTrip && r.Trip != OneWay:
		return fmt.Errorf("unknown trip type %q", r.Trip)
	}
	return nil
}

// FlowContext is the mutable state of one flow, filled in step by step.
type FlowContext struct {
	Request             Request             `json:"request"`
	DepartureResolution advisor.Resolution  `json:"departure_resolution"`
	ReturnResolution    *advisor.Resolution `json:"return_resolution,omitempty"`
	TripTypeSet         bool                `json:"trip_type_set"`
	Origin              FieldResult         `json:"origin"`
	Destination         FieldResult         `json:"destination"`
	DepartureSelection  DateSelection       `json:"departure_selection"`
	ReturnSelection     *DateSelection      `json:"return_selection,omitempty"`
	Verification        Verification        `json:"verification"`
	SubmittedVia        string              `json:"submitted_via,omitempty"`
	ResultsIndicator    string              `json:"results_indicator,omitempty"`

	// StayCollapsed is set when date substitution left the return on or
	// before the departure.
	StayCollapsed bool `json:"stay_collapsed,omitempty"`
}

// NewFlowContext starts the state for req.
func NewFlowContext(req Request) *FlowContext {
	return &FlowContext{Request: req}
}

// ResolvedReturn is the return date actually attempted, or empty.
func (fc *FlowContext) ResolvedReturn() string {
	if fc.ReturnResolution == nil {
		return ""
	}
	return fc.ReturnResolution.Date
}

// Searcher sequences the form steps over one page.
type Searcher struct {
	page     browser.Page
	profile  Profile
	timing   config.TimingConfig
	resolver *advisor.DateResolver
	fields   *FieldController
	calendar *CalendarNavigator
	recorder *outcome.Recorder
	logger   *zap.Logger
}

// NewSearcher wires the form components for page.
func NewSearcher(page browser.Page, profile Profile, timing config.TimingConfig, resolver *advisor.DateResolver, recorder *outcome.Recorder, logger *zap.Logger) *Searcher {
	if resolver == nil {
		resolver = advisor.NewDateResolver(nil)
	}
	return &Searcher{
		page:     page,
		profile:  profile,
		timing:   timing,
		resolver: resolver,
		fields:   NewFieldController(page, profile, timing, logger),
		calendar: NewCalendarNavigator(page, profile, timing, logger),
		recorder: recorder,
		logger:   logger.Named("search"),
	}
}

// Search selects the trip type, fills both endpoints, resolves and selects
// the dates, submits and waits for results. Step failures degrade and are
// recorded; only a done context stops it.
func (s *Searcher) Search(ctx context.Context, fc *FlowContext) error {
	req := fc.Request
	steps := []func(context.Context, *FlowContext){
		s.selectTripType,
		func(ctx context.Context, fc *FlowContext) { s.enterEndpoint(ctx, fc, RoleOrigin, req.Origin) },
		func(ctx context.Context, fc *FlowContext) { s.enterEndpoint(ctx, fc, RoleDestination, req.Destination) },
		s.selectDates,
		s.submit,
		s.awaitResults,
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("search interrupted: %w", err)
		}
		step(ctx, fc)
	}
	return ctx.Err()
}

func (s *Searcher) selectTripType(ctx context.Context, fc *FlowContext) {
	radio := s.profile.RoundTripRadio
	if !fc.Request.RoundTrip() {
		radio = s.profile.OneWayRadio
	}
	done := s.recorder.Begin(ctx, StepTripType, ActionJavaScript, radio)

	var found bool
	err := s.page.Evaluate(ctx, checkRadioScript, selectorArg{CSS: radio}, &found)
	if err == nil && !found {
		err = fmt.Errorf("trip type radio %s not found", radio)
	}
	fc.TripTypeSet = err == nil
	if err != nil {
		s.logger.Warn("Trip type not selected; keeping page default.", zap.Error(err))
	}
	_ = s.page.Wait(ctx, s.timing.TripTypeSettle)
	done(err, "trip="+string(tripOrDefault(fc.Request.Trip)))
}

func tripOrDefault(t TripType) TripType {
	if t == "" {
		return RoundTrip
	}
	return t
}

func (s *Searcher) enterEndpoint(ctx context.Context, fc *FlowContext, role Role, ep Endpoint) {
	step := StepOrigin
	if role == RoleDestination {
		step = StepDestination
	}
	done := s.recorder.Begin(ctx, step, ActionInput, s.profile.input(role).String())

	res := s.fields.Enter(ctx, role, ep)
	if role == RoleDestination {
		fc.Destination = res
	} else {
		fc.Origin = res
	}
	done(nil, fmt.Sprintf("endpoint=%s via=%s confidence=%s", ep, res.Via, res.Confidence))
}

func (s *Searcher) selectDates(ctx context.Context, fc *FlowContext) {
	req := fc.Request
	fc.DepartureResolution = s.resolver.Resolve(req.Departure)
	if req.RoundTrip() {
		r := s.resolver.Resolve(req.Return)
		fc.ReturnResolution = &r
		fc.StayCollapsed = stayCollapsed(fc.DepartureResolution, r)
		if fc.StayCollapsed {
			s.logger.Warn("Substituted dates leave the return on or before the departure.",
				zap.String("departure", fc.DepartureResolution.Date),
				zap.String("return", r.Date),
				zap.String("departure_status", string(fc.DepartureResolution.Status)),
				zap.String("return_status", string(r.Status)))
		}
	}

	done := s.recorder.Begin(ctx, StepDates, ActionComplex, s.profile.DateInput.String())

	fc.DepartureSelection = s.calendar.SelectDate(ctx, fc.DepartureResolution.Date, true)
	if fc.ReturnResolution != nil {
		sel := s.calendar.SelectDate(ctx, fc.ReturnResolution.Date, false)
		fc.ReturnSelection = &sel
	}
	fc.Verification = s.calendar.Verify(ctx, req.RoundTrip())

	note := fmt.Sprintf("dep=%s mode=%s", fc.DepartureResolution.Date, fc.DepartureSelection.Mode)
	if fc.ReturnSelection != nil {
		note += fmt.Sprintf(" ret=%s mode=%s", fc.ReturnResolution.Date, fc.ReturnSelection.Mode)
	}
	if fc.StayCollapsed {
		note += " stay=collapsed"
	}
	var err error
	if !fc.Verification.OK {
		err = errors.New("date inputs empty after selection")
	}
	done(err, note)
}

// stayCollapsed reports whether substitution moved the return date on or
// before the departure. Each date is resolved on its own and risky dates all
// resolve to the earliest safe lead time.
func stayCollapsed(dep, ret advisor.Resolution) bool {
	if !dep.Changed() && !ret.Changed() {
		return false
	}
	if dep.Status == advisor.StatusUnparseable || ret.Status == advisor.StatusUnparseable {
		return false
	}
	return ret.LeadDays <= dep.LeadDays
}

func (s *Searcher) submit(ctx context.Context, fc *FlowContext) {
	btn := s.profile.SearchButton
	done := s.recorder.Begin(ctx, StepSearch, ActionClick, btn.String())

	_, via, err := strategy.FirstSuccess(ctx,
		strategy.New(SubmitClick, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.page.Click(ctx, btn, 0, browser.ClickOptions{Force: true, Timeout: s.timing.SearchClickTimeout})
		}),
		strategy.New(SubmitScript, func(ctx context.Context) (struct{}, error) {
			var clicked bool
			if err := s.page.Evaluate(ctx, clickByTextScript, selectorArg{CSS: btn.CSS, Text: btn.HasText}, &clicked); err != nil {
				return struct{}{}, err
			}
			if !clicked {
				return struct{}{}, fmt.Errorf("no %q button in page", btn.HasText)
			}
			return struct{}{}, nil
		}),
	)
	fc.SubmittedVia = via
	switch {
	case err != nil:
		s.logger.Warn("Search could not be submitted.", zap.Error(err))
	case via == SubmitScript:
		s.logger.Warn("Search button click failed; submitted by script.")
	default:
		s.logger.Info("Search submitted.")
	}
	done(err, "via="+via)
}

func (s *Searcher) awaitResults(ctx context.Context, fc *FlowContext) {
	_ = s.page.Wait(ctx, s.timing.ResultsSettle)

	done := s.recorder.Begin(ctx, StepResults, ActionWait, firstOf(s.profile.ResultIndicators))

	strategies := make([]strategy.Strategy[struct{}], 0, len(s.profile.ResultIndicators))
	for _, loc := range s.profile.ResultIndicators {
		strategies = append(strategies, strategy.New(loc.String(), func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.page.WaitFor(ctx, loc, s.timing.ResultIndicatorTimeout)
		}))
	}
	_, found, err := strategy.FirstSuccess(ctx, strategies...)
	fc.ResultsIndicator = found
	if err != nil {
		s.logger.Warn("No results indicator appeared.", zap.Error(err))
	} else {
		s.logger.Info("Results detected.", zap.String("indicator", found))
	}
	done(err, "indicator="+found)
}
