package advisor

import (
	"errors"
	"time"

	"go.uber.org/zap"
)

// Resolution thresholds and scan window.
const (
	AcceptProbability = 0.6
	SafeProbability   = 0.8
	ScanFromDays      = 3
	ScanToDays        = 364
)

// ResolutionStatus explains how a resolved date was chosen.
type ResolutionStatus string

const (
	StatusAccepted         ResolutionStatus = "accepted"
	StatusSubstituted      ResolutionStatus = "substituted"
	StatusModelUnavailable ResolutionStatus = "model-unavailable"
	StatusUnparseable      ResolutionStatus = "unparseable"
	StatusNoSafeDate       ResolutionStatus = "no-safe-date"
)

// Resolution is the outcome of resolving one target date.
type Resolution struct {
	Input       string           `json:"input"`
	Date        string           `json:"date"`
	LeadDays    int              `json:"lead_days"`
	Probability float64          `json:"probability"`
	Status      ResolutionStatus `json:"status"`
}

// Changed reports whether the resolved date differs from the input.
func (r Resolution) Changed() bool { return r.Status == StatusSubstituted }

// DateResolver substitutes risky target dates with the earliest safe one.
type DateResolver struct {
	predictor SuccessPredictor
	now       func() time.Time
	logger    *zap.Logger
}

// ResolverOption configures a DateResolver.
type ResolverOption func(*DateResolver)

// WithClock overrides the time source.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *DateResolver) { r.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ResolverOption {
	return func(r *DateResolver) { r.logger = logger.Named("resolver") }
}

// NewDateResolver builds a resolver. A nil predictor makes every resolution
// a pass-through with StatusModelUnavailable.
func NewDateResolver(predictor SuccessPredictor, opts ...ResolverOption) *DateResolver {
	r := &DateResolver{predictor: predictor, now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve keeps text when the predicted success probability of its lead time
// exceeds AcceptProbability. Otherwise it scans lead times ScanFromDays to
// ScanToDays from today and returns the first whose probability exceeds
// SafeProbability, regardless of where the target was. It never fails:
// unparseable input, a missing model or an empty scan return text unchanged.
func (r *DateResolver) Resolve(text string) Resolution {
	res := Resolution{Input: text, Date: text}

	target, err := ParseDate(text)
	if err != nil {
		res.Status = StatusUnparseable
		r.logger.Warn("Target date is not MM/DD/YYYY; using it unchanged.", zap.String("date", text))
		return res
	}
	today := Today(r.now())
	res.LeadDays = LeadDays(today, target)

	if r.predictor == nil {
		res.Status = StatusModelUnavailable
		r.logger.Warn("No date model loaded; using target date unchanged.", zap.String("date", text))
		return res
	}

	res.Probability = r.predictor.PredictSuccessProbability(res.LeadDays)
	if res.Probability > AcceptProbability {
		res.Status = StatusAccepted
		r.logger.Debug("Target date accepted.",
			zap.String("date", text), zap.Int("lead_days", res.LeadDays), zap.Float64("probability", res.Probability))
		return res
	}

	for lead := ScanFromDays; lead <= ScanToDays; lead++ {
		p := r.predictor.PredictSuccessProbability(lead)
		if p <= SafeProbability {
			continue
		}
		res.Date = FormatDate(today.AddDate(0, 0, lead))
		res.LeadDays = lead
		res.Probability = p
		res.Status = StatusSubstituted
		r.logger.Info("Risky target date substituted.",
			zap.String("target", text), zap.String("resolved", res.Date), zap.Float64("probability", p))
		return res
	}

	res.Status = StatusNoSafeDate
	r.logger.Warn("No safe date found in scan window; using target date unchanged.", zap.String("date", text))
	return res
}

// LoadDateResolver loads the success model at path and builds a resolver
// around it. A missing model degrades to a pass-through resolver; any other
// load failure is returned alongside that pass-through resolver.
func LoadDateResolver(path string, logger *zap.Logger, opts ...ResolverOption) (*DateResolver, error) {
	opts = append([]ResolverOption{WithLogger(logger)}, opts...)
	m, err := LoadSuccessModel(path)
	if err != nil {
		if errors.Is(err, ErrModelUnavailable) {
			logger.Warn("Date model unavailable; dates will pass through.", zap.String("path", path))
			return NewDateResolver(nil, opts...), nil
		}
		return NewDateResolver(nil, opts...), err
	}
	return NewDateResolver(m, opts...), nil
}
