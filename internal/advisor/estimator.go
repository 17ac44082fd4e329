package advisor

import (
	"errors"
	"time"

	"go.uber.org/zap"
)

// PriceEstimator turns lead time into an advisory fare.
type PriceEstimator struct {
	predictor PricePredictor
	now       func() time.Time
}

// NewPriceEstimator builds an estimator. A nil predictor yields no estimates.
func NewPriceEstimator(predictor PricePredictor, now func() time.Time) *PriceEstimator {
	if now == nil {
		now = time.Now
	}
	return &PriceEstimator{predictor: predictor, now: now}
}

// Available reports whether a model backs the estimator.
func (e *PriceEstimator) Available() bool { return e != nil && e.predictor != nil }

// Estimate returns the predicted fare for a lead time.
func (e *PriceEstimator) Estimate(leadDays int) (float64, bool) {
	if !e.Available() {
		return 0, false
	}
	return e.predictor.PredictPrice(leadDays), true
}

// EstimateFor returns the predicted fare and lead time for a departure date.
func (e *PriceEstimator) EstimateFor(dateText string) (float64, int, bool) {
	dep, err := ParseDate(dateText)
	if err != nil {
		return 0, 0, false
	}
	lead := LeadDays(Today(e.now()), dep)
	price, ok := e.Estimate(lead)
	return price, lead, ok
}

// LoadPriceEstimator loads the price model at path. A missing model yields
// an estimator without predictions.
func LoadPriceEstimator(path string, logger *zap.Logger) (*PriceEstimator, error) {
	m, err := LoadPriceModel(path)
	if err != nil {
		if errors.Is(err, ErrModelUnavailable) {
			logger.Info("Price model unavailable; fare estimates disabled.", zap.String("path", path))
			return NewPriceEstimator(nil, nil), nil
		}
		return NewPriceEstimator(nil, nil), err
	}
	return NewPriceEstimator(m, nil), nil
}
