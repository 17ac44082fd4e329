// Package advisor decides which travel dates to attempt and what a fare
// should roughly cost, from models trained offline on lead time.
package advisor

import "errors"

var (
	// ErrModelUnavailable means no model artifact could be loaded.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrUnparseableDate means the date text is not MM/DD/YYYY.
	ErrUnparseableDate = errors.New("unparseable date")
)

// SuccessPredictor estimates the probability that interacting with a date
// lead days away succeeds.
type SuccessPredictor interface {
	PredictSuccessProbability(leadDays int) float64
}

// PricePredictor estimates the fare for a departure lead days away.
type PricePredictor interface {
	PredictPrice(leadDays int) float64
}

// SuccessFunc adapts a function to SuccessPredictor.
type SuccessFunc func(leadDays int) float64

func (f SuccessFunc) PredictSuccessProbability(leadDays int) float64 { return f(leadDays) }

// PriceFunc adapts a function to PricePredictor.
type PriceFunc func(leadDays int) float64

func (f PriceFunc) PredictPrice(leadDays int) float64 { return f(leadDays) }
