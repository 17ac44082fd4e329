package advisor

import (
	"time"

	"github.com/xkilldash9x/fareprobe/internal/config"
)

// TrainOptions controls offline training of both models.
type TrainOptions struct {
	Seed          int64
	PriceSamples  int
	DateTrees     int
	PriceTrees    int
	DateMaxDepth  int
	PriceMaxDepth int
	DateMinLeaf   int
	PriceMinLeaf  int
	Now           func() time.Time
}

// TrainOptionsFromConfig maps the training section of the config.
func TrainOptionsFromConfig(cfg config.TrainingConfig) TrainOptions {
	return TrainOptions{
		Seed:          cfg.Seed,
		PriceSamples:  cfg.PriceSamples,
		DateTrees:     cfg.DateTrees,
		PriceTrees:    cfg.PriceTrees,
		DateMaxDepth:  cfg.DateMaxDepth,
		PriceMaxDepth: cfg.PriceMaxDepth,
		DateMinLeaf:   cfg.DateMinLeaf,
		PriceMinLeaf:  cfg.PriceMinLeaf,
		Now:           time.Now,
	}
}

func (o TrainOptions) now() time.Time {
	if o.Now == nil {
		return time.Now().UTC()
	}
	return o.Now().UTC()
}

// Observation is a fare seen by a completed flow.
type Observation struct {
	ObservedAt time.Time
	Departure  string
	Price      float64
}

// TrainSuccessModel fits the date success classifier on the synthetic curve.
func TrainSuccessModel(opts TrainOptions) *Model {
	samples := SuccessCurve(newRand(opts.Seed))
	return &Model{
		Kind:      KindSuccess,
		Version:   ModelVersion,
		TrainedAt: opts.now(),
		Samples:   len(samples),
		Forest: FitForest(samples, ForestOptions{
			Trees: opts.DateTrees,
			Tree:  TreeOptions{MaxDepth: opts.DateMaxDepth, MinLeaf: opts.DateMinLeaf},
			Seed:  opts.Seed,
		}),
	}
}

// TrainPriceModel fits the price regressor on the synthetic curve plus every
// usable observation. Lead time of an observation is measured from the day it
// was observed. It returns the model and how many observations were used.
func TrainPriceModel(opts TrainOptions, history []Observation) (*Model, int) {
	samples := PriceCurve(newRand(opts.Seed+1), opts.PriceSamples)
	used := 0
	for _, o := range history {
		dep, err := ParseDate(o.Departure)
		if err != nil || o.Price <= 0 {
			continue
		}
		lead := LeadDays(Today(o.ObservedAt), dep)
		if lead < 0 {
			continue
		}
		samples = append(samples, Sample{X: float64(lead), Y: o.Price})
		used++
	}

	return &Model{
		Kind:      KindPrice,
		Version:   ModelVersion,
		TrainedAt: opts.now(),
		Samples:   len(samples),
		Forest: FitForest(samples, ForestOptions{
			Trees: opts.PriceTrees,
			Tree:  TreeOptions{MaxDepth: opts.PriceMaxDepth, MinLeaf: opts.PriceMinLeaf},
			Seed:  opts.Seed,
		}),
	}, used
}
