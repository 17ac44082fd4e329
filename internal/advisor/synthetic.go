package advisor

import (
	"math/rand/v2"
)

// Success curve zones, in lead days.
const (
	tooSoonFrom  = 0
	reliableFrom = 3
	tooFarFrom   = 330
)

// SuccessCurve returns one labeled sample per lead day in [-1000, 1000).
// Success odds are 0 in the past, 0.2 for the next two days, 0.95 up to
// 330 days out and 0.1 beyond.
func SuccessCurve(rng *rand.Rand) []Sample {
	samples := make([]Sample, 0, 2000)
	for days := -1000; days < 1000; days++ {
		var p float64
		switch {
		case days < tooSoonFrom:
			p = 0
		case days < reliableFrom:
			p = 0.2
		case days < tooFarFrom:
			p = 0.95
		default:
			p = 0.1
		}
		var y float64
		if rng.Float64() < p {
			y = 1
		}
		samples = append(samples, Sample{X: float64(days), Y: y})
	}
	return samples
}

// basePrice anchors the synthetic fare curve.
const basePrice = 800

// PriceCurve draws n fares for lead days in [1, 180). Departures within a
// week cost the most, 21 to 60 days out the least.
func PriceCurve(rng *rand.Rand, n int) []Sample {
	uniform := func(lo, hi float64) float64 { return lo + rng.Float64()*(hi-lo) }
	samples := make([]Sample, 0, n)
	for i := 0; i < n; i++ {
		days := 1 + rng.IntN(179)
		var price float64
		switch {
		case days < 7:
			price = basePrice * uniform(1.5, 2.5)
		case days < 21:
			price = basePrice * uniform(1.2, 1.5)
		case days < 60:
			price = basePrice * uniform(0.8, 1.1)
		default:
			price = basePrice * uniform(1.0, 1.3)
		}
		price += rng.NormFloat64() * 50
		samples = append(samples, Sample{X: float64(days), Y: price})
	}
	return samples
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)+1))
}
