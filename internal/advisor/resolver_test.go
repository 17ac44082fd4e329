package advisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var fixedNow = time.Date(2025, time.March, 10, 15, 4, 5, 0, time.UTC)

func clock() time.Time { return fixedNow }

// zoned mirrors the shape of the trained success curve exactly.
var zoned = SuccessFunc(func(lead int) float64 {
	switch {
	case lead < 0:
		return 0
	case lead < 3:
		return 0.2
	case lead < 330:
		return 0.95
	default:
		return 0.1
	}
})

func dateAt(lead int) string {
	return FormatDate(Today(fixedNow).AddDate(0, 0, lead))
}

func TestResolveAcceptsSafeDate(t *testing.T) {
	r := NewDateResolver(zoned, WithClock(clock))
	res := r.Resolve(dateAt(45))

	assert.Equal(t, StatusAccepted, res.Status)
	assert.Equal(t, dateAt(45), res.Date)
	assert.Equal(t, 45, res.LeadDays)
	assert.Equal(t, 0.95, res.Probability)
	assert.False(t, res.Changed())
}

func TestResolveSubstitutesPastDate(t *testing.T) {
	r := NewDateResolver(zoned, WithClock(clock))
	res := r.Resolve(dateAt(-10))

	assert.Equal(t, StatusSubstituted, res.Status)
	assert.True(t, res.Changed())
	assert.Equal(t, dateAt(3), res.Date)
	assert.Equal(t, 3, res.LeadDays)
	assert.Greater(t, res.Probability, SafeProbability)
}

func TestResolveScanIgnoresTargetDirection(t *testing.T) {
	r := NewDateResolver(zoned, WithClock(clock))

	// Far future targets reset to the near future rather than being nudged back.
	res := r.Resolve(dateAt(500))
	assert.Equal(t, StatusSubstituted, res.Status)
	assert.Equal(t, dateAt(3), res.Date)
}

func TestResolveThresholdsAreStrict(t *testing.T) {
	t.Run("exactly the accept threshold is not accepted", func(t *testing.T) {
		var scanned []int
		p := SuccessFunc(func(lead int) float64 {
			if lead == 20 {
				return AcceptProbability
			}
			scanned = append(scanned, lead)
			if lead == 7 {
				return 0.81
			}
			return SafeProbability
		})
		res := NewDateResolver(p, WithClock(clock)).Resolve(dateAt(20))

		assert.Equal(t, StatusSubstituted, res.Status)
		assert.Equal(t, dateAt(7), res.Date)
		assert.Equal(t, []int{3, 4, 5, 6, 7}, scanned, "scan is ascending from 3 and stops at the first safe lead")
	})

	t.Run("no candidate above the safe threshold", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		var scanned []int
		p := SuccessFunc(func(lead int) float64 {
			if lead == -1 {
				return 0.1
			}
			scanned = append(scanned, lead)
			return SafeProbability
		})
		res := NewDateResolver(p, WithClock(clock), WithLogger(zap.New(core))).Resolve(dateAt(-1))

		assert.Equal(t, StatusNoSafeDate, res.Status)
		assert.Equal(t, dateAt(-1), res.Date)
		assert.Equal(t, -1, res.LeadDays)
		require.Len(t, scanned, ScanToDays-ScanFromDays+1)
		assert.Equal(t, ScanFromDays, scanned[0])
		assert.Equal(t, ScanToDays, scanned[len(scanned)-1])
		assert.Equal(t, 1, logs.FilterMessageSnippet("No safe date").Len())
	})
}

func TestResolveFailsSoft(t *testing.T) {
	t.Run("missing model passes through", func(t *testing.T) {
		res := NewDateResolver(nil, WithClock(clock)).Resolve(dateAt(-10))
		assert.Equal(t, StatusModelUnavailable, res.Status)
		assert.Equal(t, dateAt(-10), res.Date)
		assert.Equal(t, -10, res.LeadDays)
	})

	t.Run("unparseable text passes through", func(t *testing.T) {
		res := NewDateResolver(zoned, WithClock(clock)).Resolve("next tuesday")
		assert.Equal(t, StatusUnparseable, res.Status)
		assert.Equal(t, "next tuesday", res.Date)
	})
}

func TestResolveIsIdempotentInReliableWindow(t *testing.T) {
	r := NewDateResolver(zoned, WithClock(clock))
	for lead := 3; lead <= 330; lead++ {
		once := r.Resolve(dateAt(lead))
		twice := r.Resolve(once.Date)
		require.Equal(t, once.Date, twice.Date, "lead %d", lead)
	}
}

func TestResolvePastDatesWithTrainedModel(t *testing.T) {
	m := TrainSuccessModel(testTrainOptions())
	r := NewDateResolver(m, WithClock(clock))

	for _, lead := range []int{-1, -10, -365} {
		res := r.Resolve(dateAt(lead))
		require.Equal(t, StatusSubstituted, res.Status, "lead %d", lead)
		assert.NotEqual(t, dateAt(lead), res.Date)
		assert.GreaterOrEqual(t, res.LeadDays, ScanFromDays)
		assert.LessOrEqual(t, res.LeadDays, ScanToDays)
		assert.Greater(t, m.PredictSuccessProbability(res.LeadDays), SafeProbability)

		again := r.Resolve(res.Date)
		assert.Equal(t, res.Date, again.Date)
	}
}

func TestLoadDateResolver(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r, err := LoadDateResolver(t.TempDir()+"/missing.json", zap.New(core), WithClock(clock))
	require.NoError(t, err)
	assert.Equal(t, StatusModelUnavailable, r.Resolve(dateAt(10)).Status)
	assert.Equal(t, 1, logs.FilterMessageSnippet("Date model unavailable").Len())
}
