package advisor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTrainOptions() TrainOptions {
	return TrainOptions{
		Seed:          42,
		PriceSamples:  1000,
		DateTrees:     50,
		PriceTrees:    100,
		DateMaxDepth:  5,
		PriceMaxDepth: 6,
		DateMinLeaf:   1,
		PriceMinLeaf:  5,
		Now:           func() time.Time { return time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func TestModelSaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "date_model.json")

	m := TrainSuccessModel(testTrainOptions())
	require.NoError(t, m.Save(path))

	loaded, err := LoadSuccessModel(path)
	require.NoError(t, err)
	assert.Equal(t, KindSuccess, loaded.Kind)
	assert.Equal(t, ModelVersion, loaded.Version)
	assert.Equal(t, 2000, loaded.Samples)
	assert.True(t, m.TrainedAt.Equal(loaded.TrainedAt))
	for _, lead := range []int{-30, 1, 45, 200, 600} {
		assert.InDelta(t, m.PredictSuccessProbability(lead), loaded.PredictSuccessProbability(lead), 1e-9)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestLoadModelErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file is unavailable", func(t *testing.T) {
		_, err := LoadSuccessModel(filepath.Join(dir, "absent.json"))
		assert.ErrorIs(t, err, ErrModelUnavailable)
	})

	t.Run("wrong kind is rejected", func(t *testing.T) {
		path := filepath.Join(dir, "price.json")
		m, _ := TrainPriceModel(testTrainOptions(), nil)
		require.NoError(t, m.Save(path))

		_, err := LoadSuccessModel(path)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrModelUnavailable)
		assert.Contains(t, err.Error(), `want "date-success"`)
	})

	t.Run("corrupt file is rejected", func(t *testing.T) {
		path := filepath.Join(dir, "corrupt.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
		_, err := LoadPriceModel(path)
		assert.Error(t, err)
	})

	t.Run("empty forest is rejected", func(t *testing.T) {
		path := filepath.Join(dir, "empty.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"kind":"price","version":1,"forest":{"trees":[]}}`), 0o644))
		_, err := LoadPriceModel(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no trees")
	})
}

func TestTrainedSuccessModelZones(t *testing.T) {
	m := TrainSuccessModel(testTrainOptions())

	assert.Less(t, m.PredictSuccessProbability(-10), AcceptProbability, "past dates are risky")
	assert.Greater(t, m.PredictSuccessProbability(100), SafeProbability, "the reliable window is safe")
	assert.Less(t, m.PredictSuccessProbability(700), AcceptProbability, "far future dates are risky")
	for _, lead := range []int{-500, 0, 50, 999} {
		p := m.PredictSuccessProbability(lead)
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}

func TestTrainPriceModelUsesHistory(t *testing.T) {
	opts := testTrainOptions()
	observed := time.Date(2025, time.May, 1, 9, 0, 0, 0, time.UTC)
	history := []Observation{
		{ObservedAt: observed, Departure: "05/31/2025", Price: 812.40},
		{ObservedAt: observed, Departure: "06/10/2025", Price: 777},
		{ObservedAt: observed, Departure: "bad date", Price: 900},
		{ObservedAt: observed, Departure: "04/01/2025", Price: 900},
		{ObservedAt: observed, Departure: "07/01/2025", Price: 0},
	}

	m, used := TrainPriceModel(opts, history)
	assert.Equal(t, 2, used)
	assert.Equal(t, opts.PriceSamples+2, m.Samples)
	assert.Equal(t, KindPrice, m.Kind)
}
