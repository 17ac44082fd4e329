package outcome

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVSinkRoundTrip(t *testing.T) {
	dir := t.TempDir()
	stepsPath := filepath.Join(dir, "data", "interaction_log.csv")
	pricesPath := filepath.Join(dir, "data", "price_history.csv")
	sink := NewCSVSink(stepsPath, pricesPath)
	ctx := context.Background()

	ts := time.Date(2025, time.March, 10, 12, 30, 0, 250_000_000, time.UTC)
	steps := []StepRecord{
		{Timestamp: ts, RunID: "ab12cd34", StepName: "Set Origin", ActionType: "input", Selector: "input[name*='originCode']", Success: true, DurationMS: 4200, Context: "city=New York, code=JFK"},
		{Timestamp: ts.Add(time.Second), RunID: "ab12cd34", StepName: "Select Dates", ActionType: "complex_interaction", Selector: "input[name*=\"travelDatetime\"]", Success: false, ErrorMessage: "month header not found", DurationMS: 31000},
	}
	for _, s := range steps {
		require.NoError(t, sink.WriteStep(ctx, s))
	}
	obs := PriceObservation{Timestamp: ts, DepartureDate: "12/15/2025", ReturnDate: "12/25/2025", Price: 1234.56}
	require.NoError(t, sink.WritePrice(ctx, obs))
	require.NoError(t, sink.Close())

	raw, err := os.ReadFile(stepsPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(StepColumns, ","), lines[0])

	gotSteps, err := ReadSteps(stepsPath)
	require.NoError(t, err)
	if diff := cmp.Diff(steps, gotSteps); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}

	gotPrices, err := ReadPrices(pricesPath)
	require.NoError(t, err)
	if diff := cmp.Diff([]PriceObservation{obs}, gotPrices); diff != "" {
		t.Errorf("prices mismatch (-want +got):\n%s", diff)
	}
}

func TestCSVSinkDisabledPaths(t *testing.T) {
	sink := NewCSVSink("", "")
	assert.NoError(t, sink.WriteStep(context.Background(), StepRecord{StepName: "x"}))
	assert.NoError(t, sink.WritePrice(context.Background(), PriceObservation{Price: 1}))
}

func TestCSVSinkConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steps.csv")
	sink := NewCSVSink(path, "")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = sink.WriteStep(context.Background(), StepRecord{
				Timestamp: time.Now(),
				RunID:     fmt.Sprintf("run%05d", i),
				StepName:  "step",
				Success:   true,
			})
		}(i)
	}
	wg.Wait()

	got, err := ReadSteps(path)
	require.NoError(t, err)
	assert.Len(t, got, 20)
}

func TestReadHistoryMissingFile(t *testing.T) {
	steps, err := ReadSteps(filepath.Join(t.TempDir(), "none.csv"))
	require.NoError(t, err)
	assert.Empty(t, steps)

	prices, err := ReadPrices(filepath.Join(t.TempDir(), "none.csv"))
	require.NoError(t, err)
	assert.Empty(t, prices)
}

func TestReadHistoryLegacyFormats(t *testing.T) {
	dir := t.TempDir()

	prices := filepath.Join(dir, "price_history.csv")
	require.NoError(t, os.WriteFile(prices, []byte(
		"timestamp,dep_date,ret_date,price\n"+
			"2025-11-20 10:11:12.123456,12/15/2025,12/25/2025,845.0\n"), 0o644))
	got, err := ReadPrices(prices)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 845.0, got[0].Price)
	assert.Equal(t, time.Date(2025, time.November, 20, 10, 11, 12, 123456000, time.UTC), got[0].Timestamp)

	// Older step logs have no context column and fractional durations.
	steps := filepath.Join(dir, "test_history.csv")
	require.NoError(t, os.WriteFile(steps, []byte(
		"timestamp,run_id,step_name,action_type,selector,status,error_message,duration_ms\n"+
			"2025-11-20T10:11:12.5,1a2b3c4d,Click Search,click,button,0,timeout,30012.7\n"), 0o644))
	recs, err := ReadSteps(steps)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.False(t, recs[0].Success)
	assert.Equal(t, int64(30012), recs[0].DurationMS)
	assert.Equal(t, "", recs[0].Context)
}

func TestReadPricesRejectsBadRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.csv")
	require.NoError(t, os.WriteFile(path, []byte("timestamp,dep_date,ret_date,price\nyesterday,a,b,9\n"), 0o644))
	_, err := ReadPrices(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ":2:")
}

func TestParseStepLine(t *testing.T) {
	_, ok, err := ParseStepLine(strings.Join(StepColumns, ","))
	require.NoError(t, err)
	assert.False(t, ok)

	rec, ok, err := ParseStepLine(`2025-03-10T12:00:00Z,ab12cd34,Set Origin,input,"a, b",1,,10,`)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a, b", rec.Selector)
	assert.True(t, rec.Success)

	_, _, err = ParseStepLine(`not-a-time,x`)
	assert.Error(t, err)
}
