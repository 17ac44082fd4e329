package cmd

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/fareprobe/internal/advisor"
	"github.com/xkilldash9x/fareprobe/internal/booking"
	"github.com/xkilldash9x/fareprobe/internal/outcome"
	"github.com/xkilldash9x/fareprobe/internal/risk"
)

func TestSearchCmd_Validation(t *testing.T) {
	env := newTestEnv(t, "")
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no origin", []string{"search", "--to", "Berlin", "--depart", "11/05/2025", "--one-way"}, "origin city is required"},
		{"no return", []string{"search", "--from", "New York", "--to", "Berlin", "--depart", "11/05/2025"}, "return date is required"},
		{"bad format", []string{"search", "--from", "New York", "--to", "Berlin", "--depart", "11/05/2025", "--one-way", "-o", "xml"}, `unknown output format "xml"`},
		{"positional args", []string{"search", "extra"}, "unknown command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSearchCmd_DryRun(t *testing.T) {
	env := newTestEnv(t, "")
	_, err := env.run(t, "search", "--from", "New York", "--to", "Berlin", "--depart", "11/05/2025", "--one-way", "--dry-run")
	require.NoError(t, err)
}

func TestBatchCmd_RejectsBadScenarioFile(t *testing.T) {
	env := newTestEnv(t, "")
	path := env.path("scenarios.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scenarios: []\n"), 0o644))

	_, err := env.run(t, "batch", path)
	assert.ErrorContains(t, err, "no scenarios defined")

	_, err = env.run(t, "batch")
	assert.ErrorContains(t, err, "accepts 1 arg(s)")
}

func TestTrainResolveEstimate(t *testing.T) {
	env := newTestEnv(t, "")

	// Seed one recorded fare so training merges history.
	sink := outcome.NewCSVSink("", env.path("data/prices.csv"))
	dep := advisor.FormatDate(time.Now().AddDate(0, 1, 0))
	require.NoError(t, sink.WritePrice(context.Background(), outcome.PriceObservation{
		Timestamp: time.Now(), DepartureDate: dep, Price: 910,
	}))

	out, err := env.run(t, "train")
	require.NoError(t, err)
	assert.Contains(t, out, "1 of 1 recorded fares")
	assert.FileExists(t, env.path("models/date.json"))
	assert.FileExists(t, env.path("models/price.json"))

	out, err = env.run(t, "resolve", "01/01/2000", "not-a-date")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "01/01/2000 -> "))
	assert.NotContains(t, lines[0], string(advisor.StatusAccepted))
	assert.Contains(t, lines[1], string(advisor.StatusUnparseable))

	out, err = env.run(t, "resolve", "-o", "json", "01/01/2000")
	require.NoError(t, err)
	var resolutions []advisor.Resolution
	require.NoError(t, json.Unmarshal([]byte(out), &resolutions))
	require.Len(t, resolutions, 1)
	assert.Equal(t, "01/01/2000", resolutions[0].Input)

	out, err = env.run(t, "estimate", "-o", "json", "30", dep)
	require.NoError(t, err)
	var estimates []fareEstimate
	require.NoError(t, json.Unmarshal([]byte(out), &estimates))
	require.Len(t, estimates, 2)
	assert.Equal(t, 30, estimates[0].LeadDays)
	assert.Greater(t, estimates[0].Estimate, 0.0)
	assert.Equal(t, dep, estimates[1].Input)

	_, err = env.run(t, "estimate", "soon")
	assert.ErrorContains(t, err, `"soon" is neither`)
}

func TestEstimateWithoutModel(t *testing.T) {
	env := newTestEnv(t, "")
	_, err := env.run(t, "estimate", "30")
	assert.ErrorContains(t, err, "run `fareprobe train` first")
}

func TestRiskCmd(t *testing.T) {
	env := newTestEnv(t, "")

	out, err := env.run(t, "risk", "-o", "json")
	require.NoError(t, err)
	var assessments []risk.Assessment
	require.NoError(t, json.Unmarshal([]byte(out), &assessments))
	require.Len(t, assessments, len(booking.PlannedSteps(booking.DefaultProfile())))

	levels := map[string]risk.Level{}
	for _, a := range assessments {
		levels[a.Key.Step] = a.Level
		assert.Equal(t, risk.BasisKey, a.Basis)
	}
	assert.Equal(t, risk.High, levels[booking.StepDates])
	assert.Equal(t, risk.High, levels[booking.StepResults])
	assert.Equal(t, risk.Low, levels[booking.StepNavigate])

	out, err = env.run(t, "risk", "--synthetic-runs", "0", "--step", "Select Dates", "--action", "complex_interaction", "--target", "input")
	require.NoError(t, err)
	assert.Contains(t, out, "0 recorded steps, 0 synthetic")
	assert.Contains(t, out, "Select Dates")
	assert.Contains(t, out, "prior")
}

func TestHistoryCmd(t *testing.T) {
	env := newTestEnv(t, "")
	sink := outcome.NewCSVSink(env.path("data/steps.csv"), env.path("data/prices.csv"))
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, sink.WriteStep(ctx, outcome.StepRecord{
		Timestamp: now, RunID: "aaaa1111", StepName: booking.StepNavigate, ActionType: booking.ActionNavigation, Success: true, DurationMS: 900,
	}))
	require.NoError(t, sink.WriteStep(ctx, outcome.StepRecord{
		Timestamp: now, RunID: "aaaa1111", StepName: booking.StepDates, ActionType: booking.ActionComplex, ErrorMessage: "date inputs empty after selection", DurationMS: 30100,
	}))
	require.NoError(t, sink.WritePrice(ctx, outcome.PriceObservation{Timestamp: now, DepartureDate: "07/01/2025", Price: 845}))

	out, err := env.run(t, "history")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2)

	out, err = env.run(t, "history", "--failures")
	require.NoError(t, err)
	assert.NotContains(t, out, booking.StepNavigate)
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "error=date inputs empty after selection")

	out, err = env.run(t, "history", "--prices")
	require.NoError(t, err)
	assert.Contains(t, out, "07/01/2025")
	assert.Contains(t, out, "845.00")

	_, err = env.run(t, "history", "--prices", "--follow")
	assert.ErrorContains(t, err, "cannot be combined")
}
