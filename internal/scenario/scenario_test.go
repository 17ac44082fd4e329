package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/fareprobe/internal/booking"
)

const sampleFile = `
scenarios:
  - name: nyc-ber
    origin: {city: New York, code: JFK}
    destination: {city: Berlin, code: BER}
    departure: 11/05/2025
    return: 11/15/2025
    checks:
      - price <= estimate * 1.4 || !has_estimate
      - within_expected
  - origin: {city: Frankfurt}
    destination: {city: Lisbon, code: LIS}
    departure: 12/01/2025
    trip: one-way
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenarios.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleFile), 0o644))

	got, err := Load(path)
	require.NoError(t, err)

	want := []Scenario{
		{
			Request: booking.Request{
				Label:       "nyc-ber",
				Origin:      booking.Endpoint{City: "New York", Code: "JFK"},
				Destination: booking.Endpoint{City: "Berlin", Code: "BER"},
				Departure:   "11/05/2025",
				Return:      "11/15/2025",
			},
			Checks: []string{"price <= estimate * 1.4 || !has_estimate", "within_expected"},
		},
		{
			Request: booking.Request{
				Label:       "scenario-2",
				Origin:      booking.Endpoint{City: "Frankfurt"},
				Destination: booking.Endpoint{City: "Lisbon", Code: "LIS"},
				Departure:   "12/01/2025",
				Trip:        booking.OneWay,
			},
		},
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreUnexported(Scenario{})); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, got[0].compiled, 2)
	assert.Empty(t, got[1].compiled)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read scenario file")
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", "", "no scenarios defined"},
		{"unknown key", "scenarios:\n  - name: a\n    origin: {city: X}\n    destination: {city: Y}\n    departure: 01/01/2026\n    trip: one-way\n    cabin: first\n", "cabin"},
		{"duplicate name", "scenarios:\n  - {name: a, origin: {city: X}, destination: {city: Y}, departure: 01/01/2026, trip: one-way}\n  - {name: a, origin: {city: X}, destination: {city: Y}, departure: 01/02/2026, trip: one-way}\n", `duplicate scenario name "a"`},
		{"invalid request", "scenarios:\n  - {name: a, origin: {city: X}, destination: {city: Y}, departure: 01/01/2026}\n", "return date is required"},
		{"bad check", "scenarios:\n  - {name: a, origin: {city: X}, destination: {city: Y}, departure: 01/01/2026, trip: one-way, checks: [\"price +\"]}\n", "failed to compile check"},
		{"malformed", "scenarios: [", "invalid scenario yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
