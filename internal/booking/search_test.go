package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/fareprobe/internal/advisor"
)

func TestRequestValidate(t *testing.T) {
	valid := Request{
		Origin:      Endpoint{City: "New York", Code: "JFK"},
		Destination: Endpoint{City: "Berlin"},
		Departure:   "11/05/2025",
		Return:      "11/15/2025",
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Request)
		want   string
	}{
		{"no origin", func(r *Request) { r.Origin = Endpoint{} }, "origin city"},
		{"no destination", func(r *Request) { r.Destination.City = "" }, "destination city"},
		{"no departure", func(r *Request) { r.Departure = "" }, "departure date"},
		{"round trip without return", func(r *Request) { r.Return = "" }, "return date"},
		{"unknown trip", func(r *Request) { r.Trip = "multi-city" }, `unknown trip type "multi-city"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			assert.ErrorContains(t, req.Validate(), tt.want)
		})
	}

	oneWay := valid
	oneWay.Trip = OneWay
	oneWay.Return = ""
	assert.NoError(t, oneWay.Validate())
	assert.False(t, oneWay.RoundTrip())
	assert.True(t, valid.RoundTrip(), "an empty trip type means round trip")
}

func TestPlannedSteps(t *testing.T) {
	p := DefaultProfile()
	steps := PlannedSteps(p)
	require.Len(t, steps, 9)

	assert.Equal(t, StepNavigate, steps[0].Name)
	assert.Equal(t, p.URL, steps[0].Target)
	assert.Equal(t, StepPrice, steps[len(steps)-1].Name)

	baselines := map[string]float64{}
	for _, s := range steps {
		baselines[s.Name] = s.Baseline
		assert.NotEmpty(t, s.Action, s.Name)
	}
	assert.Equal(t, 0.60, baselines[StepDates])
	assert.Equal(t, 0.50, baselines[StepResults])
	assert.Equal(t, 0.95, baselines[StepOrigin])
}

func TestFlowContextResolvedReturn(t *testing.T) {
	fc := NewFlowContext(Request{Trip: OneWay})
	assert.Empty(t, fc.ResolvedReturn())
}

func TestStayCollapsed(t *testing.T) {
	at := func(lead int, status advisor.ResolutionStatus) advisor.Resolution {
		return advisor.Resolution{LeadDays: lead, Status: status}
	}
	tests := []struct {
		name     string
		dep, ret advisor.Resolution
		want     bool
	}{
		{"both substituted to the same day", at(3, advisor.StatusSubstituted), at(3, advisor.StatusSubstituted), true},
		{"return substituted before departure", at(200, advisor.StatusAccepted), at(3, advisor.StatusSubstituted), true},
		{"substituted departure still before return", at(3, advisor.StatusSubstituted), at(40, advisor.StatusAccepted), false},
		{"requested dates are left alone", at(40, advisor.StatusAccepted), at(40, advisor.StatusAccepted), false},
		{"unparseable return", at(3, advisor.StatusSubstituted), at(0, advisor.StatusUnparseable), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stayCollapsed(tt.dep, tt.ret))
		})
	}
}
