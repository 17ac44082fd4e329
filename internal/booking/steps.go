package booking

import "github.com/xkilldash9x/fareprobe/internal/browser"

// Step names, as recorded in step history.
const (
	StepNavigate    = "Navigate to Home"
	StepOverlays    = "Handle Overlays"
	StepTripType    = "Select Trip Type"
	StepOrigin      = "Set Origin"
	StepDestination = "Set Destination"
	StepDates       = "Select Dates"
	StepSearch      = "Click Search"
	StepResults     = "Wait for Results"
	StepPrice       = "Extract Price"
	StepVerdict     = "Validate Price"
)

// Action kinds.
const (
	ActionNavigation = "navigation"
	ActionJavaScript = "javascript"
	ActionInput      = "input"
	ActionComplex    = "complex_interaction"
	ActionClick      = "click"
	ActionWait       = "wait"
	ActionExtract    = "extract"
	ActionAssert     = "assert"
)

// PlannedStep is a step a flow will attempt, with the success rate it is
// expected to have before any history exists.
type PlannedStep struct {
	Name     string
	Action   string
	Target   string
	Baseline float64
}

// PlannedSteps lists the steps of a flow against p in execution order.
func PlannedSteps(p Profile) []PlannedStep {
	return []PlannedStep{
		{StepNavigate, ActionNavigation, p.URL, 0.95},
		{StepOverlays, ActionJavaScript, "consent_buttons", 0.95},
		{StepTripType, ActionJavaScript, p.RoundTripRadio, 0.95},
		{StepOrigin, ActionInput, p.OriginInput.String(), 0.95},
		{StepDestination, ActionInput, p.DestinationInput.String(), 0.95},
		{StepDates, ActionComplex, p.DateInput.String(), 0.60},
		{StepSearch, ActionClick, p.SearchButton.String(), 0.95},
		{StepResults, ActionWait, firstOf(p.ResultIndicators), 0.50},
		{StepPrice, ActionExtract, firstOf(p.PriceElements), 0.95},
	}
}

// firstOf names a locator list in step records by its first entry.
func firstOf(locs []browser.Locator) string {
	if len(locs) == 0 {
		return ""
	}
	return locs[0].String()
}
