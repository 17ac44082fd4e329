package booking

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/fareprobe/internal/advisor"
	"github.com/xkilldash9x/fareprobe/internal/browser"
	"github.com/xkilldash9x/fareprobe/internal/browser/browsertest"
	"github.com/xkilldash9x/fareprobe/internal/config"
)

func testTiming() config.TimingConfig {
	return config.NewDefaultConfig().Timing()
}

func observedLogger(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core), logs
}

// travelMonth returns two dates in the same month, two months from now.
func travelMonth(t *testing.T) (dep, ret time.Time) {
	t.Helper()
	base := advisor.Today(time.Now()).AddDate(0, 2, 0)
	dep = time.Date(base.Year(), base.Month(), 5, 0, 0, 0, 0, time.UTC)
	ret = time.Date(base.Year(), base.Month(), 15, 0, 0, 0, 0, time.UTC)
	return dep, ret
}

// scriptAnswers answers the page scripts the way a cooperative page would.
func scriptAnswers(script string, _ any) (any, error) {
	switch script {
	case dismissOverlaysScript:
		return map[string]int{"consent": 1, "removed": 2, "closed": 0}, nil
	case checkRadioScript, injectDateScript, clickByTextScript:
		return true, nil
	}
	return nil, nil
}

// bookingPage is a results page where every primary locator works.
type bookingPage struct {
	*browsertest.Page
	header     *browsertest.Element
	dateInputs []*browsertest.Element
}

func newBookingPage(t *testing.T, p Profile, dep, ret time.Time) *bookingPage {
	t.Helper()
	page := browsertest.New()
	page.EvaluateFunc = scriptAnswers

	header := &browsertest.Element{Visible: false, Text: dep.Format("January 2006")}
	openCalendar := func() { header.Visible = true }
	dateInputs := []*browsertest.Element{
		{Visible: true, OnClick: openCalendar},
		{Visible: true, OnClick: openCalendar},
	}

	page.Set(p.OriginInput, &browsertest.Element{Visible: true, Value: "Frankfurt"})
	page.Set(p.DestinationInput, &browsertest.Element{Visible: true})
	page.Set(p.option("JFK"), &browsertest.Element{Visible: true, Text: "New York JFK"})
	page.Set(p.option("BER"), &browsertest.Element{Visible: true, Text: "Berlin Brandenburg BER"})
	page.Set(p.DateInput, dateInputs...)
	page.Set(p.MonthHeader, header)
	for i, d := range []time.Time{dep, ret} {
		input := dateInputs[i]
		value := advisor.FormatDate(d)
		page.Set(DayLocators(d)[0].Locator, &browsertest.Element{
			Visible: true,
			OnClick: func() { input.Value = value },
		})
	}
	page.Set(p.SearchButton, &browsertest.Element{Visible: true, Text: "Search flights"})
	page.Set(p.ResultIndicators[0], &browsertest.Element{Visible: true})

	return &bookingPage{Page: page, header: header, dateInputs: dateInputs}
}

func locatorTargets(calls []browsertest.Call) []string {
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Target
	}
	return out
}

func argsOf(calls []browsertest.Call) []string {
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Arg
	}
	return out
}

var _ browser.Page = (*bookingPage)(nil)
