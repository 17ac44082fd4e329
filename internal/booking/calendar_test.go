package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/fareprobe/internal/browser"
	"github.com/xkilldash9x/fareprobe/internal/browser/browsertest"
)

var december15 = time.Date(2025, time.December, 15, 0, 0, 0, 0, time.UTC)

// calendarPage has a closed picker showing October 2025 whose next button
// advances one month per click.
func calendarPage(p Profile) (*browsertest.Page, *browsertest.Element) {
	page := browsertest.New()
	page.EvaluateFunc = scriptAnswers

	header := &browsertest.Element{Text: "October 2025"}
	months := []string{"November 2025", "December 2025", "January 2026"}
	next := 0
	page.Set(p.MonthHeader, header)
	page.Set(p.DateInput,
		&browsertest.Element{Visible: true, OnClick: func() { header.Visible = true }},
		&browsertest.Element{Visible: true, OnClick: func() { header.Visible = true }})
	page.Set(p.NextMonthButton, &browsertest.Element{Visible: true, OnClick: func() {
		if next < len(months) {
			header.Text = months[next]
			next++
		}
	}})
	return page, header
}

func TestSelectDateUsesFirstVisibleStrategy(t *testing.T) {
	p := DefaultProfile()
	page, _ := calendarPage(p)
	day := DayLocators(december15)

	// Only the third strategy has a visible match.
	page.Set(day[0].Locator, &browsertest.Element{Visible: false})
	page.Set(day[2].Locator, &browsertest.Element{Visible: true})
	page.Set(day[3].Locator, &browsertest.Element{Visible: true})
	page.Set(p.DayCell, &browsertest.Element{Visible: true})

	sel := NewCalendarNavigator(page, p, testTiming(), zap.NewNop()).SelectDate(context.Background(), "12/15/2025", true)

	assert.Equal(t, StateDaySelected, sel.State)
	assert.Equal(t, ModeCalendar, sel.Mode)
	assert.Equal(t, DayByText, sel.Strategy)
	assert.True(t, sel.MonthMatched)
	assert.Equal(t, 2, sel.MonthPages)
	assert.False(t, sel.Degraded())

	clicks := locatorTargets(page.Calls("Click"))
	assert.Equal(t, []string{
		p.DateInput.String(),
		p.NextMonthButton.String(),
		p.NextMonthButton.String(),
		day[2].Locator.String(),
	}, clicks)
}

func TestSelectDatePicksFirstVisibleInDocumentOrder(t *testing.T) {
	p := DefaultProfile()
	page, header := calendarPage(p)
	header.Text = "December 2025"
	loc := DayLocators(december15)[0].Locator
	page.Set(loc,
		&browsertest.Element{Visible: false},
		&browsertest.Element{Visible: true},
		&browsertest.Element{Visible: true})

	sel := NewCalendarNavigator(page, p, testTiming(), zap.NewNop()).SelectDate(context.Background(), "12/15/2025", true)
	require.Equal(t, DayByLabel, sel.Strategy)

	clicks := page.Calls("Click")
	last := clicks[len(clicks)-1]
	assert.Equal(t, loc.String(), last.Target)
	assert.Equal(t, 1, last.Index)
}

func TestSelectDateSkipsOpeningWhenPickerShowing(t *testing.T) {
	p := DefaultProfile()
	page, header := calendarPage(p)
	header.Visible = true
	header.Text = "December 2025"
	page.Set(DayLocators(december15)[1].Locator, &browsertest.Element{Visible: true})

	sel := NewCalendarNavigator(page, p, testTiming(), zap.NewNop()).SelectDate(context.Background(), "12/15/2025", false)

	assert.Equal(t, DayByLabelDayFirst, sel.Strategy)
	assert.Equal(t, 0, sel.MonthPages)
	for _, c := range page.Calls("Click") {
		assert.NotEqual(t, p.DateInput.String(), c.Target)
	}
}

func TestSelectDateFallsBackToFirstAvailableDay(t *testing.T) {
	p := DefaultProfile()
	page, _ := calendarPage(p)
	page.Set(p.DayCell, &browsertest.Element{Visible: true}, &browsertest.Element{Visible: true})
	logger, logs := observedLogger(zapcore.WarnLevel)

	sel := NewCalendarNavigator(page, p, testTiming(), logger).SelectDate(context.Background(), "12/15/2025", true)

	assert.Equal(t, StateDaySelected, sel.State)
	assert.Equal(t, ModeFirstAvailable, sel.Mode)
	assert.True(t, sel.Degraded())
	assert.Empty(t, sel.Strategy)
	assert.Equal(t, 1, logs.FilterMessageSnippet("first available day").Len())

	clicks := page.Calls("Click")
	assert.Equal(t, p.DayCell.String(), clicks[len(clicks)-1].Target)
	assert.Equal(t, 0, clicks[len(clicks)-1].Index)
}

func TestSelectDateInjectsWhenCalendarWillNotOpen(t *testing.T) {
	p := DefaultProfile()
	page, _ := calendarPage(p)
	page.Set(p.DateInput,
		&browsertest.Element{Visible: true},
		&browsertest.Element{Visible: true, ClickErr: errors.New("element intercepted")})
	timing := testTiming()

	sel := NewCalendarNavigator(page, p, timing, zap.NewNop()).SelectDate(context.Background(), "12/25/2025", false)

	assert.Equal(t, StateInjected, sel.State)
	assert.Equal(t, ModeInjected, sel.Mode)
	assert.ErrorContains(t, sel.Err, "element intercepted")

	evals := page.Calls("Evaluate")
	require.Len(t, evals, 1)
	assert.Equal(t, injectDateScript, evals[0].Target)
	assert.JSONEq(t, `{"css":"input[name*='travelDatetime']","index":1,"value":"12/25/2025"}`, evals[0].Arg)
	assert.Contains(t, page.Waits(), timing.InjectionSettle)
}

func TestSelectDateInjectsWhenHeaderUnreadable(t *testing.T) {
	p := DefaultProfile()
	page := browsertest.New()
	page.EvaluateFunc = scriptAnswers
	page.Set(p.DateInput, &browsertest.Element{Visible: true})

	sel := NewCalendarNavigator(page, p, testTiming(), zap.NewNop()).SelectDate(context.Background(), "12/15/2025", true)

	assert.Equal(t, StateInjected, sel.State)
	assert.ErrorIs(t, sel.Err, browser.ErrNotFound)
}

func TestSelectDateInjectsUnparseableDate(t *testing.T) {
	p := DefaultProfile()
	page, _ := calendarPage(p)

	sel := NewCalendarNavigator(page, p, testTiming(), zap.NewNop()).SelectDate(context.Background(), "sometime", true)

	assert.Equal(t, StateInjected, sel.State)
	assert.Empty(t, page.Calls("Click"))
}

func TestSelectDateInjectionReportsMissingInput(t *testing.T) {
	p := DefaultProfile()
	page := browsertest.New()
	page.EvaluateFunc = func(string, any) (any, error) { return false, nil }

	sel := NewCalendarNavigator(page, p, testTiming(), zap.NewNop()).SelectDate(context.Background(), "12/15/2025", true)

	assert.Equal(t, StateInjected, sel.State)
	assert.ErrorContains(t, sel.Err, "date input 0 not found")
}

func TestSelectDateStopsPagingAfterLimit(t *testing.T) {
	p := DefaultProfile()
	page := browsertest.New()
	header := &browsertest.Element{Visible: true, Text: "January 2020"}
	page.Set(p.MonthHeader, header)
	page.Set(p.NextMonthButton, &browsertest.Element{Visible: true})
	page.Set(DayLocators(december15)[3].Locator, &browsertest.Element{Visible: true})
	logger, logs := observedLogger(zapcore.WarnLevel)
	timing := testTiming()

	sel := NewCalendarNavigator(page, p, timing, logger).SelectDate(context.Background(), "12/15/2025", true)

	assert.False(t, sel.MonthMatched)
	assert.Equal(t, timing.MaxMonthPages, sel.MonthPages)
	assert.Equal(t, DayByDataAttribute, sel.Strategy, "day selection still runs against the visible month")

	nextClicks := 0
	for _, c := range page.Calls("Click") {
		if c.Target == p.NextMonthButton.String() {
			nextClicks++
		}
	}
	assert.Equal(t, timing.MaxMonthPages, nextClicks)
	assert.Equal(t, 1, logs.FilterMessageSnippet("Target month not reached").Len())
}

func TestVerify(t *testing.T) {
	p := DefaultProfile()
	page := browsertest.New()
	page.Set(p.DateInput, &browsertest.Element{Value: "12/15/2025"}, &browsertest.Element{})
	nav := NewCalendarNavigator(page, p, testTiming(), zap.NewNop())

	oneWay := nav.Verify(context.Background(), false)
	assert.True(t, oneWay.OK)
	assert.Equal(t, "12/15/2025", oneWay.Departure)

	roundTrip := nav.Verify(context.Background(), true)
	assert.False(t, roundTrip.OK)

	page.Element(p.DateInput, 1).Value = "12/25/2025"
	roundTrip = nav.Verify(context.Background(), true)
	assert.True(t, roundTrip.OK)
	assert.Equal(t, "12/25/2025", roundTrip.Return)
}

func TestMonthMatches(t *testing.T) {
	assert.True(t, MonthMatches("December 2025", december15))
	assert.True(t, MonthMatches("  DECEMBER\n2025 ", december15))
	assert.False(t, MonthMatches("December 2026", december15))
	assert.False(t, MonthMatches("November 2025", december15))
}

func TestDayLocators(t *testing.T) {
	got := DayLocators(time.Date(2025, time.March, 7, 0, 0, 0, 0, time.UTC))
	require.Len(t, got, 4)

	names := make([]string, len(got))
	for i, nl := range got {
		names[i] = nl.Name
	}
	assert.Equal(t, []string{DayByLabel, DayByLabelDayFirst, DayByText, DayByDataAttribute}, names)
	assert.Equal(t, "button[aria-label*='March 7, 2025']", got[0].Locator.String())
	assert.Equal(t, "button[aria-label*='7 March 2025']", got[1].Locator.String())
	assert.Equal(t, `button:has-text("7")`, got[2].Locator.String())
	assert.Equal(t, "td[data-date='2025-03-07'] button", got[3].Locator.String())
}
