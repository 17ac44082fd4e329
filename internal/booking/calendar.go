package booking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/fareprobe/internal/advisor"
	"github.com/xkilldash9x/fareprobe/internal/browser"
	"github.com/xkilldash9x/fareprobe/internal/config"
	"github.com/xkilldash9x/fareprobe/internal/strategy"
)

// CalendarState is where the date picker ended up.
type CalendarState string

const (
	StateClosed       CalendarState = "closed"
	StateOpen         CalendarState = "open"
	StateMonthMatched CalendarState = "month-matched"
	StateDaySelected  CalendarState = "day-selected"
	StateInjected     CalendarState = "injected-fallback"
)

// SelectionMode is how the date was set.
type SelectionMode string

const (
	ModeCalendar       SelectionMode = "calendar"
	ModeFirstAvailable SelectionMode = "first-available"
	ModeInjected       SelectionMode = "injected"
)

// Day strategy names.
const (
	DayByLabel         = "aria-label"
	DayByLabelDayFirst = "aria-label-day-first"
	DayByText          = "day-text"
	DayByDataAttribute = "data-date"
)

var errNoVisibleMatch = errors.New("no visible match")

// DateSelection reports how one date was selected.
type DateSelection struct {
	Date         string        `json:"date"`
	Departure    bool          `json:"departure"`
	State        CalendarState `json:"state"`
	Mode         SelectionMode `json:"mode"`
	Strategy     string        `json:"strategy,omitempty"`
	MonthMatched bool          `json:"month_matched"`
	MonthPages   int           `json:"month_pages"`
	// Err is the error that forced the lowest fallback, if any.
	Err error `json:"-"`
}

// Degraded reports whether a fallback replaced a calendar selection.
func (s DateSelection) Degraded() bool { return s.Mode != ModeCalendar }

// Verification is the read back of the date inputs.
type Verification struct {
	Departure string `json:"departure"`
	Return    string `json:"return,omitempty"`
	OK        bool   `json:"ok"`
}

// CalendarNavigator drives the month paginated date picker. Selection moves
// Closed, Open, MonthMatched, DaySelected and may escape from any state to
// writing the value straight into the input.
type CalendarNavigator struct {
	page    browser.Page
	profile Profile
	timing  config.TimingConfig
	logger  *zap.Logger
}

// NewCalendarNavigator creates a navigator for page.
func NewCalendarNavigator(page browser.Page, profile Profile, timing config.TimingConfig, logger *zap.Logger) *CalendarNavigator {
	return &CalendarNavigator{page: page, profile: profile, timing: timing, logger: logger.Named("calendar")}
}

// SelectDate sets the departure or return input to dateText (MM/DD/YYYY).
// It never fails; the result says how the date was set.
func (n *CalendarNavigator) SelectDate(ctx context.Context, dateText string, departure bool) DateSelection {
	sel := DateSelection{Date: dateText, Departure: departure, State: StateClosed}
	index := 1
	if departure {
		index = 0
	}
	log := n.logger.With(zap.String("date", dateText), zap.Bool("departure", departure))

	date, err := advisor.ParseDate(dateText)
	if err != nil {
		return n.inject(ctx, sel, index, err, log)
	}

	if err := n.open(ctx, index); err != nil {
		return n.inject(ctx, sel, index, err, log)
	}
	sel.State = StateOpen

	pages, matched, err := n.seekMonth(ctx, date)
	sel.MonthPages = pages
	if err != nil {
		return n.inject(ctx, sel, index, err, log)
	}
	sel.MonthMatched = matched
	sel.State = StateMonthMatched
	if !matched {
		log.Warn("Target month not reached; selecting day in the visible month.", zap.Int("pages", pages))
	}

	_, name, err := strategy.FirstSuccess(ctx, n.dayStrategies(date)...)
	if err == nil {
		sel.State = StateDaySelected
		sel.Mode = ModeCalendar
		sel.Strategy = name
		_ = n.page.Wait(ctx, n.timing.DaySettle)
		log.Info("Date selected.", zap.String("strategy", name))
		return sel
	}
	log.Debug("Day strategies exhausted.", zap.Error(err))

	if cerr := n.page.Click(ctx, n.profile.DayCell, 0, browser.ClickOptions{Force: true}); cerr != nil {
		return n.inject(ctx, sel, index, errors.Join(err, cerr), log)
	}
	sel.State = StateDaySelected
	sel.Mode = ModeFirstAvailable
	sel.Err = err
	_ = n.page.Wait(ctx, n.timing.DaySettle)
	log.Warn("Target day not found; selected the first available day.")
	return sel
}

// open clicks the date input unless the picker is already showing.
func (n *CalendarNavigator) open(ctx context.Context, index int) error {
	if n.headerVisible(ctx) {
		return nil
	}
	opts := browser.ClickOptions{Force: true, Timeout: n.timing.CalendarOpenTimeout}
	if err := n.page.Click(ctx, n.profile.DateInput, index, opts); err != nil {
		return fmt.Errorf("opening calendar: %w", err)
	}
	_ = n.page.Wait(ctx, n.timing.CalendarOpenSettle)
	return nil
}

func (n *CalendarNavigator) headerVisible(ctx context.Context) bool {
	probe, cancel := context.WithTimeout(ctx, n.timing.ProbeTimeout)
	defer cancel()
	visible, err := n.page.IsVisible(probe, n.profile.MonthHeader, 0)
	return err == nil && visible
}

// seekMonth pages forward until the header names the target month and year,
// at most MaxMonthPages times. The header is read before every step since
// the page may move it on its own.
func (n *CalendarNavigator) seekMonth(ctx context.Context, date time.Time) (int, bool, error) {
	for pages := 0; ; pages++ {
		header, err := n.page.InnerText(ctx, n.profile.MonthHeader, 0)
		if err != nil {
			return pages, false, fmt.Errorf("reading month header: %w", err)
		}
		if MonthMatches(header, date) {
			return pages, true, nil
		}
		if pages >= n.timing.MaxMonthPages {
			return pages, false, nil
		}
		if err := n.page.Click(ctx, n.profile.NextMonthButton, 0, browser.ClickOptions{Force: true}); err != nil {
			return pages, false, fmt.Errorf("paging to next month: %w", err)
		}
		_ = n.page.Wait(ctx, n.timing.MonthStepSettle)
	}
}

// MonthMatches reports whether a calendar header names date's month and year.
func MonthMatches(header string, date time.Time) bool {
	h := strings.ToLower(header)
	return strings.Contains(h, strings.ToLower(date.Month().String())) &&
		strings.Contains(h, strconv.Itoa(date.Year()))
}

// DayLocators lists the day button locators for date, most specific first.
func DayLocators(date time.Time) []NamedLocator {
	month, day, year := date.Month().String(), strconv.Itoa(date.Day()), strconv.Itoa(date.Year())
	return []NamedLocator{
		{DayByLabel, browser.CSS(fmt.Sprintf("button[aria-label*='%s %s, %s']", month, day, year))},
		{DayByLabelDayFirst, browser.CSS(fmt.Sprintf("button[aria-label*='%s %s %s']", day, month, year))},
		{DayByText, browser.CSS("button").WithText(day)},
		{DayByDataAttribute, browser.CSS(fmt.Sprintf("td[data-date='%s'] button", date.Format("2006-01-02")))},
	}
}

// NamedLocator pairs a locator with the strategy name it represents.
type NamedLocator struct {
	Name    string
	Locator browser.Locator
}

func (n *CalendarNavigator) dayStrategies(date time.Time) []strategy.Strategy[int] {
	named := DayLocators(date)
	out := make([]strategy.Strategy[int], 0, len(named))
	for _, nl := range named {
		loc := nl.Locator
		out = append(out, strategy.New(nl.Name, func(ctx context.Context) (int, error) {
			return n.clickFirstVisible(ctx, loc)
		}))
	}
	return out
}

// clickFirstVisible force-clicks the first visible match in document order.
func (n *CalendarNavigator) clickFirstVisible(ctx context.Context, loc browser.Locator) (int, error) {
	count, err := n.page.Count(ctx, loc)
	if err != nil {
		return -1, err
	}
	for i := 0; i < count; i++ {
		probe, cancel := context.WithTimeout(ctx, n.timing.ProbeTimeout)
		visible, err := n.page.IsVisible(probe, loc, i)
		cancel()
		if err != nil || !visible {
			continue
		}
		if err := n.page.Click(ctx, loc, i, browser.ClickOptions{Force: true}); err != nil {
			return -1, err
		}
		return i, nil
	}
	return -1, fmt.Errorf("%s: %w", loc, errNoVisibleMatch)
}

// inject writes the date into the input directly, bypassing the widget.
func (n *CalendarNavigator) inject(ctx context.Context, sel DateSelection, index int, cause error, log *zap.Logger) DateSelection {
	sel.State = StateInjected
	sel.Mode = ModeInjected
	sel.Err = cause

	var ok bool
	arg := selectorArg{CSS: n.profile.DateInput.CSS, Index: index, Value: sel.Date}
	if err := n.page.Evaluate(ctx, injectDateScript, arg, &ok); err != nil {
		sel.Err = errors.Join(cause, err)
	} else if !ok {
		sel.Err = errors.Join(cause, fmt.Errorf("date input %d not found", index))
	}
	_ = n.page.Wait(ctx, n.timing.InjectionSettle)
	log.Warn("Calendar interaction failed; date injected into input.", zap.Error(sel.Err))
	return sel
}

// Verify reads back the date inputs. It is advisory and never retries.
func (n *CalendarNavigator) Verify(ctx context.Context, roundTrip bool) Verification {
	var v Verification
	dep, err := n.page.InputValue(ctx, n.profile.DateInput, 0)
	if err != nil {
		n.logger.Warn("Could not read departure date.", zap.Error(err))
	}
	v.Departure = dep
	v.OK = dep != ""

	if roundTrip {
		ret, err := n.page.InputValue(ctx, n.profile.DateInput, 1)
		if err != nil {
			n.logger.Warn("Could not read return date.", zap.Error(err))
		}
		v.Return = ret
		v.OK = v.OK && ret != ""
	}

	if v.OK {
		n.logger.Info("Dates verified.", zap.String("departure", v.Departure), zap.String("return", v.Return))
	} else {
		n.logger.Warn("Dates may not be set.", zap.String("departure", v.Departure), zap.String("return", v.Return))
	}
	return v
}
