// Package booking drives a flight search form to a priced result: field
// entry with autocomplete, calendar navigation, submission and price
// extraction, each with ordered fallbacks that keep the flow moving.
package booking

import (
	"github.com/xkilldash9x/fareprobe/internal/browser"
	"github.com/xkilldash9x/fareprobe/internal/config"
)

// Profile is every locator of the target page.
type Profile struct {
	URL              string
	RoundTripRadio   string
	OneWayRadio      string
	OriginInput      browser.Locator
	DestinationInput browser.Locator
	DropdownOption   string
	DateInput        browser.Locator
	MonthHeader      browser.Locator
	NextMonthButton  browser.Locator
	DayCell          browser.Locator
	SearchButton     browser.Locator
	ResultIndicators []browser.Locator
	PriceElements    []browser.Locator
	ConsentKeywords  []string
	OverlayIDs       []string
	CloseButtons     string
}

// ProfileFromConfig builds a profile from the site section of the config.
func ProfileFromConfig(cfg config.SiteConfig) Profile {
	return Profile{
		URL:              cfg.URL,
		RoundTripRadio:   cfg.RoundTripRadio,
		OneWayRadio:      cfg.OneWayRadio,
		OriginInput:      browser.CSS(cfg.OriginInput),
		DestinationInput: browser.CSS(cfg.DestinationInput),
		DropdownOption:   cfg.DropdownOption,
		DateInput:        browser.CSS(cfg.DateInput),
		MonthHeader:      browser.CSS(cfg.MonthHeader),
		NextMonthButton:  browser.CSS(cfg.NextMonthButton),
		DayCell:          browser.CSS(cfg.DayCell),
		SearchButton:     browser.CSS(cfg.SearchButton).WithText(cfg.SearchButtonText),
		ResultIndicators: locators(cfg.ResultIndicators),
		PriceElements:    locators(cfg.PriceElements),
		ConsentKeywords:  cfg.ConsentKeywords,
		OverlayIDs:       cfg.OverlayIDs,
		CloseButtons:     cfg.CloseButtons,
	}
}

// DefaultProfile is the profile of the default site configuration.
func DefaultProfile() Profile {
	return ProfileFromConfig(config.NewDefaultConfig().Site())
}

func locators(selectors []string) []browser.Locator {
	out := make([]browser.Locator, 0, len(selectors))
	for _, s := range selectors {
		out = append(out, browser.CSS(s))
	}
	return out
}

// option returns the dropdown option locator containing text.
func (p Profile) option(text string) browser.Locator {
	return browser.CSS(p.DropdownOption).WithText(text)
}

// input returns the locator of a field role.
func (p Profile) input(role Role) browser.Locator {
	if role == RoleDestination {
		return p.DestinationInput
	}
	return p.OriginInput
}
