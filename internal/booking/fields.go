package booking

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/fareprobe/internal/browser"
	"github.com/xkilldash9x/fareprobe/internal/config"
	"github.com/xkilldash9x/fareprobe/internal/strategy"
)

// Role names an endpoint field.
type Role string

const (
	RoleOrigin      Role = "origin"
	RoleDestination Role = "destination"
)

// Endpoint is what to enter into an endpoint field: a city and optionally
// the airport code to prefer among the suggestions.
type Endpoint struct {
	City string `json:"city" yaml:"city"`
	Code string `json:"code,omitempty" yaml:"code"`
}

func (e Endpoint) String() string {
	if e.Code == "" {
		return e.City
	}
	return fmt.Sprintf("%s (%s)", e.City, e.Code)
}

// Confidence grades how a field ended up selected.
type Confidence string

const (
	Confirmed  Confidence = "confirmed"
	BestEffort Confidence = "best-effort"
)

// Field selection methods.
const (
	ViaOptionCode      = "option-code"
	ViaOptionCity      = "option-city"
	ViaFirstSuggestion = "first-suggestion"
	ViaCommitKey       = "commit-key"
)

// commitKey accepts the first autocomplete suggestion.
const commitKey = "Enter"

// FieldResult reports how an endpoint field was filled.
type FieldResult struct {
	Role       Role       `json:"role"`
	Endpoint   Endpoint   `json:"endpoint"`
	Confidence Confidence `json:"confidence"`
	Via        string     `json:"via"`
	// Err is the last error seen while filling, for reporting only.
	Err error `json:"-"`
}

// FieldController fills autocomplete endpoint fields. It never fails: every
// attempt degrades to the next fallback and the field is always left in some
// selected state.
type FieldController struct {
	page    browser.Page
	profile Profile
	timing  config.TimingConfig
	logger  *zap.Logger
}

// NewFieldController creates a controller for page.
func NewFieldController(page browser.Page, profile Profile, timing config.TimingConfig, logger *zap.Logger) *FieldController {
	return &FieldController{page: page, profile: profile, timing: timing, logger: logger.Named("fields")}
}

// Enter clears the field, types the city one key at a time, waits for the
// suggestions and picks one.
func (c *FieldController) Enter(ctx context.Context, role Role, ep Endpoint) FieldResult {
	res := FieldResult{Role: role, Endpoint: ep}
	input := c.profile.input(role)
	log := c.logger.With(zap.String("role", string(role)), zap.String("city", ep.City))

	c.clear(ctx, input, log)

	if err := c.page.Type(ctx, input, 0, ep.City, c.timing.KeyDelay); err != nil {
		log.Debug("Typing into field failed.", zap.Error(err))
		res.Err = err
	}
	_ = c.page.Wait(ctx, c.timing.DropdownSettle)

	if ep.Code == "" {
		res.Via = ViaFirstSuggestion
		res.Confidence = Confirmed
		if err := c.page.Press(ctx, commitKey); err != nil {
			res.Confidence = BestEffort
			res.Err = err
			log.Warn("Could not accept first suggestion.", zap.Error(err))
		}
	} else {
		via, err := c.pickOption(ctx, ep)
		if err == nil {
			res.Via = via
			res.Confidence = Confirmed
		} else {
			res.Via = ViaCommitKey
			res.Confidence = BestEffort
			res.Err = err
			if perr := c.page.Press(ctx, commitKey); perr != nil {
				res.Err = perr
				log.Debug("Commit key failed.", zap.Error(perr))
			}
			log.Warn("No matching suggestion; accepted first suggestion instead.",
				zap.String("code", ep.Code), zap.Error(err))
		}
	}

	_ = c.page.Wait(ctx, c.timing.PostSelectSettle)
	log.Info("Field selected.", zap.String("via", res.Via), zap.String("confidence", string(res.Confidence)))
	return res
}

// clear empties the field with both a fill and a select-all delete, so the
// widget sees a complete edit sequence even when it was already empty.
func (c *FieldController) clear(ctx context.Context, input browser.Locator, log *zap.Logger) {
	if err := c.page.Click(ctx, input, 0, browser.ClickOptions{Force: true}); err != nil {
		log.Debug("Focusing field failed.", zap.Error(err))
	}
	_ = c.page.Wait(ctx, c.timing.FieldFocusSettle)

	if err := c.page.Fill(ctx, input, 0, ""); err != nil {
		log.Debug("Fill clear failed.", zap.Error(err))
	}
	for _, key := range []string{"Control+A", "Backspace"} {
		if err := c.page.Press(ctx, key); err != nil {
			log.Debug("Key clear failed.", zap.String("key", key), zap.Error(err))
		}
	}
}

// pickOption force-clicks the first suggestion naming the code, then the
// first naming the city.
func (c *FieldController) pickOption(ctx context.Context, ep Endpoint) (string, error) {
	attempt := func(text string) func(context.Context) (struct{}, error) {
		return func(ctx context.Context) (struct{}, error) {
			loc := c.profile.option(text)
			if err := c.page.WaitFor(ctx, loc, c.timing.OptionTimeout); err != nil {
				return struct{}{}, err
			}
			return struct{}{}, c.page.Click(ctx, loc, 0, browser.ClickOptions{Force: true, Timeout: c.timing.OptionTimeout})
		}
	}
	_, via, err := strategy.FirstSuccess(ctx,
		strategy.New(ViaOptionCode, attempt(ep.Code)),
		strategy.New(ViaOptionCity, attempt(ep.City)),
	)
	return via, err
}
