// internal/browser/pw/page.go
package pw

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/fareprobe/internal/browser"
)

const defaultOpTimeout = 10 * time.Second

// Page implements browser.Page with playwright-go. Playwright calls do not
// take a context, so each call converts the remaining context budget into a
// playwright timeout and checks the context before starting.
type Page struct {
	page       playwright.Page
	logger     *zap.Logger
	navTimeout time.Duration
}

var _ browser.Page = (*Page)(nil)

// NewPage wraps an open playwright page.
func NewPage(page playwright.Page, logger *zap.Logger, navTimeout time.Duration) *Page {
	return &Page{page: page, logger: logger.Named("playwright"), navTimeout: navTimeout}
}

// budget returns the playwright timeout in milliseconds for an operation
// that may take up to d, shortened to the context deadline.
func budget(ctx context.Context, d time.Duration) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if d <= 0 {
		d = defaultOpTimeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < d {
			d = remaining
		}
	}
	if d <= 0 {
		return 0, context.DeadlineExceeded
	}
	return float64(d.Milliseconds()), nil
}

func (p *Page) locate(loc browser.Locator, index int) playwright.Locator {
	var l playwright.Locator
	if loc.HasText != "" {
		l = p.page.Locator(loc.CSS, playwright.PageLocatorOptions{HasText: loc.HasText})
	} else {
		l = p.page.Locator(loc.CSS)
	}
	return l.Nth(index)
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	ms, err := budget(ctx, p.navTimeout)
	if err != nil {
		return err
	}
	_, err = p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(ms),
	})
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (p *Page) Count(ctx context.Context, loc browser.Locator) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l := p.page.Locator(loc.CSS)
	if loc.HasText != "" {
		l = p.page.Locator(loc.CSS, playwright.PageLocatorOptions{HasText: loc.HasText})
	}
	return l.Count()
}

func (p *Page) IsVisible(ctx context.Context, loc browser.Locator, index int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return p.locate(loc, index).IsVisible()
}

func (p *Page) Click(ctx context.Context, loc browser.Locator, index int, opts browser.ClickOptions) error {
	ms, err := budget(ctx, opts.Timeout)
	if err != nil {
		return err
	}
	err = p.locate(loc, index).Click(playwright.LocatorClickOptions{
		Force:   playwright.Bool(opts.Force),
		Timeout: playwright.Float(ms),
	})
	if err != nil {
		return fmt.Errorf("click %s[%d]: %w", loc, index, err)
	}
	return nil
}

func (p *Page) Fill(ctx context.Context, loc browser.Locator, index int, value string) error {
	ms, err := budget(ctx, defaultOpTimeout)
	if err != nil {
		return err
	}
	err = p.locate(loc, index).Fill(value, playwright.LocatorFillOptions{
		Force:   playwright.Bool(true),
		Timeout: playwright.Float(ms),
	})
	if err != nil {
		return fmt.Errorf("fill %s[%d]: %w", loc, index, err)
	}
	return nil
}

func (p *Page) Type(ctx context.Context, loc browser.Locator, index int, text string, delay time.Duration) error {
	// Typing takes at least one delay per rune.
	ms, err := budget(ctx, defaultOpTimeout+time.Duration(len(text))*delay)
	if err != nil {
		return err
	}
	err = p.locate(loc, index).PressSequentially(text, playwright.LocatorPressSequentiallyOptions{
		Delay:   playwright.Float(float64(delay.Milliseconds())),
		Timeout: playwright.Float(ms),
	})
	if err != nil {
		return fmt.Errorf("type into %s[%d]: %w", loc, index, err)
	}
	return nil
}

func (p *Page) Press(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.page.Keyboard().Press(key); err != nil {
		return fmt.Errorf("press %s: %w", key, err)
	}
	return nil
}

func (p *Page) InnerText(ctx context.Context, loc browser.Locator, index int) (string, error) {
	ms, err := budget(ctx, defaultOpTimeout)
	if err != nil {
		return "", err
	}
	return p.locate(loc, index).InnerText(playwright.LocatorInnerTextOptions{Timeout: playwright.Float(ms)})
}

func (p *Page) InputValue(ctx context.Context, loc browser.Locator, index int) (string, error) {
	ms, err := budget(ctx, defaultOpTimeout)
	if err != nil {
		return "", err
	}
	return p.locate(loc, index).InputValue(playwright.LocatorInputValueOptions{Timeout: playwright.Float(ms)})
}

// Evaluate runs script with arg. The result crosses the playwright bridge as
// generic values, so it is re-encoded as JSON to decode into out.
func (p *Page) Evaluate(ctx context.Context, script string, arg any, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := p.page.Evaluate(script, arg)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	if out == nil || res == nil {
		return nil
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("evaluate: failed to encode result: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("evaluate: failed to decode result %s: %w", string(raw), err)
	}
	return nil
}

func (p *Page) WaitFor(ctx context.Context, loc browser.Locator, timeout time.Duration) error {
	ms, err := budget(ctx, timeout)
	if err != nil {
		return err
	}
	return p.locate(loc, 0).WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(ms),
	})
}

func (p *Page) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.Content()
}

func (p *Page) Screenshot(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	return err
}

func (p *Page) Wait(ctx context.Context, d time.Duration) error {
	return browser.Sleep(ctx, d)
}
