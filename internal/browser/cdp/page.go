// internal/browser/cdp/page.go
package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/xkilldash9x/fareprobe/internal/browser"
)

const (
	defaultOpTimeout  = 10 * time.Second
	defaultNavTimeout = 90 * time.Second
	pollInterval      = 100 * time.Millisecond
)

// Page implements browser.Page on top of a chromedp tab context.
type Page struct {
	tab        context.Context
	logger     *zap.Logger
	navTimeout time.Duration
	opTimeout  time.Duration
}

var _ browser.Page = (*Page)(nil)

// NewPage wraps a chromedp tab context. tab must come from chromedp.NewContext.
func NewPage(tab context.Context, logger *zap.Logger, navTimeout time.Duration) *Page {
	if navTimeout <= 0 {
		navTimeout = defaultNavTimeout
	}
	return &Page{
		tab:        tab,
		logger:     logger.Named("cdp"),
		navTimeout: navTimeout,
		opTimeout:  defaultOpTimeout,
	}
}

// run executes actions on the tab, bounded by both ctx and timeout.
func (p *Page) run(ctx context.Context, op string, timeout time.Duration, actions ...chromedp.Action) error {
	opCtx, cancel := CombineContext(p.tab, ctx)
	defer cancel()
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		opCtx, cancelTimeout = context.WithTimeout(opCtx, timeout)
		defer cancelTimeout()
	}

	err := chromedp.Run(opCtx, actions...)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
	if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
		p.logger.Debug("CDP operation timed out.", zap.String("op", op), zap.Duration("timeout", timeout))
		return fmt.Errorf("%s timed out after %v: %w", op, timeout, opCtx.Err())
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (p *Page) eval(ctx context.Context, op string, script string, arg any, out any) error {
	var raw json.RawMessage
	err := p.run(ctx, op, p.opTimeout,
		chromedp.Evaluate(callExpression(script, arg), &raw, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
			return ep.WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
		}),
	)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: failed to decode result %s: %w", op, string(raw), err)
	}
	return nil
}

func (p *Page) element(ctx context.Context, op, script string, arg elementArg) (elementResult, error) {
	var res elementResult
	if err := p.eval(ctx, op, script, arg, &res); err != nil {
		return res, err
	}
	if !res.Found {
		return res, fmt.Errorf("%s %s[%d]: %w", op, browser.Locator{CSS: arg.CSS, HasText: arg.Text}, arg.Index, browser.ErrNotFound)
	}
	return res, nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, "navigate", p.navTimeout, chromedp.Navigate(url))
}

func (p *Page) Count(ctx context.Context, loc browser.Locator) (int, error) {
	var n int
	if err := p.eval(ctx, "count", countScript, newElementArg(loc, 0), &n); err != nil {
		return 0, err
	}
	return n, nil
}

func (p *Page) IsVisible(ctx context.Context, loc browser.Locator, index int) (bool, error) {
	res, err := p.element(ctx, "visibility", geometryScript, newElementArg(loc, index))
	if errors.Is(err, browser.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return res.Visible, nil
}

// waitVisible polls until the element is visible, returning its geometry.
func (p *Page) waitVisible(ctx context.Context, loc browser.Locator, index int, timeout time.Duration) (elementResult, error) {
	deadline := time.Now().Add(timeout)
	arg := newElementArg(loc, index)
	arg.Value = "scroll"
	lastErr := fmt.Errorf("%s[%d]: %w", loc, index, browser.ErrNotFound)
	for {
		res, err := p.element(ctx, "wait visible", geometryScript, arg)
		switch {
		case err == nil && res.Visible:
			return res, nil
		case err == nil:
			lastErr = fmt.Errorf("%s[%d]: %w", loc, index, browser.ErrNotVisible)
		case !errors.Is(err, browser.ErrNotFound):
			return res, err
		}
		if time.Now().After(deadline) {
			return res, fmt.Errorf("timed out after %v: %w", timeout, lastErr)
		}
		if err := browser.Sleep(ctx, pollInterval); err != nil {
			return res, err
		}
	}
}

// Click presses and releases the left mouse button at the element's center.
// Forced clicks skip the visibility wait and fall back to a DOM click when
// the element has no box to aim at.
func (p *Page) Click(ctx context.Context, loc browser.Locator, index int, opts browser.ClickOptions) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = p.opTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		geom elementResult
		err  error
	)
	if opts.Force {
		arg := newElementArg(loc, index)
		arg.Value = "scroll"
		geom, err = p.element(ctx, "click", geometryScript, arg)
		if err == nil && !geom.Visible {
			_, err = p.element(ctx, "click", domClickScript, newElementArg(loc, index))
			return err
		}
	} else {
		geom, err = p.waitVisible(ctx, loc, index, timeout)
	}
	if err != nil {
		return fmt.Errorf("click %s: %w", loc, err)
	}

	return p.run(ctx, "click", timeout,
		input.DispatchMouseEvent(input.MousePressed, geom.X, geom.Y).WithButton(input.Left).WithClickCount(1),
		input.DispatchMouseEvent(input.MouseReleased, geom.X, geom.Y).WithButton(input.Left).WithClickCount(1),
	)
}

func (p *Page) Fill(ctx context.Context, loc browser.Locator, index int, value string) error {
	arg := newElementArg(loc, index)
	arg.Value = value
	_, err := p.element(ctx, "fill", fillScript, arg)
	return err
}

// Type focuses the element, then sends text one rune at a time so the page's
// incremental search sees every keystroke.
func (p *Page) Type(ctx context.Context, loc browser.Locator, index int, text string, delay time.Duration) error {
	if _, err := p.element(ctx, "type", focusScript, newElementArg(loc, index)); err != nil {
		return err
	}
	for i, r := range text {
		if err := p.run(ctx, "type", p.opTimeout, chromedp.KeyEvent(string(r))); err != nil {
			return fmt.Errorf("typing rune %d of %q: %w", i, text, err)
		}
		if err := browser.Sleep(ctx, delay); err != nil {
			return err
		}
	}
	return nil
}

// Press sends a key or a chord such as "Control+A".
func (p *Page) Press(ctx context.Context, key string) error {
	chord, err := parseChord(key)
	if err != nil {
		return err
	}
	if chord.modifiers == 0 && chord.commands == nil {
		return p.run(ctx, "press "+key, p.opTimeout, chromedp.KeyEvent(chord.key))
	}

	down := input.DispatchKeyEvent(input.KeyDown).WithModifiers(chord.modifiers).WithKey(chord.key)
	if chord.commands != nil {
		down = down.WithCommands(chord.commands)
	}
	up := input.DispatchKeyEvent(input.KeyUp).WithModifiers(chord.modifiers).WithKey(chord.key)
	return p.run(ctx, "press "+key, p.opTimeout, down, up)
}

func (p *Page) InnerText(ctx context.Context, loc browser.Locator, index int) (string, error) {
	res, err := p.element(ctx, "inner text", innerTextScript, newElementArg(loc, index))
	return res.Text, err
}

func (p *Page) InputValue(ctx context.Context, loc browser.Locator, index int) (string, error) {
	res, err := p.element(ctx, "input value", inputValueScript, newElementArg(loc, index))
	return res.Text, err
}

func (p *Page) Evaluate(ctx context.Context, script string, arg any, out any) error {
	return p.eval(ctx, "evaluate", script, arg, out)
}

func (p *Page) WaitFor(ctx context.Context, loc browser.Locator, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := p.waitVisible(ctx, loc, 0, timeout)
	return err
}

func (p *Page) Content(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, "content", p.opTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (p *Page) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := p.run(ctx, "screenshot", 30*time.Second, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("failed to write screenshot %s: %w", path, err)
	}
	return nil
}

func (p *Page) Wait(ctx context.Context, d time.Duration) error {
	return browser.Sleep(ctx, d)
}

// chord is a parsed key combination.
type chord struct {
	key       string
	modifiers input.Modifier
	commands  []string
}

var namedKeys = map[string]string{
	"Enter":      kb.Enter,
	"Tab":        kb.Tab,
	"Escape":     kb.Escape,
	"Backspace":  kb.Backspace,
	"Delete":     kb.Delete,
	"ArrowDown":  kb.ArrowDown,
	"ArrowUp":    kb.ArrowUp,
	"ArrowLeft":  kb.ArrowLeft,
	"ArrowRight": kb.ArrowRight,
}

// editingCommands maps chords to the editor commands Chrome needs to act on
// synthesized key events.
var editingCommands = map[string][]string{
	"Control+A": {"selectAll"},
	"Meta+A":    {"selectAll"},
}

func parseChord(keys string) (chord, error) {
	parts := strings.Split(keys, "+")
	key := parts[len(parts)-1]
	if key == "" {
		return chord{}, fmt.Errorf("invalid key %q", keys)
	}

	var c chord
	for _, m := range parts[:len(parts)-1] {
		switch m {
		case "Control", "Ctrl":
			c.modifiers |= input.ModifierCtrl
		case "Shift":
			c.modifiers |= input.ModifierShift
		case "Alt":
			c.modifiers |= input.ModifierAlt
		case "Meta":
			c.modifiers |= input.ModifierMeta
		default:
			return chord{}, fmt.Errorf("invalid modifier %q in %q", m, keys)
		}
	}

	switch named, ok := namedKeys[key]; {
	case c.modifiers != 0 && len(key) == 1:
		c.key = strings.ToLower(key)
	case c.modifiers != 0:
		c.key = key
	case ok:
		c.key = named
	default:
		c.key = key
	}
	c.commands = editingCommands[keys]
	return c, nil
}
