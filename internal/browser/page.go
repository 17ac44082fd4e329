// internal/browser/page.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	// ErrNotFound is returned when a locator has no match at the requested index.
	ErrNotFound = errors.New("element not found")
	// ErrNotVisible is returned when a non-forced interaction targets a hidden element.
	ErrNotVisible = errors.New("element not visible")
)

// Locator addresses a set of elements. CSS may be a comma separated selector
// list; matches keep document order. HasText narrows the set to elements whose
// text content contains the given string.
type Locator struct {
	CSS     string
	HasText string
}

// CSS returns a locator for a plain selector.
func CSS(selector string) Locator {
	return Locator{CSS: selector}
}

// WithText returns a copy of l that only matches elements containing text.
func (l Locator) WithText(text string) Locator {
	l.HasText = text
	return l
}

// String renders the locator in the selector engine syntax accepted by
// playwright, which also makes it readable in step records.
func (l Locator) String() string {
	if l.HasText == "" {
		return l.CSS
	}
	return fmt.Sprintf("%s:has-text(%s)", l.CSS, strconv.Quote(l.HasText))
}

// ClickOptions tunes a single click.
type ClickOptions struct {
	// Force skips the visibility and actionability checks.
	Force bool
	// Timeout bounds the click. Zero means the driver default.
	Timeout time.Duration
}

// Page is the set of interaction primitives a booking flow needs from a
// browser. Every method is bounded by ctx and by its own driver timeout;
// callers must never assume success.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// Count returns the number of elements matching loc.
	Count(ctx context.Context, loc Locator) (int, error)
	IsVisible(ctx context.Context, loc Locator, index int) (bool, error)
	Click(ctx context.Context, loc Locator, index int, opts ClickOptions) error
	// Fill replaces the value of an input without key events.
	Fill(ctx context.Context, loc Locator, index int, value string) error
	// Type focuses the element and sends text one key at a time, pausing
	// delay between keys.
	Type(ctx context.Context, loc Locator, index int, text string, delay time.Duration) error
	// Press sends a key or chord to the focused element, e.g. "Enter" or "Control+A".
	Press(ctx context.Context, key string) error
	InnerText(ctx context.Context, loc Locator, index int) (string, error)
	InputValue(ctx context.Context, loc Locator, index int) (string, error)
	// Evaluate calls the JS function expression script with arg and decodes
	// its JSON result into out. out may be nil.
	Evaluate(ctx context.Context, script string, arg any, out any) error
	// WaitFor blocks until loc has a visible match or timeout elapses.
	WaitFor(ctx context.Context, loc Locator, timeout time.Duration) error
	// Content returns the serialized markup of the document.
	Content(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, path string) error
	// Wait sleeps for d unless ctx ends first.
	Wait(ctx context.Context, d time.Duration) error
}

// Sleep waits for d or until ctx is done. Drivers use it to implement Wait.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
