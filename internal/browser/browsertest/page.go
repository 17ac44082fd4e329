// Package browsertest provides an in-memory browser.Page for tests. Elements
// are registered per locator. Every call is recorded on the embedded
// mock.Mock, so tests can use AssertCalled and AssertNumberOfCalls.
package browsertest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/fareprobe/internal/browser"
)

// Element is a fake DOM node.
type Element struct {
	Visible  bool
	Text     string
	Value    string
	ClickErr error
	// OnClick runs after a successful click.
	OnClick func()
}

// Call is one recorded interaction. Every method is recorded on the mock
// with the arguments (target, index, arg).
type Call struct {
	Method string
	Target string
	Index  int
	Arg    string
}

// methods lists every recorded method of Page.
var methods = []string{
	"Navigate", "Count", "IsVisible", "Click", "Fill", "Type", "Press",
	"InnerText", "InputValue", "Evaluate", "WaitFor", "Content", "Screenshot", "Wait",
}

// Page is a scriptable browser.Page.
type Page struct {
	mock.Mock

	mu       sync.Mutex
	elements map[string][]*Element
	stubs    map[string]*mock.Call

	// HTML is returned by Content.
	HTML string
	// EvaluateFunc answers Evaluate. Its result is JSON round-tripped into out.
	EvaluateFunc func(script string, arg any) (any, error)
}

var _ browser.Page = (*Page)(nil)

// New returns an empty page on which every method succeeds.
func New() *Page {
	p := &Page{elements: map[string][]*Element{}, stubs: map[string]*mock.Call{}}
	for _, m := range methods {
		p.stub(m, nil)
	}
	return p
}

// stub makes method return err, replacing the previous expectation.
func (p *Page) stub(method string, err error) {
	if prev, ok := p.stubs[method]; ok {
		prev.Unset()
	}
	p.stubs[method] = p.On(method, mock.Anything, mock.Anything, mock.Anything).Return(err).Maybe()
}

// Set registers the elements matched by loc, in document order.
func (p *Page) Set(loc browser.Locator, els ...*Element) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[loc.String()] = els
	return p
}

// Fail makes every call of method return err.
func (p *Page) Fail(method string, err error) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stub(method, err)
	return p
}

// Element returns the registered element, or nil.
func (p *Page) Element(loc browser.Locator, index int) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lookup(loc, index)
}

// Calls returns the recorded calls of method, or all calls except Wait when
// method is empty.
func (p *Page) Calls(method string) []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Call
	for _, c := range p.Mock.Calls {
		if (method == "" && c.Method != "Wait") || c.Method == method {
			out = append(out, Call{Method: c.Method, Target: c.Arguments.String(0), Index: c.Arguments.Int(1), Arg: c.Arguments.String(2)})
		}
	}
	return out
}

// Waits returns every duration passed to Wait.
func (p *Page) Waits() []time.Duration {
	var out []time.Duration
	for _, c := range p.Calls("Wait") {
		d, _ := time.ParseDuration(c.Arg)
		out = append(out, d)
	}
	return out
}

func (p *Page) lookup(loc browser.Locator, index int) *Element {
	els := p.elements[loc.String()]
	if index < 0 || index >= len(els) {
		return nil
	}
	return els[index]
}

// begin records the call and returns the error stubbed for method, if any.
func (p *Page) begin(ctx context.Context, method, target string, index int, arg string) error {
	err := p.MethodCalled(method, target, index, arg).Error(0)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func notFound(loc browser.Locator, index int) error {
	return fmt.Errorf("%s[%d]: %w", loc, index, browser.ErrNotFound)
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.begin(ctx, "Navigate", url, 0, "")
}

func (p *Page) Count(ctx context.Context, loc browser.Locator) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin(ctx, "Count", loc.String(), 0, ""); err != nil {
		return 0, err
	}
	return len(p.elements[loc.String()]), nil
}

func (p *Page) IsVisible(ctx context.Context, loc browser.Locator, index int) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin(ctx, "IsVisible", loc.String(), index, ""); err != nil {
		return false, err
	}
	el := p.lookup(loc, index)
	return el != nil && el.Visible, nil
}

func (p *Page) Click(ctx context.Context, loc browser.Locator, index int, opts browser.ClickOptions) error {
	p.mu.Lock()
	if err := p.begin(ctx, "Click", loc.String(), index, fmt.Sprintf("force=%t", opts.Force)); err != nil {
		p.mu.Unlock()
		return err
	}
	el := p.lookup(loc, index)
	p.mu.Unlock()

	switch {
	case el == nil:
		return notFound(loc, index)
	case el.ClickErr != nil:
		return el.ClickErr
	case !opts.Force && !el.Visible:
		return fmt.Errorf("%s[%d]: %w", loc, index, browser.ErrNotVisible)
	}
	if el.OnClick != nil {
		el.OnClick()
	}
	return nil
}

func (p *Page) Fill(ctx context.Context, loc browser.Locator, index int, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin(ctx, "Fill", loc.String(), index, value); err != nil {
		return err
	}
	el := p.lookup(loc, index)
	if el == nil {
		return notFound(loc, index)
	}
	el.Value = value
	return nil
}

func (p *Page) Type(ctx context.Context, loc browser.Locator, index int, text string, delay time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin(ctx, "Type", loc.String(), index, text); err != nil {
		return err
	}
	el := p.lookup(loc, index)
	if el == nil {
		return notFound(loc, index)
	}
	el.Value += text
	return nil
}

func (p *Page) Press(ctx context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.begin(ctx, "Press", "", 0, key)
}

func (p *Page) InnerText(ctx context.Context, loc browser.Locator, index int) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin(ctx, "InnerText", loc.String(), index, ""); err != nil {
		return "", err
	}
	el := p.lookup(loc, index)
	if el == nil {
		return "", notFound(loc, index)
	}
	return el.Text, nil
}

func (p *Page) InputValue(ctx context.Context, loc browser.Locator, index int) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin(ctx, "InputValue", loc.String(), index, ""); err != nil {
		return "", err
	}
	el := p.lookup(loc, index)
	if el == nil {
		return "", notFound(loc, index)
	}
	return el.Value, nil
}

func (p *Page) Evaluate(ctx context.Context, script string, arg any, out any) error {
	p.mu.Lock()
	encoded, _ := json.Marshal(arg)
	err := p.begin(ctx, "Evaluate", script, 0, string(encoded))
	fn := p.EvaluateFunc
	p.mu.Unlock()
	if err != nil {
		return err
	}
	if fn == nil {
		return nil
	}
	res, err := fn(script, arg)
	if err != nil {
		return err
	}
	if out == nil || res == nil {
		return nil
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// WaitFor succeeds immediately when any match of loc is visible and fails
// immediately otherwise.
func (p *Page) WaitFor(ctx context.Context, loc browser.Locator, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin(ctx, "WaitFor", loc.String(), 0, timeout.String()); err != nil {
		return err
	}
	for _, el := range p.elements[loc.String()] {
		if el.Visible {
			return nil
		}
	}
	return fmt.Errorf("waiting for %s timed out after %v: %w", loc, timeout, browser.ErrNotFound)
}

func (p *Page) Content(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin(ctx, "Content", "", 0, ""); err != nil {
		return "", err
	}
	return p.HTML, nil
}

// Screenshot writes a placeholder image to path.
func (p *Page) Screenshot(ctx context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin(ctx, "Screenshot", path, 0, ""); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("\x89PNG fake"), 0o644)
}

// Wait records d and returns without sleeping.
func (p *Page) Wait(ctx context.Context, d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.begin(ctx, "Wait", "", 0, d.String())
}
