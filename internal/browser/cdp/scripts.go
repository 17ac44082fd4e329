// internal/browser/cdp/scripts.go
package cdp

import (
	"encoding/json"
	"fmt"

	"github.com/xkilldash9x/fareprobe/internal/browser"
)

// elementPrelude defines the helpers every element script relies on. find
// applies the locator's text filter so results line up with the playwright
// driver's ":has-text" semantics.
const elementPrelude = `
	const find = (css, text) => {
		const all = Array.from(document.querySelectorAll(css));
		return text ? all.filter(el => (el.textContent || '').includes(text)) : all;
	};
	const visible = (el) => {
		const rect = el.getBoundingClientRect();
		const style = window.getComputedStyle(el);
		return rect.width > 0 && rect.height > 0 && style.display !== 'none' &&
			style.visibility !== 'hidden' && style.opacity !== '0';
	};
	const el = find(arg.css, arg.text)[arg.index];
`

// elementArg is the argument shape of every element script.
type elementArg struct {
	CSS   string `json:"css"`
	Text  string `json:"text"`
	Index int    `json:"index"`
	Value string `json:"value,omitempty"`
}

func newElementArg(loc browser.Locator, index int) elementArg {
	return elementArg{CSS: loc.CSS, Text: loc.HasText, Index: index}
}

// elementScript wraps body in a function of arg that has the prelude in scope.
// body runs only when the element exists; otherwise the script yields
// {"found": false}.
func elementScript(body string) string {
	return fmt.Sprintf(`(arg) => {%s
	if (!el) return { found: false };
	%s
}`, elementPrelude, body)
}

var (
	countScript = `(arg) => {
	const all = Array.from(document.querySelectorAll(arg.css));
	return arg.text ? all.filter(el => (el.textContent || '').includes(arg.text)).length : all.length;
}`

	geometryScript = elementScript(`
	if (arg.value === 'scroll') el.scrollIntoView({ block: 'center', inline: 'center' });
	const rect = el.getBoundingClientRect();
	return { found: true, visible: visible(el), x: rect.left + rect.width / 2, y: rect.top + rect.height / 2 };
`)

	focusScript = elementScript(`
	el.focus();
	return { found: true };
`)

	domClickScript = elementScript(`
	el.click();
	return { found: true };
`)

	// fillScript sets the value and dispatches the events frameworks listen for.
	fillScript = elementScript(`
	el.focus();
	el.value = arg.value;
	el.dispatchEvent(new Event('input', { bubbles: true }));
	el.dispatchEvent(new Event('change', { bubbles: true }));
	return { found: true };
`)

	innerTextScript = elementScript(`
	return { found: true, text: el.innerText || el.textContent || '' };
`)

	inputValueScript = elementScript(`
	return { found: true, text: el.value === undefined ? '' : String(el.value) };
`)
)

// elementResult is the decoded result of an element script.
type elementResult struct {
	Found   bool    `json:"found"`
	Visible bool    `json:"visible"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Text    string  `json:"text"`
}

// callExpression renders an invocation of the function expression script with
// arg. The result is always a promise resolving to a JSON-safe value, so
// scripts that return undefined or are async behave the same.
func callExpression(script string, arg any) string {
	return fmt.Sprintf("Promise.resolve((%s)(%s)).then(r => r === undefined ? null : r)", script, jsonEncode(arg))
}

// jsonEncode encodes v as a JS literal.
func jsonEncode(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}
