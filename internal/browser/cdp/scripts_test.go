// internal/browser/cdp/scripts_test.go
package cdp

import (
	"testing"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp/kb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/fareprobe/internal/browser"
	"github.com/xkilldash9x/fareprobe/internal/config"
)

func TestCallExpression(t *testing.T) {
	expr := callExpression("(arg) => arg.n + 1", map[string]int{"n": 1})
	assert.Equal(t, `Promise.resolve(((arg) => arg.n + 1)({"n":1})).then(r => r === undefined ? null : r)`, expr)
}

func TestJSONEncodeEscapesSelectors(t *testing.T) {
	arg := newElementArg(browser.CSS(`button[aria-label*='December 15, 2025']`).WithText(`say "hi"`), 2)
	assert.Equal(t,
		`{"css":"button[aria-label*='December 15, 2025']","text":"say \"hi\"","index":2}`,
		jsonEncode(arg))
}

func TestElementScriptGuardsMissingElement(t *testing.T) {
	script := elementScript("return { found: true };")
	assert.Contains(t, script, "if (!el) return { found: false };")
	assert.Contains(t, script, "const find = (css, text)")
}

func TestParseChord(t *testing.T) {
	tests := []struct {
		keys      string
		key       string
		modifiers input.Modifier
		commands  []string
	}{
		{keys: "Enter", key: kb.Enter},
		{keys: "Backspace", key: kb.Backspace},
		{keys: "x", key: "x"},
		{keys: "Control+A", key: "a", modifiers: input.ModifierCtrl, commands: []string{"selectAll"}},
		{keys: "Shift+Tab", key: "Tab", modifiers: input.ModifierShift},
	}
	for _, tt := range tests {
		t.Run(tt.keys, func(t *testing.T) {
			c, err := parseChord(tt.keys)
			require.NoError(t, err)
			assert.Equal(t, tt.key, c.key)
			assert.Equal(t, tt.modifiers, c.modifiers)
			assert.Equal(t, tt.commands, c.commands)
		})
	}

	_, err := parseChord("Hyper+A")
	assert.Error(t, err)
	_, err = parseChord("Control+")
	assert.Error(t, err)
}

func TestAllocatorOptions(t *testing.T) {
	base := len(allocatorOptions(config.BrowserConfig{}))

	cfg := config.BrowserConfig{
		Headless: true,
		Args:     []string{"--disable-gpu", "--lang=en-US"},
		Viewport: map[string]int{"width": 1280, "height": 800},
	}
	// headless, window size and one per arg
	assert.Len(t, allocatorOptions(cfg), base+4)
}
