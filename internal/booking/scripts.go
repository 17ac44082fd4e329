package booking

// Scripts are JS function expressions evaluated with one JSON argument.

// checkRadioScript clicks the radio matched by arg.css unless it is already
// checked. It reports whether the radio exists.
const checkRadioScript = `(arg) => {
	const radio = document.querySelector(arg.css);
	if (!radio) return false;
	if (!radio.checked) radio.click();
	return true;
}`

// injectDateScript writes arg.value into the arg.index-th match of arg.css
// and fires the events a framework listens for.
const injectDateScript = `(arg) => {
	const input = document.querySelectorAll(arg.css)[arg.index];
	if (!input) return false;
	input.value = arg.value;
	input.dispatchEvent(new Event('input', { bubbles: true }));
	input.dispatchEvent(new Event('change', { bubbles: true }));
	return true;
}`

// clickByTextScript clicks the first arg.css match whose text contains arg.text.
const clickByTextScript = `(arg) => {
	const el = Array.from(document.querySelectorAll(arg.css)).find(b => (b.textContent || '').includes(arg.text));
	if (!el) return false;
	el.click();
	return true;
}`

// dismissOverlaysScript clicks consent buttons, removes overlay nodes and
// clicks close links, counting each.
const dismissOverlaysScript = `(arg) => {
	const result = { consent: 0, removed: 0, closed: 0 };
	document.querySelectorAll('button').forEach(btn => {
		const text = (btn.textContent || '').toLowerCase();
		if ((arg.keywords || []).some(k => text.includes(k))) {
			try { btn.click(); result.consent++; } catch (e) {}
		}
	});
	(arg.ids || []).forEach(id => {
		const el = document.getElementById(id);
		if (el) { el.remove(); result.removed++; }
	});
	if (arg.close) {
		document.querySelectorAll(arg.close).forEach(el => {
			try { el.click(); result.closed++; } catch (e) {}
		});
	}
	return result;
}`

type selectorArg struct {
	CSS   string `json:"css"`
	Index int    `json:"index,omitempty"`
	Value string `json:"value,omitempty"`
	Text  string `json:"text,omitempty"`
}

type overlayArg struct {
	Keywords []string `json:"keywords"`
	IDs      []string `json:"ids"`
	Close    string   `json:"close,omitempty"`
}

type overlayResult struct {
	Consent int `json:"consent"`
	Removed int `json:"removed"`
	Closed  int `json:"closed"`
}
