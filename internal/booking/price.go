package booking

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/fareprobe/internal/browser"
	"github.com/xkilldash9x/fareprobe/internal/config"
	"github.com/xkilldash9x/fareprobe/internal/strategy"
)

// Price bounds.
const (
	SanityMin   = 300.0
	SanityMax   = 5000.0
	ExpectedMin = 500.0
	ExpectedMax = 3000.0
)

// Price extraction strategy names.
const (
	PriceByElement  = "element"
	PriceByMarkup   = "markup"
	PriceByBodyText = "body-text"
)

var (
	numberPattern   = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	digitsPattern   = regexp.MustCompile(`\d+`)
	currencyPattern = regexp.MustCompile(`[$€£]\s*\d[\d,]*(?:\.\d{2})?`)
	currencyMarkers = "$€£"
	bodyLocator     = browser.CSS("body")
)

// ParsePrice reads the first number in text, ignoring thousands separators.
func ParsePrice(text string) (float64, error) {
	m := numberPattern.FindString(text)
	if m == "" {
		return 0, fmt.Errorf("no number in %q", text)
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number in %q: %w", text, err)
	}
	return v, nil
}

// InSanityRange reports whether v is a plausible fare at all.
func InSanityRange(v float64) bool { return v >= SanityMin && v <= SanityMax }

// InExpectedRange reports whether v is within the range expected for the route.
func InExpectedRange(v float64) bool { return v >= ExpectedMin && v <= ExpectedMax }

// Extraction is a price found on the page.
type Extraction struct {
	Text     string
	Value    float64
	Strategy string
}

// PriceExtractor finds the fare on a results page.
type PriceExtractor struct {
	page    browser.Page
	profile Profile
	timing  config.TimingConfig
	logger  *zap.Logger
}

// NewPriceExtractor creates an extractor for page.
func NewPriceExtractor(page browser.Page, profile Profile, timing config.TimingConfig, logger *zap.Logger) *PriceExtractor {
	return &PriceExtractor{page: page, profile: profile, timing: timing, logger: logger.Named("price")}
}

// Extract tries price elements, then the page markup, then the visible body
// text. The error wraps ErrPriceNotFound when all three come up empty; a
// price is never made up.
func (e *PriceExtractor) Extract(ctx context.Context) (Extraction, error) {
	ex, name, err := strategy.FirstSuccess(ctx,
		strategy.New(PriceByElement, e.fromElements),
		strategy.New(PriceByMarkup, e.fromMarkup),
		strategy.New(PriceByBodyText, e.fromBodyText),
	)
	if err != nil {
		if ctx.Err() != nil {
			return Extraction{}, err
		}
		return Extraction{}, fmt.Errorf("%w: %w", ErrPriceNotFound, err)
	}
	ex.Strategy = name
	e.logger.Info("Price found.", zap.String("text", ex.Text), zap.String("strategy", name))
	return ex, nil
}

// fromElements accepts the first price element whose text carries a currency
// marker and a number of at least three digits.
func (e *PriceExtractor) fromElements(ctx context.Context) (Extraction, error) {
	for _, loc := range e.profile.PriceElements {
		count, err := e.page.Count(ctx, loc)
		if err != nil {
			e.logger.Debug("Counting price elements failed.", zap.Stringer("locator", loc), zap.Error(err))
			continue
		}
		for i := 0; i < count; i++ {
			probe, cancel := context.WithTimeout(ctx, e.timing.ProbeTimeout)
			text, err := e.page.InnerText(probe, loc, i)
			cancel()
			if err != nil {
				continue
			}
			text = strings.TrimSpace(text)
			if !elementLooksPriced(text) {
				continue
			}
			v, err := ParsePrice(text)
			if err != nil {
				continue
			}
			return Extraction{Text: text, Value: v}, nil
		}
	}
	return Extraction{}, errors.New("no price element")
}

func elementLooksPriced(text string) bool {
	if !strings.ContainsAny(text, currencyMarkers) {
		return false
	}
	first := digitsPattern.FindString(strings.ReplaceAll(text, ",", ""))
	return len(first) >= 3
}

func (e *PriceExtractor) fromMarkup(ctx context.Context) (Extraction, error) {
	content, err := e.page.Content(ctx)
	if err != nil {
		return Extraction{}, err
	}
	return scanPrices(content)
}

// fromBodyText scans the rendered body text, or the text nodes of the markup
// when the body cannot be read.
func (e *PriceExtractor) fromBodyText(ctx context.Context) (Extraction, error) {
	text, err := e.page.InnerText(ctx, bodyLocator, 0)
	if err != nil {
		e.logger.Debug("Body text unavailable; deriving it from markup.", zap.Error(err))
		content, cerr := e.page.Content(ctx)
		if cerr != nil {
			return Extraction{}, errors.Join(err, cerr)
		}
		if text, err = VisibleText(content); err != nil {
			return Extraction{}, err
		}
	}
	return scanPrices(text)
}

// scanPrices returns the first currency token whose value is in the sanity range.
func scanPrices(text string) (Extraction, error) {
	for _, m := range currencyPattern.FindAllString(text, -1) {
		v, err := ParsePrice(m)
		if err != nil || !InSanityRange(v) {
			continue
		}
		return Extraction{Text: strings.TrimSpace(m), Value: v}, nil
	}
	return Extraction{}, errors.New("no currency token in range")
}

// VisibleText returns the text content of markup, skipping script, style
// and template elements.
func VisibleText(markup string) (string, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("failed to parse markup: %w", err)
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template", "head":
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				b.WriteString(t)
				b.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return b.String(), nil
}

// Outcome is the verdict of one search.
type Outcome struct {
	PriceText      string   `json:"price_text,omitempty"`
	Price          *float64 `json:"price,omitempty"`
	Strategy       string   `json:"strategy,omitempty"`
	WithinSanity   bool     `json:"within_sanity"`
	WithinExpected bool     `json:"within_expected"`
	// Estimate is the advisory fare for the departure lead time, if a model is loaded.
	Estimate *float64 `json:"estimate,omitempty"`
}

// Found reports whether a price was extracted.
func (o Outcome) Found() bool { return o.Price != nil }

// NewOutcome builds the verdicts for an extraction. A nil extraction means no
// price was found.
func NewOutcome(ex *Extraction) Outcome {
	if ex == nil {
		return Outcome{}
	}
	v := ex.Value
	return Outcome{
		PriceText:      ex.Text,
		Price:          &v,
		Strategy:       ex.Strategy,
		WithinSanity:   InSanityRange(v),
		WithinExpected: InExpectedRange(v),
	}
}
