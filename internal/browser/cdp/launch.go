// internal/browser/cdp/launch.go
package cdp

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/fareprobe/internal/config"
)

// allocatorOptions translates the browser config into exec allocator options.
func allocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("enable-automation", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	}
	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if w, h := cfg.Viewport["width"], cfg.Viewport["height"]; w > 0 && h > 0 {
		opts = append(opts, chromedp.WindowSize(w, h))
	}
	for _, arg := range cfg.Args {
		key, value, found := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if found {
			opts = append(opts, chromedp.Flag(key, value))
		} else {
			opts = append(opts, chromedp.Flag(key, true))
		}
	}
	return opts
}

// Launch starts a browser and opens one tab. The returned release func closes
// the tab and the browser process and is safe to call more than once.
func Launch(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Page, func(), error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocatorOptions(cfg)...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(logger.Sugar().Debugf))

	var once sync.Once
	release := func() {
		once.Do(func() {
			cancelTab()
			cancelAlloc()
		})
	}

	// The first Run starts the browser process and ties it to the context it
	// is given, so it must run on tabCtx itself rather than a derived timeout.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(tabCtx) }()

	var timeout <-chan time.Time
	if cfg.LaunchTimeout > 0 {
		timer := time.NewTimer(cfg.LaunchTimeout)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case err := <-started:
		if err != nil {
			release()
			return nil, nil, fmt.Errorf("failed to launch chrome: %w", err)
		}
	case <-timeout:
		release()
		return nil, nil, fmt.Errorf("chrome launch timed out after %v", cfg.LaunchTimeout)
	case <-ctx.Done():
		release()
		return nil, nil, fmt.Errorf("chrome launch aborted: %w", ctx.Err())
	}

	logger.Debug("Chrome launched.", zap.Bool("headless", cfg.Headless))
	return NewPage(tabCtx, logger, cfg.NavigationTimeout), release, nil
}
