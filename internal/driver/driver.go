// Package driver opens a browser page for the configured automation driver.
package driver

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/fareprobe/internal/browser"
	"github.com/xkilldash9x/fareprobe/internal/browser/cdp"
	"github.com/xkilldash9x/fareprobe/internal/browser/pw"
	"github.com/xkilldash9x/fareprobe/internal/config"
)

type launcher func(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (browser.Page, func(), error)

var launchers = map[string]launcher{
	config.DriverChromedp: func(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (browser.Page, func(), error) {
		return cdp.Launch(ctx, cfg, logger)
	},
	config.DriverPlaywright: func(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (browser.Page, func(), error) {
		return pw.Launch(ctx, cfg, logger)
	},
}

// Open launches a browser with one page. The caller must call release on
// every path once the page is no longer needed.
func Open(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (browser.Page, func(), error) {
	launch, ok := launchers[cfg.Driver]
	if !ok {
		return nil, nil, fmt.Errorf("unknown browser driver %q", cfg.Driver)
	}
	log := logger.Named("driver").With(zap.String("driver", cfg.Driver))
	log.Debug("Opening page.")

	page, closeBrowser, err := launch(ctx, cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", cfg.Driver, err)
	}
	return page, func() {
		closeBrowser()
		log.Debug("Page released.")
	}, nil
}

// Opener binds Open to cfg, for callers that open one page per flow.
func Opener(cfg config.BrowserConfig, logger *zap.Logger) func(ctx context.Context) (browser.Page, func(), error) {
	return func(ctx context.Context) (browser.Page, func(), error) {
		return Open(ctx, cfg, logger)
	}
}
