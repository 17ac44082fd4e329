// internal/browser/pw/launch.go
package pw

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/fareprobe/internal/config"
)

const installTimeout = 5 * time.Minute

var defaultArgs = []string{
	"--disable-gpu",
	"--no-sandbox",
	"--disable-dev-shm-usage",
	"--disable-blink-features=AutomationControlled",
}

func launchOptions(cfg config.BrowserConfig) playwright.BrowserTypeLaunchOptions {
	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		Args:     append(append([]string{}, defaultArgs...), cfg.Args...),
	}
	if cfg.LaunchTimeout > 0 {
		opts.Timeout = playwright.Float(float64(cfg.LaunchTimeout.Milliseconds()))
	}
	if cfg.ExecPath != "" {
		opts.ExecutablePath = playwright.String(cfg.ExecPath)
	}
	return opts
}

func pageOptions(cfg config.BrowserConfig) playwright.BrowserNewPageOptions {
	var opts playwright.BrowserNewPageOptions
	if w, h := cfg.Viewport["width"], cfg.Viewport["height"]; w > 0 && h > 0 {
		opts.Viewport = &playwright.Size{Width: w, Height: h}
	}
	if cfg.UserAgent != "" {
		opts.UserAgent = playwright.String(cfg.UserAgent)
	}
	return opts
}

// ensureInstallation installs the chromium build playwright drives. It blocks,
// so it runs in a goroutine bounded by ctx.
func ensureInstallation(ctx context.Context, logger *zap.Logger) error {
	logger.Info("Verifying Playwright browser installation...")
	ctx, cancel := context.WithTimeout(ctx, installTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}})
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to install playwright browsers: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for Playwright installation: %w", ctx.Err())
	}
}

// Launch starts the playwright driver, a chromium browser and one page. The
// release func closes all three and is safe to call more than once.
func Launch(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Page, func(), error) {
	if err := ensureInstallation(ctx, logger); err != nil {
		return nil, nil, err
	}

	runtime, err := playwright.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start playwright driver: %w", err)
	}

	b, err := runtime.Chromium.Launch(launchOptions(cfg))
	if err != nil {
		_ = runtime.Stop()
		return nil, nil, fmt.Errorf("failed to launch chromium: %w", err)
	}

	page, err := b.NewPage(pageOptions(cfg))
	if err != nil {
		_ = b.Close()
		_ = runtime.Stop()
		return nil, nil, fmt.Errorf("failed to open page: %w", err)
	}

	var once sync.Once
	release := func() { once.Do(func() { closeAll(logger, page, b, runtime) }) }

	logger.Debug("Playwright chromium launched.", zap.String("version", b.Version()))
	return NewPage(page, logger, cfg.NavigationTimeout), release, nil
}

func closeAll(logger *zap.Logger, page playwright.Page, b playwright.Browser, runtime *playwright.Playwright) {
	if err := page.Close(); err != nil {
		logger.Debug("Failed to close page.", zap.Error(err))
	}
	if err := b.Close(); err != nil {
		logger.Debug("Failed to close browser.", zap.Error(err))
	}
	if err := runtime.Stop(); err != nil {
		logger.Debug("Failed to stop playwright driver.", zap.Error(err))
	}
}
