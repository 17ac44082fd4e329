package driver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/fareprobe/internal/browser"
	"github.com/xkilldash9x/fareprobe/internal/browser/browsertest"
	"github.com/xkilldash9x/fareprobe/internal/config"
)

func stubLaunchers(t *testing.T, l map[string]launcher) {
	t.Helper()
	orig := launchers
	launchers = l
	t.Cleanup(func() { launchers = orig })
}

func TestOpenDispatchesOnDriver(t *testing.T) {
	fake := browsertest.New()
	var released int
	stubLaunchers(t, map[string]launcher{
		config.DriverPlaywright: func(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (browser.Page, func(), error) {
			return fake, func() { released++ }, nil
		},
	})

	cfg := config.NewDefaultConfig().Browser()
	cfg.Driver = config.DriverPlaywright
	open := Opener(cfg, zap.NewNop())

	page, release, err := open(context.Background())
	require.NoError(t, err)
	assert.Same(t, fake, page)
	release()
	assert.Equal(t, 1, released)
}

func TestReleaseClosesBrowserOnce(t *testing.T) {
	var closed int
	stubLaunchers(t, map[string]launcher{
		config.DriverChromedp: func(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (browser.Page, func(), error) {
			return browsertest.New(), func() { closed++ }, nil
		},
	})
	core, logs := observer.New(zapcore.DebugLevel)

	_, release, err := Open(context.Background(), config.NewDefaultConfig().Browser(), zap.New(core))
	require.NoError(t, err)
	require.NotNil(t, release)
	assert.Zero(t, closed, "launching must not close the browser")

	release()
	assert.Equal(t, 1, closed)
	released := logs.FilterMessage("Page released.").All()
	require.Len(t, released, 1)
	assert.Equal(t, "driver", released[0].LoggerName)
}

func TestOpenErrors(t *testing.T) {
	stubLaunchers(t, map[string]launcher{
		config.DriverChromedp: func(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (browser.Page, func(), error) {
			return nil, nil, errors.New("no chrome binary")
		},
	})

	cfg := config.NewDefaultConfig().Browser()
	_, _, err := Open(context.Background(), cfg, zap.NewNop())
	assert.EqualError(t, err, "chromedp: no chrome binary")

	cfg.Driver = "selenium"
	_, _, err = Open(context.Background(), cfg, zap.NewNop())
	assert.EqualError(t, err, `unknown browser driver "selenium"`)
}

func TestDefaultLaunchersCoverEveryDriver(t *testing.T) {
	assert.Contains(t, launchers, config.DriverChromedp)
	assert.Contains(t, launchers, config.DriverPlaywright)
}
