package booking

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/fareprobe/internal/browser"
	"github.com/xkilldash9x/fareprobe/internal/config"
)

// OverlayReport totals what DismissOverlays cleared.
type OverlayReport struct {
	Passes  int `json:"passes"`
	Consent int `json:"consent"`
	Removed int `json:"removed"`
	Closed  int `json:"closed"`
}

// DismissOverlays clears consent banners and popups in several passes,
// since some appear only after others are gone. Failures are logged only.
func DismissOverlays(ctx context.Context, page browser.Page, profile Profile, timing config.TimingConfig, logger *zap.Logger) (OverlayReport, error) {
	var report OverlayReport
	var lastErr error
	arg := overlayArg{Keywords: profile.ConsentKeywords, IDs: profile.OverlayIDs, Close: profile.CloseButtons}
	if arg.Keywords == nil {
		arg.Keywords = []string{}
	}
	if arg.IDs == nil {
		arg.IDs = []string{}
	}

	for pass := 0; pass < timing.OverlayPasses; pass++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		var res overlayResult
		if err := page.Evaluate(ctx, dismissOverlaysScript, arg, &res); err != nil {
			lastErr = err
			logger.Debug("Overlay pass failed.", zap.Int("pass", pass), zap.Error(err))
		} else {
			report.Consent += res.Consent
			report.Removed += res.Removed
			report.Closed += res.Closed
		}
		report.Passes++
		_ = page.Wait(ctx, timing.OverlaySettle)
	}
	logger.Info("Overlays handled.",
		zap.Int("consent", report.Consent), zap.Int("removed", report.Removed), zap.Int("closed", report.Closed))
	return report, lastErr
}
