// Package artifact captures diagnostics for flows that fail terminally.
package artifact

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"go.uber.org/zap"

	"github.com/xkilldash9x/fareprobe/internal/browser"
)

// Capture lists the files written for one failure. Empty paths were not captured.
type Capture struct {
	Screenshot string `json:"screenshot,omitempty"`
	Markup     string `json:"markup,omitempty"`
}

// Store writes diagnostic captures under a directory.
type Store struct {
	dir    string
	logger *zap.Logger
}

// NewStore returns a store rooted at dir.
func NewStore(dir string, logger *zap.Logger) *Store {
	return &Store{dir: dir, logger: logger.Named("artifact")}
}

// Dir is the root directory of the store.
func (s *Store) Dir() string { return s.dir }

// Capture saves a full page screenshot and the brotli compressed page markup
// as <runID>-<label>.png and <runID>-<label>.html.br. Each capture is best
// effort; the returned error joins whatever failed.
func (s *Store) Capture(ctx context.Context, page browser.Page, runID, label string) (Capture, error) {
	var out Capture
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return out, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	base := filepath.Join(s.dir, runID+"-"+sanitize(label))

	var errs []string
	shot := base + ".png"
	if err := page.Screenshot(ctx, shot); err != nil {
		errs = append(errs, "screenshot: "+err.Error())
	} else {
		out.Screenshot = shot
	}

	markup := base + ".html.br"
	html, err := page.Content(ctx)
	if err == nil {
		err = writeCompressed(markup, html)
	}
	if err != nil {
		errs = append(errs, "markup: "+err.Error())
	} else {
		out.Markup = markup
	}

	s.logger.Info("Diagnostics captured.",
		zap.String("run_id", runID),
		zap.String("screenshot", out.Screenshot),
		zap.String("markup", out.Markup))
	if len(errs) > 0 {
		return out, fmt.Errorf("incomplete capture: %s", strings.Join(errs, "; "))
	}
	return out, nil
}

func writeCompressed(path, content string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	bw := brotli.NewWriterLevel(tmp, brotli.DefaultCompression)
	if _, err := io.WriteString(bw, content); err != nil {
		tmp.Close()
		return err
	}
	if err := bw.Close(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ReadMarkup decompresses a markup capture.
func ReadMarkup(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	data, err := io.ReadAll(brotli.NewReader(f))
	if err != nil {
		return "", fmt.Errorf("failed to decompress %s: %w", path, err)
	}
	return string(data), nil
}

func sanitize(label string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, label)
}
