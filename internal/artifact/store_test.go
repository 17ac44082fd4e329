package artifact

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/fareprobe/internal/browser/browsertest"
)

func TestCapture(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	store := NewStore(dir, zap.NewNop())

	page := browsertest.New()
	page.HTML = "<html><body><span class='price'>$845</span></body></html>"

	got, err := store.Capture(context.Background(), page, "ab12cd34", "price not found")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "ab12cd34-price_not_found.png"), got.Screenshot)
	assert.FileExists(t, got.Screenshot)

	markup, err := ReadMarkup(got.Markup)
	require.NoError(t, err)
	assert.Equal(t, page.HTML, markup)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestCapturePartialFailure(t *testing.T) {
	store := NewStore(t.TempDir(), zap.NewNop())
	page := browsertest.New().Fail("Screenshot", errors.New("target closed"))
	page.HTML = "<html></html>"

	got, err := store.Capture(context.Background(), page, "run", "terminal")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "screenshot: target closed")
	assert.Empty(t, got.Screenshot)
	assert.NotEmpty(t, got.Markup)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "price_out_of_range__1_2", sanitize("price out/of\\range: 1.2"))
}
