package advisor

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Model kinds.
const (
	KindSuccess = "date-success"
	KindPrice   = "price"
)

// ModelVersion is bumped whenever the artifact layout changes.
const ModelVersion = 1

// Model is a trained forest with the metadata needed to swap artifacts safely.
type Model struct {
	Kind      string    `json:"kind"`
	Version   int       `json:"version"`
	TrainedAt time.Time `json:"trained_at"`
	Samples   int       `json:"samples"`
	Forest    *Forest   `json:"forest"`
}

var (
	_ SuccessPredictor = (*Model)(nil)
	_ PricePredictor   = (*Model)(nil)
)

// PredictSuccessProbability clamps the forest output to [0, 1].
func (m *Model) PredictSuccessProbability(leadDays int) float64 {
	return math.Min(1, math.Max(0, m.Forest.Predict(float64(leadDays))))
}

func (m *Model) PredictPrice(leadDays int) float64 {
	return m.Forest.Predict(float64(leadDays))
}

// Save writes the artifact atomically: a temp file in the same directory is
// renamed over path.
func (m *Model) Save(path string) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode %s model: %w", m.Kind, err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp model file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close model: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to install model at %s: %w", path, err)
	}
	return nil
}

// LoadModel reads an artifact of the given kind. A missing file is reported
// as ErrModelUnavailable.
func LoadModel(path, kind string) (*Model, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s not found", ErrModelUnavailable, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read model %s: %w", path, err)
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode model %s: %w", path, err)
	}
	switch {
	case m.Kind != kind:
		return nil, fmt.Errorf("model %s has kind %q, want %q", path, m.Kind, kind)
	case m.Version != ModelVersion:
		return nil, fmt.Errorf("model %s has version %d, want %d", path, m.Version, ModelVersion)
	case m.Forest == nil || len(m.Forest.Trees) == 0:
		return nil, fmt.Errorf("model %s has no trees", path)
	}
	return &m, nil
}

// LoadSuccessModel loads the date success classifier.
func LoadSuccessModel(path string) (*Model, error) { return LoadModel(path, KindSuccess) }

// LoadPriceModel loads the price regressor.
func LoadPriceModel(path string) (*Model, error) { return LoadModel(path, KindPrice) }
