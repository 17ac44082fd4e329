// Package outcome records what every flow step did, for reporting and for
// retraining the advisor models.
package outcome

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxErrorLength bounds the error text stored with a step.
const MaxErrorLength = 200

// StepRecord is one attempted step of a flow.
type StepRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	RunID        string    `json:"run_id"`
	StepName     string    `json:"step_name"`
	ActionType   string    `json:"action_type"`
	Selector     string    `json:"selector"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error_message,omitempty"`
	DurationMS   int64     `json:"duration_ms"`
	Context      string    `json:"context,omitempty"`
}

// PriceObservation is a fare found by a completed flow.
type PriceObservation struct {
	Timestamp     time.Time `json:"timestamp"`
	DepartureDate string    `json:"dep_date"`
	ReturnDate    string    `json:"ret_date"`
	Price         float64   `json:"price"`
}

// Sink durably stores records. Implementations must be safe for concurrent use.
type Sink interface {
	WriteStep(ctx context.Context, rec StepRecord) error
	WritePrice(ctx context.Context, obs PriceObservation) error
	Close() error
}

// Recorder is the per-flow front of one or more sinks. Sink failures are
// logged and never returned to the flow.
type Recorder struct {
	runID  string
	sinks  []Sink
	logger *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	steps []StepRecord
}

// NewRecorder creates a recorder with a fresh run identifier.
func NewRecorder(logger *zap.Logger, sinks ...Sink) *Recorder {
	return &Recorder{
		runID:  NewRunID(),
		sinks:  sinks,
		logger: logger.Named("outcome"),
		now:    time.Now,
	}
}

// NewRunID returns a short random run identifier.
func NewRunID() string {
	return uuid.NewString()[:8]
}

// RunID identifies the flow this recorder belongs to.
func (r *Recorder) RunID() string { return r.runID }

// Begin starts timing a step. Calling the returned func records the step as
// failed when err is non-nil.
func (r *Recorder) Begin(ctx context.Context, step, action, target string) func(err error, note string) {
	start := r.now()
	return func(err error, note string) {
		rec := StepRecord{
			Timestamp:  start,
			StepName:   step,
			ActionType: action,
			Selector:   target,
			Success:    err == nil,
			DurationMS: r.now().Sub(start).Milliseconds(),
			Context:    note,
		}
		if err != nil {
			rec.ErrorMessage = err.Error()
		}
		r.Step(ctx, rec)
	}
}

// Step records a finished step.
func (r *Recorder) Step(ctx context.Context, rec StepRecord) {
	rec.RunID = r.runID
	if rec.Timestamp.IsZero() {
		rec.Timestamp = r.now()
	}
	rec.ErrorMessage = TruncateError(rec.ErrorMessage)

	r.mu.Lock()
	r.steps = append(r.steps, rec)
	r.mu.Unlock()

	for _, s := range r.sinks {
		if err := s.WriteStep(ctx, rec); err != nil {
			r.logger.Warn("Failed to record step.", zap.String("step", rec.StepName), zap.Error(err))
		}
	}
	r.logger.Debug("Step recorded.",
		zap.String("run_id", r.runID),
		zap.String("step", rec.StepName),
		zap.Bool("success", rec.Success),
		zap.Int64("duration_ms", rec.DurationMS))
}

// Price records a fare observation.
func (r *Recorder) Price(ctx context.Context, obs PriceObservation) {
	if obs.Timestamp.IsZero() {
		obs.Timestamp = r.now()
	}
	for _, s := range r.sinks {
		if err := s.WritePrice(ctx, obs); err != nil {
			r.logger.Warn("Failed to record price observation.", zap.Float64("price", obs.Price), zap.Error(err))
		}
	}
}

// Steps returns a copy of every step recorded so far.
func (r *Recorder) Steps() []StepRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StepRecord(nil), r.steps...)
}

// Close closes every sink and returns their combined errors.
func (r *Recorder) Close() error {
	var errs []error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// TruncateError flattens newlines and caps the text at MaxErrorLength runes.
func TruncateError(msg string) string {
	msg = strings.ReplaceAll(msg, "\r", "")
	msg = strings.ReplaceAll(msg, "\n", " ")
	if r := []rune(msg); len(r) > MaxErrorLength {
		return string(r[:MaxErrorLength])
	}
	return msg
}

// Shared wraps a sink so that closing it through one recorder leaves it open
// for the others. The owner closes the underlying sink.
func Shared(s Sink) Sink { return sharedSink{s} }

type sharedSink struct{ Sink }

func (sharedSink) Close() error { return nil }
