// Package risk estimates how likely each step of a booking flow is to fail,
// from the step history that flows record.
package risk

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/xkilldash9x/fareprobe/internal/outcome"
)

// Level buckets a failure probability.
type Level string

const (
	Low      Level = "LOW"
	Moderate Level = "MODERATE"
	High     Level = "HIGH"
)

// Failure probabilities above these are MODERATE and HIGH.
const (
	ModerateThreshold = 0.1
	HighThreshold     = 0.3
)

// LevelFor buckets a failure probability.
func LevelFor(p float64) Level {
	switch {
	case p > HighThreshold:
		return High
	case p > ModerateThreshold:
		return Moderate
	default:
		return Low
	}
}

// Key identifies a step by what it does and where.
type Key struct {
	Step   string `json:"step"`
	Action string `json:"action"`
	Target string `json:"target"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Step, k.Action, k.Target)
}

// KeyOf returns the key of a recorded step.
func KeyOf(rec outcome.StepRecord) Key {
	return Key{Step: rec.StepName, Action: rec.ActionType, Target: rec.Selector}
}

// Basis names the history an assessment was drawn from.
type Basis string

const (
	BasisKey    Basis = "step+target"
	BasisStep   Basis = "step"
	BasisGlobal Basis = "global"
	BasisPrior  Basis = "prior"
)

// Assessment is the predicted failure risk of one step.
type Assessment struct {
	Key                Key     `json:"key"`
	FailureProbability float64 `json:"failure_probability"`
	Level              Level   `json:"level"`
	Basis              Basis   `json:"basis"`
	Samples            int     `json:"samples"`
	Recommendation     string  `json:"recommendation,omitempty"`
}

type tally struct {
	runs     int
	failures int
}

func (t *tally) add(success bool) {
	t.runs++
	if !success {
		t.failures++
	}
}

// rate is the Laplace-smoothed failure rate.
func (t tally) rate() float64 {
	return float64(t.failures+1) / float64(t.runs+2)
}

// Model holds failure tallies per key, per step name and overall.
type Model struct {
	byKey  map[Key]*tally
	byStep map[string]*tally
	global tally
}

// Fit tallies step outcomes from history.
func Fit(records []outcome.StepRecord) *Model {
	m := &Model{byKey: map[Key]*tally{}, byStep: map[string]*tally{}}
	for _, rec := range records {
		k := KeyOf(rec)
		if m.byKey[k] == nil {
			m.byKey[k] = &tally{}
		}
		if m.byStep[k.Step] == nil {
			m.byStep[k.Step] = &tally{}
		}
		m.byKey[k].add(rec.Success)
		m.byStep[k.Step].add(rec.Success)
		m.global.add(rec.Success)
	}
	return m
}

// Samples is the number of step records the model was fit on.
func (m *Model) Samples() int { return m.global.runs }

// Keys lists every key seen in history, sorted.
func (m *Model) Keys() []Key {
	keys := make([]Key, 0, len(m.byKey))
	for k := range m.byKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// Assess predicts the failure probability of k from the most specific
// history available: the exact key, then the step name, then every step.
// With no history at all it returns an even prior.
func (m *Model) Assess(k Key) Assessment {
	a := Assessment{Key: k}
	var t tally
	switch {
	case m.byKey[k] != nil:
		t, a.Basis = *m.byKey[k], BasisKey
	case m.byStep[k.Step] != nil:
		t, a.Basis = *m.byStep[k.Step], BasisStep
	case m.global.runs > 0:
		t, a.Basis = m.global, BasisGlobal
	default:
		a.Basis = BasisPrior
	}
	a.Samples = t.runs
	a.FailureProbability = t.rate()
	a.Level = LevelFor(a.FailureProbability)
	a.Recommendation = recommendation(a.Level)
	return a
}

// AssessAll assesses keys in order.
func (m *Model) AssessAll(keys []Key) []Assessment {
	out := make([]Assessment, len(keys))
	for i, k := range keys {
		out[i] = m.Assess(k)
	}
	return out
}

func recommendation(l Level) string {
	switch l {
	case High:
		return "Add settle time, a fallback strategy or an alternative locator."
	case Moderate:
		return "Watch this step; consider a fallback locator."
	}
	return ""
}

// Baseline is the success rate a step is assumed to have before history exists.
type Baseline struct {
	Key         Key
	SuccessRate float64
}

// SyntheticHistory draws runs simulated passes over baselines. Failed steps
// take about 30s, as timeouts do, and successful ones about 1s.
func SyntheticHistory(rng *rand.Rand, runs int, baselines []Baseline) []outcome.StepRecord {
	start := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]outcome.StepRecord, 0, runs*len(baselines))
	for run := 0; run < runs; run++ {
		runID := fmt.Sprintf("syn%05d", run)
		for _, b := range baselines {
			success := rng.Float64() < b.SuccessRate
			mean, spread := 1000.0, 200.0
			if !success {
				mean, spread = 30000, 1000
			}
			duration := int64(mean + rng.NormFloat64()*spread)
			if duration < 0 {
				duration = 0
			}
			out = append(out, outcome.StepRecord{
				Timestamp:  start.Add(time.Duration(len(out)) * time.Second),
				RunID:      runID,
				StepName:   b.Key.Step,
				ActionType: b.Key.Action,
				Selector:   b.Key.Target,
				Success:    success,
				DurationMS: duration,
				Context:    "synthetic",
			})
		}
	}
	return out
}
