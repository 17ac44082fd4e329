package outcome

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/beevik/etree"
)

// JUnitSink buffers steps and writes them as one JUnit testsuite on Close,
// so a CI system can show each flow step as a test case.
type JUnitSink struct {
	path  string
	suite string

	mu     sync.Mutex
	steps  []StepRecord
	prices []PriceObservation
}

// NewJUnitSink creates a sink writing the report to path.
func NewJUnitSink(path, suite string) *JUnitSink {
	return &JUnitSink{path: path, suite: suite}
}

func (s *JUnitSink) WriteStep(_ context.Context, rec StepRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, rec)
	return nil
}

func (s *JUnitSink) WritePrice(_ context.Context, obs PriceObservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices = append(s.prices, obs)
	return nil
}

// Close renders the buffered steps.
func (s *JUnitSink) Close() error {
	s.mu.Lock()
	doc := s.document()
	s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := doc.WriteToFile(s.path); err != nil {
		return fmt.Errorf("failed to write junit report %s: %w", s.path, err)
	}
	return nil
}

func (s *JUnitSink) document() *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	suite := doc.CreateElement("testsuite")
	suite.CreateAttr("name", s.suite)
	suite.CreateAttr("tests", strconv.Itoa(len(s.steps)))

	if len(s.prices) > 0 {
		props := suite.CreateElement("properties")
		for i, obs := range s.prices {
			p := props.CreateElement("property")
			p.CreateAttr("name", fmt.Sprintf("price.%d", i))
			p.CreateAttr("value", fmt.Sprintf("%s %s %.2f", obs.DepartureDate, obs.ReturnDate, obs.Price))
		}
	}

	var failures int
	var totalMS int64
	for _, rec := range s.steps {
		tc := suite.CreateElement("testcase")
		tc.CreateAttr("classname", s.suite+"."+rec.RunID)
		tc.CreateAttr("name", rec.StepName)
		tc.CreateAttr("time", seconds(rec.DurationMS))
		totalMS += rec.DurationMS

		if !rec.Success {
			failures++
			f := tc.CreateElement("failure")
			f.CreateAttr("type", rec.ActionType)
			f.CreateAttr("message", rec.ErrorMessage)
			f.SetText(rec.Selector)
		}
		if rec.Context != "" {
			tc.CreateElement("system-out").SetText(rec.Context)
		}
	}
	suite.CreateAttr("failures", strconv.Itoa(failures))
	suite.CreateAttr("time", seconds(totalMS))

	doc.Indent(2)
	return doc
}

func seconds(ms int64) string {
	return strconv.FormatFloat(float64(ms)/1000, 'f', 3, 64)
}
