package scenario

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/xkilldash9x/fareprobe/internal/booking"
)

// Env is what a check expression can see of a finished flow.
type Env struct {
	Found          bool    `expr:"found"`
	Price          float64 `expr:"price"`
	HasEstimate    bool    `expr:"has_estimate"`
	Estimate       float64 `expr:"estimate"`
	WithinSanity   bool    `expr:"within_sanity"`
	WithinExpected bool    `expr:"within_expected"`
	Strategy       string  `expr:"strategy"`
	LeadDays       int     `expr:"lead_days"`
	Substituted    bool    `expr:"substituted"`
	DatesDegraded  bool    `expr:"dates_degraded"`
	Failed         bool    `expr:"failed"`
}

// EnvFor builds the check environment of res.
func EnvFor(res *booking.Result) Env {
	if res == nil {
		return Env{Failed: true}
	}
	o := res.Outcome
	env := Env{
		Found:          o.Found(),
		WithinSanity:   o.WithinSanity,
		WithinExpected: o.WithinExpected,
		Strategy:       o.Strategy,
		Failed:         res.Error != "",
	}
	if o.Price != nil {
		env.Price = *o.Price
	}
	if o.Estimate != nil {
		env.HasEstimate = true
		env.Estimate = *o.Estimate
	}
	if fc := res.Context; fc != nil {
		env.LeadDays = fc.DepartureResolution.LeadDays
		env.Substituted = fc.DepartureResolution.Changed()
		env.DatesDegraded = fc.DepartureSelection.Degraded()
		if fc.ReturnSelection != nil && fc.ReturnSelection.Degraded() {
			env.DatesDegraded = true
		}
	}
	return env
}

// Check is a compiled boolean expression over Env.
type Check struct {
	Source  string
	program *vm.Program
}

// CompileCheck compiles src, which must evaluate to a bool.
func CompileCheck(src string) (Check, error) {
	program, err := expr.Compile(src, expr.Env(Env{}), expr.AsBool())
	if err != nil {
		return Check{}, fmt.Errorf("failed to compile check %q: %w", src, err)
	}
	return Check{Source: src, program: program}, nil
}

// Eval runs the check against env.
func (c Check) Eval(env Env) (bool, error) {
	out, err := expr.Run(c.program, env)
	if err != nil {
		return false, fmt.Errorf("check %q: %w", c.Source, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

// CheckResult is the outcome of one check. Checks are advisory and never
// change a flow's verdict.
type CheckResult struct {
	Check  string `json:"check"`
	Passed bool   `json:"passed"`
	Error  string `json:"error,omitempty"`
}

func evaluate(checks []Check, env Env) []CheckResult {
	out := make([]CheckResult, 0, len(checks))
	for _, c := range checks {
		ok, err := c.Eval(env)
		r := CheckResult{Check: c.Source, Passed: ok}
		if err != nil {
			r.Error = err.Error()
		}
		out = append(out, r)
	}
	return out
}
