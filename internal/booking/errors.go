package booking

import (
	"errors"
	"fmt"

	"github.com/xkilldash9x/fareprobe/internal/artifact"
)

// Terminal failure causes.
var (
	ErrNavigation      = errors.New("navigation failed")
	ErrPriceNotFound   = errors.New("price not found")
	ErrPriceOutOfRange = errors.New("price outside sanity range")
	ErrPriceUnexpected = errors.New("price outside expected range")
)

// FlowError is a terminal flow failure. Diagnostics were captured before it
// was returned.
type FlowError struct {
	RunID       string
	Reason      string
	Err         error
	Diagnostics artifact.Capture
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("flow %s failed: %s: %v", e.RunID, e.Reason, e.Err)
}

func (e *FlowError) Unwrap() error { return e.Err }
