package diffusion

import (
	"errors"
	"fmt"

	"github.com/mirage-ml/mirage/internal/tensor"
)

// State-dict loading errors, wrapped with the parameter name.
var (
	ErrMissingParameter = errors.New("missing parameter in state dict")
	ErrUnknownParameter = errors.New("unknown parameter in state dict")
)

// ShapeMismatchError reports an input whose shape differs from what a
// component was configured for. Internal layer wiring panics on bad shapes;
// this error covers the model boundary, where callers hand in frames,
// noise levels, and action windows.
type ShapeMismatchError struct {
	Component string       // component that rejected the input
	Want      tensor.Shape // expected shape (nil when only Details applies)
	Got       tensor.Shape // offered shape
	Details   string       // additional context
}

func (e *ShapeMismatchError) Error() string {
	msg := fmt.Sprintf("%s: shape mismatch", e.Component)
	if e.Want != nil || e.Got != nil {
		msg = fmt.Sprintf("%s: got %v, want %v", msg, e.Got, e.Want)
	}
	if e.Details != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Details)
	}
	return msg
}

// InvalidScheduleError reports noise-schedule parameters that cannot
// produce a usable schedule.
type InvalidScheduleError struct {
	Param  string // offending parameter
	Reason string
}

func (e *InvalidScheduleError) Error() string {
	return fmt.Sprintf("invalid noise schedule: %s: %s", e.Param, e.Reason)
}

// NumericalInstabilityError reports non-finite values appearing in a
// computation that must stay finite, such as the recovered frame estimate
// during sampling.
type NumericalInstabilityError struct {
	Stage   string // where the values were detected
	Details string
}

func (e *NumericalInstabilityError) Error() string {
	return fmt.Sprintf("numerical instability in %s: %s", e.Stage, e.Details)
}

// ResourceExhaustionError reports a failed allocation. The sampler surfaces
// it with the partial result produced so far.
type ResourceExhaustionError struct {
	Resource string // what was being allocated
	Err      error  // underlying allocator error
}

func (e *ResourceExhaustionError) Error() string {
	return fmt.Sprintf("resource exhausted allocating %s: %v", e.Resource, e.Err)
}

func (e *ResourceExhaustionError) Unwrap() error {
	return e.Err
}
