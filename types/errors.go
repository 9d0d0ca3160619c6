package types

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch is returned when a state or derivative array does
	// not match the current grid size, or the grid changed since the last
	// resize.
	ErrDimensionMismatch = errors.New("dimension mismatch between state and grid")

	// ErrConvergence is returned when a sub-integrator cannot reach the
	// requested time within its retry budget.
	ErrConvergence = errors.New("integrator failed to converge")

	// ErrInvalidBoundaryCondition is returned when a requested boundary
	// condition transition is incompatible with the supplied profile.
	ErrInvalidBoundaryCondition = errors.New("invalid boundary condition transition")

	// ErrPropertyEvaluation is returned by the gas evaluator for
	// non-physical states.
	ErrPropertyEvaluation = errors.New("property evaluation failed")
)

// StepError records which operator failed during a split step.
type StepError struct {
	Operator OperatorKind
	Index    int // species or grid point index, -1 when not applicable
	Time     float64
	Err      error
}

func (e *StepError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s[%d] at t = %g: %v", e.Operator, e.Index, e.Time, e.Err)
	}
	return fmt.Sprintf("%s at t = %g: %v", e.Operator, e.Time, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
