package integrator

import (
	"fmt"
	"math"

	"github.com/minhbau/ember/types"
)

// System is the right hand side callback of y' = f(t, y).
type System interface {
	F(t float64, y, ydot []float64) error
}

// Preconditioned systems assemble and apply their own Newton matrix
// M = cj*I - df/dy. PreconditionerSolve writes M^-1 * rhs into out; delta is
// the tolerance the Newton iteration needs from the solve.
type Preconditioned interface {
	System
	PreconditionerSetup(t float64, y, ydot []float64, cj float64) error
	PreconditionerSolve(t float64, y, ydot, rhs, out []float64, cj, delta float64) error
}

type Integrator interface {
	SetTolerances(reltol float64, abstol []float64)
	SetState(t0 float64, y0 []float64)
	IntegrateToTime(tf float64) error
	// IntegrateOneStep takes a single accepted step, never past tf.
	IntegrateOneStep(tf float64) error
	NumSteps() int
	Y() []float64
	T() float64
}

type Statistics struct {
	Steps, Rejected, Evaluations, Setups int
	LastStep                             float64
}

// stepper advances the state from t by h. It reports whether the step was
// accepted and the step size to try next.
type stepper func(h float64) (accepted bool, hNext float64, err error)

// core carries the state and step control shared by both integrators.
type core struct {
	sys     System
	n       int
	t       float64
	y, ydot []float64
	h       float64

	reltol float64
	abstol []float64

	MaxStep  float64
	MaxSteps int
	Stats    Statistics

	ydotValid bool
}

func (c *core) SetTolerances(reltol float64, abstol []float64) {
	if reltol <= 0 {
		panic(fmt.Errorf("relative tolerance must be positive, have %g", reltol))
	}
	c.reltol = reltol
	c.abstol = make([]float64, len(abstol))
	copy(c.abstol, abstol)
}

func (c *core) SetState(t0 float64, y0 []float64) {
	if len(y0) != c.n {
		c.n = len(y0)
		c.y = make([]float64, c.n)
		c.ydot = make([]float64, c.n)
	}
	copy(c.y, y0)
	c.t = t0
	c.h = 0
	c.ydotValid = false
}

func (c *core) NumSteps() int { return c.Stats.Steps }
func (c *core) Y() []float64  { return c.y }
func (c *core) T() float64    { return c.t }

func (c *core) atol(i int) float64 {
	switch len(c.abstol) {
	case 0:
		return 1.e-12
	case 1:
		return c.abstol[0]
	default:
		return c.abstol[i]
	}
}

// wrmsNorm is the weighted root mean square norm of v with weights built from
// the reference state yRef.
func (c *core) wrmsNorm(v, yRef []float64) (norm float64) {
	if c.n == 0 {
		return 0
	}
	for i, vi := range v {
		w := c.reltol*math.Abs(yRef[i]) + c.atol(i)
		norm += (vi / w) * (vi / w)
	}
	return math.Sqrt(norm / float64(c.n))
}

func (c *core) eval(t float64, y, ydot []float64) (err error) {
	c.Stats.Evaluations++
	return c.sys.F(t, y, ydot)
}

func (c *core) checkReady() (err error) {
	if c.reltol == 0 {
		return fmt.Errorf("integrator tolerances not set")
	}
	if len(c.abstol) > 1 && len(c.abstol) != c.n {
		return fmt.Errorf("%w: %d absolute tolerances for %d unknowns",
			types.ErrDimensionMismatch, len(c.abstol), c.n)
	}
	return
}

func (c *core) initialStep(span, order float64) (h float64) {
	d := c.wrmsNorm(c.ydot, c.y)
	h = span
	if d > 0 {
		h = math.Min(span, math.Pow(0.5, order)/d)
	}
	if c.MaxStep > 0 {
		h = math.Min(h, c.MaxStep)
	}
	return
}

func (c *core) integrate(tf float64, oneStep bool, order float64, step stepper) (err error) {
	if err = c.checkReady(); err != nil {
		return
	}
	if tf < c.t {
		return fmt.Errorf("target time %g is before current time %g", tf, c.t)
	}
	if tf == c.t || c.n == 0 {
		c.t = tf
		return
	}
	// the system configuration may have changed since the last call
	if err = c.eval(c.t, c.y, c.ydot); err != nil {
		return
	}
	c.ydotValid = true
	if c.h <= 0 {
		c.h = c.initialStep(tf-c.t, order)
	}
	for nTry := 0; c.t < tf; nTry++ {
		if c.MaxSteps > 0 && nTry >= c.MaxSteps {
			return fmt.Errorf("%w: %d step attempts without reaching t=%g (t=%g)",
				types.ErrConvergence, nTry, tf, c.t)
		}
		var (
			h         = c.h
			remaining = tf - c.t
			last      bool
		)
		if h >= remaining || remaining-h < 1.e-10*remaining {
			h, last = remaining, true
		}
		if h <= 1.e-14*math.Max(1, math.Abs(c.t)) {
			return fmt.Errorf("%w: step size %g too small at t=%g",
				types.ErrConvergence, h, c.t)
		}
		var (
			accepted bool
			hNext    float64
		)
		if accepted, hNext, err = step(h); err != nil {
			return
		}
		if c.MaxStep > 0 {
			hNext = math.Min(hNext, c.MaxStep)
		}
		c.h = hNext
		if !accepted {
			c.Stats.Rejected++
			continue
		}
		if last {
			c.t = tf
		} else {
			c.t += h
		}
		c.Stats.Steps++
		c.Stats.LastStep = h
		if oneStep {
			return
		}
	}
	return
}
