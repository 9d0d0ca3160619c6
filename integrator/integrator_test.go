package integrator

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhbau/ember/types"
	"github.com/minhbau/ember/utils"
)

type decay struct {
	k []float64
}

func (d *decay) F(t float64, y, ydot []float64) error {
	for i := range y {
		ydot[i] = -d.k[i] * y[i]
	}
	return nil
}

// heat is a Dirichlet heat equation on a uniform grid, tridiagonal Jacobian.
type heat struct {
	n     int
	coeff float64
	band  *utils.BandMatrix
}

func (s *heat) F(t float64, y, ydot []float64) error {
	for i := 0; i < s.n; i++ {
		var left, right float64
		if i > 0 {
			left = y[i-1]
		}
		if i < s.n-1 {
			right = y[i+1]
		}
		ydot[i] = s.coeff * (left - 2*y[i] + right)
	}
	return nil
}

type preconditionedHeat struct {
	heat
	setups int
}

func (s *preconditionedHeat) PreconditionerSetup(t float64, y, ydot []float64, cj float64) error {
	s.setups++
	if s.band == nil {
		s.band = utils.NewBandMatrix(s.n, 1, 1)
	}
	s.band.Zero()
	for i := 0; i < s.n; i++ {
		s.band.Set(i, i, cj+2*s.coeff)
		if i > 0 {
			s.band.Set(i, i-1, -s.coeff)
		}
		if i < s.n-1 {
			s.band.Set(i, i+1, -s.coeff)
		}
	}
	return s.band.Factorize()
}

func (s *preconditionedHeat) PreconditionerSolve(t float64, y, ydot, rhs, out []float64, cj, delta float64) error {
	return s.band.Solve(rhs, out)
}

// shortStepHeat has a singular Newton matrix for steps longer than 1/cjMin.
type shortStepHeat struct {
	preconditionedHeat
	cjMin float64
}

func (s *shortStepHeat) PreconditionerSetup(t float64, y, ydot []float64, cj float64) error {
	if cj < s.cjMin {
		return fmt.Errorf("%w: singular at cj = %g", types.ErrConvergence, cj)
	}
	return s.preconditionedHeat.PreconditionerSetup(t, y, ydot, cj)
}

type failing struct{}

func (failing) F(t float64, y, ydot []float64) error {
	return types.ErrPropertyEvaluation
}

func TestExplicit(t *testing.T) {
	{ // Exponential decay matches the exact solution
		sys := &decay{k: []float64{1, 2, 3}}
		ex := NewExplicit(sys)
		ex.SetTolerances(1.e-8, []float64{1.e-12})
		ex.SetState(0, []float64{1, 1, 1})
		require.NoError(t, ex.IntegrateToTime(1))
		assert.Equal(t, 1., ex.T())
		for i, k := range sys.k {
			assert.InDelta(t, math.Exp(-k), ex.Y()[i], 1.e-7)
		}
		assert.Greater(t, ex.NumSteps(), 1)
	}
	{ // Single steps never pass the target time
		ex := NewExplicit(&decay{k: []float64{1}})
		ex.SetTolerances(1.e-6, []float64{1.e-10})
		ex.SetState(0, []float64{1})
		var steps int
		for ex.T() < 0.5 {
			require.NoError(t, ex.IntegrateOneStep(0.5))
			assert.LessOrEqual(t, ex.T(), 0.5)
			steps++
		}
		assert.Equal(t, steps, ex.NumSteps())
		assert.InDelta(t, math.Exp(-0.5), ex.Y()[0], 1.e-5)
	}
	{ // A fixed point is reached in one step
		ex := NewExplicit(&decay{k: []float64{1, 1}})
		ex.SetTolerances(1.e-6, []float64{1.e-10})
		ex.SetState(0, []float64{0, 0})
		require.NoError(t, ex.IntegrateToTime(10))
		assert.Equal(t, 1, ex.NumSteps())
		assert.Equal(t, []float64{0, 0}, ex.Y())
	}
	{ // Callback errors propagate
		ex := NewExplicit(failing{})
		ex.SetTolerances(1.e-6, []float64{1.e-10})
		ex.SetState(0, []float64{1})
		err := ex.IntegrateToTime(1)
		assert.True(t, errors.Is(err, types.ErrPropertyEvaluation))
	}
	{ // Target time behind the state is rejected
		ex := NewExplicit(&decay{k: []float64{1}})
		ex.SetTolerances(1.e-6, []float64{1.e-10})
		ex.SetState(1, []float64{1})
		assert.Error(t, ex.IntegrateToTime(0.5))
	}
}

func TestImplicit(t *testing.T) {
	{ // Stiff decay is stable and accurate
		sys := &decay{k: []float64{1, 1.e4}}
		im := NewImplicit(sys, 0, 0)
		im.SetTolerances(1.e-5, []float64{1.e-10})
		im.SetState(0, []float64{1, 1})
		require.NoError(t, im.IntegrateToTime(1))
		assert.InDelta(t, math.Exp(-1), im.Y()[0], 1.e-3)
		assert.InDelta(t, 0, im.Y()[1], 1.e-6)
	}
	{ // Preconditioner callbacks and the banded fallback agree
		n := 20
		y0 := make([]float64, n)
		for i := range y0 {
			y0[i] = math.Sin(math.Pi * float64(i+1) / float64(n+1))
		}
		pre := &preconditionedHeat{heat: heat{n: n, coeff: 400}}
		im1 := NewImplicit(pre, 1, 1)
		im1.SetTolerances(1.e-6, []float64{1.e-10})
		im1.SetState(0, y0)
		require.NoError(t, im1.IntegrateToTime(0.01))
		assert.Greater(t, pre.setups, 0)

		im2 := NewImplicit(&heat{n: n, coeff: 400}, 1, 1)
		im2.SetTolerances(1.e-6, []float64{1.e-10})
		im2.SetState(0, y0)
		require.NoError(t, im2.IntegrateToTime(0.01))

		// exact decay rate of the lowest discrete mode
		lambda := 400 * 4 * math.Pow(math.Sin(math.Pi/(2*float64(n+1))), 2)
		for i := range y0 {
			exact := y0[i] * math.Exp(-lambda*0.01)
			assert.InDelta(t, exact, im1.Y()[i], 5.e-3)
			assert.InDelta(t, im1.Y()[i], im2.Y()[i], 1.e-4)
		}
	}
	{ // A singular Newton matrix shortens the step instead of failing
		n := 10
		y0 := make([]float64, n)
		for i := range y0 {
			y0[i] = math.Sin(math.Pi * float64(i+1) / float64(n+1))
		}
		sys := &shortStepHeat{preconditionedHeat: preconditionedHeat{heat: heat{n: n, coeff: 100}}, cjMin: 1.e5}
		im := NewImplicit(sys, 1, 1)
		im.SetTolerances(1.e-6, []float64{1.e-10})
		im.SetState(0, y0)
		require.NoError(t, im.IntegrateToTime(0.01))
		assert.Greater(t, im.Stats.Rejected, 0)
		assert.LessOrEqual(t, im.Stats.LastStep, 1.e-5*(1+1.e-12))
		lambda := 100 * 4 * math.Pow(math.Sin(math.Pi/(2*float64(n+1))), 2)
		for i := range y0 {
			assert.InDelta(t, y0[i]*math.Exp(-lambda*0.01), im.Y()[i], 5.e-3)
		}
	}
	{ // Single steps stop at the target
		im := NewImplicit(&decay{k: []float64{1}}, 0, 0)
		im.SetTolerances(1.e-4, []float64{1.e-10})
		im.SetState(0, []float64{1})
		require.NoError(t, im.IntegrateOneStep(1.e-3))
		assert.LessOrEqual(t, im.T(), 1.e-3)
		assert.Equal(t, 1, im.NumSteps())
	}
	{ // Step limit reports non-convergence
		im := NewImplicit(&decay{k: []float64{1}}, 0, 0)
		im.SetTolerances(1.e-10, []float64{1.e-14})
		im.MaxSteps = 3
		im.SetState(0, []float64{1})
		assert.ErrorIs(t, im.IntegrateToTime(100), types.ErrConvergence)
	}
}

func TestNumericalJacobian(t *testing.T) {
	var (
		n   = 7
		sys = &heat{n: n, coeff: 3}
		y   = make([]float64, n)
		f0  = make([]float64, n)
	)
	for i := range y {
		y[i] = float64(i * i)
	}
	require.NoError(t, sys.F(0, y, f0))
	J, err := NumericalJacobian(sys, 0, y, f0, 1, 1)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var expected float64
			switch {
			case i == j:
				expected = -6
			case i-j == 1 || j-i == 1:
				expected = 3
			}
			assert.InDelta(t, expected, J.At(i, j), 1.e-5)
		}
	}
	kl, ku := J.Bandwidth()
	assert.Equal(t, 1, kl)
	assert.Equal(t, 1, ku)
}
