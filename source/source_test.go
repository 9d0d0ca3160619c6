package source

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/minhbau/ember/gas"
	"github.com/minhbau/ember/types"
)

func oneStepGas(t *testing.T) *gas.IdealGasMixture {
	m, err := gas.ParseMechanism([]byte(`
name: one-step
species:
  - {name: F, molecularWeight: 16, cp: 1400}
  - {name: O, molecularWeight: 32, cp: 1100}
  - {name: P, molecularWeight: 48, cp: 1300, hf: -6.0e8}
  - {name: N2, molecularWeight: 28, cp: 1100}
reactions:
  - {equation: "F + O => P", reactants: {F: 1, O: 1}, products: {P: 1}, A: 1.0e9, Ea: 1.2e8}
`))
	require.NoError(t, err)
	g, err := gas.NewIdealGasMixture(m)
	require.NoError(t, err)
	return g
}

var testConfig = Config{
	RelTol:  1.e-8,
	AbsTolU: 1.e-8,
	AbsTolT: 1.e-8,
	AbsTolY: 1.e-13,
}

func massEnthalpy(g *gas.IdealGasMixture, p Point) (h float64) {
	var (
		hk = make([]float64, len(p.Y))
	)
	if err := g.SetStateMass(p.Y, p.T); err != nil {
		panic(err)
	}
	g.Enthalpies(hk)
	for k, w := range g.MolecularWeights() {
		h += p.Y[k] * hk[k] / w
	}
	return
}

func TestFixedPoint(t *testing.T) {
	var (
		g   = oneStepGas(t)
		Y   = []float64{0, 0.2, 0, 0.8}
		cfg = testConfig
	)
	require.NoError(t, g.SetStateMass(Y, 600))
	cfg.Strain = Strain{A: 100, RhoLeft: g.Density()}
	points := []Point{{J: 0, U: 100, T: 600, Y: append([]float64(nil), Y...)}}
	require.NoError(t, EvaluateAll(context.Background(), g, points, cfg, 0))
	assert.InDelta(t, 0, points[0].DUdt, 1.e-9)
	assert.Equal(t, 0., points[0].DTdt)
	for _, d := range points[0].DYdt {
		assert.Equal(t, 0., d)
	}
	require.NoError(t, IntegrateAll(context.Background(), g, points, cfg, 0, 1.e-3))
	assert.InDelta(t, 100, points[0].U, 1.e-6)
	assert.Equal(t, 600., points[0].T)
}

func TestAdiabaticReaction(t *testing.T) {
	var (
		g      = oneStepGas(t)
		cfg    = testConfig
		points = make([]Point, 6)
	)
	for i := range points {
		points[i] = Point{
			J: i,
			U: 0,
			T: 1500 + 20*float64(i),
			Y: []float64{0.05, 0.2, 0.05, 0.7},
		}
	}
	h0 := make([]float64, len(points))
	for i, p := range points {
		h0[i] = massEnthalpy(g, p)
	}
	cfg.ProcLimit = 3
	require.NoError(t, IntegrateAll(context.Background(), g, points, cfg, 0, 1.e-3))
	for i, p := range points {
		var sum float64
		for _, y := range p.Y {
			sum += y
		}
		assert.InDelta(t, 1, sum, 1.e-9)
		assert.Greater(t, p.T, 1500+20*float64(i))
		assert.Less(t, p.Y[0], 0.05)
		assert.Greater(t, p.HeatRelease, 0.)
		assert.Greater(t, p.Steps, 0)
		assert.InDelta(t, h0[i], massEnthalpy(g, p), 1.e-5*math.Abs(h0[i]))
	}
	// the same result serially
	serial := make([]Point, len(points))
	for i := range serial {
		serial[i] = Point{J: i, T: 1500 + 20*float64(i), Y: []float64{0.05, 0.2, 0.05, 0.7}}
	}
	cfg.ProcLimit = 1
	require.NoError(t, IntegrateAll(context.Background(), g, serial, cfg, 0, 1.e-3))
	for i := range serial {
		assert.Equal(t, points[i].T, serial[i].T)
		assert.Equal(t, points[i].Y, serial[i].Y)
	}
}

func TestPreconditioner(t *testing.T) {
	var (
		g    = oneStepGas(t)
		s    = NewSystem(g)
		n    = s.NEquations()
		y    = []float64{10, 1600, 0.05, 0.2, 0.05, 0.7}
		ydot = make([]float64, n)
		rhs  = []float64{1, -2, 0.1, 0.3, -0.2, 0.05}
		out  = make([]float64, n)
		cj   = 1.e4
	)
	s.Strain = Strain{A: 50, RhoLeft: 1}
	require.NoError(t, s.F(0, y, ydot))
	require.NoError(t, s.PreconditionerSetup(0, y, ydot, cj))
	require.NoError(t, s.PreconditionerSolve(0, y, ydot, rhs, out, cj, 0.1))
	var check mat.VecDense
	check.MulVec(s.jac, mat.NewVecDense(n, out))
	for i := range rhs {
		assert.InDelta(t, rhs[i], check.AtVec(i), 1.e-9)
	}
	// dU/dU = -2U
	assert.InDelta(t, cj+2*y[0], s.jac.At(0, 0), 1.e-4)
	assert.Equal(t, 1, s.Jacobian)

	// with nothing to react and cj = 0 the Newton matrix is singular
	inert := []float64{10, 300, 0, 0, 0, 1}
	require.NoError(t, s.F(0, inert, ydot))
	assert.ErrorIs(t, s.PreconditionerSetup(0, inert, ydot, 0), types.ErrConvergence)
}

func TestSourceErrors(t *testing.T) {
	var (
		g      = oneStepGas(t)
		points = []Point{
			{J: 3, T: 300, Y: []float64{0, 0.2, 0, 0.8}},
			{J: 4, T: -1, Y: []float64{0, 0.2, 0, 0.8}},
		}
	)
	err := IntegrateAll(context.Background(), g, points, testConfig, 0, 1.e-4)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrPropertyEvaluation)
	var se *types.StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 4, se.Index)
	assert.Equal(t, types.OP_Reaction, se.Operator)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, EvaluateAll(ctx, g, points[:1], testConfig, 0), context.Canceled)

	s := NewSystem(g)
	assert.ErrorIs(t, s.F(0, []float64{1, 2}, []float64{0, 0}), types.ErrDimensionMismatch)
}
