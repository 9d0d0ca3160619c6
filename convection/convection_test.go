package convection

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhbau/ember/Grid1D"
	"github.com/minhbau/ember/gas"
	"github.com/minhbau/ember/types"
)

func inertGas(t *testing.T) gas.Evaluator {
	m, err := gas.ParseMechanism([]byte(`
name: inert
species:
  - {name: O2, molecularWeight: 32, cp: 1000}
  - {name: N2, molecularWeight: 28, cp: 1100}
`))
	require.NoError(t, err)
	g, err := gas.NewIdealGasMixture(m)
	require.NoError(t, err)
	return g
}

var testTolerances = Tolerances{
	RelTol:  1.e-8,
	AbsTolU: 1.e-8,
	AbsTolT: 1.e-8,
	AbsTolW: 1.e-10,
	AbsTolY: 1.e-12,
}

// counterflow returns a split system on grid with a stagnation point at the
// middle of the domain and a non-uniform state.
func counterflow(t *testing.T, grid *Grid1D.Grid, nPointsSpec []int) (ss *SplitSystem, U, T []float64, Y [][]float64) {
	var (
		n    = grid.NPoints()
		xMid = 0.5 * (grid.X[0] + grid.X[n-1])
		q    = make([]float64, n)
	)
	ss = NewSplitSystem()
	ss.SetGrid(grid)
	ss.SetGas(inertGas(t))
	ss.SetTolerances(testTolerances)
	ss.Resize(n, nPointsSpec, len(nPointsSpec))
	U, T = make([]float64, n), make([]float64, n)
	Y = [][]float64{make([]float64, n), make([]float64, n)}
	for j, x := range grid.X {
		q[j] = xMid - x
		U[j] = 100
		T[j] = 300 + 1000*x/grid.X[n-1]
		Y[0][j] = 0.5 + 0.3*math.Sin(40*x)
		Y[1][j] = 1 - Y[0][j]
	}
	require.NoError(t, ss.UTW.UpdateContinuityBoundaryCondition(q, ContinuityZero))
	ss.SetLeftBC(T[0], []float64{Y[0][0], Y[1][0]})
	return
}

func TestContinuityBoundaryCondition(t *testing.T) {
	grid := Grid1D.SimpleGrid(0, 4, 5, 0, Grid1D.FixedValue, Grid1D.FixedValue)
	s := NewUTWSystem(grid, inertGas(t))
	{ // a crossing halfway between two nodes picks the lower index
		q := []float64{-2.5, -1.5, -0.5, 0.5, 1.5}
		require.NoError(t, s.UpdateContinuityBoundaryCondition(q, ContinuityZero))
		assert.Equal(t, ContinuityZero, s.ContinuityBC)
		assert.Equal(t, 2.5, s.XVzero)
		assert.Equal(t, 2, s.JContBC)
	}
	{ // otherwise the nearest node
		q := []float64{-1.2, -0.2, 0.8, 1.8, 2.8}
		require.NoError(t, s.UpdateContinuityBoundaryCondition(q, ContinuityZero))
		assert.InDelta(t, 1.2, s.XVzero, 1.e-14)
		assert.Equal(t, 1, s.JContBC)
	}
	{ // no crossing keeps the previous policy
		q := []float64{1, 2, 3, 4, 5}
		err := s.UpdateContinuityBoundaryCondition(q, ContinuityTemp)
		assert.ErrorIs(t, err, types.ErrInvalidBoundaryCondition)
		assert.Equal(t, ContinuityZero, s.ContinuityBC)
		assert.Equal(t, 1, s.JContBC)
	}
	{ // wrong length
		err := s.UpdateContinuityBoundaryCondition([]float64{1, -1}, ContinuityZero)
		assert.ErrorIs(t, err, types.ErrDimensionMismatch)
	}
	{ // back to the left boundary
		require.NoError(t, s.UpdateContinuityBoundaryCondition(nil, ContinuityLeft))
		assert.Equal(t, 0, s.JContBC)
		assert.Equal(t, 0., s.XVzero)
	}
	{
		bc, err := NewContinuityBC("Temp")
		require.NoError(t, err)
		assert.Equal(t, ContinuityTemp, bc)
		assert.Equal(t, "Temp", bc.String())
		_, err = NewContinuityBC("fixed")
		assert.Error(t, err)
	}
}

func TestUTWContinuity(t *testing.T) {
	var (
		grid = Grid1D.SimpleGrid(0, 0.01, 11, 0, Grid1D.FixedValue, Grid1D.ZeroGradient)
		g    = inertGas(t)
		s    = NewUTWSystem(grid, g)
		n    = grid.NPoints()
		y    = make([]float64, 3*n)
		ydot = make([]float64, 3*n)
	)
	for j := 0; j < n; j++ {
		s.U[j], s.T[j], s.Wmx[j] = 200, 300, 29
	}
	s.Roll(y)
	{ // fixed mass flux at the left boundary, linear decay
		s.RVzero = 0.5
		require.NoError(t, s.F(0, y, ydot))
		rho := g.Pressure() * 29 / (gas.GasConstant * 300)
		for j := 0; j < n; j++ {
			assert.InDelta(t, 0.5-rho*200*grid.X[j], s.V[j], 1.e-12)
		}
		// uniform state is a fixed point of convection
		for i := range ydot {
			assert.Equal(t, 0., ydot[i])
		}
	}
	{ // stagnation point
		q := make([]float64, n)
		for j := range q {
			q[j] = 0.004 - grid.X[j]
		}
		require.NoError(t, s.UpdateContinuityBoundaryCondition(q, ContinuityZero))
		require.NoError(t, s.F(0, y, ydot))
		assert.Equal(t, 4, s.JContBC)
		assert.InDelta(t, 0, s.V[4], 1.e-14)
		assert.Greater(t, s.V[0], 0.)
		assert.Less(t, s.V[n-1], 0.)
	}
	{ // V and rV conversions are mutual inverses
		gc := Grid1D.SimpleGrid(0, 0.01, 11, 1, Grid1D.ControlVolume, Grid1D.FixedValue)
		sc := NewUTWSystem(gc, g)
		for j := range sc.V {
			sc.V[j] = math.Cos(float64(j)) - 0.2
		}
		V := append([]float64(nil), sc.V...)
		sc.V2rV()
		sc.RV2V()
		for j := range V {
			assert.InDelta(t, V[j], sc.V[j], 1.e-12)
		}
	}
	{ // a changed grid must be followed by a resize
		x := append([]float64(nil), grid.X...)
		x[5] += 1.e-4
		require.NoError(t, grid.Update(x))
		assert.ErrorIs(t, s.F(0, y, ydot), types.ErrDimensionMismatch)
		s.Resize(n)
		for j := 0; j < n; j++ {
			s.U[j], s.T[j], s.Wmx[j] = 200, 300, 29
		}
		s.Roll(y)
		assert.NoError(t, s.F(0, y, ydot))
		assert.ErrorIs(t, s.F(0, y[:3], ydot), types.ErrDimensionMismatch)
	}
}

func TestSplitConstantsReset(t *testing.T) {
	var (
		grid             = Grid1D.SimpleGrid(0, 0.02, 9, 0, Grid1D.ControlVolume, Grid1D.ZeroGradient)
		n                = grid.NPoints()
		ss, U, T, Y      = counterflow(t, grid, []int{n, n})
		reference, split *SplitSystem
	)
	require.NoError(t, ss.SetState(U, T, Y, 0))
	require.NoError(t, ss.Evaluate())
	reference = &SplitSystem{
		DUdt: append([]float64(nil), ss.DUdt...),
		DTdt: append([]float64(nil), ss.DTdt...),
		DWdt: append([]float64(nil), ss.DWdt...),
		DYdt: [][]float64{append([]float64(nil), ss.DYdt[0]...), append([]float64(nil), ss.DYdt[1]...)},
	}

	sc := types.NewSplitConstants(2, n)
	for j := 0; j < n; j++ {
		sc.U[j] = float64(j)
		sc.T[j] = 10 * float64(j)
		sc.Y[0][j] = 0.1
		sc.Y[1][j] = -0.1
	}
	require.NoError(t, ss.SetSplitConstants(sc))
	require.NoError(t, ss.Evaluate())
	split = ss
	for j := 0; j < n; j++ {
		assert.InDelta(t, reference.DTdt[j]+sc.T[j], split.DTdt[j], 1.e-9)
		assert.InDelta(t, reference.DYdt[0][j]+0.1, split.DYdt[0][j], 1.e-12)
		// splitConstW = -Wmx^2 sum(splitConstY/W)
		wExpected := -ss.Wmx[j] * ss.Wmx[j] * (0.1/32 - 0.1/28)
		assert.InDelta(t, reference.DWdt[j]+wExpected, split.DWdt[j], 1.e-9)
	}

	ss.ResetSplitConstants()
	require.NoError(t, ss.Evaluate())
	assert.Equal(t, reference.DUdt, ss.DUdt)
	assert.Equal(t, reference.DTdt, ss.DTdt)
	assert.Equal(t, reference.DWdt, ss.DWdt)
	assert.Equal(t, reference.DYdt, ss.DYdt)

	bad := types.NewSplitConstants(2, n-1)
	assert.ErrorIs(t, ss.SetSplitConstants(bad), types.ErrDimensionMismatch)
}

func TestMassFractionConservation(t *testing.T) {
	var (
		grid        = Grid1D.SimpleGrid(0, 0.02, 21, 0, Grid1D.FixedValue, Grid1D.ZeroGradient)
		n           = grid.NPoints()
		ss, U, T, Y = counterflow(t, grid, []int{n, n})
	)
	require.NoError(t, ss.SetState(U, T, Y, 0))
	require.NoError(t, ss.IntegrateToTime(context.Background(), 2.e-4))
	ss.UnrollY()
	assert.Greater(t, ss.GetNumSteps(), 0)
	assert.Greater(t, ss.Velocity.Len(), 1)
	var changed bool
	for j := 0; j < n; j++ {
		assert.InDelta(t, 1, ss.Y[0][j]+ss.Y[1][j], 1.e-6)
		if ss.Y[0][j] != Y[0][j] {
			changed = true
		}
	}
	assert.True(t, changed)
}

func TestSpeciesSubRange(t *testing.T) {
	var (
		grid        = Grid1D.SimpleGrid(0, 0.01, 6, 0, Grid1D.FixedValue, Grid1D.ZeroGradient)
		n           = grid.NPoints()
		ss, U, T, Y = counterflow(t, grid, []int{n, 3})
	)
	require.NoError(t, ss.SetSpeciesDomains([]int{0, 2}, []int{n - 1, 4}))
	assert.ErrorIs(t, ss.SetSpeciesDomains([]int{0, 1}, []int{n - 1, 4}), types.ErrDimensionMismatch)
	require.NoError(t, ss.SetState(U, T, Y, 0))
	{ // values outside the range do not influence the derivative inside it
		require.NoError(t, ss.Evaluate())
		inside := append([]float64(nil), ss.DYdt[1][2:5]...)
		ss.Y[1][0], ss.Y[1][1], ss.Y[1][5] = 0.9, -3, 7
		require.NoError(t, ss.Evaluate())
		assert.Equal(t, inside, ss.DYdt[1][2:5])
		assert.Equal(t, 0., ss.DYdt[1][0])
		assert.Equal(t, 0., ss.DYdt[1][5])
		ss.Y[1][0], ss.Y[1][1], ss.Y[1][5] = Y[1][0], Y[1][1], Y[1][5]
	}
	{ // points 0, 1 and 5 of species 2 never change
		tNow := 0.
		for step := 0; step < 3; step++ {
			tNow += 1.e-4
			require.NoError(t, ss.IntegrateToTime(context.Background(), tNow))
			ss.UnrollY()
			for _, j := range []int{0, 1, 5} {
				assert.Equal(t, Y[1][j], ss.Y[1][j])
			}
			require.NoError(t, ss.SetState(ss.U, ss.T, ss.Y, tNow))
		}
	}
}

func TestQuasi2DSurvivesResize(t *testing.T) {
	var (
		grid        = Grid1D.SimpleGrid(0, 0.01, 6, 0, Grid1D.FixedValue, Grid1D.ZeroGradient)
		n           = grid.NPoints()
		ss, U, T, Y = counterflow(t, grid, []int{n, n})
		uniform     = func(v float64) *BilinearInterpolator {
			bi, err := NewBilinearInterpolator([]float64{0, 1}, []float64{0, 1}, [][]float64{{v, v}, {v, v}})
			require.NoError(t, err)
			return bi
		}
	)
	ss.SetupQuasi2D(uniform(2), uniform(4))
	ss.Resize(n, []int{n, n}, 2)
	ss.SetLeftBC(T[0], []float64{Y[0][0], Y[1][0]})
	require.True(t, ss.Quasi2D())
	for k := 0; k < ss.NSpec(); k++ {
		assert.True(t, ss.Species(k).Quasi2D())
	}
	require.NoError(t, ss.SetState(U, T, Y, 0))
	require.NoError(t, ss.Evaluate())
	assert.Equal(t, 0, ss.Velocity.Len())
	// v = vz/vr = 0.5 everywhere, so every point but the fixed left one is
	// a backward difference
	assert.Equal(t, 0., ss.DYdt[0][0])
	for j := 1; j < n; j++ {
		want := -0.5 * (Y[0][j] - Y[0][j-1]) / grid.HH[j-1]
		assert.InDelta(t, want, ss.DYdt[0][j], 1.e-9*math.Abs(want)+1.e-12, "j = %d", j)
	}
	require.NoError(t, ss.IntegrateToTime(context.Background(), 1.e-4))
	ss.UnrollY()
	assert.NotEqual(t, Y[0][3], ss.Y[0][3])

	ss.SetupQuasi2D(nil, nil)
	assert.False(t, ss.Quasi2D())
	assert.False(t, ss.Species(0).Quasi2D())
	assert.Panics(t, func() { ss.SetupQuasi2D(uniform(1), nil) })
}

func TestCancellation(t *testing.T) {
	var (
		grid        = Grid1D.SimpleGrid(0, 0.02, 9, 0, Grid1D.FixedValue, Grid1D.ZeroGradient)
		n           = grid.NPoints()
		ss, U, T, Y = counterflow(t, grid, []int{n, n})
	)
	require.NoError(t, ss.SetState(U, T, Y, 0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, ss.IntegrateToTime(ctx, 1.e-3), context.Canceled)
	assert.Equal(t, U, ss.U)
}

func TestVelocityInterpolation(t *testing.T) {
	{
		vt := NewVelocityTable()
		require.NoError(t, vt.Record(0, []float64{0, 1, 2}))
		require.NoError(t, vt.Record(1, []float64{2, 3, 4}))
		assert.Error(t, vt.Record(0.5, []float64{0, 0, 0}))
		v := make([]float64, 3)
		vt.At(0.25, v, 0, 2)
		assert.InDeltaSlice(t, []float64{0.5, 1.5, 2.5}, v, 1.e-15)
		vt.At(-1, v, 0, 2)
		assert.Equal(t, []float64{0, 1, 2}, v)
		vt.At(2, v, 1, 1)
		assert.Equal(t, []float64{0, 3, 2}, v)
	}
	{
		bi, err := NewBilinearInterpolator([]float64{0, 1}, []float64{0, 2},
			[][]float64{{0, 2}, {1, 3}})
		require.NoError(t, err)
		// f = x + y
		assert.InDelta(t, 1.5, bi.Get(0.5, 1), 1.e-15)
		assert.InDelta(t, 3, bi.Get(5, 5), 1.e-15)
		_, err = NewBilinearInterpolator([]float64{0}, []float64{0, 1}, [][]float64{{0, 1}})
		assert.Error(t, err)
	}
	{ // quasi-2D species velocity is vz/vr at the node
		grid := Grid1D.SimpleGrid(0, 1, 5, 0, Grid1D.FixedValue, Grid1D.ZeroGradient)
		vz, _ := NewBilinearInterpolator([]float64{0, 1}, []float64{0, 1}, [][]float64{{2, 2}, {2, 2}})
		vr, _ := NewBilinearInterpolator([]float64{0, 1}, []float64{0, 1}, [][]float64{{4, 4}, {4, 4}})
		s := NewSpeciesSystem(grid, 0, NewVelocityTable())
		s.SetQuasi2D(vz, vr)
		ydot := make([]float64, 5)
		require.NoError(t, s.F(0.5, append([]float64(nil), grid.X...), ydot))
		assert.InDeltaSlice(t, []float64{0, -0.5, -0.5, -0.5, -0.5}, ydot, 1.e-14)
	}
}
