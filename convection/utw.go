package convection

import (
	"fmt"
	"math"
	"strings"

	"github.com/minhbau/ember/Grid1D"
	"github.com/minhbau/ember/gas"
	"github.com/minhbau/ember/types"
)

type ContinuityBC uint8

const (
	ContinuityLeft ContinuityBC = iota // rV fixed at j = 0
	ContinuityZero                     // rV = 0 at a fixed stagnation point
	ContinuityTemp                     // stagnation point follows an isotherm
)

var (
	ContinuityBCNameMap = map[string]ContinuityBC{
		"left": ContinuityLeft,
		"zero": ContinuityZero,
		"temp": ContinuityTemp,
	}
	continuityBCPrintNames = []string{"Left", "Zero", "Temp"}
)

func NewContinuityBC(label string) (bc ContinuityBC, err error) {
	var ok bool
	if bc, ok = ContinuityBCNameMap[strings.ToLower(strings.TrimSpace(label))]; !ok {
		err = fmt.Errorf("unknown continuity boundary condition %q", label)
	}
	return
}

func (bc ContinuityBC) String() string { return continuityBCPrintNames[bc] }

// UTWSystem is the convection of tangential velocity U, temperature T and
// mixture molecular weight Wmx, coupled through the continuity equation that
// determines the mass flux rV. The state vector interleaves (U, T, Wmx) per
// grid point.
type UTWSystem struct {
	grid       *Grid1D.Grid
	generation uint64
	gas        gas.Evaluator
	nPoints    int

	U, T, Wmx        []float64
	DUdt, DTdt, DWdt []float64

	Tleft, Wleft float64
	RVzero       float64 // mass flux at j = 0 for ContinuityLeft

	Drhodt []float64

	SplitConstU, SplitConstT, SplitConstW []float64

	V, RV, Rho []float64

	dUdx, dTdx, dWdx []float64

	ContinuityBC ContinuityBC
	JContBC      int     // grid index at which the continuity BC is applied
	XVzero       float64 // stagnation point location
	TContBC      float64 // isotherm followed by ContinuityTemp
}

const nVarsUTW = 3

func NewUTWSystem(grid *Grid1D.Grid, g gas.Evaluator) (s *UTWSystem) {
	s = &UTWSystem{
		grid: grid,
		gas:  g,
	}
	s.Resize(grid.NPoints())
	s.XVzero = grid.X[0]
	return
}

func (s *UTWSystem) SetGrid(grid *Grid1D.Grid) { s.grid = grid }
func (s *UTWSystem) SetGas(g gas.Evaluator)    { s.gas = g }
func (s *UTWSystem) NPoints() int              { return s.nPoints }
func (s *UTWSystem) NEquations() int           { return nVarsUTW * s.nPoints }

// Resize reallocates every per point array and records the grid generation.
// It must be called after each grid change before the next evaluation.
func (s *UTWSystem) Resize(nPoints int) {
	if nPoints < 0 {
		panic(fmt.Sprintf("negative size %d", nPoints))
	}
	s.nPoints = nPoints
	for _, p := range []*[]float64{
		&s.U, &s.T, &s.Wmx, &s.DUdt, &s.DTdt, &s.DWdt, &s.Drhodt,
		&s.SplitConstU, &s.SplitConstT, &s.SplitConstW,
		&s.V, &s.RV, &s.Rho, &s.dUdx, &s.dTdx, &s.dWdx,
	} {
		*p = make([]float64, nPoints)
	}
	s.generation = s.grid.Generation
	if s.ContinuityBC != ContinuityLeft && s.grid.NPoints() == nPoints {
		s.JContBC = s.grid.Nearest(s.XVzero)
	}
	if s.JContBC >= nPoints {
		s.JContBC = 0
	}
}

func (s *UTWSystem) ResetSplitConstants() {
	for j := 0; j < s.nPoints; j++ {
		s.SplitConstU[j], s.SplitConstT[j], s.SplitConstW[j] = 0, 0, 0
	}
}

func (s *UTWSystem) Unroll(y []float64) {
	for j := 0; j < s.nPoints; j++ {
		s.U[j] = y[nVarsUTW*j]
		s.T[j] = y[nVarsUTW*j+1]
		s.Wmx[j] = y[nVarsUTW*j+2]
	}
}

func (s *UTWSystem) Roll(y []float64) {
	for j := 0; j < s.nPoints; j++ {
		y[nVarsUTW*j] = s.U[j]
		y[nVarsUTW*j+1] = s.T[j]
		y[nVarsUTW*j+2] = s.Wmx[j]
	}
}

func (s *UTWSystem) RollYdot(ydot []float64) {
	for j := 0; j < s.nPoints; j++ {
		ydot[nVarsUTW*j] = s.DUdt[j]
		ydot[nVarsUTW*j+1] = s.DTdt[j]
		ydot[nVarsUTW*j+2] = s.DWdt[j]
	}
}

func (s *UTWSystem) checkSize(y, ydot []float64) (err error) {
	switch {
	case s.grid.NPoints() != s.nPoints:
		err = fmt.Errorf("%w: UTW system sized for %d points, grid has %d",
			types.ErrDimensionMismatch, s.nPoints, s.grid.NPoints())
	case s.grid.Generation != s.generation:
		err = fmt.Errorf("%w: grid changed since the UTW system was resized",
			types.ErrDimensionMismatch)
	case len(y) != s.NEquations() || len(ydot) != s.NEquations():
		err = fmt.Errorf("%w: UTW state length %d/%d, want %d",
			types.ErrDimensionMismatch, len(y), len(ydot), s.NEquations())
	}
	return
}

func (s *UTWSystem) F(t float64, y, ydot []float64) (err error) {
	if err = s.checkSize(y, ydot); err != nil {
		return
	}
	s.Unroll(y)
	var (
		g  = s.grid
		jj = s.nPoints - 1
		P  = s.gas.Pressure()
	)
	for j := 0; j <= jj; j++ {
		s.Rho[j] = P * s.Wmx[j] / (gas.GasConstant * s.T[j])
	}
	if s.ContinuityBC == ContinuityTemp {
		s.followIsotherm()
	}
	s.solveContinuity()
	g.RV2V(s.RV, s.V)

	for j := 0; j <= jj; j++ {
		s.DUdt[j] = s.SplitConstU[j]
		s.DTdt[j] = s.SplitConstT[j]
		s.DWdt[j] = s.SplitConstW[j]
	}

	// left boundary
	switch g.LeftBC {
	case Grid1D.ControlVolume:
		var (
			centerVol = g.CenterVolume()
			rVin      = math.Max(s.RV[0], 0)
		)
		s.DTdt[0] -= rVin * (s.T[0] - s.Tleft) / (s.Rho[0] * centerVol)
		s.DWdt[0] -= rVin * (s.Wmx[0] - s.Wleft) / (s.Rho[0] * centerVol)
	case Grid1D.ZeroGradient:
		if s.V[0] < 0 {
			s.upwind(0)
			s.addConvection(0)
		}
	}

	for j := 1; j < jj; j++ {
		s.upwind(j)
		s.addConvection(j)
	}

	// right boundary, outflow only
	if s.V[jj] >= 0 && g.RightBC != Grid1D.FixedValue {
		s.upwind(jj)
		s.addConvection(jj)
	}

	s.RollYdot(ydot)
	return
}

func (s *UTWSystem) upwind(j int) {
	var (
		hh = s.grid.HH
	)
	if j == 0 || (s.V[j] < 0 && j < s.nPoints-1) {
		s.dUdx[j] = (s.U[j+1] - s.U[j]) / hh[j]
		s.dTdx[j] = (s.T[j+1] - s.T[j]) / hh[j]
		s.dWdx[j] = (s.Wmx[j+1] - s.Wmx[j]) / hh[j]
		return
	}
	s.dUdx[j] = (s.U[j] - s.U[j-1]) / hh[j-1]
	s.dTdx[j] = (s.T[j] - s.T[j-1]) / hh[j-1]
	s.dWdx[j] = (s.Wmx[j] - s.Wmx[j-1]) / hh[j-1]
}

func (s *UTWSystem) addConvection(j int) {
	c := s.V[j] / s.Rho[j]
	s.DUdt[j] -= c * s.dUdx[j]
	s.DTdt[j] -= c * s.dTdx[j]
	s.DWdt[j] -= c * s.dWdx[j]
}

// solveContinuity integrates d(rV)/dx = -r (drho/dt + rho U) outward from
// the boundary condition point.
func (s *UTWSystem) solveContinuity() {
	var (
		g    = s.grid
		jj   = s.nPoints - 1
		jc   = s.JContBC
		mass = func(j int) float64 { return s.Drhodt[j] + s.Rho[j]*s.U[j] }
	)
	if s.ContinuityBC == ContinuityLeft {
		jc = 0
		s.RV[0] = s.RVzero
	} else {
		s.RV[jc] = -mass(jc) * g.R[jc] * (g.X[jc] - s.XVzero)
	}
	for j := jc; j < jj; j++ {
		s.RV[j+1] = s.RV[j] - g.HH[j]*g.RPhalf[j]*mass(j)
	}
	for j := jc; j > 0; j-- {
		s.RV[j-1] = s.RV[j] + g.HH[j-1]*g.RPhalf[j-1]*mass(j-1)
	}
}

// followIsotherm moves the stagnation point to the first crossing of the
// TContBC isotherm. Without a crossing the previous location is kept.
func (s *UTWSystem) followIsotherm() {
	x, ok := Grid1D.Crossing(s.grid.X, s.T, s.TContBC)
	if !ok {
		return
	}
	s.XVzero = x
	s.JContBC = s.grid.Nearest(x)
}

// UpdateContinuityBoundaryCondition switches the continuity policy. For the
// stagnation point policies the zero crossing of massFluxGuess fixes XVzero
// and JContBC is the nearest grid index, the lower one on a tie. The previous
// policy is kept when no crossing exists.
func (s *UTWSystem) UpdateContinuityBoundaryCondition(massFluxGuess []float64, newBC ContinuityBC) (err error) {
	var (
		g = s.grid
	)
	if newBC == ContinuityLeft {
		s.ContinuityBC, s.JContBC, s.XVzero = newBC, 0, g.X[0]
		return
	}
	if len(massFluxGuess) != g.NPoints() {
		return fmt.Errorf("%w: mass flux guess has %d points, grid has %d",
			types.ErrDimensionMismatch, len(massFluxGuess), g.NPoints())
	}
	x, ok := Grid1D.Crossing(g.X, massFluxGuess, 0)
	if !ok {
		return fmt.Errorf("%w: no zero crossing in mass flux for %s",
			types.ErrInvalidBoundaryCondition, newBC)
	}
	s.ContinuityBC = newBC
	s.XVzero = x
	s.JContBC = g.Nearest(x)
	if newBC == ContinuityTemp && len(s.T) == g.NPoints() {
		j := min(s.JContBC, g.Jj()-1)
		if x < g.X[j] && j > 0 {
			j--
		}
		w := (x - g.X[j]) / g.HH[j]
		s.TContBC = (1-w)*s.T[j] + w*s.T[j+1]
	}
	return
}

// V2rV and rV2V keep the two mass flux representations consistent.
func (s *UTWSystem) V2rV() { s.grid.V2RV(s.V, s.RV) }
func (s *UTWSystem) RV2V() { s.grid.RV2V(s.RV, s.V) }
