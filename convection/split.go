package convection

import (
	"context"
	"fmt"

	"github.com/minhbau/ember/Grid1D"
	"github.com/minhbau/ember/gas"
	"github.com/minhbau/ember/integrator"
	"github.com/minhbau/ember/types"
	"github.com/minhbau/ember/utils"
)

type Tolerances struct {
	RelTol  float64
	AbsTolU float64
	AbsTolT float64
	AbsTolW float64
	AbsTolY float64
}

// SplitSystem combines one UTW system with one convection system per
// species. The UTW system is integrated first, recording its velocity after
// every step; the species are then integrated independently against that
// record. Results are only copied to the public fields by UnrollY.
type SplitSystem struct {
	grid *Grid1D.Grid
	gas  gas.Evaluator
	tol  Tolerances

	U, T, Wmx []float64
	Y         [][]float64 // Y[k][j]

	// updated by Evaluate
	V, DUdt, DTdt, DWdt []float64
	DYdt                [][]float64

	UTW      *UTWSystem
	Velocity *VelocityTable

	utwSolver      *integrator.Explicit
	species        []*SpeciesSystem
	speciesSolvers []*integrator.Explicit

	Yleft []float64
	W     []float64

	nSpec       int
	nPointsUTW  int
	nPointsSpec []int

	// quasi-2D species velocity vz/vr, kept across Resize
	vz, vr *BilinearInterpolator

	ProcLimit               int
	UTWTimer, SpeciesTimer  *utils.PerfTimer
	scratchUTW, scratchYdot []float64
	velocityScratch         []float64
}

func NewSplitSystem() *SplitSystem {
	return &SplitSystem{
		Velocity:     NewVelocityTable(),
		UTWTimer:     utils.NewPerfTimer("convection UTW"),
		SpeciesTimer: utils.NewPerfTimer("convection species"),
	}
}

func (ss *SplitSystem) SetGrid(grid *Grid1D.Grid) {
	ss.grid = grid
	if ss.UTW != nil {
		ss.UTW.SetGrid(grid)
	}
	for _, sys := range ss.species {
		sys.SetGrid(grid)
	}
}

func (ss *SplitSystem) SetTolerances(tol Tolerances) { ss.tol = tol }

func (ss *SplitSystem) SetGas(g gas.Evaluator) {
	ss.gas = g
	ss.W = g.MolecularWeights()
	if ss.UTW != nil {
		ss.UTW.SetGas(g)
	}
}

// Resize allocates the subsystems for nPointsUTW grid points and nSpec
// species, species k spanning nPointsSpec[k] points. SetGrid and SetGas must
// be called first.
func (ss *SplitSystem) Resize(nPointsUTW int, nPointsSpec []int, nSpec int) {
	if ss.grid == nil || ss.gas == nil {
		panic("convection split system needs a grid and a gas before resize")
	}
	if len(nPointsSpec) != nSpec {
		panic(fmt.Sprintf("have %d species sizes for %d species", len(nPointsSpec), nSpec))
	}
	ss.nPointsUTW, ss.nSpec = nPointsUTW, nSpec
	ss.nPointsSpec = append([]int(nil), nPointsSpec...)

	for _, p := range []*[]float64{&ss.U, &ss.T, &ss.Wmx, &ss.V, &ss.DUdt, &ss.DTdt, &ss.DWdt} {
		*p = make([]float64, nPointsUTW)
	}
	ss.Y = newMatrix(nSpec, nPointsUTW)
	ss.DYdt = newMatrix(nSpec, nPointsUTW)
	if len(ss.Yleft) != nSpec {
		ss.Yleft = make([]float64, nSpec)
	}

	if ss.UTW == nil {
		ss.UTW = NewUTWSystem(ss.grid, ss.gas)
	}
	ss.UTW.Resize(nPointsUTW)
	ss.utwSolver = integrator.NewExplicit(ss.UTW)

	ss.species = make([]*SpeciesSystem, nSpec)
	ss.speciesSolvers = make([]*integrator.Explicit, nSpec)
	for k := 0; k < nSpec; k++ {
		ss.species[k] = NewSpeciesSystem(ss.grid, k, ss.Velocity)
		ss.species[k].Yleft = ss.Yleft[k]
		ss.species[k].StopIndex = nPointsSpec[k] - 1
		if ss.Quasi2D() {
			ss.species[k].SetQuasi2D(ss.vz, ss.vr)
		}
		ss.speciesSolvers[k] = integrator.NewExplicit(ss.species[k])
	}
	ss.scratchUTW = make([]float64, nVarsUTW*nPointsUTW)
	ss.scratchYdot = make([]float64, nPointsUTW)
	ss.velocityScratch = make([]float64, nPointsUTW)
}

func newMatrix(nr, nc int) (m [][]float64) {
	m = make([][]float64, nr)
	for k := range m {
		m[k] = make([]float64, nc)
	}
	return
}

// SetSpeciesDomains restricts species k to [start[k], stop[k]]. The range
// lengths must agree with the sizes given to Resize.
func (ss *SplitSystem) SetSpeciesDomains(start, stop []int) (err error) {
	if len(start) != ss.nSpec || len(stop) != ss.nSpec {
		return fmt.Errorf("%w: %d/%d species domains for %d species",
			types.ErrDimensionMismatch, len(start), len(stop), ss.nSpec)
	}
	for k, sys := range ss.species {
		if stop[k]-start[k]+1 != ss.nPointsSpec[k] {
			return fmt.Errorf("%w: species %d domain [%d, %d] does not span %d points",
				types.ErrDimensionMismatch, k, start[k], stop[k], ss.nPointsSpec[k])
		}
		if err = sys.SetDomain(start[k], stop[k]); err != nil {
			return
		}
	}
	return
}

// SetState loads the full state and restarts every sub-integrator at t0.
func (ss *SplitSystem) SetState(U, T []float64, Y [][]float64, t0 float64) (err error) {
	n := ss.nPointsUTW
	if len(U) != n || len(T) != n || len(Y) != ss.nSpec {
		return fmt.Errorf("%w: convection state does not match %d points and %d species",
			types.ErrDimensionMismatch, n, ss.nSpec)
	}
	copy(ss.U, U)
	copy(ss.T, T)
	yj := make([]float64, ss.nSpec)
	for k := range Y {
		if len(Y[k]) != n {
			return fmt.Errorf("%w: species %d has %d points, want %d",
				types.ErrDimensionMismatch, k, len(Y[k]), n)
		}
		copy(ss.Y[k], Y[k])
	}
	for j := 0; j < n; j++ {
		for k := range yj {
			yj[k] = Y[k][j]
		}
		ss.Wmx[j] = gas.MixtureWeight(ss.W, yj)
	}

	copy(ss.UTW.U, ss.U)
	copy(ss.UTW.T, ss.T)
	copy(ss.UTW.Wmx, ss.Wmx)
	y0 := make([]float64, ss.UTW.NEquations())
	ss.UTW.Roll(y0)
	ss.utwSolver.SetState(t0, y0)
	ss.configureSolver(ss.utwSolver, ss.utwAbsTol())

	for k, sys := range ss.species {
		ss.speciesSolvers[k].SetState(t0, Y[k][sys.StartIndex:sys.StopIndex+1])
		ss.configureSolver(ss.speciesSolvers[k], []float64{ss.tol.AbsTolY})
	}
	return
}

func (ss *SplitSystem) utwAbsTol() (abstol []float64) {
	abstol = make([]float64, nVarsUTW*ss.nPointsUTW)
	for j := 0; j < ss.nPointsUTW; j++ {
		abstol[nVarsUTW*j] = ss.tol.AbsTolU
		abstol[nVarsUTW*j+1] = ss.tol.AbsTolT
		abstol[nVarsUTW*j+2] = ss.tol.AbsTolW
	}
	return
}

func (ss *SplitSystem) configureSolver(solver integrator.Integrator, abstol []float64) {
	solver.SetTolerances(ss.tol.RelTol, abstol)
}

func (ss *SplitSystem) SetLeftBC(Tleft float64, Yleft []float64) {
	ss.UTW.Tleft = Tleft
	ss.UTW.Wleft = gas.MixtureWeight(ss.W, Yleft)
	copy(ss.Yleft, Yleft)
	for k, sys := range ss.species {
		sys.Yleft = Yleft[k]
	}
}

func (ss *SplitSystem) SetRVzero(rVzero float64) { ss.UTW.RVzero = rVzero }

// SetDensityDerivative supplies drho/dt from the diffusion and source terms.
func (ss *SplitSystem) SetDensityDerivative(drhodt []float64) {
	copy(ss.UTW.Drhodt, drhodt)
}

// SetSplitConstants copies the corrections for this step. The Wmx
// correction follows from the species corrections:
// splitConstW = -Wmx^2 * sum_k splitConstY_k / W_k.
func (ss *SplitSystem) SetSplitConstants(sc types.SplitConstants) (err error) {
	n := ss.nPointsUTW
	if sc.NPoints() != n || len(sc.U) != n || sc.NSpec() != ss.nSpec {
		return fmt.Errorf("%w: split constants sized %dx%d, want %dx%d",
			types.ErrDimensionMismatch, sc.NSpec(), sc.NPoints(), ss.nSpec, n)
	}
	copy(ss.UTW.SplitConstU, sc.U)
	copy(ss.UTW.SplitConstT, sc.T)
	for j := 0; j < n; j++ {
		var sum float64
		for k := 0; k < ss.nSpec; k++ {
			sum += sc.Y[k][j] / ss.W[k]
		}
		ss.UTW.SplitConstW[j] = -ss.Wmx[j] * ss.Wmx[j] * sum
	}
	for k, sys := range ss.species {
		copy(sys.SplitConst, sc.Y[k])
	}
	return
}

func (ss *SplitSystem) ResetSplitConstants() {
	ss.UTW.ResetSplitConstants()
	for _, sys := range ss.species {
		sys.ResetSplitConstants()
	}
}

// SetupQuasi2D switches the species to the velocity field vz/vr given by two
// interpolants over (x, t). The setting survives Resize; nil interpolants
// switch back to the UTW velocity.
func (ss *SplitSystem) SetupQuasi2D(vz, vr *BilinearInterpolator) {
	if (vz == nil) != (vr == nil) {
		panic("quasi-2D mode needs both vz and vr")
	}
	ss.vz, ss.vr = vz, vr
	for _, sys := range ss.species {
		sys.SetQuasi2D(vz, vr)
	}
}

func (ss *SplitSystem) Quasi2D() bool { return ss.vz != nil }

func (ss *SplitSystem) recordVelocity(t float64) error {
	for j := range ss.velocityScratch {
		ss.velocityScratch[j] = ss.UTW.V[j] / ss.UTW.Rho[j]
	}
	return ss.Velocity.Record(t, ss.velocityScratch)
}

// Evaluate computes time derivatives and the mass flux at the current state
// without advancing time.
func (ss *SplitSystem) Evaluate() (err error) {
	var (
		t = ss.utwSolver.T()
		y = make([]float64, ss.UTW.NEquations())
	)
	copy(ss.UTW.U, ss.U)
	copy(ss.UTW.T, ss.T)
	copy(ss.UTW.Wmx, ss.Wmx)
	ss.UTW.Roll(y)
	if err = ss.UTW.F(t, y, ss.scratchUTW); err != nil {
		return &types.StepError{Operator: types.OP_ConvectionUTW, Index: -1, Time: t, Err: err}
	}
	copy(ss.V, ss.UTW.V)
	copy(ss.DUdt, ss.UTW.DUdt)
	copy(ss.DTdt, ss.UTW.DTdt)
	copy(ss.DWdt, ss.UTW.DWdt)

	if !ss.Quasi2D() {
		ss.Velocity.Reset()
		if err = ss.recordVelocity(t); err != nil {
			return
		}
	}
	for k, sys := range ss.species {
		var (
			start, stop = sys.StartIndex, sys.StopIndex
			ydot        = ss.scratchYdot[:stop-start+1]
		)
		if err = sys.F(t, ss.Y[k][start:stop+1], ydot); err != nil {
			return &types.StepError{Operator: types.OP_ConvectionSpecies, Index: k, Time: t, Err: err}
		}
		for j := range ss.DYdt[k] {
			ss.DYdt[k][j] = 0
		}
		copy(ss.DYdt[k][start:stop+1], ydot)
	}
	return
}

// IntegrateToTime advances every subsystem to tf. On error the public state
// fields are untouched; the sub-integrators must be reloaded with SetState
// before retrying.
func (ss *SplitSystem) IntegrateToTime(ctx context.Context, tf float64) (err error) {
	ss.UTWTimer.Start()
	err = ss.integrateUTW(ctx, tf)
	ss.UTWTimer.Stop()
	if err != nil {
		return
	}

	ss.SpeciesTimer.Start()
	defer ss.SpeciesTimer.Stop()
	var (
		pm = utils.NewPartitionMap(utils.DefaultParallelDegree(ss.ProcLimit, ss.nSpec), ss.nSpec)
	)
	return pm.ParallelFor(func(bucket, kMin, kMax int) (err error) {
		for k := kMin; k < kMax; k++ {
			if err = ctx.Err(); err != nil {
				return
			}
			if err = ss.speciesSolvers[k].IntegrateToTime(tf); err != nil {
				return &types.StepError{Operator: types.OP_ConvectionSpecies, Index: k, Time: tf, Err: err}
			}
		}
		return
	})
}

func (ss *SplitSystem) integrateUTW(ctx context.Context, tf float64) (err error) {
	var (
		solver = ss.utwSolver
		wrap   = func(err error) error {
			return &types.StepError{Operator: types.OP_ConvectionUTW, Index: -1, Time: solver.T(), Err: err}
		}
	)
	if !ss.Quasi2D() {
		ss.Velocity.Reset()
		if err = ss.UTW.F(solver.T(), solver.Y(), ss.scratchUTW); err != nil {
			return wrap(err)
		}
		if err = ss.recordVelocity(solver.T()); err != nil {
			return wrap(err)
		}
	}
	for solver.T() < tf {
		if err = ctx.Err(); err != nil {
			return
		}
		if err = solver.IntegrateOneStep(tf); err != nil {
			return wrap(err)
		}
		if ss.Quasi2D() {
			continue
		}
		// refresh V and rho at the accepted state
		if err = ss.UTW.F(solver.T(), solver.Y(), ss.scratchUTW); err != nil {
			return wrap(err)
		}
		if err = ss.recordVelocity(solver.T()); err != nil {
			return wrap(err)
		}
	}
	return
}

// UnrollY copies the sub-integrator solutions into U, T, Wmx and Y. Species
// values outside their active range keep their previous values.
func (ss *SplitSystem) UnrollY() {
	ss.UTW.Unroll(ss.utwSolver.Y())
	copy(ss.U, ss.UTW.U)
	copy(ss.T, ss.UTW.T)
	copy(ss.Wmx, ss.UTW.Wmx)
	for k, sys := range ss.species {
		copy(ss.Y[k][sys.StartIndex:sys.StopIndex+1], ss.speciesSolvers[k].Y())
	}
}

func (ss *SplitSystem) GetNumSteps() int { return ss.utwSolver.NumSteps() }

func (ss *SplitSystem) NSpec() int { return ss.nSpec }

func (ss *SplitSystem) Species(k int) *SpeciesSystem { return ss.species[k] }
