package Flame1D

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/minhbau/ember/Grid1D"
	"github.com/minhbau/ember/InputParameters"
	"github.com/minhbau/ember/convection"
	"github.com/minhbau/ember/diffusion"
	"github.com/minhbau/ember/gas"
	"github.com/minhbau/ember/source"
	"github.com/minhbau/ember/types"
	"github.com/minhbau/ember/utils"
)

// FlameSystem advances a strained 1D flame by operator splitting: the
// chemical source term, then diffusion, then convection, each integrated
// over the full outer step from the result of the previous one.
type FlameSystem struct {
	Params  *InputParameters.FlameParameters
	Grid    *Grid1D.Grid
	Gas     gas.Evaluator
	Adapter Grid1D.Adapter             // optional, consulted every RegridStepInterval steps
	Output  func(f *FlameSystem) error // optional, called every OutputStepInterval steps

	Strain     StrainFunction
	Controller *PositionController // nil without flame position control

	Time   float64
	NSteps int

	U, T, V           []float64
	Y                 [][]float64 // Y[k][j]
	Rho, Wmx          []float64
	Cp, Mu, Lambda    []float64
	RhoD, Dkt, CpSpec [][]float64
	HeatRelease       []float64 // [W/m^3]

	// Operator time derivatives at the start of the last step
	DProd, DDiff, DConv types.SplitConstants
	Drhodt              []float64

	Tleft, Tright   float64
	Yleft, Yright   []float64
	RhoLeft, CpLeft float64
	RVzero          float64

	Convection *convection.SplitSystem
	DiffY      []*diffusion.SpeciesSystem
	DiffT      *diffusion.TemperatureSystem
	DiffU      *diffusion.MomentumSystem

	ReactionTimer, DiffusionTimer *utils.PerfTimer

	continuityBC              convection.ContinuityBC
	balanced                  bool
	nSpec                     int
	W                         []float64
	speciesStart, speciesStop []int
	log                       *logrus.Entry
}

// NewFlameSystem builds the grid, the operators and the initial profiles
// described by fp, and evaluates every operator once at the initial state.
func NewFlameSystem(fp *InputParameters.FlameParameters, g gas.Evaluator) (f *FlameSystem, err error) {
	var (
		leftBC, rightBC Grid1D.BoundaryCondition
	)
	if leftBC, err = Grid1D.NewBoundaryCondition(fp.LeftBC); err != nil {
		return
	}
	if rightBC, err = Grid1D.NewBoundaryCondition(fp.RightBC); err != nil {
		return
	}
	if rightBC == Grid1D.ControlVolume {
		return nil, fmt.Errorf("%w: ControlVolume is only available on the left boundary",
			types.ErrInvalidBoundaryCondition)
	}
	f = &FlameSystem{
		Params:         fp,
		Gas:            g,
		Strain:         StrainFunction{NewRamp(fp.Strain)},
		Time:           fp.TStart,
		RVzero:         fp.LeftMassFlux,
		balanced:       fp.SplittingMethod != "simple",
		nSpec:          g.NSpecies(),
		W:              g.MolecularWeights(),
		ReactionTimer:  utils.NewPerfTimer("reaction"),
		DiffusionTimer: utils.NewPerfTimer("diffusion"),
		log:            logrus.WithField("flame", fp.Title),
	}
	if fp.FlamePosition.Control {
		f.Controller = &PositionController{
			Target: NewRamp(fp.FlamePosition.Target),
			Kp:     fp.FlamePosition.Kp,
			Ki:     fp.FlamePosition.Ki,
		}
	}
	if f.continuityBC, err = convection.NewContinuityBC(fp.ContinuityBC); err != nil {
		return nil, err
	}
	if f.Yleft, err = fp.Unburned.MassFractions(f.nSpec, g.SpeciesIndex); err != nil {
		return nil, err
	}
	if f.Yright, err = fp.Burned.MassFractions(f.nSpec, g.SpeciesIndex); err != nil {
		return nil, err
	}
	f.Tleft, f.Tright = fp.Unburned.T, fp.Burned.T
	if err = g.SetStateMass(f.Yleft, f.Tleft); err != nil {
		return nil, fmt.Errorf("unburned state: %w", err)
	}
	f.RhoLeft, f.CpLeft = g.Density(), g.SpecificHeatCapacity()

	f.Grid = Grid1D.SimpleGrid(fp.XLeft, fp.XRight, fp.NPoints, fp.Curvature, leftBC, rightBC)
	f.Convection = convection.NewSplitSystem()
	f.Convection.SetGrid(f.Grid)
	f.Convection.SetGas(g)
	f.Convection.ProcLimit = fp.ProcLimit
	f.Convection.SetTolerances(convection.Tolerances{
		RelTol:  fp.Tolerances.RelTol,
		AbsTolU: fp.Tolerances.AbsTolU,
		AbsTolT: fp.Tolerances.AbsTolT,
		AbsTolW: fp.Tolerances.AbsTolW,
		AbsTolY: fp.Tolerances.AbsTolY,
	})
	if q := fp.Quasi2D; q != nil {
		var vz, vr *convection.BilinearInterpolator
		if vz, err = convection.NewBilinearInterpolator(q.X, q.Time, q.Vz); err != nil {
			return nil, fmt.Errorf("quasi-2D vz: %w", err)
		}
		if vr, err = convection.NewBilinearInterpolator(q.X, q.Time, q.Vr); err != nil {
			return nil, fmt.Errorf("quasi-2D vr: %w", err)
		}
		f.Convection.SetupQuasi2D(vz, vr)
	}
	f.allocate(f.Grid.NPoints())
	f.resizeOperators()
	if err = f.GenerateInitialProfiles(); err != nil {
		return nil, err
	}
	return
}

func (f *FlameSystem) NSpec() int { return f.nSpec }

func newRows(nr, nc int) (m [][]float64) {
	m = make([][]float64, nr)
	for k := range m {
		m[k] = make([]float64, nc)
	}
	return
}

func (f *FlameSystem) allocate(n int) {
	for _, p := range []*[]float64{&f.U, &f.T, &f.V, &f.Rho, &f.Wmx, &f.Cp, &f.Mu, &f.Lambda,
		&f.HeatRelease, &f.Drhodt} {
		*p = make([]float64, n)
	}
	for _, p := range []*[][]float64{&f.Y, &f.RhoD, &f.Dkt, &f.CpSpec} {
		*p = newRows(f.nSpec, n)
	}
}

// resizeOperators sizes every operator to the current grid.
func (f *FlameSystem) resizeOperators() {
	var (
		n     = f.Grid.NPoints()
		sizes = make([]int, f.nSpec)
	)
	f.speciesStart, f.speciesStop = make([]int, f.nSpec), make([]int, f.nSpec)
	for k := range sizes {
		sizes[k], f.speciesStop[k] = n, n-1
	}
	f.Convection.Resize(n, sizes, f.nSpec)
	if len(f.DiffY) != f.nSpec {
		f.DiffY = make([]*diffusion.SpeciesSystem, f.nSpec)
		for k := range f.DiffY {
			f.DiffY[k] = diffusion.NewSpeciesSystem(f.Grid, k)
		}
		f.DiffT = diffusion.NewTemperatureSystem(f.Grid)
		f.DiffU = diffusion.NewMomentumSystem(f.Grid)
	} else {
		for _, s := range f.DiffY {
			s.Resize(n)
		}
		f.DiffT.Resize(n)
		f.DiffU.Resize(n)
	}
	f.DProd = types.NewSplitConstants(f.nSpec, n)
	f.DDiff = types.NewSplitConstants(f.nSpec, n)
	f.DConv = types.NewSplitConstants(f.nSpec, n)
}

// GenerateInitialProfiles blends the unburned and burned states with a tanh
// profile of width InitialWidth centred on InitialCenter, with the end points
// set exactly to the boundary states. U follows the
// potential flow solution a*sqrt(rhoLeft/rho).
func (f *FlameSystem) GenerateInitialProfiles() (err error) {
	var (
		fp = f.Params
		a  = f.Strain.A(f.Time)
	)
	for j, x := range f.Grid.X {
		w := 0.5 * (1 + math.Tanh((x-fp.InitialCenter)/fp.InitialWidth))
		f.T[j] = (1-w)*f.Tleft + w*f.Tright
		for k := 0; k < f.nSpec; k++ {
			f.Y[k][j] = (1-w)*f.Yleft[k] + w*f.Yright[k]
		}
	}
	jj := f.Grid.Jj()
	f.T[0], f.T[jj] = f.Tleft, f.Tright
	for k := 0; k < f.nSpec; k++ {
		f.Y[k][0], f.Y[k][jj] = f.Yleft[k], f.Yright[k]
	}
	f.updateDensity()
	for j := range f.U {
		f.U[j] = a * math.Sqrt(f.RhoLeft/f.Rho[j])
	}
	if err = f.setupContinuity(); err != nil {
		return
	}
	return f.evaluate(context.Background())
}

// setupContinuity applies the configured continuity policy. The stagnation
// point policies locate XVzero from a mass flux guess that changes sign at
// StagnationPoint.
func (f *FlameSystem) setupContinuity() (err error) {
	var (
		conv  = f.Convection
		guess = make([]float64, f.Grid.NPoints())
	)
	if err = conv.SetState(f.U, f.T, f.Y, f.Time); err != nil {
		return
	}
	for j, x := range f.Grid.X {
		guess[j] = f.Params.StagnationPoint - x
	}
	return conv.UTW.UpdateContinuityBoundaryCondition(guess, f.continuityBC)
}

// updateDensity recomputes Wmx and rho from the ideal gas law.
func (f *FlameSystem) updateDensity() {
	var (
		yj = make([]float64, f.nSpec)
		p  = f.Gas.Pressure()
	)
	for j := range f.T {
		for k := range yj {
			yj[k] = f.Y[k][j]
		}
		f.Wmx[j] = gas.MixtureWeight(f.W, yj)
		f.Rho[j] = p * f.Wmx[j] / (gas.GasConstant * f.T[j])
	}
}

// updateProperties evaluates the thermodynamic and transport properties at
// every point, each worker with its own gas clone.
func (f *FlameSystem) updateProperties(ctx context.Context) (err error) {
	var (
		n  = f.Grid.NPoints()
		pm = utils.NewPartitionMap(utils.DefaultParallelDegree(f.Params.ProcLimit, n), n)
	)
	return pm.ParallelFor(func(bucket, jMin, jMax int) (err error) {
		var (
			g    = f.Gas.Clone()
			yj   = make([]float64, f.nSpec)
			rhoD = make([]float64, f.nSpec)
			dkt  = make([]float64, f.nSpec)
			cpk  = make([]float64, f.nSpec)
		)
		for j := jMin; j < jMax; j++ {
			if err = ctx.Err(); err != nil {
				return
			}
			for k := range yj {
				yj[k] = f.Y[k][j]
			}
			if err = g.SetStateMass(yj, f.T[j]); err != nil {
				return fmt.Errorf("properties at point %d (x = %g): %w", j, f.Grid.X[j], err)
			}
			f.Rho[j], f.Wmx[j], f.Cp[j] = g.Density(), g.MixtureMolecularWeight(), g.SpecificHeatCapacity()
			f.Mu[j], f.Lambda[j] = g.Viscosity(), g.ThermalConductivity()
			g.WeightedDiffusionCoefficients(rhoD)
			g.ThermalDiffusionCoefficients(dkt)
			g.SpecificHeatCapacities(cpk)
			for k := range yj {
				f.RhoD[k][j], f.Dkt[k][j], f.CpSpec[k][j] = rhoD[k], dkt[k], cpk[k]
			}
		}
		return
	})
}

// loadDiffusionCoefficients hands the current properties to the diffusion
// operators, which hold them fixed over the step.
func (f *FlameSystem) loadDiffusionCoefficients() {
	for k, s := range f.DiffY {
		copy(s.Rho, f.Rho)
		copy(s.RhoD, f.RhoD[k])
		copy(s.Dkt, f.Dkt[k])
		copy(s.T, f.T)
	}
	copy(f.DiffT.Rho, f.Rho)
	copy(f.DiffT.Cp, f.Cp)
	copy(f.DiffT.Lambda, f.Lambda)
	copy(f.DiffU.Rho, f.Rho)
	copy(f.DiffU.Mu, f.Mu)
}

func (f *FlameSystem) sourceConfig(t float64) source.Config {
	var (
		tol = f.Params.Tolerances
	)
	return source.Config{
		Strain: source.Strain{
			A:       f.Strain.A(t),
			DaDt:    f.Strain.DaDt(t),
			RhoLeft: f.RhoLeft,
		},
		RelTol:    tol.RelTol,
		AbsTolU:   tol.AbsTolU,
		AbsTolT:   tol.AbsTolT,
		AbsTolY:   tol.AbsTolY,
		ProcLimit: f.Params.ProcLimit,
	}
}

// points builds one source record per grid point, with split constants
// taken from sc when it is non nil.
func (f *FlameSystem) points(sc *types.SplitConstants) (pts []source.Point) {
	pts = make([]source.Point, f.Grid.NPoints())
	for j := range pts {
		p := &pts[j]
		p.J, p.U, p.T = j, f.U[j], f.T[j]
		p.Y = make([]float64, f.nSpec)
		for k := range p.Y {
			p.Y[k] = f.Y[k][j]
		}
		if sc == nil {
			continue
		}
		p.SplitU, p.SplitT = sc.U[j], sc.T[j]
		p.SplitY = make([]float64, f.nSpec)
		for k := range p.SplitY {
			p.SplitY[k] = sc.Y[k][j]
		}
	}
	return
}

// trimSpecies restricts each species' convection domain to the points where
// it exceeds SpeciesThreshold, plus one point either side.
func (f *FlameSystem) trimSpecies() {
	var (
		n         = f.Grid.NPoints()
		threshold = f.Params.SpeciesThreshold
	)
	for k := 0; k < f.nSpec; k++ {
		f.speciesStart[k], f.speciesStop[k] = 0, n-1
		if threshold <= 0 {
			continue
		}
		start, stop := -1, -1
		for j := 0; j < n; j++ {
			if f.Y[k][j] > threshold {
				if start < 0 {
					start = j
				}
				stop = j
			}
		}
		if start < 0 {
			f.speciesStart[k], f.speciesStop[k] = 0, 1
			continue
		}
		f.speciesStart[k], f.speciesStop[k] = max(start-1, 0), min(stop+1, n-1)
	}
}

// configureConvection sizes the convection operator to the trimmed species
// domains and loads the current state.
func (f *FlameSystem) configureConvection() (err error) {
	var (
		conv  = f.Convection
		sizes = make([]int, f.nSpec)
	)
	for k := range sizes {
		sizes[k] = f.speciesStop[k] - f.speciesStart[k] + 1
	}
	conv.Resize(f.Grid.NPoints(), sizes, f.nSpec)
	if err = conv.SetSpeciesDomains(f.speciesStart, f.speciesStop); err != nil {
		return
	}
	conv.SetLeftBC(f.Tleft, f.Yleft)
	conv.SetRVzero(f.RVzero)
	if err = conv.SetState(f.U, f.T, f.Y, f.Time); err != nil {
		return
	}
	conv.SetDensityDerivative(f.Drhodt)
	return
}

// updateDensityDerivative sets drho/dt from the source and diffusion
// derivatives: drho/dt = -rho (dT/dt / T + Wmx sum_k dY_k/dt / W_k).
func (f *FlameSystem) updateDensityDerivative() {
	for j := range f.Drhodt {
		var (
			sum  float64
			dTdt = f.DProd.T[j] + f.DDiff.T[j]
		)
		for k := 0; k < f.nSpec; k++ {
			sum += (f.DProd.Y[k][j] + f.DDiff.Y[k][j]) / f.W[k]
		}
		f.Drhodt[j] = -f.Rho[j] * (dTdt/f.T[j] + f.Wmx[j]*sum)
	}
}

// evaluate computes every operator's time derivative at the current state
// with zero split constants, along with V and the heat release rate.
func (f *FlameSystem) evaluate(ctx context.Context) (err error) {
	var (
		t = f.Time
	)
	if err = f.updateProperties(ctx); err != nil {
		return
	}
	f.loadDiffusionCoefficients()

	points := f.points(nil)
	if err = source.EvaluateAll(ctx, f.Gas, points, f.sourceConfig(t), t); err != nil {
		return
	}
	for j, p := range points {
		f.DProd.U[j], f.DProd.T[j], f.HeatRelease[j] = p.DUdt, p.DTdt, p.HeatRelease
		for k := 0; k < f.nSpec; k++ {
			f.DProd.Y[k][j] = p.DYdt[k]
		}
	}

	for k, s := range f.DiffY {
		s.ResetSplitConstants()
		if err = s.F(t, f.Y[k], f.DDiff.Y[k]); err != nil {
			return &types.StepError{Operator: types.OP_DiffusionSpecies, Index: k, Time: t, Err: err}
		}
	}
	diffusion.EnthalpyFluxSum(f.DiffT.SumCpJ, f.W, f.CpSpec, f.DiffY)
	f.DiffT.ResetSplitConstants()
	if err = f.DiffT.F(t, f.T, f.DDiff.T); err != nil {
		return &types.StepError{Operator: types.OP_DiffusionTemperature, Index: -1, Time: t, Err: err}
	}
	f.DiffU.ResetSplitConstants()
	if err = f.DiffU.F(t, f.U, f.DDiff.U); err != nil {
		return &types.StepError{Operator: types.OP_DiffusionMomentum, Index: -1, Time: t, Err: err}
	}

	f.updateDensityDerivative()
	f.trimSpecies()
	if err = f.configureConvection(); err != nil {
		return
	}
	f.Convection.ResetSplitConstants()
	if err = f.Convection.Evaluate(); err != nil {
		return
	}
	copy(f.DConv.U, f.Convection.DUdt)
	copy(f.DConv.T, f.Convection.DTdt)
	for k := range f.DConv.Y {
		copy(f.DConv.Y[k], f.Convection.DYdt[k])
	}
	copy(f.V, f.Convection.V)
	return
}

// Evaluate refreshes the operator derivatives at the current state.
func (f *FlameSystem) Evaluate(ctx context.Context) error { return f.evaluate(ctx) }
