package Flame1D

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/minhbau/ember/Grid1D"
	"github.com/minhbau/ember/integrator"
	"github.com/minhbau/ember/source"
	"github.com/minhbau/ember/types"
	"github.com/minhbau/ember/utils"
)

type snapshot struct {
	time                  float64
	nSteps                int
	rVzero, integralError float64
	U, T, V, Rho, Wmx, Q  []float64
	Y                     [][]float64
}

func copyRows(m [][]float64) (c [][]float64) {
	c = make([][]float64, len(m))
	for k := range m {
		c[k] = append([]float64(nil), m[k]...)
	}
	return
}

func (f *FlameSystem) save() (s snapshot) {
	s = snapshot{
		time:   f.Time,
		nSteps: f.NSteps,
		rVzero: f.RVzero,
		U:      append([]float64(nil), f.U...),
		T:      append([]float64(nil), f.T...),
		V:      append([]float64(nil), f.V...),
		Rho:    append([]float64(nil), f.Rho...),
		Wmx:    append([]float64(nil), f.Wmx...),
		Q:      append([]float64(nil), f.HeatRelease...),
		Y:      copyRows(f.Y),
	}
	if f.Controller != nil {
		s.integralError = f.Controller.IntegralError
	}
	return
}

func (f *FlameSystem) restore(s snapshot) {
	f.Time, f.NSteps, f.RVzero = s.time, s.nSteps, s.rVzero
	f.U, f.T, f.V, f.Rho, f.Wmx, f.HeatRelease = s.U, s.T, s.V, s.Rho, s.Wmx, s.Q
	f.Y = s.Y
	if f.Controller != nil {
		f.Controller.IntegralError = s.integralError
	}
}

// splitConstants returns the corrections for the source, diffusion and
// convection sub-steps. With balanced splitting each operator integrates
// F_i + (sum_j F_j / 3 - F_i), so a steady state of the full system is a
// fixed point of every sub-step.
func (f *FlameSystem) splitConstants() (prod, diff, conv types.SplitConstants) {
	var (
		n = f.Grid.NPoints()
	)
	prod = types.NewSplitConstants(f.nSpec, n)
	diff = types.NewSplitConstants(f.nSpec, n)
	conv = types.NewSplitConstants(f.nSpec, n)
	if !f.balanced {
		return
	}
	balance := func(fp, fd, fc, sp, sd, sc []float64) {
		for j := range fp {
			mean := (fp[j] + fd[j] + fc[j]) / 3
			sp[j], sd[j], sc[j] = mean-fp[j], mean-fd[j], mean-fc[j]
		}
	}
	balance(f.DProd.U, f.DDiff.U, f.DConv.U, prod.U, diff.U, conv.U)
	balance(f.DProd.T, f.DDiff.T, f.DConv.T, prod.T, diff.T, conv.T)
	for k := 0; k < f.nSpec; k++ {
		balance(f.DProd.Y[k], f.DDiff.Y[k], f.DConv.Y[k], prod.Y[k], diff.Y[k], conv.Y[k])
	}
	return
}

// Step advances the flame by dt. On failure the state from before the step
// is restored and the error identifies the failing operator.
func (f *FlameSystem) Step(ctx context.Context, dt float64) (err error) {
	var (
		t0, t1 = f.Time, f.Time + dt
		saved  = f.save()
	)
	if !(dt > 0) {
		return fmt.Errorf("step size must be positive, have %g", dt)
	}
	defer func() {
		if err != nil {
			f.restore(saved)
			f.log.WithError(err).WithField("t", t0).Warn("split step failed, state restored")
		}
	}()
	if err = f.evaluate(ctx); err != nil {
		return
	}
	prod, diff, conv := f.splitConstants()

	f.ReactionTimer.Start()
	err = f.integrateSource(ctx, prod, t0, t1)
	f.ReactionTimer.Stop()
	if err != nil {
		return
	}

	f.DiffusionTimer.Start()
	err = f.integrateDiffusion(ctx, diff, t0, t1)
	f.DiffusionTimer.Stop()
	if err != nil {
		return
	}

	if err = f.integrateConvection(ctx, conv, t1); err != nil {
		return
	}

	if utils.IsNan(f.U) || utils.IsNan(f.T) || utils.IsNan(f.Y) {
		return fmt.Errorf("%w: non-finite state after split step at t = %g", types.ErrConvergence, t1)
	}
	f.Time = t1
	f.NSteps++
	f.updateDensity()
	if f.Adapter != nil && f.Params.RegridStepInterval > 0 && f.NSteps%f.Params.RegridStepInterval == 0 {
		if err = f.regrid(); err != nil {
			return
		}
	}
	if f.Controller != nil {
		if xFlame, ok := f.FlamePosition(); ok {
			f.RVzero = f.Controller.Update(t1, dt, xFlame, f.RhoLeft)
		}
	}
	f.log.WithFields(logrus.Fields{"step": f.NSteps, "t": f.Time}).Debug("split step")
	return
}

func (f *FlameSystem) integrateSource(ctx context.Context, sc types.SplitConstants, t0, t1 float64) (err error) {
	points := f.points(&sc)
	if err = source.IntegrateAll(ctx, f.Gas, points, f.sourceConfig(t0), t0, t1); err != nil {
		return
	}
	for j, p := range points {
		f.U[j], f.T[j], f.HeatRelease[j] = p.U, p.T, p.HeatRelease
		for k := 0; k < f.nSpec; k++ {
			f.Y[k][j] = p.Y[k]
		}
	}
	return
}

type diffusionSystem interface {
	integrator.Preconditioned
	SetSplitConstants(split []float64) error
	Kind() types.OperatorKind
}

// integrateDiffusion integrates every species, T and U independently, in
// parallel, merging only after all succeed.
func (f *FlameSystem) integrateDiffusion(ctx context.Context, sc types.SplitConstants, t0, t1 float64) (err error) {
	var (
		tol     = f.Params.Tolerances
		nSys    = f.nSpec + 2
		results = make([][]float64, nSys)
		pm      = utils.NewPartitionMap(utils.DefaultParallelDegree(f.Params.ProcLimit, nSys), nSys)
	)
	err = pm.ParallelFor(func(bucket, iMin, iMax int) (err error) {
		for i := iMin; i < iMax; i++ {
			if err = ctx.Err(); err != nil {
				return
			}
			var (
				sys       diffusionSystem
				y0, split []float64
				abstol    float64
				index     = -1
			)
			switch {
			case i < f.nSpec:
				sys, y0, split, abstol, index = f.DiffY[i], f.Y[i], sc.Y[i], tol.AbsTolY, i
			case i == f.nSpec:
				sys, y0, split, abstol = f.DiffT, f.T, sc.T, tol.AbsTolT
			default:
				sys, y0, split, abstol = f.DiffU, f.U, sc.U, tol.AbsTolU
			}
			if err = sys.SetSplitConstants(split); err != nil {
				return
			}
			solver := integrator.NewImplicit(sys, 1, 1)
			solver.SetTolerances(tol.RelTol, []float64{abstol})
			solver.SetState(t0, y0)
			if err = solver.IntegrateToTime(t1); err != nil {
				return &types.StepError{Operator: sys.Kind(), Index: index, Time: solver.T(), Err: err}
			}
			results[i] = append([]float64(nil), solver.Y()...)
		}
		return
	})
	if err != nil {
		return
	}
	for k := 0; k < f.nSpec; k++ {
		copy(f.Y[k], results[k])
	}
	copy(f.T, results[f.nSpec])
	copy(f.U, results[f.nSpec+1])
	return
}

func (f *FlameSystem) integrateConvection(ctx context.Context, sc types.SplitConstants, t1 float64) (err error) {
	var (
		conv = f.Convection
	)
	if err = f.configureConvection(); err != nil {
		return
	}
	if err = conv.SetSplitConstants(sc); err != nil {
		return
	}
	if err = conv.IntegrateToTime(ctx, t1); err != nil {
		return
	}
	conv.UnrollY()
	copy(f.U, conv.U)
	copy(f.T, conv.T)
	for k := range f.Y {
		copy(f.Y[k], conv.Y[k])
	}
	copy(f.V, conv.UTW.V)
	return
}

// regrid asks the Adapter for new node positions and, when they change,
// remaps the state and resizes every operator.
func (f *FlameSystem) regrid() (err error) {
	var (
		xOld    = f.Grid.X
		fields  = append([][]float64{f.U, f.T, f.V}, f.Y...)
		xNew    []float64
		changed bool
	)
	if xNew, changed, err = f.Adapter.Adapt(f.Time, xOld, fields); err != nil || !changed {
		return
	}
	remapped := make([][]float64, len(fields))
	for i, fld := range fields {
		if remapped[i], err = Grid1D.Remap(xOld, fld, xNew); err != nil {
			return
		}
	}
	nOld := len(xOld)
	if err = f.Grid.Update(xNew); err != nil {
		return
	}
	f.allocate(len(xNew))
	f.U, f.T, f.V = remapped[0], remapped[1], remapped[2]
	f.Y = remapped[3:]
	f.resizeOperators()
	f.updateDensity()
	f.log.WithFields(logrus.Fields{"t": f.Time, "from": nOld, "to": len(xNew)}).Info("regrid")
	return
}

// Run steps from the current time to TEnd.
func (f *FlameSystem) Run(ctx context.Context) (err error) {
	var (
		tEnd     = f.Params.TEnd
		eps      = 1.e-12 * math.Max(1, math.Abs(tEnd))
		interval = f.Params.OutputStepInterval
		written  bool
	)
	f.log.WithFields(logrus.Fields{
		"t0": f.Time, "tEnd": tEnd, "dt": f.Params.Dt, "points": f.Grid.NPoints(), "species": f.nSpec,
	}).Info("starting integration")
	for tEnd-f.Time > eps {
		dt := math.Min(f.Params.Dt, tEnd-f.Time)
		if err = f.Step(ctx, dt); err != nil {
			return
		}
		written = false
		if interval > 0 && f.NSteps%interval == 0 {
			f.report()
			if err = f.output(); err != nil {
				return
			}
			written = true
		}
	}
	f.report()
	if !written {
		if err = f.output(); err != nil {
			return
		}
	}
	for _, timer := range []*utils.PerfTimer{f.ReactionTimer, f.DiffusionTimer,
		f.Convection.UTWTimer, f.Convection.SpeciesTimer} {
		f.log.Debug(timer.String())
	}
	f.log.Debug(utils.GetMemUsage())
	return
}

func (f *FlameSystem) output() error {
	if f.Output == nil {
		return nil
	}
	return f.Output(f)
}

func (f *FlameSystem) report() {
	var (
		fields = logrus.Fields{
			"step": f.NSteps,
			"t":    f.Time,
			"a":    f.Strain.A(f.Time),
			"Q":    f.HeatReleaseRate(),
			"Sc":   f.ConsumptionSpeed(),
			"Tmax": f.MaxTemperature(),
		}
	)
	if x, ok := f.FlamePosition(); ok {
		fields["xFlame"] = x
	}
	f.log.WithFields(fields).Info("flame")
}
