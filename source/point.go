package source

import (
	"context"

	"github.com/minhbau/ember/gas"
	"github.com/minhbau/ember/integrator"
	"github.com/minhbau/ember/types"
	"github.com/minhbau/ember/utils"
)

// Point is the record for one grid point. IntegrateAll and EvaluateAll read
// the state and split constants and write the results back in place, so
// the caller merges a slice of records only after a nil error.
type Point struct {
	J      int
	U, T   float64
	Y      []float64
	SplitU float64
	SplitT float64
	SplitY []float64

	// results
	DUdt, DTdt  float64
	DYdt        []float64
	HeatRelease float64 // [W/m^3]
	Steps       int
}

type Config struct {
	Strain    Strain
	RelTol    float64
	AbsTolU   float64
	AbsTolT   float64
	AbsTolY   float64
	ProcLimit int
}

func (p *Point) load(s *System, y []float64) {
	y[0], y[1] = p.U, p.T
	copy(y[2:], p.Y)
	s.SplitU, s.SplitT = p.SplitU, p.SplitT
	copy(s.SplitY, p.SplitY)
	if len(p.SplitY) == 0 {
		for k := range s.SplitY {
			s.SplitY[k] = 0
		}
	}
}

func (p *Point) store(s *System, y, ydot []float64) {
	p.U, p.T = y[0], y[1]
	copy(p.Y, y[2:])
	p.DUdt, p.DTdt = ydot[0], ydot[1]
	if len(p.DYdt) != len(p.Y) {
		p.DYdt = make([]float64, len(p.Y))
	}
	copy(p.DYdt, ydot[2:])
	p.HeatRelease = s.QDot
}

// forEachPoint fans the points out over workers, each with its own gas
// clone and source system.
func forEachPoint(ctx context.Context, g gas.Evaluator, points []Point, procLimit int,
	work func(s *System, p *Point) error) error {
	pm := utils.NewPartitionMap(utils.DefaultParallelDegree(procLimit, len(points)), len(points))
	return pm.ParallelFor(func(bucket, kMin, kMax int) (err error) {
		s := NewSystem(g.Clone())
		for i := kMin; i < kMax; i++ {
			if err = ctx.Err(); err != nil {
				return
			}
			if err = work(s, &points[i]); err != nil {
				return &types.StepError{Operator: types.OP_Reaction, Index: points[i].J, Err: err}
			}
		}
		return
	})
}

// IntegrateAll integrates the source term at every point from t0 to tf.
func IntegrateAll(ctx context.Context, g gas.Evaluator, points []Point, cfg Config, t0, tf float64) (err error) {
	nSpec := g.NSpecies()
	abstol := make([]float64, nSpec+2)
	abstol[0], abstol[1] = cfg.AbsTolU, cfg.AbsTolT
	for k := 0; k < nSpec; k++ {
		abstol[k+2] = cfg.AbsTolY
	}
	err = forEachPoint(ctx, g, points, cfg.ProcLimit, func(s *System, p *Point) (err error) {
		var (
			y      = make([]float64, s.NEquations())
			ydot   = make([]float64, s.NEquations())
			solver = integrator.NewImplicit(s, -1, -1)
		)
		s.Strain = cfg.Strain
		p.load(s, y)
		solver.SetTolerances(cfg.RelTol, abstol)
		solver.SetState(t0, y)
		if err = solver.IntegrateToTime(tf); err != nil {
			return
		}
		copy(y, solver.Y())
		if err = s.F(tf, y, ydot); err != nil {
			return
		}
		p.store(s, y, ydot)
		p.Steps = solver.NumSteps()
		return
	})
	if se, ok := err.(*types.StepError); ok {
		se.Time = tf
	}
	return
}

// EvaluateAll computes the source derivatives at the current point states.
func EvaluateAll(ctx context.Context, g gas.Evaluator, points []Point, cfg Config, t float64) (err error) {
	err = forEachPoint(ctx, g, points, cfg.ProcLimit, func(s *System, p *Point) (err error) {
		var (
			y    = make([]float64, s.NEquations())
			ydot = make([]float64, s.NEquations())
		)
		s.Strain = cfg.Strain
		p.load(s, y)
		if err = s.F(t, y, ydot); err != nil {
			return
		}
		p.store(s, y, ydot)
		return
	})
	if se, ok := err.(*types.StepError); ok {
		se.Time = t
	}
	return
}
