package convection

import (
	"fmt"
	"math"

	"github.com/minhbau/ember/Grid1D"
	"github.com/minhbau/ember/types"
)

// SpeciesSystem convects one species over [StartIndex, StopIndex] with a
// prescribed velocity. The state vector holds only the points of that range.
type SpeciesSystem struct {
	grid       *Grid1D.Grid
	generation uint64
	nPoints    int

	K                     int // species index
	StartIndex, StopIndex int
	Yleft                 float64
	SplitConst            []float64 // full grid length

	velocity *VelocityTable

	quasi2D  bool
	vzInterp *BilinearInterpolator
	vrInterp *BilinearInterpolator

	v []float64
}

func NewSpeciesSystem(grid *Grid1D.Grid, k int, velocity *VelocityTable) (s *SpeciesSystem) {
	s = &SpeciesSystem{
		grid:     grid,
		K:        k,
		velocity: velocity,
	}
	s.Resize(grid.NPoints())
	return
}

func (s *SpeciesSystem) SetGrid(grid *Grid1D.Grid) { s.grid = grid }

// Resize reallocates for a grid of nPoints and resets the domain to the
// whole grid.
func (s *SpeciesSystem) Resize(nPoints int) {
	if nPoints < 0 {
		panic(fmt.Sprintf("negative size %d", nPoints))
	}
	s.nPoints = nPoints
	s.SplitConst = make([]float64, nPoints)
	s.v = make([]float64, nPoints)
	s.StartIndex, s.StopIndex = 0, nPoints-1
	s.generation = s.grid.Generation
}

func (s *SpeciesSystem) SetDomain(start, stop int) (err error) {
	if start < 0 || start > stop || stop >= s.nPoints {
		return fmt.Errorf("%w: species %d domain [%d, %d] on %d points",
			types.ErrDimensionMismatch, s.K, start, stop, s.nPoints)
	}
	s.StartIndex, s.StopIndex = start, stop
	return
}

func (s *SpeciesSystem) NEquations() int { return s.StopIndex - s.StartIndex + 1 }

func (s *SpeciesSystem) ResetSplitConstants() {
	for j := range s.SplitConst {
		s.SplitConst[j] = 0
	}
}

// SetQuasi2D replaces the tabulated velocity with vz/vr. Nil interpolants
// restore the velocity table.
func (s *SpeciesSystem) SetQuasi2D(vz, vr *BilinearInterpolator) {
	s.quasi2D, s.vzInterp, s.vrInterp = vz != nil && vr != nil, vz, vr
}

func (s *SpeciesSystem) Quasi2D() bool { return s.quasi2D }

func (s *SpeciesSystem) updateVelocity(t float64) {
	if !s.quasi2D {
		s.velocity.At(t, s.v, s.StartIndex, s.StopIndex)
		return
	}
	// in the quasi-2D mode the integration variable is the radial coordinate
	for j := s.StartIndex; j <= s.StopIndex; j++ {
		x := s.grid.X[j]
		s.v[j] = s.vzInterp.Get(x, t) / s.vrInterp.Get(x, t)
	}
}

func (s *SpeciesSystem) F(t float64, y, ydot []float64) (err error) {
	if s.grid.NPoints() != s.nPoints || s.grid.Generation != s.generation {
		return fmt.Errorf("%w: species %d system is stale for the current grid",
			types.ErrDimensionMismatch, s.K)
	}
	if len(y) != s.NEquations() || len(ydot) != s.NEquations() {
		return fmt.Errorf("%w: species %d state length %d, want %d",
			types.ErrDimensionMismatch, s.K, len(y), s.NEquations())
	}
	s.updateVelocity(t)
	var (
		g          = s.grid
		jj         = s.nPoints - 1
		start      = s.StartIndex
		stop       = s.StopIndex
		Y          = func(j int) float64 { return y[j-start] }
		forward    = func(j int) float64 { return (Y(j+1) - Y(j)) / g.HH[j] }
		backward   = func(j int) float64 { return (Y(j) - Y(j-1)) / g.HH[j-1] }
		hasForward = func(j int) bool { return j < stop }
	)
	for j := start; j <= stop; j++ {
		i := j - start
		ydot[i] = s.SplitConst[j]
		v := s.v[j]
		switch {
		case j == 0:
			switch g.LeftBC {
			case Grid1D.ControlVolume:
				r := g.R[0]
				if r == 0 {
					r = 1
				}
				ydot[i] -= math.Max(r*v, 0) * (Y(0) - s.Yleft) / g.CenterVolume()
			case Grid1D.ZeroGradient:
				if v < 0 && hasForward(j) {
					ydot[i] -= v * forward(j)
				}
			}
		case j == start:
			// interior edge of the active range acts as an inflow boundary
		case j == jj:
			if v >= 0 && g.RightBC != Grid1D.FixedValue {
				ydot[i] -= v * backward(j)
			}
		case j == stop:
		case v < 0:
			ydot[i] -= v * forward(j)
		default:
			ydot[i] -= v * backward(j)
		}
	}
	return
}
