package diffusion

import (
	"fmt"
	"math"

	"github.com/minhbau/ember/Grid1D"
	"github.com/minhbau/ember/types"
	"github.com/minhbau/ember/utils"
)

// core is the three point conservative discretisation shared by every
// diffusion variant:
//
//	dy/dt = B_j/V_j [RPhalf_j D_j+1/2 (y_j+1 - y_j)/HH_j - RPhalf_j-1 D_j-1/2 (y_j - y_j-1)/HH_j-1]
//
// where V_j is the control volume of node j (R_j*Dlj_j in the interior, the
// exact half cell at the ends). The iteration matrix cj*I - J is tridiagonal.
type core struct {
	kind       types.OperatorKind
	grid       *Grid1D.Grid
	generation uint64
	nPoints    int

	B, D       []float64 // node prefactor and diffusion coefficient
	SplitConst []float64

	volume []float64
	gL, gR []float64 // RPhalf*D/HH at the left and right faces
	flux   []float64 // flux at j+1/2

	band *utils.BandMatrix
}

func (c *core) resize(nPoints int) {
	if nPoints < 0 {
		panic(fmt.Sprintf("negative size %d", nPoints))
	}
	c.nPoints = nPoints
	for _, p := range []*[]float64{&c.B, &c.D, &c.SplitConst, &c.volume, &c.gL, &c.gR, &c.flux} {
		*p = make([]float64, nPoints)
	}
	c.band = nil
	if nPoints > 0 {
		c.band = utils.NewBandMatrix(nPoints, 1, 1)
	}
	c.generation = c.grid.Generation
	if c.grid.NPoints() == nPoints {
		c.updateVolumes()
	}
}

func (c *core) NPoints() int { return c.nPoints }

func (c *core) SetGrid(grid *Grid1D.Grid) { c.grid = grid }

func (c *core) ResetSplitConstants() {
	for j := range c.SplitConst {
		c.SplitConst[j] = 0
	}
}

func (c *core) SetSplitConstants(split []float64) (err error) {
	if len(split) != c.nPoints {
		return fmt.Errorf("%w: %s split constants have %d points, want %d",
			types.ErrDimensionMismatch, c.kind, len(split), c.nPoints)
	}
	copy(c.SplitConst, split)
	return
}

func (c *core) updateVolumes() {
	var (
		g  = c.grid
		jj = c.nPoints - 1
		p  = float64(g.Alpha + 1)
		cv = func(a, b float64) float64 { return (math.Pow(b, p) - math.Pow(a, p)) / p }
	)
	for j := 1; j < jj; j++ {
		c.volume[j] = g.R[j] * g.Dlj[j]
	}
	c.volume[0] = cv(g.X[0], g.X[0]+0.5*g.HH[0])
	c.volume[jj] = cv(g.X[jj]-0.5*g.HH[jj-1], g.X[jj])
}

func (c *core) check(y, ydot []float64) (err error) {
	switch {
	case c.grid.NPoints() != c.nPoints || c.grid.Generation != c.generation:
		err = fmt.Errorf("%w: %s system is stale for the current grid",
			types.ErrDimensionMismatch, c.kind)
	case len(y) != c.nPoints || (ydot != nil && len(ydot) != c.nPoints):
		err = fmt.Errorf("%w: %s state length %d, want %d",
			types.ErrDimensionMismatch, c.kind, len(y), c.nPoints)
	}
	return
}

// active reports whether node j evolves under diffusion; FixedValue
// boundaries only see their split constant.
func (c *core) active(j int) bool {
	switch j {
	case 0:
		return c.grid.LeftBC != Grid1D.FixedValue
	case c.nPoints - 1:
		return c.grid.RightBC != Grid1D.FixedValue
	}
	return true
}

// faces computes the face conductances from the current D.
func (c *core) faces() {
	var (
		g  = c.grid
		jj = c.nPoints - 1
	)
	for j := 0; j < jj; j++ {
		c.gR[j] = g.RPhalf[j] * 0.5 * (c.D[j] + c.D[j+1]) / g.HH[j]
		c.gL[j+1] = c.gR[j]
	}
	c.gL[0], c.gR[jj] = 0, 0
}

// diffuse writes split + diffusion of y into ydot and the diffusive flux
// -D dy/dx at each face into flux.
func (c *core) diffuse(y, ydot []float64) {
	c.faces()
	var (
		g  = c.grid
		jj = c.nPoints - 1
	)
	for j := 0; j < jj; j++ {
		c.flux[j] = -0.5 * (c.D[j] + c.D[j+1]) * (y[j+1] - y[j]) / g.HH[j]
	}
	c.flux[jj] = 0
	for j := 0; j <= jj; j++ {
		ydot[j] = c.SplitConst[j]
		if !c.active(j) {
			continue
		}
		var right, left float64
		if j < jj {
			right = c.gR[j] * (y[j+1] - y[j])
		}
		if j > 0 {
			left = c.gL[j] * (y[j] - y[j-1])
		}
		ydot[j] += c.B[j] / c.volume[j] * (right - left)
	}
}

// divergence adds -B/V * (RPhalf_j f_j+1/2 - RPhalf_j-1 f_j-1/2) for an
// explicitly evaluated face flux f, with no flux through the domain ends.
func (c *core) divergence(f, ydot []float64) {
	var (
		g  = c.grid
		jj = c.nPoints - 1
	)
	for j := 0; j <= jj; j++ {
		if !c.active(j) {
			continue
		}
		var right, left float64
		if j < jj {
			right = g.RPhalf[j] * f[j]
		}
		if j > 0 {
			left = g.RPhalf[j-1] * f[j-1]
		}
		ydot[j] -= c.B[j] / c.volume[j] * (right - left)
	}
}

// assemble writes cj*I - J_diffusion into the band matrix.
func (c *core) assemble(cj float64) {
	c.faces()
	var (
		jj = c.nPoints - 1
	)
	c.band.Zero()
	for j := 0; j <= jj; j++ {
		c.band.Set(j, j, cj)
		if !c.active(j) {
			continue
		}
		s := c.B[j] / c.volume[j]
		c.band.Add(j, j, s*(c.gL[j]+c.gR[j]))
		if j > 0 {
			c.band.Set(j, j-1, -s*c.gL[j])
		}
		if j < jj {
			c.band.Set(j, j+1, -s*c.gR[j])
		}
	}
}

func (c *core) factorize() (err error) {
	if err = c.band.Factorize(); err != nil {
		return fmt.Errorf("%w: %s preconditioner: %v", types.ErrConvergence, c.kind, err)
	}
	return
}

func (c *core) PreconditionerSolve(t float64, y, ydot, rhs, out []float64, cj, delta float64) (err error) {
	return c.band.Solve(rhs, out)
}

func (c *core) Kind() types.OperatorKind { return c.kind }

func checkLengths(kind types.OperatorKind, n int, fields map[string][]float64) (err error) {
	for name, v := range fields {
		if err = utils.CheckLength(name, v, n); err != nil {
			return fmt.Errorf("%w: %s: %v", types.ErrDimensionMismatch, kind, err)
		}
	}
	return
}
