package Grid1D

import (
	"fmt"
	"math"
	"strings"

	"github.com/minhbau/ember/types"
)

type BoundaryCondition uint8

const (
	FixedValue BoundaryCondition = iota
	ZeroGradient
	ControlVolume
)

var BCNameMap = map[string]BoundaryCondition{
	"fixed":         FixedValue,
	"fixedvalue":    FixedValue,
	"zerogradient":  ZeroGradient,
	"zero":          ZeroGradient,
	"controlvolume": ControlVolume,
	"cv":            ControlVolume,
}

func NewBoundaryCondition(label string) (bc BoundaryCondition, err error) {
	var (
		ok bool
	)
	if bc, ok = BCNameMap[strings.ToLower(strings.TrimSpace(label))]; !ok {
		err = fmt.Errorf("unknown boundary condition %q", label)
	}
	return
}

func (bc BoundaryCondition) String() string {
	switch bc {
	case FixedValue:
		return "FixedValue"
	case ZeroGradient:
		return "ZeroGradient"
	case ControlVolume:
		return "ControlVolume"
	}
	return "Unknown"
}

// Grid is the shared, non-uniform 1D grid and its derived metrics. Operators
// hold a read-only pointer and compare Generation against the value captured
// at their last Resize.
type Grid struct {
	X      []float64 // node positions
	R      []float64 // X^Alpha
	RPhalf []float64 // geometric factor at j+1/2
	HH     []float64 // X[j+1]-X[j]
	Dlj    []float64 // control volume half-width sum around node j
	Cfm    []float64 // centered first derivative weights, j-1
	Cf     []float64 //                                    j
	Cfp    []float64 //                                    j+1

	Alpha           int // 0 planar, 1 cylindrical
	LeftBC, RightBC BoundaryCondition
	Generation      uint64
}

func NewGrid(x []float64, alpha int, leftBC, rightBC BoundaryCondition) (g *Grid, err error) {
	if alpha != 0 && alpha != 1 {
		return nil, fmt.Errorf("grid curvature alpha must be 0 or 1, have %d", alpha)
	}
	g = &Grid{
		Alpha:   alpha,
		LeftBC:  leftBC,
		RightBC: rightBC,
	}
	if err = g.Update(x); err != nil {
		return nil, err
	}
	return
}

// SimpleGrid builds a uniform grid of nPoints nodes on [xLeft, xRight].
func SimpleGrid(xLeft, xRight float64, nPoints, alpha int, leftBC, rightBC BoundaryCondition) (g *Grid) {
	var (
		err error
		x   = make([]float64, nPoints)
	)
	if nPoints < 3 {
		panic(fmt.Sprintf("grid needs at least 3 points, have %d", nPoints))
	}
	for j := range x {
		x[j] = xLeft + (xRight-xLeft)*float64(j)/float64(nPoints-1)
	}
	if g, err = NewGrid(x, alpha, leftBC, rightBC); err != nil {
		panic(err)
	}
	return
}

func (g *Grid) NPoints() int { return len(g.X) }

// Jj is the index of the last grid point.
func (g *Grid) Jj() int { return len(g.X) - 1 }

// Update replaces the node positions and recomputes every derived array.
// Either all arrays change or none do.
func (g *Grid) Update(x []float64) (err error) {
	var (
		n = len(x)
	)
	if n < 3 {
		return fmt.Errorf("%w: grid needs at least 3 points, have %d", types.ErrDimensionMismatch, n)
	}
	for j := 1; j < n; j++ {
		if !(x[j] > x[j-1]) {
			return fmt.Errorf("grid positions must be strictly increasing: x[%d]=%g, x[%d]=%g",
				j-1, x[j-1], j, x[j])
		}
	}
	if g.Alpha == 1 && x[0] < 0 {
		return fmt.Errorf("cylindrical grid must have x[0] >= 0, have %g", x[0])
	}
	var (
		X      = append([]float64(nil), x...)
		R      = make([]float64, n)
		RPhalf = make([]float64, n)
		HH     = make([]float64, n)
		Dlj    = make([]float64, n)
		Cfm    = make([]float64, n)
		Cf     = make([]float64, n)
		Cfp    = make([]float64, n)
		jj     = n - 1
		geom   = func(x float64) float64 { return math.Pow(x, float64(g.Alpha)) }
	)
	for j := 0; j < jj; j++ {
		HH[j] = X[j+1] - X[j]
		RPhalf[j] = geom(0.5 * (X[j] + X[j+1]))
	}
	// unused trailing entries keep array lengths uniform
	HH[jj] = HH[jj-1]
	for j := 0; j < n; j++ {
		R[j] = geom(X[j])
	}
	RPhalf[jj] = R[jj]
	Dlj[0] = 0.5 * HH[0]
	Dlj[jj] = 0.5 * HH[jj-1]
	for j := 1; j < jj; j++ {
		Dlj[j] = 0.5 * (X[j+1] - X[j-1])
		Cfp[j] = HH[j-1] / (HH[j] * (HH[j] + HH[j-1]))
		Cf[j] = (HH[j] - HH[j-1]) / (HH[j] * HH[j-1])
		Cfm[j] = -HH[j] / (HH[j-1] * (HH[j] + HH[j-1]))
	}
	g.X, g.R, g.RPhalf, g.HH, g.Dlj = X, R, RPhalf, HH, Dlj
	g.Cfm, g.Cf, g.Cfp = Cfm, Cf, Cfp
	g.Generation++
	return
}

// CenterVolume is the volume per unit area (planar) or per radian (cylindrical)
// of the first control volume, used by the ControlVolume left boundary.
func (g *Grid) CenterVolume() float64 {
	p := float64(g.Alpha + 1)
	return (math.Pow(g.X[1], p) - math.Pow(g.X[0], p)) / p
}

// RV2V converts the radial mass flux rV to V. Where R vanishes (the axis)
// the value is passed through unchanged so that V2RV inverts it exactly.
func (g *Grid) RV2V(rV, V []float64) {
	for j := range g.R {
		if g.Alpha == 0 || g.R[j] == 0 {
			V[j] = rV[j]
		} else {
			V[j] = rV[j] / g.R[j]
		}
	}
}

func (g *Grid) V2RV(V, rV []float64) {
	for j := range g.R {
		if g.Alpha == 0 || g.R[j] == 0 {
			rV[j] = V[j]
		} else {
			rV[j] = V[j] * g.R[j]
		}
	}
}

// Nearest returns the index of the node closest to x, preferring the lower
// index when two nodes are equidistant.
func (g *Grid) Nearest(x float64) (j int) {
	var (
		best = math.Inf(1)
	)
	for i, xi := range g.X {
		if d := math.Abs(xi - x); d < best {
			best, j = d, i
		}
	}
	return
}

// Crossing returns the first location where f crosses level, by linear
// interpolation between nodes.
func Crossing(x, f []float64, level float64) (xc float64, ok bool) {
	for j := 0; j < len(f)-1; j++ {
		a, b := f[j]-level, f[j+1]-level
		switch {
		case a == 0:
			return x[j], true
		case a*b < 0:
			return x[j] - a*(x[j+1]-x[j])/(b-a), true
		}
	}
	if n := len(f); n > 0 && f[n-1] == level {
		return x[n-1], true
	}
	return 0, false
}
