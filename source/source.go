package source

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"

	"github.com/minhbau/ember/gas"
	"github.com/minhbau/ember/types"
)

// Strain carries the imposed strain rate a and its time derivative, with
// the left boundary density that scales the pressure gradient term.
type Strain struct {
	A, DaDt float64
	RhoLeft float64
}

// System is the chemical source term at a single grid point with state
// [U, T, Y_0 .. Y_K-1]:
//
//	dU/dt = rhoLeft/rho (a^2 + da/dt) - U^2 + cU
//	dT/dt = -sum(wdot_k h_k)/(rho cp) + cT
//	dY_k/dt = wdot_k W_k / rho + cY_k
//
// The Newton matrix is a dense finite difference Jacobian factorised by LU.
type System struct {
	gas   gas.Evaluator
	nSpec int
	W     []float64

	Strain Strain
	SplitU float64
	SplitT float64
	SplitY []float64

	// updated by F
	Rho, Cp, QDot float64

	wDot, hk []float64

	jac          *mat.Dense
	lu           mat.LU
	scale, z     []float64
	yPert, fPert []float64
	Jacobian     int // number of Jacobian evaluations
}

const epsilon = 2.220446049250313e-16

func NewSystem(g gas.Evaluator) (s *System) {
	var (
		nSpec = g.NSpecies()
		n     = nSpec + 2
	)
	s = &System{
		gas:    g,
		nSpec:  nSpec,
		W:      g.MolecularWeights(),
		SplitY: make([]float64, nSpec),
		wDot:   make([]float64, nSpec),
		hk:     make([]float64, nSpec),
		jac:    mat.NewDense(n, n, nil),
		scale:  make([]float64, n),
		z:      make([]float64, n),
		yPert:  make([]float64, n),
		fPert:  make([]float64, n),
	}
	return
}

func (s *System) NEquations() int { return s.nSpec + 2 }

func (s *System) F(t float64, y, ydot []float64) (err error) {
	if len(y) != s.NEquations() || len(ydot) != s.NEquations() {
		return fmt.Errorf("%w: source state length %d, want %d",
			types.ErrDimensionMismatch, len(y), s.NEquations())
	}
	var (
		U, T = y[0], y[1]
		Y    = y[2:]
	)
	if err = s.gas.SetStateMass(Y, T); err != nil {
		return
	}
	s.Rho = s.gas.Density()
	s.Cp = s.gas.SpecificHeatCapacity()
	s.gas.NetProductionRates(s.wDot)
	s.gas.Enthalpies(s.hk)

	s.QDot = 0
	for k := 0; k < s.nSpec; k++ {
		s.QDot -= s.wDot[k] * s.hk[k]
	}
	ydot[0] = s.Strain.RhoLeft/s.Rho*(s.Strain.A*s.Strain.A+s.Strain.DaDt) - U*U + s.SplitU
	ydot[1] = s.QDot/(s.Rho*s.Cp) + s.SplitT
	for k := 0; k < s.nSpec; k++ {
		ydot[k+2] = s.wDot[k]*s.W[k]/s.Rho + s.SplitY[k]
	}
	return
}

// PreconditionerSetup forms M = cj*I - J and factorises it. J is a forward
// difference estimate in the scaled variables z_i = y_i/s_i with
// s_i = max(|y_i|, 0.01); ydot must be f(t, y).
func (s *System) PreconditionerSetup(t float64, y, ydot []float64, cj float64) (err error) {
	var (
		n = s.NEquations()
	)
	for i := 0; i < n; i++ {
		s.scale[i] = math.Max(math.Abs(y[i]), 1.e-2)
		s.z[i] = y[i] / s.scale[i]
	}
	f := func(out, z []float64) {
		for i := range z {
			s.yPert[i] = y[i]
			if z[i] != s.z[i] {
				s.yPert[i] = z[i] * s.scale[i]
			}
		}
		if e := s.F(t, s.yPert, out); e != nil && err == nil {
			err = e
		}
	}
	fd.Jacobian(s.jac, f, s.z, &fd.JacobianSettings{
		Formula:     fd.Forward,
		OriginValue: ydot,
		Step:        math.Sqrt(epsilon),
	})
	if err != nil {
		return
	}
	for c := 0; c < n; c++ {
		for r := 0; r < n; r++ {
			v := -s.jac.At(r, c) / s.scale[c]
			if r == c {
				v += cj
			}
			s.jac.Set(r, c, v)
		}
	}
	s.Jacobian++
	s.lu.Factorize(s.jac)
	if cond := s.lu.Cond(); !(cond < 1/epsilon) {
		return fmt.Errorf("%w: source Newton matrix is singular, condition number %g",
			types.ErrConvergence, cond)
	}
	// leave the evaluator and the diagnostics at the unperturbed state
	return s.F(t, y, s.fPert)
}

func (s *System) PreconditionerSolve(t float64, y, ydot, rhs, out []float64, cj, delta float64) (err error) {
	var (
		n   = s.NEquations()
		dst = mat.NewVecDense(n, out)
	)
	if err = s.lu.SolveVecTo(dst, false, mat.NewVecDense(n, rhs)); err != nil {
		return fmt.Errorf("%w: source Newton matrix: %v", types.ErrConvergence, err)
	}
	return
}
