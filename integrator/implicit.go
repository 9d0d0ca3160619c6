package integrator

import (
	"errors"
	"fmt"
	"math"

	"github.com/minhbau/ember/types"
	"github.com/minhbau/ember/utils"
)

// Implicit is a variable step backward Euler integrator for stiff systems.
// Each step solves y_n - y - h*f(t+h, y_n) = 0 by Newton iteration on
// M = cj*I - df/dy with cj = 1/h. Systems implementing Preconditioned supply
// M themselves; otherwise a banded finite difference Jacobian with the
// configured half-bandwidths is used. The local error is estimated from the
// difference between the explicit Euler predictor and the corrector.
type Implicit struct {
	core
	pre    Preconditioned
	kl, ku int

	MaxNewtonIterations int
	NewtonTolerance     float64

	band               *utils.BandMatrix
	yPred, yNew, fNew  []float64
	res, delta, errVec []float64
}

func NewImplicit(sys System, kl, ku int) (im *Implicit) {
	im = &Implicit{
		kl:                  kl,
		ku:                  ku,
		MaxNewtonIterations: 4,
		NewtonTolerance:     0.1,
	}
	im.sys = sys
	if pre, ok := sys.(Preconditioned); ok {
		im.pre = pre
	}
	return
}

func (im *Implicit) allocate() {
	if len(im.yNew) == im.n {
		return
	}
	n := im.n
	im.yPred = make([]float64, n)
	im.yNew = make([]float64, n)
	im.fNew = make([]float64, n)
	im.res = make([]float64, n)
	im.delta = make([]float64, n)
	im.errVec = make([]float64, n)
	if im.pre == nil {
		kl, ku := im.bandwidth()
		im.band = utils.NewBandMatrix(n, kl, ku)
	}
}

func (im *Implicit) bandwidth() (kl, ku int) {
	kl, ku = im.kl, im.ku
	if kl < 0 || kl > im.n-1 {
		kl = im.n - 1
	}
	if ku < 0 || ku > im.n-1 {
		ku = im.n - 1
	}
	return
}

func (im *Implicit) IntegrateToTime(tf float64) error {
	im.allocate()
	return im.integrate(tf, false, 1, im.step)
}

func (im *Implicit) IntegrateOneStep(tf float64) error {
	im.allocate()
	return im.integrate(tf, true, 1, im.step)
}

func (im *Implicit) setup(t float64, cj float64) (err error) {
	im.Stats.Setups++
	if im.pre != nil {
		return im.pre.PreconditionerSetup(t, im.yNew, im.fNew, cj)
	}
	kl, ku := im.bandwidth()
	var jac utils.DOK
	if jac, err = NumericalJacobian(im.sys, t, im.yNew, im.fNew, kl, ku); err != nil {
		return
	}
	im.Stats.Evaluations += kl + ku + 1
	if err = jac.ToBand(im.band, -1, cj); err != nil {
		return
	}
	return im.band.Factorize()
}

func (im *Implicit) solve(t, cj float64) (err error) {
	if im.pre != nil {
		return im.pre.PreconditionerSolve(t, im.yNew, im.fNew, im.res, im.delta, cj, im.NewtonTolerance)
	}
	return im.band.Solve(im.res, im.delta)
}

func (im *Implicit) step(h float64) (accepted bool, hNext float64, err error) {
	var (
		n         = im.n
		tNew      = im.t + h
		cj        = 1 / h
		converged bool
		normPrev  float64
	)
	for i := 0; i < n; i++ {
		im.yPred[i] = im.y[i] + h*im.ydot[i]
	}
	copy(im.yNew, im.yPred)
	if err = im.eval(tNew, im.yNew, im.fNew); err != nil {
		return
	}
	if err = im.setup(tNew, cj); err != nil {
		if errors.Is(err, types.ErrConvergence) {
			// a singular Newton matrix is cured by a shorter step
			return false, 0.25 * h, nil
		}
		return false, 0, fmt.Errorf("preconditioner setup at t=%g: %w", tNew, err)
	}
	for iter := 0; iter < im.MaxNewtonIterations; iter++ {
		for i := 0; i < n; i++ {
			im.res[i] = im.fNew[i] - cj*(im.yNew[i]-im.y[i])
		}
		if err = im.solve(tNew, cj); err != nil {
			return false, 0, fmt.Errorf("preconditioner solve at t=%g: %w", tNew, err)
		}
		for i := 0; i < n; i++ {
			im.yNew[i] += im.delta[i]
		}
		if err = im.eval(tNew, im.yNew, im.fNew); err != nil {
			return
		}
		norm := im.wrmsNorm(im.delta, im.yNew)
		if norm <= im.NewtonTolerance {
			converged = true
			break
		}
		if iter > 0 && norm > 0.9*normPrev {
			break
		}
		normPrev = norm
	}
	if !converged {
		return false, 0.25 * h, nil
	}
	for i := 0; i < n; i++ {
		im.errVec[i] = 0.5 * (im.yNew[i] - im.yPred[i])
	}
	errNorm := im.wrmsNorm(im.errVec, im.yNew)
	if errNorm > 1 {
		return false, h * math.Max(0.2, 0.9/math.Sqrt(errNorm)), nil
	}
	copy(im.y, im.yNew)
	copy(im.ydot, im.fNew)
	if errNorm < 1.e-10 {
		hNext = 4 * h
	} else {
		hNext = h * math.Min(4, math.Max(0.2, 0.9/math.Sqrt(errNorm)))
	}
	return true, hNext, nil
}
