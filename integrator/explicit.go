package integrator

import (
	"math"
)

// Dormand-Prince 5(4) tableau, the pair used by ode45.
var (
	dpC = [7]float64{0, 1. / 5., 3. / 10., 4. / 5., 8. / 9., 1, 1}
	dpA = [7][6]float64{
		{},
		{1. / 5.},
		{3. / 40., 9. / 40.},
		{44. / 45., -56. / 15., 32. / 9.},
		{19372. / 6561., -25360. / 2187., 64448. / 6561., -212. / 729.},
		{9017. / 3168., -355. / 33., 46732. / 5247., 49. / 176., -5103. / 18656.},
		{35. / 384., 0, 500. / 1113., 125. / 192., -2187. / 6784., 11. / 84.},
	}
	dpB = [7]float64{35. / 384., 0, 500. / 1113., 125. / 192., -2187. / 6784., 11. / 84., 0}
	// B - Bhat, the embedded fourth order error weights
	dpE = [7]float64{
		35./384. - 5179./57600.,
		0,
		500./1113. - 7571./16695.,
		125./192. - 393./640.,
		-2187./6784. + 92097./339200.,
		11./84. - 187./2100.,
		-1. / 40.,
	}
)

// Explicit is an adaptive Dormand-Prince 5(4) integrator for non-stiff
// systems. The last stage is evaluated at the accepted point and reused as
// the first stage of the next step.
type Explicit struct {
	core
	k      [7][]float64
	yStage []float64
	yNew   []float64
	errVec []float64
}

func NewExplicit(sys System) (ex *Explicit) {
	ex = &Explicit{}
	ex.sys = sys
	return
}

func (ex *Explicit) allocate() {
	if len(ex.yNew) == ex.n {
		return
	}
	for s := range ex.k {
		ex.k[s] = make([]float64, ex.n)
	}
	ex.yStage = make([]float64, ex.n)
	ex.yNew = make([]float64, ex.n)
	ex.errVec = make([]float64, ex.n)
}

func (ex *Explicit) IntegrateToTime(tf float64) error {
	ex.allocate()
	return ex.integrate(tf, false, 5, ex.step)
}

func (ex *Explicit) IntegrateOneStep(tf float64) error {
	ex.allocate()
	return ex.integrate(tf, true, 5, ex.step)
}

func (ex *Explicit) step(h float64) (accepted bool, hNext float64, err error) {
	var (
		n = ex.n
	)
	copy(ex.k[0], ex.ydot)
	for s := 1; s < 7; s++ {
		for i := 0; i < n; i++ {
			acc := ex.y[i]
			for m := 0; m < s; m++ {
				acc += h * dpA[s][m] * ex.k[m][i]
			}
			ex.yStage[i] = acc
		}
		if err = ex.eval(ex.t+dpC[s]*h, ex.yStage, ex.k[s]); err != nil {
			return
		}
	}
	// stage 7 is evaluated at the fifth order solution
	copy(ex.yNew, ex.yStage)
	for i := 0; i < n; i++ {
		var e float64
		for s := 0; s < 7; s++ {
			e += dpE[s] * ex.k[s][i]
		}
		ex.errVec[i] = h * e
	}
	errNorm := ex.wrmsNorm(ex.errVec, ex.yNew)
	if errNorm > 1 {
		hNext = h * math.Max(0.2, 0.9*math.Pow(errNorm, -0.2))
		return false, hNext, nil
	}
	copy(ex.y, ex.yNew)
	copy(ex.ydot, ex.k[6])
	if errNorm < 1.e-10 {
		hNext = 5 * h
	} else {
		hNext = h * math.Min(5, math.Max(0.2, 0.9*math.Pow(errNorm, -0.2)))
	}
	return true, hNext, nil
}
