package Flame1D

import "github.com/minhbau/ember/InputParameters"

// Ramp holds Initial until T0, then moves linearly to Final over Dt.
type Ramp struct {
	Initial, Final float64
	T0, Dt         float64
}

func NewRamp(rp InputParameters.RampParameters) Ramp {
	return Ramp{Initial: rp.Initial, Final: rp.Final, T0: rp.T0, Dt: rp.Dt}
}

func (r Ramp) Value(t float64) float64 {
	switch {
	case t <= r.T0:
		return r.Initial
	case t >= r.T0+r.Dt:
		return r.Final
	}
	return r.Initial + (r.Final-r.Initial)*(t-r.T0)/r.Dt
}

func (r Ramp) Derivative(t float64) float64 {
	if r.Dt <= 0 || t < r.T0 || t >= r.T0+r.Dt {
		return 0
	}
	return (r.Final - r.Initial) / r.Dt
}

// StrainFunction is the imposed strain rate a(t).
type StrainFunction struct {
	Ramp
}

func (s StrainFunction) A(t float64) float64    { return s.Value(t) }
func (s StrainFunction) DaDt(t float64) float64 { return s.Derivative(t) }

// PositionController is a PI controller holding the flame at a target
// location by adjusting the inlet mass flux.
type PositionController struct {
	Target        Ramp
	Kp, Ki        float64
	IntegralError float64
}

// Update integrates the position error over dt and returns the new left
// boundary mass flux.
func (pc *PositionController) Update(t, dt, xFlame, rhoLeft float64) (rVzero float64) {
	err := pc.Target.Value(t) - xFlame
	pc.IntegralError += err * dt
	return rhoLeft * pc.Kp * (err + pc.Ki*pc.IntegralError)
}
