package Flame1D

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"

	"github.com/minhbau/ember/Grid1D"
	"github.com/minhbau/ember/readfiles"
)

// below this temperature rise [K] there is no flame to locate
const minTemperatureRise = 1.e-3

// HeatReleaseRate is the integrated heat release rate [W/m^2].
func (f *FlameSystem) HeatReleaseRate() float64 {
	return integrate.Trapezoidal(f.Grid.X, f.HeatRelease)
}

// ConsumptionSpeed is the integrated heat release divided by the enthalpy
// rise of the unburned mixture, rhoLeft cpLeft (Tb - Tu) [m/s].
func (f *FlameSystem) ConsumptionSpeed() float64 {
	dT := f.T[f.Grid.Jj()] - f.Tleft
	if math.Abs(dT) < minTemperatureRise {
		return 0
	}
	return f.HeatReleaseRate() / (f.RhoLeft * f.CpLeft * dT)
}

// FlamePosition is the heat release weighted mean position. Without heat
// release it falls back to the midpoint isotherm between the two ends, and
// ok is false when the ends share a temperature.
func (f *FlameSystem) FlamePosition() (x float64, ok bool) {
	var (
		X = f.Grid.X
		q = f.HeatRelease
	)
	if total := integrate.Trapezoidal(X, q); total > 0 {
		xq := floats.MulTo(make([]float64, len(X)), X, q)
		return integrate.Trapezoidal(X, xq) / total, true
	}
	tL, tR := f.T[0], f.T[f.Grid.Jj()]
	if math.Abs(tR-tL) < minTemperatureRise {
		return 0, false
	}
	return Grid1D.Crossing(X, f.T, 0.5*(tL+tR))
}

func (f *FlameSystem) MaxTemperature() float64 { return floats.Max(f.T) }

// Profile returns a copy of the current state for output.
func (f *FlameSystem) Profile() (p *readfiles.Profile) {
	cp := func(v []float64) []float64 { return append([]float64(nil), v...) }
	p = &readfiles.Profile{
		Title:       f.Params.Title,
		Time:        f.Time,
		Curvature:   f.Grid.Alpha,
		X:           cp(f.Grid.X),
		U:           cp(f.U),
		T:           cp(f.T),
		V:           cp(f.V),
		Species:     make([]string, f.nSpec),
		Y:           copyRows(f.Y),
		HeatRelease: cp(f.HeatRelease),
	}
	for k := range p.Species {
		p.Species[k] = f.Gas.SpeciesName(k)
	}
	return
}

// LoadProfile replaces the grid and state with a saved profile. Species
// missing from the profile start at zero.
func (f *FlameSystem) LoadProfile(p *readfiles.Profile) (err error) {
	if err = p.Validate(); err != nil {
		return
	}
	if p.Curvature != f.Grid.Alpha {
		return fmt.Errorf("profile curvature %d does not match grid curvature %d", p.Curvature, f.Grid.Alpha)
	}
	index := make([]int, len(p.Species))
	for i, name := range p.Species {
		if index[i] = f.Gas.SpeciesIndex(name); index[i] < 0 {
			return fmt.Errorf("profile species %q is not in the mechanism", name)
		}
	}
	if err = f.Grid.Update(p.X); err != nil {
		return
	}
	n := p.NPoints()
	f.allocate(n)
	copy(f.U, p.U)
	copy(f.T, p.T)
	copy(f.V, p.V)
	for i, k := range index {
		copy(f.Y[k], p.Y[i])
	}
	f.Time = p.Time
	f.resizeOperators()
	f.updateDensity()
	if err = f.setupContinuity(); err != nil {
		return
	}
	return f.evaluate(context.Background())
}
