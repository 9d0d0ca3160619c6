package gas

import (
	"fmt"
	"math"

	"github.com/minhbau/ember/types"
)

type compiledReaction struct {
	A, B, Ea float64
	orders   []float64 // per species, zero for non participants
	nu       []float64 // net stoichiometric coefficient per species
}

// IdealGasMixture is a constant-cp ideal gas with power-law transport and
// irreversible Arrhenius kinetics. The mechanism data are shared between
// clones; the state is per instance.
type IdealGasMixture struct {
	mech      *Mechanism
	W         []float64
	reactions []compiledReaction

	// state
	T, rho, wmx, cp float64
	Y, C            []float64
}

func NewIdealGasMixture(m *Mechanism) (g *IdealGasMixture, err error) {
	if err = m.Validate(); err != nil {
		return nil, err
	}
	var (
		nSp = len(m.Species)
	)
	g = &IdealGasMixture{
		mech: m,
		W:    make([]float64, nSp),
	}
	for k, sp := range m.Species {
		g.W[k] = sp.MolecularWeight
	}
	for _, r := range m.Reactions {
		cr := compiledReaction{
			A:      r.A,
			B:      r.B,
			Ea:     r.Ea,
			orders: make([]float64, nSp),
			nu:     make([]float64, nSp),
		}
		for name, nu := range r.Reactants {
			k := m.SpeciesIndex(name)
			cr.nu[k] -= nu
			cr.orders[k] = nu
		}
		for name, nu := range r.Products {
			cr.nu[m.SpeciesIndex(name)] += nu
		}
		for name, order := range r.Orders {
			cr.orders[m.SpeciesIndex(name)] = order
		}
		g.reactions = append(g.reactions, cr)
	}
	g.allocate()
	return
}

func (g *IdealGasMixture) allocate() {
	g.Y = make([]float64, len(g.W))
	g.C = make([]float64, len(g.W))
}

func (g *IdealGasMixture) Clone() Evaluator {
	clone := &IdealGasMixture{
		mech:      g.mech,
		W:         g.W,
		reactions: g.reactions,
	}
	clone.allocate()
	return clone
}

func (g *IdealGasMixture) NSpecies() int                   { return len(g.W) }
func (g *IdealGasMixture) SpeciesName(k int) string        { return g.mech.Species[k].Name }
func (g *IdealGasMixture) SpeciesIndex(name string) int    { return g.mech.SpeciesIndex(name) }
func (g *IdealGasMixture) Pressure() float64               { return g.mech.Pressure }
func (g *IdealGasMixture) MolecularWeights() []float64     { return g.W }
func (g *IdealGasMixture) Density() float64                { return g.rho }
func (g *IdealGasMixture) MixtureMolecularWeight() float64 { return g.wmx }
func (g *IdealGasMixture) SpecificHeatCapacity() float64   { return g.cp }

// SetStateMass sets temperature and mass fractions. Small negative mass
// fractions produced by the integrators are accepted as given; states that
// cannot be evaluated return ErrPropertyEvaluation.
func (g *IdealGasMixture) SetStateMass(Y []float64, T float64) (err error) {
	if len(Y) != len(g.W) {
		return fmt.Errorf("%w: %d mass fractions for %d species", types.ErrDimensionMismatch, len(Y), len(g.W))
	}
	if !(T > 0) || math.IsInf(T, 0) {
		return fmt.Errorf("%w: temperature %g", types.ErrPropertyEvaluation, T)
	}
	var (
		sum float64
	)
	g.cp = 0
	for k, y := range Y {
		if math.IsNaN(y) || math.IsInf(y, 0) {
			return fmt.Errorf("%w: Y[%d] = %g", types.ErrPropertyEvaluation, k, y)
		}
		g.Y[k] = y
		sum += y / g.W[k]
		g.cp += y * g.mech.Species[k].Cp
	}
	if !(sum > 0) || !(g.cp > 0) {
		return fmt.Errorf("%w: non-physical composition (sum Y/W = %g)", types.ErrPropertyEvaluation, sum)
	}
	g.T = T
	g.wmx = 1 / sum
	g.rho = g.mech.Pressure * g.wmx / (GasConstant * T)
	for k := range g.C {
		g.C[k] = g.rho * g.Y[k] / g.W[k]
	}
	return
}

func (g *IdealGasMixture) transportScale() float64 {
	return math.Pow(g.T/g.mech.T0, g.mech.Exponent)
}

func (g *IdealGasMixture) Viscosity() float64 {
	return g.mech.Mu0 * g.transportScale()
}

func (g *IdealGasMixture) ThermalConductivity() float64 {
	return g.mech.Lambda0 * g.transportScale()
}

func (g *IdealGasMixture) WeightedDiffusionCoefficients(rhoD []float64) {
	alpha := g.ThermalConductivity() / g.cp
	for k, sp := range g.mech.Species {
		rhoD[k] = alpha / sp.Lewis
	}
}

func (g *IdealGasMixture) ThermalDiffusionCoefficients(Dkt []float64) {
	alpha := g.ThermalConductivity() / g.cp
	for k, sp := range g.mech.Species {
		Dkt[k] = sp.ThermalDiffusionRatio * alpha / sp.Lewis * g.Y[k]
	}
}

func (g *IdealGasMixture) SpecificHeatCapacities(cpSpec []float64) {
	for k, sp := range g.mech.Species {
		cpSpec[k] = sp.Cp * sp.MolecularWeight
	}
}

func (g *IdealGasMixture) Enthalpies(hk []float64) {
	for k, sp := range g.mech.Species {
		hk[k] = sp.Hf + sp.Cp*sp.MolecularWeight*(g.T-g.mech.TRef)
	}
}

func (g *IdealGasMixture) NetProductionRates(wDot []float64) {
	for k := range wDot {
		wDot[k] = 0
	}
	for _, r := range g.reactions {
		q := r.A * math.Pow(g.T, r.B) * math.Exp(-r.Ea/(GasConstant*g.T))
		for k, order := range r.orders {
			if order == 0 {
				continue
			}
			q *= math.Pow(math.Max(g.C[k], 0), order)
		}
		if q == 0 {
			continue
		}
		for k, nu := range r.nu {
			wDot[k] += nu * q
		}
	}
}
