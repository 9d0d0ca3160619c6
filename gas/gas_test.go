package gas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhbau/ember/types"
)

func TestMechanismValidation(t *testing.T) {
	_, err := ParseMechanism([]byte(`species: [{name: F, molecularWeight: 16, cp: 1400}, {name: F, molecularWeight: 16, cp: 1400}]`))
	assert.Error(t, err)

	fixed := []byte(`
name: one-step
species:
  - {name: F, molecularWeight: 16, cp: 1400}
  - {name: O, molecularWeight: 32, cp: 1100}
  - {name: P, molecularWeight: 48, cp: 1300, hf: -6.0e8}
reactions:
  - {equation: "F + O => P", reactants: {F: 1, O: 1}, products: {P: 1}, A: 1.0e9, Ea: 1.2e8}
`)
	m, err := ParseMechanism(fixed)
	require.NoError(t, err)
	assert.Equal(t, 101325., m.Pressure)
	assert.Equal(t, 2, m.SpeciesIndex("P"))

	unbalanced := []byte(`
species:
  - {name: F, molecularWeight: 16, cp: 1400}
  - {name: P, molecularWeight: 40, cp: 1300}
reactions:
  - {equation: "F => P", reactants: {F: 1}, products: {P: 1}, A: 1.0}
`)
	_, err = ParseMechanism(unbalanced)
	assert.Error(t, err)

	// unquoted N and Y are YAML 1.1 booleans
	_, err = ParseMechanism([]byte(`species: [{name: N, molecularWeight: 14, cp: 1000}]`))
	assert.ErrorContains(t, err, "YAML boolean")
	m, err = ParseMechanism([]byte(`species: [{name: "N", molecularWeight: 14, cp: 1000}]`))
	require.NoError(t, err)
	assert.Equal(t, 0, m.SpeciesIndex("N"))
}

func newTestGas(t *testing.T) *IdealGasMixture {
	m, err := ParseMechanism([]byte(`
name: one-step
species:
  - {name: F, molecularWeight: 16, cp: 1400}
  - {name: O, molecularWeight: 32, cp: 1100, lewis: 1.1}
  - {name: P, molecularWeight: 48, cp: 1300, hf: -6.0e8, thermalDiffusionRatio: 0.1}
  - {name: N2, molecularWeight: 28, cp: 1100}
reactions:
  - {equation: "F + O => P", reactants: {F: 1, O: 1}, products: {P: 1}, A: 1.0e9, Ea: 1.2e8}
`))
	require.NoError(t, err)
	g, err := NewIdealGasMixture(m)
	require.NoError(t, err)
	return g
}

func TestIdealGasProperties(t *testing.T) {
	g := newTestGas(t)
	Y := []float64{0.05, 0.2, 0, 0.75}
	require.NoError(t, g.SetStateMass(Y, 1500))

	wmx := MixtureWeight(g.MolecularWeights(), Y)
	assert.InDelta(t, wmx, g.MixtureMolecularWeight(), 1.e-12)
	assert.InDelta(t, 101325*wmx/(GasConstant*1500), g.Density(), 1.e-12)
	assert.InDelta(t, 0.05*1400+0.2*1100+0.75*1100, g.SpecificHeatCapacity(), 1.e-9)
	assert.InDelta(t, 1.8e-5*math.Pow(5, 0.7), g.Viscosity(), 1.e-15)

	wDot := make([]float64, 4)
	g.NetProductionRates(wDot)
	assert.Greater(t, wDot[2], 0.)
	assert.Less(t, wDot[0], 0.)
	// mass is conserved by the kinetics
	var massRate float64
	for k, w := range g.MolecularWeights() {
		massRate += wDot[k] * w
	}
	assert.InDelta(t, 0, massRate, 1.e-9*math.Abs(wDot[2]*48))

	hk := make([]float64, 4)
	g.Enthalpies(hk)
	assert.InDelta(t, -6.0e8+1300*48*(1500-298.15), hk[2], 1.e-3)

	Dkt := make([]float64, 4)
	g.ThermalDiffusionCoefficients(Dkt)
	assert.Equal(t, 0., Dkt[2]) // Y_P is zero
}

func TestIdealGasErrorsAndClones(t *testing.T) {
	g := newTestGas(t)
	err := g.SetStateMass([]float64{0.1, 0.2, 0.3, 0.4}, -1)
	assert.ErrorIs(t, err, types.ErrPropertyEvaluation)
	err = g.SetStateMass([]float64{0.1, 0.2, 0.3}, 300)
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)
	err = g.SetStateMass([]float64{math.NaN(), 0.2, 0.3, 0.5}, 300)
	assert.ErrorIs(t, err, types.ErrPropertyEvaluation)

	require.NoError(t, g.SetStateMass([]float64{0, 0, 0, 1}, 300))
	c := g.Clone()
	require.NoError(t, c.SetStateMass([]float64{0, 0, 0, 1}, 600))
	assert.InDelta(t, 2*c.Density(), g.Density(), 1.e-12)
}
