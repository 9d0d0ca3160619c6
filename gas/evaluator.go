package gas

// GasConstant is the universal gas constant [J/kmol*K].
const GasConstant = 8314.46261815324

// Evaluator is the thermochemistry and transport property contract used by
// every operator. All accessors are pure functions of the state given to the
// most recent SetStateMass call, so an Evaluator must not be shared between
// goroutines; use Clone to give each worker its own instance.
type Evaluator interface {
	NSpecies() int
	SpeciesName(k int) string
	SpeciesIndex(name string) int
	Pressure() float64
	MolecularWeights() []float64 // [kg/kmol], read only

	SetStateMass(Y []float64, T float64) error

	Density() float64                // [kg/m^3]
	MixtureMolecularWeight() float64 // [kg/kmol]
	Viscosity() float64              // [Pa*s]
	ThermalConductivity() float64    // [W/m*K]
	SpecificHeatCapacity() float64   // [J/kg*K]

	WeightedDiffusionCoefficients(rhoD []float64) // rho*Dkm [kg/m*s]
	ThermalDiffusionCoefficients(Dkt []float64)   // [kg/m*s]
	SpecificHeatCapacities(cpSpec []float64)      // [J/kmol*K]
	Enthalpies(hk []float64)                      // [J/kmol]
	NetProductionRates(wDot []float64)            // [kmol/m^3*s]

	Clone() Evaluator
}

// MixtureWeight returns 1/sum(Y_k/W_k).
func MixtureWeight(W, Y []float64) float64 {
	var (
		sum float64
	)
	for k := range W {
		sum += Y[k] / W[k]
	}
	return 1 / sum
}
