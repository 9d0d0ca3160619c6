package gas

import (
	"fmt"
	"math"
	"os"

	"github.com/ghodss/yaml"
)

type Species struct {
	Name            string  `json:"name"`
	MolecularWeight float64 `json:"molecularWeight"` // [kg/kmol]
	Cp              float64 `json:"cp"`              // [J/kg*K], constant
	Hf              float64 `json:"hf"`              // formation enthalpy at TRef [J/kmol]
	Lewis           float64 `json:"lewis"`
	// Soret coefficient scale: Dkt = ThermalDiffusionRatio * rhoD * Y
	ThermalDiffusionRatio float64 `json:"thermalDiffusionRatio"`
}

// Reaction is an irreversible mass-action reaction with modified Arrhenius
// rate constant k = A * T^B * exp(-Ea/(Ru*T)), Ea in J/kmol.
type Reaction struct {
	Equation  string             `json:"equation"`
	Reactants map[string]float64 `json:"reactants"`
	Products  map[string]float64 `json:"products"`
	Orders    map[string]float64 `json:"orders"` // optional, defaults to reactant coefficients
	A         float64            `json:"A"`
	B         float64            `json:"b"`
	Ea        float64            `json:"Ea"`
}

type Mechanism struct {
	Name      string     `json:"name"`
	Pressure  float64    `json:"pressure"` // [Pa]
	TRef      float64    `json:"TRef"`
	Mu0       float64    `json:"mu0"`     // viscosity at T0 [Pa*s]
	Lambda0   float64    `json:"lambda0"` // conductivity at T0 [W/m*K]
	T0        float64    `json:"T0"`
	Exponent  float64    `json:"transportExponent"`
	Species   []Species  `json:"species"`
	Reactions []Reaction `json:"reactions"`
}

func ReadMechanism(fileName string) (m *Mechanism, err error) {
	var (
		data []byte
	)
	if data, err = os.ReadFile(fileName); err != nil {
		return nil, err
	}
	return ParseMechanism(data)
}

func ParseMechanism(data []byte) (m *Mechanism, err error) {
	m = &Mechanism{}
	if err = yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parsing mechanism: %w", err)
	}
	m.setDefaults()
	if err = m.Validate(); err != nil {
		return nil, err
	}
	return
}

func (m *Mechanism) setDefaults() {
	if m.Pressure == 0 {
		m.Pressure = 101325
	}
	if m.TRef == 0 {
		m.TRef = 298.15
	}
	if m.T0 == 0 {
		m.T0 = 300
	}
	if m.Exponent == 0 {
		m.Exponent = 0.7
	}
	if m.Mu0 == 0 {
		m.Mu0 = 1.8e-5
	}
	if m.Lambda0 == 0 {
		m.Lambda0 = 0.026
	}
	for i := range m.Species {
		if m.Species[i].Lewis == 0 {
			m.Species[i].Lewis = 1
		}
	}
}

func (m *Mechanism) SpeciesIndex(name string) int {
	for k, sp := range m.Species {
		if sp.Name == name {
			return k
		}
	}
	return -1
}

// Validate checks species data and that every reaction conserves mass.
func (m *Mechanism) Validate() (err error) {
	if len(m.Species) == 0 {
		return fmt.Errorf("mechanism %q has no species", m.Name)
	}
	seen := make(map[string]bool)
	for _, sp := range m.Species {
		if seen[sp.Name] {
			return fmt.Errorf("duplicate species %q", sp.Name)
		}
		seen[sp.Name] = true
		if sp.Name == "true" || sp.Name == "false" {
			return fmt.Errorf("species name %q was read as a YAML boolean, quote it in the mechanism file", sp.Name)
		}
		if sp.MolecularWeight <= 0 || sp.Cp <= 0 {
			return fmt.Errorf("species %q needs positive molecularWeight and cp", sp.Name)
		}
	}
	for _, r := range m.Reactions {
		var (
			massIn, massOut float64
		)
		for name, nu := range r.Reactants {
			k := m.SpeciesIndex(name)
			if k < 0 {
				return fmt.Errorf("reaction %q: unknown reactant %q", r.Equation, name)
			}
			massIn += nu * m.Species[k].MolecularWeight
		}
		for name, nu := range r.Products {
			k := m.SpeciesIndex(name)
			if k < 0 {
				return fmt.Errorf("reaction %q: unknown product %q", r.Equation, name)
			}
			massOut += nu * m.Species[k].MolecularWeight
		}
		for name := range r.Orders {
			if m.SpeciesIndex(name) < 0 {
				return fmt.Errorf("reaction %q: unknown species %q in orders", r.Equation, name)
			}
		}
		if math.Abs(massIn-massOut) > 1.e-6*math.Max(massIn, 1) {
			return fmt.Errorf("reaction %q does not conserve mass: %g -> %g", r.Equation, massIn, massOut)
		}
	}
	return
}
