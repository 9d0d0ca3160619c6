package readfiles

import (
	"fmt"
	"os"

	"github.com/ghodss/yaml"
)

// Profile is a snapshot of the flame state on its grid, written as YAML and
// read back to restart a run.
type Profile struct {
	Title       string      `json:"Title,omitempty"`
	Time        float64     `json:"Time"`
	Curvature   int         `json:"Curvature"`
	X           []float64   `json:"X"`
	U           []float64   `json:"U"`
	T           []float64   `json:"T"`
	V           []float64   `json:"V,omitempty"`
	Species     []string    `json:"Species"`
	Y           [][]float64 `json:"MassFractions"` // Y[k][j]
	HeatRelease []float64   `json:"HeatRelease,omitempty"`
}

func (p *Profile) NPoints() int { return len(p.X) }

func (p *Profile) Validate() (err error) {
	n := len(p.X)
	if n < 3 {
		return fmt.Errorf("profile has %d points, need at least 3", n)
	}
	for j := 1; j < n; j++ {
		if !(p.X[j] > p.X[j-1]) {
			return fmt.Errorf("profile X is not increasing at index %d", j)
		}
	}
	check := func(name string, f []float64, optional bool) error {
		if optional && len(f) == 0 {
			return nil
		}
		if len(f) != n {
			return fmt.Errorf("profile %s has %d points, X has %d", name, len(f), n)
		}
		return nil
	}
	if err = check("U", p.U, false); err != nil {
		return
	}
	if err = check("T", p.T, false); err != nil {
		return
	}
	if err = check("V", p.V, true); err != nil {
		return
	}
	if err = check("HeatRelease", p.HeatRelease, true); err != nil {
		return
	}
	if len(p.Y) != len(p.Species) {
		return fmt.Errorf("profile has %d species names and %d mass fraction rows", len(p.Species), len(p.Y))
	}
	for k := range p.Y {
		if err = check("Y["+p.Species[k]+"]", p.Y[k], false); err != nil {
			return
		}
	}
	return
}

func WriteProfile(fileName string, p *Profile) (err error) {
	var (
		data []byte
	)
	if err = p.Validate(); err != nil {
		return
	}
	if data, err = yaml.Marshal(p); err != nil {
		return
	}
	return os.WriteFile(fileName, data, 0644)
}

func ReadProfile(fileName string) (p *Profile, err error) {
	var (
		data []byte
	)
	if data, err = os.ReadFile(fileName); err != nil {
		return
	}
	p = &Profile{}
	if err = yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}
	if err = p.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}
	return
}
