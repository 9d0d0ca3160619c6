package InputParameters

import (
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/ghodss/yaml"
)

type BoundaryState struct {
	T float64            `json:"T"`
	Y map[string]float64 `json:"MassFractions"` // normalised on use
}

// Ramp parameters: constant at Initial until T0, linear to Final over Dt.
type RampParameters struct {
	Initial float64 `json:"Initial"`
	Final   float64 `json:"Final"`
	T0      float64 `json:"T0"`
	Dt      float64 `json:"Dt"`
}

type FlamePositionParameters struct {
	Control bool           `json:"Control"`
	Target  RampParameters `json:"Target"`
	Kp      float64        `json:"ProportionalGain"`
	Ki      float64        `json:"IntegralGain"`
}

type ToleranceParameters struct {
	RelTol  float64 `json:"RelTol"`
	AbsTolU float64 `json:"AbsTolU"`
	AbsTolT float64 `json:"AbsTolT"`
	AbsTolW float64 `json:"AbsTolW"`
	AbsTolY float64 `json:"AbsTolY"`
}

// Quasi2DParameters tabulates the axial and radial velocities over position
// and time, Vz[i][j] at (X[i], Time[j]). Species are then convected with
// vz/vr instead of the computed mass flux.
type Quasi2DParameters struct {
	X    []float64   `json:"X"`
	Time []float64   `json:"Time"`
	Vz   [][]float64 `json:"Vz"`
	Vr   [][]float64 `json:"Vr"`
}

// FlameParameters is the YAML flame input file.
type FlameParameters struct {
	Title         string  `json:"Title"`
	MechanismFile string  `json:"MechanismFile"`
	XLeft         float64 `json:"XLeft"`
	XRight        float64 `json:"XRight"`
	NPoints       int     `json:"NPoints"`
	Curvature     int     `json:"Curvature"` // 0 planar, 1 cylindrical
	LeftBC        string  `json:"LeftBC"`
	RightBC       string  `json:"RightBC"`
	ContinuityBC  string  `json:"ContinuityBC"`
	// location of the stagnation point for the Zero and Temp continuity BCs
	StagnationPoint float64 `json:"StagnationPoint"`
	LeftMassFlux    float64 `json:"LeftMassFlux"`

	Unburned      BoundaryState `json:"Unburned"`
	Burned        BoundaryState `json:"Burned"`
	InitialCenter float64       `json:"InitialCenter"`
	InitialWidth  float64       `json:"InitialWidth"`

	Strain        RampParameters          `json:"Strain"`
	FlamePosition FlamePositionParameters `json:"FlamePosition"`

	TStart             float64             `json:"TStart"`
	TEnd               float64             `json:"TEnd"`
	Dt                 float64             `json:"Dt"`
	SplittingMethod    string              `json:"SplittingMethod"` // balanced or simple
	Tolerances         ToleranceParameters `json:"Tolerances"`
	RegridStepInterval int                 `json:"RegridStepInterval"`
	OutputStepInterval int                 `json:"OutputStepInterval"`
	SpeciesThreshold   float64             `json:"SpeciesThreshold"` // 0 disables trimming
	ProcLimit          int                 `json:"ProcLimit"`

	Quasi2D *Quasi2DParameters `json:"Quasi2D,omitempty"`
}

func ReadFlameParameters(fileName string) (fp *FlameParameters, err error) {
	var (
		data []byte
	)
	if data, err = os.ReadFile(fileName); err != nil {
		return
	}
	fp = &FlameParameters{}
	if err = fp.Parse(data); err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}
	return
}

func (fp *FlameParameters) Parse(data []byte) (err error) {
	if err = yaml.Unmarshal(data, fp); err != nil {
		return
	}
	fp.SetDefaults()
	return fp.Validate()
}

func (fp *FlameParameters) SetDefaults() {
	if fp.NPoints == 0 {
		fp.NPoints = 50
	}
	if fp.LeftBC == "" {
		fp.LeftBC = "FixedValue"
	}
	if fp.RightBC == "" {
		fp.RightBC = "ZeroGradient"
	}
	if fp.ContinuityBC == "" {
		fp.ContinuityBC = "Left"
	}
	if fp.SplittingMethod == "" {
		fp.SplittingMethod = "balanced"
	}
	if fp.InitialWidth == 0 {
		fp.InitialWidth = 0.1 * (fp.XRight - fp.XLeft)
	}
	if fp.InitialCenter == 0 {
		fp.InitialCenter = 0.5 * (fp.XLeft + fp.XRight)
	}
	if fp.StagnationPoint == 0 {
		fp.StagnationPoint = fp.InitialCenter
	}
	if fp.Dt == 0 {
		fp.Dt = 1.e-5
	}
	tol := &fp.Tolerances
	for _, p := range []struct {
		v   *float64
		def float64
	}{
		{&tol.RelTol, 1.e-6}, {&tol.AbsTolU, 1.e-5}, {&tol.AbsTolT, 1.e-8},
		{&tol.AbsTolW, 1.e-7}, {&tol.AbsTolY, 1.e-10},
	} {
		if *p.v == 0 {
			*p.v = p.def
		}
	}
	if fp.OutputStepInterval == 0 {
		fp.OutputStepInterval = 100
	}
}

func (fp *FlameParameters) Validate() (err error) {
	switch {
	case !(fp.XRight > fp.XLeft):
		err = fmt.Errorf("XRight (%g) must exceed XLeft (%g)", fp.XRight, fp.XLeft)
	case fp.NPoints < 3:
		err = fmt.Errorf("NPoints must be at least 3, have %d", fp.NPoints)
	case fp.Curvature != 0 && fp.Curvature != 1:
		err = fmt.Errorf("Curvature must be 0 or 1, have %d", fp.Curvature)
	case fp.Dt <= 0 || fp.TEnd < fp.TStart:
		err = fmt.Errorf("invalid time range [%g, %g] with Dt %g", fp.TStart, fp.TEnd, fp.Dt)
	case fp.SplittingMethod != "balanced" && fp.SplittingMethod != "simple":
		err = fmt.Errorf("unknown splitting method %q", fp.SplittingMethod)
	case fp.Unburned.T <= 0 || fp.Burned.T <= 0:
		err = fmt.Errorf("boundary temperatures must be positive")
	case len(fp.Unburned.Y) == 0 || len(fp.Burned.Y) == 0:
		err = fmt.Errorf("boundary compositions must be given")
	case fp.Strain.Dt < 0 || fp.FlamePosition.Target.Dt < 0:
		err = fmt.Errorf("ramp durations must be non-negative")
	case fp.SpeciesThreshold < 0:
		err = fmt.Errorf("SpeciesThreshold must be non-negative")
	case fp.Quasi2D != nil && (len(fp.Quasi2D.Vz) != len(fp.Quasi2D.X) || len(fp.Quasi2D.Vr) != len(fp.Quasi2D.X)):
		err = fmt.Errorf("Quasi2D velocity tables need one row per position, have %d/%d rows for %d positions",
			len(fp.Quasi2D.Vz), len(fp.Quasi2D.Vr), len(fp.Quasi2D.X))
	case fp.Quasi2D != nil && hasZero(fp.Quasi2D.Vr):
		err = fmt.Errorf("Quasi2D radial velocity must be non-zero")
	}
	return
}

func hasZero(m [][]float64) bool {
	for _, row := range m {
		for _, v := range row {
			if v == 0 {
				return true
			}
		}
	}
	return false
}

// MassFractions returns the composition as a vector in the order given by
// index, normalised to unit sum.
func (bs BoundaryState) MassFractions(nSpec int, index func(name string) int) (Y []float64, err error) {
	var (
		sum float64
	)
	Y = make([]float64, nSpec)
	for name, y := range bs.Y {
		k := index(name)
		if k < 0 {
			return nil, fmt.Errorf("unknown species %q in boundary composition", name)
		}
		if y < 0 || math.IsNaN(y) {
			return nil, fmt.Errorf("invalid mass fraction %g for %q", y, name)
		}
		Y[k] = y
		sum += y
	}
	if sum <= 0 {
		return nil, fmt.Errorf("boundary composition sums to %g", sum)
	}
	for k := range Y {
		Y[k] /= sum
	}
	return
}

func (fp *FlameParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", fp.Title)
	fmt.Printf("[%s]\t\t= Mechanism\n", fp.MechanismFile)
	fmt.Printf("[%8.5g, %8.5g]\t= Domain, %d points, curvature %d\n", fp.XLeft, fp.XRight, fp.NPoints, fp.Curvature)
	fmt.Printf("[%s, %s]\t= Boundary conditions, continuity [%s]\n", fp.LeftBC, fp.RightBC, fp.ContinuityBC)
	fmt.Printf("%8.5g\t\t= Dt, TEnd = %8.5g\n", fp.Dt, fp.TEnd)
	fmt.Printf("[%s]\t\t= Splitting method\n", fp.SplittingMethod)
	if fp.Quasi2D != nil {
		fmt.Printf("%dx%d\t\t= Quasi-2D velocity table\n", len(fp.Quasi2D.X), len(fp.Quasi2D.Time))
	}
	fmt.Printf("%8.5g -> %8.5g\t= Strain rate, ramp from t = %g over %g\n",
		fp.Strain.Initial, fp.Strain.Final, fp.Strain.T0, fp.Strain.Dt)
	for _, side := range []struct {
		name string
		bs   BoundaryState
	}{{"Unburned", fp.Unburned}, {"Burned", fp.Burned}} {
		keys := make([]string, 0, len(side.bs.Y))
		for k := range side.bs.Y {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Printf("%s: T = %8.3f\n", side.name, side.bs.T)
		for _, key := range keys {
			fmt.Printf("\tY[%s] = %v\n", key, side.bs.Y[key])
		}
	}
}
