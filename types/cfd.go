package types

import "strings"

// OperatorKind tags the closed set of split operators. Every subsystem that
// can be handed to an integrator reports one of these.
type OperatorKind uint8

const (
	OP_None OperatorKind = iota
	OP_ConvectionUTW
	OP_ConvectionSpecies
	OP_DiffusionSpecies
	OP_DiffusionTemperature
	OP_DiffusionMomentum
	OP_Reaction
)

var (
	OperatorNameMap = map[string]OperatorKind{
		"convection-utw":        OP_ConvectionUTW,
		"convection-species":    OP_ConvectionSpecies,
		"diffusion-species":     OP_DiffusionSpecies,
		"diffusion-temperature": OP_DiffusionTemperature,
		"diffusion-momentum":    OP_DiffusionMomentum,
		"reaction":              OP_Reaction,
	}
	OperatorPrintNames = []string{"none", "convection-utw", "convection-species",
		"diffusion-species", "diffusion-temperature", "diffusion-momentum", "reaction"}
)

func NewOperatorKind(label string) (kind OperatorKind) {
	var (
		ok bool
	)
	if kind, ok = OperatorNameMap[strings.ToLower(strings.TrimSpace(label))]; !ok {
		kind = OP_None
	}
	return
}

func (kind OperatorKind) String() string {
	if int(kind) >= len(OperatorPrintNames) {
		return OperatorPrintNames[OP_None]
	}
	return OperatorPrintNames[kind]
}

// Diffusive reports whether the operator is integrated implicitly with a
// banded preconditioner.
func (kind OperatorKind) Diffusive() bool {
	switch kind {
	case OP_DiffusionSpecies, OP_DiffusionTemperature, OP_DiffusionMomentum:
		return true
	}
	return false
}
