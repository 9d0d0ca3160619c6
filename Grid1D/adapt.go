package Grid1D

import (
	"fmt"

	"gonum.org/v1/gonum/interp"
)

// Adapter decides whether the grid should change given the current profiles.
// Implementations return the new node positions and changed=true to request
// a regrid; the caller remaps the state and resizes every operator.
type Adapter interface {
	Adapt(t float64, x []float64, fields [][]float64) (xNew []float64, changed bool, err error)
}

// Remap interpolates a profile defined on xOld onto xNew, holding end values
// constant outside the old domain.
func Remap(xOld, fOld, xNew []float64) (fNew []float64, err error) {
	var (
		pl interp.PiecewiseLinear
	)
	if len(xOld) != len(fOld) {
		return nil, fmt.Errorf("remap: len(x)=%d != len(f)=%d", len(xOld), len(fOld))
	}
	if err = pl.Fit(xOld, fOld); err != nil {
		return nil, fmt.Errorf("remap: %w", err)
	}
	fNew = make([]float64, len(xNew))
	for j, x := range xNew {
		fNew[j] = pl.Predict(x)
	}
	return
}
