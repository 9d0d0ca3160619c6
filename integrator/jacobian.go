package integrator

import (
	"fmt"
	"math"

	"github.com/minhbau/ember/types"
	"github.com/minhbau/ember/utils"
)

// NumericalJacobian forms df/dy at (t, y) by forward differences. Columns
// further apart than kl+ku are perturbed together, so a banded system costs
// kl+ku+1 evaluations regardless of size. f0 must hold f(t, y).
func NumericalJacobian(sys System, t float64, y, f0 []float64, kl, ku int) (J utils.DOK, err error) {
	var (
		n      = len(y)
		stride = kl + ku + 1
		yPert  = make([]float64, n)
		fPert  = make([]float64, n)
		dy     = make([]float64, n)
		sqEps  = math.Sqrt(2.220446049250313e-16)
	)
	if len(f0) != n {
		return J, fmt.Errorf("%w: len(f0)=%d, len(y)=%d", types.ErrDimensionMismatch, len(f0), n)
	}
	J = utils.NewDOK(n, n, "Jacobian")
	for group := 0; group < stride && group < n; group++ {
		copy(yPert, y)
		for j := group; j < n; j += stride {
			dy[j] = sqEps * math.Max(math.Abs(y[j]), 1)
			yPert[j] += dy[j]
		}
		if err = sys.F(t, yPert, fPert); err != nil {
			return
		}
		for j := group; j < n; j += stride {
			iMin, iMax := max(0, j-ku), min(n-1, j+kl)
			for i := iMin; i <= iMax; i++ {
				J.Set(i, j, (fPert[i]-f0[i])/dy[j])
			}
		}
	}
	return
}
