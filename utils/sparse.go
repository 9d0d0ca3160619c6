package utils

import (
	"fmt"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

// DOK holds a sparse matrix assembled entry by entry, used for numerically
// estimated Jacobians.
type DOK struct {
	M    *sparse.DOK
	name string
}

func NewDOK(nr, nc int, name ...string) (R DOK) {
	R = DOK{
		M:    sparse.NewDOK(nr, nc),
		name: "unnamed",
	}
	if len(name) != 0 {
		R.name = name[0]
	}
	return
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m DOK) Dims() (r, c int)    { return m.M.Dims() }
func (m DOK) At(i, j int) float64 { return m.M.At(i, j) }
func (m DOK) T() mat.Matrix       { return m.M.T() }

func (m DOK) Set(i, j int, v float64) {
	if v == 0 {
		return
	}
	m.M.Set(i, j, v)
}

// Bandwidth reports the lower and upper bandwidth of the stored entries.
func (m DOK) Bandwidth() (kl, ku int) {
	m.M.DoNonZero(func(i, j int, v float64) {
		if i-j > kl {
			kl = i - j
		}
		if j-i > ku {
			ku = j - i
		}
	})
	return
}

// ToBand copies the entries into B after scaling by alpha and adding diag to
// the main diagonal, i.e. B = diag*I + alpha*m. Entries outside B's band are
// an error.
func (m DOK) ToBand(B *BandMatrix, alpha, diag float64) (err error) {
	var (
		n, _   = B.Dims()
		kl, ku = B.Bandwidth()
	)
	if r, c := m.Dims(); r != n || c != n {
		return fmt.Errorf("%s: cannot copy %dx%d into band of order %d", m.name, r, c, n)
	}
	B.Zero()
	for i := 0; i < n; i++ {
		B.Set(i, i, diag)
	}
	m.M.DoNonZero(func(i, j int, v float64) {
		if i-j > kl || j-i > ku {
			if err == nil {
				err = fmt.Errorf("%s: entry (%d,%d) outside band kl=%d ku=%d", m.name, i, j, kl, ku)
			}
			return
		}
		B.Add(i, j, alpha*v)
	})
	return
}
