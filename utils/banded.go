package utils

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/mat"
)

// BandMatrix is a square banded matrix that can be LU factorised in place.
// Factorisation does not pivot, so the band never fills in; it is intended
// for the diagonally dominant iteration matrices (cj*I - J) of the diffusion
// operators.
type BandMatrix struct {
	M          *mat.BandDense
	factorized bool
}

func NewBandMatrix(n, kl, ku int) (B *BandMatrix) {
	if n <= 0 || kl < 0 || ku < 0 {
		panic(fmt.Sprintf("invalid band matrix shape n=%d kl=%d ku=%d", n, kl, ku))
	}
	B = &BandMatrix{
		M: mat.NewBandDense(n, n, kl, ku, nil),
	}
	return
}

func (B *BandMatrix) Dims() (r, c int)        { return B.M.Dims() }
func (B *BandMatrix) At(i, j int) float64     { return B.M.At(i, j) }
func (B *BandMatrix) Bandwidth() (kl, ku int) { return B.M.Bandwidth() }

func (B *BandMatrix) raw() blas64.Band { return B.M.RawBand() }

// Zero clears all band entries and the factorised flag.
func (B *BandMatrix) Zero() {
	var (
		rb = B.raw()
	)
	for i := range rb.Data {
		rb.Data[i] = 0
	}
	B.factorized = false
}

// Set assigns element (i,j), which must lie within the band.
func (B *BandMatrix) Set(i, j int, v float64) {
	B.M.SetBand(i, j, v)
	B.factorized = false
}

func (B *BandMatrix) Add(i, j int, v float64) {
	B.M.SetBand(i, j, B.M.At(i, j)+v)
	B.factorized = false
}

// Factorize replaces the matrix with its LU factors (unit lower triangle
// implicit).
func (B *BandMatrix) Factorize() (err error) {
	var (
		rb     = B.raw()
		n      = rb.Rows
		kl, ku = rb.KL, rb.KU
		at     = func(i, j int) int { return i*rb.Stride + j + kl - i }
	)
	for k := 0; k < n; k++ {
		pivot := rb.Data[at(k, k)]
		if pivot == 0 || math.IsNaN(pivot) {
			return fmt.Errorf("zero pivot at row %d in banded factorization", k)
		}
		iMax := min(n-1, k+kl)
		jMax := min(n-1, k+ku)
		for i := k + 1; i <= iMax; i++ {
			lik := rb.Data[at(i, k)] / pivot
			rb.Data[at(i, k)] = lik
			if lik == 0 {
				continue
			}
			for j := k + 1; j <= jMax; j++ {
				rb.Data[at(i, j)] -= lik * rb.Data[at(k, j)]
			}
		}
	}
	B.factorized = true
	return
}

// Solve computes x from the factorised matrix; b and x may alias.
func (B *BandMatrix) Solve(b, x []float64) (err error) {
	var (
		rb     = B.raw()
		n      = rb.Rows
		kl, ku = rb.KL, rb.KU
		at     = func(i, j int) int { return i*rb.Stride + j + kl - i }
	)
	if !B.factorized {
		return fmt.Errorf("band matrix solve called before factorization")
	}
	if len(b) != n || len(x) != n {
		return fmt.Errorf("band solve length mismatch: n=%d len(b)=%d len(x)=%d", n, len(b), len(x))
	}
	copy(x, b)
	for i := 1; i < n; i++ {
		for j := max(0, i-kl); j < i; j++ {
			x[i] -= rb.Data[at(i, j)] * x[j]
		}
	}
	for i := n - 1; i >= 0; i-- {
		for j := i + 1; j <= min(n-1, i+ku); j++ {
			x[i] -= rb.Data[at(i, j)] * x[j]
		}
		x[i] /= rb.Data[at(i, i)]
	}
	return
}
