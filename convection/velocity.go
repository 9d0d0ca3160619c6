package convection

import (
	"fmt"
	"sort"
)

// VelocityTable stores snapshots of the convective velocity V/rho recorded
// after each UTW step. Lookups interpolate linearly in time between the two
// bracketing snapshots and clamp outside the recorded interval. It is written
// only by the UTW integration and read concurrently by the species systems.
type VelocityTable struct {
	times     []float64
	snapshots [][]float64
}

func NewVelocityTable() *VelocityTable {
	return &VelocityTable{}
}

func (vt *VelocityTable) Reset() {
	vt.times = vt.times[:0]
	vt.snapshots = vt.snapshots[:0]
}

func (vt *VelocityTable) Len() int { return len(vt.times) }

// Record appends a copy of v at time t. Recording at the latest time again
// replaces that snapshot; going back in time is an error.
func (vt *VelocityTable) Record(t float64, v []float64) (err error) {
	snap := append([]float64(nil), v...)
	if n := len(vt.times); n > 0 {
		switch last := vt.times[n-1]; {
		case t == last:
			vt.snapshots[n-1] = snap
			return
		case t < last:
			return fmt.Errorf("velocity snapshot at t=%g precedes last snapshot at t=%g", t, last)
		}
	}
	vt.times = append(vt.times, t)
	vt.snapshots = append(vt.snapshots, snap)
	return
}

// At fills v[j] for j in [jMin, jMax] with the velocity at time t.
func (vt *VelocityTable) At(t float64, v []float64, jMin, jMax int) {
	var (
		n = len(vt.times)
	)
	if n == 0 {
		for j := jMin; j <= jMax; j++ {
			v[j] = 0
		}
		return
	}
	i := sort.SearchFloat64s(vt.times, t)
	switch {
	case i == 0:
		copy(v[jMin:jMax+1], vt.snapshots[0][jMin:jMax+1])
	case i == n:
		copy(v[jMin:jMax+1], vt.snapshots[n-1][jMin:jMax+1])
	default:
		var (
			t0, t1 = vt.times[i-1], vt.times[i]
			v0, v1 = vt.snapshots[i-1], vt.snapshots[i]
			w      = (t - t0) / (t1 - t0)
		)
		for j := jMin; j <= jMax; j++ {
			v[j] = v0[j] + w*(v1[j]-v0[j])
		}
	}
}

// BilinearInterpolator interpolates a field tabulated on a tensor grid
// (X[i], Y[j]) -> Data[i][j], clamping at the edges.
type BilinearInterpolator struct {
	X, Y []float64
	Data [][]float64
}

func NewBilinearInterpolator(x, y []float64, data [][]float64) (bi *BilinearInterpolator, err error) {
	if len(x) < 2 || len(y) < 2 {
		return nil, fmt.Errorf("bilinear interpolator needs at least 2x2 points, have %dx%d", len(x), len(y))
	}
	if len(data) != len(x) {
		return nil, fmt.Errorf("bilinear interpolator data has %d rows, want %d", len(data), len(x))
	}
	for i := range data {
		if len(data[i]) != len(y) {
			return nil, fmt.Errorf("bilinear interpolator row %d has %d entries, want %d", i, len(data[i]), len(y))
		}
	}
	if !sort.Float64sAreSorted(x) || !sort.Float64sAreSorted(y) {
		return nil, fmt.Errorf("bilinear interpolator coordinates must be increasing")
	}
	bi = &BilinearInterpolator{X: x, Y: y, Data: data}
	return
}

func bracket(xs []float64, x float64) (i int, w float64) {
	n := len(xs)
	switch {
	case x <= xs[0]:
		return 0, 0
	case x >= xs[n-1]:
		return n - 2, 1
	}
	i = sort.SearchFloat64s(xs, x) - 1
	w = (x - xs[i]) / (xs[i+1] - xs[i])
	return
}

func (bi *BilinearInterpolator) Get(x, y float64) float64 {
	i, wx := bracket(bi.X, x)
	j, wy := bracket(bi.Y, y)
	var (
		d = bi.Data
	)
	return (1-wx)*(1-wy)*d[i][j] + wx*(1-wy)*d[i+1][j] +
		(1-wx)*wy*d[i][j+1] + wx*wy*d[i+1][j+1]
}
