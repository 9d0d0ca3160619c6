package types

// SplitConstants carries the correction terms injected into one operator's
// right hand side for a single outer step. Each operator receives its own copy.
type SplitConstants struct {
	U, T, W []float64
	Y       [][]float64 // Y[k][j]
}

func NewSplitConstants(nSpec, nPoints int) (sc SplitConstants) {
	sc = SplitConstants{
		U: make([]float64, nPoints),
		T: make([]float64, nPoints),
		W: make([]float64, nPoints),
		Y: make([][]float64, nSpec),
	}
	for k := range sc.Y {
		sc.Y[k] = make([]float64, nPoints)
	}
	return
}

// Copy returns a deep copy so the receiver can never be aliased by an operator.
func (sc SplitConstants) Copy() (cp SplitConstants) {
	cp = SplitConstants{
		U: append([]float64(nil), sc.U...),
		T: append([]float64(nil), sc.T...),
		W: append([]float64(nil), sc.W...),
		Y: make([][]float64, len(sc.Y)),
	}
	for k := range sc.Y {
		cp.Y[k] = append([]float64(nil), sc.Y[k]...)
	}
	return
}

func (sc SplitConstants) NPoints() int { return len(sc.T) }
func (sc SplitConstants) NSpec() int   { return len(sc.Y) }
