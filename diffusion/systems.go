package diffusion

import (
	"github.com/minhbau/ember/Grid1D"
	"github.com/minhbau/ember/types"
)

// SpeciesSystem is Fickian diffusion of one species with an explicit Soret
// flux -Dkt/T dT/dx. The properties are held fixed over a split step.
type SpeciesSystem struct {
	core
	K int

	Rho  []float64 // [kg/m^3]
	RhoD []float64 // rho*Dkm [kg/m*s]
	Dkt  []float64 // thermal diffusion coefficient [kg/m*s]
	T    []float64 // temperature [K]

	JFick  []float64 // face fluxes [kg/m^2*s]
	JSoret []float64
}

func NewSpeciesSystem(grid *Grid1D.Grid, k int) (s *SpeciesSystem) {
	s = &SpeciesSystem{K: k}
	s.kind, s.grid = types.OP_DiffusionSpecies, grid
	s.Resize(grid.NPoints())
	return
}

func (s *SpeciesSystem) Resize(nPoints int) {
	s.resize(nPoints)
	for _, p := range []*[]float64{&s.Rho, &s.RhoD, &s.Dkt, &s.T, &s.JFick, &s.JSoret} {
		*p = make([]float64, nPoints)
	}
}

func (s *SpeciesSystem) coefficients() (err error) {
	if err = checkLengths(s.kind, s.nPoints, map[string][]float64{
		"rho": s.Rho, "rhoD": s.RhoD, "Dkt": s.Dkt, "T": s.T,
	}); err != nil {
		return
	}
	for j := 0; j < s.nPoints; j++ {
		s.B[j] = 1 / s.Rho[j]
		s.D[j] = s.RhoD[j]
	}
	return
}

func (s *SpeciesSystem) F(t float64, y, ydot []float64) (err error) {
	if err = s.check(y, ydot); err != nil {
		return
	}
	if err = s.coefficients(); err != nil {
		return
	}
	s.diffuse(y, ydot)
	copy(s.JFick, s.flux)
	var (
		g  = s.grid
		jj = s.nPoints - 1
	)
	for j := 0; j < jj; j++ {
		s.JSoret[j] = -0.5 * (s.Dkt[j]/s.T[j] + s.Dkt[j+1]/s.T[j+1]) * (s.T[j+1] - s.T[j]) / g.HH[j]
	}
	s.JSoret[jj] = 0
	s.divergence(s.JSoret, ydot)
	return
}

func (s *SpeciesSystem) PreconditionerSetup(t float64, y, ydot []float64, cj float64) (err error) {
	if err = s.check(y, nil); err != nil {
		return
	}
	if err = s.coefficients(); err != nil {
		return
	}
	s.assemble(cj)
	return s.factorize()
}

// TemperatureSystem is Fourier conduction with the enthalpy flux term
// -sum_k(cp_k j_k/W_k) dT/dx / (rho cp), the latter using the centered
// stencil. SumCpJ is supplied from the species diffusion fluxes.
type TemperatureSystem struct {
	core

	Rho    []float64
	Cp     []float64 // [J/kg*K]
	Lambda []float64 // [W/m*K]
	SumCpJ []float64 // [W/m^2*K]

	QFourier []float64 // face heat flux [W/m^2]
	DTdxCen  []float64
}

func NewTemperatureSystem(grid *Grid1D.Grid) (s *TemperatureSystem) {
	s = &TemperatureSystem{}
	s.kind, s.grid = types.OP_DiffusionTemperature, grid
	s.Resize(grid.NPoints())
	return
}

func (s *TemperatureSystem) Resize(nPoints int) {
	s.resize(nPoints)
	for _, p := range []*[]float64{&s.Rho, &s.Cp, &s.Lambda, &s.SumCpJ, &s.QFourier, &s.DTdxCen} {
		*p = make([]float64, nPoints)
	}
}

func (s *TemperatureSystem) coefficients() (err error) {
	if err = checkLengths(s.kind, s.nPoints, map[string][]float64{
		"rho": s.Rho, "cp": s.Cp, "lambda": s.Lambda, "sumcpj": s.SumCpJ,
	}); err != nil {
		return
	}
	for j := 0; j < s.nPoints; j++ {
		s.B[j] = 1 / (s.Rho[j] * s.Cp[j])
		s.D[j] = s.Lambda[j]
	}
	return
}

func (s *TemperatureSystem) F(t float64, y, ydot []float64) (err error) {
	if err = s.check(y, ydot); err != nil {
		return
	}
	if err = s.coefficients(); err != nil {
		return
	}
	s.diffuse(y, ydot)
	copy(s.QFourier, s.flux)
	var (
		g  = s.grid
		jj = s.nPoints - 1
	)
	s.DTdxCen[0], s.DTdxCen[jj] = 0, 0
	for j := 1; j < jj; j++ {
		s.DTdxCen[j] = g.Cfm[j]*y[j-1] + g.Cf[j]*y[j] + g.Cfp[j]*y[j+1]
		ydot[j] -= s.SumCpJ[j] * s.DTdxCen[j] * s.B[j]
	}
	return
}

func (s *TemperatureSystem) PreconditionerSetup(t float64, y, ydot []float64, cj float64) (err error) {
	if err = s.check(y, nil); err != nil {
		return
	}
	if err = s.coefficients(); err != nil {
		return
	}
	s.assembleWithEnthalpyFlux(cj)
	return s.factorize()
}

func (s *TemperatureSystem) assembleWithEnthalpyFlux(cj float64) {
	s.assemble(cj)
	var (
		g  = s.grid
		jj = s.nPoints - 1
	)
	for j := 1; j < jj; j++ {
		w := s.SumCpJ[j] * s.B[j]
		s.band.Add(j, j-1, w*g.Cfm[j])
		s.band.Add(j, j, w*g.Cf[j])
		s.band.Add(j, j+1, w*g.Cfp[j])
	}
}

// MomentumSystem is viscous diffusion of the tangential velocity U.
type MomentumSystem struct {
	core

	Rho []float64
	Mu  []float64 // [Pa*s]
}

func NewMomentumSystem(grid *Grid1D.Grid) (s *MomentumSystem) {
	s = &MomentumSystem{}
	s.kind, s.grid = types.OP_DiffusionMomentum, grid
	s.Resize(grid.NPoints())
	return
}

func (s *MomentumSystem) Resize(nPoints int) {
	s.resize(nPoints)
	s.Rho = make([]float64, nPoints)
	s.Mu = make([]float64, nPoints)
}

func (s *MomentumSystem) coefficients() (err error) {
	if err = checkLengths(s.kind, s.nPoints, map[string][]float64{
		"rho": s.Rho, "mu": s.Mu,
	}); err != nil {
		return
	}
	for j := 0; j < s.nPoints; j++ {
		s.B[j] = 1 / s.Rho[j]
		s.D[j] = s.Mu[j]
	}
	return
}

func (s *MomentumSystem) F(t float64, y, ydot []float64) (err error) {
	if err = s.check(y, ydot); err != nil {
		return
	}
	if err = s.coefficients(); err != nil {
		return
	}
	s.diffuse(y, ydot)
	return
}

func (s *MomentumSystem) PreconditionerSetup(t float64, y, ydot []float64, cj float64) (err error) {
	if err = s.check(y, nil); err != nil {
		return
	}
	if err = s.coefficients(); err != nil {
		return
	}
	s.assemble(cj)
	return s.factorize()
}

// EnthalpyFluxSum fills sumcpj[j] = sum_k cp_k/W_k * jk at node j, with the
// species fluxes averaged from the adjacent faces. cpSpec[k][j] is in J/kmol*K.
func EnthalpyFluxSum(sumcpj []float64, W []float64, cpSpec [][]float64, species []*SpeciesSystem) {
	var (
		n = len(sumcpj)
	)
	for j := 0; j < n; j++ {
		sumcpj[j] = 0
	}
	for k, s := range species {
		for j := 0; j < n; j++ {
			var jLeft, jRight float64
			if j > 0 {
				jLeft = s.JFick[j-1] + s.JSoret[j-1]
			}
			if j < n-1 {
				jRight = s.JFick[j] + s.JSoret[j]
			}
			sumcpj[j] += cpSpec[k][j] / W[k] * 0.5 * (jLeft + jRight)
		}
	}
}
