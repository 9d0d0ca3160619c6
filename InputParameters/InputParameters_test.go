package InputParameters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlameParameters(t *testing.T) {
	input := []byte(`
Title: Test Case
MechanismFile: one-step.yaml
XLeft: 0
XRight: 0.01
Unburned:
  T: 300
  MassFractions: {F: 1, O: 3}
Burned:
  T: 2000
  MassFractions: {P: 1}
Strain: {Initial: 100, Final: 200, T0: 0.001, Dt: 0.002}
FlamePosition:
  Control: true
  Target: {Initial: 0.004, Final: 0.006}
  ProportionalGain: 10
  IntegralGain: 800
TEnd: 0.01
`)
	{ // Parse fills defaults
		var fp FlameParameters
		require.NoError(t, fp.Parse(input))
		assert.Equal(t, 50, fp.NPoints)
		assert.Equal(t, "FixedValue", fp.LeftBC)
		assert.Equal(t, "balanced", fp.SplittingMethod)
		assert.Equal(t, 0.005, fp.InitialCenter)
		assert.InDelta(t, 0.001, fp.InitialWidth, 1.e-15)
		assert.Equal(t, 1.e-6, fp.Tolerances.RelTol)
		assert.Equal(t, 200., fp.Strain.Final)
		assert.Equal(t, 800., fp.FlamePosition.Ki)
		assert.True(t, fp.FlamePosition.Control)
		assert.Nil(t, fp.Quasi2D)
		fp.Print()
	}
	{ // Boundary compositions are normalised in species order
		var fp FlameParameters
		require.NoError(t, fp.Parse(input))
		index := func(name string) int {
			for k, s := range []string{"F", "O", "P"} {
				if s == name {
					return k
				}
			}
			return -1
		}
		Y, err := fp.Unburned.MassFractions(3, index)
		require.NoError(t, err)
		assert.Equal(t, []float64{0.25, 0.75, 0}, Y)
		_, err = BoundaryState{T: 300, Y: map[string]float64{"X": 1}}.MassFractions(3, index)
		assert.Error(t, err)
		_, err = BoundaryState{T: 300, Y: map[string]float64{"F": -1}}.MassFractions(3, index)
		assert.Error(t, err)
	}
	{ // Quasi-2D velocity tables
		var fp FlameParameters
		q2d := append(append([]byte(nil), input...),
			[]byte("Quasi2D:\n  X: [0, 0.01]\n  Time: [0, 1]\n  Vz: [[1, 2], [3, 4]]\n  Vr: [[2, 2], [2, 2]]\n")...)
		require.NoError(t, fp.Parse(q2d))
		require.NotNil(t, fp.Quasi2D)
		assert.Equal(t, []float64{3, 4}, fp.Quasi2D.Vz[1])
		fp.Print()
	}
	{ // Invalid inputs
		for _, bad := range []string{
			"XLeft: 1\nXRight: 0\nTEnd: 1\nUnburned: {T: 300, MassFractions: {F: 1}}\nBurned: {T: 300, MassFractions: {F: 1}}",
			"XRight: 1\nNPoints: 2\nTEnd: 1\nUnburned: {T: 300, MassFractions: {F: 1}}\nBurned: {T: 300, MassFractions: {F: 1}}",
			"XRight: 1\nTEnd: 1\nSplittingMethod: strang\nUnburned: {T: 300, MassFractions: {F: 1}}\nBurned: {T: 300, MassFractions: {F: 1}}",
			"XRight: 1\nTEnd: 1\nUnburned: {T: 300, MassFractions: {F: 1}}",
			"XRight: 1\nTEnd: 1\nCurvature: 2\nUnburned: {T: 300, MassFractions: {F: 1}}\nBurned: {T: 300, MassFractions: {F: 1}}",
			"XRight: [1",
			"XRight: 1\nTEnd: 1\nUnburned: {T: 300, MassFractions: {F: 1}}\nBurned: {T: 300, MassFractions: {F: 1}}\n" +
				"Quasi2D: {X: [0, 1], Time: [0, 1], Vz: [[1, 1]], Vr: [[1, 1], [1, 1]]}",
			"XRight: 1\nTEnd: 1\nUnburned: {T: 300, MassFractions: {F: 1}}\nBurned: {T: 300, MassFractions: {F: 1}}\n" +
				"Quasi2D: {X: [0, 1], Time: [0, 1], Vz: [[1, 1], [1, 1]], Vr: [[1, 0], [1, 1]]}",
		} {
			var fp FlameParameters
			assert.Error(t, fp.Parse([]byte(bad)), bad)
		}
	}
}
