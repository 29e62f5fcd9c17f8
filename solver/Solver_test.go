package solver

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestClipNorm(t *testing.T) {
	a := tensor.New(tensor.WithShape(2), tensor.WithBacking([]float64{3, 0}))
	b := tensor.New(tensor.WithShape(2, 1),
		tensor.WithBacking([]float64{0, 4}))

	norm, err := ClipNorm([]*tensor.Dense{a, b}, 1)
	require.NoError(t, err)
	require.InDelta(t, 5.0, norm, 1e-12)

	clipped := append([]float64{}, a.Data().([]float64)...)
	clipped = append(clipped, b.Data().([]float64)...)
	var sq float64
	for _, v := range clipped {
		sq += v * v
	}
	require.InDelta(t, 1.0, math.Sqrt(sq), 1e-5)

	// Direction is preserved
	require.InDelta(t, 0.6, clipped[0], 1e-5)
	require.InDelta(t, 0.8, clipped[3], 1e-5)
}

func TestClipNormUnchanged(t *testing.T) {
	a := tensor.New(tensor.WithShape(2), tensor.WithBacking([]float64{3, 4}))

	norm, err := ClipNorm([]*tensor.Dense{a}, 10)
	require.NoError(t, err)
	require.InDelta(t, 5.0, norm, 1e-12)
	require.Equal(t, []float64{3, 4}, a.Data().([]float64))

	_, err = ClipNorm([]*tensor.Dense{a}, 0)
	require.Error(t, err)
}

func TestNewSolvers(t *testing.T) {
	adam, err := NewDefaultAdam(1e-4)
	require.NoError(t, err)
	require.Equal(t, Adam, adam.Type)
	require.NotNil(t, adam.Solver)
	require.NoError(t, adam.Validate())

	vanilla, err := NewVanilla(0.1, -1)
	require.NoError(t, err)
	require.Equal(t, Vanilla, vanilla.Type)

	rmsprop, err := NewDefaultRMSProp(0.01)
	require.NoError(t, err)
	require.Equal(t, RMSProp, rmsprop.Type)

	_, err = NewDefaultAdam(0)
	require.Error(t, err)
	_, err = NewVanilla(-1, 0)
	require.Error(t, err)
	_, err = NewRMSProp(0.1, 1e-8, 1, 0)
	require.Error(t, err)
}

func TestSolverJSON(t *testing.T) {
	adam, err := NewAdam(1e-3, 1e-8, 0.8, 0.99)
	require.NoError(t, err)

	data, err := json.Marshal(adam)
	require.NoError(t, err)

	var decoded Solver
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, Adam, decoded.Type)
	require.Equal(t, adam.Config, decoded.Config)
	require.NotNil(t, decoded.Solver)

	require.Error(t, json.Unmarshal([]byte(`{"Type":"SGD","Config":{}}`),
		&decoded))
}

func TestSolverClone(t *testing.T) {
	rmsprop, err := NewRMSProp(0.01, 1e-6, 0.9, 5)
	require.NoError(t, err)

	clone, err := rmsprop.Clone()
	require.NoError(t, err)
	require.Equal(t, rmsprop.Config, clone.Config)
	require.NotSame(t, rmsprop, clone)
}
