package network

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/rainbow/initwfn"
	"github.com/samuelfneumann/rainbow/solver"
	"github.com/samuelfneumann/rainbow/support"
)

func newTestNet(t *testing.T, atoms int) *NoisyCategoricalMLP {
	t.Helper()

	s, err := support.New(-10, 10, atoms)
	require.NoError(t, err)
	init, err := initwfn.NewGlorotU(1)
	require.NoError(t, err)
	adam, err := solver.NewDefaultAdam(1e-2)
	require.NoError(t, err)

	net, err := NewNoisyCategoricalMLP(3, 2, s, []int{8}, []*Activation{ReLU()},
		init, 0.5, adam, 1)
	require.NoError(t, err)
	return net
}

func testStates() *mat.Dense {
	return mat.NewDense(4, 3, []float64{
		0.1, 0.2, 0.3,
		-0.5, 0.4, 1.0,
		1.0, 1.0, -1.0,
		0.0, 0.0, 0.0,
	})
}

func TestForwardDistribution(t *testing.T) {
	net := newTestNet(t, 5)

	dist, err := net.Forward(testStates(), Distribution)
	require.NoError(t, err)
	require.Equal(t, []int{4, 2, 5}, []int(dist.Shape()))

	data := dist.Data().([]float64)
	for row := 0; row < 4*2; row++ {
		probs := data[row*5 : (row+1)*5]
		require.InDelta(t, 1.0, floats.Sum(probs), 1e-9)
		for _, p := range probs {
			require.GreaterOrEqual(t, p, 0.0)
		}
	}

	logDist, err := net.Forward(testStates(), LogDistribution)
	require.NoError(t, err)
	for i, logP := range logDist.Data().([]float64) {
		require.InDelta(t, math.Log(data[i]), logP, 1e-9)
	}
}

func TestForwardValues(t *testing.T) {
	net := newTestNet(t, 5)
	net.SetTraining(false)

	dist, err := net.Forward(testStates(), Distribution)
	require.NoError(t, err)
	values, err := net.Forward(testStates(), Values)
	require.NoError(t, err)
	require.Equal(t, []int{4, 2}, []int(values.Shape()))

	probs := dist.Data().([]float64)
	for i, v := range values.Data().([]float64) {
		want := net.Support().Expectation(probs[i*5 : (i+1)*5])
		require.InDelta(t, want, v, 1e-9)
	}
}

func TestForwardInvalid(t *testing.T) {
	net := newTestNet(t, 5)

	_, err := net.Forward(mat.NewDense(2, 4, nil), Values)
	require.Error(t, err)
	_, err = net.Forward(testStates(), Mode(7))
	require.Error(t, err)
}

func TestNoise(t *testing.T) {
	net := newTestNet(t, 5)
	states := testStates()

	// Without exploration, outputs do not depend on the noise
	net.SetTraining(false)
	before, err := net.Forward(states, Values)
	require.NoError(t, err)
	net.ResetNoise()
	after, err := net.Forward(states, Values)
	require.NoError(t, err)
	require.InDeltaSlice(t, before.Data(), after.Data(), 1e-12)

	// With exploration, outputs are fixed until the noise is reset
	net.SetTraining(true)
	require.True(t, net.IsTraining())
	first, err := net.Forward(states, Values)
	require.NoError(t, err)
	second, err := net.Forward(states, Values)
	require.NoError(t, err)
	require.Equal(t, first.Data(), second.Data())

	net.ResetNoise()
	third, err := net.Forward(states, Values)
	require.NoError(t, err)
	require.NotEqual(t, first.Data(), third.Data())
}

func TestForwardBatchSizes(t *testing.T) {
	net := newTestNet(t, 5)
	net.SetTraining(false)

	batch, err := net.Forward(testStates(), Values)
	require.NoError(t, err)

	// A single state gives the same output as its row in a batch
	single, err := net.Forward(mat.NewDense(1, 3, []float64{-0.5, 0.4, 1.0}),
		Values)
	require.NoError(t, err)
	require.InDeltaSlice(t, batch.Data().([]float64)[2:4], single.Data(),
		1e-12)
}

func TestCloneIndependent(t *testing.T) {
	net := newTestNet(t, 5)
	net.SetTraining(false)

	clone, err := net.Clone()
	require.NoError(t, err)

	original, err := net.Forward(testStates(), Values)
	require.NoError(t, err)
	cloned, err := clone.Forward(testStates(), Values)
	require.NoError(t, err)
	require.InDeltaSlice(t, original.Data(), cloned.Data(), 1e-12)

	for i, p := range clone.Learnables() {
		require.NotSame(t, net.Learnables()[i], p)
		data := p.Data().([]float64)
		for j := range data {
			data[j] = 0
		}
	}
	again, err := net.Forward(testStates(), Values)
	require.NoError(t, err)
	require.Equal(t, original.Data(), again.Data())
}

func TestSetAffectsForward(t *testing.T) {
	net := newTestNet(t, 5)
	net.SetTraining(false)

	// Compile a graph before changing the parameters in place
	_, err := net.Forward(testStates(), Values)
	require.NoError(t, err)

	for _, p := range net.Learnables() {
		data := p.Data().([]float64)
		for j := range data {
			data[j] = 0
		}
	}

	// All logits are zero, so each distribution is uniform with an
	// expected value of zero
	values, err := net.Forward(testStates(), Values)
	require.NoError(t, err)
	for _, v := range values.Data().([]float64) {
		require.InDelta(t, 0.0, v, 1e-9)
	}
}

func TestFit(t *testing.T) {
	net := newTestNet(t, 5)
	net.SetTraining(false)
	states := testStates()
	actions := []int{0, 1, 1, 0}

	// Every target puts all mass on the highest atom
	targets := mat.NewDense(4, 5, nil)
	for i := 0; i < 4; i++ {
		targets.Set(i, 4, 1)
	}

	first, err := net.Fit(states, actions, targets, nil, 10)
	require.NoError(t, err)
	var last float64
	for i := 0; i < 100; i++ {
		last, err = net.Fit(states, actions, targets, nil, 10)
		require.NoError(t, err)
	}
	require.Less(t, last, first)

	values, err := net.Forward(states, Values)
	require.NoError(t, err)
	data := values.Data().([]float64)
	for i, a := range actions {
		require.Greater(t, data[i*2+a], 0.0)
	}
}

func TestFitInvalid(t *testing.T) {
	net := newTestNet(t, 5)
	targets := mat.NewDense(4, 5, nil)

	_, err := net.Fit(testStates(), []int{0, 1}, targets, nil, 10)
	require.Error(t, err)
	_, err = net.Fit(testStates(), []int{0, 1, 2, 0}, targets, nil, 10)
	require.Error(t, err)
	_, err = net.Fit(testStates(), []int{0, 1, 1, 0}, mat.NewDense(4, 3, nil),
		nil, 10)
	require.Error(t, err)
	_, err = net.Fit(testStates(), []int{0, 1, 1, 0}, targets,
		[]float64{1}, 10)
	require.Error(t, err)
}

func TestNewInvalid(t *testing.T) {
	s, err := support.New(-1, 1, 3)
	require.NoError(t, err)
	init, err := initwfn.NewZeroes()
	require.NoError(t, err)

	_, err = NewNoisyCategoricalMLP(0, 2, s, nil, nil, init, 0.5, nil, 1)
	require.Error(t, err)
	_, err = NewNoisyCategoricalMLP(2, 0, s, nil, nil, init, 0.5, nil, 1)
	require.Error(t, err)
	_, err = NewNoisyCategoricalMLP(2, 2, nil, nil, nil, init, 0.5, nil, 1)
	require.Error(t, err)
	_, err = NewNoisyCategoricalMLP(2, 2, s, []int{4}, nil, init, 0.5, nil, 1)
	require.Error(t, err)
	_, err = NewNoisyCategoricalMLP(2, 2, s, nil, nil, init, -1, nil, 1)
	require.Error(t, err)

	// No solver, so the network cannot be fit
	net, err := NewNoisyCategoricalMLP(2, 2, s, nil, nil, init, 0.5, nil, 1)
	require.NoError(t, err)
	_, err = net.Fit(mat.NewDense(1, 2, nil), []int{0},
		mat.NewDense(1, 3, nil), nil, 10)
	require.Error(t, err)
}

func TestActivationJSON(t *testing.T) {
	acts := []*Activation{ReLU(), TanH(), Identity(), Sigmoid()}
	data, err := json.Marshal(acts)
	require.NoError(t, err)
	require.JSONEq(t, `["relu","tanh","identity","sigmoid"]`, string(data))

	var decoded []*Activation
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 4)
	require.Equal(t, "tanh", decoded[1].String())
	require.True(t, decoded[2].IsIdentity())

	require.Error(t, json.Unmarshal([]byte(`["softmax"]`), &decoded))
}

func TestModeString(t *testing.T) {
	require.Equal(t, "Values", Values.String())
	require.Equal(t, "LogDistribution", LogDistribution.String())
}
