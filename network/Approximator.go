// Package network implements neural network function approximators
// which predict a categorical distribution over a fixed value support
// for each discrete action.
package network

import (
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

// Mode determines what an Approximator returns from a forward pass
type Mode int

const (
	// Values requests the expected value of each action, with shape
	// [batch, actions]
	Values Mode = iota

	// Distribution requests the probability of each atom for each
	// action, with shape [batch, actions, atoms]
	Distribution

	// LogDistribution requests the log probability of each atom for
	// each action, with shape [batch, actions, atoms]
	LogDistribution
)

// String implements the fmt.Stringer interface
func (m Mode) String() string {
	switch m {
	case Values:
		return "Values"
	case Distribution:
		return "Distribution"
	case LogDistribution:
		return "LogDistribution"
	default:
		return "Unknown"
	}
}

// Approximator predicts a categorical distribution over a value
// support for each discrete action given a batch of states.
type Approximator interface {
	// Forward runs the approximator on a batch of states, one state
	// per row, and returns the outputs requested by mode.
	Forward(states *mat.Dense, mode Mode) (*tensor.Dense, error)

	// ResetNoise resamples any exploration noise used by the
	// approximator
	ResetNoise()

	// SetTraining sets whether exploration noise is used in the
	// forward pass
	SetTraining(bool)
	IsTraining() bool

	// Learnables returns the parameters of the approximator. The
	// order and shapes of the parameters never change, and changes
	// to the returned tensors' data change the approximator.
	Learnables() []*tensor.Dense

	Features() int
	Actions() int
	Atoms() int
}

// Trainable is an Approximator whose parameters can be fit to target
// distributions.
type Trainable interface {
	Approximator

	// Fit takes one gradient step on the mean over rows i of
	//
	//		weights[i] * -Σ_k targets[i, k] log p(k | states[i], actions[i])
	//
	// clipping the global gradient norm to maxNorm before the step. The
	// loss before the step is returned.
	Fit(states *mat.Dense, actions []int, targets *mat.Dense,
		weights []float64, maxNorm float64) (float64, error)
}
