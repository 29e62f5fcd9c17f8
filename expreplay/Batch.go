package expreplay

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Batch is a batch of transitions stored as aligned rows. Row i of
// States and NextStates together with Actions[i], Rewards[i], and
// Dones[i] make up the ith transition in the batch.
//
// Weights holds optional importance sampling weights and Indices the
// slots of the transitions in the memory they were drawn from.
// Weights is nil for batches that were not drawn through a prioritised
// sampler.
type Batch struct {
	States     *mat.Dense
	Actions    []int
	Rewards    []float64
	NextStates *mat.Dense
	Dones      []bool

	Weights []float64
	Indices []int
}

// Len returns the number of transitions in the batch
func (b Batch) Len() int {
	return len(b.Actions)
}

// Prioritised returns whether the batch carries importance sampling
// weights and the indices needed to write back new priorities.
func (b Batch) Prioritised() bool {
	return b.Weights != nil && b.Indices != nil
}

// Validate checks that every field of the batch holds the same number
// of transitions.
func (b Batch) Validate() error {
	n := len(b.Actions)
	if n == 0 {
		return fmt.Errorf("validate: empty batch")
	}
	if b.States == nil || b.NextStates == nil {
		return fmt.Errorf("validate: batch is missing states")
	}

	rows, features := b.States.Dims()
	if rows != n {
		return fmt.Errorf("validate: invalid number of states\n\twant(%v)"+
			"\n\thave(%v)", n, rows)
	}
	nextRows, nextFeatures := b.NextStates.Dims()
	if nextRows != n {
		return fmt.Errorf("validate: invalid number of next states"+
			"\n\twant(%v)\n\thave(%v)", n, nextRows)
	}
	if nextFeatures != features {
		return fmt.Errorf("validate: state and next state features differ"+
			"\n\twant(%v)\n\thave(%v)", features, nextFeatures)
	}

	if len(b.Rewards) != n {
		return fmt.Errorf("validate: invalid number of rewards\n\twant(%v)"+
			"\n\thave(%v)", n, len(b.Rewards))
	}
	if len(b.Dones) != n {
		return fmt.Errorf("validate: invalid number of dones\n\twant(%v)"+
			"\n\thave(%v)", n, len(b.Dones))
	}
	if b.Weights != nil && len(b.Weights) != n {
		return fmt.Errorf("validate: invalid number of weights\n\twant(%v)"+
			"\n\thave(%v)", n, len(b.Weights))
	}
	if b.Indices != nil && len(b.Indices) != n {
		return fmt.Errorf("validate: invalid number of indices\n\twant(%v)"+
			"\n\thave(%v)", n, len(b.Indices))
	}
	return nil
}
