package expreplay

import (
	"golang.org/x/exp/rand"
)

// Selector implements functionality for choosing which positions of
// a replay memory should be sampled
type Selector interface {
	// choose selects batchSize distinct positions in [0, size)
	choose(size, batchSize int) []int
}

// uniformSelector is a Selector which selects data from an experience
// replay buffer uniformly randomly without replacement
type uniformSelector struct {
	rng *rand.Rand
}

// NewUniformSelector returns a new Selector which selects data uniformly
// randomly from an experience replay buffer
func NewUniformSelector(seed uint64) Selector {
	source := rand.NewSource(seed)
	rng := rand.New(source)

	return &uniformSelector{rng: rng}
}

// choose selects a number of distinct indices at which to draw data
// from the buffer
func (u *uniformSelector) choose(size, batchSize int) []int {
	indices := make([]int, size)
	for i := range indices {
		indices[i] = i
	}

	// Partial Fisher-Yates shuffle, only the first batchSize positions
	// are drawn
	for i := 0; i < batchSize; i++ {
		j := i + u.rng.Intn(size-i)
		indices[i], indices[j] = indices[j], indices[i]
	}
	return indices[:batchSize]
}
