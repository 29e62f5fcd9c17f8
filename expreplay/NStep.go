package expreplay

import (
	"fmt"
	"math"
	"sync"

	"github.com/samuelfneumann/rainbow/timestep"
)

// NStep is a replay memory which stores each one-step transition
// alongside its n-step counterpart. The n-step transition beginning at
// some state s_t with action a_t has reward
//
//	r_t + γ r_{t+1} + ... + γ^(m-1) r_{t+m-1}
//
// where m <= n is the number of steps until the n-step horizon or the
// end of the episode, whichever comes first. Its next state and done
// flag are those of step t+m-1.
//
// Both memories are inserted into in lockstep, so position i of the
// one-step memory and position i of the n-step memory always refer to
// transitions starting from the same state.
type NStep struct {
	mu      sync.Mutex // Guards the windows and inserts
	windows [][]timestep.Transition

	one   *Memory
	nStep *Memory

	sampler Selector
	n       int
	gamma   float64
}

// NewNStep returns a new NStep memory with the given capacity which
// computes returns over n steps with discount gamma. Each vectorised
// environment that inserts into the memory gets its own window of the
// last n transitions.
func NewNStep(capacity, featureSize, n int, gamma float64,
	seed uint64) (*NStep, error) {
	if n < 1 {
		return nil, fmt.Errorf("newNStep: n must be >= 1\n\twant(>0)"+
			"\n\thave(%v)", n)
	}
	if gamma < 0 || gamma > 1 {
		return nil, fmt.Errorf("newNStep: gamma must be in [0, 1]"+
			"\n\thave(%v)", gamma)
	}

	// The underlying memories never sample on their own, so their
	// selectors are never used
	one, err := New(capacity, featureSize, seed)
	if err != nil {
		return nil, fmt.Errorf("newNStep: %w", err)
	}
	nStep, err := New(capacity, featureSize, seed)
	if err != nil {
		return nil, fmt.Errorf("newNStep: %w", err)
	}

	return &NStep{
		one:     one,
		nStep:   nStep,
		sampler: NewUniformSelector(seed),
		n:       n,
		gamma:   gamma,
	}, nil
}

// N returns the horizon over which n-step returns are computed
func (m *NStep) N() int {
	return m.n
}

// Gamma returns the discount factor used in computing n-step returns
func (m *NStep) Gamma() float64 {
	return m.gamma
}

// Insert adds a transition from a single environment to the memory
func (m *NStep) Insert(t timestep.Transition) error {
	if err := m.one.validate(t); err != nil {
		return fmt.Errorf("insert: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.push(0, t.Clone())

	return nil
}

// InsertBatch adds one transition per vectorised environment to the
// memory. Transition i is taken to come from environment i, and each
// environment accumulates its own n-step window.
func (m *NStep) InsertBatch(ts []timestep.Transition) error {
	for i := range ts {
		if err := m.one.validate(ts[i]); err != nil {
			return fmt.Errorf("insertBatch: transition %v: %w", i, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range ts {
		m.push(i, ts[i].Clone())
	}

	return nil
}

// push adds a transition to the window of environment env. Once the
// window holds n transitions, its oldest transition is committed to
// the memories. Terminal transitions flush the entire window.
func (m *NStep) push(env int, t timestep.Transition) {
	for len(m.windows) <= env {
		m.windows = append(m.windows, make([]timestep.Transition, 0, m.n))
	}
	m.windows[env] = append(m.windows[env], t)

	if t.Done {
		window := m.windows[env]
		for start := range window {
			m.commit(window[start:])
		}
		m.windows[env] = m.windows[env][:0]
		return
	}

	if len(m.windows[env]) == m.n {
		m.commit(m.windows[env])
		m.windows[env] = append(m.windows[env][:0], m.windows[env][1:]...)
	}
}

// commit inserts the first transition of window and the n-step
// transition starting at it into the memories
func (m *NStep) commit(window []timestep.Transition) {
	first := window[0]
	m.one.mu.Lock()
	m.one.insert(first)
	m.one.mu.Unlock()

	agg := aggregate(window, m.gamma)
	m.nStep.mu.Lock()
	m.nStep.insert(agg)
	m.nStep.mu.Unlock()
}

// aggregate computes the n-step transition beginning at the first
// transition in window. Accumulation stops at the first terminal
// transition.
func aggregate(window []timestep.Transition, gamma float64) timestep.Transition {
	var reward float64
	last := 0
	for j := range window {
		reward += math.Pow(gamma, float64(j)) * window[j].Reward
		last = j
		if window[j].Done {
			break
		}
	}

	return timestep.Transition{
		State:     window[0].State,
		Action:    window[0].Action,
		Reward:    reward,
		NextState: window[last].NextState,
		Done:      window[last].Done,
	}
}

// Sample draws batchSize distinct positions uniformly at random without
// replacement and returns the one-step and n-step batches at those
// positions. Both batches report the same slots in Indices.
func (m *NStep) Sample(batchSize int) (Batch, Batch, error) {
	if batchSize < 1 {
		return Batch{}, Batch{}, fmt.Errorf("sample: batch size must be "+
			">= 1\n\twant(>0)\n\thave(%v)", batchSize)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	size := m.one.Size()
	if batchSize > size {
		return Batch{}, Batch{}, &InsufficientDataError{
			Op:        "sample",
			Requested: batchSize,
			Available: size,
		}
	}

	// Both memories are inserted into in lockstep, so they agree on
	// slots
	slots := m.one.slots(m.sampler.choose(size, batchSize))
	return m.sampleIndices(slots)
}

// SampleIndices returns the one-step and n-step batches in the given
// slots of the memory. Slots are described in Memory.Sample.
func (m *NStep) SampleIndices(indices []int) (Batch, Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.sampleIndices(indices)
}

// sampleIndices gathers the aligned batches without locking the
// windows
func (m *NStep) sampleIndices(indices []int) (Batch, Batch, error) {
	one, err := m.one.SampleIndices(indices)
	if err != nil {
		return Batch{}, Batch{}, fmt.Errorf("sampleIndices: %w", err)
	}
	nStep, err := m.nStep.SampleIndices(indices)
	if err != nil {
		return Batch{}, Batch{}, fmt.Errorf("sampleIndices: %w", err)
	}
	return one, nStep, nil
}

// NStepAt returns the n-step transition at position i of the memory
func (m *NStep) NStepAt(i int) timestep.Transition {
	return m.nStep.At(i)
}

// At returns the one-step transition at position i of the memory
func (m *NStep) At(i int) timestep.Transition {
	return m.one.At(i)
}

// Pending returns the number of transitions waiting in the window of
// environment env which have not yet been committed to the memory
func (m *NStep) Pending(env int) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if env < 0 || env >= len(m.windows) {
		return 0
	}
	return len(m.windows[env])
}

// Size returns the number of committed transitions
func (m *NStep) Size() int {
	return m.one.Size()
}

// Capacity returns the maximum number of transitions held
func (m *NStep) Capacity() int {
	return m.one.Capacity()
}

// FeatureSize returns the number of features in each stored
// observation
func (m *NStep) FeatureSize() int {
	return m.one.FeatureSize()
}
