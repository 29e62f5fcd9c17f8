// Package expreplay implements bounded experience replay memories from
// which batches of transitions are sampled for off-policy learning.
package expreplay

import (
	"fmt"
	"sync"

	"github.com/gammazero/deque"
	"github.com/samuelfneumann/rainbow/timestep"
	"gonum.org/v1/gonum/mat"
)

// Memory is a fixed-capacity replay memory of transitions. Transitions
// are evicted in a FiFo manner: inserting into a full Memory removes
// exactly the oldest transition. Sampling never removes or reorders
// stored transitions.
//
// A Memory may be inserted into and sampled from on different
// goroutines. Inserts are linearised with respect to each Sample call
// so that a sample always sees a consistent snapshot of the memory.
type Memory struct {
	mu          sync.RWMutex // Guards the following
	transitions *deque.Deque[timestep.Transition]
	counter     int

	// Outlines how data is sampled
	sampler Selector

	capacity    int
	featureSize int
}

// New creates and returns a new Memory which holds at most capacity
// transitions with observations of featureSize features. The seed
// determines the sequence of batches sampled from the Memory.
//
// Pixel observations should be flattened before adding to the memory.
func New(capacity, featureSize int, seed uint64) (*Memory, error) {
	return newWithSelector(NewUniformSelector(seed), capacity, featureSize)
}

// newWithSelector returns a new Memory which uses sampler to determine
// which transitions to draw into each batch
func newWithSelector(sampler Selector, capacity,
	featureSize int) (*Memory, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("new: capacity must be >= 1\n\twant(>0)"+
			"\n\thave(%v)", capacity)
	}
	if featureSize < 1 {
		return nil, fmt.Errorf("new: feature size must be >= 1\n\twant(>0)"+
			"\n\thave(%v)", featureSize)
	}

	return &Memory{
		transitions: deque.New[timestep.Transition](capacity),
		sampler:     sampler,
		capacity:    capacity,
		featureSize: featureSize,
	}, nil
}

// Insert adds a transition to the Memory, first evicting the oldest
// transition if the Memory is full. The transition's observations are
// copied, so later changes to them are not reflected in the Memory.
func (m *Memory) Insert(t timestep.Transition) error {
	if err := m.validate(t); err != nil {
		return fmt.Errorf("insert: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.insert(t.Clone())

	return nil
}

// InsertBatch inserts each transition in ts in order, as if Insert were
// called on each. This is used to store one transition from each of a
// number of vectorised environments.
//
// If any transition is invalid, no transitions are inserted.
func (m *Memory) InsertBatch(ts []timestep.Transition) error {
	for i := range ts {
		if err := m.validate(ts[i]); err != nil {
			return fmt.Errorf("insertBatch: transition %v: %w", i, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range ts {
		m.insert(ts[i].Clone())
	}

	return nil
}

// insert adds a transition to the Memory without locking
func (m *Memory) insert(t timestep.Transition) {
	if m.transitions.Len() >= m.capacity {
		m.transitions.PopFront()
	}
	m.transitions.PushBack(t)
	m.counter++
}

// validate checks whether a transition can be stored in the Memory
func (m *Memory) validate(t timestep.Transition) error {
	if t.State == nil || t.NextState == nil {
		return fmt.Errorf("transition is missing an observation")
	}
	if t.State.Len() != m.featureSize || t.NextState.Len() != m.featureSize {
		return fmt.Errorf("invalid feature size \n\twant(%v)\n\thave(%v, %v)",
			m.featureSize, t.State.Len(), t.NextState.Len())
	}
	if t.Action < 0 {
		return fmt.Errorf("invalid action \n\twant(>=0)\n\thave(%v)",
			t.Action)
	}
	return nil
}

// Sample draws batchSize distinct transitions uniformly at random
// without replacement from the Memory. The returned Batch reports the
// slot of each transition in the Memory.
//
// Slots are ring buffer indices in [0, Capacity()): the transition
// inserted k-th (counting from 0) occupies slot k mod Capacity() until
// it is evicted. Unlike positions, slots are unaffected by later
// inserts, so priorities keyed by slot stay attached to the same
// transition.
//
// If batchSize exceeds the number of stored transitions, an
// *InsufficientDataError is returned.
func (m *Memory) Sample(batchSize int) (Batch, error) {
	if batchSize < 1 {
		return Batch{}, fmt.Errorf("sample: batch size must be >= 1"+
			"\n\twant(>0)\n\thave(%v)", batchSize)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if batchSize > m.transitions.Len() {
		return Batch{}, &InsufficientDataError{
			Op:        "sample",
			Requested: batchSize,
			Available: m.transitions.Len(),
		}
	}

	positions := m.sampler.choose(m.transitions.Len(), batchSize)
	return m.gather(positions), nil
}

// SampleIndices returns the batch of transitions in the given slots of
// the Memory. An error is returned if any slot holds no transition.
func (m *Memory) SampleIndices(slots []int) (Batch, error) {
	if len(slots) == 0 {
		return Batch{}, fmt.Errorf("sampleIndices: no indices given")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	positions := make([]int, len(slots))
	for i, slot := range slots {
		position, ok := m.position(slot)
		if !ok {
			return Batch{}, fmt.Errorf("sampleIndices: empty slot"+
				"\n\twant([0, %v))\n\thave(%v)", m.capacity, slot)
		}
		positions[i] = position
	}
	return m.gather(positions), nil
}

// slots converts positions, where position 0 is the oldest stored
// transition, to slots
func (m *Memory) slots(positions []int) []int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]int, len(positions))
	for i, p := range positions {
		out[i] = m.slot(p)
	}
	return out
}

// slot returns the slot of the transition at position p. The caller
// must hold at least a read lock.
func (m *Memory) slot(p int) int {
	oldest := m.counter - m.transitions.Len()
	return (oldest + p) % m.capacity
}

// position returns the position of the transition in slot and whether
// the slot holds a transition. The caller must hold at least a read
// lock.
func (m *Memory) position(slot int) (int, bool) {
	if slot < 0 || slot >= m.capacity {
		return 0, false
	}
	oldest := (m.counter - m.transitions.Len()) % m.capacity
	p := (slot - oldest + m.capacity) % m.capacity
	return p, p < m.transitions.Len()
}

// gather packages the transitions at the argument positions into a
// Batch whose Indices are the slots of those transitions. The caller
// must hold at least a read lock.
func (m *Memory) gather(positions []int) Batch {
	batchSize := len(positions)

	states := mat.NewDense(batchSize, m.featureSize, nil)
	nextStates := mat.NewDense(batchSize, m.featureSize, nil)
	actions := make([]int, batchSize)
	rewards := make([]float64, batchSize)
	dones := make([]bool, batchSize)

	slots := make([]int, batchSize)
	for i, p := range positions {
		t := m.transitions.At(p)
		slots[i] = m.slot(p)

		states.RowView(i).(*mat.VecDense).CopyVec(t.State)
		nextStates.RowView(i).(*mat.VecDense).CopyVec(t.NextState)
		actions[i] = t.Action
		rewards[i] = t.Reward
		dones[i] = t.Done
	}

	return Batch{
		States:     states,
		Actions:    actions,
		Rewards:    rewards,
		NextStates: nextStates,
		Dones:      dones,
		Indices:    slots,
	}
}

// At returns the transition at position i of the Memory, where position
// 0 is the oldest stored transition. Positions shift by one with every
// insert into a full Memory; use slots to refer to a transition across
// inserts.
func (m *Memory) At(i int) timestep.Transition {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.transitions.At(i).Clone()
}

// Size returns the current number of transitions in the Memory
func (m *Memory) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.transitions.Len()
}

// Capacity returns the maximum number of transitions that are allowed
// in the Memory
func (m *Memory) Capacity() int {
	return m.capacity
}

// FeatureSize returns the number of features in each stored
// observation
func (m *Memory) FeatureSize() int {
	return m.featureSize
}

// Counter returns the total number of transitions that have ever been
// inserted into the Memory, including those since evicted.
func (m *Memory) Counter() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.counter
}

// String returns the string representation of the Memory
func (m *Memory) String() string {
	return fmt.Sprintf("Memory | Size: %v  |  Capacity: %v  |  Inserted: %v",
		m.Size(), m.Capacity(), m.Counter())
}
