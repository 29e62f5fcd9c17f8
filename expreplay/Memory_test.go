package expreplay

import (
	"sync"
	"testing"

	"github.com/samuelfneumann/rainbow/timestep"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// tagged returns a transition whose observations and reward are all
// equal to tag, so it can be identified after sampling
func tagged(tag float64) timestep.Transition {
	return timestep.Transition{
		State:     mat.NewVecDense(2, []float64{tag, tag}),
		Action:    int(tag),
		Reward:    tag,
		NextState: mat.NewVecDense(2, []float64{tag + 1, tag + 1}),
	}
}

func TestNewInvalid(t *testing.T) {
	_, err := New(0, 2, 1)
	require.Error(t, err)

	_, err = New(2, 0, 1)
	require.Error(t, err)
}

func TestMemoryFIFO(t *testing.T) {
	// A, B, C, D into a memory of capacity 3 leaves B, C, D
	m, err := New(3, 2, 1)
	require.NoError(t, err)

	for _, tag := range []float64{0, 1, 2, 3} {
		require.NoError(t, m.Insert(tagged(tag)))
		require.LessOrEqual(t, m.Size(), m.Capacity())
	}

	require.Equal(t, 3, m.Size())
	require.Equal(t, 4, m.Counter())
	for i, tag := range []float64{1, 2, 3} {
		require.Equal(t, tag, m.At(i).Reward)
	}
}

func TestMemoryFIFOFull(t *testing.T) {
	const capacity = 10
	m, err := New(capacity, 2, 1)
	require.NoError(t, err)

	for i := 0; i <= capacity; i++ {
		require.NoError(t, m.Insert(tagged(float64(i))))
	}

	require.Equal(t, capacity, m.Size())
	for i := 0; i < capacity; i++ {
		require.Equal(t, float64(i+1), m.At(i).Reward)
	}
}

func TestMemoryInsertBatch(t *testing.T) {
	m, err := New(3, 2, 1)
	require.NoError(t, err)

	batch := []timestep.Transition{tagged(0), tagged(1), tagged(2), tagged(3)}
	require.NoError(t, m.InsertBatch(batch))
	require.Equal(t, 3, m.Size())
	require.Equal(t, 1.0, m.At(0).Reward)
	require.Equal(t, 3.0, m.At(2).Reward)

	// An invalid transition rejects the whole batch
	bad := tagged(4)
	bad.State = mat.NewVecDense(3, nil)
	require.Error(t, m.InsertBatch([]timestep.Transition{tagged(5), bad}))
	require.Equal(t, 4, m.Counter())
}

func TestMemoryInsertInvalid(t *testing.T) {
	m, err := New(3, 2, 1)
	require.NoError(t, err)

	noState := tagged(0)
	noState.State = nil
	require.Error(t, m.Insert(noState))

	wrongSize := tagged(0)
	wrongSize.NextState = mat.NewVecDense(5, nil)
	require.Error(t, m.Insert(wrongSize))

	negative := tagged(0)
	negative.Action = -1
	require.Error(t, m.Insert(negative))

	require.Equal(t, 0, m.Size())
}

func TestMemoryInsertCopies(t *testing.T) {
	m, err := New(3, 2, 1)
	require.NoError(t, err)

	tr := tagged(1)
	require.NoError(t, m.Insert(tr))
	tr.State.(*mat.VecDense).SetVec(0, 100)

	require.Equal(t, 1.0, m.At(0).State.AtVec(0))
}

func TestMemorySampleDistinct(t *testing.T) {
	m, err := New(20, 2, 7)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		require.NoError(t, m.Insert(tagged(float64(i))))
	}

	for trial := 0; trial < 50; trial++ {
		b, err := m.Sample(8)
		require.NoError(t, err)
		require.NoError(t, b.Validate())
		require.Equal(t, 8, b.Len())
		require.False(t, b.Prioritised())

		seen := make(map[float64]bool)
		for i := 0; i < b.Len(); i++ {
			tag := b.Rewards[i]
			require.False(t, seen[tag], "transition sampled twice")
			seen[tag] = true

			// Rows stay aligned with the stored transition
			require.Equal(t, tag, b.States.At(i, 0))
			require.Equal(t, tag+1, b.NextStates.At(i, 1))
			require.Equal(t, int(tag), b.Actions[i])
			require.Equal(t, float64(b.Indices[i]), tag)
		}
	}

	// Sampling does not remove or reorder
	require.Equal(t, 20, m.Size())
	for i := 0; i < 20; i++ {
		require.Equal(t, float64(i), m.At(i).Reward)
	}
}

func TestMemorySampleAll(t *testing.T) {
	m, err := New(5, 2, 3)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, m.Insert(tagged(float64(i))))
	}

	b, err := m.Sample(5)
	require.NoError(t, err)
	require.ElementsMatch(t, []float64{0, 1, 2, 3, 4}, b.Rewards)
}

func TestMemorySampleInsufficient(t *testing.T) {
	m, err := New(5, 2, 1)
	require.NoError(t, err)

	_, err = m.Sample(1)
	require.Error(t, err)
	require.True(t, IsInsufficientData(err))

	require.NoError(t, m.Insert(tagged(0)))
	require.NoError(t, m.Insert(tagged(1)))

	_, err = m.Sample(3)
	require.True(t, IsInsufficientData(err))

	var insufficient *InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, 3, insufficient.Requested)
	require.Equal(t, 2, insufficient.Available)

	_, err = m.Sample(0)
	require.Error(t, err)
	require.False(t, IsInsufficientData(err))
}

func TestMemorySampleIndices(t *testing.T) {
	m, err := New(5, 2, 1)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, m.Insert(tagged(float64(i))))
	}

	b, err := m.SampleIndices([]int{4, 0, 2})
	require.NoError(t, err)
	require.Equal(t, []float64{4, 0, 2}, b.Rewards)
	require.Equal(t, []int{4, 0, 2}, b.Indices)

	_, err = m.SampleIndices([]int{5})
	require.Error(t, err)
	_, err = m.SampleIndices(nil)
	require.Error(t, err)
}

func TestMemorySlotsStable(t *testing.T) {
	// A, B, C, D into a memory of capacity 3: D overwrites A's slot
	m, err := New(3, 2, 1)
	require.NoError(t, err)
	for _, tag := range []float64{0, 1, 2, 3} {
		require.NoError(t, m.Insert(tagged(tag)))
	}

	b, err := m.Sample(3)
	require.NoError(t, err)
	for i := 0; i < b.Len(); i++ {
		require.Equal(t, int(b.Rewards[i])%3, b.Indices[i])
	}

	b, err = m.SampleIndices([]int{0, 1})
	require.NoError(t, err)
	require.Equal(t, []float64{3, 1}, b.Rewards)
	require.Equal(t, []int{0, 1}, b.Indices)

	// E evicts B. Slot 0 still holds D while every position shifts.
	require.NoError(t, m.Insert(tagged(4)))
	b, err = m.SampleIndices([]int{0, 1, 2})
	require.NoError(t, err)
	require.Equal(t, []float64{3, 4, 2}, b.Rewards)
	require.Equal(t, 2.0, m.At(0).Reward)

	_, err = m.SampleIndices([]int{3})
	require.Error(t, err)
	_, err = m.SampleIndices([]int{-1})
	require.Error(t, err)
}

func TestMemoryEmptySlot(t *testing.T) {
	m, err := New(4, 2, 1)
	require.NoError(t, err)
	require.NoError(t, m.Insert(tagged(0)))
	require.NoError(t, m.Insert(tagged(1)))

	_, err = m.SampleIndices([]int{2})
	require.Error(t, err)
}

func TestMemorySeeded(t *testing.T) {
	m1, err := New(30, 2, 42)
	require.NoError(t, err)
	m2, err := New(30, 2, 42)
	require.NoError(t, err)
	for i := 0; i < 30; i++ {
		require.NoError(t, m1.Insert(tagged(float64(i))))
		require.NoError(t, m2.Insert(tagged(float64(i))))
	}

	b1, err := m1.Sample(10)
	require.NoError(t, err)
	b2, err := m2.Sample(10)
	require.NoError(t, err)
	require.Equal(t, b1.Indices, b2.Indices)
}

func TestMemoryConcurrent(t *testing.T) {
	m, err := New(50, 2, 1)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, m.Insert(tagged(float64(i))))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = m.Insert(tagged(float64(i)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			b, err := m.Sample(10)
			if err == nil {
				_ = b.Validate()
			}
		}
	}()
	wg.Wait()

	require.Equal(t, 50, m.Size())
	require.Equal(t, 210, m.Counter())
}

func TestBatchValidate(t *testing.T) {
	b := Batch{
		States:     mat.NewDense(2, 3, nil),
		Actions:    []int{0, 1},
		Rewards:    []float64{0, 1},
		NextStates: mat.NewDense(2, 3, nil),
		Dones:      []bool{false, true},
	}
	require.NoError(t, b.Validate())

	b.Weights = []float64{1}
	require.Error(t, b.Validate())
	b.Weights = []float64{1, 1}
	b.Indices = []int{0, 1}
	require.NoError(t, b.Validate())
	require.True(t, b.Prioritised())

	b.Rewards = []float64{1}
	require.Error(t, b.Validate())

	require.Error(t, Batch{}.Validate())
}
