package tracker

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	ts "github.com/samuelfneumann/rainbow/timestep"
)

func episode(rewards ...float64) []ts.TimeStep {
	obs := mat.NewVecDense(1, nil)
	steps := []ts.TimeStep{ts.New(ts.First, 0, obs, 0)}
	for i, r := range rewards {
		stepType := ts.Mid
		if i == len(rewards)-1 {
			stepType = ts.Last
		}
		steps = append(steps, ts.New(stepType, r, obs, i+1))
	}
	return steps
}

func TestReturn(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "return.bin")
	r := NewReturn(filename)

	for _, step := range append(episode(1, 2, 3), episode(-1, 0.5)...) {
		require.NoError(t, r.Track(step))
	}
	require.Equal(t, []float64{6, -0.5}, r.Data())

	require.NoError(t, r.Save())
	data, err := LoadData(filename)
	require.NoError(t, err)
	require.Equal(t, []float64{6, -0.5}, data)
}

func TestReturnNonSequential(t *testing.T) {
	r := NewReturn(filepath.Join(t.TempDir(), "return.bin"))
	steps := episode(1, 2, 3)

	require.NoError(t, r.Track(steps[0]))
	require.Error(t, r.Track(steps[2]))
}

func TestEpisodeLength(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "length.bin")
	e := NewEpisodeLength(filename)

	for _, step := range append(episode(1, 2, 3), episode(-1)...) {
		require.NoError(t, e.Track(step))
	}
	require.Equal(t, []float64{3, 1}, e.Data())

	require.NoError(t, e.Save())
	data, err := LoadData(filename)
	require.NoError(t, err)
	require.Equal(t, []float64{3, 1}, data)
}

func TestLoadDataMissing(t *testing.T) {
	_, err := LoadData(filepath.Join(t.TempDir(), "missing.bin"))
	require.Error(t, err)
}
