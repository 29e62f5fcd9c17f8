package support

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSpacing(t *testing.T) {
	cases := []struct {
		vMin, vMax float64
		atoms      int
	}{
		{-10, 10, 51},
		{0, 200, 51},
		{-1, 1, 2},
		{0.5, 3.25, 12},
	}

	for _, c := range cases {
		s, err := New(c.vMin, c.vMax, c.atoms)
		require.NoError(t, err)
		require.Equal(t, c.atoms, s.Len())

		want := (c.vMax - c.vMin) / float64(c.atoms-1)
		require.InDelta(t, want, s.DeltaZ(), 1e-12)

		atoms := s.Atoms()
		require.InDelta(t, c.vMin, atoms[0], 1e-12)
		require.InDelta(t, c.vMax, atoms[len(atoms)-1], 1e-9)
		for k := 1; k < len(atoms); k++ {
			require.Greater(t, atoms[k], atoms[k-1])
			require.InDelta(t, s.DeltaZ(), atoms[k]-atoms[k-1], 1e-9)
		}
	}
}

func TestNewC51(t *testing.T) {
	s, err := New(-10, 10, 51)
	require.NoError(t, err)
	require.InDelta(t, 0.4, s.DeltaZ(), 1e-12)
	require.InDelta(t, 0.0, s.At(25), 1e-9)
}

func TestNewInvalid(t *testing.T) {
	_, err := New(-10, 10, 0)
	require.Error(t, err)

	_, err = New(10, -10, 51)
	require.Error(t, err)

	_, err = New(1, 1, 5)
	require.Error(t, err)
}

func TestSingleAtom(t *testing.T) {
	s, err := New(3, 3, 1)
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())
	require.Equal(t, 3.0, s.At(0))
	require.Equal(t, 0.0, s.DeltaZ())
}

func TestAtomsIsCopy(t *testing.T) {
	s, err := New(0, 1, 3)
	require.NoError(t, err)

	atoms := s.Atoms()
	atoms[0] = math.Inf(-1)
	require.Equal(t, 0.0, s.At(0))
}

func TestExpectation(t *testing.T) {
	s, err := New(-1, 1, 3)
	require.NoError(t, err)
	require.InDelta(t, 0.5, s.Expectation([]float64{0, 0.5, 0.5}), 1e-12)
	require.InDelta(t, -1.0, s.Expectation([]float64{1, 0, 0}), 1e-12)
}
