package rainbow

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/rainbow/network/networktest"
	"github.com/samuelfneumann/rainbow/support"
)

func newSupport(t *testing.T, vMin, vMax float64, atoms int) *support.Support {
	s, err := support.New(vMin, vMax, atoms)
	require.NoError(t, err)
	return s
}

func TestProjectSplitsMass(t *testing.T) {
	s := newSupport(t, -10, 10, 51)
	require.InDelta(t, 0.4, s.DeltaZ(), 1e-12)

	next := mat.NewDense(1, 51, networktest.OneHot(51, 25))
	proj, err := Project(s, []float64{1}, []bool{false}, 1, next)
	require.NoError(t, err)

	for k := 0; k < 51; k++ {
		switch k {
		case 27, 28:
			require.InDelta(t, 0.5, proj.At(0, k), 1e-6, "atom %v", k)
		default:
			require.Zero(t, proj.At(0, k), "atom %v", k)
		}
	}
}

func TestProjectExactAtoms(t *testing.T) {
	s := newSupport(t, -1, 1, 3)

	// With no reward and no discounting, each atom maps onto itself,
	// including the boundary atoms
	for k := 0; k < 3; k++ {
		next := mat.NewDense(1, 3, networktest.OneHot(3, k))
		proj, err := Project(s, []float64{0}, []bool{false}, 1, next)
		require.NoError(t, err)
		require.Equal(t, networktest.OneHot(3, k), proj.RawRowView(0),
			"atom %v", k)
	}
}

func TestProjectClips(t *testing.T) {
	s := newSupport(t, -1, 1, 3)
	next := mat.NewDense(2, 3, []float64{
		0.2, 0.3, 0.5,
		0.2, 0.3, 0.5,
	})

	proj, err := Project(s, []float64{100, -100}, []bool{false, false}, 0.9,
		next)
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{0, 0, 1}, proj.RawRowView(0), 1e-12)
	require.InDeltaSlice(t, []float64{1, 0, 0}, proj.RawRowView(1), 1e-12)
}

func TestProjectDone(t *testing.T) {
	s := newSupport(t, -1, 1, 3)
	next := mat.NewDense(1, 3, []float64{0.2, 0.3, 0.5})

	// At a terminal transition the next state's distribution is ignored
	proj, err := Project(s, []float64{0.5}, []bool{true}, 0.99, next)
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{0, 0.5, 0.5}, proj.RawRowView(0), 1e-12)
}

func TestProjectConservesMass(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	cases := []struct {
		vMin, vMax float64
		atoms      int
	}{
		{-10, 10, 51},
		{0, 200, 51},
		{-1, 1, 2},
		{-3, 3, 7},
	}

	for _, c := range cases {
		s := newSupport(t, c.vMin, c.vMax, c.atoms)

		const batch = 64
		next := mat.NewDense(batch, c.atoms, nil)
		rewards := make([]float64, batch)
		dones := make([]bool, batch)
		for i := 0; i < batch; i++ {
			row := next.RawRowView(i)
			for k := range row {
				row[k] = rng.Float64()
			}
			floats.Scale(1/floats.Sum(row), row)

			switch i % 4 {
			case 0:
				// Land exactly on an atom
				rewards[i] = s.At(rng.Intn(c.atoms))
				dones[i] = true
			case 1:
				rewards[i] = (rng.Float64() - 0.5) * 3 * (c.vMax - c.vMin)
			default:
				rewards[i] = (rng.Float64() - 0.5) * (c.vMax - c.vMin)
				dones[i] = rng.Float64() < 0.2
			}
		}

		for _, gamma := range []float64{0, 0.5, 0.99, 1} {
			proj, err := Project(s, rewards, dones, gamma, next)
			require.NoError(t, err)

			for i := 0; i < batch; i++ {
				row := proj.RawRowView(i)
				require.InDelta(t, 1, floats.Sum(row), 1e-5, "row %v", i)
				for _, p := range row {
					require.GreaterOrEqual(t, p, -1e-12)
				}
			}
		}
	}
}

func TestProjectSingleAtom(t *testing.T) {
	s := newSupport(t, 0, 0, 1)
	next := mat.NewDense(2, 1, []float64{1, 1})

	proj, err := Project(s, []float64{3, -2}, []bool{false, true}, 0.9, next)
	require.NoError(t, err)
	require.Equal(t, []float64{1, 1}, proj.RawMatrix().Data)
}

func TestProjectInvalid(t *testing.T) {
	s := newSupport(t, -1, 1, 3)

	_, err := Project(s, []float64{0}, []bool{false}, 1,
		mat.NewDense(1, 4, nil))
	require.Error(t, err)

	_, err = Project(s, []float64{0, 1}, []bool{false}, 1,
		mat.NewDense(1, 3, nil))
	require.Error(t, err)

	_, err = Project(s, []float64{0}, []bool{false, true}, 1,
		mat.NewDense(1, 3, nil))
	require.Error(t, err)
}
