package rainbow

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/rainbow/network/networktest"
)

func params(values ...[]float64) []*tensor.Dense {
	out := make([]*tensor.Dense, len(values))
	for i, v := range values {
		out[i] = tensor.New(tensor.WithShape(len(v)),
			tensor.WithBacking(append([]float64{}, v...)))
	}
	return out
}

func data(ps []*tensor.Dense) [][]float64 {
	out := make([][]float64, len(ps))
	for i, p := range ps {
		out[i] = p.Data().([]float64)
	}
	return out
}

func TestPolyak(t *testing.T) {
	src := params([]float64{1, 2, 3}, []float64{-4})

	// τ = 0 leaves the target unchanged
	dst := params([]float64{0, 0, 0}, []float64{8})
	require.NoError(t, Polyak(dst, src, 0))
	require.Equal(t, [][]float64{{0, 0, 0}, {8}}, data(dst))

	// τ = 1 copies the source
	require.NoError(t, Polyak(dst, src, 1))
	require.Equal(t, data(src), data(dst))

	// Copies share no storage
	src[0].Data().([]float64)[0] = 100
	require.Equal(t, 1.0, dst[0].Data().([]float64)[0])

	dst = params([]float64{0, 0, 0}, []float64{8})
	src = params([]float64{1, 2, 3}, []float64{-4})
	require.NoError(t, Polyak(dst, src, 0.5))
	require.InDeltaSlice(t, []float64{0.5, 1, 1.5}, data(dst)[0], 1e-12)
	require.InDeltaSlice(t, []float64{2}, data(dst)[1], 1e-12)
}

func TestPolyakInvalid(t *testing.T) {
	src := params([]float64{1, 2, 3})

	require.Error(t, Polyak(params([]float64{0, 0, 0}), src, -0.1))
	require.Error(t, Polyak(params([]float64{0, 0, 0}), src, 1.1))
	require.Error(t, Polyak(params([]float64{0, 0}), src, 0.5))
	require.Error(t, Polyak(params([]float64{0, 0, 0}, []float64{0}), src,
		0.5))
}

func TestSoftUpdater(t *testing.T) {
	s := newSupport(t, -1, 1, 3)
	online := networktest.New(s, 1, 2, 2)
	target := networktest.New(s, 1, 2, 0)

	_, err := NewSoftUpdater(online, target, 0)
	require.Error(t, err)
	_, err = NewSoftUpdater(online, target, 1.01)
	require.Error(t, err)
	_, err = NewSoftUpdater(nil, target, 0.5)
	require.Error(t, err)

	u, err := NewSoftUpdater(online, target, 0.5)
	require.NoError(t, err)
	require.Equal(t, 0.5, u.Tau())

	require.NoError(t, u.SoftUpdate())
	require.NoError(t, u.SoftUpdate())
	for _, p := range data(target.Params) {
		for _, v := range p {
			require.InDelta(t, 1.5, v, 1e-12)
		}
	}

	// The online parameters are never written
	for _, p := range data(online.Params) {
		for _, v := range p {
			require.Equal(t, 2.0, v)
		}
	}

	require.NoError(t, u.HardUpdate())
	require.Equal(t, data(online.Params), data(target.Params))
}
