package rainbow

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/rainbow/support"
	"github.com/samuelfneumann/rainbow/utils/floatutils"
)

// Project computes the categorical distributional Bellman target for a
// batch of transitions. Row i of next is the distribution over the
// atoms of s at the next state of transition i. Each atom z_k is
// shifted to
//
//	Tz_k = clip(r_i + γ (1 - done_i) z_k, Min(s), Max(s))
//
// and its probability is split between the two atoms of s nearest to
// Tz_k in proportion to their distance from it. The returned matrix
// holds one projected distribution per row. Projection conserves mass,
// so each row of the result sums to the same value as the row of next.
func Project(s *support.Support, rewards []float64, dones []bool,
	gamma float64, next *mat.Dense) (*mat.Dense, error) {
	batch, atoms := next.Dims()
	if atoms != s.Len() {
		return nil, fmt.Errorf("project: invalid number of atoms"+
			"\n\twant(%v)\n\thave(%v)", s.Len(), atoms)
	}
	if len(rewards) != batch || len(dones) != batch {
		return nil, fmt.Errorf("project: misaligned batch\n\twant(%v)"+
			"\n\thave(rewards=%v, dones=%v)", batch, len(rewards), len(dones))
	}

	proj := mat.NewDense(batch, atoms, nil)

	// With a single atom, every return is projected onto that atom
	if atoms == 1 {
		for i := 0; i < batch; i++ {
			proj.Set(i, 0, next.At(i, 0))
		}
		return proj, nil
	}

	vMin, vMax, deltaZ := s.Min(), s.Max(), s.DeltaZ()
	for i := 0; i < batch; i++ {
		notDone := 1.0
		if dones[i] {
			notDone = 0.0
		}

		row := proj.RawRowView(i)
		for k := 0; k < atoms; k++ {
			tz := rewards[i] + gamma*notDone*s.At(k)
			tz = floatutils.Clip(tz, vMin, vMax)

			b := floatutils.Clip((tz-vMin)/deltaZ, 0, float64(atoms-1))
			lower := int(math.Floor(b))
			upper := int(math.Ceil(b))

			// When b falls exactly on an atom, widen the bracket by one
			// atom so that the whole mass lands on b
			if upper > 0 && lower == upper {
				lower--
			}
			if lower < atoms-1 && lower == upper {
				upper++
			}

			mass := next.At(i, k)
			row[lower] += mass * (float64(upper) - b)
			row[upper] += mass * (b - float64(lower))
		}
	}

	return proj, nil
}
