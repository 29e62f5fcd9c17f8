// Package support implements the fixed, discrete value support that
// categorical return distributions are expressed over.
package support

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Support is an immutable, strictly increasing sequence of atoms evenly
// spaced over [Min(), Max()]. A single Support is shared between an
// online approximator and its target copy.
type Support struct {
	atoms  []float64
	deltaZ float64
	vMin   float64
	vMax   float64
}

// New returns a new Support of numAtoms atoms spanning [vMin, vMax]
// inclusive.
//
// A Support with a single atom is degenerate: its only atom is vMin and
// its atom spacing is 0.
func New(vMin, vMax float64, numAtoms int) (*Support, error) {
	if numAtoms < 1 {
		return nil, fmt.Errorf("new: number of atoms must be positive "+
			"\n\twant(>0)\n\thave(%v)", numAtoms)
	}
	if vMax < vMin {
		return nil, fmt.Errorf("new: vMax must not be smaller than vMin "+
			"\n\twant(>=%v)\n\thave(%v)", vMin, vMax)
	}

	if numAtoms == 1 {
		return &Support{
			atoms:  []float64{vMin},
			deltaZ: 0,
			vMin:   vMin,
			vMax:   vMax,
		}, nil
	}

	if vMax == vMin {
		return nil, fmt.Errorf("new: cannot span %v atoms over a single "+
			"value %v", numAtoms, vMin)
	}

	atoms := floats.Span(make([]float64, numAtoms), vMin, vMax)
	return &Support{
		atoms:  atoms,
		deltaZ: (vMax - vMin) / float64(numAtoms-1),
		vMin:   vMin,
		vMax:   vMax,
	}, nil
}

// Len returns the number of atoms
func (s *Support) Len() int {
	return len(s.atoms)
}

// At returns the value of atom k
func (s *Support) At(k int) float64 {
	return s.atoms[k]
}

// Atoms returns a copy of the atom values in increasing order
func (s *Support) Atoms() []float64 {
	atoms := make([]float64, len(s.atoms))
	copy(atoms, s.atoms)
	return atoms
}

// DeltaZ returns the spacing between consecutive atoms
func (s *Support) DeltaZ() float64 {
	return s.deltaZ
}

// Min returns the smallest atom value
func (s *Support) Min() float64 {
	return s.vMin
}

// Max returns the largest value of the support
func (s *Support) Max() float64 {
	return s.vMax
}

// Expectation returns the expected value Σ p[k] z[k] of the
// categorical distribution p over the support.
func (s *Support) Expectation(p []float64) float64 {
	if len(p) != len(s.atoms) {
		panic(fmt.Sprintf("expectation: invalid distribution length "+
			"\n\twant(%v)\n\thave(%v)", len(s.atoms), len(p)))
	}
	return floats.Dot(p, s.atoms)
}

// String implements the fmt.Stringer interface
func (s *Support) String() string {
	return fmt.Sprintf("Support{Min: %v, Max: %v, Atoms: %v, ΔZ: %v}",
		s.vMin, s.vMax, len(s.atoms), s.deltaZ)
}
