// Package networktest provides a network.Trainable whose outputs are
// fixed tables, for testing code built on top of approximators.
package networktest

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/rainbow/network"
	"github.com/samuelfneumann/rainbow/support"
)

// Fit records the arguments of a single call to Fake.Fit
type Fit struct {
	States  *mat.Dense
	Actions []int
	Targets *mat.Dense
	Weights []float64
	MaxNorm float64
}

// Fake is a network.Trainable which looks up the distribution of each
// action for a state by the state's first feature. States whose first
// feature is not in Dists get the uniform distribution for every
// action.
type Fake struct {
	Support  *support.Support
	NActions int
	NFeature int

	// Dists maps the first feature of a state to a distribution over
	// atoms for each action
	Dists map[float64][][]float64

	// Params are returned by Learnables
	Params []*tensor.Dense

	// Optional overrides of the returned shape, used to exercise
	// contract violations
	BadAtoms int

	Training    bool
	NoiseResets int
	Forwards    []network.Mode
	Fits        []Fit
}

// New returns a new Fake whose parameter tensors are filled with value
func New(s *support.Support, features, actions int, value float64) *Fake {
	return &Fake{
		Support:  s,
		NActions: actions,
		NFeature: features,
		Dists:    make(map[float64][][]float64),
		Params: []*tensor.Dense{
			tensor.New(tensor.WithShape(2, 2),
				tensor.WithBacking([]float64{value, value, value, value})),
			tensor.New(tensor.WithShape(3),
				tensor.WithBacking([]float64{value, value, value})),
		},
		Training: true,
	}
}

// OneHot returns a distribution over atoms atoms with all mass on atom k
func OneHot(atoms, k int) []float64 {
	d := make([]float64, atoms)
	d[k] = 1
	return d
}

// dist returns the distribution of action a in a state
func (f *Fake) dist(key float64, a int) []float64 {
	if dists, ok := f.Dists[key]; ok {
		return dists[a]
	}

	atoms := f.Support.Len()
	uniform := make([]float64, atoms)
	for k := range uniform {
		uniform[k] = 1 / float64(atoms)
	}
	return uniform
}

// Forward implements the network.Approximator interface
func (f *Fake) Forward(states *mat.Dense,
	mode network.Mode) (*tensor.Dense, error) {
	f.Forwards = append(f.Forwards, mode)

	batch, features := states.Dims()
	if features != f.NFeature {
		return nil, fmt.Errorf("forward: invalid number of features")
	}

	atoms := f.Support.Len()
	outAtoms := atoms
	if f.BadAtoms > 0 {
		outAtoms = f.BadAtoms
	}

	switch mode {
	case network.Values:
		values := make([]float64, 0, batch*f.NActions)
		for i := 0; i < batch; i++ {
			for a := 0; a < f.NActions; a++ {
				values = append(values,
					f.Support.Expectation(f.dist(states.At(i, 0), a)))
			}
		}
		return tensor.New(tensor.WithShape(batch, f.NActions),
			tensor.WithBacking(values)), nil

	case network.Distribution, network.LogDistribution:
		probs := make([]float64, 0, batch*f.NActions*outAtoms)
		for i := 0; i < batch; i++ {
			for a := 0; a < f.NActions; a++ {
				d := f.dist(states.At(i, 0), a)
				for k := 0; k < outAtoms; k++ {
					p := d[k%atoms]
					if mode == network.LogDistribution {
						p = math.Log(p)
					}
					probs = append(probs, p)
				}
			}
		}
		return tensor.New(tensor.WithShape(batch, f.NActions, outAtoms),
			tensor.WithBacking(probs)), nil
	}

	return nil, fmt.Errorf("forward: unknown mode %v", mode)
}

// Fit implements the network.Trainable interface. It records its
// arguments and returns the weighted mean cross-entropy of targets
// under the table's distributions without changing any parameters.
func (f *Fake) Fit(states *mat.Dense, actions []int, targets *mat.Dense,
	weights []float64, maxNorm float64) (float64, error) {
	fit := Fit{
		States:  mat.DenseCopyOf(states),
		Actions: append([]int{}, actions...),
		Targets: mat.DenseCopyOf(targets),
		MaxNorm: maxNorm,
	}
	if weights != nil {
		fit.Weights = append([]float64{}, weights...)
	}
	f.Fits = append(f.Fits, fit)

	var loss float64
	for i, a := range actions {
		d := f.dist(states.At(i, 0), a)
		var ce float64
		for k := range d {
			if p := targets.At(i, k); p != 0 {
				ce -= p * math.Log(d[k])
			}
		}
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		loss += w * ce
	}
	return loss / float64(len(actions)), nil
}

func (f *Fake) ResetNoise()                 { f.NoiseResets++ }
func (f *Fake) SetTraining(training bool)   { f.Training = training }
func (f *Fake) IsTraining() bool            { return f.Training }
func (f *Fake) Learnables() []*tensor.Dense { return f.Params }
func (f *Fake) Features() int               { return f.NFeature }
func (f *Fake) Actions() int                { return f.NActions }
func (f *Fake) Atoms() int                  { return f.Support.Len() }
