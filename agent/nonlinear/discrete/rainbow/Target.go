package rainbow

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/rainbow/network"
)

// Polyak sets each parameter in dst to the Polyak average
//
//	dst ← τ src + (1 - τ) dst
//
// in place. Parameters are paired by position. With τ = 0, dst is
// unchanged; with τ = 1, dst becomes a copy of src.
func Polyak(dst, src []*tensor.Dense, tau float64) error {
	if tau < 0 || tau > 1 {
		return fmt.Errorf("polyak: τ must be in [0, 1]\n\thave(%v)", tau)
	}
	if err := compatible(dst, src); err != nil {
		return fmt.Errorf("polyak: %w", err)
	}

	for i := range dst {
		d := dst[i].Data().([]float64)
		s := src[i].Data().([]float64)

		switch tau {
		case 0:
		case 1:
			copy(d, s)
		default:
			floats.Scale(1-tau, d)
			floats.AddScaled(d, tau, s)
		}
	}
	return nil
}

// compatible returns an error if two parameter lists cannot be paired
// up by position
func compatible(dst, src []*tensor.Dense) error {
	if len(dst) != len(src) {
		return fmt.Errorf("invalid number of parameters\n\twant(%v)"+
			"\n\thave(%v)", len(dst), len(src))
	}

	for i := range dst {
		d, ok := dst[i].Data().([]float64)
		if !ok {
			return fmt.Errorf("parameter %v is not float64", i)
		}
		s, ok := src[i].Data().([]float64)
		if !ok {
			return fmt.Errorf("parameter %v is not float64", i)
		}
		if len(d) != len(s) {
			return fmt.Errorf("invalid size of parameter %v\n\twant(%v)"+
				"\n\thave(%v)", i, len(d), len(s))
		}
	}
	return nil
}

// SoftUpdater moves the parameters of a target approximator towards
// those of an online approximator.
type SoftUpdater struct {
	online network.Approximator
	target network.Approximator
	tau    float64
}

// NewSoftUpdater returns a new SoftUpdater which moves target towards
// online with step size tau on each update, where 0 < tau <= 1.
func NewSoftUpdater(online, target network.Approximator,
	tau float64) (*SoftUpdater, error) {
	if tau <= 0 || tau > 1 {
		return nil, fmt.Errorf("newSoftUpdater: τ must be in (0, 1]"+
			"\n\thave(%v)", tau)
	}
	if online == nil || target == nil {
		return nil, fmt.Errorf("newSoftUpdater: nil approximator")
	}
	if err := compatible(target.Learnables(), online.Learnables()); err != nil {
		return nil, fmt.Errorf("newSoftUpdater: %w", err)
	}

	return &SoftUpdater{online: online, target: target, tau: tau}, nil
}

// Tau returns the step size of each soft update
func (s *SoftUpdater) Tau() float64 {
	return s.tau
}

// SoftUpdate sets each target parameter to τ online + (1 - τ) target
func (s *SoftUpdater) SoftUpdate() error {
	return Polyak(s.target.Learnables(), s.online.Learnables(), s.tau)
}

// HardUpdate copies the online parameters into the target parameters
func (s *SoftUpdater) HardUpdate() error {
	return Polyak(s.target.Learnables(), s.online.Learnables(), 1)
}
