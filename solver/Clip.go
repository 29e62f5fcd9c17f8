package solver

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// ClipNorm scales grads in place so that their global L2 norm, taken
// over all gradients as though they were one vector, is at most
// maxNorm. The norm before clipping is returned.
func ClipNorm(grads []*tensor.Dense, maxNorm float64) (float64, error) {
	if maxNorm <= 0 {
		return 0, fmt.Errorf("clipNorm: max norm must be positive"+
			"\n\twant(>0)\n\thave(%v)", maxNorm)
	}

	data := make([][]float64, len(grads))
	var sqNorm float64
	for i, grad := range grads {
		backing, ok := grad.Data().([]float64)
		if !ok {
			return 0, fmt.Errorf("clipNorm: gradient %v has unsupported "+
				"dtype %v", i, grad.Dtype())
		}
		data[i] = backing

		norm := floats.Norm(backing, 2)
		sqNorm += norm * norm
	}

	norm := math.Sqrt(sqNorm)
	if norm <= maxNorm {
		return norm, nil
	}

	scale := maxNorm / (norm + 1e-6)
	for i := range data {
		floats.Scale(scale, data[i])
	}
	return norm, nil
}

// ClipModel clips the gradients of all learnables in model to a global
// L2 norm of at most maxNorm. This must be called after the gradients
// have been computed and before the Solver's step.
func ClipModel(model []G.ValueGrad, maxNorm float64) (float64, error) {
	grads := make([]*tensor.Dense, len(model))
	for i := range model {
		grad, err := model[i].Grad()
		if err != nil {
			return 0, fmt.Errorf("clipModel: could not get gradient %v: %w",
				i, err)
		}

		dense, ok := grad.(*tensor.Dense)
		if !ok {
			return 0, fmt.Errorf("clipModel: gradient %v is not dense", i)
		}
		grads[i] = dense
	}

	return ClipNorm(grads, maxNorm)
}
