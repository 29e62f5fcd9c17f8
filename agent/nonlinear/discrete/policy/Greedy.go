// Package policy implements policies which select discrete actions
// using neural network function approximators.
package policy

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/rainbow/network"
	"github.com/samuelfneumann/rainbow/utils/floatutils"
)

// Greedy selects the action of highest expected value predicted by a
// network.Approximator, restricted to the legal actions of each state
// when a mask is given. Exploration comes entirely from the noise in
// the approximator, which is used only when selecting actions while
// exploring.
type Greedy struct {
	net network.Approximator
}

// NewGreedy returns a new Greedy policy over the actions of net
func NewGreedy(net network.Approximator) (*Greedy, error) {
	if net == nil {
		return nil, fmt.Errorf("newGreedy: nil approximator")
	}
	return &Greedy{net: net}, nil
}

// Approximator returns the approximator that the policy queries
func (g *Greedy) Approximator() network.Approximator {
	return g.net
}

// SelectAction returns the greedy action for each row of states. If
// mask is non-nil, mask[i][a] reports whether action a is legal in
// state i, and illegal actions are never selected. Ties are broken in
// favour of the lowest action index.
//
// The approximator's noise is used if and only if exploring is true.
// The approximator's noise mode is restored before returning.
func (g *Greedy) SelectAction(states *mat.Dense, mask [][]bool,
	exploring bool) ([]int, error) {
	rows, _ := states.Dims()
	if mask != nil && len(mask) != rows {
		return nil, fmt.Errorf("selectAction: invalid number of masks"+
			"\n\twant(%v)\n\thave(%v)", rows, len(mask))
	}

	training := g.net.IsTraining()
	g.net.SetTraining(exploring)
	defer g.net.SetTraining(training)

	values, err := g.net.Forward(states, network.Values)
	if err != nil {
		return nil, fmt.Errorf("selectAction: %w", err)
	}

	actions := g.net.Actions()
	shape := values.Shape()
	if len(shape) != 2 || shape[0] != rows || shape[1] != actions {
		return nil, fmt.Errorf("selectAction: invalid value shape"+
			"\n\twant([%v %v])\n\thave(%v)", rows, actions, shape)
	}
	data := values.Data().([]float64)

	selected := make([]int, rows)
	for i := range selected {
		row := data[i*actions : (i+1)*actions]
		if mask == nil {
			selected[i] = floatutils.ArgMax(row...)
			continue
		}

		if len(mask[i]) != actions {
			return nil, fmt.Errorf("selectAction: invalid mask length at "+
				"row %v\n\twant(%v)\n\thave(%v)", i, actions, len(mask[i]))
		}
		action, ok := floatutils.MaskedArgMax(row, mask[i])
		if !ok {
			return nil, fmt.Errorf("selectAction: no legal action at row %v",
				i)
		}
		selected[i] = action
	}

	return selected, nil
}
