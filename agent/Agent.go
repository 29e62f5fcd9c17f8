// Package agent defines an agent interface
package agent

import (
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/rainbow/timestep"
)

// Agent determines the implementation details of an agent or algorithm
//
// An Agent is composed of a Learner, which learns weights, and a Policy
// which chooses actions in each state. The Policy chooses which actions
// are taken, and the Learner uses these actions to update the Policy.
type Agent interface {
	Learner
	Policy
}

// Learner implements a learning algorithm that defines how weights are
// updated.
type Learner interface {
	// Step performs a single update to the learner
	Step() error

	// Observe records that an action lead to some timestep
	Observe(action int, nextObs timestep.TimeStep) error

	// ObserveFirst records the first timestep in an episode
	ObserveFirst(timestep.TimeStep) error

	// EndEpisode performs cleanup at the end of an episode
	EndEpisode()
}

// BatchLearner is a Learner which can also observe one transition from
// each of a number of vectorised environments at once
type BatchLearner interface {
	Learner

	// ObserveTransitions records transition i as coming from
	// environment i
	ObserveTransitions([]timestep.Transition) error
}

// Policy represents a policy that an agent can have.
//
// Policies determine how agents select discrete actions. For a given
// agent, the Policy and Learner should have pointers to the same
// weights so that any changes the learner makes to the weights are
// reflected in the actions the Policy chooses.
type Policy interface {
	SelectAction(t timestep.TimeStep) (int, error)
	Eval()        // Set policy to evaluation mode
	Train()       // Set policy to training mode
	IsEval() bool // Indicates if in evaluation mode
}

// BatchPolicy is a Policy which can select actions for a batch of
// states at once, optionally restricted to the legal actions of each
// state. Row i of states is a state whose legal actions are given by
// mask[i]; a nil mask means all actions are legal.
type BatchPolicy interface {
	Policy
	SelectActions(states *mat.Dense, mask [][]bool) ([]int, error)
}
