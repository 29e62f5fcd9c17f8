// Package environment outlines the interfaces needed to implement
// concrete environments with discrete actions
package environment

import (
	"github.com/samuelfneumann/rainbow/timestep"
)

// Task implements the reward scheme for taking actions in some
// environment
type Task interface {
	// Reward returns the reward for the transition from position to
	// next
	Reward(position, next int) float64

	// AtGoal returns whether position is a terminal position
	AtGoal(position int) bool
}

// Ender determines when an episode should be cut off
type Ender interface {
	// End returns whether the episode should end at timestep t. If so,
	// t is modified to be the last step of the episode.
	End(t *timestep.TimeStep) bool
}

// Environment implements a simulated environment with discrete actions
// enumerated from 0
type Environment interface {
	// Reset starts a new episode and returns its first timestep
	Reset() (timestep.TimeStep, error)

	// Step takes action and returns the next timestep and whether the
	// episode has ended
	Step(action int) (timestep.TimeStep, bool, error)

	LastTimeStep() timestep.TimeStep
	ObservationSize() int
	Actions() int
}
