// Package gridworld implements 2D gridworld environments
package gridworld

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/rainbow/environment"
	"github.com/samuelfneumann/rainbow/timestep"
)

// Actions in a GridWorld
const (
	Left = iota
	Right
	Up
	Down
)

// GridWorld represents a gridworld environment
//
// A gridworld is represented as a flattened matrix, but in this
// implementation only the matrix dimensions and current agent position
// are tracked. Observations are one-hot encodings of the agent's
// position in the flattened matrix.
type GridWorld struct {
	environment.Task
	environment.Ender

	r, c        int
	start       int
	position    int // current position
	currentStep timestep.TimeStep
}

// New creates a new gridworld with starting position (x, y), r rows,
// c columns, and task t. Episodes are cut off by ender, which may be
// nil.
func New(x, y, r, c int, t environment.Task,
	ender environment.Ender) (*GridWorld, error) {
	if r < 1 || c < 1 {
		return nil, fmt.Errorf("new: gridworld must have positive "+
			"dimensions\n\thave(%v, %v)", r, c)
	}
	if x < 0 || x >= c || y < 0 || y >= r {
		return nil, fmt.Errorf("new: start (%d, %d) out of bounds (%d, %d)",
			x, y, c, r)
	}
	if t == nil {
		return nil, fmt.Errorf("new: nil task")
	}
	if ender == nil {
		ender = environment.NewStepLimit(0)
	}

	start := cToInd(x, y, c)
	if t.AtGoal(start) {
		return nil, fmt.Errorf("new: start (%d, %d) is a goal", x, y)
	}

	g := &GridWorld{
		Task:  t,
		Ender: ender,
		r:     r,
		c:     c,
		start: start,
	}
	if _, err := g.Reset(); err != nil {
		return nil, err
	}
	return g, nil
}

// Dims gets the rows and columns of the GridWorld
func (g *GridWorld) Dims() (r, c int) {
	return g.r, g.c
}

// At checks the value at position (i, j) in the gridworld. A value of
// 1.0 indicates that the agent is at position (i, j).
func (g *GridWorld) At(i, j int) float64 {
	if (i*g.c)+j == g.position {
		return 1.0
	}
	return 0.0
}

// ObservationSize returns the number of features in an observation
func (g *GridWorld) ObservationSize() int {
	return g.r * g.c
}

// Actions returns the number of actions
func (g *GridWorld) Actions() int {
	return 4
}

// LastTimeStep returns the most recent timestep
func (g *GridWorld) LastTimeStep() timestep.TimeStep {
	return g.currentStep
}

// Reset moves the agent back to the start and begins a new episode
func (g *GridWorld) Reset() (timestep.TimeStep, error) {
	g.position = g.start
	g.currentStep = timestep.New(timestep.First, 0, g.observation(), 0)
	return g.currentStep, nil
}

// Step moves the agent one cell in the direction given by action.
// Moves off the grid leave the agent in place.
func (g *GridWorld) Step(action int) (timestep.TimeStep, bool, error) {
	if action < Left || action > Down {
		return timestep.TimeStep{}, false, fmt.Errorf("step: invalid "+
			"action %v", action)
	}
	if g.currentStep.Last() {
		return timestep.TimeStep{}, false, fmt.Errorf("step: episode " +
			"has ended, Reset must be called")
	}

	x, y := g.Coordinates()
	switch action {
	case Left:
		if x > 0 {
			x--
		}
	case Right:
		if x < g.c-1 {
			x++
		}
	case Up:
		if y < g.r-1 {
			y++
		}
	case Down:
		if y > 0 {
			y--
		}
	}
	next := cToInd(x, y, g.c)

	// Get information to pass back
	reward := g.Reward(g.position, next)
	number := g.currentStep.Number + 1
	g.position = next

	// Check if this transition is to the end state
	stepType := timestep.Mid
	if g.AtGoal(next) {
		stepType = timestep.Last
	}

	step := timestep.New(stepType, reward, g.observation(), number)
	g.End(&step)
	g.currentStep = step

	return step, step.Last(), nil
}

// Coordinates returns the (x, y) coordinates of the agent
func (g *GridWorld) Coordinates() (int, int) {
	return indToC(g.position, g.c)
}

func (g *GridWorld) String() string {
	x, y := g.Coordinates()
	return fmt.Sprintf("GridWorld | At: (%d, %d)  |  Goal: %v  |  "+
		"Bounds: (%d, %d)", x, y, g.Task, g.r, g.c)
}

// observation returns the one-hot encoding of the agent's position
func (g *GridWorld) observation() *mat.VecDense {
	position := mat.NewVecDense(g.r*g.c, nil)
	position.SetVec(g.position, 1.0)
	return position
}

func cToInd(x, y, c int) int {
	return y*c + x
}

func indToC(i, c int) (int, int) {
	y := i / c
	return i - y*c, y
}

var _ environment.Environment = (*GridWorld)(nil)
