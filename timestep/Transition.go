package timestep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Transition is a single (s, a, r, s', done) tuple of experience
type Transition struct {
	State     mat.Vector
	Action    int
	Reward    float64
	NextState mat.Vector
	Done      bool
}

// NewTransition creates a new Transition from taking action in the
// observation of step and transitioning to nextStep. The transition is
// terminal if nextStep is the last step of an episode.
func NewTransition(step TimeStep, action int, nextStep TimeStep) Transition {
	return Transition{
		State:     step.Observation,
		Action:    action,
		Reward:    nextStep.Reward,
		NextState: nextStep.Observation,
		Done:      nextStep.Last(),
	}
}

// Clone returns a copy of the Transition which shares no memory with
// the original.
func (t Transition) Clone() Transition {
	return Transition{
		State:     cloneVec(t.State),
		Action:    t.Action,
		Reward:    t.Reward,
		NextState: cloneVec(t.NextState),
		Done:      t.Done,
	}
}

// DoneFloat returns 1.0 if the transition is terminal and 0.0 otherwise
func (t Transition) DoneFloat() float64 {
	if t.Done {
		return 1.0
	}
	return 0.0
}

func (t Transition) String() string {
	return fmt.Sprintf("Transition | Action: %v  |  Reward: %.2f  |  "+
		"Done: %v", t.Action, t.Reward, t.Done)
}

func cloneVec(v mat.Vector) mat.Vector {
	if v == nil {
		return nil
	}
	c := mat.NewVecDense(v.Len(), nil)
	c.CopyVec(v)
	return c
}
