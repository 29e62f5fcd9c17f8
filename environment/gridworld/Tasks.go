package gridworld

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Goal represents the task of reaching goal states in a GridWorld
type Goal struct {
	goals          map[int]bool // flattened goal positions
	r, c           int          // total rows and columns in environment
	timeStepReward float64
	goalReward     float64
}

// NewGoal creates and returns a new goal at positions (x[i], y[i]),
// given that the gridworld has r rows and c columns. Each step that
// does not reach a goal is rewarded tr, and reaching a goal is rewarded
// gr.
func NewGoal(x, y []int, r, c int, tr, gr float64) (*Goal, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("newGoal: x length (%d) != y length (%d)",
			len(x), len(y))
	}
	if len(x) == 0 {
		return nil, fmt.Errorf("newGoal: no goals")
	}

	goals := make(map[int]bool, len(x))
	for i := range x {
		// Ensure that the goal is within the proper bounds
		if x[i] < 0 || x[i] >= c {
			return nil, fmt.Errorf("newGoal: x[%d] = %d out of range [0, %d)",
				i, x[i], c)
		} else if y[i] < 0 || y[i] >= r {
			return nil, fmt.Errorf("newGoal: y[%d] = %d out of range [0, %d)",
				i, y[i], r)
		}
		goals[cToInd(x[i], y[i], c)] = true
	}

	return &Goal{goals, r, c, tr, gr}, nil
}

// Reward returns the reward for moving from position to next
func (g *Goal) Reward(_, next int) float64 {
	if g.AtGoal(next) {
		return g.goalReward
	}
	return g.timeStepReward
}

// AtGoal returns whether position is a goal
func (g *Goal) AtGoal(position int) bool {
	return g.goals[position]
}

// String returns the Goal as a string
func (g *Goal) String() string {
	coords := make([][2]int, 0, len(g.goals))
	for i := 0; i < g.r*g.c; i++ {
		if g.goals[i] {
			x, y := indToC(i, g.c)
			coords = append(coords, [2]int{x, y})
		}
	}
	return fmt.Sprintf("%v", coords)
}

// Min returns the minimum reward attainable in the Task
func (g *Goal) Min() float64 {
	return floats.Min([]float64{g.timeStepReward, g.goalReward})
}

// Max returns the maximum reward attainable in the Task
func (g *Goal) Max() float64 {
	return floats.Max([]float64{g.timeStepReward, g.goalReward})
}
