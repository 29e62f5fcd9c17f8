// Package rainbow implements the learning core of the Rainbow DQN
// algorithm: a categorical distributional action-value approximator
// with noisy exploration, double-Q targets, n-step returns, and Polyak
// averaged target networks.
package rainbow

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/rainbow/agent/nonlinear/discrete/policy"
	"github.com/samuelfneumann/rainbow/expreplay"
	"github.com/samuelfneumann/rainbow/network"
	"github.com/samuelfneumann/rainbow/support"
	ts "github.com/samuelfneumann/rainbow/timestep"
)

// Rainbow implements the Rainbow DQN agent. Actions are selected
// greedily with respect to the expected values of a noisy categorical
// network, so exploration comes from the network's noise rather than
// from an ε-greedy schedule.
type Rainbow struct {
	online *network.NoisyCategoricalMLP
	target *network.NoisyCategoricalMLP
	engine *Engine
	policy *policy.Greedy
	replay *expreplay.NStep

	config   Config
	features int
	actions  int
	seed     uint64

	// Learning schedule
	observed  int // Transitions observed
	lastLearn int // Value of observed at the last learning step

	// Keep track of the previous timestep to add to the replay memory
	prevStep ts.TimeStep
	started  bool

	eval   bool // Whether or not in evaluation mode
	logger *logrus.Entry
}

// New creates and returns a new Rainbow agent for an environment with
// the given number of observation features and discrete actions
func New(features, actions int, c Config, seed uint64) (*Rainbow, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	s, err := support.New(c.VMin, c.VMax, c.NumAtoms)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	// Each agent gets its own optimizer state
	opt, err := c.Solver.Clone()
	if err != nil {
		return nil, fmt.Errorf("new: could not create solver: %w", err)
	}

	online, err := network.NewNoisyCategoricalMLP(features, actions, s,
		c.HiddenSizes, c.Activations, c.InitWFn, c.NoiseStd, opt, seed)
	if err != nil {
		return nil, fmt.Errorf("new: could not create online network: %w",
			err)
	}

	// The target network owns its parameters and starts as a copy of
	// the online network
	target, err := network.NewNoisyCategoricalMLP(features, actions, s,
		c.HiddenSizes, c.Activations, c.InitWFn, c.NoiseStd, nil, seed+1)
	if err != nil {
		return nil, fmt.Errorf("new: could not create target network: %w",
			err)
	}

	logger := logrus.WithFields(logrus.Fields{
		"agent": "rainbow",
		"seed":  seed,
	})

	engine, err := NewEngine(EngineConfig{
		Support:        s,
		Gamma:          c.Gamma,
		NStep:          c.NStep,
		CombinedReward: c.CombinedReward,
		PriorEps:       c.PriorEps,
		GradClip:       c.gradClip(),
		Tau:            c.Tau,
		Logger:         logger,
	}, online, target)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}
	if err := engine.Updater().HardUpdate(); err != nil {
		return nil, fmt.Errorf("new: could not copy online network: %w", err)
	}

	greedy, err := policy.NewGreedy(online)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	replay, err := expreplay.Config{
		Capacity: c.MemorySize,
		NStep:    c.NStep,
		Gamma:    c.Gamma,
	}.Create(features, seed)
	if err != nil {
		return nil, fmt.Errorf("new: could not create replay memory: %w", err)
	}

	return &Rainbow{
		online:   online,
		target:   target,
		engine:   engine,
		policy:   greedy,
		replay:   replay,
		config:   c,
		features: features,
		actions:  actions,
		seed:     seed,
		logger:   logger,
	}, nil
}

// Engine returns the update engine of the agent
func (r *Rainbow) Engine() *Engine {
	return r.engine
}

// Memory returns the replay memory of the agent
func (r *Rainbow) Memory() *expreplay.NStep {
	return r.replay
}

// Online returns the network used for action selection
func (r *Rainbow) Online() network.Approximator {
	return r.online
}

// Target returns the network providing the update target
func (r *Rainbow) Target() network.Approximator {
	return r.target
}

// ObserveFirst observes and records the first episodic timestep
func (r *Rainbow) ObserveFirst(t ts.TimeStep) error {
	if !t.First() {
		r.logger.Infof("ObserveFirst called on a non-first timestep "+
			"(current timestep = %d)", t.Number)
	}
	if t.Observation == nil || t.Observation.Len() != r.features {
		return fmt.Errorf("observeFirst: invalid observation")
	}

	r.prevStep = t
	r.started = true
	return nil
}

// Observe records that taking action in the previously observed
// timestep led to nextStep
func (r *Rainbow) Observe(action int, nextStep ts.TimeStep) error {
	if !r.started {
		return fmt.Errorf("observe: no previous timestep, ObserveFirst " +
			"must be called at the start of each episode")
	}
	if action < 0 || action >= r.actions {
		return fmt.Errorf("observe: action %v out of range [0, %v)", action,
			r.actions)
	}

	transition := ts.NewTransition(r.prevStep, action, nextStep)
	if err := r.replay.Insert(transition); err != nil {
		return fmt.Errorf("observe: %w", err)
	}
	r.observed++

	r.prevStep = nextStep
	if nextStep.Last() {
		r.started = false
	}
	return nil
}

// ObserveTransitions records one transition from each of a number of
// vectorised environments, transition i coming from environment i. A
// call counts as a single observation for the learning schedule.
func (r *Rainbow) ObserveTransitions(transitions []ts.Transition) error {
	for i, t := range transitions {
		if t.Action < 0 || t.Action >= r.actions {
			return fmt.Errorf("observeTransitions: action %v of transition "+
				"%v out of range [0, %v)", t.Action, i, r.actions)
		}
	}
	if err := r.replay.InsertBatch(transitions); err != nil {
		return fmt.Errorf("observeTransitions: %w", err)
	}
	r.observed++
	return nil
}

// Step takes a learning step every LearnStep observations, once the
// replay memory holds at least a batch of transitions.
func (r *Rainbow) Step() error {
	if r.observed-r.lastLearn < r.config.LearnStep {
		return nil
	}

	one, nStep, err := r.replay.Sample(r.config.BatchSize)
	if expreplay.IsInsufficientData(err) {
		r.logger.Debugf("skipping learning step: %v", err)
		return nil
	} else if err != nil {
		return fmt.Errorf("step: %w", err)
	}
	r.lastLearn = r.observed

	// With a one-step horizon the two batches are identical
	var nBatch *expreplay.Batch
	if r.config.NStep > 1 {
		nBatch = &nStep
	}

	result, err := r.engine.Learn(one, nBatch)
	if err != nil {
		return fmt.Errorf("step: %w", err)
	}
	r.logger.Debugf("target network updated with τ = %v after step %v "+
		"(loss %.5f)", r.config.Tau, r.engine.Steps(), result.Loss)
	return nil
}

// SelectAction returns the action selected by the agent in a timestep.
// Noise is used for exploration only in training mode.
func (r *Rainbow) SelectAction(t ts.TimeStep) (int, error) {
	if t.Observation == nil || t.Observation.Len() != r.features {
		return 0, fmt.Errorf("selectAction: invalid observation")
	}

	state := mat.NewDense(1, r.features, nil)
	for i := 0; i < r.features; i++ {
		state.Set(0, i, t.Observation.AtVec(i))
	}

	actions, err := r.SelectActions(state, nil)
	if err != nil {
		return 0, err
	}
	return actions[0], nil
}

// SelectActions returns the action selected by the agent in each row
// of states, restricted to the legal actions in mask if mask is
// non-nil.
func (r *Rainbow) SelectActions(states *mat.Dense,
	mask [][]bool) ([]int, error) {
	actions, err := r.policy.SelectAction(states, mask, !r.eval)
	if err != nil {
		return nil, fmt.Errorf("selectActions: %w", err)
	}
	return actions, nil
}

// Eval sets the agent into evaluation mode
func (r *Rainbow) Eval() {
	r.eval = true
}

// Train sets the agent into training mode
func (r *Rainbow) Train() {
	r.eval = false
}

// IsEval returns whether the agent is in evaluation mode
func (r *Rainbow) IsEval() bool {
	return r.eval
}

// EndEpisode cleans up at the end of an episode
func (r *Rainbow) EndEpisode() {
	r.started = false
}

// Clone returns a new Rainbow agent with the same configuration and
// network parameters as r. The clone has an empty replay memory and
// shares no parameters with r.
func (r *Rainbow) Clone() (*Rainbow, error) {
	clone, err := New(r.features, r.actions, r.config, r.seed)
	if err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}
	if err := clone.online.Set(r.online); err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}
	if err := clone.target.Set(r.target); err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}
	clone.eval = r.eval
	return clone, nil
}
