package rainbow

import (
	"fmt"

	"github.com/samuelfneumann/rainbow/agent"
	"github.com/samuelfneumann/rainbow/initwfn"
	"github.com/samuelfneumann/rainbow/network"
	"github.com/samuelfneumann/rainbow/solver"
)

// Config implements a configuration for a Rainbow agent
type Config struct {
	HiddenSizes []int                 // Layer sizes in neural net
	Activations []*network.Activation // Activation of each layer
	Solver      *solver.Solver        // Solver for learning weights

	// Initialization algorithm for weights
	InitWFn *initwfn.InitWFn

	BatchSize int // Transitions sampled per learning step
	LearnStep int // Observations between learning steps

	Gamma    float64 // Discount
	Tau      float64 // Polyak averaging constant
	PriorEps float64 // Floor added to new priorities

	// Value distribution
	NumAtoms int
	VMin     float64
	VMax     float64

	NoiseStd float64 // Initial scale of the output layer noise

	// Multi-step returns
	NStep          int
	CombinedReward bool

	MemorySize int     // Capacity of the replay memory
	GradClip   float64 // Global gradient norm ceiling, 10.0 if zero
}

// DefaultConfig returns the Config of a Rainbow agent with a single
// hidden layer of the given size and the usual Rainbow
// hyperparameters
func DefaultConfig(hiddenSize int) (Config, error) {
	opt, err := solver.NewDefaultAdam(1e-4)
	if err != nil {
		return Config{}, fmt.Errorf("defaultConfig: %w", err)
	}
	init, err := initwfn.NewGlorotU(1.0)
	if err != nil {
		return Config{}, fmt.Errorf("defaultConfig: %w", err)
	}

	return Config{
		HiddenSizes:    []int{hiddenSize},
		Activations:    []*network.Activation{network.ReLU()},
		Solver:         opt,
		InitWFn:        init,
		BatchSize:      64,
		LearnStep:      5,
		Gamma:          0.99,
		Tau:            1e-3,
		PriorEps:       1e-6,
		NumAtoms:       51,
		VMin:           -10,
		VMax:           10,
		NoiseStd:       0.5,
		NStep:          3,
		CombinedReward: false,
		MemorySize:     100_000,
		GradClip:       DefaultGradClip,
	}, nil
}

// gradClip returns the gradient norm ceiling of the configuration
func (c Config) gradClip() float64 {
	if c.GradClip == 0 {
		return DefaultGradClip
	}
	return c.GradClip
}

// Validate checks a Config to ensure it is a valid configuration of a
// Rainbow agent.
func (c Config) Validate() error {
	if len(c.HiddenSizes) != len(c.Activations) {
		return fmt.Errorf("validate: invalid number of activations"+
			"\n\twant(%v)\n\thave(%v)", len(c.HiddenSizes), len(c.Activations))
	}
	if c.Solver == nil {
		return fmt.Errorf("validate: nil solver")
	}
	if err := c.Solver.Validate(); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	if c.InitWFn == nil {
		return fmt.Errorf("validate: nil weight initializer")
	}

	if c.BatchSize < 1 {
		return fmt.Errorf("validate: batch size must be positive"+
			"\n\twant(>0)\n\thave(%v)", c.BatchSize)
	}
	if c.LearnStep < 1 {
		return fmt.Errorf("validate: learn step must be positive"+
			"\n\twant(>0)\n\thave(%v)", c.LearnStep)
	}
	if c.MemorySize < c.BatchSize {
		return fmt.Errorf("validate: memory cannot hold a batch"+
			"\n\twant(>=%v)\n\thave(%v)", c.BatchSize, c.MemorySize)
	}

	if c.NumAtoms < 1 {
		return fmt.Errorf("validate: number of atoms must be positive"+
			"\n\twant(>0)\n\thave(%v)", c.NumAtoms)
	}
	if c.VMax < c.VMin {
		return fmt.Errorf("validate: maximum value %v less than minimum "+
			"value %v", c.VMax, c.VMin)
	}
	if c.NoiseStd < 0 {
		return fmt.Errorf("validate: noise scale must be non-negative"+
			"\n\thave(%v)", c.NoiseStd)
	}

	return EngineConfig{
		Gamma:    c.Gamma,
		NStep:    c.NStep,
		PriorEps: c.PriorEps,
		GradClip: c.gradClip(),
		Tau:      c.Tau,
	}.validateHyperparameters()
}

// ValidAgent returns whether the agent is valid for the configuration.
// That is, whether Agent a can be constructed with Config c.
func (c Config) ValidAgent(a agent.Agent) bool {
	_, ok := a.(*Rainbow)
	return ok
}

// CreateAgent creates a new Rainbow agent based on the configuration
func (c Config) CreateAgent(features, actions int,
	seed uint64) (agent.Agent, error) {
	r, err := New(features, actions, c, seed)
	if err != nil {
		return nil, err
	}
	return r, nil
}

var (
	_ agent.Agent        = (*Rainbow)(nil)
	_ agent.BatchLearner = (*Rainbow)(nil)
	_ agent.BatchPolicy  = (*Rainbow)(nil)
	_ agent.Config       = Config{}
)
