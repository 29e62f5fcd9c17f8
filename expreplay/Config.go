package expreplay

import "fmt"

// Config implements a configuration of an n-step replay memory. An
// NStep of 1 results in plain one-step transitions.
type Config struct {
	Capacity int
	NStep    int
	Gamma    float64
}

// Validate returns an error if the Config is invalid
func (c Config) Validate() error {
	if c.Capacity < 1 {
		return fmt.Errorf("validate: capacity must be positive\n\twant(>0)"+
			"\n\thave(%v)", c.Capacity)
	}
	if c.NStep < 1 {
		return fmt.Errorf("validate: n-step must be positive\n\twant(>0)"+
			"\n\thave(%v)", c.NStep)
	}
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("validate: gamma must be in [0, 1]\n\thave(%v)",
			c.Gamma)
	}
	return nil
}

// Create returns the NStep memory described by the Config
func (c Config) Create(featureSize int, seed uint64) (*NStep, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("create: %w", err)
	}
	return NewNStep(c.Capacity, featureSize, c.NStep, c.Gamma, seed)
}
