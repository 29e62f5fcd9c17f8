// Package experiment implements functionality for running an experiment
package experiment

import (
	"fmt"

	"github.com/samuelfneumann/rainbow/agent"
	"github.com/samuelfneumann/rainbow/environment"
	"github.com/samuelfneumann/rainbow/experiment/tracker"
)

// Interface Experiment outlines structs that can run experiments.
// Experiments send each environment TimeStep to their Trackers, which
// cache the data they need in RAM to be later saved to disk with
// Save(). The Run() method will run all episodes until the maximum
// timestep limit is reached. The RunEpisode() function will run a
// single episode.
type Experiment interface {
	Run() error
	RunEpisode() (bool, error) // Returns whether the step limit was reached

	// Save all tracked data to disk
	Save() error

	// Adds a new tracker.Tracker to the (possibly already running)
	// experiment. Useful if you want to track data only after a
	// specified event.
	Register(t tracker.Tracker)
}

// Type describes the types of Experiments available
type Type string

const (
	OnlineExp Type = "OnlineExperiment"
)

// Config represents a configuration of an experiment.
type Config struct {
	Type
	MaxSteps uint
}

// CreateExp creates the experiment described by the Config, running an
// agent created from agentConf on env.
func (c Config) CreateExp(env environment.Environment, agentConf agent.Config,
	seed uint64, t ...tracker.Tracker) (Experiment, error) {
	if err := agentConf.Validate(); err != nil {
		return nil, fmt.Errorf("createExp: %w", err)
	}
	a, err := agentConf.CreateAgent(env.ObservationSize(), env.Actions(), seed)
	if err != nil {
		return nil, fmt.Errorf("createExp: could not create agent: %w", err)
	}

	switch c.Type {
	case OnlineExp:
		return NewOnline(env, a, c.MaxSteps, t...), nil
	}

	return nil, fmt.Errorf("createExp: no such experiment type %v", c.Type)
}
