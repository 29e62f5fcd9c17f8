package main

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/samuelfneumann/rainbow/agent/nonlinear/discrete/rainbow"
	"github.com/samuelfneumann/rainbow/environment"
	"github.com/samuelfneumann/rainbow/environment/gridworld"
	"github.com/samuelfneumann/rainbow/experiment"
	"github.com/samuelfneumann/rainbow/experiment/tracker"
)

func main() {
	var seed uint64 = 192382
	logrus.SetLevel(logrus.InfoLevel)

	// Create the environment
	goal, err := gridworld.NewGoal([]int{4}, []int{4}, 5, 5, -1, 0)
	if err != nil {
		logrus.Fatalf("could not create task: %v", err)
	}
	g, err := gridworld.New(0, 0, 5, 5, goal, environment.NewStepLimit(100))
	if err != nil {
		logrus.Fatalf("could not create environment: %v", err)
	}

	// Create the agent configuration
	config, err := rainbow.DefaultConfig(64)
	if err != nil {
		logrus.Fatalf("could not create agent configuration: %v", err)
	}
	config.VMin = -100
	config.VMax = 0

	// Experiment
	filename := filepath.Join(os.TempDir(), "rainbow_return.bin")
	returns := tracker.NewReturn(filename)
	e, err := experiment.Config{
		Type:     experiment.OnlineExp,
		MaxSteps: 10_000,
	}.CreateExp(g, config, seed, returns)
	if err != nil {
		logrus.Fatalf("could not create experiment: %v", err)
	}

	if err := e.Run(); err != nil {
		logrus.Fatalf("could not run experiment: %v", err)
	}
	if err := e.Save(); err != nil {
		logrus.Fatalf("could not save data: %v", err)
	}

	data, err := tracker.LoadData(filename)
	if err != nil {
		logrus.Fatalf("could not load data: %v", err)
	}
	if len(data) > 10 {
		data = data[len(data)-10:]
	}
	logrus.WithField("file", filename).Infof("last returns: %v", data)
}
