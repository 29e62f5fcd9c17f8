package experiment

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/samuelfneumann/rainbow/agent/nonlinear/discrete/rainbow"
	"github.com/samuelfneumann/rainbow/environment"
	"github.com/samuelfneumann/rainbow/environment/gridworld"
	"github.com/samuelfneumann/rainbow/experiment/tracker"
)

func newEnv(t *testing.T) *gridworld.GridWorld {
	goal, err := gridworld.NewGoal([]int{2}, []int{0}, 2, 3, -1, 0)
	require.NoError(t, err)

	g, err := gridworld.New(0, 0, 2, 3, goal, environment.NewStepLimit(10))
	require.NoError(t, err)
	return g
}

func newConfig(t *testing.T) rainbow.Config {
	c, err := rainbow.DefaultConfig(16)
	require.NoError(t, err)
	c.BatchSize = 8
	c.LearnStep = 2
	c.MemorySize = 256
	c.NumAtoms = 11
	c.VMin = -10
	c.VMax = 0
	return c
}

func TestOnline(t *testing.T) {
	dir := t.TempDir()
	env := newEnv(t)

	returns := tracker.NewReturn(filepath.Join(dir, "return.bin"))
	lengths := tracker.NewEpisodeLength(filepath.Join(dir, "length.bin"))

	exp, err := Config{Type: OnlineExp, MaxSteps: 60}.CreateExp(env,
		newConfig(t), 1, returns)
	require.NoError(t, err)
	exp.Register(tracker.Register(lengths, env))

	require.NoError(t, exp.Run())
	require.Equal(t, uint(60), exp.(*Online).Steps())

	// Every episode is cut off after at most 10 steps
	require.GreaterOrEqual(t, len(lengths.Data()), 5)
	require.Equal(t, len(lengths.Data()), len(returns.Data()))
	for i, l := range lengths.Data() {
		require.LessOrEqual(t, l, 10.0)
		require.LessOrEqual(t, returns.Data()[i], 0.0)
		require.GreaterOrEqual(t, returns.Data()[i], -10.0)
	}

	require.NoError(t, exp.Save())
	saved, err := tracker.LoadData(filepath.Join(dir, "return.bin"))
	require.NoError(t, err)
	require.Equal(t, returns.Data(), saved)
	saved, err = tracker.LoadData(filepath.Join(dir, "length.bin"))
	require.NoError(t, err)
	require.Equal(t, lengths.Data(), saved)

	// Running a finished experiment does nothing
	require.NoError(t, exp.Run())
	require.Equal(t, uint(60), exp.(*Online).Steps())
}

func TestCreateExpInvalid(t *testing.T) {
	env := newEnv(t)

	_, err := Config{Type: "Offline", MaxSteps: 10}.CreateExp(env,
		newConfig(t), 1)
	require.Error(t, err)

	c := newConfig(t)
	c.BatchSize = 0
	_, err = Config{Type: OnlineExp, MaxSteps: 10}.CreateExp(env, c, 1)
	require.Error(t, err)
}
