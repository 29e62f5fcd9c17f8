package rainbow

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/rainbow/expreplay"
	"github.com/samuelfneumann/rainbow/network"
	"github.com/samuelfneumann/rainbow/support"
	"github.com/samuelfneumann/rainbow/utils/floatutils"
)

// DefaultGradClip is the ceiling on the global gradient norm of the
// online approximator for each learning step
const DefaultGradClip = 10.0

// EngineConfig holds the hyperparameters of an Engine
type EngineConfig struct {
	Support *support.Support

	Gamma          float64 // Discount
	NStep          int     // Horizon of n-step returns
	CombinedReward bool    // Whether to sum one-step and n-step losses

	PriorEps float64 // Floor added to new priorities
	GradClip float64 // Global gradient norm ceiling
	Tau      float64 // Polyak averaging constant

	// Logger defaults to the logrus standard logger if nil
	Logger logrus.FieldLogger
}

// Validate checks that an EngineConfig holds valid hyperparameters
func (c EngineConfig) Validate() error {
	if c.Support == nil {
		return fmt.Errorf("validate: nil support")
	}
	return c.validateHyperparameters()
}

// validateHyperparameters checks every field but the support and
// logger
func (c EngineConfig) validateHyperparameters() error {
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("validate: discount must be in [0, 1]"+
			"\n\thave(%v)", c.Gamma)
	}
	if c.NStep < 1 {
		return fmt.Errorf("validate: n-step horizon must be positive"+
			"\n\twant(>0)\n\thave(%v)", c.NStep)
	}
	if c.PriorEps <= 0 {
		return fmt.Errorf("validate: priority floor must be positive"+
			"\n\twant(>0)\n\thave(%v)", c.PriorEps)
	}
	if c.GradClip <= 0 {
		return fmt.Errorf("validate: gradient clip must be positive"+
			"\n\twant(>0)\n\thave(%v)", c.GradClip)
	}
	if c.Tau <= 0 || c.Tau > 1 {
		return fmt.Errorf("validate: τ must be in (0, 1]\n\thave(%v)", c.Tau)
	}
	return nil
}

// Result is the outcome of a single learning step
type Result struct {
	// Loss is the scalar loss that was minimised
	Loss float64

	// Elementwise holds the loss of each transition in the batch before
	// importance sampling weights are applied
	Elementwise []float64

	// Indices and Priorities are only set for prioritised batches.
	// Priorities[i] is the new priority of the transition at Indices[i].
	Indices    []int
	Priorities []float64
}

// Engine performs the distributional Bellman update of a categorical
// action-value approximator. The next action at each next state is
// chosen by the online approximator and evaluated by the target
// approximator (double-Q). The target distribution is projected back
// onto the support and the online approximator is adapted to minimise
// the cross-entropy between the projected target and its prediction.
type Engine struct {
	online  network.Trainable
	target  network.Approximator
	updater *SoftUpdater
	support *support.Support

	gamma          float64
	nStep          int
	nGamma         float64
	combinedReward bool
	priorEps       float64
	gradClip       float64

	steps  int
	logger logrus.FieldLogger
}

// NewEngine returns a new Engine which adapts online and moves target
// towards online after each learning step.
func NewEngine(c EngineConfig, online network.Trainable,
	target network.Approximator) (*Engine, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newEngine: %w", err)
	}
	if online == nil || target == nil {
		return nil, fmt.Errorf("newEngine: nil approximator")
	}

	atoms := c.Support.Len()
	if online.Atoms() != atoms || target.Atoms() != atoms {
		return nil, fmt.Errorf("newEngine: invalid number of atoms"+
			"\n\twant(%v)\n\thave(online=%v, target=%v)", atoms,
			online.Atoms(), target.Atoms())
	}
	if online.Actions() != target.Actions() {
		return nil, fmt.Errorf("newEngine: invalid number of actions"+
			"\n\twant(%v)\n\thave(%v)", online.Actions(), target.Actions())
	}
	if online.Features() != target.Features() {
		return nil, fmt.Errorf("newEngine: invalid number of features"+
			"\n\twant(%v)\n\thave(%v)", online.Features(), target.Features())
	}

	updater, err := NewSoftUpdater(online, target, c.Tau)
	if err != nil {
		return nil, fmt.Errorf("newEngine: %w", err)
	}

	logger := c.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Engine{
		online:         online,
		target:         target,
		updater:        updater,
		support:        c.Support,
		gamma:          c.Gamma,
		nStep:          c.NStep,
		nGamma:         math.Pow(c.Gamma, float64(c.NStep)),
		combinedReward: c.CombinedReward,
		priorEps:       c.PriorEps,
		gradClip:       c.GradClip,
		logger:         logger.WithField("component", "engine"),
	}, nil
}

// Steps returns the number of learning steps taken
func (e *Engine) Steps() int {
	return e.steps
}

// Updater returns the SoftUpdater which moves the target approximator
// towards the online approximator
func (e *Engine) Updater() *SoftUpdater {
	return e.updater
}

// ComputeLoss returns the cross-entropy between the projected target
// distribution and the online approximator's predicted distribution for
// each transition in batch. The discount gammaEffective should be γ for
// one-step transitions and γⁿ for n-step transitions.
func (e *Engine) ComputeLoss(batch expreplay.Batch,
	gammaEffective float64) ([]float64, error) {
	loss, _, err := e.computeLoss(batch, gammaEffective)
	return loss, err
}

// computeLoss returns the elementwise loss on a batch as well as the
// projected target distributions
func (e *Engine) computeLoss(batch expreplay.Batch,
	gammaEffective float64) ([]float64, *mat.Dense, error) {
	if err := batch.Validate(); err != nil {
		return nil, nil, fmt.Errorf("computeLoss: %w", err)
	}
	if _, features := batch.States.Dims(); features != e.online.Features() {
		return nil, nil, fmt.Errorf("computeLoss: invalid number of "+
			"features\n\twant(%v)\n\thave(%v)", e.online.Features(), features)
	}

	size := batch.Len()
	actions := e.online.Actions()
	atoms := e.support.Len()
	for i, a := range batch.Actions {
		if a < 0 || a >= actions {
			return nil, nil, fmt.Errorf("computeLoss: action %v of "+
				"transition %v out of range [0, %v)", a, i, actions)
		}
	}

	// Next actions are selected by the online approximator
	values, err := e.online.Forward(batch.NextStates, network.Values)
	if err != nil {
		return nil, nil, fmt.Errorf("computeLoss: %w", err)
	}
	if err := checkShape("computeLoss", "online values", values.Shape(),
		size, actions); err != nil {
		return nil, nil, err
	}
	valueData := values.Data().([]float64)

	// ... and evaluated by the target approximator
	dists, err := e.target.Forward(batch.NextStates, network.Distribution)
	if err != nil {
		return nil, nil, fmt.Errorf("computeLoss: %w", err)
	}
	if err := checkShape("computeLoss", "target distribution",
		dists.Shape(), size, actions, atoms); err != nil {
		return nil, nil, err
	}
	distData := dists.Data().([]float64)

	next := mat.NewDense(size, atoms, nil)
	for i := 0; i < size; i++ {
		a := floatutils.ArgMax(valueData[i*actions : (i+1)*actions]...)
		start := (i*actions + a) * atoms
		copy(next.RawRowView(i), distData[start:start+atoms])
	}

	proj, err := Project(e.support, batch.Rewards, batch.Dones,
		gammaEffective, next)
	if err != nil {
		return nil, nil, fmt.Errorf("computeLoss: %w", err)
	}

	logDists, err := e.online.Forward(batch.States, network.LogDistribution)
	if err != nil {
		return nil, nil, fmt.Errorf("computeLoss: %w", err)
	}
	if err := checkShape("computeLoss", "online log distribution",
		logDists.Shape(), size, actions, atoms); err != nil {
		return nil, nil, err
	}

	loss := crossEntropy(proj, logDists, batch.Actions)
	return loss, proj, nil
}

// crossEntropy returns -Σₖ target[i, k] log p[i, actions[i], k] for
// each row i of target. Atoms with no target mass contribute nothing.
func crossEntropy(target *mat.Dense, logDists *tensor.Dense,
	actions []int) []float64 {
	rows, atoms := target.Dims()
	numActions := logDists.Shape()[1]
	logData := logDists.Data().([]float64)

	loss := make([]float64, rows)
	for i := 0; i < rows; i++ {
		start := (i*numActions + actions[i]) * atoms
		logP := logData[start : start+atoms]
		for k, p := range target.RawRowView(i) {
			if p != 0 {
				loss[i] -= p * logP[k]
			}
		}
	}
	return loss
}

// Learn takes a single learning step on a batch of one-step transitions
// and, optionally, the aligned batch of n-step transitions starting at
// the same states. nStep may be nil.
//
// If the Engine does not combine rewards, the n-step loss replaces the
// one-step loss whenever nStep is given. Otherwise, the two losses are
// summed for each transition. Importance sampling weights, if any, are
// applied to this sum. After the gradient step, the target approximator
// is moved towards the online approximator and the noise of both is
// resampled.
func (e *Engine) Learn(one expreplay.Batch, nStep *expreplay.Batch) (Result,
	error) {
	// The one-step batch supplies weights and indices even when only
	// the n-step loss is computed
	if err := one.Validate(); err != nil {
		return Result{}, fmt.Errorf("learn: one-step batch: %w", err)
	}
	if nStep != nil {
		if err := nStep.Validate(); err != nil {
			return Result{}, fmt.Errorf("learn: n-step batch: %w", err)
		}
		if nStep.Len() != one.Len() {
			return Result{}, fmt.Errorf("learn: misaligned n-step batch"+
				"\n\twant(%v)\n\thave(%v)", one.Len(), nStep.Len())
		}
		if one.Indices != nil && nStep.Indices != nil &&
			!intsEqual(one.Indices, nStep.Indices) {
			return Result{}, fmt.Errorf("learn: misaligned n-step batch "+
				"indices\n\twant(%v)\n\thave(%v)", one.Indices, nStep.Indices)
		}
	}

	// Noise is active for the whole learning step
	onlineTraining, targetTraining := e.online.IsTraining(),
		e.target.IsTraining()
	e.online.SetTraining(true)
	e.target.SetTraining(true)
	defer func() {
		e.online.SetTraining(onlineTraining)
		e.target.SetTraining(targetTraining)
	}()

	// Weights and indices come from whichever batch carries them
	source := one
	if !source.Prioritised() && nStep != nil && nStep.Prioritised() {
		source = *nStep
	}
	weights := source.Weights

	var (
		elementwise []float64
		states      *mat.Dense
		actions     []int
		targets     *mat.Dense
		fitWeights  []float64
	)

	switch {
	case nStep == nil:
		loss, proj, err := e.computeLoss(one, e.gamma)
		if err != nil {
			return Result{}, fmt.Errorf("learn: %w", err)
		}
		elementwise, states, actions, targets = loss, one.States,
			one.Actions, proj
		fitWeights = weights

	case !e.combinedReward:
		loss, proj, err := e.computeLoss(*nStep, e.nGamma)
		if err != nil {
			return Result{}, fmt.Errorf("learn: %w", err)
		}
		elementwise, states, actions, targets = loss, nStep.States,
			nStep.Actions, proj
		fitWeights = weights

	default:
		oneLoss, oneProj, err := e.computeLoss(one, e.gamma)
		if err != nil {
			return Result{}, fmt.Errorf("learn: %w", err)
		}
		nLoss, nProj, err := e.computeLoss(*nStep, e.nGamma)
		if err != nil {
			return Result{}, fmt.Errorf("learn: %w", err)
		}

		elementwise = make([]float64, len(oneLoss))
		floats.AddTo(elementwise, oneLoss, nLoss)

		// Both batches are fit at once. Doubling the weights makes the
		// mean over the stacked rows equal the mean of the summed losses.
		states = stack(one.States, nStep.States)
		targets = stack(oneProj, nProj)
		actions = append(append([]int{}, one.Actions...), nStep.Actions...)
		fitWeights = make([]float64, 2*one.Len())
		for i := range fitWeights {
			fitWeights[i] = 2
			if weights != nil {
				fitWeights[i] *= weights[i%one.Len()]
			}
		}
	}

	scalar := weightedMean(elementwise, weights)
	if _, err := e.online.Fit(states, actions, targets, fitWeights,
		e.gradClip); err != nil {
		return Result{}, fmt.Errorf("learn: %w", err)
	}
	e.steps++

	result := Result{
		Loss:        scalar,
		Elementwise: elementwise,
	}
	if source.Prioritised() {
		result.Indices = append([]int{}, source.Indices...)
		result.Priorities = make([]float64, len(elementwise))
		for i, l := range elementwise {
			result.Priorities[i] = l + e.priorEps
		}
	}

	if err := e.updater.SoftUpdate(); err != nil {
		return Result{}, fmt.Errorf("learn: %w", err)
	}
	e.online.ResetNoise()
	e.target.ResetNoise()

	e.logger.Debugf("learning step %v: loss %.5f", e.steps, scalar)
	return result, nil
}

// weightedMean returns the mean of x weighted elementwise by weights,
// or the plain mean if weights is nil
func weightedMean(x, weights []float64) float64 {
	if weights == nil {
		return floats.Sum(x) / float64(len(x))
	}
	return floats.Dot(x, weights) / float64(len(x))
}

// stack returns the rows of a followed by the rows of b
func stack(a, b *mat.Dense) *mat.Dense {
	aRows, cols := a.Dims()
	bRows, _ := b.Dims()

	out := mat.NewDense(aRows+bRows, cols, nil)
	out.Slice(0, aRows, 0, cols).(*mat.Dense).Copy(a)
	out.Slice(aRows, aRows+bRows, 0, cols).(*mat.Dense).Copy(b)
	return out
}

// intsEqual returns whether a and b hold the same values in order
func intsEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
