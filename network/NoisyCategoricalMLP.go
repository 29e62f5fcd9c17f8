package network

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/rainbow/initwfn"
	"github.com/samuelfneumann/rainbow/solver"
	"github.com/samuelfneumann/rainbow/support"
	"github.com/samuelfneumann/rainbow/utils/op"
)

// NoisyCategoricalMLP is a multi-layered perceptron which predicts a
// categorical distribution over a value support for each action. The
// hidden layers are fully connected, and the output layer is a noisy
// layer with factorised Gaussian noise producing actions * atoms
// logits. A softmax over the atoms of each action gives the
// distribution.
//
// Computational graphs are compiled lazily, one per batch size and
// purpose, and all of them are built over the same parameter tensors.
type NoisyCategoricalMLP struct {
	features int
	actions  int
	support  *support.Support

	hiddenSizes []int
	activations []*Activation
	noiseStd    float64
	seed        uint64

	hidden []*fcLayer
	output *noisyLayer
	params []*tensor.Dense

	training bool

	solver    *solver.Solver
	forwards  map[int]*forwardGraph
	trainings map[int]*fitGraph
}

// forwardGraph computes the log distribution for a batch of states
type forwardGraph struct {
	g        *G.ExprGraph
	input    *G.Node
	params   G.Nodes
	noise    G.Nodes
	logProbs *G.Node // [batch * actions, atoms]
	vm       G.VM

	logProbsVal G.Value
}

// fitGraph computes and minimises the weighted cross-entropy between
// target distributions and the predicted distributions
type fitGraph struct {
	forwardGraph
	targets *G.Node // [batch * actions, atoms]
	weights *G.Node // [batch]
	cost    *G.Node

	costVal G.Value
}

// NewNoisyCategoricalMLP returns a new NoisyCategoricalMLP predicting a
// distribution over s for each of actions actions. Hidden layer i has
// hiddenSizes[i] units and activation activations[i], with weights
// drawn from init. Noise in the output layer has initial scale
// noiseStd. The network can only be fit if opt is non-nil.
func NewNoisyCategoricalMLP(features, actions int, s *support.Support,
	hiddenSizes []int, activations []*Activation, init *initwfn.InitWFn,
	noiseStd float64, opt *solver.Solver,
	seed uint64) (*NoisyCategoricalMLP, error) {
	if features < 1 {
		return nil, fmt.Errorf("newNoisyCategoricalMLP: features must be "+
			"positive\n\twant(>0)\n\thave(%v)", features)
	}
	if actions < 1 {
		return nil, fmt.Errorf("newNoisyCategoricalMLP: actions must be "+
			"positive\n\twant(>0)\n\thave(%v)", actions)
	}
	if s == nil {
		return nil, fmt.Errorf("newNoisyCategoricalMLP: nil support")
	}
	if len(hiddenSizes) != len(activations) {
		return nil, fmt.Errorf("newNoisyCategoricalMLP: invalid number of "+
			"activations\n\twant(%d)\n\thave(%d)", len(hiddenSizes),
			len(activations))
	}
	for i, size := range hiddenSizes {
		if size < 1 {
			return nil, fmt.Errorf("newNoisyCategoricalMLP: hidden layer "+
				"%v must have a positive size\n\thave(%v)", i, size)
		}
		if activations[i] == nil {
			return nil, fmt.Errorf("newNoisyCategoricalMLP: nil "+
				"activation for layer %v", i)
		}
	}
	if init == nil {
		return nil, fmt.Errorf("newNoisyCategoricalMLP: nil weight " +
			"initializer")
	}
	if noiseStd < 0 {
		return nil, fmt.Errorf("newNoisyCategoricalMLP: noise scale must "+
			"be non-negative\n\thave(%v)", noiseStd)
	}

	hidden := make([]*fcLayer, len(hiddenSizes))
	params := make([]*tensor.Dense, 0, 2*len(hiddenSizes)+4)
	in := features
	for i, size := range hiddenSizes {
		hidden[i] = newFCLayer(in, size, activations[i], init)
		params = append(params, hidden[i].params()...)
		in = size
	}
	output := newNoisyLayer(in, actions*s.Len(), noiseStd, seed)
	params = append(params, output.params()...)

	return &NoisyCategoricalMLP{
		features:    features,
		actions:     actions,
		support:     s,
		hiddenSizes: hiddenSizes,
		activations: activations,
		noiseStd:    noiseStd,
		seed:        seed,
		hidden:      hidden,
		output:      output,
		params:      params,
		training:    true,
		solver:      opt,
		forwards:    make(map[int]*forwardGraph),
		trainings:   make(map[int]*fitGraph),
	}, nil
}

// Clone returns a NoisyCategoricalMLP with the same architecture and
// parameter values which shares no parameter storage with m. The
// clone's solver, if any, starts from fresh optimizer state.
func (m *NoisyCategoricalMLP) Clone() (*NoisyCategoricalMLP, error) {
	var solverClone *solver.Solver
	if m.solver != nil {
		var err error
		if solverClone, err = m.solver.Clone(); err != nil {
			return nil, fmt.Errorf("clone: %w", err)
		}
	}

	zeroes, err := initwfn.NewZeroes()
	if err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}
	clone, err := NewNoisyCategoricalMLP(m.features, m.actions, m.support,
		m.hiddenSizes, m.activations, zeroes, m.noiseStd, solverClone,
		m.seed+1)
	if err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}

	if err := clone.Set(m); err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}
	clone.training = m.training
	return clone, nil
}

// Set sets the parameters of m to be equal to those of source
func (m *NoisyCategoricalMLP) Set(source Approximator) error {
	sourceParams := source.Learnables()
	if len(sourceParams) != len(m.params) {
		return fmt.Errorf("set: invalid number of parameters\n\twant(%v)"+
			"\n\thave(%v)", len(m.params), len(sourceParams))
	}

	for i := range m.params {
		dst := m.params[i].Data().([]float64)
		src, ok := sourceParams[i].Data().([]float64)
		if !ok || len(src) != len(dst) {
			return fmt.Errorf("set: incompatible parameter %v", i)
		}
		copy(dst, src)
	}
	return nil
}

// Learnables returns the parameters of the network in the order: for
// each hidden layer its weights and bias, then the output layer's
// weight means, weight scales, bias means, and bias scales.
func (m *NoisyCategoricalMLP) Learnables() []*tensor.Dense {
	return m.params
}

// ResetNoise resamples the output layer's noise
func (m *NoisyCategoricalMLP) ResetNoise() {
	m.output.reset()
}

// SetTraining sets whether noise is used in the forward pass
func (m *NoisyCategoricalMLP) SetTraining(training bool) {
	m.training = training
}

// IsTraining returns whether noise is used in the forward pass
func (m *NoisyCategoricalMLP) IsTraining() bool {
	return m.training
}

// Features returns the number of features in a single state
func (m *NoisyCategoricalMLP) Features() int {
	return m.features
}

// Actions returns the number of actions a distribution is predicted
// for
func (m *NoisyCategoricalMLP) Actions() int {
	return m.actions
}

// Atoms returns the number of atoms in each predicted distribution
func (m *NoisyCategoricalMLP) Atoms() int {
	return m.support.Len()
}

// Support returns the support of the predicted distributions
func (m *NoisyCategoricalMLP) Support() *support.Support {
	return m.support
}

// build adds the forward pass of the network to g for a batch of
// batch states
func (m *NoisyCategoricalMLP) build(g *G.ExprGraph,
	batch int) (forwardGraph, error) {
	input := G.NewMatrix(g, tensor.Float64, G.WithShape(batch, m.features),
		G.WithName("input"), G.WithInit(G.Zeroes()))

	x := input
	params := make(G.Nodes, 0, len(m.params))
	for i, layer := range m.hidden {
		var layerParams G.Nodes
		var err error
		x, layerParams, err = layer.fwd(g, x, fmt.Sprintf("hidden%d", i))
		if err != nil {
			return forwardGraph{}, fmt.Errorf("build: layer %v: %v", i, err)
		}
		params = append(params, layerParams...)
	}

	logits, outParams, noise, err := m.output.fwd(g, x)
	if err != nil {
		return forwardGraph{}, fmt.Errorf("build: output layer: %v", err)
	}
	params = append(params, outParams...)

	// One row of logits per (state, action) pair
	logits, err = G.Reshape(logits, tensor.Shape{batch * m.actions, m.Atoms()})
	if err != nil {
		return forwardGraph{}, fmt.Errorf("build: %v", err)
	}

	return forwardGraph{
		g:        g,
		input:    input,
		params:   params,
		noise:    noise,
		logProbs: op.LogSoftMax(logits),
	}, nil
}

// forward returns the compiled forward graph for batch states
func (m *NoisyCategoricalMLP) forward(batch int) (*forwardGraph, error) {
	if f, ok := m.forwards[batch]; ok {
		return f, nil
	}

	f, err := m.build(G.NewGraph(), batch)
	if err != nil {
		return nil, err
	}
	G.Read(f.logProbs, &f.logProbsVal)
	f.vm = G.NewTapeMachine(f.g)

	m.forwards[batch] = &f
	return &f, nil
}

// fit returns the compiled training graph for batch states
func (m *NoisyCategoricalMLP) fit(batch int) (*fitGraph, error) {
	if f, ok := m.trainings[batch]; ok {
		return f, nil
	}

	fwd, err := m.build(G.NewGraph(), batch)
	if err != nil {
		return nil, err
	}
	f := fitGraph{forwardGraph: fwd}

	f.targets = G.NewMatrix(f.g, tensor.Float64,
		G.WithShape(batch*m.actions, m.Atoms()), G.WithName("targets"),
		G.WithInit(G.Zeroes()))
	f.weights = G.NewVector(f.g, tensor.Float64, G.WithShape(batch),
		G.WithName("weights"), G.WithInit(G.Ones()))

	// Cross-entropy of each (state, action) pair. Only the pair for the
	// action taken has a non-zero target, so summing over actions gives
	// the cross-entropy of each transition.
	crossEntropy := G.Must(G.HadamardProd(f.targets, f.logProbs))
	crossEntropy = G.Must(G.Sum(crossEntropy, 1))
	crossEntropy = G.Must(G.Neg(crossEntropy))
	crossEntropy = G.Must(G.Reshape(crossEntropy,
		tensor.Shape{batch, m.actions}))
	crossEntropy = G.Must(G.Sum(crossEntropy, 1))

	weighted := G.Must(G.HadamardProd(crossEntropy, f.weights))
	f.cost = G.Must(G.Mean(weighted))
	G.Read(f.cost, &f.costVal)

	if _, err := G.Grad(f.cost, f.params...); err != nil {
		return nil, fmt.Errorf("fit: could not compute gradient: %v", err)
	}
	f.vm = G.NewTapeMachine(f.g, G.BindDualValues(f.params...))

	m.trainings[batch] = &f
	return &f, nil
}

// syncIn copies the network's parameters into the values of the
// parameter nodes of a graph, for any node whose value is not already
// backed by the parameter tensor itself.
func (m *NoisyCategoricalMLP) syncIn(nodes G.Nodes) {
	for i, node := range nodes {
		value, ok := node.Value().(*tensor.Dense)
		if !ok || value == m.params[i] {
			continue
		}
		copy(value.Data().([]float64), m.params[i].Data().([]float64))
	}
}

// syncOut copies the values of a graph's parameter nodes into the
// network's parameters
func (m *NoisyCategoricalMLP) syncOut(nodes G.Nodes) {
	for i, node := range nodes {
		value, ok := node.Value().(*tensor.Dense)
		if !ok || value == m.params[i] {
			continue
		}
		copy(m.params[i].Data().([]float64), value.Data().([]float64))
	}
}

// setInputs sets the states and noise of a graph before it is run
func (m *NoisyCategoricalMLP) setInputs(f *forwardGraph,
	states *mat.Dense) error {
	rows, _ := states.Dims()
	inputTensor := tensor.New(
		tensor.WithBacking(rawCopy(states)),
		tensor.WithShape(rows, m.features),
	)
	if err := G.Let(f.input, inputTensor); err != nil {
		return fmt.Errorf("could not set input: %v", err)
	}

	epsW, epsB := m.output.noise(m.training)
	if err := G.Let(f.noise[0], epsW); err != nil {
		return fmt.Errorf("could not set weight noise: %v", err)
	}
	if err := G.Let(f.noise[1], epsB); err != nil {
		return fmt.Errorf("could not set bias noise: %v", err)
	}

	m.syncIn(f.params)
	return nil
}

// Forward runs the network on a batch of states, one state per row.
// In Values mode, the expected value of each action under its
// predicted distribution is returned with shape [batch, actions]. In
// Distribution and LogDistribution modes, the (log) probabilities are
// returned with shape [batch, actions, atoms].
func (m *NoisyCategoricalMLP) Forward(states *mat.Dense,
	mode Mode) (*tensor.Dense, error) {
	batch, features := states.Dims()
	if features != m.features {
		return nil, fmt.Errorf("forward: invalid number of features"+
			"\n\twant(%v)\n\thave(%v)", m.features, features)
	}

	f, err := m.forward(batch)
	if err != nil {
		return nil, fmt.Errorf("forward: %v", err)
	}
	if err := m.setInputs(f, states); err != nil {
		return nil, fmt.Errorf("forward: %v", err)
	}

	if err := f.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("forward: could not run graph: %v", err)
	}
	logProbs := append([]float64{}, f.logProbsVal.Data().([]float64)...)
	f.vm.Reset()

	atoms := m.Atoms()
	switch mode {
	case LogDistribution:
		return tensor.New(tensor.WithShape(batch, m.actions, atoms),
			tensor.WithBacking(logProbs)), nil

	case Distribution:
		for i := range logProbs {
			logProbs[i] = math.Exp(logProbs[i])
		}
		return tensor.New(tensor.WithShape(batch, m.actions, atoms),
			tensor.WithBacking(logProbs)), nil

	case Values:
		values := make([]float64, batch*m.actions)
		probs := make([]float64, atoms)
		for i := range values {
			for k := range probs {
				probs[k] = math.Exp(logProbs[i*atoms+k])
			}
			values[i] = m.support.Expectation(probs)
		}
		return tensor.New(tensor.WithShape(batch, m.actions),
			tensor.WithBacking(values)), nil

	default:
		return nil, fmt.Errorf("forward: unknown mode %v", mode)
	}
}

// Fit takes one step of the solver on the weighted mean cross-entropy
// between targets and the predicted distributions of the actions
// taken. Row i of targets is the target distribution for action
// actions[i] in row i of states. If weights is nil, every row has
// weight 1. Gradients are clipped to a global norm of at most maxNorm
// before the step, unless maxNorm is not positive.
func (m *NoisyCategoricalMLP) Fit(states *mat.Dense, actions []int,
	targets *mat.Dense, weights []float64, maxNorm float64) (float64, error) {
	if m.solver == nil {
		return 0, fmt.Errorf("fit: network has no solver")
	}

	batch, features := states.Dims()
	if features != m.features {
		return 0, fmt.Errorf("fit: invalid number of features\n\twant(%v)"+
			"\n\thave(%v)", m.features, features)
	}
	if len(actions) != batch {
		return 0, fmt.Errorf("fit: invalid number of actions\n\twant(%v)"+
			"\n\thave(%v)", batch, len(actions))
	}
	targetRows, atoms := targets.Dims()
	if targetRows != batch || atoms != m.Atoms() {
		return 0, fmt.Errorf("fit: invalid target shape\n\twant(%v, %v)"+
			"\n\thave(%v, %v)", batch, m.Atoms(), targetRows, atoms)
	}
	if weights == nil {
		weights = make([]float64, batch)
		floats.AddConst(1, weights)
	} else if len(weights) != batch {
		return 0, fmt.Errorf("fit: invalid number of weights\n\twant(%v)"+
			"\n\thave(%v)", batch, len(weights))
	}

	// Scatter each target row into the row of its action
	scattered := make([]float64, batch*m.actions*atoms)
	for i, action := range actions {
		if action < 0 || action >= m.actions {
			return 0, fmt.Errorf("fit: invalid action %v at row %v", action, i)
		}
		row := (i*m.actions + action) * atoms
		mat.Row(scattered[row:row+atoms], i, targets)
	}

	f, err := m.fit(batch)
	if err != nil {
		return 0, fmt.Errorf("fit: %v", err)
	}
	if err := m.setInputs(&f.forwardGraph, states); err != nil {
		return 0, fmt.Errorf("fit: %v", err)
	}
	targetTensor := tensor.New(tensor.WithShape(batch*m.actions, atoms),
		tensor.WithBacking(scattered))
	if err := G.Let(f.targets, targetTensor); err != nil {
		return 0, fmt.Errorf("fit: could not set targets: %v", err)
	}
	weightTensor := tensor.New(tensor.WithShape(batch),
		tensor.WithBacking(append([]float64{}, weights...)))
	if err := G.Let(f.weights, weightTensor); err != nil {
		return 0, fmt.Errorf("fit: could not set weights: %v", err)
	}

	defer f.vm.Reset()
	if err := f.vm.RunAll(); err != nil {
		return 0, fmt.Errorf("fit: could not run graph: %v", err)
	}
	loss, err := scalar(f.costVal)
	if err != nil {
		return 0, fmt.Errorf("fit: %v", err)
	}

	model := make([]G.ValueGrad, len(f.params))
	for i := range f.params {
		model[i] = f.params[i]
	}
	if maxNorm > 0 {
		if _, err := solver.ClipModel(model, maxNorm); err != nil {
			return 0, fmt.Errorf("fit: %w", err)
		}
	}
	if err := m.solver.Step(model); err != nil {
		return 0, fmt.Errorf("fit: could not step solver: %v", err)
	}
	m.syncOut(f.params)

	return loss, nil
}

// rawCopy returns the elements of a matrix in row-major order
func rawCopy(m *mat.Dense) []float64 {
	rows, cols := m.Dims()
	data := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		data = append(data, m.RawRowView(i)...)
	}
	return data
}

// scalar returns the float64 held by a scalar Value
func scalar(v G.Value) (float64, error) {
	switch data := v.Data().(type) {
	case float64:
		return data, nil
	case []float64:
		if len(data) == 1 {
			return data[0], nil
		}
	}
	return 0, fmt.Errorf("value %v is not a float64 scalar", v)
}
