package network

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/rainbow/initwfn"
)

// fcLayer implements a fully connected layer of a feed forward neural
// network. The layer owns its parameter tensors, and any number of
// computational graphs may be built over them.
type fcLayer struct {
	weights *tensor.Dense
	bias    *tensor.Dense
	act     *Activation
}

// newFCLayer returns a new fcLayer mapping in features to out features
func newFCLayer(in, out int, act *Activation,
	init *initwfn.InitWFn) *fcLayer {
	return &fcLayer{
		weights: init.Fill(in, out),
		bias:    tensor.New(tensor.WithShape(out), tensor.Of(tensor.Float64)),
		act:     act,
	}
}

// params returns the parameters of the layer
func (f *fcLayer) params() []*tensor.Dense {
	return []*tensor.Dense{f.weights, f.bias}
}

// fwd adds the forward pass of the fcLayer to the computational graph
// and returns the output node along with the parameter nodes created
func (f *fcLayer) fwd(g *G.ExprGraph, x *G.Node,
	name string) (*G.Node, G.Nodes, error) {
	w := G.NewMatrix(g, tensor.Float64, G.WithShape(f.weights.Shape()...),
		G.WithName(name+"W"), G.WithValue(f.weights))
	b := G.NewVector(g, tensor.Float64, G.WithShape(f.bias.Shape()...),
		G.WithName(name+"B"), G.WithValue(f.bias))

	x, err := G.Mul(x, w)
	if err != nil {
		return nil, nil, fmt.Errorf("fwd: %v", err)
	}

	// Broadcast the bias weights to all samples along the batch
	// dimension
	x, err = G.BroadcastAdd(x, b, nil, []byte{0})
	if err != nil {
		return nil, nil, fmt.Errorf("fwd: %v", err)
	}

	if x, err = f.act.fwd(x); err != nil {
		return nil, nil, fmt.Errorf("fwd: %v", err)
	}
	return x, G.Nodes{w, b}, nil
}

// noisyLayer implements a fully connected layer with factorised
// Gaussian parameter noise. The effective weights are
//
//	W = μ_W + σ_W ⊙ ε_W
//	b = μ_b + σ_b ⊙ ε_b
//
// where ε_W = f(ε_in) f(ε_out)ᵀ, ε_b = f(ε_out), f(x) = sgn(x)√|x|,
// and ε_in, ε_out are standard normal. Noise is held fixed between
// calls to reset.
type noisyLayer struct {
	in, out int

	muW, sigmaW *tensor.Dense
	muB, sigmaB *tensor.Dense

	epsW, epsB   *tensor.Dense // Current noise
	zeroW, zeroB *tensor.Dense // Noise used when not exploring
	normal       distuv.Normal
}

// newNoisyLayer returns a new noisyLayer mapping in features to out
// features. Means are drawn uniformly from ±1/√in and standard
// deviations start at std/√in for the weights and std/√out for the
// biases.
func newNoisyLayer(in, out int, std float64, seed uint64) *noisyLayer {
	src := rand.NewSource(seed)
	bound := 1 / math.Sqrt(float64(in))
	uniform := distuv.Uniform{Min: -bound, Max: bound, Src: src}

	muW := make([]float64, in*out)
	for i := range muW {
		muW[i] = uniform.Rand()
	}
	muB := make([]float64, out)
	for i := range muB {
		muB[i] = uniform.Rand()
	}

	l := &noisyLayer{
		in:     in,
		out:    out,
		muW:    tensor.New(tensor.WithShape(in, out), tensor.WithBacking(muW)),
		sigmaW: filled(std/math.Sqrt(float64(in)), in, out),
		muB:    tensor.New(tensor.WithShape(out), tensor.WithBacking(muB)),
		sigmaB: filled(std/math.Sqrt(float64(out)), out),
		epsW:   tensor.New(tensor.WithShape(in, out), tensor.Of(tensor.Float64)),
		epsB:   tensor.New(tensor.WithShape(out), tensor.Of(tensor.Float64)),
		zeroW:  tensor.New(tensor.WithShape(in, out), tensor.Of(tensor.Float64)),
		zeroB:  tensor.New(tensor.WithShape(out), tensor.Of(tensor.Float64)),
		normal: distuv.Normal{Mu: 0, Sigma: 1, Src: src},
	}
	l.reset()

	return l
}

// filled returns a float64 tensor of the given shape with every
// element equal to value
func filled(value float64, shape ...int) *tensor.Dense {
	size := 1
	for _, dim := range shape {
		size *= dim
	}
	backing := make([]float64, size)
	for i := range backing {
		backing[i] = value
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(backing))
}

// scaledNoise returns f(ε) = sgn(ε)√|ε| for n standard normal ε
func (n *noisyLayer) scaledNoise(size int) []float64 {
	eps := make([]float64, size)
	for i := range eps {
		x := n.normal.Rand()
		eps[i] = math.Copysign(math.Sqrt(math.Abs(x)), x)
	}
	return eps
}

// reset resamples the noise of the layer in place
func (n *noisyLayer) reset() {
	epsIn := n.scaledNoise(n.in)
	epsOut := n.scaledNoise(n.out)

	epsW := n.epsW.Data().([]float64)
	for i := 0; i < n.in; i++ {
		for j := 0; j < n.out; j++ {
			epsW[i*n.out+j] = epsIn[i] * epsOut[j]
		}
	}
	copy(n.epsB.Data().([]float64), epsOut)
}

// noise returns the noise to feed the layer
func (n *noisyLayer) noise(exploring bool) (*tensor.Dense, *tensor.Dense) {
	if exploring {
		return n.epsW, n.epsB
	}
	return n.zeroW, n.zeroB
}

// params returns the parameters of the layer
func (n *noisyLayer) params() []*tensor.Dense {
	return []*tensor.Dense{n.muW, n.sigmaW, n.muB, n.sigmaB}
}

// fwd adds the forward pass of the noisyLayer to the computational
// graph. The returned parameter nodes are followed by the two noise
// input nodes, which must be set with G.Let before each run.
func (n *noisyLayer) fwd(g *G.ExprGraph, x *G.Node) (*G.Node, G.Nodes,
	G.Nodes, error) {
	muW := G.NewMatrix(g, tensor.Float64, G.WithShape(n.in, n.out),
		G.WithName("noisyMuW"), G.WithValue(n.muW))
	sigmaW := G.NewMatrix(g, tensor.Float64, G.WithShape(n.in, n.out),
		G.WithName("noisySigmaW"), G.WithValue(n.sigmaW))
	muB := G.NewVector(g, tensor.Float64, G.WithShape(n.out),
		G.WithName("noisyMuB"), G.WithValue(n.muB))
	sigmaB := G.NewVector(g, tensor.Float64, G.WithShape(n.out),
		G.WithName("noisySigmaB"), G.WithValue(n.sigmaB))

	epsW := G.NewMatrix(g, tensor.Float64, G.WithShape(n.in, n.out),
		G.WithName("noisyEpsW"), G.WithValue(n.zeroW))
	epsB := G.NewVector(g, tensor.Float64, G.WithShape(n.out),
		G.WithName("noisyEpsB"), G.WithValue(n.zeroB))

	w := G.Must(G.Add(muW, G.Must(G.HadamardProd(sigmaW, epsW))))
	b := G.Must(G.Add(muB, G.Must(G.HadamardProd(sigmaB, epsB))))

	out, err := G.Mul(x, w)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("fwd: %v", err)
	}
	out, err = G.BroadcastAdd(out, b, nil, []byte{0})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("fwd: %v", err)
	}

	return out, G.Nodes{muW, sigmaW, muB, sigmaB}, G.Nodes{epsW, epsB}, nil
}
