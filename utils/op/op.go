// Package op provides extended Gorgonia graph operations.
package op

import (
	G "gorgonia.org/gorgonia"
)

// LogSumExp calculates the log of the summation of exponentials of
// all logits along the given axis.
//
// Use this in place of Gorgonia's LogSumExp, which has the final sum
// and log interchanged, which is incorrect.
func LogSumExp(logits *G.Node, along int) *G.Node {
	max := G.Must(G.Max(logits, along))

	exponent := G.Must(G.BroadcastSub(logits, max, nil, []byte{1}))
	exponent = G.Must(G.Exp(exponent))

	sum := G.Must(G.Sum(exponent, along))
	log := G.Must(G.Log(sum))

	return G.Must(G.Add(max, log))
}

// LogSoftMax calculates the log of the softmax of a matrix of logits
// along its columns, so that each row of the result holds the log
// probabilities of a categorical distribution.
func LogSoftMax(logits *G.Node) *G.Node {
	logSumExp := LogSumExp(logits, 1)
	return G.Must(G.BroadcastSub(logits, logSumExp, nil, []byte{1}))
}
