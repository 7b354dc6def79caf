// Package matchtask generates synthetic fact/query relevance problems for
// training and evaluating a memory addressor with a logistic head.
package matchtask

import (
	"math/rand"

	"memnet"
)

const queryNoise = 0.1

// GenSets returns a batch of b problem instances. Each instance stores n
// fact vectors of size dIn drawn from a standard normal. Each of its m
// queries is, with equal probability, a noisy read of one stored fact
// (label 1) or fresh noise (label 0). dQ must be at most dIn; a relevant
// query copies the first dQ coordinates of its fact.
func GenSets(b, n, m, dIn, dQ int) (facts, queries *memnet.Tensor, labels []float64) {
	facts = memnet.NewTensor(b, n, dIn)
	for i := range facts.Data {
		facts.Data[i] = rand.NormFloat64()
	}
	queries = memnet.NewTensor(b, m, dQ)
	labels = make([]float64, b*m)
	for bi := 0; bi < b; bi++ {
		for qi := 0; qi < m; qi++ {
			q := queries.Data[(bi*m+qi)*dQ : (bi*m+qi+1)*dQ]
			if rand.Intn(2) == 0 {
				for j := range q {
					q[j] = rand.NormFloat64()
				}
				continue
			}
			f := facts.Data[(bi*n+rand.Intn(n))*dIn:]
			for j := range q {
				q[j] = f[j] + queryNoise*rand.NormFloat64()
			}
			labels[bi*m+qi] = 1
		}
	}
	return facts, queries, labels
}

// Accuracy is the fraction of predictions on the correct side of 0.5.
func Accuracy(pred, labels []float64) float64 {
	var correct int
	for i, p := range pred {
		if (p > 0.5) == (labels[i] > 0.5) {
			correct++
		}
	}
	return float64(correct) / float64(len(pred))
}
