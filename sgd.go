package memnet

import (
	"math"
)

// A Learner exposes a model's parameters and their gradients as flat,
// mutually aligned vectors.
type Learner interface {
	WeightsVal() []float64
	WeightsGrad() []float64
}

type SGDMomentum struct {
	L     Learner
	PrevD []float64
}

func NewSGDMomentum(l Learner) *SGDMomentum {
	return &SGDMomentum{
		L:     l,
		PrevD: make([]float64, len(l.WeightsVal())),
	}
}

// Update applies one momentum step with learning rate alpha and momentum mt
// to the accumulated gradients.
func (s *SGDMomentum) Update(alpha, mt float64) {
	val := s.L.WeightsVal()
	grad := s.L.WeightsGrad()
	for i := range val {
		d := -alpha*grad[i] + mt*s.PrevD[i]
		val[i] += d
		s.PrevD[i] = d
	}
}

// RMSProp implements the rmsprop algorithm in Graves' Generating Sequences
// With Recurrent Neural Networks.
type RMSProp struct {
	L Learner
	N []float64
	G []float64
	D []float64
}

func NewRMSProp(l Learner) *RMSProp {
	nw := len(l.WeightsVal())
	return &RMSProp{
		L: l,
		N: make([]float64, nw),
		G: make([]float64, nw),
		D: make([]float64, nw),
	}
}

func (r *RMSProp) Update(a, b, c, d float64) {
	val := r.L.WeightsVal()
	grad := r.L.WeightsGrad()
	for i := range val {
		g := grad[i]
		r.N[i] = a*r.N[i] + (1-a)*g*g
		r.G[i] = a*r.G[i] + (1-a)*g
		r.D[i] = b*r.D[i] - c*g/math.Sqrt(r.N[i]-r.G[i]*r.G[i]+d)
		val[i] += r.D[i]
	}
}
