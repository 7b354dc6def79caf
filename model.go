package memnet

import (
	"math"
)

// A DensityModel jointly models the probability density of the training
// labels: it supplies the loss of a prediction batch and the gradient the
// loss induces on the logits behind it.
type DensityModel interface {
	// Model sets logitGrad to the gradient of the loss with respect to the
	// logits that produced pred.
	Model(pred, logitGrad []float64)
	// Loss is the total loss of the predictions under the labels.
	Loss(pred []float64) float64
}

// A LogisticModel is the cross entropy of independent binary labels.
type LogisticModel struct {
	// Y are the labels, one per prediction, each 0 or 1.
	Y []float64
}

func (l *LogisticModel) Model(pred, logitGrad []float64) {
	for i, p := range pred {
		logitGrad[i] = p - l.Y[i]
	}
}

func (l *LogisticModel) Loss(pred []float64) float64 {
	var llh float64 // log likelihood
	for i, p := range pred {
		// Only the live branch: with saturated predictions the dead term
		// would be 0*log(0) = NaN.
		if l.Y[i] == 1 {
			llh += math.Log(p)
		} else {
			llh += math.Log(1 - p)
		}
	}
	return -llh
}

// A Model scores each refined query with a logistic relevance unit on top of
// a MemoryAddressor. The addressor's parameters and the output unit's share
// one flat vector, so a single optimizer updates both.
type Model struct {
	Addr *MemoryAddressor
	Out  *linear // HiddenSize -> 1 logit per query row

	weightsVal  []float64
	weightsGrad []float64
}

func NewModel(inputSize, querySize, hiddenSize, nLayers int) (*Model, error) {
	if err := validateConfig(inputSize, querySize, hiddenSize, nLayers); err != nil {
		return nil, err
	}
	nw := addressorWeights(inputSize, querySize, hiddenSize, nLayers) + linearWeights(hiddenSize, 1)
	val := make([]float64, nw)
	grad := make([]float64, nw)
	off := 0
	mo := &Model{weightsVal: val, weightsGrad: grad}
	mo.Addr = newMemoryAddressor(inputSize, querySize, hiddenSize, nLayers, val, grad, &off)
	mo.Out = newLinear(hiddenSize, 1, val, grad, &off)
	return mo, nil
}

func (mo *Model) WeightsVal() []float64 {
	return mo.weightsVal
}

func (mo *Model) WeightsGrad() []float64 {
	return mo.weightsGrad
}

func (mo *Model) NumWeights() int {
	return len(mo.weightsVal)
}

// ClearGradients sets the gradients of all parameters to zero.
func (mo *Model) ClearGradients() {
	for i := range mo.weightsGrad {
		mo.weightsGrad[i] = 0
	}
}

// ForwardBackward runs one training pass over a batch: address, score, seed
// the loss gradient, and backpropagate through the output unit and every hop.
// It returns the per-query relevance probabilities in row order (batch-major
// when batched). Gradients from any previous pass are cleared first.
func (mo *Model) ForwardBackward(facts, queries *Tensor, dm DensityModel) ([]float64, error) {
	mo.ClearGradients()
	a, err := mo.Addr.Address(facts, queries)
	if err != nil {
		return nil, err
	}
	rows := a.B * a.M
	top := a.TopVal[mo.Addr.NLayers]

	logits := make([]float64, rows)
	mo.Out.forward(top, rows, logits)
	pred := make([]float64, rows)
	for i, v := range logits {
		pred[i] = Sigmoid(v)
	}

	logitGrad := make([]float64, rows)
	dm.Model(pred, logitGrad)
	mo.Out.backward(top, rows, logitGrad, a.OutGrad())
	a.Backward()
	return pred, nil
}

// Predict returns the relevance probability of each query row without
// touching any gradient state.
func (mo *Model) Predict(facts, queries *Tensor) ([]float64, error) {
	a, err := mo.Addr.Address(facts, queries)
	if err != nil {
		return nil, err
	}
	rows := a.B * a.M
	logits := make([]float64, rows)
	mo.Out.forward(a.TopVal[mo.Addr.NLayers], rows, logits)
	pred := make([]float64, rows)
	for i, v := range logits {
		pred[i] = Sigmoid(v)
	}
	return pred, nil
}
