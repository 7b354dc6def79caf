package memnet

import (
	"math"
	"math/rand"
	"testing"
)

func TestModelGradients(t *testing.T) {
	rand.Seed(12)
	mo, err := NewModel(3, 2, 2, 2)
	if err != nil {
		t.Fatalf("%v", err)
	}
	ws := mo.WeightsVal()
	for i := range ws {
		ws[i] = rand.Float64() - 0.5
	}
	facts := randTensor(2, 3, 3)
	queries := randTensor(2, 2, 2)
	labels := make([]float64, 4)
	for i := range labels {
		labels[i] = float64(rand.Intn(2))
	}
	dm := &LogisticModel{Y: labels}

	pred, err := mo.ForwardBackward(facts, queries, dm)
	if err != nil {
		t.Fatalf("%v", err)
	}
	lx := dm.Loss(pred)
	grad := make([]float64, mo.NumWeights())
	copy(grad, mo.WeightsGrad())

	val := mo.WeightsVal()
	for i := range val {
		x := val[i]
		h := machineEpsilonSqrt * math.Max(math.Abs(x), 1)
		xph := x + h
		val[i] = xph
		dx := xph - x
		predph, err := mo.Predict(facts, queries)
		if err != nil {
			t.Fatalf("%v", err)
		}
		lxph := dm.Loss(predph)
		val[i] = x
		g := (lxph - lx) / dx

		if math.IsNaN(g) || math.Abs(g-grad[i]) > 1e-5 {
			t.Fatalf("wrong weights[%d] gradient expected %f, got %f", i, g, grad[i])
		}
	}
}

func TestModelForwardsAddressErrors(t *testing.T) {
	mo, err := NewModel(10, 9, 4, 2)
	if err != nil {
		t.Fatalf("%v", err)
	}
	dm := &LogisticModel{Y: make([]float64, 5)}
	if _, err := mo.ForwardBackward(randTensor(4, 7), randTensor(5, 9), dm); err == nil {
		t.Fatalf("expected ShapeError")
	} else if _, ok := err.(*ShapeError); !ok {
		t.Fatalf("expected ShapeError, got %v", err)
	}
	if _, err := mo.Predict(randTensor(2, 4, 10), randTensor(5, 9)); err == nil {
		t.Fatalf("expected RankError")
	} else if _, ok := err.(*RankError); !ok {
		t.Fatalf("expected RankError, got %v", err)
	}
}

func TestTrainingReducesLoss(t *testing.T) {
	rand.Seed(13)
	dIn := 6
	mo, err := NewModel(dIn, dIn, 8, 2)
	if err != nil {
		t.Fatalf("%v", err)
	}
	ws := mo.WeightsVal()
	for i := range ws {
		ws[i] = 0.5 * (rand.Float64() - 0.5)
	}

	// One fixed batch: positive queries are noisy reads of a stored fact,
	// negatives fresh noise.
	b, n, q := 8, 4, 3
	facts := NewTensor(b, n, dIn)
	for i := range facts.Data {
		facts.Data[i] = rand.NormFloat64()
	}
	queries := NewTensor(b, q, dIn)
	labels := make([]float64, b*q)
	for bi := 0; bi < b; bi++ {
		for qi := 0; qi < q; qi++ {
			row := queries.Data[(bi*q+qi)*dIn : (bi*q+qi+1)*dIn]
			if rand.Intn(2) == 0 {
				for j := range row {
					row[j] = rand.NormFloat64()
				}
				continue
			}
			f := facts.Data[(bi*n+rand.Intn(n))*dIn:]
			for j := range row {
				row[j] = f[j] + 0.1*rand.NormFloat64()
			}
			labels[bi*q+qi] = 1
		}
	}
	dm := &LogisticModel{Y: labels}

	sgd := NewSGDMomentum(mo)
	var first, last float64
	for i := 0; i < 200; i++ {
		pred, err := mo.ForwardBackward(facts, queries, dm)
		if err != nil {
			t.Fatalf("%v", err)
		}
		l := dm.Loss(pred)
		if i == 0 {
			first = l
		}
		last = l
		sgd.Update(0.01, 0.9)
	}
	if math.IsNaN(last) || math.IsInf(last, 0) {
		t.Fatalf("loss is not finite: %f", last)
	}
	if !(last < first) {
		t.Fatalf("loss did not decrease: started at %f, ended at %f", first, last)
	}
}

// quadratic is sum(w²), the simplest function an optimizer can descend.
type quadratic struct {
	val, grad []float64
}

func (q *quadratic) WeightsVal() []float64  { return q.val }
func (q *quadratic) WeightsGrad() []float64 { return q.grad }

func (q *quadratic) refresh() float64 {
	var sum float64
	for i, w := range q.val {
		q.grad[i] = 2 * w
		sum += w * w
	}
	return sum
}

func TestSGDMomentum(t *testing.T) {
	q := &quadratic{val: []float64{1, -2, 0.5}, grad: make([]float64, 3)}
	first := q.refresh()
	s := NewSGDMomentum(q)
	var last float64
	for i := 0; i < 100; i++ {
		last = q.refresh()
		s.Update(0.05, 0.5)
	}
	if !(last < first/10) {
		t.Fatalf("sgd did not descend: started at %f, ended at %f", first, last)
	}
}

func TestRMSProp(t *testing.T) {
	q := &quadratic{val: []float64{1, -2, 0.5}, grad: make([]float64, 3)}
	first := q.refresh()
	r := NewRMSProp(q)
	var last float64
	for i := 0; i < 200; i++ {
		last = q.refresh()
		r.Update(0.95, 0.9, 1e-3, 1e-2)
	}
	if !(last < first) {
		t.Fatalf("rmsprop did not descend: started at %f, ended at %f", first, last)
	}
}

func TestLogisticModel(t *testing.T) {
	dm := &LogisticModel{Y: []float64{1, 0}}
	pred := []float64{0.5, 0.5}
	want := -2 * math.Log(0.5)
	if l := dm.Loss(pred); math.Abs(l-want) > 1e-12 {
		t.Fatalf("loss: expected %f, got %f", want, l)
	}
	grad := make([]float64, 2)
	dm.Model(pred, grad)
	if grad[0] != -0.5 || grad[1] != 0.5 {
		t.Fatalf("logit gradients: %v", grad)
	}

	// Saturated predictions that match their labels cost nothing.
	dm = &LogisticModel{Y: []float64{1, 0}}
	if l := dm.Loss([]float64{1, 0}); l != 0 {
		t.Fatalf("saturated loss: expected 0, got %f", l)
	}
}
