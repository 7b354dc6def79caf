package memnet

import (
	"math"

	"github.com/gonum/blas"
	"github.com/gonum/blas/blas64"
	"github.com/gonum/floats"
)

// A linear is a learned affine map applied independently to each row of its
// input. Its weights and gradients are views into the flat parameter vector
// of the owning model.
type linear struct {
	in, out int

	WVal  []float64 // out x in, row-major
	WGrad []float64
	BVal  []float64 // out
	BGrad []float64
}

func linearWeights(in, out int) int {
	return out*in + out
}

// newLinear slices one affine map's parameters out of val and grad, advancing
// off past them.
func newLinear(in, out int, val, grad []float64, off *int) *linear {
	l := &linear{in: in, out: out}
	l.WVal = val[*off : *off+out*in]
	l.WGrad = grad[*off : *off+out*in]
	*off += out * in
	l.BVal = val[*off : *off+out]
	l.BGrad = grad[*off : *off+out]
	*off += out
	return l
}

// forward computes y = x*Wᵀ + b over rows row-vectors of x.
func (l *linear) forward(x []float64, rows int, y []float64) {
	xm := general(x[:rows*l.in], rows, l.in)
	wm := general(l.WVal, l.out, l.in)
	ym := general(y[:rows*l.out], rows, l.out)
	blas64.Gemm(blas.NoTrans, blas.Trans, 1, xm, wm, 0, ym)
	for i := 0; i < rows; i++ {
		floats.Add(y[i*l.out:(i+1)*l.out], l.BVal)
	}
}

// backward accumulates the parameter gradients induced by yGrad and, when
// xGrad is non-nil, the gradient with respect to x.
func (l *linear) backward(x []float64, rows int, yGrad, xGrad []float64) {
	xm := general(x[:rows*l.in], rows, l.in)
	ym := general(yGrad[:rows*l.out], rows, l.out)
	blas64.Gemm(blas.Trans, blas.NoTrans, 1, ym, xm, 1, general(l.WGrad, l.out, l.in))
	for i := 0; i < rows; i++ {
		floats.Add(l.BGrad, yGrad[i*l.out:(i+1)*l.out])
	}
	if xGrad != nil {
		wm := general(l.WVal, l.out, l.in)
		blas64.Gemm(blas.NoTrans, blas.NoTrans, 1, ym, wm, 1, general(xGrad[:rows*l.in], rows, l.in))
	}
}

func general(data []float64, rows, cols int) blas64.General {
	return blas64.General{Rows: rows, Cols: cols, Stride: cols, Data: data}
}

// A Hop holds one attention hop's learned fact projections. Key scores the
// facts against the query state; Value is what the hop aggregates. The
// projections of different hops share nothing.
type Hop struct {
	Key   *linear
	Value *linear
}

// A MemoryAddressor refines query vectors by repeatedly attending over a set
// of stored fact vectors. Each of its NLayers hops projects the facts into
// hidden space with its own key and value maps, softmaxes the dot products of
// the running query state against the keys, and adds the weight-averaged
// values back onto the query state.
//
// Address is a pure function of the inputs and the current parameters, so
// concurrent Address calls on one addressor are safe. Parameter updates and
// Address calls must not interleave; callers synchronize externally.
type MemoryAddressor struct {
	InputSize  int
	QuerySize  int
	HiddenSize int
	NLayers    int

	Query *linear // query-space -> hidden-space
	Hops  []Hop

	weightsVal  []float64
	weightsGrad []float64
}

func addressorWeights(inputSize, querySize, hiddenSize, nLayers int) int {
	return linearWeights(querySize, hiddenSize) + 2*nLayers*linearWeights(inputSize, hiddenSize)
}

func validateConfig(inputSize, querySize, hiddenSize, nLayers int) error {
	if inputSize <= 0 {
		return &ConfigError{Field: "input size", Value: inputSize}
	}
	if querySize <= 0 {
		return &ConfigError{Field: "query size", Value: querySize}
	}
	if hiddenSize <= 0 {
		return &ConfigError{Field: "hidden size", Value: hiddenSize}
	}
	if nLayers < 1 {
		return &ConfigError{Field: "number of layers", Value: nLayers}
	}
	return nil
}

// NewMemoryAddressor allocates an addressor with nLayers untied hops. All
// parameters start at zero; callers initialize them through WeightsVal.
func NewMemoryAddressor(inputSize, querySize, hiddenSize, nLayers int) (*MemoryAddressor, error) {
	if err := validateConfig(inputSize, querySize, hiddenSize, nLayers); err != nil {
		return nil, err
	}
	nw := addressorWeights(inputSize, querySize, hiddenSize, nLayers)
	off := 0
	return newMemoryAddressor(inputSize, querySize, hiddenSize, nLayers,
		make([]float64, nw), make([]float64, nw), &off), nil
}

func newMemoryAddressor(inputSize, querySize, hiddenSize, nLayers int, val, grad []float64, off *int) *MemoryAddressor {
	m := &MemoryAddressor{
		InputSize:  inputSize,
		QuerySize:  querySize,
		HiddenSize: hiddenSize,
		NLayers:    nLayers,
	}
	start := *off
	m.Query = newLinear(querySize, hiddenSize, val, grad, off)
	m.Hops = make([]Hop, nLayers)
	for i := range m.Hops {
		m.Hops[i] = Hop{
			Key:   newLinear(inputSize, hiddenSize, val, grad, off),
			Value: newLinear(inputSize, hiddenSize, val, grad, off),
		}
	}
	m.weightsVal = val[start:*off]
	m.weightsGrad = grad[start:*off]
	return m
}

// WeightsVal returns the parameters of all projections as one flat vector:
// the query projection followed by each hop's key then value projection,
// weights before bias.
func (m *MemoryAddressor) WeightsVal() []float64 {
	return m.weightsVal
}

// WeightsGrad returns the gradient vector aligned with WeightsVal.
func (m *MemoryAddressor) WeightsGrad() []float64 {
	return m.weightsGrad
}

func (m *MemoryAddressor) NumWeights() int {
	return len(m.weightsVal)
}

// ClearGradients sets the gradients of all parameters to zero.
func (m *MemoryAddressor) ClearGradients() {
	for i := range m.weightsGrad {
		m.weightsGrad[i] = 0
	}
}

// checkShapes validates facts and queries against the configuration and
// returns the batch size (1 when unbatched), the fact count and the query
// count per instance.
func (m *MemoryAddressor) checkShapes(facts, queries *Tensor) (b, n, q int, batched bool, err error) {
	fr, qr := facts.Rank(), queries.Rank()
	if (fr != 2 && fr != 3) || qr != fr {
		return 0, 0, 0, false, &RankError{FactsRank: fr, QueriesRank: qr}
	}
	batched = fr == 3
	b = 1
	if batched {
		b = facts.Dims[0]
		if queries.Dims[0] != b {
			return 0, 0, 0, false, &ShapeError{What: "batch", Want: b, Got: queries.Dims[0]}
		}
	}
	if got := facts.Dims[fr-1]; got != m.InputSize {
		return 0, 0, 0, false, &ShapeError{What: "fact", Want: m.InputSize, Got: got}
	}
	if got := queries.Dims[qr-1]; got != m.QuerySize {
		return 0, 0, 0, false, &ShapeError{What: "query", Want: m.QuerySize, Got: got}
	}
	return b, facts.Dims[fr-2], queries.Dims[qr-2], batched, nil
}

// An Addressing is the forward state of one Address call. It retains the
// per-hop intermediates so that Backward can propagate gradients seeded on
// the outputs back to the projection parameters and to the inputs.
//
// TopVal[i] is the hidden query state after hop i: TopVal[0] is the projected
// query and TopVal[NLayers] the final output, each of length B*M*HiddenSize.
// KeyVal[i] and ValueVal[i] are hop i's fact projections (B*N*HiddenSize),
// and WeightVal[i] its row-stochastic attention weights (B*M*N).
type Addressing struct {
	Addr *MemoryAddressor

	Batched bool
	B, N, M int

	FactsVal    []float64
	FactsGrad   []float64
	QueriesVal  []float64
	QueriesGrad []float64

	TopVal, TopGrad       [][]float64
	KeyVal, KeyGrad       [][]float64
	ValueVal, ValueGrad   [][]float64
	WeightVal, WeightGrad [][]float64
}

// Address runs the multi-hop attention loop. Facts must be [N, InputSize] or
// [B, N, InputSize] and queries [M, QuerySize] or [B, M, QuerySize], with
// matching ranks and batch sizes; violations are reported before any
// computation. Batched instances are addressed independently and produce
// exactly what separate unbatched calls would.
func (m *MemoryAddressor) Address(facts, queries *Tensor) (*Addressing, error) {
	b, n, q, batched, err := m.checkShapes(facts, queries)
	if err != nil {
		return nil, err
	}
	h := m.HiddenSize
	k := m.NLayers
	a := &Addressing{
		Addr:        m,
		Batched:     batched,
		B:           b,
		N:           n,
		M:           q,
		FactsVal:    facts.Data,
		FactsGrad:   make([]float64, len(facts.Data)),
		QueriesVal:  queries.Data,
		QueriesGrad: make([]float64, len(queries.Data)),
		TopVal:      make([][]float64, k+1),
		TopGrad:     make([][]float64, k+1),
		KeyVal:      make([][]float64, k),
		KeyGrad:     make([][]float64, k),
		ValueVal:    make([][]float64, k),
		ValueGrad:   make([][]float64, k),
		WeightVal:   make([][]float64, k),
		WeightGrad:  make([][]float64, k),
	}
	for i := 0; i <= k; i++ {
		a.TopVal[i] = make([]float64, b*q*h)
		a.TopGrad[i] = make([]float64, b*q*h)
	}
	for i := 0; i < k; i++ {
		a.KeyVal[i] = make([]float64, b*n*h)
		a.KeyGrad[i] = make([]float64, b*n*h)
		a.ValueVal[i] = make([]float64, b*n*h)
		a.ValueGrad[i] = make([]float64, b*n*h)
		a.WeightVal[i] = make([]float64, b*q*n)
		a.WeightGrad[i] = make([]float64, b*q*n)
	}

	// Projections are shared across the batch: collapse the leading
	// dimensions, apply, and the row-major layout restores them for free.
	m.Query.forward(a.QueriesVal, b*q, a.TopVal[0])
	for i, hop := range m.Hops {
		hop.Key.forward(a.FactsVal, b*n, a.KeyVal[i])
		hop.Value.forward(a.FactsVal, b*n, a.ValueVal[i])
		copy(a.TopVal[i+1], a.TopVal[i])
		for bi := 0; bi < b; bi++ {
			z := general(a.TopVal[i][bi*q*h:(bi+1)*q*h], q, h)
			u := general(a.KeyVal[i][bi*n*h:(bi+1)*n*h], n, h)
			v := general(a.ValueVal[i][bi*n*h:(bi+1)*n*h], n, h)
			p := general(a.WeightVal[i][bi*q*n:(bi+1)*q*n], q, n)
			blas64.Gemm(blas.NoTrans, blas.Trans, 1, z, u, 0, p)
			rowSoftmax(p.Data, n)
			zNext := general(a.TopVal[i+1][bi*q*h:(bi+1)*q*h], q, h)
			blas64.Gemm(blas.NoTrans, blas.NoTrans, 1, p, v, 1, zNext)
		}
	}
	return a, nil
}

// Out returns the refined query representation, [M, HiddenSize] for an
// unbatched call and [B, M, HiddenSize] for a batched one.
func (a *Addressing) Out() *Tensor {
	top := a.TopVal[a.Addr.NLayers]
	out := make([]float64, len(top))
	copy(out, top)
	dims := []int{a.M, a.Addr.HiddenSize}
	if a.Batched {
		dims = []int{a.B, a.M, a.Addr.HiddenSize}
	}
	return &Tensor{Dims: dims, Data: out}
}

// OutGrad returns the gradient buffer of the final query state. Callers seed
// it before Backward.
func (a *Addressing) OutGrad() []float64 {
	return a.TopGrad[a.Addr.NLayers]
}

// Masks returns the attention-weight matrices in hop order, each [M, N] for
// an unbatched call and [B, M, N] for a batched one. Every row is a
// probability distribution over the facts.
func (a *Addressing) Masks() []*Tensor {
	masks := make([]*Tensor, a.Addr.NLayers)
	for i, w := range a.WeightVal {
		data := make([]float64, len(w))
		copy(data, w)
		dims := []int{a.M, a.N}
		if a.Batched {
			dims = []int{a.B, a.M, a.N}
		}
		masks[i] = &Tensor{Dims: dims, Data: data}
	}
	return masks
}

// Backward propagates the gradients seeded on OutGrad, and on WeightGrad if
// the attention weights were consumed downstream, back through every hop.
// Gradients accumulate into the addressor's parameter gradients and into
// FactsGrad and QueriesGrad. WeightGrad is overwritten with raw-score
// gradients as the pass runs.
func (a *Addressing) Backward() {
	m := a.Addr
	h := m.HiddenSize
	b, n, q := a.B, a.N, a.M
	for i := m.NLayers - 1; i >= 0; i-- {
		// Residual update: the previous state feeds the next one directly.
		floats.Add(a.TopGrad[i], a.TopGrad[i+1])
		for bi := 0; bi < b; bi++ {
			zg := general(a.TopGrad[i+1][bi*q*h:(bi+1)*q*h], q, h)
			z := general(a.TopVal[i][bi*q*h:(bi+1)*q*h], q, h)
			u := general(a.KeyVal[i][bi*n*h:(bi+1)*n*h], n, h)
			v := general(a.ValueVal[i][bi*n*h:(bi+1)*n*h], n, h)
			ug := general(a.KeyGrad[i][bi*n*h:(bi+1)*n*h], n, h)
			vg := general(a.ValueGrad[i][bi*n*h:(bi+1)*n*h], n, h)
			p := general(a.WeightVal[i][bi*q*n:(bi+1)*q*n], q, n)
			pg := general(a.WeightGrad[i][bi*q*n:(bi+1)*q*n], q, n)
			zpg := general(a.TopGrad[i][bi*q*h:(bi+1)*q*h], q, h)

			blas64.Gemm(blas.NoTrans, blas.Trans, 1, zg, v, 1, pg)
			blas64.Gemm(blas.Trans, blas.NoTrans, 1, p, zg, 1, vg)
			softmaxBackward(pg.Data, p.Data, n)
			blas64.Gemm(blas.NoTrans, blas.NoTrans, 1, pg, u, 1, zpg)
			blas64.Gemm(blas.Trans, blas.NoTrans, 1, pg, z, 1, ug)
		}
		m.Hops[i].Key.backward(a.FactsVal, b*n, a.KeyGrad[i], a.FactsGrad)
		m.Hops[i].Value.backward(a.FactsVal, b*n, a.ValueGrad[i], a.FactsGrad)
	}
	m.Query.backward(a.QueriesVal, b*q, a.TopGrad[0], a.QueriesGrad)
}

// rowSoftmax exponentiates and normalizes each length-n row of data in
// place. The row maximum is subtracted before exponentiating to keep
// math.Exp from overflowing.
func rowSoftmax(data []float64, n int) {
	for i := 0; i < len(data); i += n {
		row := data[i : i+n]
		max := floats.Max(row)
		for j := range row {
			row[j] = math.Exp(row[j] - max)
		}
		floats.Scale(1/floats.Sum(row), row)
	}
}

// softmaxBackward turns gradients with respect to softmax outputs into
// gradients with respect to the raw scores, row by row, in place.
func softmaxBackward(grad, val []float64, n int) {
	for i := 0; i < len(grad); i += n {
		g := grad[i : i+n]
		p := val[i : i+n]
		gv := floats.Dot(g, p)
		for j := range g {
			g[j] = (g[j] - gv) * p[j]
		}
	}
}
