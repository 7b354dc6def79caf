package memnet

import (
	"fmt"
)

// A Tensor is a dense array of rank 2 or 3 stored in row-major order.
// A rank-2 tensor holds a single problem instance; a rank-3 tensor stacks a
// batch of independent instances along its leading dimension.
type Tensor struct {
	Dims []int
	Data []float64
}

// NewTensor allocates a zero tensor with the given dimensions.
func NewTensor(dims ...int) *Tensor {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return &Tensor{Dims: dims, Data: make([]float64, n)}
}

// Tensor2 copies a rectangular [rows][cols] slice into a rank-2 tensor.
func Tensor2(x [][]float64) *Tensor {
	t := NewTensor(len(x), len(x[0]))
	for i, row := range x {
		copy(t.Data[i*len(x[0]):], row)
	}
	return t
}

// Tensor3 copies a rectangular [batch][rows][cols] slice into a rank-3 tensor.
func Tensor3(x [][][]float64) *Tensor {
	rows, cols := len(x[0]), len(x[0][0])
	t := NewTensor(len(x), rows, cols)
	for b, inst := range x {
		for i, row := range inst {
			copy(t.Data[(b*rows+i)*cols:], row)
		}
	}
	return t
}

func (t *Tensor) Rank() int {
	return len(t.Dims)
}

// A ConfigError reports a non-positive MemoryAddressor constructor argument.
type ConfigError struct {
	Field string
	Value int
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("memnet: %s must be positive, got %d", e.Field, e.Value)
}

// A RankError reports fact or query tensors whose ranks are unsupported or do
// not correspond to each other.
type RankError struct {
	FactsRank   int
	QueriesRank int
}

func (e *RankError) Error() string {
	return fmt.Sprintf("memnet: facts of rank %d and queries of rank %d; both must be rank 2 (unbatched) or rank 3 (batched)",
		e.FactsRank, e.QueriesRank)
}

// A ShapeError reports tensor dimensions that disagree with the addressor
// configuration or with each other.
type ShapeError struct {
	What string
	Want int
	Got  int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("memnet: %s dimension mismatch: got %d, want %d", e.What, e.Got, e.Want)
}
