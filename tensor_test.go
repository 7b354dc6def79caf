package memnet

import (
	"testing"
)

func TestTensorLayout(t *testing.T) {
	t2 := Tensor2([][]float64{{1, 2, 3}, {4, 5, 6}})
	if t2.Rank() != 2 || t2.Dims[0] != 2 || t2.Dims[1] != 3 {
		t.Fatalf("rank-2 dims: %v", t2.Dims)
	}
	for i, want := range []float64{1, 2, 3, 4, 5, 6} {
		if t2.Data[i] != want {
			t.Fatalf("rank-2 data[%d]: expected %f, got %f", i, want, t2.Data[i])
		}
	}

	t3 := Tensor3([][][]float64{
		{{1, 2}, {3, 4}},
		{{5, 6}, {7, 8}},
	})
	if t3.Rank() != 3 || t3.Dims[0] != 2 || t3.Dims[1] != 2 || t3.Dims[2] != 2 {
		t.Fatalf("rank-3 dims: %v", t3.Dims)
	}
	for i, want := range []float64{1, 2, 3, 4, 5, 6, 7, 8} {
		if t3.Data[i] != want {
			t.Fatalf("rank-3 data[%d]: expected %f, got %f", i, want, t3.Data[i])
		}
	}

	z := NewTensor(2, 3, 4)
	if len(z.Data) != 24 || z.Rank() != 3 {
		t.Fatalf("NewTensor(2, 3, 4): rank %d, len %d", z.Rank(), len(z.Data))
	}
}
