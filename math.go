package memnet

import (
	"fmt"
	"math"
	"strings"
)

const (
	machineEpsilon     = 2.2e-16
	machineEpsilonSqrt = 1e-8 // math.Sqrt(machineEpsilon)
)

func Sigmoid(x float64) float64 {
	return 1.0 / (1 + math.Exp(-x))
}

func MakeTensor2(n, m int) [][]float64 {
	t := make([][]float64, n)
	for i := 0; i < len(t); i++ {
		t[i] = make([]float64, m)
	}
	return t
}

// Sprint2 formats a matrix with three significant digits per entry.
func Sprint2(t [][]float64) string {
	var b strings.Builder
	b.WriteString("[")
	for i, row := range t {
		if i > 0 {
			b.WriteString("\n ")
		}
		for j, v := range row {
			if j > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "%.3g", v)
		}
	}
	b.WriteString("]")
	return b.String()
}
