package utils

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Matrix helpers shared by the model, the optimizer and the loss code.

func Dot(m, n mat.Matrix) mat.Matrix {
	r, _ := m.Dims()
	_, c := n.Dims()
	o := mat.NewDense(r, c, nil)
	o.Product(m, n)
	return o
}

func ToDense(m mat.Matrix) *mat.Dense {
	if d, ok := m.(*mat.Dense); ok {
		return d
	}
	return mat.DenseCopyOf(m)
}

func ZerosLike(a *mat.Dense) *mat.Dense {
	r, c := a.Dims()
	return mat.NewDense(r, c, nil)
}

// RandomArray fills a slice with uniform values in [-1/sqrt(v), 1/sqrt(v)],
// the usual fan-in scaling for layer initialization.
func RandomArray(size int, v float64, rng *rand.Rand) []float64 {
	min := -1.0 / math.Sqrt(v+1e-12)
	max := 1.0 / math.Sqrt(v+1e-12)
	out := make([]float64, size)
	for i := 0; i < size; i++ {
		out[i] = min + (max-min)*rng.Float64()
	}
	return out
}

// AddBias adds a (r x 1) bias to every column of m.
func AddBias(m, bias *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	rb, cb := bias.Dims()
	if rb != r || cb != 1 {
		panic("AddBias: bias must be (r x 1)")
	}
	out := mat.NewDense(r, c, nil)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			out.Set(i, j, m.At(i, j)+bias.At(i, 0))
		}
	}
	return out
}

// TanhInPlace applies tanh elementwise and returns m.
func TanhInPlace(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m.Set(i, j, math.Tanh(m.At(i, j)))
		}
	}
	return m
}

// ColLogSumExp returns log(sum_i exp(m[i,j])) for column j, shifted by the
// column max for stability.
func ColLogSumExp(m *mat.Dense, j int) float64 {
	r, _ := m.Dims()
	mx := m.At(0, j)
	for i := 1; i < r; i++ {
		if v := m.At(i, j); v > mx {
			mx = v
		}
	}
	sum := 0.0
	for i := 0; i < r; i++ {
		sum += math.Exp(m.At(i, j) - mx)
	}
	return mx + math.Log(sum)
}

// ColSoftmaxInto writes softmax over column j of src into column j of dst.
func ColSoftmaxInto(dst, src *mat.Dense, j int) {
	r, _ := src.Dims()
	mx := src.At(0, j)
	for i := 1; i < r; i++ {
		if v := src.At(i, j); v > mx {
			mx = v
		}
	}
	sum := 0.0
	for i := 0; i < r; i++ {
		e := math.Exp(src.At(i, j) - mx)
		dst.Set(i, j, e)
		sum += e
	}
	inv := 1.0 / sum
	for i := 0; i < r; i++ {
		dst.Set(i, j, dst.At(i, j)*inv)
	}
}

// ---------- Loss ----------

// MaskedCrossEntropy computes summed next-symbol cross-entropy over one batch
// position. logits is (V x B); golds[b] is the target index for column b.
// Columns whose gold equals padIndex are masked out: zero loss and a zero
// gradient column. Returns summed loss, the number of live targets, and
// dLogits (softmax minus one-hot on unmasked columns).
func MaskedCrossEntropy(logits *mat.Dense, golds []int, padIndex int) (float64, int, *mat.Dense) {
	r, c := logits.Dims()
	if len(golds) != c {
		panic("MaskedCrossEntropy: golds length must match logits columns")
	}
	grad := mat.NewDense(r, c, nil)
	loss := 0.0
	count := 0
	for j := 0; j < c; j++ {
		gold := golds[j]
		if gold == padIndex {
			continue
		}
		if gold < 0 || gold >= r {
			panic("MaskedCrossEntropy: gold index out of range")
		}
		lse := ColLogSumExp(logits, j)
		loss += lse - logits.At(gold, j)
		ColSoftmaxInto(grad, logits, j)
		grad.Set(gold, j, grad.At(gold, j)-1.0)
		count++
	}
	return loss, count, grad
}

// MatrixNorm is the Frobenius norm, handy for progress logs.
func MatrixNorm(m *mat.Dense) float64 {
	r, c := m.Dims()
	s := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			s += v * v
		}
	}
	return math.Sqrt(s)
}
