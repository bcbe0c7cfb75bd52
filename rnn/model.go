// Package rnn implements the phone-level recurrent language model: an
// embedding lookup, one or more stacked tanh recurrent layers, and a linear
// projection to vocabulary-sized next-symbol scores.
package rnn

import (
	"fmt"
	"math/rand"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/kayaulai/MayerNelson-class/params"
	"github.com/kayaulai/MayerNelson-class/utils"
)

// Layer is one recurrent layer: h_t = tanh(Win*x_t + Whid*h_{t-1} + Bias).
type Layer struct {
	Win  *mat.Dense // (H x in), in = E for the first layer, H above it
	Whid *mat.Dense // (H x H)
	Bias *mat.Dense // (H x 1)
}

// Model holds the trainable parameters. Embedding columns are symbols
// (E x V). With tying active the output projection IS the embedding read
// transposed; Wout stays nil and every update to one side is visible through
// the other. Forward computation itself is stateless: per-call activations
// live in the returned ForwardResult.
type Model struct {
	Emb    *mat.Dense
	Layers []*Layer
	Wout   *mat.Dense // (V x H); nil when Tied
	Tied   bool

	EmbeddingDim int
	HiddenDim    int
	VocabSize    int
}

// NewModel builds a model for the given vocabulary size. Weight tying
// requires the embedding and hidden widths to agree; on mismatch the model
// falls back to untied weights with a warning rather than failing, so a
// misconfigured run still trains.
func NewModel(cfg params.Config, vocabSize int, rng *rand.Rand) *Model {
	e, h := cfg.EmbeddingDim, cfg.HiddenDim
	tied := cfg.TieWeights
	if tied && e != h {
		fmt.Fprintf(os.Stderr,
			"Warning: weight tying requires embedding dim == hidden dim (%d != %d); training untied\n", e, h)
		tied = false
	}
	nLayers := cfg.Layers
	if nLayers < 1 {
		nLayers = 1
	}
	m := &Model{
		Emb:          mat.NewDense(e, vocabSize, utils.RandomArray(e*vocabSize, float64(e), rng)),
		Tied:         tied,
		EmbeddingDim: e,
		HiddenDim:    h,
		VocabSize:    vocabSize,
	}
	for l := 0; l < nLayers; l++ {
		in := h
		if l == 0 {
			in = e
		}
		m.Layers = append(m.Layers, &Layer{
			Win:  mat.NewDense(h, in, utils.RandomArray(h*in, float64(in), rng)),
			Whid: mat.NewDense(h, h, utils.RandomArray(h*h, float64(h), rng)),
			Bias: mat.NewDense(h, 1, nil),
		})
	}
	if !tied {
		m.Wout = mat.NewDense(vocabSize, h, utils.RandomArray(vocabSize*h, float64(h), rng))
	}
	return m
}

// ForwardResult caches one forward pass: inputs, per-layer hidden states and
// per-position logits, everything Backward needs for BPTT.
type ForwardResult struct {
	Batch [][]int
	B, T  int

	X      []*mat.Dense   // per t: (E x B) embedded inputs
	H      [][]*mat.Dense // per layer, per t: (H x B)
	Logits []*mat.Dense   // per t: (V x B)
}

// Forward runs the batch through embedding, recurrence and projection.
// Scores at position t depend only on symbols at positions <= t: the
// recurrence carries state strictly left to right and there is no other path
// from input to output.
func (m *Model) Forward(batch [][]int) *ForwardResult {
	b := len(batch)
	if b == 0 {
		panic("rnn: empty batch")
	}
	t := len(batch[0])
	for _, row := range batch {
		if len(row) != t {
			panic("rnn: ragged batch; encode with a uniform length first")
		}
	}
	res := &ForwardResult{
		Batch:  batch,
		B:      b,
		T:      t,
		X:      make([]*mat.Dense, t),
		H:      make([][]*mat.Dense, len(m.Layers)),
		Logits: make([]*mat.Dense, t),
	}
	for l := range m.Layers {
		res.H[l] = make([]*mat.Dense, t)
	}

	for step := 0; step < t; step++ {
		x := mat.NewDense(m.EmbeddingDim, b, nil)
		for col, row := range batch {
			id := row[step]
			if id < 0 || id >= m.VocabSize {
				panic(fmt.Sprintf("rnn: symbol index %d outside vocabulary of %d", id, m.VocabSize))
			}
			for i := 0; i < m.EmbeddingDim; i++ {
				x.Set(i, col, m.Emb.At(i, id))
			}
		}
		res.X[step] = x

		input := x
		for l, layer := range m.Layers {
			pre := utils.ToDense(utils.Dot(layer.Win, input))
			if step > 0 {
				pre.Add(pre, utils.ToDense(utils.Dot(layer.Whid, res.H[l][step-1])))
			}
			h := utils.TanhInPlace(utils.AddBias(pre, layer.Bias))
			res.H[l][step] = h
			input = h
		}
		res.Logits[step] = m.project(input)
	}
	return res
}

// project maps hidden states (H x B) to vocabulary scores (V x B).
func (m *Model) project(h *mat.Dense) *mat.Dense {
	if m.Tied {
		return utils.ToDense(utils.Dot(m.Emb.T(), h))
	}
	return utils.ToDense(utils.Dot(m.Wout, h))
}
