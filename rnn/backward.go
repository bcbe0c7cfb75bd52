package rnn

import (
	"gonum.org/v1/gonum/mat"

	"github.com/kayaulai/MayerNelson-class/utils"
)

// LayerGrads mirrors Layer.
type LayerGrads struct {
	DWin  *mat.Dense
	DWhid *mat.Dense
	DBias *mat.Dense
}

// Gradients collects parameter gradients from one backward pass. With tying
// active DWout is nil and both the output-path and input-path contributions
// land in DEmb.
type Gradients struct {
	DEmb   *mat.Dense
	Layers []*LayerGrads
	DWout  *mat.Dense
}

// Pair is one (parameter, gradient) tensor pair for the optimizer.
type Pair struct {
	Param *mat.Dense
	Grad  *mat.Dense
}

// Pairs lists every live parameter with its gradient.
func (m *Model) Pairs(g *Gradients) []Pair {
	out := []Pair{{m.Emb, g.DEmb}}
	for l, layer := range m.Layers {
		out = append(out,
			Pair{layer.Win, g.Layers[l].DWin},
			Pair{layer.Whid, g.Layers[l].DWhid},
			Pair{layer.Bias, g.Layers[l].DBias},
		)
	}
	if !m.Tied {
		out = append(out, Pair{m.Wout, g.DWout})
	}
	return out
}

// Backward runs backpropagation through time over the whole cached forward
// pass (word forms are short; no truncation).
// dLogits[t] is the loss gradient at position t ((V x B), nil for positions
// that carry no prediction, e.g. the final one); masked batch columns must
// already be zero there.
func (m *Model) Backward(res *ForwardResult, dLogits []*mat.Dense) *Gradients {
	g := &Gradients{DEmb: utils.ZerosLike(m.Emb)}
	for _, layer := range m.Layers {
		g.Layers = append(g.Layers, &LayerGrads{
			DWin:  utils.ZerosLike(layer.Win),
			DWhid: utils.ZerosLike(layer.Whid),
			DBias: utils.ZerosLike(layer.Bias),
		})
	}
	if !m.Tied {
		g.DWout = utils.ZerosLike(m.Wout)
	}

	top := len(m.Layers) - 1

	// Output projection: dH_top[t] = W^T dLogits[t]; with tied weights the
	// projection is Emb^T, so the hidden grad is Emb*dLogits and the
	// embedding grad picks up H_top[t]*dLogits[t]^T.
	dHout := make([][]*mat.Dense, len(m.Layers))
	for l := range dHout {
		dHout[l] = make([]*mat.Dense, res.T)
	}
	for t := 0; t < res.T; t++ {
		dl := dLogits[t]
		if dl == nil {
			continue
		}
		if m.Tied {
			g.DEmb.Add(g.DEmb, utils.ToDense(utils.Dot(res.H[top][t], dl.T())))
			dHout[top][t] = utils.ToDense(utils.Dot(m.Emb, dl))
		} else {
			g.DWout.Add(g.DWout, utils.ToDense(utils.Dot(dl, res.H[top][t].T())))
			dHout[top][t] = utils.ToDense(utils.Dot(m.Wout.T(), dl))
		}
	}

	// Walk layers top-down; within a layer walk time backwards, carrying the
	// recurrent gradient. dInput flows to the layer below (or, at the first
	// layer, into the embedding columns that produced x_t).
	for l := top; l >= 0; l-- {
		layer := m.Layers[l]
		lg := g.Layers[l]
		var carry *mat.Dense // Whid^T dPre_{t+1}
		for t := res.T - 1; t >= 0; t-- {
			dh := dHout[l][t]
			if carry != nil {
				if dh == nil {
					dh = carry
				} else {
					sum := utils.ZerosLike(carry)
					sum.Add(dh, carry)
					dh = sum
				}
			}
			if dh == nil {
				carry = nil
				continue
			}
			// dPre = dh * (1 - h^2)
			h := res.H[l][t]
			dPre := utils.ZerosLike(h)
			r, c := h.Dims()
			for i := 0; i < r; i++ {
				for j := 0; j < c; j++ {
					hv := h.At(i, j)
					dPre.Set(i, j, dh.At(i, j)*(1.0-hv*hv))
				}
			}
			// bias grad sums over the batch
			for i := 0; i < r; i++ {
				s := lg.DBias.At(i, 0)
				for j := 0; j < c; j++ {
					s += dPre.At(i, j)
				}
				lg.DBias.Set(i, 0, s)
			}
			input := res.X[t]
			if l > 0 {
				input = res.H[l-1][t]
			}
			lg.DWin.Add(lg.DWin, utils.ToDense(utils.Dot(dPre, input.T())))
			if t > 0 {
				lg.DWhid.Add(lg.DWhid, utils.ToDense(utils.Dot(dPre, res.H[l][t-1].T())))
				carry = utils.ToDense(utils.Dot(layer.Whid.T(), dPre))
			} else {
				carry = nil
			}
			dIn := utils.ToDense(utils.Dot(layer.Win.T(), dPre))
			if l > 0 {
				if dHout[l-1][t] == nil {
					dHout[l-1][t] = dIn
				} else {
					dHout[l-1][t].Add(dHout[l-1][t], dIn)
				}
			} else {
				// input path: scatter-add each batch column into the
				// embedding column of the symbol that produced it
				for col, row := range res.Batch {
					id := row[t]
					for i := 0; i < m.EmbeddingDim; i++ {
						g.DEmb.Set(i, id, g.DEmb.At(i, id)+dIn.At(i, col))
					}
				}
			}
		}
	}
	return g
}
