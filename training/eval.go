// Package training drives gradient optimization over encoded phone datasets
// and turns trained models into per-word perplexity scores.
package training

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/kayaulai/MayerNelson-class/corpus"
	"github.com/kayaulai/MayerNelson-class/rnn"
	"github.com/kayaulai/MayerNelson-class/utils"
)

// NumericDivergenceError marks a non-finite loss or perplexity. It is a
// configuration problem (learning rate, degenerate batch), fatal by design.
type NumericDivergenceError struct {
	Stage string
	Value float64
}

func (e *NumericDivergenceError) Error() string {
	return fmt.Sprintf("training: non-finite %s (%v); aborting run", e.Stage, e.Value)
}

const padIndex = 0 // vocabulary invariant: pad always sits at index 0

// batchNLL runs one forward pass and accumulates summed negative
// log-likelihood and live-target count over the shifted alignment: scores at
// positions [0,T-2] against symbols at [1,T-1], pad targets excluded.
func batchNLL(model *rnn.Model, batch [][]int) (float64, int) {
	res := model.Forward(batch)
	nlls := make([]float64, 0, res.T-1)
	count := 0
	for t := 0; t+1 < res.T; t++ {
		logits := res.Logits[t]
		nll := 0.0
		for b, row := range batch {
			gold := row[t+1]
			if gold == padIndex {
				continue
			}
			nll += utils.ColLogSumExp(logits, b) - logits.At(gold, b)
			count++
		}
		nlls = append(nlls, nll)
	}
	return floats.Sum(nlls), count
}

// Perplexity evaluates a dataset: exp(summed NLL / summed non-pad target
// count) over every batch. Sums, not per-batch averages, are aggregated, so
// any batching of the same rows yields the same value. A single sequence is
// just a batch of one. The model is only read, never mutated.
func Perplexity(ds corpus.Dataset, model *rnn.Model, batchSize int) (float64, error) {
	if len(ds) == 0 {
		return 0, corpus.ErrEmptyCorpus
	}
	if batchSize < 1 {
		batchSize = 1
	}
	totalNLL := 0.0
	totalCount := 0
	for start := 0; start < len(ds); start += batchSize {
		end := start + batchSize
		if end > len(ds) {
			end = len(ds)
		}
		nll, count := batchNLL(model, ds[start:end])
		totalNLL += nll
		totalCount += count
	}
	if totalCount == 0 {
		return 0, &NumericDivergenceError{Stage: "perplexity (no unmasked targets)", Value: math.NaN()}
	}
	ppl := math.Exp(totalNLL / float64(totalCount))
	if math.IsNaN(ppl) || math.IsInf(ppl, 0) {
		return 0, &NumericDivergenceError{Stage: "perplexity", Value: ppl}
	}
	return ppl, nil
}
