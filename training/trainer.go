package training

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/kayaulai/MayerNelson-class/corpus"
	"github.com/kayaulai/MayerNelson-class/optimizations"
	"github.com/kayaulai/MayerNelson-class/params"
	"github.com/kayaulai/MayerNelson-class/rnn"
	"github.com/kayaulai/MayerNelson-class/utils"
)

// Trainer owns everything mutable across one training call: the optimizer
// moment state and the batch-order rng. Hyperparameters are immutable, the
// model's parameter block is mutated only through the update step here.
type Trainer struct {
	Cfg params.Config
	Opt *optimizations.Adam
	Rng *rand.Rand
}

func NewTrainer(cfg params.Config, rng *rand.Rand) *Trainer {
	return &Trainer{
		Cfg: cfg,
		Opt: optimizations.NewAdam(cfg.LearningRate, cfg.AdamBeta1, cfg.AdamBeta2, cfg.AdamEps),
		Rng: rng,
	}
}

// Result summarizes a finished run.
type Result struct {
	Epochs        int
	FinalValPPL   float64
	StoppedEarly  bool
	EpochLoss     []float64 // summed training loss per epoch, logging only
	ValPerplexity []float64
}

// Train runs mini-batch optimization with validation-perplexity early
// stopping. Batches are contiguous slices of the already-shuffled training
// set; only the batch ORDER is reshuffled each epoch. Stopping compares each
// epoch's validation perplexity against the previous epoch's and halts when
// it rises by more than Cfg.Tolerance, keeping the current parameters (no
// rollback to a better epoch; a stall without a rise never stops the run).
func (tr *Trainer) Train(train, val corpus.Dataset, model *rnn.Model) (*Result, error) {
	if len(train) == 0 || len(val) == 0 {
		return nil, corpus.ErrEmptyCorpus
	}

	var logw *csv.Writer
	if tr.Cfg.LogPath != "" {
		f, err := os.Create(tr.Cfg.LogPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		logw = csv.NewWriter(f)
		logw.Write([]string{"epoch", "train_loss", "val_perplexity"})
		defer logw.Flush()
	}

	batches := makeBatches(train, tr.Cfg.BatchSize)
	res := &Result{}
	prevPPL := math.Inf(1)

	for e := 0; e < tr.Cfg.MaxEpochs; e++ {
		start := time.Now()
		tr.Rng.Shuffle(len(batches), func(i, j int) {
			batches[i], batches[j] = batches[j], batches[i]
		})

		epochLoss := 0.0
		for _, batch := range batches {
			loss, err := tr.step(model, batch)
			if err != nil {
				return nil, err
			}
			epochLoss += loss
		}

		valPPL, err := Perplexity(val, model, tr.Cfg.BatchSize)
		if err != nil {
			return nil, err
		}

		res.Epochs = e + 1
		res.EpochLoss = append(res.EpochLoss, epochLoss)
		res.ValPerplexity = append(res.ValPerplexity, valPPL)
		res.FinalValPPL = valPPL

		fmt.Printf("Epoch %d - TrainLoss: %.4f, ValPPL: %.4f, Time: %v\n",
			e+1, epochLoss, valPPL, time.Since(start))
		if logw != nil {
			logw.Write([]string{
				strconv.Itoa(e + 1),
				strconv.FormatFloat(epochLoss, 'g', -1, 64),
				strconv.FormatFloat(valPPL, 'g', -1, 64),
			})
		}

		if valPPL > prevPPL+tr.Cfg.Tolerance {
			fmt.Println("Stopping early: validation perplexity is rising.")
			res.StoppedEarly = true
			return res, nil
		}
		prevPPL = valPPL
	}
	return res, nil
}

// step does forward, masked loss, BPTT and one Adam update for a batch.
func (tr *Trainer) step(model *rnn.Model, batch [][]int) (float64, error) {
	fwd := model.Forward(batch)

	// Shifted targets: the prediction at t is scored against the symbol at
	// t+1; the last position predicts nothing.
	dLogits := make([]*mat.Dense, fwd.T)
	loss := 0.0
	golds := make([]int, fwd.B)
	for t := 0; t+1 < fwd.T; t++ {
		for b, row := range batch {
			golds[b] = row[t+1]
		}
		l, count, grad := utils.MaskedCrossEntropy(fwd.Logits[t], golds, padIndex)
		loss += l
		if count > 0 {
			dLogits[t] = grad
		}
	}
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return 0, &NumericDivergenceError{Stage: "training loss", Value: loss}
	}

	grads := model.Backward(fwd, dLogits)
	tr.Opt.Step()
	for _, p := range model.Pairs(grads) {
		tr.Opt.Update(p.Param, p.Grad)
	}
	// grads go out of scope here; nothing accumulates across batches
	return loss, nil
}

// makeBatches slices a dataset into contiguous batches; the last one may be
// short.
func makeBatches(ds corpus.Dataset, size int) []corpus.Dataset {
	if size < 1 {
		size = 1
	}
	var out []corpus.Dataset
	for start := 0; start < len(ds); start += size {
		end := start + size
		if end > len(ds) {
			end = len(ds)
		}
		out = append(out, ds[start:end])
	}
	return out
}
