package training

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/kayaulai/MayerNelson-class/corpus"
)

func TestEndToEndTinyCorpus(t *testing.T) {
	ds, v := encodedCorpus(t,
		[]string{"p", "a", "t"},
		[]string{"b", "a", "t"},
	)
	model, cfg := testModel(t, v.Size(), false)
	cfg.TrainSplit = 50
	cfg.BatchSize = 2
	cfg.MaxEpochs = 1

	rng := rand.New(rand.NewSource(cfg.Seed))
	train, val := corpus.Split(ds, cfg.TrainSplit, true, true, rng)
	if len(train) != 1 || len(val) != 1 {
		t.Fatalf("split gave %d/%d rows, want 1/1", len(train), len(val))
	}

	res, err := NewTrainer(cfg, rng).Train(train, val, model)
	if err != nil {
		t.Fatal(err)
	}
	if res.Epochs != 1 {
		t.Fatalf("ran %d epochs, want 1", res.Epochs)
	}
	if math.IsNaN(res.FinalValPPL) || math.IsInf(res.FinalValPPL, 0) || res.FinalValPPL <= 0 {
		t.Fatalf("validation perplexity = %v, want finite positive", res.FinalValPPL)
	}
}

func TestTrainingReducesLossOnRepetitiveCorpus(t *testing.T) {
	// ten copies of the same word: a few epochs must drive perplexity down
	lines := make([][]string, 10)
	for i := range lines {
		lines[i] = []string{"p", "a", "t"}
	}
	ds, v := encodedCorpus(t, lines...)
	model, cfg := testModel(t, v.Size(), false)
	cfg.MaxEpochs = 8
	cfg.LearningRate = 0.05
	cfg.Tolerance = 100 // keep early stopping out of the way

	rng := rand.New(rand.NewSource(5))
	before, err := Perplexity(ds, model, cfg.BatchSize)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewTrainer(cfg, rng).Train(ds, ds, model); err != nil {
		t.Fatal(err)
	}
	after, err := Perplexity(ds, model, cfg.BatchSize)
	if err != nil {
		t.Fatal(err)
	}
	if after >= before {
		t.Fatalf("perplexity did not improve: %.4f -> %.4f", before, after)
	}
}

func TestTiedUpdateFlowsToProjection(t *testing.T) {
	ds, v := encodedCorpus(t,
		[]string{"p", "a", "t"},
		[]string{"b", "a", "t"},
	)
	model, cfg := testModel(t, v.Size(), true)
	if !model.Tied || model.Wout != nil {
		t.Fatal("expected a tied model for equal dims")
	}
	embBefore := mat.DenseCopyOf(model.Emb)

	rng := rand.New(rand.NewSource(2))
	if _, err := NewTrainer(cfg, rng).Train(ds, ds, model); err != nil {
		t.Fatal(err)
	}
	if mat.Equal(embBefore, model.Emb) {
		t.Fatal("training did not update the shared embedding block")
	}
	// the projection is the same owned object, so the logits must reflect
	// the updated embedding with no copy to keep in sync
	if model.Wout != nil {
		t.Fatal("tied model grew a separate projection during training")
	}
}

func TestScoreFileAndWriteScores(t *testing.T) {
	_, v := encodedCorpus(t,
		[]string{"p", "a", "t"},
		[]string{"b", "a", "t"},
	)
	model, _ := testModel(t, v.Size(), false)

	dir := t.TempDir()
	in := filepath.Join(dir, "nonce.txt")
	if err := os.WriteFile(in, []byte("p a t\nb a t\n\nt a b\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	scores, err := ScoreFile(in, model, v)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"pat", "bat", "tab"}
	if len(scores) != len(want) {
		t.Fatalf("scored %d words, want %d", len(scores), len(want))
	}
	for i, s := range scores {
		if s.Surface != want[i] {
			t.Errorf("score %d surface = %q, want %q (input order must be preserved)", i, s.Surface, want[i])
		}
		if math.IsNaN(s.Perplexity) || s.Perplexity < 1 {
			t.Errorf("score %d perplexity = %v", i, s.Perplexity)
		}
	}

	out := filepath.Join(dir, "scores.txt")
	if err := WriteScores(out, scores); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("output has %d lines, want 3", len(lines))
	}
	for i, line := range lines {
		cols := strings.Split(line, "\t")
		if len(cols) != 2 || cols[0] != want[i] {
			t.Errorf("line %d = %q, want %q followed by a tab and a number", i, line, want[i])
		}
	}
}

func TestScoreUnknownPhoneFails(t *testing.T) {
	_, v := encodedCorpus(t, []string{"p", "a", "t"})
	model, _ := testModel(t, v.Size(), false)
	if _, err := ScoreWords([][]string{{"p", "z"}}, model, v); err == nil {
		t.Fatal("expected an unknown-symbol failure, got nil")
	}
}
