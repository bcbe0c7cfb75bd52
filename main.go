package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"

	"github.com/kayaulai/MayerNelson-class/corpus"
	"github.com/kayaulai/MayerNelson-class/params"
	"github.com/kayaulai/MayerNelson-class/rnn"
	"github.com/kayaulai/MayerNelson-class/training"
)

func main() {
	cfg := params.Defaults()

	trainPath := flag.String("train", "data/train.txt", "training corpus, one word per line of space-separated phones")
	testPath := flag.String("test", "data/test.txt", "nonce words to score, same format")
	outPath := flag.String("out", "scores.txt", "tab-separated output: surface form, perplexity")
	flag.IntVar(&cfg.EmbeddingDim, "emb", cfg.EmbeddingDim, "embedding dimension")
	flag.IntVar(&cfg.HiddenDim, "hidden", cfg.HiddenDim, "hidden dimension")
	flag.IntVar(&cfg.Layers, "layers", cfg.Layers, "recurrent layer count")
	flag.IntVar(&cfg.BatchSize, "batch", cfg.BatchSize, "mini-batch size")
	flag.Float64Var(&cfg.LearningRate, "lr", cfg.LearningRate, "Adam learning rate")
	flag.IntVar(&cfg.MaxEpochs, "epochs", cfg.MaxEpochs, "epoch cap")
	flag.BoolVar(&cfg.TieWeights, "tie", cfg.TieWeights, "tie embedding and output weights")
	flag.IntVar(&cfg.TrainSplit, "split", cfg.TrainSplit, "training split percentage")
	flag.BoolVar(&cfg.UseDev, "dev", cfg.UseDev, "hold out a real validation split")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	flag.StringVar(&cfg.LogPath, "log", cfg.LogPath, "optional CSV training log")
	flag.Parse()

	if err := run(cfg, *trainPath, *testPath, *outPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg params.Config, trainPath, testPath, outPath string) error {
	rng := rand.New(rand.NewSource(cfg.Seed))

	words, err := corpus.ReadFile(trainPath)
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d training words.\n", len(words))

	vocab, err := corpus.BuildVocabulary(words)
	if err != nil {
		return err
	}
	ds, err := corpus.EncodeAll(words, vocab)
	if err != nil {
		return err
	}
	train, val := corpus.Split(ds, cfg.TrainSplit, cfg.UseDev, cfg.Shuffle, rng)
	fmt.Printf("Vocabulary: %d symbols. Train: %d words, validation: %d words.\n",
		vocab.Size(), len(train), len(val))

	model := rnn.NewModel(cfg, vocab.Size(), rng)
	trainer := training.NewTrainer(cfg, rng)
	res, err := trainer.Train(train, val, model)
	if err != nil {
		return err
	}
	fmt.Printf("Trained for %d epochs, final validation perplexity %.4f.\n",
		res.Epochs, res.FinalValPPL)

	scores, err := training.ScoreFile(testPath, model, vocab)
	if err != nil {
		return err
	}
	if err := training.WriteScores(outPath, scores); err != nil {
		return err
	}
	fmt.Printf("Wrote %d scores to %s.\n", len(scores), outPath)
	return nil
}
