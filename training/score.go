package training

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/kayaulai/MayerNelson-class/corpus"
	"github.com/kayaulai/MayerNelson-class/rnn"
)

// WordScore pairs a surface form (phones concatenated) with its perplexity.
type WordScore struct {
	Surface    string
	Perplexity float64
}

// ScoreWord brackets and encodes one phone sequence, then evaluates it as a
// batch of one. Unknown phones fail exactly as at corpus-encoding time.
func ScoreWord(phones []string, model *rnn.Model, vocab *corpus.Vocabulary) (float64, error) {
	bracketed := corpus.Bracket(phones)
	enc, err := corpus.Encode(bracketed, vocab, len(bracketed))
	if err != nil {
		return 0, err
	}
	return Perplexity(corpus.Dataset{enc}, model, 1)
}

// ScoreWords scores novel word forms in input order. Each word is scored
// independently; a failure reports which word broke.
func ScoreWords(words [][]string, model *rnn.Model, vocab *corpus.Vocabulary) ([]WordScore, error) {
	out := make([]WordScore, 0, len(words))
	for _, phones := range words {
		ppl, err := ScoreWord(phones, model, vocab)
		if err != nil {
			return nil, fmt.Errorf("scoring %q: %w", strings.Join(phones, " "), err)
		}
		out = append(out, WordScore{Surface: strings.Join(phones, ""), Perplexity: ppl})
	}
	return out, nil
}

// ScoreFile reads a nonce-word list (same one-word-per-line format as the
// training corpus, without brackets) and scores every word.
func ScoreFile(path string, model *rnn.Model, vocab *corpus.Vocabulary) ([]WordScore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var words [][]string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		phones := strings.Fields(sc.Text())
		if len(phones) > 0 {
			words = append(words, phones)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return ScoreWords(words, model, vocab)
}

// WriteScores writes the two-column tab-separated artifact, one
// "<surface>\t<perplexity>" line per word, no header. The file is
// overwritten on each run.
func WriteScores(path string, scores []WordScore) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, s := range scores {
		fmt.Fprintf(w, "%s\t%g\n", s.Surface, s.Perplexity)
	}
	return w.Flush()
}
