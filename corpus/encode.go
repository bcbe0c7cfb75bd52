package corpus

import (
	"fmt"
	"math/rand"
)

// Dataset is a corpus partition as uniform-length rows of symbol indices.
// Row length is identical across the whole dataset so rows can be stacked
// into batch matrices.
type Dataset [][]int

// Encode converts one bracketed sequence to indices, right-padding with the
// pad index up to maxLen. Sequences longer than maxLen are an error, never
// truncated.
func Encode(seq []string, v *Vocabulary, maxLen int) ([]int, error) {
	if len(seq) > maxLen {
		return nil, fmt.Errorf("corpus: sequence length %d exceeds max length %d", len(seq), maxLen)
	}
	out := make([]int, maxLen)
	for i, s := range seq {
		id, err := v.Index(s)
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	// remaining positions stay at the pad index (0)
	return out, nil
}

// EncodeAll encodes a whole corpus, padded to the longest bracketed sequence.
func EncodeAll(seqs [][]string, v *Vocabulary) (Dataset, error) {
	if len(seqs) == 0 {
		return nil, ErrEmptyCorpus
	}
	maxLen := 0
	for _, seq := range seqs {
		if len(seq) > maxLen {
			maxLen = len(seq)
		}
	}
	ds := make(Dataset, len(seqs))
	for i, seq := range seqs {
		enc, err := Encode(seq, v, maxLen)
		if err != nil {
			return nil, err
		}
		ds[i] = enc
	}
	return ds, nil
}

// Split shuffles (when asked) and partitions a dataset at
// floor(n*trainPct/100): first slice trains, the rest validates.
//
// With useDev=false the full set trains and the validation set is just the
// last 10 rows of the shuffled set (all rows when fewer than 10 exist). That
// keeps the single evaluation path fed with non-empty input; it is a
// compromise, not a statistically meaningful dev set.
func Split(ds Dataset, trainPct int, useDev, shuffle bool, rng *rand.Rand) (Dataset, Dataset) {
	shuffled := make(Dataset, len(ds))
	copy(shuffled, ds)
	if shuffle {
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
	}
	if !useDev {
		tail := len(shuffled) - 10
		if tail < 0 {
			tail = 0
		}
		return shuffled, shuffled[tail:]
	}
	cut := len(shuffled) * trainPct / 100
	return shuffled[:cut], shuffled[cut:]
}
