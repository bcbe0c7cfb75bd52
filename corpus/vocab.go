package corpus

// Vocabulary is the closed symbol inventory of one run: pad fixed at index 0,
// every other symbol in first-seen corpus order. Built once, immutable after.
type Vocabulary struct {
	SymbolToIndex map[string]int
	IndexToSymbol []string
}

// BuildVocabulary collects the distinct symbols of a bracketed corpus.
// First-seen order keeps index assignment deterministic for a given corpus,
// which is all the model needs: index values only have to stay consistent
// for the lifetime of the run.
func BuildVocabulary(seqs [][]string) (*Vocabulary, error) {
	if len(seqs) == 0 {
		return nil, ErrEmptyCorpus
	}
	v := &Vocabulary{
		SymbolToIndex: map[string]int{PadSymbol: 0},
		IndexToSymbol: []string{PadSymbol},
	}
	for _, seq := range seqs {
		for _, s := range seq {
			if _, ok := v.SymbolToIndex[s]; !ok {
				v.SymbolToIndex[s] = len(v.IndexToSymbol)
				v.IndexToSymbol = append(v.IndexToSymbol, s)
			}
		}
	}
	return v, nil
}

// Size returns the number of symbols, pad included.
func (v *Vocabulary) Size() int { return len(v.IndexToSymbol) }

// PadIndex is always 0; named for readability at call sites.
func (v *Vocabulary) PadIndex() int { return 0 }

// Index resolves one symbol, failing on anything outside the inventory.
func (v *Vocabulary) Index(symbol string) (int, error) {
	id, ok := v.SymbolToIndex[symbol]
	if !ok {
		return 0, &UnknownSymbolError{Symbol: symbol}
	}
	return id, nil
}
