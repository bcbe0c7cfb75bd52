package params

// Config holds every hyperparameter of one experiment run. A run owns its
// Config; nothing here is mutated after construction.
type Config struct {
	// Model parameters
	EmbeddingDim int // phone embedding width
	HiddenDim    int // recurrent state width
	Layers       int // stacked recurrent layers
	TieWeights   bool

	// Optimization parameters
	BatchSize    int
	LearningRate float64
	AdamBeta1    float64 // default 0.9
	AdamBeta2    float64 // default 0.999
	AdamEps      float64 // default 1e-8

	MaxEpochs int
	Tolerance float64 // stop when val perplexity rises by more than this

	// Data parameters
	TrainSplit int  // percent of examples used for training
	UseDev     bool // false: validate on a small slice of the training data
	Shuffle    bool
	Seed       int64

	LogPath string // optional per-epoch CSV log, "" disables
}

// Defaults mirror the small-experiment settings the model was tuned with.
func Defaults() Config {
	return Config{
		EmbeddingDim: 24,
		HiddenDim:    64,
		Layers:       1,
		TieWeights:   false,

		BatchSize:    64,
		LearningRate: 0.001,
		AdamBeta1:    0.9,
		AdamBeta2:    0.999,
		AdamEps:      1e-8,

		MaxEpochs: 20,
		Tolerance: 0.01,

		TrainSplit: 80,
		UseDev:     true,
		Shuffle:    true,
		Seed:       1,
	}
}
