package fasttextlite

import "strings"

// Loss selects the training objective handed to the external engine.
type Loss string

const (
	// LossNegativeSampling trains with negative sampling.
	LossNegativeSampling Loss = "ns"

	// LossHierarchicalSoftmax trains with hierarchical softmax.
	LossHierarchicalSoftmax Loss = "hs"

	// LossSoftmax trains a full softmax over the label set. This is the
	// single-label default; probability rows sum to one.
	LossSoftmax Loss = "softmax"

	// LossOneVsAll trains independent binary classifiers per label. The
	// multi-label variant always uses this loss.
	LossOneVsAll Loss = "ova"
)

func (l Loss) valid() bool {
	switch l {
	case LossNegativeSampling, LossHierarchicalSoftmax, LossSoftmax, LossOneVsAll:
		return true
	}
	return false
}

// State tracks a classifier through its lifecycle. Quantization is a state
// of the instance rather than a save option: it compresses the fitted model
// in place and cannot be undone without refitting.
type State int

const (
	// StateUnfitted means no model exists yet. Prediction, inspection and
	// saving all fail with NotFittedError.
	StateUnfitted State = iota

	// StateFitted means a full-precision model is in memory.
	StateFitted

	// StateQuantized means the in-memory model has been compressed.
	StateQuantized
)

func (s State) String() string {
	switch s {
	case StateUnfitted:
		return "unfitted"
	case StateFitted:
		return "fitted"
	case StateQuantized:
		return "quantized"
	default:
		return "unknown"
	}
}

// Hyperparameters mirrors the engine's supervised-training flags. Field
// names and JSON keys follow the engine's own argument vocabulary, so a
// persisted record reads the same as the engine's command line.
type Hyperparameters struct {
	// LR is the initial learning rate.
	LR float64 `json:"lr"`

	// Dim is the word vector dimensionality.
	Dim int `json:"dim"`

	// WS is the context window size.
	WS int `json:"ws"`

	// Epoch is the number of passes over the training corpus.
	Epoch int `json:"epoch"`

	// MinCount drops words seen fewer times than this.
	MinCount int `json:"minCount"`

	// MinCountLabel drops labels seen fewer times than this.
	MinCountLabel int `json:"minCountLabel"`

	// Minn and Maxn bound character n-gram lengths; both zero disables
	// subword features.
	Minn int `json:"minn"`
	Maxn int `json:"maxn"`

	// Neg is the number of negatives sampled per example.
	Neg int `json:"neg"`

	// WordNgrams is the max length of word n-gram features.
	WordNgrams int `json:"wordNgrams"`

	// Loss is the training objective. NewMultiLabel overrides this to
	// LossOneVsAll regardless of the configured value.
	Loss Loss `json:"loss"`

	// Bucket is the hash bucket count for n-gram features.
	Bucket int `json:"bucket"`

	// LRUpdateRate is the token count between learning rate updates.
	LRUpdateRate int `json:"lrUpdateRate"`

	// T is the sampling threshold for frequent words.
	T float64 `json:"t"`

	// Prefix marks label tokens in the training corpus and in engine
	// predictions. It must contain no whitespace.
	Prefix string `json:"label"`

	// Verbose is the engine's log verbosity level.
	Verbose int `json:"verbose"`

	// Thread is the number of training threads.
	Thread int `json:"thread"`
}

// DefaultHyperparameters returns the engine's stock supervised defaults.
func DefaultHyperparameters() Hyperparameters {
	return Hyperparameters{
		LR:            0.1,
		Dim:           100,
		WS:            5,
		Epoch:         5,
		MinCount:      1,
		MinCountLabel: 1,
		Minn:          0,
		Maxn:          0,
		Neg:           5,
		WordNgrams:    1,
		Loss:          LossSoftmax,
		Bucket:        2000000,
		LRUpdateRate:  100,
		T:             0.0001,
		Prefix:        DefaultPrefix,
		Verbose:       2,
		Thread:        2,
	}
}

func (hp Hyperparameters) validate() error {
	if !hp.Loss.valid() {
		return &ConfigurationError{Reason: "unknown loss " + string(hp.Loss)}
	}
	if hp.Prefix == "" {
		return &ConfigurationError{Reason: "label prefix must not be empty"}
	}
	if strings.ContainsAny(hp.Prefix, " \t\r\n\v\f") {
		return &ConfigurationError{Reason: "label prefix must not contain whitespace"}
	}
	if hp.LR <= 0 {
		return &ConfigurationError{Reason: "lr must be positive"}
	}
	if hp.Dim <= 0 {
		return &ConfigurationError{Reason: "dim must be positive"}
	}
	if hp.WS <= 0 {
		return &ConfigurationError{Reason: "ws must be positive"}
	}
	if hp.Epoch <= 0 {
		return &ConfigurationError{Reason: "epoch must be positive"}
	}
	if hp.Thread <= 0 {
		return &ConfigurationError{Reason: "thread must be positive"}
	}
	if hp.MinCount < 0 || hp.MinCountLabel < 0 {
		return &ConfigurationError{Reason: "minCount and minCountLabel must not be negative"}
	}
	if hp.Minn < 0 || hp.Maxn < 0 {
		return &ConfigurationError{Reason: "minn and maxn must not be negative"}
	}
	if hp.Neg < 0 || hp.WordNgrams < 0 || hp.Bucket < 0 || hp.LRUpdateRate < 0 {
		return &ConfigurationError{Reason: "neg, wordNgrams, bucket and lrUpdateRate must not be negative"}
	}
	if hp.T < 0 {
		return &ConfigurationError{Reason: "t must not be negative"}
	}
	return nil
}

// Metrics provides statistics about a classifier's prediction traffic.
type Metrics struct {
	// Predictions is the total number of texts scored, cached or not.
	Predictions int

	// CacheHits is the number of texts served from the prediction cache.
	CacheHits int

	// CacheHitRate is the percentage of texts served from cache.
	CacheHitRate float32
}
