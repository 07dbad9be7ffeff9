// Package enginetest provides a deterministic in-memory stand-in for the
// external trainer, so estimator behavior is testable without the real
// binary. The fake scores texts by token overlap with the training
// corpus and deliberately orders tied labels in reverse lexicographic
// order, which keeps its output order different from the canonical class
// order.
package enginetest

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"sync"

	fasttextlite "github.com/sandypreiss/fasttext-lite"
)

// Engine is a fake implementation of the Engine interface for testing.
type Engine struct {
	// CutoffProb drops predicted labels whose probability falls below it,
	// imitating an engine that omits classes from its output.
	CutoffProb float64

	// TrainFunc and LoadFunc override the default behavior when set.
	TrainFunc func(ctx context.Context, corpusPath string, hp fasttextlite.Hyperparameters) (fasttextlite.Model, error)
	LoadFunc  func(path string) (fasttextlite.Model, error)

	mu         sync.Mutex
	TrainCount int
	LoadCount  int
	LastCorpus string
}

// New creates a fake engine with default behavior.
func New() *Engine {
	return &Engine{}
}

// Train builds an in-memory model from the corpus file via BuildModel,
// unless TrainFunc overrides it.
func (e *Engine) Train(ctx context.Context, corpusPath string, hp fasttextlite.Hyperparameters) (fasttextlite.Model, error) {
	e.mu.Lock()
	e.TrainCount++
	e.LastCorpus = corpusPath
	e.mu.Unlock()

	if e.TrainFunc != nil {
		return e.TrainFunc(ctx, corpusPath, hp)
	}
	return e.BuildModel(corpusPath, hp)
}

// BuildModel parses the corpus the way the real trainer reads it: every
// token carrying the label prefix is a label, everything else is text.
func (e *Engine) BuildModel(corpusPath string, hp fasttextlite.Hyperparameters) (*Model, error) {
	data, err := os.ReadFile(corpusPath)
	if err != nil {
		return nil, fmt.Errorf("could not read corpus: %w", err)
	}

	m := &Model{
		Loss:        string(hp.Loss),
		Cutoff:      e.CutoffProb,
		TokenCounts: make(map[string]map[string]float64),
	}
	for _, line := range strings.Split(string(data), "\n") {
		tokens := strings.Fields(line)
		if len(tokens) == 0 {
			continue
		}
		var labels, words []string
		for _, tok := range tokens {
			if strings.HasPrefix(tok, hp.Prefix) {
				labels = append(labels, tok)
			} else {
				words = append(words, tok)
			}
		}
		for _, label := range labels {
			counts, ok := m.TokenCounts[label]
			if !ok {
				counts = make(map[string]float64)
				m.TokenCounts[label] = counts
			}
			for _, w := range words {
				counts[w]++
			}
		}
	}
	if len(m.TokenCounts) == 0 {
		return nil, fmt.Errorf("corpus holds no labeled examples")
	}
	m.rebuildLabelList()
	return m, nil
}

// Load reopens a model written by Model.SaveTo.
func (e *Engine) Load(path string) (fasttextlite.Model, error) {
	e.mu.Lock()
	e.LoadCount++
	e.mu.Unlock()

	if e.LoadFunc != nil {
		return e.LoadFunc(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read model: %w", err)
	}
	m := &Model{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("could not decode model: %w", err)
	}
	if m.Format != modelFormat {
		return nil, fmt.Errorf("%s is not a fake model artifact", path)
	}
	m.rebuildLabelList()
	return m, nil
}

const modelFormat = "enginetest-v1"

// Model is the fake's fitted artifact. Scores are derived from token
// overlap between the prediction text and each label's training examples,
// so behavior is fully deterministic.
type Model struct {
	Format      string                        `json:"format"`
	Loss        string                        `json:"loss"`
	Cutoff      float64                       `json:"cutoff"`
	Quantized   bool                          `json:"quantized"`
	TokenCounts map[string]map[string]float64 `json:"token_counts"`

	// ForceLabels and ForceProbs make Predict return fixed rows, for
	// exercising misbehaving-engine paths. Not persisted.
	ForceLabels [][]string  `json:"-"`
	ForceProbs  [][]float64 `json:"-"`

	// PredictErr makes Predict fail. Not persisted.
	PredictErr error `json:"-"`

	labels []string // sorted for deterministic iteration

	mu           sync.Mutex
	PredictCount int `json:"-"`
}

func (m *Model) rebuildLabelList() {
	m.labels = make([]string, 0, len(m.TokenCounts))
	for label := range m.TokenCounts {
		m.labels = append(m.labels, label)
	}
	sort.Strings(m.labels)
}

// Predict scores each text against every trained label and returns the
// top-k rows sorted by descending probability. Ties break in reverse
// lexicographic label order.
func (m *Model) Predict(ctx context.Context, texts []string, k int) ([][]string, [][]float64, error) {
	m.mu.Lock()
	m.PredictCount += len(texts)
	m.mu.Unlock()

	if m.PredictErr != nil {
		return nil, nil, m.PredictErr
	}
	if m.ForceLabels != nil || m.ForceProbs != nil {
		return m.ForceLabels, m.ForceProbs, nil
	}

	labels := make([][]string, len(texts))
	probs := make([][]float64, len(texts))
	for i, text := range texts {
		labels[i], probs[i] = m.predictOne(text, k)
	}
	return labels, probs, nil
}

type scored struct {
	label string
	prob  float64
}

func (m *Model) predictOne(text string, k int) ([]string, []float64) {
	words := strings.Fields(text)

	rows := make([]scored, 0, len(m.labels))
	if m.Loss == "ova" {
		for _, label := range m.labels {
			matched := m.overlap(label, words)
			rows = append(rows, scored{label: label, prob: matched / (matched + 1)})
		}
	} else {
		total := 0.0
		weights := make([]float64, len(m.labels))
		for i, label := range m.labels {
			weights[i] = 1 + m.overlap(label, words)
			total += weights[i]
		}
		for i, label := range m.labels {
			rows = append(rows, scored{label: label, prob: weights[i] / total})
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].prob != rows[j].prob {
			return rows[i].prob > rows[j].prob
		}
		return rows[i].label > rows[j].label
	})

	if k < len(rows) {
		rows = rows[:k]
	}

	outLabels := make([]string, 0, len(rows))
	outProbs := make([]float64, 0, len(rows))
	for _, r := range rows {
		if r.prob < m.Cutoff {
			continue
		}
		p := r.prob
		if m.Quantized {
			p = math.Round(p*1000) / 1000
		}
		outLabels = append(outLabels, r.label)
		outProbs = append(outProbs, p)
	}
	return outLabels, outProbs
}

func (m *Model) overlap(label string, words []string) float64 {
	counts := m.TokenCounts[label]
	total := 0.0
	for _, w := range words {
		total += counts[w]
	}
	return total
}

// SaveTo writes the model as JSON.
func (m *Model) SaveTo(path string) error {
	m.Format = modelFormat
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("could not encode model: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("could not write model: %w", err)
	}
	return nil
}

// Quantize marks the model quantized. Predictions afterwards are rounded
// to three decimals, a visible stand-in for compression loss.
func (m *Model) Quantize(ctx context.Context) error {
	if m.Quantized {
		return fmt.Errorf("model is already quantized")
	}
	m.Quantized = true
	return nil
}

// IsQuantized reports the quantization flag.
func (m *Model) IsQuantized() bool {
	return m.Quantized
}
