package fasttextlite

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/sandypreiss/fasttext-lite/internal/labelmap"
)

// MultiLabelClassifier trains one-vs-all over a fixed label universe and
// scores every class independently per text. Unlike the single-label
// variant, the class set is declared at construction rather than inferred
// from training data, so classes absent from the corpus still hold a
// column in the output.
type MultiLabelClassifier struct {
	core

	// labels is the constructor universe, persisted verbatim on save.
	labels []string
}

// NewMultiLabel creates an unfitted multi-label classifier over the given
// label universe. The canonical class order is the sorted set of distinct
// labels. The loss is always one-vs-all; a different configured loss is
// overridden.
func NewMultiLabel(labels []string, cfg Config) (*MultiLabelClassifier, error) {
	if len(labels) == 0 {
		return nil, &ConfigurationError{Reason: "multi-label classification requires at least one label"}
	}

	registry, err := labelmap.Build(labels)
	if err != nil {
		return nil, &ConfigurationError{Reason: "invalid label universe", Err: err}
	}

	hp := cfg.resolveHyperparameters()
	hp.Loss = LossOneVsAll

	base, err := newCore(cfg, hp)
	if err != nil {
		return nil, err
	}
	base.registry = registry

	universe := make([]string, len(labels))
	copy(universe, labels)

	return &MultiLabelClassifier{core: *base, labels: universe}, nil
}

// Fit trains the classifier on texts and per-example indicator rows.
// Column j of each row corresponds to Classes()[j]; values are 0 or 1, and
// a row may mark any number of classes, including none. Refitting replaces
// the model.
func (m *MultiLabelClassifier) Fit(ctx context.Context, texts []string, rows [][]int) error {
	if len(texts) != len(rows) {
		return &ConfigurationError{Reason: fmt.Sprintf("got %d texts but %d indicator rows", len(texts), len(rows))}
	}
	if len(texts) == 0 {
		return &ConfigurationError{Reason: "training requires at least one example"}
	}

	corpusPath, err := buildMultiLabelCorpus(texts, rows, m.registry, m.hp.Prefix)
	if err != nil {
		return err
	}
	defer m.removeCorpus(corpusPath)

	start := time.Now()
	model, err := m.engine.Train(ctx, corpusPath, m.hp)
	if err != nil {
		return fmt.Errorf("failed to train model: %w", err)
	}

	m.model = model
	m.state = StateFitted
	m.purgeCache()

	m.logger.Info("fitted multi-label classifier",
		zap.String("id", m.id),
		zap.Int("examples", len(texts)),
		zap.Int("classes", m.registry.Len()),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// Predict returns the per-class probability matrix, exactly as
// PredictProba does. A single best class is not meaningful when classes
// are scored independently; callers apply their own thresholds to the
// returned matrix.
func (m *MultiLabelClassifier) Predict(ctx context.Context, texts []string) (*mat.Dense, error) {
	return m.PredictProba(ctx, texts)
}

// Save persists the classifier into a directory. The hyperparameter
// record additionally carries the label universe, which marks the
// directory as multi-label for Load.
func (m *MultiLabelClassifier) Save(ctx context.Context, path string, quantized bool) error {
	return m.save(ctx, path, quantized, m.labels)
}
