// Package fasttextlite wraps an external fastText-style supervised trainer
// behind a conventional estimator surface: fit, predict, probability
// prediction and directory persistence. The wrapper owns label bookkeeping,
// canonical class ordering and prediction realignment; training and
// inference stay in the engine.
package fasttextlite

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/sandypreiss/fasttext-lite/internal/labelmap"
)

// core holds the state shared by the single-label and multi-label
// variants. The engine-facing plumbing lives here; the variants differ
// only in how they build training corpora and shape predictions.
//
// Instances are not safe for concurrent mutation: Fit, Save and the
// quantizing transitions need external synchronization. Concurrent
// Predict and PredictProba calls on a fitted instance are fine.
type core struct {
	id       string
	hp       Hyperparameters
	engine   Engine
	model    Model
	registry *labelmap.Registry
	state    State
	logger   *zap.Logger

	cache *lru.Cache[string, engineRow]

	// Metrics tracking
	predictions int
	cacheHits   int
	metricsLock sync.RWMutex
}

// engineRow is one text's raw engine prediction, cached as returned.
type engineRow struct {
	labels []string
	probs  []float64
}

// Classifier is the single-label variant: each training example carries
// exactly one class, and Predict returns one class per text.
type Classifier struct {
	core
}

// New creates an unfitted single-label classifier with the given
// configuration.
func New(cfg Config) (*Classifier, error) {
	hp := cfg.resolveHyperparameters()
	base, err := newCore(cfg, hp)
	if err != nil {
		return nil, err
	}
	return &Classifier{core: *base}, nil
}

func newCore(cfg Config, hp Hyperparameters) (*core, error) {
	if err := hp.validate(); err != nil {
		return nil, err
	}
	if cfg.PredictionCacheSize < 0 {
		return nil, &ConfigurationError{Reason: "prediction cache size must not be negative"}
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	var cache *lru.Cache[string, engineRow]
	if cfg.PredictionCacheSize > 0 {
		var err error
		cache, err = lru.New[string, engineRow](cfg.PredictionCacheSize)
		if err != nil {
			return nil, &ConfigurationError{Reason: "failed to create prediction cache", Err: err}
		}
	}

	return &core{
		id:     uuid.New().String(),
		hp:     hp,
		engine: cfg.Engine,
		state:  StateUnfitted,
		logger: cfg.Logger,
		cache:  cache,
	}, nil
}

// Fit trains the classifier on parallel slices of texts and labels. The
// canonical class order becomes the sorted set of distinct labels,
// independent of the order they appear in. Refitting an already fitted
// instance replaces the model.
func (c *Classifier) Fit(ctx context.Context, texts, labels []string) error {
	if len(texts) != len(labels) {
		return &ConfigurationError{Reason: fmt.Sprintf("got %d texts but %d labels", len(texts), len(labels))}
	}
	if len(texts) == 0 {
		return &ConfigurationError{Reason: "training requires at least one example"}
	}

	registry, err := labelmap.Build(labels)
	if err != nil {
		return &ConfigurationError{Reason: "invalid training labels", Err: err}
	}

	corpusPath, err := buildSingleLabelCorpus(texts, labels, registry, c.hp.Prefix)
	if err != nil {
		return err
	}
	defer c.removeCorpus(corpusPath)

	start := time.Now()
	model, err := c.engine.Train(ctx, corpusPath, c.hp)
	if err != nil {
		return fmt.Errorf("failed to train model: %w", err)
	}

	c.model = model
	c.registry = registry
	c.state = StateFitted
	c.purgeCache()

	c.logger.Info("fitted classifier",
		zap.String("id", c.id),
		zap.Int("examples", len(texts)),
		zap.Int("classes", registry.Len()),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// Predict returns the best class for each text, in the user-facing label
// spelling. Engine spellings are mapped back through the registry, so
// labels containing spaces round-trip intact.
func (c *Classifier) Predict(ctx context.Context, texts []string) ([]string, error) {
	if err := c.checkFitted("Predict"); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return []string{}, nil
	}

	rows, err := c.predictRaw(ctx, texts, 1)
	if err != nil {
		return nil, err
	}

	out := make([]string, len(texts))
	for i, row := range rows {
		label, err := originalTopLabel(row.labels, i, c.registry, c.hp.Prefix)
		if err != nil {
			return nil, err
		}
		out[i] = label
	}
	return out, nil
}

// Save persists the classifier into a directory: a hyperparameter record,
// a label record and the engine's model artifact. With quantized set, the
// model is compressed first and the artifact uses the quantized extension;
// the in-memory instance stays quantized afterwards. A quantized instance
// cannot be saved unquantized, since the full-precision weights are gone.
func (c *Classifier) Save(ctx context.Context, path string, quantized bool) error {
	return c.save(ctx, path, quantized, nil)
}

// PredictProba returns an n_texts by n_classes matrix of probabilities
// whose columns follow Classes. Softmax-trained rows sum to one;
// one-vs-all rows hold independent per-class estimates. Classes the
// engine omits from a prediction get probability zero. For an empty text
// slice the returned matrix is nil.
func (c *core) PredictProba(ctx context.Context, texts []string) (*mat.Dense, error) {
	if err := c.checkFitted("PredictProba"); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, nil
	}

	rows, err := c.predictRaw(ctx, texts, c.registry.Len())
	if err != nil {
		return nil, err
	}

	classes := c.registry.Labels()
	out := mat.NewDense(len(texts), len(classes), nil)
	for i, row := range rows {
		if err := alignRow(out, i, row.labels, row.probs, classes, c.registry, c.hp.Prefix); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Classes returns the canonical class order. Probability columns and
// indicator-row columns follow it.
func (c *core) Classes() ([]string, error) {
	if err := c.checkFitted("Classes"); err != nil {
		return nil, err
	}
	return c.registry.Labels(), nil
}

// NumLabels returns the number of classes the model was fitted on.
func (c *core) NumLabels() (int, error) {
	if err := c.checkFitted("NumLabels"); err != nil {
		return 0, err
	}
	return c.registry.Len(), nil
}

// Hyperparameters returns the effective hyperparameter set.
func (c *core) Hyperparameters() Hyperparameters {
	return c.hp
}

// State reports where the instance is in its lifecycle.
func (c *core) State() State {
	return c.state
}

// IsFitted reports whether the classifier holds a trained model.
func (c *core) IsFitted() bool {
	return c.state != StateUnfitted
}

// IsQuantized reports whether the in-memory model is compressed.
func (c *core) IsQuantized() bool {
	return c.state == StateQuantized
}

// GetMetrics returns current prediction metrics.
func (c *core) GetMetrics() Metrics {
	c.metricsLock.RLock()
	defer c.metricsLock.RUnlock()

	var cacheHitRate float32
	if c.predictions > 0 {
		cacheHitRate = float32(c.cacheHits) / float32(c.predictions) * 100
	}

	return Metrics{
		Predictions:  c.predictions,
		CacheHits:    c.cacheHits,
		CacheHitRate: cacheHitRate,
	}
}

func (c *core) checkFitted(op string) error {
	if c.state == StateUnfitted {
		return &NotFittedError{Op: op}
	}
	return nil
}

// predictRaw fetches raw engine predictions for texts at the given k,
// serving repeated texts from the prediction cache when one is configured.
// Cache keys include k, so top-1 and full-distribution lookups never
// collide.
func (c *core) predictRaw(ctx context.Context, texts []string, k int) ([]engineRow, error) {
	rows := make([]engineRow, len(texts))
	missing := make([]string, 0, len(texts))
	missingAt := make([]int, 0, len(texts))
	hits := 0

	for i, text := range texts {
		normalized := normalizeText(text)
		if c.cache != nil {
			if row, ok := c.cache.Get(cacheKey(k, normalized)); ok {
				rows[i] = row
				hits++
				continue
			}
		}
		missing = append(missing, normalized)
		missingAt = append(missingAt, i)
	}

	if len(missing) > 0 {
		labels, probs, err := c.model.Predict(ctx, missing, k)
		if err != nil {
			return nil, fmt.Errorf("failed to predict: %w", err)
		}
		if len(labels) != len(missing) || len(probs) != len(missing) {
			return nil, &AlignmentError{
				TextIndex: -1,
				Reason:    fmt.Sprintf("engine returned %d label rows and %d probability rows for %d texts", len(labels), len(probs), len(missing)),
			}
		}
		for j, i := range missingAt {
			row := engineRow{labels: labels[j], probs: probs[j]}
			rows[i] = row
			if c.cache != nil {
				c.cache.Add(cacheKey(k, missing[j]), row)
			}
		}
	}

	c.recordPredictions(len(texts), hits)
	return rows, nil
}

func cacheKey(k int, text string) string {
	return strconv.Itoa(k) + "\x00" + text
}

// purgeCache drops cached predictions after any transition that changes
// what the model would answer.
func (c *core) purgeCache() {
	if c.cache != nil {
		c.cache.Purge()
	}
}

func (c *core) removeCorpus(path string) {
	if err := os.Remove(path); err != nil {
		c.logger.Warn("failed to remove training corpus",
			zap.String("path", path),
			zap.Error(err))
	}
}

// recordPredictions records scored texts and cache hits for metrics.
func (c *core) recordPredictions(total, hits int) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.predictions += total
	c.cacheHits += hits
}
