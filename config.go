package fasttextlite

import "go.uber.org/zap"

const (
	// DefaultPrefix marks label tokens in training corpora and engine
	// predictions.
	DefaultPrefix = "__label__"
)

// Config holds configuration for a classifier.
type Config struct {
	// Hyperparameters are passed through to the engine at fit time. If nil,
	// uses DefaultHyperparameters. Load ignores this field and restores the
	// persisted values instead.
	Hyperparameters *Hyperparameters

	// Engine performs training and inference. If nil, uses the bundled CLI
	// adapter, locating the binary through $FASTTEXT_BINARY or $PATH.
	Engine Engine

	// Logger receives operational logs. If nil, logging is disabled.
	Logger *zap.Logger

	// PredictionCacheSize bounds the per-instance LRU cache of engine
	// predictions. If 0, caching is disabled.
	PredictionCacheSize int
}

// resolveHyperparameters returns the effective hyperparameter set without
// mutating the caller's struct.
func (c *Config) resolveHyperparameters() Hyperparameters {
	if c.Hyperparameters == nil {
		return DefaultHyperparameters()
	}
	hp := *c.Hyperparameters
	if hp.Loss == "" {
		hp.Loss = LossSoftmax
	}
	if hp.Prefix == "" {
		hp.Prefix = DefaultPrefix
	}
	return hp
}

// applyDefaults fills in default values for unset config fields.
func (c *Config) applyDefaults() error {
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	if c.Engine == nil {
		engine, err := NewCLIEngine(nil)
		if err != nil {
			return &ConfigurationError{Reason: "no engine configured and the default engine is unavailable", Err: err}
		}
		c.Engine = engine
	}

	return nil
}
