package fasttextlite

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/sandypreiss/fasttext-lite/internal/labelmap"
)

// persist.go round-trips a fitted classifier through a directory holding
// three artifacts: params.json (hyperparameters), labels.json (the label
// registry) and the engine's own model file as fasttext.bin, or
// fasttext.ftz when quantized.

const (
	// formatVersion is written into params.json. Records written before
	// versioning carry no format_version key and are read as version 1.
	formatVersion = 1

	paramsFile   = "params.json"
	labelsFile   = "labels.json"
	artifactStem = "fasttext"
	extPlain     = ".bin"
	extQuantized = ".ftz"
)

// paramsRecord is the persisted form of params.json. Labels is only set
// for the multi-label variant; its presence is what distinguishes the two
// on load.
type paramsRecord struct {
	FormatVersion int      `json:"format_version"`
	Labels        []string `json:"labels,omitempty"`
	Hyperparameters
}

// labelsRecord is the persisted form of labels.json.
type labelsRecord struct {
	Labels []labelmap.Pair `json:"labels"`
}

// save persists the fitted model plus its records into dir, quantizing
// first when asked to. labels carries the multi-label universe and is nil
// for the single-label variant.
func (c *core) save(ctx context.Context, dir string, quantized bool, labels []string) error {
	if c.state == StateUnfitted {
		return &NotFittedError{Op: "Save"}
	}
	if !quantized && c.state == StateQuantized {
		return &ConfigurationError{Reason: "model is already quantized; the full-precision weights cannot be restored"}
	}

	if quantized && c.state != StateQuantized {
		if err := c.model.Quantize(ctx); err != nil {
			return fmt.Errorf("failed to quantize model: %w", err)
		}
		c.state = StateQuantized
		c.purgeCache()
		c.logger.Info("quantized model", zap.String("id", c.id))
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &PersistenceError{Path: dir, Reason: "failed to create model directory", Err: err}
	}

	params := paramsRecord{
		FormatVersion:   formatVersion,
		Labels:          labels,
		Hyperparameters: c.hp,
	}
	if err := writeJSON(filepath.Join(dir, paramsFile), params); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, labelsFile), labelsRecord{Labels: c.registry.Pairs()}); err != nil {
		return err
	}

	ext := extPlain
	if c.state == StateQuantized {
		ext = extQuantized
	}
	artifact := filepath.Join(dir, artifactStem+ext)
	if err := c.model.SaveTo(artifact); err != nil {
		return &PersistenceError{Path: artifact, Reason: "failed to write model artifact", Err: err}
	}

	c.logger.Info("saved classifier",
		zap.String("id", c.id),
		zap.String("dir", dir),
		zap.Bool("quantized", c.state == StateQuantized))
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return &PersistenceError{Path: path, Reason: "failed to marshal record", Err: err}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &PersistenceError{Path: path, Reason: "failed to write record", Err: err}
	}
	return nil
}

// Load restores a single-label classifier from a directory written by
// Save. The persisted hyperparameters win over cfg.Hyperparameters; the
// engine, logger and cache settings come from cfg.
func Load(path string, cfg Config) (*Classifier, error) {
	base, _, err := loadCore(path, cfg, false)
	if err != nil {
		return nil, err
	}
	return &Classifier{core: *base}, nil
}

// LoadMultiLabel restores a multi-label classifier from a directory
// written by MultiLabelClassifier.Save.
func LoadMultiLabel(path string, cfg Config) (*MultiLabelClassifier, error) {
	base, params, err := loadCore(path, cfg, true)
	if err != nil {
		return nil, err
	}
	return &MultiLabelClassifier{core: *base, labels: params.Labels}, nil
}

func loadCore(dir string, cfg Config, multi bool) (*core, paramsRecord, error) {
	params, err := readParams(dir, multi)
	if err != nil {
		return nil, paramsRecord{}, err
	}
	if multi {
		// a pre-versioning multi-label record omits the loss field
		params.Loss = LossOneVsAll
	}
	if err := params.Hyperparameters.validate(); err != nil {
		return nil, paramsRecord{}, &PersistenceError{Path: filepath.Join(dir, paramsFile), Reason: "invalid hyperparameter record", Err: err}
	}

	registry, err := readLabels(dir)
	if err != nil {
		return nil, paramsRecord{}, err
	}
	if multi {
		if err := checkUniverse(dir, params.Labels, registry); err != nil {
			return nil, paramsRecord{}, err
		}
	}

	base, err := newCore(cfg, params.Hyperparameters)
	if err != nil {
		return nil, paramsRecord{}, err
	}

	artifact, err := findArtifact(dir, base.logger)
	if err != nil {
		return nil, paramsRecord{}, err
	}
	model, err := base.engine.Load(artifact)
	if err != nil {
		return nil, paramsRecord{}, &PersistenceError{Path: artifact, Reason: "failed to load model artifact", Err: err}
	}

	base.model = model
	base.registry = registry
	base.state = StateFitted
	// The artifact itself is authoritative: a renamed file does not change
	// what the engine loaded.
	if model.IsQuantized() {
		base.state = StateQuantized
	}

	base.logger.Info("loaded classifier",
		zap.String("id", base.id),
		zap.String("dir", dir),
		zap.Int("classes", registry.Len()),
		zap.Bool("quantized", base.state == StateQuantized),
		zap.Bool("multilabel", multi))
	return base, params, nil
}

// readParams loads the hyperparameter record, overlaying it onto the
// defaults so that fields a pre-versioning record omits keep their stock
// values.
func readParams(dir string, multi bool) (paramsRecord, error) {
	path := filepath.Join(dir, paramsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return paramsRecord{}, &PersistenceError{Path: path, Reason: "failed to read hyperparameter record", Err: err}
	}
	if !gjson.ValidBytes(data) {
		return paramsRecord{}, &PersistenceError{Path: path, Reason: "hyperparameter record is not valid JSON"}
	}

	if v := gjson.GetBytes(data, "format_version"); v.Exists() && v.Int() > formatVersion {
		return paramsRecord{}, &PersistenceError{Path: path, Reason: fmt.Sprintf("unsupported format version %d", v.Int())}
	}

	hasUniverse := gjson.GetBytes(data, "labels").Exists()
	if hasUniverse && !multi {
		return paramsRecord{}, &PersistenceError{Path: path, Reason: "directory holds a multi-label classifier; use LoadMultiLabel"}
	}
	if !hasUniverse && multi {
		return paramsRecord{}, &PersistenceError{Path: path, Reason: "directory holds a single-label classifier; use Load"}
	}

	record := paramsRecord{Hyperparameters: DefaultHyperparameters()}
	if err := json.Unmarshal(data, &record); err != nil {
		return paramsRecord{}, &PersistenceError{Path: path, Reason: "malformed hyperparameter record", Err: err}
	}
	return record, nil
}

// readLabels rebuilds the label registry from the label record.
func readLabels(dir string) (*labelmap.Registry, error) {
	path := filepath.Join(dir, labelsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &PersistenceError{Path: path, Reason: "failed to read label record", Err: err}
	}

	var record labelsRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, &PersistenceError{Path: path, Reason: "malformed label record", Err: err}
	}
	if len(record.Labels) == 0 {
		return nil, &PersistenceError{Path: path, Reason: "label record holds no labels"}
	}

	registry, err := labelmap.FromPairs(record.Labels)
	if err != nil {
		return nil, &PersistenceError{Path: path, Reason: "invalid label record", Err: err}
	}
	return registry, nil
}

// checkUniverse verifies the multi-label universe in params.json agrees
// with the label record.
func checkUniverse(dir string, universe []string, registry *labelmap.Registry) error {
	rebuilt, err := labelmap.Build(universe)
	if err != nil {
		return &PersistenceError{
			Path:   filepath.Join(dir, paramsFile),
			Reason: "invalid label universe",
			Err:    err,
		}
	}
	got := rebuilt.Labels()
	want := registry.Labels()
	if len(got) != len(want) {
		return universeMismatch(dir)
	}
	for i := range got {
		if got[i] != want[i] {
			return universeMismatch(dir)
		}
	}
	return nil
}

func universeMismatch(dir string) error {
	return &PersistenceError{
		Path:   filepath.Join(dir, paramsFile),
		Reason: "label universe does not match the label record",
	}
}

// findArtifact locates the model artifact, preferring the quantized form
// when both extensions are present.
func findArtifact(dir string, logger *zap.Logger) (string, error) {
	quantized := filepath.Join(dir, artifactStem+extQuantized)
	plain := filepath.Join(dir, artifactStem+extPlain)

	haveQuantized := fileExists(quantized)
	havePlain := fileExists(plain)
	switch {
	case haveQuantized && havePlain:
		logger.Warn("both model artifacts present; loading the quantized one",
			zap.String("dir", dir))
		return quantized, nil
	case haveQuantized:
		return quantized, nil
	case havePlain:
		return plain, nil
	}
	return "", &PersistenceError{
		Path:   dir,
		Reason: fmt.Sprintf("no %s%s or %s%s artifact in directory", artifactStem, extPlain, artifactStem, extQuantized),
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
