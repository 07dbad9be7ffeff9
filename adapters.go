package fasttextlite

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/sandypreiss/fasttext-lite/clients/fasttextcli"
)

// EnvBinary names the environment variable consulted when no binary path
// is configured.
const EnvBinary = "FASTTEXT_BINARY"

// CLIEngine adapts the fasttext command-line client to the Engine
// interface. Training and prediction shell out to the binary; model state
// between calls lives in temp files the adapter owns.
type CLIEngine struct {
	client interface {
		Supervised(ctx context.Context, corpusPath, outputStem string, args fasttextcli.TrainArgs) error
		PredictProb(ctx context.Context, modelPath string, texts []string, k int) ([][]string, [][]float64, error)
		Quantize(ctx context.Context, outputStem string) error
	}
}

// NewCLIEngine creates the bundled engine adapter. binary may be nil or
// empty to fall back to $FASTTEXT_BINARY and then a $PATH lookup.
func NewCLIEngine(binary *string) (*CLIEngine, error) {
	path, err := resolveBinary(binary)
	if err != nil {
		return nil, err
	}
	return &CLIEngine{client: fasttextcli.NewClient(path)}, nil
}

// resolveBinary resolves the fasttext binary path from the argument, the
// environment, or $PATH, in that order.
func resolveBinary(binary *string) (string, error) {
	if binary != nil && *binary != "" {
		return *binary, nil
	}
	if env := os.Getenv(EnvBinary); env != "" {
		return env, nil
	}
	path, err := exec.LookPath("fasttext")
	if err != nil {
		return "", fmt.Errorf("fasttext binary not found: set %s or install fasttext on PATH: %w", EnvBinary, err)
	}
	return path, nil
}

// Train implements the Engine interface
func (e *CLIEngine) Train(ctx context.Context, corpusPath string, hp Hyperparameters) (Model, error) {
	workdir, err := os.MkdirTemp("", "fasttext-model-")
	if err != nil {
		return nil, fmt.Errorf("failed to create model directory: %w", err)
	}

	stem := filepath.Join(workdir, "model")
	if err := e.client.Supervised(ctx, corpusPath, stem, cliTrainArgs(hp)); err != nil {
		os.RemoveAll(workdir)
		return nil, fmt.Errorf("fasttext training failed: %w", err)
	}

	return &cliModel{
		client:  e.client,
		path:    stem + extPlain,
		workdir: workdir,
	}, nil
}

// Load implements the Engine interface. The artifact's own header decides
// whether the model is quantized, regardless of the file extension.
func (e *CLIEngine) Load(path string) (Model, error) {
	info, err := fasttextcli.ReadArtifactInfo(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}
	return &cliModel{
		client:    e.client,
		path:      path,
		quantized: info.Quantized,
	}, nil
}

func cliTrainArgs(hp Hyperparameters) fasttextcli.TrainArgs {
	return fasttextcli.TrainArgs{
		LR:            hp.LR,
		Dim:           hp.Dim,
		WS:            hp.WS,
		Epoch:         hp.Epoch,
		MinCount:      hp.MinCount,
		MinCountLabel: hp.MinCountLabel,
		Minn:          hp.Minn,
		Maxn:          hp.Maxn,
		Neg:           hp.Neg,
		WordNgrams:    hp.WordNgrams,
		Loss:          string(hp.Loss),
		Bucket:        hp.Bucket,
		LRUpdateRate:  hp.LRUpdateRate,
		T:             hp.T,
		Label:         hp.Prefix,
		Verbose:       hp.Verbose,
		Thread:        hp.Thread,
	}
}

// cliModel is a fitted model backed by an artifact file on disk.
type cliModel struct {
	client interface {
		Supervised(ctx context.Context, corpusPath, outputStem string, args fasttextcli.TrainArgs) error
		PredictProb(ctx context.Context, modelPath string, texts []string, k int) ([][]string, [][]float64, error)
		Quantize(ctx context.Context, outputStem string) error
	}
	path      string
	workdir   string // temp dir owned by this model, empty when loaded from a save
	quantized bool
}

// Predict implements the Model interface
func (m *cliModel) Predict(ctx context.Context, texts []string, k int) ([][]string, [][]float64, error) {
	return m.client.PredictProb(ctx, m.path, texts, k)
}

// SaveTo implements the Model interface
func (m *cliModel) SaveTo(path string) error {
	return copyFile(m.path, path)
}

// Quantize implements the Model interface. The current artifact is copied
// into a fresh temp dir and compressed there, so quantizing a model loaded
// from a saved directory never writes next to the original files.
func (m *cliModel) Quantize(ctx context.Context) error {
	if m.quantized {
		return fmt.Errorf("model is already quantized")
	}

	workdir, err := os.MkdirTemp("", "fasttext-quantize-")
	if err != nil {
		return fmt.Errorf("failed to create quantization directory: %w", err)
	}

	stem := filepath.Join(workdir, "model")
	if err := copyFile(m.path, stem+extPlain); err != nil {
		os.RemoveAll(workdir)
		return err
	}
	if err := m.client.Quantize(ctx, stem); err != nil {
		os.RemoveAll(workdir)
		return fmt.Errorf("fasttext quantization failed: %w", err)
	}

	m.Close()
	m.path = stem + extQuantized
	m.workdir = workdir
	m.quantized = true
	return nil
}

// IsQuantized implements the Model interface
func (m *cliModel) IsQuantized() bool {
	return m.quantized
}

// Close removes the model's temp files. The classifier never calls this;
// it exists for callers that manage CLIEngine models directly.
func (m *cliModel) Close() error {
	if m.workdir == "" {
		return nil
	}
	err := os.RemoveAll(m.workdir)
	m.workdir = ""
	return err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return out.Close()
}
