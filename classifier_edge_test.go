package fasttextlite

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

// TestHyperparameterValidation tests that invalid hyperparameters are rejected
func TestHyperparameterValidation(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(hp *Hyperparameters)
		errorContains string
	}{
		{
			name:   "defaults are valid",
			mutate: func(hp *Hyperparameters) {},
		},
		{
			name:   "zero subword lengths are valid",
			mutate: func(hp *Hyperparameters) { hp.Minn = 0; hp.Maxn = 0 },
		},
		{
			name:   "zero word ngrams are valid",
			mutate: func(hp *Hyperparameters) { hp.WordNgrams = 0 },
		},
		{
			name:   "zero sampling threshold is valid",
			mutate: func(hp *Hyperparameters) { hp.T = 0 },
		},
		{
			name:          "unknown loss",
			mutate:        func(hp *Hyperparameters) { hp.Loss = "hinge" },
			errorContains: "unknown loss",
		},
		{
			name:          "empty prefix",
			mutate:        func(hp *Hyperparameters) { hp.Prefix = "" },
			errorContains: "label prefix must not be empty",
		},
		{
			name:          "prefix with space",
			mutate:        func(hp *Hyperparameters) { hp.Prefix = "__label __" },
			errorContains: "whitespace",
		},
		{
			name:          "prefix with tab",
			mutate:        func(hp *Hyperparameters) { hp.Prefix = "__\tlabel__" },
			errorContains: "whitespace",
		},
		{
			name:          "prefix with newline",
			mutate:        func(hp *Hyperparameters) { hp.Prefix = "__label__\n" },
			errorContains: "whitespace",
		},
		{
			name:          "zero learning rate",
			mutate:        func(hp *Hyperparameters) { hp.LR = 0 },
			errorContains: "lr must be positive",
		},
		{
			name:          "negative learning rate",
			mutate:        func(hp *Hyperparameters) { hp.LR = -0.5 },
			errorContains: "lr must be positive",
		},
		{
			name:          "zero dimension",
			mutate:        func(hp *Hyperparameters) { hp.Dim = 0 },
			errorContains: "dim must be positive",
		},
		{
			name:          "zero window size",
			mutate:        func(hp *Hyperparameters) { hp.WS = 0 },
			errorContains: "ws must be positive",
		},
		{
			name:          "zero epochs",
			mutate:        func(hp *Hyperparameters) { hp.Epoch = 0 },
			errorContains: "epoch must be positive",
		},
		{
			name:          "zero threads",
			mutate:        func(hp *Hyperparameters) { hp.Thread = 0 },
			errorContains: "thread must be positive",
		},
		{
			name:          "negative min count",
			mutate:        func(hp *Hyperparameters) { hp.MinCount = -1 },
			errorContains: "minCount",
		},
		{
			name:          "negative min label count",
			mutate:        func(hp *Hyperparameters) { hp.MinCountLabel = -1 },
			errorContains: "minCountLabel",
		},
		{
			name:          "negative subword length",
			mutate:        func(hp *Hyperparameters) { hp.Minn = -2 },
			errorContains: "minn",
		},
		{
			name:          "negative negatives",
			mutate:        func(hp *Hyperparameters) { hp.Neg = -1 },
			errorContains: "neg",
		},
		{
			name:          "negative bucket count",
			mutate:        func(hp *Hyperparameters) { hp.Bucket = -1 },
			errorContains: "bucket",
		},
		{
			name:          "negative sampling threshold",
			mutate:        func(hp *Hyperparameters) { hp.T = -0.1 },
			errorContains: "t must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hp := DefaultHyperparameters()
			tt.mutate(&hp)

			err := hp.validate()
			if tt.errorContains == "" {
				if err != nil {
					t.Errorf("validate() unexpected error = %v", err)
				}
				return
			}

			if err == nil {
				t.Fatalf("validate() error = nil, want error containing %q", tt.errorContains)
			}
			if !strings.Contains(err.Error(), tt.errorContains) {
				t.Errorf("validate() error = %v, want error containing %q", err, tt.errorContains)
			}

			var confErr *ConfigurationError
			if !errors.As(err, &confErr) {
				t.Errorf("validate() error type = %T, want *ConfigurationError", err)
			}
		})
	}
}

// TestResolveHyperparameters tests that only the loss and prefix are
// defaulted during resolution; everything else passes through for
// validation to judge
func TestResolveHyperparameters(t *testing.T) {
	t.Run("nil gives full defaults", func(t *testing.T) {
		cfg := Config{}
		if got := cfg.resolveHyperparameters(); got != DefaultHyperparameters() {
			t.Errorf("Expected defaults, got %+v", got)
		}
	})

	t.Run("empty loss and prefix are filled", func(t *testing.T) {
		hp := DefaultHyperparameters()
		hp.Loss = ""
		hp.Prefix = ""

		cfg := Config{Hyperparameters: &hp}
		got := cfg.resolveHyperparameters()
		if got.Loss != LossSoftmax {
			t.Errorf("Expected loss %q, got %q", LossSoftmax, got.Loss)
		}
		if got.Prefix != DefaultPrefix {
			t.Errorf("Expected prefix %q, got %q", DefaultPrefix, got.Prefix)
		}
	})

	t.Run("caller struct is not mutated", func(t *testing.T) {
		hp := Hyperparameters{}
		cfg := Config{Hyperparameters: &hp}
		cfg.resolveHyperparameters()

		if hp.Loss != "" || hp.Prefix != "" {
			t.Errorf("Expected caller struct untouched, got %+v", hp)
		}
	})

	t.Run("invalid fields pass through", func(t *testing.T) {
		hp := Hyperparameters{Loss: LossSoftmax, Prefix: DefaultPrefix}

		cfg := Config{Hyperparameters: &hp}
		got := cfg.resolveHyperparameters()
		if got.LR != 0 {
			t.Errorf("Expected zero lr to pass through, got %v", got.LR)
		}
		if err := got.validate(); err == nil {
			t.Error("Expected resolved zero-value fields to fail validation")
		}
	})
}

// TestCacheKey tests that prediction cache keys cannot collide across
// different k values or texts
func TestCacheKey(t *testing.T) {
	tests := []struct {
		name  string
		k1    int
		text1 string
		k2    int
		text2 string
	}{
		{"different k", 1, "text", 2, "text"},
		{"different text", 1, "a", 1, "b"},
		{"digit prefix in text", 1, "1text", 11, "text"},
		{"empty text", 1, "", 11, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if cacheKey(tt.k1, tt.text1) == cacheKey(tt.k2, tt.text2) {
				t.Errorf("Expected distinct keys for k=%d %q and k=%d %q", tt.k1, tt.text1, tt.k2, tt.text2)
			}
		})
	}
}

// TestStripPrefix tests label prefix removal from engine tokens
func TestStripPrefix(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		prefix  string
		want    string
		wantErr bool
	}{
		{"standard prefix", "__label__cat", "__label__", "cat", false},
		{"custom prefix", "lbl:cat", "lbl:", "cat", false},
		{"prefix only", "__label__", "__label__", "", false},
		{"missing prefix", "cat", "__label__", "", true},
		{"partial prefix", "__labelcat", "__label__", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := stripPrefix(tt.token, tt.prefix, 3)

			if tt.wantErr {
				if err == nil {
					t.Fatal("stripPrefix() error = nil, want error")
				}
				var alignErr *AlignmentError
				if !errors.As(err, &alignErr) {
					t.Fatalf("stripPrefix() error type = %T, want *AlignmentError", err)
				}
				if alignErr.TextIndex != 3 {
					t.Errorf("Expected TextIndex 3, got %d", alignErr.TextIndex)
				}
				if alignErr.Label != tt.token {
					t.Errorf("Expected Label %q, got %q", tt.token, alignErr.Label)
				}
				return
			}

			if err != nil {
				t.Fatalf("stripPrefix() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestLossValid(t *testing.T) {
	for _, loss := range []Loss{LossNegativeSampling, LossHierarchicalSoftmax, LossSoftmax, LossOneVsAll} {
		if !loss.valid() {
			t.Errorf("Expected loss %q to be valid", loss)
		}
	}

	for _, loss := range []Loss{"", "hinge", "Softmax"} {
		if loss.valid() {
			t.Errorf("Expected loss %q to be invalid", loss)
		}
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateUnfitted, "unfitted"},
		{StateFitted, "fitted"},
		{StateQuantized, "quantized"},
		{State(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("Expected State(%d) to print %q, got %q", tt.state, tt.want, got)
		}
	}
}

// TestFindArtifact tests model artifact discovery inside a save directory
func TestFindArtifact(t *testing.T) {
	logger := zap.NewNop()

	write := func(t *testing.T, dir, name string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}

	t.Run("plain only", func(t *testing.T) {
		dir := t.TempDir()
		write(t, dir, "fasttext.bin")

		got, err := findArtifact(dir, logger)
		if err != nil {
			t.Fatalf("findArtifact() unexpected error = %v", err)
		}
		if got != filepath.Join(dir, "fasttext.bin") {
			t.Errorf("Expected the plain artifact, got %s", got)
		}
	})

	t.Run("quantized only", func(t *testing.T) {
		dir := t.TempDir()
		write(t, dir, "fasttext.ftz")

		got, err := findArtifact(dir, logger)
		if err != nil {
			t.Fatalf("findArtifact() unexpected error = %v", err)
		}
		if got != filepath.Join(dir, "fasttext.ftz") {
			t.Errorf("Expected the quantized artifact, got %s", got)
		}
	})

	t.Run("both prefer quantized", func(t *testing.T) {
		dir := t.TempDir()
		write(t, dir, "fasttext.bin")
		write(t, dir, "fasttext.ftz")

		got, err := findArtifact(dir, logger)
		if err != nil {
			t.Fatalf("findArtifact() unexpected error = %v", err)
		}
		if got != filepath.Join(dir, "fasttext.ftz") {
			t.Errorf("Expected the quantized artifact, got %s", got)
		}
	})

	t.Run("neither", func(t *testing.T) {
		_, err := findArtifact(t.TempDir(), logger)
		if err == nil {
			t.Fatal("findArtifact() error = nil, want error")
		}
		var persistErr *PersistenceError
		if !errors.As(err, &persistErr) {
			t.Errorf("findArtifact() error type = %T, want *PersistenceError", err)
		}
	})

	t.Run("artifact name taken by a directory", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.Mkdir(filepath.Join(dir, "fasttext.bin"), 0o755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}

		if _, err := findArtifact(dir, logger); err == nil {
			t.Error("Expected error when the artifact name is a directory")
		}
	})
}

// TestCliTrainArgs tests the hyperparameter to command-line flag mapping
func TestCliTrainArgs(t *testing.T) {
	hp := DefaultHyperparameters()
	hp.Epoch = 7
	hp.Prefix = "lbl:"
	hp.Loss = LossHierarchicalSoftmax

	args := cliTrainArgs(hp)

	if args.Epoch != 7 {
		t.Errorf("Expected epoch 7, got %d", args.Epoch)
	}
	if args.Label != "lbl:" {
		t.Errorf("Expected label prefix lbl:, got %s", args.Label)
	}
	if args.Loss != "hs" {
		t.Errorf("Expected loss hs, got %s", args.Loss)
	}
	if args.LR != hp.LR {
		t.Errorf("Expected lr %v, got %v", hp.LR, args.LR)
	}
	if args.Bucket != hp.Bucket {
		t.Errorf("Expected bucket %d, got %d", hp.Bucket, args.Bucket)
	}
	if args.T != hp.T {
		t.Errorf("Expected t %v, got %v", hp.T, args.T)
	}
	if args.Thread != hp.Thread {
		t.Errorf("Expected thread %d, got %d", hp.Thread, args.Thread)
	}
}
