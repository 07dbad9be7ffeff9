// Package fasttextcli shells out to the fasttext command-line binary. It
// is a thin process wrapper: argument construction, the stdin prediction
// protocol and artifact header checks live here, while estimator semantics
// stay with the caller.
package fasttextcli

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Client invokes one fasttext binary.
type Client struct {
	binary string
}

// NewClient creates a client for the binary at the given path.
func NewClient(binary string) *Client {
	return &Client{binary: binary}
}

// TrainArgs carries the supervised-training flags in the binary's own
// vocabulary. Zero values are passed through as-is; the caller decides the
// defaults.
type TrainArgs struct {
	LR            float64
	Dim           int
	WS            int
	Epoch         int
	MinCount      int
	MinCountLabel int
	Minn          int
	Maxn          int
	Neg           int
	WordNgrams    int
	Loss          string
	Bucket        int
	LRUpdateRate  int
	T             float64
	Label         string
	Verbose       int
	Thread        int
}

func (a TrainArgs) flags() []string {
	return []string{
		"-lr", strconv.FormatFloat(a.LR, 'g', -1, 64),
		"-dim", strconv.Itoa(a.Dim),
		"-ws", strconv.Itoa(a.WS),
		"-epoch", strconv.Itoa(a.Epoch),
		"-minCount", strconv.Itoa(a.MinCount),
		"-minCountLabel", strconv.Itoa(a.MinCountLabel),
		"-minn", strconv.Itoa(a.Minn),
		"-maxn", strconv.Itoa(a.Maxn),
		"-neg", strconv.Itoa(a.Neg),
		"-wordNgrams", strconv.Itoa(a.WordNgrams),
		"-loss", a.Loss,
		"-bucket", strconv.Itoa(a.Bucket),
		"-lrUpdateRate", strconv.Itoa(a.LRUpdateRate),
		"-t", strconv.FormatFloat(a.T, 'g', -1, 64),
		"-label", a.Label,
		"-verbose", strconv.Itoa(a.Verbose),
		"-thread", strconv.Itoa(a.Thread),
	}
}

// Supervised trains a model over the corpus file and writes
// <outputStem>.bin.
func (c *Client) Supervised(ctx context.Context, corpusPath, outputStem string, args TrainArgs) error {
	cmdArgs := append([]string{"supervised", "-input", corpusPath, "-output", outputStem}, args.flags()...)
	return c.run(ctx, nil, io.Discard, cmdArgs...)
}

// PredictProb returns the top-k labels and probabilities for each text.
// Texts stream over stdin one per line, so they must not contain newlines.
func (c *Client) PredictProb(ctx context.Context, modelPath string, texts []string, k int) ([][]string, [][]float64, error) {
	var in bytes.Buffer
	for _, text := range texts {
		in.WriteString(text)
		in.WriteByte('\n')
	}

	var out bytes.Buffer
	if err := c.run(ctx, &in, &out, "predict-prob", modelPath, "-", strconv.Itoa(k)); err != nil {
		return nil, nil, err
	}
	return parsePredictions(&out, len(texts))
}

// Quantize compresses <outputStem>.bin into <outputStem>.ftz.
func (c *Client) Quantize(ctx context.Context, outputStem string) error {
	return c.run(ctx, nil, io.Discard, "quantize", "-output", outputStem)
}

// run executes one fasttext invocation, folding stderr into the returned
// error on failure.
func (c *Client) run(ctx context.Context, stdin io.Reader, stdout io.Writer, args ...string) error {
	cmd := exec.CommandContext(ctx, c.binary, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("%s %s: %w", filepath.Base(c.binary), args[0], err)
		}
		return fmt.Errorf("%s %s: %w: %s", filepath.Base(c.binary), args[0], err, msg)
	}
	return nil
}

// parsePredictions reads predict-prob output: one line per input text,
// each holding alternating label and probability fields. A blank line
// means the model predicted nothing for that text.
func parsePredictions(r io.Reader, wantRows int) ([][]string, [][]float64, error) {
	labels := make([][]string, 0, wantRows)
	probs := make([][]float64, 0, wantRows)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields)%2 != 0 {
			return nil, nil, fmt.Errorf("malformed prediction line %d: odd field count %d", len(labels)+1, len(fields))
		}

		rowLabels := make([]string, 0, len(fields)/2)
		rowProbs := make([]float64, 0, len(fields)/2)
		for i := 0; i < len(fields); i += 2 {
			p, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil {
				return nil, nil, fmt.Errorf("malformed probability %q on prediction line %d: %w", fields[i+1], len(labels)+1, err)
			}
			rowLabels = append(rowLabels, fields[i])
			rowProbs = append(rowProbs, p)
		}
		labels = append(labels, rowLabels)
		probs = append(probs, rowProbs)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read predictions: %w", err)
	}

	if len(labels) != wantRows {
		return nil, nil, fmt.Errorf("got %d prediction lines for %d texts", len(labels), wantRows)
	}
	return labels, probs, nil
}
