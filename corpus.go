package fasttextlite

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/sandypreiss/fasttext-lite/internal/labelmap"
)

// corpus.go writes the transient training corpus the engine consumes. The
// format is line-oriented: zero or more prefixed label tokens, a space,
// then the example text.

var newlineFlattener = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// normalizeText flattens text onto a single line. Both the corpus and the
// engine's prediction input treat newlines as record separators, so
// embedded line breaks become spaces.
func normalizeText(text string) string {
	if !strings.ContainsAny(text, "\r\n") {
		return text
	}
	return newlineFlattener.Replace(text)
}

// corpusWriter streams records into a uniquely named file under the system
// temp directory. The caller removes the file once training finishes.
type corpusWriter struct {
	file *os.File
	buf  *bufio.Writer
}

func newCorpusWriter() (*corpusWriter, error) {
	path := filepath.Join(os.TempDir(), "fasttext-corpus-"+uuid.New().String()+".txt")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to create training corpus: %w", err)
	}
	return &corpusWriter{file: file, buf: bufio.NewWriter(file)}, nil
}

// writeRecord appends one training record. labelSection is the prefixed
// label token for single-label training, or the space-joined (possibly
// empty) token list for multi-label training.
func (w *corpusWriter) writeRecord(labelSection, text string) error {
	if _, err := w.buf.WriteString(labelSection); err != nil {
		return err
	}
	if err := w.buf.WriteByte(' '); err != nil {
		return err
	}
	if _, err := w.buf.WriteString(normalizeText(text)); err != nil {
		return err
	}
	return w.buf.WriteByte('\n')
}

// finish flushes and closes the corpus, returning its path.
func (w *corpusWriter) finish() (string, error) {
	if err := w.buf.Flush(); err != nil {
		w.discard()
		return "", fmt.Errorf("failed to write training corpus: %w", err)
	}
	if err := w.file.Close(); err != nil {
		os.Remove(w.file.Name())
		return "", fmt.Errorf("failed to write training corpus: %w", err)
	}
	return w.file.Name(), nil
}

// discard closes and removes a partially written corpus.
func (w *corpusWriter) discard() {
	w.file.Close()
	os.Remove(w.file.Name())
}

// buildSingleLabelCorpus writes one record per example, each carrying
// exactly one label token, and returns the corpus path.
func buildSingleLabelCorpus(texts, labels []string, reg *labelmap.Registry, prefix string) (string, error) {
	w, err := newCorpusWriter()
	if err != nil {
		return "", err
	}
	for i, text := range texts {
		adjusted, ok := reg.Adjusted(labels[i])
		if !ok {
			w.discard()
			return "", &ConfigurationError{Reason: fmt.Sprintf("label %q at index %d is not in the label registry", labels[i], i)}
		}
		if err := w.writeRecord(prefix+adjusted, text); err != nil {
			w.discard()
			return "", fmt.Errorf("failed to write training corpus: %w", err)
		}
	}
	return w.finish()
}

// buildMultiLabelCorpus writes one record per example from indicator rows.
// Column j of each row corresponds to the registry's canonical position j;
// rows may mark any number of columns, including none.
func buildMultiLabelCorpus(texts []string, rows [][]int, reg *labelmap.Registry, prefix string) (string, error) {
	w, err := newCorpusWriter()
	if err != nil {
		return "", err
	}
	var section strings.Builder
	for i, text := range texts {
		if len(rows[i]) != reg.Len() {
			w.discard()
			return "", &ConfigurationError{Reason: fmt.Sprintf("indicator row %d has %d columns, want %d", i, len(rows[i]), reg.Len())}
		}
		section.Reset()
		for j, v := range rows[i] {
			switch v {
			case 0:
			case 1:
				if section.Len() > 0 {
					section.WriteByte(' ')
				}
				adjusted, _ := reg.Adjusted(reg.At(j))
				section.WriteString(prefix + adjusted)
			default:
				w.discard()
				return "", &ConfigurationError{Reason: fmt.Sprintf("indicator row %d column %d holds %d, want 0 or 1", i, j, v)}
			}
		}
		if err := w.writeRecord(section.String(), text); err != nil {
			w.discard()
			return "", fmt.Errorf("failed to write training corpus: %w", err)
		}
	}
	return w.finish()
}
