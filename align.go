package fasttextlite

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/sandypreiss/fasttext-lite/internal/labelmap"
)

// align.go reorders engine predictions, which arrive sorted by descending
// probability with an engine-internal tie-break, into the canonical class
// order. Prediction code never assumes anything about the engine's row
// order beyond "labels and probabilities are parallel".

// stripPrefix removes the label prefix from one engine token.
func stripPrefix(token, prefix string, textIndex int) (string, error) {
	if !strings.HasPrefix(token, prefix) {
		return "", &AlignmentError{
			TextIndex: textIndex,
			Label:     token,
			Reason:    fmt.Sprintf("missing the %q prefix", prefix),
		}
	}
	return token[len(prefix):], nil
}

// alignRow writes one engine prediction row into dst at the canonical
// column positions. Classes the engine omitted keep probability zero;
// labels that do not map back onto the registry fail the whole call.
func alignRow(dst *mat.Dense, textIndex int, labels []string, probs []float64, classes []string, reg *labelmap.Registry, prefix string) error {
	if len(labels) != len(probs) {
		return &AlignmentError{
			TextIndex: textIndex,
			Reason:    fmt.Sprintf("engine returned %d labels but %d probabilities", len(labels), len(probs)),
		}
	}

	position := make(map[string]int, len(labels))
	for i, token := range labels {
		adjusted, err := stripPrefix(token, prefix, textIndex)
		if err != nil {
			return err
		}
		if _, ok := reg.Original(adjusted); !ok {
			return &AlignmentError{
				TextIndex: textIndex,
				Label:     adjusted,
				Reason:    "not in the label registry",
			}
		}
		// first occurrence wins: rows are in descending probability order
		if _, dup := position[adjusted]; !dup {
			position[adjusted] = i
		}
	}

	for col, label := range classes {
		adjusted, _ := reg.Adjusted(label)
		if i, ok := position[adjusted]; ok {
			dst.Set(textIndex, col, probs[i])
		}
	}
	return nil
}

// originalTopLabel maps the engine's best label for one text back to the
// user-facing spelling.
func originalTopLabel(labels []string, textIndex int, reg *labelmap.Registry, prefix string) (string, error) {
	if len(labels) == 0 {
		return "", &AlignmentError{TextIndex: textIndex, Reason: "engine returned no label"}
	}
	adjusted, err := stripPrefix(labels[0], prefix, textIndex)
	if err != nil {
		return "", err
	}
	original, ok := reg.Original(adjusted)
	if !ok {
		return "", &AlignmentError{
			TextIndex: textIndex,
			Label:     adjusted,
			Reason:    "not in the label registry",
		}
	}
	return original, nil
}
