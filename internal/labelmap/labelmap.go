// Package labelmap owns the bidirectional mapping between user-facing class
// labels and the engine-safe spellings used in training corpora and engine
// output.
package labelmap

import (
	"fmt"
	"sort"
	"strings"
)

// Pair is one registry entry in its persisted form.
type Pair struct {
	Original string `json:"original"`
	Adjusted string `json:"adjusted"`
}

// Registry holds the canonical class order and the adjustment maps in both
// directions. Instances are immutable after construction, so concurrent
// reads need no locking.
type Registry struct {
	labels   []string          // canonical order: sorted, duplicate-free
	adjusted map[string]string // original -> engine spelling
	original map[string]string // engine spelling -> original
}

// Adjust returns the engine-safe spelling of a label: every space becomes
// an underscore. Distinct originals can collide after adjustment; Build
// rejects such label sets.
func Adjust(label string) string {
	return strings.ReplaceAll(label, " ", "_")
}

// Build constructs a Registry from the labels observed in training data.
// The canonical order is the sorted set of distinct labels, so any
// permutation or multiplicity of the same label set yields the same
// Registry.
func Build(labels []string) (*Registry, error) {
	seen := make(map[string]struct{}, len(labels))
	unique := make([]string, 0, len(labels))
	for _, label := range labels {
		if _, ok := seen[label]; ok {
			continue
		}
		if err := checkLabel(label); err != nil {
			return nil, err
		}
		seen[label] = struct{}{}
		unique = append(unique, label)
	}
	sort.Strings(unique)

	r := &Registry{
		labels:   unique,
		adjusted: make(map[string]string, len(unique)),
		original: make(map[string]string, len(unique)),
	}
	for _, label := range unique {
		adj := Adjust(label)
		if prev, ok := r.original[adj]; ok {
			return nil, fmt.Errorf("labels %q and %q both adjust to %q", prev, label, adj)
		}
		r.adjusted[label] = adj
		r.original[adj] = label
	}
	return r, nil
}

// FromPairs rebuilds a Registry from a persisted label record. The record
// is the source of truth: adjusted spellings are taken verbatim rather
// than recomputed, and the entries must already be in canonical order.
func FromPairs(pairs []Pair) (*Registry, error) {
	r := &Registry{
		labels:   make([]string, 0, len(pairs)),
		adjusted: make(map[string]string, len(pairs)),
		original: make(map[string]string, len(pairs)),
	}
	for i, p := range pairs {
		if err := checkLabel(p.Original); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if p.Adjusted == "" {
			return nil, fmt.Errorf("entry %d: adjusted label is empty", i)
		}
		if i > 0 && pairs[i-1].Original >= p.Original {
			return nil, fmt.Errorf("entry %d: labels are not in sorted order", i)
		}
		if prev, ok := r.original[p.Adjusted]; ok {
			return nil, fmt.Errorf("labels %q and %q both map to %q", prev, p.Original, p.Adjusted)
		}
		r.labels = append(r.labels, p.Original)
		r.adjusted[p.Original] = p.Adjusted
		r.original[p.Adjusted] = p.Original
	}
	return r, nil
}

func checkLabel(label string) error {
	if label == "" {
		return fmt.Errorf("label is empty")
	}
	if strings.ContainsAny(label, "\t\n\r\v\f") {
		return fmt.Errorf("label %q contains whitespace other than spaces", label)
	}
	return nil
}

// Labels returns the canonical class order as a fresh slice.
func (r *Registry) Labels() []string {
	labels := make([]string, len(r.labels))
	copy(labels, r.labels)
	return labels
}

// Len returns the number of classes.
func (r *Registry) Len() int {
	return len(r.labels)
}

// At returns the class label at canonical position i.
func (r *Registry) At(i int) string {
	return r.labels[i]
}

// Adjusted returns the engine spelling for an original label.
func (r *Registry) Adjusted(label string) (string, bool) {
	adj, ok := r.adjusted[label]
	return adj, ok
}

// Original returns the user-facing label for an engine spelling.
func (r *Registry) Original(adjusted string) (string, bool) {
	label, ok := r.original[adjusted]
	return label, ok
}

// Pairs returns the persisted form of the registry, in canonical order.
func (r *Registry) Pairs() []Pair {
	pairs := make([]Pair, len(r.labels))
	for i, label := range r.labels {
		pairs[i] = Pair{Original: label, Adjusted: r.adjusted[label]}
	}
	return pairs
}
