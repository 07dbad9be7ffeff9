package fasttextlite

import "context"

// Engine is the boundary to the external supervised trainer. The bundled
// CLI adapter implements it over the fasttext binary; tests substitute an
// in-memory fake.
type Engine interface {
	// Train runs supervised training over the line-oriented corpus file at
	// corpusPath and returns a handle to the fitted model.
	Train(ctx context.Context, corpusPath string, hp Hyperparameters) (Model, error)

	// Load reopens a model artifact previously written by Model.SaveTo.
	Load(path string) (Model, error)
}

// Model is a fitted engine artifact. Labels returned by Predict carry the
// training prefix and the engine-safe spelling; each row is sorted by
// descending probability with an engine-internal tie-break, and may hold
// fewer entries than requested.
type Model interface {
	Predict(ctx context.Context, texts []string, k int) (labels [][]string, probs [][]float64, err error)
	SaveTo(path string) error
	Quantize(ctx context.Context) error
	IsQuantized() bool
}
