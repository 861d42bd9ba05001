// Package embedcache caches extracted face embeddings keyed by training image
// path, so a retrain only pays extraction cost for images it has not seen.
package embedcache

import (
	"context"
	"errors"

	"github.com/fuskar/attendance/internal/classifier"
)

// ErrNoFace marks a labeled training image with no detectable face. Callers
// skip the image rather than failing the whole retrain.
var ErrNoFace = errors.New("no detectable face in image")

// ErrMultipleFaces marks a training image where the detector found more than
// one face, making the label ambiguous. Skipped like ErrNoFace.
var ErrMultipleFaces = errors.New("multiple faces in training image")

// Extractor computes the face embedding for a training image on cache miss.
type Extractor interface {
	ExtractFace(ctx context.Context, imagePath string) ([]float32, error)
}

// Store is the embedding cache contract. Entries are immutable once written
// and replaced wholesale when the same path is computed again.
type Store interface {
	// GetOrCompute returns the cached embedding for imagePath, extracting and
	// caching it on miss. Extraction failures propagate unwrapped so callers
	// can recognize ErrNoFace / ErrMultipleFaces.
	GetOrCompute(ctx context.Context, imagePath, identity string) ([]float32, error)
	// Invalidate removes the entry for a deleted image and persists the
	// removal before returning, so the embedding cannot resurface in a
	// subsequent retrain.
	Invalidate(ctx context.Context, imagePath string) error
	// Samples lists every cached entry as a training sample.
	Samples(ctx context.Context) ([]classifier.Sample, error)
	// Flush persists the cache. Backends with synchronous writes may no-op.
	Flush(ctx context.Context) error
}
