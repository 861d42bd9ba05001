// Package classifier implements the identity matching strategies used to turn
// face embeddings into student identities: a k-nearest-neighbor vote, a linear
// SVM with calibrated probabilities, and a raw distance comparison for
// populations too small to train on.
package classifier

import "errors"

// Mode selects which classification strategy is authoritative.
type Mode string

const (
	ModeKNN          Mode = "knn"
	ModeSVM          Mode = "svm"
	ModeDirectEuclid Mode = "direct-euclid"
)

// Unknown is returned for queries below the confidence threshold. It is never
// a valid student identity.
const Unknown = "unknown"

// ErrNoArtifact is returned when a prediction is attempted before any
// classifier artifact has been trained or loaded.
var ErrNoArtifact = errors.New("no classifier artifact available")

// Sample is one labeled training embedding.
type Sample struct {
	ImagePath string
	Identity  string
	Embedding []float32
}

// Classifier predicts an identity (or Unknown) for each query embedding.
// Implementations apply their own confidence semantics; ties at the decision
// boundary always resolve to Unknown.
type Classifier interface {
	Mode() Mode
	Predict(embeddings [][]float32) []string
}

// ParseMode validates a mode string from configuration.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeKNN, ModeSVM, ModeDirectEuclid:
		return Mode(s), nil
	}
	return "", errors.New("unknown recognition mode: " + s)
}

// identities returns the set of distinct identities in a sample list.
func identities(samples []Sample) map[string]struct{} {
	ids := make(map[string]struct{}, len(samples))
	for _, s := range samples {
		ids[s.Identity] = struct{}{}
	}
	return ids
}
