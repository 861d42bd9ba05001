package classifier

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"time"

	"github.com/google/renameio"
)

// Artifact is the persisted output of a training run. Exactly one of the
// strategy payloads is authoritative, selected by Mode: knn and direct-euclid
// rebuild from Samples, svm carries its fitted weights.
type Artifact struct {
	Mode      Mode
	Samples   []Sample
	SVM       *SVMModel
	TrainedAt time.Time
}

// Build instantiates the classifier the artifact describes.
func (a *Artifact) Build(confidence float64) (Classifier, error) {
	switch a.Mode {
	case ModeKNN:
		return TrainKNN(a.Samples, 0, confidence)
	case ModeSVM:
		return NewSVMFromModel(a.SVM, confidence)
	case ModeDirectEuclid:
		return NewDirectEuclid(a.Samples, confidence)
	}
	return nil, fmt.Errorf("artifact has unknown mode %q", a.Mode)
}

// SaveArtifact persists the artifact with a write-new-then-rename swap so a
// crash mid-write never leaves a truncated artifact behind.
func SaveArtifact(path string, a *Artifact) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(a); err != nil {
		return fmt.Errorf("failed to encode artifact: %w", err)
	}

	if err := renameio.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}

	return nil
}

// LoadArtifact reads a previously saved artifact. A missing file surfaces as
// ErrNoArtifact so callers can distinguish "never trained" from corruption.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNoArtifact
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	var a Artifact
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&a); err != nil {
		return nil, fmt.Errorf("failed to decode artifact: %w", err)
	}

	return &a, nil
}
