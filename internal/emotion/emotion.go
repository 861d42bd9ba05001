// Package emotion selects which emotion labels to record for a face from the
// raw per-label scores the vision service returns.
package emotion

import (
	"context"

	"github.com/fuskar/attendance/internal/vision"
)

// Scorer produces per-label emotion scores for a cropped face image.
type Scorer interface {
	EmotionScores(ctx context.Context, faceCrop []byte) ([]vision.LabelScore, error)
}

// Detector applies the adjacency rule to raw scores: every label whose score
// lies within the adjacency threshold of the maximum is reported, so a face
// split between, say, surprise and fear yields both. Zero scores never
// qualify, even when every label scored zero.
type Detector struct {
	scorer    Scorer
	labels    map[string]struct{}
	adjacency float64
}

// NewDetector builds a detector restricted to the configured label set.
// Labels the model emits outside this set are dropped.
func NewDetector(scorer Scorer, labels []string, adjacency float64) *Detector {
	known := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		known[l] = struct{}{}
	}
	return &Detector{scorer: scorer, labels: known, adjacency: adjacency}
}

// Detect scores the face crop and returns the selected labels in the order
// the scorer reported them.
func (d *Detector) Detect(ctx context.Context, faceCrop []byte) ([]string, error) {
	scores, err := d.scorer.EmotionScores(ctx, faceCrop)
	if err != nil {
		return nil, err
	}
	return d.Select(scores), nil
}

// Select applies the adjacency rule to a score vector.
func (d *Detector) Select(scores []vision.LabelScore) []string {
	var max float64
	for _, s := range scores {
		if _, ok := d.labels[s.Label]; !ok {
			continue
		}
		if s.Score > max {
			max = s.Score
		}
	}
	if max == 0 {
		return nil
	}

	var selected []string
	for _, s := range scores {
		if _, ok := d.labels[s.Label]; !ok {
			continue
		}
		if s.Score != 0 && max-s.Score <= d.adjacency {
			selected = append(selected, s.Label)
		}
	}
	return selected
}
