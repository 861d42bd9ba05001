package classifier

import (
	"errors"

	"github.com/fuskar/attendance/internal/vision"
)

// DirectEuclid compares a query against every stored training embedding and
// takes the closest one. It is the fallback when only a single identity is
// registered and no multi-class model can be trained.
type DirectEuclid struct {
	samples    []Sample
	confidence float64
}

// NewDirectEuclid creates a direct distance comparator over raw samples.
func NewDirectEuclid(samples []Sample, confidence float64) (*DirectEuclid, error) {
	if len(samples) == 0 {
		return nil, errors.New("direct-euclid requires at least one training sample")
	}
	return &DirectEuclid{samples: samples, confidence: confidence}, nil
}

func (d *DirectEuclid) Mode() Mode { return ModeDirectEuclid }

// Predict maps each query to the identity of its nearest stored embedding,
// or Unknown when 1 - minDistance does not exceed the confidence threshold.
func (d *DirectEuclid) Predict(embeddings [][]float32) []string {
	predictions := make([]string, 0, len(embeddings))

	for _, query := range embeddings {
		best := -1
		bestDist := 0.0
		for i := range d.samples {
			dist := vision.EuclideanDistance(d.samples[i].Embedding, query)
			if best == -1 || dist < bestDist {
				best = i
				bestDist = dist
			}
		}

		// Strict comparison: a query exactly at the threshold stays unknown.
		if vision.Confidence(bestDist) > d.confidence {
			predictions = append(predictions, d.samples[best].Identity)
		} else {
			predictions = append(predictions, Unknown)
		}
	}

	return predictions
}
