package classifier

import (
	"errors"
	"math"
	"math/rand"
	"sort"
)

// SVM training hyperparameters. The embedding space is close to linearly
// separable per identity, so a linear machine converges within a small
// number of epochs.
const (
	svmLambda = 0.01
	svmEpochs = 100
)

// SVMModel holds the fitted one-vs-rest weights in a gob-friendly form.
type SVMModel struct {
	Classes []string
	Weights [][]float64 // one row per class: dim weights followed by the bias
	Dim     int
}

// SVM is a one-vs-rest linear support vector machine with softmax-calibrated
// posteriors. The argmax class is returned only when its posterior strictly
// exceeds the confidence threshold.
type SVM struct {
	model      *SVMModel
	confidence float64
}

// TrainSVM fits one binary hinge-loss machine per identity using Pegasos-style
// stochastic subgradient descent.
func TrainSVM(samples []Sample, confidence float64) (*SVM, error) {
	if len(samples) == 0 {
		return nil, errors.New("svm requires at least one training sample")
	}

	ids := identities(samples)
	if len(ids) < 2 {
		return nil, errors.New("cannot train an svm on a single class")
	}

	classes := make([]string, 0, len(ids))
	for id := range ids {
		classes = append(classes, id)
	}
	sort.Strings(classes)

	dim := len(samples[0].Embedding)
	for _, s := range samples {
		if len(s.Embedding) != dim {
			return nil, errors.New("svm training samples have inconsistent dimensions")
		}
	}

	model := &SVMModel{
		Classes: classes,
		Weights: make([][]float64, len(classes)),
		Dim:     dim,
	}

	// Deterministic shuffling keeps retrains reproducible for a fixed corpus.
	rng := rand.New(rand.NewSource(1))
	order := rng.Perm(len(samples))

	for ci, class := range classes {
		model.Weights[ci] = trainBinary(samples, order, class, dim)
	}

	return &SVM{model: model, confidence: confidence}, nil
}

// NewSVMFromModel wraps previously fitted weights, as loaded from an artifact.
func NewSVMFromModel(model *SVMModel, confidence float64) (*SVM, error) {
	if model == nil || len(model.Classes) == 0 || len(model.Weights) != len(model.Classes) {
		return nil, errors.New("invalid svm model")
	}
	return &SVM{model: model, confidence: confidence}, nil
}

// trainBinary fits a single one-vs-rest hinge-loss machine for one class.
func trainBinary(samples []Sample, order []int, class string, dim int) []float64 {
	w := make([]float64, dim+1) // bias last

	t := 0
	for epoch := 0; epoch < svmEpochs; epoch++ {
		for _, i := range order {
			t++
			eta := 1 / (svmLambda * float64(t))

			y := -1.0
			if samples[i].Identity == class {
				y = 1.0
			}

			margin := y * decision(w, samples[i].Embedding)

			// Regularization shrinks weights every step, bias excluded.
			for j := 0; j < dim; j++ {
				w[j] *= 1 - eta*svmLambda
			}
			if margin < 1 {
				for j := 0; j < dim; j++ {
					w[j] += eta * y * float64(samples[i].Embedding[j])
				}
				w[dim] += eta * y
			}
		}
	}

	return w
}

// decision computes w·x + b for a single class row.
func decision(w []float64, x []float32) float64 {
	sum := w[len(w)-1]
	for j := 0; j < len(w)-1; j++ {
		sum += w[j] * float64(x[j])
	}
	return sum
}

func (c *SVM) Mode() Mode { return ModeSVM }

// Model returns the fitted weights for artifact persistence.
func (c *SVM) Model() *SVMModel { return c.model }

// Predict returns the argmax class per query when its calibrated posterior
// strictly exceeds the confidence threshold, Unknown otherwise.
func (c *SVM) Predict(embeddings [][]float32) []string {
	predictions := make([]string, 0, len(embeddings))

	for _, query := range embeddings {
		probs := c.probabilities(query)

		best := 0
		for i := range probs {
			if probs[i] > probs[best] {
				best = i
			}
		}

		if probs[best] > c.confidence {
			predictions = append(predictions, c.model.Classes[best])
		} else {
			predictions = append(predictions, Unknown)
		}
	}

	return predictions
}

// probabilities maps per-class margins to a posterior via softmax.
func (c *SVM) probabilities(query []float32) []float64 {
	margins := make([]float64, len(c.model.Classes))
	maxMargin := math.Inf(-1)
	for i, w := range c.model.Weights {
		margins[i] = decision(w, query)
		if margins[i] > maxMargin {
			maxMargin = margins[i]
		}
	}

	var sum float64
	probs := make([]float64, len(margins))
	for i, m := range margins {
		probs[i] = math.Exp(m - maxMargin)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}
