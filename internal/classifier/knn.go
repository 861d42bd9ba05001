package classifier

import (
	"errors"
	"math"
	"sort"

	"github.com/coder/hnsw"

	"github.com/fuskar/attendance/internal/vision"
)

// hnswMaxNeighbors is the M parameter of the HNSW graph.
const hnswMaxNeighbors = 16

// KNN classifies by a distance-weighted majority vote over the k nearest
// training embeddings, searched through an in-memory HNSW graph.
type KNN struct {
	graph      *hnsw.Graph[int]
	samples    []Sample
	k          int
	confidence float64
}

// TrainKNN builds the neighbor graph over all samples. When k is zero it is
// auto-selected as round(sqrt(N)), matching the usual heuristic.
func TrainKNN(samples []Sample, k int, confidence float64) (*KNN, error) {
	if len(samples) == 0 {
		return nil, errors.New("knn requires at least one training sample")
	}
	if len(identities(samples)) < 2 {
		return nil, errors.New("knn requires at least two distinct identities")
	}

	if k <= 0 {
		k = int(math.Round(math.Sqrt(float64(len(samples)))))
	}
	if k > len(samples) {
		k = len(samples)
	}
	if k < 1 {
		k = 1
	}

	g := hnsw.NewGraph[int]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.EuclideanDistance

	for i := range samples {
		if len(samples[i].Embedding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(i, samples[i].Embedding))
	}

	return &KNN{graph: g, samples: samples, k: k, confidence: confidence}, nil
}

func (c *KNN) Mode() Mode { return ModeKNN }

// K returns the neighbor count in use.
func (c *KNN) K() int { return c.k }

// Predict votes over the k nearest neighbors of each query, weighting each
// neighbor by inverse distance. A query whose nearest neighbor is farther
// than 1 - confidence stays Unknown regardless of the vote.
func (c *KNN) Predict(embeddings [][]float32) []string {
	predictions := make([]string, 0, len(embeddings))

	for _, query := range embeddings {
		neighbors := c.graph.Search(query, c.k)
		if len(neighbors) == 0 {
			predictions = append(predictions, Unknown)
			continue
		}

		nearest := math.Inf(1)
		votes := make(map[string]float64, len(neighbors))
		for _, n := range neighbors {
			dist := vision.EuclideanDistance(query, n.Value)
			if dist < nearest {
				nearest = dist
			}
			// Inverse distance weighting; an exact match dominates the vote.
			votes[c.samples[n.Key].Identity] += 1 / (dist + 1e-9)
		}

		if vision.Confidence(nearest) <= c.confidence {
			predictions = append(predictions, Unknown)
			continue
		}

		predictions = append(predictions, topVote(votes))
	}

	return predictions
}

// topVote returns the identity with the highest accumulated weight.
// Exact weight ties break lexicographically for determinism.
func topVote(votes map[string]float64) string {
	ids := make([]string, 0, len(votes))
	for id := range votes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	best := ids[0]
	for _, id := range ids[1:] {
		if votes[id] > votes[best] {
			best = id
		}
	}
	return best
}
