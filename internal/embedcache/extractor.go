package embedcache

import (
	"context"
	"fmt"
	"os"

	"github.com/fuskar/attendance/internal/vision"
)

// VisionExtractor computes embeddings for training images through the vision
// service. A training image must contain exactly one detectable face.
type VisionExtractor struct {
	client *vision.Client
}

// NewVisionExtractor creates an extractor backed by the vision service.
func NewVisionExtractor(client *vision.Client) *VisionExtractor {
	return &VisionExtractor{client: client}
}

// ExtractFace reads the image and asks the detector for its embedding.
func (e *VisionExtractor) ExtractFace(ctx context.Context, imagePath string) ([]float32, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read training image: %w", err)
	}

	resp, err := e.client.DetectFaces(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("face detection for %s: %w", imagePath, err)
	}

	switch len(resp.Faces) {
	case 0:
		return nil, ErrNoFace
	case 1:
		return resp.Faces[0].Embedding, nil
	default:
		return nil, ErrMultipleFaces
	}
}
