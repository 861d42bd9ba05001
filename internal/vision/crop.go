package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// emotionCropSize is the square input size expected by the emotion model.
const emotionCropSize = 48

// CropFace cuts the bounding box region out of a frame and prepares it for
// emotion scoring: grayscale, resized to the model input size, JPEG-encoded.
// The bbox is [x1, y1, x2, y2] in pixel coordinates and is clamped to the
// frame bounds.
func CropFace(frame []byte, bbox []float64) ([]byte, error) {
	if len(bbox) != 4 {
		return nil, fmt.Errorf("bbox must have 4 coordinates, got %d", len(bbox))
	}

	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	rect := clampRect(image.Rect(int(bbox[0]), int(bbox[1]), int(bbox[2]), int(bbox[3])), img.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("bbox %v lies outside the frame", bbox)
	}

	// Grayscale crop at the model input size.
	gray := image.NewGray(image.Rect(0, 0, emotionCropSize, emotionCropSize))
	draw.BiLinear.Scale(gray, gray.Bounds(), &croppedView{img, rect}, rect, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, gray, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode face crop: %w", err)
	}

	return buf.Bytes(), nil
}

// croppedView restricts an image to a sub-rectangle without copying pixels.
type croppedView struct {
	image.Image
	rect image.Rectangle
}

func (c *croppedView) Bounds() image.Rectangle { return c.rect }

func (c *croppedView) At(x, y int) color.Color {
	if !image.Pt(x, y).In(c.rect) {
		return color.Gray{}
	}
	return c.Image.At(x, y)
}

func clampRect(r, bounds image.Rectangle) image.Rectangle {
	return r.Intersect(bounds)
}
