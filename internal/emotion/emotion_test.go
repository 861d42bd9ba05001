package emotion

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/fuskar/attendance/internal/vision"
)

var testLabels = []string{"anger", "disgust", "fear", "happiness", "sadness", "surprise", "calm"}

func TestSelect_SingleDominantLabel(t *testing.T) {
	d := NewDetector(nil, testLabels, 0.2)

	got := d.Select([]vision.LabelScore{
		{Label: "happiness", Score: 0.9},
		{Label: "surprise", Score: 0.05},
		{Label: "calm", Score: 0.05},
	})
	want := []string{"happiness"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestSelect_AdjacentLabelsBothReported(t *testing.T) {
	d := NewDetector(nil, testLabels, 0.2)

	got := d.Select([]vision.LabelScore{
		{Label: "surprise", Score: 0.45},
		{Label: "fear", Score: 0.35},
		{Label: "calm", Score: 0.2},
	})
	want := []string{"surprise", "fear"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestSelect_ExactThresholdIncluded(t *testing.T) {
	d := NewDetector(nil, testLabels, 0.25)

	// max - score == adjacency exactly: still within the band.
	got := d.Select([]vision.LabelScore{
		{Label: "surprise", Score: 0.5},
		{Label: "fear", Score: 0.25},
	})
	want := []string{"surprise", "fear"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestSelect_ZeroScoresNeverQualify(t *testing.T) {
	d := NewDetector(nil, testLabels, 0.2)

	if got := d.Select([]vision.LabelScore{
		{Label: "anger", Score: 0},
		{Label: "calm", Score: 0},
	}); got != nil {
		t.Errorf("all-zero scores must select nothing, got %v", got)
	}

	// A zero score adjacent to a tiny max must still be excluded.
	got := d.Select([]vision.LabelScore{
		{Label: "anger", Score: 0.1},
		{Label: "calm", Score: 0},
	})
	want := []string{"anger"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestSelect_UnknownLabelsDropped(t *testing.T) {
	d := NewDetector(nil, testLabels, 0.2)

	got := d.Select([]vision.LabelScore{
		{Label: "contempt", Score: 0.9}, // not in the configured set
		{Label: "fear", Score: 0.8},
	})
	want := []string{"fear"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

type fakeScorer struct {
	scores []vision.LabelScore
	err    error
}

func (f *fakeScorer) EmotionScores(ctx context.Context, faceCrop []byte) ([]vision.LabelScore, error) {
	return f.scores, f.err
}

func TestDetect(t *testing.T) {
	d := NewDetector(&fakeScorer{scores: []vision.LabelScore{
		{Label: "sadness", Score: 0.7},
		{Label: "calm", Score: 0.6},
	}}, testLabels, 0.2)

	got, err := d.Detect(context.Background(), []byte("crop"))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"sadness", "calm"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDetect_ScorerError(t *testing.T) {
	scoreErr := errors.New("model unavailable")
	d := NewDetector(&fakeScorer{err: scoreErr}, testLabels, 0.2)

	if _, err := d.Detect(context.Background(), []byte("crop")); !errors.Is(err, scoreErr) {
		t.Errorf("expected scorer error to propagate, got %v", err)
	}
}
