package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("CONFIDENCE")
	os.Unsetenv("ATTEND_INTERVAL")
	os.Unsetenv("RECOGNITION_MODE")
	os.Unsetenv("EMBEDDING_DIM")
	os.Unsetenv("ADJACENT_THRESHOLD")

	cfg := Load()

	if cfg.Engine.Confidence != 0.6 {
		t.Errorf("expected default confidence 0.6, got %f", cfg.Engine.Confidence)
	}
	if cfg.Engine.IntervalSec != 2 {
		t.Errorf("expected default interval 2, got %d", cfg.Engine.IntervalSec)
	}
	if cfg.Engine.PreferredMode != "knn" {
		t.Errorf("expected default mode knn, got %s", cfg.Engine.PreferredMode)
	}
	if cfg.Vision.Dim != 128 {
		t.Errorf("expected default embedding dim 128, got %d", cfg.Vision.Dim)
	}
	if cfg.Database.CacheBackend != "file" {
		t.Errorf("expected default cache backend file, got %s", cfg.Database.CacheBackend)
	}
}

func TestLoadEmbeddedEmotions(t *testing.T) {
	cfg := Load()

	if len(cfg.Emotions.Labels) == 0 {
		t.Fatal("expected embedded emotion labels")
	}
	if cfg.Emotions.AdjacencyThreshold <= 0 || cfg.Emotions.AdjacencyThreshold >= 1 {
		t.Errorf("adjacency threshold out of range: %f", cfg.Emotions.AdjacencyThreshold)
	}
	want := map[string]bool{"anger": true, "surprise": true, "calm": true}
	for _, l := range cfg.Emotions.Labels {
		delete(want, l)
	}
	if len(want) != 0 {
		t.Errorf("missing expected labels: %v", want)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CONFIDENCE", "0.8")
	t.Setenv("ATTEND_INTERVAL", "5")
	t.Setenv("RECOGNITION_MODE", "svm")

	cfg := Load()

	if cfg.Engine.Confidence != 0.8 {
		t.Errorf("expected confidence 0.8, got %f", cfg.Engine.Confidence)
	}
	if cfg.Engine.IntervalSec != 5 {
		t.Errorf("expected interval 5, got %d", cfg.Engine.IntervalSec)
	}
	if cfg.Engine.PreferredMode != "svm" {
		t.Errorf("expected mode svm, got %s", cfg.Engine.PreferredMode)
	}
}

func TestEnvFloatRejectsOutOfRange(t *testing.T) {
	t.Setenv("CONFIDENCE", "1.5")
	cfg := Load()
	if cfg.Engine.Confidence != 0.6 {
		t.Errorf("expected out-of-range confidence to fall back to 0.6, got %f", cfg.Engine.Confidence)
	}
}
