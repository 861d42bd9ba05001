// Package training turns the labeled image tree into a published classifier
// artifact and keeps the in-memory classifier in sync with it.
package training

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fuskar/attendance/internal/classifier"
	"github.com/fuskar/attendance/internal/embedcache"
)

// trainingImage is one labeled file under the training directory.
type trainingImage struct {
	path     string
	identity string
}

// Pipeline rebuilds the classifier artifact from the training directory.
// Rebuild publishes atomically: readers keep the previous classifier until
// the new artifact is fully written.
type Pipeline struct {
	cache        embedcache.Store
	trainDir     string
	artifactPath string
	preferred    classifier.Mode
	confidence   float64
	log          *logrus.Entry

	// OnProgress, when set, is called after each training image is embedded.
	OnProgress func(done, total int)

	mu      sync.RWMutex
	current classifier.Classifier
}

// NewPipeline creates a training pipeline. The artifact path points at the
// persisted classifier; trainDir holds one subdirectory per identity.
func NewPipeline(cache embedcache.Store, trainDir, artifactPath string, preferred classifier.Mode, confidence float64, log *logrus.Entry) *Pipeline {
	return &Pipeline{
		cache:        cache,
		trainDir:     trainDir,
		artifactPath: artifactPath,
		preferred:    preferred,
		confidence:   confidence,
		log:          log,
	}
}

// Current returns the classifier built by the last Rebuild or LoadFromDisk.
func (p *Pipeline) Current() (classifier.Classifier, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.current == nil {
		return nil, classifier.ErrNoArtifact
	}
	return p.current, nil
}

// LoadFromDisk restores the classifier from a previously saved artifact.
func (p *Pipeline) LoadFromDisk() error {
	artifact, err := classifier.LoadArtifact(p.artifactPath)
	if err != nil {
		return err
	}

	cls, err := artifact.Build(p.confidence)
	if err != nil {
		return fmt.Errorf("failed to build classifier from artifact: %w", err)
	}

	p.mu.Lock()
	p.current = cls
	p.mu.Unlock()

	p.log.WithFields(logrus.Fields{
		"mode":       cls.Mode(),
		"trained_at": artifact.TrainedAt,
	}).Info("classifier loaded from artifact")

	return nil
}

// Rebuild embeds every training image (through the cache), selects the
// strategy for the population size, trains it, and publishes the new
// artifact. Images without exactly one face are skipped with a warning;
// transport failures abort the whole rebuild so a flaky detector cannot
// silently shrink the corpus.
func (p *Pipeline) Rebuild(ctx context.Context) error {
	images, err := p.listTrainingImages()
	if err != nil {
		return err
	}

	samples := make([]classifier.Sample, 0, len(images))
	for i, img := range images {
		embedding, err := p.cache.GetOrCompute(ctx, img.path, img.identity)
		switch {
		case errors.Is(err, embedcache.ErrNoFace), errors.Is(err, embedcache.ErrMultipleFaces):
			p.log.WithField("image", img.path).WithError(err).Warn("skipping training image")
		case err != nil:
			return fmt.Errorf("failed to embed %s: %w", img.path, err)
		default:
			samples = append(samples, classifier.Sample{
				ImagePath: img.path,
				Identity:  img.identity,
				Embedding: embedding,
			})
		}

		if p.OnProgress != nil {
			p.OnProgress(i+1, len(images))
		}
	}

	if err := p.cache.Flush(ctx); err != nil {
		return fmt.Errorf("failed to flush embedding cache: %w", err)
	}

	artifact, cls, err := p.train(samples)
	if err != nil {
		return err
	}

	if err := classifier.SaveArtifact(p.artifactPath, artifact); err != nil {
		return err
	}

	p.mu.Lock()
	p.current = cls
	p.mu.Unlock()

	p.log.WithFields(logrus.Fields{
		"mode":    cls.Mode(),
		"samples": len(samples),
	}).Info("classifier rebuilt")

	return nil
}

// train picks the strategy for the population and fits it. A single identity
// cannot support knn or svm, so it always falls back to raw distance.
func (p *Pipeline) train(samples []classifier.Sample) (*classifier.Artifact, classifier.Classifier, error) {
	ids := make(map[string]struct{})
	for _, s := range samples {
		ids[s.Identity] = struct{}{}
	}
	if len(ids) == 0 {
		return nil, nil, errors.New("training directory has no usable images")
	}

	mode := p.preferred
	if len(ids) < 2 {
		mode = classifier.ModeDirectEuclid
	}

	artifact := &classifier.Artifact{
		Mode:      mode,
		Samples:   samples,
		TrainedAt: time.Now(),
	}

	if mode == classifier.ModeSVM {
		svm, err := classifier.TrainSVM(samples, p.confidence)
		if err != nil {
			return nil, nil, err
		}
		artifact.SVM = svm.Model()
		return artifact, svm, nil
	}

	cls, err := artifact.Build(p.confidence)
	if err != nil {
		return nil, nil, err
	}
	return artifact, cls, nil
}

// listTrainingImages walks trainDir, where each subdirectory is an identity
// and each image file inside it is a labeled example. Ordering is stable so
// retrains over an unchanged corpus are reproducible.
func (p *Pipeline) listTrainingImages() ([]trainingImage, error) {
	entries, err := os.ReadDir(p.trainDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read training directory: %w", err)
	}

	var images []trainingImage
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		identity := entry.Name()

		files, err := os.ReadDir(filepath.Join(p.trainDir, identity))
		if err != nil {
			return nil, fmt.Errorf("failed to read identity directory %s: %w", identity, err)
		}

		for _, f := range files {
			if f.IsDir() || !isImageFile(f.Name()) {
				continue
			}
			images = append(images, trainingImage{
				path:     filepath.Join(p.trainDir, identity, f.Name()),
				identity: identity,
			})
		}
	}

	sort.Slice(images, func(i, j int) bool { return images[i].path < images[j].path })

	return images, nil
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}
