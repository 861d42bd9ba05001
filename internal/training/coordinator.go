package training

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/fuskar/attendance/internal/embedcache"
)

// Rebuilder retrains the classifier from the current training corpus.
type Rebuilder interface {
	Rebuild(ctx context.Context) error
}

// Coordinator serializes retrains against training corpus mutations. The
// retrain lock is held from cache invalidation through artifact publication,
// so a concurrent rebuild can never read an entry for a removed image.
type Coordinator struct {
	cache    embedcache.Store
	pipeline Rebuilder
	log      *logrus.Entry

	retrainMu sync.Mutex

	flagMu  sync.Mutex
	running bool
	pending bool
}

// NewCoordinator creates a retrain coordinator over the pipeline.
func NewCoordinator(cache embedcache.Store, pipeline Rebuilder, log *logrus.Entry) *Coordinator {
	return &Coordinator{cache: cache, pipeline: pipeline, log: log}
}

// OnImageAdded retrains synchronously after new training images appear. The
// new files are picked up by the rebuild's directory walk.
func (c *Coordinator) OnImageAdded(ctx context.Context) error {
	c.retrainMu.Lock()
	defer c.retrainMu.Unlock()

	return c.pipeline.Rebuild(ctx)
}

// OnImageRemoved invalidates the cached embeddings for removed images and
// retrains, both under the retrain lock.
func (c *Coordinator) OnImageRemoved(ctx context.Context, imagePaths ...string) error {
	c.retrainMu.Lock()
	defer c.retrainMu.Unlock()

	for _, path := range imagePaths {
		if err := c.cache.Invalidate(ctx, path); err != nil {
			return err
		}
	}

	return c.pipeline.Rebuild(ctx)
}

// Trigger schedules an asynchronous retrain. Triggers arriving while a
// retrain is running coalesce into a single follow-up run.
func (c *Coordinator) Trigger(ctx context.Context) {
	c.flagMu.Lock()
	if c.running {
		c.pending = true
		c.flagMu.Unlock()
		return
	}
	c.running = true
	c.flagMu.Unlock()

	go func() {
		for {
			c.retrainMu.Lock()
			err := c.pipeline.Rebuild(ctx)
			c.retrainMu.Unlock()
			if err != nil {
				c.log.WithError(err).Error("scheduled retrain failed")
			}

			c.flagMu.Lock()
			if !c.pending {
				c.running = false
				c.flagMu.Unlock()
				return
			}
			c.pending = false
			c.flagMu.Unlock()
		}
	}()
}
