package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/fuskar/attendance/internal/classifier"
	"github.com/fuskar/attendance/internal/config"
	"github.com/fuskar/attendance/internal/embedcache"
	"github.com/fuskar/attendance/internal/notify"
	"github.com/fuskar/attendance/internal/store"
	"github.com/fuskar/attendance/internal/store/mysql"
	"github.com/fuskar/attendance/internal/store/postgres"
	"github.com/fuskar/attendance/internal/training"
	"github.com/fuskar/attendance/internal/vision"
)

// artifactFile is the classifier artifact name inside the cache directory.
const artifactFile = "classifier.gob"

// embeddingCacheFile is the file cache name inside the cache directory.
const embeddingCacheFile = "embeddings.gob"

// openLectureStore connects to PostgreSQL and runs migrations.
func openLectureStore(ctx context.Context, cfg *config.Config) (*postgres.Pool, *postgres.LectureRepository, error) {
	if cfg.Database.URL == "" {
		return nil, nil, errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(&cfg.Database, cfg.Vision.Dim)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	return pool, postgres.NewLectureRepository(pool), nil
}

// openLectureStorePermissive is openLectureStore for commands that can run
// without a database, like training against the file cache. Returns nils
// when no DATABASE_URL is set.
func openLectureStorePermissive(ctx context.Context, cfg *config.Config) (*postgres.Pool, *postgres.LectureRepository, error) {
	if cfg.Database.URL == "" {
		return nil, nil, nil
	}
	return openLectureStore(ctx, cfg)
}

// newEmbeddingCache selects the cache backend. The postgres backend shares
// the lecture store pool; the file backend lives in the cache directory.
func newEmbeddingCache(cfg *config.Config, pool *postgres.Pool, extractor embedcache.Extractor) (embedcache.Store, error) {
	switch cfg.Database.CacheBackend {
	case "postgres":
		if pool == nil {
			return nil, errors.New("the postgres cache backend requires DATABASE_URL")
		}
		return postgres.NewEmbeddingCache(pool, extractor), nil
	case "file":
		if err := os.MkdirAll(cfg.Engine.CacheDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
		return embedcache.OpenFileStore(filepath.Join(cfg.Engine.CacheDir, embeddingCacheFile), extractor)
	}
	return nil, fmt.Errorf("unknown embedding cache backend %q", cfg.Database.CacheBackend)
}

// newPipeline wires the training pipeline from config.
func newPipeline(cfg *config.Config, cache embedcache.Store, log *logrus.Entry) (*training.Pipeline, error) {
	mode, err := classifier.ParseMode(cfg.Engine.PreferredMode)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Engine.CacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	artifactPath := filepath.Join(cfg.Engine.CacheDir, artifactFile)
	return training.NewPipeline(cache, cfg.Engine.TrainDir, artifactPath, mode, cfg.Engine.Confidence, log), nil
}

// newExtractor builds the vision-backed embedding extractor.
func newExtractor(cfg *config.Config) *embedcache.VisionExtractor {
	return embedcache.NewVisionExtractor(vision.NewClient(cfg.Vision.URL))
}

// newNotifier returns the webhook notifier, or a no-op when unconfigured.
func newNotifier(cfg *config.Config, log *logrus.Entry) notify.Notifier {
	if cfg.Notify.WebhookURL == "" {
		return notify.Nop{}
	}
	return notify.NewWebhook(cfg.Notify.WebhookURL, log)
}

// newRoster resolves the course roster source: the records database when
// configured, otherwise a static roster passed on the command line.
func newRoster(cfg *config.Config, staticIDs []string, courseID string) (store.RosterReader, func() error, error) {
	if cfg.Roster.DatabaseURL != "" {
		pool, err := mysql.NewPool(cfg.Roster.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return mysql.NewRoster(pool), pool.Close, nil
	}

	if len(staticIDs) == 0 {
		return nil, nil, errors.New("set ROSTER_DATABASE_URL or pass --students with the registered student ids")
	}
	return store.StaticRoster{courseID: staticIDs}, func() error { return nil }, nil
}
