//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fuskar/attendance/internal/config"
	"github.com/fuskar/attendance/internal/store"
)

const testEmbeddingDim = 128

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg, testEmbeddingDim)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func TestLectureRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewLectureRepository(pool)

	t.Run("CreateAndGet", func(t *testing.T) {
		lecture, err := repo.CreateLecture(ctx, "CPE-501")
		if err != nil {
			t.Fatalf("Failed to create lecture: %v", err)
		}
		if lecture.ID == "" {
			t.Fatal("Expected lecture ID, got empty string")
		}
		if lecture.Stopped() || lecture.Locked {
			t.Error("New lecture must be running and unlocked")
		}

		got, err := repo.GetLecture(ctx, lecture.ID)
		if err != nil {
			t.Fatalf("Failed to get lecture: %v", err)
		}
		if got.CourseID != "CPE-501" {
			t.Errorf("Expected course 'CPE-501', got '%s'", got.CourseID)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := repo.GetLecture(ctx, "00000000-0000-0000-0000-000000000000")
		if !errors.Is(err, store.ErrLectureNotFound) {
			t.Errorf("Expected ErrLectureNotFound, got %v", err)
		}
	})

	t.Run("PresenceIdempotent", func(t *testing.T) {
		lecture, _ := repo.CreateLecture(ctx, "CPE-501")

		added, err := repo.AddPresence(ctx, lecture.ID, "42")
		if err != nil {
			t.Fatalf("Failed to add presence: %v", err)
		}
		if !added {
			t.Error("First insert should report a new fact")
		}

		added, err = repo.AddPresence(ctx, lecture.ID, "42")
		if err != nil {
			t.Fatalf("Failed to add presence: %v", err)
		}
		if added {
			t.Error("Repeated insert should be a no-op")
		}

		students, err := repo.Presence(ctx, lecture.ID)
		if err != nil {
			t.Fatalf("Failed to list presence: %v", err)
		}
		if len(students) != 1 {
			t.Errorf("Expected 1 membership, got %d", len(students))
		}
	})

	t.Run("EndLectureLocks", func(t *testing.T) {
		lecture, _ := repo.CreateLecture(ctx, "CPE-501")

		ended, err := repo.EndLecture(ctx, lecture.ID)
		if err != nil {
			t.Fatalf("Failed to end lecture: %v", err)
		}
		if !ended.Stopped() || !ended.Locked {
			t.Error("Ending must set stopped_at and locked together")
		}

		if _, err := repo.EndLecture(ctx, lecture.ID); !errors.Is(err, store.ErrLectureEnded) {
			t.Errorf("Expected ErrLectureEnded on double stop, got %v", err)
		}

		added, err := repo.AddPresence(ctx, lecture.ID, "42")
		if err != nil {
			t.Fatalf("Failed to add presence: %v", err)
		}
		if added {
			t.Error("Locked lecture must refuse presence writes")
		}

		if err := repo.AppendEmotion(ctx, lecture.ID, "surprise"); err != nil {
			t.Fatalf("Failed to append emotion: %v", err)
		}
		emotions, _ := repo.Emotions(ctx, lecture.ID)
		if len(emotions) != 0 {
			t.Errorf("Locked lecture must suppress emotion appends, got %v", emotions)
		}
	})

	t.Run("EmotionsAppendOnly", func(t *testing.T) {
		lecture, _ := repo.CreateLecture(ctx, "CPE-501")

		for _, label := range []string{"surprise", "surprise", "fear"} {
			if err := repo.AppendEmotion(ctx, lecture.ID, label); err != nil {
				t.Fatalf("Failed to append emotion: %v", err)
			}
		}

		emotions, err := repo.Emotions(ctx, lecture.ID)
		if err != nil {
			t.Fatalf("Failed to list emotions: %v", err)
		}
		if len(emotions) != 3 {
			t.Errorf("Expected 3 observations, got %d", len(emotions))
		}
		if emotions[2] != "fear" {
			t.Errorf("Expected insertion order preserved, got %v", emotions)
		}
	})

	t.Run("ActiveLectures", func(t *testing.T) {
		lecture, _ := repo.CreateLecture(ctx, "CME-100")

		active, err := repo.ActiveLectures(ctx)
		if err != nil {
			t.Fatalf("Failed to list active lectures: %v", err)
		}
		found := false
		for _, l := range active {
			if l.ID == lecture.ID {
				found = true
			}
			if l.Stopped() {
				t.Errorf("Active listing contains stopped lecture %s", l.ID)
			}
		}
		if !found {
			t.Error("Running lecture missing from active listing")
		}
	})
}

type staticExtractor struct {
	embedding []float32
	calls     int
}

func (e *staticExtractor) ExtractFace(ctx context.Context, imagePath string) ([]float32, error) {
	e.calls++
	return e.embedding, nil
}

func TestEmbeddingCache(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()

	embedding := make([]float32, testEmbeddingDim)
	for i := range embedding {
		embedding[i] = float32(i) / testEmbeddingDim
	}
	extractor := &staticExtractor{embedding: embedding}
	cache := NewEmbeddingCache(pool, extractor)

	t.Run("ComputeOnce", func(t *testing.T) {
		got, err := cache.GetOrCompute(ctx, "media/images/7/a.jpg", "7")
		if err != nil {
			t.Fatalf("Failed to compute embedding: %v", err)
		}
		if len(got) != testEmbeddingDim {
			t.Fatalf("Expected %d dimensions, got %d", testEmbeddingDim, len(got))
		}

		if _, err := cache.GetOrCompute(ctx, "media/images/7/a.jpg", "7"); err != nil {
			t.Fatalf("Failed to read cached embedding: %v", err)
		}
		if extractor.calls != 1 {
			t.Errorf("Expected a single extraction, got %d", extractor.calls)
		}
	})

	t.Run("Samples", func(t *testing.T) {
		if _, err := cache.GetOrCompute(ctx, "media/images/9/b.jpg", "9"); err != nil {
			t.Fatalf("Failed to compute embedding: %v", err)
		}

		samples, err := cache.Samples(ctx)
		if err != nil {
			t.Fatalf("Failed to list samples: %v", err)
		}
		if len(samples) != 2 {
			t.Fatalf("Expected 2 samples, got %d", len(samples))
		}
		for _, s := range samples {
			if len(s.Embedding) != testEmbeddingDim {
				t.Errorf("Sample %s has %d dimensions", s.ImagePath, len(s.Embedding))
			}
		}
	})

	t.Run("Invalidate", func(t *testing.T) {
		if err := cache.Invalidate(ctx, "media/images/9/b.jpg"); err != nil {
			t.Fatalf("Failed to invalidate: %v", err)
		}

		samples, err := cache.Samples(ctx)
		if err != nil {
			t.Fatalf("Failed to list samples: %v", err)
		}
		for _, s := range samples {
			if s.ImagePath == "media/images/9/b.jpg" {
				t.Error("Invalidated entry still present")
			}
		}

		calls := extractor.calls
		if _, err := cache.GetOrCompute(ctx, "media/images/9/b.jpg", "9"); err != nil {
			t.Fatalf("Failed to recompute: %v", err)
		}
		if extractor.calls != calls+1 {
			t.Error("Invalidated entry must be recomputed")
		}
	})
}
