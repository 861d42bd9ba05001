package training

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fuskar/attendance/internal/embedcache"
)

// recordingRebuilder counts rebuilds and can block inside Rebuild to let
// tests pile up triggers mid-run.
type recordingRebuilder struct {
	mu      sync.Mutex
	count   int
	events  []string
	blockCh chan struct{}
}

func (r *recordingRebuilder) Rebuild(ctx context.Context) error {
	r.mu.Lock()
	r.count++
	r.events = append(r.events, "rebuild")
	block := r.blockCh
	r.mu.Unlock()

	if block != nil {
		<-block
	}
	return nil
}

func (r *recordingRebuilder) rebuilds() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// recordingStore wraps a FileStore and notes invalidations in the shared
// event log so ordering against rebuilds is observable.
type recordingStore struct {
	*embedcache.FileStore
	rebuilder *recordingRebuilder
}

func (s *recordingStore) Invalidate(ctx context.Context, imagePath string) error {
	s.rebuilder.mu.Lock()
	s.rebuilder.events = append(s.rebuilder.events, "invalidate:"+imagePath)
	s.rebuilder.mu.Unlock()
	return s.FileStore.Invalidate(ctx, imagePath)
}

type nopExtractor struct{}

func (nopExtractor) ExtractFace(ctx context.Context, imagePath string) ([]float32, error) {
	return []float32{1}, nil
}

func newTestCoordinator(t *testing.T, rebuilder *recordingRebuilder) (*Coordinator, *recordingStore) {
	t.Helper()

	fileStore, err := embedcache.OpenFileStore(filepath.Join(t.TempDir(), "embeddings.gob"), nopExtractor{})
	if err != nil {
		t.Fatal(err)
	}
	store := &recordingStore{FileStore: fileStore, rebuilder: rebuilder}
	log := logrus.NewEntry(logrus.New())
	return NewCoordinator(store, rebuilder, log), store
}

func TestCoordinator_RemoveInvalidatesBeforeRebuild(t *testing.T) {
	rebuilder := &recordingRebuilder{}
	coordinator, store := newTestCoordinator(t, rebuilder)
	ctx := context.Background()

	if _, err := store.GetOrCompute(ctx, "media/images/7/a.jpg", "7"); err != nil {
		t.Fatal(err)
	}

	if err := coordinator.OnImageRemoved(ctx, "media/images/7/a.jpg"); err != nil {
		t.Fatalf("OnImageRemoved failed: %v", err)
	}

	want := []string{"invalidate:media/images/7/a.jpg", "rebuild"}
	rebuilder.mu.Lock()
	events := append([]string(nil), rebuilder.events...)
	rebuilder.mu.Unlock()
	if len(events) != len(want) || events[0] != want[0] || events[1] != want[1] {
		t.Errorf("expected %v, got %v", want, events)
	}

	samples, err := store.Samples(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range samples {
		if s.ImagePath == "media/images/7/a.jpg" {
			t.Error("removed image still present in cache after retrain")
		}
	}
}

func TestCoordinator_AddedRetrainsSynchronously(t *testing.T) {
	rebuilder := &recordingRebuilder{}
	coordinator, _ := newTestCoordinator(t, rebuilder)

	if err := coordinator.OnImageAdded(context.Background()); err != nil {
		t.Fatalf("OnImageAdded failed: %v", err)
	}
	if got := rebuilder.rebuilds(); got != 1 {
		t.Errorf("expected 1 rebuild, got %d", got)
	}
}

func TestCoordinator_TriggerCoalesces(t *testing.T) {
	block := make(chan struct{})
	rebuilder := &recordingRebuilder{blockCh: block}
	coordinator, _ := newTestCoordinator(t, rebuilder)
	ctx := context.Background()

	coordinator.Trigger(ctx)

	// Wait for the first rebuild to start, then pile up triggers while it
	// is blocked. They must collapse into one follow-up run.
	deadline := time.Now().Add(2 * time.Second)
	for rebuilder.rebuilds() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first rebuild never started")
		}
		time.Sleep(time.Millisecond)
	}
	for i := 0; i < 5; i++ {
		coordinator.Trigger(ctx)
	}

	rebuilder.mu.Lock()
	rebuilder.blockCh = nil
	rebuilder.mu.Unlock()
	close(block)

	deadline = time.Now().Add(2 * time.Second)
	for {
		coordinator.flagMu.Lock()
		running := coordinator.running
		coordinator.flagMu.Unlock()
		if !running {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("coordinator never drained")
		}
		time.Sleep(time.Millisecond)
	}

	if got := rebuilder.rebuilds(); got != 2 {
		t.Errorf("expected 5 triggers during a run to coalesce into 1 follow-up, got %d total rebuilds", got)
	}
}

var _ embedcache.Store = (*recordingStore)(nil)
var _ Rebuilder = (*recordingRebuilder)(nil)
