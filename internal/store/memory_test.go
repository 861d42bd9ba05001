package store

import (
	"context"
	"errors"
	"testing"
)

func TestMemory_PresenceIdempotent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	lecture, err := m.CreateLecture(ctx, "CPE-501")
	if err != nil {
		t.Fatalf("CreateLecture failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		added, err := m.AddPresence(ctx, lecture.ID, "42")
		if err != nil {
			t.Fatalf("AddPresence failed: %v", err)
		}
		if i == 0 && !added {
			t.Error("first AddPresence should report a new fact")
		}
		if i > 0 && added {
			t.Error("repeated AddPresence should be a no-op")
		}
	}

	present, err := m.Presence(ctx, lecture.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(present) != 1 {
		t.Errorf("expected exactly one membership, got %d", len(present))
	}
}

func TestMemory_EndLectureTwice(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	lecture, _ := m.CreateLecture(ctx, "CPE-501")

	ended, err := m.EndLecture(ctx, lecture.ID)
	if err != nil {
		t.Fatalf("EndLecture failed: %v", err)
	}
	if ended.StoppedAt == nil || !ended.Locked {
		t.Error("ending must set stopped_at and locked together")
	}

	if _, err := m.EndLecture(ctx, lecture.ID); !errors.Is(err, ErrLectureEnded) {
		t.Errorf("expected ErrLectureEnded on double stop, got %v", err)
	}
	if _, err := m.EndLecture(ctx, "missing"); !errors.Is(err, ErrLectureNotFound) {
		t.Errorf("expected ErrLectureNotFound, got %v", err)
	}
}

func TestMemory_LockSuppressesWrites(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	lecture, _ := m.CreateLecture(ctx, "CPE-501")
	if _, err := m.EndLecture(ctx, lecture.ID); err != nil {
		t.Fatal(err)
	}

	added, err := m.AddPresence(ctx, lecture.ID, "42")
	if err != nil {
		t.Fatal(err)
	}
	if added {
		t.Error("locked lecture must refuse presence writes")
	}

	if err := m.AppendEmotion(ctx, lecture.ID, "surprise"); err != nil {
		t.Fatal(err)
	}
	emotions, _ := m.Emotions(ctx, lecture.ID)
	if len(emotions) != 0 {
		t.Errorf("locked lecture must suppress emotion appends, got %v", emotions)
	}
}

func TestMemory_EmotionsAppendOnly(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	lecture, _ := m.CreateLecture(ctx, "CPE-501")
	for _, label := range []string{"surprise", "surprise", "fear"} {
		if err := m.AppendEmotion(ctx, lecture.ID, label); err != nil {
			t.Fatal(err)
		}
	}

	emotions, _ := m.Emotions(ctx, lecture.ID)
	if len(emotions) != 3 {
		t.Errorf("emotion observations must not be deduplicated, got %v", emotions)
	}
}

func TestMemory_ActiveLectures(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	running, _ := m.CreateLecture(ctx, "CPE-501")
	ended, _ := m.CreateLecture(ctx, "CME-100")
	m.EndLecture(ctx, ended.ID)

	active, err := m.ActiveLectures(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].ID != running.ID {
		t.Errorf("expected only the running lecture, got %v", active)
	}
}

func TestStaticRoster(t *testing.T) {
	roster := StaticRoster{"CPE-501": {"1", "2"}}

	students, err := roster.RegisteredStudents(context.Background(), "CPE-501")
	if err != nil {
		t.Fatal(err)
	}
	if len(students) != 2 {
		t.Errorf("expected 2 students, got %d", len(students))
	}

	empty, _ := roster.RegisteredStudents(context.Background(), "CME-100")
	if len(empty) != 0 {
		t.Errorf("expected empty roster for unknown course, got %v", empty)
	}
}
