// Package store defines durable lecture state: lifecycle flags, the
// deduplicated presence set and the append-only emotion log, plus the
// read-only course roster.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrLectureNotFound is returned for operations on a lecture id that was
	// never created. Distinct from ErrLectureEnded by design: ending a missing
	// lecture and ending one twice are different operator mistakes.
	ErrLectureNotFound = errors.New("lecture not found")

	// ErrLectureEnded is returned when ending a lecture that already has a
	// stop timestamp.
	ErrLectureEnded = errors.New("lecture already ended")
)

// Lecture is one attendance-taking run of a course.
type Lecture struct {
	ID        string
	CourseID  string
	StartedAt time.Time
	StoppedAt *time.Time
	Locked    bool
}

// Stopped reports whether the lecture has been ended.
func (l *Lecture) Stopped() bool {
	return l.StoppedAt != nil
}

// LectureStore persists lectures, presence facts and emotion observations.
// Presence insertion is idempotent; emotion appends are not deduplicated.
// Both writes are refused once the lecture is locked, closing the race
// between a stop request and an in-flight recognition result.
type LectureStore interface {
	// CreateLecture starts a new lecture for a course.
	CreateLecture(ctx context.Context, courseID string) (*Lecture, error)
	// GetLecture reads current durable lecture state.
	GetLecture(ctx context.Context, id string) (*Lecture, error)
	// EndLecture sets stopped_at and locked in one write. Returns
	// ErrLectureEnded when already stopped, ErrLectureNotFound when missing.
	EndLecture(ctx context.Context, id string) (*Lecture, error)
	// AddPresence commits "student was present" idempotently. Returns true
	// only when the fact was newly recorded; locked lectures always return
	// false.
	AddPresence(ctx context.Context, lectureID, studentID string) (bool, error)
	// AppendEmotion records one emotion observation. A locked lecture
	// suppresses the append silently.
	AppendEmotion(ctx context.Context, lectureID, label string) error
	// Presence lists the students recorded present, unordered.
	Presence(ctx context.Context, lectureID string) ([]string, error)
	// Emotions lists all recorded emotion observations, including repeats.
	Emotions(ctx context.Context, lectureID string) ([]string, error)
	// ActiveLectures lists lectures without a stop timestamp, oldest first.
	ActiveLectures(ctx context.Context) ([]Lecture, error)
}

// RosterReader resolves the set of student ids registered for a course.
type RosterReader interface {
	RegisteredStudents(ctx context.Context, courseID string) (map[string]struct{}, error)
}
