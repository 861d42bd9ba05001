package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-memory LectureStore for tests and single-process setups.
type Memory struct {
	mu       sync.RWMutex
	lectures map[string]*Lecture
	presence map[string]map[string]struct{}
	emotions map[string][]string
}

// NewMemory creates an empty in-memory lecture store.
func NewMemory() *Memory {
	return &Memory{
		lectures: make(map[string]*Lecture),
		presence: make(map[string]map[string]struct{}),
		emotions: make(map[string][]string),
	}
}

func (m *Memory) CreateLecture(ctx context.Context, courseID string) (*Lecture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lecture := &Lecture{
		ID:        uuid.NewString(),
		CourseID:  courseID,
		StartedAt: time.Now(),
	}
	m.lectures[lecture.ID] = lecture
	m.presence[lecture.ID] = make(map[string]struct{})

	return copyLecture(lecture), nil
}

func (m *Memory) GetLecture(ctx context.Context, id string) (*Lecture, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lecture, ok := m.lectures[id]
	if !ok {
		return nil, ErrLectureNotFound
	}
	return copyLecture(lecture), nil
}

func (m *Memory) EndLecture(ctx context.Context, id string) (*Lecture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lecture, ok := m.lectures[id]
	if !ok {
		return nil, ErrLectureNotFound
	}
	if lecture.StoppedAt != nil {
		return nil, ErrLectureEnded
	}

	now := time.Now()
	lecture.StoppedAt = &now
	lecture.Locked = true

	return copyLecture(lecture), nil
}

func (m *Memory) AddPresence(ctx context.Context, lectureID, studentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lecture, ok := m.lectures[lectureID]
	if !ok {
		return false, ErrLectureNotFound
	}
	if lecture.Locked {
		return false, nil
	}

	if _, present := m.presence[lectureID][studentID]; present {
		return false, nil
	}
	m.presence[lectureID][studentID] = struct{}{}
	return true, nil
}

func (m *Memory) AppendEmotion(ctx context.Context, lectureID, label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lecture, ok := m.lectures[lectureID]
	if !ok {
		return ErrLectureNotFound
	}
	if lecture.Locked {
		return nil
	}

	m.emotions[lectureID] = append(m.emotions[lectureID], label)
	return nil
}

func (m *Memory) Presence(ctx context.Context, lectureID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.lectures[lectureID]; !ok {
		return nil, ErrLectureNotFound
	}

	students := make([]string, 0, len(m.presence[lectureID]))
	for id := range m.presence[lectureID] {
		students = append(students, id)
	}
	return students, nil
}

func (m *Memory) Emotions(ctx context.Context, lectureID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.lectures[lectureID]; !ok {
		return nil, ErrLectureNotFound
	}

	out := make([]string, len(m.emotions[lectureID]))
	copy(out, m.emotions[lectureID])
	return out, nil
}

func (m *Memory) ActiveLectures(ctx context.Context) ([]Lecture, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var active []Lecture
	for _, l := range m.lectures {
		if l.StoppedAt == nil {
			active = append(active, *copyLecture(l))
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].StartedAt.Before(active[j].StartedAt) })
	return active, nil
}

func copyLecture(l *Lecture) *Lecture {
	c := *l
	if l.StoppedAt != nil {
		t := *l.StoppedAt
		c.StoppedAt = &t
	}
	return &c
}

// StaticRoster is a fixed course-to-students mapping for tests and setups
// without a records database.
type StaticRoster map[string][]string

func (r StaticRoster) RegisteredStudents(ctx context.Context, courseID string) (map[string]struct{}, error) {
	students := make(map[string]struct{}, len(r[courseID]))
	for _, id := range r[courseID] {
		students[id] = struct{}{}
	}
	return students, nil
}
