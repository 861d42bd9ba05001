package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fuskar/attendance/internal/store"
)

// LectureRepository provides PostgreSQL-backed lecture storage.
type LectureRepository struct {
	pool *Pool
}

// NewLectureRepository creates a new PostgreSQL lecture repository.
func NewLectureRepository(pool *Pool) *LectureRepository {
	return &LectureRepository{pool: pool}
}

func (r *LectureRepository) CreateLecture(ctx context.Context, courseID string) (*store.Lecture, error) {
	id := uuid.NewString()

	var lecture store.Lecture
	err := r.pool.db.QueryRowContext(ctx, `
		INSERT INTO lectures (id, course_id)
		VALUES ($1, $2)
		RETURNING id, course_id, started_at, stopped_at, locked
	`, id, courseID).Scan(&lecture.ID, &lecture.CourseID, &lecture.StartedAt, &lecture.StoppedAt, &lecture.Locked)
	if err != nil {
		return nil, fmt.Errorf("create lecture: %w", err)
	}

	return &lecture, nil
}

func (r *LectureRepository) GetLecture(ctx context.Context, id string) (*store.Lecture, error) {
	var lecture store.Lecture
	err := r.pool.db.QueryRowContext(ctx, `
		SELECT id, course_id, started_at, stopped_at, locked
		FROM lectures
		WHERE id = $1
	`, id).Scan(&lecture.ID, &lecture.CourseID, &lecture.StartedAt, &lecture.StoppedAt, &lecture.Locked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrLectureNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lecture: %w", err)
	}

	return &lecture, nil
}

// EndLecture sets stopped_at and locked in a single statement so no window
// exists where the lecture is stopped but still writable.
func (r *LectureRepository) EndLecture(ctx context.Context, id string) (*store.Lecture, error) {
	var lecture store.Lecture
	err := r.pool.db.QueryRowContext(ctx, `
		UPDATE lectures
		SET stopped_at = NOW(), locked = TRUE
		WHERE id = $1 AND stopped_at IS NULL
		RETURNING id, course_id, started_at, stopped_at, locked
	`, id).Scan(&lecture.ID, &lecture.CourseID, &lecture.StartedAt, &lecture.StoppedAt, &lecture.Locked)
	if errors.Is(err, sql.ErrNoRows) {
		// Either already ended or never created; report which.
		existing, getErr := r.GetLecture(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if existing.Stopped() {
			return nil, store.ErrLectureEnded
		}
		return nil, fmt.Errorf("end lecture %s: concurrent update", id)
	}
	if err != nil {
		return nil, fmt.Errorf("end lecture: %w", err)
	}

	return &lecture, nil
}

// AddPresence inserts the membership only while the lecture is unlocked; the
// lock check and the insert are one statement, so a result arriving after the
// lock can never be committed.
func (r *LectureRepository) AddPresence(ctx context.Context, lectureID, studentID string) (bool, error) {
	result, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO presence (lecture_id, student_id)
		SELECT l.id, $2 FROM lectures l WHERE l.id = $1 AND NOT l.locked
		ON CONFLICT (lecture_id, student_id) DO NOTHING
	`, lectureID, studentID)
	if err != nil {
		return false, fmt.Errorf("add presence: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add presence rows affected: %w", err)
	}
	if affected > 0 {
		return true, nil
	}

	// Nothing inserted: deduplicated, locked, or missing lecture.
	if _, err := r.GetLecture(ctx, lectureID); err != nil {
		return false, err
	}
	return false, nil
}

// AppendEmotion records one observation unless the lecture is locked.
func (r *LectureRepository) AppendEmotion(ctx context.Context, lectureID, label string) error {
	result, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO emotions (lecture_id, label)
		SELECT l.id, $2 FROM lectures l WHERE l.id = $1 AND NOT l.locked
	`, lectureID, label)
	if err != nil {
		return fmt.Errorf("append emotion: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("append emotion rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := r.GetLecture(ctx, lectureID); err != nil {
			return err
		}
	}
	return nil
}

func (r *LectureRepository) Presence(ctx context.Context, lectureID string) ([]string, error) {
	if _, err := r.GetLecture(ctx, lectureID); err != nil {
		return nil, err
	}

	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT student_id FROM presence WHERE lecture_id = $1
	`, lectureID)
	if err != nil {
		return nil, fmt.Errorf("query presence: %w", err)
	}
	defer rows.Close()

	var students []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan presence: %w", err)
		}
		students = append(students, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate presence: %w", err)
	}

	return students, nil
}

func (r *LectureRepository) Emotions(ctx context.Context, lectureID string) ([]string, error) {
	if _, err := r.GetLecture(ctx, lectureID); err != nil {
		return nil, err
	}

	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT label FROM emotions WHERE lecture_id = $1 ORDER BY id
	`, lectureID)
	if err != nil {
		return nil, fmt.Errorf("query emotions: %w", err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("scan emotion: %w", err)
		}
		labels = append(labels, label)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate emotions: %w", err)
	}

	return labels, nil
}

// ActiveLectures lists lectures that have not been stopped yet, oldest first.
func (r *LectureRepository) ActiveLectures(ctx context.Context) ([]store.Lecture, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT id, course_id, started_at, stopped_at, locked
		FROM lectures
		WHERE stopped_at IS NULL
		ORDER BY started_at
	`)
	if err != nil {
		return nil, fmt.Errorf("query active lectures: %w", err)
	}
	defer rows.Close()

	var lectures []store.Lecture
	for rows.Next() {
		var l store.Lecture
		var stoppedAt sql.NullTime
		if err := rows.Scan(&l.ID, &l.CourseID, &l.StartedAt, &stoppedAt, &l.Locked); err != nil {
			return nil, fmt.Errorf("scan lecture: %w", err)
		}
		if stoppedAt.Valid {
			t := stoppedAt.Time
			l.StoppedAt = &t
		}
		lectures = append(lectures, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lectures: %w", err)
	}

	return lectures, nil
}
