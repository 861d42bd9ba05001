// Package mysql reads course enrollment from the school records database.
// The database belongs to another system; this package never writes to it.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	_ "github.com/go-sql-driver/mysql"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Pool manages a MariaDB connection pool.
type Pool struct {
	db *sql.DB
}

// NewPool creates a new MariaDB connection pool.
func NewPool(dsn string) (*Pool, error) {
	if dsn == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return &Pool{db: db}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// Roster answers which students are enrolled in a course.
type Roster struct {
	pool *Pool
}

// NewRoster creates a roster reader on top of the records database.
func NewRoster(pool *Pool) *Roster {
	return &Roster{pool: pool}
}

// RegisteredStudents returns the ids of students registered for the course.
// Course codes are matched in their canonical form, so "cpe–501" and
// "CPE-501" name the same course.
func (r *Roster) RegisteredStudents(ctx context.Context, courseID string) (map[string]struct{}, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT s.id
		FROM students s
		JOIN registrations reg ON reg.student_id = s.id
		JOIN courses c ON c.id = reg.course_id
		WHERE c.code = ?
	`, NormalizeCourseCode(courseID))
	if err != nil {
		return nil, fmt.Errorf("query roster: %w", err)
	}
	defer rows.Close()

	students := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan student id: %w", err)
		}
		students[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roster: %w", err)
	}

	return students, nil
}

// NormalizeCourseCode folds a course code to the canonical form stored in the
// records database: uppercase ASCII with combining marks stripped and dash
// variants collapsed to "-".
func NormalizeCourseCode(code string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, code)
	if err != nil {
		folded = code
	}

	folded = strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Pd, r) {
			return '-'
		}
		return r
	}, folded)

	return strings.ToUpper(strings.TrimSpace(folded))
}
