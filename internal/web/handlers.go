package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fuskar/attendance/internal/notify"
	"github.com/fuskar/attendance/internal/store"
)

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondLectureError maps store errors to HTTP statuses.
func respondLectureError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrLectureNotFound):
		respondError(w, http.StatusNotFound, "lecture not found")
	case errors.Is(err, store.ErrLectureEnded):
		respondError(w, http.StatusConflict, "lecture already ended")
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

type lectureResponse struct {
	ID        string     `json:"id"`
	CourseID  string     `json:"course_id"`
	StartedAt time.Time  `json:"started_at"`
	StoppedAt *time.Time `json:"stopped_at,omitempty"`
	Locked    bool       `json:"locked"`
}

func toLectureResponse(l *store.Lecture) lectureResponse {
	return lectureResponse{
		ID:        l.ID,
		CourseID:  l.CourseID,
		StartedAt: l.StartedAt,
		StoppedAt: l.StoppedAt,
		Locked:    l.Locked,
	}
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (s *Server) createLecture(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CourseID string `json:"course_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CourseID == "" {
		respondError(w, http.StatusBadRequest, "course_id is required")
		return
	}

	lecture, err := s.store.CreateLecture(r.Context(), req.CourseID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, toLectureResponse(lecture))
}

func (s *Server) listActiveLectures(w http.ResponseWriter, r *http.Request) {
	active, err := s.store.ActiveLectures(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	lectures := make([]lectureResponse, 0, len(active))
	for i := range active {
		lectures = append(lectures, toLectureResponse(&active[i]))
	}
	respondJSON(w, http.StatusOK, map[string]any{"lectures": lectures})
}

func (s *Server) getLecture(w http.ResponseWriter, r *http.Request) {
	lecture, err := s.store.GetLecture(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondLectureError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toLectureResponse(lecture))
}

func (s *Server) stopLecture(w http.ResponseWriter, r *http.Request) {
	lecture, err := s.store.EndLecture(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondLectureError(w, err)
		return
	}

	s.notifier.Notify(r.Context(), notify.Event{
		Type:      notify.EventLectureStopped,
		LectureID: lecture.ID,
		CourseID:  lecture.CourseID,
		At:        time.Now(),
	})

	respondJSON(w, http.StatusOK, toLectureResponse(lecture))
}

func (s *Server) getPresence(w http.ResponseWriter, r *http.Request) {
	students, err := s.store.Presence(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondLectureError(w, err)
		return
	}
	if students == nil {
		students = []string{}
	}

	respondJSON(w, http.StatusOK, map[string]any{"students": students})
}

// getEmotions reports the observation log aggregated per label.
func (s *Server) getEmotions(w http.ResponseWriter, r *http.Request) {
	labels, err := s.store.Emotions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondLectureError(w, err)
		return
	}

	counts := make(map[string]int)
	for _, label := range labels {
		counts[label]++
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"total":  len(labels),
		"counts": counts,
	})
}

func (s *Server) startRetrain(w http.ResponseWriter, r *http.Request) {
	// Detached context: the retrain outlives the request.
	s.retrainer.Trigger(context.WithoutCancel(r.Context()))
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}
