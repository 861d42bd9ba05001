// Package session runs the live attendance loop for one lecture: grab a
// frame, find faces, record emotions, match identities, mark presence.
package session

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fuskar/attendance/internal/camera"
	"github.com/fuskar/attendance/internal/classifier"
	"github.com/fuskar/attendance/internal/notify"
	"github.com/fuskar/attendance/internal/store"
	"github.com/fuskar/attendance/internal/vision"
)

// FaceDetector finds faces and their embeddings in a frame.
type FaceDetector interface {
	DetectFaces(ctx context.Context, imageData []byte) (*vision.FaceResponse, error)
}

// EmotionDetector selects emotion labels for a cropped face.
type EmotionDetector interface {
	Detect(ctx context.Context, faceCrop []byte) ([]string, error)
}

// ClassifierSource yields the classifier to use for the next cycle, so a
// retrain mid-lecture takes effect without restarting the session.
type ClassifierSource interface {
	Current() (classifier.Classifier, error)
}

// Config wires a Session.
type Config struct {
	LectureID   string
	Store       store.LectureStore
	Roster      store.RosterReader
	Camera      camera.Frames
	Detector    FaceDetector
	Emotions    EmotionDetector
	Classifiers ClassifierSource
	Notifier    notify.Notifier
	Interval    time.Duration
	Log         *logrus.Entry
}

// Session drives the attendance loop for a single lecture until the lecture
// is stopped. Every per-cycle failure is logged and the loop carries on; a
// bad frame or an unreachable detector costs one observation, not the
// lecture.
type Session struct {
	cfg Config
	log *logrus.Entry
}

// New creates a session for the configured lecture.
func New(cfg Config) *Session {
	return &Session{
		cfg: cfg,
		log: cfg.Log.WithField("lecture", cfg.LectureID),
	}
}

// Run loops until the lecture is stopped or the context is cancelled. The
// stop flag is re-read from the store every cycle, so a stop issued from
// another process ends the loop within one interval.
func (s *Session) Run(ctx context.Context) error {
	lecture, err := s.cfg.Store.GetLecture(ctx, s.cfg.LectureID)
	if err != nil {
		return err
	}

	registered, err := s.cfg.Roster.RegisteredStudents(ctx, lecture.CourseID)
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"course":     lecture.CourseID,
		"registered": len(registered),
	}).Info("attendance session started")

	for {
		lecture, err := s.cfg.Store.GetLecture(ctx, s.cfg.LectureID)
		if err != nil {
			return err
		}
		if lecture.Stopped() {
			s.log.Info("lecture stopped, ending session")
			return nil
		}

		s.cycle(ctx, registered)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.Interval):
		}
	}
}

// cycle processes one frame. Failures are logged, never returned: the next
// cycle gets a fresh chance.
func (s *Session) cycle(ctx context.Context, registered map[string]struct{}) {
	started := time.Now()
	defer func() {
		s.log.WithField("took", time.Since(started)).Debug("cycle finished")
	}()

	frame, err := s.cfg.Camera.Next(ctx)
	if err != nil {
		s.log.WithError(err).Warn("no frame this cycle")
		return
	}

	resp, err := s.cfg.Detector.DetectFaces(ctx, frame)
	if err != nil {
		s.log.WithError(err).Warn("face detection failed")
		return
	}
	s.log.WithField("faces", len(resp.Faces)).Debug("frame processed")
	if len(resp.Faces) == 0 {
		return
	}

	embeddings := make([][]float32, 0, len(resp.Faces))
	for _, face := range resp.Faces {
		embeddings = append(embeddings, face.Embedding)
		s.observeEmotions(ctx, frame, face)
	}

	cls, err := s.cfg.Classifiers.Current()
	if err != nil {
		s.log.WithError(err).Error("no classifier available, cannot attribute faces")
		return
	}

	s.markPresent(ctx, cls.Predict(embeddings), registered)
}

// markPresent records each recognized, registered identity. The store refuses
// the write once the lecture is locked, so a result computed before the stop
// but written after it is silently discarded.
func (s *Session) markPresent(ctx context.Context, identities []string, registered map[string]struct{}) {
	seen := make(map[string]struct{}, len(identities))
	for _, id := range identities {
		if id == classifier.Unknown {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if _, ok := registered[id]; !ok {
			s.log.WithField("student", id).Debug("recognized face not registered for this course")
			continue
		}

		added, err := s.cfg.Store.AddPresence(ctx, s.cfg.LectureID, id)
		if err != nil {
			s.log.WithError(err).WithField("student", id).Error("failed to record presence")
			continue
		}
		if added {
			s.log.WithField("student", id).Info("student marked present")
			s.cfg.Notifier.Notify(ctx, notify.Event{
				Type:      notify.EventStudentPresent,
				LectureID: s.cfg.LectureID,
				StudentID: id,
				At:        time.Now(),
			})
		}
	}
}

// observeEmotions scores one face crop and appends the selected labels.
func (s *Session) observeEmotions(ctx context.Context, frame []byte, face vision.FaceDetection) {
	crop, err := vision.CropFace(frame, face.BBox)
	if err != nil {
		s.log.WithError(err).Debug("face crop failed")
		return
	}

	labels, err := s.cfg.Emotions.Detect(ctx, crop)
	if err != nil {
		s.log.WithError(err).Warn("emotion scoring failed")
		return
	}

	for _, label := range labels {
		if err := s.cfg.Store.AppendEmotion(ctx, s.cfg.LectureID, label); err != nil {
			s.log.WithError(err).WithField("emotion", label).Error("failed to record emotion")
		}
	}
}
