// Package notify pushes attendance events to an external webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Event is one attendance fact worth telling the outside world about.
type Event struct {
	Type      string    `json:"type"`
	LectureID string    `json:"lecture_id"`
	CourseID  string    `json:"course_id,omitempty"`
	StudentID string    `json:"student_id,omitempty"`
	At        time.Time `json:"at"`
}

const (
	EventStudentPresent = "student_present"
	EventLectureStopped = "lecture_stopped"
)

// Notifier delivers events. Delivery is best-effort; the attendance loop
// never blocks on it.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// Webhook POSTs events as JSON. Failures are logged and dropped.
type Webhook struct {
	url        string
	httpClient *http.Client
	log        *logrus.Entry
}

// NewWebhook creates a webhook notifier.
func NewWebhook(url string, log *logrus.Entry) *Webhook {
	return &Webhook{
		url: url,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		log: log,
	}
}

func (w *Webhook) Notify(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		w.log.WithError(err).Error("failed to encode notification")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		w.log.WithError(err).Error("failed to create notification request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		w.log.WithError(err).Warn("notification delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		w.log.WithError(fmt.Errorf("webhook returned status %d", resp.StatusCode)).
			Warn("notification delivery failed")
	}
}

// Nop discards all events, for setups without a webhook.
type Nop struct{}

func (Nop) Notify(ctx context.Context, event Event) {}
