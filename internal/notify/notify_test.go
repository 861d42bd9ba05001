package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLog() *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(logger)
}

func TestWebhook_Notify(t *testing.T) {
	received := make(chan Event, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
		var event Event
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			t.Errorf("failed to decode event: %v", err)
		}
		received <- event
	}))
	defer server.Close()

	w := NewWebhook(server.URL, testLog())
	w.Notify(context.Background(), Event{
		Type:      EventStudentPresent,
		LectureID: "lec-1",
		StudentID: "42",
		At:        time.Now(),
	})

	select {
	case event := <-received:
		if event.Type != EventStudentPresent || event.StudentID != "42" {
			t.Errorf("unexpected event: %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook never received the event")
	}
}

func TestWebhook_DeliveryFailureIsSwallowed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	w := NewWebhook(server.URL, testLog())
	// Must not panic or block; failures are logged and dropped.
	w.Notify(context.Background(), Event{Type: EventLectureStopped, LectureID: "lec-1"})
}
