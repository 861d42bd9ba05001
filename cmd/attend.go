package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fuskar/attendance/internal/camera"
	"github.com/fuskar/attendance/internal/classifier"
	"github.com/fuskar/attendance/internal/config"
	"github.com/fuskar/attendance/internal/emotion"
	"github.com/fuskar/attendance/internal/notify"
	"github.com/fuskar/attendance/internal/session"
	"github.com/fuskar/attendance/internal/vision"
)

var attendCmd = &cobra.Command{
	Use:   "attend [course-id]",
	Short: "Run the attendance loop for a lecture",
	Long: `Start (or resume) a lecture and watch the classroom camera until the
lecture is stopped. Every cycle a frame is captured, faces are detected,
emotions are recorded and recognized registered students are marked present.

The loop also ends when the lecture is stopped from another process, for
example through the web API.`,
	Args: cobra.ExactArgs(1),
	RunE: runAttend,
}

func init() {
	rootCmd.AddCommand(attendCmd)

	attendCmd.Flags().String("lecture", "", "Resume an existing lecture instead of creating one")
	attendCmd.Flags().StringSlice("students", nil, "Registered student ids, used when no records database is configured")
}

func runAttend(cmd *cobra.Command, args []string) error {
	courseID := args[0]
	lectureID := mustGetString(cmd, "lecture")
	staticStudents := mustGetStringSlice(cmd, "students")

	cfg := config.Load()
	log := newLog()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Camera.URL == "" {
		return errors.New("CAMERA_URL environment variable is required")
	}

	pool, lectures, err := openLectureStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	cache, err := newEmbeddingCache(cfg, pool, newExtractor(cfg))
	if err != nil {
		return err
	}

	pipeline, err := newPipeline(cfg, cache, log)
	if err != nil {
		return err
	}
	if err := pipeline.LoadFromDisk(); err != nil {
		if errors.Is(err, classifier.ErrNoArtifact) {
			return errors.New("no trained classifier found, run `attendance train` first")
		}
		return err
	}

	roster, closeRoster, err := newRoster(cfg, staticStudents, courseID)
	if err != nil {
		return err
	}
	defer closeRoster()

	if lectureID == "" {
		lecture, err := lectures.CreateLecture(ctx, courseID)
		if err != nil {
			return err
		}
		lectureID = lecture.ID
		fmt.Printf("Lecture started: %s\n", lectureID)
	} else {
		lecture, err := lectures.GetLecture(ctx, lectureID)
		if err != nil {
			return err
		}
		if lecture.Stopped() {
			return fmt.Errorf("lecture %s has already ended", lectureID)
		}
		fmt.Printf("Resuming lecture: %s\n", lectureID)
	}

	visionClient := vision.NewClient(cfg.Vision.URL)
	notifier := newNotifier(cfg, log)

	s := session.New(session.Config{
		LectureID:   lectureID,
		Store:       lectures,
		Roster:      roster,
		Camera:      camera.NewSnapshotClient(cfg.Camera.URL, log),
		Detector:    visionClient,
		Emotions:    emotion.NewDetector(visionClient, cfg.Emotions.Labels, cfg.Emotions.AdjacencyThreshold),
		Classifiers: pipeline,
		Notifier:    notifier,
		Interval:    time.Duration(cfg.Engine.IntervalSec) * time.Second,
		Log:         log,
	})

	// Ctrl+C stops the lecture, which lets the loop exit cleanly and lock
	// the record behind it.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nStopping lecture...")
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if lecture, err := lectures.EndLecture(stopCtx, lectureID); err != nil {
			log.WithError(err).Error("failed to stop lecture")
			cancel()
		} else {
			notifier.Notify(stopCtx, notify.Event{
				Type:      notify.EventLectureStopped,
				LectureID: lecture.ID,
				CourseID:  lecture.CourseID,
				At:        time.Now(),
			})
		}
	}()

	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	present, err := lectures.Presence(context.Background(), lectureID)
	if err != nil {
		return err
	}
	fmt.Printf("Lecture %s ended with %d students present\n", lectureID, len(present))
	return nil
}
