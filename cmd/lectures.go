package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/fuskar/attendance/internal/config"
	"github.com/fuskar/attendance/internal/notify"
)

var lecturesCmd = &cobra.Command{
	Use:   "lectures",
	Short: "List lectures that are currently running",
	RunE:  runLectures,
}

var stopCmd = &cobra.Command{
	Use:   "stop [lecture-id]",
	Short: "Stop a running lecture and lock its record",
	Args:  cobra.ExactArgs(1),
	RunE:  runStop,
}

var presenceCmd = &cobra.Command{
	Use:   "presence [lecture-id]",
	Short: "Show the students recorded present for a lecture",
	Args:  cobra.ExactArgs(1),
	RunE:  runPresence,
}

func init() {
	rootCmd.AddCommand(lecturesCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(presenceCmd)
}

func runLectures(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	pool, lectures, err := openLectureStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	active, err := lectures.ActiveLectures(ctx)
	if err != nil {
		return err
	}
	if len(active) == 0 {
		fmt.Println("No running lectures")
		return nil
	}

	for _, l := range active {
		fmt.Printf("%s  %s  started %s\n", l.ID, l.CourseID, l.StartedAt.Format(time.RFC3339))
	}
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	log := newLog()
	ctx := context.Background()

	pool, lectures, err := openLectureStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	lecture, err := lectures.EndLecture(ctx, args[0])
	if err != nil {
		return err
	}

	newNotifier(cfg, log).Notify(ctx, notify.Event{
		Type:      notify.EventLectureStopped,
		LectureID: lecture.ID,
		CourseID:  lecture.CourseID,
		At:        time.Now(),
	})

	fmt.Printf("Lecture %s stopped\n", lecture.ID)
	return nil
}

func runPresence(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	pool, lectures, err := openLectureStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	present, err := lectures.Presence(ctx, args[0])
	if err != nil {
		return err
	}

	sort.Strings(present)
	for _, id := range present {
		fmt.Println(id)
	}
	fmt.Printf("%d students present\n", len(present))
	return nil
}
