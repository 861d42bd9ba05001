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

	"github.com/fuskar/attendance/internal/classifier"
	"github.com/fuskar/attendance/internal/config"
	"github.com/fuskar/attendance/internal/training"
	"github.com/fuskar/attendance/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the lecture management API",
	Long: `Start the HTTP API for managing lectures: create and stop lectures,
inspect presence and emotion records, and schedule classifier retrains.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

func runServe(cmd *cobra.Command, args []string) error {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	cfg := config.Load()
	log := newLog()
	ctx := context.Background()

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
	if err := pipeline.LoadFromDisk(); err != nil && !errors.Is(err, classifier.ErrNoArtifact) {
		return err
	}

	coordinator := training.NewCoordinator(cache, pipeline, log)
	server := web.NewServer(host, port, lectures, coordinator, newNotifier(cfg, log), log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting attendance API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
