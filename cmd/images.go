package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fuskar/attendance/internal/config"
	"github.com/fuskar/attendance/internal/training"
)

var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "Manage the labeled training images",
}

var imagesAddCmd = &cobra.Command{
	Use:   "add [student-id] [file...]",
	Short: "Add training images for a student and retrain",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runImagesAdd,
}

var imagesRemoveCmd = &cobra.Command{
	Use:   "rm [file...]",
	Short: "Remove training images and retrain without them",
	Long: `Remove training images from the training directory. The cached
embeddings are invalidated before the retrain, so the removed faces cannot
influence the new classifier.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImagesRemove,
}

func init() {
	rootCmd.AddCommand(imagesCmd)
	imagesCmd.AddCommand(imagesAddCmd)
	imagesCmd.AddCommand(imagesRemoveCmd)
}

func newCoordinator(ctx context.Context, cfg *config.Config) (*training.Coordinator, func(), error) {
	log := newLog()

	pool, _, err := openLectureStorePermissive(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	cache, err := newEmbeddingCache(cfg, pool, newExtractor(cfg))
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, nil, err
	}

	pipeline, err := newPipeline(cfg, cache, log)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, nil, err
	}

	cleanup := func() {
		if pool != nil {
			pool.Close()
		}
	}
	return training.NewCoordinator(cache, pipeline, log), cleanup, nil
}

func runImagesAdd(cmd *cobra.Command, args []string) error {
	studentID := args[0]
	files := args[1:]

	cfg := config.Load()
	ctx := context.Background()

	targetDir := filepath.Join(cfg.Engine.TrainDir, studentID)
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return fmt.Errorf("failed to create identity directory: %w", err)
	}

	for _, src := range files {
		if err := copyFile(src, filepath.Join(targetDir, filepath.Base(src))); err != nil {
			return err
		}
	}
	fmt.Printf("Added %d images for student %s\n", len(files), studentID)

	coordinator, cleanup, err := newCoordinator(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := coordinator.OnImageAdded(ctx); err != nil {
		return fmt.Errorf("retrain failed: %w", err)
	}
	fmt.Println("Classifier retrained")
	return nil
}

func runImagesRemove(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	for _, path := range args {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	fmt.Printf("Removed %d images\n", len(args))

	coordinator, cleanup, err := newCoordinator(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := coordinator.OnImageRemoved(ctx, args...); err != nil {
		return fmt.Errorf("retrain failed: %w", err)
	}
	fmt.Println("Classifier retrained")
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
