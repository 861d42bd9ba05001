package cmd

import (
	"context"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/fuskar/attendance/internal/config"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Rebuild the face classifier from the training images",
	Long: `Rebuild the face classifier from the labeled training images.
Each subdirectory of the training directory is one student id; every image
inside it is embedded (cached embeddings are reused) and the classifier
artifact is written atomically to the cache directory.`,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	log := newLog()
	ctx := context.Background()

	// The postgres cache backend needs the shared pool; the file backend
	// works without any database.
	pool, _, err := openLectureStorePermissive(ctx, cfg)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	cache, err := newEmbeddingCache(cfg, pool, newExtractor(cfg))
	if err != nil {
		return err
	}

	pipeline, err := newPipeline(cfg, cache, log)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	pipeline.OnProgress = func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Embedding faces"),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetItsString("images"),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionSetPredictTime(true),
				progressbar.OptionFullWidth(),
			)
		}
		bar.Add(1)
	}

	if err := pipeline.Rebuild(ctx); err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	fmt.Println("\nClassifier trained and saved")
	return nil
}
