package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed emotions.yaml
var emotionsYAML []byte

type Config struct {
	Vision   VisionConfig
	Camera   CameraConfig
	Engine   EngineConfig
	Database DatabaseConfig
	Roster   RosterConfig
	Notify   NotifyConfig
	Emotions EmotionsConfig
}

type VisionConfig struct {
	URL string // face detection / embedding / emotion service (defaults to http://localhost:8000)
	Dim int    // embedding dimension (defaults to 128)
}

type CameraConfig struct {
	URL string // snapshot endpoint returning the latest JPEG frame
}

type EngineConfig struct {
	TrainDir      string  // root of labeled training images, one folder per student id
	CacheDir      string  // where the embedding cache and classifier artifact live
	Confidence    float64 // confidence threshold for identity classification
	PreferredMode string  // "knn" or "svm" when two or more identities are trainable
	IntervalSec   int     // sleep between attendance cycles
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL for lecture state
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
	CacheBackend string // embedding cache backend: "file" (default) or "postgres"
}

type RosterConfig struct {
	DatabaseURL string // MariaDB DSN for the student-records database (read-only)
}

type NotifyConfig struct {
	WebhookURL string // optional webhook receiving lecture state changes
}

type EmotionsConfig struct {
	Labels             []string `yaml:"labels"`
	AdjacencyThreshold float64  `yaml:"adjacency_threshold"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float in (0, 1].
// Returns the default value if the env var is unset, empty, or out of range.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var emotions EmotionsConfig
	if err := yaml.Unmarshal(emotionsYAML, &emotions); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded emotions.yaml: " + err.Error())
	}
	if f := envFloat("ADJACENT_THRESHOLD", 0); f != 0 {
		emotions.AdjacencyThreshold = f
	}

	return &Config{
		Vision: VisionConfig{
			URL: envString("VISION_URL", "http://localhost:8000"),
			Dim: envInt("EMBEDDING_DIM", 128),
		},
		Camera: CameraConfig{
			URL: os.Getenv("CAMERA_URL"),
		},
		Engine: EngineConfig{
			TrainDir:      envString("TRAIN_DIR", "media/images"),
			CacheDir:      envString("CACHE_DIR", "cache"),
			Confidence:    envFloat("CONFIDENCE", 0.6),
			PreferredMode: envString("RECOGNITION_MODE", "knn"),
			IntervalSec:   envInt("ATTEND_INTERVAL", 2),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
			CacheBackend: envString("EMBED_CACHE_BACKEND", "file"),
		},
		Roster: RosterConfig{
			DatabaseURL: os.Getenv("ROSTER_DATABASE_URL"),
		},
		Notify: NotifyConfig{
			WebhookURL: os.Getenv("NOTIFY_WEBHOOK_URL"),
		},
		Emotions: emotions,
	}
}
