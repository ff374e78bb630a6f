package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Gemini
	GeminiAPIKey     string
	GeminiImageModel string
	GeminiEditModel  string
	GeminiTextModel  string

	// fal.ai
	FalAPIKey   string
	FalQueueURL string

	// Volcengine Ark
	ArkAPIKey     string
	ArkBaseURL    string
	ArkVideoModel string

	// VideoProvider selects the backend for video jobs: "fal" or "ark".
	VideoProvider string

	// Supabase
	SupabaseURL            string
	SupabasePublishableKey string
	SupabaseJWTSecret      string
	SupabaseStorageBucket  string

	// Database
	DatabaseURL string

	// Infrastructure
	RedisAddr     string
	RabbitMQURL   string
	RabbitMQQueue string
	QueueWorkers  int
	OTLPEndpoint  string

	// Generation
	GenerationMinInterval  time.Duration
	PollInterval           time.Duration
	VideoMaxPollAttempts   int
	UpscaleMaxPollAttempts int
	BatchConcurrency       int

	// Frames
	FFmpegPath       string
	FFprobePath      string
	FrameJPEGQuality int
	MaxUploadBytes   int64
	FrameSessionTTL  time.Duration

	// Server
	Port        string
	Environment string
	LogLevel    string
	LogFormat   string
}

// Load reads the configuration from the environment. A numeric or duration
// variable that is set but does not parse is an error, not its default.
func Load() (*Config, error) {
	var errs []error
	cfg := &Config{
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiImageModel: getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image-preview"),
		GeminiEditModel:  getEnv("GEMINI_EDIT_MODEL", "gemini-2.0-flash-exp"),
		GeminiTextModel:  getEnv("GEMINI_TEXT_MODEL", "gemini-1.5-flash"),

		FalAPIKey:   getEnv("FAL_KEY", ""),
		FalQueueURL: getEnv("FAL_QUEUE_URL", "https://queue.fal.run"),

		ArkAPIKey:     getEnv("ARK_API_KEY", ""),
		ArkBaseURL:    getEnv("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		ArkVideoModel: getEnv("ARK_VIDEO_MODEL", "doubao-seedance-1-0-pro-250528"),

		VideoProvider: getEnv("VIDEO_PROVIDER", "fal"),

		SupabaseURL:            getEnv("SUPABASE_URL", ""),
		SupabasePublishableKey: getEnv("SUPABASE_PUBLISHABLE_KEY", ""),
		SupabaseJWTSecret:      getEnv("SUPABASE_JWT_SECRET", ""),
		SupabaseStorageBucket:  getEnv("SUPABASE_STORAGE_BUCKET", "generated-media"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RabbitMQURL:   getEnv("RABBITMQ_URL", ""),
		RabbitMQQueue: getEnv("RABBITMQ_QUEUE", "generation.jobs"),
		QueueWorkers:  getEnvInt(&errs, "QUEUE_WORKERS", 4),
		OTLPEndpoint:  getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		GenerationMinInterval:  getEnvDuration(&errs, "GENERATION_MIN_INTERVAL", 5*time.Second),
		PollInterval:           getEnvDuration(&errs, "POLL_INTERVAL", 5*time.Second),
		VideoMaxPollAttempts:   getEnvInt(&errs, "VIDEO_MAX_POLL_ATTEMPTS", 60),
		UpscaleMaxPollAttempts: getEnvInt(&errs, "UPSCALE_MAX_POLL_ATTEMPTS", 30),
		BatchConcurrency:       getEnvInt(&errs, "BATCH_CONCURRENCY", 0),

		FFmpegPath:       getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:      getEnv("FFPROBE_PATH", "ffprobe"),
		FrameJPEGQuality: getEnvInt(&errs, "FRAME_JPEG_QUALITY", 4),
		MaxUploadBytes:   int64(getEnvInt(&errs, "MAX_UPLOAD_BYTES", 512<<20)),
		FrameSessionTTL:  getEnvDuration(&errs, "FRAME_SESSION_TTL", 2*time.Hour),

		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", ""),
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabasePublishableKey == "" {
		return fmt.Errorf("SUPABASE_PUBLISHABLE_KEY is required")
	}
	if c.SupabaseJWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	switch c.VideoProvider {
	case "fal":
		if c.FalAPIKey == "" {
			return fmt.Errorf("FAL_KEY is required")
		}
	case "ark":
		if c.ArkAPIKey == "" {
			return fmt.Errorf("ARK_API_KEY is required when VIDEO_PROVIDER=ark")
		}
		if c.FalAPIKey == "" {
			// upscale and stitch are only served by fal
			return fmt.Errorf("FAL_KEY is required")
		}
	default:
		return fmt.Errorf("VIDEO_PROVIDER must be \"fal\" or \"ark\", got %q", c.VideoProvider)
	}
	if c.GenerationMinInterval < 0 {
		return fmt.Errorf("GENERATION_MIN_INTERVAL must not be negative")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.VideoMaxPollAttempts <= 0 || c.UpscaleMaxPollAttempts <= 0 {
		return fmt.Errorf("poll attempt budgets must be positive")
	}
	if c.BatchConcurrency < 0 {
		return fmt.Errorf("BATCH_CONCURRENCY must not be negative")
	}
	if c.FrameJPEGQuality < 2 || c.FrameJPEGQuality > 31 {
		return fmt.Errorf("FRAME_JPEG_QUALITY must be between 2 and 31")
	}
	return nil
}

// IsProduction reports whether the service runs with production defaults.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(errs *[]error, key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be an integer, got %q", key, value))
		return defaultValue
	}
	return n
}

func getEnvDuration(errs *[]error, key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be a duration such as 5s, got %q", key, value))
		return defaultValue
	}
	return d
}
