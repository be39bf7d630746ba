package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the ClipMiner server.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Storage     StorageConfig
	Media       MediaConfig
	Pipeline    PipelineConfig
	Transcriber TranscriberConfig
	Classifier  ClassifierConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type StorageConfig struct {
	Bucket    string
	Region    string
	Endpoint  string
	KeyPrefix string
	AccessKey string
	SecretKey string
}

type MediaConfig struct {
	FFmpegPath  string
	FFprobePath string
	YTDLPPath   string
	WorkDir     string
	CookiesFile string
}

type PipelineConfig struct {
	ChunkDurationSecs int
	ChunkThresholdMB  int
	Workers           int
	QueueSize         int
	CheckpointDir     string
	HeartbeatInterval time.Duration
	KeepIntermediates bool
}

type TranscriberConfig struct {
	Provider string
	Timeout  time.Duration
	OpenAI   OpenAIConfig
}

type ClassifierConfig struct {
	Provider string
	Timeout  time.Duration
	OpenAI   OpenAIConfig
}

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

var validProviders = map[string]bool{
	"openai": true,
	"mock":   true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	openAIBase := envString("OPENAI_BASE_URL", "https://api.openai.com/v1")
	openAIKey := os.Getenv("OPENAI_API_KEY")

	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("CLIPMINER_PORT", 8080),
			Env:  envString("CLIPMINER_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Storage: StorageConfig{
			Bucket:    os.Getenv("S3_BUCKET"),
			Region:    envString("S3_REGION", "us-east-1"),
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			KeyPrefix: envString("S3_KEY_PREFIX", "video-segments"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
		},
		Media: MediaConfig{
			FFmpegPath:  envString("FFMPEG_PATH", "ffmpeg"),
			FFprobePath: envString("FFPROBE_PATH", "ffprobe"),
			YTDLPPath:   envString("YTDLP_PATH", "yt-dlp"),
			WorkDir:     envString("MEDIA_WORK_DIR", "downloads"),
			CookiesFile: os.Getenv("MEDIA_COOKIES_FILE"),
		},
		Pipeline: PipelineConfig{
			ChunkDurationSecs: envInt("PIPELINE_CHUNK_DURATION_SECS", 600),
			ChunkThresholdMB:  envInt("PIPELINE_CHUNK_THRESHOLD_MB", 25),
			Workers:           envInt("PIPELINE_WORKERS", 2),
			QueueSize:         envInt("PIPELINE_QUEUE_SIZE", 32),
			CheckpointDir:     envString("PIPELINE_CHECKPOINT_DIR", "checkpoints"),
			HeartbeatInterval: envDurationSecs("PIPELINE_HEARTBEAT_SECS", 10*time.Second),
			KeepIntermediates: envBool("PIPELINE_KEEP_INTERMEDIATES", false),
		},
		Transcriber: TranscriberConfig{
			Provider: os.Getenv("TRANSCRIBER_PROVIDER"),
			Timeout:  envDurationSecs("TRANSCRIBER_TIMEOUT_SECS", 60*time.Second),
			OpenAI: OpenAIConfig{
				BaseURL: openAIBase,
				APIKey:  openAIKey,
				Model:   envString("OPENAI_STT_MODEL", "whisper-1"),
			},
		},
		Classifier: ClassifierConfig{
			Provider: os.Getenv("CLASSIFIER_PROVIDER"),
			Timeout:  envDurationSecs("CLASSIFIER_TIMEOUT_SECS", 60*time.Second),
			OpenAI: OpenAIConfig{
				BaseURL: openAIBase,
				APIKey:  openAIKey,
				Model:   envString("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
			},
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Storage.Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required")
	}
	if c.Storage.Endpoint != "" && !strings.HasPrefix(c.Storage.Endpoint, "http://") && !strings.HasPrefix(c.Storage.Endpoint, "https://") {
		return fmt.Errorf("S3_ENDPOINT must start with http:// or https://, got %q", c.Storage.Endpoint)
	}
	if (c.Storage.AccessKey == "") != (c.Storage.SecretKey == "") {
		return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY must be set together")
	}

	if c.Pipeline.ChunkDurationSecs <= 0 {
		return fmt.Errorf("PIPELINE_CHUNK_DURATION_SECS must be positive, got %d", c.Pipeline.ChunkDurationSecs)
	}
	if c.Pipeline.ChunkThresholdMB <= 0 {
		return fmt.Errorf("PIPELINE_CHUNK_THRESHOLD_MB must be positive, got %d", c.Pipeline.ChunkThresholdMB)
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("PIPELINE_WORKERS must be at least 1, got %d", c.Pipeline.Workers)
	}

	if c.Transcriber.Provider == "" {
		return fmt.Errorf("TRANSCRIBER_PROVIDER is required")
	}
	if !validProviders[c.Transcriber.Provider] {
		return fmt.Errorf("TRANSCRIBER_PROVIDER must be one of openai, mock; got %q", c.Transcriber.Provider)
	}

	if c.Classifier.Provider == "" {
		return fmt.Errorf("CLASSIFIER_PROVIDER is required")
	}
	if !validProviders[c.Classifier.Provider] {
		return fmt.Errorf("CLASSIFIER_PROVIDER must be one of openai, mock; got %q", c.Classifier.Provider)
	}

	if c.Transcriber.Provider == "openai" && c.Transcriber.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when TRANSCRIBER_PROVIDER is openai")
	}
	if c.Classifier.Provider == "openai" && c.Classifier.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when CLASSIFIER_PROVIDER is openai")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
