package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	appOnce   sync.Once
	appConfig *Config
	appErr    error
)

// Config is the full service configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Upload     UploadConfig     `yaml:"upload"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Redis      RedisConfig      `yaml:"redis"`
	Session    SessionConfig    `yaml:"session"`
	Worker     WorkerConfig     `yaml:"worker"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	Mode            string        `yaml:"mode"` // gin mode: debug, release, test
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	AllowOrigins    []string      `yaml:"allowOrigins"`
}

type LogConfig struct {
	Level       string   `yaml:"level"`
	Encoding    string   `yaml:"encoding"`
	OutputPaths []string `yaml:"outputPaths"`
	ErrorPaths  []string `yaml:"errorPaths"`
}

type UploadConfig struct {
	MaxFileSize  int64    `yaml:"maxFileSize"` // bytes
	AllowedTypes []string `yaml:"allowedTypes"`
}

// ExtractionConfig selects how the OCR step is run.
// Backend "local" runs the simulated extractor in-process, "queue" hands it to cmd/worker.
type ExtractionConfig struct {
	Backend      string        `yaml:"backend"`
	Delay        time.Duration `yaml:"delay"`
	PollInterval time.Duration `yaml:"pollInterval"`
	Timeout      time.Duration `yaml:"timeout"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"`
	DB   int    `yaml:"db"`
}

type SessionConfig struct {
	MaxSessions     int           `yaml:"maxSessions"`
	MaxAge          time.Duration `yaml:"maxAge"`
	CleanupInterval time.Duration `yaml:"cleanupInterval"`
}

type WorkerConfig struct {
	Concurrency int            `yaml:"concurrency"`
	Queues      map[string]int `yaml:"queues"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			Mode:            "release",
			ShutdownTimeout: 5 * time.Second,
			AllowOrigins:    []string{"*"},
		},
		Log: LogConfig{
			Level:       "info",
			Encoding:    "json",
			OutputPaths: []string{"stdout", "logs/app.log"},
			ErrorPaths:  []string{"stderr", "logs/error.log"},
		},
		Upload: UploadConfig{
			MaxFileSize:  10 * 1024 * 1024, // 10MB
			AllowedTypes: []string{"image/jpeg", "image/jpg", "image/png", "image/gif"},
		},
		Extraction: ExtractionConfig{
			Backend:      "local",
			Delay:        3 * time.Second,
			PollInterval: 500 * time.Millisecond,
			Timeout:      2 * time.Minute,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			DB:   0,
		},
		Session: SessionConfig{
			MaxSessions:     1000,
			MaxAge:          30 * time.Minute,
			CleanupInterval: time.Minute,
		},
		Worker: WorkerConfig{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	}
}

// Get loads the configuration once and caches it for the process lifetime.
func Get() (*Config, error) {
	appOnce.Do(func() {
		// .env lives in the project root, next to this package's parent dir
		_, filename, _, _ := runtime.Caller(0)
		rootDir := filepath.Dir(filepath.Dir(filename))
		envPath := filepath.Join(rootDir, ".env")

		if err := godotenv.Load(envPath); err != nil {
			log.Printf("Warning: .env file not found at %s, falling back to environment variables", envPath)
		}

		path := os.Getenv("CARDOCR_CONFIG")
		if path == "" {
			if _, err := os.Stat("config.yaml"); err == nil {
				path = "config.yaml"
			}
		}
		appConfig, appErr = Load(path)
	})
	return appConfig, appErr
}

// Load builds a Config from defaults, the optional YAML file at path and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.Upload.MaxFileSize <= 0 {
		return fmt.Errorf("upload.maxFileSize must be positive, got %d", c.Upload.MaxFileSize)
	}
	if len(c.Upload.AllowedTypes) == 0 {
		return fmt.Errorf("upload.allowedTypes must not be empty")
	}
	switch c.Extraction.Backend {
	case "local", "queue":
	default:
		return fmt.Errorf("unsupported extraction backend: %s", c.Extraction.Backend)
	}
	if c.Extraction.Delay < 0 {
		return fmt.Errorf("extraction.delay must not be negative")
	}
	if c.Session.MaxSessions <= 0 {
		return fmt.Errorf("session.maxSessions must be positive, got %d", c.Session.MaxSessions)
	}
	if c.Session.CleanupInterval <= 0 {
		return fmt.Errorf("session.cleanupInterval must be positive, got %s", c.Session.CleanupInterval)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("GIN_MODE"); v != "" {
		cfg.Server.Mode = v
	}
	if v := os.Getenv("CORS_ALLOW_ORIGINS"); v != "" {
		cfg.Server.AllowOrigins = splitList(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_ENCODING"); v != "" {
		cfg.Log.Encoding = v
	}
	if v := os.Getenv("LOG_OUTPUT_PATHS"); v != "" {
		cfg.Log.OutputPaths = splitList(v)
	}
	if v := os.Getenv("UPLOAD_MAX_FILE_SIZE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid UPLOAD_MAX_FILE_SIZE: %w", err)
		}
		cfg.Upload.MaxFileSize = n
	}
	if v := os.Getenv("EXTRACTION_BACKEND"); v != "" {
		cfg.Extraction.Backend = v
	}
	if v := os.Getenv("EXTRACTION_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid EXTRACTION_DELAY: %w", err)
		}
		cfg.Extraction.Delay = d
	}
	if v := os.Getenv("SESSION_CLEANUP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SESSION_CLEANUP_INTERVAL: %w", err)
		}
		cfg.Session.CleanupInterval = d
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		cfg.Redis.DB = n
	}
	if v := os.Getenv("WORKER_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid WORKER_CONCURRENCY: %w", err)
		}
		cfg.Worker.Concurrency = n
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
