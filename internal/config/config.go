// Package config reads the scanner's settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ironsheep/form-scanner/internal/detection"
	"github.com/ironsheep/form-scanner/internal/imaging"
)

type Config struct {
	Port string

	// Storage
	DataDir     string
	ResultsDir  string
	DatabaseURL string

	// Worker pools, 0 means one per CPU
	ExtractWorkers int
	DecodeWorkers  int

	// Upload limits
	MaxUploadBytes int64

	// Page reading
	GrayShade         int
	PDFDensity        int
	PDFFallback       bool
	DebugDir          string
	RefineEstimate    bool
	LastExceedingWins bool

	ShutdownTimeout time.Duration
	LogLevel        string
}

func Load() Config {
	cfg := Config{
		Port: envOr("FORMSCAN_PORT", "8080"),

		DataDir:     envOr("FORMSCAN_DATA_DIR", "./data/uploads"),
		ResultsDir:  envOr("FORMSCAN_RESULTS_DIR", "./data/results"),
		DatabaseURL: os.Getenv("FORMSCAN_DATABASE_URL"),

		ExtractWorkers: envInt("FORMSCAN_EXTRACT_WORKERS", 0),
		DecodeWorkers:  envInt("FORMSCAN_DECODE_WORKERS", 0),

		MaxUploadBytes: envInt64("FORMSCAN_MAX_UPLOAD_BYTES", 52428800), // 50MB

		GrayShade:         envInt("FORMSCAN_GRAY_SHADE", imaging.DefaultGrayShade),
		PDFDensity:        envInt("FORMSCAN_PDF_DENSITY", 200),
		PDFFallback:       envBool("FORMSCAN_PDF_FALLBACK", true),
		DebugDir:          os.Getenv("FORMSCAN_DEBUG_DIR"),
		RefineEstimate:    envBool("FORMSCAN_REFINE_ESTIMATE", false),
		LastExceedingWins: envBool("FORMSCAN_LAST_EXCEEDING_WINS", false),

		ShutdownTimeout: envDuration("FORMSCAN_SHUTDOWN_TIMEOUT", 30*time.Second),
		LogLevel:        strings.ToLower(envOr("FORMSCAN_LOG_LEVEL", "info")),
	}

	if cfg.ExtractWorkers < 0 {
		cfg.ExtractWorkers = 0
	}
	if cfg.DecodeWorkers < 0 {
		cfg.DecodeWorkers = 0
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.PDFDensity <= 0 {
		cfg.PDFDensity = 200
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	return cfg
}

func (c Config) Validate() error {
	if c.GrayShade < 0 || c.GrayShade > 255 {
		return fmt.Errorf("FORMSCAN_GRAY_SHADE must be between 0 and 255, got %d", c.GrayShade)
	}
	if _, ok := levels[c.LogLevel]; !ok {
		return fmt.Errorf("FORMSCAN_LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel)
	}
	if c.DataDir == "" {
		return fmt.Errorf("FORMSCAN_DATA_DIR is required")
	}
	if c.DatabaseURL == "" && c.ResultsDir == "" {
		return fmt.Errorf("FORMSCAN_RESULTS_DIR is required without FORMSCAN_DATABASE_URL")
	}
	return nil
}

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Level returns the configured log level, info if it is not recognized.
func (c Config) Level() slog.Level {
	if l, ok := levels[c.LogLevel]; ok {
		return l
	}
	return slog.LevelInfo
}

// Params returns the detection tolerances with the configured policies.
func (c Config) Params() detection.Params {
	p := detection.DefaultParams()
	p.RefineEstimate = c.RefineEstimate
	p.LastExceedingWins = c.LastExceedingWins
	return p
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
