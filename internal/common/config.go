package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Registry RegistryConfig
	Classify ClassifyConfig
	OCR      OCRConfig
	Log      LogConfig
	Journal  JournalConfig
	Report   ReportConfig
	Archive  ArchiveConfig
	Server   ServerConfig
	Watch    WatchConfig
}

// RegistryConfig points at the payer registry file.
type RegistryConfig struct {
	Path string // empty -> built-in registry
}

// ClassifyConfig holds keyword matching configuration
type ClassifyConfig struct {
	Threshold float64
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	OCRmyPDF    string
	Pdftoppm    string
	Language    string
	Deskew      bool
	TessdataDir string
	Timeout     time.Duration
	Fallback    bool // use the in-process recognizer when ocrmypdf yields no text
}

// LogConfig holds per-run log file configuration
type LogConfig struct {
	Dir   string
	Debug bool
}

// JournalConfig holds run journal configuration
type JournalConfig struct {
	DSN string // empty disables the journal
}

// ReportConfig holds XLSX report configuration
type ReportConfig struct {
	Path string // empty disables the report
}

// ArchiveConfig holds output archive configuration
type ArchiveConfig struct {
	Bucket  string // empty disables archiving
	Timeout time.Duration
}

// ServerConfig holds daemon configuration
type ServerConfig struct {
	GRPCAddr     string
	QueueSize    int
	Workers      int
	RunTimeout   time.Duration
	DefaultPayer string
}

// WatchConfig holds folder watcher configuration
type WatchConfig struct {
	Root     string
	Debounce time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Registry: RegistryConfig{
			Path: getEnv("EPS_REGISTRY", ""),
		},
		Classify: ClassifyConfig{
			Threshold: getEnvAsFloat64("CLASSIFY_THRESHOLD", 80),
		},
		OCR: OCRConfig{
			OCRmyPDF:    getEnv("OCRMYPDF_BIN", "ocrmypdf"),
			Pdftoppm:    getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Language:    getEnv("OCR_LANG", "spa"),
			Deskew:      getEnvAsBool("OCR_DESKEW", true),
			TessdataDir: getEnv("TESSDATA_PREFIX", ""),
			Timeout:     getEnvAsDuration("OCR_TIMEOUT", 5*time.Minute),
			Fallback:    getEnvAsBool("OCR_FALLBACK", true),
		},
		Log: LogConfig{
			Dir:   getEnv("LOG_DIR", "."),
			Debug: getEnvAsBool("LOG_DEBUG", false),
		},
		Journal: JournalConfig{
			DSN: getEnv("JOURNAL_DSN", ""),
		},
		Report: ReportConfig{
			Path: getEnv("REPORT_PATH", ""),
		},
		Archive: ArchiveConfig{
			Bucket:  getEnv("ARCHIVE_BUCKET", ""),
			Timeout: getEnvAsDuration("ARCHIVE_TIMEOUT", 50*time.Second),
		},
		Server: ServerConfig{
			GRPCAddr:     getEnv("GRPC_ADDR", ":8080"),
			QueueSize:    getEnvAsInt("QUEUE_SIZE", 64),
			Workers:      getEnvAsInt("QUEUE_WORKERS", 1),
			RunTimeout:   getEnvAsDuration("RUN_TIMEOUT", 2*time.Hour),
			DefaultPayer: getEnv("DEFAULT_PAYER", ""),
		},
		Watch: WatchConfig{
			Root:     getEnv("WATCH_ROOT", ""),
			Debounce: getEnvAsDuration("WATCH_DEBOUNCE", 10*time.Second),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Classify.Threshold < 0 || c.Classify.Threshold > 100 {
		return NewAppError(KindConfig, "", "CLASSIFY_THRESHOLD must be within 0..100", ErrInvalidInput)
	}
	if c.OCR.OCRmyPDF == "" {
		return NewAppError(KindConfig, "", "OCRMYPDF_BIN is required", ErrInvalidInput)
	}
	if c.Server.Workers <= 0 {
		return NewAppError(KindConfig, "", "QUEUE_WORKERS must be positive", ErrInvalidInput)
	}
	return nil
}
