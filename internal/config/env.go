package config

import (
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/joho/godotenv"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
    Level        string
    Pretty       bool
    File         string
    MaxSizeMB    int
    MaxBackups   int
    MaxAgeDays   int
    Compress     bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
    Send          bool
    APIKey        string
    OrgID         string
    Dataset       string
    FlushInterval time.Duration
}

// ServerConfig defines the HTTP listener.
type ServerConfig struct {
    Port string
}

// ConvertConfig bounds a single upload and shapes the produced PDF.
type ConvertConfig struct {
    MaxImageWidth  int
    MaxPixels      int
    JPEGQuality    int
    MaxFiles       int
    MaxUploadMB    int
    MaxConcurrent  int
    OutputFilename string
}

// StorageConfig defines the shared upload root and its retention policy.
type StorageConfig struct {
    Root          string
    Retention     time.Duration
    SweepInterval time.Duration
}

// StoreConfig selects the conversion record backend. Empty RedisURL means in-process.
type StoreConfig struct {
    RedisURL string
}

// ArchiveConfig enables copying produced PDFs to S3.
type ArchiveConfig struct {
    Bucket          string
    Prefix          string
    Password        string
    Region          string
    Endpoint        string
    AccessKeyID     string
    SecretAccessKey string
}

// Config is the top-level configuration.
type Config struct {
    Logging LoggingConfig
    Axiom   AxiomConfig
    Server  ServerConfig
    Convert ConvertConfig
    Storage StorageConfig
    Store   StoreConfig
    Archive ArchiveConfig
}

// Load reads an optional .env file from the working directory and then builds the config.
// Variables already present in the environment are never overridden by the file.
func Load() Config {
    _ = godotenv.Load()
    return FromEnv()
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
    cfg := Config{}

    cfg.Logging = LoggingConfig{
        Level:      getEnv("LOG_LEVEL", "info"),
        Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
        File:       getEnv("LOG_FILE", "logs/imgpdf.log"),
        MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
        MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
        MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
        Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
    }

    baseDataset := getEnv("AXIOM_DATASET", "dev")
    cfg.Axiom = AxiomConfig{
        Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
        APIKey:        getEnv("AXIOM_API_KEY", ""),
        OrgID:         getEnv("AXIOM_ORG_ID", ""),
        Dataset:       baseDataset + "_imgpdf",
        FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
    }

    cfg.Server = ServerConfig{
        Port: getEnv("PORT", "3000"),
    }

    cfg.Convert = ConvertConfig{
        MaxImageWidth:  parseInt(getEnv("MAX_IMAGE_WIDTH", "1500"), 1500),
        MaxPixels:      parseInt(getEnv("MAX_IMAGE_PIXELS", "50000000"), 50000000),
        JPEGQuality:    clamp(parseInt(getEnv("JPEG_QUALITY", "90"), 90), 1, 100),
        MaxFiles:       parseInt(getEnv("MAX_FILES", "20"), 20),
        MaxUploadMB:    parseInt(getEnv("MAX_UPLOAD_MB", "64"), 64),
        MaxConcurrent:  parseInt(getEnv("MAX_CONCURRENT_CONVERSIONS", "4"), 4),
        OutputFilename: getEnv("OUTPUT_FILENAME", "converted.pdf"),
    }
    if cfg.Convert.MaxUploadMB <= 0 { cfg.Convert.MaxUploadMB = 64 }
    if cfg.Convert.MaxPixels <= 0 { cfg.Convert.MaxPixels = 50000000 }

    cfg.Storage = StorageConfig{
        Root:          getEnv("UPLOAD_DIR", "uploads"),
        Retention:     parseDuration(getEnv("RETENTION_WINDOW", "10m"), 10*time.Minute),
        SweepInterval: parseDuration(getEnv("SWEEP_INTERVAL", "5m"), 5*time.Minute),
    }
    if cfg.Storage.Retention <= 0 { cfg.Storage.Retention = 10 * time.Minute }
    if cfg.Storage.SweepInterval <= 0 { cfg.Storage.SweepInterval = 5 * time.Minute }

    cfg.Store = StoreConfig{
        RedisURL: getEnv("REDIS_URL", ""),
    }

    cfg.Archive = ArchiveConfig{
        Bucket:          getEnv("ARCHIVE_S3_BUCKET", ""),
        Prefix:          getEnv("ARCHIVE_S3_PREFIX", "converted"),
        Password:        getEnv("ARCHIVE_PASSWORD", ""),
        Region:          getEnv("ARCHIVE_S3_REGION", ""),
        Endpoint:        getEnv("ARCHIVE_S3_ENDPOINT", ""),
        AccessKeyID:     getEnv("ARCHIVE_S3_ACCESS_KEY_ID", ""),
        SecretAccessKey: getEnv("ARCHIVE_S3_SECRET_ACCESS_KEY", ""),
    }

    return cfg
}

// Helpers
func getEnv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func parseInt(s string, def int) int {
    if s == "" { return def }
    if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil { return n }
    return def
}

func parseBool(s string) bool {
    v := strings.ToLower(strings.TrimSpace(s))
    return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
    if s == "" { return def }
    if d, err := time.ParseDuration(s); err == nil { return d }
    return def
}

func clamp(v, lo, hi int) int {
    if v < lo { return lo }
    if v > hi { return hi }
    return v
}

func devDefaultPretty() string {
    env := strings.ToLower(os.Getenv("ENVIRONMENT"))
    if env == "dev" || env == "development" || env == "local" { return "true" }
    return "false"
}
