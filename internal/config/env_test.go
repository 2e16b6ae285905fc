package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "UPLOAD_DIR", "RETENTION_WINDOW", "SWEEP_INTERVAL", "MAX_IMAGE_WIDTH", "MAX_IMAGE_PIXELS", "JPEG_QUALITY", "MAX_FILES", "MAX_CONCURRENT_CONVERSIONS", "REDIS_URL", "ARCHIVE_S3_BUCKET"} {
		t.Setenv(k, "")
	}

	cfg := FromEnv()

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "uploads", cfg.Storage.Root)
	assert.Equal(t, 10*time.Minute, cfg.Storage.Retention)
	assert.Equal(t, 5*time.Minute, cfg.Storage.SweepInterval)
	assert.Equal(t, 1500, cfg.Convert.MaxImageWidth)
	assert.Equal(t, 90, cfg.Convert.JPEGQuality)
	assert.Equal(t, 20, cfg.Convert.MaxFiles)
	assert.Equal(t, 4, cfg.Convert.MaxConcurrent)
	assert.Equal(t, 50000000, cfg.Convert.MaxPixels)
	assert.Equal(t, "converted.pdf", cfg.Convert.OutputFilename)
	assert.Empty(t, cfg.Store.RedisURL)
	assert.Empty(t, cfg.Archive.Bucket)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("RETENTION_WINDOW", "30s")
	t.Setenv("SWEEP_INTERVAL", "1s")
	t.Setenv("MAX_IMAGE_WIDTH", "800")
	t.Setenv("MAX_IMAGE_PIXELS", "4000000")
	t.Setenv("JPEG_QUALITY", "250")
	t.Setenv("LOG_PRETTY", "yes")

	cfg := FromEnv()

	assert.Equal(t, "8081", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Storage.Retention)
	assert.Equal(t, time.Second, cfg.Storage.SweepInterval)
	assert.Equal(t, 800, cfg.Convert.MaxImageWidth)
	assert.Equal(t, 4000000, cfg.Convert.MaxPixels)
	assert.Equal(t, 100, cfg.Convert.JPEGQuality)
	assert.True(t, cfg.Logging.Pretty)
}

func TestFromEnv_InvalidFallsBack(t *testing.T) {
	t.Setenv("RETENTION_WINDOW", "soon")
	t.Setenv("SWEEP_INTERVAL", "-5m")
	t.Setenv("MAX_FILES", "many")
	t.Setenv("MAX_IMAGE_PIXELS", "-1")

	cfg := FromEnv()

	assert.Equal(t, 10*time.Minute, cfg.Storage.Retention)
	assert.Equal(t, 5*time.Minute, cfg.Storage.SweepInterval)
	assert.Equal(t, 20, cfg.Convert.MaxFiles)
	assert.Equal(t, 50000000, cfg.Convert.MaxPixels)
}
