package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	c := Load()
	c.SessionSecret = "test-secret"
	c.SQLiteDBPath = t.TempDir() + "/gastos.db"
	c.MediaDir = t.TempDir()
	return c
}

func TestLoadDefaults(t *testing.T) {
	c := Load()
	if c.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", c.Port)
	}
	if c.PageSize != 20 {
		t.Fatalf("expected default page size 20, got %d", c.PageSize)
	}
	if c.BlobBackend != "fs" {
		t.Fatalf("expected default fs backend, got %q", c.BlobBackend)
	}
	if c.SessionTTL != 24*time.Hour {
		t.Fatalf("expected default TTL 24h, got %v", c.SessionTTL)
	}
	if c.MaxUploadBytes != 32<<20 {
		t.Fatalf("expected default upload limit 32MiB, got %d", c.MaxUploadBytes)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("PAGE_SIZE", "50")
	t.Setenv("SESSION_TTL", "1h")
	t.Setenv("BLOB_BACKEND", "s3")

	c := Load()
	if c.Port != "9000" || c.PageSize != 50 || c.SessionTTL != time.Hour || c.BlobBackend != "s3" {
		t.Fatalf("environment not applied: %+v", c)
	}
}

func TestValidateOK(t *testing.T) {
	if err := validConfig(t).Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateAggregatesProblems(t *testing.T) {
	c := validConfig(t)
	c.Port = "nope"
	c.SessionSecret = ""
	c.PageSize = 0

	err := c.Validate()
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, frag := range []string{"port", "SESSION_SECRET", "page size"} {
		if !strings.Contains(err.Error(), frag) {
			t.Fatalf("expected %q in error, got %v", frag, err)
		}
	}
}

func TestValidateS3Backend(t *testing.T) {
	c := validConfig(t)
	c.BlobBackend = "s3"

	err := c.Validate()
	if err == nil || !strings.Contains(err.Error(), "S3_BUCKET") {
		t.Fatalf("expected missing bucket error, got %v", err)
	}

	c.S3Bucket = "receipts"
	c.S3AccessKey = "key"
	c.S3SecretKey = "secret"
	if err := c.Validate(); err != nil {
		t.Fatalf("expected valid s3 config, got %v", err)
	}
}

func TestValidateUnknownBackend(t *testing.T) {
	c := validConfig(t)
	c.BlobBackend = "ftp"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
