package common

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Batch.Concurrency != 4 {
		t.Errorf("Expected concurrency 4, got %d", cfg.Batch.Concurrency)
	}
	if cfg.PDF.Binary != "pdftotext" {
		t.Errorf("Expected pdftotext binary, got %q", cfg.PDF.Binary)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.toml")
	body := `
[input]
dir = "/srv/confirmations"

[pdf]
max_pages = 3
timeout = "45s"

[kafka]
brokers = ["k1:9092", "k2:9092"]
topic = "fills"

[batch]
concurrency = 8
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BATCH_CONCURRENCY", "2")
	t.Setenv("S3_BUCKET", "trade-records")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Input.Dir != "/srv/confirmations" {
		t.Errorf("Expected input dir from file, got %q", cfg.Input.Dir)
	}
	if cfg.PDF.MaxPages != 3 || cfg.PDF.Timeout != 45*time.Second {
		t.Errorf("Unexpected pdf config %+v", cfg.PDF)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Topic != "fills" {
		t.Errorf("Unexpected kafka config %+v", cfg.Kafka)
	}
	if cfg.Batch.Concurrency != 2 {
		t.Errorf("Expected env to override concurrency to 2, got %d", cfg.Batch.Concurrency)
	}
	if cfg.S3.Bucket != "trade-records" {
		t.Errorf("Expected bucket from env, got %q", cfg.S3.Bucket)
	}
	if cfg.Output.Dir != "./output" {
		t.Errorf("Expected default output dir, got %q", cfg.Output.Dir)
	}
}

func TestLoadConfigBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[input\ndir ="), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadConfig(path)
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Code != "CONFIG_ERROR" {
		t.Fatalf("Expected CONFIG_ERROR, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no input dir", func(c *Config) { c.Input.Dir = "" }},
		{"zero concurrency", func(c *Config) { c.Batch.Concurrency = 0 }},
		{"negative pages", func(c *Config) { c.PDF.MaxPages = -1 }},
		{"kafka without topic", func(c *Config) { c.Kafka.Brokers = []string{"k:9092"}; c.Kafka.Topic = "" }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
		{"min over max conns", func(c *Config) { c.Database.MinConns = 50 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestGetEnvAsList(t *testing.T) {
	t.Setenv("TEST_LIST", " a, ,b ,c")
	got := getEnvAsList("TEST_LIST", nil)
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("Unexpected list %q", got)
	}
	t.Setenv("TEST_LIST", " , ")
	if got := getEnvAsList("TEST_LIST", []string{"x"}); len(got) != 1 || got[0] != "x" {
		t.Errorf("Expected default, got %q", got)
	}
}
