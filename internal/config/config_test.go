package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Addr() != "0.0.0.0:5000" {
		t.Errorf("Addr() = %s, want 0.0.0.0:5000", cfg.Addr())
	}
	if cfg.Camera.Width != 640 || cfg.Camera.Height != 480 {
		t.Errorf("camera size = %dx%d, want 640x480", cfg.Camera.Width, cfg.Camera.Height)
	}
	if cfg.Stream.FrameDelay != 40*time.Millisecond {
		t.Errorf("FrameDelay = %v, want 40ms", cfg.Stream.FrameDelay)
	}
	if cfg.Stream.JPEGQuality != 80 {
		t.Errorf("JPEGQuality = %d, want 80", cfg.Stream.JPEGQuality)
	}
	if cfg.Stream.Policy != "reject" {
		t.Errorf("Policy = %s, want reject", cfg.Stream.Policy)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
	if !strings.HasSuffix(cfg.DBPath(), filepath.Join(".signcam", "signcam.db")) {
		t.Errorf("DBPath() = %s", cfg.DBPath())
	}
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "signcam.yaml")
	content := `
server:
  port: 8081
camera:
  width: 424
  height: 240
stream:
  frame_delay: 30ms
  jpeg_quality: 65
  policy: serialize
detector:
  min_detection_confidence: 0.6
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	t.Chdir(dir)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8081 {
		t.Errorf("Port = %d, want 8081", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Host = %s, want default to survive", cfg.Server.Host)
	}
	if cfg.Camera.Width != 424 || cfg.Camera.Height != 240 {
		t.Errorf("camera size = %dx%d, want 424x240", cfg.Camera.Width, cfg.Camera.Height)
	}
	if cfg.Stream.FrameDelay != 30*time.Millisecond {
		t.Errorf("FrameDelay = %v, want 30ms", cfg.Stream.FrameDelay)
	}
	if cfg.Stream.JPEGQuality != 65 || cfg.Stream.Policy != "serialize" {
		t.Errorf("stream = %+v", cfg.Stream)
	}
	if cfg.Detector.MinDetection != 0.6 || cfg.Detector.MinTracking != 0.4 {
		t.Errorf("detector thresholds = %v/%v, want 0.6/0.4", cfg.Detector.MinDetection, cfg.Detector.MinTracking)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Run("missing file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		os.WriteFile(path, []byte("server: [unterminated"), 0644)

		if _, err := Load(path); err == nil {
			t.Error("expected error for invalid yaml")
		}
	})
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SIGNCAM_PORT=7000\n"), 0644); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	t.Chdir(dir)
	t.Cleanup(func() { os.Unsetenv("SIGNCAM_PORT") })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Port = %d, want 7000 from .env", cfg.Server.Port)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"SIGNCAM_HOST":                    "127.0.0.1",
		"SIGNCAM_PORT":                    "9000",
		"SIGNCAM_WIDTH":                   "800",
		"SIGNCAM_HEIGHT":                  "600",
		"SIGNCAM_FRAME_DELAY":             "33ms",
		"SIGNCAM_JPEG_QUALITY":            "70",
		"SIGNCAM_POLICY":                  "serialize",
		"SIGNCAM_MIN_TRACKING_CONFIDENCE": "0.5",
		"SIGNCAM_MOCK":                    "true",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	if err := cfg.applyEnv(lookup); err != nil {
		t.Fatalf("applyEnv() error = %v", err)
	}

	if cfg.Addr() != "127.0.0.1:9000" {
		t.Errorf("Addr() = %s, want 127.0.0.1:9000", cfg.Addr())
	}
	if cfg.Camera.Width != 800 || cfg.Camera.Height != 600 {
		t.Errorf("camera size = %dx%d, want 800x600", cfg.Camera.Width, cfg.Camera.Height)
	}
	if cfg.Stream.FrameDelay != 33*time.Millisecond || cfg.Stream.JPEGQuality != 70 || cfg.Stream.Policy != "serialize" {
		t.Errorf("stream = %+v", cfg.Stream)
	}
	if cfg.Detector.MinTracking != 0.5 {
		t.Errorf("MinTracking = %v, want 0.5", cfg.Detector.MinTracking)
	}
	if !cfg.Mock {
		t.Error("Mock should be true")
	}
}

func TestApplyEnv_InvalidValues(t *testing.T) {
	env := map[string]string{
		"SIGNCAM_PORT":        "http",
		"SIGNCAM_FRAME_DELAY": "fast",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	err := cfg.applyEnv(lookup)
	if err == nil {
		t.Fatal("expected error for invalid values")
	}
	for _, key := range []string{"SIGNCAM_PORT", "SIGNCAM_FRAME_DELAY"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q should mention %s", err, key)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "port zero", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "server.port"},
		{name: "port too high", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: "server.port"},
		{name: "zero width", mutate: func(c *Config) { c.Camera.Width = 0 }, wantErr: "camera size"},
		{name: "negative device", mutate: func(c *Config) { c.Camera.Device = -1 }, wantErr: "camera.device"},
		{name: "quality too high", mutate: func(c *Config) { c.Stream.JPEGQuality = 101 }, wantErr: "jpeg_quality"},
		{name: "zero delay", mutate: func(c *Config) { c.Stream.FrameDelay = 0 }, wantErr: "frame_delay"},
		{name: "unknown policy", mutate: func(c *Config) { c.Stream.Policy = "fanout" }, wantErr: "stream.policy"},
		{name: "no hands", mutate: func(c *Config) { c.Detector.MaxHands = 0 }, wantErr: "max_hands"},
		{name: "complexity", mutate: func(c *Config) { c.Detector.ModelComplexity = 2 }, wantErr: "model_complexity"},
		{name: "confidence", mutate: func(c *Config) { c.Detector.MinDetection = 1.5 }, wantErr: "min_detection_confidence"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should mention %q", err, tt.wantErr)
			}
		})
	}
}
