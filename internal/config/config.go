// Package config loads the signcam settings from defaults, an optional YAML
// file, and the environment.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SIGNCAM_"

// Config is the complete signcam configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Camera   CameraConfig   `yaml:"camera"`
	Stream   StreamConfig   `yaml:"stream"`
	Detector DetectorConfig `yaml:"detector"`
	DataDir  string         `yaml:"data_dir"` // session journal location
	Tray     bool           `yaml:"tray"`
	Mock     bool           `yaml:"mock"` // synthetic camera and detector
}

// ServerConfig contains HTTP settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// CameraConfig contains capture settings.
type CameraConfig struct {
	Device int `yaml:"device"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// StreamConfig contains MJPEG output settings.
type StreamConfig struct {
	FrameDelay  time.Duration `yaml:"frame_delay"`
	JPEGQuality int           `yaml:"jpeg_quality"`
	Policy      string        `yaml:"policy"` // reject or serialize
	Labels      bool          `yaml:"labels"` // draw handedness next to each hand
}

// DetectorConfig contains hand-landmark model settings.
type DetectorConfig struct {
	MaxHands        int           `yaml:"max_hands"`
	ModelComplexity int           `yaml:"model_complexity"`
	MinDetection    float64       `yaml:"min_detection_confidence"`
	MinTracking     float64       `yaml:"min_tracking_confidence"`
	ScriptPath      string        `yaml:"script_path"`
	PythonPath      string        `yaml:"python_path"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
}

// Default returns the built-in settings.
func Default() Config {
	dataDir := ".signcam"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".signcam")
	}

	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5000,
			ShutdownTimeout: 5 * time.Second,
		},
		Camera: CameraConfig{
			Device: 0,
			Width:  640,
			Height: 480,
		},
		Stream: StreamConfig{
			FrameDelay:  40 * time.Millisecond,
			JPEGQuality: 80,
			Policy:      "reject",
		},
		Detector: DetectorConfig{
			MaxHands:        2,
			ModelComplexity: 0,
			MinDetection:    0.4,
			MinTracking:     0.4,
			IdleTimeout:     30 * time.Second,
		},
		DataDir: dataDir,
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is not empty), then a .env file in the working directory, then
// SIGNCAM_* environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// applyEnv overrides fields from environment variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
		return nil
	}
	float := func(key string, dst *float64) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = f
		return nil
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = d
		return nil
	}
	flag := func(key string, dst *bool) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = b
		return nil
	}

	str("HOST", &c.Server.Host)
	str("POLICY", &c.Stream.Policy)
	str("DATA_DIR", &c.DataDir)
	str("SCRIPT_PATH", &c.Detector.ScriptPath)
	str("PYTHON_PATH", &c.Detector.PythonPath)

	return errors.Join(
		num("PORT", &c.Server.Port),
		num("CAMERA", &c.Camera.Device),
		num("WIDTH", &c.Camera.Width),
		num("HEIGHT", &c.Camera.Height),
		num("JPEG_QUALITY", &c.Stream.JPEGQuality),
		num("MAX_HANDS", &c.Detector.MaxHands),
		float("MIN_DETECTION_CONFIDENCE", &c.Detector.MinDetection),
		float("MIN_TRACKING_CONFIDENCE", &c.Detector.MinTracking),
		dur("FRAME_DELAY", &c.Stream.FrameDelay),
		flag("TRAY", &c.Tray),
		flag("MOCK", &c.Mock),
	)
}

// Validate reports every out-of-range setting.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		errs = append(errs, fmt.Errorf("camera size %dx%d must be positive", c.Camera.Width, c.Camera.Height))
	}
	if c.Camera.Device < 0 {
		errs = append(errs, fmt.Errorf("camera.device %d must not be negative", c.Camera.Device))
	}
	if c.Stream.JPEGQuality < 1 || c.Stream.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("stream.jpeg_quality %d must be within 1..100", c.Stream.JPEGQuality))
	}
	if c.Stream.FrameDelay <= 0 {
		errs = append(errs, fmt.Errorf("stream.frame_delay %v must be positive", c.Stream.FrameDelay))
	}
	if c.Stream.Policy != "reject" && c.Stream.Policy != "serialize" {
		errs = append(errs, fmt.Errorf("stream.policy %q must be reject or serialize", c.Stream.Policy))
	}
	if c.Detector.MaxHands < 1 {
		errs = append(errs, fmt.Errorf("detector.max_hands %d must be at least 1", c.Detector.MaxHands))
	}
	if c.Detector.ModelComplexity < 0 || c.Detector.ModelComplexity > 1 {
		errs = append(errs, fmt.Errorf("detector.model_complexity %d must be 0 or 1", c.Detector.ModelComplexity))
	}
	for name, v := range map[string]float64{
		"detector.min_detection_confidence": c.Detector.MinDetection,
		"detector.min_tracking_confidence":  c.Detector.MinTracking,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s %v must be within 0..1", name, v))
		}
	}

	return errors.Join(errs...)
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// DBPath returns the session journal path inside DataDir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "signcam.db")
}
