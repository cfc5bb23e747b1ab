// Package config loads service settings from an optional YAML file with
// ODH_-prefixed environment overrides.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/visionhub/odh/database"
)

// Config holds the complete service configuration.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	UploadsDir string `yaml:"uploads_dir"`
	ResultsDir string `yaml:"results_dir"`

	Database database.Config `yaml:"database"`

	Detector  DetectorConfig  `yaml:"detector"`
	Transcode TranscodeConfig `yaml:"transcode"`

	// DefaultConf is the confidence threshold applied when a request
	// does not carry one.
	DefaultConf float64 `yaml:"default_conf"`
	// MaxUploadMB bounds accepted upload sizes.
	MaxUploadMB int `yaml:"max_upload_mb"`
}

// DetectorConfig locates the inference model and runtime.
type DetectorConfig struct {
	ModelPath      string `yaml:"model_path"`
	LibraryPath    string `yaml:"library_path"`
	IntraOpThreads int    `yaml:"intra_op_threads"`
	InterOpThreads int    `yaml:"inter_op_threads"`
}

// TranscodeConfig controls the external re-encode step.
type TranscodeConfig struct {
	FFmpegPath string        `yaml:"ffmpeg_path"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr:  ":8080",
		UploadsDir:  "uploads",
		ResultsDir:  "results",
		Database:    database.Config{Type: "sqlite", DSN: "data/odh.db"},
		Detector:    DetectorConfig{ModelPath: "models/yolov8n.onnx"},
		Transcode:   TranscodeConfig{Timeout: 5 * time.Minute},
		DefaultConf: 0.25,
		MaxUploadMB: 20,
	}
}

// Load reads the config file when it exists, then applies environment
// overrides. A missing file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, errors.Wrapf(err, "parsing config %s", path)
			}
		case !os.IsNotExist(err):
			return cfg, errors.Wrapf(err, "reading config %s", path)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString("ODH_LISTEN_ADDR", &cfg.ListenAddr)
	setString("ODH_UPLOADS_DIR", &cfg.UploadsDir)
	setString("ODH_RESULTS_DIR", &cfg.ResultsDir)
	setString("ODH_DB_TYPE", &cfg.Database.Type)
	setString("ODH_DB_DSN", &cfg.Database.DSN)
	setString("ODH_MODEL_PATH", &cfg.Detector.ModelPath)
	setString("ODH_ORT_LIBRARY", &cfg.Detector.LibraryPath)
	setString("ODH_FFMPEG_PATH", &cfg.Transcode.FFmpegPath)

	if v := os.Getenv("ODH_DEFAULT_CONF"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.DefaultConf = f
		}
	}
	if v := os.Getenv("ODH_MAX_UPLOAD_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxUploadMB = n
		}
	}
	if v := os.Getenv("ODH_TRANSCODE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Transcode.Timeout = d
		}
	}
}
