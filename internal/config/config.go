// SPDX-License-Identifier: MIT

// Package config loads worker configuration from the environment, with an
// optional YAML file override for deployments that prefer files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every knob the pipeline worker needs.
type Config struct {
	HTTPAddr  string `yaml:"http_addr"`  // job API listen address
	MediaRoot string `yaml:"media_root"` // root of all media artifacts
	DBPath    string `yaml:"db_path"`    // sqlite database file

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`

	// Sidecar model services.
	OCRServiceURL        string `yaml:"ocr_service_url"`
	SpeechServiceURL     string `yaml:"speech_service_url"`
	ClassifierServiceURL string `yaml:"classifier_service_url"`

	// CaptionLanguage forces the transcription language for generated
	// captions. Empty lets the speech service detect it.
	CaptionLanguage string `yaml:"caption_language"`

	Workers int           `yaml:"workers"`  // concurrent job executors
	LockTTL time.Duration `yaml:"lock_ttl"` // per-asset processing lock TTL

	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPAddr:    ":8080",
		MediaRoot:   "/var/lib/vidforge/media",
		DBPath:      "/var/lib/vidforge/pipeline.db",
		RedisAddr:   "127.0.0.1:6379",
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",

		OCRServiceURL:        "http://127.0.0.1:8601",
		SpeechServiceURL:     "http://127.0.0.1:8602",
		ClassifierServiceURL: "http://127.0.0.1:8603",

		Workers:  4,
		LockTTL:  2 * time.Hour,
		LogLevel: "info",
	}
}

// FromEnv builds a Config from defaults, an optional YAML file named by
// VIDFORGE_CONFIG, and environment variable overrides, in that order.
func FromEnv() (Config, error) {
	cfg := Default()

	if path := os.Getenv("VIDFORGE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.HTTPAddr = ParseString("VIDFORGE_HTTP_ADDR", cfg.HTTPAddr)
	cfg.MediaRoot = ParseString("VIDFORGE_MEDIA_ROOT", cfg.MediaRoot)
	cfg.DBPath = ParseString("VIDFORGE_DB_PATH", cfg.DBPath)
	cfg.RedisAddr = ParseString("VIDFORGE_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = ParseString("VIDFORGE_REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = ParseInt("VIDFORGE_REDIS_DB", cfg.RedisDB)
	cfg.FFmpegPath = ParseString("VIDFORGE_FFMPEG", cfg.FFmpegPath)
	cfg.FFprobePath = ParseString("VIDFORGE_FFPROBE", cfg.FFprobePath)
	cfg.OCRServiceURL = ParseString("VIDFORGE_OCR_URL", cfg.OCRServiceURL)
	cfg.SpeechServiceURL = ParseString("VIDFORGE_SPEECH_URL", cfg.SpeechServiceURL)
	cfg.ClassifierServiceURL = ParseString("VIDFORGE_CLASSIFIER_URL", cfg.ClassifierServiceURL)
	cfg.CaptionLanguage = ParseString("VIDFORGE_CAPTION_LANGUAGE", cfg.CaptionLanguage)
	cfg.Workers = ParseInt("VIDFORGE_WORKERS", cfg.Workers)
	cfg.LockTTL = ParseDuration("VIDFORGE_LOCK_TTL", cfg.LockTTL)
	cfg.LogLevel = ParseString("LOG_LEVEL", cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the worker cannot run with.
func (c Config) Validate() error {
	if c.MediaRoot == "" {
		return fmt.Errorf("media root is empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db path is empty")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("redis address is empty")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("lock TTL must be positive, got %s", c.LockTTL)
	}
	return nil
}
