package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all flowcanvas configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	DBPath            string  `json:"db_path"`
	LogLevel          string  `json:"log_level"`
	FailureRate       float64 `json:"failure_rate"`
	VisitOnce         bool    `json:"visit_once"`
	SchedulerEnabled  bool    `json:"scheduler_enabled"`
	SchedulerInterval string  `json:"scheduler_interval"`
}

func defaultConfig() Config {
	return Config{
		DBPath:            filepath.Join(flowcanvasDir(), "flowcanvas.db"),
		LogLevel:          "info",
		SchedulerEnabled:  true,
		SchedulerInterval: "60s",
	}
}

func flowcanvasDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".flowcanvas"
	}
	return filepath.Join(home, ".flowcanvas")
}

func settingsPath() string {
	return filepath.Join(flowcanvasDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("FLOWCANVAS_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("FLOWCANVAS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("FLOWCANVAS_FAILURE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.FailureRate = f
		}
	}
	if v := os.Getenv("FLOWCANVAS_VISIT_ONCE"); v != "" {
		cfg.VisitOnce = v == "true" || v == "1"
	}
	if v := os.Getenv("FLOWCANVAS_SCHEDULER"); v != "" {
		cfg.SchedulerEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("FLOWCANVAS_SCHEDULER_INTERVAL"); v != "" {
		cfg.SchedulerInterval = v
	}

	return cfg
}

// duration parses a config duration, falling back when empty or invalid.
func duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
