// Package config loads the collector's configuration from environment
// variables and the YAML device list.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Device is one configured traffic counter.
type Device struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Location string `yaml:"location"`
}

// Config holds all configuration for the collector and serve commands.
type Config struct {
	// Data directory
	DataDir string

	// Telraam API
	APIBaseURL string
	APIKey     string

	// Collection run
	DevicesFile string
	Devices     []Device
	FetchDays   int
	DeviceDelay time.Duration

	// Run history (optional, disabled when empty)
	RunlogPath          string
	RunlogRetentionDays int

	// Serve command
	Port int
}

// Load reads configuration from environment variables with sensible defaults
// and parses the device list file.
func Load() (*Config, error) {
	cfg := &Config{
		DataDir: getEnv("DATA_DIR", "data"),

		APIBaseURL: getEnv("TELRAAM_API_URL", ""),
		APIKey:     getEnv("TELRAAM_API_KEY", ""),

		DevicesFile: getEnv("DEVICES_FILE", "devices.yaml"),
		FetchDays:   getEnvInt("FETCH_DAYS", 7),
		DeviceDelay: time.Duration(getEnvInt("DEVICE_DELAY_SECONDS", 5)) * time.Second,

		RunlogPath:          getEnv("RUNLOG_DATABASE", ""),
		RunlogRetentionDays: getEnvInt("RUNLOG_RETENTION_DAYS", 90),

		Port: getEnvInt("PORT", 8080),
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("TELRAAM_API_KEY is required")
	}
	if cfg.FetchDays < 1 {
		return nil, fmt.Errorf("FETCH_DAYS must be at least 1, got %d", cfg.FetchDays)
	}

	devices, err := LoadDevices(cfg.DevicesFile)
	if err != nil {
		return nil, err
	}
	cfg.Devices = devices

	return cfg, nil
}

// LoadDevices parses and validates the YAML device list.
func LoadDevices(path string) ([]Device, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read device list %s: %w", path, err)
	}

	var devices []Device
	if err := yaml.Unmarshal(data, &devices); err != nil {
		return nil, fmt.Errorf("failed to parse device list %s: %w", path, err)
	}

	if len(devices) == 0 {
		return nil, fmt.Errorf("device list %s is empty", path)
	}

	seen := make(map[string]bool, len(devices))
	for i, d := range devices {
		if d.ID == "" {
			return nil, fmt.Errorf("device %d in %s has no id", i, path)
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("duplicate device id %s in %s", d.ID, path)
		}
		seen[d.ID] = true
	}

	return devices, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
