package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeDevices(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "devices.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDevices(t *testing.T) {
	path := writeDevices(t, `
- id: "9000001"
  name: "Main Street"
  location: "Brussels"
- id: "9000002"
  name: "Canal Bridge"
`)

	devices, err := LoadDevices(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(devices))
	}
	if devices[0].ID != "9000001" || devices[0].Name != "Main Street" || devices[0].Location != "Brussels" {
		t.Errorf("unexpected first device: %+v", devices[0])
	}
}

func TestLoadDevices_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty list", `[]`},
		{"missing id", "- name: no-id\n"},
		{"duplicate id", "- id: \"1\"\n- id: \"1\"\n"},
		{"not yaml", `{{{`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeDevices(t, tc.content)
			if _, err := LoadDevices(path); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoadDevices_MissingFile(t *testing.T) {
	if _, err := LoadDevices("/does/not/exist.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_DefaultsAndValidation(t *testing.T) {
	path := writeDevices(t, "- id: \"1\"\n")
	t.Setenv("TELRAAM_API_KEY", "secret")
	t.Setenv("DEVICES_FILE", path)
	t.Setenv("DATA_DIR", "")
	t.Setenv("FETCH_DAYS", "")
	t.Setenv("DEVICE_DELAY_SECONDS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DataDir != "data" {
		t.Errorf("expected default data dir, got %s", cfg.DataDir)
	}
	if cfg.FetchDays != 7 {
		t.Errorf("expected default fetch days 7, got %d", cfg.FetchDays)
	}
	if cfg.DeviceDelay != 5*time.Second {
		t.Errorf("expected default delay 5s, got %v", cfg.DeviceDelay)
	}
	if len(cfg.Devices) != 1 {
		t.Errorf("expected device list to be loaded, got %d devices", len(cfg.Devices))
	}
}

func TestLoad_RequiresAPIKey(t *testing.T) {
	t.Setenv("TELRAAM_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Error("expected error when api key is missing")
	}
}
