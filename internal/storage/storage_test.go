package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/maxliesegang/telraam-data-collector/internal/model"
)

func reading(date string, hour int, car float64) model.TrafficReading {
	return model.TrafficReading{Date: date, Hour: hour, Car: car}
}

func TestLoadDeviceMetadata_MissingFile(t *testing.T) {
	s := New(t.TempDir(), nil)

	devices, err := s.LoadDeviceMetadata()
	if err != nil {
		t.Fatalf("missing metadata file should not be an error: %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("expected empty list, got %d devices", len(devices))
	}
}

func TestSaveAndLoadDeviceMetadata(t *testing.T) {
	s := New(t.TempDir(), nil)

	in := []model.DeviceMetadata{
		{ID: "9000001", Name: "Main Street", Location: "Brussels", LastUpdated: "2024-06-01", TotalDataPoints: 42},
	}
	if err := s.SaveDeviceMetadata(in); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	out, err := s.LoadDeviceMetadata()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(out) != 1 || out[0] != in[0] {
		t.Errorf("roundtrip mismatch: %+v", out)
	}

	// Published files are 2-space indented JSON
	raw, err := os.ReadFile(s.Paths().DevicesFile())
	if err != nil {
		t.Fatalf("read devices.json: %v", err)
	}
	if !strings.Contains(string(raw), "\n  {") {
		t.Errorf("expected 2-space indented JSON, got:\n%s", raw)
	}
}

func TestSaveMonthlyData_CreatesAndMerges(t *testing.T) {
	s := New(t.TempDir(), nil)

	if err := s.SaveMonthlyData("123", "2024-06", []model.TrafficReading{
		reading("2024-06-01", 7, 10),
		reading("2024-06-01", 8, 20),
	}); err != nil {
		t.Fatalf("first save failed: %v", err)
	}

	// Second save overlaps hour 8 and adds hour 9: the merge keeps one
	// reading per key with the newest fetch winning.
	if err := s.SaveMonthlyData("123", "2024-06", []model.TrafficReading{
		reading("2024-06-01", 8, 99),
		reading("2024-06-01", 9, 30),
	}); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	file, err := s.LoadMonthlyData("123", "2024-06")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if file == nil {
		t.Fatal("expected monthly file, got nil")
	}
	if file.DeviceID != "123" || file.Month != "2024-06" {
		t.Errorf("unexpected identity: %s/%s", file.DeviceID, file.Month)
	}
	if file.LastUpdated == "" {
		t.Error("expected lastUpdated to be set")
	}
	if len(file.Data) != 3 {
		t.Fatalf("expected 3 readings, got %d", len(file.Data))
	}
	if file.Data[1].Hour != 8 || file.Data[1].Car != 99 {
		t.Errorf("expected hour 8 to hold the incoming value 99, got %+v", file.Data[1])
	}
}

func TestLoadMonthlyData_Absent(t *testing.T) {
	s := New(t.TempDir(), nil)

	file, err := s.LoadMonthlyData("123", "2024-06")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if file != nil {
		t.Errorf("expected nil for absent file, got %+v", file)
	}
}

func TestSaveMonthlyData_MigratesLegacyFile(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)

	// Seed a monthly file at the legacy location only.
	legacy := model.MonthlyFile{
		DeviceID: "123",
		Month:    "2024-06",
		Data:     []model.TrafficReading{reading("2024-06-01", 7, 10)},
	}
	legacyPath := s.Paths().LegacyMonthlyFile("123", "2024-06")
	os.MkdirAll(filepath.Dir(legacyPath), 0755)
	data, _ := json.Marshal(legacy)
	os.WriteFile(legacyPath, data, 0644)

	if err := s.SaveMonthlyData("123", "2024-06", []model.TrafficReading{
		reading("2024-06-01", 8, 20),
	}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	file, err := s.LoadMonthlyData("123", "2024-06")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(file.Data) != 2 {
		t.Errorf("expected legacy data merged with new batch, got %d readings", len(file.Data))
	}

	if _, err := os.Stat(s.Paths().MonthlyFile("123", "2024-06")); err != nil {
		t.Errorf("expected monthly file at the new location: %v", err)
	}
	if _, err := os.Stat(legacyPath); !os.IsNotExist(err) {
		t.Errorf("expected legacy file to be deleted after migration, stat err=%v", err)
	}
}

func TestSaveDailyData_ReplacesEntries(t *testing.T) {
	s := New(t.TempDir(), nil)

	if err := s.SaveDailyData("123", "2024-06", []model.DailyEntry{
		{Date: "2024-06-01", Car: 30, HoursCovered: 2},
	}); err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	if err := s.SaveDailyData("123", "2024-06", []model.DailyEntry{
		{Date: "2024-06-01", Car: 5, HoursCovered: 1},
		{Date: "2024-06-02", Car: 7, HoursCovered: 1},
	}); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	file, err := s.LoadDailyData("123", "2024-06")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(file.Days) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(file.Days))
	}
	if file.Days[0].Car != 5 {
		t.Errorf("expected recomputed entry to replace the old one wholesale, got car=%v", file.Days[0].Car)
	}
}

func TestTotalHourlyDataPoints(t *testing.T) {
	s := New(t.TempDir(), nil)

	if n, err := s.TotalHourlyDataPoints("123"); err != nil || n != 0 {
		t.Fatalf("expected 0 points for unknown device, got n=%d err=%v", n, err)
	}

	s.SaveMonthlyData("123", "2024-05", []model.TrafficReading{
		reading("2024-05-30", 1, 1),
		reading("2024-05-30", 2, 1),
	})
	s.SaveMonthlyData("123", "2024-06", []model.TrafficReading{
		reading("2024-06-01", 1, 1),
	})

	// An unmigrated legacy month counts too.
	legacy := model.MonthlyFile{
		DeviceID: "123",
		Month:    "2024-04",
		Data:     []model.TrafficReading{reading("2024-04-01", 1, 1), reading("2024-04-01", 2, 1)},
	}
	legacyPath := s.Paths().LegacyMonthlyFile("123", "2024-04")
	data, _ := json.Marshal(legacy)
	os.WriteFile(legacyPath, data, 0644)

	n, err := s.TotalHourlyDataPoints("123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 5 {
		t.Errorf("expected 5 total points (2+1+2 legacy), got %d", n)
	}
}

type fakeRenderer struct {
	paths []string
}

func (f *fakeRenderer) Render(paths []string) (string, error) {
	f.paths = paths
	return "<html>ok</html>", nil
}

func TestGenerateLandingPage(t *testing.T) {
	renderer := &fakeRenderer{}
	s := New(t.TempDir(), renderer)

	s.SaveMonthlyData("123", "2024-06", []model.TrafficReading{reading("2024-06-01", 1, 1)})
	s.SaveDeviceMetadata([]model.DeviceMetadata{{ID: "123"}})

	if err := s.GenerateLandingPage(); err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	want := []string{"device_123/hourly/2024-06.json", "devices.json"}
	if len(renderer.paths) != len(want) {
		t.Fatalf("expected %d paths, got %v", len(want), renderer.paths)
	}
	for i, p := range want {
		if renderer.paths[i] != p {
			t.Errorf("path %d: expected %s, got %s", i, p, renderer.paths[i])
		}
	}

	html, err := os.ReadFile(s.Paths().LandingPage())
	if err != nil {
		t.Fatalf("expected index.html to be written: %v", err)
	}
	if string(html) != "<html>ok</html>" {
		t.Errorf("unexpected landing page content: %s", html)
	}
}
