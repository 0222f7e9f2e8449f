// Package storage owns the on-disk representation of the collected dataset:
// per-device monthly files of hourly readings, per-device daily rollups and
// the device metadata index, all as indented JSON under one data directory.
package storage

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/maxliesegang/telraam-data-collector/internal/merge"
	"github.com/maxliesegang/telraam-data-collector/internal/model"
)

// LandingRenderer turns a sorted list of relative file paths into the HTML
// body of the dataset's landing page.
type LandingRenderer interface {
	Render(paths []string) (string, error)
}

// Storage persists monthly, daily and metadata files. Every save is a
// read-modify-write of one whole file, replaced atomically via a temp file
// and rename, so a crash mid-run never corrupts previously committed files.
type Storage struct {
	paths    *Paths
	renderer LandingRenderer
}

// New creates a Storage rooted at dataDir. The renderer may be nil, in which
// case GenerateLandingPage is a no-op.
func New(dataDir string, renderer LandingRenderer) *Storage {
	return &Storage{paths: NewPaths(dataDir), renderer: renderer}
}

// Paths exposes the path mapper, mainly for tests and the serve command.
func (s *Storage) Paths() *Paths {
	return s.paths
}

// LoadDeviceMetadata reads the device index. A missing file is not an error:
// the first run starts from an empty list.
func (s *Storage) LoadDeviceMetadata() ([]model.DeviceMetadata, error) {
	var devices []model.DeviceMetadata
	ok, err := s.readJSON(s.paths.DevicesFile(), &devices)
	if err != nil {
		return nil, fmt.Errorf("failed to load device metadata: %w", err)
	}
	if !ok {
		return []model.DeviceMetadata{}, nil
	}
	return devices, nil
}

// SaveDeviceMetadata overwrites the device index wholesale. The caller
// supplies the complete current list every run.
func (s *Storage) SaveDeviceMetadata(devices []model.DeviceMetadata) error {
	if err := s.writeJSON(s.paths.DevicesFile(), devices); err != nil {
		return fmt.Errorf("failed to save device metadata: %w", err)
	}
	return nil
}

// LoadMonthlyData reads the monthly file for (deviceID, month), checking the
// current location first and the legacy location second. Returns nil when
// neither exists.
func (s *Storage) LoadMonthlyData(deviceID, month string) (*model.MonthlyFile, error) {
	file, _, err := s.loadMonthlyWithOrigin(deviceID, month)
	return file, err
}

// loadMonthlyWithOrigin is LoadMonthlyData plus a flag telling whether the
// hit came from the legacy location, so SaveMonthlyData can migrate it.
func (s *Storage) loadMonthlyWithOrigin(deviceID, month string) (*model.MonthlyFile, bool, error) {
	var file model.MonthlyFile

	ok, err := s.readJSON(s.paths.MonthlyFile(deviceID, month), &file)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load monthly file %s/%s: %w", deviceID, month, err)
	}
	if ok {
		return &file, false, nil
	}

	ok, err = s.readJSON(s.paths.LegacyMonthlyFile(deviceID, month), &file)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load legacy monthly file %s/%s: %w", deviceID, month, err)
	}
	if ok {
		return &file, true, nil
	}
	return nil, false, nil
}

// SaveMonthlyData merges readings into the stored monthly file for
// (deviceID, month) and rewrites it with a fresh lastUpdated. When the
// existing data was found at the legacy location, the legacy file is deleted
// once the write to the current location has succeeded.
func (s *Storage) SaveMonthlyData(deviceID, month string, readings []model.TrafficReading) error {
	existing, fromLegacy, err := s.loadMonthlyWithOrigin(deviceID, month)
	if err != nil {
		return err
	}

	var current []model.TrafficReading
	if existing != nil {
		current = existing.Data
	}

	file := model.MonthlyFile{
		DeviceID:    deviceID,
		Month:       month,
		Data:        merge.MergeReadings(current, readings),
		LastUpdated: nowISO(),
	}

	if err := s.writeJSON(s.paths.MonthlyFile(deviceID, month), file); err != nil {
		return fmt.Errorf("failed to save monthly file %s/%s: %w", deviceID, month, err)
	}

	if fromLegacy {
		legacy := s.paths.LegacyMonthlyFile(deviceID, month)
		if err := os.Remove(legacy); err != nil {
			log.Warnf("Failed to remove migrated legacy file %s: %v", legacy, err)
		} else {
			log.Printf("Migrated legacy monthly file %s to hourly layout", legacy)
		}
	}
	return nil
}

// LoadDailyData reads the daily rollup file for (deviceID, month). Returns
// nil when it does not exist.
func (s *Storage) LoadDailyData(deviceID, month string) (*model.DailyFile, error) {
	var file model.DailyFile
	ok, err := s.readJSON(s.paths.DailyFile(deviceID, month), &file)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily file %s/%s: %w", deviceID, month, err)
	}
	if !ok {
		return nil, nil
	}
	return &file, nil
}

// SaveDailyData merges entries into the stored daily file for
// (deviceID, month) and rewrites it with a fresh lastUpdated.
func (s *Storage) SaveDailyData(deviceID, month string, entries []model.DailyEntry) error {
	existing, err := s.LoadDailyData(deviceID, month)
	if err != nil {
		return err
	}

	var current []model.DailyEntry
	if existing != nil {
		current = existing.Days
	}

	file := model.DailyFile{
		DeviceID:    deviceID,
		Month:       month,
		Days:        merge.MergeDailyEntries(current, entries),
		LastUpdated: nowISO(),
	}

	if err := s.writeJSON(s.paths.DailyFile(deviceID, month), file); err != nil {
		return fmt.Errorf("failed to save daily file %s/%s: %w", deviceID, month, err)
	}
	return nil
}

// TotalHourlyDataPoints sums the stored reading count across every monthly
// file of the device, including legacy files whose month has not been
// migrated yet. A device with no stored data yields 0.
func (s *Storage) TotalHourlyDataPoints(deviceID string) (int, error) {
	total := 0
	seen := make(map[string]bool)

	months, err := listMonthFiles(s.paths.HourlyDir(deviceID))
	if err != nil {
		return 0, fmt.Errorf("failed to list monthly files for %s: %w", deviceID, err)
	}
	for _, month := range months {
		var file model.MonthlyFile
		if _, err := s.readJSON(s.paths.MonthlyFile(deviceID, month), &file); err != nil {
			return 0, fmt.Errorf("failed to read monthly file %s/%s: %w", deviceID, month, err)
		}
		total += len(file.Data)
		seen[month] = true
	}

	legacyMonths, err := listMonthFiles(s.paths.DeviceDir(deviceID))
	if err != nil {
		return 0, fmt.Errorf("failed to list legacy files for %s: %w", deviceID, err)
	}
	for _, month := range legacyMonths {
		if seen[month] {
			continue
		}
		var file model.MonthlyFile
		if _, err := s.readJSON(s.paths.LegacyMonthlyFile(deviceID, month), &file); err != nil {
			return 0, fmt.Errorf("failed to read legacy file %s/%s: %w", deviceID, month, err)
		}
		total += len(file.Data)
	}

	return total, nil
}

// GenerateLandingPage enumerates every stored JSON file, sorted by relative
// path, and writes the rendered HTML index to the data directory root.
func (s *Storage) GenerateLandingPage() error {
	if s.renderer == nil {
		return nil
	}

	paths, err := s.listJSONFiles()
	if err != nil {
		return fmt.Errorf("failed to enumerate data files: %w", err)
	}

	html, err := s.renderer.Render(paths)
	if err != nil {
		return fmt.Errorf("failed to render landing page: %w", err)
	}

	if err := writeFileAtomic(s.paths.LandingPage(), []byte(html)); err != nil {
		return fmt.Errorf("failed to write landing page: %w", err)
	}
	return nil
}

// listJSONFiles walks the data directory and returns the relative paths of
// all JSON files, sorted.
func (s *Storage) listJSONFiles() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(s.paths.DataDir(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		rel, err := filepath.Rel(s.paths.DataDir(), path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// readJSON unmarshals path into v. The boolean reports whether the file
// existed; a missing file is not an error.
func (s *Storage) readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("invalid JSON in %s: %w", path, err)
	}
	return true, nil
}

// writeJSON marshals v as 2-space indented JSON and replaces path atomically.
func (s *Storage) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(path, append(data, '\n'))
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it over path, creating parent directories as needed.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// listMonthFiles returns the YYYY-MM stems of the JSON files directly inside
// dir. A missing directory yields an empty list.
func listMonthFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var months []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".json")
		if _, err := time.Parse(model.MonthLayout, name); err != nil {
			continue
		}
		months = append(months, name)
	}
	sort.Strings(months)
	return months, nil
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}
