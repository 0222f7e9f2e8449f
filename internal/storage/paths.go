package storage

import "path/filepath"

// Paths maps (device, month) pairs to locations inside the data directory.
// The layout is part of the published dataset format:
//
//	<dataDir>/devices.json
//	<dataDir>/device_<id>/hourly/<YYYY-MM>.json
//	<dataDir>/device_<id>/daily/<YYYY-MM>.json
//	<dataDir>/device_<id>/<YYYY-MM>.json   (legacy, read-fallback only)
type Paths struct {
	dataDir string
}

// NewPaths creates a path mapper rooted at dataDir.
func NewPaths(dataDir string) *Paths {
	return &Paths{dataDir: dataDir}
}

// DataDir returns the root of the data directory.
func (p *Paths) DataDir() string {
	return p.dataDir
}

// DevicesFile returns the location of the device metadata file.
func (p *Paths) DevicesFile() string {
	return filepath.Join(p.dataDir, "devices.json")
}

// DeviceDir returns the directory holding one device's files.
func (p *Paths) DeviceDir(deviceID string) string {
	return filepath.Join(p.dataDir, "device_"+deviceID)
}

// HourlyDir returns the directory holding a device's monthly files.
func (p *Paths) HourlyDir(deviceID string) string {
	return filepath.Join(p.DeviceDir(deviceID), "hourly")
}

// DailyDir returns the directory holding a device's daily files.
func (p *Paths) DailyDir(deviceID string) string {
	return filepath.Join(p.DeviceDir(deviceID), "daily")
}

// MonthlyFile returns the current location of a device's monthly file.
func (p *Paths) MonthlyFile(deviceID, month string) string {
	return filepath.Join(p.HourlyDir(deviceID), month+".json")
}

// LegacyMonthlyFile returns the pre-layout-change location of a monthly file.
// Only read for migration; new data is never written here.
func (p *Paths) LegacyMonthlyFile(deviceID, month string) string {
	return filepath.Join(p.DeviceDir(deviceID), month+".json")
}

// DailyFile returns the location of a device's daily rollup file.
func (p *Paths) DailyFile(deviceID, month string) string {
	return filepath.Join(p.DailyDir(deviceID), month+".json")
}

// LandingPage returns the location of the generated HTML index.
func (p *Paths) LandingPage() string {
	return filepath.Join(p.dataDir, "index.html")
}
