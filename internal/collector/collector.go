// Package collector orchestrates one collection run: fetch each configured
// device's recent readings, merge them into the stored dataset, refresh the
// device metadata index and regenerate the landing page. Devices are
// processed strictly one at a time and a failing device never aborts the
// others.
package collector

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/maxliesegang/telraam-data-collector/internal/config"
	"github.com/maxliesegang/telraam-data-collector/internal/merge"
	"github.com/maxliesegang/telraam-data-collector/internal/model"
)

// Fetcher retrieves the hourly readings of one device for a date range.
type Fetcher interface {
	FetchReadings(ctx context.Context, deviceID string, start, end time.Time) ([]model.TrafficReading, error)
}

// Store is the persistence surface the collector needs.
type Store interface {
	LoadDeviceMetadata() ([]model.DeviceMetadata, error)
	SaveDeviceMetadata([]model.DeviceMetadata) error
	SaveMonthlyData(deviceID, month string, readings []model.TrafficReading) error
	SaveDailyData(deviceID, month string, entries []model.DailyEntry) error
	TotalHourlyDataPoints(deviceID string) (int, error)
	GenerateLandingPage() error
}

// Result is the outcome of collecting one device.
type Result struct {
	DeviceID    string `json:"device_id"`
	Success     bool   `json:"success"`
	PointsSaved int    `json:"points_saved"`
	Error       string `json:"error,omitempty"`
}

// Summary describes one full collection run.
type Summary struct {
	RunID         string    `json:"run_id"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	TotalDevices  int       `json:"total_devices"`
	Succeeded     int       `json:"succeeded"`
	Failed        int       `json:"failed"`
	PointsSaved   int       `json:"points_saved"`
	DeviceResults []Result  `json:"device_results"`
}

// Options configure a Collector.
type Options struct {
	Devices     []config.Device
	FetchDays   int
	DeviceDelay time.Duration
}

// Collector runs the fetch-merge-persist pipeline over all configured
// devices. It holds no state between runs.
type Collector struct {
	client Fetcher
	store  Store
	opts   Options
	now    func() time.Time
}

// New creates a Collector.
func New(client Fetcher, store Store, opts Options) *Collector {
	return &Collector{
		client: client,
		store:  store,
		opts:   opts,
		now:    time.Now,
	}
}

// Run performs one collection pass over all configured devices. The summary
// is always returned; the error is non-nil when any device failed or when
// the final metadata or landing-page step could not complete.
func (c *Collector) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{
		RunID:        uuid.NewString(),
		StartedAt:    c.now().UTC(),
		TotalDevices: len(c.opts.Devices),
	}
	log.Printf("Starting collection run %s for %d devices", summary.RunID, summary.TotalDevices)

	prior, err := c.store.LoadDeviceMetadata()
	if err != nil {
		summary.FinishedAt = c.now().UTC()
		return summary, err
	}
	priorByID := make(map[string]model.DeviceMetadata, len(prior))
	for _, m := range prior {
		priorByID[m.ID] = m
	}

	var metadata []model.DeviceMetadata
	for i, device := range c.opts.Devices {
		result, latestDate := c.collectDevice(ctx, device)
		summary.DeviceResults = append(summary.DeviceResults, result)
		if result.Success {
			summary.Succeeded++
			summary.PointsSaved += result.PointsSaved
		} else {
			summary.Failed++
			log.Errorf("Device %s failed: %s", device.ID, result.Error)
		}

		metadata = append(metadata, c.buildMetadata(device, latestDate, priorByID[device.ID]))

		// Pause between devices to stay polite to the upstream API, but
		// not after the last one.
		if c.opts.DeviceDelay > 0 && i < len(c.opts.Devices)-1 {
			select {
			case <-time.After(c.opts.DeviceDelay):
			case <-ctx.Done():
				summary.FinishedAt = c.now().UTC()
				return summary, ctx.Err()
			}
		}
	}

	// Failures past this point abort the run: without the metadata index
	// and landing page the published dataset is incomplete.
	if err := c.store.SaveDeviceMetadata(metadata); err != nil {
		summary.FinishedAt = c.now().UTC()
		return summary, err
	}
	if err := c.store.GenerateLandingPage(); err != nil {
		summary.FinishedAt = c.now().UTC()
		return summary, err
	}

	summary.FinishedAt = c.now().UTC()
	log.Printf("Collection run %s finished: %d succeeded, %d failed, %d points saved",
		summary.RunID, summary.Succeeded, summary.Failed, summary.PointsSaved)

	if summary.Failed > 0 {
		return summary, fmt.Errorf("%d of %d devices failed", summary.Failed, summary.TotalDevices)
	}
	return summary, nil
}

// collectDevice fetches and persists one device's readings. All failures are
// converted into the returned Result; nothing escapes to abort the run. The
// second return value is the latest parseable reading date of the batch,
// empty when none.
func (c *Collector) collectDevice(ctx context.Context, device config.Device) (Result, string) {
	result := Result{DeviceID: device.ID}

	end := c.now().UTC()
	start := end.AddDate(0, 0, -c.opts.FetchDays)

	readings, err := c.client.FetchReadings(ctx, device.ID, start, end)
	if err != nil {
		result.Error = fmt.Sprintf("fetch failed: %v", err)
		return result, ""
	}

	groups := merge.GroupByMonth(readings)
	months := make([]string, 0, len(groups))
	for month := range groups {
		months = append(months, month)
	}
	sort.Strings(months)

	for _, month := range months {
		batch := groups[month]
		if err := c.store.SaveMonthlyData(device.ID, month, batch); err != nil {
			result.Error = fmt.Sprintf("save monthly %s: %v", month, err)
			return result, latestReadingDate(readings)
		}
		if err := c.store.SaveDailyData(device.ID, month, merge.BuildDailyEntries(batch)); err != nil {
			result.Error = fmt.Sprintf("save daily %s: %v", month, err)
			return result, latestReadingDate(readings)
		}
		result.PointsSaved += len(batch)
	}

	result.Success = true
	return result, latestReadingDate(readings)
}

// buildMetadata assembles the device's directory record. The data point
// total is recomputed from storage rather than accumulated, and a run that
// brought no new readings keeps the previous lastUpdated value.
func (c *Collector) buildMetadata(device config.Device, latestDate string, prior model.DeviceMetadata) model.DeviceMetadata {
	meta := model.DeviceMetadata{
		ID:          device.ID,
		Name:        device.Name,
		Location:    device.Location,
		LastUpdated: latestDate,
	}
	if meta.LastUpdated == "" {
		meta.LastUpdated = prior.LastUpdated
	}

	total, err := c.store.TotalHourlyDataPoints(device.ID)
	if err != nil {
		log.Warnf("Failed to recount data points for device %s: %v", device.ID, err)
		total = prior.TotalDataPoints
	}
	meta.TotalDataPoints = total

	return meta
}

// latestReadingDate picks the chronologically greatest parseable date in the
// batch. Unparseable dates are ignored, not errors.
func latestReadingDate(readings []model.TrafficReading) string {
	var latest time.Time
	var latestStr string
	for _, r := range readings {
		t, err := model.ParseDate(r.Date)
		if err != nil {
			continue
		}
		if latestStr == "" || t.After(latest) {
			latest = t
			latestStr = r.Date
		}
	}
	return latestStr
}
