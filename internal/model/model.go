package model

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used by reading dates and daily
// entries.
const DateLayout = "2006-01-02"

// MonthLayout is the format of monthly partition keys.
const MonthLayout = "2006-01"

// TrafficReading is one hour of traffic counts for one device on one calendar
// date. Counts are uptime-normalized and therefore fractional. A reading is a
// value object: it is never mutated after creation, only replaced.
type TrafficReading struct {
	Date          string   `json:"date"`
	Hour          int      `json:"hour"`
	Uptime        float64  `json:"uptime"`
	Heavy         float64  `json:"heavy"`
	Car           float64  `json:"car"`
	Bike          float64  `json:"bike"`
	Pedestrian    float64  `json:"pedestrian"`
	HeavyLft      float64  `json:"heavy_lft"`
	HeavyRgt      float64  `json:"heavy_rgt"`
	CarLft        float64  `json:"car_lft"`
	CarRgt        float64  `json:"car_rgt"`
	BikeLft       float64  `json:"bike_lft"`
	BikeRgt       float64  `json:"bike_rgt"`
	PedestrianLft float64  `json:"pedestrian_lft"`
	PedestrianRgt float64  `json:"pedestrian_rgt"`
	Direction     int      `json:"direction"`
	Timezone      string   `json:"timezone"`
	V85           *float64 `json:"v85,omitempty"`
}

// ReadingKey is the natural key of a reading: two readings with the same key
// are the same observation.
type ReadingKey struct {
	Date string
	Hour int
}

// Key returns the reading's natural key.
func (r TrafficReading) Key() ReadingKey {
	return ReadingKey{Date: r.Date, Hour: r.Hour}
}

// Month returns the YYYY-MM partition key derived from the reading's date.
// The result is only meaningful for well-formed dates; callers that need
// validation should use ParseDate first.
func (r TrafficReading) Month() string {
	if len(r.Date) < len(MonthLayout) {
		return r.Date
	}
	return r.Date[:len(MonthLayout)]
}

// ParseDate parses a calendar date in YYYY-MM-DD form.
func ParseDate(date string) (time.Time, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return t, nil
}

// MonthlyFile is the persisted unit for one device and one calendar month.
// Data is sorted ascending by (date, hour) and holds no duplicate keys.
type MonthlyFile struct {
	DeviceID    string           `json:"device_id"`
	Month       string           `json:"month"`
	Data        []TrafficReading `json:"data"`
	LastUpdated string           `json:"lastUpdated"`
}

// DailyEntry is one calendar day's rollup of hourly readings.
type DailyEntry struct {
	Date          string  `json:"date"`
	Heavy         float64 `json:"heavy"`
	Car           float64 `json:"car"`
	Bike          float64 `json:"bike"`
	Pedestrian    float64 `json:"pedestrian"`
	HeavyLft      float64 `json:"heavy_lft"`
	HeavyRgt      float64 `json:"heavy_rgt"`
	CarLft        float64 `json:"car_lft"`
	CarRgt        float64 `json:"car_rgt"`
	BikeLft       float64 `json:"bike_lft"`
	BikeRgt       float64 `json:"bike_rgt"`
	PedestrianLft float64 `json:"pedestrian_lft"`
	PedestrianRgt float64 `json:"pedestrian_rgt"`
	Uptime        float64 `json:"uptime"`
	HoursCovered  int     `json:"hours_covered"`
}

// DailyFile is the persisted per-month collection of daily rollups. Days is
// sorted ascending by date and holds one entry per date.
type DailyFile struct {
	DeviceID    string       `json:"device_id"`
	Month       string       `json:"month"`
	Days        []DailyEntry `json:"days"`
	LastUpdated string       `json:"lastUpdated"`
}

// DeviceMetadata is the directory record for one device. TotalDataPoints is
// recomputed from storage on every run, never incremented.
type DeviceMetadata struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Location        string `json:"location"`
	LastUpdated     string `json:"lastUpdated"`
	TotalDataPoints int    `json:"totalDataPoints"`
}
