// Package merge holds the pure data-shaping logic of the collector:
// deduplicating and ordering hourly readings, partitioning them by month and
// rolling them up into daily aggregates. Nothing in here touches the network
// or the filesystem.
package merge

import (
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/maxliesegang/telraam-data-collector/internal/model"
)

// MergeReadings combines existing and incoming readings into one list that is
// sorted ascending by (date, hour) and holds exactly one reading per key.
// On a key conflict the incoming reading wins: data from a later fetch is
// treated as authoritative. Merging a list into itself is a no-op beyond
// sorting and deduplication.
func MergeReadings(existing, incoming []model.TrafficReading) []model.TrafficReading {
	byKey := make(map[model.ReadingKey]model.TrafficReading, len(existing)+len(incoming))
	for _, r := range existing {
		byKey[r.Key()] = r
	}
	for _, r := range incoming {
		byKey[r.Key()] = r
	}

	merged := make([]model.TrafficReading, 0, len(byKey))
	for _, r := range byKey {
		merged = append(merged, r)
	}
	sortReadings(merged)
	return merged
}

// GroupByMonth partitions readings by their YYYY-MM month key, preserving
// encounter order within each group. Readings with an unparseable date are
// skipped with a warning rather than aborting the batch.
func GroupByMonth(readings []model.TrafficReading) map[string][]model.TrafficReading {
	groups := make(map[string][]model.TrafficReading)
	for _, r := range readings {
		if _, err := model.ParseDate(r.Date); err != nil {
			log.Warnf("Skipping reading with unparseable date %q (hour %d)", r.Date, r.Hour)
			continue
		}
		month := r.Month()
		groups[month] = append(groups[month], r)
	}
	return groups
}

// BuildDailyEntries rolls hourly readings up into one entry per calendar day:
// counts are summed across the day's hours, uptime is the arithmetic mean and
// hours_covered counts the hours present. Entries come back sorted ascending
// by date. Readings with an unparseable date are skipped with a warning.
func BuildDailyEntries(readings []model.TrafficReading) []model.DailyEntry {
	byDate := make(map[string]*model.DailyEntry)
	for _, r := range readings {
		if _, err := model.ParseDate(r.Date); err != nil {
			log.Warnf("Skipping reading with unparseable date %q in daily rollup", r.Date)
			continue
		}

		entry, ok := byDate[r.Date]
		if !ok {
			entry = &model.DailyEntry{Date: r.Date}
			byDate[r.Date] = entry
		}

		entry.Heavy += r.Heavy
		entry.Car += r.Car
		entry.Bike += r.Bike
		entry.Pedestrian += r.Pedestrian
		entry.HeavyLft += r.HeavyLft
		entry.HeavyRgt += r.HeavyRgt
		entry.CarLft += r.CarLft
		entry.CarRgt += r.CarRgt
		entry.BikeLft += r.BikeLft
		entry.BikeRgt += r.BikeRgt
		entry.PedestrianLft += r.PedestrianLft
		entry.PedestrianRgt += r.PedestrianRgt
		entry.Uptime += r.Uptime
		entry.HoursCovered++
	}

	entries := make([]model.DailyEntry, 0, len(byDate))
	for _, entry := range byDate {
		if entry.HoursCovered > 0 {
			entry.Uptime /= float64(entry.HoursCovered)
		}
		entries = append(entries, *entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Date < entries[j].Date
	})
	return entries
}

// MergeDailyEntries combines existing and incoming daily entries with the
// same last-write-wins rule as MergeReadings, keyed by date: an incoming
// entry replaces the existing one for its date wholesale, fields are never
// summed across merges. The result is sorted ascending by date.
func MergeDailyEntries(existing, incoming []model.DailyEntry) []model.DailyEntry {
	byDate := make(map[string]model.DailyEntry, len(existing)+len(incoming))
	for _, e := range existing {
		byDate[e.Date] = e
	}
	for _, e := range incoming {
		byDate[e.Date] = e
	}

	merged := make([]model.DailyEntry, 0, len(byDate))
	for _, e := range byDate {
		merged = append(merged, e)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Date < merged[j].Date
	})
	return merged
}

func sortReadings(readings []model.TrafficReading) {
	sort.Slice(readings, func(i, j int) bool {
		if readings[i].Date != readings[j].Date {
			return readings[i].Date < readings[j].Date
		}
		return readings[i].Hour < readings[j].Hour
	})
}
