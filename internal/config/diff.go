package config

import (
	"slices"
	"time"
)

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	StationsChanged bool
	Stations        []StationConfig

	MetadataIntervalChanged bool
	NewMetadataInterval     time.Duration
}

// Changed reports whether any hot-reloadable field differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.StationsChanged || d.MetadataIntervalChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !slices.Equal(old.Stations, new.Stations) {
		d.StationsChanged = true
		d.Stations = slices.Clone(new.Stations)
	}

	if old.Metadata.Interval != new.Metadata.Interval {
		d.MetadataIntervalChanged = true
		d.NewMetadataInterval = new.Metadata.Interval
	}

	return d
}
