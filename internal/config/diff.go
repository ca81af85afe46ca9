package config

import "slices"

// ConfigDiff describes what changed between two loaded configs. A running
// session can only pick up a handful of settings; everything else is
// reported under RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RestartRequired names the config sections whose changes only take
	// effect on the next session.
	RestartRequired []string
}

// Changed reports whether the two configs differ at all.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.LogLevel != new.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.LogLevel
	}

	if old.Model != new.Model {
		d.RestartRequired = append(d.RestartRequired, "model")
	}
	if old.Capture != new.Capture {
		d.RestartRequired = append(d.RestartRequired, "capture")
	}
	if !outputEqual(&old.Output, &new.Output) {
		d.RestartRequired = append(d.RestartRequired, "output")
	}
	if old.Server != new.Server {
		d.RestartRequired = append(d.RestartRequired, "server")
	}

	return d
}

// outputEqual compares two output sections; Formats is the only field that
// needs element-wise comparison.
func outputEqual(a, b *OutputConfig) bool {
	if !slices.Equal(a.Formats, b.Formats) {
		return false
	}
	ac, bc := *a, *b
	ac.Formats, bc.Formats = nil, nil
	return ac == bc
}
