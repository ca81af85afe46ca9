package transcript

import "fmt"

// Timestamp formats t (ticks) as a zero-padded "HH:MM:SS.mmm" clock value.
// When comma is true the millisecond separator is "," (SRT convention)
// instead of "." (VTT convention).
func Timestamp(t int64, comma bool) string {
	msec := t * 10
	hr := msec / (1000 * 60 * 60)
	msec -= hr * (1000 * 60 * 60)
	min := msec / (1000 * 60)
	msec -= min * (1000 * 60)
	sec := msec / 1000
	msec -= sec * 1000

	sep := "."
	if comma {
		sep = ","
	}
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", hr, min, sec, sep, msec)
}

// lrcTimestamp formats t (ticks) as "MM:SS.cc" — minutes, seconds, and
// centiseconds — which is the clock format LRC lyric files use.
func lrcTimestamp(t int64) string {
	msec := t * 10
	min := msec / (1000 * 60)
	msec -= min * (1000 * 60)
	sec := msec / 1000
	msec -= sec * 1000
	return fmt.Sprintf("%02d:%02d.%02d", min, sec, msec/10)
}

// Milliseconds converts t (ticks) to milliseconds.
func Milliseconds(t int64) int64 { return t * 10 }
