// Package humanfmt provides human-readable formatting for import summaries:
// byte sizes, row counts, durations and rates, plus size parsing for flags.
package humanfmt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Binary (IEC) units for bytes.
const (
	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
	TiB = 1024 * GiB
)

var byteUnits = []struct {
	size   float64
	suffix string
}{
	{TiB, "TiB"},
	{GiB, "GiB"},
	{MiB, "MiB"},
	{KiB, "KiB"},
}

var countUnits = []struct {
	size   float64
	suffix string
}{
	{1e9, "B"},
	{1e6, "M"},
	{1e3, "K"},
}

// Bytes formats a byte count using IEC binary units, e.g. "1.23 GiB".
func Bytes(b int64) string {
	return scaleBytes(float64(b), "")
}

// Throughput formats bytes per duration, e.g. "123.40 MiB/s".
func Throughput(bytes int64, d time.Duration) string {
	if d <= 0 {
		return "∞"
	}
	bps := float64(bytes) / d.Seconds()
	if bps < KiB {
		return fmt.Sprintf("%.0f B/s", bps)
	}
	return scaleBytes(bps, "/s")
}

func scaleBytes(v float64, per string) string {
	if v >= 0 {
		for _, u := range byteUnits {
			if v >= u.size {
				return fmt.Sprintf("%.2f %s%s", v/u.size, u.suffix, per)
			}
		}
	}
	return fmt.Sprintf("%d B%s", int64(v), per)
}

// Count formats a row count with K/M/B suffixes, e.g. "1.50M".
func Count(n int64) string {
	if n < 0 {
		return strconv.FormatInt(n, 10)
	}
	for _, u := range countUnits {
		if float64(n) >= u.size {
			return fmt.Sprintf("%.2f%s", float64(n)/u.size, u.suffix)
		}
	}
	return strconv.FormatInt(n, 10)
}

// Rate formats rows per second, e.g. "850 rows/s" or "1.20M rows/s".
func Rate(rows int64, d time.Duration) string {
	if d <= 0 {
		return "∞"
	}
	perSec := float64(rows) / d.Seconds()
	for _, u := range countUnits {
		if perSec >= u.size {
			return fmt.Sprintf("%.2f%s rows/s", perSec/u.size, u.suffix)
		}
	}
	return fmt.Sprintf("%.0f rows/s", perSec)
}

// Duration formats a duration compactly.
// Examples: "1.23s", "45.6ms", "789µs", "1m30s", "2h15m".
func Duration(d time.Duration) string {
	if d < 0 {
		return d.String()
	}

	switch {
	case d >= time.Hour:
		h := d / time.Hour
		m := (d % time.Hour) / time.Minute
		if m == 0 {
			return fmt.Sprintf("%dh", h)
		}
		return fmt.Sprintf("%dh%dm", h, m)
	case d >= time.Minute:
		m := d / time.Minute
		s := (d % time.Minute) / time.Second
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm%ds", m, s)
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	case d >= time.Microsecond:
		return fmt.Sprintf("%.1fµs", float64(d)/float64(time.Microsecond))
	default:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
}

// ParseBytes parses a human-readable size such as "256MiB", "1GB" or "4096".
// Supported suffixes: B, K/KB/KiB, M/MB/MiB, G/GB/GiB, T/TB/TiB.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty size string")
	}

	numEnd := len(s)
	for i, c := range s {
		if (c < '0' || c > '9') && c != '.' {
			numEnd = i
			break
		}
	}

	num, err := strconv.ParseFloat(s[:numEnd], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number in size %q", s)
	}

	var multiplier float64
	switch strings.TrimSpace(s[numEnd:]) {
	case "", "B":
		multiplier = 1
	case "KB":
		multiplier = 1e3
	case "KiB", "K":
		multiplier = KiB
	case "MB":
		multiplier = 1e6
	case "MiB", "M":
		multiplier = MiB
	case "GB":
		multiplier = 1e9
	case "GiB", "G":
		multiplier = GiB
	case "TB":
		multiplier = 1e12
	case "TiB", "T":
		multiplier = TiB
	default:
		return 0, fmt.Errorf("unknown size suffix in %q", s)
	}

	return int64(num * multiplier), nil
}
