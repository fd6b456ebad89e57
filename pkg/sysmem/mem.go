// Package sysmem reports the host's physical memory so cache budgets can
// scale with the machine instead of being hard-coded.
package sysmem

// FallbackBytes is assumed when the platform probe is unavailable or fails.
const FallbackBytes uint64 = 4 << 30

// Reading is one memory probe.
type Reading struct {
	// Bytes is total physical memory.
	Bytes uint64
	// Detected is false when Bytes is FallbackBytes.
	Detected bool
}

// Read probes total physical memory, falling back to FallbackBytes.
func Read() Reading {
	n, ok := probe()
	if !ok || n == 0 {
		return Reading{Bytes: FallbackBytes}
	}
	return Reading{Bytes: n, Detected: true}
}

// TotalBytes returns Read().Bytes.
func TotalBytes() uint64 {
	return Read().Bytes
}

// Budget returns total memory divided by div, clamped to [lo, hi].
func Budget(div, lo, hi uint64) uint64 {
	if div == 0 {
		div = 1
	}
	b := TotalBytes() / div
	return clamp(b, lo, hi)
}

func clamp(v, lo, hi uint64) uint64 {
	if v < lo {
		return lo
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}
