// Package membudget decides how much memory the record store's page cache
// may use, and records where that number came from.
//
// Precedence: an explicit CLI value, then the CSVLOAD_CACHE_SIZE environment
// variable, then one eighth of detected RAM clamped to [MinBytes, MaxBytes].
package membudget

import (
	"fmt"
	"os"

	"github.com/eunmann/csvload/pkg/humanfmt"
	"github.com/eunmann/csvload/pkg/sysmem"
)

// EnvCacheSize overrides the automatic budget, e.g. "256MiB".
const EnvCacheSize = "CSVLOAD_CACHE_SIZE"

// Bounds and divisor for the automatic budget.
const (
	MinBytes    uint64 = 64 * humanfmt.MiB
	MaxBytes    uint64 = 1 * humanfmt.GiB
	RAMFraction uint64 = 8
)

// Source indicates how the budget was determined.
type Source string

const (
	// SourceAuto means the budget was derived from detected RAM.
	SourceAuto Source = "auto"
	// SourceDefault means RAM detection failed and the fallback size was used.
	SourceDefault Source = "default"
	// SourceCLI means the budget was set via CLI flag.
	SourceCLI Source = "cli"
	// SourceEnv means the budget was set via EnvCacheSize.
	SourceEnv Source = "env"
)

// Budget is a resolved cache size.
type Budget struct {
	Bytes  uint64
	Source Source
}

// KiB returns the budget in KiB, the unit of the cache_size pragma.
func (b Budget) KiB() int {
	return int(b.Bytes / humanfmt.KiB)
}

func (b Budget) String() string {
	return fmt.Sprintf("%s (%s)", humanfmt.Bytes(int64(b.Bytes)), b.Source)
}

// Auto returns the RAM-derived budget.
func Auto() Budget {
	src := SourceAuto
	if !sysmem.Read().Detected {
		src = SourceDefault
	}
	return Budget{
		Bytes:  sysmem.Budget(RAMFraction, MinBytes, MaxBytes),
		Source: src,
	}
}

// Resolve picks the budget from cli, then the environment, then Auto.
func Resolve(cli string) (Budget, error) {
	if cli != "" {
		n, err := parse(cli)
		if err != nil {
			return Budget{}, fmt.Errorf("parse %q: %w", cli, err)
		}
		return Budget{Bytes: n, Source: SourceCLI}, nil
	}
	if env := os.Getenv(EnvCacheSize); env != "" {
		n, err := parse(env)
		if err != nil {
			return Budget{}, fmt.Errorf("%s: %w", EnvCacheSize, err)
		}
		return Budget{Bytes: n, Source: SourceEnv}, nil
	}
	return Auto(), nil
}

func parse(s string) (uint64, error) {
	n, err := humanfmt.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	if n < humanfmt.KiB {
		return 0, fmt.Errorf("cache size %q is below 1KiB", s)
	}
	return uint64(n), nil
}
