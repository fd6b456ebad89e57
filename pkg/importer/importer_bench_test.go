package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/eunmann/csvload/pkg/recordstore"
	"github.com/eunmann/csvload/pkg/samplegen"
)

// longBenchEnv gates the scaling benchmark.
const longBenchEnv = "CSVLOAD_LONG_BENCH"

var (
	benchmarkSizes = []int{1_000, 10_000, 100_000}
	scalingSizes   = []int{250_000, 1_000_000}
)

func skipIfNoLongBench(b *testing.B) {
	b.Helper()
	if os.Getenv(longBenchEnv) == "" {
		b.Skip("set " + longBenchEnv + "=1 to run scaling benchmark")
	}
}

func benchmarkImport(b *testing.B, rows int) {
	dir := b.TempDir()
	src := filepath.Join(dir, "people.csv")
	if _, err := samplegen.WriteFile(src, samplegen.Config{Rows: rows}); err != nil {
		b.Fatalf("generate input: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cfg := recordstore.DefaultConfig(filepath.Join(dir, fmt.Sprintf("bench_%d.db", i)))
		res, err := New(cfg, Options{}).ImportCSVData(context.Background(), src)
		if err != nil {
			b.Fatalf("import: %v", err)
		}
		if res.Inserted != int64(rows) {
			b.Fatalf("inserted %d, want %d", res.Inserted, rows)
		}
	}
	b.ReportMetric(float64(rows)*float64(b.N)/b.Elapsed().Seconds(), "rows/s")
}

func BenchmarkImportCSVData(b *testing.B) {
	for _, n := range benchmarkSizes {
		b.Run(fmt.Sprintf("rows=%d", n), func(b *testing.B) {
			benchmarkImport(b, n)
		})
	}
}

func BenchmarkImportCSVData_Scaling(b *testing.B) {
	skipIfNoLongBench(b)
	for _, n := range scalingSizes {
		b.Run(fmt.Sprintf("rows=%d", n), func(b *testing.B) {
			benchmarkImport(b, n)
		})
	}
}
