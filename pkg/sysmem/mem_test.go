package sysmem

import (
	"runtime"
	"testing"
)

func TestRead(t *testing.T) {
	r := Read()
	if r.Bytes == 0 {
		t.Fatal("Read() returned 0 bytes")
	}

	switch runtime.GOOS {
	case "linux", "darwin":
		if !r.Detected {
			t.Logf("memory probe failed on %s, using fallback", runtime.GOOS)
		}
	default:
		if r.Detected || r.Bytes != FallbackBytes {
			t.Errorf("Read() = %+v on %s, want fallback", r, runtime.GOOS)
		}
	}
	if TotalBytes() != r.Bytes {
		t.Errorf("TotalBytes() = %d, want %d", TotalBytes(), r.Bytes)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		v, lo, hi, want uint64
	}{
		{v: 5, lo: 10, hi: 20, want: 10},
		{v: 15, lo: 10, hi: 20, want: 15},
		{v: 25, lo: 10, hi: 20, want: 20},
		{v: 25, lo: 10, hi: 0, want: 25},
	}
	for _, tt := range tests {
		if got := clamp(tt.v, tt.lo, tt.hi); got != tt.want {
			t.Errorf("clamp(%d, %d, %d) = %d, want %d", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
}

func TestBudget(t *testing.T) {
	const lo, hi = 64 << 20, 1 << 30
	got := Budget(8, lo, hi)
	if got < lo || got > hi {
		t.Errorf("Budget(8) = %d, want within [%d, %d]", got, lo, hi)
	}
	if got := Budget(0, 0, 0); got != TotalBytes() {
		t.Errorf("Budget(0) = %d, want total %d", got, TotalBytes())
	}
}
