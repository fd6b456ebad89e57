package memdiag

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/eunmann/csvload/pkg/logging"
	"github.com/rs/zerolog"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := *logging.L()
	prevLevel := zerolog.GlobalLevel()
	logging.SetLogger(zerolog.New(&buf))
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() {
		logging.SetLogger(prev)
		zerolog.SetGlobalLevel(prevLevel)
	})
	return &buf
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv(EnvMemDebug, "1")
	t.Setenv(EnvPprofAddr, "localhost:6061")

	cfg := ConfigFromEnv()
	if !cfg.Enabled {
		t.Error("Enabled = false, want true")
	}
	if cfg.PprofAddr != "localhost:6061" {
		t.Errorf("PprofAddr = %q", cfg.PprofAddr)
	}
	if cfg.LogInterval <= 0 {
		t.Errorf("LogInterval = %v, want positive", cfg.LogInterval)
	}

	t.Setenv(EnvMemDebug, "")
	if ConfigFromEnv().Enabled {
		t.Error("Enabled = true with env unset")
	}
}

func TestRead(t *testing.T) {
	s := Read()
	if s.HeapAlloc == 0 || s.Sys == 0 {
		t.Errorf("Read() = %+v, want non-zero heap and sys", s)
	}
}

func TestTracker_DisabledIsSilent(t *testing.T) {
	buf := captureLogs(t)

	tr := NewTracker(Config{LogInterval: time.Millisecond})
	tr.Start()
	tr.SetPhase("import")
	tr.LogNow("manual")
	tr.Stop()

	if buf.Len() != 0 {
		t.Errorf("disabled tracker logged: %s", buf.String())
	}
	if tr.PeakHeap() != 0 {
		t.Errorf("PeakHeap() = %d, want 0", tr.PeakHeap())
	}
}

func TestTracker_LogsPhaseAndPeak(t *testing.T) {
	buf := captureLogs(t)

	tr := NewTracker(Config{Enabled: true, LogInterval: time.Hour})
	tr.Start()
	tr.Start()
	tr.SetPhase("import")
	tr.Stop()
	tr.Stop()

	out := buf.String()
	for _, want := range []string{"memory diagnostics enabled", `"phase":"import"`, `"reason":"phase_change"`, `"reason":"shutdown"`} {
		if !strings.Contains(out, want) {
			t.Errorf("logs missing %s:\n%s", want, out)
		}
	}
	if tr.PeakHeap() == 0 {
		t.Error("PeakHeap() = 0 after logging")
	}
}
