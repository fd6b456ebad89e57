package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
)

func TestInit_Modes(t *testing.T) {
	defer Init(false, false)

	Init(false, false)
	if IsPrettyMode() {
		t.Error("expected pretty mode off for JSON output")
	}
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("expected info level, got %s", zerolog.GlobalLevel())
	}

	Init(true, false)
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Errorf("expected debug level, got %s", zerolog.GlobalLevel())
	}

	Init(false, true)
	if !IsPrettyMode() {
		t.Error("expected pretty mode on for human output")
	}
	L().Info().Msg("human output")
}

func TestWithPhase(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))
	defer Init(false, false)

	log := WithPhase("store_open")
	log.Info().Msg("opened")

	if !bytes.Contains(buf.Bytes(), []byte(`"phase":"store_open"`)) {
		t.Errorf("expected phase field in output, got: %s", buf.String())
	}
}

func TestSetLogger(t *testing.T) {
	var buf bytes.Buffer
	customLogger := zerolog.New(&buf).With().Str("custom", "field").Logger()
	SetLogger(customLogger)
	defer Init(false, false)

	L().Info().Msg("test")

	if !bytes.Contains(buf.Bytes(), []byte(`"custom":"field"`)) {
		t.Errorf("expected custom field in output, got: %s", buf.String())
	}
}
