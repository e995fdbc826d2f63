package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewRejectsBadLevel(t *testing.T) {
	if _, _, err := New("shouting", "development"); err == nil {
		t.Error("New with an unknown level should fail")
	}
}

func TestNewLevelAdjustsAtRuntime(t *testing.T) {
	log, level, err := New("info", "production")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer log.Sync()

	if log.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug should be disabled at info level")
	}
	level.SetLevel(zapcore.DebugLevel)
	if !log.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug should be enabled after SetLevel")
	}
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("warn")
	if err != nil {
		t.Fatalf("ParseLevel: %v", err)
	}
	if lvl != zapcore.WarnLevel {
		t.Errorf("level = %v, want warn", lvl)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("ParseLevel with garbage should fail")
	}
}
