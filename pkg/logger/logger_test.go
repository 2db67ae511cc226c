package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestProductionConfig_Level(t *testing.T) {
	config, err := productionConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Level.Level() != zapcore.InfoLevel {
		t.Errorf("default level = %v, want info", config.Level.Level())
	}

	config, err = productionConfig("debug")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Level.Level() != zapcore.DebugLevel {
		t.Errorf("level = %v, want debug", config.Level.Level())
	}
	if config.EncoderConfig.TimeKey != "timestamp" || config.EncoderConfig.MessageKey != "message" {
		t.Errorf("unexpected encoder keys: %+v", config.EncoderConfig)
	}
}

func TestProductionConfig_RejectsUnknownLevel(t *testing.T) {
	if _, err := productionConfig("verbose"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
