package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("EXPORT_DIR", t.TempDir())
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Detector.HealthTimeout != 5*time.Second || cfg.Detector.InferenceTimeout != 60*time.Second {
		t.Fatalf("unexpected timeouts %v %v", cfg.Detector.HealthTimeout, cfg.Detector.InferenceTimeout)
	}
	if cfg.Engine.HistoryCapacity != 50 || cfg.Engine.DefaultLabel != "object" {
		t.Fatalf("unexpected engine defaults %+v", cfg.Engine)
	}
	if cfg.Detector.Model != "yolov8" || cfg.Detector.NMSThreshold != 0.5 {
		t.Fatalf("unexpected detector defaults %+v", cfg.Detector)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("EXPORT_DIR", t.TempDir())
	t.Setenv("DETECTOR_MODEL", "grounding-dino")
	t.Setenv("DETECTOR_INFERENCE_TIMEOUT", "90s")
	t.Setenv("ENGINE_CANVAS_WIDTH", "640")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Detector.Model != "grounding-dino" || cfg.Detector.InferenceTimeout != 90*time.Second || cfg.Engine.CanvasWidth != 640 {
		t.Fatalf("env overrides not applied: %+v %+v", cfg.Detector, cfg.Engine)
	}
}

func TestLoad_RejectsBadThreshold(t *testing.T) {
	t.Setenv("EXPORT_DIR", t.TempDir())
	t.Setenv("DETECTOR_IOU_THRESHOLD", "1.5")
	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error for iou threshold 1.5")
	}
}
