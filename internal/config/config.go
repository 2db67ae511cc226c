package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Detector DetectorConfig
	Engine   EngineConfig
	Export   ExportConfig
	S3       S3Config
	App      AppConfig
}

type ServerConfig struct {
	Host string
	Port string
}

type DetectorConfig struct {
	BaseURL             string
	Model               string
	HealthTimeout       time.Duration
	InferenceTimeout    time.Duration
	ConfidenceThreshold float64
	IoUThreshold        float64
	BoxThreshold        float64
	TextThreshold       float64
	NMSThreshold        float64
}

type EngineConfig struct {
	CanvasWidth     float64
	CanvasHeight    float64
	DefaultLabel    string
	HistoryCapacity int
}

type ExportConfig struct {
	Dir string
}

type S3Config struct {
	Enabled         bool
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	ExportPrefix    string
	ImportPrefix    string
}

type AppConfig struct {
	MaxUploadSize  int64
	AllowedFormats []string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_HOST", "localhost")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("DETECTOR_BASE_URL", "http://localhost:8000")
	v.SetDefault("DETECTOR_MODEL", "yolov8")
	v.SetDefault("DETECTOR_HEALTH_TIMEOUT", 5*time.Second)
	v.SetDefault("DETECTOR_INFERENCE_TIMEOUT", 60*time.Second)
	v.SetDefault("DETECTOR_CONFIDENCE_THRESHOLD", 0.25)
	v.SetDefault("DETECTOR_IOU_THRESHOLD", 0.45)
	v.SetDefault("DETECTOR_BOX_THRESHOLD", 0.35)
	v.SetDefault("DETECTOR_TEXT_THRESHOLD", 0.25)
	v.SetDefault("DETECTOR_NMS_THRESHOLD", 0.5)
	v.SetDefault("ENGINE_CANVAS_WIDTH", 1200)
	v.SetDefault("ENGINE_CANVAS_HEIGHT", 800)
	v.SetDefault("ENGINE_DEFAULT_LABEL", "object")
	v.SetDefault("ENGINE_HISTORY_CAPACITY", 50)
	v.SetDefault("EXPORT_DIR", "./exports")
	v.SetDefault("S3_ENABLED", false)
	v.SetDefault("S3_ENDPOINT", "http://localhost:9000")
	v.SetDefault("S3_ACCESS_KEY_ID", "minioadmin")
	v.SetDefault("S3_SECRET_ACCESS_KEY", "minioadmin")
	v.SetDefault("S3_BUCKET_NAME", "annotations")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_EXPORT_PREFIX", "exports/")
	v.SetDefault("S3_IMPORT_PREFIX", "images/")
	v.SetDefault("APP_MAX_UPLOAD_SIZE", 50*1024*1024) // 50MB
	v.SetDefault("APP_ALLOWED_FORMATS", []string{".jpg", ".jpeg", ".png", ".webp", ".bmp", ".gif", ".tif", ".tiff"})
}

// Load reads defaults overridden by environment variables.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("SERVER_HOST"),
			Port: v.GetString("SERVER_PORT"),
		},
		Detector: DetectorConfig{
			BaseURL:             v.GetString("DETECTOR_BASE_URL"),
			Model:               v.GetString("DETECTOR_MODEL"),
			HealthTimeout:       v.GetDuration("DETECTOR_HEALTH_TIMEOUT"),
			InferenceTimeout:    v.GetDuration("DETECTOR_INFERENCE_TIMEOUT"),
			ConfidenceThreshold: v.GetFloat64("DETECTOR_CONFIDENCE_THRESHOLD"),
			IoUThreshold:        v.GetFloat64("DETECTOR_IOU_THRESHOLD"),
			BoxThreshold:        v.GetFloat64("DETECTOR_BOX_THRESHOLD"),
			TextThreshold:       v.GetFloat64("DETECTOR_TEXT_THRESHOLD"),
			NMSThreshold:        v.GetFloat64("DETECTOR_NMS_THRESHOLD"),
		},
		Engine: EngineConfig{
			CanvasWidth:     v.GetFloat64("ENGINE_CANVAS_WIDTH"),
			CanvasHeight:    v.GetFloat64("ENGINE_CANVAS_HEIGHT"),
			DefaultLabel:    v.GetString("ENGINE_DEFAULT_LABEL"),
			HistoryCapacity: v.GetInt("ENGINE_HISTORY_CAPACITY"),
		},
		Export: ExportConfig{
			Dir: v.GetString("EXPORT_DIR"),
		},
		S3: S3Config{
			Enabled:         v.GetBool("S3_ENABLED"),
			Endpoint:        v.GetString("S3_ENDPOINT"),
			AccessKeyID:     v.GetString("S3_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("S3_SECRET_ACCESS_KEY"),
			BucketName:      v.GetString("S3_BUCKET_NAME"),
			Region:          v.GetString("S3_REGION"),
			ExportPrefix:    v.GetString("S3_EXPORT_PREFIX"),
			ImportPrefix:    v.GetString("S3_IMPORT_PREFIX"),
		},
		App: AppConfig{
			MaxUploadSize:  v.GetInt64("APP_MAX_UPLOAD_SIZE"),
			AllowedFormats: v.GetStringSlice("APP_ALLOWED_FORMATS"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Export.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory %s: %w", cfg.Export.Dir, err)
	}

	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Engine.CanvasWidth <= 0 || c.Engine.CanvasHeight <= 0 {
		return fmt.Errorf("canvas size must be positive, got %vx%v", c.Engine.CanvasWidth, c.Engine.CanvasHeight)
	}
	if c.Engine.HistoryCapacity < 1 {
		return fmt.Errorf("history capacity must be at least 1, got %d", c.Engine.HistoryCapacity)
	}
	for name, v := range map[string]float64{
		"confidence": c.Detector.ConfidenceThreshold,
		"iou":        c.Detector.IoUThreshold,
		"box":        c.Detector.BoxThreshold,
		"text":       c.Detector.TextThreshold,
		"nms":        c.Detector.NMSThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s threshold must be within [0,1], got %v", name, v)
		}
	}
	if c.Detector.BaseURL == "" {
		return fmt.Errorf("detector base URL is required")
	}
	return nil
}
