package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "autolabeling"

// New builds the production JSON logger. An empty level means info.
func New(level string) (*zap.Logger, error) {
	config, err := productionConfig(level)
	if err != nil {
		return nil, err
	}
	return config.Build(zap.Fields(zap.String("service", serviceName)))
}

func productionConfig(level string) (zap.Config, error) {
	config := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return zap.Config{}, err
		}
		config.Level = zap.NewAtomicLevelAt(lvl)
	}
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.MessageKey = "message"
	config.EncoderConfig.LevelKey = "level"
	return config, nil
}
