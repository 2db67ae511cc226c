package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/my591234-max/autolabeling/internal/config"
	"github.com/my591234-max/autolabeling/internal/detection"
	"github.com/my591234-max/autolabeling/internal/handler"
	"github.com/my591234-max/autolabeling/internal/repository"
	"github.com/my591234-max/autolabeling/internal/service"
)

type Server struct {
	httpServer *http.Server
	cfg        *config.Config
	log        *zap.Logger
}

func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	client := detection.NewClient(detection.ClientConfig{
		BaseURL:          cfg.Detector.BaseURL,
		HealthTimeout:    cfg.Detector.HealthTimeout,
		InferenceTimeout: cfg.Detector.InferenceTimeout,
		Thresholds: detection.Thresholds{
			Confidence: cfg.Detector.ConfidenceThreshold,
			IoU:        cfg.Detector.IoUThreshold,
			Box:        cfg.Detector.BoxThreshold,
			Text:       cfg.Detector.TextThreshold,
			NMS:        cfg.Detector.NMSThreshold,
		},
	}, log)

	local, err := repository.NewLocalRepository(cfg.Export.Dir, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create local export repository: %w", err)
	}

	deps := service.Deps{Detector: client, Local: local}
	if cfg.S3.Enabled {
		s3Repo, err := repository.NewS3Repository(ctx, &cfg.S3, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 repository: %w", err)
		}
		deps.S3 = s3Repo
	}

	engine, err := service.NewEngine(cfg, deps, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create annotation engine: %w", err)
	}

	h := handler.NewHandler(engine, client, cfg, log)
	h.Register(router)

	server := &Server{
		httpServer: &http.Server{
			Addr:        cfg.Server.Host + ":" + cfg.Server.Port,
			Handler:     router,
			ReadTimeout: 30 * time.Second,
			// Batch detection answers only after every image was processed.
			WriteTimeout:   0,
			MaxHeaderBytes: 1 << 20, // 1 MB
		},
		cfg: cfg,
		log: log,
	}

	log.Info("Server created successfully",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
		zap.String("detector", cfg.Detector.BaseURL),
		zap.String("model", cfg.Detector.Model),
		zap.Bool("s3", cfg.S3.Enabled))

	return server, nil
}

func (s *Server) Run() error {
	s.log.Info("Server is running",
		zap.String("host", s.cfg.Server.Host),
		zap.String("port", s.cfg.Server.Port),
		zap.String("address", s.httpServer.Addr))

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server")
	return s.httpServer.Shutdown(ctx)
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Warn("Request failed", fields...)
			return
		}
		log.Debug("Request handled", fields...)
	}
}
