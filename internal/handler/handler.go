package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/my591234-max/autolabeling/internal/config"
	"github.com/my591234-max/autolabeling/internal/detection"
	"github.com/my591234-max/autolabeling/internal/domain"
	"github.com/my591234-max/autolabeling/internal/export"
	"github.com/my591234-max/autolabeling/internal/geometry"
	"github.com/my591234-max/autolabeling/internal/interaction"
	"github.com/my591234-max/autolabeling/internal/selection"
	"github.com/my591234-max/autolabeling/internal/service"
)

// ModelLister asks the detection service which models it has loaded.
type ModelLister interface {
	ListModels(ctx context.Context) (json.RawMessage, error)
}

type Handler struct {
	engine *service.Engine
	models ModelLister
	cfg    *config.Config
	log    *zap.Logger
}

func NewHandler(engine *service.Engine, models ModelLister, cfg *config.Config, log *zap.Logger) *Handler {
	return &Handler{
		engine: engine,
		models: models,
		cfg:    cfg,
		log:    log,
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

func (h *Handler) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.State())
}

func (h *Handler) ListModels(c *gin.Context) {
	resp := gin.H{
		"models":  detection.Models(),
		"current": h.engine.Model(),
	}
	if h.models != nil {
		loaded, err := h.models.ListModels(c.Request.Context())
		if err != nil {
			h.log.Warn("Failed to list service models", zap.Error(err))
		} else {
			resp["service"] = loaded
		}
	}
	c.JSON(http.StatusOK, resp)
}

type modelRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *Handler) SetModel(c *gin.Context) {
	var req modelRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.engine.SetModel(req.Name); err != nil {
		h.fail(c, err, "Failed to select model")
		return
	}
	c.JSON(http.StatusOK, gin.H{"model": h.engine.Model()})
}

func (h *Handler) UploadImage(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		h.log.Error("Failed to get file from form", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image file provided"})
		return
	}

	if limit := h.cfg.App.MaxUploadSize; limit > 0 && file.Size > limit {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File too large"})
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !h.allowedFormat(ext) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid file format. Allowed: %s", strings.Join(h.cfg.App.AllowedFormats, ", "))})
		return
	}

	f, err := file.Open()
	if err != nil {
		h.log.Error("Failed to open file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process file"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		h.log.Error("Failed to read file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return
	}

	image, err := h.engine.ImportImage(file.Filename, data)
	if err != nil {
		h.fail(c, err, "Failed to import image")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Image imported successfully",
		"image":   image,
	})
}

type s3ImportRequest struct {
	Key    string `json:"key"`
	Prefix string `json:"prefix"`
}

// ImportFromS3 imports a single key, or every image under a prefix.
func (h *Handler) ImportFromS3(c *gin.Context) {
	var req s3ImportRequest
	if !h.bind(c, &req) {
		return
	}
	if req.Key != "" {
		image, err := h.engine.ImportFromS3(c.Request.Context(), req.Key)
		if err != nil {
			h.fail(c, err, "Failed to import image from S3")
			return
		}
		c.JSON(http.StatusOK, gin.H{"images": []domain.Image{*image}})
		return
	}
	images, err := h.engine.ImportPrefixFromS3(c.Request.Context(), req.Prefix)
	if err != nil {
		h.fail(c, err, "Failed to import images from S3")
		return
	}
	c.JSON(http.StatusOK, gin.H{"images": images})
}

func (h *Handler) ListImages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"images": h.engine.ListImages()})
}

func (h *Handler) RemoveImage(c *gin.Context) {
	if err := h.engine.RemoveImage(c.Param("id")); err != nil {
		h.fail(c, err, "Failed to remove image")
		return
	}
	c.JSON(http.StatusOK, h.engine.State())
}

func (h *Handler) Display(c *gin.Context) {
	if err := h.engine.Display(c.Param("id")); err != nil {
		h.fail(c, err, "Failed to display image")
		return
	}
	c.JSON(http.StatusOK, h.engine.State())
}

type modeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

func (h *Handler) SetMode(c *gin.Context) {
	var req modeRequest
	if !h.bind(c, &req) {
		return
	}
	mode, ok := interaction.ParseMode(req.Mode)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown mode %q", req.Mode)})
		return
	}
	h.engine.SetMode(mode)
	c.JSON(http.StatusOK, gin.H{"mode": mode.String()})
}

type zoomRequest struct {
	Zoom float64 `json:"zoom" binding:"required"`
}

func (h *Handler) SetZoom(c *gin.Context) {
	var req zoomRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.engine.SetZoom(req.Zoom); err != nil {
		h.fail(c, err, "Failed to set zoom")
		return
	}
	c.JSON(http.StatusOK, gin.H{"zoom": req.Zoom})
}

type labelRequest struct {
	Label string `json:"label" binding:"required"`
}

func (h *Handler) SetDefaultLabel(c *gin.Context) {
	var req labelRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.engine.SetDefaultLabel(req.Label); err != nil {
		h.fail(c, err, "Failed to set default label")
		return
	}
	c.JSON(http.StatusOK, gin.H{"default_label": strings.TrimSpace(req.Label)})
}

type pointerRequest struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Modifier string  `json:"modifier"`
}

// Pointer forwards down/move/up events in view coordinates.
func (h *Handler) Pointer(c *gin.Context) {
	var req pointerRequest
	if !h.bind(c, &req) {
		return
	}
	p := geometry.Point{X: req.X, Y: req.Y}
	var out interaction.Outcome
	switch c.Param("action") {
	case "down":
		out = h.engine.PointerDown(p, selection.ParseModifier(req.Modifier))
	case "move":
		out = h.engine.PointerMove(p)
	case "up":
		out = h.engine.PointerUp(p)
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown pointer action"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) Regions(c *gin.Context) {
	regions, err := h.engine.Regions(c.Param("id"))
	if err != nil {
		h.fail(c, err, "Failed to get regions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"regions": regions})
}

func (h *Handler) ClearRegions(c *gin.Context) {
	if err := h.engine.ClearRegions(c.Param("id")); err != nil {
		h.fail(c, err, "Failed to clear regions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"regions": []domain.Region{}})
}

type bulkRequest struct {
	Action string `json:"action" binding:"required"`
	Label  string `json:"label"`
}

func (h *Handler) BulkAction(c *gin.Context) {
	var req bulkRequest
	if !h.bind(c, &req) {
		return
	}
	n, err := h.engine.ApplyToSelection(service.BulkAction(strings.ToLower(req.Action)), req.Label)
	if err != nil {
		h.fail(c, err, "Failed to apply bulk action")
		return
	}
	c.JSON(http.StatusOK, gin.H{"affected": n, "selected": h.engine.Selected()})
}

func (h *Handler) SetRegionLabel(c *gin.Context) {
	rid, err := strconv.Atoi(c.Param("rid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "region id must be an integer"})
		return
	}
	var req labelRequest
	if !h.bind(c, &req) {
		return
	}
	region, err := h.engine.SetRegionLabel(c.Param("id"), rid, req.Label)
	if err != nil {
		h.fail(c, err, "Failed to set region label")
		return
	}
	c.JSON(http.StatusOK, gin.H{"region": region})
}

func (h *Handler) Undo(c *gin.Context) {
	applied := h.engine.Undo()
	c.JSON(http.StatusOK, gin.H{"applied": applied, "state": h.engine.State()})
}

func (h *Handler) Redo(c *gin.Context) {
	applied := h.engine.Redo()
	c.JSON(http.StatusOK, gin.H{"applied": applied, "state": h.engine.State()})
}

type detectRequest struct {
	ImageID string `json:"image_id"`
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	Confirm bool   `json:"confirm"`
}

func (h *Handler) Detect(c *gin.Context) {
	var req detectRequest
	if c.Request.ContentLength != 0 && !h.bind(c, &req) {
		return
	}
	regions, err := h.engine.DetectImage(c.Request.Context(), service.DetectOptions{
		ImageID: req.ImageID,
		Model:   req.Model,
		Prompt:  req.Prompt,
		Confirm: req.Confirm,
	})
	if err != nil {
		h.fail(c, err, "Detection failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"regions": regions, "count": len(regions)})
}

// DetectAll runs the batch to completion even if the client goes away.
func (h *Handler) DetectAll(c *gin.Context) {
	var req detectRequest
	if c.Request.ContentLength != 0 && !h.bind(c, &req) {
		return
	}
	ctx := context.WithoutCancel(c.Request.Context())
	report, err := h.engine.DetectAll(ctx, service.BatchOptions{
		Model:   req.Model,
		Prompt:  req.Prompt,
		Confirm: req.Confirm,
		Progress: func(done, total int, r service.ImageResult) {
			h.log.Info("Batch detection progress",
				zap.Int("done", done),
				zap.Int("total", total),
				zap.String("image", r.Name),
				zap.Bool("ok", r.OK()))
		},
	})
	if err != nil {
		h.fail(c, err, "Batch detection failed")
		return
	}
	c.JSON(http.StatusOK, report)
}

// DownloadExport streams the rendered format as a zip archive.
func (h *Handler) DownloadExport(c *gin.Context) {
	format, ok := export.ParseFormat(c.Param("format"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown export format %q", c.Param("format"))})
		return
	}
	data, err := h.engine.ExportArchive(format)
	if err != nil {
		h.fail(c, err, "Export failed")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="annotations-%s.zip"`, format))
	c.Data(http.StatusOK, "application/zip", data)
}

type exportRequest struct {
	Destination string `json:"destination"`
}

// SaveExport writes the rendered format to the local export directory or S3.
func (h *Handler) SaveExport(c *gin.Context) {
	format, ok := export.ParseFormat(c.Param("format"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown export format %q", c.Param("format"))})
		return
	}
	var req exportRequest
	if c.Request.ContentLength != 0 && !h.bind(c, &req) {
		return
	}
	res, err := h.engine.ExportTo(c.Request.Context(), format, service.Destination(strings.ToLower(req.Destination)))
	if err != nil {
		h.fail(c, err, "Export failed")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return false
	}
	return true
}

// fail maps engine errors to HTTP statuses.
func (h *Handler) fail(c *gin.Context, err error, msg string) {
	status := http.StatusInternalServerError
	var ne *domain.NetworkError
	switch {
	case errors.Is(err, domain.ErrConfirmationRequired):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "confirmation_required": true})
		return
	case domain.IsValidation(err):
		status = http.StatusBadRequest
	case domain.IsDecode(err):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &ne):
		status = http.StatusBadGateway
		if ne.Timeout {
			status = http.StatusGatewayTimeout
		}
	}

	if status >= http.StatusInternalServerError {
		h.log.Error(msg, zap.Error(err))
	} else {
		h.log.Warn(msg, zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *Handler) allowedFormat(ext string) bool {
	if len(h.cfg.App.AllowedFormats) == 0 {
		return true
	}
	for _, a := range h.cfg.App.AllowedFormats {
		if strings.ToLower(a) == ext {
			return true
		}
	}
	return false
}
