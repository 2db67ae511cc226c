package utils

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

type ImageInfo struct {
	Width       int
	Height      int
	Format      string
	ContentType string
}

type ImageProcessor struct {
	log *zap.Logger
}

func NewImageProcessor(log *zap.Logger) *ImageProcessor {
	return &ImageProcessor{log: log}
}

// Inspect reads only the image header to get its pixel size and format.
func (p *ImageProcessor) Inspect(data []byte, filename string) (ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{}, fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return ImageInfo{}, fmt.Errorf("image has no pixels: %dx%d", cfg.Width, cfg.Height)
	}

	info := ImageInfo{
		Width:       cfg.Width,
		Height:      cfg.Height,
		Format:      format,
		ContentType: ContentType(data, filename),
	}

	p.log.Debug("Image inspected",
		zap.String("file", filename),
		zap.String("format", format),
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height))

	return info, nil
}

// ContentType sniffs the payload, falling back to the file extension.
func ContentType(data []byte, filename string) string {
	ct := http.DetectContentType(data)
	if strings.HasPrefix(ct, "image/") {
		return ct
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".gif":
		return "image/gif"
	}
	return "image/jpeg"
}

// EncodeDataURL returns data as a base64 data URL, the payload format the detection service expects.
func EncodeDataURL(data []byte, contentType string) string {
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
