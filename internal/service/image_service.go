package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/my591234-max/autolabeling/internal/domain"
)

// ImportImage registers an image from its encoded bytes. The first image
// imported into an empty session is displayed.
func (e *Engine) ImportImage(filename string, data []byte) (*domain.Image, error) {
	if limit := e.cfg.App.MaxUploadSize; limit > 0 && int64(len(data)) > limit {
		return nil, domain.Validation("image %s is larger than %d bytes", filename, limit)
	}
	if !e.allowedFormat(filename) {
		return nil, domain.Validation("image format of %s is not allowed", filename)
	}
	info, err := e.proc.Inspect(data, filename)
	if err != nil {
		return nil, domain.Validation("cannot read image %s: %v", filename, err)
	}

	img := domain.Image{
		ID:          uuid.New().String(),
		Name:        filepath.Base(filename),
		Width:       info.Width,
		Height:      info.Height,
		ContentType: info.ContentType,
		Size:        int64(len(data)),
		ImportedAt:  time.Now(),
	}

	e.mu.Lock()
	e.images = append(e.images, img)
	e.pixels[img.ID] = data
	e.store.SetBounds(img.ID, img.Width, img.Height)
	if e.machine.ImageID() == "" {
		e.display(img)
	}
	e.mu.Unlock()

	e.log.Info("Image imported",
		zap.String("id", img.ID),
		zap.String("filename", img.Name),
		zap.Int("width", img.Width),
		zap.Int("height", img.Height),
		zap.Int64("size", img.Size))

	return &img, nil
}

// ImportFromS3 downloads one object and imports it.
func (e *Engine) ImportFromS3(ctx context.Context, key string) (*domain.Image, error) {
	if e.s3Repo == nil {
		return nil, domain.Validation("S3 storage is not enabled")
	}
	reader, err := e.s3Repo.DownloadFile(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	defer reader.Close()

	limit := e.cfg.App.MaxUploadSize
	if limit <= 0 {
		limit = 1 << 30
	}
	data, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return e.ImportImage(path.Base(key), data)
}

// ImportPrefixFromS3 imports every image object under prefix. Objects that
// fail are logged and skipped.
func (e *Engine) ImportPrefixFromS3(ctx context.Context, prefix string) ([]domain.Image, error) {
	if e.s3Repo == nil {
		return nil, domain.Validation("S3 storage is not enabled")
	}
	if prefix == "" {
		prefix = e.cfg.S3.ImportPrefix
	}

	keys, err := e.s3Repo.ListFiles(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}

	var imported []domain.Image
	for _, key := range keys {
		if strings.HasSuffix(key, "/") || !e.allowedFormat(key) {
			continue
		}
		img, err := e.ImportFromS3(ctx, key)
		if err != nil {
			e.log.Error("Failed to import image from S3",
				zap.String("key", key),
				zap.Error(err))
			continue
		}
		imported = append(imported, *img)
	}

	e.log.Info("S3 import finished",
		zap.String("prefix", prefix),
		zap.Int("objects", len(keys)),
		zap.Int("imported", len(imported)))

	return imported, nil
}

func (e *Engine) ListImages() []domain.Image {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.Image{}, e.images...)
}

// RemoveImage drops the image, its pixels and its regions (one history
// entry). If it was displayed the next remaining image is shown.
func (e *Engine) RemoveImage(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := -1
	for i, img := range e.images {
		if img.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.Validation("image %s not found", id)
	}

	displayed := e.machine.ImageID() == id
	if displayed {
		e.machine.Finish()
	}
	e.images = append(e.images[:idx], e.images[idx+1:]...)
	delete(e.pixels, id)
	e.store.Remove(id)

	if displayed {
		if len(e.images) > 0 {
			next := idx
			if next >= len(e.images) {
				next = len(e.images) - 1
			}
			e.display(e.images[next])
		} else {
			e.machine.SetImage("", 0, 0, e.cfg.Engine.CanvasWidth, e.cfg.Engine.CanvasHeight)
		}
	}

	e.log.Info("Image removed", zap.String("id", id))
	return nil
}

// Display shows the image on the canvas, keeping the current zoom.
func (e *Engine) Display(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	img, ok := e.image(id)
	if !ok {
		return domain.Validation("image %s not found", id)
	}
	e.display(img)
	return nil
}

func (e *Engine) display(img domain.Image) {
	e.machine.SetImage(img.ID, img.Width, img.Height, e.cfg.Engine.CanvasWidth, e.cfg.Engine.CanvasHeight)
}

func (e *Engine) allowedFormat(filename string) bool {
	allowed := e.cfg.App.AllowedFormats
	if len(allowed) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(filename))
	for _, a := range allowed {
		if strings.ToLower(a) == ext {
			return true
		}
	}
	return false
}
