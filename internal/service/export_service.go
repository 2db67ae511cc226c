package service

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/my591234-max/autolabeling/internal/domain"
	"github.com/my591234-max/autolabeling/internal/export"
)

type Destination string

const (
	DestinationLocal Destination = "local"
	DestinationS3    Destination = "s3"
)

type ExportResult struct {
	Format      export.Format `json:"format"`
	Destination Destination   `json:"destination"`
	Location    string        `json:"location"`
	Files       []string      `json:"files"`
}

// Project returns the last committed regions of every known image. A
// gesture still in progress is not included.
func (e *Engine) Project() export.Project {
	e.mu.Lock()
	defer e.mu.Unlock()
	return export.Project{
		Images:  append([]domain.Image{}, e.images...),
		Regions: e.history.Current(),
	}
}

func (e *Engine) Export(format export.Format) ([]export.File, error) {
	return export.Serialize(format, e.Project())
}

// ExportArchive renders the format and packs the files into a zip.
func (e *Engine) ExportArchive(format export.Format) ([]byte, error) {
	files, err := e.Export(format)
	if err != nil {
		return nil, err
	}
	data, err := export.Archive(files)
	if err != nil {
		return nil, &domain.ExportError{Format: string(format), Err: err}
	}
	return data, nil
}

// ExportTo renders the format and writes the files to the destination as
// one bundle. A failed delivery leaves no files behind.
func (e *Engine) ExportTo(ctx context.Context, format export.Format, dest Destination) (*ExportResult, error) {
	files, err := e.Export(format)
	if err != nil {
		return nil, err
	}
	bundle := fmt.Sprintf("%s-%s-%s", format, time.Now().UTC().Format("20060102-150405"), uuid.New().String()[:8])

	result := &ExportResult{Format: format, Destination: dest}
	for _, f := range files {
		result.Files = append(result.Files, f.Name)
	}

	switch dest {
	case DestinationLocal, "":
		if e.local == nil {
			return nil, domain.Validation("local export is not configured")
		}
		result.Destination = DestinationLocal
		contents := make(map[string][]byte, len(files))
		for _, f := range files {
			contents[f.Name] = f.Data
		}
		location, err := e.local.WriteBundle(bundle, contents)
		if err != nil {
			return nil, &domain.ExportError{Format: string(format), Err: err}
		}
		result.Location = location

	case DestinationS3:
		if e.s3Repo == nil {
			return nil, domain.Validation("S3 storage is not enabled")
		}
		prefix := path.Join(e.cfg.S3.ExportPrefix, bundle) + "/"
		if err := e.uploadBundle(ctx, prefix, files); err != nil {
			return nil, &domain.ExportError{Format: string(format), Err: err}
		}
		result.Location = prefix

	default:
		return nil, domain.Validation("unknown export destination %q", dest)
	}

	e.log.Info("Annotations exported",
		zap.String("format", string(format)),
		zap.String("destination", string(result.Destination)),
		zap.String("location", result.Location),
		zap.Int("files", len(files)))

	return result, nil
}

// uploadBundle uploads every file under prefix and removes the ones already
// uploaded if any upload fails.
func (e *Engine) uploadBundle(ctx context.Context, prefix string, files []export.File) error {
	var uploaded []string
	for _, f := range files {
		key := prefix + f.Name
		if err := e.s3Repo.UploadFile(ctx, key, bytes.NewReader(f.Data), int64(len(f.Data)), f.ContentType); err != nil {
			for _, k := range uploaded {
				if derr := e.s3Repo.DeleteFile(context.WithoutCancel(ctx), k); derr != nil {
					e.log.Error("Failed to roll back exported file",
						zap.String("key", k),
						zap.Error(derr))
				}
			}
			return fmt.Errorf("upload %s: %w", key, err)
		}
		uploaded = append(uploaded, key)
	}
	return nil
}
