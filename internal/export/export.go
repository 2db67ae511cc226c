// Package export converts committed regions into annotation file formats.
// Every serializer is a pure function of the project it is given.
package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/my591234-max/autolabeling/internal/domain"
)

type Format string

const (
	FormatYOLO Format = "yolo"
	FormatCOCO Format = "coco"
	FormatVOC  Format = "voc"
	FormatJSON Format = "json"
)

func ParseFormat(s string) (Format, bool) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatYOLO, FormatCOCO, FormatVOC, FormatJSON:
		return f, true
	}
	return "", false
}

// File is one output document, named relative to the export root.
type File struct {
	Name        string
	Data        []byte
	ContentType string
}

// Project is the export input: images in import order and their regions.
// Region lists for images not in Images are ignored.
type Project struct {
	Images  []domain.Image
	Regions domain.RegionsByImage
}

// Serialize renders the project in the given format. On failure no files
// are returned and the error is an *domain.ExportError.
func Serialize(format Format, p Project) ([]File, error) {
	var (
		files []File
		err   error
	)
	switch format {
	case FormatYOLO:
		files, err = YOLO(p)
	case FormatCOCO:
		files, err = COCO(p)
	case FormatVOC:
		files, err = VOC(p)
	case FormatJSON:
		files, err = JSON(p)
	default:
		err = fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return nil, &domain.ExportError{Format: string(format), Err: err}
	}
	return files, nil
}

// Archive packs files into a zip, preserving order.
func Archive(files []File) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	now := time.Now()
	for _, f := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: zip.Deflate, Modified: now})
		if err != nil {
			return nil, fmt.Errorf("add %s to archive: %w", f.Name, err)
		}
		if _, err := w.Write(f.Data); err != nil {
			return nil, fmt.Errorf("write %s to archive: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}

// classIndex assigns label indices in first-seen order across the project.
func classIndex(p Project) ([]string, map[string]int) {
	var names []string
	index := map[string]int{}
	for _, img := range p.Images {
		for _, r := range p.Regions[img.ID] {
			if _, ok := index[r.Label]; !ok {
				index[r.Label] = len(names)
				names = append(names, r.Label)
			}
		}
	}
	return names, index
}

// stems returns a distinct base file name per image; repeated names get a
// numeric suffix.
func stems(images []domain.Image) []string {
	out := make([]string, len(images))
	seen := map[string]int{}
	for i, img := range images {
		name := filepath.Base(img.Name)
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		if stem == "" || stem == "." || stem == string(filepath.Separator) {
			stem = img.ID
		}
		seen[stem]++
		if n := seen[stem]; n > 1 {
			stem = fmt.Sprintf("%s_%d", stem, n)
		}
		out[i] = stem
	}
	return out
}

func checkSize(img domain.Image) error {
	if img.Width <= 0 || img.Height <= 0 {
		return fmt.Errorf("image %s has no pixel size", img.Name)
	}
	return nil
}
