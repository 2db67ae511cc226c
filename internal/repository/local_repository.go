package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// LocalRepository writes export bundles under a root directory.
type LocalRepository struct {
	root string
	log  *zap.Logger
}

func NewLocalRepository(root string, log *zap.Logger) (*LocalRepository, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create export root %s: %w", root, err)
	}
	return &LocalRepository{root: root, log: log}, nil
}

func (r *LocalRepository) Root() string { return r.root }

// WriteBundle writes every file into root/name. Files are staged in a
// temporary directory that is renamed into place only once all writes
// succeed, so a failed export leaves nothing behind.
func (r *LocalRepository) WriteBundle(name string, files map[string][]byte) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid bundle name %q", name)
	}
	final := filepath.Join(r.root, name)
	if _, err := os.Stat(final); err == nil {
		return "", fmt.Errorf("bundle %s already exists", final)
	}

	staging, err := os.MkdirTemp(r.root, ".staging-"+name+"-")
	if err != nil {
		return "", fmt.Errorf("create staging directory: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(staging); err != nil {
			r.log.Warn("Failed to remove staging directory", zap.String("path", staging), zap.Error(err))
		}
	}

	for fileName, data := range files {
		clean := filepath.Clean(fileName)
		if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
			cleanup()
			return "", fmt.Errorf("invalid file name %q", fileName)
		}
		path := filepath.Join(staging, clean)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			cleanup()
			return "", fmt.Errorf("create directory for %s: %w", fileName, err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			cleanup()
			return "", fmt.Errorf("write %s: %w", fileName, err)
		}
	}

	if err := os.Rename(staging, final); err != nil {
		cleanup()
		return "", fmt.Errorf("move bundle into place: %w", err)
	}

	r.log.Info("Export bundle written",
		zap.String("path", final),
		zap.Int("files", len(files)))

	return final, nil
}
