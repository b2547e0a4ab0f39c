// Package storage keeps uploaded chat images.
package storage

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("image not found")

// ImageStore saves an image under name and returns the URL clients should use.
type ImageStore interface {
	Save(ctx context.Context, name, contentType string, body io.Reader, size int64) (string, error)
}

var extensionsByType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// NewObjectName returns a collision-free name that keeps a sensible extension.
func NewObjectName(originalName, contentType string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	if known, ok := extensionsByType[contentType]; ok {
		ext = known
	}
	if len(ext) > 8 || strings.ContainsAny(ext, `/\`) {
		ext = ""
	}
	return uuid.NewString() + ext
}

// ValidName rejects anything that could escape the storage directory.
func ValidName(name string) bool {
	return name != "" && name == filepath.Base(name) && !strings.HasPrefix(name, ".")
}
