package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chat-realtime/internal/storage"
)

// FileHandler accepts image uploads for IMAGE messages.
type FileHandler struct {
	store    storage.ImageStore
	local    *storage.LocalStore
	maxBytes int64
	logger   *zap.Logger
}

// NewFileHandler builds a FileHandler. local may be nil when images live in S3.
func NewFileHandler(store storage.ImageStore, local *storage.LocalStore, maxBytes int64, logger *zap.Logger) *FileHandler {
	return &FileHandler{store: store, local: local, maxBytes: maxBytes, logger: logger.Named("files")}
}

func (h *FileHandler) UploadImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+1024*1024)
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if fh.Size == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is empty"})
		return
	}
	if fh.Size > h.maxBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file exceeds the size limit"})
		return
	}
	contentType := fh.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file must be an image"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return
	}
	defer f.Close()

	name := storage.NewObjectName(fh.Filename, contentType)
	url, err := h.store.Save(c.Request.Context(), name, contentType, f, fh.Size)
	if err != nil {
		h.logger.Error("image upload failed", zap.String("name", name), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store image"})
		return
	}
	h.logger.Info("image uploaded", zap.String("name", name), zap.Int64("size", fh.Size))
	c.JSON(http.StatusCreated, gin.H{"image_url": url, "filename": name})
}

// ServeImage streams an image kept by the local store.
func (h *FileHandler) ServeImage(c *gin.Context) {
	if h.local == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}
	path, err := h.local.Path(c.Param("name"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
		return
	}
	c.File(path)
}
