package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ciata/ciata-cms/internal/store"
	"github.com/ciata/ciata-cms/internal/uploads"
	"github.com/ciata/ciata-cms/pkg/logger"
	"github.com/ciata/ciata-cms/pkg/metrics"
	"github.com/ciata/ciata-cms/pkg/middleware"
)

// maxUploadBytes caps a single image upload.
const maxUploadBytes = 16 << 20

// UploadHandler accepts image uploads, publishes the file and records it
// in the image registry.
type UploadHandler struct {
	st      store.Store
	storage uploads.Storage
}

func NewUploadHandler(st store.Store, storage uploads.Storage) *UploadHandler {
	return &UploadHandler{st: st, storage: storage}
}

func (h *UploadHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/upload", h.Upload)
}

// Upload reads a single multipart file field named "file", moves it to
// permanent public storage and returns its URL.
func (h *UploadHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	defer f.Close()

	url, err := h.storage.Save(c.Request.Context(), fh.Filename, f, fh.Size, fh.Header.Get("Content-Type"))
	if err != nil {
		logger.Errorf("store upload %q: %v", fh.Filename, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store file"})
		return
	}

	var actor *int64
	if claims := middleware.Claims(c); claims != nil {
		actor = &claims.UserID
	}
	img, err := h.st.RegisterImage(c.Request.Context(), url, fh.Filename, actor)
	if err != nil {
		logger.Errorf("register image %q: %v", fh.Filename, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
		return
	}
	metrics.Uploads.Inc()
	c.JSON(http.StatusCreated, gin.H{"url": url, "image": img})
}
