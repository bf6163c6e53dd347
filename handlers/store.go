package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ciata/ciata-cms/internal/store"
	"github.com/ciata/ciata-cms/pkg/logger"
	"github.com/ciata/ciata-cms/pkg/metrics"
	"github.com/ciata/ciata-cms/pkg/middleware"
)

// StoreHandler serves the page-overrides document.
type StoreHandler struct {
	st store.Store
}

func NewStoreHandler(st store.Store) *StoreHandler {
	return &StoreHandler{st: st}
}

// Register wires document routes. get/set need authentication; export is
// admin-only and registered by the caller with the admin gate attached.
func (h *StoreHandler) Register(rg *gin.RouterGroup, admin gin.HandlerFunc) {
	rg.GET("/store", h.GetDocument)
	rg.PUT("/store", h.SetDocument)
	rg.GET("/export", admin, h.Export)
}

// GetDocument returns the current document, or 404 before the first write.
func (h *StoreHandler) GetDocument(c *gin.Context) {
	doc, err := h.st.GetDocument(c.Request.Context())
	if err != nil {
		logger.Errorf("get document: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
		return
	}
	if doc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no content saved yet"})
		return
	}
	c.JSON(http.StatusOK, doc)
}

// SetDocument replaces the document content. The body is opaque: it must
// be well-formed JSON but its shape is never inspected.
func (h *StoreHandler) SetDocument(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	if len(body) == 0 || !json.Valid(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be valid JSON"})
		return
	}
	var actor *int64
	if claims := middleware.Claims(c); claims != nil {
		actor = &claims.UserID
	}
	doc, err := h.st.SetDocument(c.Request.Context(), body, actor)
	if err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
			return
		}
		logger.Errorf("set document: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save"})
		return
	}
	metrics.DocumentWrites.Inc()
	c.JSON(http.StatusOK, gin.H{"version": doc.Version, "updatedAt": doc.UpdatedAt})
}

// Export downloads the current document content as a JSON attachment.
func (h *StoreHandler) Export(c *gin.Context) {
	doc, err := h.st.GetDocument(c.Request.Context())
	if err != nil {
		logger.Errorf("export document: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
		return
	}
	if doc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no content saved yet"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="ciata_export.json"`)
	c.Data(http.StatusOK, "application/json", doc.Content)
}
