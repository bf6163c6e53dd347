package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ciata/ciata-cms/internal/models"
	"github.com/ciata/ciata-cms/internal/store"
	"github.com/ciata/ciata-cms/internal/users"
	"github.com/ciata/ciata-cms/pkg/logger"
	"github.com/ciata/ciata-cms/pkg/middleware"
)

// CreateUserRequest is the admin user-creation payload.
type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

// UsersHandler exposes account management (admin only).
type UsersHandler struct {
	svc *users.Service
}

func NewUsersHandler(svc *users.Service) *UsersHandler {
	return &UsersHandler{svc: svc}
}

func (h *UsersHandler) Register(rg *gin.RouterGroup, admin gin.HandlerFunc) {
	rg.POST("/users", admin, h.CreateUser)
}

// CreateUser creates an account. The response carries the user without
// its password hash; the plaintext is never logged.
func (h *UsersHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username, password and role required"})
		return
	}
	var actor *int64
	if claims := middleware.Claims(c); claims != nil {
		actor = &claims.UserID
	}
	u, err := h.svc.Create(c.Request.Context(), req.Username, req.Password, models.Role(req.Role), actor)
	if err != nil {
		switch {
		case errors.Is(err, users.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, store.ErrDuplicateUsername):
			c.JSON(http.StatusConflict, gin.H{"error": "username already exists"})
		case errors.Is(err, store.ErrUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
		default:
			logger.Errorf("create user %q: %v", req.Username, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": u})
}
