package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ciata/ciata-cms/internal/config"
	"github.com/ciata/ciata-cms/internal/sessions"
	"github.com/ciata/ciata-cms/internal/tokens"
	"github.com/ciata/ciata-cms/internal/users"
	"github.com/ciata/ciata-cms/pkg/logger"
	"github.com/ciata/ciata-cms/pkg/metrics"
	"github.com/ciata/ciata-cms/pkg/middleware"
)

// LoginRequest is the password login payload.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthHandler holds dependencies
type AuthHandler struct {
	cfg      *config.Config
	usersSvc *users.Service
}

func NewAuthHandler(cfg *config.Config, u *users.Service) *AuthHandler {
	return &AuthHandler{cfg: cfg, usersSvc: u}
}

// Register routes under /auth. login is public, optionally behind a rate
// limiter; logout requires a valid token so it knows what to revoke.
func (h *AuthHandler) Register(rg *gin.RouterGroup, authn, loginLimiter gin.HandlerFunc) {
	a := rg.Group("/auth")
	login := []gin.HandlerFunc{h.Login}
	if loginLimiter != nil {
		login = append([]gin.HandlerFunc{loginLimiter}, login...)
	}
	a.POST("/login", login...)
	a.POST("/logout", authn, h.Logout)
}

// Login verifies username/password and returns a signed access token.
// Unknown user and wrong password produce the identical response.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}
	u, err := h.usersSvc.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			metrics.Logins.WithLabelValues("failure").Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		logger.Errorf("login lookup failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
		return
	}
	access, err := tokens.Generate([]byte(h.cfg.JWT.Secret), u, h.cfg.JWT.TokenTTL)
	if err != nil {
		logger.Errorf("failed to sign access token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create access token"})
		return
	}
	metrics.Logins.WithLabelValues("success").Inc()
	c.JSON(http.StatusOK, gin.H{
		"token":     access,
		"user":      u,
		"expiresIn": int(h.cfg.JWT.TokenTTL.Seconds()),
	})
}

// Logout blacklists the presented access token for its remaining
// lifetime. Without Redis this is a no-op and the token simply ages out.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.Claims(c)
	raw, _ := c.Get(middleware.TokenKey)
	token, _ := raw.(string)
	if claims == nil || token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	if claims.ExpiresAt != nil {
		ttl := time.Until(claims.ExpiresAt.Time)
		if err := sessions.BlacklistToken(c.Request.Context(), token, ttl); err != nil {
			logger.Errorf("failed to blacklist access token: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}
