package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/ciata/ciata-cms/internal/models"
)

func limitedRouter(rps float64, burst int) *gin.Engine {
	r := gin.New()
	r.POST("/login", RateLimitMiddleware(rps, burst), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func hit(r *gin.Engine, ip, token string) int {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = ip + ":12345"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimitAllowsWithinBurst(t *testing.T) {
	r := limitedRouter(1, 3)
	ip := uniqueIP()
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, hit(r, ip, ""), "request %d", i)
	}
	require.Equal(t, http.StatusTooManyRequests, hit(r, ip, ""))
}

func TestRateLimitKeysByClientIP(t *testing.T) {
	r := limitedRouter(1, 1)
	a, b := uniqueIP(), uniqueIP()
	require.Equal(t, http.StatusOK, hit(r, a, ""))
	require.Equal(t, http.StatusTooManyRequests, hit(r, a, ""))
	// a different client has its own bucket
	require.Equal(t, http.StatusOK, hit(r, b, ""))
}

func TestRateLimitKeysByUsernameWhenAuthenticated(t *testing.T) {
	r := gin.New()
	r.POST("/login", AuthMiddleware(testSecret), RateLimitMiddleware(1, 1), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	token := signToken(t, &models.User{ID: 1, Username: "limited-" + uniqueIP(), Role: models.RoleEditor})

	// same user from two addresses shares one bucket
	require.Equal(t, http.StatusOK, hit(r, uniqueIP(), token))
	require.Equal(t, http.StatusTooManyRequests, hit(r, uniqueIP(), token))
}

func TestRateLimitRefills(t *testing.T) {
	r := limitedRouter(20, 1)
	ip := uniqueIP()
	require.Equal(t, http.StatusOK, hit(r, ip, ""))
	require.Equal(t, http.StatusTooManyRequests, hit(r, ip, ""))

	time.Sleep(120 * time.Millisecond)
	require.Equal(t, http.StatusOK, hit(r, ip, ""))
}

var ipCounter int

// uniqueIP hands out a fresh client address per call so tests do not
// share buckets through the package-level limiter store.
func uniqueIP() string {
	ipCounter++
	return fmt.Sprintf("10.1.%d.%d", ipCounter/250, ipCounter%250+1)
}
