package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ciata/ciata-cms/internal/sessions"
	"github.com/ciata/ciata-cms/internal/tokens"
)

func TestLoginSuccess(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/auth/login", "", `{"username":"admin","password":"admin-pw"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token     string `json:"token"`
		ExpiresIn int    `json:"expiresIn"`
		User      struct {
			Username string `json:"username"`
			Role     string `json:"role"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "admin", resp.User.Username)
	assert.Equal(t, "admin", resp.User.Role)
	assert.Equal(t, int((12 * time.Hour).Seconds()), resp.ExpiresIn)

	// the token verifies and carries the role
	claims, err := tokens.Parse([]byte(env.cfg.JWT.Secret), resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)

	// the hash never leaks into the response
	assert.NotContains(t, w.Body.String(), "password")
	assert.NotContains(t, w.Body.String(), "$2a$")
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)

	wrongPw := env.do(http.MethodPost, "/auth/login", "", `{"username":"admin","password":"nope"}`)
	unknown := env.do(http.MethodPost, "/auth/login", "", `{"username":"ghost","password":"nope"}`)

	require.Equal(t, http.StatusUnauthorized, wrongPw.Code)
	require.Equal(t, http.StatusUnauthorized, unknown.Code)
	// byte-identical bodies: no oracle for which case occurred
	require.Equal(t, wrongPw.Body.String(), unknown.Body.String())
}

func TestLoginRejectsMissingFields(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/auth/login", "", `{"username":"admin"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogoutWithoutRedisIsGraceful(t *testing.T) {
	env := newTestEnv(t)
	sessions.SetBlacklistClient(nil)

	w := env.do(http.MethodPost, "/auth/logout", env.adminToken, "")
	require.Equal(t, http.StatusOK, w.Code)

	// without Redis the token simply stays valid until expiry
	w = env.do(http.MethodGet, "/api/store", env.adminToken, "")
	require.NotEqual(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutRevokesTokenWithRedis(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	sessions.SetBlacklistClient(redis.NewClient(&redis.Options{Addr: m.Addr()}))
	defer sessions.SetBlacklistClient(nil)

	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/auth/logout", env.adminToken, "")
	require.Equal(t, http.StatusOK, w.Code)

	// the revoked token no longer authenticates
	w = env.do(http.MethodGet, "/api/store", env.adminToken, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// other sessions are unaffected
	w = env.do(http.MethodGet, "/api/store", env.editorToken, "")
	require.NotEqual(t, http.StatusUnauthorized, w.Code)
}
