package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ciata/ciata-cms/internal/models"
)

func TestCreateUserAsAdmin(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/users", env.adminToken,
		`{"username":"writer","password":"writer-pw","role":"editor"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		User models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "writer", resp.User.Username)
	assert.Equal(t, models.RoleEditor, resp.User.Role)
	assert.NotContains(t, w.Body.String(), "$2a$", "hash must not leak")

	// the new account can log in
	w = env.do(http.MethodPost, "/auth/login", "", `{"username":"writer","password":"writer-pw"}`)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestCreateUserForbiddenForEditor(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/api/users", env.editorToken,
		`{"username":"writer","password":"writer-pw","role":"editor"}`)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateUserDuplicate(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/api/users", env.adminToken,
		`{"username":"editor","password":"other-pw","role":"editor"}`)
	require.Equal(t, http.StatusConflict, w.Code)

	// the original credentials still work
	w = env.do(http.MethodPost, "/auth/login", "", `{"username":"editor","password":"editor-pw"}`)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestCreateUserValidation(t *testing.T) {
	env := newTestEnv(t)
	for name, body := range map[string]string{
		"unknown role":   `{"username":"x","password":"pw","role":"owner"}`,
		"missing fields": `{"username":"x"}`,
		"empty password": `{"username":"x","password":"","role":"editor"}`,
	} {
		w := env.do(http.MethodPost, "/api/users", env.adminToken, body)
		require.Equal(t, http.StatusBadRequest, w.Code, name)
	}
}

func TestCreateUserWritesAudit(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/api/users", env.adminToken,
		`{"username":"writer","password":"writer-pw","role":"editor"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	entries, err := env.st.AuditEntries(context.Background())
	require.NoError(t, err)

	admin, err := env.userSvc.FindByUsername(context.Background(), "admin")
	require.NoError(t, err)

	var found bool
	for _, e := range entries {
		if e.Action != models.AuditUserCreate || e.UserID == nil || *e.UserID != admin.ID {
			continue
		}
		var payload struct {
			Username string `json:"username"`
		}
		require.NoError(t, json.Unmarshal(e.Payload, &payload))
		if payload.Username == "writer" {
			found = true
		}
	}
	require.True(t, found, "user.create entry attributed to the acting admin")
}
