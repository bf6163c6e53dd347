package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ciata/ciata-cms/internal/models"
)

func multipartBody(t *testing.T, field, filename, content string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (e *testEnv) doUpload(t *testing.T, token, field, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, field, filename, content)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestUploadPublishesAndRegisters(t *testing.T) {
	env := newTestEnv(t)

	w := env.doUpload(t, env.editorToken, "file", "logo.png", "png-bytes")
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		URL   string             `json:"url"`
		Image models.ImageRecord `json:"image"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp.URL, "/uploads/"), "url = %q", resp.URL)
	assert.Equal(t, "logo.png", resp.Image.Filename)
	assert.Equal(t, resp.URL, resp.Image.URL)

	// the file landed in the public directory
	b, err := os.ReadFile(filepath.Join(env.uploadDir, strings.TrimPrefix(resp.URL, "/uploads/")))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(b))

	// and the upload was audited
	entries, err := env.st.AuditEntries(context.Background())
	require.NoError(t, err)
	var found bool
	for _, e := range entries {
		if e.Action == models.AuditImageUpload {
			found = true
			require.NotNil(t, e.UserID)
		}
	}
	require.True(t, found)
}

func TestUploadRequiresFileField(t *testing.T) {
	env := newTestEnv(t)
	w := env.doUpload(t, env.editorToken, "attachment", "logo.png", "bytes")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadSanitizesFilename(t *testing.T) {
	env := newTestEnv(t)
	w := env.doUpload(t, env.editorToken, "file", "../escape.png", "bytes")
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	// everything stays inside the upload dir
	name := strings.TrimPrefix(resp.URL, "/uploads/")
	require.NotContains(t, name, "/")
	_, err := os.Stat(filepath.Join(env.uploadDir, name))
	require.NoError(t, err)
}
