package file

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/abduss/treedrive/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(env *testEnv) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	group := router.Group("/v1")
	group.Use(func(c *gin.Context) {
		auth.SetUser(c, auth.ContextUser{ID: env.ownerID.String()})
		c.Next()
	})
	RegisterRoutes(group, env.service)
	return router
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, content := range files {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestFileHTTPLifecycle(t *testing.T) {
	env := newTestEnv(t)
	router := newTestRouter(env)
	other := env.addFolder("other")

	body, contentType := multipartBody(t, map[string]string{"a.txt": "alpha", "b.txt": "beta"})
	req := httptest.NewRequest(http.MethodPost, "/v1/folders/"+env.folderID.String()+"/files", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var uploaded struct {
		Files []Metadata `json:"files"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &uploaded))
	require.Len(t, uploaded.Files, 2)
	fileID := uploaded.Files[0].ID.String()
	assert.NotContains(t, rec.Body.String(), "object_key")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/files/"+fileID+"/download", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, []string{"alpha", "beta"}, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	move := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/v1/files/"+fileID+"/move",
			bytes.NewBufferString(`{"target_folder_id":"`+target+`"}`))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(rec, req)
		return rec
	}
	assert.Equal(t, http.StatusBadRequest, move(env.folderID.String()).Code)
	assert.Equal(t, http.StatusNotFound, move(uuid.NewString()).Code)
	assert.Equal(t, http.StatusBadRequest, move("not-a-uuid").Code)
	assert.Equal(t, http.StatusOK, move(other.String()).Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/files/"+fileID, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/files/"+fileID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadWithoutFilesIsRejected(t *testing.T) {
	env := newTestEnv(t)
	router := newTestRouter(env)

	body, contentType := multipartBody(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/folders/"+env.folderID.String()+"/files", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
