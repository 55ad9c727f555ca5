package image

import (
	"bytes"
	"encoding/json"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestRouter(t *testing.T, store *memoryStore, repo *fakeRepo) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t)
	router := gin.New()
	RegisterRoutes(router, NewService(repo, store, nil, Options{}, log), log)
	return router
}

func multipartRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestUploadHandlerReturnsMetadata(t *testing.T) {
	store := newMemoryStore()
	repo := &fakeRepo{}
	router := newTestRouter(t, store, repo)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, multipartRequest(t, "file", "cat.png", make([]byte, 1024)))

	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Message      string   `json:"message"`
		Metadata     Metadata `json:"metadata"`
		DownloadLink string   `json:"download_link"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "File cat.png uploaded successfully", resp.Message)
	assert.Equal(t, ".png", resp.Metadata.FileExtension)
	assert.EqualValues(t, 1024, resp.Metadata.FileSize)
	assert.NotEmpty(t, resp.DownloadLink)
	assert.Len(t, repo.rows, 1)
}

func TestUploadHandlerRequiresFileField(t *testing.T) {
	store := newMemoryStore()
	router := newTestRouter(t, store, &fakeRepo{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, multipartRequest(t, "attachment", "cat.png", []byte("meow")))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Zero(t, store.putCalls)
}

func TestDownloadHandlerStreamsBytes(t *testing.T) {
	store := newMemoryStore()
	store.objects["notes.txt"] = storedObject{data: []byte("hello world"), contentType: "text/plain; charset=utf-8"}
	router := newTestRouter(t, store, &fakeRepo{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/download/notes.txt", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "hello world", rr.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=notes.txt", rr.Header().Get("Content-Disposition"))
}

func TestDownloadHandlerEncodesFilename(t *testing.T) {
	store := newMemoryStore()
	store.objects["кот \"1\".png"] = storedObject{data: []byte("meow")}
	store.objects["my cat.png"] = storedObject{data: []byte("meow")}
	router := newTestRouter(t, store, &fakeRepo{})

	cases := map[string]string{
		"/download/%D0%BA%D0%BE%D1%82%20%221%22.png": "кот \"1\".png",
		"/download/my%20cat.png":                     "my cat.png",
	}
	for path, name := range cases {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rr.Code, path)

		disposition, params, err := mime.ParseMediaType(rr.Header().Get("Content-Disposition"))
		require.NoError(t, err, path)
		assert.Equal(t, "attachment", disposition)
		assert.Equal(t, name, params["filename"])
	}
}

func TestHandlersMapMissingObjectTo404(t *testing.T) {
	router := newTestRouter(t, newMemoryStore(), &fakeRepo{})

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/download/ghost.png", nil),
		httptest.NewRequest(http.MethodGet, "/metadata/ghost.png", nil),
		httptest.NewRequest(http.MethodDelete, "/delete/ghost.png", nil),
	} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNotFound, rr.Code, req.URL.Path)
	}
}

func TestMetadataAndDeleteHandlers(t *testing.T) {
	store := newMemoryStore()
	store.objects["cat.png"] = storedObject{data: make([]byte, 10), modified: store.now}
	router := newTestRouter(t, store, &fakeRepo{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metadata/cat.png", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var meta Metadata
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &meta))
	assert.Equal(t, Metadata{FileName: "cat.png", FileExtension: ".png", FileSize: 10, LastModified: "2024-05-01T08:30:00Z"}, meta)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/delete/cat.png", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "File cat.png deleted successfully")
	assert.NotContains(t, store.objects, "cat.png")
}
