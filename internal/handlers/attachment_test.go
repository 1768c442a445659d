package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dm-service/internal/attachments"
	"dm-service/internal/models"
)

func setupAttachmentRouter(handler *AttachmentHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.POST("/attachments", handler.Upload)
	r.GET("/attachments/:attachment_id", handler.Download)
	return r
}

func multipartBody(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, content := range files {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestUploadSuccess(t *testing.T) {
	store := attachments.NewMemoryStore(64)
	router := setupAttachmentRouter(NewAttachmentHandler(store))

	body, contentType := multipartBody(t, map[string][]byte{
		"a.txt": []byte("alpha"),
		"b.txt": []byte("bravo"),
	})
	req := httptest.NewRequest(http.MethodPost, "/attachments", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Attachments []models.AttachmentRef `json:"attachments"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Attachments, 2)
	assert.Equal(t, 2, store.Len())
	for _, ref := range resp.Attachments {
		assert.Contains(t, ref.URL, "/attachments/")
		assert.Equal(t, int64(5), ref.Size)
	}
}

func TestUploadOversizedRejectsWholeBatch(t *testing.T) {
	store := attachments.NewMemoryStore(4)
	router := setupAttachmentRouter(NewAttachmentHandler(store))

	body, contentType := multipartBody(t, map[string][]byte{
		"tiny.txt": []byte("ok"),
		"big.bin":  []byte("too big"),
	})
	req := httptest.NewRequest(http.MethodPost, "/attachments", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "big.bin")
	assert.Equal(t, 0, store.Len(), "rejected batch must persist nothing")
}

func TestUploadWithoutFiles(t *testing.T) {
	router := setupAttachmentRouter(NewAttachmentHandler(attachments.NewMemoryStore(64)))

	body, contentType := multipartBody(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/attachments", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownloadRoundTrip(t *testing.T) {
	store := attachments.NewMemoryStore(64)
	refs, err := store.Put(context.Background(), []attachments.Upload{
		{Name: "note.txt", MimeType: "text/plain", Content: []byte("hello")},
	})
	require.NoError(t, err)

	router := setupAttachmentRouter(NewAttachmentHandler(store))

	req := httptest.NewRequest(http.MethodGet, refs[0].URL, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "note.txt")
}

func TestDownloadMissing(t *testing.T) {
	router := setupAttachmentRouter(NewAttachmentHandler(attachments.NewMemoryStore(64)))

	req := httptest.NewRequest(http.MethodGet, "/attachments/unknown", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
