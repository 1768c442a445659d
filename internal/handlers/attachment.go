package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"dm-service/internal/attachments"
)

// AttachmentHandler serves attachment upload and download. Upload is
// decoupled from send: files are staged first and referenced by id later.
type AttachmentHandler struct {
	store attachments.BlobStore
}

// NewAttachmentHandler builds an AttachmentHandler.
func NewAttachmentHandler(store attachments.BlobStore) *AttachmentHandler {
	return &AttachmentHandler{store: store}
}

// Upload stages one or more files from a multipart form. The batch is
// all-or-nothing: one oversized file rejects every file.
func (h *AttachmentHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files provided"})
		return
	}

	uploads := make([]attachments.Upload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file: " + fh.Filename})
			return
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file: " + fh.Filename})
			return
		}

		mimeType := fh.Header.Get("Content-Type")
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		uploads = append(uploads, attachments.Upload{
			Name:     fh.Filename,
			MimeType: mimeType,
			Content:  content,
		})
	}

	refs, err := h.store.Put(c.Request.Context(), uploads)
	if err != nil {
		var tooLarge *attachments.PayloadTooLargeError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": tooLarge.Error()})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "attachment store unavailable"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"attachments": refs})
}

// Download streams a stored blob with its original name and mime type.
func (h *AttachmentHandler) Download(c *gin.Context) {
	id := c.Param("attachment_id")

	blob, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, attachments.ErrBlobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "attachment not found"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "attachment store unavailable"})
		return
	}

	c.Header("Content-Disposition", `inline; filename="`+blob.Name+`"`)
	c.Header("Content-Length", strconv.FormatInt(blob.Size, 10))
	c.Data(http.StatusOK, blob.MimeType, blob.Content)
}
