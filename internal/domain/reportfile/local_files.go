package reportfile

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"reportstore/internal/pkg/response"
	"reportstore/internal/storage"
)

// LocalFileHandler serves blob downloads for the local-disk backend,
// which has no native presigning. URLs issued by LocalBackend.Presign
// point here; the embedded token carries the key and expiry.
type LocalFileHandler struct {
	backend *storage.LocalBackend
}

func NewLocalFileHandler(backend *storage.LocalBackend) *LocalFileHandler {
	return &LocalFileHandler{backend: backend}
}

func (h *LocalFileHandler) Serve(c *gin.Context) {
	key := c.Param("key")
	if len(key) > 0 && key[0] == '/' {
		key = key[1:]
	}

	opts, err := h.backend.Signer().Verify(c.Query("token"), key)
	if err != nil {
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "invalid or expired access token")
		return
	}

	f, err := h.backend.Open(key)
	if err != nil {
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "file not found")
		return
	}
	defer f.Close()

	if opts.ContentType != "" {
		c.Header("Content-Type", opts.ContentType)
	}
	if opts.ContentDisposition != "" {
		c.Header("Content-Disposition", opts.ContentDisposition)
	}
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, f)
}
