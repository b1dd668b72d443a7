package reportfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"reportstore/internal/pkg/response"
)

// Handler exposes the report-file endpoints. Identity is an external
// collaborator: the actor id arrives pre-resolved in X-Actor-ID and an
// absent header means an anonymous caller.
// maxMetadataBytes bounds the raw metadata form field.
const maxMetadataBytes = 16 * 1024

type Handler struct {
	service        *Service
	maxUploadBytes int64
}

func NewHandler(service *Service, maxUploadBytes int64) *Handler {
	return &Handler{service: service, maxUploadBytes: maxUploadBytes}
}

func actorID(c *gin.Context) string {
	return c.GetHeader("X-Actor-ID")
}

// Upload godoc
// @Summary Upload a report artifact
// @Description Stores the file in object storage and registers its metadata. Returns the file ID.
// @Tags Reports
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Report artifact"
// @Param ttl_days formData int false "Days until expiry (default 30, zero expires immediately, negative for no expiry)"
// @Param metadata formData string false "Opaque JSON object stored with the record"
// @Success 201 {object} map[string]interface{}
// @Failure 400,413,503 {object} map[string]interface{}
// @Router /reports [post]
func (h *Handler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "BAD_REQUEST", "no file provided")
		return
	}
	if fileHeader.Size > h.maxUploadBytes {
		response.Error(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
			fmt.Sprintf("file exceeds %d bytes", h.maxUploadBytes))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, "BAD_REQUEST", "cannot read file")
		return
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "BAD_REQUEST", "cannot read file")
		return
	}
	if int64(len(content)) > h.maxUploadBytes {
		response.Error(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
			fmt.Sprintf("file exceeds %d bytes", h.maxUploadBytes))
		return
	}

	var ttlDays *int
	if v := c.PostForm("ttl_days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "BAD_REQUEST", "ttl_days must be an integer")
			return
		}
		ttlDays = &n
	}

	var metadata JSONMap
	if v := c.PostForm("metadata"); v != "" {
		if len(v) > maxMetadataBytes {
			response.Error(c, http.StatusBadRequest, "BAD_REQUEST",
				fmt.Sprintf("metadata exceeds %d bytes", maxMetadataBytes))
			return
		}
		if err := json.Unmarshal([]byte(v), &metadata); err != nil {
			response.Error(c, http.StatusBadRequest, "BAD_REQUEST", "metadata must be a JSON object")
			return
		}
		if err := metadata.Validate(); err != nil {
			response.Error(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
			return
		}
	}

	rec, err := h.service.Upload(c.Request.Context(), UploadInput{
		Content:      content,
		OriginalName: fileHeader.Filename,
		ContentType:  fileHeader.Header.Get("Content-Type"),
		ActorID:      actorID(c),
		TTLDays:      ttlDays,
		Metadata:     metadata,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, recordJSON(rec))
}

// Preview godoc
// @Summary Issue a time-boxed preview URL
// @Tags Reports
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404,410,503 {object} map[string]interface{}
// @Router /reports/{id}/preview [get]
func (h *Handler) Preview(c *gin.Context) {
	grant, err := h.service.GetAccessURL(c.Request.Context(), c.Param("id"), actorID(c),
		AccessPreview, 0, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"preview_url": grant.URL,
		"expire_at":   grant.ExpiresAt,
		"file_info":   fileInfoJSON(grant.Record),
	})
}

// PreviewData godoc
// @Summary Preview URL plus full metadata in one round trip
// @Tags Reports
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404,410,503 {object} map[string]interface{}
// @Router /reports/{id}/preview-data [get]
func (h *Handler) PreviewData(c *gin.Context) {
	grant, err := h.service.GetAccessURL(c.Request.Context(), c.Param("id"), actorID(c),
		AccessPreview, 0, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.writeError(c, err)
		return
	}

	rec := grant.Record
	response.Success(c, http.StatusOK, gin.H{
		"preview_url":         grant.URL,
		"expire_at":           grant.ExpiresAt,
		"file_size_formatted": formatFileSize(rec.SizeBytes),
		"file_info":           recordJSON(rec),
	})
}

// Download godoc
// @Summary Issue a time-boxed download URL
// @Tags Reports
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404,410,503 {object} map[string]interface{}
// @Router /reports/{id}/download [get]
func (h *Handler) Download(c *gin.Context) {
	grant, err := h.service.GetAccessURL(c.Request.Context(), c.Param("id"), actorID(c),
		AccessDownload, 0, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"download_url": grant.URL,
		"expire_at":    grant.ExpiresAt,
		"filename":     grant.Record.OriginalName,
	})
}

// Metadata godoc
// @Summary Get file metadata
// @Tags Reports
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /reports/{id}/metadata [get]
func (h *Handler) Metadata(c *gin.Context) {
	rec, err := h.service.GetRecord(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, recordJSON(rec))
}

// Delete godoc
// @Summary Delete a report file
// @Description Marks the record deleted and removes the blob. Repeating the call is a no-op success.
// @Tags Reports
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404,503 {object} map[string]interface{}
// @Router /reports/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), actorID(c)); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "deleted"})
}

// ListMy godoc
// @Summary List files uploaded by the calling actor
// @Tags Reports
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /reports [get]
func (h *Handler) ListMy(c *gin.Context) {
	actor := actorID(c)
	if actor == "" {
		response.Error(c, http.StatusBadRequest, "BAD_REQUEST", "X-Actor-ID header required")
		return
	}

	recs, err := h.service.ListByCreator(c.Request.Context(), actor)
	if err != nil {
		h.writeError(c, err)
		return
	}

	items := make([]gin.H, 0, len(recs))
	for _, rec := range recs {
		items = append(items, recordJSON(rec))
	}
	response.Success(c, http.StatusOK, items)
}

// writeError collapses the service taxonomy into the caller-visible
// categories: not found, expired, unavailable, or a generic failure.
// Storage keys and credentials never leak into responses.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrFileNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "report file not found")
	case errors.Is(err, ErrFileExpired):
		response.Error(c, http.StatusGone, "EXPIRED", "report file has expired")
	case errors.Is(err, ErrEmptyFile):
		response.Error(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
	case errors.Is(err, ErrFileTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", err.Error())
	case errors.Is(err, ErrStorageUnavailable):
		c.Header("Retry-After", "5")
		response.Error(c, http.StatusServiceUnavailable, "UNAVAILABLE", "storage temporarily unavailable, retry with backoff")
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL", "request failed")
	}
}

func recordJSON(rec *FileRecord) gin.H {
	out := gin.H{
		"id":             rec.ID,
		"original_name":  rec.OriginalName,
		"size_bytes":     rec.SizeBytes,
		"backend_type":   rec.BackendType,
		"content_type":   rec.ContentType,
		"created_at":     rec.CreatedAt,
		"download_count": rec.DownloadCount,
		"status":         rec.Status,
	}
	if rec.CreatedBy != nil {
		out["created_by"] = *rec.CreatedBy
	}
	if rec.ExpiresAt != nil {
		out["expires_at"] = *rec.ExpiresAt
	}
	if rec.Metadata != nil {
		out["metadata"] = rec.Metadata
	}
	return out
}

func fileInfoJSON(rec *FileRecord) gin.H {
	return gin.H{
		"file_id":    rec.ID,
		"filename":   rec.OriginalName,
		"file_size":  rec.SizeBytes,
		"created_at": rec.CreatedAt,
	}
}

func formatFileSize(size int64) string {
	v := float64(size)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if v < 1024 {
			return fmt.Sprintf("%.2f %s", v, unit)
		}
		v /= 1024
	}
	return fmt.Sprintf("%.2f TB", v)
}
