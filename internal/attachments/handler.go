package attachments

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/odontosync/backend/internal/models"
	"github.com/odontosync/backend/internal/store"
	"github.com/odontosync/backend/pkg/response"
	"github.com/odontosync/backend/pkg/storage"
)

// Handler serves patient file attachments backed by S3. The record's
// files_count mirrors the bucket so the dashboard badge stays correct
// without listing objects on every state fetch.
type Handler struct {
	store  *store.Store
	s3     *storage.S3
	expire time.Duration
	logger *zap.Logger
}

// NewHandler creates an attachments handler.
func NewHandler(st *store.Store, s3 *storage.S3, presignExpire time.Duration, logger *zap.Logger) *Handler {
	if presignExpire <= 0 {
		presignExpire = 15 * time.Minute
	}
	return &Handler{store: st, s3: s3, expire: presignExpire, logger: logger}
}

// Upload handles POST /patients/:id/files (multipart form, field "file").
func (h *Handler) Upload(c *gin.Context) {
	patientID := c.Param("id")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}
	if fileHeader.Size > storage.MaxPatientFileSize {
		response.BadRequest(c, "file exceeds maximum size")
		return
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if !storage.ValidateFileType(contentType, fileHeader.Filename) {
		response.BadRequest(c, "unsupported file type")
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		response.Internal(c, "failed to read upload")
		return
	}
	defer f.Close()

	key := storage.PatientFileKey(patientID, fileHeader.Filename)
	if contentType == "" {
		contentType = storage.ContentTypeForFilename(fileHeader.Filename)
	}
	url, err := h.s3.Upload(c.Request.Context(), key, contentType, f, fileHeader.Size)
	if err != nil {
		h.logger.Error("patient file upload failed", zap.String("key", key), zap.Error(err))
		response.Internal(c, "upload failed")
		return
	}

	err = h.store.MutatePatient(c.Request.Context(), patientID, "UPLOAD_FILE", func(p *models.Patient) error {
		p.FilesCount++
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrPatientNotFound) {
			// object is orphaned; remove it rather than leak storage
			_ = h.s3.DeleteObject(c.Request.Context(), key)
			response.NotFound(c, "patient not found")
			return
		}
		response.Internal(c, "failed to update patient record")
		return
	}

	response.Created(c, gin.H{"key": key, "url": url})
}

// List handles GET /patients/:id/files.
func (h *Handler) List(c *gin.Context) {
	patientID := c.Param("id")
	files, err := h.s3.ListPatientFiles(c.Request.Context(), patientID)
	if err != nil {
		h.logger.Error("list patient files failed", zap.String("patient_id", patientID), zap.Error(err))
		response.Internal(c, "failed to list files")
		return
	}
	response.OK(c, files)
}

// UploadURLRequest is the body for the direct-upload presign endpoint.
type UploadURLRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"contentType"`
}

// UploadURL handles POST /patients/:id/files/url. Large scans and STL
// exports go straight from the browser to the bucket; the client calls
// back to confirm once the PUT succeeds.
func (h *Handler) UploadURL(c *gin.Context) {
	var req UploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "filename is required")
		return
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = storage.ContentTypeForFilename(req.Filename)
	}
	if !storage.ValidateFileType(contentType, req.Filename) {
		response.BadRequest(c, "unsupported file type")
		return
	}

	key := storage.PatientFileKey(c.Param("id"), req.Filename)
	url, err := h.s3.GeneratePresignedUploadURL(c.Request.Context(), key, contentType, h.expire)
	if err != nil {
		response.Internal(c, "failed to sign upload url")
		return
	}
	response.OK(c, gin.H{"key": key, "url": url, "expires_in": int(h.expire.Seconds())})
}

// Download handles GET /patients/:id/files/:name and streams the object
// through the API for clients that cannot follow pre-signed URLs.
func (h *Handler) Download(c *gin.Context) {
	key := storage.PatientFileKey(c.Param("id"), c.Param("name"))
	body, contentType, err := h.s3.GetObjectStream(c.Request.Context(), key)
	if err != nil {
		response.NotFound(c, "file not found")
		return
	}
	defer body.Close()
	c.DataFromReader(http.StatusOK, -1, contentType, body, map[string]string{
		"Content-Disposition": `attachment; filename="` + c.Param("name") + `"`,
	})
}

// DownloadURL handles GET /patients/:id/files/:name/url and returns a
// pre-signed GET URL.
func (h *Handler) DownloadURL(c *gin.Context) {
	key := storage.PatientFileKey(c.Param("id"), c.Param("name"))
	url, err := h.s3.GeneratePresignedDownloadURL(c.Request.Context(), key, h.expire)
	if err != nil {
		response.Internal(c, "failed to sign download url")
		return
	}
	response.OK(c, gin.H{"url": url, "expires_in": int(h.expire.Seconds())})
}

// Delete handles DELETE /patients/:id/files/:name.
func (h *Handler) Delete(c *gin.Context) {
	patientID := c.Param("id")
	key := storage.PatientFileKey(patientID, c.Param("name"))

	if err := h.s3.DeleteObject(c.Request.Context(), key); err != nil {
		response.Internal(c, "failed to delete file")
		return
	}

	err := h.store.MutatePatient(c.Request.Context(), patientID, "DELETE_FILE", func(p *models.Patient) error {
		if p.FilesCount > 0 {
			p.FilesCount--
		}
		return nil
	})
	if err != nil && !errors.Is(err, store.ErrPatientNotFound) {
		response.Internal(c, "failed to update patient record")
		return
	}
	response.NoContent(c)
}
