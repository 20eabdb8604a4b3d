// Package uploads stores the files students attach to their deliverable
// selections.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mikepea/projectdesk/pkg/projectdesk/access"
	"github.com/mikepea/projectdesk/pkg/projectdesk/auth"
	"github.com/mikepea/projectdesk/pkg/projectdesk/logging"
	"github.com/mikepea/projectdesk/pkg/projectdesk/metrics"
	"github.com/mikepea/projectdesk/pkg/projectdesk/models"
	"github.com/mikepea/projectdesk/pkg/projectdesk/storage"
	"github.com/shrimpsizemoose/trekker/logger"
	"gorm.io/gorm"
)

// MaxUploadSize is the largest file a student may upload
const MaxUploadSize = 25 << 20

var errLimitReached = errors.New("upload limit reached")

// Handler handles upload requests
type Handler struct {
	db    *gorm.DB
	store storage.Store
	now   func() time.Time
}

// NewHandler creates a new uploads handler
func NewHandler(db *gorm.DB, store storage.Store) *Handler {
	return &Handler{db: db, store: store, now: time.Now}
}

// UploadResponse represents an upload in API responses
type UploadResponse struct {
	ID          uint      `json:"id"`
	SelectionID uint      `json:"student_deliverable_selection_id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Timestamp   time.Time `json:"timestamp"`
}

// AdminUploadResponse adds the owner and project to an upload
type AdminUploadResponse struct {
	UploadResponse
	ProjectID    uint   `json:"project_id"`
	StudentID    uint   `json:"student_id"`
	StudentEmail string `json:"student_email"`
	Path         string `json:"path"`
}

func toResponse(u models.StudentUpload) UploadResponse {
	return UploadResponse{
		ID:          u.ID,
		SelectionID: u.StudentDeliverableSelectionID,
		FileName:    u.FileName,
		ContentType: u.ContentType,
		SizeBytes:   u.SizeBytes,
		Timestamp:   u.Timestamp,
	}
}

// safeName reduces a client supplied file name to a single key segment
func safeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "file"
	}
	if len(out) > 100 {
		out = out[len(out)-100:]
	}
	return out
}

// Key builds the storage key of a new upload
func Key(projectID, studentID uint, fileName string) string {
	return fmt.Sprintf("projects/%d/students/%d/%s-%s", projectID, studentID, uuid.NewString(), safeName(fileName))
}

// ownSelection resolves :id among the current student's selections
func (h *Handler) ownSelection(c *gin.Context) (*models.StudentDeliverableSelection, bool) {
	userID, _ := auth.GetUserID(c)
	id, ok := access.ParamID(c, "id", "selection")
	if !ok {
		return nil, false
	}
	var s models.StudentDeliverableSelection
	if err := h.db.Preload("StudentDeliverable.Project").Where("id = ? AND student_id = ?", id, userID).First(&s).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Selection not found"})
		return nil, false
	}
	return &s, true
}

// Upload stores a multipart "file" against one of the student's selections
func (h *Handler) Upload(c *gin.Context) {
	selection, ok := h.ownSelection(c)
	if !ok {
		return
	}
	project := selection.StudentDeliverable.Project

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize+1<<20)
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File exceeds the 25 MiB limit"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "A file field is required"})
		return
	}
	if header.Size > MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File exceeds the 25 MiB limit"})
		return
	}

	var count int64
	h.db.Model(&models.StudentUpload{}).Where("student_deliverable_selection_id = ?", selection.ID).Count(&count)
	if count >= int64(project.MaxStudentUploads) {
		c.JSON(http.StatusConflict, gin.H{"error": "Upload limit reached for this selection"})
		return
	}

	file, err := header.Open()
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to read upload", err)
		return
	}
	defer file.Close()

	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to read upload", err)
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to read upload", err)
		return
	}

	ctx := c.Request.Context()
	key := Key(project.ID, selection.StudentID, header.Filename)
	if err := h.store.Put(ctx, key, file); err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to store upload", err)
		return
	}

	upload := models.StudentUpload{
		StudentDeliverableSelectionID: selection.ID,
		Path:                          key,
		FileName:                      path.Base(strings.ReplaceAll(header.Filename, "\\", "/")),
		ContentType:                   mtype.String(),
		SizeBytes:                     header.Size,
		Timestamp:                     h.now().UTC(),
	}
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := access.Lock(tx, &models.StudentDeliverableSelection{}, selection.ID); err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&models.StudentUpload{}).Where("student_deliverable_selection_id = ?", selection.ID).Count(&count).Error; err != nil {
			return err
		}
		if count >= int64(project.MaxStudentUploads) {
			return errLimitReached
		}
		return tx.Create(&upload).Error
	})
	if err != nil {
		if derr := h.store.Delete(ctx, key); derr != nil {
			logger.Error.Printf("Failed to remove orphaned upload %s: %v", key, derr)
		}
		if errors.Is(err, errLimitReached) {
			c.JSON(http.StatusConflict, gin.H{"error": "Upload limit reached for this selection"})
			return
		}
		logging.Fail(c, http.StatusInternalServerError, "Failed to record upload", err)
		return
	}

	metrics.UploadsTotal.WithLabelValues(h.store.Name()).Inc()
	logger.Info.Printf("Stored upload %d for selection %d on %s", upload.ID, selection.ID, h.store.Name())
	c.JSON(http.StatusCreated, toResponse(upload))
}

// ListUploads lists the uploads of one of the student's selections
func (h *Handler) ListUploads(c *gin.Context) {
	selection, ok := h.ownSelection(c)
	if !ok {
		return
	}

	var uploads []models.StudentUpload
	if err := h.db.Where("student_deliverable_selection_id = ?", selection.ID).Order("timestamp ASC").Find(&uploads).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch uploads", err)
		return
	}

	out := make([]UploadResponse, len(uploads))
	for i, u := range uploads {
		out[i] = toResponse(u)
	}
	c.JSON(http.StatusOK, out)
}

// ownUpload resolves :upload_id among the current student's uploads
func (h *Handler) ownUpload(c *gin.Context) (*models.StudentUpload, bool) {
	userID, _ := auth.GetUserID(c)
	id, ok := access.ParamID(c, "upload_id", "upload")
	if !ok {
		return nil, false
	}
	var u models.StudentUpload
	err := h.db.Joins("JOIN student_deliverable_selections ON student_deliverable_selections.id = student_uploads.student_deliverable_selection_id").
		Where("student_uploads.id = ? AND student_deliverable_selections.student_id = ?", id, userID).
		First(&u).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Upload not found"})
		return nil, false
	}
	return &u, true
}

func (h *Handler) serve(c *gin.Context, u *models.StudentUpload) {
	rc, err := h.store.Open(c.Request.Context(), u.Path)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Stored file is missing"})
		return
	}
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to open upload", err)
		return
	}
	defer rc.Close()

	contentType := u.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, u.SizeBytes, contentType, rc, map[string]string{
		"Content-Disposition": "attachment; filename=" + strconv.Quote(u.FileName),
	})
}

// Download streams one of the student's uploads
func (h *Handler) Download(c *gin.Context) {
	u, ok := h.ownUpload(c)
	if !ok {
		return
	}
	h.serve(c, u)
}

// Delete removes one of the student's uploads and its stored file
func (h *Handler) Delete(c *gin.Context) {
	u, ok := h.ownUpload(c)
	if !ok {
		return
	}

	if err := h.db.Delete(u).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to delete upload", err)
		return
	}
	if err := h.store.Delete(c.Request.Context(), u.Path); err != nil && !errors.Is(err, storage.ErrNotFound) {
		logger.Error.Printf("Failed to delete stored upload %s: %v", u.Path, err)
	}
	c.Status(http.StatusNoContent)
}

// AdminList lists uploads, optionally for one project
func (h *Handler) AdminList(c *gin.Context) {
	projectID, filtered, ok := access.QueryID(c, "project_id")
	if !ok {
		return
	}

	q := h.db.Preload("Selection.Student").Preload("Selection.StudentDeliverable").
		Joins("JOIN student_deliverable_selections ON student_deliverable_selections.id = student_uploads.student_deliverable_selection_id").
		Joins("JOIN student_deliverables ON student_deliverables.id = student_deliverable_selections.student_deliverable_id").
		Order("student_uploads.timestamp DESC")
	if filtered {
		q = q.Where("student_deliverables.project_id = ?", projectID)
	}
	q, err := access.ScopeProjects(h.db, c, q, "student_deliverables.project_id")
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch uploads", err)
		return
	}

	var uploads []models.StudentUpload
	if err := q.Find(&uploads).Error; err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch uploads", err)
		return
	}

	out := make([]AdminUploadResponse, len(uploads))
	for i, u := range uploads {
		out[i] = AdminUploadResponse{
			UploadResponse: toResponse(u),
			ProjectID:      u.Selection.StudentDeliverable.ProjectID,
			StudentID:      u.Selection.StudentID,
			StudentEmail:   u.Selection.Student.Email,
			Path:           u.Path,
		}
	}
	c.JSON(http.StatusOK, out)
}

// AdminDownload streams any upload within the caller's projects
func (h *Handler) AdminDownload(c *gin.Context) {
	id, ok := access.ParamID(c, "upload_id", "upload")
	if !ok {
		return
	}
	var u models.StudentUpload
	if err := h.db.Preload("Selection.StudentDeliverable").First(&u, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Upload not found"})
		return
	}
	allowed, err := access.CanAccessProject(h.db, c, u.Selection.StudentDeliverable.ProjectID)
	if err != nil {
		logging.Fail(c, http.StatusInternalServerError, "Failed to fetch upload", err)
		return
	}
	if !allowed {
		c.JSON(http.StatusNotFound, gin.H{"error": "Upload not found"})
		return
	}
	h.serve(c, &u)
}

// RegisterStudentRoutes registers upload routes on a student-only group
func (h *Handler) RegisterStudentRoutes(rg *gin.RouterGroup) {
	rg.POST("/deliverable-selection/:id/uploads", h.Upload)
	rg.GET("/deliverable-selection/:id/uploads", h.ListUploads)
	rg.GET("/uploads/:upload_id", h.Download)
	rg.DELETE("/uploads/:upload_id", h.Delete)
}

// RegisterAdminRoutes registers upload routes on an admin-only group
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/uploads", h.AdminList)
	rg.GET("/uploads/:upload_id", h.AdminDownload)
}
