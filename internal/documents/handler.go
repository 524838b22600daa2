package documents

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/omreki/domasy/internal/auth"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	docs := rg.Group("/documents")
	{
		docs.POST("/upload", h.Upload)
		docs.GET("", h.List)
		docs.GET("/:id", h.Get)
		docs.GET("/:id/download", h.Download)
		docs.DELETE("/:id", h.Delete)
		docs.POST("/:id/versions", h.UploadVersion)
		docs.GET("/:id/versions", h.ListVersions)
		docs.PUT("/:id/reviewers", h.UpdateReviewers)
	}
}

func (h *Handler) Upload(c *gin.Context) {
	actor := auth.CurrentUser(c)

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	title := c.PostForm("title")
	if title == "" {
		title = file.Filename
	}

	var reviewerIDs []uuid.UUID
	for _, raw := range c.PostFormArray("reviewers") {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reviewer id"})
			return
		}
		reviewerIDs = append(reviewerIDs, id)
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	doc, err := h.service.Upload(c.Request.Context(), UploadRequest{
		Title:       title,
		Description: c.PostForm("description"),
		Category:    c.PostForm("category"),
		FileName:    file.Filename,
		FileSize:    file.Size,
		ContentType: file.Header.Get("Content-Type"),
		Content:     f,
		Uploader:    actor,
		ReviewerIDs: reviewerIDs,
		IPAddress:   c.ClientIP(),
	})
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (h *Handler) List(c *gin.Context) {
	var filter ListFilter
	if raw := c.Query("status"); raw != "" {
		status := Status(raw)
		filter.Status = &status
	}
	if raw := c.Query("category"); raw != "" {
		filter.Category = &raw
	}
	if raw := c.Query("uploaded_by"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid uploaded_by"})
			return
		}
		filter.UploadedBy = &id
	}

	docs, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, docs)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	doc, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) Download(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	url, err := h.service.DownloadURL(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if err := h.service.Delete(c.Request.Context(), id, auth.CurrentUser(c)); err != nil {
		h.renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) UploadVersion(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	version, err := h.service.UploadNewVersion(c.Request.Context(), id, VersionRequest{
		Content:       f,
		FileSize:      file.Size,
		ChangeSummary: c.PostForm("change_summary"),
		Actor:         auth.CurrentUser(c),
		IPAddress:     c.ClientIP(),
	})
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, version)
}

func (h *Handler) ListVersions(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	versions, err := h.service.ListVersions(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, versions)
}

type updateReviewersRequest struct {
	Reviewers []uuid.UUID `json:"reviewers" binding:"required,min=1"`
}

func (h *Handler) UpdateReviewers(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req updateReviewersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reviewers list is required"})
		return
	}

	if err := h.service.UpdateReviewers(c.Request.Context(), id, req.Reviewers, auth.CurrentUser(c)); err != nil {
		h.renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
	case errors.Is(err, ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed"})
	case errors.Is(err, ErrUnknownReviewer):
		c.JSON(http.StatusBadRequest, gin.H{"error": "reviewer not found"})
	case errors.Is(err, ErrNoReviewers):
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one reviewer is required"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
