package workflow

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/omreki/domasy/internal/auth"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	workflows := rg.Group("/workflows")
	{
		workflows.GET("/pending", h.ListPending)
		workflows.POST("/:id/approve", h.Approve)
		workflows.POST("/:id/reject", h.Reject)
		workflows.POST("/:id/request-changes", h.RequestChanges)
	}
	rg.GET("/documents/:id/workflow", h.GetForDocument)
	rg.GET("/documents/:id/workflow/history", h.GetHistory)
}

type actionBody struct {
	Note string `json:"note"`
}

func (h *Handler) Approve(c *gin.Context) {
	h.act(c, h.service.Approve)
}

func (h *Handler) Reject(c *gin.Context) {
	h.act(c, h.service.Reject)
}

func (h *Handler) RequestChanges(c *gin.Context) {
	h.act(c, h.service.RequestChanges)
}

func (h *Handler) act(c *gin.Context, fn func(ctx context.Context, req ActionRequest) (*View, error)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workflow id"})
		return
	}

	// An empty body is fine; approve falls back to a default note.
	var body actionBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	view, err := fn(c.Request.Context(), ActionRequest{
		WorkflowID: id,
		Actor:      auth.CurrentUser(c),
		Note:       body.Note,
		IPAddress:  c.ClientIP(),
	})
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) GetForDocument(c *gin.Context) {
	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
		return
	}

	view, err := h.service.GetByDocumentID(c.Request.Context(), documentID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) GetHistory(c *gin.Context) {
	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
		return
	}

	history, err := h.service.GetHistory(c.Request.Context(), documentID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *Handler) ListPending(c *gin.Context) {
	user := auth.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	views, err := h.service.GetPendingForUser(c.Request.Context(), user.ID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "workflow not found"})
	case errors.Is(err, ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "you are not authorized to act on this workflow"})
	case errors.Is(err, ErrMissingNote):
		c.JSON(http.StatusBadRequest, gin.H{"error": "a note is required for this action"})
	case errors.Is(err, ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": "workflow is not in progress"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
