package enrollment

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/outreachly/drip-engine/internal/handler"
	"github.com/outreachly/drip-engine/internal/model"
	"github.com/outreachly/drip-engine/internal/service/enrollment"
	apperrors "github.com/outreachly/drip-engine/pkg/errors"
)

type Handler struct {
	service *enrollment.Service
}

func NewHandler(service *enrollment.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/enrollments", h.Enroll)
	rg.GET("/enrollments/:id", h.Get)
	rg.POST("/enrollments/:id/pause", h.Pause)
	rg.POST("/enrollments/:id/resume", h.Resume)
	rg.POST("/enrollments/:id/cancel", h.Cancel)
}

type enrollLead struct {
	LeadID   uuid.UUID `json:"lead_id" binding:"required"`
	ThreadID uuid.UUID `json:"thread_id" binding:"required"`
}

type enrollRequest struct {
	TenantID    uuid.UUID    `json:"tenant_id" binding:"required"`
	SequenceID  uuid.UUID    `json:"sequence_id" binding:"required"`
	Leads       []enrollLead `json:"leads" binding:"required,min=1"`
	MaxMessages int          `json:"max_messages"`
	ExpiresAt   *time.Time   `json:"expires_at"`
}

// Enroll enrolls one or many leads into a sequence. Partial failure is
// reported per lead; the batch never aborts as a whole.
func (h *Handler) Enroll(c *gin.Context) {
	var req enrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	reqs := make([]*enrollment.EnrollRequest, 0, len(req.Leads))
	for _, l := range req.Leads {
		reqs = append(reqs, &enrollment.EnrollRequest{
			TenantID:    req.TenantID,
			SequenceID:  req.SequenceID,
			LeadID:      l.LeadID,
			ThreadID:    l.ThreadID,
			MaxMessages: req.MaxMessages,
			ExpiresAt:   req.ExpiresAt,
		})
	}

	enrolled, failures := h.service.EnrollBatch(c.Request.Context(), reqs)

	errMsgs := make([]string, 0, len(failures))
	for _, err := range failures {
		errMsgs = append(errMsgs, err.Error())
	}

	status := http.StatusCreated
	if len(enrolled) == 0 {
		status = http.StatusBadRequest
	}
	c.JSON(status, handler.NewSuccessResponse(gin.H{
		"enrolled": enrolled,
		"failed":   errMsgs,
	}))
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid enrollment ID"))
		return
	}

	e, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFor(err), handler.NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(e))
}

func (h *Handler) Pause(c *gin.Context) {
	h.lifecycle(c, h.service.Pause)
}

func (h *Handler) Resume(c *gin.Context) {
	h.lifecycle(c, h.service.Resume)
}

func (h *Handler) Cancel(c *gin.Context) {
	h.lifecycle(c, h.service.Cancel)
}

type lifecycleFn func(ctx context.Context, id uuid.UUID) (*model.Enrollment, error)

func (h *Handler) lifecycle(c *gin.Context, fn lifecycleFn) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid enrollment ID"))
		return
	}

	e, err := fn(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFor(err), handler.NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(e))
}

func statusFor(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case apperrors.ErrNotFound:
			return http.StatusNotFound
		case apperrors.ErrBadRequest:
			return http.StatusBadRequest
		case apperrors.ErrConflict:
			return http.StatusConflict
		case apperrors.ErrUnauthorized:
			return http.StatusUnauthorized
		}
	}
	return http.StatusInternalServerError
}
