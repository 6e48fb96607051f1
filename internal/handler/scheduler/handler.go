package scheduler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/outreachly/drip-engine/internal/handler"
	"github.com/outreachly/drip-engine/internal/service/scheduler"
)

type Handler struct {
	service *scheduler.Service
}

func NewHandler(service *scheduler.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/scheduler/process", h.Process)
}

// Process runs one tick inline and returns the aggregate counters. Safe to
// call repeatedly; only actually-due enrollments are touched.
func (h *Handler) Process(c *gin.Context) {
	summary, err := h.service.ProcessDue(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(summary))
}
