package scheduling

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/odontosync/backend/pkg/response"
)

// Handler serves the shared calendar.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a scheduling handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// List handles GET /appointments.
func (h *Handler) List(c *gin.Context) {
	appts, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list appointments failed", zap.Error(err))
		response.Internal(c, "failed to list appointments")
		return
	}
	response.OK(c, appts)
}

// Create handles POST /appointments. Validation failures return the full
// ordered violation list, with the slot conflict flagged separately so the
// dashboard can highlight the calendar cell.
func (h *Handler) Create(c *gin.Context) {
	var draft Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	appt, err := h.svc.Schedule(c.Request.Context(), draft)
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(422, response.Body{Success: false, Error: "validation failed", Data: gin.H{
				"violations": verr.Violations,
				"conflict":   verr.Conflict,
			}})
		case errors.Is(err, ErrPatientUnknown):
			response.NotFound(c, "patient not found")
		default:
			h.logger.Error("schedule failed", zap.Error(err))
			response.Internal(c, "failed to schedule appointment")
		}
		return
	}
	response.Created(c, appt)
}

// Delete handles DELETE /appointments/:id. Cancellation is idempotent;
// deleting a missing appointment still succeeds.
func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		h.logger.Error("cancel appointment failed", zap.Error(err))
		response.Internal(c, "failed to cancel appointment")
		return
	}
	response.NoContent(c)
}
