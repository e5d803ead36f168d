package directory

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/odontosync/backend/internal/models"
	"github.com/odontosync/backend/internal/store"
	"github.com/odontosync/backend/pkg/response"
)

// Handler manages the workspace staff roster.
type Handler struct {
	store  *store.Store
	logger *zap.Logger
	newID  func() string
}

// NewHandler creates a directory handler.
func NewHandler(st *store.Store, logger *zap.Logger) *Handler {
	return &Handler{
		store:  st,
		logger: logger,
		newID:  func() string { return "u_" + uuid.New().String()[:8] },
	}
}

// List handles GET /subusers.
func (h *Handler) List(c *gin.Context) {
	org, err := h.store.FetchState(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to load workspace")
		return
	}
	response.OK(c, org.SubUsers)
}

// Create handles POST /subusers.
func (h *Handler) Create(c *gin.Context) {
	var req struct {
		Name  string           `json:"name" binding:"required"`
		Email string           `json:"email" binding:"required,email"`
		Role  models.StaffRole `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !req.Role.Valid() {
		response.BadRequest(c, "unknown staff role")
		return
	}

	u := models.SubUser{
		ID:         h.newID(),
		Name:       strings.TrimSpace(req.Name),
		Email:      strings.TrimSpace(req.Email),
		Role:       req.Role,
		LastActive: "Just now",
	}
	if err := h.store.AddSubUser(c.Request.Context(), u); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			response.Conflict(c, "a staff member with this email already exists")
			return
		}
		h.logger.Error("add staff failed", zap.Error(err))
		response.Internal(c, "failed to add staff member")
		return
	}
	response.Created(c, u)
}

// Delete handles DELETE /subusers/:id. Removal is idempotent.
func (h *Handler) Delete(c *gin.Context) {
	if err := h.store.RemoveSubUser(c.Request.Context(), c.Param("id")); err != nil {
		h.logger.Error("remove staff failed", zap.Error(err))
		response.Internal(c, "failed to remove staff member")
		return
	}
	response.NoContent(c)
}
