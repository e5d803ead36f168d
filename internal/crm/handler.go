package crm

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/odontosync/backend/internal/models"
	"github.com/odontosync/backend/internal/pipeline"
	"github.com/odontosync/backend/internal/store"
	"github.com/odontosync/backend/pkg/response"
)

// Handler serves the workspace document and the patient pipeline.
type Handler struct {
	store  *store.Store
	engine *pipeline.Engine
	logger *zap.Logger
}

// NewHandler creates a CRM handler.
func NewHandler(st *store.Store, engine *pipeline.Engine, logger *zap.Logger) *Handler {
	return &Handler{store: st, engine: engine, logger: logger}
}

// State handles GET /state and returns the whole organization document.
func (h *Handler) State(c *gin.Context) {
	org, err := h.store.FetchState(c.Request.Context())
	if err != nil {
		h.logger.Error("fetch state failed", zap.Error(err))
		response.Internal(c, "failed to load workspace")
		return
	}
	response.OK(c, org)
}

// SaveState handles PUT /state: a whole-document write from a client that
// edited offline. Stale versions are rejected so a lagging tab cannot roll
// the workspace back.
func (h *Handler) SaveState(c *gin.Context) {
	var org models.Organization
	if err := c.ShouldBindJSON(&org); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.store.SaveState(c.Request.Context(), &org); err != nil {
		if errors.Is(err, store.ErrStaleWrite) {
			response.Conflict(c, "workspace has newer changes; refresh and retry")
			return
		}
		h.logger.Error("save state failed", zap.Error(err))
		response.Internal(c, "failed to save workspace")
		return
	}
	response.OK(c, gin.H{"version": org.Version})
}

// NewDraft handles GET /patients/draft and returns an empty record ready for
// the current mode's first stage.
func (h *Handler) NewDraft(c *gin.Context) {
	mode := models.BusinessMode(c.Query("mode"))
	if !mode.Valid() {
		org, err := h.store.FetchState(c.Request.Context())
		if err != nil {
			response.Internal(c, "failed to load workspace")
			return
		}
		mode = org.Mode
	}
	response.OK(c, h.engine.NewDraft(mode))
}

// CreatePatient handles POST /patients.
func (h *Handler) CreatePatient(c *gin.Context) {
	var p models.Patient
	if err := c.ShouldBindJSON(&p); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	p.ID = "" // server assigns IDs
	h.saveDraft(c, p)
}

// UpdatePatient handles PATCH /patients/:id.
func (h *Handler) UpdatePatient(c *gin.Context) {
	var p models.Patient
	if err := c.ShouldBindJSON(&p); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	p.ID = c.Param("id")
	h.saveDraft(c, p)
}

func (h *Handler) saveDraft(c *gin.Context, p models.Patient) {
	saved, violations, err := h.engine.SaveDraft(c.Request.Context(), p)
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrDraftInvalid):
			c.JSON(422, response.Body{Success: false, Error: "validation failed", Data: gin.H{"violations": violations}})
		case errors.Is(err, store.ErrPatientNotFound):
			response.NotFound(c, "patient not found")
		default:
			h.logger.Error("save patient failed", zap.Error(err))
			response.Internal(c, "failed to save patient")
		}
		return
	}
	response.OK(c, saved)
}

// MoveStage handles POST /patients/:id/stage.
func (h *Handler) MoveStage(c *gin.Context) {
	var req struct {
		Stage models.PipelineStage `json:"stage" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	err := h.engine.MoveToStage(c.Request.Context(), c.Param("id"), req.Stage)
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrInvalidStage):
			response.BadRequest(c, "unknown pipeline stage")
		case errors.Is(err, store.ErrPatientNotFound):
			response.NotFound(c, "patient not found")
		default:
			h.logger.Error("move stage failed", zap.Error(err))
			response.Internal(c, "failed to move patient")
		}
		return
	}
	org, err := h.store.FetchState(c.Request.Context())
	if err != nil {
		response.OK(c, gin.H{"moved": true})
		return
	}
	response.OK(c, org.FindPatient(c.Param("id")))
}

// Stages handles GET /pipeline/stages and returns the stage vocabulary for a
// business mode.
func (h *Handler) Stages(c *gin.Context) {
	mode := models.BusinessMode(c.Query("mode"))
	if !mode.Valid() {
		response.BadRequest(c, "mode must be clinic or laboratory")
		return
	}
	response.OK(c, pipeline.StagesFor(mode))
}
