package analytics

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/odontosync/backend/internal/assistant"
	"github.com/odontosync/backend/internal/audit"
	"github.com/odontosync/backend/internal/models"
	"github.com/odontosync/backend/internal/store"
	"github.com/odontosync/backend/pkg/response"
)

// Handler serves strategic insight and audit history endpoints.
type Handler struct {
	store     *store.Store
	bridge    *assistant.Bridge
	auditRepo *audit.Repository
	logger    *zap.Logger
}

// NewHandler creates an analytics handler. auditRepo may be nil when
// Postgres is not configured; the history endpoint then returns empty.
func NewHandler(st *store.Store, bridge *assistant.Bridge, auditRepo *audit.Repository, logger *zap.Logger) *Handler {
	return &Handler{store: st, bridge: bridge, auditRepo: auditRepo, logger: logger}
}

// snapshot is the trimmed view of the workspace sent for analysis. Contact
// details stay out of the prompt.
type snapshot struct {
	Mode     models.BusinessMode `json:"mode"`
	Patients []patientSummary    `json:"patients"`
	Upcoming int                 `json:"upcomingAppointments"`
}

type patientSummary struct {
	Stage      models.PipelineStage `json:"stage"`
	TotalValue float64              `json:"totalValue"`
	Insights   []string             `json:"insights,omitempty"`
}

// Insights handles GET /analytics/insights. The endpoint never fails on
// provider trouble; a degraded summary comes back instead.
func (h *Handler) Insights(c *gin.Context) {
	org, err := h.store.FetchState(c.Request.Context())
	if err != nil {
		h.logger.Error("fetch state failed", zap.Error(err))
		response.Internal(c, "failed to load workspace")
		return
	}

	snap := snapshot{Mode: org.Mode, Upcoming: len(org.Appointments)}
	for _, p := range org.Patients {
		snap.Patients = append(snap.Patients, patientSummary{
			Stage:      p.Stage,
			TotalValue: p.TotalValue,
			Insights:   p.AIInsights,
		})
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		response.Internal(c, "failed to build snapshot")
		return
	}

	response.OK(c, h.bridge.Analyze(c.Request.Context(), raw))
}

// History handles GET /analytics/audit and returns recent audit events.
func (h *Handler) History(c *gin.Context) {
	if h.auditRepo == nil {
		response.OK(c, []audit.Record{})
		return
	}
	events, err := h.auditRepo.ListRecent(c.Request.Context(), 100)
	if err != nil {
		h.logger.Error("list audit events failed", zap.Error(err))
		response.Internal(c, "failed to list audit events")
		return
	}
	response.OK(c, events)
}
