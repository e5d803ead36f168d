package assistant

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/odontosync/backend/pkg/response"
)

// Handler serves the text command endpoint. Voice goes through the
// WebSocket relay; this is the typed path from the dashboard's command box
// and the WhatsApp webhook.
type Handler struct {
	bridge     *Bridge
	dispatcher *Dispatcher
	logger     *zap.Logger
}

// NewHandler creates an assistant handler.
func NewHandler(bridge *Bridge, dispatcher *Dispatcher, logger *zap.Logger) *Handler {
	return &Handler{bridge: bridge, dispatcher: dispatcher, logger: logger}
}

// CommandRequest is the body for POST /assistant/command.
type CommandRequest struct {
	Message string `json:"message" binding:"required"`
}

// CommandResponse carries the interpreted actions and their outcomes.
// Navigation actions are returned for the client to apply; data actions are
// executed server-side before the response is sent.
type CommandResponse struct {
	Actions []Action `json:"actions"`
	Results []Result `json:"results"`
}

// Command handles POST /assistant/command. An uninterpretable message is
// not an error: the actions list is simply empty.
func (h *Handler) Command(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	actions := h.bridge.Interpret(c.Request.Context(), req.Message)
	results := h.dispatcher.ExecuteAll(c.Request.Context(), actions, NopNavigator{})

	response.OK(c, CommandResponse{Actions: actions, Results: results})
}
