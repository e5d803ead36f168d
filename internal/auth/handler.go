package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/odontosync/backend/internal/models"
	"github.com/odontosync/backend/pkg/response"
	"github.com/odontosync/backend/pkg/utils"
)

// SessionRequest is the body for POST /auth/session. Federated providers
// send the profile reported by their sign-in flow; demo sends credentials.
type SessionRequest struct {
	Provider string `json:"provider" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name"`
	Picture  string `json:"picture"`
	Password string `json:"password"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo   *Repository
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo *Repository, jwt *JWTService, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, jwt: jwt, logger: logger}
}

// Session handles POST /auth/session and issues the dashboard JWT.
func (h *Handler) Session(c *gin.Context) {
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	provider := models.IdentityProvider(req.Provider)
	if !provider.Valid() {
		response.BadRequest(c, "unknown provider")
		return
	}

	var user *models.User
	var err error
	switch provider {
	case models.ProviderDemo:
		if req.Password == "" {
			response.BadRequest(c, "password required")
			return
		}
		user, err = h.repo.GetByEmail(c.Request.Context(), req.Email, provider)
		if err != nil || !utils.CheckPassword(req.Password, user.Password) {
			response.Unauthorized(c, "invalid email or password")
			return
		}
	default:
		name := req.Name
		if name == "" {
			name = req.Email
		}
		user, err = h.repo.Upsert(c.Request.Context(), req.Email, name, req.Picture, provider)
		if err != nil {
			h.logger.Error("user upsert failed", zap.Error(err))
			response.Internal(c, "failed to create session")
			return
		}
	}

	token, err := h.jwt.Generate(user)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}

	c.JSON(http.StatusOK, response.Body{Success: true, Data: TokenResponse{Token: token, User: user.ToPublic()}})
}

// Me handles GET /auth/me using the validated claims.
func (h *Handler) Me(c *gin.Context) {
	claims, ok := c.MustGet("claims").(*Claims)
	if !ok {
		response.Unauthorized(c, "invalid session")
		return
	}
	user, err := h.repo.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Unauthorized(c, "account not found")
		return
	}
	c.JSON(http.StatusOK, response.Body{Success: true, Data: user.ToPublic()})
}

// List handles GET /users for the settings screen.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list users")
		return
	}
	c.JSON(http.StatusOK, response.Body{Success: true, Data: list})
}
