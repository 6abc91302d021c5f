package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/garagedesk/workshop-api/internal/auth"
	"github.com/garagedesk/workshop-api/internal/config"
	"github.com/garagedesk/workshop-api/internal/domain"
	"github.com/garagedesk/workshop-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuthHandler serves identity endpoints: the current caller and admin token
// issuance for staff users.
type AuthHandler struct {
	userRepo  *repository.UserRepository
	validator *auth.JWTValidator
	authCfg   *config.AuthConfig
	logger    *zap.Logger
}

func NewAuthHandler(
	userRepo *repository.UserRepository,
	validator *auth.JWTValidator,
	authCfg *config.AuthConfig,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		userRepo:  userRepo,
		validator: validator,
		authCfg:   authCfg,
		logger:    logger,
	}
}

// Me godoc
// @Summary Get current authenticated user
// @Tags Auth
// @Produce json
// @Success 200 {object} domain.AuthUserDTO
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userCtx, ok := auth.FromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	respondJSON(w, http.StatusOK, domain.AuthUserDTO{
		ID:       userCtx.UserID,
		Name:     userCtx.DisplayName,
		Email:    userCtx.Email,
		Role:     userCtx.Role,
		BranchID: userCtx.BranchID,
	})
}

// IssueToken godoc
// @Summary Issue a staff token
// @Description Issues a branch-scoped bearer token for an active staff user. Restricted to admins and the API key.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body domain.IssueTokenRequest true "User email"
// @Success 200 {object} domain.TokenResponse
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /auth/token [post]
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req domain.IssueTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	user, err := h.userRepo.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		h.logger.Error("failed to look up user for token", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	if !user.IsActive {
		respondWithError(w, http.StatusForbidden, "User is deactivated")
		return
	}

	token, err := h.validator.IssueToken(user)
	if err != nil {
		h.logger.Error("failed to issue token",
			zap.String("email", req.Email),
			zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := h.userRepo.Upsert(r.Context(), user); err != nil {
		h.logger.Warn("failed to record last login", zap.Error(err))
	}

	respondJSON(w, http.StatusOK, domain.TokenResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: h.authCfg.TokenTTL,
	})
}
