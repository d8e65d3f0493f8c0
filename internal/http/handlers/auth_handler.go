package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/watchpay-backend/internal/dto"
	"github.com/ignatzorin/watchpay-backend/internal/http/handlers/common"
	"github.com/ignatzorin/watchpay-backend/internal/service"
)

// Authenticator описывает операции AuthService, нужные HTTP слою.
type Authenticator interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.AuthResult, error)
	Login(ctx context.Context, in service.LoginInput) (*service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*service.TokenPair, error)
}

// AuthHandler предоставляет HTTP слой для регистрации и логина.
type AuthHandler struct {
	auth Authenticator
}

// NewAuthHandler создаёт хэндлер.
func NewAuthHandler(auth Authenticator) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Register обрабатывает POST /auth/register.
// Реферальный код берётся из тела или из параметра ?ref= ссылки приглашения.
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}
	if req.ReferralCode == "" {
		req.ReferralCode = c.Query("ref")
	}

	result, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Username:     req.Username,
		Email:        req.Email,
		Password:     req.Password,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondJSON(c, http.StatusCreated, dto.AuthResponse{User: result.User, Tokens: result.TokenPair})
}

// Login обрабатывает POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	result, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondJSON(c, http.StatusOK, dto.AuthResponse{User: result.User, Tokens: result.TokenPair})
}

// Refresh обрабатывает POST /auth/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondJSON(c, http.StatusOK, pair)
}
