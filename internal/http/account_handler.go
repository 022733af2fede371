package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"org-portal/internal/service"
)

// AccountHandler serves registration, email confirmation and the two-step login.
type AccountHandler struct {
	logger       *zap.Logger
	accounts     *service.AccountService
	verification *service.VerificationService
	jwtServ      *service.JWTService
}

func NewAccountHandler(
	logger *zap.Logger,
	accounts *service.AccountService,
	verification *service.VerificationService,
	jwtServ *service.JWTService,
) *AccountHandler {
	return &AccountHandler{
		logger:       logger,
		accounts:     accounts,
		verification: verification,
		jwtServ:      jwtServ,
	}
}

// Register handles POST /auth/register.
func (h *AccountHandler) Register(c *gin.Context) {
	var req struct {
		Email           string `json:"email" binding:"required"`
		Username        string `json:"username"`
		PhoneNumber     string `json:"phone_number" binding:"required"`
		Password        string `json:"password" binding:"required"`
		PasswordConfirm string `json:"password_confirm" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid register request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	account, err := h.accounts.Register(c.Request.Context(), service.RegisterInput{
		Email:           req.Email,
		Username:        req.Username,
		PhoneNumber:     req.PhoneNumber,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		if account.ID != "" {
			// The account exists but its code was not delivered; the client resends with the ID.
			status, msg := statusForError(err)
			if status == http.StatusInternalServerError {
				h.logger.Error("register confirmation failed", zap.String("account_id", account.ID), zap.Error(err))
			}
			c.JSON(status, gin.H{"error": msg, "account_id": account.ID})
			return
		}
		h.writeError(c, "register", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"account": account, "status": "confirmation_sent"})
}

// ResendConfirmation handles POST /auth/email/resend.
func (h *AccountHandler) ResendConfirmation(c *gin.Context) {
	var req struct {
		AccountID string `json:"account_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid resend request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.accounts.ResendConfirmation(c.Request.Context(), req.AccountID); err != nil {
		h.writeError(c, "resend confirmation", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "confirmation_sent"})
}

// ConfirmEmail handles POST /auth/email/confirm.
func (h *AccountHandler) ConfirmEmail(c *gin.Context) {
	var req struct {
		AccountID string `json:"account_id" binding:"required"`
		Code      string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid email confirm request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	account, err := h.verification.ConfirmEmail(c.Request.Context(), req.AccountID, req.Code)
	if err != nil {
		h.writeError(c, "confirm email", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account})
}

// Login handles POST /auth/login. The response carries the login token for the second step.
func (h *AccountHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	login, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, "login", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "code_sent",
		"login_token": login.Token,
		"expires_at":  login.ExpiresAt,
	})
}

// ConfirmLogin handles POST /auth/login/confirm.
func (h *AccountHandler) ConfirmLogin(c *gin.Context) {
	var req struct {
		LoginToken string `json:"login_token" binding:"required"`
		Code       string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login confirm request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	result, err := h.verification.ConfirmLogin(c.Request.Context(), req.LoginToken, req.Code)
	if err != nil {
		h.writeError(c, "confirm login", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": result.Account, "tokens": result.Tokens})
}

// RefreshToken handles POST /auth/refresh.
func (h *AccountHandler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid refresh request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if h.jwtServ == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "jwt not configured"})
		return
	}
	tokens, err := h.jwtServ.RefreshPair(c.Request.Context(), req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

// Logout handles POST /auth/logout.
func (h *AccountHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid logout request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if h.jwtServ == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "jwt not configured"})
		return
	}
	_ = h.jwtServ.RevokeRefresh(c.Request.Context(), req.RefreshToken)
	c.Status(http.StatusNoContent)
}

// RequestPasswordReset handles POST /auth/password/reset. Only the account state is checked.
func (h *AccountHandler) RequestPasswordReset(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid password reset request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.accounts.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		h.writeError(c, "password reset", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (h *AccountHandler) writeError(c *gin.Context, op string, err error) {
	status, msg := statusForError(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(op+" failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": msg})
}

func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrAccountNotFound):
		return http.StatusNotFound, "account not found"
	case errors.Is(err, service.ErrDispatchFailed):
		return http.StatusServiceUnavailable, "email delivery unavailable"
	case errors.Is(err, service.ErrCodeInvalid),
		errors.Is(err, service.ErrCodeExpired):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrNoCodePending):
		return http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrSessionExpired):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests, "too many requests"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, service.ErrAccountInactive):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrAccountAlreadyActive):
		return http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrInvalidPhone),
		errors.Is(err, service.ErrPasswordMismatch),
		errors.Is(err, service.ErrPasswordRequired):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
