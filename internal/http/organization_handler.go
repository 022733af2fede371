package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"org-portal/internal/service"
)

const (
	nextDashboard   = "dashboard"
	nextFillOrgData = "fill_org_data"
)

// OrganizationHandler serves the organization profile of the authenticated account.
type OrganizationHandler struct {
	logger *zap.Logger
	orgs   *service.OrganizationService
}

func NewOrganizationHandler(logger *zap.Logger, orgs *service.OrganizationService) *OrganizationHandler {
	return &OrganizationHandler{logger: logger, orgs: orgs}
}

// Home handles GET /org/home and tells the client where to go after login.
func (h *OrganizationHandler) Home(c *gin.Context) {
	accountID, ok := h.accountID(c)
	if !ok {
		return
	}
	has, err := h.orgs.HasProfile(c.Request.Context(), accountID)
	if err != nil {
		h.logger.Error("organization lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	next := nextFillOrgData
	if has {
		next = nextDashboard
	}
	c.JSON(http.StatusOK, gin.H{"next": next})
}

// Create handles POST /org.
func (h *OrganizationHandler) Create(c *gin.Context) {
	accountID, ok := h.accountID(c)
	if !ok {
		return
	}
	var req service.OrganizationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid organization request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	org, err := h.orgs.Create(c.Request.Context(), accountID, req)
	if err != nil {
		h.writeError(c, "create organization", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"organization": org})
}

// Get handles GET /org.
func (h *OrganizationHandler) Get(c *gin.Context) {
	accountID, ok := h.accountID(c)
	if !ok {
		return
	}
	org, err := h.orgs.Get(c.Request.Context(), accountID)
	if err != nil {
		h.writeError(c, "get organization", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"organization": org})
}

// Update handles PUT /org.
func (h *OrganizationHandler) Update(c *gin.Context) {
	accountID, ok := h.accountID(c)
	if !ok {
		return
	}
	var req service.OrganizationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid organization request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	org, err := h.orgs.Update(c.Request.Context(), accountID, req)
	if err != nil {
		h.writeError(c, "update organization", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"organization": org})
}

// GetBank handles GET /org/bank.
func (h *OrganizationHandler) GetBank(c *gin.Context) {
	accountID, ok := h.accountID(c)
	if !ok {
		return
	}
	org, err := h.orgs.Get(c.Request.Context(), accountID)
	if err != nil {
		h.writeError(c, "get bank details", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bank": org.Bank})
}

// UpdateBank handles PUT /org/bank.
func (h *OrganizationHandler) UpdateBank(c *gin.Context) {
	accountID, ok := h.accountID(c)
	if !ok {
		return
	}
	var req service.BankDetailsInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid bank details request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	bank, err := h.orgs.UpdateBankDetails(c.Request.Context(), accountID, req)
	if err != nil {
		h.writeError(c, "update bank details", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bank": bank})
}

func (h *OrganizationHandler) accountID(c *gin.Context) (string, bool) {
	claims, ok := GetAuthClaims(c)
	if !ok || claims.AccountID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return claims.AccountID, true
}

func (h *OrganizationHandler) writeError(c *gin.Context, op string, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": verr.Fields})
	case errors.Is(err, service.ErrOrganizationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrOrganizationExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error(op+" failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
