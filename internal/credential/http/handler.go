package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/tierguard/internal/credential/http/dto"
	credentialUseCase "github.com/allisson/tierguard/internal/credential/usecase"
	entitlementUseCase "github.com/allisson/tierguard/internal/entitlement/usecase"
	apperrors "github.com/allisson/tierguard/internal/errors"
	"github.com/allisson/tierguard/internal/httputil"
	customValidation "github.com/allisson/tierguard/internal/validation"
)

// CredentialHandler handles HTTP requests for credential operations.
type CredentialHandler struct {
	credentialUseCase credentialUseCase.CredentialUseCase
	logger            *slog.Logger
}

// NewCredentialHandler creates a new credential handler.
func NewCredentialHandler(
	credentialUseCase credentialUseCase.CredentialUseCase,
	logger *slog.Logger,
) *CredentialHandler {
	return &CredentialHandler{
		credentialUseCase: credentialUseCase,
		logger:            logger,
	}
}

// LogoutHandler revokes the credential presented on the request.
// POST /v1/auth/logout - Requires AccessMiddleware.
// Returns 204 No Content.
func (h *CredentialHandler) LogoutHandler(c *gin.Context) {
	decision, ok := GetDecision(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	if err := h.credentialUseCase.Revoke(c.Request.Context(), decision.TokenID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// RedeemMagicLinkHandler consumes a magic link and returns a session credential.
// POST /v1/auth/magic-link/redeem - No credential required; throttled per IP.
// Returns 201 Created.
func (h *CredentialHandler) RedeemMagicLinkHandler(c *gin.Context) {
	var req dto.RedeemMagicLinkRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	output, err := h.credentialUseCase.RedeemMagicLink(c.Request.Context(), req.Token)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapIssueTokenOutputToResponse(output))
}

// EntitlementHandler handles HTTP requests for entitlement introspection.
type EntitlementHandler struct {
	entitlementUseCase entitlementUseCase.EntitlementUseCase
	logger             *slog.Logger
}

// NewEntitlementHandler creates a new entitlement handler.
func NewEntitlementHandler(
	entitlementUseCase entitlementUseCase.EntitlementUseCase,
	logger *slog.Logger,
) *EntitlementHandler {
	return &EntitlementHandler{
		entitlementUseCase: entitlementUseCase,
		logger:             logger,
	}
}

// GetMineHandler returns the entitlement of the authenticated caller.
// GET /v1/entitlements/me - Requires AccessMiddleware.
// Returns 200 OK.
func (h *EntitlementHandler) GetMineHandler(c *gin.Context) {
	decision, ok := GetDecision(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	resolution, err := h.entitlementUseCase.Resolve(c.Request.Context(), decision.UserID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapEntitlementToResponse(resolution, decision))
}
