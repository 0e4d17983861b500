package handler

import (
	"time"

	"telegram-wallet-bridge/internal/adapter/http/dto"
	"telegram-wallet-bridge/internal/core/domain"
	"telegram-wallet-bridge/internal/core/ports"
	"telegram-wallet-bridge/pkg/apperror"
	"telegram-wallet-bridge/pkg/response"

	"github.com/gin-gonic/gin"
)

// ConnectHandler handles the internal API the profile web service calls to
// issue tokens and inspect connection state.
type ConnectHandler struct {
	tokenSvc ports.TokenService
}

// NewConnectHandler creates a new ConnectHandler.
func NewConnectHandler(tokenSvc ports.TokenService) *ConnectHandler {
	return &ConnectHandler{tokenSvc: tokenSvc}
}

// CreateToken handles POST /api/telegram/create-token.
func (h *ConnectHandler) CreateToken(c *gin.Context) {
	var req dto.CreateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	token, err := h.tokenSvc.Issue(c.Request.Context(), req.UserID, req.UserEmail)
	if err != nil {
		tokenIssuesTotal.WithLabelValues("error").Inc()
		response.Error(c, err)
		return
	}
	tokenIssuesTotal.WithLabelValues("ok").Inc()

	response.Created(c, dto.CreateTokenResponse{
		Token:     token,
		ExpiresIn: int64(domain.TokenTTL.Seconds()),
	})
}

// ConnectionStatus handles GET /api/telegram/connection-status/:userId.
func (h *ConnectHandler) ConnectionStatus(c *gin.Context) {
	userID := c.Param("userId")
	if !dto.SafeID(userID) {
		response.Error(c, apperror.Validation("userId has invalid characters"))
		return
	}

	status, err := h.tokenSvc.ConnectionStatus(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := dto.ConnectionStatusResponse{Connected: status.Connected}
	if status.Binding != nil {
		out.Binding = &dto.BindingSummary{
			ChatID:      status.Binding.ChatID,
			Username:    status.Binding.Username,
			FirstName:   status.Binding.FirstName,
			LastName:    status.Binding.LastName,
			ConnectedAt: status.Binding.ConnectedAt.UTC().Format(time.RFC3339),
		}
	}
	response.OK(c, out)
}
