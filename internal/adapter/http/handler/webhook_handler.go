package handler

import (
	"strings"

	"jvc-treasury/internal/adapter/http/dto"
	"jvc-treasury/internal/core/domain"
	"jvc-treasury/internal/core/ports"
	"jvc-treasury/pkg/apperror"
	"jvc-treasury/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// WebhookHandler receives signed rail callbacks. payment.* events settle
// deposits, payout.* events settle withdrawals. Redeliveries are safe: both
// services absorb replays of terminal records.
type WebhookHandler struct {
	depositSvc    ports.DepositService
	withdrawalSvc ports.WithdrawalService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(depositSvc ports.DepositService, withdrawalSvc ports.WithdrawalService) *WebhookHandler {
	return &WebhookHandler{depositSvc: depositSvc, withdrawalSvc: withdrawalSvc}
}

// Receive handles POST /api/v1/webhooks/:rail.
func (h *WebhookHandler) Receive(c *gin.Context) {
	rail := domain.Rail(c.Param("rail"))
	if !rail.Valid() {
		response.Error(c, apperror.ErrUnknownRail(c.Param("rail")))
		return
	}

	var req dto.RailWebhook
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	// Rails key their records by the payment reference; the event id only
	// identifies the delivery itself.
	key := req.Reference
	if key == "" {
		key = req.EventID
	}

	switch {
	case strings.HasPrefix(req.EventType, "payment."):
		h.handleDeposit(c, rail, key, req)
	case strings.HasPrefix(req.EventType, "payout."):
		h.handleWithdrawal(c, rail, key, req)
	default:
		response.Error(c, apperror.Validation("unknown event type"))
	}
}

func (h *WebhookHandler) handleDeposit(c *gin.Context, rail domain.Rail, key string, req dto.RailWebhook) {
	if req.EventType == "payment.failed" {
		record, err := h.depositSvc.Fail(c.Request.Context(), rail, key)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, dto.NewDepositResponse(record, nil))
		return
	}

	amount := decimal.Zero
	if req.AmountUSD != "" {
		parsed, err := decimal.NewFromString(req.AmountUSD)
		if err != nil {
			response.Error(c, apperror.Validation("amount_usd must be a decimal"))
			return
		}
		amount = parsed
	}

	record, err := h.depositSvc.Confirm(c.Request.Context(), ports.DepositConfirmation{
		Rail:      rail,
		EventID:   key,
		AmountUSD: amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewDepositResponse(record, nil))
}

func (h *WebhookHandler) handleWithdrawal(c *gin.Context, rail domain.Rail, key string, req dto.RailWebhook) {
	record, err := h.withdrawalSvc.Settle(c.Request.Context(), rail, key, req.EventType == "payout.succeeded")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewWithdrawalResponse(record))
}
