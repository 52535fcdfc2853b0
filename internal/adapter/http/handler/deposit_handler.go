package handler

import (
	"jvc-treasury/internal/adapter/http/dto"
	"jvc-treasury/internal/core/domain"
	"jvc-treasury/internal/core/ports"
	"jvc-treasury/pkg/apperror"
	"jvc-treasury/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DepositHandler handles deposit initiation and lookup. Confirmations come
// in through the webhook handler, never through this one.
type DepositHandler struct {
	depositSvc ports.DepositService
	deposits   ports.DepositRepository
}

// NewDepositHandler creates a new DepositHandler.
func NewDepositHandler(depositSvc ports.DepositService, deposits ports.DepositRepository) *DepositHandler {
	return &DepositHandler{depositSvc: depositSvc, deposits: deposits}
}

// Initiate handles POST /api/v1/deposits.
func (h *DepositHandler) Initiate(c *gin.Context) {
	var req dto.DepositInitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	amount, err := decimal.NewFromString(req.AmountUSD)
	if err != nil || !amount.IsPositive() {
		response.Error(c, apperror.Validation("amount_usd must be a positive decimal"))
		return
	}

	principalType := domain.PrincipalTypeUser
	if req.PrincipalType != "" {
		principalType = domain.PrincipalType(req.PrincipalType)
	}

	record, instructions, err := h.depositSvc.Initiate(c.Request.Context(), ports.DepositRequest{
		Principal:     req.Principal,
		PrincipalType: principalType,
		Rail:          domain.Rail(req.Rail),
		AmountUSD:     amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewDepositResponse(record, instructions))
}

// Get handles GET /api/v1/deposits/:id.
func (h *DepositHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid deposit id"))
		return
	}

	record, err := h.deposits.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, apperror.ErrDatabaseError(err))
		return
	}
	if record == nil {
		response.Error(c, apperror.ErrNotFound("Deposit"))
		return
	}

	response.OK(c, dto.NewDepositResponse(record, nil))
}
