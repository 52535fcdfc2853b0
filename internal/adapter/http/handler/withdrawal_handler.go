package handler

import (
	"jvc-treasury/internal/adapter/http/dto"
	"jvc-treasury/internal/core/domain"
	"jvc-treasury/internal/core/ports"
	"jvc-treasury/pkg/apperror"
	"jvc-treasury/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WithdrawalHandler handles withdrawal requests and lookup. Settlement
// outcomes arrive through the webhook handler.
type WithdrawalHandler struct {
	withdrawalSvc ports.WithdrawalService
	withdrawals   ports.WithdrawalRepository
}

// NewWithdrawalHandler creates a new WithdrawalHandler.
func NewWithdrawalHandler(withdrawalSvc ports.WithdrawalService, withdrawals ports.WithdrawalRepository) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawalSvc: withdrawalSvc, withdrawals: withdrawals}
}

// Create handles POST /api/v1/withdrawals.
func (h *WithdrawalHandler) Create(c *gin.Context) {
	var req dto.WithdrawalCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	record, err := h.withdrawalSvc.Request(c.Request.Context(), ports.WithdrawalRequest{
		Principal:   req.Principal,
		Rail:        domain.Rail(req.Rail),
		AmountToken: req.Amount,
		Destination: req.Destination,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewWithdrawalResponse(record))
}

// Get handles GET /api/v1/withdrawals/:id.
func (h *WithdrawalHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid withdrawal id"))
		return
	}

	record, err := h.withdrawals.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, apperror.ErrDatabaseError(err))
		return
	}
	if record == nil {
		response.Error(c, apperror.ErrNotFound("Withdrawal"))
		return
	}

	response.OK(c, dto.NewWithdrawalResponse(record))
}
