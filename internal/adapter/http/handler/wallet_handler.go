package handler

import (
	"strconv"

	"jvc-treasury/internal/adapter/http/dto"
	"jvc-treasury/internal/core/domain"
	"jvc-treasury/internal/core/ports"
	"jvc-treasury/pkg/apperror"
	"jvc-treasury/pkg/response"

	"github.com/gin-gonic/gin"
)

const defaultHistoryLimit = 50

// WalletHandler handles balance reads, verification and transfers.
type WalletHandler struct {
	wallets     ports.WalletRepository
	entries     ports.LedgerRepository
	verifySvc   ports.VerificationService
	transferSvc ports.TransferService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(
	wallets ports.WalletRepository,
	entries ports.LedgerRepository,
	verifySvc ports.VerificationService,
	transferSvc ports.TransferService,
) *WalletHandler {
	return &WalletHandler{
		wallets:     wallets,
		entries:     entries,
		verifySvc:   verifySvc,
		transferSvc: transferSvc,
	}
}

// GetBalance handles GET /api/v1/wallets/:principal/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	principal := c.Param("principal")
	wallet, err := h.wallets.GetByPrincipal(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, apperror.ErrDatabaseError(err))
		return
	}
	if wallet == nil {
		response.Error(c, apperror.ErrNotFound("Wallet"))
		return
	}

	response.OK(c, dto.BalanceResponse{
		Principal:    wallet.Principal,
		Balance:      wallet.TokenBalance,
		Frozen:       wallet.Frozen,
		ChainAddress: wallet.ChainAddress,
		TrustlineSet: wallet.TrustlineSet,
	})
}

// GetHistory handles GET /api/v1/wallets/:principal/history.
func (h *WalletHandler) GetHistory(c *gin.Context) {
	principal := c.Param("principal")
	wallet, err := h.wallets.GetByPrincipal(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, apperror.ErrDatabaseError(err))
		return
	}
	if wallet == nil {
		response.Error(c, apperror.ErrNotFound("Wallet"))
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	entries, err := h.entries.ListByWallet(c.Request.Context(), wallet.ID, limit)
	if err != nil {
		response.Error(c, apperror.ErrDatabaseError(err))
		return
	}

	out := make([]dto.LedgerEntryResponse, 0, len(entries))
	for i := range entries {
		out = append(out, dto.NewLedgerEntryResponse(&entries[i]))
	}
	response.OK(c, dto.HistoryResponse{Principal: principal, Entries: out})
}

// Verify handles POST /api/v1/wallets/verify.
func (h *WalletHandler) Verify(c *gin.Context) {
	var req dto.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	ok, err := h.verifySvc.Verify(c.Request.Context(), req.Principal, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.VerifyResponse{Sufficient: ok})
}

// Transfer handles POST /api/v1/transfers.
func (h *WalletHandler) Transfer(c *gin.Context) {
	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	receiverType := domain.PrincipalTypeUser
	if req.ReceiverType != "" {
		receiverType = domain.PrincipalType(req.ReceiverType)
	}

	result, err := h.transferSvc.Transfer(c.Request.Context(), ports.TransferRequest{
		SenderPrincipal:   req.SenderPrincipal,
		ReceiverPrincipal: req.ReceiverPrincipal,
		ReceiverType:      receiverType,
		Amount:            req.Amount,
		TriggeredBy:       req.SenderPrincipal,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.TransferResponse{
		Sender:    dto.NewLedgerEntryResponse(result.SenderEntry),
		Receiver:  dto.NewLedgerEntryResponse(result.ReceiverEntry),
		ChainTxID: result.ChainTxID,
	})
}
