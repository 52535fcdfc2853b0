package handler

import (
	"jvc-treasury/internal/adapter/http/dto"
	"jvc-treasury/internal/adapter/http/middleware"
	"jvc-treasury/internal/core/domain"
	"jvc-treasury/internal/core/ports"
	"jvc-treasury/pkg/apperror"
	"jvc-treasury/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminHandler handles supply management, wallet compliance actions and
// treasury oversight. All routes require an admin JWT.
type AdminHandler struct {
	mintBurnSvc  ports.MintBurnService
	reconcileSvc ports.ReconciliationService
	transferSvc  ports.TransferService
	treasury     ports.TreasuryRepository
	wallets      ports.WalletRepository
	auditSvc     ports.AuditService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	mintBurnSvc ports.MintBurnService,
	reconcileSvc ports.ReconciliationService,
	transferSvc ports.TransferService,
	treasury ports.TreasuryRepository,
	wallets ports.WalletRepository,
	auditSvc ports.AuditService,
) *AdminHandler {
	return &AdminHandler{
		mintBurnSvc:  mintBurnSvc,
		reconcileSvc: reconcileSvc,
		transferSvc:  transferSvc,
		treasury:     treasury,
		wallets:      wallets,
		auditSvc:     auditSvc,
	}
}

// adminID pulls the authenticated admin id set by the JWT middleware.
func adminID(c *gin.Context) uuid.UUID {
	if v, exists := c.Get(middleware.CtxAdminID); exists {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}

// Mint handles POST /api/v1/admin/mint.
func (h *AdminHandler) Mint(c *gin.Context) {
	var req dto.MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	entry, err := h.mintBurnSvc.Mint(c.Request.Context(), req.Target, req.Amount, req.Reason, adminID(c).String())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewLedgerEntryResponse(entry))
}

// Burn handles POST /api/v1/admin/burn.
func (h *AdminHandler) Burn(c *gin.Context) {
	var req dto.BurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	entry, err := h.mintBurnSvc.Burn(c.Request.Context(), req.Target, req.Amount, req.Reason, adminID(c).String(), req.AllowFrozen)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewLedgerEntryResponse(entry))
}

// TreasuryStatus handles GET /api/v1/admin/treasury.
func (h *AdminHandler) TreasuryStatus(c *gin.Context) {
	treasury, err := h.treasury.Get(c.Request.Context())
	if err != nil {
		response.Error(c, apperror.ErrDatabaseError(err))
		return
	}
	response.OK(c, gin.H{
		"treasury":      treasury,
		"backing_ratio": treasury.BackingRatio(),
	})
}

// Reconcile handles POST /api/v1/admin/reconcile. A run already in progress
// returns 202 with no report.
func (h *AdminHandler) Reconcile(c *gin.Context) {
	report, err := h.reconcileSvc.Reconcile(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	h.audit(c, domain.AuditActionReconcile, "", "")

	if report == nil {
		c.JSON(202, gin.H{"status": "already_running"})
		return
	}
	response.OK(c, report)
}

// Freeze handles POST /api/v1/admin/wallets/:principal/freeze.
func (h *AdminHandler) Freeze(c *gin.Context) {
	h.setFrozen(c, true)
}

// Unfreeze handles POST /api/v1/admin/wallets/:principal/unfreeze.
func (h *AdminHandler) Unfreeze(c *gin.Context) {
	h.setFrozen(c, false)
}

func (h *AdminHandler) setFrozen(c *gin.Context, frozen bool) {
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

	var reason *string
	action := domain.AuditActionUnfreeze
	if frozen {
		var req dto.FreezeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, apperror.Validation(err.Error()))
			return
		}
		dto.SanitizeStruct(&req)
		reason = &req.Reason
		action = domain.AuditActionFreeze
	}

	if err := h.wallets.SetFrozen(c.Request.Context(), wallet.ID, frozen, reason); err != nil {
		response.Error(c, apperror.ErrDatabaseError(err))
		return
	}

	detail := ""
	if reason != nil {
		detail = *reason
	}
	h.audit(c, action, principal, detail)

	wallet.Frozen = frozen
	wallet.FrozenReason = reason
	response.OK(c, dto.BalanceResponse{
		Principal:    wallet.Principal,
		Balance:      wallet.TokenBalance,
		Frozen:       wallet.Frozen,
		ChainAddress: wallet.ChainAddress,
		TrustlineSet: wallet.TrustlineSet,
	})
}

// Trustline handles POST /api/v1/admin/trustlines. It provisions a chain
// wallet for the principal and opens the trustline so future transfers can
// be mirrored on chain.
func (h *AdminHandler) Trustline(c *gin.Context) {
	var req dto.TrustlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	address, err := h.transferSvc.EnableChainMirroring(c.Request.Context(), req.Principal, req.TrustlineLimit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.TrustlineResponse{
		Principal:    req.Principal,
		ChainAddress: address,
	})
}

// audit records an HTTP-level administrative action. Mint and burn carry
// their own audit records inside the service.
func (h *AdminHandler) audit(c *gin.Context, action domain.AuditAction, resourceID, details string) {
	if h.auditSvc == nil {
		return
	}
	id := adminID(c)
	var adminRef *uuid.UUID
	if id != uuid.Nil {
		adminRef = &id
	}
	h.auditSvc.Record(c.Request.Context(), &domain.AuditLog{
		AdminID:    adminRef,
		Action:     action,
		ResourceID: resourceID,
		Details:    details,
		IPAddress:  c.ClientIP(),
	})
}
