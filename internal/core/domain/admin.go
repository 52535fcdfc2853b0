package domain

import (
	"time"

	"github.com/google/uuid"
)

// Admin is an operator allowed to call mint/burn and reconciliation.
type Admin struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuditAction represents the type of audited administrative action.
type AuditAction string

const (
	AuditActionLogin     AuditAction = "LOGIN"
	AuditActionMint      AuditAction = "MINT"
	AuditActionBurn      AuditAction = "BURN"
	AuditActionFreeze    AuditAction = "FREEZE"
	AuditActionUnfreeze  AuditAction = "UNFREEZE"
	AuditActionReconcile AuditAction = "RECONCILE"
)

// AuditLog records a single administrative action. Ledger entries are the
// audit trail for balance changes; this log covers the HTTP-level actions
// around them.
type AuditLog struct {
	ID         uuid.UUID   `json:"id"`
	AdminID    *uuid.UUID  `json:"admin_id,omitempty"`
	Action     AuditAction `json:"action"`
	ResourceID string      `json:"resource_id,omitempty"`
	Details    string      `json:"details,omitempty"` // JSON string
	IPAddress  string      `json:"ip_address"`
	CreatedAt  time.Time   `json:"created_at"`
}
