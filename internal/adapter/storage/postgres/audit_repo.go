package postgres

import (
	"context"
	"fmt"

	"jvc-treasury/internal/core/domain"
)

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	pool Pool
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(pool Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// Create inserts an administrative audit log row.
func (r *AuditRepo) Create(ctx context.Context, l *domain.AuditLog) error {
	query := `INSERT INTO admin_audit_logs (id, admin_id, action, resource_id, details, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		l.ID, l.AdminID, l.Action, l.ResourceID, l.Details, l.IPAddress, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
