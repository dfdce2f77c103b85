// Package authz centralizes ownership and role checks so handlers share a
// single policy decision point.
package authz

import (
	"github.com/google/uuid"

	"github.com/douglas-germano/advantage-crm-backend/internal/database/models"
)

// Principal is the authenticated caller as seen by policy checks.
type Principal struct {
	UserID uuid.UUID
	Role   string
}

func (p Principal) IsAdmin() bool {
	return p.Role == models.RoleAdmin
}

// CanManage reports whether the principal may mutate a record owned by
// ownerID. Admins manage everything; everyone else only their own records.
func (p Principal) CanManage(ownerID uuid.UUID) bool {
	if p.IsAdmin() {
		return true
	}
	return p.UserID == ownerID
}

// CanManagePtr is CanManage for nullable owner columns. Records without an
// owner are admin-only.
func (p Principal) CanManagePtr(ownerID *uuid.UUID) bool {
	if p.IsAdmin() {
		return true
	}
	return ownerID != nil && p.UserID == *ownerID
}
