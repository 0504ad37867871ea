package policy

import (
	"context"

	"github.com/diewo77/field-reports/auth"
	"github.com/diewo77/field-reports/gate"
	"github.com/diewo77/field-reports/internal/models"
)

// Ownable is implemented by models that belong to one user.
type Ownable interface {
	GetUserID() string
}

// OwnershipPolicy allows a user to act on resources they own.
type OwnershipPolicy struct{}

func NewOwnershipPolicy() *OwnershipPolicy {
	return &OwnershipPolicy{}
}

// Can checks ownership. A nil resource is a list or create check scoped to the
// caller's own data and is allowed; a resource without an owner is denied.
func (p *OwnershipPolicy) Can(_ context.Context, user auth.Principal, _ gate.Action, resource any) bool {
	if resource == nil {
		return true
	}
	ownable, ok := resource.(Ownable)
	if !ok {
		return false
	}
	return ownable.GetUserID() == user.ID
}

// AdminOnlyPolicy allows admins and nobody else.
type AdminOnlyPolicy struct{}

func (AdminOnlyPolicy) Can(_ context.Context, user auth.Principal, _ gate.Action, _ any) bool {
	return user.IsAdmin
}

// ExportPolicy lets every user export their own records; exporting all users'
// records (resource == models.ExportAllUsers) needs admin.
type ExportPolicy struct{}

func (ExportPolicy) Can(_ context.Context, user auth.Principal, _ gate.Action, resource any) bool {
	if scope, ok := resource.(string); ok && scope == models.ExportAllUsers {
		return user.IsAdmin
	}
	return true
}

// AdminBypass is a gate hook that lets admins view and delete any record.
func AdminBypass(_ context.Context, user auth.Principal, action gate.Action, resourceType string) *bool {
	if !user.IsAdmin {
		return nil
	}
	switch resourceType {
	case models.ResourceIntervention, models.ResourceReclamation:
		if action == gate.ActionView || action == gate.ActionDelete {
			return gate.Allow()
		}
	}
	return nil
}

// NewRecordGate builds the gate guarding record reads, deletes and exports.
func NewRecordGate() *gate.Gate[auth.Principal] {
	g := gate.NewGate[auth.Principal]()
	owned := NewOwnershipPolicy()
	g.Register(models.ResourceIntervention, owned)
	g.Register(models.ResourceReclamation, owned)
	g.Register(models.ResourceRecords, AdminOnlyPolicy{})
	g.Register(models.ResourceExport, ExportPolicy{})
	g.Before(AdminBypass)
	return g
}
