package services

import (
	"go.uber.org/zap"

	"github.com/autolumiku/whatsapp-backend/internal/models"
	"github.com/autolumiku/whatsapp-backend/internal/storage"
)

// AuthGate checks that a sender phone belongs to the tenant staff roster
// before any staff-only command runs. Customer intents never go through it.
type AuthGate struct {
	store storage.Store
}

func NewAuthGate(store storage.Store) *AuthGate {
	return &AuthGate{store: store}
}

// Authorize matches the normalized sender phone against active roster
// entries. normalize must be the same normalization the identity resolver
// applies to inbound numbers, so stored and inbound forms compare equal.
func (g *AuthGate) Authorize(tenantID, phone string, normalize func(string) string) (*models.StaffMember, error) {
	roster, err := g.store.GetStaffByTenant(tenantID)
	if err != nil {
		return nil, err
	}
	target := normalize(phone)
	if target == "" {
		return nil, nil
	}
	for _, member := range roster {
		if !member.IsActive {
			continue
		}
		if normalize(member.Phone) == target {
			return member, nil
		}
	}
	return nil, nil
}

// RecordDenial writes the failed-authorization audit entry. The reply sent
// to the user stays fixed and never hints at which phones are enrolled.
func (g *AuthGate) RecordDenial(tenantID, phone, commandTag string) {
	entry := &models.CommandLogEntry{
		TenantID:      tenantID,
		StaffPhone:    phone,
		CommandTag:    commandTag,
		Success:       false,
		ResultMessage: "authorization denied",
	}
	if err := g.store.AppendCommandLog(entry); err != nil {
		zap.L().Error("command log append failed",
			zap.String("tenantId", tenantID),
			zap.Error(err))
	}
}
