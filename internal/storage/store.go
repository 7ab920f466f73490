package storage

import (
	"errors"
	"time"

	"github.com/autolumiku/whatsapp-backend/internal/models"
)

// ErrNotFound is returned by lookups that match no record. Both store
// implementations translate their misses to this sentinel so callers can
// branch with errors.Is.
var ErrNotFound = errors.New("record not found")

var storeInstance Store

// SetStore sets the global store instance (call from main.go)
func SetStore(s Store) {
	storeInstance = s
}

// GetStore returns the global store instance
func GetStore() Store {
	return storeInstance
}

// Store defines the persistence operations used by the orchestration layer
type Store interface {
	// Ping reports whether the backing store is reachable.
	Ping() error

	// Tenant operations
	CreateTenant(t *models.Tenant) (*models.Tenant, error)
	GetTenantByID(tenantID string) (*models.Tenant, error)
	GetTenantBySlug(slug string) (*models.Tenant, error)
	GetAllTenants() ([]*models.Tenant, error)
	UpdateTenant(t *models.Tenant) error

	// Gateway account operations
	CreateGatewayAccount(a *models.GatewayAccount) (*models.GatewayAccount, error)
	GetGatewayAccountBySessionID(sessionID string) (*models.GatewayAccount, error)
	GetGatewayAccountByPhone(phone string) (*models.GatewayAccount, error)
	GetGatewayAccountsByTenant(tenantID string) ([]*models.GatewayAccount, error)
	GetAllGatewayAccounts() ([]*models.GatewayAccount, error)
	UpdateGatewayAccount(a *models.GatewayAccount) error

	// Staff roster operations
	CreateStaffMember(s *models.StaffMember) (*models.StaffMember, error)
	GetStaffByTenant(tenantID string) ([]*models.StaffMember, error)

	// Conversation operations
	CreateConversation(c *models.Conversation) (*models.Conversation, error)
	GetConversation(tenantID, phone string) (*models.Conversation, error)
	UpdateConversation(c *models.Conversation) error
	GetStaleUploadConversations(olderThan time.Time) ([]*models.Conversation, error)
	GetIdleActiveConversations(idleSince time.Time) ([]*models.Conversation, error)

	// Vehicle operations
	CreateVehicle(v *models.Vehicle) (*models.Vehicle, error)
	GetVehicleByID(tenantID, vehicleID string) (*models.Vehicle, error)
	SearchVehicles(tenantID, status, keyword string, limit int) ([]*models.Vehicle, error)
	UpdateVehicle(v *models.Vehicle) error
	CountVehiclesByStatus(tenantID string) (map[string]int64, error)

	// Command audit log (append-only)
	AppendCommandLog(e *models.CommandLogEntry) error
	GetCommandLogByTenant(tenantID string, limit int) ([]*models.CommandLogEntry, error)

	// Message log
	CreateMessageRecord(m *models.MessageRecord) (*models.MessageRecord, error)
	UpdateMessageDeliveryStatus(messageID, status string) error
	GetMessagesByConversation(conversationID uint, limit int) ([]*models.MessageRecord, error)
	HasInboundMessage(tenantID, messageID string) (bool, error)
}
