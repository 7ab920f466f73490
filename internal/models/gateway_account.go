package models

import (
	"time"

	"gorm.io/gorm"
)

// Connection statuses reported by the gateway
const (
	ConnectionStatusConnected    = "connected"
	ConnectionStatusDisconnected = "disconnected"
	ConnectionStatusQRReady      = "qr_ready"
	ConnectionStatusUnknown      = "unknown"
)

// GatewayAccount is one tenant-owned WhatsApp session on the external
// gateway. SessionID is assigned by the gateway and can drift when the
// session is re-provisioned; the reconciler repairs it.
type GatewayAccount struct {
	gorm.Model

	AccountID        string     `json:"account_id" gorm:"uniqueIndex"`
	TenantID         string     `json:"tenant_id" gorm:"index"`
	SessionID        string     `json:"session_id" gorm:"index"`
	PhoneNumber      string     `json:"phone_number" gorm:"index"`
	ConnectionStatus string     `json:"connection_status"`
	LastConnectedAt  *time.Time `json:"last_connected_at"`
}

func (a *GatewayAccount) BeforeCreate(tx *gorm.DB) error {
	if a.AccountID == "" {
		a.AccountID = NewBusinessID("GA")
	}
	if a.ConnectionStatus == "" {
		a.ConnectionStatus = ConnectionStatusUnknown
	}
	return nil
}

// IsConnected reports whether the gateway last told us this session is live
func (a *GatewayAccount) IsConnected() bool {
	return a.ConnectionStatus == ConnectionStatusConnected
}
