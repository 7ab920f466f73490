package models

import (
	"time"

	"gorm.io/gorm"
)

// Conversation states
const (
	ConversationStateNone          = "none"
	ConversationStateUploadVehicle = "upload_vehicle"
)

// Conversation statuses
const (
	ConversationStatusActive  = "active"
	ConversationStatusClosed  = "closed"
	ConversationStatusDeleted = "deleted" // soft tombstone, never hard-removed here
)

// Conversation is the durable per-(tenant, phone) record tracking
// multi-turn command progress. ContextData carries the serialized
// upload context while State is upload_vehicle, otherwise "".
type Conversation struct {
	gorm.Model

	TenantID      string `json:"tenant_id" gorm:"index:idx_conv_tenant_phone,unique"`
	CustomerPhone string `json:"customer_phone" gorm:"index:idx_conv_tenant_phone,unique"`
	CustomerName  string `json:"customer_name"`
	IsStaff       bool   `json:"is_staff"`

	State       string `json:"state"`
	ContextData string `json:"context_data"`
	LastIntent  string `json:"last_intent"`

	LastMessageAt time.Time `json:"last_message_at"`
	Status        string    `json:"status"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.State == "" {
		c.State = ConversationStateNone
	}
	if c.Status == "" {
		c.Status = ConversationStatusActive
	}
	if c.LastMessageAt.IsZero() {
		c.LastMessageAt = time.Now()
	}
	return nil
}

// ResetState clears command progress back to idle. Context data is
// destroyed; the conversation row itself survives.
func (c *Conversation) ResetState() {
	c.State = ConversationStateNone
	c.ContextData = ""
}
