package models

import (
	"time"

	"gorm.io/gorm"
)

// Message directions
const (
	MessageDirectionInbound  = "inbound"
	MessageDirectionOutbound = "outbound"
)

// Sender types
const (
	SenderTypeCustomer = "customer"
	SenderTypeStaff    = "staff"
	SenderTypeAI       = "ai"
)

// Delivery statuses (updated by gateway "status" events)
const (
	DeliveryStatusPending   = "pending"
	DeliveryStatusSent      = "sent"
	DeliveryStatusDelivered = "delivered"
	DeliveryStatusRead      = "read"
	DeliveryStatusFailed    = "failed"
)

// MessageRecord is the per-message log line of a conversation. MessageID
// is the gateway's id in both directions (send responses return it for
// outbound) and is what status events key on.
type MessageRecord struct {
	gorm.Model

	TenantID       string `json:"tenant_id" gorm:"index"`
	ConversationID uint   `json:"conversation_id" gorm:"index"`
	MessageID      string `json:"message_id" gorm:"index"`

	Direction  string `json:"direction"`
	SenderType string `json:"sender_type"`

	Body      string `json:"body"`
	MediaURL  string `json:"media_url"`
	MediaType string `json:"media_type"`
	Intent    string `json:"intent"`

	DeliveryStatus string    `json:"delivery_status"`
	Timestamp      time.Time `json:"timestamp"`
}

func (m *MessageRecord) BeforeCreate(tx *gorm.DB) error {
	if m.DeliveryStatus == "" {
		m.DeliveryStatus = DeliveryStatusPending
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	return nil
}
