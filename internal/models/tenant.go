package models

import (
	"strings"

	"gorm.io/gorm"
)

// Tenant is one dealership using the platform
type Tenant struct {
	gorm.Model

	TenantID    string `json:"tenant_id" gorm:"uniqueIndex"`
	Name        string `json:"name"`
	Slug        string `json:"slug" gorm:"uniqueIndex"`
	CountryCode string `json:"country_code"` // calling code for local-number normalization, e.g. "62"

	// Chat behaviour
	AIName           string `json:"ai_name"`           // display name the assistant signs replies with
	GreetingTemplate string `json:"greeting_template"` // sent on customer_greeting intent

	// Outbound event forwarding (dashboard integration)
	WebhookURL    string `json:"webhook_url"`
	WebhookSecret string `json:"-"`

	IsActive bool `json:"is_active" gorm:"default:true"`
}

// BeforeCreate generates the business id and derives a slug when missing
func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.TenantID == "" {
		t.TenantID = NewBusinessID("T")
	}
	if t.Slug == "" {
		t.Slug = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(t.Name), " ", "-"))
	}
	if t.CountryCode == "" {
		t.CountryCode = "62"
	}
	return nil
}
