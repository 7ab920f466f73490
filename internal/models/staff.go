package models

import (
	"strings"

	"gorm.io/gorm"
)

// Staff roles
const (
	StaffRoleOwner = "owner"
	StaffRoleAdmin = "admin"
	StaffRoleSales = "sales"
)

// StaffMember is one entry in a tenant's roster. The authorization gate
// matches inbound phones against active members only.
type StaffMember struct {
	gorm.Model

	TenantID string `json:"tenant_id" gorm:"index:idx_staff_tenant_phone,unique"`
	Phone    string `json:"phone" gorm:"index:idx_staff_tenant_phone,unique"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active" gorm:"default:true"`
}

// BeforeCreate strips formatting characters so stored phones are digit
// strings (full normalization happens at compare time).
func (s *StaffMember) BeforeCreate(tx *gorm.DB) error {
	s.Phone = strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s.Phone)
	if s.Role == "" {
		s.Role = StaffRoleSales
	}
	return nil
}
