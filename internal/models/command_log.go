package models

import "gorm.io/gorm"

// Command tags recorded in the audit log
const (
	CommandUploadVehicle = "upload_vehicle"
	CommandUpdateStatus  = "update_status"
	CommandStockQuery    = "stock_query"
	CommandStats         = "stats"
	CommandCancel        = "cancel"
	CommandHelp          = "help"
)

// CommandLogEntry is the append-only audit record for staff commands.
// One row per executed or authorization-rejected command; never mutated.
type CommandLogEntry struct {
	gorm.Model

	TenantID   string `json:"tenant_id" gorm:"index"`
	StaffPhone string `json:"staff_phone" gorm:"index"`
	CommandTag string `json:"command_tag"`
	Parameters string `json:"parameters"` // JSON of the parsed request

	Success       bool   `json:"success"`
	ResultMessage string `json:"result_message"`

	// Business id of the entity the command touched, when any
	RelatedEntityID string `json:"related_entity_id"`
}
