package models

import (
	"time"

	jsoniter "github.com/json-iterator/go"
	"gorm.io/gorm"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Vehicle statuses (the fixed set accepted by the status command)
const (
	VehicleStatusAvailable = "available"
	VehicleStatusBooked    = "booked"
	VehicleStatusSold      = "sold"
)

// ValidVehicleStatuses is listed back to staff when they send an
// unrecognized status value.
var ValidVehicleStatuses = []string{
	VehicleStatusAvailable,
	VehicleStatusBooked,
	VehicleStatusSold,
}

// Vehicle is one unit in a tenant's inventory. gorm.Model is not
// embedded because the car model field would collide with it.
type Vehicle struct {
	ID        uint           `json:"-" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	VehicleID string `json:"vehicle_id" gorm:"uniqueIndex"`
	TenantID  string `json:"tenant_id" gorm:"index"`

	Make         string `json:"make"`
	Model        string `json:"model"`
	Year         int    `json:"year"`
	Price        int64  `json:"price"`   // IDR
	Mileage      int    `json:"mileage"` // km
	Color        string `json:"color"`
	Transmission string `json:"transmission"`

	Status    string `json:"status"`
	PhotosRaw string `json:"-" gorm:"column:photos;type:text"` // JSON array of URLs

	CreatedByPhone string `json:"created_by_phone"`
}

func (v *Vehicle) BeforeCreate(tx *gorm.DB) error {
	if v.VehicleID == "" {
		v.VehicleID = NewBusinessID("V")
	}
	if v.Status == "" {
		v.Status = VehicleStatusAvailable
	}
	return nil
}

// Photos decodes the stored photo URL list.
func (v *Vehicle) Photos() []string {
	if v.PhotosRaw == "" {
		return nil
	}
	var urls []string
	if err := json.Unmarshal([]byte(v.PhotosRaw), &urls); err != nil {
		return nil
	}
	return urls
}

// SetPhotos encodes the photo URL list for storage.
func (v *Vehicle) SetPhotos(urls []string) {
	if len(urls) == 0 {
		v.PhotosRaw = ""
		return
	}
	raw, err := json.Marshal(urls)
	if err != nil {
		return
	}
	v.PhotosRaw = string(raw)
}

// IsValidVehicleStatus reports whether s is one of the accepted statuses.
func IsValidVehicleStatus(s string) bool {
	for _, valid := range ValidVehicleStatuses {
		if s == valid {
			return true
		}
	}
	return false
}
