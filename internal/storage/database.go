package storage

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/autolumiku/whatsapp-backend/internal/models"
)

// DatabaseStore implements Store on top of gorm/PostgreSQL.
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a store backed by the given gorm handle
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

func (d *DatabaseStore) Ping() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Tenant operations

func (d *DatabaseStore) CreateTenant(t *models.Tenant) (*models.Tenant, error) {
	if err := d.db.Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

func (d *DatabaseStore) GetTenantByID(tenantID string) (*models.Tenant, error) {
	var t models.Tenant
	if err := d.db.Where("tenant_id = ?", tenantID).First(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (d *DatabaseStore) GetTenantBySlug(slug string) (*models.Tenant, error) {
	var t models.Tenant
	if err := d.db.Where("slug = ?", slug).First(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (d *DatabaseStore) GetAllTenants() ([]*models.Tenant, error) {
	var out []*models.Tenant
	if err := d.db.Order("tenant_id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DatabaseStore) UpdateTenant(t *models.Tenant) error {
	return d.db.Save(t).Error
}

// Gateway account operations

func (d *DatabaseStore) CreateGatewayAccount(a *models.GatewayAccount) (*models.GatewayAccount, error) {
	if err := d.db.Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

func (d *DatabaseStore) GetGatewayAccountBySessionID(sessionID string) (*models.GatewayAccount, error) {
	var a models.GatewayAccount
	if err := d.db.Where("session_id = ?", sessionID).First(&a).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (d *DatabaseStore) GetGatewayAccountByPhone(phone string) (*models.GatewayAccount, error) {
	var a models.GatewayAccount
	if err := d.db.Where("phone_number = ?", phone).First(&a).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (d *DatabaseStore) GetGatewayAccountsByTenant(tenantID string) ([]*models.GatewayAccount, error) {
	var out []*models.GatewayAccount
	if err := d.db.Where("tenant_id = ?", tenantID).Order("account_id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DatabaseStore) GetAllGatewayAccounts() ([]*models.GatewayAccount, error) {
	var out []*models.GatewayAccount
	if err := d.db.Order("account_id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DatabaseStore) UpdateGatewayAccount(a *models.GatewayAccount) error {
	return d.db.Save(a).Error
}

// Staff roster operations

func (d *DatabaseStore) CreateStaffMember(s *models.StaffMember) (*models.StaffMember, error) {
	if err := d.db.Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

func (d *DatabaseStore) GetStaffByTenant(tenantID string) ([]*models.StaffMember, error) {
	var out []*models.StaffMember
	if err := d.db.Where("tenant_id = ?", tenantID).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Conversation operations

func (d *DatabaseStore) CreateConversation(c *models.Conversation) (*models.Conversation, error) {
	if err := d.db.Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

func (d *DatabaseStore) GetConversation(tenantID, phone string) (*models.Conversation, error) {
	var c models.Conversation
	err := d.db.Where("tenant_id = ? AND customer_phone = ?", tenantID, phone).First(&c).Error
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (d *DatabaseStore) UpdateConversation(c *models.Conversation) error {
	return d.db.Save(c).Error
}

func (d *DatabaseStore) GetStaleUploadConversations(olderThan time.Time) ([]*models.Conversation, error) {
	var out []*models.Conversation
	err := d.db.
		Where("state = ? AND last_message_at < ?", models.ConversationStateUploadVehicle, olderThan).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DatabaseStore) GetIdleActiveConversations(idleSince time.Time) ([]*models.Conversation, error) {
	var out []*models.Conversation
	err := d.db.
		Where("status = ? AND last_message_at < ?", models.ConversationStatusActive, idleSince).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Vehicle operations

func (d *DatabaseStore) CreateVehicle(v *models.Vehicle) (*models.Vehicle, error) {
	if err := d.db.Create(v).Error; err != nil {
		return nil, err
	}
	return v, nil
}

func (d *DatabaseStore) GetVehicleByID(tenantID, vehicleID string) (*models.Vehicle, error) {
	var v models.Vehicle
	err := d.db.Where("tenant_id = ? AND vehicle_id = ?", tenantID, vehicleID).First(&v).Error
	if err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

func (d *DatabaseStore) SearchVehicles(tenantID, status, keyword string, limit int) ([]*models.Vehicle, error) {
	q := d.db.Where("tenant_id = ?", tenantID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if keyword != "" {
		like := "%" + keyword + "%"
		q = q.Where("make ILIKE ? OR model ILIKE ?", like, like)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var out []*models.Vehicle
	if err := q.Order("id DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DatabaseStore) UpdateVehicle(v *models.Vehicle) error {
	return d.db.Save(v).Error
}

func (d *DatabaseStore) CountVehiclesByStatus(tenantID string) (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := d.db.Model(&models.Vehicle{}).
		Select("status, count(*) as count").
		Where("tenant_id = ?", tenantID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// Command audit log

func (d *DatabaseStore) AppendCommandLog(e *models.CommandLogEntry) error {
	return d.db.Create(e).Error
}

func (d *DatabaseStore) GetCommandLogByTenant(tenantID string, limit int) ([]*models.CommandLogEntry, error) {
	q := d.db.Where("tenant_id = ?", tenantID).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*models.CommandLogEntry
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Message log

func (d *DatabaseStore) CreateMessageRecord(m *models.MessageRecord) (*models.MessageRecord, error) {
	if err := d.db.Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

func (d *DatabaseStore) UpdateMessageDeliveryStatus(messageID, status string) error {
	res := d.db.Model(&models.MessageRecord{}).
		Where("message_id = ?", messageID).
		Update("delivery_status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *DatabaseStore) GetMessagesByConversation(conversationID uint, limit int) ([]*models.MessageRecord, error) {
	q := d.db.Where("conversation_id = ?", conversationID).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*models.MessageRecord
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DatabaseStore) HasInboundMessage(tenantID, messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}
	var count int64
	err := d.db.Model(&models.MessageRecord{}).
		Where("tenant_id = ? AND message_id = ? AND direction = ?",
			tenantID, messageID, models.MessageDirectionInbound).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
