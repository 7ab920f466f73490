package storage

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/autolumiku/whatsapp-backend/internal/models"
)

// MemoryStore holds all data in memory. Used for tests and local runs
// with USE_MEMORY_STORE=true.
type MemoryStore struct {
	tenants       map[string]*models.Tenant         // by TenantID
	accounts      map[string]*models.GatewayAccount // by AccountID
	staff         []*models.StaffMember
	conversations map[string]*models.Conversation // by tenantID|phone
	vehicles      map[string]*models.Vehicle      // by VehicleID
	commandLog    []*models.CommandLogEntry
	messages      []*models.MessageRecord

	tenantMu  sync.RWMutex
	accountMu sync.RWMutex
	staffMu   sync.RWMutex
	convMu    sync.RWMutex
	vehicleMu sync.RWMutex
	logMu     sync.RWMutex
	msgMu     sync.RWMutex

	convCounter    uint
	msgCounter     uint
	logCounter     uint
	vehicleCounter uint
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants:       make(map[string]*models.Tenant),
		accounts:      make(map[string]*models.GatewayAccount),
		conversations: make(map[string]*models.Conversation),
		vehicles:      make(map[string]*models.Vehicle),
	}
}

func convKey(tenantID, phone string) string {
	return tenantID + "|" + phone
}

func (m *MemoryStore) Ping() error { return nil }

// Tenant operations

func (m *MemoryStore) CreateTenant(t *models.Tenant) (*models.Tenant, error) {
	m.tenantMu.Lock()
	defer m.tenantMu.Unlock()

	if t.TenantID == "" {
		t.TenantID = models.NewBusinessID("T")
	}
	if t.Slug == "" {
		t.Slug = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(t.Name), " ", "-"))
	}
	if t.CountryCode == "" {
		t.CountryCode = "62"
	}
	t.CreatedAt = time.Now()
	t.UpdatedAt = time.Now()

	cp := *t
	m.tenants[t.TenantID] = &cp
	return t, nil
}

func (m *MemoryStore) GetTenantByID(tenantID string) (*models.Tenant, error) {
	m.tenantMu.RLock()
	defer m.tenantMu.RUnlock()

	t, ok := m.tenants[tenantID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryStore) GetTenantBySlug(slug string) (*models.Tenant, error) {
	m.tenantMu.RLock()
	defer m.tenantMu.RUnlock()

	for _, t := range m.tenants {
		if t.Slug == slug {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetAllTenants() ([]*models.Tenant, error) {
	m.tenantMu.RLock()
	defer m.tenantMu.RUnlock()

	out := make([]*models.Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out, nil
}

func (m *MemoryStore) UpdateTenant(t *models.Tenant) error {
	m.tenantMu.Lock()
	defer m.tenantMu.Unlock()

	if _, ok := m.tenants[t.TenantID]; !ok {
		return ErrNotFound
	}
	t.UpdatedAt = time.Now()
	cp := *t
	m.tenants[t.TenantID] = &cp
	return nil
}

// Gateway account operations

func (m *MemoryStore) CreateGatewayAccount(a *models.GatewayAccount) (*models.GatewayAccount, error) {
	m.accountMu.Lock()
	defer m.accountMu.Unlock()

	if a.AccountID == "" {
		a.AccountID = models.NewBusinessID("GA")
	}
	if a.ConnectionStatus == "" {
		a.ConnectionStatus = models.ConnectionStatusUnknown
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = time.Now()

	cp := *a
	m.accounts[a.AccountID] = &cp
	return a, nil
}

func (m *MemoryStore) GetGatewayAccountBySessionID(sessionID string) (*models.GatewayAccount, error) {
	m.accountMu.RLock()
	defer m.accountMu.RUnlock()

	for _, a := range m.accounts {
		if a.SessionID == sessionID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetGatewayAccountByPhone(phone string) (*models.GatewayAccount, error) {
	m.accountMu.RLock()
	defer m.accountMu.RUnlock()

	for _, a := range m.accounts {
		if a.PhoneNumber == phone {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetGatewayAccountsByTenant(tenantID string) ([]*models.GatewayAccount, error) {
	m.accountMu.RLock()
	defer m.accountMu.RUnlock()

	var out []*models.GatewayAccount
	for _, a := range m.accounts {
		if a.TenantID == tenantID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

func (m *MemoryStore) GetAllGatewayAccounts() ([]*models.GatewayAccount, error) {
	m.accountMu.RLock()
	defer m.accountMu.RUnlock()

	out := make([]*models.GatewayAccount, 0, len(m.accounts))
	for _, a := range m.accounts {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

func (m *MemoryStore) UpdateGatewayAccount(a *models.GatewayAccount) error {
	m.accountMu.Lock()
	defer m.accountMu.Unlock()

	if _, ok := m.accounts[a.AccountID]; !ok {
		return ErrNotFound
	}
	a.UpdatedAt = time.Now()
	cp := *a
	m.accounts[a.AccountID] = &cp
	return nil
}

// Staff roster operations

func (m *MemoryStore) CreateStaffMember(s *models.StaffMember) (*models.StaffMember, error) {
	m.staffMu.Lock()
	defer m.staffMu.Unlock()

	s.Phone = strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s.Phone)
	if s.Role == "" {
		s.Role = models.StaffRoleSales
	}
	s.CreatedAt = time.Now()
	s.UpdatedAt = time.Now()

	cp := *s
	m.staff = append(m.staff, &cp)
	return s, nil
}

func (m *MemoryStore) GetStaffByTenant(tenantID string) ([]*models.StaffMember, error) {
	m.staffMu.RLock()
	defer m.staffMu.RUnlock()

	var out []*models.StaffMember
	for _, s := range m.staff {
		if s.TenantID == tenantID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Conversation operations

func (m *MemoryStore) CreateConversation(c *models.Conversation) (*models.Conversation, error) {
	m.convMu.Lock()
	defer m.convMu.Unlock()

	key := convKey(c.TenantID, c.CustomerPhone)
	if existing, ok := m.conversations[key]; ok {
		cp := *existing
		return &cp, nil
	}

	m.convCounter++
	c.ID = m.convCounter
	if c.State == "" {
		c.State = models.ConversationStateNone
	}
	if c.Status == "" {
		c.Status = models.ConversationStatusActive
	}
	if c.LastMessageAt.IsZero() {
		c.LastMessageAt = time.Now()
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = time.Now()

	cp := *c
	m.conversations[key] = &cp
	return c, nil
}

func (m *MemoryStore) GetConversation(tenantID, phone string) (*models.Conversation, error) {
	m.convMu.RLock()
	defer m.convMu.RUnlock()

	c, ok := m.conversations[convKey(tenantID, phone)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) UpdateConversation(c *models.Conversation) error {
	m.convMu.Lock()
	defer m.convMu.Unlock()

	key := convKey(c.TenantID, c.CustomerPhone)
	if _, ok := m.conversations[key]; !ok {
		return ErrNotFound
	}
	c.UpdatedAt = time.Now()
	cp := *c
	m.conversations[key] = &cp
	return nil
}

func (m *MemoryStore) GetStaleUploadConversations(olderThan time.Time) ([]*models.Conversation, error) {
	m.convMu.RLock()
	defer m.convMu.RUnlock()

	var out []*models.Conversation
	for _, c := range m.conversations {
		if c.State == models.ConversationStateUploadVehicle && c.LastMessageAt.Before(olderThan) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) GetIdleActiveConversations(idleSince time.Time) ([]*models.Conversation, error) {
	m.convMu.RLock()
	defer m.convMu.RUnlock()

	var out []*models.Conversation
	for _, c := range m.conversations {
		if c.Status == models.ConversationStatusActive && c.LastMessageAt.Before(idleSince) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Vehicle operations

func (m *MemoryStore) CreateVehicle(v *models.Vehicle) (*models.Vehicle, error) {
	m.vehicleMu.Lock()
	defer m.vehicleMu.Unlock()

	m.vehicleCounter++
	v.ID = m.vehicleCounter
	if v.VehicleID == "" {
		v.VehicleID = models.NewBusinessID("V")
	}
	if v.Status == "" {
		v.Status = models.VehicleStatusAvailable
	}
	v.CreatedAt = time.Now()
	v.UpdatedAt = time.Now()

	cp := *v
	m.vehicles[v.VehicleID] = &cp
	return v, nil
}

func (m *MemoryStore) GetVehicleByID(tenantID, vehicleID string) (*models.Vehicle, error) {
	m.vehicleMu.RLock()
	defer m.vehicleMu.RUnlock()

	v, ok := m.vehicles[vehicleID]
	if !ok || v.TenantID != tenantID {
		return nil, ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *MemoryStore) SearchVehicles(tenantID, status, keyword string, limit int) ([]*models.Vehicle, error) {
	m.vehicleMu.RLock()
	defer m.vehicleMu.RUnlock()

	kw := strings.ToLower(keyword)
	var out []*models.Vehicle
	for _, v := range m.vehicles {
		if v.TenantID != tenantID {
			continue
		}
		if status != "" && v.Status != status {
			continue
		}
		if kw != "" &&
			!strings.Contains(strings.ToLower(v.Make), kw) &&
			!strings.Contains(strings.ToLower(v.Model), kw) {
			continue
		}
		cp := *v
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) UpdateVehicle(v *models.Vehicle) error {
	m.vehicleMu.Lock()
	defer m.vehicleMu.Unlock()

	if _, ok := m.vehicles[v.VehicleID]; !ok {
		return ErrNotFound
	}
	v.UpdatedAt = time.Now()
	cp := *v
	m.vehicles[v.VehicleID] = &cp
	return nil
}

func (m *MemoryStore) CountVehiclesByStatus(tenantID string) (map[string]int64, error) {
	m.vehicleMu.RLock()
	defer m.vehicleMu.RUnlock()

	counts := make(map[string]int64)
	for _, v := range m.vehicles {
		if v.TenantID == tenantID {
			counts[v.Status]++
		}
	}
	return counts, nil
}

// Command audit log

func (m *MemoryStore) AppendCommandLog(e *models.CommandLogEntry) error {
	m.logMu.Lock()
	defer m.logMu.Unlock()

	m.logCounter++
	e.ID = m.logCounter
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt

	cp := *e
	m.commandLog = append(m.commandLog, &cp)
	return nil
}

func (m *MemoryStore) GetCommandLogByTenant(tenantID string, limit int) ([]*models.CommandLogEntry, error) {
	m.logMu.RLock()
	defer m.logMu.RUnlock()

	var out []*models.CommandLogEntry
	for i := len(m.commandLog) - 1; i >= 0; i-- {
		e := m.commandLog[i]
		if e.TenantID != tenantID {
			continue
		}
		cp := *e
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Message log

func (m *MemoryStore) CreateMessageRecord(rec *models.MessageRecord) (*models.MessageRecord, error) {
	m.msgMu.Lock()
	defer m.msgMu.Unlock()

	m.msgCounter++
	rec.ID = m.msgCounter
	if rec.DeliveryStatus == "" {
		rec.DeliveryStatus = models.DeliveryStatusPending
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt

	cp := *rec
	m.messages = append(m.messages, &cp)
	return rec, nil
}

func (m *MemoryStore) UpdateMessageDeliveryStatus(messageID, status string) error {
	m.msgMu.Lock()
	defer m.msgMu.Unlock()

	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].MessageID == messageID {
			m.messages[i].DeliveryStatus = status
			m.messages[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) GetMessagesByConversation(conversationID uint, limit int) ([]*models.MessageRecord, error) {
	m.msgMu.RLock()
	defer m.msgMu.RUnlock()

	var out []*models.MessageRecord
	for i := len(m.messages) - 1; i >= 0; i-- {
		rec := m.messages[i]
		if rec.ConversationID != conversationID {
			continue
		}
		cp := *rec
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) HasInboundMessage(tenantID, messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}
	m.msgMu.RLock()
	defer m.msgMu.RUnlock()

	for _, rec := range m.messages {
		if rec.TenantID == tenantID &&
			rec.MessageID == messageID &&
			rec.Direction == models.MessageDirectionInbound {
			return true, nil
		}
	}
	return false, nil
}
