package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/autolumiku/whatsapp-backend/internal/gateway"
	"github.com/autolumiku/whatsapp-backend/internal/models"
	"github.com/autolumiku/whatsapp-backend/internal/storage"
)

// AdminHandler handles tenant provisioning and back-office reads
type AdminHandler struct {
	store   storage.Store
	gateway gateway.Client
}

// NewAdminHandler creates a new admin handler. gw may be nil; account
// listings then skip the live-session annotation.
func NewAdminHandler(store storage.Store, gw gateway.Client) *AdminHandler {
	return &AdminHandler{
		store:   store,
		gateway: gw,
	}
}

// CreateTenant registers a new dealership
func (h *AdminHandler) CreateTenant(c *fiber.Ctx) error {
	var req struct {
		Name             string `json:"name"`
		Slug             string `json:"slug"`
		CountryCode      string `json:"country_code"`
		AIName           string `json:"ai_name"`
		GreetingTemplate string `json:"greeting_template"`
		WebhookURL       string `json:"webhook_url"`
		WebhookSecret    string `json:"webhook_secret"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Name is required",
		})
	}

	tenant, err := h.store.CreateTenant(&models.Tenant{
		Name:             req.Name,
		Slug:             req.Slug,
		CountryCode:      req.CountryCode,
		AIName:           req.AIName,
		GreetingTemplate: req.GreetingTemplate,
		WebhookURL:       req.WebhookURL,
		WebhookSecret:    req.WebhookSecret,
		IsActive:         true,
	})
	if err != nil {
		zap.L().Error("tenant create failed", zap.String("name", req.Name), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create tenant",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Tenant created successfully",
		"tenant":  tenant,
	})
}

// GetTenants lists every dealership on the platform
func (h *AdminHandler) GetTenants(c *fiber.Ctx) error {
	tenants, err := h.store.GetAllTenants()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch tenants",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"tenants": tenants,
		"count":   len(tenants),
	})
}

// GetTenant retrieves one tenant by business id, falling back to slug
func (h *AdminHandler) GetTenant(c *fiber.Ctx) error {
	ref := c.Params("tenantID")

	tenant, err := h.store.GetTenantByID(ref)
	if errors.Is(err, storage.ErrNotFound) {
		tenant, err = h.store.GetTenantBySlug(ref)
	}
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Tenant not found",
		})
	}

	return c.JSON(tenant)
}

// UpdateTenant applies partial changes to a tenant's chat behaviour and
// forwarding settings
func (h *AdminHandler) UpdateTenant(c *fiber.Ctx) error {
	var req struct {
		Name             *string `json:"name"`
		CountryCode      *string `json:"country_code"`
		AIName           *string `json:"ai_name"`
		GreetingTemplate *string `json:"greeting_template"`
		WebhookURL       *string `json:"webhook_url"`
		WebhookSecret    *string `json:"webhook_secret"`
		IsActive         *bool   `json:"is_active"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	tenant, err := h.store.GetTenantByID(c.Params("tenantID"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Tenant not found",
		})
	}

	if req.Name != nil {
		tenant.Name = *req.Name
	}
	if req.CountryCode != nil {
		tenant.CountryCode = *req.CountryCode
	}
	if req.AIName != nil {
		tenant.AIName = *req.AIName
	}
	if req.GreetingTemplate != nil {
		tenant.GreetingTemplate = *req.GreetingTemplate
	}
	if req.WebhookURL != nil {
		tenant.WebhookURL = *req.WebhookURL
	}
	if req.WebhookSecret != nil {
		tenant.WebhookSecret = *req.WebhookSecret
	}
	if req.IsActive != nil {
		tenant.IsActive = *req.IsActive
	}

	if err := h.store.UpdateTenant(tenant); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update tenant",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"tenant":  tenant,
	})
}

// AddStaff adds a phone to the tenant's command roster
func (h *AdminHandler) AddStaff(c *fiber.Ctx) error {
	tenantID := c.Params("tenantID")

	var req struct {
		Phone string `json:"phone"`
		Name  string `json:"name"`
		Role  string `json:"role"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Phone == "" || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Phone and name are required",
		})
	}
	if req.Role != "" && req.Role != models.StaffRoleOwner &&
		req.Role != models.StaffRoleAdmin && req.Role != models.StaffRoleSales {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Role must be 'owner', 'admin' or 'sales'",
		})
	}

	if _, err := h.store.GetTenantByID(tenantID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Tenant not found",
		})
	}

	staff, err := h.store.CreateStaffMember(&models.StaffMember{
		TenantID: tenantID,
		Phone:    req.Phone,
		Name:     req.Name,
		Role:     req.Role,
		IsActive: true,
	})
	if err != nil {
		zap.L().Error("staff create failed",
			zap.String("tenantId", tenantID),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to add staff member",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Staff member added successfully",
		"staff":   staff,
	})
}

// GetStaff lists the tenant's roster
func (h *AdminHandler) GetStaff(c *fiber.Ctx) error {
	staff, err := h.store.GetStaffByTenant(c.Params("tenantID"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch staff",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"staff":   staff,
		"count":   len(staff),
	})
}

// AddGatewayAccount binds a gateway session to the tenant
func (h *AdminHandler) AddGatewayAccount(c *fiber.Ctx) error {
	tenantID := c.Params("tenantID")

	var req struct {
		SessionID   string `json:"session_id"`
		PhoneNumber string `json:"phone_number"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.SessionID == "" && req.PhoneNumber == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Session ID or phone number is required",
		})
	}

	if _, err := h.store.GetTenantByID(tenantID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Tenant not found",
		})
	}

	account, err := h.store.CreateGatewayAccount(&models.GatewayAccount{
		TenantID:    tenantID,
		SessionID:   req.SessionID,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		zap.L().Error("gateway account create failed",
			zap.String("tenantId", tenantID),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to add gateway account",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Gateway account added successfully",
		"account": account,
	})
}

// GetGatewayAccounts lists the tenant's sessions. When the gateway is
// reachable, each stored row is annotated with the live listing so the
// back-office sees session drift before the sync job persists it.
func (h *AdminHandler) GetGatewayAccounts(c *fiber.Ctx) error {
	accounts, err := h.store.GetGatewayAccountsByTenant(c.Params("tenantID"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch gateway accounts",
		})
	}

	type accountView struct {
		*models.GatewayAccount
		LiveConnected *bool  `json:"live_connected,omitempty"`
		LivePhone     string `json:"live_phone,omitempty"`
	}

	views := make([]accountView, len(accounts))
	for i, a := range accounts {
		views[i] = accountView{GatewayAccount: a}
	}

	if h.gateway != nil {
		ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
		defer cancel()
		if sessions, err := h.gateway.ListSessions(ctx); err == nil {
			bySession := make(map[string]gateway.Session, len(sessions))
			for _, s := range sessions {
				bySession[s.ID] = s
			}
			for i := range views {
				if s, ok := bySession[views[i].SessionID]; ok {
					connected := s.IsConnected
					views[i].LiveConnected = &connected
					views[i].LivePhone = s.Phone
				}
			}
		} else {
			zap.L().Debug("live session listing unavailable", zap.Error(err))
		}
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"accounts": views,
		"count":    len(views),
	})
}

// GetVehicles searches the tenant's inventory
func (h *AdminHandler) GetVehicles(c *fiber.Ctx) error {
	status := c.Query("status")
	if status != "" && !models.IsValidVehicleStatus(status) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Status must be 'available', 'booked' or 'sold'",
		})
	}
	limit := cast.ToInt(c.Query("limit"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	vehicles, err := h.store.SearchVehicles(c.Params("tenantID"), status, c.Query("q"), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch vehicles",
		})
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"vehicles": vehicles,
		"count":    len(vehicles),
	})
}

// GetVehicle retrieves one vehicle by business id
func (h *AdminHandler) GetVehicle(c *fiber.Ctx) error {
	vehicle, err := h.store.GetVehicleByID(c.Params("tenantID"), c.Params("vehicleID"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Vehicle not found",
		})
	}

	return c.JSON(vehicle)
}

// GetCommandLog returns the tenant's staff-command audit trail, newest
// first
func (h *AdminHandler) GetCommandLog(c *fiber.Ctx) error {
	limit := cast.ToInt(c.Query("limit"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	entries, err := h.store.GetCommandLogByTenant(c.Params("tenantID"), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch command log",
		})
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"commands": entries,
		"count":    len(entries),
	})
}

// GetConversation retrieves the conversation state for one phone
func (h *AdminHandler) GetConversation(c *fiber.Ctx) error {
	conv, err := h.store.GetConversation(c.Params("tenantID"), c.Params("phone"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Conversation not found",
		})
	}

	return c.JSON(conv)
}

// GetConversationMessages returns the recent transcript for one phone
func (h *AdminHandler) GetConversationMessages(c *fiber.Ctx) error {
	conv, err := h.store.GetConversation(c.Params("tenantID"), c.Params("phone"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Conversation not found",
		})
	}

	limit := cast.ToInt(c.Query("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	messages, err := h.store.GetMessagesByConversation(conv.ID, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch messages",
		})
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"messages": messages,
		"count":    len(messages),
	})
}

// GetInventoryStats returns per-status vehicle counts for one tenant
func (h *AdminHandler) GetInventoryStats(c *fiber.Ctx) error {
	counts, err := h.store.CountVehiclesByStatus(c.Params("tenantID"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch inventory stats",
		})
	}

	var total int64
	for _, n := range counts {
		total += n
	}

	return c.JSON(fiber.Map{
		"success": true,
		"stats": fiber.Map{
			"total":     total,
			"by_status": counts,
		},
	})
}

// GetPlatformOverview gets platform-wide statistics
func (h *AdminHandler) GetPlatformOverview(c *fiber.Ctx) error {
	tenants, _ := h.store.GetAllTenants()
	accounts, _ := h.store.GetAllGatewayAccounts()

	activeTenants := 0
	for _, t := range tenants {
		if t.IsActive {
			activeTenants++
		}
	}

	connectedAccounts := 0
	for _, a := range accounts {
		if a.IsConnected() {
			connectedAccounts++
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"overview": fiber.Map{
			"total_tenants":      len(tenants),
			"active_tenants":     activeTenants,
			"gateway_accounts":   len(accounts),
			"connected_accounts": connectedAccounts,
			"platform_status":    "operational",
			"last_updated":       time.Now(),
		},
	})
}
