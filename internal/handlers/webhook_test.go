package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autolumiku/whatsapp-backend/internal/events"
	"github.com/autolumiku/whatsapp-backend/internal/gateway"
	"github.com/autolumiku/whatsapp-backend/internal/identity"
	"github.com/autolumiku/whatsapp-backend/internal/models"
	"github.com/autolumiku/whatsapp-backend/internal/services"
	"github.com/autolumiku/whatsapp-backend/internal/storage"
)

// stubGateway implements gateway.Client with canned sessions and a record
// of every send.
type stubGateway struct {
	mu       sync.Mutex
	sessions []gateway.Session
	sent     []string // "phone|text"
	counter  int
}

func (g *stubGateway) ListSessions(_ context.Context) ([]gateway.Session, error) {
	return g.sessions, nil
}

func (g *stubGateway) SendText(_ context.Context, _ string, toPhone, text string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	g.sent = append(g.sent, toPhone+"|"+text)
	return fmt.Sprintf("OUT%d", g.counter), nil
}

func (g *stubGateway) SendImage(ctx context.Context, sessionID, toPhone, url, caption string) (string, error) {
	return g.SendText(ctx, sessionID, toPhone, caption)
}

func (g *stubGateway) sentCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}

type webhookFixture struct {
	app    *fiber.App
	store  *storage.MemoryStore
	gw     *stubGateway
	tenant *models.Tenant
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()

	store := storage.NewMemoryStore()
	tenant, err := store.CreateTenant(&models.Tenant{Name: "Lumiku Motor"})
	require.NoError(t, err)

	_, err = store.CreateStaffMember(&models.StaffMember{
		TenantID: tenant.TenantID,
		Phone:    "08123456789",
		Name:     "Budi",
		Role:     models.StaffRoleOwner,
	})
	require.NoError(t, err)

	_, err = store.CreateGatewayAccount(&models.GatewayAccount{
		TenantID:    tenant.TenantID,
		SessionID:   "sess-1",
		PhoneNumber: "628111222333",
	})
	require.NoError(t, err)

	gw := &stubGateway{}
	bus := events.NewBus()
	orch := services.NewOrchestrator(store, gw, bus, nil, nil, identity.DefaultRuleTable())
	handler := NewWebhookHandler(store, gateway.NewReconciler(store, gw, false), orch, bus)

	app := fiber.New()
	app.Post("/api/webhook/whatsapp", handler.HandleGatewayEvent)
	app.Post("/api/admin/tenants/:tenantID/simulate", handler.HandleSimulateMessage)

	return &webhookFixture{app: app, store: store, gw: gw, tenant: tenant}
}

func (f *webhookFixture) post(t *testing.T, path string, payload interface{}) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (f *webhookFixture) postEvent(t *testing.T, payload interface{}) *http.Response {
	return f.post(t, "/api/webhook/whatsapp", payload)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func TestGatewayEventAcksCustomerMessage(t *testing.T) {
	f := newWebhookFixture(t)

	resp := f.postEvent(t, map[string]interface{}{
		"clientId":  "sess-1",
		"event":     "message",
		"timestamp": time.Now().Unix(),
		"data": map[string]interface{}{
			"id":   "MSG1",
			"from": "628987654321@s.whatsapp.net",
			"text": "halo",
		},
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["received"])

	require.Equal(t, 1, f.gw.sentCount())
	conv, err := f.store.GetConversation(f.tenant.TenantID, "628987654321")
	require.NoError(t, err)
	assert.False(t, conv.IsStaff)
}

func TestGatewayEventPayloadShapes(t *testing.T) {
	shapes := []struct {
		name string
		data map[string]interface{}
	}{
		{
			name: "nested key and message objects",
			data: map[string]interface{}{
				"key": map[string]interface{}{
					"remoteJid": "628987654321@s.whatsapp.net",
					"id":        "B1",
				},
				"message":  map[string]interface{}{"conversation": "halo"},
				"pushName": "Sari",
			},
		},
		{
			name: "flat fields",
			data: map[string]interface{}{
				"id":   "F1",
				"from": "628987654321",
				"text": "halo",
			},
		},
		{
			name: "legacy sender and body",
			data: map[string]interface{}{
				"msgId":  "V1",
				"sender": "628987654321@c.us",
				"body":   "halo",
			},
		},
	}

	for _, tc := range shapes {
		t.Run(tc.name, func(t *testing.T) {
			f := newWebhookFixture(t)
			resp := f.postEvent(t, map[string]interface{}{
				"clientId": "sess-1",
				"event":    "message",
				"data":     tc.data,
			})

			require.Equal(t, http.StatusOK, resp.StatusCode)
			require.Equal(t, 1, f.gw.sentCount(), "every shape should produce one reply")

			_, err := f.store.GetConversation(f.tenant.TenantID, "628987654321")
			assert.NoError(t, err, "every shape should resolve to the same conversation key")
		})
	}
}

func TestGatewayEventUnknownClientReturns404(t *testing.T) {
	f := newWebhookFixture(t)

	// A second account removes the single-account shortcut; with no live
	// session overlapping the declared id, reconciliation must fail.
	other, err := f.store.CreateTenant(&models.Tenant{Name: "Mobil Dua"})
	require.NoError(t, err)
	_, err = f.store.CreateGatewayAccount(&models.GatewayAccount{
		TenantID:  other.TenantID,
		SessionID: "sess-2",
	})
	require.NoError(t, err)

	resp := f.postEvent(t, map[string]interface{}{
		"clientId": "ghost",
		"event":    "message",
		"data":     map[string]interface{}{"from": "628987654321", "text": "halo"},
	})

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "unknown client", body["error"])
	assert.Zero(t, f.gw.sentCount())
}

func TestGatewayEventSelfHealsSessionDrift(t *testing.T) {
	f := newWebhookFixture(t)
	f.gw.sessions = []gateway.Session{
		{ID: "sess-new", Phone: "+62 811-1222-333", IsConnected: true},
	}

	resp := f.postEvent(t, map[string]interface{}{
		"clientId": "sess-new",
		"event":    "message",
		"data":     map[string]interface{}{"id": "D1", "from": "628987654321", "text": "halo"},
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, f.gw.sentCount())

	healed, err := f.store.GetGatewayAccountBySessionID("sess-new")
	require.NoError(t, err, "stored session id should be overwritten with the live one")
	assert.Equal(t, "628111222333", healed.PhoneNumber)
}

func TestGatewayEventStatusUpdatesDelivery(t *testing.T) {
	f := newWebhookFixture(t)

	conv, err := f.store.CreateConversation(&models.Conversation{
		TenantID:      f.tenant.TenantID,
		CustomerPhone: "628987654321",
	})
	require.NoError(t, err)
	_, err = f.store.CreateMessageRecord(&models.MessageRecord{
		TenantID:       f.tenant.TenantID,
		ConversationID: conv.ID,
		MessageID:      "OUT1",
		Direction:      models.MessageDirectionOutbound,
		SenderType:     models.SenderTypeAI,
		Body:           "halo",
		DeliveryStatus: models.DeliveryStatusSent,
	})
	require.NoError(t, err)

	resp := f.postEvent(t, map[string]interface{}{
		"clientId": "sess-1",
		"event":    "status",
		"data":     map[string]interface{}{"id": "OUT1", "ack": 3},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	messages, err := f.store.GetMessagesByConversation(conv.ID, 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, models.DeliveryStatusDelivered, messages[0].DeliveryStatus)
}

func TestGatewayEventConnectionLifecycle(t *testing.T) {
	f := newWebhookFixture(t)

	steps := []struct {
		event      string
		data       map[string]interface{}
		wantStatus string
	}{
		{"qr", nil, models.ConnectionStatusQRReady},
		{"connected", map[string]interface{}{"phone": "+62 811-1222-333"}, models.ConnectionStatusConnected},
		{"disconnected", nil, models.ConnectionStatusDisconnected},
	}

	for _, step := range steps {
		resp := f.postEvent(t, map[string]interface{}{
			"clientId": "sess-1",
			"event":    step.event,
			"data":     step.data,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		account, err := f.store.GetGatewayAccountBySessionID("sess-1")
		require.NoError(t, err)
		assert.Equal(t, step.wantStatus, account.ConnectionStatus, "after %s event", step.event)
		if step.event == "connected" {
			require.NotNil(t, account.LastConnectedAt)
		}
	}
}

func TestGatewayEventMalformedBody(t *testing.T) {
	f := newWebhookFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/webhook/whatsapp", bytes.NewReader([]byte("not json")))
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGatewayEventMissingClientID(t *testing.T) {
	f := newWebhookFixture(t)

	resp := f.postEvent(t, map[string]interface{}{
		"event": "message",
		"data":  map[string]interface{}{"from": "628987654321", "text": "halo"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGatewayEventIgnoresOwnEcho(t *testing.T) {
	f := newWebhookFixture(t)

	resp := f.postEvent(t, map[string]interface{}{
		"clientId": "sess-1",
		"event":    "message",
		"data": map[string]interface{}{
			"id":     "E1",
			"from":   "628987654321@s.whatsapp.net",
			"text":   "halo",
			"fromMe": true,
		},
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, f.gw.sentCount())
	_, err := f.store.GetConversation(f.tenant.TenantID, "628987654321")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGatewayEventUnknownTypeStillAcked(t *testing.T) {
	f := newWebhookFixture(t)

	resp := f.postEvent(t, map[string]interface{}{
		"clientId": "sess-1",
		"event":    "presence",
		"data":     map[string]interface{}{"from": "628987654321"},
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["received"])
}

func TestSimulateMessageDrivesPipeline(t *testing.T) {
	f := newWebhookFixture(t)

	resp := f.post(t, "/api/admin/tenants/"+f.tenant.TenantID+"/simulate", map[string]interface{}{
		"from":    "628987654321",
		"message": "halo",
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, f.gw.sentCount())
}

func TestSimulateMessageRequiresContent(t *testing.T) {
	f := newWebhookFixture(t)

	resp := f.post(t, "/api/admin/tenants/"+f.tenant.TenantID+"/simulate", map[string]interface{}{
		"from": "628987654321",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
