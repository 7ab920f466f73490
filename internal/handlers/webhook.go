package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/autolumiku/whatsapp-backend/internal/events"
	"github.com/autolumiku/whatsapp-backend/internal/gateway"
	"github.com/autolumiku/whatsapp-backend/internal/models"
	"github.com/autolumiku/whatsapp-backend/internal/services"
	"github.com/autolumiku/whatsapp-backend/internal/storage"
)

const maxWebhookBody = 1 << 20

// WebhookHandler receives gateway callbacks and routes them into the
// message pipeline.
type WebhookHandler struct {
	store        storage.Store
	reconciler   *gateway.Reconciler
	orchestrator *services.Orchestrator
	bus          *events.Bus
}

func NewWebhookHandler(store storage.Store, reconciler *gateway.Reconciler, orchestrator *services.Orchestrator, bus *events.Bus) *WebhookHandler {
	return &WebhookHandler{
		store:        store,
		reconciler:   reconciler,
		orchestrator: orchestrator,
		bus:          bus,
	}
}

// HandleGatewayEvent processes one gateway callback. The gateway retries
// on non-2xx, so every understood event is acknowledged even when it
// carries nothing we can use; only malformed bodies, unknown sessions and
// internal failures are surfaced as errors.
func (h *WebhookHandler) HandleGatewayEvent(c *fiber.Ctx) error {
	if len(c.Body()) > maxWebhookBody {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": "payload too large",
		})
	}

	env, err := ParseWebhookEnvelope(c.Body())
	if err != nil {
		zap.L().Warn("unparseable webhook body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid webhook payload",
		})
	}
	if env.ClientID == "" || env.Event == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing clientId or event",
		})
	}

	// Every log line for this delivery carries the same correlation id.
	log := zap.L().With(
		zap.String("eventId", uuid.NewString()),
		zap.String("event", env.Event),
		zap.String("clientId", env.ClientID),
	)

	account, err := h.resolveAccount(c, env.ClientID)
	if err != nil {
		if errors.Is(err, gateway.ErrNoSession) {
			log.Warn("webhook for unknown session")
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "unknown client",
			})
		}
		log.Error("session reconciliation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "reconciliation failed",
		})
	}
	log = log.With(zap.String("tenantId", account.TenantID))

	switch env.Event {
	case "message":
		if err := h.handleMessage(c, account, env, log); err != nil {
			log.Error("message processing failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "message processing failed",
			})
		}
	case "status":
		h.handleStatus(account, env, log)
	case "qr":
		h.updateConnection(account, models.ConnectionStatusQRReady, env, log)
	case "connected":
		h.updateConnection(account, models.ConnectionStatusConnected, env, log)
	case "disconnected":
		h.updateConnection(account, models.ConnectionStatusDisconnected, env, log)
	default:
		log.Debug("ignoring unknown webhook event")
	}

	return c.JSON(fiber.Map{"success": true, "received": true})
}

// resolveAccount tries the stored session mapping first and falls back to
// the reconciler when the declared id is unknown.
func (h *WebhookHandler) resolveAccount(c *fiber.Ctx, clientID string) (*models.GatewayAccount, error) {
	account, err := h.store.GetGatewayAccountBySessionID(clientID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	account, err = h.reconciler.Resolve(c.Context(), c.Params("tenantID"), clientID)
	if err != nil {
		return nil, err
	}
	// The repair is already persisted; re-read so the rest of the event
	// runs against the stored row.
	if fresh, rerr := h.store.GetGatewayAccountBySessionID(account.SessionID); rerr == nil {
		account = fresh
	}
	return account, nil
}

func (h *WebhookHandler) handleMessage(c *fiber.Ctx, account *models.GatewayAccount, env *WebhookEnvelope, log *zap.Logger) error {
	if env.FromMe() {
		return nil
	}
	msg := env.InboundMessage()
	if msg.From == "" {
		log.Debug("message event without sender")
		return nil
	}
	return h.orchestrator.HandleMessage(c.Context(), account, msg)
}

func (h *WebhookHandler) handleStatus(account *models.GatewayAccount, env *WebhookEnvelope, log *zap.Logger) {
	messageID, status := env.StatusUpdate()
	if messageID == "" || status == "" {
		return
	}
	if err := h.store.UpdateMessageDeliveryStatus(messageID, status); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warn("delivery status update failed",
				zap.String("messageId", messageID),
				zap.Error(err))
		}
		return
	}
	h.publishAccountEvent(account, "status", fiber.Map{
		"messageId": messageID,
		"status":    status,
	})
}

func (h *WebhookHandler) updateConnection(account *models.GatewayAccount, status string, env *WebhookEnvelope, log *zap.Logger) {
	account.ConnectionStatus = status
	if status == models.ConnectionStatusConnected {
		now := time.Now().UTC()
		account.LastConnectedAt = &now
		if phone := phoneDigits(env.LivePhone()); phone != "" && phone != account.PhoneNumber {
			log.Info("gateway reported new account phone",
				zap.String("accountId", account.AccountID),
				zap.String("old", account.PhoneNumber),
				zap.String("new", phone))
			account.PhoneNumber = phone
		}
	}
	if err := h.store.UpdateGatewayAccount(account); err != nil {
		log.Error("connection status update failed",
			zap.String("accountId", account.AccountID),
			zap.Error(err))
		return
	}
	h.publishAccountEvent(account, status, nil)
}

func (h *WebhookHandler) publishAccountEvent(account *models.GatewayAccount, status string, extra fiber.Map) {
	if h.bus == nil {
		return
	}
	data := fiber.Map{
		"accountId": account.AccountID,
		"sessionId": account.SessionID,
		"status":    status,
	}
	for k, v := range extra {
		data[k] = v
	}
	h.bus.Publish(events.TopicAccountStatus, account.TenantID, data)
}

// SimulatedMessage drives the pipeline without a live gateway. Used from
// the admin API during tenant onboarding.
type SimulatedMessage struct {
	SessionID string `json:"sessionId"`
	From      string `json:"from"`
	Message   string `json:"message"`
	MediaURL  string `json:"mediaUrl"`
}

// HandleSimulateMessage feeds a hand-written message through the same
// path a gateway callback takes and returns the replies that would have
// been sent.
func (h *WebhookHandler) HandleSimulateMessage(c *fiber.Ctx) error {
	var payload SimulatedMessage
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid simulation payload",
		})
	}
	if payload.From == "" || (payload.Message == "" && payload.MediaURL == "") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "from and message are required",
		})
	}

	account, err := h.resolveAccount(c, payload.SessionID)
	if err != nil {
		if errors.Is(err, gateway.ErrNoSession) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "no gateway account for tenant",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "reconciliation failed",
		})
	}

	msg := services.InboundMessage{
		MessageID: "SIM-" + uuid.NewString(),
		From:      payload.From,
		Text:      payload.Message,
		MediaURL:  payload.MediaURL,
		Timestamp: time.Now(),
	}
	if payload.MediaURL != "" {
		msg.MediaType = "image"
	}
	if err := h.orchestrator.HandleMessage(c.Context(), account, msg); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"success": true})
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
