package events

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/guonaihong/gout"
	"github.com/guonaihong/gout/filter"
	jsoniter "github.com/json-iterator/go"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/autolumiku/whatsapp-backend/internal/storage"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Forwarder delivers domain events to each tenant's configured webhook URL.
// Deliveries run on a bounded worker pool so a slow receiver never blocks
// the message pipeline.
type Forwarder struct {
	store storage.Store
	pool  *ants.Pool
}

func NewForwarder(store storage.Store, workers int) (*Forwarder, error) {
	pool, err := ants.NewPool(workers, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}
	return &Forwarder{store: store, pool: pool}, nil
}

// Register subscribes the forwarder to every domain topic on the bus.
func (f *Forwarder) Register(bus *Bus) error {
	return bus.SubscribeAll(f.enqueue)
}

// Release drains the worker pool. Call on shutdown.
func (f *Forwarder) Release() {
	f.pool.Release()
}

func (f *Forwarder) enqueue(evt Event) {
	if err := f.pool.Submit(func() { f.deliver(evt) }); err != nil {
		zap.L().Warn("webhook forwarder pool saturated, dropping event",
			zap.String("event", evt.Name),
			zap.String("tenantId", evt.TenantID),
			zap.Error(err))
	}
}

func (f *Forwarder) deliver(evt Event) {
	tenant, err := f.store.GetTenantByID(evt.TenantID)
	if err != nil || tenant.WebhookURL == "" {
		return
	}

	body, err := json.Marshal(evt)
	if err != nil {
		zap.L().Error("webhook event marshal failed", zap.Error(err))
		return
	}

	headers := gout.H{"Content-Type": "application/json"}
	if tenant.WebhookSecret != "" {
		headers["X-Webhook-Signature"] = Sign(tenant.WebhookSecret, body)
	}

	var code int
	err = gout.POST(tenant.WebhookURL).
		SetHeader(headers).
		SetTimeout(10 * time.Second).
		SetBody(body).
		Code(&code).
		F().Retry().Attempt(3).WaitTime(500 * time.Millisecond).MaxWaitTime(5 * time.Second).
		Func(func(c *gout.Context) error {
			if c.Error != nil || c.Code >= http.StatusInternalServerError {
				return filter.ErrRetry
			}
			return nil
		}).Do()
	if err != nil {
		zap.L().Warn("webhook delivery failed",
			zap.String("event", evt.Name),
			zap.String("tenantId", evt.TenantID),
			zap.String("url", tenant.WebhookURL),
			zap.Error(err))
		return
	}
	if code >= http.StatusMultipleChoices {
		zap.L().Warn("webhook receiver rejected event",
			zap.String("event", evt.Name),
			zap.String("tenantId", evt.TenantID),
			zap.Int("status", code))
	}
}

// Sign computes the hex HMAC-SHA256 of body under the shared secret. The
// same scheme authenticates inbound gateway webhooks.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
