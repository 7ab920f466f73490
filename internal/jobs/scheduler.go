package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/autolumiku/whatsapp-backend/internal/config"
	"github.com/autolumiku/whatsapp-backend/internal/events"
	"github.com/autolumiku/whatsapp-backend/internal/gateway"
	"github.com/autolumiku/whatsapp-backend/internal/models"
	"github.com/autolumiku/whatsapp-backend/internal/storage"
)

// Scheduler runs the recurring maintenance jobs: gateway status sync,
// stale upload sweep and idle conversation close.
type Scheduler struct {
	store   storage.Store
	gateway gateway.Client
	bus     *events.Bus
	sched   *cron.Cron
}

// NewScheduler creates the job scheduler. Jobs do not run until Start.
func NewScheduler(store storage.Store, gw gateway.Client, bus *events.Bus) *Scheduler {
	return &Scheduler{
		store:   store,
		gateway: gw,
		bus:     bus,
	}
}

// Start registers the cron entries and begins running them.
func (s *Scheduler) Start() error {
	s.sched = cron.New()

	specs := []struct {
		spec string
		name string
		fn   func()
	}{
		{config.Getenv("JOB_STATUS_SYNC_SPEC", "@every 5m"), "gateway status sync", s.SyncGatewayStatus},
		{config.Getenv("JOB_STALE_UPLOAD_SPEC", "@every 1h"), "stale upload sweep", s.SweepStaleUploads},
		{config.Getenv("JOB_IDLE_CLOSE_SPEC", "@daily"), "idle conversation close", s.CloseIdleConversations},
	}

	for _, entry := range specs {
		entry := entry
		_, err := s.sched.AddFunc(entry.spec, func() {
			defer func() {
				if r := recover(); r != nil {
					zap.L().Error("job panicked",
						zap.String("job", entry.name),
						zap.Any("panic", r))
				}
			}()
			entry.fn()
		})
		if err != nil {
			return err
		}
		zap.L().Info("job scheduled",
			zap.String("job", entry.name),
			zap.String("spec", entry.spec))
	}

	s.sched.Start()
	return nil
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	if s.sched == nil {
		return
	}
	<-s.sched.Stop().Done()
	zap.L().Info("job scheduler stopped")
}

// SyncGatewayStatus reconciles stored connection state against the live
// session listing so dashboards do not depend on every webhook arriving.
func (s *Scheduler) SyncGatewayStatus() {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	sessions, err := s.gateway.ListSessions(ctx)
	if err != nil {
		zap.L().Warn("status sync: live listing unavailable", zap.Error(err))
		return
	}
	bySession := make(map[string]gateway.Session, len(sessions))
	for _, live := range sessions {
		bySession[live.ID] = live
	}

	accounts, err := s.store.GetAllGatewayAccounts()
	if err != nil {
		zap.L().Error("status sync: account listing failed", zap.Error(err))
		return
	}

	updated := 0
	for _, account := range accounts {
		live, found := bySession[account.SessionID]

		status := models.ConnectionStatusDisconnected
		if found && live.IsConnected {
			status = models.ConnectionStatusConnected
		}
		if !found && account.ConnectionStatus == models.ConnectionStatusUnknown {
			// Never seen by the gateway; leave it for the reconciler.
			continue
		}
		if status == account.ConnectionStatus {
			continue
		}

		account.ConnectionStatus = status
		if status == models.ConnectionStatusConnected {
			ts, terr := live.ConnectedTime()
			if terr != nil || ts.IsZero() {
				ts = time.Now().UTC()
			}
			account.LastConnectedAt = &ts
		}
		if err := s.store.UpdateGatewayAccount(account); err != nil {
			zap.L().Error("status sync: update failed",
				zap.String("accountId", account.AccountID),
				zap.Error(err))
			continue
		}
		s.publishStatus(account, status)
		updated++
	}

	if updated > 0 {
		zap.L().Info("status sync applied changes", zap.Int("accounts", updated))
	}
}

// SweepStaleUploads expires upload flows that have sat untouched past the
// TTL. The draft is discarded and the staff member is told to start over.
func (s *Scheduler) SweepStaleUploads() {
	cutoff := time.Now().Add(-config.UploadStateTTL())
	stale, err := s.store.GetStaleUploadConversations(cutoff)
	if err != nil {
		zap.L().Error("stale sweep: listing failed", zap.Error(err))
		return
	}

	for _, conv := range stale {
		conv.ResetState()
		if err := s.store.UpdateConversation(conv); err != nil {
			zap.L().Error("stale sweep: reset failed",
				zap.String("tenantId", conv.TenantID),
				zap.String("phone", conv.CustomerPhone),
				zap.Error(err))
			continue
		}
		zap.L().Info("stale upload expired",
			zap.String("tenantId", conv.TenantID),
			zap.String("phone", conv.CustomerPhone))
		s.notifyExpired(conv)
	}
}

// notifyExpired tells the staff member their upload draft was dropped.
// Best effort; the reset already happened.
func (s *Scheduler) notifyExpired(conv *models.Conversation) {
	accounts, err := s.store.GetGatewayAccountsByTenant(conv.TenantID)
	if err != nil || len(accounts) == 0 {
		return
	}
	var account *models.GatewayAccount
	for _, a := range accounts {
		if a.IsConnected() {
			account = a
			break
		}
	}
	if account == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	text := "⏰ Sesi upload kendaraan Anda sudah kedaluwarsa. Kirim /upload untuk mulai lagi."
	if _, err := s.gateway.SendText(ctx, account.SessionID, conv.CustomerPhone, text); err != nil {
		zap.L().Warn("stale sweep: notify failed",
			zap.String("phone", conv.CustomerPhone),
			zap.Error(err))
	}
}

// CloseIdleConversations marks conversations without recent messages as
// closed so tenant dashboards show only live threads.
func (s *Scheduler) CloseIdleConversations() {
	idleSince := time.Now().Add(-config.IdleCloseAfter())
	idle, err := s.store.GetIdleActiveConversations(idleSince)
	if err != nil {
		zap.L().Error("idle close: listing failed", zap.Error(err))
		return
	}

	closed := 0
	for _, conv := range idle {
		// An in-progress upload is not idle noise; the sweep job owns it.
		if conv.State == models.ConversationStateUploadVehicle {
			continue
		}
		conv.Status = models.ConversationStatusClosed
		if err := s.store.UpdateConversation(conv); err != nil {
			zap.L().Error("idle close: update failed",
				zap.String("tenantId", conv.TenantID),
				zap.String("phone", conv.CustomerPhone),
				zap.Error(err))
			continue
		}
		closed++
	}

	if closed > 0 {
		zap.L().Info("idle conversations closed", zap.Int("count", closed))
	}
}

func (s *Scheduler) publishStatus(account *models.GatewayAccount, status string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.TopicAccountStatus, account.TenantID, map[string]interface{}{
		"accountId": account.AccountID,
		"sessionId": account.SessionID,
		"status":    status,
	})
}
