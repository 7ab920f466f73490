package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/autolumiku/whatsapp-backend/internal/config"
	"github.com/autolumiku/whatsapp-backend/internal/events"
	"github.com/autolumiku/whatsapp-backend/internal/gateway"
	"github.com/autolumiku/whatsapp-backend/internal/identity"
	"github.com/autolumiku/whatsapp-backend/internal/models"
	"github.com/autolumiku/whatsapp-backend/internal/storage"
)

// InboundMessage is the normalized form of one gateway "message" event.
type InboundMessage struct {
	MessageID string
	From      string   // raw sender reference as delivered
	AuxPhones []string // auxiliary phone hints found elsewhere in the payload
	Text      string
	MediaURL  string
	MediaType string
	PushName  string
	Timestamp time.Time
}

// Orchestrator drives one message turn end to end: resolve the sender,
// serialize per conversation, classify, route to the staff command path or
// the customer path, persist, then reply. Every turn runs under the
// processing deadline; when it expires the turn is abandoned with the
// conversation still in its prior state.
type Orchestrator struct {
	store      storage.Store
	gateway    gateway.Client
	bus        *events.Bus
	locks      *ConversationLocks
	gate       *AuthGate
	parser     *CommandParser
	classifier IntentClassifier
	executor   *Executor
	rules      identity.RuleTable

	maxPhotos int
	timeout   time.Duration
}

func NewOrchestrator(
	store storage.Store,
	gw gateway.Client,
	bus *events.Bus,
	extractor VehicleExtractor,
	classifier IntentClassifier,
	rules identity.RuleTable,
) *Orchestrator {
	if classifier == nil {
		classifier = NewRuleBasedClassifier()
	}
	return &Orchestrator{
		store:      store,
		gateway:    gw,
		bus:        bus,
		locks:      NewConversationLocks(),
		gate:       NewAuthGate(store),
		parser:     NewCommandParser(extractor),
		classifier: classifier,
		executor:   NewExecutor(store, bus),
		rules:      rules,
		maxPhotos:  config.MaxUploadPhotos(),
		timeout:    config.ProcessTimeout(),
	}
}

// Executor exposes the command executor for jobs and handlers that act
// outside a conversation turn.
func (o *Orchestrator) Executor() *Executor {
	return o.executor
}

// HandleMessage processes one inbound message for the resolved gateway
// account. The returned error is internal only; the caller still
// acknowledges the webhook for understood messages.
func (o *Orchestrator) HandleMessage(ctx context.Context, account *models.GatewayAccount, msg InboundMessage) error {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	tenant, err := o.store.GetTenantByID(account.TenantID)
	if err != nil {
		return fmt.Errorf("tenant %s: %w", account.TenantID, err)
	}

	resolver := identity.NewResolver(o.rules, tenant.CountryCode)
	sender := resolver.Resolve(msg.From, msg.AuxPhones...)
	key := sender.Key()
	if key == "" {
		zap.L().Warn("sender reference unresolvable, dropping turn",
			zap.String("tenantId", tenant.TenantID),
			zap.String("from", msg.From))
		return nil
	}

	// One conversation, one turn at a time. Interleaved read-modify-write
	// on the same context would silently drop a turn's fields.
	unlock := o.locks.Lock(tenant.TenantID, key)
	defer unlock()

	if msg.MessageID != "" {
		seen, err := o.store.HasInboundMessage(tenant.TenantID, msg.MessageID)
		if err == nil && seen {
			zap.L().Debug("duplicate delivery skipped",
				zap.String("tenantId", tenant.TenantID),
				zap.String("messageId", msg.MessageID))
			return nil
		}
	}

	staff, err := o.gate.Authorize(tenant.TenantID, key, resolver.NormalizePhone)
	if err != nil {
		return err
	}
	isStaff := staff != nil

	conv, err := o.getOrCreateConversation(tenant, key, msg.PushName, isStaff)
	if err != nil {
		return err
	}

	intent := o.classifier.Classify(ctx, msg.Text, isStaff)

	inbound := &models.MessageRecord{
		TenantID:       tenant.TenantID,
		ConversationID: conv.ID,
		MessageID:      msg.MessageID,
		Direction:      models.MessageDirectionInbound,
		SenderType:     senderType(isStaff),
		Body:           msg.Text,
		MediaURL:       msg.MediaURL,
		MediaType:      msg.MediaType,
		Intent:         intent,
		DeliveryStatus: models.DeliveryStatusDelivered,
		Timestamp:      msg.Timestamp,
	}
	if _, err := o.store.CreateMessageRecord(inbound); err != nil {
		zap.L().Error("inbound message record failed", zap.Error(err))
	}
	o.publish(events.TopicMessageReceived, tenant.TenantID, inbound)

	var reply string
	switch {
	case IsStaffIntent(intent) && !isStaff:
		reply = o.DenyCommand(tenant.TenantID, key, intent)
	case IsStaffIntent(intent):
		reply, err = o.handleStaffIntent(ctx, tenant, conv, key, intent, msg)
	case isStaff && conv.State == models.ConversationStateUploadVehicle:
		reply, err = o.continueUpload(ctx, tenant, conv, key, msg)
	default:
		reply, err = o.handleCustomer(tenant, intent)
	}
	if err != nil {
		return err
	}

	// The turn is abandoned past the deadline: nothing below may run,
	// the conversation keeps its prior persisted state for retry.
	if ctx.Err() != nil {
		zap.L().Warn("processing deadline exceeded, abandoning turn",
			zap.String("tenantId", tenant.TenantID),
			zap.String("phone", key))
		o.sendReply(account, tenant, conv, key, replySlowProcessing())
		return nil
	}

	conv.LastIntent = intent
	conv.LastMessageAt = time.Now()
	conv.Status = models.ConversationStatusActive
	if err := o.store.UpdateConversation(conv); err != nil {
		return fmt.Errorf("conversation update: %w", err)
	}

	if reply != "" {
		o.sendReply(account, tenant, conv, key, reply)
	}
	return nil
}

func (o *Orchestrator) getOrCreateConversation(tenant *models.Tenant, phone, pushName string, isStaff bool) (*models.Conversation, error) {
	conv, err := o.store.GetConversation(tenant.TenantID, phone)
	if errors.Is(err, storage.ErrNotFound) {
		conv = &models.Conversation{
			TenantID:      tenant.TenantID,
			CustomerPhone: phone,
			CustomerName:  pushName,
			IsStaff:       isStaff,
		}
		if _, err := o.store.CreateConversation(conv); err != nil {
			return nil, fmt.Errorf("conversation create: %w", err)
		}
		return conv, nil
	}
	if err != nil {
		return nil, err
	}
	// Roster membership can change between turns.
	conv.IsStaff = isStaff
	if conv.CustomerName == "" && pushName != "" {
		conv.CustomerName = pushName
	}
	return conv, nil
}

func (o *Orchestrator) handleStaffIntent(ctx context.Context, tenant *models.Tenant, conv *models.Conversation, phone, intent string, msg InboundMessage) (string, error) {
	switch intent {
	case IntentStaffUpload:
		return o.startUpload(ctx, conv, msg.Text)

	case IntentStaffStatus:
		o.resetFlow(conv)
		return o.executor.UpdateStatus(tenant.TenantID, phone, msg.Text)

	case IntentStaffStock:
		o.resetFlow(conv)
		return o.executor.StockQuery(tenant.TenantID, phone, msg.Text)

	case IntentStaffStats:
		o.resetFlow(conv)
		return o.executor.Stats(tenant.TenantID, phone)

	case IntentStaffCancel:
		if conv.State == models.ConversationStateUploadVehicle {
			conv.ResetState()
			o.executor.Log(tenant.TenantID, phone, models.CommandCancel, true, "upload cancelled", "")
			return replyCancelled(), nil
		}
		o.executor.Log(tenant.TenantID, phone, models.CommandCancel, true, "no active flow", "")
		return replyNothingToCancel(), nil

	case IntentStaffHelp:
		o.executor.Log(tenant.TenantID, phone, models.CommandHelp, true, "", "")
		return replyHelp(), nil
	}
	return replyHelp(), nil
}

// startUpload opens (or restarts) the upload flow, keeping any fields
// already present in the command text.
func (o *Orchestrator) startUpload(ctx context.Context, conv *models.Conversation, text string) (string, error) {
	extracted, err := o.parser.ParseUploadCommand(ctx, text)
	if err != nil && !errors.Is(err, ErrUnparseable) {
		return "", err
	}

	state := StartUpload(extracted)
	encoded, err := EncodeUploadState(state)
	if err != nil {
		return "", err
	}
	conv.State = models.ConversationStateUploadVehicle
	conv.ContextData = encoded

	if _, ok := state.(StateHasDataAwaitingPhoto); ok {
		return replyAskPhoto(), nil
	}
	if !extracted.IsEmpty() {
		return replyAskMissing(extracted.MissingMandatory()), nil
	}
	return replyUploadInstructions(), nil
}

func (o *Orchestrator) continueUpload(ctx context.Context, tenant *models.Tenant, conv *models.Conversation, phone string, msg InboundMessage) (string, error) {
	state, err := DecodeUploadState(conv.ContextData)
	if err != nil {
		zap.L().Warn("upload context unreadable, restarting flow",
			zap.String("tenantId", tenant.TenantID),
			zap.String("phone", phone),
			zap.Error(err))
		conv.ResetState()
		return replyUploadInstructions(), nil
	}

	extracted := PartialVehicle{}
	if msg.Text != "" {
		extracted, err = o.parser.ExtractVehicle(ctx, msg.Text)
		if errors.Is(err, ErrUnparseable) && msg.MediaURL == "" {
			// Nothing usable in a text-only turn; state stays put.
			return replyUnparseable(), nil
		}
	}

	turn := UploadTurn{Text: msg.Text, PhotoURL: msg.MediaURL, Extracted: extracted}
	result := AdvanceUpload(state, turn, o.maxPhotos)

	switch {
	case result.OverCap:
		return replyPhotoCap(o.maxPhotos), nil

	case result.Draft != nil:
		reply, vehicle, err := o.executor.CommitVehicle(tenant.TenantID, phone, *result.Draft)
		if vehicle != nil {
			// Cleared only now that the inventory write succeeded.
			conv.ResetState()
			return reply, nil
		}
		if err != nil {
			zap.L().Warn("commit failed, keeping flow state for retry",
				zap.String("tenantId", tenant.TenantID),
				zap.String("phone", phone))
		}
		return reply, nil

	default:
		encoded, err := EncodeUploadState(result.Next)
		if err != nil {
			return "", err
		}
		conv.ContextData = encoded
		switch {
		case result.NeedsPhoto:
			return replyAskPhoto(), nil
		case result.PhotoAdded:
			return replyPhotoSaved(result.PhotoCount, result.Missing), nil
		default:
			return replyAskMissing(result.Missing), nil
		}
	}
}

func (o *Orchestrator) handleCustomer(tenant *models.Tenant, intent string) (string, error) {
	switch intent {
	case IntentCustGreeting:
		return replyGreeting(tenant), nil
	case IntentCustVehicle, IntentCustPrice:
		vehicles, err := o.executor.AvailableVehicles(tenant.TenantID)
		if err != nil {
			return "", err
		}
		return replyCustomerVehicleList(vehicles), nil
	default:
		return replyCustomerGeneral(tenant), nil
	}
}

// DenyCommand is the shared denial path for staff-only intents coming from
// phones outside the roster.
func (o *Orchestrator) DenyCommand(tenantID, phone, intent string) string {
	o.gate.RecordDenial(tenantID, phone, commandTagFor(intent))
	return replyDenied()
}

func (o *Orchestrator) resetFlow(conv *models.Conversation) {
	if conv.State != models.ConversationStateNone {
		conv.ResetState()
	}
}

// sendReply delivers the reply on its own short deadline, after all
// persistence. A send failure never loses committed state.
func (o *Orchestrator) sendReply(account *models.GatewayAccount, tenant *models.Tenant, conv *models.Conversation, toPhone, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	messageID, err := o.gateway.SendText(ctx, account.SessionID, toPhone, text)
	status := models.DeliveryStatusSent
	if err != nil {
		zap.L().Warn("reply send failed",
			zap.String("tenantId", tenant.TenantID),
			zap.String("phone", toPhone),
			zap.Error(err))
		status = models.DeliveryStatusFailed
	}

	outbound := &models.MessageRecord{
		TenantID:       tenant.TenantID,
		ConversationID: conv.ID,
		MessageID:      messageID,
		Direction:      models.MessageDirectionOutbound,
		SenderType:     models.SenderTypeAI,
		Body:           text,
		DeliveryStatus: status,
		Timestamp:      time.Now(),
	}
	if _, err := o.store.CreateMessageRecord(outbound); err != nil {
		zap.L().Error("outbound message record failed", zap.Error(err))
	}
	o.publish(events.TopicMessageSent, tenant.TenantID, outbound)
}

func (o *Orchestrator) publish(topic, tenantID string, data interface{}) {
	if o.bus != nil {
		o.bus.Publish(topic, tenantID, data)
	}
}

func senderType(isStaff bool) string {
	if isStaff {
		return models.SenderTypeStaff
	}
	return models.SenderTypeCustomer
}

func commandTagFor(intent string) string {
	switch intent {
	case IntentStaffUpload:
		return models.CommandUploadVehicle
	case IntentStaffStatus:
		return models.CommandUpdateStatus
	case IntentStaffStock:
		return models.CommandStockQuery
	case IntentStaffStats:
		return models.CommandStats
	case IntentStaffCancel:
		return models.CommandCancel
	case IntentStaffHelp:
		return models.CommandHelp
	}
	return intent
}
