package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"

	"github.com/autolumiku/whatsapp-backend/internal/models"
	"github.com/autolumiku/whatsapp-backend/internal/services"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// WebhookEnvelope is the outer shape every gateway build agrees on. The
// data payload is heterogeneous across gateway versions, so its fields are
// pulled out through ordered candidate key paths instead of one rigid
// struct.
type WebhookEnvelope struct {
	ClientID  string                 `mapstructure:"clientId"`
	Event     string                 `mapstructure:"event"`
	Timestamp interface{}            `mapstructure:"timestamp"`
	Data      map[string]interface{} `mapstructure:"data"`
}

// Candidate key paths per logical field, most specific first. A path walks
// dot-separated segments through nested objects; the first hit wins.
var (
	clientIDPaths  = []string{"clientId", "client_id", "sessionId", "session_id", "instanceId", "instance"}
	eventPaths     = []string{"event", "type"}
	senderPaths    = []string{"from", "sender", "key.remoteJid", "remoteJid", "chatId", "author"}
	messageIDPaths = []string{"id", "key.id", "messageId", "msgId"}
	textPaths      = []string{"message.conversation", "message.text", "text", "body", "caption", "message"}
	mediaURLPaths  = []string{"mediaUrl", "media_url", "imageUrl", "image.url", "url"}
	mediaTypePaths = []string{"mediaType", "mimetype", "media_type"}
	pushNamePaths  = []string{"pushName", "notifyName", "senderName", "name"}
	auxPhonePaths  = []string{"phone", "senderPhone", "participant", "author"}
	fromMePaths    = []string{"fromMe", "key.fromMe"}
	timestampPaths = []string{"timestamp", "messageTimestamp", "t"}
	statusPaths    = []string{"status", "ack"}
	livePhonePaths = []string{"phone", "me.id", "wid"}
)

// ParseWebhookEnvelope decodes the raw body into the envelope. Unknown
// top-level keys are ignored; a missing data object degrades to the top
// map itself since some gateway builds flatten the payload.
func ParseWebhookEnvelope(body []byte) (*WebhookEnvelope, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, errors.New("empty webhook body")
	}

	var env WebhookEnvelope
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &env,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, err
	}

	if env.ClientID == "" {
		env.ClientID = lookupString(raw, clientIDPaths)
	}
	if env.Event == "" {
		env.Event = lookupString(raw, eventPaths)
	}
	if env.Data == nil {
		env.Data = raw
	}
	return &env, nil
}

// InboundMessage maps the message-event payload onto the orchestrator's
// input using the candidate paths.
func (env *WebhookEnvelope) InboundMessage() services.InboundMessage {
	return services.InboundMessage{
		MessageID: lookupString(env.Data, messageIDPaths),
		From:      lookupString(env.Data, senderPaths),
		AuxPhones: lookupStrings(env.Data, auxPhonePaths),
		Text:      lookupString(env.Data, textPaths),
		MediaURL:  lookupString(env.Data, mediaURLPaths),
		MediaType: lookupString(env.Data, mediaTypePaths),
		PushName:  lookupString(env.Data, pushNamePaths),
		Timestamp: env.EventTime(),
	}
}

// FromMe reports whether the message event echoes one of our own sends.
func (env *WebhookEnvelope) FromMe() bool {
	v, ok := lookup(env.Data, fromMePaths)
	if !ok {
		return false
	}
	b, err := cast.ToBoolE(v)
	return err == nil && b
}

// EventTime resolves the event timestamp from the envelope or the data
// payload, accepting unix seconds, unix millis and common date strings.
func (env *WebhookEnvelope) EventTime() time.Time {
	if ts := coerceTime(env.Timestamp); !ts.IsZero() {
		return ts
	}
	if v, ok := lookup(env.Data, timestampPaths); ok {
		if ts := coerceTime(v); !ts.IsZero() {
			return ts
		}
	}
	return time.Now()
}

// StatusUpdate pulls the delivery receipt fields from a status event.
func (env *WebhookEnvelope) StatusUpdate() (messageID, status string) {
	messageID = lookupString(env.Data, messageIDPaths)
	v, ok := lookup(env.Data, statusPaths)
	if !ok {
		return messageID, ""
	}
	return messageID, normalizeDeliveryStatus(v)
}

// LivePhone extracts the connected account phone from connection events.
func (env *WebhookEnvelope) LivePhone() string {
	return lookupString(env.Data, livePhonePaths)
}

// lookup walks each dot-separated candidate path through nested maps and
// returns the first present, non-nil value.
func lookup(data map[string]interface{}, paths []string) (interface{}, bool) {
	for _, path := range paths {
		cur := interface{}(data)
		found := true
		for _, seg := range strings.Split(path, ".") {
			m, isMap := cur.(map[string]interface{})
			if !isMap {
				found = false
				break
			}
			cur, found = m[seg]
			if !found {
				break
			}
		}
		if found && cur != nil {
			return cur, true
		}
	}
	return nil, false
}

// lookupString is lookup restricted to scalar values; objects and empty
// strings keep scanning later paths.
func lookupString(data map[string]interface{}, paths []string) string {
	for _, path := range paths {
		v, ok := lookup(data, []string{path})
		if !ok {
			continue
		}
		s, err := cast.ToStringE(v)
		if err != nil || s == "" {
			continue
		}
		return s
	}
	return ""
}

// lookupStrings collects every distinct scalar hit across the paths in
// order.
func lookupStrings(data map[string]interface{}, paths []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, path := range paths {
		v, ok := lookup(data, []string{path})
		if !ok {
			continue
		}
		s, err := cast.ToStringE(v)
		if err != nil || s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func coerceTime(v interface{}) time.Time {
	if v == nil {
		return time.Time{}
	}
	if n, err := cast.ToInt64E(v); err == nil && n > 0 {
		if n > 1_000_000_000_000 {
			return time.UnixMilli(n)
		}
		return time.Unix(n, 0)
	}
	if s, err := cast.ToStringE(v); err == nil && s != "" {
		if ts, err := dateparse.ParseAny(s); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// phoneDigits reduces an address-shaped reference ("628...:12@s.whatsapp.net")
// to its bare phone digits, dropping domain and device segments.
func phoneDigits(ref string) string {
	user, _, _ := strings.Cut(ref, "@")
	if i := strings.IndexByte(user, ':'); i >= 0 {
		user = user[:i]
	}
	return digitsOnly(user)
}

// normalizeDeliveryStatus folds string statuses and numeric ack levels
// onto the stored delivery states.
func normalizeDeliveryStatus(v interface{}) string {
	if n, err := cast.ToIntE(v); err == nil {
		switch {
		case n >= 4:
			return models.DeliveryStatusRead
		case n == 3:
			return models.DeliveryStatusDelivered
		case n >= 1:
			return models.DeliveryStatusSent
		default:
			return models.DeliveryStatusPending
		}
	}
	s := strings.ToLower(cast.ToString(v))
	switch s {
	case "sent", "server":
		return models.DeliveryStatusSent
	case "delivered", "delivery":
		return models.DeliveryStatusDelivered
	case "read", "seen":
		return models.DeliveryStatusRead
	case "failed", "error":
		return models.DeliveryStatusFailed
	case "pending", "queued":
		return models.DeliveryStatusPending
	}
	return ""
}
