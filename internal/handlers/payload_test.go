package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autolumiku/whatsapp-backend/internal/models"
)

func TestParseWebhookEnvelope(t *testing.T) {
	env, err := ParseWebhookEnvelope([]byte(`{
		"clientId": "sess-1",
		"event": "message",
		"timestamp": 1700000000,
		"data": {"from": "628987654321", "text": "halo"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "sess-1", env.ClientID)
	assert.Equal(t, "message", env.Event)
	assert.Equal(t, "halo", env.Data["text"])
}

func TestParseWebhookEnvelopeAlternateKeys(t *testing.T) {
	env, err := ParseWebhookEnvelope([]byte(`{
		"sessionId": "sess-9",
		"type": "message",
		"data": {"from": "628987654321"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "sess-9", env.ClientID)
	assert.Equal(t, "message", env.Event)
}

func TestParseWebhookEnvelopeFlattenedPayload(t *testing.T) {
	// Some gateway builds omit the data object and put message fields at
	// the top level.
	env, err := ParseWebhookEnvelope([]byte(`{
		"clientId": "sess-1",
		"event": "message",
		"from": "628987654321",
		"text": "halo"
	}`))
	require.NoError(t, err)

	msg := env.InboundMessage()
	assert.Equal(t, "628987654321", msg.From)
	assert.Equal(t, "halo", msg.Text)
}

func TestParseWebhookEnvelopeRejectsGarbage(t *testing.T) {
	_, err := ParseWebhookEnvelope([]byte("not json"))
	require.Error(t, err)

	_, err = ParseWebhookEnvelope([]byte("{}"))
	require.Error(t, err)
}

func TestInboundMessageNestedShape(t *testing.T) {
	env, err := ParseWebhookEnvelope([]byte(`{
		"clientId": "sess-1",
		"event": "message",
		"data": {
			"key": {"remoteJid": "628987654321@s.whatsapp.net", "id": "ABC123", "fromMe": false},
			"message": {"conversation": "Brio 2020 120jt"},
			"pushName": "Sari",
			"participant": "628111999888"
		}
	}`))
	require.NoError(t, err)

	msg := env.InboundMessage()
	assert.Equal(t, "628987654321@s.whatsapp.net", msg.From)
	assert.Equal(t, "ABC123", msg.MessageID)
	assert.Equal(t, "Brio 2020 120jt", msg.Text)
	assert.Equal(t, "Sari", msg.PushName)
	assert.Contains(t, msg.AuxPhones, "628111999888")
	assert.False(t, env.FromMe())
}

func TestInboundMessageSkipsMessageObjectWithoutText(t *testing.T) {
	env, err := ParseWebhookEnvelope([]byte(`{
		"clientId": "sess-1",
		"event": "message",
		"data": {
			"from": "628987654321",
			"message": {"imageMessage": {"mimetype": "image/jpeg"}},
			"mediaUrl": "https://cdn.example/img.jpg"
		}
	}`))
	require.NoError(t, err)

	msg := env.InboundMessage()
	assert.Empty(t, msg.Text, "an object-valued message field is not text")
	assert.Equal(t, "https://cdn.example/img.jpg", msg.MediaURL)
}

func TestFromMeNestedKey(t *testing.T) {
	env, err := ParseWebhookEnvelope([]byte(`{
		"clientId": "sess-1",
		"event": "message",
		"data": {"key": {"remoteJid": "x", "fromMe": true}}
	}`))
	require.NoError(t, err)
	assert.True(t, env.FromMe())
}

func TestEventTimeCoercion(t *testing.T) {
	ref := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)

	cases := []struct {
		name string
		body string
	}{
		{"unix seconds", `{"clientId":"s","event":"message","timestamp":1700000000,"data":{}}`},
		{"unix millis", `{"clientId":"s","event":"message","timestamp":1700000000000,"data":{}}`},
		{"string seconds", `{"clientId":"s","event":"message","timestamp":"1700000000","data":{}}`},
		{"rfc3339 in data", `{"clientId":"s","event":"message","data":{"timestamp":"2023-11-14T22:13:20Z"}}`},
		{"nested messageTimestamp", `{"clientId":"s","event":"message","data":{"messageTimestamp":1700000000}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env, err := ParseWebhookEnvelope([]byte(tc.body))
			require.NoError(t, err)
			assert.Equal(t, ref.Unix(), env.EventTime().Unix())
		})
	}
}

func TestEventTimeFallsBackToNow(t *testing.T) {
	env, err := ParseWebhookEnvelope([]byte(`{"clientId":"s","event":"message","data":{}}`))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), env.EventTime(), 5*time.Second)
}

func TestStatusUpdateAckLevels(t *testing.T) {
	cases := []struct {
		ack  interface{}
		want string
	}{
		{0, models.DeliveryStatusPending},
		{1, models.DeliveryStatusSent},
		{2, models.DeliveryStatusSent},
		{3, models.DeliveryStatusDelivered},
		{4, models.DeliveryStatusRead},
		{"READ", models.DeliveryStatusRead},
		{"delivered", models.DeliveryStatusDelivered},
		{"failed", models.DeliveryStatusFailed},
		{"weird", ""},
	}

	for _, tc := range cases {
		env := &WebhookEnvelope{Data: map[string]interface{}{
			"id":  "OUT1",
			"ack": tc.ack,
		}}
		id, status := env.StatusUpdate()
		assert.Equal(t, "OUT1", id)
		assert.Equal(t, tc.want, status, "ack %v", tc.ack)
	}
}

func TestLivePhoneCandidates(t *testing.T) {
	env := &WebhookEnvelope{Data: map[string]interface{}{
		"me": map[string]interface{}{"id": "628111222333:12@s.whatsapp.net"},
	}}
	assert.Equal(t, "628111222333:12@s.whatsapp.net", env.LivePhone())
	assert.Equal(t, "628111222333", phoneDigits(env.LivePhone()),
		"device segment and domain must not leak into the stored phone")
}
