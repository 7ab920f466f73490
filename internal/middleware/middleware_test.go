package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSignatureApp() *fiber.App {
	app := fiber.New()
	app.Post("/hook", ValidateGatewaySignature(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func postSigned(t *testing.T, app *fiber.App, body, signature string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/hook", bytes.NewReader([]byte(body)))
	if signature != "" {
		req.Header.Set("X-Webhook-Signature", signature)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func sign(secret, body string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return mac.Sum(nil)
}

func TestGatewaySignatureSkippedWithoutSecret(t *testing.T) {
	t.Setenv("WEBHOOK_SHARED_SECRET", "")
	app := newSignatureApp()

	resp := postSigned(t, app, `{"event":"message"}`, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGatewaySignatureMissingHeader(t *testing.T) {
	t.Setenv("WEBHOOK_SHARED_SECRET", "topsecret")
	app := newSignatureApp()

	resp := postSigned(t, app, `{"event":"message"}`, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGatewaySignatureAcceptsBothEncodings(t *testing.T) {
	t.Setenv("WEBHOOK_SHARED_SECRET", "topsecret")
	app := newSignatureApp()
	body := `{"event":"message"}`
	sum := sign("topsecret", body)

	resp := postSigned(t, app, body, hex.EncodeToString(sum))
	assert.Equal(t, http.StatusOK, resp.StatusCode, "hex form")

	resp = postSigned(t, app, body, base64.StdEncoding.EncodeToString(sum))
	assert.Equal(t, http.StatusOK, resp.StatusCode, "base64 form")
}

func TestGatewaySignatureRejectsTamperedBody(t *testing.T) {
	t.Setenv("WEBHOOK_SHARED_SECRET", "topsecret")
	app := newSignatureApp()
	sum := sign("topsecret", `{"event":"message"}`)

	resp := postSigned(t, app, `{"event":"message","extra":1}`, hex.EncodeToString(sum))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func newAPIKeyApp() *fiber.App {
	app := fiber.New()
	app.Get("/admin", RequireAPIKey(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func getWithKey(t *testing.T, app *fiber.App, key string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestAPIKeyUnconfiguredIsServerError(t *testing.T) {
	t.Setenv("ADMIN_API_KEY", "")
	app := newAPIKeyApp()

	resp := getWithKey(t, app, "anything")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestAPIKeyChecked(t *testing.T) {
	t.Setenv("ADMIN_API_KEY", "k-123")
	app := newAPIKeyApp()

	resp := getWithKey(t, app, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = getWithKey(t, app, "wrong")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = getWithKey(t, app, "k-123")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
