package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/autolumiku/whatsapp-backend/internal/models"
	"github.com/autolumiku/whatsapp-backend/internal/storage"
)

type fakeClient struct {
	sessions []Session
	listErr  error
}

func (f *fakeClient) ListSessions(ctx context.Context) ([]Session, error) {
	return f.sessions, f.listErr
}

func (f *fakeClient) SendText(ctx context.Context, sessionID, toPhone, text string) (string, error) {
	return "msg-1", nil
}

func (f *fakeClient) SendImage(ctx context.Context, sessionID, toPhone, url, caption string) (string, error) {
	return "msg-1", nil
}

// countingStore tracks gateway account updates to assert the at-most-one
// update guarantee.
type countingStore struct {
	*storage.MemoryStore
	accountUpdates int
}

func (c *countingStore) UpdateGatewayAccount(a *models.GatewayAccount) error {
	c.accountUpdates++
	return c.MemoryStore.UpdateGatewayAccount(a)
}

func seedAccount(t *testing.T, store storage.Store, tenantID, sessionID, phone string) *models.GatewayAccount {
	t.Helper()
	acct, err := store.CreateGatewayAccount(&models.GatewayAccount{
		TenantID:         tenantID,
		SessionID:        sessionID,
		PhoneNumber:      phone,
		ConnectionStatus: models.ConnectionStatusConnected,
	})
	require.NoError(t, err)
	return acct
}

func TestResolveByEmbeddedPhone(t *testing.T) {
	store := &countingStore{MemoryStore: storage.NewMemoryStore()}
	seeded := seedAccount(t, store, "T1", "stale-session", "6281234567890")
	r := NewReconciler(store, &fakeClient{}, false)

	declared := "6281234567890:5@s.whatsapp.net"
	acct, err := r.Resolve(context.Background(), "T1", declared)
	require.NoError(t, err)
	require.Equal(t, seeded.AccountID, acct.AccountID)
	require.Equal(t, declared, acct.SessionID)

	stored, err := store.GetGatewayAccountBySessionID(declared)
	require.NoError(t, err)
	require.Equal(t, seeded.AccountID, stored.AccountID)
	require.Equal(t, 1, store.accountUpdates)
}

func TestResolveSingleAccountSelfHeal(t *testing.T) {
	store := &countingStore{MemoryStore: storage.NewMemoryStore()}
	seeded := seedAccount(t, store, "T1", "old-session", "628111111111")
	client := &fakeClient{sessions: []Session{
		{ID: "fresh-session", Phone: "628111111111", IsConnected: true},
	}}
	r := NewReconciler(store, client, false)

	acct, err := r.Resolve(context.Background(), "T1", "unknown-ref")
	require.NoError(t, err)
	require.Equal(t, seeded.AccountID, acct.AccountID)
	require.Equal(t, "fresh-session", acct.SessionID)

	stored, err := store.GetGatewayAccountBySessionID("fresh-session")
	require.NoError(t, err)
	require.Equal(t, seeded.AccountID, stored.AccountID)
	require.Equal(t, 1, store.accountUpdates)
}

func TestResolveSingleAccountListingDown(t *testing.T) {
	store := storage.NewMemoryStore()
	seeded := seedAccount(t, store, "T1", "old-session", "628111111111")
	client := &fakeClient{listErr: errors.New("gateway down")}
	r := NewReconciler(store, client, false)

	// The shortcut still assumes the only account; drift repair is skipped.
	acct, err := r.Resolve(context.Background(), "T1", "unknown-ref")
	require.NoError(t, err)
	require.Equal(t, seeded.AccountID, acct.AccountID)
	require.Equal(t, "old-session", acct.SessionID)
}

func TestResolveNothingStoredNothingLive(t *testing.T) {
	store := storage.NewMemoryStore()
	r := NewReconciler(store, &fakeClient{}, false)

	_, err := r.Resolve(context.Background(), "T1", "whatever")
	require.ErrorIs(t, err, ErrNoSession)
}

func TestResolveMultiAccountFuzzyByPhone(t *testing.T) {
	store := &countingStore{MemoryStore: storage.NewMemoryStore()}
	seedAccount(t, store, "T1", "session-a", "628111111111")
	acctB := seedAccount(t, store, "T1", "session-b", "628222222222")

	// Declared id matches neither stored session id, but the live listing
	// has a session overlapping it whose phone agrees with account B.
	declared := "device-7f3a"
	client := &fakeClient{sessions: []Session{
		{ID: "device-7f3a-628222222222", Phone: "628222222222", IsConnected: true},
	}}
	r := NewReconciler(store, client, false)

	acct, err := r.Resolve(context.Background(), "T1", declared)
	require.NoError(t, err)
	require.Equal(t, acctB.AccountID, acct.AccountID)
	require.Equal(t, "device-7f3a-628222222222", acct.SessionID)
	require.Equal(t, 1, store.accountUpdates)
}

func TestResolveMultiAccountFuzzyBySessionPrefix(t *testing.T) {
	store := storage.NewMemoryStore()
	seedAccount(t, store, "T1", "session-a", "628111111111")
	acctB := seedAccount(t, store, "T1", "6282222222222.legacy", "")

	declared := "6282222222222:44@s.whatsapp.net"
	client := &fakeClient{sessions: []Session{
		{ID: "6282222222222:44@s.whatsapp.net", IsConnected: true},
	}}
	r := NewReconciler(store, client, false)

	acct, err := r.Resolve(context.Background(), "T1", declared)
	require.NoError(t, err)
	require.Equal(t, acctB.AccountID, acct.AccountID)
	require.Equal(t, declared, acct.SessionID)
}

func TestResolveTenantScoping(t *testing.T) {
	store := storage.NewMemoryStore()
	acct1 := seedAccount(t, store, "T1", "session-1", "628111111111")
	seedAccount(t, store, "T2", "session-2", "628222222222")
	r := NewReconciler(store, &fakeClient{}, false)

	// Each tenant has exactly one account, so the tenant-scoped shortcut
	// applies even though the deployment has two.
	acct, err := r.Resolve(context.Background(), "T1", "junk-ref")
	require.NoError(t, err)
	require.Equal(t, acct1.AccountID, acct.AccountID)
}

func TestResolveNoMatchRemainsNotFound(t *testing.T) {
	store := storage.NewMemoryStore()
	seedAccount(t, store, "T1", "session-a", "628111111111")
	seedAccount(t, store, "T1", "session-b", "628222222222")

	client := &fakeClient{sessions: []Session{
		{ID: "unrelated", Phone: "628999999999", IsConnected: true},
	}}
	r := NewReconciler(store, client, false)

	_, err := r.Resolve(context.Background(), "T1", "device-xyz")
	require.ErrorIs(t, err, ErrNoSession)
}
