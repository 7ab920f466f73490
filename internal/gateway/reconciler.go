package gateway

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/autolumiku/whatsapp-backend/internal/models"
	"github.com/autolumiku/whatsapp-backend/internal/storage"
)

// Reconciler repairs the local GatewayAccount mapping when an event's
// declared session id is not recognized. Strategies run in order and
// short-circuit on the first hit; a single event causes at most one
// account update.
type Reconciler struct {
	store  storage.Store
	client Client

	// When true and the tenant hint resolves no single account, the
	// single-account shortcut considers the whole deployment.
	globalSingle bool
}

// NewReconciler builds a reconciler over the given store and gateway client.
func NewReconciler(store storage.Store, client Client, globalSingle bool) *Reconciler {
	return &Reconciler{store: store, client: client, globalSingle: globalSingle}
}

// Resolve finds the GatewayAccount for a declared session id that had no
// direct match. tenantHint scopes the candidate set when the caller knows
// the tenant; it may be empty. Returns ErrNoSession when every strategy
// fails; an account is never invented.
func (r *Reconciler) Resolve(ctx context.Context, tenantHint, declaredID string) (*models.GatewayAccount, error) {
	log := zap.L().With(
		zap.String("declared_session_id", declaredID),
		zap.String("tenant_hint", tenantHint),
	)

	// Strategy 1: the declared id embeds a phone-style address.
	if phone := phoneFromSessionRef(declaredID); phone != "" {
		for _, form := range []string{phone, "+" + phone} {
			acct, err := r.store.GetGatewayAccountByPhone(form)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			log.Info("reconciler: matched by embedded phone",
				zap.String("phone", phone),
				zap.String("account_id", acct.AccountID))
			if acct.SessionID != declaredID {
				acct.SessionID = declaredID
				if err := r.store.UpdateGatewayAccount(acct); err != nil {
					return nil, err
				}
			}
			return acct, nil
		}
	}

	accounts, err := r.candidateAccounts(tenantHint)
	if err != nil {
		return nil, err
	}

	// Strategy 2: single-account shortcut with live drift repair.
	if len(accounts) == 1 {
		acct := accounts[0]
		log.Info("reconciler: single account assumed",
			zap.String("account_id", acct.AccountID))

		sessions, lerr := r.client.ListSessions(ctx)
		if lerr != nil {
			log.Warn("reconciler: live listing unavailable, keeping stored mapping",
				zap.Error(lerr))
			return acct, nil
		}
		if live := firstConnected(sessions); live != nil && live.ID != acct.SessionID {
			log.Info("reconciler: session id drift repaired",
				zap.String("stored_session_id", acct.SessionID),
				zap.String("live_session_id", live.ID))
			acct.SessionID = live.ID
			if p := digitsOf(live.Phone); p != "" {
				acct.PhoneNumber = p
			}
			if err := r.store.UpdateGatewayAccount(acct); err != nil {
				return nil, err
			}
		}
		return acct, nil
	}

	// Strategy 3: multi-account fuzzy match against the live listing.
	sessions, lerr := r.client.ListSessions(ctx)
	if lerr != nil {
		log.Warn("reconciler: live listing unavailable", zap.Error(lerr))
		return nil, ErrNoSession
	}
	for _, live := range sessions {
		if !overlaps(live, declaredID) {
			continue
		}
		livePhone := digitsOf(live.Phone)
		for _, acct := range accounts {
			if livePhone != "" && digitsOf(acct.PhoneNumber) == livePhone {
				log.Info("reconciler: fuzzy match by live phone",
					zap.String("live_session_id", live.ID),
					zap.String("account_id", acct.AccountID))
				acct.SessionID = live.ID
				if err := r.store.UpdateGatewayAccount(acct); err != nil {
					return nil, err
				}
				return acct, nil
			}
		}
		for _, acct := range accounts {
			if sharesPhonePrefix(acct.SessionID, live.ID) {
				log.Info("reconciler: fuzzy match by session id prefix",
					zap.String("live_session_id", live.ID),
					zap.String("account_id", acct.AccountID))
				acct.SessionID = live.ID
				if err := r.store.UpdateGatewayAccount(acct); err != nil {
					return nil, err
				}
				return acct, nil
			}
		}
	}

	log.Warn("reconciler: all strategies failed",
		zap.Int("candidate_accounts", len(accounts)),
		zap.Int("live_sessions", len(sessions)))
	return nil, ErrNoSession
}

func (r *Reconciler) candidateAccounts(tenantHint string) ([]*models.GatewayAccount, error) {
	if tenantHint != "" {
		accounts, err := r.store.GetGatewayAccountsByTenant(tenantHint)
		if err != nil {
			return nil, err
		}
		if len(accounts) > 0 || !r.globalSingle {
			return accounts, nil
		}
	}
	return r.store.GetAllGatewayAccounts()
}

func firstConnected(sessions []Session) *Session {
	for i := range sessions {
		if sessions[i].IsConnected {
			return &sessions[i]
		}
	}
	return nil
}

// overlaps reports whether a live session's id or phone and the declared
// id share a common representation.
func overlaps(live Session, declaredID string) bool {
	if refOverlap(live.ID, declaredID) {
		return true
	}
	return refOverlap(digitsOf(live.Phone), digitsOf(declaredID))
}

func refOverlap(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return a == b || strings.Contains(a, b) || strings.Contains(b, a)
}

// sharesPhonePrefix compares the leading digit runs of two session ids.
// Gateway-assigned ids commonly embed the account phone, so agreeing
// prefixes indicate the same underlying account.
func sharesPhonePrefix(storedID, liveID string) bool {
	a := phonePrefix(storedID)
	b := phonePrefix(liveID)
	return a != "" && a == b
}

func phonePrefix(ref string) string {
	digits := digitsOf(ref)
	if len(digits) < 8 {
		return ""
	}
	if len(digits) > 10 {
		digits = digits[:10]
	}
	return digits
}

// phoneFromSessionRef extracts an embedded phone-style address from a
// session id such as "6281234567890:3@s.whatsapp.net". Returns "" when
// the id embeds nothing phone-shaped.
func phoneFromSessionRef(ref string) string {
	user, _, _ := strings.Cut(ref, "@")
	if i := strings.IndexByte(user, ':'); i >= 0 {
		user = user[:i]
	}
	digits := digitsOf(user)
	if len(digits) < 8 || len(digits) > 15 {
		return ""
	}
	return digits
}

func digitsOf(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
