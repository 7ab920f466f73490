package identity

import (
	"strings"

	"go.uber.org/zap"
)

// Confidence levels for a resolved identity.
const (
	ConfidenceResolved   = "resolved"
	ConfidenceUnresolved = "unresolved"
)

// Domain suffixes the gateway attaches to sender references. The routing
// domains mark ordinary message addresses; the linked-identifier domain
// marks opaque platform ids that are not dialable numbers.
const (
	routingDomainPrimary = "s.whatsapp.net"
	routingDomainLegacy  = "c.us"
	linkedIDDomain       = "lid"
)

// SenderIdentity is the per-event result of resolving a raw sender
// reference. Never persisted; conversation and message records carry
// only the resolved phone.
type SenderIdentity struct {
	Raw            string
	CanonicalPhone string
	IsOpaqueID     bool
	Confidence     string
}

// Key returns the string conversations are keyed by: the canonical phone
// when one was resolved, otherwise the digit form of the raw reference.
func (s SenderIdentity) Key() string {
	if s.CanonicalPhone != "" {
		return s.CanonicalPhone
	}
	return digitsOnly(s.Raw)
}

// Resolver normalizes raw sender references into canonical phone numbers
// or flags them as opaque platform identifiers.
type Resolver struct {
	rules       RuleTable
	countryCode string
}

// NewResolver builds a resolver with the given rule table. countryCode is
// the calling code substituted for a leading "0" (e.g. "62").
func NewResolver(rules RuleTable, countryCode string) *Resolver {
	if countryCode == "" {
		countryCode = "62"
	}
	return &Resolver{rules: rules, countryCode: countryCode}
}

// Resolve classifies the raw sender reference. Auxiliary values are
// alternate sender fields from the same event (participant id, alternate
// phone); when the primary reference classifies as opaque but an
// auxiliary value is phone-like, the auxiliary phone wins.
func (r *Resolver) Resolve(raw string, auxiliaries ...string) SenderIdentity {
	ref := strings.TrimSpace(raw)
	identity := SenderIdentity{Raw: raw, Confidence: ConfidenceUnresolved}
	if ref == "" {
		return identity
	}

	user, domain, hasDomain := strings.Cut(ref, "@")
	user = stripDeviceSegment(user)

	switch {
	case hasDomain && isRoutingDomain(domain):
		identity.CanonicalPhone = r.NormalizePhone(user)
		identity.Confidence = ConfidenceResolved
		return identity

	case hasDomain && domain == linkedIDDomain:
		identity.IsOpaqueID = true

	case hasDomain:
		// Unknown domain: fall back to the bare heuristic on the user part.
		zap.L().Debug("identity: unknown sender domain",
			zap.String("raw", raw),
			zap.String("domain", domain))
		identity.IsOpaqueID = r.classifyOpaque(digitsOnly(user))

	default:
		identity.IsOpaqueID = r.classifyOpaque(digitsOnly(user))
	}

	if !identity.IsOpaqueID {
		digits := digitsOnly(user)
		if digits == "" {
			// Nothing classifiable; treated as an (empty) phone and left
			// unresolved so the caller can log and skip.
			zap.L().Warn("identity: unclassifiable sender reference",
				zap.String("raw", raw))
			return identity
		}
		identity.CanonicalPhone = r.NormalizePhone(digits)
		identity.Confidence = ConfidenceResolved
		return identity
	}

	// Opaque id: prefer an auxiliary phone from the same event when one
	// is present (linked-device payloads report both).
	if phone, ok := r.auxiliaryPhone(auxiliaries); ok {
		identity.CanonicalPhone = phone
		identity.IsOpaqueID = false
		identity.Confidence = ConfidenceResolved
		return identity
	}

	return identity
}

// NormalizePhone strips every non-digit character and replaces a leading
// "0" with the configured country code. Idempotent.
func (r *Resolver) NormalizePhone(s string) string {
	digits := digitsOnly(s)
	if strings.HasPrefix(digits, "0") {
		digits = r.countryCode + digits[1:]
	}
	return digits
}

// auxiliaryPhone returns the first auxiliary value that classifies as a
// phone number, normalized.
func (r *Resolver) auxiliaryPhone(auxiliaries []string) (string, bool) {
	for _, aux := range auxiliaries {
		aux = strings.TrimSpace(aux)
		if aux == "" {
			continue
		}

		user, domain, hasDomain := strings.Cut(aux, "@")
		user = stripDeviceSegment(user)
		if hasDomain && domain == linkedIDDomain {
			continue
		}
		if hasDomain && !isRoutingDomain(domain) {
			continue
		}

		digits := digitsOnly(user)
		if digits == "" {
			continue
		}
		if !hasDomain && r.classifyOpaque(digits) {
			continue
		}
		return r.NormalizePhone(digits), true
	}
	return "", false
}

// classifyOpaque applies the rule table to a bare digit string and
// reports true when it looks like an opaque platform id rather than a
// phone number. Unmatched input defaults to phone.
func (r *Resolver) classifyOpaque(digits string) bool {
	if digits == "" {
		return false
	}
	length := len(digits)

	if length >= r.rules.HardOpaqueLength {
		return true
	}

	rule, hasCountry := r.rules.countryRuleFor(digits)

	if length >= r.rules.MinOpaqueLength {
		if r.rules.hasOpaquePrefix(digits) {
			return true
		}
		if !hasCountry {
			return true
		}
	}

	// Prefix+length collision table: matches a country code but is too
	// long to be a real number in that range.
	if hasCountry && length > rule.MaxPlausibleLength {
		return true
	}

	return false
}

func isRoutingDomain(domain string) bool {
	return domain == routingDomainPrimary || domain == routingDomainLegacy
}

// stripDeviceSegment removes the ":NN" device part of a routing address
// user section ("6281234567890:17" -> "6281234567890").
func stripDeviceSegment(user string) string {
	if i := strings.IndexByte(user, ':'); i >= 0 {
		return user[:i]
	}
	return user
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
