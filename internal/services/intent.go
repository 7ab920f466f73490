package services

import (
	"context"
	"strings"
)

// Intent tags produced by classification. Staff intents require a roster
// match before execution; customer intents never touch the command path.
const (
	IntentStaffUpload  = "staff_upload_vehicle"
	IntentStaffStatus  = "staff_update_status"
	IntentStaffStock   = "staff_stock_query"
	IntentStaffStats   = "staff_stats"
	IntentStaffCancel  = "staff_cancel"
	IntentStaffHelp    = "staff_help"
	IntentCustGreeting = "customer_greeting"
	IntentCustVehicle  = "customer_vehicle_inquiry"
	IntentCustPrice    = "customer_price_inquiry"
	IntentCustGeneral  = "customer_general"
)

// IsStaffIntent reports whether the tag names a staff-only command.
func IsStaffIntent(intent string) bool {
	switch intent {
	case IntentStaffUpload, IntentStaffStatus, IntentStaffStock,
		IntentStaffStats, IntentStaffCancel, IntentStaffHelp:
		return true
	}
	return false
}

// IntentClassifier maps free-form text plus the sender role to an intent
// tag. Implementations must never fail hard; when unsure they return the
// general customer intent.
type IntentClassifier interface {
	Classify(ctx context.Context, text string, isStaff bool) string
}

// commandVerbs maps slash-command verbs (and common bare aliases) to staff
// intents.
var commandVerbs = map[string]string{
	"/upload":    IntentStaffUpload,
	"upload":     IntentStaffUpload,
	"/status":    IntentStaffStatus,
	"/stok":      IntentStaffStock,
	"/stock":     IntentStaffStock,
	"/stats":     IntentStaffStats,
	"/statistik": IntentStaffStats,
	"/batal":     IntentStaffCancel,
	"/cancel":    IntentStaffCancel,
	"/help":      IntentStaffHelp,
	"/bantuan":   IntentStaffHelp,
}

var greetingWords = []string{
	"halo", "hai", "hello", "hi", "pagi", "siang", "sore", "malam",
	"assalamualaikum", "permisi", "selamat",
}

var priceWords = []string{"harga", "berapa", "nego", "dp", "kredit", "cicilan"}

var vehicleWords = []string{"mobil", "unit", "stok", "ready", "tersedia", "stock"}

// RuleBasedClassifier is the default keyword classifier. It is cheap,
// deterministic, and good enough for command routing; richer customer
// intent detection can swap in behind the same interface.
type RuleBasedClassifier struct{}

func NewRuleBasedClassifier() *RuleBasedClassifier {
	return &RuleBasedClassifier{}
}

func (c *RuleBasedClassifier) Classify(_ context.Context, text string, isStaff bool) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return IntentCustGeneral
	}

	verb := lower
	if i := strings.IndexByte(lower, ' '); i > 0 {
		verb = lower[:i]
	}
	if intent, ok := commandVerbs[verb]; ok {
		// Slash commands classify as staff intents from anyone, so the
		// authorization gate sees and logs outsider attempts. Bare verb
		// aliases only count for known staff.
		if strings.HasPrefix(verb, "/") || isStaff {
			return intent
		}
	}

	for _, w := range greetingWords {
		if strings.HasPrefix(lower, w) {
			return IntentCustGreeting
		}
	}
	for _, w := range priceWords {
		if containsWord(lower, w) {
			return IntentCustPrice
		}
	}
	for _, w := range vehicleWords {
		if containsWord(lower, w) {
			return IntentCustVehicle
		}
	}
	if _, ok := modelMake[firstToken(lower)]; ok {
		return IntentCustVehicle
	}
	return IntentCustGeneral
}

func containsWord(text, word string) bool {
	for _, token := range strings.Fields(text) {
		if strings.Trim(token, ".,!?") == word {
			return true
		}
	}
	return false
}

func firstToken(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], ".,!?")
}
