package identity

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// CountryRule bounds the plausible total digit length for numbers that
// start with one calling code. Anything longer that still matches the
// prefix is classified as an opaque platform id.
type CountryRule struct {
	Prefix             string `toml:"prefix"`
	MaxPlausibleLength int    `toml:"max_plausible_length"`
}

// RuleTable drives phone-vs-opaque classification for sender references
// that carry no domain suffix. The rule set is empirical and grows as new
// opaque-id ranges are observed, which is why it lives in data rather
// than in code: ship a TOML file and set IDENTITY_RULES_FILE to replace
// the compiled-in defaults without touching call sites.
type RuleTable struct {
	// Known opaque-id numeric prefixes; combined with MinOpaqueLength.
	OpaquePrefixes []string `toml:"opaque_prefixes"`

	// Calling-code prefixes with their maximum plausible total lengths.
	CountryRules []CountryRule `toml:"country_rules"`

	// Length at which prefix heuristics begin to apply (default 14).
	MinOpaqueLength int `toml:"min_opaque_length"`

	// Length no real phone number reaches (default 16).
	HardOpaqueLength int `toml:"hard_opaque_length"`
}

// DefaultRuleTable returns the compiled-in rule set.
func DefaultRuleTable() RuleTable {
	return RuleTable{
		OpaquePrefixes: []string{"120363", "100", "131", "203"},
		CountryRules: []CountryRule{
			{Prefix: "62", MaxPlausibleLength: 13},
			{Prefix: "60", MaxPlausibleLength: 12},
			{Prefix: "65", MaxPlausibleLength: 10},
			{Prefix: "66", MaxPlausibleLength: 11},
			{Prefix: "63", MaxPlausibleLength: 12},
			{Prefix: "84", MaxPlausibleLength: 11},
			{Prefix: "91", MaxPlausibleLength: 12},
			{Prefix: "86", MaxPlausibleLength: 13},
			{Prefix: "81", MaxPlausibleLength: 12},
			{Prefix: "82", MaxPlausibleLength: 12},
			{Prefix: "971", MaxPlausibleLength: 12},
			{Prefix: "966", MaxPlausibleLength: 12},
			{Prefix: "61", MaxPlausibleLength: 11},
			{Prefix: "44", MaxPlausibleLength: 12},
			{Prefix: "49", MaxPlausibleLength: 13},
			{Prefix: "33", MaxPlausibleLength: 11},
			{Prefix: "7", MaxPlausibleLength: 11},
			{Prefix: "1", MaxPlausibleLength: 11},
		},
		MinOpaqueLength:  14,
		HardOpaqueLength: 16,
	}
}

// LoadRuleTable reads a TOML rule file over the defaults. An empty path
// returns the defaults; fields absent from the file keep their default
// values.
func LoadRuleTable(path string) (RuleTable, error) {
	table := DefaultRuleTable()
	if path == "" {
		return table, nil
	}

	var override RuleTable
	if _, err := toml.DecodeFile(path, &override); err != nil {
		return table, fmt.Errorf("decode identity rules %s: %w", path, err)
	}

	if len(override.OpaquePrefixes) > 0 {
		table.OpaquePrefixes = override.OpaquePrefixes
	}
	if len(override.CountryRules) > 0 {
		table.CountryRules = override.CountryRules
	}
	if override.MinOpaqueLength > 0 {
		table.MinOpaqueLength = override.MinOpaqueLength
	}
	if override.HardOpaqueLength > 0 {
		table.HardOpaqueLength = override.HardOpaqueLength
	}
	return table, nil
}

// countryRuleFor returns the longest-prefix country rule matching digits.
func (t RuleTable) countryRuleFor(digits string) (CountryRule, bool) {
	best := CountryRule{}
	found := false
	for _, rule := range t.CountryRules {
		if len(digits) < len(rule.Prefix) {
			continue
		}
		if digits[:len(rule.Prefix)] != rule.Prefix {
			continue
		}
		if !found || len(rule.Prefix) > len(best.Prefix) {
			best = rule
			found = true
		}
	}
	return best, found
}

// hasOpaquePrefix reports whether digits start with a known opaque range.
func (t RuleTable) hasOpaquePrefix(digits string) bool {
	for _, p := range t.OpaquePrefixes {
		if len(digits) >= len(p) && digits[:len(p)] == p {
			return true
		}
	}
	return false
}
