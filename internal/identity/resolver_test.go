package identity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestResolver() *Resolver {
	return NewResolver(DefaultRuleTable(), "62")
}

func TestResolveRoutingAddress(t *testing.T) {
	r := newTestResolver()

	cases := []struct {
		name string
		raw  string
		want string
	}{
		{name: "device segment stripped", raw: "6281234567890:17@s.whatsapp.net", want: "6281234567890"},
		{name: "plain routing address", raw: "628111222333@s.whatsapp.net", want: "628111222333"},
		{name: "legacy domain", raw: "628111222333@c.us", want: "628111222333"},
		{name: "leading zero replaced", raw: "08123456789@s.whatsapp.net", want: "628123456789"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id := r.Resolve(tc.raw)
			require.False(t, id.IsOpaqueID)
			require.Equal(t, ConfidenceResolved, id.Confidence)
			require.Equal(t, tc.want, id.CanonicalPhone)
		})
	}
}

func TestNormalizePhoneIdempotent(t *testing.T) {
	r := newTestResolver()

	inputs := []string{
		"08123456789",
		"+62 812-3456-789",
		"6281234567890",
		"62 (812) 345 67 89",
	}
	for _, in := range inputs {
		once := r.NormalizePhone(in)
		twice := r.NormalizePhone(once)
		require.Equal(t, once, twice, "normalizing %q twice changed the result", in)
	}

	require.Equal(t, "628123456789", r.NormalizePhone("08123456789"))
	require.Equal(t, "628123456789", r.NormalizePhone("+628123456789"))
}

func TestResolveLinkedIdentifier(t *testing.T) {
	r := newTestResolver()

	id := r.Resolve("123456789012345@lid")
	require.True(t, id.IsOpaqueID)
	require.Empty(t, id.CanonicalPhone)
	require.Equal(t, ConfidenceUnresolved, id.Confidence)
	require.Equal(t, "123456789012345", id.Key())
}

func TestAuxiliaryPhonePreferred(t *testing.T) {
	r := newTestResolver()

	t.Run("plain auxiliary", func(t *testing.T) {
		id := r.Resolve("123456789012345@lid", "628123456789")
		require.False(t, id.IsOpaqueID)
		require.Equal(t, "628123456789", id.CanonicalPhone)
		require.Equal(t, ConfidenceResolved, id.Confidence)
	})

	t.Run("auxiliary with leading zero", func(t *testing.T) {
		id := r.Resolve("123456789012345@lid", "", "08123456789")
		require.Equal(t, "628123456789", id.CanonicalPhone)
	})

	t.Run("auxiliary routing address", func(t *testing.T) {
		id := r.Resolve("123456789012345@lid", "6281234567890:3@s.whatsapp.net")
		require.Equal(t, "6281234567890", id.CanonicalPhone)
	})

	t.Run("auxiliary itself opaque keeps opaque result", func(t *testing.T) {
		id := r.Resolve("123456789012345@lid", "988877665544332211")
		require.True(t, id.IsOpaqueID)
		require.Empty(t, id.CanonicalPhone)
	})
}

func TestBareClassification(t *testing.T) {
	r := newTestResolver()

	cases := []struct {
		name       string
		raw        string
		wantOpaque bool
		wantPhone  string
	}{
		{name: "plausible local number", raw: "6281234567890", wantPhone: "6281234567890"},
		{name: "leading zero local number", raw: "08123456789", wantPhone: "628123456789"},
		{name: "formatted number", raw: "+62 812-3456-789", wantPhone: "628123456789"},
		{name: "us number at max length", raw: "12025550123", wantPhone: "12025550123"},
		{name: "known prefix too long", raw: "62812345678901", wantOpaque: true},
		{name: "sixteen digits always opaque", raw: "1234567890123456", wantOpaque: true},
		{name: "fourteen digits unknown prefix", raw: "99912345678901", wantOpaque: true},
		{name: "known opaque range", raw: "120363111122233", wantOpaque: true},
		{name: "collision table below threshold", raw: "1202555012345", wantOpaque: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id := r.Resolve(tc.raw)
			require.Equal(t, tc.wantOpaque, id.IsOpaqueID)
			if !tc.wantOpaque {
				require.Equal(t, tc.wantPhone, id.CanonicalPhone)
				require.Equal(t, ConfidenceResolved, id.Confidence)
			}
		})
	}
}

func TestResolveEmptyAndJunk(t *testing.T) {
	r := newTestResolver()

	id := r.Resolve("")
	require.Empty(t, id.CanonicalPhone)
	require.Equal(t, ConfidenceUnresolved, id.Confidence)

	id = r.Resolve("???")
	require.False(t, id.IsOpaqueID)
	require.Empty(t, id.CanonicalPhone)
	require.Equal(t, ConfidenceUnresolved, id.Confidence)
}

func TestLoadRuleTableOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.toml")
	content := `
min_opaque_length = 13
opaque_prefixes = ["555"]

[[country_rules]]
prefix = "62"
max_plausible_length = 14
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	table, err := LoadRuleTable(path)
	require.NoError(t, err)
	require.Equal(t, 13, table.MinOpaqueLength)
	require.Equal(t, []string{"555"}, table.OpaquePrefixes)
	require.Len(t, table.CountryRules, 1)
	require.Equal(t, 14, table.CountryRules[0].MaxPlausibleLength)
	// Absent fields keep defaults.
	require.Equal(t, DefaultRuleTable().HardOpaqueLength, table.HardOpaqueLength)

	_, err = LoadRuleTable(filepath.Join(dir, "missing.toml"))
	require.Error(t, err)
}

func TestLoadRuleTableEmptyPath(t *testing.T) {
	table, err := LoadRuleTable("")
	require.NoError(t, err)
	require.Equal(t, DefaultRuleTable(), table)
}
