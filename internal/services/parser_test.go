package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autolumiku/whatsapp-backend/internal/models"
)

type stubExtractor struct {
	fields PartialVehicle
	err    error
	calls  int
}

func (s *stubExtractor) Extract(_ context.Context, _ string) (PartialVehicle, error) {
	s.calls++
	return s.fields, s.err
}

func TestExtractVehiclePrefersAIResult(t *testing.T) {
	ai := &stubExtractor{fields: PartialVehicle{Make: "Honda", Model: "Jazz", Year: 2018, Price: 180_000_000}}
	parser := NewCommandParser(ai)

	got, err := parser.ExtractVehicle(context.Background(), "jazz 2018 silver istimewa")
	require.NoError(t, err)
	assert.Equal(t, ai.fields, got)
	assert.Equal(t, 1, ai.calls)
}

func TestExtractVehicleFallsBackWhenAIDown(t *testing.T) {
	ai := &stubExtractor{err: errors.New("upstream 503")}
	parser := NewCommandParser(ai)

	got, err := parser.ExtractVehicle(context.Background(), "Brio 2020 120jt")
	require.NoError(t, err)
	assert.Equal(t, "Honda", got.Make)
	assert.Equal(t, int64(120_000_000), got.Price)
}

func TestExtractVehicleFallsBackWhenAIEmpty(t *testing.T) {
	ai := &stubExtractor{}
	parser := NewCommandParser(ai)

	got, err := parser.ExtractVehicle(context.Background(), "Avanza 2019 135jt")
	require.NoError(t, err)
	assert.Equal(t, "Toyota", got.Make)
}

func TestExtractVehicleUnparseable(t *testing.T) {
	ai := &stubExtractor{err: errors.New("upstream 503")}
	parser := NewCommandParser(ai)

	_, err := parser.ExtractVehicle(context.Background(), "oke siap terima kasih")
	require.ErrorIs(t, err, ErrUnparseable)
}

func TestParseUploadCommandBareVerb(t *testing.T) {
	parser := NewCommandParser(nil)

	got, err := parser.ParseUploadCommand(context.Background(), "/upload")
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
}

func TestParseUploadCommandWithInlineData(t *testing.T) {
	parser := NewCommandParser(nil)

	got, err := parser.ParseUploadCommand(context.Background(), "/upload Brio 2020 120jt hitam")
	require.NoError(t, err)
	assert.Equal(t, "Honda", got.Make)
	assert.Equal(t, "Brio", got.Model)
	assert.Equal(t, 2020, got.Year)
	assert.Equal(t, "Hitam", got.Color)
}

func TestStripCommandVerb(t *testing.T) {
	assert.Equal(t, "Brio 2020", StripCommandVerb("/upload Brio 2020"))
	assert.Equal(t, "Brio 2020", StripCommandVerb("  UPLOAD Brio 2020"))
	assert.Equal(t, "", StripCommandVerb("/upload"))
	assert.Equal(t, "Brio 2020", StripCommandVerb("Brio 2020"))
}

func TestParseStatusChange(t *testing.T) {
	cases := []struct {
		name       string
		text       string
		wantID     string
		wantStatus string
		wantErr    error
	}{
		{name: "indonesian sold", text: "/status V123 terjual", wantID: "V123", wantStatus: models.VehicleStatusSold},
		{name: "case folding", text: "/status v123 TERSEDIA", wantID: "V123", wantStatus: models.VehicleStatusAvailable},
		{name: "english alias", text: "/status V123 booked", wantID: "V123", wantStatus: models.VehicleStatusBooked},
		{name: "missing args", text: "/status V123", wantErr: ErrStatusUsage},
		{name: "too many args", text: "/status V123 terjual cepat", wantErr: ErrStatusUsage},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, status, err := ParseStatusChange(tc.text)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantID, id)
			assert.Equal(t, tc.wantStatus, status)
		})
	}
}

func TestParseStatusChangeUnknownWord(t *testing.T) {
	_, _, err := ParseStatusChange("/status V123 rusak")

	var invalid *InvalidStatusError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "rusak", invalid.Given)
}

func TestParseStockKeyword(t *testing.T) {
	assert.Equal(t, "", ParseStockKeyword("/stok"))
	assert.Equal(t, "brio", ParseStockKeyword("/stok brio"))
	assert.Equal(t, "brio merah", ParseStockKeyword("/stok brio merah"))
}
