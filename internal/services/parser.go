package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/autolumiku/whatsapp-backend/internal/models"
)

// ErrUnparseable means the text carried no recognizable vehicle field.
var ErrUnparseable = errors.New("no vehicle fields recognized")

// ErrStatusUsage means the status command did not have exactly an ID and a
// status word.
var ErrStatusUsage = errors.New("status command usage")

// InvalidStatusError reports a status word outside the allowed set.
type InvalidStatusError struct {
	Given string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid vehicle status %q", e.Given)
}

var statusAliases = map[string]string{
	"tersedia":  models.VehicleStatusAvailable,
	"available": models.VehicleStatusAvailable,
	"ready":     models.VehicleStatusAvailable,
	"dibooking": models.VehicleStatusBooked,
	"booking":   models.VehicleStatusBooked,
	"booked":    models.VehicleStatusBooked,
	"terjual":   models.VehicleStatusSold,
	"sold":      models.VehicleStatusSold,
	"laku":      models.VehicleStatusSold,
}

// CommandParser turns staff message text into structured command input.
// Vehicle extraction goes through the AI collaborator first and falls back
// to the deterministic pattern extractor when that fails or finds nothing.
type CommandParser struct {
	extractor VehicleExtractor
	fallback  RegexExtractor
}

func NewCommandParser(extractor VehicleExtractor) *CommandParser {
	return &CommandParser{extractor: extractor}
}

// ParseUploadCommand extracts vehicle fields from the text of a /upload
// command. A bare /upload returns an empty record with no error.
func (p *CommandParser) ParseUploadCommand(ctx context.Context, text string) (PartialVehicle, error) {
	rest := StripCommandVerb(text)
	if rest == "" {
		return PartialVehicle{}, nil
	}
	return p.ExtractVehicle(ctx, rest)
}

// ExtractVehicle runs extraction on free-form text. ErrUnparseable comes
// back when neither the AI service nor the fallback found a single field.
func (p *CommandParser) ExtractVehicle(ctx context.Context, text string) (PartialVehicle, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return PartialVehicle{}, nil
	}
	if p.extractor != nil {
		fields, err := p.extractor.Extract(ctx, trimmed)
		if err == nil && !fields.IsEmpty() {
			return fields, nil
		}
		if err != nil {
			zap.L().Debug("ai extraction unavailable, using fallback", zap.Error(err))
		}
	}
	fields, _ := p.fallback.Extract(ctx, trimmed)
	if fields.IsEmpty() {
		return PartialVehicle{}, ErrUnparseable
	}
	return fields, nil
}

// StripCommandVerb removes a leading slash-command verb from the text.
func StripCommandVerb(text string) string {
	trimmed := strings.TrimSpace(text)
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return ""
	}
	if _, ok := commandVerbs[strings.ToLower(fields[0])]; ok {
		return strings.TrimSpace(trimmed[len(fields[0]):])
	}
	return trimmed
}

// ParseStatusChange splits "/status <vehicleId> <status>" and validates the
// status word against the allowed set.
func ParseStatusChange(text string) (vehicleID, status string, err error) {
	fields := strings.Fields(text)
	if len(fields) != 3 {
		return "", "", ErrStatusUsage
	}
	vehicleID = strings.ToUpper(fields[1])
	status, ok := statusAliases[strings.ToLower(fields[2])]
	if !ok {
		return "", "", &InvalidStatusError{Given: fields[2]}
	}
	return vehicleID, status, nil
}

// ParseStockKeyword returns the optional filter after "/stok".
func ParseStockKeyword(text string) string {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return ""
	}
	return strings.Join(fields[1:], " ")
}
