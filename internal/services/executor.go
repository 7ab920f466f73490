package services

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/autolumiku/whatsapp-backend/internal/events"
	"github.com/autolumiku/whatsapp-backend/internal/models"
	"github.com/autolumiku/whatsapp-backend/internal/storage"
)

// Commit range rules. The windows guard against mis-extracted numbers
// turning into inventory rows.
const (
	minVehicleYear  = 1980
	maxVehiclePrice = 100_000_000_000
	maxMileageKM    = 1_000_000
	stockListLimit  = 10
)

// vehicleCommit is validated immediately before the inventory write.
type vehicleCommit struct {
	Make    string `validate:"required"`
	Model   string `validate:"required"`
	Year    int    `validate:"required,plausible_year"`
	Price   int64  `validate:"required,gt=0,lte=100000000000"`
	Mileage int    `validate:"gte=0,lte=1000000"`
}

var validate = newVehicleValidator()

func newVehicleValidator() *validator.Validate {
	v := validator.New()
	// Accepts [1980, next model year].
	_ = v.RegisterValidation("plausible_year", func(fl validator.FieldLevel) bool {
		year := int(fl.Field().Int())
		return year >= minVehicleYear && year <= time.Now().Year()+1
	})
	return v
}

// Executor runs staff commands against the store, publishes the matching
// domain events and writes the audit trail.
type Executor struct {
	store storage.Store
	bus   *events.Bus
}

func NewExecutor(store storage.Store, bus *events.Bus) *Executor {
	return &Executor{store: store, bus: bus}
}

// CommitVehicle validates the completed draft and writes the inventory row.
// A non-nil vehicle means the commit succeeded and conversation state may
// be cleared. A rejection reply with a nil vehicle and nil error means the
// draft was refused and the flow should stay where it is.
func (e *Executor) CommitVehicle(tenantID, staffPhone string, draft VehicleDraft) (string, *models.Vehicle, error) {
	fields := draft.Vehicle
	if fields.Color == "" {
		fields.Color = "Unknown"
	}
	if fields.Transmission == "" {
		fields.Transmission = "Manual"
	}

	commit := vehicleCommit{
		Make:    fields.Make,
		Model:   fields.Model,
		Year:    fields.Year,
		Price:   fields.Price,
		Mileage: fields.Mileage,
	}
	if err := validate.Struct(commit); err != nil {
		return rejectionReply(fields, err), nil, nil
	}

	vehicle := &models.Vehicle{
		TenantID:       tenantID,
		Make:           fields.Make,
		Model:          fields.Model,
		Year:           fields.Year,
		Price:          fields.Price,
		Mileage:        fields.Mileage,
		Color:          fields.Color,
		Transmission:   fields.Transmission,
		CreatedByPhone: staffPhone,
	}
	vehicle.SetPhotos(draft.Photos)

	if _, err := e.store.CreateVehicle(vehicle); err != nil {
		zap.L().Error("vehicle create failed",
			zap.String("tenantId", tenantID),
			zap.Error(err))
		e.Log(tenantID, staffPhone, models.CommandUploadVehicle, false, "persistence failure", "")
		return replyCommitFailed(), nil, err
	}

	params, _ := json.MarshalToString(map[string]interface{}{
		"vehicleId": vehicle.VehicleID,
		"make":      vehicle.Make,
		"model":     vehicle.Model,
		"year":      vehicle.Year,
		"price":     vehicle.Price,
		"photos":    len(draft.Photos),
	})
	e.log(&models.CommandLogEntry{
		TenantID:        tenantID,
		StaffPhone:      staffPhone,
		CommandTag:      models.CommandUploadVehicle,
		Parameters:      params,
		Success:         true,
		ResultMessage:   "vehicle created",
		RelatedEntityID: vehicle.VehicleID,
	})
	if e.bus != nil {
		e.bus.Publish(events.TopicVehicleCreated, tenantID, vehicle)
	}
	return replyUploadCommitted(vehicle), vehicle, nil
}

// rejectionReply picks the corrective message for the first failed rule.
func rejectionReply(fields PartialVehicle, err error) string {
	var verr validator.ValidationErrors
	if errors.As(err, &verr) && len(verr) > 0 {
		switch verr[0].StructField() {
		case "Year":
			return replyValidationYear(fields.Year, minVehicleYear, time.Now().Year()+1)
		case "Price":
			return replyValidationPrice()
		case "Mileage":
			return replyValidationMileage()
		case "Make", "Model":
			return replyAskMissing(fields.MissingMandatory())
		}
	}
	return replyUnparseable()
}

// UpdateStatus handles "/status <vehicleId> <status>".
func (e *Executor) UpdateStatus(tenantID, staffPhone, text string) (string, error) {
	vehicleID, status, err := ParseStatusChange(text)
	if err != nil {
		var invalid *InvalidStatusError
		if errors.As(err, &invalid) {
			return replyInvalidStatus(invalid.Given), nil
		}
		return replyStatusUsage(), nil
	}

	vehicle, err := e.store.GetVehicleByID(tenantID, vehicleID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			e.Log(tenantID, staffPhone, models.CommandUpdateStatus, false, "vehicle not found", vehicleID)
			return replyVehicleNotFound(vehicleID), nil
		}
		return "", err
	}

	vehicle.Status = status
	if err := e.store.UpdateVehicle(vehicle); err != nil {
		return "", err
	}

	e.Log(tenantID, staffPhone, models.CommandUpdateStatus, true, "status set to "+status, vehicleID)
	if e.bus != nil {
		e.bus.Publish(events.TopicVehicleUpdated, tenantID, vehicle)
	}
	return replyStatusUpdated(vehicle), nil
}

// StockQuery handles "/stok [keyword]".
func (e *Executor) StockQuery(tenantID, staffPhone, text string) (string, error) {
	keyword := ParseStockKeyword(text)
	vehicles, err := e.store.SearchVehicles(tenantID, "", keyword, stockListLimit)
	if err != nil {
		return "", err
	}
	e.Log(tenantID, staffPhone, models.CommandStockQuery, true, keyword, "")
	if len(vehicles) == 0 {
		return replyStockEmpty(keyword), nil
	}
	return replyStockList(vehicles), nil
}

// Stats handles "/stats".
func (e *Executor) Stats(tenantID, staffPhone string) (string, error) {
	counts, err := e.store.CountVehiclesByStatus(tenantID)
	if err != nil {
		return "", err
	}
	e.Log(tenantID, staffPhone, models.CommandStats, true, "", "")
	return replyStats(counts), nil
}

// AvailableVehicles lists units for customer inquiries.
func (e *Executor) AvailableVehicles(tenantID string) ([]*models.Vehicle, error) {
	return e.store.SearchVehicles(tenantID, models.VehicleStatusAvailable, "", stockListLimit)
}

// Log writes one audit entry for an executed or denied command.
func (e *Executor) Log(tenantID, staffPhone, tag string, success bool, result, relatedID string) {
	e.log(&models.CommandLogEntry{
		TenantID:        tenantID,
		StaffPhone:      staffPhone,
		CommandTag:      tag,
		Success:         success,
		ResultMessage:   result,
		RelatedEntityID: relatedID,
	})
}

func (e *Executor) log(entry *models.CommandLogEntry) {
	if err := e.store.AppendCommandLog(entry); err != nil {
		zap.L().Error("command log append failed",
			zap.String("tenantId", entry.TenantID),
			zap.String("command", entry.CommandTag),
			zap.Error(err))
	}
}
